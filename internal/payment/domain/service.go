package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Payment, error)
	ListByRequester(ctx context.Context, db *gorm.DB, requesterID int64, limit int) ([]Payment, error)
	// ListPendingBefore returns pending payments created before cutoff, oldest first.
	ListPendingBefore(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]Payment, error)
	// Transition flips status from -> to only when the row is still in from.
	Transition(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to Status, externalID *string, completedAt *time.Time) (bool, error)
}
