package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Service owns per-requester credit balances.
type Service interface {
	// GetBalance returns nil when the requester never bought credits.
	GetBalance(ctx context.Context, requesterID int64) (*Balance, error)
	Grant(ctx context.Context, requesterID int64, count int, source Source) (*Balance, error)
	// GrantTx applies the grant inside the caller's transaction.
	GrantTx(ctx context.Context, tx *gorm.DB, requesterID int64, count int, source Source) (*Balance, error)
	CanConsume(ctx context.Context, requesterID int64) (bool, error)
	// Consume spends one credit. It reports false without mutation when
	// nothing is left.
	Consume(ctx context.Context, requesterID int64, source Source) (bool, error)
	// Refund returns one consumed credit. It never raises remaining above
	// total, so it cannot mint credits that were not bought.
	Refund(ctx context.Context, requesterID int64, source Source) (bool, error)
	ListEntries(ctx context.Context, requesterID int64, limit int) ([]Entry, error)
}

// Repository performs the single-statement balance mutations. Every method
// takes the db handle so callers can run it inside a transaction.
type Repository interface {
	FindBalance(ctx context.Context, db *gorm.DB, requesterID int64) (*Balance, error)
	UpsertGrant(ctx context.Context, db *gorm.DB, requesterID int64, count int, now time.Time) error
	DecrementRemaining(ctx context.Context, db *gorm.DB, requesterID int64, now time.Time) (bool, error)
	IncrementRemaining(ctx context.Context, db *gorm.DB, requesterID int64, now time.Time) (bool, error)
	InsertEntry(ctx context.Context, db *gorm.DB, entry *Entry) error
	ListEntries(ctx context.Context, db *gorm.DB, requesterID int64, limit int) ([]Entry, error)
}
