package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vindesk/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, payment *domain.Payment) error {
	return db.WithContext(ctx).Create(payment).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	var items []domain.Payment
	err := db.WithContext(ctx).Raw(
		`SELECT id, requester_id, amount, currency, tier, status, provider,
			external_id, created_at, completed_at
		 FROM payments
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (r *repo) ListByRequester(ctx context.Context, db *gorm.DB, requesterID int64, limit int) ([]domain.Payment, error) {
	var items []domain.Payment
	err := db.WithContext(ctx).
		Where("requester_id = ?", requesterID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) ListPendingBefore(ctx context.Context, db *gorm.DB, cutoff time.Time, limit int) ([]domain.Payment, error) {
	var items []domain.Payment
	err := db.WithContext(ctx).
		Where("status = ? AND created_at < ?", domain.StatusPending, cutoff).
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Transition(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to domain.Status, externalID *string, completedAt *time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE payments
		 SET status = ?, external_id = COALESCE(?, external_id), completed_at = COALESCE(?, completed_at)
		 WHERE id = ? AND status = ?`,
		to,
		externalID,
		completedAt,
		id,
		from,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
