package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/vindesk/internal/ledger/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindBalance(ctx context.Context, db *gorm.DB, requesterID int64) (*domain.Balance, error) {
	var items []domain.Balance
	err := db.WithContext(ctx).Raw(
		`SELECT requester_id, remaining, total, created_at, updated_at
		 FROM balances
		 WHERE requester_id = ?
		 LIMIT 1`,
		requesterID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

// UpsertGrant creates the balance row or adds count to both counters in a
// single statement, so concurrent grants cannot lose an update.
func (r *repo) UpsertGrant(ctx context.Context, db *gorm.DB, requesterID int64, count int, now time.Time) error {
	row := domain.Balance{
		RequesterID: requesterID,
		Remaining:   count,
		Total:       count,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "requester_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"remaining":  gorm.Expr("balances.remaining + ?", count),
			"total":      gorm.Expr("balances.total + ?", count),
			"updated_at": now,
		}),
	}).Create(&row).Error
}

// DecrementRemaining spends one credit iff one is left.
func (r *repo) DecrementRemaining(ctx context.Context, db *gorm.DB, requesterID int64, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE balances
		 SET remaining = remaining - 1, updated_at = ?
		 WHERE requester_id = ? AND remaining > 0`,
		now,
		requesterID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// IncrementRemaining returns one spent credit without exceeding total.
func (r *repo) IncrementRemaining(ctx context.Context, db *gorm.DB, requesterID int64, now time.Time) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE balances
		 SET remaining = remaining + 1, updated_at = ?
		 WHERE requester_id = ? AND remaining < total`,
		now,
		requesterID,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repo) InsertEntry(ctx context.Context, db *gorm.DB, entry *domain.Entry) error {
	return db.WithContext(ctx).Create(entry).Error
}

func (r *repo) ListEntries(ctx context.Context, db *gorm.DB, requesterID int64, limit int) ([]domain.Entry, error) {
	var items []domain.Entry
	err := db.WithContext(ctx).
		Where("requester_id = ?", requesterID).
		Order("id DESC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
