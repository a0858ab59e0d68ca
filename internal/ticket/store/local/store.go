package local

import (
	"context"
	"errors"
	"strings"

	"github.com/smallbiznis/vindesk/internal/clock"
	"github.com/smallbiznis/vindesk/internal/ticket/domain"
	"github.com/smallbiznis/vindesk/pkg/db"
	"gorm.io/gorm"
)

type Store struct {
	db    *gorm.DB
	clock clock.Clock
}

func New(db *gorm.DB, c clock.Clock) *Store {
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Store{db: db, clock: c}
}

func (s *Store) Backend() string { return domain.BackendLocal }

func (s *Store) Create(ctx context.Context, identifier string, requesterID int64, displayName string) (*domain.Ticket, error) {
	if strings.TrimSpace(identifier) == "" {
		return nil, domain.ErrInvalidIdentifier
	}
	now := s.clock.Now()
	ticket := &domain.Ticket{
		Identifier:  identifier,
		RequesterID: requesterID,
		DisplayName: strings.TrimSpace(displayName),
		Status:      domain.StatusNew,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.db.WithContext(ctx).Create(ticket).Error; err != nil {
		// uq_tickets_open allows one NEW or TAKEN ticket per identifier and requester.
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateOpen
		}
		return nil, err
	}
	return ticket, nil
}

func (s *Store) Get(ctx context.Context, id int64) (*domain.Ticket, error) {
	var ticket domain.Ticket
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&ticket).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (s *Store) UpdateStatus(ctx context.Context, id int64, status domain.Status, assigneeID *int64) (bool, error) {
	if !status.Valid() {
		return false, domain.ErrInvalidStatus
	}
	res := s.db.WithContext(ctx).Exec(
		`UPDATE tickets
		 SET status = ?, assignee_id = COALESCE(?, assignee_id), updated_at = ?
		 WHERE id = ?`,
		status,
		assigneeID,
		s.clock.Now(),
		id,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *Store) CompareAndSetStatus(ctx context.Context, id int64, from []domain.Status, to domain.Status, assigneeID *int64) (bool, error) {
	if !to.Valid() || len(from) == 0 {
		return false, domain.ErrInvalidStatus
	}
	res := s.db.WithContext(ctx).Exec(
		`UPDATE tickets
		 SET status = ?, assignee_id = COALESCE(?, assignee_id), updated_at = ?
		 WHERE id = ? AND status IN ?`,
		to,
		assigneeID,
		s.clock.Now(),
		id,
		statusValues(from),
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *Store) FindOpen(ctx context.Context, identifier string, requesterID int64) (*domain.Ticket, error) {
	var items []domain.Ticket
	err := s.db.WithContext(ctx).
		Where("identifier = ? AND requester_id = ? AND status IN ?", identifier, requesterID, statusValues(domain.OpenStatuses)).
		Order("id DESC").
		Limit(1).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}
	return &items[0], nil
}

func (s *Store) ListByRequester(ctx context.Context, requesterID int64, limit int) ([]domain.Ticket, error) {
	var items []domain.Ticket
	err := s.db.WithContext(ctx).
		Where("requester_id = ?", requesterID).
		Order("id DESC").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func statusValues(statuses []domain.Status) []string {
	out := make([]string, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, string(status))
	}
	return out
}

var _ domain.Store = (*Store)(nil)
