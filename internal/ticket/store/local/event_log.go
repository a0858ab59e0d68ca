package local

import (
	"context"

	"github.com/smallbiznis/vindesk/internal/ticket/domain"
	"gorm.io/gorm"
)

// EventLog keeps ticket audit rows in the relational store. It is used for
// both ticket backends since the remote table API has no audit table.
type EventLog struct {
	db *gorm.DB
}

func NewEventLog(db *gorm.DB) *EventLog {
	return &EventLog{db: db}
}

func (l *EventLog) Append(ctx context.Context, event *domain.Event) error {
	return l.db.WithContext(ctx).Create(event).Error
}

func (l *EventLog) ListByTicket(ctx context.Context, ticketID int64) ([]domain.Event, error) {
	var items []domain.Event
	err := l.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

var _ domain.EventLog = (*EventLog)(nil)
