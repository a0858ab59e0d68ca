package domain

import (
	"time"

	"gorm.io/datatypes"
)

type Status string

const (
	StatusNew   Status = "NEW"
	StatusTaken Status = "TAKEN"
	StatusDone  Status = "DONE"
)

// OpenStatuses are the states in which a ticket still awaits an operator.
var OpenStatuses = []Status{StatusNew, StatusTaken}

func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusTaken, StatusDone:
		return true
	}
	return false
}

func (s Status) Terminal() bool { return s == StatusDone }

// CanTransition reports whether the lifecycle allows from -> to. A ticket
// may skip TAKEN, but never moves backwards or leaves DONE.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusNew:
		return to == StatusTaken || to == StatusDone
	case StatusTaken:
		return to == StatusDone
	default:
		return false
	}
}

// Ticket is one report request keyed by a validated VIN. A requester holds at
// most one NEW or TAKEN ticket per VIN; the migration enforces it with the
// uq_tickets_open index.
type Ticket struct {
	ID          int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	Identifier  string    `json:"identifier" gorm:"type:varchar(17);not null;index:idx_tickets_open,priority:1"`
	RequesterID int64     `json:"requester_id" gorm:"not null;index:idx_tickets_open,priority:2;index"`
	DisplayName string    `json:"display_name,omitempty" gorm:"type:varchar(255)"`
	Status      Status    `json:"status" gorm:"type:varchar(16);not null;index"`
	AssigneeID  *int64    `json:"assignee_id,omitempty"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Ticket) TableName() string { return "tickets" }

// Summary is what the operator pool sees for a new ticket.
type Summary struct {
	TicketID    int64  `json:"ticket_id"`
	RequesterID int64  `json:"requester_id"`
	DisplayName string `json:"display_name,omitempty"`
	Identifier  string `json:"identifier"`
}

func (t Ticket) Summary() Summary {
	return Summary{
		TicketID:    t.ID,
		RequesterID: t.RequesterID,
		DisplayName: t.DisplayName,
		Identifier:  t.Identifier,
	}
}

// Event is an append-only audit row for one status change.
type Event struct {
	ID         int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	TicketID   int64          `json:"ticket_id" gorm:"not null;index"`
	FromStatus Status         `json:"from_status" gorm:"type:varchar(16)"`
	ToStatus   Status         `json:"to_status" gorm:"type:varchar(16);not null"`
	ActorType  string         `json:"actor_type" gorm:"type:varchar(16);not null"`
	ActorID    int64          `json:"actor_id" gorm:"not null"`
	Metadata   datatypes.JSON `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at" gorm:"not null"`
}

// TableName sets the database table name.
func (Event) TableName() string { return "ticket_events" }
