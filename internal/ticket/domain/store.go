package domain

import "context"

const (
	BackendLocal  = "local"
	BackendRemote = "remote"
)

// Store persists tickets. Implementations must apply CompareAndSetStatus as
// a single conditional write; it is the only synchronization point between
// handlers racing on the same ticket.
type Store interface {
	Create(ctx context.Context, identifier string, requesterID int64, displayName string) (*Ticket, error)
	// Get returns nil, nil when the ticket does not exist.
	Get(ctx context.Context, id int64) (*Ticket, error)
	// UpdateStatus writes status unconditionally and reports false for an
	// unknown id. A nil assignee keeps the current one.
	UpdateStatus(ctx context.Context, id int64, status Status, assigneeID *int64) (bool, error)
	// CompareAndSetStatus writes to only while the ticket is in one of from.
	CompareAndSetStatus(ctx context.Context, id int64, from []Status, to Status, assigneeID *int64) (bool, error)
	// FindOpen returns the newest NEW or TAKEN ticket for the pair, or nil.
	FindOpen(ctx context.Context, identifier string, requesterID int64) (*Ticket, error)
	ListByRequester(ctx context.Context, requesterID int64, limit int) ([]Ticket, error)
	Ping(ctx context.Context) error
	Backend() string
}

// EventLog records status changes for audit.
type EventLog interface {
	Append(ctx context.Context, event *Event) error
	ListByTicket(ctx context.Context, ticketID int64) ([]Event, error)
}
