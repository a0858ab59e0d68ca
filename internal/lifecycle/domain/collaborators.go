package domain

import (
	"context"

	ticketdomain "github.com/smallbiznis/vindesk/internal/ticket/domain"
)

//go:generate mockgen -source=collaborators.go -destination=./mocks/mock_collaborators.go -package=mocks

const (
	ActionTicketClaim     = "ticket.claim"
	ActionTicketFulfill   = "ticket.fulfill"
	ActionPaymentComplete = "payment.complete"
)

// Notifier delivers outbound messages. Callers log failures and carry on.
type Notifier interface {
	NotifyOperatorPool(ctx context.Context, summary ticketdomain.Summary) error
	NotifyRequester(ctx context.Context, requesterID int64, msg Message) error
	ForwardDocument(ctx context.Context, requesterID int64, ticketID int64, doc Document) error
}

// Authorizer decides whether an operator may perform action.
type Authorizer interface {
	Authorize(ctx context.Context, operatorID int64, action string) (bool, error)
}

// RateLimiter throttles submissions per requester.
type RateLimiter interface {
	Allow(ctx context.Context, requesterID int64) (bool, error)
}
