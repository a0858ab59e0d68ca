package dispatch

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	lifecycledomain "github.com/smallbiznis/vindesk/internal/lifecycle/domain"
)

type Kind string

const (
	KindSubmission  Kind = "submission"
	KindClaim       Kind = "claim"
	KindFulfillment Kind = "fulfillment"
	KindPayment     Kind = "payment"
)

var (
	ErrUnknownKind    = errors.New("unknown_event_kind")
	ErrInvalidPayload = errors.New("invalid_event_payload")
	ErrForbidden      = errors.New("forbidden")
	ErrHandlerPanic   = errors.New("handler_panic")
)

// PaymentEvent asks to settle a pending payment. ActorID must hold the
// payment.complete permission.
type PaymentEvent struct {
	PaymentID  string `json:"payment_id"`
	ExternalID string `json:"external_id"`
	ActorID    int64  `json:"actor_id"`
}

type PaymentOutcome struct {
	PaymentID string `json:"payment_id"`
	Completed bool   `json:"completed"`
}

// Reply is the JSON body sent back when an inbound message has a reply subject.
type Reply struct {
	Kind    Kind   `json:"kind"`
	Outcome any    `json:"outcome,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Controller is the ticket lifecycle the dispatcher drives.
type Controller interface {
	Submit(ctx context.Context, in lifecycledomain.Submission) lifecycledomain.SubmitOutcome
	Claim(ctx context.Context, in lifecycledomain.Claim) lifecycledomain.ClaimOutcome
	Fulfill(ctx context.Context, in lifecycledomain.Fulfillment) lifecycledomain.FulfillOutcome
}

type PaymentCompleter interface {
	CompletePayment(ctx context.Context, id snowflake.ID, externalID string) (bool, error)
}
