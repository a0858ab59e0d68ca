package domain

import (
	paymentdomain "github.com/smallbiznis/vindesk/internal/payment/domain"
	ticketdomain "github.com/smallbiznis/vindesk/internal/ticket/domain"
	"github.com/smallbiznis/vindesk/internal/vin"
)

type SubmitResult string

const (
	SubmitCreated            SubmitResult = "created"
	SubmitInvalidIdentifier  SubmitResult = "invalid_identifier"
	SubmitInsufficientCredit SubmitResult = "insufficient_credit"
	SubmitDuplicate          SubmitResult = "duplicate"
	SubmitRateLimited        SubmitResult = "rate_limited"
	SubmitFailed             SubmitResult = "failed"
)

type SubmitOutcome struct {
	Result SubmitResult         `json:"result"`
	Ticket *ticketdomain.Ticket `json:"ticket,omitempty"`
	// Reason is set for invalid_identifier.
	Reason vin.Reason `json:"reason,omitempty"`
	// PurchaseOptions is set for insufficient_credit.
	PurchaseOptions []paymentdomain.TierSpec `json:"purchase_options,omitempty"`
	// Charged reports whether a credit was spent on this submission.
	Charged bool `json:"charged"`
}

type ClaimResult string

const (
	ClaimClaimed         ClaimResult = "claimed"
	ClaimNotFound        ClaimResult = "not_found"
	ClaimAlreadyAssigned ClaimResult = "already_assigned"
	ClaimForbidden       ClaimResult = "forbidden"
	ClaimFailed          ClaimResult = "failed"
)

type ClaimOutcome struct {
	Result ClaimResult          `json:"result"`
	Ticket *ticketdomain.Ticket `json:"ticket,omitempty"`
}

type FulfillResult string

const (
	FulfillFulfilled       FulfillResult = "fulfilled"
	FulfillNotFound        FulfillResult = "not_found"
	FulfillAlreadyDone     FulfillResult = "already_done"
	FulfillInvalidDocument FulfillResult = "invalid_document"
	FulfillForbidden       FulfillResult = "forbidden"
	FulfillFailed          FulfillResult = "failed"
)

type FulfillOutcome struct {
	Result FulfillResult        `json:"result"`
	Ticket *ticketdomain.Ticket `json:"ticket,omitempty"`
	// Violation names the failed document check for invalid_document.
	Violation string `json:"violation,omitempty"`
	// DeliveryErr is set when the ticket is DONE but forwarding failed and
	// the operator has to follow up by hand.
	DeliveryErr error `json:"-"`
	Delivered   bool  `json:"delivered"`
}

// StatusView is a requester's recent tickets and remaining credits.
type StatusView struct {
	RequesterID int64                 `json:"requester_id"`
	Remaining   int                   `json:"remaining"`
	Total       int                   `json:"total"`
	Tickets     []ticketdomain.Ticket `json:"tickets"`
}

type MessageKind string

const (
	MessageTicketCreated     MessageKind = "ticket_created"
	MessageDuplicate         MessageKind = "duplicate"
	MessageInvalidIdentifier MessageKind = "invalid_identifier"
	MessagePurchaseOptions   MessageKind = "purchase_options"
	MessageRateLimited       MessageKind = "rate_limited"
	MessageRetryLater        MessageKind = "retry_later"
	MessageTicketTaken       MessageKind = "ticket_taken"
)

// Message is a structured notice for a requester; the gateway renders it.
type Message struct {
	Kind            MessageKind              `json:"kind"`
	TicketID        int64                    `json:"ticket_id,omitempty"`
	Status          ticketdomain.Status      `json:"status,omitempty"`
	Identifier      string                   `json:"identifier,omitempty"`
	Reason          vin.Reason               `json:"reason,omitempty"`
	PurchaseOptions []paymentdomain.TierSpec `json:"purchase_options,omitempty"`
}
