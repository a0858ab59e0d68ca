package domain

import "errors"

var (
	ErrInvalidRequester  = errors.New("invalid_requester")
	ErrUnknownTier       = errors.New("unknown_tier")
	ErrPaymentNotFound   = errors.New("payment_not_found")
	ErrPaymentNotPending = errors.New("payment_not_pending")
	ErrDuplicatePayment  = errors.New("duplicate_payment")
	ErrInvalidSignature  = errors.New("invalid_signature")
	ErrStaleSignature    = errors.New("stale_signature")
	ErrInvalidPayload    = errors.New("invalid_payload")
	ErrWebhookDisabled   = errors.New("webhook_disabled")
)
