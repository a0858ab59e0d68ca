package domain

import "errors"

var (
	ErrInvalidStatus      = errors.New("invalid_status")
	ErrInvalidIdentifier  = errors.New("invalid_identifier")
	ErrBackendUnavailable = errors.New("ticket_backend_unavailable")
	ErrUnexpectedResponse = errors.New("ticket_backend_unexpected_response")
	ErrDuplicateOpen      = errors.New("duplicate_open_ticket")
)
