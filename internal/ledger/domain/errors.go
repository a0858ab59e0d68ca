package domain

import "errors"

var (
	ErrInvalidRequester = errors.New("invalid_requester")
	ErrInvalidCount     = errors.New("invalid_count")
	ErrBalanceMissing   = errors.New("balance_missing")
)
