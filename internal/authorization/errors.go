package authorization

import "errors"

var (
	ErrInvalidActor  = errors.New("invalid_actor")
	ErrInvalidAction = errors.New("invalid_action")
	ErrUnknownRole   = errors.New("unknown_role")
)
