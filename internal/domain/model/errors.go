package model

import "errors"

// Sentinel kinds for event validation errors.
var (
	ErrInvalidEvent = errors.New("invalid event")
)
