package consumer

import "errors"

// Sentinel kinds for consumer errors.
var (
	ErrShutdownTimeout = errors.New("consumer shutdown timed out")
)
