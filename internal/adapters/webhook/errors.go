package webhook

import "errors"

// Sentinel kinds for dispatcher errors.
var (
	ErrBadRequest = errors.New("unbuildable webhook request")
)
