package anova

import "errors"

// Error classes surfaced by a Session. Returned errors wrap one of these,
// so callers dispatch with errors.Is.
var (
	// ErrConnection means the link is unavailable, lost, or desynchronized.
	ErrConnection = errors.New("anova: connection unavailable")
	// ErrTimeout means the device sent no reply within the command timeout.
	ErrTimeout = errors.New("anova: no reply from device")
	// ErrProtocol means the reply could not be parsed into a status.
	ErrProtocol = errors.New("anova: malformed device reply")
	// ErrValidation means a caller-supplied value is out of range.
	ErrValidation = errors.New("anova: value out of range")
)
