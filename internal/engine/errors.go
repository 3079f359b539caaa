package engine

import "errors"

// Validation errors surface synchronously to the caller and never partially
// mutate state. Storage failures are wrapped and passed through as-is; the
// engine performs no automatic retry.
var (
	ErrAgentNotFound      = errors.New("agent not found")
	ErrSlotNotFound       = errors.New("break slot not found")
	ErrScheduleNotFound   = errors.New("schedule not found")
	ErrSlotFull           = errors.New("break slot is full")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
)
