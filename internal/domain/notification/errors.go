package notification

import "errors"

// Common notification errors
var (
	// ErrNotFound is returned when a notification does not exist for the
	// acting user. Acting on another user's notification yields the same
	// error as acting on a missing one.
	ErrNotFound = errors.New("notification not found")
	// ErrInvalidType is returned when a type outside the closed set is used
	ErrInvalidType = errors.New("invalid notification type")
	// ErrNoRecipients is returned when a bulk create names no users
	ErrNoRecipients = errors.New("no recipients")
)
