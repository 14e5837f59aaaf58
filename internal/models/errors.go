package models

import "errors"

var (
	// ErrNotFound is returned when a referenced task or user does not exist
	// or is not owned by the caller.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when an operation's precondition is not
	// met, e.g. snoozing a task that has no scheduled interval.
	ErrInvalidState = errors.New("invalid state")
)
