package model

import "errors"

var (
	// ErrInvalidTransition is returned when a lifecycle transition is not permitted
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrResolutionNoteRequired is returned when resolving a validation without a note
	ErrResolutionNoteRequired = errors.New("resolution note is required")

	// ErrInvalidPayload is returned when a validation payload holds an unsupported value
	ErrInvalidPayload = errors.New("invalid validation payload")
)
