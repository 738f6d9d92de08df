package services

import "errors"

var (
	// ErrSamplerFailure is returned when a requested kind, or every kind of a
	// snapshot, failed to sample.
	ErrSamplerFailure = errors.New("sampler failure")
	// ErrAccessDenied is returned when a caller lacks rights to a target.
	ErrAccessDenied = errors.New("access denied")
	// ErrNotFound is returned for unknown alert or target ids.
	ErrNotFound = errors.New("not found")
	// ErrMalformedMessage is returned for unparseable real-time messages.
	ErrMalformedMessage = errors.New("malformed message")
	// ErrAuthFailure is returned for missing or invalid credentials.
	ErrAuthFailure = errors.New("authentication failed")
	// ErrInvalidTransition is returned for alert status changes outside the lifecycle.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidInput is returned when required request fields are missing.
	ErrInvalidInput = errors.New("invalid input")
)
