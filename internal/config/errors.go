package config

import (
	"fmt"
	"strings"
)

// Error is a configuration problem with a hint on how to fix it.
type Error struct {
	Message    string
	Suggestion string
	Cause      error
}

func newError(message, suggestion string) *Error {
	return &Error{Message: message, Suggestion: suggestion}
}

func wrapError(err error, message, suggestion string) *Error {
	return &Error{Message: message, Suggestion: suggestion, Cause: err}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}
	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf(" (%s)", e.Suggestion))
	}
	return b.String()
}

// Unwrap returns the underlying cause for use with errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}
