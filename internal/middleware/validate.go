package middleware

import "strings"

const (
	minTokenLen    = 20
	maxTokenLen    = 4096
	maxSystemIDLen = 64
)

// InputValidator screens untrusted identifiers before they reach services.
type InputValidator struct{}

func NewInputValidator() *InputValidator {
	return &InputValidator{}
}

// ValidateToken checks the header.payload.signature shape of a JWT.
func (iv *InputValidator) ValidateToken(token string) bool {
	n := len(token)
	return n >= minTokenLen && n <= maxTokenLen && strings.Count(token, ".") == 2
}

// ValidateSystemID accepts 1-64 characters from [A-Za-z0-9._-].
func (iv *InputValidator) ValidateSystemID(id string) bool {
	if id == "" || len(id) > maxSystemIDLen {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}
