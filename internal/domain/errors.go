package domain

import "errors"

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrDuplicateAccount   = errors.New("account already exists")
	ErrCreationFailed     = errors.New("user creation failed")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("forbidden")
	ErrUserNotFound       = errors.New("user not found")
	ErrMalformedToken     = errors.New("malformed token")
	ErrOAuthFlow          = errors.New("github authorization failed")
)

// OAuthExchangeError carries the provider's own description of a failed
// authorization-code exchange, surfaced to the caller verbatim.
type OAuthExchangeError struct {
	Description string
}

func (e *OAuthExchangeError) Error() string {
	return "oauth code exchange failed: " + e.Description
}

// ValidationError represents a field-level validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
