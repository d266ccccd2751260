package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/ziminpro/ums/internal/domain"
)

// Envelope is the API response contract: a string status code mirroring
// HTTP semantics, a human-readable message, and optional token and payload.
type Envelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func respond(c echo.Context, status int, env Envelope) error {
	env.Code = strconv.Itoa(status)
	return c.JSON(status, env)
}

func respondError(c echo.Context, err error) error {
	status, message := mapError(err)
	return respond(c, status, Envelope{Message: message})
}

// mapError converts a domain error into a stable status/message pair.
// Internal details never reach the client except the OAuth flow message,
// which interpolates the underlying cause the way the API always has.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid email or password"
	case errors.Is(err, domain.ErrDuplicateAccount):
		return http.StatusBadRequest, "User with this email already exists"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "Authentication required"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "Insufficient permissions"
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, domain.ErrCreationFailed):
		return http.StatusInternalServerError, "Failed to create user"
	case errors.Is(err, domain.ErrOAuthFlow):
		return http.StatusInternalServerError, "GitHub authorization failed: " + err.Error()
	}

	var exchangeErr *domain.OAuthExchangeError
	if errors.As(err, &exchangeErr) {
		return http.StatusBadRequest, exchangeErr.Description
	}

	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest, validationErr.Error()
	}

	slog.Error("unhandled error", "error", err)
	return http.StatusInternalServerError, "An unexpected error occurred"
}

// HTTPErrorHandler renders echo's own errors (404, 405, panics recovered
// into 500s) in the standard envelope.
func HTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "An unexpected error occurred"

	var echoErr *echo.HTTPError
	if errors.As(err, &echoErr) {
		status = echoErr.Code
		if msg, ok := echoErr.Message.(string); ok && msg != "" {
			message = msg
		} else {
			message = http.StatusText(echoErr.Code)
		}
	} else {
		status, message = mapError(err)
	}

	if jsonErr := respond(c, status, Envelope{Message: message}); jsonErr != nil {
		slog.Error("failed to send error response", "error", jsonErr)
	}
}
