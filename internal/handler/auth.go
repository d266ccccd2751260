package handler

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/ziminpro/ums/internal/domain"
	"github.com/ziminpro/ums/internal/service"
)

// AuthService defines the authentication operations consumed by the
// handlers.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	Register(ctx context.Context, name, email, password string, roles []string) (*service.AuthResult, error)
	GitHubCallback(ctx context.Context, code string) (*service.AuthResult, error)
	GitHubAuthURL(state string) string
	CurrentUser(ctx context.Context, authorization string) (*domain.User, error)
	ListUsers(ctx context.Context) (map[uuid.UUID]*domain.User, error)
	DeleteUser(ctx context.Context, id uuid.UUID) error
}

// AuthHandler handles authentication and user administration endpoints.
type AuthHandler struct {
	auth AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Name     string   `json:"name" validate:"required"`
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=8"`
	Roles    []string `json:"roles"`
}

type callbackRequest struct {
	Code string `json:"code" validate:"required"`
}

// authResponse is the user projection returned alongside a token.
type authResponse struct {
	Token string `json:"token"`
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func newAuthResponse(result *service.AuthResult) authResponse {
	return authResponse{
		Token: result.Token,
		ID:    result.User.ID.String(),
		Name:  result.User.Name,
		Email: result.User.Email,
	}
}

// Login authenticates local credentials and returns a token.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return respond(c, http.StatusBadRequest, Envelope{Message: "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	result, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return respondError(c, err)
	}

	return respond(c, http.StatusOK, Envelope{
		Message: "Login successful",
		Token:   result.Token,
		Data:    newAuthResponse(result),
	})
}

// Register creates a new local account and returns a token.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return respond(c, http.StatusBadRequest, Envelope{Message: "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	result, err := h.auth.Register(c.Request().Context(), req.Name, req.Email, req.Password, req.Roles)
	if err != nil {
		return respondError(c, err)
	}

	return respond(c, http.StatusCreated, Envelope{
		Message: "User registered successfully",
		Token:   result.Token,
		Data:    newAuthResponse(result),
	})
}

// GitHubRedirect sends the user to GitHub's consent page with a state
// cookie for the callback to check.
func (h *AuthHandler) GitHubRedirect(c echo.Context) error {
	state := generateState()
	c.SetCookie(&http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600,
	})
	return c.Redirect(http.StatusTemporaryRedirect, h.auth.GitHubAuthURL(state))
}

// GitHubCallback completes the OAuth flow for an authorization code.
func (h *AuthHandler) GitHubCallback(c echo.Context) error {
	var req callbackRequest
	if err := c.Bind(&req); err != nil {
		return respond(c, http.StatusBadRequest, Envelope{Message: "Invalid request body"})
	}
	if err := c.Validate(&req); err != nil {
		return respondError(c, err)
	}

	result, err := h.auth.GitHubCallback(c.Request().Context(), req.Code)
	if err != nil {
		return respondError(c, err)
	}

	return respond(c, http.StatusOK, Envelope{
		Message: "GitHub authorization successful",
		Token:   result.Token,
		Data:    newAuthResponse(result),
	})
}

// Me returns the full aggregate for the bearer of the token.
func (h *AuthHandler) Me(c echo.Context) error {
	user, err := h.auth.CurrentUser(c.Request().Context(), c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return respondError(c, err)
	}

	return respond(c, http.StatusOK, Envelope{
		Message: "User found",
		Data:    user,
	})
}

// Users lists every user. Requires the ADMIN role.
func (h *AuthHandler) Users(c echo.Context) error {
	if err := h.requireAdmin(c); err != nil {
		return respondError(c, err)
	}

	users, err := h.auth.ListUsers(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}

	return respond(c, http.StatusOK, Envelope{
		Message: "Users found",
		Data:    users,
	})
}

// DeleteUser removes a user by id. Requires the ADMIN role.
func (h *AuthHandler) DeleteUser(c echo.Context) error {
	if err := h.requireAdmin(c); err != nil {
		return respondError(c, err)
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return respond(c, http.StatusBadRequest, Envelope{Message: "Invalid user id"})
	}

	if err := h.auth.DeleteUser(c.Request().Context(), id); err != nil {
		return respondError(c, err)
	}

	return respond(c, http.StatusOK, Envelope{Message: "User deleted"})
}

func (h *AuthHandler) requireAdmin(c echo.Context) error {
	user, err := h.auth.CurrentUser(c.Request().Context(), c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return err
	}
	if !user.HasRole(domain.RoleAdmin) {
		return domain.ErrForbidden
	}
	return nil
}

func generateState() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "fallback-state"
	}
	return base64.URLEncoding.EncodeToString(b)
}
