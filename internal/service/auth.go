package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/ziminpro/ums/internal/domain"
)

// AuthService is the authentication façade: login, registration, the
// GitHub OAuth callback and current-user resolution. It never touches
// storage directly except through UserStore.
type AuthService struct {
	users    UserStore
	tokens   *TokenService
	hasher   Hasher
	github   GitHubProvider
	resolver *GitHubResolver
}

// NewAuthService creates a new AuthService.
func NewAuthService(users UserStore, tokens *TokenService, hasher Hasher, github GitHubProvider) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		hasher:   hasher,
		github:   github,
		resolver: NewGitHubResolver(users),
	}
}

// AuthResult pairs an issued token with the authenticated user.
type AuthResult struct {
	Token string
	User  *domain.User
}

// GitHubAuthURL returns the GitHub consent page URL for the given state.
func (s *AuthService) GitHubAuthURL(state string) string {
	return s.github.AuthCodeURL(state)
}

// Login verifies the credentials and issues a token. Unknown email and
// wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if !s.passwordMatches(password, user.PasswordHash) {
		return nil, domain.ErrInvalidCredentials
	}
	return s.issue(user)
}

// passwordMatches accepts either a bcrypt verify or a plaintext equality
// match. The plaintext branch exists only for accounts predating hashed
// storage; a rehash-on-login migration should retire it.
func (s *AuthService) passwordMatches(plain, stored string) bool {
	if stored == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(plain), []byte(stored)) == 1 {
		return true
	}
	return s.hasher.Verify(plain, stored)
}

// Register creates a user with the requested roles (default SUBSCRIBER),
// then re-fetches the aggregate to pick up the server-assigned role rows
// before issuing the token.
func (s *AuthService) Register(ctx context.Context, name, email, password string, roles []string) (*AuthResult, error) {
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, domain.ErrDuplicateAccount
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCreationFailed, err)
	}

	if len(roles) == 0 {
		roles = []string{domain.RoleSubscriber}
	}

	id, err := s.users.Create(ctx, domain.UserDraft{
		Name:         name,
		Email:        email,
		PasswordHash: digest,
		Roles:        roles,
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateAccount) {
			return nil, domain.ErrDuplicateAccount
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrCreationFailed, err)
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: reload created user: %v", domain.ErrCreationFailed, err)
	}
	return s.issue(user)
}

// GitHubCallback exchanges the authorization code, resolves the external
// identity onto a local account and issues a token. A refusal from GitHub
// keeps the provider's description; anything else unexpected in the chain
// is reported as a flow failure rather than propagated.
func (s *AuthService) GitHubCallback(ctx context.Context, code string) (*AuthResult, error) {
	accessToken, err := s.github.ExchangeCode(ctx, code)
	if err != nil {
		var exchangeErr *domain.OAuthExchangeError
		if errors.As(err, &exchangeErr) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrOAuthFlow, err)
	}

	profile, err := s.github.FetchProfile(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrOAuthFlow, err)
	}

	email := profile.Email
	if email == "" {
		email, err = s.github.FetchPrimaryEmail(ctx, accessToken)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrOAuthFlow, err)
		}
	}

	name := profile.Name
	if name == "" {
		name = profile.Login
	}

	user, err := s.resolver.Resolve(ctx, domain.ExternalIdentity{
		Provider:    "github",
		ExternalID:  strconv.FormatInt(profile.ID, 10),
		Email:       email,
		DisplayName: name,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrOAuthFlow, err)
	}

	return s.issue(user)
}

// CurrentUser resolves the bearer token in an Authorization header to the
// full user aggregate.
func (s *AuthService) CurrentUser(ctx context.Context, authorization string) (*domain.User, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(authorization, prefix) {
		return nil, domain.ErrUnauthenticated
	}
	token := strings.TrimPrefix(authorization, prefix)

	if !s.tokens.Validate(token) {
		return nil, domain.ErrUnauthenticated
	}

	id, err := s.tokens.ExtractUserID(token)
	if err != nil {
		return nil, domain.ErrUnauthenticated
	}

	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

// ListUsers returns every user aggregate keyed by id.
func (s *AuthService) ListUsers(ctx context.Context) (map[uuid.UUID]*domain.User, error) {
	return s.users.FindAll(ctx)
}

// DeleteUser removes a user and reports whether a row existed.
func (s *AuthService) DeleteUser(ctx context.Context, id uuid.UUID) error {
	affected, err := s.users.Delete(ctx, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (s *AuthService) issue(user *domain.User) (*AuthResult, error) {
	token, err := s.tokens.Issue(user.ID, user.Email, user.Name, user.RoleNames())
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}
