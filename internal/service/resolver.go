package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ziminpro/ums/internal/domain"
)

// UserStore defines the identity storage interface consumed by the auth
// services.
type UserStore interface {
	FindAll(ctx context.Context) (map[uuid.UUID]*domain.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByGitHubID(ctx context.Context, githubID string) (*domain.User, error)
	FindAllRoles(ctx context.Context) (map[string]domain.Role, error)
	Create(ctx context.Context, draft domain.UserDraft) (uuid.UUID, error)
	CreateWithGitHub(ctx context.Context, draft domain.UserDraft, githubID string) (uuid.UUID, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
}

// GitHubResolver reconciles an external GitHub identity with the local user
// table, guaranteeing at most one local account per external identity.
type GitHubResolver struct {
	users UserStore
}

// NewGitHubResolver creates a GitHubResolver.
func NewGitHubResolver(users UserStore) *GitHubResolver {
	return &GitHubResolver{users: users}
}

// Resolve returns the canonical user for the identity, looking up by GitHub
// id first, then by email, creating a new account only when both miss.
//
// Two concurrent callbacks for the same new identity can both miss the
// lookups and race on the create; the storage uniqueness constraints make
// the loser fail with a duplicate, and a single re-run of the lookups
// converges it onto the winner. No in-process lock would help here, since
// the race spans service instances.
func (r *GitHubResolver) Resolve(ctx context.Context, identity domain.ExternalIdentity) (*domain.User, error) {
	if user, err := r.lookup(ctx, identity); err == nil {
		return user, nil
	}

	id, err := r.users.CreateWithGitHub(ctx, domain.UserDraft{
		Name:  identity.DisplayName,
		Email: identity.Email,
		Roles: []string{domain.RoleSubscriber},
	}, identity.ExternalID)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateAccount) {
			return r.lookup(ctx, identity)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrCreationFailed, err)
	}

	user, err := r.users.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload created user %s: %w", id, err)
	}
	return user, nil
}

// lookup tries the direct external-id match, then links by email. An
// email match does not backfill the GitHub id onto the account, so later
// logins for it repeat the email-match path.
func (r *GitHubResolver) lookup(ctx context.Context, identity domain.ExternalIdentity) (*domain.User, error) {
	if user, err := r.users.FindByGitHubID(ctx, identity.ExternalID); err == nil {
		return user, nil
	}
	return r.users.FindByEmail(ctx, identity.Email)
}
