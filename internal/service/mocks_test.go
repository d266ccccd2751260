package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/ziminpro/ums/internal/domain"
)

type mockUserStore struct {
	findAllFn          func(ctx context.Context) (map[uuid.UUID]*domain.User, error)
	findByIDFn         func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	findByEmailFn      func(ctx context.Context, email string) (*domain.User, error)
	findByGitHubIDFn   func(ctx context.Context, githubID string) (*domain.User, error)
	findAllRolesFn     func(ctx context.Context) (map[string]domain.Role, error)
	createFn           func(ctx context.Context, draft domain.UserDraft) (uuid.UUID, error)
	createWithGitHubFn func(ctx context.Context, draft domain.UserDraft, githubID string) (uuid.UUID, error)
	deleteFn           func(ctx context.Context, id uuid.UUID) (int64, error)
}

func (m *mockUserStore) FindAll(ctx context.Context) (map[uuid.UUID]*domain.User, error) {
	if m.findAllFn != nil {
		return m.findAllFn(ctx)
	}
	return nil, nil
}

func (m *mockUserStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockUserStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockUserStore) FindByGitHubID(ctx context.Context, githubID string) (*domain.User, error) {
	if m.findByGitHubIDFn != nil {
		return m.findByGitHubIDFn(ctx, githubID)
	}
	return nil, domain.ErrUserNotFound
}

func (m *mockUserStore) FindAllRoles(ctx context.Context) (map[string]domain.Role, error) {
	if m.findAllRolesFn != nil {
		return m.findAllRolesFn(ctx)
	}
	return map[string]domain.Role{}, nil
}

func (m *mockUserStore) Create(ctx context.Context, draft domain.UserDraft) (uuid.UUID, error) {
	if m.createFn != nil {
		return m.createFn(ctx, draft)
	}
	return uuid.New(), nil
}

func (m *mockUserStore) CreateWithGitHub(ctx context.Context, draft domain.UserDraft, githubID string) (uuid.UUID, error) {
	if m.createWithGitHubFn != nil {
		return m.createWithGitHubFn(ctx, draft, githubID)
	}
	return uuid.New(), nil
}

func (m *mockUserStore) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return 0, nil
}

type mockGitHubProvider struct {
	authCodeURLFn       func(state string) string
	exchangeCodeFn      func(ctx context.Context, code string) (string, error)
	fetchProfileFn      func(ctx context.Context, accessToken string) (*GitHubProfile, error)
	fetchPrimaryEmailFn func(ctx context.Context, accessToken string) (string, error)
}

func (m *mockGitHubProvider) AuthCodeURL(state string) string {
	if m.authCodeURLFn != nil {
		return m.authCodeURLFn(state)
	}
	return ""
}

func (m *mockGitHubProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return "access-token", nil
}

func (m *mockGitHubProvider) FetchProfile(ctx context.Context, accessToken string) (*GitHubProfile, error) {
	if m.fetchProfileFn != nil {
		return m.fetchProfileFn(ctx, accessToken)
	}
	return &GitHubProfile{}, nil
}

func (m *mockGitHubProvider) FetchPrimaryEmail(ctx context.Context, accessToken string) (string, error) {
	if m.fetchPrimaryEmailFn != nil {
		return m.fetchPrimaryEmailFn(ctx, accessToken)
	}
	return "", nil
}

// plainHasher avoids bcrypt cost in tests: digests are "hashed:" + plain.
type plainHasher struct{}

func (plainHasher) Hash(plain string) (string, error) {
	return "hashed:" + plain, nil
}

func (plainHasher) Verify(plain, digest string) bool {
	return digest == "hashed:"+plain
}

// compile-time interface checks
var _ UserStore = (*mockUserStore)(nil)
var _ GitHubProvider = (*mockGitHubProvider)(nil)
var _ Hasher = plainHasher{}
