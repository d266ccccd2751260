package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/ziminpro/ums/internal/domain"
)

const userSelect = `
	SELECT u.id AS user_id, u.name AS user_name, u.email, u.password, u.created, u.github_id,
	       r.id AS role_id, r.name AS role_name, r.description AS role_description,
	       lv."in" AS visit_in, lv."out" AS visit_out
	FROM users u
	LEFT JOIN user_roles ur ON ur.user_id = u.id
	LEFT JOIN roles r ON r.id = ur.role_id
	LEFT JOIN last_visit lv ON lv.user_id = u.id`

// UserStore handles user and role data access. Read paths collapse query
// failures into domain.ErrUserNotFound after logging: callers cannot tell
// "absent" from "query failed" on reads. Write paths stay distinguishable
// so the gateway can pick the right user-facing outcome.
type UserStore struct {
	db *sqlx.DB
}

// NewUserStore creates a new UserStore.
func NewUserStore(db *sqlx.DB) *UserStore {
	return &UserStore{db: db}
}

// FindAll returns every user aggregate keyed by id.
func (s *UserStore) FindAll(ctx context.Context) (map[uuid.UUID]*domain.User, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, userSelect); err != nil {
		return nil, fmt.Errorf("select all users: %w", err)
	}
	return foldUsers(rows), nil
}

// FindByID retrieves a user aggregate by id.
func (s *UserStore) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.findOne(ctx, userSelect+` WHERE u.id = $1`, "id", id)
}

// FindByEmail retrieves a user aggregate by email.
func (s *UserStore) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.findOne(ctx, userSelect+` WHERE u.email = $1`, "email", email)
}

// FindByGitHubID retrieves a user aggregate by the linked GitHub account id.
func (s *UserStore) FindByGitHubID(ctx context.Context, githubID string) (*domain.User, error) {
	return s.findOne(ctx, userSelect+` WHERE u.github_id = $1`, "github_id", githubID)
}

func (s *UserStore) findOne(ctx context.Context, query, field string, arg any) (*domain.User, error) {
	var rows []userRow
	if err := s.db.SelectContext(ctx, &rows, query, arg); err != nil {
		slog.Error("user lookup failed", "field", field, "error", err)
		return nil, domain.ErrUserNotFound
	}
	if len(rows) == 0 {
		return nil, domain.ErrUserNotFound
	}
	return foldUsers(rows)[rows[0].UserID], nil
}

// FindAllRoles returns the current role catalog keyed by role name.
func (s *UserStore) FindAllRoles(ctx context.Context) (map[string]domain.Role, error) {
	var roles []domain.Role
	err := s.db.SelectContext(ctx, &roles,
		`SELECT id, name, COALESCE(description, '') AS description FROM roles`)
	if err != nil {
		return nil, fmt.Errorf("select roles: %w", err)
	}
	catalog := make(map[string]domain.Role, len(roles))
	for _, r := range roles {
		catalog[r.Name] = r
	}
	return catalog, nil
}

// Create inserts a user with a local password and assigns the requested
// roles. Returns the assigned id.
func (s *UserStore) Create(ctx context.Context, draft domain.UserDraft) (uuid.UUID, error) {
	return s.create(ctx, draft, nil)
}

// CreateWithGitHub inserts a user linked to a GitHub account id, with the
// password left blank.
func (s *UserStore) CreateWithGitHub(ctx context.Context, draft domain.UserDraft, githubID string) (uuid.UUID, error) {
	return s.create(ctx, draft, &githubID)
}

// create runs the user insert and role assignments in one transaction so
// partial writes cannot land. The role catalog is fetched fresh on every
// call rather than cached; creation is not a hot path and administrative
// role changes must be visible immediately.
func (s *UserStore) create(ctx context.Context, draft domain.UserDraft, githubID *string) (uuid.UUID, error) {
	catalog, err := s.FindAllRoles(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("load role catalog: %w", err)
	}

	id := uuid.New()
	created := time.Now().Unix()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password, created, github_id)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, draft.Name, draft.Email, draft.PasswordHash, created, githubID)
	if err != nil {
		if isUniqueViolation(err) {
			return uuid.Nil, domain.ErrDuplicateAccount
		}
		return uuid.Nil, fmt.Errorf("insert user: %w", err)
	}

	assigned := 0
	for _, name := range draft.Roles {
		role, ok := catalog[name]
		if !ok {
			// unknown role names are dropped, never invented
			continue
		}
		if err := assignRole(ctx, tx, id, role.ID); err != nil {
			return uuid.Nil, err
		}
		assigned++
	}
	if assigned == 0 {
		if role, ok := catalog[domain.RoleSubscriber]; ok {
			if err := assignRole(ctx, tx, id, role.ID); err != nil {
				return uuid.Nil, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, fmt.Errorf("commit user create: %w", err)
	}
	return id, nil
}

func assignRole(ctx context.Context, tx *sqlx.Tx, userID, roleID uuid.UUID) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO user_roles (user_id, role_id) VALUES ($1, $2)`,
		userID, roleID)
	if err != nil {
		return fmt.Errorf("assign role %s: %w", roleID, err)
	}
	return nil
}

// Delete removes a user row and returns the number of rows affected.
// Role assignments go with it via the FK cascade.
func (s *UserStore) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return 0, fmt.Errorf("delete user %s: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete user %s: %w", id, err)
	}
	return affected, nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (the losing side of a concurrent create).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
