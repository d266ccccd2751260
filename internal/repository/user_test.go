package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ziminpro/ums/internal/domain"
)

var userColumns = []string{
	"user_id", "user_name", "email", "password", "created", "github_id",
	"role_id", "role_name", "role_description", "visit_in", "visit_out",
}

func newMockStore(t *testing.T) (*UserStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewUserStore(sqlx.NewDb(db, "sqlmock")), mock
}

func TestUserStore_FindByEmail_BuildsAggregate(t *testing.T) {
	store, mock := newMockStore(t)
	userID := uuid.New()
	roleID := uuid.New()

	rows := sqlmock.NewRows(userColumns).
		AddRow(userID.String(), "Ann", "ann@x.com", "digest", int64(1700000000), nil,
			roleID.String(), "SUBSCRIBER", "default role", nil, nil).
		AddRow(userID.String(), "Ann", "ann@x.com", "digest", int64(1700000000), nil,
			roleID.String(), "ADMIN", "", nil, nil)

	mock.ExpectQuery("SELECT u.id AS user_id").
		WithArgs("ann@x.com").
		WillReturnRows(rows)

	user, err := store.FindByEmail(context.Background(), "ann@x.com")
	require.NoError(t, err)
	assert.Equal(t, userID, user.ID)
	assert.Equal(t, "Ann", user.Name)
	require.Len(t, user.Roles, 2)
	assert.Equal(t, "SUBSCRIBER", user.Roles[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_FindByEmail_NoRows(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT u.id AS user_id").
		WithArgs("ghost@x.com").
		WillReturnRows(sqlmock.NewRows(userColumns))

	_, err := store.FindByEmail(context.Background(), "ghost@x.com")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

// Read paths collapse query failures into "not found"; callers cannot
// distinguish the two.
func TestUserStore_FindByEmail_QueryErrorCollapsesToNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT u.id AS user_id").
		WithArgs("ann@x.com").
		WillReturnError(errors.New("connection reset"))

	_, err := store.FindByEmail(context.Background(), "ann@x.com")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserStore_Create_AssignsRequestedRoles(t *testing.T) {
	store, mock := newMockStore(t)
	roleID := uuid.New()

	mock.ExpectQuery("SELECT id, name, COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description"}).
			AddRow(roleID.String(), "SUBSCRIBER", "default role"))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), "Ann", "ann@x.com", "digest", sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO user_roles").
		WithArgs(sqlmock.AnyArg(), roleID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	id, err := store.Create(context.Background(), domain.UserDraft{
		Name:         "Ann",
		Email:        "ann@x.com",
		PasswordHash: "digest",
		Roles:        []string{"SUBSCRIBER"},
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Unknown role names are skipped; when nothing valid was requested the
// catalog's SUBSCRIBER role is assigned instead.
func TestUserStore_Create_UnknownRolesFallBackToSubscriber(t *testing.T) {
	store, mock := newMockStore(t)
	subscriberID := uuid.New()

	mock.ExpectQuery("SELECT id, name, COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description"}).
			AddRow(subscriberID.String(), "SUBSCRIBER", "default role"))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO user_roles").
		WithArgs(sqlmock.AnyArg(), subscriberID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := store.Create(context.Background(), domain.UserDraft{
		Name:  "Ann",
		Email: "ann@x.com",
		Roles: []string{"WIZARD"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_Create_UniqueViolationIsDuplicateAccount(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, name, COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description"}))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	mock.ExpectRollback()

	_, err := store.Create(context.Background(), domain.UserDraft{
		Name:  "Ann",
		Email: "ann@x.com",
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateAccount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_CreateWithGitHub_RecordsExternalID(t *testing.T) {
	store, mock := newMockStore(t)
	roleID := uuid.New()

	mock.ExpectQuery("SELECT id, name, COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description"}).
			AddRow(roleID.String(), "SUBSCRIBER", "default role"))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO users").
		WithArgs(sqlmock.AnyArg(), "Octo Cat", "octo@x.com", "", sqlmock.AnyArg(), "4242").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO user_roles").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	_, err := store.CreateWithGitHub(context.Background(), domain.UserDraft{
		Name:  "Octo Cat",
		Email: "octo@x.com",
		Roles: []string{"SUBSCRIBER"},
	}, "4242")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserStore_Delete_ReturnsAffectedRows(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec("DELETE FROM users").
		WithArgs(id.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := store.Delete(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
}

func TestUserStore_FindAllRoles_KeyedByName(t *testing.T) {
	store, mock := newMockStore(t)
	roleID := uuid.New()

	mock.ExpectQuery("SELECT id, name, COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "description"}).
			AddRow(roleID.String(), "SUBSCRIBER", "default role").
			AddRow(uuid.New().String(), "ADMIN", ""))

	catalog, err := store.FindAllRoles(context.Background())
	require.NoError(t, err)
	require.Len(t, catalog, 2)
	assert.Equal(t, roleID, catalog["SUBSCRIBER"].ID)
}
