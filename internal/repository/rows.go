package repository

import (
	"database/sql"

	"github.com/google/uuid"

	"github.com/ziminpro/ums/internal/domain"
)

// userRow is one flattened row of the users/user_roles/roles/last_visit join.
// Role and visit columns are nullable because both joins are LEFT joins.
type userRow struct {
	UserID   uuid.UUID      `db:"user_id"`
	Name     string         `db:"user_name"`
	Email    string         `db:"email"`
	Password sql.NullString `db:"password"`
	Created  int64          `db:"created"`
	GitHubID sql.NullString `db:"github_id"`
	RoleID   uuid.NullUUID  `db:"role_id"`
	RoleName sql.NullString `db:"role_name"`
	RoleDesc sql.NullString `db:"role_description"`
	VisitIn  sql.NullInt64  `db:"visit_in"`
	VisitOut sql.NullInt64  `db:"visit_out"`
}

// foldUsers collapses flattened join rows into one aggregate per user id.
// The first row carrying a given id seeds the scalar fields; every row
// contributes its role, and rows with a null role column contribute nothing,
// so a user with zero role assignments still yields an aggregate. Role order
// follows row arrival order.
func foldUsers(rows []userRow) map[uuid.UUID]*domain.User {
	users := make(map[uuid.UUID]*domain.User, len(rows))
	for _, row := range rows {
		user, ok := users[row.UserID]
		if !ok {
			user = &domain.User{
				ID:           row.UserID,
				Name:         row.Name,
				Email:        row.Email,
				PasswordHash: row.Password.String,
				Created:      row.Created,
			}
			if row.GitHubID.Valid {
				githubID := row.GitHubID.String
				user.GitHubID = &githubID
			}
			if row.VisitIn.Valid || row.VisitOut.Valid {
				user.LastSession = &domain.LastSession{
					In:  row.VisitIn.Int64,
					Out: row.VisitOut.Int64,
				}
			}
			users[row.UserID] = user
		}
		if row.RoleID.Valid {
			user.Roles = append(user.Roles, domain.Role{
				ID:          row.RoleID.UUID,
				Name:        row.RoleName.String,
				Description: row.RoleDesc.String,
			})
		}
	}
	return users
}
