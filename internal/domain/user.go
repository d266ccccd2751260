package domain

import "github.com/google/uuid"

// Well-known role names. The catalog itself lives in storage; these are the
// names the service assigns or checks directly.
const (
	RoleSubscriber = "SUBSCRIBER"
	RoleAdmin      = "ADMIN"
)

// Role is a named authorization grant. Name is the stable business key;
// ID is assigned by storage.
type Role struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description,omitempty" db:"description"`
}

// LastSession records the most recent observed login/logout pair as
// seconds since epoch.
type LastSession struct {
	In  int64 `json:"in"`
	Out int64 `json:"out"`
}

// User is the canonical identity aggregate assembled from the users,
// user_roles and last_visit tables. PasswordHash is empty for accounts
// created through an external provider and never serializes.
type User struct {
	ID           uuid.UUID    `json:"id"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	Created      int64        `json:"created"`
	GitHubID     *string      `json:"github_id,omitempty"`
	Roles        []Role       `json:"roles"`
	LastSession  *LastSession `json:"last_session,omitempty"`
}

// RoleNames returns the user's role names in assignment order.
func (u *User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

// HasRole reports whether the user carries the named role.
func (u *User) HasRole(name string) bool {
	for _, r := range u.Roles {
		if r.Name == name {
			return true
		}
	}
	return false
}

// UserDraft carries the fields callers supply when creating a user.
// Role names not present in the catalog are dropped at assignment.
type UserDraft struct {
	Name         string
	Email        string
	PasswordHash string
	Roles        []string
}

// ExternalIdentity is a user's account as known to a third-party provider,
// produced once per OAuth callback and consumed during reconciliation.
type ExternalIdentity struct {
	Provider    string
	ExternalID  string
	Email       string
	DisplayName string
}
