package domain

import "time"

// Role enumerates the closed set of account roles. Anything outside this
// set is rejected at the boundary rather than stored as a free-form string.
type Role string

const (
	RoleUser      Role = "user"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleModerator, RoleAdmin:
		return true
	}
	return false
}

// Elevated reports whether the role grants read access across all tickets.
func (r Role) Elevated() bool {
	return r.Valid() && r != RoleUser
}

// User is the domain model for accounts. PasswordHash never appears in any
// externally observable representation.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Skills       []string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
