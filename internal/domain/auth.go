package domain

import "time"

// Role differentiates organizer and associate principals.
type Role string

const (
	RoleOrganizer Role = "ORGANIZER"
	RoleAssociate Role = "ASSOCIATE"
	RoleNone      Role = "NONE"
)

// RoleOf resolves the effective role. The organizer flag wins when both are set.
func RoleOf(u *User) Role {
	switch {
	case u == nil:
		return RoleNone
	case u.IsOrganizer:
		return RoleOrganizer
	case u.IsAssociate:
		return RoleAssociate
	default:
		return RoleNone
	}
}

// Token represents issued session token metadata.
type Token struct {
	ID        string
	SubjectID string
	Role      Role
	ExpiresAt time.Time
	IssuedAt  time.Time
}
