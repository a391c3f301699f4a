package domain

import (
	"strings"
	"time"
)

// User is an account that signs in to the CRM. Role is carried by the
// IsOrganizer and IsAssociate flags.
type User struct {
	ID           string
	Username     string
	Email        string
	FirstName    string
	LastName     string
	PasswordHash string
	IsOrganizer  bool
	IsAssociate  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
