package domain

import "time"

// Associate links an associate user to the department it works for.
type Associate struct {
	ID           string
	UserID       string
	DepartmentID string
	User         *User
	CreatedAt    time.Time
}

// Email returns the email of the linked user, if loaded.
func (a *Associate) Email() string {
	if a == nil || a.User == nil {
		return ""
	}
	return a.User.Email
}
