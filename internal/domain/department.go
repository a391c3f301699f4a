package domain

import "time"

// UserDepartment groups the associates and tickets owned by one organizer.
type UserDepartment struct {
	ID        string
	UserID    string
	CreatedAt time.Time
}
