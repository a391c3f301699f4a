package domain

import (
	"fmt"
	"time"
)

// TicketType enumerates the numeric ticket kinds.
type TicketType int

const (
	TicketType1 TicketType = 1
	TicketType2 TicketType = 2
	TicketType3 TicketType = 3
)

// Valid reports whether the type is one of the known kinds.
func (t TicketType) Valid() bool {
	return t >= TicketType1 && t <= TicketType3
}

// Label returns the display name for the type.
func (t TicketType) Label() string {
	return fmt.Sprintf("Type %d", int(t))
}

// DefaultTicketDescription is used when a ticket is created without one.
const DefaultTicketDescription = "Describe your task here."

// Ticket is a unit of work tracked within a department.
type Ticket struct {
	ID            string
	Title         string
	Type          TicketType
	Description   string
	UploadedFile  *string
	UploadedImage *string
	DepartmentID  string
	AssociateID   *string
	CategoryID    *string
	Category      *CategoryName
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time

	Associate *Associate
	FollowUps []FollowUp
}

// Clone returns a shallow copy of the persisted fields.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	c := *t
	c.FollowUps = nil
	return &c
}

// IsAssigned reports whether an associate is attached.
func (t *Ticket) IsAssigned() bool {
	return t.AssociateID != nil && *t.AssociateID != ""
}

// StorageKeys lists every stored file referenced by the ticket and its follow-ups.
func (t *Ticket) StorageKeys() []string {
	var keys []string
	if t.UploadedFile != nil && *t.UploadedFile != "" {
		keys = append(keys, *t.UploadedFile)
	}
	if t.UploadedImage != nil && *t.UploadedImage != "" {
		keys = append(keys, *t.UploadedImage)
	}
	for _, f := range t.FollowUps {
		if f.File != nil && *f.File != "" {
			keys = append(keys, *f.File)
		}
	}
	return keys
}

// FollowUp is a timestamped note or attachment appended to a ticket.
type FollowUp struct {
	ID        string
	TicketID  string
	Notes     *string
	File      *string
	CreatedAt time.Time
}

// Scope restricts ticket visibility to a department and, for associates,
// to the tickets assigned to them.
type Scope struct {
	DepartmentID string
	AssociateID  *string
}

// Allows reports whether the ticket falls inside the scope.
func (s Scope) Allows(t *Ticket) bool {
	if t == nil || s.DepartmentID == "" || t.DepartmentID != s.DepartmentID {
		return false
	}
	if s.AssociateID == nil {
		return true
	}
	return t.AssociateID != nil && *t.AssociateID == *s.AssociateID
}
