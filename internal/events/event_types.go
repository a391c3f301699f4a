package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/crm-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated          EventType = "ticket_created"
	EventTicketAssigned         EventType = "ticket_assigned"
	EventTicketCategoryChanged  EventType = "ticket_category_changed"
	EventFollowUpAdded          EventType = "followup_added"
	EventAssociateCreated       EventType = "associate_created"
	EventPasswordResetRequested EventType = "password_reset_requested"
)

// Actor identifies the user that caused the event.
type Actor struct {
	UserID string      `json:"user_id"`
	Role   domain.Role `json:"role"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	SubjectID string      `json:"subject_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// New stamps an event with a fresh id and the current time.
func New(eventType EventType, subjectID string, actor Actor, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		SubjectID: subjectID,
		Actor:     actor,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	DepartmentID string            `json:"department_id"`
	Title        string            `json:"title"`
	Type         domain.TicketType `json:"type"`
	AssociateID  *string           `json:"associate_id,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	Title          string  `json:"title"`
	AssociateID    string  `json:"associate_id"`
	AssociateEmail string  `json:"associate_email"`
	PreviousID     *string `json:"previous_associate_id,omitempty"`
}

// TicketCategoryChangedPayload payload.
type TicketCategoryChangedPayload struct {
	Title       string               `json:"title"`
	OldCategory *domain.CategoryName `json:"old_category,omitempty"`
	NewCategory *domain.CategoryName `json:"new_category,omitempty"`
}

// FollowUpAddedPayload payload.
type FollowUpAddedPayload struct {
	FollowUpID   string `json:"followup_id"`
	NotesPreview string `json:"notes_preview"`
	HasFile      bool   `json:"has_file"`
}

// AssociateCreatedPayload carries what the invitation needs.
type AssociateCreatedPayload struct {
	AssociateID  string `json:"associate_id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	DepartmentID string `json:"department_id"`
}

// PasswordResetRequestedPayload payload.
type PasswordResetRequestedPayload struct {
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
