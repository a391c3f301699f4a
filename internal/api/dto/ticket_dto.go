package dto

import (
	"encoding/json"
	"time"

	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/storage"
)

// TicketForm is the text part of the ticket create/update form. Files are
// read from the multipart body separately.
type TicketForm struct {
	Title              string      `json:"title" form:"title"`
	Type               json.Number `json:"type" form:"type"`
	Description        string      `json:"description" form:"description"`
	Associate          *string     `json:"associate" form:"associate"`
	Category           *string     `json:"category" form:"category"`
	ClearUploadedFile  bool        `json:"uploaded_file_clear" form:"uploaded_file-clear"`
	ClearUploadedImage bool        `json:"uploaded_image_clear" form:"uploaded_image-clear"`
}

// AssignAssociateRequest payload.
type AssignAssociateRequest struct {
	Associate string `json:"associate" form:"associate" validate:"required"`
}

// CategoryUpdateRequest payload.
type CategoryUpdateRequest struct {
	Category string `json:"category" form:"category" validate:"required"`
}

// FileRef points at a stored upload.
type FileRef struct {
	Key  string `json:"key"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// URLFunc resolves a storage key to a public URL.
type URLFunc func(key string) string

func fileRef(key *string, url URLFunc) *FileRef {
	if key == nil || *key == "" {
		return nil
	}
	ref := &FileRef{Key: *key, Name: storage.OriginalFilename(*key)}
	if url != nil {
		ref.URL = url(*key)
	}
	return ref
}

// TicketResponse is the list view of a ticket.
type TicketResponse struct {
	ID            string               `json:"id"`
	Title         string               `json:"title"`
	Type          domain.TicketType    `json:"type"`
	TypeLabel     string               `json:"type_label"`
	Description   string               `json:"description"`
	UploadedFile  *FileRef             `json:"uploaded_file"`
	UploadedImage *FileRef             `json:"uploaded_image"`
	DepartmentID  string               `json:"department_id"`
	AssociateID   *string              `json:"associate_id"`
	Associate     *AssociateSummary    `json:"associate,omitempty"`
	Category      *domain.CategoryName `json:"category"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
	CompletedAt   *time.Time           `json:"completed_at"`
}

// TicketDetailResponse adds the follow-ups.
type TicketDetailResponse struct {
	TicketResponse
	FollowUps []FollowUpResponse `json:"followups"`
}

// NewTicketResponse maps a ticket.
func NewTicketResponse(t *domain.Ticket, url URLFunc) TicketResponse {
	return TicketResponse{
		ID:            t.ID,
		Title:         t.Title,
		Type:          t.Type,
		TypeLabel:     t.Type.Label(),
		Description:   t.Description,
		UploadedFile:  fileRef(t.UploadedFile, url),
		UploadedImage: fileRef(t.UploadedImage, url),
		DepartmentID:  t.DepartmentID,
		AssociateID:   t.AssociateID,
		Associate:     associateSummary(t.Associate),
		Category:      t.Category,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
		CompletedAt:   t.CompletedAt,
	}
}

// NewTicketResponses maps a slice, never returning nil.
func NewTicketResponses(tickets []domain.Ticket, url URLFunc) []TicketResponse {
	out := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		out = append(out, NewTicketResponse(&tickets[i], url))
	}
	return out
}

// NewTicketDetailResponse maps a ticket with its follow-ups.
func NewTicketDetailResponse(t *domain.Ticket, url URLFunc) TicketDetailResponse {
	followUps := make([]FollowUpResponse, 0, len(t.FollowUps))
	for i := range t.FollowUps {
		followUps = append(followUps, NewFollowUpResponse(&t.FollowUps[i], url))
	}
	return TicketDetailResponse{TicketResponse: NewTicketResponse(t, url), FollowUps: followUps}
}

// FollowUpResponse describes a follow-up.
type FollowUpResponse struct {
	ID        string    `json:"id"`
	TicketID  string    `json:"ticket_id"`
	Notes     *string   `json:"notes"`
	File      *FileRef  `json:"file"`
	CreatedAt time.Time `json:"created_at"`
}

// NewFollowUpResponse maps a follow-up.
func NewFollowUpResponse(f *domain.FollowUp, url URLFunc) FollowUpResponse {
	return FollowUpResponse{
		ID:        f.ID,
		TicketID:  f.TicketID,
		Notes:     f.Notes,
		File:      fileRef(f.File, url),
		CreatedAt: f.CreatedAt,
	}
}

// ExportRow is one element of the ticket export.
type ExportRow struct {
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Type        domain.TicketType    `json:"type"`
	Category    *domain.CategoryName `json:"category"`
	Department  string               `json:"department"`
	Associate   *string              `json:"associate"`
}

// ExportResponse wraps the exported rows under "qs".
type ExportResponse struct {
	QS []ExportRow `json:"qs"`
}

// NewExportResponse maps tickets to export rows.
func NewExportResponse(tickets []domain.Ticket) ExportResponse {
	rows := make([]ExportRow, 0, len(tickets))
	for _, t := range tickets {
		rows = append(rows, ExportRow{
			Title:       t.Title,
			Description: t.Description,
			Type:        t.Type,
			Category:    t.Category,
			Department:  t.DepartmentID,
			Associate:   t.AssociateID,
		})
	}
	return ExportResponse{QS: rows}
}
