package dto

import (
	"time"

	"github.com/spec-kit/crm-service/internal/domain"
)

// AssociateRequest is the associate create/update form.
type AssociateRequest struct {
	Email     string `json:"email" form:"email" validate:"required,email"`
	Username  string `json:"username" form:"username" validate:"required,max=150"`
	FirstName string `json:"first_name" form:"first_name" validate:"required,max=150"`
	LastName  string `json:"last_name" form:"last_name" validate:"required,max=150"`
}

// AssociateResponse describes an associate and its account.
type AssociateResponse struct {
	ID           string       `json:"id"`
	DepartmentID string       `json:"department_id"`
	User         UserResponse `json:"user"`
	CreatedAt    time.Time    `json:"created_at"`
}

// NewAssociateResponse maps an associate.
func NewAssociateResponse(a *domain.Associate) AssociateResponse {
	return AssociateResponse{
		ID:           a.ID,
		DepartmentID: a.DepartmentID,
		User:         NewUserResponse(a.User),
		CreatedAt:    a.CreatedAt,
	}
}

// AssociateSummary is the compact form embedded in tickets.
type AssociateSummary struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

func associateSummary(a *domain.Associate) *AssociateSummary {
	if a == nil {
		return nil
	}
	s := &AssociateSummary{ID: a.ID, Email: a.Email()}
	if a.User != nil {
		s.FullName = a.User.FullName()
	}
	return s
}
