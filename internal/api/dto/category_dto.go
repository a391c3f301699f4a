package dto

import (
	"time"

	"github.com/spec-kit/crm-service/internal/domain"
)

// CategoryCreateRequest payload.
type CategoryCreateRequest struct {
	Name string `json:"name" form:"name" validate:"required"`
}

// CategoryResponse describes a category, with its ticket count on list views.
type CategoryResponse struct {
	ID          string              `json:"id"`
	Name        domain.CategoryName `json:"name"`
	Label       string              `json:"label"`
	TicketCount *int                `json:"ticket_count,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// NewCategoryResponse maps a category.
func NewCategoryResponse(c *domain.Category) CategoryResponse {
	return CategoryResponse{ID: c.ID, Name: c.Name, Label: c.Name.Label(), CreatedAt: c.CreatedAt}
}

// CategoryListResponse is the category index.
type CategoryListResponse struct {
	Categories            []CategoryResponse `json:"categories"`
	UnassignedTicketCount int                `json:"unassigned_ticket_count"`
}

// NewCategoryListResponse maps counted categories.
func NewCategoryListResponse(counts []domain.CategoryCount, unassigned int) CategoryListResponse {
	out := make([]CategoryResponse, 0, len(counts))
	for i := range counts {
		resp := NewCategoryResponse(&counts[i].Category)
		n := counts[i].Count
		resp.TicketCount = &n
		out = append(out, resp)
	}
	return CategoryListResponse{Categories: out, UnassignedTicketCount: unassigned}
}

// CategoryDetailResponse is a category with the caller's tickets in it.
type CategoryDetailResponse struct {
	CategoryResponse
	Tickets []TicketResponse `json:"tickets"`
}
