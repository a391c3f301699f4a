package service

import (
	"context"
	"fmt"

	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/repository"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// CategoryOverview lists categories with in-scope ticket counts.
type CategoryOverview struct {
	Categories            []domain.CategoryCount
	UnassignedTicketCount int
}

// CategoryDetail is a category with the caller's tickets in it.
type CategoryDetail struct {
	Category *domain.Category
	Tickets  []domain.Ticket
}

// CategoryService exposes the lifecycle stages.
type CategoryService struct {
	store *repository.Store
}

// NewCategoryService constructs the service.
func NewCategoryService(store *repository.Store) *CategoryService {
	return &CategoryService{store: store}
}

// ListCategories counts the caller's tickets per category. Tickets without a
// category are reported separately.
func (s *CategoryService) ListCategories(ctx context.Context, p *auth.Principal) (*CategoryOverview, error) {
	scope, err := requireScope(p)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.Categories.ListWithCounts(ctx, scope)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	filter := repository.ScopeFilter(scope)
	filter.Uncategorized = true
	unassigned, err := s.store.Tickets.Count(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &CategoryOverview{Categories: counts, UnassignedTicketCount: unassigned}, nil
}

// GetCategory returns a category with the caller's tickets in it.
func (s *CategoryService) GetCategory(ctx context.Context, p *auth.Principal, id string) (*CategoryDetail, error) {
	scope, err := requireScope(p)
	if err != nil {
		return nil, err
	}
	category, err := s.store.Categories.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "category", id)
	}
	filter := repository.ScopeFilter(scope)
	filter.CategoryID = &category.ID
	tickets, err := s.store.Tickets.List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &CategoryDetail{Category: category, Tickets: tickets}, nil
}

// CreateCategory adds one of the known stages. Existing names are rejected
// and leave the table untouched.
func (s *CategoryService) CreateCategory(ctx context.Context, p *auth.Principal, raw string) (*domain.Category, error) {
	if _, err := requireOrganizer(p); err != nil {
		return nil, err
	}
	name, ok := domain.ParseCategoryName(raw)
	if !ok {
		return nil, fieldError("name", invalidChoice)
	}
	if _, err := s.store.Categories.GetByName(ctx, name); err == nil {
		return nil, duplicateCategory(name)
	} else if !apperrors.IsNotFound(err) {
		return nil, apperrors.MapError(err)
	}

	category := &domain.Category{Name: name}
	if err := s.store.Categories.Create(ctx, category); err != nil {
		if apperrors.IsUniqueViolation(err) {
			return nil, duplicateCategory(name)
		}
		return nil, apperrors.MapError(err)
	}
	return category, nil
}

func duplicateCategory(name domain.CategoryName) error {
	return apperrors.NewValidationError(fmt.Sprintf("The category %q already exists.", string(name)),
		map[string]any{"name": "Category with this Name already exists."})
}
