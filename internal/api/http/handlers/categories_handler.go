package handlers

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-service/internal/api/dto"
	"github.com/spec-kit/crm-service/internal/service"
	"github.com/spec-kit/crm-service/internal/storage"
)

// CategoriesHandler exposes the lifecycle stages.
type CategoriesHandler struct {
	categories *service.CategoryService
	files      storage.Storage
}

// NewCategoriesHandler constructs handler.
func NewCategoriesHandler(categories *service.CategoryService, files storage.Storage) *CategoriesHandler {
	return &CategoriesHandler{categories: categories, files: files}
}

// List handles GET /tickets/categories.
func (h *CategoriesHandler) List(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	overview, err := h.categories.ListCategories(c.UserContext(), principal)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewCategoryListResponse(overview.Categories, overview.UnassignedTicketCount)})
}

// Get handles GET /tickets/categories/:id.
func (h *CategoriesHandler) Get(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	detail, err := h.categories.GetCategory(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	var url dto.URLFunc
	if h.files != nil {
		url = h.files.URL
	}
	return c.JSON(fiber.Map{"data": dto.CategoryDetailResponse{
		CategoryResponse: dto.NewCategoryResponse(detail.Category),
		Tickets:          dto.NewTicketResponses(detail.Tickets, url),
	}})
}

// Create handles POST /tickets/categories.
func (h *CategoriesHandler) Create(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CategoryCreateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	category, err := h.categories.CreateCategory(c.UserContext(), principal, req.Name)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(withMessage(dto.NewCategoryResponse(category),
		fmt.Sprintf("The category %q was created successfully.", string(category.Name))))
}
