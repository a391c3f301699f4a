package handlers

import (
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-service/internal/api/dto"
	"github.com/spec-kit/crm-service/internal/service"
)

// AssociatesHandler manages the associates of an organizer's department.
type AssociatesHandler struct {
	associates *service.AssociateService
}

// NewAssociatesHandler constructs handler.
func NewAssociatesHandler(associates *service.AssociateService) *AssociatesHandler {
	return &AssociatesHandler{associates: associates}
}

// List handles GET /associates/.
func (h *AssociatesHandler) List(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	list, err := h.associates.ListAssociates(c.UserContext(), principal)
	if err != nil {
		return err
	}
	items := make([]dto.AssociateResponse, 0, len(list))
	for i := range list {
		items = append(items, dto.NewAssociateResponse(&list[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Create handles POST /associates/.
func (h *AssociatesHandler) Create(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.AssociateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	associate, err := h.associates.CreateAssociate(c.UserContext(), principal, associateInput(req))
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(withMessage(dto.NewAssociateResponse(associate),
		fmt.Sprintf("Associate %s was created successfully.", associate.Email())))
}

// Get handles GET /associates/:id.
func (h *AssociatesHandler) Get(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	associate, err := h.associates.GetAssociate(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAssociateResponse(associate)})
}

// Update handles PUT /associates/:id.
func (h *AssociatesHandler) Update(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.AssociateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	associate, err := h.associates.UpdateAssociate(c.UserContext(), principal, c.Params("id"), associateInput(req))
	if err != nil {
		return err
	}
	return c.JSON(withMessage(dto.NewAssociateResponse(associate), "Associate data was updated successfully."))
}

// Delete handles DELETE /associates/:id.
func (h *AssociatesHandler) Delete(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	if err := h.associates.DeleteAssociate(c.UserContext(), principal, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Associate was deleted successfully."})
}

func associateInput(req dto.AssociateRequest) service.AssociateInput {
	return service.AssociateInput{
		Email:     req.Email,
		Username:  req.Username,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
}
