package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-service/internal/api/dto"
	"github.com/spec-kit/crm-service/internal/service"
	"github.com/spec-kit/crm-service/internal/storage"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

type followUpForm struct {
	Notes     *string `json:"notes" form:"notes"`
	ClearFile bool    `json:"file_clear" form:"file-clear"`
}

// FollowUpsHandler manages ticket follow-ups.
type FollowUpsHandler struct {
	followUps *service.FollowUpService
	files     storage.Storage
}

// NewFollowUpsHandler constructs handler.
func NewFollowUpsHandler(followUps *service.FollowUpService, files storage.Storage) *FollowUpsHandler {
	return &FollowUpsHandler{followUps: followUps, files: files}
}

// Create handles POST /tickets/:id/followups.
func (h *FollowUpsHandler) Create(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	var opened openedFiles
	defer opened.Close()
	input, err := followUpInput(c, &opened)
	if err != nil {
		return err
	}
	followUp, err := h.followUps.CreateFollowUp(c.UserContext(), principal, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewFollowUpResponse(followUp, h.url())})
}

// Update handles PUT /tickets/followups/:id.
func (h *FollowUpsHandler) Update(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	var opened openedFiles
	defer opened.Close()
	input, err := followUpInput(c, &opened)
	if err != nil {
		return err
	}
	followUp, err := h.followUps.UpdateFollowUp(c.UserContext(), principal, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewFollowUpResponse(followUp, h.url())})
}

// Delete handles DELETE /tickets/followups/:id.
func (h *FollowUpsHandler) Delete(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	ticketID, err := h.followUps.DeleteFollowUp(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"ticket_id": ticketID}, "message": "Follow-up was deleted successfully."})
}

func (h *FollowUpsHandler) url() dto.URLFunc {
	if h.files == nil {
		return nil
	}
	return h.files.URL
}

func followUpInput(c *fiber.Ctx, opened *openedFiles) (service.FollowUpInput, error) {
	var form followUpForm
	if err := c.BodyParser(&form); err != nil {
		return service.FollowUpInput{}, apperrors.NewValidationError("invalid payload", nil)
	}
	file, err := formFile(c, "file", opened)
	if err != nil {
		return service.FollowUpInput{}, err
	}
	return service.FollowUpInput{Notes: form.Notes, File: file, ClearFile: form.ClearFile}, nil
}
