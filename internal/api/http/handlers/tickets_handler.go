package handlers

import (
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/api/dto"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/service"
	"github.com/spec-kit/crm-service/internal/storage"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints.
type TicketsHandler struct {
	tickets *service.TicketService
	files   storage.Storage
	logger  *zap.Logger
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(tickets *service.TicketService, files storage.Storage, logger *zap.Logger) *TicketsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketsHandler{tickets: tickets, files: files, logger: logger}
}

// List handles GET /tickets/.
func (h *TicketsHandler) List(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	list, err := h.tickets.ListTickets(c.UserContext(), principal)
	if err != nil {
		return err
	}
	data := fiber.Map{"tickets": dto.NewTicketResponses(list.Tickets, h.url())}
	if principal.IsOrganizer() {
		data["unassigned_tickets"] = dto.NewTicketResponses(list.Unassigned, h.url())
	}
	return c.JSON(fiber.Map{"data": data})
}

// Create handles POST /tickets/.
func (h *TicketsHandler) Create(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	var opened openedFiles
	defer opened.Close()
	input, err := ticketInput(c, &opened)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.CreateTicket(c.UserContext(), principal, input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(withMessage(dto.NewTicketResponse(ticket, h.url()),
		"You have successfully created a ticket."))
}

// Get handles GET /tickets/:id.
func (h *TicketsHandler) Get(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketDetailResponse(ticket, h.url())})
}

// Update handles PUT /tickets/:id.
func (h *TicketsHandler) Update(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	var opened openedFiles
	defer opened.Close()
	input, err := ticketInput(c, &opened)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.UpdateTicket(c.UserContext(), principal, c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(withMessage(dto.NewTicketResponse(ticket, h.url()), "You have successfully updated this ticket"))
}

// Delete handles DELETE /tickets/:id.
func (h *TicketsHandler) Delete(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	if err := h.tickets.DeleteTicket(c.UserContext(), principal, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Ticket was deleted successfully."})
}

// AssignAssociate handles POST /tickets/:id/assign-associate.
func (h *TicketsHandler) AssignAssociate(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.AssignAssociateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.AssignAssociate(c.UserContext(), principal, c.Params("id"), req.Associate)
	if err != nil {
		return err
	}
	return c.JSON(withMessage(dto.NewTicketResponse(ticket, h.url()), "You have successfully updated this ticket"))
}

// UpdateCategory handles POST /tickets/:id/category.
func (h *TicketsHandler) UpdateCategory(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CategoryUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.tickets.UpdateCategory(c.UserContext(), principal, c.Params("id"), req.Category)
	if err != nil {
		return err
	}
	return c.JSON(withMessage(dto.NewTicketResponse(ticket, h.url()), "You have successfully updated this ticket"))
}

// Export handles GET /tickets/json.
func (h *TicketsHandler) Export(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	tickets, err := h.tickets.ExportTickets(c.UserContext(), principal)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewExportResponse(tickets))
}

// Media handles GET /media/*. Files are served only when their ticket is
// visible to the caller.
func (h *TicketsHandler) Media(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	key := c.Params("*")
	ticketID, ok := ticketIDFromKey(key)
	if !ok || h.files == nil {
		return apperrors.NewNotFound("file", nil)
	}
	ticket, err := h.tickets.GetTicket(c.UserContext(), principal, ticketID)
	if err != nil {
		return err
	}
	if !references(ticket, key) {
		return apperrors.NewNotFound("file", nil)
	}
	body, contentType, err := h.files.Open(c.UserContext(), key)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperrors.NewNotFound("file", nil)
		}
		return apperrors.NewInternalError(err)
	}
	if contentType != "" {
		c.Set(fiber.HeaderContentType, contentType)
	}
	return c.SendStream(body)
}

func (h *TicketsHandler) url() dto.URLFunc {
	if h.files == nil {
		return nil
	}
	return h.files.URL
}

// ticketInput reads the ticket form and its files.
func ticketInput(c *fiber.Ctx, opened *openedFiles) (service.TicketInput, error) {
	var form dto.TicketForm
	if err := c.BodyParser(&form); err != nil {
		return service.TicketInput{}, apperrors.NewValidationError("invalid payload", nil)
	}
	ticketType, err := strconv.Atoi(strings.TrimSpace(form.Type.String()))
	if err != nil {
		ticketType = 0
	}
	input := service.TicketInput{
		Title:              form.Title,
		Type:               domain.TicketType(ticketType),
		Description:        form.Description,
		AssociateID:        form.Associate,
		Category:           form.Category,
		ClearUploadedFile:  form.ClearUploadedFile,
		ClearUploadedImage: form.ClearUploadedImage,
	}
	if input.UploadedFile, err = formFile(c, "uploaded_file", opened); err != nil {
		return input, err
	}
	if input.UploadedImage, err = formFile(c, "uploaded_image", opened); err != nil {
		return input, err
	}
	return input, nil
}

// ticketIDFromKey extracts the ticket id from ticket_files/ticket_{id}/...
func ticketIDFromKey(key string) (string, bool) {
	parts := strings.Split(key, "/")
	if len(parts) < 3 || parts[0] != storage.FolderTickets || !strings.HasPrefix(parts[1], "ticket_") {
		return "", false
	}
	id := strings.TrimPrefix(parts[1], "ticket_")
	return id, id != ""
}

func references(ticket *domain.Ticket, key string) bool {
	for _, k := range ticket.StorageKeys() {
		if k == key {
			return true
		}
	}
	return false
}
