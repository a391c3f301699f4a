package handlers

import (
	"mime/multipart"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/crm-service/internal/api/dto"
	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/service"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

func currentPrincipal(c *fiber.Ctx) (*auth.Principal, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.User == nil {
		return nil, apperrors.NewUnauthorized("authentication required")
	}
	return principal, nil
}

// parseBody decodes a JSON or form body and runs the struct validation.
func parseBody(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	return dto.Validate(req)
}

// withMessage adds the user-facing confirmation next to the data.
func withMessage(data any, message string) fiber.Map {
	return fiber.Map{"data": data, "message": message}
}

type openedFiles []multipart.File

func (o *openedFiles) Close() {
	for _, f := range *o {
		_ = f.Close()
	}
	*o = nil
}

// formFile returns the named upload of a multipart request, or nil when the
// request is not multipart or the field is absent.
func formFile(c *fiber.Ctx, field string, opened *openedFiles) (*service.FileUpload, error) {
	if !strings.HasPrefix(strings.ToLower(string(c.Request().Header.ContentType())), fiber.MIMEMultipartForm) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, apperrors.NewValidationError("invalid payload", nil)
	}
	headers := form.File[field]
	if len(headers) == 0 {
		return nil, nil
	}
	header := headers[0]
	file, err := header.Open()
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	*opened = append(*opened, file)
	return &service.FileUpload{
		Filename:    header.Filename,
		ContentType: header.Header.Get(fiber.HeaderContentType),
		Size:        header.Size,
		Body:        file,
	}, nil
}
