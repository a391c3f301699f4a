package service

import (
	"context"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/auth"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
	apperrors "github.com/spec-kit/crm-service/pkg/util/errorutil"
)

// FileUpload is a file received by the transport layer.
type FileUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

const invalidChoice = "Select a valid choice. That choice is not one of the available choices."

func requireScope(p *auth.Principal) (domain.Scope, error) {
	if p == nil || p.User == nil {
		return domain.Scope{}, apperrors.NewUnauthorized("authentication required")
	}
	scope, ok := p.Scope()
	if !ok {
		return domain.Scope{}, apperrors.NewForbidden("account is not linked to a department")
	}
	return scope, nil
}

func requireOrganizer(p *auth.Principal) (domain.Scope, error) {
	if p == nil || p.User == nil {
		return domain.Scope{}, apperrors.NewUnauthorized("authentication required")
	}
	if !p.IsOrganizer() {
		return domain.Scope{}, apperrors.NewForbidden("organizer role required")
	}
	return domain.Scope{DepartmentID: p.Department.ID}, nil
}

func actorOf(p *auth.Principal) events.Actor {
	if p == nil || p.User == nil {
		return events.Actor{Role: domain.RoleNone}
	}
	return events.Actor{UserID: p.User.ID, Role: p.Role()}
}

func fieldError(field, message string) error {
	return apperrors.NewValidationError("invalid input", map[string]any{field: message})
}

func notFound(err error, resource, id string) error {
	if apperrors.IsNotFound(err) {
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	}
	return apperrors.MapError(err)
}

func publish(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, event events.Event) {
	if dispatcher == nil {
		return
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.String("subject_id", event.SubjectID), zap.Error(err))
	}
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func preview(s *string, limit int) string {
	if s == nil {
		return ""
	}
	runes := []rune(*s)
	if len(runes) <= limit {
		return *s
	}
	return string(runes[:limit]) + "..."
}

var errNoStorage = errors.New("file storage not configured")
