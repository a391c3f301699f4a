package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/config"
	"github.com/spec-kit/crm-service/internal/events"
)

// NotificationService turns domain events into e-mail and webhook notifications.
// Delivery is stubbed: messages are logged.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketAssigned, n.handleTicketAssigned)
	n.dispatcher.Subscribe(events.EventTicketCategoryChanged, n.handleTicketCategoryChanged)
	n.dispatcher.Subscribe(events.EventFollowUpAdded, n.handleFollowUpAdded)
	n.dispatcher.Subscribe(events.EventAssociateCreated, n.handleAssociateCreated)
	n.dispatcher.Subscribe(events.EventPasswordResetRequested, n.handlePasswordResetRequested)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCreated", zap.String("ticket_id", event.SubjectID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketAssigned(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketAssigned", zap.String("ticket_id", event.SubjectID), zap.Any("payload", event.Payload))
	if payload, ok := event.Payload.(events.TicketAssignedPayload); ok && payload.AssociateEmail != "" {
		n.sendEmailNotificationStub(ctx, event, payload.AssociateEmail,
			"A ticket has been assigned to you.",
			fmt.Sprintf("Go to %s/tickets/%s/ to see %q.", n.siteURL(), event.SubjectID, payload.Title))
	}
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleTicketCategoryChanged(ctx context.Context, event events.Event) error {
	n.logger.Info("TicketCategoryChanged", zap.String("ticket_id", event.SubjectID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleFollowUpAdded(ctx context.Context, event events.Event) error {
	n.logger.Info("FollowUpAdded", zap.String("ticket_id", event.SubjectID), zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleAssociateCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AssociateCreatedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.logger.Info("AssociateCreated", zap.String("associate_id", payload.AssociateID))
	n.sendEmailNotificationStub(ctx, event, payload.Email,
		"You are invited to be an associate.",
		fmt.Sprintf("You were added as an associate on CRM. Set your password at %s/reset-password/ to sign in as %s.", n.siteURL(), payload.Username))
	return nil
}

func (n *NotificationService) handlePasswordResetRequested(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.PasswordResetRequestedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	n.sendEmailNotificationStub(ctx, event, payload.Email,
		"Password reset",
		fmt.Sprintf("Follow %s/password-reset-confirm/%s/ to choose a new password.", n.siteURL(), payload.Token))
	return nil
}

func (n *NotificationService) siteURL() string {
	return strings.TrimRight(n.cfg.SiteURL, "/")
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event, to, subject, body string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" || to == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("to", to),
		zap.String("subject", subject),
		zap.String("body", body),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("subject_id", event.SubjectID),
		zap.String("event_type", string(event.Type)))
}
