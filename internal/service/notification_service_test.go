package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/crm-service/internal/config"
	"github.com/spec-kit/crm-service/internal/domain"
	"github.com/spec-kit/crm-service/internal/events"
)

func newObservedNotifications(t *testing.T, cfg config.NotificationConfig) (events.Dispatcher, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher()
	NewNotificationService(dispatcher, zap.New(core), cfg).RegisterHandlers()
	return dispatcher, logs
}

func TestNotifications_AssociateInvitation(t *testing.T) {
	dispatcher, logs := newObservedNotifications(t, config.NotificationConfig{
		EmailFrom: "noreply@crm.local",
		SiteURL:   "https://crm.example.com/",
	})

	err := dispatcher.Publish(context.Background(), events.New(events.EventAssociateCreated, "assoc-1",
		events.Actor{UserID: "user-1", Role: domain.RoleOrganizer},
		events.AssociateCreatedPayload{AssociateID: "assoc-1", Email: "ann@example.com", Username: "ann"}))
	require.NoError(t, err)

	emails := logs.FilterMessage("sendEmailNotificationStub").All()
	require.Len(t, emails, 1)
	fields := emails[0].ContextMap()
	assert.Equal(t, "ann@example.com", fields["to"])
	assert.Equal(t, "You are invited to be an associate.", fields["subject"])
	assert.Contains(t, fields["body"], "https://crm.example.com/reset-password/")
}

func TestNotifications_PasswordResetLink(t *testing.T) {
	dispatcher, logs := newObservedNotifications(t, config.NotificationConfig{
		EmailFrom: "noreply@crm.local",
		SiteURL:   "http://localhost:8080",
	})

	err := dispatcher.Publish(context.Background(), events.New(events.EventPasswordResetRequested, "user-1",
		events.Actor{UserID: "user-1", Role: domain.RoleOrganizer},
		events.PasswordResetRequestedPayload{Email: "olga@example.com", Token: "tok-123", ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, err)

	emails := logs.FilterMessage("sendEmailNotificationStub").All()
	require.Len(t, emails, 1)
	assert.Contains(t, emails[0].ContextMap()["body"], "http://localhost:8080/password-reset-confirm/tok-123/")
}

func TestNotifications_WebhookOnlyWhenConfigured(t *testing.T) {
	event := events.New(events.EventTicketCreated, "ticket-1", events.Actor{UserID: "user-1", Role: domain.RoleOrganizer},
		events.TicketCreatedPayload{DepartmentID: "dept-1", Title: "t", Type: domain.TicketType1})

	dispatcher, logs := newObservedNotifications(t, config.NotificationConfig{})
	require.NoError(t, dispatcher.Publish(context.Background(), event))
	assert.Zero(t, logs.FilterMessage("sendWebhookNotificationStub").Len())
	assert.Equal(t, 1, logs.FilterMessage("TicketCreated").Len())

	dispatcher, logs = newObservedNotifications(t, config.NotificationConfig{WebhookURL: "https://hooks.example.com/crm"})
	require.NoError(t, dispatcher.Publish(context.Background(), event))
	assert.Equal(t, 1, logs.FilterMessage("sendWebhookNotificationStub").Len())
}

func TestNotifications_RejectsForeignPayload(t *testing.T) {
	dispatcher, _ := newObservedNotifications(t, config.NotificationConfig{EmailFrom: "noreply@crm.local"})
	err := dispatcher.Publish(context.Background(), events.New(events.EventAssociateCreated, "x", events.Actor{}, "not a payload"))
	assert.Error(t, err)
}
