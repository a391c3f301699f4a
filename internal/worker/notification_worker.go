package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/crm-service/internal/service"
)

// StartNotificationWorker subscribes the notification service to the
// dispatcher so ticket, associate and password events produce notifications.
func StartNotificationWorker(notificationService *service.NotificationService, logger *zap.Logger) {
	if notificationService == nil {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	notificationService.RegisterHandlers()
	logger.Info("notification worker started")
}
