package worker

import (
	"context"

	"github.com/spec-kit/ticket-desk/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// StartScheduler runs the sweep and flush loops until the context ends.
func StartScheduler(ctx context.Context, scheduler *service.Scheduler) {
	if scheduler == nil {
		return
	}
	go scheduler.Run(ctx)
}
