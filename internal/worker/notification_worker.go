package worker

import (
	"context"

	"go.uber.org/zap"

	"github.com/civicdesk/triage-service/internal/realtime"
	"github.com/civicdesk/triage-service/internal/service"
)

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}

// Reconciler recomputes cached aggregates from the store.
type Reconciler interface {
	Reconcile(ctx context.Context) error
}

// StartReconcileWorker re-syncs cached counts whenever the notifier reports a change. It
// returns the unsubscribe function.
func StartReconcileWorker(ctx context.Context, notifier *realtime.Notifier, reconciler Reconciler, logger *zap.Logger) func() {
	if notifier == nil || reconciler == nil {
		return func() {}
	}
	return notifier.Subscribe(func() {
		if ctx.Err() != nil {
			return
		}
		if err := reconciler.Reconcile(ctx); err != nil {
			logger.Warn("status count reconcile failed", zap.Error(err))
		}
	})
}
