package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/civicdesk/triage-service/internal/events"
)

// NotificationService writes an activity log line for every triage event.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventReportStatusChanged, n.handleStatusChanged)
	n.dispatcher.Subscribe(events.EventReportAssigned, n.handleAssigned)
	n.dispatcher.Subscribe(events.EventReportCommentAdded, n.handleCommentAdded)
}

func (n *NotificationService) handleStatusChanged(_ context.Context, event events.Event) error {
	fields := n.baseFields(event)
	if payload, ok := event.Payload.(events.ReportStatusChangedPayload); ok {
		fields = append(fields,
			zap.String("old_status", string(payload.OldStatus)),
			zap.String("new_status", string(payload.NewStatus)))
	}
	n.logger.Info("ReportStatusChanged", fields...)
	return nil
}

func (n *NotificationService) handleAssigned(_ context.Context, event events.Event) error {
	fields := n.baseFields(event)
	if payload, ok := event.Payload.(events.ReportAssignedPayload); ok {
		fields = append(fields,
			zap.Stringp("old_assignee", payload.OldAssignee),
			zap.Stringp("new_assignee", payload.NewAssignee))
	}
	n.logger.Info("ReportAssigned", fields...)
	return nil
}

func (n *NotificationService) handleCommentAdded(_ context.Context, event events.Event) error {
	fields := n.baseFields(event)
	if payload, ok := event.Payload.(events.ReportCommentAddedPayload); ok {
		fields = append(fields,
			zap.String("comment_id", payload.CommentID),
			zap.String("preview", payload.BodyPreview))
	}
	n.logger.Info("ReportCommentAdded", fields...)
	return nil
}

func (n *NotificationService) baseFields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("report_id", event.ReportID),
		zap.String("actor_id", event.Actor.UserID),
		zap.Time("at", event.Timestamp),
	}
}
