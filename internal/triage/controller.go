// Package triage applies staff changes to reports: status transitions, assignment and comments.
package triage

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civicdesk/triage-service/internal/domain"
	"github.com/civicdesk/triage-service/internal/events"
	"github.com/civicdesk/triage-service/internal/observability"
	"github.com/civicdesk/triage-service/internal/repository"
	apperrors "github.com/civicdesk/triage-service/pkg/util/errorutil"
)

const commentPreviewLength = 80

// Controller persists triage changes and then reflects them into cached counts and events.
type Controller struct {
	reports    repository.ReportRepository
	history    repository.ReportHistoryRepository
	cache      CountCache
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// Dependencies bundles collaborators for the controller.
type Dependencies struct {
	ReportRepo  repository.ReportRepository
	HistoryRepo repository.ReportHistoryRepository
	Cache       CountCache
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Clock       func() time.Time
}

// NewController constructs the controller.
func NewController(deps Dependencies) *Controller {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	cache := deps.Cache
	if cache == nil {
		cache = NewMemoryCountCache()
	}
	return &Controller{
		reports:    deps.ReportRepo,
		history:    deps.HistoryRepo,
		cache:      cache,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        clock,
	}
}

// ApplyStatusChange moves a report to newStatus. Entering resolved stamps resolved_at the
// first time only. Cached counts move only after the store accepted the write.
func (c *Controller) ApplyStatusChange(ctx context.Context, session *domain.Session, reportID, newStatus string) (*domain.Report, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	status, err := domain.ParseStatus(newStatus)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{
			"status":  newStatus,
			"allowed": domain.AllStatuses,
		})
	}

	current, err := c.load(ctx, reportID)
	if err != nil {
		return nil, err
	}

	updated, err := c.reports.UpdateStatus(ctx, reportID, status, c.now().UTC())
	if err != nil {
		return nil, c.writeFailure("update_status", reportID, err)
	}

	if err := c.cache.Shift(ctx, current.Status, updated.Status); err != nil {
		c.logger.Warn("status count cache shift failed",
			zap.String("report_id", reportID),
			zap.String("from", string(current.Status)),
			zap.String("to", string(updated.Status)),
			zap.Error(err))
	}
	c.metrics.RecordTransition(string(current.Status), string(updated.Status))

	c.recordHistory(ctx, session, reportID, domain.ChangeTypeStatus,
		map[string]any{"status": current.Status},
		map[string]any{"status": updated.Status})
	c.publish(ctx, events.NewEvent(events.EventReportStatusChanged, reportID, session, c.now(), events.ReportStatusChangedPayload{
		OldStatus: current.Status,
		NewStatus: updated.Status,
	}))
	return updated, nil
}

// AssignStaff sets the free-text assignee. A blank identifier unassigns the report.
func (c *Controller) AssignStaff(ctx context.Context, session *domain.Session, reportID, staff string) (*domain.Report, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	var assignee *string
	if trimmed := strings.TrimSpace(staff); trimmed != "" {
		assignee = &trimmed
	}

	current, err := c.load(ctx, reportID)
	if err != nil {
		return nil, err
	}

	updated, err := c.reports.UpdateAssignee(ctx, reportID, assignee)
	if err != nil {
		return nil, c.writeFailure("update_assignee", reportID, err)
	}

	c.recordHistory(ctx, session, reportID, domain.ChangeTypeAssignee,
		map[string]any{"assigned_to": current.AssignedTo},
		map[string]any{"assigned_to": updated.AssignedTo})
	c.publish(ctx, events.NewEvent(events.EventReportAssigned, reportID, session, c.now(), events.ReportAssignedPayload{
		OldAssignee: current.AssignedTo,
		NewAssignee: updated.AssignedTo,
	}))
	return updated, nil
}

// AppendComment adds a comment authored by the session user.
func (c *Controller) AppendComment(ctx context.Context, session *domain.Session, reportID, text string) (*domain.Report, error) {
	if err := requireSession(session); err != nil {
		return nil, err
	}
	body := strings.TrimSpace(text)
	if body == "" {
		return nil, apperrors.NewValidationError("comment text is required", nil)
	}

	comment := domain.Comment{
		ID:        uuid.NewString(),
		Text:      body,
		UserID:    session.UserID,
		CreatedAt: c.now().UTC(),
	}
	updated, err := c.reports.AppendComment(ctx, reportID, comment)
	if err != nil {
		return nil, c.writeFailure("append_comment", reportID, err)
	}

	c.recordHistory(ctx, session, reportID, domain.ChangeTypeComment, nil,
		map[string]any{"comment_id": comment.ID})
	c.publish(ctx, events.NewEvent(events.EventReportCommentAdded, reportID, session, c.now(), events.ReportCommentAddedPayload{
		CommentID:   comment.ID,
		AuthorID:    comment.UserID,
		BodyPreview: preview(body),
	}))
	return updated, nil
}

// History lists audit entries for a report, oldest first.
func (c *Controller) History(ctx context.Context, reportID string) ([]domain.ReportHistory, error) {
	if c.history == nil {
		return []domain.ReportHistory{}, nil
	}
	if _, err := c.load(ctx, reportID); err != nil {
		return nil, err
	}
	return c.history.ListByReport(ctx, reportID)
}

func (c *Controller) load(ctx context.Context, reportID string) (*domain.Report, error) {
	if strings.TrimSpace(reportID) == "" {
		return nil, apperrors.NewValidationError("report id is required", nil)
	}
	report, err := c.reports.GetByID(ctx, reportID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("report", map[string]any{"id": reportID})
		}
		if repository.IsDecodeError(err) {
			return nil, apperrors.NewConflict("report has an unrecognised status or priority", map[string]any{"id": reportID})
		}
		c.metrics.RecordStoreFailure("get_report")
		return nil, apperrors.NewUnavailable("could not load report", err)
	}
	return report, nil
}

// writeFailure maps a failed store write. A report deleted since it was loaded is NOT_FOUND.
func (c *Controller) writeFailure(operation, reportID string, err error) error {
	if apperrors.IsNotFound(err) {
		return apperrors.NewNotFound("report", map[string]any{"id": reportID})
	}
	c.metrics.RecordStoreFailure(operation)
	c.logger.Error("report write failed",
		zap.String("operation", operation),
		zap.String("report_id", reportID),
		zap.Error(err))
	return apperrors.NewUnavailable("could not save report change", err)
}

func (c *Controller) recordHistory(ctx context.Context, session *domain.Session, reportID string, changeType domain.ReportChangeType, oldValue, newValue map[string]any) {
	if c.history == nil {
		return
	}
	actor := session.UserID
	entry := &domain.ReportHistory{
		ReportID:    reportID,
		ChangedByID: &actor,
		ChangeType:  changeType,
		OldValue:    oldValue,
		NewValue:    newValue,
	}
	if err := c.history.Create(ctx, entry); err != nil {
		c.logger.Warn("report history write failed",
			zap.String("report_id", reportID),
			zap.String("change_type", string(changeType)),
			zap.Error(err))
	}
}

func (c *Controller) publish(ctx context.Context, event events.Event) {
	if c.dispatcher == nil {
		return
	}
	if err := c.dispatcher.Publish(ctx, event); err != nil {
		c.logger.Warn("event handlers failed",
			zap.String("event_type", string(event.Type)),
			zap.String("report_id", event.ReportID),
			zap.Error(err))
	}
}

func requireSession(session *domain.Session) error {
	if session == nil || strings.TrimSpace(session.UserID) == "" {
		return apperrors.NewUnauthorized("staff session required")
	}
	return nil
}

func preview(body string) string {
	runes := []rune(body)
	if len(runes) <= commentPreviewLength {
		return body
	}
	return string(runes[:commentPreviewLength]) + "…"
}
