package handlers

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/civicdesk/triage-service/internal/api/dto"
	"github.com/civicdesk/triage-service/internal/auth"
	"github.com/civicdesk/triage-service/internal/domain"
	"github.com/civicdesk/triage-service/internal/filter"
	"github.com/civicdesk/triage-service/internal/service"
	apperrors "github.com/civicdesk/triage-service/pkg/util/errorutil"
)

// ReportReader loads reports for display.
type ReportReader interface {
	ListReports(ctx context.Context, session *domain.Session, criteria filter.Criteria, limit int) service.ReportList
	RecentReports(ctx context.Context, limit int) service.ReportList
	GetReport(ctx context.Context, id string) (*domain.Report, error)
}

// TriageActions applies staff changes to reports.
type TriageActions interface {
	ApplyStatusChange(ctx context.Context, session *domain.Session, reportID, newStatus string) (*domain.Report, error)
	AssignStaff(ctx context.Context, session *domain.Session, reportID, staff string) (*domain.Report, error)
	AppendComment(ctx context.Context, session *domain.Session, reportID, text string) (*domain.Report, error)
	History(ctx context.Context, reportID string) ([]domain.ReportHistory, error)
}

// ReportsHandler exposes report listing and triage endpoints.
type ReportsHandler struct {
	reader  ReportReader
	actions TriageActions
}

// NewReportsHandler constructs handler.
func NewReportsHandler(reader ReportReader, actions TriageActions) *ReportsHandler {
	return &ReportsHandler{reader: reader, actions: actions}
}

// List GET /reports.
func (h *ReportsHandler) List(c *fiber.Ctx) error {
	session, err := requireSession(c)
	if err != nil {
		return err
	}
	query, criteria, err := parseReportQuery(c)
	if err != nil {
		return err
	}
	list := h.reader.ListReports(c.UserContext(), session, criteria, query.Limit)
	return c.JSON(fiber.Map{
		"data":    dto.NewReportResponses(list.Reports),
		"notices": noticesOrEmpty(list.Notices),
	})
}

// Recent GET /reports/recent.
func (h *ReportsHandler) Recent(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 0)
	if limit < 0 || limit > 100 {
		return apperrors.NewValidationError("limit must be between 0 and 100", nil)
	}
	list := h.reader.RecentReports(c.UserContext(), limit)
	return c.JSON(fiber.Map{
		"data":    dto.NewReportResponses(list.Reports),
		"notices": noticesOrEmpty(list.Notices),
	})
}

// Get GET /reports/:id.
func (h *ReportsHandler) Get(c *fiber.Ctx) error {
	report, err := h.reader.GetReport(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewReportResponse(report)})
}

// UpdateStatus PATCH /reports/:id/status.
func (h *ReportsHandler) UpdateStatus(c *fiber.Ctx) error {
	session, err := requireSession(c)
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	if err := dto.Validate(req); err != nil {
		return err
	}
	report, err := h.actions.ApplyStatusChange(c.UserContext(), session, c.Params("id"), req.Status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewReportResponse(report)})
}

// Assign PATCH /reports/:id/assignee.
func (h *ReportsHandler) Assign(c *fiber.Ctx) error {
	session, err := requireSession(c)
	if err != nil {
		return err
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if err := dto.Validate(req); err != nil {
		return err
	}
	report, err := h.actions.AssignStaff(c.UserContext(), session, c.Params("id"), req.AssignedTo)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewReportResponse(report)})
}

// AddComment POST /reports/:id/comments.
func (h *ReportsHandler) AddComment(c *fiber.Ctx) error {
	session, err := requireSession(c)
	if err != nil {
		return err
	}
	var req dto.CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	req.Text = strings.TrimSpace(req.Text)
	if err := dto.Validate(req); err != nil {
		return err
	}
	report, err := h.actions.AppendComment(c.UserContext(), session, c.Params("id"), req.Text)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.NewReportResponse(report)})
}

// History GET /reports/:id/history.
func (h *ReportsHandler) History(c *fiber.Ctx) error {
	entries, err := h.actions.History(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewHistoryResponses(entries)})
}

func requireSession(c *fiber.Ctx) (*domain.Session, error) {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return nil, apperrors.NewUnauthorized("staff session required")
	}
	return session, nil
}

func parseReportQuery(c *fiber.Ctx) (dto.ReportListQuery, filter.Criteria, error) {
	var q dto.ReportListQuery
	if err := c.QueryParser(&q); err != nil {
		return q, filter.Criteria{}, apperrors.NewValidationError("invalid query", nil)
	}
	if err := dto.Validate(q); err != nil {
		return q, filter.Criteria{}, err
	}
	from, err := dto.ParseDate(q.DateFrom, false)
	if err != nil {
		return q, filter.Criteria{}, apperrors.NewValidationError("invalid date_from", map[string]any{"date_from": q.DateFrom})
	}
	to, err := dto.ParseDate(q.DateTo, true)
	if err != nil {
		return q, filter.Criteria{}, apperrors.NewValidationError("invalid date_to", map[string]any{"date_to": q.DateTo})
	}
	return q, filter.Criteria{
		Status:     q.Status,
		Priority:   q.Priority,
		Category:   q.Category,
		Search:     q.Search,
		Department: q.Department,
		DateFrom:   from,
		DateTo:     to,
	}, nil
}

func noticesOrEmpty(notices []string) []string {
	if notices == nil {
		return []string{}
	}
	return notices
}
