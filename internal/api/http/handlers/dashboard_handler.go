package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/civicdesk/triage-service/internal/api/dto"
	"github.com/civicdesk/triage-service/internal/domain"
	"github.com/civicdesk/triage-service/internal/filter"
	"github.com/civicdesk/triage-service/internal/service"
)

// DashboardReader loads the aggregate panels.
type DashboardReader interface {
	Overview(ctx context.Context, session *domain.Session, criteria filter.Criteria) *service.Overview
	MapMarkers(ctx context.Context, session *domain.Session, criteria filter.Criteria) service.MapView
	StatusCounts(ctx context.Context) (map[domain.ReportStatus]int, []string)
}

// DashboardHandler serves the dashboard panels.
type DashboardHandler struct {
	service DashboardReader
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler(dashboard DashboardReader) *DashboardHandler {
	return &DashboardHandler{service: dashboard}
}

// Overview GET /dashboard/overview.
func (h *DashboardHandler) Overview(c *fiber.Ctx) error {
	session, err := requireSession(c)
	if err != nil {
		return err
	}
	_, criteria, err := parseReportQuery(c)
	if err != nil {
		return err
	}
	overview := h.service.Overview(c.UserContext(), session, criteria)
	return c.JSON(fiber.Map{"data": dto.NewOverviewResponse(overview)})
}

// StatusCounts GET /dashboard/status-counts.
func (h *DashboardHandler) StatusCounts(c *fiber.Ctx) error {
	counts, notices := h.service.StatusCounts(c.UserContext())
	return c.JSON(fiber.Map{
		"data":    dto.NewStatusCountResponses(counts),
		"notices": noticesOrEmpty(notices),
	})
}

// Map GET /dashboard/map.
func (h *DashboardHandler) Map(c *fiber.Ctx) error {
	session, err := requireSession(c)
	if err != nil {
		return err
	}
	_, criteria, err := parseReportQuery(c)
	if err != nil {
		return err
	}
	view := h.service.MapMarkers(c.UserContext(), session, criteria)
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"markers": view.Markers,
			"center":  view.Center,
		},
		"notices": noticesOrEmpty(view.Notices),
	})
}
