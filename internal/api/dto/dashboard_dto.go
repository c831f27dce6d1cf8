package dto

import (
	"github.com/civicdesk/triage-service/internal/display"
	"github.com/civicdesk/triage-service/internal/domain"
	"github.com/civicdesk/triage-service/internal/service"
)

// CategoryShareResponse is a category slice with its chart colour.
type CategoryShareResponse struct {
	Name       string `json:"name"`
	Percentage int    `json:"percentage"`
	Color      string `json:"color"`
}

// StatusCountResponse is one bar of the status chart.
type StatusCountResponse struct {
	Status domain.ReportStatus `json:"status"`
	Label  string              `json:"label"`
	Color  string              `json:"color"`
	Count  int                 `json:"count"`
}

// OverviewResponse renders every dashboard panel.
type OverviewResponse struct {
	Stats          domain.DashboardStats      `json:"stats"`
	Categories     []CategoryShareResponse    `json:"categories"`
	StatusCounts   []StatusCountResponse      `json:"status_counts"`
	WeeklyResponse []domain.DailyResponseTime `json:"weekly_response"`
	MonthlyVolume  []domain.MonthlyVolume     `json:"monthly_volume"`
	Recent         []ReportResponse           `json:"recent"`
	Notices        []string                   `json:"notices"`
}

// NewOverviewResponse maps a loaded overview.
func NewOverviewResponse(o *service.Overview) OverviewResponse {
	categories := make([]CategoryShareResponse, 0, len(o.Categories))
	for _, share := range o.Categories {
		categories = append(categories, CategoryShareResponse{
			Name:       share.Name,
			Percentage: share.Percentage,
			Color:      display.CategoryColor(share.ColorIndex),
		})
	}
	return OverviewResponse{
		Stats:          o.Stats,
		Categories:     categories,
		StatusCounts:   NewStatusCountResponses(o.StatusCounts),
		WeeklyResponse: o.WeeklyResponse,
		MonthlyVolume:  o.MonthlyVolume,
		Recent:         NewReportResponses(o.Recent),
		Notices:        nonNil(o.Notices),
	}
}

// NewStatusCountResponses orders counts by lifecycle.
func NewStatusCountResponses(counts map[domain.ReportStatus]int) []StatusCountResponse {
	out := make([]StatusCountResponse, 0, len(domain.AllStatuses))
	for _, status := range domain.AllStatuses {
		out = append(out, StatusCountResponse{
			Status: status,
			Label:  display.StatusLabel(status),
			Color:  display.StatusColor(status),
			Count:  counts[status],
		})
	}
	return out
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
