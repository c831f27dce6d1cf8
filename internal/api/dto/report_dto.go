package dto

import (
	"time"

	"github.com/civicdesk/triage-service/internal/display"
	"github.com/civicdesk/triage-service/internal/domain"
	"github.com/civicdesk/triage-service/internal/triage"
)

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft submitted in_progress resolved closed"`
}

// AssignRequest payload. An empty value clears the assignee.
type AssignRequest struct {
	AssignedTo string `json:"assigned_to" validate:"max=200"`
}

// CommentRequest payload.
type CommentRequest struct {
	Text string `json:"text" validate:"required,max=4000"`
}

// ReportListQuery captures query filters for report endpoints.
type ReportListQuery struct {
	Status     string `query:"status" validate:"omitempty,max=32"`
	Priority   string `query:"priority" validate:"omitempty,max=32"`
	Category   string `query:"category" validate:"omitempty,max=100"`
	Search     string `query:"search" validate:"omitempty,max=200"`
	Department string `query:"department" validate:"omitempty,max=100"`
	DateFrom   string `query:"date_from"`
	DateTo     string `query:"date_to"`
	Limit      int    `query:"limit" validate:"gte=0,lte=500"`
}

// ReportResponse is a report enriched with its display labels.
type ReportResponse struct {
	ID            string                `json:"id"`
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Category      string                `json:"category"`
	Status        domain.ReportStatus   `json:"status"`
	StatusLabel   string                `json:"status_label"`
	StatusColor   string                `json:"status_color"`
	Priority      domain.ReportPriority `json:"priority"`
	PriorityLabel string                `json:"priority_label"`
	PriorityColor string                `json:"priority_color"`
	Location      string                `json:"location"`
	Latitude      *float64              `json:"latitude"`
	Longitude     *float64              `json:"longitude"`
	Reporter      string                `json:"reporter"`
	Department    *string               `json:"department"`
	AssignedTo    *string               `json:"assigned_to"`
	ImageURL      *string               `json:"image_url"`
	NextAction    *triage.Action        `json:"next_action"`
	Comments      []CommentResponse     `json:"comments"`
	CreatedAt     time.Time             `json:"created_at"`
	CreatedLabel  string                `json:"created_label"`
	UpdatedAt     *time.Time            `json:"updated_at"`
	ResolvedAt    *time.Time            `json:"resolved_at"`
}

// CommentResponse represents one comment on a report.
type CommentResponse struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// HistoryResponse is one audit entry.
type HistoryResponse struct {
	ID          string                  `json:"id"`
	ChangeType  domain.ReportChangeType `json:"change_type"`
	ChangedByID *string                 `json:"changed_by_id"`
	OldValue    map[string]any          `json:"old_value"`
	NewValue    map[string]any          `json:"new_value"`
	CreatedAt   time.Time               `json:"created_at"`
}

// NewReportResponse maps a report for rendering.
func NewReportResponse(r *domain.Report) ReportResponse {
	resp := ReportResponse{
		ID:            r.ID,
		Title:         r.Title,
		Description:   display.DescriptionText(r),
		Category:      r.Category,
		Status:        r.Status,
		StatusLabel:   display.StatusLabel(r.Status),
		StatusColor:   display.StatusColor(r.Status),
		Priority:      r.Priority,
		PriorityLabel: display.PriorityLabel(r.Priority),
		PriorityColor: display.PriorityColor(r.Priority),
		Location:      display.LocationLabel(r),
		Latitude:      r.Latitude,
		Longitude:     r.Longitude,
		Reporter:      display.ReporterLabel(r),
		Department:    r.Department,
		AssignedTo:    r.AssignedTo,
		ImageURL:      r.ImageURL,
		Comments:      make([]CommentResponse, 0, len(r.Comments)),
		CreatedAt:     r.CreatedAt,
		CreatedLabel:  display.FormatDate(r.CreatedAt),
		UpdatedAt:     r.UpdatedAt,
		ResolvedAt:    r.ResolvedAt,
	}
	if action, ok := triage.NextAction(r.Status); ok {
		resp.NextAction = &action
	}
	for _, c := range r.Comments {
		resp.Comments = append(resp.Comments, CommentResponse{
			ID:        c.ID,
			Text:      c.Text,
			UserID:    c.UserID,
			CreatedAt: c.CreatedAt,
		})
	}
	return resp
}

// NewReportResponses maps a list, keeping order.
func NewReportResponses(reports []domain.Report) []ReportResponse {
	out := make([]ReportResponse, 0, len(reports))
	for i := range reports {
		out = append(out, NewReportResponse(&reports[i]))
	}
	return out
}

// NewHistoryResponses maps audit entries.
func NewHistoryResponses(entries []domain.ReportHistory) []HistoryResponse {
	out := make([]HistoryResponse, 0, len(entries))
	for _, h := range entries {
		out = append(out, HistoryResponse{
			ID:          h.ID,
			ChangeType:  h.ChangeType,
			ChangedByID: h.ChangedByID,
			OldValue:    h.OldValue,
			NewValue:    h.NewValue,
			CreatedAt:   h.CreatedAt,
		})
	}
	return out
}
