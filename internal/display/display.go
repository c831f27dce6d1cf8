// Package display maps reports to the labels, colours and map markers the dashboard renders.
package display

import (
	"strings"
	"time"

	"github.com/civicdesk/triage-service/internal/domain"
)

const (
	NeutralColor = "#9CA3AF"

	UnknownLocation = "Unknown location"
	AnonymousName   = "Anonymous"
	NoDescription   = "No description provided"
)

// DefaultCenter is used when no report has coordinates.
var DefaultCenter = LatLng{Lat: 20.5937, Lng: 78.9629}

var statusColors = map[domain.ReportStatus]string{
	domain.ReportStatusDraft:      "#6B7280",
	domain.ReportStatusSubmitted:  "#3B82F6",
	domain.ReportStatusInProgress: "#F59E0B",
	domain.ReportStatusResolved:   "#10B981",
	domain.ReportStatusClosed:     "#10B981",
}

var priorityColors = map[domain.ReportPriority]string{
	domain.ReportPriorityLow:    "#10B981",
	domain.ReportPriorityMedium: "#F59E0B",
	domain.ReportPriorityHigh:   "#EF4444",
	domain.ReportPriorityUrgent: "#EF4444",
}

var categoryPalette = []string{
	"#3B82F6",
	"#10B981",
	"#F59E0B",
	"#EF4444",
	"#8B5CF6",
	"#06B6D4",
	"#F97316",
}

// StatusColor returns the hex colour for a status, or NeutralColor for unknown values.
func StatusColor(status domain.ReportStatus) string {
	if c, ok := statusColors[status]; ok {
		return c
	}
	return NeutralColor
}

// PriorityColor returns the hex colour for a priority, or NeutralColor for unknown values.
func PriorityColor(priority domain.ReportPriority) string {
	if c, ok := priorityColors[priority]; ok {
		return c
	}
	return NeutralColor
}

// CategoryColor picks a palette colour for a category share. Negative indexes are neutral.
func CategoryColor(index int) string {
	if index < 0 {
		return NeutralColor
	}
	return categoryPalette[index%len(categoryPalette)]
}

// StatusLabel turns "in_progress" into "In Progress".
func StatusLabel(status domain.ReportStatus) string {
	return titleWords(string(status))
}

// PriorityLabel capitalises a priority.
func PriorityLabel(priority domain.ReportPriority) string {
	return titleWords(string(priority))
}

func titleWords(raw string) string {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	if len(parts) == 0 {
		return "Unknown"
	}
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + strings.ToLower(p[1:])
	}
	return strings.Join(parts, " ")
}

// LocationLabel prefers the address, then the coordinates.
func LocationLabel(r *domain.Report) string {
	if r.Address != nil && strings.TrimSpace(*r.Address) != "" {
		return *r.Address
	}
	if r.HasCoordinates() {
		return formatCoordinates(*r.Latitude, *r.Longitude)
	}
	return UnknownLocation
}

// ReporterLabel returns the reporter's name or AnonymousName.
func ReporterLabel(r *domain.Report) string {
	if name := strings.TrimSpace(r.Reporter); name != "" {
		return name
	}
	return AnonymousName
}

// DescriptionText returns the description or NoDescription.
func DescriptionText(r *domain.Report) string {
	if r.Description != nil && strings.TrimSpace(*r.Description) != "" {
		return *r.Description
	}
	return NoDescription
}

// FormatDate renders a date as "Mar 5, 2025".
func FormatDate(t time.Time) string {
	return t.Format("Jan 2, 2006")
}
