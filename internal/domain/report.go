package domain

import (
	"fmt"
	"strings"
	"time"
)

// ReportStatus enumerates the triage lifecycle of a report.
type ReportStatus string

const (
	ReportStatusDraft      ReportStatus = "draft"
	ReportStatusSubmitted  ReportStatus = "submitted"
	ReportStatusInProgress ReportStatus = "in_progress"
	ReportStatusResolved   ReportStatus = "resolved"
	ReportStatusClosed     ReportStatus = "closed"
)

// AllStatuses lists the lifecycle in its expected order.
var AllStatuses = []ReportStatus{
	ReportStatusDraft,
	ReportStatusSubmitted,
	ReportStatusInProgress,
	ReportStatusResolved,
	ReportStatusClosed,
}

// ReportPriority enumerates triage urgency.
type ReportPriority string

const (
	ReportPriorityLow    ReportPriority = "low"
	ReportPriorityMedium ReportPriority = "medium"
	ReportPriorityHigh   ReportPriority = "high"
	ReportPriorityUrgent ReportPriority = "urgent"
)

// AllPriorities lists priorities from least to most urgent.
var AllPriorities = []ReportPriority{
	ReportPriorityLow,
	ReportPriorityMedium,
	ReportPriorityHigh,
	ReportPriorityUrgent,
}

// Well-known categories. The vocabulary is open; reports may carry others.
const (
	CategoryRoads        = "roads"
	CategoryWater        = "water"
	CategoryElectricity  = "electricity"
	CategoryWaste        = "waste"
	CategoryPublicSafety = "public safety"
	CategoryParks        = "parks"
	CategoryStreetlights = "streetlights"
	CategoryGeneral      = "general"
)

// Valid reports whether s is one of the five lifecycle states.
func (s ReportStatus) Valid() bool {
	for _, candidate := range AllStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsResolved reports whether the status counts towards resolved totals.
func (s ReportStatus) IsResolved() bool {
	return s == ReportStatusResolved || s == ReportStatusClosed
}

// IsPending reports whether the status counts towards pending totals.
func (s ReportStatus) IsPending() bool {
	return s == ReportStatusSubmitted || s == ReportStatusInProgress
}

// UnmarshalText rejects values outside the lifecycle vocabulary.
func (s *ReportStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ParseStatus converts raw input into a ReportStatus.
func ParseStatus(raw string) (ReportStatus, error) {
	status := ReportStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown report status %q", raw)
	}
	return status, nil
}

// Valid reports whether p is a known priority.
func (p ReportPriority) Valid() bool {
	for _, candidate := range AllPriorities {
		if candidate == p {
			return true
		}
	}
	return false
}

// UnmarshalText rejects values outside the priority vocabulary.
func (p *ReportPriority) UnmarshalText(text []byte) error {
	parsed, err := ParsePriority(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePriority converts raw input into a ReportPriority.
func ParsePriority(raw string) (ReportPriority, error) {
	priority := ReportPriority(strings.ToLower(strings.TrimSpace(raw)))
	if !priority.Valid() {
		return "", fmt.Errorf("unknown report priority %q", raw)
	}
	return priority, nil
}

// Comment is a single staff note on a report. Comments are append-only.
type Comment struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Report is a citizen-submitted civic issue with triage metadata.
type Report struct {
	ID          string
	Title       string
	Description *string
	Category    string
	Priority    ReportPriority
	Status      ReportStatus
	Latitude    *float64
	Longitude   *float64
	Address     *string
	ReporterID  *string
	Reporter    string
	Department  *string
	AssignedTo  *string
	ImageURL    *string
	Comments    []Comment
	CreatedAt   time.Time
	UpdatedAt   *time.Time
	ResolvedAt  *time.Time
}

// HasCoordinates reports whether both latitude and longitude are present.
func (r *Report) HasCoordinates() bool {
	return r.Latitude != nil && r.Longitude != nil
}

// DepartmentTag returns the department or an empty string.
func (r *Report) DepartmentTag() string {
	if r.Department == nil {
		return ""
	}
	return *r.Department
}

// ResponseTime is the time from creation to first resolution.
func (r *Report) ResponseTime() (time.Duration, bool) {
	if r.ResolvedAt == nil || r.CreatedAt.IsZero() {
		return 0, false
	}
	return r.ResolvedAt.Sub(r.CreatedAt), true
}
