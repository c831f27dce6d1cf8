package domain

import "time"

// ReportChangeType captures what changed in a history entry.
type ReportChangeType string

const (
	ChangeTypeStatus   ReportChangeType = "STATUS_CHANGE"
	ChangeTypeAssignee ReportChangeType = "ASSIGNEE_CHANGE"
	ChangeTypeComment  ReportChangeType = "COMMENT_ADDED"
)

// ReportHistory is an immutable audit trail entry written after a successful triage change.
type ReportHistory struct {
	ID          string
	ReportID    string
	ChangedByID *string
	ChangeType  ReportChangeType
	OldValue    map[string]any
	NewValue    map[string]any
	CreatedAt   time.Time
}
