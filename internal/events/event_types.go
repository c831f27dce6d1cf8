package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/civicdesk/triage-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventReportStatusChanged EventType = "report_status_changed"
	EventReportAssigned      EventType = "report_assigned"
	EventReportCommentAdded  EventType = "report_comment_added"

	// EventAny subscribes a handler to every event type.
	EventAny EventType = "*"
)

// Actor identifies the staff member behind an event.
type Actor struct {
	UserID     string `json:"user_id"`
	Department string `json:"department,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	ReportID  string    `json:"report_id"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// NewEvent stamps an event with a fresh id and the given time.
func NewEvent(eventType EventType, reportID string, session *domain.Session, at time.Time, payload any) Event {
	event := Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		ReportID:  reportID,
		Timestamp: at,
		Payload:   payload,
	}
	if session != nil {
		event.Actor = Actor{UserID: session.UserID, Department: session.Department}
	}
	return event
}

// ReportStatusChangedPayload payload.
type ReportStatusChangedPayload struct {
	OldStatus domain.ReportStatus `json:"old_status"`
	NewStatus domain.ReportStatus `json:"new_status"`
}

// ReportAssignedPayload payload.
type ReportAssignedPayload struct {
	OldAssignee *string `json:"old_assignee,omitempty"`
	NewAssignee *string `json:"new_assignee,omitempty"`
}

// ReportCommentAddedPayload payload.
type ReportCommentAddedPayload struct {
	CommentID   string `json:"comment_id"`
	AuthorID    string `json:"author_id"`
	BodyPreview string `json:"body_preview"`
}
