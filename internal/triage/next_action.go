package triage

import "github.com/civicdesk/triage-service/internal/domain"

// Action is a contextual shortcut offered for a report's current status.
type Action struct {
	Label  string              `json:"label"`
	Target domain.ReportStatus `json:"target"`
}

var nextActions = map[domain.ReportStatus]Action{
	domain.ReportStatusSubmitted:  {Label: "Start", Target: domain.ReportStatusInProgress},
	domain.ReportStatusInProgress: {Label: "Resolve", Target: domain.ReportStatusResolved},
	domain.ReportStatusResolved:   {Label: "Close", Target: domain.ReportStatusClosed},
}

// NextAction returns the forward shortcut for status. Draft and closed reports have none.
// Any valid status may still be applied directly.
func NextAction(status domain.ReportStatus) (Action, bool) {
	action, ok := nextActions[status]
	return action, ok
}
