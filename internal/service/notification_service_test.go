package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/civicdesk/triage-service/internal/domain"
	"github.com/civicdesk/triage-service/internal/events"
)

func TestNotificationService_LogsEvents(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	dispatcher := events.NewLocalDispatcher()
	NewNotificationService(dispatcher, zap.New(core)).RegisterHandlers()

	session := &domain.Session{UserID: "s-1"}
	ctx := context.Background()
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventReportStatusChanged, "r-1", session, time.Now(),
		events.ReportStatusChangedPayload{OldStatus: domain.ReportStatusSubmitted, NewStatus: domain.ReportStatusInProgress})))
	require.NoError(t, dispatcher.Publish(ctx, events.NewEvent(events.EventReportCommentAdded, "r-1", session, time.Now(),
		events.ReportCommentAddedPayload{CommentID: "c-1", BodyPreview: "on site"})))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "ReportStatusChanged", entries[0].Message)
	assert.Equal(t, "in_progress", entries[0].ContextMap()["new_status"])
	assert.Equal(t, "ReportCommentAdded", entries[1].Message)
	assert.Equal(t, "s-1", entries[1].ContextMap()["actor_id"])
}

func TestStaffService(t *testing.T) {
	ctx := context.Background()
	svc := NewStaffService(&stubProfiles{})
	staff := &domain.Session{UserID: "s-1", Role: domain.StaffRoleStaff}

	_, err := svc.ListProfiles(ctx, staff, 10)
	assert.Error(t, err)

	profiles, err := svc.ListProfiles(ctx, admin, 10)
	require.NoError(t, err)
	assert.NotNil(t, profiles)

	_, err = svc.GetProfile(ctx, staff, "someone-else")
	assert.Error(t, err)

	_, err = svc.GetProfile(ctx, staff, "s-1")
	assert.Error(t, err)
}
