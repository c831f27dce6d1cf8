package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/civicdesk/triage-service/internal/domain"
	"github.com/civicdesk/triage-service/internal/filter"
	"github.com/civicdesk/triage-service/internal/realtime"
	"github.com/civicdesk/triage-service/internal/service"
	"github.com/civicdesk/triage-service/internal/stats"
	apperrors "github.com/civicdesk/triage-service/pkg/util/errorutil"
)

type fakeDashboard struct {
	mu       sync.Mutex
	criteria filter.Criteria
	calls    int
	reports  []domain.Report
}

func (f *fakeDashboard) Overview(_ context.Context, _ *domain.Session, c filter.Criteria) *service.Overview {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.criteria = c
	f.calls++
	return &service.Overview{
		Stats:        stats.ComputeStats(f.reports, 3),
		Categories:   stats.CategoryDistribution(f.reports),
		StatusCounts: stats.StatusCounts(f.reports),
		Notices:      []string{service.NoticeUsersUnavailable},
	}
}

func (f *fakeDashboard) ListReports(_ context.Context, _ *domain.Session, c filter.Criteria, limit int) service.ReportList {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.criteria = c
	out := f.reports
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return service.ReportList{Reports: out}
}

func (f *fakeDashboard) overviewCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeTriage struct {
	session *domain.Session
	args    []string
}

func (f *fakeTriage) ApplyStatusChange(_ context.Context, s *domain.Session, id, status string) (*domain.Report, error) {
	f.session, f.args = s, []string{id, status}
	if status == "escalated" {
		return nil, apperrors.NewValidationError("unknown status", nil)
	}
	return &domain.Report{ID: id, Status: domain.ReportStatus(status)}, nil
}

func (f *fakeTriage) AssignStaff(_ context.Context, s *domain.Session, id, staff string) (*domain.Report, error) {
	f.session, f.args = s, []string{id, staff}
	r := &domain.Report{ID: id, Status: domain.ReportStatusInProgress}
	if staff != "" {
		r.AssignedTo = &staff
	}
	return r, nil
}

func (f *fakeTriage) AppendComment(_ context.Context, s *domain.Session, id, text string) (*domain.Report, error) {
	f.session, f.args = s, []string{id, text}
	return &domain.Report{ID: id, Status: domain.ReportStatusSubmitted, Comments: []domain.Comment{{Text: text}}}, nil
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func sampleReports() []domain.Report {
	created := time.Date(2025, 3, 2, 8, 0, 0, 0, time.UTC)
	resolved := created.Add(4 * time.Hour)
	return []domain.Report{
		{ID: "r-1", Title: "Burst main", Category: "water", Status: domain.ReportStatusResolved, Priority: domain.ReportPriorityHigh, CreatedAt: created, ResolvedAt: &resolved},
		{ID: "r-2", Title: "Pothole", Category: "roads", Status: domain.ReportStatusSubmitted, Priority: domain.ReportPriorityLow, CreatedAt: created},
	}
}

func execute(t *testing.T, svc *services, args ...string) (string, error) {
	t.Helper()
	opts := &rootOptions{}
	load := func(context.Context) (*services, func(), error) { return svc, nil, nil }
	cmd := newRootCmd(opts, load)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestStatsCommand(t *testing.T) {
	dash := &fakeDashboard{reports: sampleReports()}
	out, err := execute(t, &services{dashboard: dash}, "stats", "--department", "water", "--status", "resolved")
	require.NoError(t, err)

	assert.Contains(t, out, "Total reports:      2")
	assert.Contains(t, out, "Resolution rate:    50.0%")
	assert.Contains(t, out, "Avg response (h):   4.0")
	assert.Contains(t, out, "! "+service.NoticeUsersUnavailable)
	assert.Contains(t, out, "In Progress")
	assert.Equal(t, "water", dash.criteria.Department)
	assert.Equal(t, "resolved", dash.criteria.Status)
}

func TestReportsCommands(t *testing.T) {
	t.Run("List", func(t *testing.T) {
		dash := &fakeDashboard{reports: sampleReports()}
		out, err := execute(t, &services{dashboard: dash}, "reports", "list", "--limit", "1", "--search", "main")
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Len(t, lines, 2)
		assert.Contains(t, lines[0], "STATUS")
		assert.Contains(t, lines[1], "r-1")
		assert.Contains(t, lines[1], "Resolved")
		assert.Equal(t, "main", dash.criteria.Search)
	})

	t.Run("ListJSON", func(t *testing.T) {
		out, err := execute(t, &services{dashboard: &fakeDashboard{reports: sampleReports()}}, "reports", "list", "--json")
		require.NoError(t, err)
		assert.Contains(t, out, `"reports"`)
	})

	t.Run("Status", func(t *testing.T) {
		tri := &fakeTriage{}
		out, err := execute(t, &services{triage: tri}, "reports", "status", "r-9", "resolved", "--actor", "ops-1")
		require.NoError(t, err)
		assert.Contains(t, out, "r-9  Resolved  unassigned")
		assert.Equal(t, []string{"r-9", "resolved"}, tri.args)
		assert.Equal(t, "ops-1", tri.session.UserID)
		assert.True(t, tri.session.IsAdmin())
	})

	t.Run("StatusRejected", func(t *testing.T) {
		_, err := execute(t, &services{triage: &fakeTriage{}}, "reports", "status", "r-9", "escalated")
		require.Error(t, err)
		assert.Equal(t, "VALIDATION_FAILED", apperrors.ToDomainError(err).Code)
	})

	t.Run("StatusNeedsTwoArgs", func(t *testing.T) {
		_, err := execute(t, &services{triage: &fakeTriage{}}, "reports", "status", "r-9")
		assert.Error(t, err)
	})

	t.Run("AssignAndClear", func(t *testing.T) {
		tri := &fakeTriage{}
		out, err := execute(t, &services{triage: tri}, "reports", "assign", "r-3", "crew-7")
		require.NoError(t, err)
		assert.Contains(t, out, "crew-7")

		out, err = execute(t, &services{triage: tri}, "reports", "assign", "r-3")
		require.NoError(t, err)
		assert.Contains(t, out, "unassigned")
		assert.Equal(t, []string{"r-3", ""}, tri.args)
	})

	t.Run("CommentJoinsWords", func(t *testing.T) {
		tri := &fakeTriage{}
		out, err := execute(t, &services{triage: tri}, "reports", "comment", "r-4", "crew", "on", "site")
		require.NoError(t, err)
		assert.Equal(t, []string{"r-4", "crew on site"}, tri.args)
		assert.Contains(t, out, "1 comment(s)")
	})
}

func TestLoaderFailure(t *testing.T) {
	opts := &rootOptions{}
	cmd := newRootCmd(opts, func(context.Context) (*services, func(), error) {
		return nil, nil, errors.New("POSTGRES_DSN is required")
	})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"stats"})
	err := cmd.ExecuteContext(context.Background())
	assert.EqualError(t, err, "POSTGRES_DSN is required")
}

func TestWatchCommand(t *testing.T) {
	notifier := realtime.NewNotifier(realtime.Options{}, zap.NewNop(), nil)
	defer notifier.Close()
	dash := &fakeDashboard{reports: sampleReports()}

	opts := &rootOptions{}
	cmd := newRootCmd(opts, func(context.Context) (*services, func(), error) {
		return &services{dashboard: dash, changes: notifier}, nil, nil
	})
	out := &syncBuffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"watch"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- cmd.ExecuteContext(ctx) }()

	require.Eventually(t, func() bool { return dash.overviewCalls() == 1 && notifier.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	notifier.Notify(realtime.ChangeEvent{Source: "test", ReportID: "r-1"})
	require.Eventually(t, func() bool { return dash.overviewCalls() == 2 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
	assert.Contains(t, out.String(), "---")
	assert.Equal(t, 0, notifier.Subscribers())
}
