package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdesk/triage-service/internal/config"
	"github.com/civicdesk/triage-service/internal/domain"
	"github.com/civicdesk/triage-service/internal/filter"
	"github.com/civicdesk/triage-service/internal/repository"
	"github.com/civicdesk/triage-service/internal/triage"
	apperrors "github.com/civicdesk/triage-service/pkg/util/errorutil"
)

type stubReports struct {
	mu       sync.Mutex
	reports  []domain.Report
	skipped  int
	listErr  error
	countErr error
	deptErr  error
	queries  []repository.ReportQuery
	counts   int
}

func (s *stubReports) List(_ context.Context, q repository.ReportQuery) (repository.ReportPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	if s.listErr != nil {
		return repository.ReportPage{}, s.listErr
	}
	var out []domain.Report
	for _, r := range s.reports {
		if len(q.Statuses) > 0 && r.Status != q.Statuses[0] {
			continue
		}
		if q.CreatedFrom != nil && r.CreatedAt.Before(*q.CreatedFrom) {
			continue
		}
		if q.RequireCoordinates && !r.HasCoordinates() {
			continue
		}
		out = append(out, r)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return repository.ReportPage{Reports: out, Skipped: s.skipped}, nil
}

func (s *stubReports) GetByID(_ context.Context, id string) (*domain.Report, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	for _, r := range s.reports {
		if r.ID == id {
			clone := r
			return &clone, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *stubReports) UpdateStatus(context.Context, string, domain.ReportStatus, time.Time) (*domain.Report, error) {
	return nil, errors.New("not implemented")
}

func (s *stubReports) UpdateAssignee(context.Context, string, *string) (*domain.Report, error) {
	return nil, errors.New("not implemented")
}

func (s *stubReports) AppendComment(context.Context, string, domain.Comment) (*domain.Report, error) {
	return nil, errors.New("not implemented")
}

func (s *stubReports) CountByStatus(context.Context) (map[domain.ReportStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts++
	if s.countErr != nil {
		return nil, s.countErr
	}
	counts := map[domain.ReportStatus]int{}
	for _, status := range domain.AllStatuses {
		counts[status] = 0
	}
	for _, r := range s.reports {
		counts[r.Status]++
	}
	return counts, nil
}

func (s *stubReports) HasDepartment(_ context.Context, dept string) (bool, error) {
	if s.deptErr != nil {
		return false, s.deptErr
	}
	for _, r := range s.reports {
		if strings.EqualFold(r.DepartmentTag(), dept) {
			return true, nil
		}
	}
	return false, nil
}

type stubProfiles struct {
	count int
	err   error
}

func (s *stubProfiles) Count(context.Context) (int, error) { return s.count, s.err }

func (s *stubProfiles) GetByID(context.Context, string) (*domain.Profile, error) {
	return nil, pgx.ErrNoRows
}

func (s *stubProfiles) List(context.Context, int) ([]domain.Profile, error) { return nil, s.err }

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

var now = time.Date(2025, 6, 8, 20, 0, 0, 0, time.UTC)

func seedReports() []domain.Report {
	day := func(d int) time.Time { return now.AddDate(0, 0, -d) }
	resolved := day(2).Add(4 * time.Hour)
	return []domain.Report{
		{ID: "r-1", Title: "Burst main", Category: "Water Leakage", Status: domain.ReportStatusResolved, Priority: domain.ReportPriorityHigh, CreatedAt: day(2), ResolvedAt: &resolved, Latitude: floatPtr(10), Longitude: floatPtr(70)},
		{ID: "r-2", Title: "Pothole", Category: "roads", Department: strPtr("roads"), Status: domain.ReportStatusSubmitted, Priority: domain.ReportPriorityMedium, CreatedAt: day(3), Latitude: floatPtr(20), Longitude: floatPtr(80)},
		{ID: "r-3", Title: "Drain blocked", Category: "Drainage", Status: domain.ReportStatusInProgress, Priority: domain.ReportPriorityLow, CreatedAt: day(40)},
		{ID: "r-4", Title: "Dark street", Category: "streetlights", Status: domain.ReportStatusDraft, Priority: domain.ReportPriorityLow, CreatedAt: day(1)},
	}
}

func newDashboard(reports *stubReports, profiles *stubProfiles, cache triage.CountCache) *DashboardService {
	return NewDashboardService(DashboardDependencies{
		ReportRepo:  reports,
		ProfileRepo: profiles,
		Cache:       cache,
		Engine:      filter.NewEngine(nil),
		Stats:       config.StatsConfig{WeeklyWindowDays: 7, Months: 3, RecentLimit: 2},
		Clock:       func() time.Time { return now },
	})
}

var admin = &domain.Session{UserID: "a-1", Role: domain.StaffRoleAdmin}

func TestDashboardService_Overview(t *testing.T) {
	ctx := context.Background()

	t.Run("AllPanels", func(t *testing.T) {
		svc := newDashboard(&stubReports{reports: seedReports()}, &stubProfiles{count: 12}, nil)
		overview := svc.Overview(ctx, admin, filter.Criteria{})

		assert.Empty(t, overview.Notices)
		assert.Equal(t, 4, overview.Stats.TotalReports)
		assert.Equal(t, 1, overview.Stats.ResolvedReports)
		assert.Equal(t, 2, overview.Stats.PendingReports)
		assert.Equal(t, 12, overview.Stats.ActiveUsers)
		assert.Equal(t, 4.0, overview.Stats.AverageResponseTime)
		assert.Equal(t, 25.0, overview.Stats.ResolutionRate)
		assert.Len(t, overview.Categories, 4)
		assert.Equal(t, 1, overview.StatusCounts[domain.ReportStatusDraft])
		assert.Len(t, overview.WeeklyResponse, 7)
		assert.Len(t, overview.MonthlyVolume, 3)
		assert.Len(t, overview.Recent, 2)
	})

	t.Run("StaffSeesDepartmentFallback", func(t *testing.T) {
		svc := newDashboard(&stubReports{reports: seedReports()}, &stubProfiles{}, nil)
		staff := &domain.Session{UserID: "s-1", Department: "water"}
		overview := svc.Overview(ctx, staff, filter.Criteria{})

		// r-1 Water Leakage and r-3 Drainage match the water keywords.
		assert.Equal(t, 2, overview.Stats.TotalReports)
	})

	t.Run("FetchFailureIsNotFatal", func(t *testing.T) {
		svc := newDashboard(&stubReports{listErr: errors.New("connection refused")}, &stubProfiles{err: errors.New("timeout")}, nil)
		overview := svc.Overview(ctx, admin, filter.Criteria{})

		assert.Zero(t, overview.Stats.TotalReports)
		assert.Equal(t, []domain.CategoryShare{{Name: "No data", Percentage: 0, ColorIndex: -1}}, overview.Categories)
		assert.Empty(t, overview.Recent)
		assert.Contains(t, overview.Notices, NoticeReportsUnavailable)
		assert.Contains(t, overview.Notices, NoticeUsersUnavailable)
		assert.Contains(t, overview.Notices, NoticeRecentUnavailable)
	})

	t.Run("SkippedRowsRaiseNotice", func(t *testing.T) {
		svc := newDashboard(&stubReports{reports: seedReports(), skipped: 1}, &stubProfiles{}, nil)
		overview := svc.Overview(ctx, admin, filter.Criteria{})
		assert.Equal(t, []string{NoticeSkippedReports}, overview.Notices)
	})
}

func TestDashboardService_ListReports(t *testing.T) {
	ctx := context.Background()
	store := &stubReports{reports: seedReports()}
	svc := newDashboard(store, &stubProfiles{}, nil)

	list := svc.ListReports(ctx, admin, filter.Criteria{Status: "resolved"}, 0)
	require.Len(t, list.Reports, 1)
	assert.Equal(t, "r-1", list.Reports[0].ID)
	assert.Equal(t, []domain.ReportStatus{domain.ReportStatusResolved}, store.queries[len(store.queries)-1].Statuses)

	list = svc.ListReports(ctx, admin, filter.Criteria{Search: "STREET"}, 0)
	require.Len(t, list.Reports, 1)
	assert.Equal(t, "r-4", list.Reports[0].ID)

	list = svc.ListReports(ctx, admin, filter.Criteria{Status: "unknown"}, 0)
	assert.Empty(t, list.Reports)

	list = svc.ListReports(ctx, admin, filter.Criteria{}, 3)
	assert.Len(t, list.Reports, 3)

	failing := newDashboard(&stubReports{listErr: errors.New("down")}, &stubProfiles{}, nil)
	list = failing.ListReports(ctx, admin, filter.Criteria{}, 0)
	assert.Empty(t, list.Reports)
	assert.Equal(t, []string{NoticeReportsUnavailable}, list.Notices)
}

func TestDashboardService_DepartmentFallbackUsesWholeDepartment(t *testing.T) {
	ctx := context.Background()
	store := &stubReports{reports: []domain.Report{
		{ID: "tagged", Title: "Low pressure", Category: "Plumbing", Department: strPtr("water"), Status: domain.ReportStatusSubmitted, Priority: domain.ReportPriorityLow, CreatedAt: now},
		{ID: "untagged", Title: "Leak", Category: "Water Leakage", Status: domain.ReportStatusResolved, Priority: domain.ReportPriorityLow, CreatedAt: now, Latitude: floatPtr(1), Longitude: floatPtr(2)},
	}}
	svc := newDashboard(store, &stubProfiles{}, nil)
	c := filter.Criteria{Department: "water", Status: "resolved"}

	list := svc.ListReports(ctx, admin, c, 0)
	assert.Empty(t, list.Reports)

	view := svc.MapMarkers(ctx, admin, c)
	assert.Empty(t, view.Markers)

	list = svc.ListReports(ctx, admin, filter.Criteria{Department: "water"}, 0)
	require.Len(t, list.Reports, 1)
	assert.Equal(t, "tagged", list.Reports[0].ID)

	t.Run("ExistenceCheckFailure", func(t *testing.T) {
		failing := newDashboard(&stubReports{reports: store.reports, deptErr: errors.New("timeout")}, &stubProfiles{}, nil)
		list := failing.ListReports(ctx, admin, c, 0)
		assert.Empty(t, list.Reports)
		assert.Equal(t, []string{NoticeReportsUnavailable}, list.Notices)
	})
}

func TestDashboardService_GetReport(t *testing.T) {
	ctx := context.Background()
	svc := newDashboard(&stubReports{reports: seedReports()}, &stubProfiles{}, nil)

	report, err := svc.GetReport(ctx, "r-2")
	require.NoError(t, err)
	assert.Equal(t, "Pothole", report.Title)

	_, err = svc.GetReport(ctx, "missing")
	assert.True(t, apperrors.IsNotFound(err))

	failing := newDashboard(&stubReports{listErr: errors.New("down")}, &stubProfiles{}, nil)
	_, err = failing.GetReport(ctx, "r-2")
	assert.Equal(t, "STORE_UNAVAILABLE", apperrors.ToDomainError(err).Code)
}

func TestDashboardService_MapMarkers(t *testing.T) {
	svc := newDashboard(&stubReports{reports: seedReports()}, &stubProfiles{}, nil)
	view := svc.MapMarkers(context.Background(), admin, filter.Criteria{})
	require.Len(t, view.Markers, 2)
	assert.Equal(t, 15.0, view.Center.Lat)
	assert.Equal(t, 75.0, view.Center.Lng)

	empty := newDashboard(&stubReports{}, &stubProfiles{}, nil)
	view = empty.MapMarkers(context.Background(), admin, filter.Criteria{})
	assert.Empty(t, view.Markers)
	assert.Equal(t, 20.5937, view.Center.Lat)
}

func TestDashboardService_StatusCounts(t *testing.T) {
	ctx := context.Background()
	store := &stubReports{reports: seedReports()}
	cache := triage.NewMemoryCountCache()
	svc := newDashboard(store, &stubProfiles{}, cache)

	counts, notices := svc.StatusCounts(ctx)
	assert.Empty(t, notices)
	assert.Equal(t, 1, counts[domain.ReportStatusResolved])
	assert.Equal(t, 1, store.counts)

	// Served from the cache on the second call.
	_, _ = svc.StatusCounts(ctx)
	assert.Equal(t, 1, store.counts)

	require.NoError(t, cache.Shift(ctx, domain.ReportStatusSubmitted, domain.ReportStatusClosed))
	require.NoError(t, svc.Reconcile(ctx))
	counts, _ = svc.StatusCounts(ctx)
	assert.Equal(t, 0, counts[domain.ReportStatusClosed])
	assert.Equal(t, 1, counts[domain.ReportStatusSubmitted])

	failing := newDashboard(&stubReports{countErr: errors.New("down")}, &stubProfiles{}, triage.NewMemoryCountCache())
	counts, notices = failing.StatusCounts(ctx)
	assert.Equal(t, []string{NoticeCountsUnavailable}, notices)
	assert.Len(t, counts, len(domain.AllStatuses))
}
