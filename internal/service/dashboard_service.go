package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/civicdesk/triage-service/internal/config"
	"github.com/civicdesk/triage-service/internal/display"
	"github.com/civicdesk/triage-service/internal/domain"
	"github.com/civicdesk/triage-service/internal/filter"
	"github.com/civicdesk/triage-service/internal/observability"
	"github.com/civicdesk/triage-service/internal/repository"
	"github.com/civicdesk/triage-service/internal/stats"
	"github.com/civicdesk/triage-service/internal/triage"
	apperrors "github.com/civicdesk/triage-service/pkg/util/errorutil"
)

// User-visible notices for panels that could not be loaded.
const (
	NoticeReportsUnavailable  = "Reports could not be loaded. Showing an empty list."
	NoticeUsersUnavailable    = "Active user count could not be loaded."
	NoticeResponseUnavailable = "Response time data could not be loaded."
	NoticeRecentUnavailable   = "Recent reports could not be loaded."
	NoticeCountsUnavailable   = "Status counts could not be loaded."
	NoticeSkippedReports      = "Some reports have an unrecognised status or priority and were left out."
)

// DashboardService loads, filters and aggregates reports for the dashboard.
type DashboardService struct {
	reports  repository.ReportRepository
	profiles repository.ProfileRepository
	cache    triage.CountCache
	engine   *filter.Engine
	cfg      config.StatsConfig
	logger   *zap.Logger
	metrics  *observability.Metrics
	now      func() time.Time
}

// DashboardDependencies bundles collaborators for the dashboard service.
type DashboardDependencies struct {
	ReportRepo  repository.ReportRepository
	ProfileRepo repository.ProfileRepository
	Cache       triage.CountCache
	Engine      *filter.Engine
	Stats       config.StatsConfig
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	Clock       func() time.Time
}

// Overview is every dashboard panel. A panel that failed to load is empty and Notices says so.
type Overview struct {
	Stats          domain.DashboardStats       `json:"stats"`
	Categories     []domain.CategoryShare      `json:"categories"`
	StatusCounts   map[domain.ReportStatus]int `json:"statusCounts"`
	WeeklyResponse []domain.DailyResponseTime  `json:"weeklyResponse"`
	MonthlyVolume  []domain.MonthlyVolume      `json:"monthlyVolume"`
	Recent         []domain.Report             `json:"recent"`
	Notices        []string                    `json:"notices"`
}

// ReportList is a filtered set of reports.
type ReportList struct {
	Reports []domain.Report
	Notices []string
}

// MapView is the data behind the report map.
type MapView struct {
	Markers []display.Marker `json:"markers"`
	Center  display.LatLng   `json:"center"`
	Notices []string         `json:"notices"`
}

// NewDashboardService constructs the service.
func NewDashboardService(deps DashboardDependencies) *DashboardService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	engine := deps.Engine
	if engine == nil {
		engine = filter.NewEngine(nil)
	}
	cache := deps.Cache
	if cache == nil {
		cache = triage.NewMemoryCountCache()
	}
	cfg := deps.Stats
	if cfg.WeeklyWindowDays <= 0 {
		cfg.WeeklyWindowDays = 7
	}
	if cfg.Months <= 0 {
		cfg.Months = 6
	}
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 10
	}
	return &DashboardService{
		reports:  deps.ReportRepo,
		profiles: deps.ProfileRepo,
		cache:    cache,
		engine:   engine,
		cfg:      cfg,
		logger:   logger,
		metrics:  deps.Metrics,
		now:      clock,
	}
}

// Overview loads every panel concurrently. Panels fail independently.
func (s *DashboardService) Overview(ctx context.Context, session *domain.Session, criteria filter.Criteria) *Overview {
	now := s.now()
	out := &Overview{
		Stats:          stats.ComputeStats(nil, 0),
		Categories:     stats.CategoryDistribution(nil),
		StatusCounts:   stats.StatusCounts(nil),
		WeeklyResponse: stats.WeeklyResponseTime(nil, s.cfg.WeeklyWindowDays, now),
		MonthlyVolume:  stats.MonthlyVolume(nil, s.cfg.Months, now),
		Recent:         []domain.Report{},
	}
	notices := &noticeSet{}

	var (
		filtered    []domain.Report
		filteredOK  bool
		activeUsers int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		reports, err := s.fetch(gctx, criteria.WithSession(session), notices)
		if err != nil {
			notices.add(NoticeReportsUnavailable)
			return nil
		}
		filtered, filteredOK = reports, true
		return nil
	})
	g.Go(func() error {
		if s.profiles == nil {
			return nil
		}
		n, err := s.profiles.Count(gctx)
		if err != nil {
			s.fetchFailed("count_profiles", err)
			notices.add(NoticeUsersUnavailable)
			return nil
		}
		activeUsers = n
		return nil
	})
	g.Go(func() error {
		from := now.AddDate(0, 0, -s.cfg.WeeklyWindowDays)
		windowed := criteria.WithSession(session)
		windowed.DateFrom = &from
		windowed.DateTo = nil
		reports, err := s.fetch(gctx, windowed, notices)
		if err != nil {
			notices.add(NoticeResponseUnavailable)
			return nil
		}
		out.WeeklyResponse = stats.WeeklyResponseTime(reports, s.cfg.WeeklyWindowDays, now)
		return nil
	})
	g.Go(func() error {
		page, err := s.reports.List(gctx, repository.ReportQuery{Limit: s.cfg.RecentLimit})
		if err != nil {
			s.fetchFailed("list_recent", err)
			notices.add(NoticeRecentUnavailable)
			return nil
		}
		s.noteSkipped(page, notices)
		out.Recent = page.Reports
		return nil
	})
	_ = g.Wait()

	if filteredOK {
		out.Stats = stats.ComputeStats(filtered, activeUsers)
		out.Categories = stats.CategoryDistribution(filtered)
		out.StatusCounts = stats.StatusCounts(filtered)
		out.MonthlyVolume = stats.MonthlyVolume(filtered, s.cfg.Months, now)
	} else {
		out.Stats.ActiveUsers = activeUsers
	}
	out.Notices = notices.list()
	return out
}

// ListReports returns reports matching criteria, newest first. A store failure yields an
// empty list with a notice.
func (s *DashboardService) ListReports(ctx context.Context, session *domain.Session, criteria filter.Criteria, limit int) ReportList {
	notices := &noticeSet{}
	reports, err := s.fetch(ctx, criteria.WithSession(session), notices)
	if err != nil {
		notices.add(NoticeReportsUnavailable)
		return ReportList{Reports: []domain.Report{}, Notices: notices.list()}
	}
	if limit > 0 && len(reports) > limit {
		reports = reports[:limit]
	}
	return ReportList{Reports: reports, Notices: notices.list()}
}

// RecentReports returns the newest reports across all departments.
func (s *DashboardService) RecentReports(ctx context.Context, limit int) ReportList {
	if limit <= 0 {
		limit = s.cfg.RecentLimit
	}
	notices := &noticeSet{}
	page, err := s.reports.List(ctx, repository.ReportQuery{Limit: limit})
	if err != nil {
		s.fetchFailed("list_recent", err)
		notices.add(NoticeRecentUnavailable)
		return ReportList{Reports: []domain.Report{}, Notices: notices.list()}
	}
	s.noteSkipped(page, notices)
	return ReportList{Reports: page.Reports, Notices: notices.list()}
}

// GetReport loads one report.
func (s *DashboardService) GetReport(ctx context.Context, id string) (*domain.Report, error) {
	report, err := s.reports.GetByID(ctx, id)
	if err != nil {
		switch {
		case apperrors.IsNotFound(err):
			return nil, apperrors.NewNotFound("report", map[string]any{"id": id})
		case repository.IsDecodeError(err):
			s.logger.Warn("report has unrecognised values", zap.String("report_id", id), zap.Error(err))
			return nil, apperrors.NewConflict("report has an unrecognised status or priority", map[string]any{"id": id})
		default:
			s.fetchFailed("get_report", err)
			return nil, apperrors.NewUnavailable("could not load report", err)
		}
	}
	return report, nil
}

// MapMarkers returns markers for matching reports with coordinates.
func (s *DashboardService) MapMarkers(ctx context.Context, session *domain.Session, criteria filter.Criteria) MapView {
	notices := &noticeSet{}
	c := criteria.WithSession(session)
	q := s.engine.StoreQuery(c)
	q.RequireCoordinates = true

	page, err := s.reports.List(ctx, q)
	if err != nil {
		s.fetchFailed("list_map", err)
		notices.add(NoticeReportsUnavailable)
		return MapView{Markers: []display.Marker{}, Center: display.DefaultCenter, Notices: notices.list()}
	}
	s.noteSkipped(page, notices)

	matched, err := s.applyDepartment(ctx, page.Reports, c)
	if err != nil {
		notices.add(NoticeReportsUnavailable)
		return MapView{Markers: []display.Marker{}, Center: display.DefaultCenter, Notices: notices.list()}
	}
	markers := display.MarkersFor(matched)
	return MapView{Markers: markers, Center: display.MapCenter(markers), Notices: notices.list()}
}

// StatusCounts returns per-status counts across all reports, from the cache when populated.
func (s *DashboardService) StatusCounts(ctx context.Context) (map[domain.ReportStatus]int, []string) {
	counts, ok, err := s.cache.Counts(ctx)
	if err != nil {
		s.logger.Warn("status count cache read failed", zap.Error(err))
	}
	if ok {
		return counts, []string{}
	}

	counts, err = s.reconcile(ctx)
	if err != nil {
		return stats.StatusCounts(nil), []string{NoticeCountsUnavailable}
	}
	return counts, []string{}
}

// Reconcile recomputes the cached counts from the store.
func (s *DashboardService) Reconcile(ctx context.Context) error {
	_, err := s.reconcile(ctx)
	return err
}

func (s *DashboardService) reconcile(ctx context.Context) (map[domain.ReportStatus]int, error) {
	counts, err := s.reports.CountByStatus(ctx)
	if err != nil {
		s.fetchFailed("count_by_status", err)
		return nil, err
	}
	if err := s.cache.Reset(ctx, counts); err != nil {
		s.logger.Warn("status count cache reset failed", zap.Error(err))
	}
	return counts, nil
}

func (s *DashboardService) fetch(ctx context.Context, c filter.Criteria, notices *noticeSet) ([]domain.Report, error) {
	page, err := s.reports.List(ctx, s.engine.StoreQuery(c))
	if err != nil {
		s.fetchFailed("list_reports", err)
		return nil, err
	}
	s.noteSkipped(page, notices)
	return s.applyDepartment(ctx, page.Reports, c)
}

// applyDepartment filters store candidates. Whether the department has exactly tagged reports
// is asked of the store on the department dimension alone, so other criteria never trigger
// the keyword fallback.
func (s *DashboardService) applyDepartment(ctx context.Context, candidates []domain.Report, c filter.Criteria) ([]domain.Report, error) {
	tagged := true
	if dept := strings.TrimSpace(c.Department); dept != "" {
		var err error
		tagged, err = s.reports.HasDepartment(ctx, dept)
		if err != nil {
			s.fetchFailed("has_department", err)
			return nil, err
		}
	}
	return s.engine.ApplyTagged(candidates, c, tagged), nil
}

func (s *DashboardService) fetchFailed(operation string, err error) {
	s.metrics.RecordStoreFailure(operation)
	s.logger.Error("report fetch failed", zap.String("operation", operation), zap.Error(err))
}

func (s *DashboardService) noteSkipped(page repository.ReportPage, notices *noticeSet) {
	if page.Skipped == 0 {
		return
	}
	s.logger.Warn("skipped reports with unrecognised values", zap.Int("count", page.Skipped))
	notices.add(NoticeSkippedReports)
}

type noticeSet struct {
	mu    sync.Mutex
	items []string
}

func (n *noticeSet) add(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, existing := range n.items {
		if existing == msg {
			return
		}
	}
	n.items = append(n.items, msg)
}

func (n *noticeSet) list() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string{}, n.items...)
}
