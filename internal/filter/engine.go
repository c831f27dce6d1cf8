package filter

import (
	"strings"
	"time"

	"github.com/civicdesk/triage-service/internal/domain"
	"github.com/civicdesk/triage-service/internal/repository"
)

// Criteria is a partial filter. An empty field places no constraint on its dimension.
type Criteria struct {
	Status     string
	Priority   string
	Category   string
	Search     string
	Department string
	DateFrom   *time.Time
	DateTo     *time.Time
}

// Predicate decides whether a report passes a filter.
type Predicate func(report *domain.Report) bool

// WithSession scopes criteria to the caller's department when none was requested.
// Admin sessions are never scoped.
func (c Criteria) WithSession(session *domain.Session) Criteria {
	if session == nil || session.IsAdmin() {
		return c
	}
	if strings.TrimSpace(c.Department) == "" {
		c.Department = session.Department
	}
	return c
}

// IsEmpty reports whether no dimension is constrained.
func (c Criteria) IsEmpty() bool {
	return strings.TrimSpace(c.Status) == "" &&
		strings.TrimSpace(c.Priority) == "" &&
		strings.TrimSpace(c.Category) == "" &&
		strings.TrimSpace(c.Search) == "" &&
		strings.TrimSpace(c.Department) == "" &&
		c.DateFrom == nil && c.DateTo == nil
}

// Engine composes criteria into predicates and store queries.
type Engine struct {
	rules *DepartmentRules
}

// NewEngine builds an engine. A nil rules table uses the defaults.
func NewEngine(rules *DepartmentRules) *Engine {
	if rules == nil {
		rules = DefaultDepartmentRules()
	}
	return &Engine{rules: rules}
}

type departmentMode int

const (
	departmentExact departmentMode = iota
	departmentKeywords
)

// BuildPredicate returns the AND of every present criterion. Department matches the exact tag.
func (e *Engine) BuildPredicate(c Criteria) Predicate {
	return e.buildPredicate(c, departmentExact)
}

// Apply filters the whole collection. When a department is requested and no report carries
// that exact tag, the department dimension widens to the category keyword heuristic.
func (e *Engine) Apply(reports []domain.Report, c Criteria) []domain.Report {
	dept := strings.TrimSpace(c.Department)
	return e.ApplyTagged(reports, c, dept == "" || hasExactDepartment(reports, dept))
}

// ApplyTagged filters a pre-narrowed candidate set. tagged says whether any report in the
// full collection carries the requested department exactly; it is ignored without a
// department criterion.
func (e *Engine) ApplyTagged(reports []domain.Report, c Criteria, tagged bool) []domain.Report {
	mode := departmentExact
	if strings.TrimSpace(c.Department) != "" && !tagged {
		mode = departmentKeywords
	}
	pred := e.buildPredicate(c, mode)

	out := make([]domain.Report, 0, len(reports))
	for i := range reports {
		if pred(&reports[i]) {
			out = append(out, reports[i])
		}
	}
	return out
}

// StoreQuery translates the criteria the database can evaluate exactly. Search and
// department stay in memory; callers decide the department fallback separately and pass it
// to ApplyTagged.
// Unknown enum values are not pushed down; Apply rejects every report for them.
func (e *Engine) StoreQuery(c Criteria) repository.ReportQuery {
	var q repository.ReportQuery
	if raw := strings.TrimSpace(c.Status); raw != "" {
		if status, err := domain.ParseStatus(raw); err == nil {
			q.Statuses = []domain.ReportStatus{status}
		}
	}
	if raw := strings.TrimSpace(c.Priority); raw != "" {
		if priority, err := domain.ParsePriority(raw); err == nil {
			q.Priorities = []domain.ReportPriority{priority}
		}
	}
	if category := strings.TrimSpace(c.Category); category != "" {
		q.Category = &category
	}
	q.CreatedFrom = c.DateFrom
	q.CreatedTo = c.DateTo
	return q
}

func (e *Engine) buildPredicate(c Criteria, mode departmentMode) Predicate {
	var preds []Predicate

	if raw := strings.TrimSpace(c.Status); raw != "" {
		status, err := domain.ParseStatus(raw)
		if err != nil {
			return matchNone
		}
		preds = append(preds, func(r *domain.Report) bool { return r.Status == status })
	}
	if raw := strings.TrimSpace(c.Priority); raw != "" {
		priority, err := domain.ParsePriority(raw)
		if err != nil {
			return matchNone
		}
		preds = append(preds, func(r *domain.Report) bool { return r.Priority == priority })
	}
	if category := strings.TrimSpace(c.Category); category != "" {
		preds = append(preds, func(r *domain.Report) bool { return strings.EqualFold(r.Category, category) })
	}
	if term := strings.ToLower(strings.TrimSpace(c.Search)); term != "" {
		preds = append(preds, func(r *domain.Report) bool { return matchesSearch(r, term) })
	}
	if dept := strings.TrimSpace(c.Department); dept != "" {
		if mode == departmentKeywords {
			preds = append(preds, func(r *domain.Report) bool { return e.rules.MatchesCategory(dept, r.Category) })
		} else {
			preds = append(preds, func(r *domain.Report) bool { return strings.EqualFold(r.DepartmentTag(), dept) })
		}
	}
	if c.DateFrom != nil {
		from := *c.DateFrom
		preds = append(preds, func(r *domain.Report) bool { return !r.CreatedAt.Before(from) })
	}
	if c.DateTo != nil {
		to := *c.DateTo
		preds = append(preds, func(r *domain.Report) bool { return !r.CreatedAt.After(to) })
	}

	return func(r *domain.Report) bool {
		for _, p := range preds {
			if !p(r) {
				return false
			}
		}
		return true
	}
}

func matchNone(*domain.Report) bool { return false }

func matchesSearch(r *domain.Report, term string) bool {
	if strings.Contains(strings.ToLower(r.Title), term) {
		return true
	}
	if r.Address != nil && strings.Contains(strings.ToLower(*r.Address), term) {
		return true
	}
	if r.Description != nil && strings.Contains(strings.ToLower(*r.Description), term) {
		return true
	}
	return false
}

func hasExactDepartment(reports []domain.Report, dept string) bool {
	for i := range reports {
		if strings.EqualFold(reports[i].DepartmentTag(), dept) {
			return true
		}
	}
	return false
}
