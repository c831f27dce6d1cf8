package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/civicdesk/triage-service/internal/domain"
)

// ReportQuery is the store-side half of a filter: predicates the database can evaluate.
type ReportQuery struct {
	Statuses           []domain.ReportStatus
	Priorities         []domain.ReportPriority
	Category           *string
	CreatedFrom        *time.Time
	CreatedTo          *time.Time
	RequireCoordinates bool
	Limit              int
}

// ReportPage is a fetched set of reports. Skipped counts rows rejected at decode time.
type ReportPage struct {
	Reports []domain.Report
	Skipped int
}

// ReportRepository encapsulates report persistence.
type ReportRepository interface {
	List(ctx context.Context, query ReportQuery) (ReportPage, error)
	GetByID(ctx context.Context, id string) (*domain.Report, error)
	UpdateStatus(ctx context.Context, id string, status domain.ReportStatus, at time.Time) (*domain.Report, error)
	UpdateAssignee(ctx context.Context, id string, assignee *string) (*domain.Report, error)
	AppendComment(ctx context.Context, id string, comment domain.Comment) (*domain.Report, error)
	CountByStatus(ctx context.Context) (map[domain.ReportStatus]int, error)
	HasDepartment(ctx context.Context, department string) (bool, error)
}

type reportRepository struct {
	db DB
}

// NewReportRepository instantiates repository.
func NewReportRepository(db DB) ReportRepository {
	return &reportRepository{db: db}
}

const reportColumns = `r.id, r.title, r.description, r.category, r.priority, r.status,
               r.location_latitude, r.location_longitude, r.address, r.user_id,
               COALESCE(p.full_name, p.email, ''), r.department, r.assigned_to, r.image_url,
               r.comments, r.created_at, r.updated_at, r.resolved_at`

const reportJoin = `LEFT JOIN profiles p ON p.id = r.user_id`

func (r *reportRepository) List(ctx context.Context, q ReportQuery) (ReportPage, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if len(q.Statuses) > 0 {
		placeholders := make([]string, len(q.Statuses))
		for i, status := range q.Statuses {
			args = append(args, string(status))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("r.status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(q.Priorities) > 0 {
		placeholders := make([]string, len(q.Priorities))
		for i, pr := range q.Priorities {
			args = append(args, string(pr))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("r.priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if q.Category != nil && strings.TrimSpace(*q.Category) != "" {
		args = append(args, strings.TrimSpace(*q.Category))
		clauses = append(clauses, fmt.Sprintf("r.category = $%d", len(args)))
	}
	if q.CreatedFrom != nil {
		args = append(args, *q.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("r.created_at >= $%d", len(args)))
	}
	if q.CreatedTo != nil {
		args = append(args, *q.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("r.created_at <= $%d", len(args)))
	}
	if q.RequireCoordinates {
		clauses = append(clauses, "r.location_latitude IS NOT NULL AND r.location_longitude IS NOT NULL")
	}

	query := fmt.Sprintf(`SELECT %s FROM reports r %s WHERE %s ORDER BY r.created_at DESC`,
		reportColumns, reportJoin, strings.Join(clauses, " AND "))
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return ReportPage{}, err
	}
	defer rows.Close()
	return scanReports(rows)
}

func (r *reportRepository) GetByID(ctx context.Context, id string) (*domain.Report, error) {
	query := fmt.Sprintf(`SELECT %s FROM reports r %s WHERE r.id=$1`, reportColumns, reportJoin)
	return scanReport(r.db.QueryRow(ctx, query, id))
}

func (r *reportRepository) UpdateStatus(ctx context.Context, id string, status domain.ReportStatus, at time.Time) (*domain.Report, error) {
	// resolved_at is stamped once; later transitions and re-resolutions keep the first value.
	const update = `
        UPDATE reports SET status=$1,
            resolved_at = CASE WHEN $1 = 'resolved' THEN COALESCE(resolved_at, $2) ELSE resolved_at END,
            updated_at=$2
        WHERE id=$3
        RETURNING *`
	return r.mutate(ctx, update, string(status), at, id)
}

func (r *reportRepository) UpdateAssignee(ctx context.Context, id string, assignee *string) (*domain.Report, error) {
	const update = `
        UPDATE reports SET assigned_to=$1, updated_at=NOW()
        WHERE id=$2
        RETURNING *`
	return r.mutate(ctx, update, assignee, id)
}

func (r *reportRepository) AppendComment(ctx context.Context, id string, comment domain.Comment) (*domain.Report, error) {
	payload, err := json.Marshal(comment)
	if err != nil {
		return nil, err
	}
	const update = `
        UPDATE reports SET comments = COALESCE(comments, '[]'::jsonb) || jsonb_build_array($1::jsonb),
            updated_at=NOW()
        WHERE id=$2
        RETURNING *`
	return r.mutate(ctx, update, string(payload), id)
}

func (r *reportRepository) CountByStatus(ctx context.Context) (map[domain.ReportStatus]int, error) {
	const query = `SELECT status, COUNT(*) FROM reports GROUP BY status`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[domain.ReportStatus]int, len(domain.AllStatuses))
	for _, status := range domain.AllStatuses {
		counts[status] = 0
	}
	for rows.Next() {
		var (
			raw   string
			count int64
		)
		if err := rows.Scan(&raw, &count); err != nil {
			return nil, err
		}
		status, err := domain.ParseStatus(raw)
		if err != nil {
			continue
		}
		counts[status] += int(count)
	}
	return counts, rows.Err()
}

// HasDepartment reports whether any report carries the department tag, ignoring case and
// every other filter dimension.
func (r *reportRepository) HasDepartment(ctx context.Context, department string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM reports WHERE LOWER(department) = LOWER($1))`
	var exists bool
	if err := r.db.QueryRow(ctx, query, strings.TrimSpace(department)).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// mutate runs an UPDATE ... RETURNING * and re-reads the row with the reporter join.
func (r *reportRepository) mutate(ctx context.Context, update string, args ...any) (*domain.Report, error) {
	query := fmt.Sprintf(`WITH r AS (%s) SELECT %s FROM r %s`, update, reportColumns, reportJoin)
	return scanReport(r.db.QueryRow(ctx, query, args...))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReport(row rowScanner) (*domain.Report, error) {
	var (
		report   domain.Report
		status   string
		priority string
		comments []byte
	)
	if err := row.Scan(
		&report.ID,
		&report.Title,
		&report.Description,
		&report.Category,
		&priority,
		&status,
		&report.Latitude,
		&report.Longitude,
		&report.Address,
		&report.ReporterID,
		&report.Reporter,
		&report.Department,
		&report.AssignedTo,
		&report.ImageURL,
		&comments,
		&report.CreatedAt,
		&report.UpdatedAt,
		&report.ResolvedAt,
	); err != nil {
		return nil, err
	}

	var err error
	if report.Status, err = domain.ParseStatus(status); err != nil {
		return nil, &DecodeError{ReportID: report.ID, Err: err}
	}
	if report.Priority, err = domain.ParsePriority(priority); err != nil {
		return nil, &DecodeError{ReportID: report.ID, Err: err}
	}
	if len(comments) > 0 {
		if err := json.Unmarshal(comments, &report.Comments); err != nil {
			return nil, &DecodeError{ReportID: report.ID, Err: err}
		}
	}
	return &report, nil
}

func scanReports(rows pgx.Rows) (ReportPage, error) {
	page := ReportPage{Reports: []domain.Report{}}
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			if IsDecodeError(err) {
				page.Skipped++
				continue
			}
			return ReportPage{}, err
		}
		page.Reports = append(page.Reports, *report)
	}
	return page, rows.Err()
}
