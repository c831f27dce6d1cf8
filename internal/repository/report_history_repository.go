package repository

import (
	"context"

	"github.com/civicdesk/triage-service/internal/domain"
)

// ReportHistoryRepository stores audit entries.
type ReportHistoryRepository interface {
	Create(ctx context.Context, history *domain.ReportHistory) error
	ListByReport(ctx context.Context, reportID string) ([]domain.ReportHistory, error)
}

type reportHistoryRepository struct {
	db DB
}

// NewReportHistoryRepository builds repository.
func NewReportHistoryRepository(db DB) ReportHistoryRepository {
	return &reportHistoryRepository{db: db}
}

func (r *reportHistoryRepository) Create(ctx context.Context, history *domain.ReportHistory) error {
	const query = `
        INSERT INTO report_history (report_id, changed_by_id, change_type, old_value, new_value)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.db.QueryRow(ctx, query,
		history.ReportID,
		history.ChangedByID,
		string(history.ChangeType),
		history.OldValue,
		history.NewValue,
	).Scan(&history.ID, &history.CreatedAt)
}

func (r *reportHistoryRepository) ListByReport(ctx context.Context, reportID string) ([]domain.ReportHistory, error) {
	const query = `
        SELECT id, report_id, changed_by_id, change_type, old_value, new_value, created_at
        FROM report_history WHERE report_id=$1 ORDER BY created_at ASC`
	rows, err := r.db.Query(ctx, query, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.ReportHistory{}
	for rows.Next() {
		var (
			history    domain.ReportHistory
			changeType string
		)
		if err := rows.Scan(
			&history.ID,
			&history.ReportID,
			&history.ChangedByID,
			&changeType,
			&history.OldValue,
			&history.NewValue,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		history.ChangeType = domain.ReportChangeType(changeType)
		result = append(result, history)
	}
	return result, rows.Err()
}
