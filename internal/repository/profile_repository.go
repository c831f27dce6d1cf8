package repository

import (
	"context"

	"github.com/civicdesk/triage-service/internal/domain"
)

// ProfileRepository reads the user collection maintained by the hosted auth provider.
type ProfileRepository interface {
	Count(ctx context.Context) (int, error)
	GetByID(ctx context.Context, id string) (*domain.Profile, error)
	List(ctx context.Context, limit int) ([]domain.Profile, error)
}

type profileRepository struct {
	db DB
}

// NewProfileRepository returns a Postgres-backed implementation.
func NewProfileRepository(db DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Count(ctx context.Context) (int, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&count); err != nil {
		return 0, err
	}
	return int(count), nil
}

func (r *profileRepository) GetByID(ctx context.Context, id string) (*domain.Profile, error) {
	const query = `
        SELECT id, email, full_name, avatar_url, department, role, created_at
        FROM profiles WHERE id=$1`

	var profile domain.Profile
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&profile.ID,
		&profile.Email,
		&profile.FullName,
		&profile.AvatarURL,
		&profile.Department,
		&profile.Role,
		&profile.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) List(ctx context.Context, limit int) ([]domain.Profile, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `
        SELECT id, email, full_name, avatar_url, department, role, created_at
        FROM profiles ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Profile
	for rows.Next() {
		var profile domain.Profile
		if err := rows.Scan(
			&profile.ID,
			&profile.Email,
			&profile.FullName,
			&profile.AvatarURL,
			&profile.Department,
			&profile.Role,
			&profile.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, profile)
	}
	return result, rows.Err()
}
