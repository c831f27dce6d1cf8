package service

import (
	"context"

	"github.com/civicdesk/triage-service/internal/domain"
	"github.com/civicdesk/triage-service/internal/repository"
	apperrors "github.com/civicdesk/triage-service/pkg/util/errorutil"
)

// StaffService exposes the profile collection to administrators.
type StaffService struct {
	profiles repository.ProfileRepository
}

// NewStaffService constructs the service.
func NewStaffService(profiles repository.ProfileRepository) *StaffService {
	return &StaffService{profiles: profiles}
}

func requireAdmin(session *domain.Session) error {
	if !session.IsAdmin() {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// ListProfiles returns the newest profiles.
func (s *StaffService) ListProfiles(ctx context.Context, session *domain.Session, limit int) ([]domain.Profile, error) {
	if err := requireAdmin(session); err != nil {
		return nil, err
	}
	profiles, err := s.profiles.List(ctx, limit)
	if err != nil {
		return nil, apperrors.NewUnavailable("could not load profiles", err)
	}
	if profiles == nil {
		profiles = []domain.Profile{}
	}
	return profiles, nil
}

// GetProfile returns one profile. Staff may read their own profile.
func (s *StaffService) GetProfile(ctx context.Context, session *domain.Session, id string) (*domain.Profile, error) {
	if session == nil {
		return nil, apperrors.NewUnauthorized("staff session required")
	}
	if session.UserID != id {
		if err := requireAdmin(session); err != nil {
			return nil, err
		}
	}
	profile, err := s.profiles.GetByID(ctx, id)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.NewNotFound("profile", map[string]any{"id": id})
		}
		return nil, apperrors.NewUnavailable("could not load profile", err)
	}
	return profile, nil
}
