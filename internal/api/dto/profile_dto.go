package dto

import (
	"time"

	"github.com/civicdesk/triage-service/internal/domain"
)

// ProfileListQuery captures the admin profile listing options.
type ProfileListQuery struct {
	Limit int `query:"limit" validate:"gte=0,lte=500"`
}

// ProfileResponse represents a staff profile.
type ProfileResponse struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FullName   *string   `json:"full_name"`
	AvatarURL  *string   `json:"avatar_url"`
	Department *string   `json:"department"`
	Role       *string   `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
}

// SessionResponse describes the authenticated caller.
type SessionResponse struct {
	UserID     string           `json:"user_id"`
	Email      string           `json:"email"`
	Name       string           `json:"name"`
	Department string           `json:"department"`
	Role       domain.StaffRole `json:"role"`
	ExpiresAt  time.Time        `json:"expires_at"`
}

// NewProfileResponse maps a profile.
func NewProfileResponse(p *domain.Profile) ProfileResponse {
	return ProfileResponse{
		ID:         p.ID,
		Email:      p.Email,
		FullName:   p.FullName,
		AvatarURL:  p.AvatarURL,
		Department: p.Department,
		Role:       p.Role,
		CreatedAt:  p.CreatedAt,
	}
}

// NewSessionResponse maps a session.
func NewSessionResponse(s *domain.Session) SessionResponse {
	return SessionResponse{
		UserID:     s.UserID,
		Email:      s.Email,
		Name:       s.DisplayName(),
		Department: s.Department,
		Role:       s.Role,
		ExpiresAt:  s.ExpiresAt,
	}
}
