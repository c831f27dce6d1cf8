package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/civicdesk/triage-service/internal/api/dto"
	"github.com/civicdesk/triage-service/internal/domain"
	apperrors "github.com/civicdesk/triage-service/pkg/util/errorutil"
)

// ProfileReader exposes staff profiles.
type ProfileReader interface {
	ListProfiles(ctx context.Context, session *domain.Session, limit int) ([]domain.Profile, error)
	GetProfile(ctx context.Context, session *domain.Session, id string) (*domain.Profile, error)
}

// StaffHandler exposes the caller's session and staff profile endpoints.
type StaffHandler struct {
	profiles ProfileReader
}

// NewStaffHandler constructs handler.
func NewStaffHandler(profiles ProfileReader) *StaffHandler {
	return &StaffHandler{profiles: profiles}
}

// Me GET /me.
func (h *StaffHandler) Me(c *fiber.Ctx) error {
	session, err := requireSession(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewSessionResponse(session)})
}

// ListProfiles GET /staff/profiles.
func (h *StaffHandler) ListProfiles(c *fiber.Ctx) error {
	session, err := requireSession(c)
	if err != nil {
		return err
	}
	var q dto.ProfileListQuery
	if err := c.QueryParser(&q); err != nil {
		return apperrors.NewValidationError("invalid query", nil)
	}
	if err := dto.Validate(q); err != nil {
		return err
	}
	profiles, err := h.profiles.ListProfiles(c.UserContext(), session, q.Limit)
	if err != nil {
		return err
	}
	items := make([]dto.ProfileResponse, 0, len(profiles))
	for i := range profiles {
		items = append(items, dto.NewProfileResponse(&profiles[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetProfile GET /staff/profiles/:id.
func (h *StaffHandler) GetProfile(c *fiber.Ctx) error {
	session, err := requireSession(c)
	if err != nil {
		return err
	}
	profile, err := h.profiles.GetProfile(c.UserContext(), session, c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewProfileResponse(profile)})
}
