package auth

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicdesk/triage-service/internal/domain"
	apperrors "github.com/civicdesk/triage-service/pkg/util/errorutil"
)

func TestTokenManager(t *testing.T) {
	tm := NewTokenManager("secret", "authenticated", []string{"Admin", "super"})

	t.Run("RoundTrip", func(t *testing.T) {
		token, expires, err := tm.GenerateToken(domain.Session{
			UserID:     "u-1",
			Email:      "asha@example.org",
			Name:       "Asha",
			Department: "water",
			Role:       domain.StaffRoleStaff,
		}, time.Minute)
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().Add(time.Minute), expires, 5*time.Second)

		claims, err := tm.ParseToken(token)
		require.NoError(t, err)
		session := tm.Session(claims)
		assert.Equal(t, "u-1", session.UserID)
		assert.Equal(t, "water", session.Department)
		assert.Equal(t, "Asha", session.DisplayName())
		assert.False(t, session.IsAdmin())
	})

	t.Run("AdminRole", func(t *testing.T) {
		token, _, err := tm.GenerateToken(domain.Session{UserID: "a-1", Role: domain.StaffRoleAdmin}, time.Minute)
		require.NoError(t, err)
		claims, err := tm.ParseToken(token)
		require.NoError(t, err)
		assert.True(t, tm.Session(claims).IsAdmin())
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other := NewTokenManager("other", "authenticated", nil)
		token, _, err := other.GenerateToken(domain.Session{UserID: "u-1"}, time.Minute)
		require.NoError(t, err)
		_, err = tm.ParseToken(token)
		assert.Error(t, err)
	})

	t.Run("WrongAudience", func(t *testing.T) {
		other := NewTokenManager("secret", "anon", nil)
		token, _, err := other.GenerateToken(domain.Session{UserID: "u-1"}, time.Minute)
		require.NoError(t, err)
		_, err = tm.ParseToken(token)
		assert.Error(t, err)
	})
}

type stubProfiles struct {
	profile *domain.Profile
}

func (s *stubProfiles) Count(context.Context) (int, error) { return 1, nil }

func (s *stubProfiles) GetByID(_ context.Context, id string) (*domain.Profile, error) {
	if s.profile == nil || s.profile.ID != id {
		return nil, pgx.ErrNoRows
	}
	return s.profile, nil
}

func (s *stubProfiles) List(context.Context, int) ([]domain.Profile, error) { return nil, nil }

func newTestApp(mw *AuthMiddleware, guards ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.SendStatus(apperrors.ToDomainError(err).HTTPStatus)
		},
	})
	handlers := append([]fiber.Handler{mw.Handle}, guards...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		session, _ := SessionFromContext(c)
		return c.SendString(session.Department)
	})
	app.Get("/me", handlers...)
	return app
}

func TestAuthMiddleware(t *testing.T) {
	tm := NewTokenManager("secret", "", []string{"admin"})
	dept := "roads"
	profiles := &stubProfiles{profile: &domain.Profile{ID: "u-2", Department: &dept}}
	mw := NewAuthMiddleware(tm, profiles, nil)

	staffToken, _, err := tm.GenerateToken(domain.Session{UserID: "u-1", Department: "water"}, time.Minute)
	require.NoError(t, err)
	noDeptToken, _, err := tm.GenerateToken(domain.Session{UserID: "u-2"}, time.Minute)
	require.NoError(t, err)

	cases := []struct {
		name   string
		target string
		header string
		guards []fiber.Handler
		status int
		body   string
	}{
		{name: "MissingHeader", target: "/me", status: http.StatusUnauthorized},
		{name: "MalformedHeader", target: "/me", header: "Token abc", status: http.StatusUnauthorized},
		{name: "BadToken", target: "/me", header: "Bearer nope", status: http.StatusUnauthorized},
		{name: "Valid", target: "/me", header: "Bearer " + staffToken, status: http.StatusOK, body: "water"},
		{name: "QueryToken", target: "/me?access_token=" + staffToken, status: http.StatusOK, body: "water"},
		{name: "DepartmentFromProfile", target: "/me", header: "Bearer " + noDeptToken, status: http.StatusOK, body: "roads"},
		{name: "AdminOnly", target: "/me", header: "Bearer " + staffToken, guards: []fiber.Handler{RequireAdmin()}, status: http.StatusForbidden},
		{name: "StaffGuard", target: "/me", header: "Bearer " + staffToken, guards: []fiber.Handler{RequireStaff()}, status: http.StatusOK, body: "water"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newTestApp(mw, tc.guards...)
			req := httptest.NewRequest(http.MethodGet, tc.target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tc.status, resp.StatusCode)
			if tc.body != "" {
				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.Equal(t, tc.body, string(body))
			}
		})
	}
}
