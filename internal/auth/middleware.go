package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/civicdesk/triage-service/internal/domain"
	"github.com/civicdesk/triage-service/internal/repository"
	apperrors "github.com/civicdesk/triage-service/pkg/util/errorutil"
)

const sessionKey = "auth_session"

// AuthMiddleware validates bearer tokens and attaches the caller's session.
type AuthMiddleware struct {
	tokens   *TokenManager
	profiles repository.ProfileRepository
	logger   *zap.Logger
}

// NewAuthMiddleware constructs middleware. profiles may be nil; it only fills a department
// missing from the token.
func NewAuthMiddleware(tokens *TokenManager, profiles repository.ProfileRepository, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{tokens: tokens, profiles: profiles, logger: logger}
}

// Handle enforces authentication for protected routes. Event streams may pass the token
// as the access_token query parameter since browsers cannot set headers on them.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	raw, err := bearerToken(c)
	if err != nil {
		return err
	}

	claims, err := m.tokens.ParseToken(raw)
	if err != nil {
		return apperrors.NewUnauthorized("invalid token")
	}
	session := m.tokens.Session(claims)

	if session.Department == "" && m.profiles != nil {
		profile, err := m.profiles.GetByID(c.UserContext(), session.UserID)
		switch {
		case err == nil:
			if profile.Department != nil {
				session.Department = *profile.Department
			}
			if session.Name == "" && profile.FullName != nil {
				session.Name = *profile.FullName
			}
		case apperrors.IsNotFound(err):
		default:
			m.logger.Warn("profile lookup failed", zap.String("user_id", session.UserID), zap.Error(err))
		}
	}

	c.Locals(sessionKey, session)
	return c.Next()
}

func bearerToken(c *fiber.Ctx) (string, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		if token := c.Query("access_token"); token != "" {
			return token, nil
		}
		return "", apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", apperrors.NewUnauthorized("invalid authorization header")
	}
	return strings.TrimSpace(parts[1]), nil
}

// SessionFromContext retrieves the authenticated session.
func SessionFromContext(c *fiber.Ctx) (*domain.Session, bool) {
	val := c.Locals(sessionKey)
	if val == nil {
		return nil, false
	}
	session, ok := val.(*domain.Session)
	return session, ok
}
