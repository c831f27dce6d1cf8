package auth

import (
	"errors"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/civicdesk/triage-service/internal/domain"
)

// TokenManager validates bearer tokens issued by the hosted auth provider. It can also
// sign tokens with the shared secret for local tooling and tests.
type TokenManager struct {
	secret     []byte
	audience   string
	adminRoles map[string]struct{}
}

// NewTokenManager builds a new manager.
func NewTokenManager(secret, audience string, adminRoles []string) *TokenManager {
	roles := make(map[string]struct{}, len(adminRoles))
	for _, role := range adminRoles {
		if role = strings.ToLower(strings.TrimSpace(role)); role != "" {
			roles[role] = struct{}{}
		}
	}
	return &TokenManager{secret: []byte(secret), audience: audience, adminRoles: roles}
}

// Metadata mirrors the provider's metadata objects.
type Metadata struct {
	FullName   string `json:"full_name,omitempty"`
	Department string `json:"department,omitempty"`
	Role       string `json:"role,omitempty"`
}

// Claims describes JWT payload.
type Claims struct {
	Email        string   `json:"email,omitempty"`
	Role         string   `json:"role,omitempty"`
	AppMetadata  Metadata `json:"app_metadata"`
	UserMetadata Metadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

// GenerateToken signs a token carrying the session's identity.
func (tm *TokenManager) GenerateToken(session domain.Session, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	now := time.Now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		Email: session.Email,
		Role:  "authenticated",
		AppMetadata: Metadata{
			Role: string(session.Role),
		},
		UserMetadata: Metadata{
			FullName:   session.Name,
			Department: session.Department,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   session.UserID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	if tm.audience != "" {
		claims.Audience = jwt.ClaimStrings{tm.audience}
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expiresAt, nil
}

// ParseToken validates and returns claims.
func (tm *TokenManager) ParseToken(tokenStr string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if tm.audience != "" {
		opts = append(opts, jwt.WithAudience(tm.audience))
	}
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return tm.secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token claims")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// Session converts verified claims into the session passed to services.
func (tm *TokenManager) Session(claims *Claims) *domain.Session {
	session := &domain.Session{
		UserID:     claims.Subject,
		Email:      claims.Email,
		Name:       claims.UserMetadata.FullName,
		Department: claims.UserMetadata.Department,
		Role:       domain.StaffRoleStaff,
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	role := strings.ToLower(strings.TrimSpace(claims.AppMetadata.Role))
	if role == "" {
		role = strings.ToLower(strings.TrimSpace(claims.UserMetadata.Role))
	}
	if _, ok := tm.adminRoles[role]; ok {
		session.Role = domain.StaffRoleAdmin
	}
	return session
}
