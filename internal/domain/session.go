package domain

import "time"

// StaffRole enumerates dashboard operator roles.
type StaffRole string

const (
	StaffRoleStaff StaffRole = "staff"
	StaffRoleAdmin StaffRole = "admin"
)

// Session identifies the staff member acting on the dashboard. It is built from the
// hosted auth provider's token and passed explicitly to services.
type Session struct {
	UserID     string
	Email      string
	Name       string
	Department string
	Role       StaffRole
	ExpiresAt  time.Time
}

// IsAdmin reports whether the session may see every department.
func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == StaffRoleAdmin
}

// DisplayName prefers the profile name, then the email.
func (s *Session) DisplayName() string {
	if s == nil {
		return ""
	}
	if s.Name != "" {
		return s.Name
	}
	return s.Email
}

// Profile is a row of the separate user collection.
type Profile struct {
	ID         string
	Email      string
	FullName   *string
	AvatarURL  *string
	Department *string
	Role       *string
	CreatedAt  time.Time
}
