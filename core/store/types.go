package store

import "time"

// Logout reasons recorded when a session goes inactive. An active
// session has no reason; exactly one is set on termination.
const (
	LogoutExplicit          = "explicit"
	LogoutTimeout           = "timeout"
	LogoutNewLogin          = "new-login"
	LogoutNewLoginWith2FA   = "new-login-with-2fa"
	LogoutAdmin             = "admin-logout"
	LogoutUserDeleted       = "user-deleted"
	LogoutAccountDisabled   = "account-disabled"
	LogoutSecurityBreach    = "security-breach"
	LogoutMaintenance       = "maintenance"
	LogoutTwoFactorDisabled = "two-factor-disabled"
)

type User struct {
	ID               int64
	Username         string
	PasswordHash     string
	PasswordSalt     string
	RoleID           int64
	Active           bool
	TwoFactorEnabled bool
	TOTPSecretEnc    string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Role struct {
	ID          int64
	Name        string
	Permissions []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type SessionRecord struct {
	ID             string
	Token          string
	UserID         int64
	Username       string
	IP             string
	UserAgent      string
	IPChanged      bool
	CreatedAt      time.Time
	LastActivityAt time.Time
	ExpiresAt      time.Time
	Active         bool
	LogoutAt       *time.Time
	LogoutReason   string
	TerminatedBy   string
}

// Duration is the session's final length for terminated sessions, or
// the length so far for active ones.
func (s *SessionRecord) Duration(now time.Time) time.Duration {
	if s == nil {
		return 0
	}
	if !s.Active && s.LogoutAt != nil {
		return s.LogoutAt.Sub(s.CreatedAt)
	}
	return now.Sub(s.CreatedAt)
}

type ChallengeRecord struct {
	Token            string
	UserID           int64
	IP               string
	UserAgent        string
	SetupReason      string
	PendingSecretEnc string
	CreatedAt        time.Time
	ExpiresAt        time.Time
}

type ActivityRecord struct {
	ID           int64     `json:"id"`
	At           time.Time `json:"at"`
	UserID       *int64    `json:"userId,omitempty"`
	Username     string    `json:"username"`
	Action       string    `json:"action"`
	Status       string    `json:"status"`
	ResourceType string    `json:"resourceType"`
	Details      string    `json:"details,omitempty"`
	IP           string    `json:"ip"`
}

// ActivityFilter narrows List queries. Zero values mean "no filter".
type ActivityFilter struct {
	UserID       *int64
	Action       string
	Status       string
	ResourceType string
	From         *time.Time
	To           *time.Time
	Page         int
	PerPage      int
}

type ActivityStats struct {
	Total       int64   `json:"total"`
	Success     int64   `json:"success"`
	Failure     int64   `json:"failure"`
	Today       int64   `json:"today"`
	SuccessRate float64 `json:"successRate"`
}
