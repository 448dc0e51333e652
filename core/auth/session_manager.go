package auth

import (
	"context"
	"strings"
	"time"

	"clubhub/config"
	"clubhub/core/store"
	"clubhub/core/utils"

	"github.com/gofrs/uuid/v5"
)

const sessionTokenBytes = 32

// SessionManager owns the bearer-session lifecycle: issuance with the
// single-active-session policy, per-request validation, and the
// periodic timeout sweep.
type SessionManager struct {
	sessions store.SessionStore
	users    store.UsersStore
	cfg      *config.AppConfig
	logger   *utils.Logger
}

func NewSessionManager(sessions store.SessionStore, users store.UsersStore, cfg *config.AppConfig, logger *utils.Logger) *SessionManager {
	return &SessionManager{sessions: sessions, users: users, cfg: cfg, logger: logger}
}

func (m *SessionManager) TTL() time.Duration {
	if m.cfg != nil && m.cfg.SessionTTL > 0 {
		return m.cfg.SessionTTL
	}
	return 6 * time.Hour
}

// Issue creates a session for the user, first terminating any other
// active sessions they hold. via2FA only changes the recorded reason
// on the displaced sessions.
func (m *SessionManager) Issue(ctx context.Context, user *store.User, ip, userAgent string, via2FA bool) (*store.SessionRecord, error) {
	reason := store.LogoutNewLogin
	if via2FA {
		reason = store.LogoutNewLoginWith2FA
	}
	ipChanged := false
	prev, err := m.sessions.ListActiveByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	for _, p := range prev {
		if strings.TrimSpace(p.IP) != "" && p.IP != ip {
			ipChanged = true
		}
	}
	if len(prev) > 0 {
		if _, err := m.sessions.TerminateAllForUser(ctx, user.ID, reason, "system"); err != nil {
			return nil, err
		}
	}
	id, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	token, err := NewToken(sessionTokenBytes)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := &store.SessionRecord{
		ID:             id.String(),
		Token:          token,
		UserID:         user.ID,
		Username:       user.Username,
		IP:             ip,
		UserAgent:      userAgent,
		IPChanged:      ipChanged,
		CreatedAt:      now,
		LastActivityAt: now,
		ExpiresAt:      now.Add(m.TTL()),
		Active:         true,
	}
	if err := m.sessions.Save(ctx, sess); err != nil {
		return nil, err
	}
	if m.logger != nil {
		m.logger.Printf("session issued user=%s id=%s", user.Username, sess.ID)
	}
	return sess, nil
}

// Validation is the outcome of a bearer-token check. Code is empty on
// success; otherwise it is one of the session-invalidation codes.
type Validation struct {
	Session *store.SessionRecord
	User    *store.User
	Code    string
	Message string
}

func (m *SessionManager) Validate(ctx context.Context, token string) (*Validation, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return &Validation{Code: CodeInvalidToken, Message: "missing token"}, nil
	}
	sess, err := m.sessions.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return &Validation{Code: CodeInvalidToken, Message: "unknown token"}, nil
	}
	if !sess.Active {
		if sess.LogoutReason == store.LogoutTimeout {
			return &Validation{Session: sess, Code: CodeSessionExpired, Message: "session expired"}, nil
		}
		return &Validation{Session: sess, Code: CodeSessionTerminated, Message: "session terminated: " + sess.LogoutReason}, nil
	}
	now := time.Now().UTC()
	if !sess.ExpiresAt.After(now) {
		_ = m.sessions.Terminate(ctx, sess.ID, store.LogoutTimeout, "system")
		return &Validation{Session: sess, Code: CodeTokenExpired, Message: "token expired"}, nil
	}
	user, err := m.users.GetByID(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		_ = m.sessions.Terminate(ctx, sess.ID, store.LogoutUserDeleted, "system")
		return &Validation{Session: sess, Code: CodeUserInactive, Message: "user no longer exists"}, nil
	}
	if !user.Active {
		_ = m.sessions.Terminate(ctx, sess.ID, store.LogoutAccountDisabled, "system")
		return &Validation{Session: sess, Code: CodeUserInactive, Message: "account disabled"}, nil
	}
	return &Validation{Session: sess, User: user}, nil
}

// Sweep marks timed-out sessions inactive. Run by the cron scheduler.
func (m *SessionManager) Sweep(ctx context.Context) (int64, error) {
	n, err := m.sessions.TerminateExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if n > 0 && m.logger != nil {
		m.logger.Printf("session sweep: %d expired", n)
	}
	return n, nil
}
