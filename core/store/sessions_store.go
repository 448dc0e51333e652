package store

import (
	"context"
	"database/sql"
	"time"
)

type SessionStore interface {
	Save(ctx context.Context, sess *SessionRecord) error
	GetByToken(ctx context.Context, token string) (*SessionRecord, error)
	GetByID(ctx context.Context, id string) (*SessionRecord, error)
	ListActiveByUser(ctx context.Context, userID int64) ([]SessionRecord, error)
	ListAll(ctx context.Context) ([]SessionRecord, error)
	Touch(ctx context.Context, id string, now time.Time) error
	MarkIPChanged(ctx context.Context, id string) error
	Terminate(ctx context.Context, id string, reason string, by string) error
	TerminateAllForUser(ctx context.Context, userID int64, reason string, by string) (int64, error)
	TerminateExpired(ctx context.Context, now time.Time) (int64, error)
}

type sessionsStore struct {
	db *sql.DB
}

func NewSessionsStore(db *sql.DB) SessionStore {
	return &sessionsStore{db: db}
}

const sessionColumns = `id, token, user_id, username, ip, user_agent, ip_changed, created_at, last_activity_at, expires_at, active, logout_at, logout_reason, terminated_by`

func (s *sessionsStore) Save(ctx context.Context, sess *SessionRecord) error {
	now := time.Now().UTC()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = now
	}
	if sess.LastActivityAt.IsZero() {
		sess.LastActivityAt = sess.CreatedAt
	}
	var reason any
	if sess.LogoutReason != "" {
		reason = sess.LogoutReason
	}
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO sessions(`+sessionColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		sess.ID, sess.Token, sess.UserID, sess.Username, sess.IP, sess.UserAgent, boolToInt(sess.IPChanged),
		sess.CreatedAt, sess.LastActivityAt, sess.ExpiresAt, boolToInt(sess.Active),
		nullableTime(sess.LogoutAt), reason, sess.TerminatedBy)
	return err
}

// GetByToken is the auth lookup. It returns the record even when the
// session is terminated or expired; middleware decides which error
// code the caller sees.
func (s *sessionsStore) GetByToken(ctx context.Context, token string) (*SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE token=?`, token)
	return scanSession(row)
}

func (s *sessionsStore) GetByID(ctx context.Context, id string) (*SessionRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id=?`, id)
	return scanSession(row)
}

func (s *sessionsStore) ListActiveByUser(ctx context.Context, userID int64) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE user_id=? AND active=1 ORDER BY last_activity_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return scanSessions(rows)
}

func (s *sessionsStore) ListAll(ctx context.Context) ([]SessionRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	return scanSessions(rows)
}

func (s *sessionsStore) Touch(ctx context.Context, id string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET last_activity_at=? WHERE id=? AND active=1 AND last_activity_at < ?`, now, id, now)
	return err
}

func (s *sessionsStore) MarkIPChanged(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET ip_changed=1 WHERE id=? AND active=1`, id)
	return err
}

func (s *sessionsStore) Terminate(ctx context.Context, id string, reason string, by string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET active=0, logout_at=?, logout_reason=?, terminated_by=? WHERE id=? AND active=1`, now, reason, by, id)
	return err
}

func (s *sessionsStore) TerminateAllForUser(ctx context.Context, userID int64, reason string, by string) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET active=0, logout_at=?, logout_reason=?, terminated_by=? WHERE user_id=? AND active=1`, now, reason, by, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *sessionsStore) TerminateExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE sessions SET active=0, logout_at=?, logout_reason=?, terminated_by='system' WHERE active=1 AND expires_at <= ?`, now.UTC(), LogoutTimeout, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanSession(row rowScanner) (*SessionRecord, error) {
	var sr SessionRecord
	var ipChanged, active int
	var logoutAt sql.NullTime
	var reason sql.NullString
	if err := row.Scan(&sr.ID, &sr.Token, &sr.UserID, &sr.Username, &sr.IP, &sr.UserAgent, &ipChanged,
		&sr.CreatedAt, &sr.LastActivityAt, &sr.ExpiresAt, &active, &logoutAt, &reason, &sr.TerminatedBy); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	sr.IPChanged = ipChanged == 1
	sr.Active = active == 1
	if logoutAt.Valid {
		t := logoutAt.Time
		sr.LogoutAt = &t
	}
	if reason.Valid {
		sr.LogoutReason = reason.String
	}
	if sr.LastActivityAt.IsZero() {
		sr.LastActivityAt = sr.CreatedAt
	}
	return &sr, nil
}

func scanSessions(rows *sql.Rows) ([]SessionRecord, error) {
	defer rows.Close()
	var res []SessionRecord
	for rows.Next() {
		sr, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *sr)
	}
	return res, rows.Err()
}
