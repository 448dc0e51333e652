package store

import (
	"context"
	"database/sql"
	"time"
)

// ChallengeStore holds short-lived two-factor login challenges. A
// challenge is consumed on successful verification; failed codes leave
// it in place so the user can retry until it expires.
type ChallengeStore interface {
	Create(ctx context.Context, ch *ChallengeRecord) error
	Get(ctx context.Context, token string) (*ChallengeRecord, error)
	Delete(ctx context.Context, token string) error
	DeleteForUser(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type challengesStore struct {
	db *sql.DB
}

func NewChallengesStore(db *sql.DB) ChallengeStore {
	return &challengesStore{db: db}
}

func (s *challengesStore) Create(ctx context.Context, ch *ChallengeRecord) error {
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO two_factor_challenges(token, user_id, ip, user_agent, setup_reason, pending_secret_enc, created_at, expires_at) VALUES(?,?,?,?,?,?,?,?)`,
		ch.Token, ch.UserID, ch.IP, ch.UserAgent, ch.SetupReason, ch.PendingSecretEnc, ch.CreatedAt, ch.ExpiresAt)
	return err
}

func (s *challengesStore) Get(ctx context.Context, token string) (*ChallengeRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT token, user_id, ip, user_agent, setup_reason, pending_secret_enc, created_at, expires_at FROM two_factor_challenges WHERE token=?`, token)
	var ch ChallengeRecord
	if err := row.Scan(&ch.Token, &ch.UserID, &ch.IP, &ch.UserAgent, &ch.SetupReason, &ch.PendingSecretEnc, &ch.CreatedAt, &ch.ExpiresAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	if time.Now().After(ch.ExpiresAt) {
		_ = s.Delete(ctx, token)
		return nil, nil
	}
	return &ch, nil
}

func (s *challengesStore) Delete(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM two_factor_challenges WHERE token=?`, token)
	return err
}

func (s *challengesStore) DeleteForUser(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM two_factor_challenges WHERE user_id=?`, userID)
	return err
}

func (s *challengesStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM two_factor_challenges WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
