package store

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

const (
	ActivityStatusSuccess = "success"
	ActivityStatusFailure = "failure"
)

type ActivityStore interface {
	Log(ctx context.Context, rec *ActivityRecord) error
	List(ctx context.Context, f ActivityFilter) ([]ActivityRecord, int64, error)
	Stats(ctx context.Context, now time.Time) (*ActivityStats, error)
}

type activityStore struct {
	db *sql.DB
}

func NewActivityStore(db *sql.DB) ActivityStore {
	return &activityStore{db: db}
}

func (s *activityStore) Log(ctx context.Context, rec *ActivityRecord) error {
	if rec == nil {
		return nil
	}
	at := rec.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	var userID any
	if rec.UserID != nil {
		userID = *rec.UserID
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO activity_log(at, user_id, username, action, status, resource_type, details, ip) VALUES(?,?,?,?,?,?,?,?)`,
		at, userID, rec.Username, rec.Action, rec.Status, rec.ResourceType, rec.Details, rec.IP)
	return err
}

func (s *activityStore) List(ctx context.Context, f ActivityFilter) ([]ActivityRecord, int64, error) {
	where, args := buildActivityWhere(f)
	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM activity_log`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	perPage := f.PerPage
	if perPage <= 0 {
		perPage = 20
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	q := `SELECT id, at, user_id, username, action, status, resource_type, details, ip FROM activity_log` + where + ` ORDER BY at DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, q, append(args, perPage, (page-1)*perPage)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var res []ActivityRecord
	for rows.Next() {
		var ar ActivityRecord
		var userID sql.NullInt64
		if err := rows.Scan(&ar.ID, &ar.At, &userID, &ar.Username, &ar.Action, &ar.Status, &ar.ResourceType, &ar.Details, &ar.IP); err != nil {
			return nil, 0, err
		}
		if userID.Valid {
			v := userID.Int64
			ar.UserID = &v
		}
		res = append(res, ar)
	}
	return res, total, rows.Err()
}

func buildActivityWhere(f ActivityFilter) (string, []any) {
	var conds []string
	var args []any
	if f.UserID != nil {
		conds = append(conds, "user_id=?")
		args = append(args, *f.UserID)
	}
	if v := strings.TrimSpace(f.Action); v != "" {
		conds = append(conds, "action=?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(f.Status); v != "" {
		conds = append(conds, "status=?")
		args = append(args, v)
	}
	if v := strings.TrimSpace(f.ResourceType); v != "" {
		conds = append(conds, "resource_type=?")
		args = append(args, v)
	}
	if f.From != nil {
		conds = append(conds, "at >= ?")
		args = append(args, f.From.UTC())
	}
	if f.To != nil {
		conds = append(conds, "at <= ?")
		args = append(args, f.To.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *activityStore) Stats(ctx context.Context, now time.Time) (*ActivityStats, error) {
	var st ActivityStats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM activity_log WHERE status=?`, ActivityStatusSuccess).Scan(&st.Success); err != nil {
		return nil, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM activity_log WHERE status=?`, ActivityStatusFailure).Scan(&st.Failure); err != nil {
		return nil, err
	}
	dayStart := now.UTC().Truncate(24 * time.Hour)
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM activity_log WHERE at >= ?`, dayStart).Scan(&st.Today); err != nil {
		return nil, err
	}
	st.Total = st.Success + st.Failure
	if st.Total > 0 {
		st.SuccessRate = float64(st.Success) / float64(st.Total) * 100
	}
	return &st, nil
}
