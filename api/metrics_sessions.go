package api

import (
	"context"
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// sessionsMetricsCollector scrapes session and activity counts
// straight from the database at collection time.
type sessionsMetricsCollector struct {
	db *sql.DB

	activeSessionsDesc    *prometheus.Desc
	logoutReasonsDesc     *prometheus.Desc
	loginOutcomesDesc     *prometheus.Desc
	pendingChallengesDesc *prometheus.Desc
}

func newSessionsMetricsCollector(db *sql.DB) prometheus.Collector {
	return &sessionsMetricsCollector{
		db: db,
		activeSessionsDesc: prometheus.NewDesc(
			"clubhub_sessions_active",
			"Number of currently active sessions.",
			nil,
			nil,
		),
		logoutReasonsDesc: prometheus.NewDesc(
			"clubhub_sessions_terminated_total",
			"Terminated sessions by recorded logout reason.",
			[]string{"reason"},
			nil,
		),
		loginOutcomesDesc: prometheus.NewDesc(
			"clubhub_login_attempts_total",
			"Login attempts recorded in the activity log, by status.",
			[]string{"status"},
			nil,
		),
		pendingChallengesDesc: prometheus.NewDesc(
			"clubhub_two_factor_challenges_pending",
			"Unexpired two-factor challenges awaiting verification.",
			nil,
			nil,
		),
	}
}

func (c *sessionsMetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeSessionsDesc
	ch <- c.logoutReasonsDesc
	ch <- c.loginOutcomesDesc
	ch <- c.pendingChallengesDesc
}

func (c *sessionsMetricsCollector) Collect(ch chan<- prometheus.Metric) {
	if c == nil || c.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var active float64
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions WHERE active=1`).Scan(&active); err == nil {
		ch <- prometheus.MustNewConstMetric(c.activeSessionsDesc, prometheus.GaugeValue, active)
	}

	rows, err := c.db.QueryContext(ctx, `SELECT logout_reason, COUNT(1) FROM sessions WHERE active=0 AND logout_reason IS NOT NULL GROUP BY logout_reason`)
	if err == nil {
		for rows.Next() {
			var reason string
			var n float64
			if err := rows.Scan(&reason, &n); err != nil {
				break
			}
			ch <- prometheus.MustNewConstMetric(c.logoutReasonsDesc, prometheus.CounterValue, n, reason)
		}
		_ = rows.Close()
	}

	rows, err = c.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM activity_log WHERE action='auth.login' GROUP BY status`)
	if err == nil {
		for rows.Next() {
			var status string
			var n float64
			if err := rows.Scan(&status, &n); err != nil {
				break
			}
			ch <- prometheus.MustNewConstMetric(c.loginOutcomesDesc, prometheus.CounterValue, n, status)
		}
		_ = rows.Close()
	}

	var pending float64
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM two_factor_challenges WHERE expires_at > ?`, time.Now().UTC()).Scan(&pending); err == nil {
		ch <- prometheus.MustNewConstMetric(c.pendingChallengesDesc, prometheus.GaugeValue, pending)
	}
}
