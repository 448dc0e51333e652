package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// SessionInfo mirrors one row of the monitoring sessions response.
type SessionInfo struct {
	ID             string     `json:"id"`
	Username       string     `json:"username"`
	IP             string     `json:"ip"`
	UserAgent      string     `json:"userAgent"`
	IPChanged      bool       `json:"ipChanged"`
	CreatedAt      time.Time  `json:"createdAt"`
	LastActivityAt time.Time  `json:"lastActivityAt"`
	ExpiresAt      time.Time  `json:"expiresAt"`
	Active         bool       `json:"active"`
	LogoutAt       *time.Time `json:"logoutAt,omitempty"`
	LogoutReason   string     `json:"logoutReason,omitempty"`
	DurationSec    int64      `json:"durationSec"`
}

type SessionsResult struct {
	Active   []SessionInfo
	Inactive []SessionInfo
	Counts   struct {
		Active   int `json:"active"`
		Inactive int `json:"inactive"`
		Total    int `json:"total"`
	}
}

type sessionsWire struct {
	Data struct {
		Active   []SessionInfo `json:"active"`
		Inactive []SessionInfo `json:"inactive"`
	} `json:"data"`
	Counts struct {
		Active   int `json:"active"`
		Inactive int `json:"inactive"`
		Total    int `json:"total"`
	} `json:"counts"`
}

func (c *Client) ListSessions(ctx context.Context, inactivityPeriodMin int) (*SessionsResult, error) {
	path := "/monitoring/sessions"
	if inactivityPeriodMin > 0 {
		path += "?inactivityPeriod=" + strconv.Itoa(inactivityPeriodMin)
	}
	var wire sessionsWire
	if apiErr := c.doJSON(ctx, http.MethodGet, path, nil, &wire); apiErr != nil {
		return nil, apiErr
	}
	res := &SessionsResult{Active: wire.Data.Active, Inactive: wire.Data.Inactive}
	res.Counts = wire.Counts
	return res, nil
}

func (c *Client) TerminateSession(ctx context.Context, sessionID string) (string, error) {
	var wire struct {
		Data struct {
			Username string `json:"username"`
		} `json:"data"`
	}
	if apiErr := c.doJSON(ctx, http.MethodDelete, "/monitoring/sessions/"+url.PathEscape(sessionID), nil, &wire); apiErr != nil {
		return "", apiErr
	}
	return wire.Data.Username, nil
}

// ActivityQuery filters the activity-log listing.
type ActivityQuery struct {
	UserID       int64
	Action       string
	Status       string
	ResourceType string
	StartDate    time.Time
	EndDate      time.Time
	Page         int
	Limit        int
}

type ActivityEntry struct {
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

type ActivityStats struct {
	Total       int64   `json:"total"`
	Success     int64   `json:"success"`
	Failure     int64   `json:"failure"`
	Today       int64   `json:"today"`
	SuccessRate float64 `json:"successRate"`
}

type Pagination struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"perPage"`
	Total      int64 `json:"total"`
	TotalPages int64 `json:"totalPages"`
}

type ActivitiesResult struct {
	Data       []ActivityEntry `json:"data"`
	Stats      ActivityStats   `json:"stats"`
	Pagination Pagination      `json:"pagination"`
}

func (c *Client) ListActivities(ctx context.Context, q ActivityQuery) (*ActivitiesResult, error) {
	vals := url.Values{}
	if q.UserID > 0 {
		vals.Set("userId", strconv.FormatInt(q.UserID, 10))
	}
	if q.Action != "" {
		vals.Set("action", q.Action)
	}
	if q.Status != "" {
		vals.Set("status", q.Status)
	}
	if q.ResourceType != "" {
		vals.Set("resourceType", q.ResourceType)
	}
	if !q.StartDate.IsZero() {
		vals.Set("startDate", q.StartDate.UTC().Format(time.RFC3339))
	}
	if !q.EndDate.IsZero() {
		vals.Set("endDate", q.EndDate.UTC().Format(time.RFC3339))
	}
	if q.Page > 0 {
		vals.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		vals.Set("limit", strconv.Itoa(q.Limit))
	}
	path := "/monitoring/activities"
	if encoded := vals.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var out ActivitiesResult
	if apiErr := c.doJSON(ctx, http.MethodGet, path, nil, &out); apiErr != nil {
		return nil, apiErr
	}
	return &out, nil
}

// Monitoring is the admin-facing view-model over sessions and activity
// logs. Reads are cached per generation; a successful termination
// bumps the generation so later reads refetch.
type Monitoring struct {
	client *Client

	mu               sync.Mutex
	generation       uint64
	sessionsGen      uint64
	sessionsKey      int
	sessionsCached   *SessionsResult
	activitiesGen    uint64
	activitiesKey    string
	activitiesCached *ActivitiesResult
}

func NewMonitoring(cl *Client) *Monitoring {
	return &Monitoring{client: cl}
}

// DefaultInactivityThreshold and the selectable options, in minutes.
const DefaultInactivityThreshold = 30

var InactivityThresholds = []int{15, 30, 60}

func (m *Monitoring) ListActiveSessions(ctx context.Context, inactivityThresholdMin int) (*SessionsResult, error) {
	if inactivityThresholdMin <= 0 {
		inactivityThresholdMin = DefaultInactivityThreshold
	}
	m.mu.Lock()
	if m.sessionsCached != nil && m.sessionsGen == m.generation && m.sessionsKey == inactivityThresholdMin {
		cached := m.sessionsCached
		m.mu.Unlock()
		return cached, nil
	}
	m.mu.Unlock()

	res, err := m.client.ListSessions(ctx, inactivityThresholdMin)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.sessionsCached = res
	m.sessionsGen = m.generation
	m.sessionsKey = inactivityThresholdMin
	m.mu.Unlock()
	return res, nil
}

func (m *Monitoring) ListActivityLogs(ctx context.Context, q ActivityQuery) (*ActivitiesResult, error) {
	key := activityQueryKey(q)
	m.mu.Lock()
	if m.activitiesCached != nil && m.activitiesGen == m.generation && m.activitiesKey == key {
		cached := m.activitiesCached
		m.mu.Unlock()
		return cached, nil
	}
	m.mu.Unlock()

	res, err := m.client.ListActivities(ctx, q)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.activitiesCached = res
	m.activitiesGen = m.generation
	m.activitiesKey = key
	m.mu.Unlock()
	return res, nil
}

// TerminateSession kills the session and invalidates every cached
// read so the change is visible immediately.
func (m *Monitoring) TerminateSession(ctx context.Context, sessionID string) (string, error) {
	username, err := m.client.TerminateSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	m.Invalidate()
	return username, nil
}

func (m *Monitoring) Invalidate() {
	m.mu.Lock()
	m.generation++
	m.mu.Unlock()
}

// LiveDuration recomputes an active session's duration against
// wall-clock now; terminated sessions keep their server-reported
// value.
func LiveDuration(s *SessionInfo, now time.Time) time.Duration {
	if s == nil {
		return 0
	}
	if !s.Active {
		return time.Duration(s.DurationSec) * time.Second
	}
	return now.Sub(s.CreatedAt)
}

func activityQueryKey(q ActivityQuery) string {
	return fmt.Sprintf("%d|%s|%s|%s|%d|%d|%d|%d",
		q.UserID, q.Action, q.Status, q.ResourceType,
		q.StartDate.Unix(), q.EndDate.Unix(), q.Page, q.Limit)
}
