package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newMonitoringStub(t *testing.T) (*Monitoring, *atomic.Int64, *atomic.Int64) {
	t.Helper()
	var sessionHits, activityHits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/monitoring/sessions", func(w http.ResponseWriter, r *http.Request) {
		sessionHits.Add(1)
		if got := r.URL.Query().Get("inactivityPeriod"); got == "" {
			t.Errorf("missing inactivityPeriod query")
		}
		writeStub(w, http.StatusOK, map[string]any{
			"data": map[string]any{
				"active": []map[string]any{{
					"id": "sess-1", "username": "alice", "active": true,
					"createdAt":      time.Now().UTC().Add(-time.Hour).Format(time.RFC3339),
					"lastActivityAt": time.Now().UTC().Format(time.RFC3339),
					"expiresAt":      time.Now().UTC().Add(5 * time.Hour).Format(time.RFC3339),
					"durationSec":    3600,
				}},
				"inactive": []map[string]any{},
			},
			"counts": map[string]any{"active": 1, "inactive": 0, "total": 1},
		})
	})
	mux.HandleFunc("/monitoring/sessions/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		writeStub(w, http.StatusOK, map[string]any{"data": map[string]any{"username": "alice"}})
	})
	mux.HandleFunc("/monitoring/activities", func(w http.ResponseWriter, r *http.Request) {
		activityHits.Add(1)
		writeStub(w, http.StatusOK, map[string]any{
			"data": []map[string]any{{
				"id": 1, "at": time.Now().UTC().Format(time.RFC3339),
				"username": "alice", "action": "auth.login", "status": "success",
				"resourceType": "auth", "ip": "10.0.0.1",
			}},
			"stats":      map[string]any{"success": 1, "failure": 0, "today": 1, "successRate": 100},
			"pagination": map[string]any{"page": 1, "perPage": 20, "total": 1, "totalPages": 1},
		})
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	cl := New(ts.URL, NewMemoryTokenStore(), NewLogoutBus())
	return NewMonitoring(cl), &sessionHits, &activityHits
}

func TestMonitoringCachesUntilInvalidated(t *testing.T) {
	m, sessionHits, activityHits := newMonitoringStub(t)
	ctx := context.Background()

	res, err := m.ListActiveSessions(ctx, 0)
	if err != nil {
		t.Fatalf("sessions: %v", err)
	}
	if res.Counts.Total != 1 || len(res.Active) != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if _, err := m.ListActiveSessions(ctx, 0); err != nil {
		t.Fatalf("cached sessions: %v", err)
	}
	if got := sessionHits.Load(); got != 1 {
		t.Fatalf("cache miss count = %d", got)
	}

	if _, err := m.ListActivityLogs(ctx, ActivityQuery{}); err != nil {
		t.Fatalf("activities: %v", err)
	}
	if _, err := m.ListActivityLogs(ctx, ActivityQuery{}); err != nil {
		t.Fatalf("cached activities: %v", err)
	}
	if got := activityHits.Load(); got != 1 {
		t.Fatalf("activity cache miss count = %d", got)
	}

	// a different filter is a different query, never a cache hit
	if _, err := m.ListActivityLogs(ctx, ActivityQuery{Action: "auth.login"}); err != nil {
		t.Fatalf("filtered activities: %v", err)
	}
	if got := activityHits.Load(); got != 2 {
		t.Fatalf("filtered query served from cache")
	}

	username, err := m.TerminateSession(ctx, "sess-1")
	if err != nil || username != "alice" {
		t.Fatalf("terminate = %q, %v", username, err)
	}
	if _, err := m.ListActiveSessions(ctx, 0); err != nil {
		t.Fatalf("sessions after invalidate: %v", err)
	}
	if got := sessionHits.Load(); got != 2 {
		t.Fatalf("termination did not invalidate session cache: %d hits", got)
	}
}

func TestMonitoringThresholdSelection(t *testing.T) {
	var lastPeriod atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("/monitoring/sessions", func(w http.ResponseWriter, r *http.Request) {
		lastPeriod.Store(r.URL.Query().Get("inactivityPeriod"))
		writeStub(w, http.StatusOK, map[string]any{
			"data":   map[string]any{"active": []map[string]any{}, "inactive": []map[string]any{}},
			"counts": map[string]any{"active": 0, "inactive": 0, "total": 0},
		})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()
	m := NewMonitoring(New(ts.URL, NewMemoryTokenStore(), NewLogoutBus()))

	if _, err := m.ListActiveSessions(context.Background(), 0); err != nil {
		t.Fatalf("default threshold: %v", err)
	}
	if got := lastPeriod.Load(); got != "30" {
		t.Fatalf("default period = %v", got)
	}
	if _, err := m.ListActiveSessions(context.Background(), 60); err != nil {
		t.Fatalf("60m threshold: %v", err)
	}
	if got := lastPeriod.Load(); got != "60" {
		t.Fatalf("period = %v", got)
	}
}

func TestLiveDuration(t *testing.T) {
	now := time.Now().UTC()
	active := &SessionInfo{Active: true, CreatedAt: now.Add(-90 * time.Minute), DurationSec: 60}
	if got := LiveDuration(active, now); got != 90*time.Minute {
		t.Fatalf("active duration = %v", got)
	}
	inactive := &SessionInfo{Active: false, CreatedAt: now.Add(-90 * time.Minute), DurationSec: 1800}
	if got := LiveDuration(inactive, now); got != 30*time.Minute {
		t.Fatalf("inactive duration = %v", got)
	}
	if got := LiveDuration(nil, now); got != 0 {
		t.Fatalf("nil duration = %v", got)
	}
}

func TestActivitiesResultDecoding(t *testing.T) {
	raw := `{"data":[{"id":7,"at":"2026-03-14T12:00:00Z","userId":1,"username":"alice","action":"auth.login","status":"failure","resourceType":"auth","ip":"10.0.0.1"}],"stats":{"success":3,"failure":1,"today":4,"successRate":75},"pagination":{"page":2,"perPage":10,"total":14,"totalPages":2}}`
	var res ActivitiesResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Data) != 1 || res.Data[0].Action != "auth.login" || res.Data[0].UserID == nil {
		t.Fatalf("data = %+v", res.Data)
	}
	if res.Stats.SuccessRate != 75 || res.Pagination.TotalPages != 2 {
		t.Fatalf("stats/pagination = %+v %+v", res.Stats, res.Pagination)
	}
}
