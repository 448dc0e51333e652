package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"clubhub/config"
	"clubhub/core/store"
	"clubhub/core/utils"

	"github.com/go-chi/chi/v5"
)

// MonitoringHandler serves the admin views over sessions and the
// activity log.
type MonitoringHandler struct {
	cfg        *config.AppConfig
	sessions   store.SessionStore
	activities store.ActivityStore
	logger     *utils.Logger
}

func NewMonitoringHandler(cfg *config.AppConfig, sessions store.SessionStore, activities store.ActivityStore, logger *utils.Logger) *MonitoringHandler {
	return &MonitoringHandler{cfg: cfg, sessions: sessions, activities: activities, logger: logger}
}

type sessionView struct {
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

var inactivityChoices = map[int]bool{15: true, 30: true, 60: true}

// Sessions partitions sessions into recently-active and inactive
// buckets. A live session idle past the threshold lands in the
// inactive bucket without being terminated.
func (h *MonitoringHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	threshold := h.cfg.Security.InactivityDefaultMin
	if threshold <= 0 {
		threshold = 30
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("inactivityPeriod")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && inactivityChoices[n] {
			threshold = n
		}
	}
	all, err := h.sessions.ListAll(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "internal error"})
		return
	}
	now := time.Now().UTC()
	cutoff := now.Add(-time.Duration(threshold) * time.Minute)
	active := make([]sessionView, 0)
	inactive := make([]sessionView, 0)
	for i := range all {
		sr := &all[i]
		view := sessionView{
			ID:             sr.ID,
			Username:       sr.Username,
			IP:             sr.IP,
			UserAgent:      sr.UserAgent,
			IPChanged:      sr.IPChanged,
			CreatedAt:      sr.CreatedAt,
			LastActivityAt: sr.LastActivityAt,
			ExpiresAt:      sr.ExpiresAt,
			Active:         sr.Active,
			LogoutAt:       sr.LogoutAt,
			LogoutReason:   sr.LogoutReason,
			DurationSec:    int64(sr.Duration(now).Seconds()),
		}
		if sr.Active && sr.LastActivityAt.After(cutoff) {
			active = append(active, view)
		} else {
			inactive = append(inactive, view)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"active":   active,
			"inactive": inactive,
		},
		"counts": map[string]any{
			"active":   len(active),
			"inactive": len(inactive),
			"total":    len(all),
		},
		"inactivityPeriod": threshold,
	})
}

// Terminate kills a session by id on behalf of an administrator.
func (h *MonitoringHandler) Terminate(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "missing session id"})
		return
	}
	target, err := h.sessions.GetByID(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "internal error"})
		return
	}
	if target == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "errorCode": "SESSION_NOT_FOUND", "message": "session not found"})
		return
	}
	if !target.Active {
		writeJSON(w, http.StatusConflict, map[string]any{"success": false, "errorCode": "SESSION_ALREADY_TERMINATED", "message": "session already terminated"})
		return
	}
	actor := sessionFromContext(r.Context())
	by := "admin"
	if actor != nil {
		by = actor.Username
	}
	if err := h.sessions.Terminate(r.Context(), id, store.LogoutAdmin, by); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "internal error"})
		return
	}
	if h.activities != nil {
		_ = h.activities.Log(r.Context(), &store.ActivityRecord{
			At:           time.Now().UTC(),
			UserID:       &target.UserID,
			Username:     by,
			Action:       "monitoring.session_terminate",
			Status:       store.ActivityStatusSuccess,
			ResourceType: "session",
			Details:      "target=" + target.Username,
			IP:           clientIPFromRequest(r),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{"username": target.Username},
	})
}

// Activities lists the activity log with filters, pagination and the
// aggregate stats block.
func (h *MonitoringHandler) Activities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f store.ActivityFilter
	if raw := strings.TrimSpace(q.Get("userId")); raw != "" {
		if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
			f.UserID = &n
		}
	}
	f.Action = strings.TrimSpace(q.Get("action"))
	f.Status = strings.TrimSpace(q.Get("status"))
	f.ResourceType = strings.TrimSpace(q.Get("resourceType"))
	if raw := strings.TrimSpace(q.Get("startDate")); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			f.From = &t
		}
	}
	if raw := strings.TrimSpace(q.Get("endDate")); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			f.To = &t
		}
	}
	if n, err := strconv.Atoi(strings.TrimSpace(q.Get("page"))); err == nil {
		f.Page = n
	}
	if n, err := strconv.Atoi(strings.TrimSpace(q.Get("limit"))); err == nil {
		f.PerPage = n
	}
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.PerPage <= 0 {
		f.PerPage = 20
	}
	rows, total, err := h.activities.List(r.Context(), f)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "internal error"})
		return
	}
	stats, err := h.activities.Stats(r.Context(), time.Now().UTC())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "internal error"})
		return
	}
	totalPages := (total + int64(f.PerPage) - 1) / int64(f.PerPage)
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  rows,
		"stats": stats,
		"pagination": map[string]any{
			"page":       f.Page,
			"perPage":    f.PerPage,
			"total":      total,
			"totalPages": totalPages,
		},
	})
}
