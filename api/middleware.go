package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"clubhub/core/auth"
	"clubhub/core/rbac"
	"clubhub/core/store"
)

const (
	sessionActivityInterval     = 30 * time.Second
	loginLimiterTTL             = 10 * time.Minute
	loginLimiterCleanupInterval = time.Minute
	loginLimiterMaxBuckets      = 10000
)

type requestLimiter struct {
	mu              sync.Mutex
	buckets         map[string]*tokenBucket
	capacity        int
	refill          time.Duration
	ttl             time.Duration
	cleanupInterval time.Duration
	lastCleanup     time.Time
	maxBuckets      int
}

type tokenBucket struct {
	tokens   int
	last     time.Time
	lastSeen time.Time
}

// sessionActivity dedupes last-activity writes so every authenticated
// request does not hit the sessions table.
type sessionActivity struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func newSessionActivity() *sessionActivity {
	return &sessionActivity{last: map[string]time.Time{}}
}

func (sa *sessionActivity) shouldUpdate(id string, now time.Time, interval time.Duration) bool {
	sa.mu.Lock()
	defer sa.mu.Unlock()
	last, ok := sa.last[id]
	if !ok || now.Sub(last) >= interval {
		sa.last[id] = now
		return true
	}
	return false
}

func newLimiter(capacity int, refill time.Duration) *requestLimiter {
	return &requestLimiter{
		buckets:         make(map[string]*tokenBucket),
		capacity:        capacity,
		refill:          refill,
		ttl:             loginLimiterTTL,
		cleanupInterval: loginLimiterCleanupInterval,
		maxBuckets:      loginLimiterMaxBuckets,
	}
}

func (l *requestLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if l.cleanupInterval > 0 && now.Sub(l.lastCleanup) >= l.cleanupInterval {
		l.cleanup(now)
		l.lastCleanup = now
	}
	tb, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &tokenBucket{tokens: l.capacity - 1, last: now, lastSeen: now}
		return true
	}
	tb.lastSeen = now
	if now.Sub(tb.last) >= l.refill {
		tb.tokens = l.capacity
		tb.last = now
	}
	if tb.tokens <= 0 {
		return false
	}
	tb.tokens--
	return true
}

func (l *requestLimiter) cleanup(now time.Time) {
	if l.ttl > 0 {
		for key, tb := range l.buckets {
			if now.Sub(tb.lastSeen) > l.ttl {
				delete(l.buckets, key)
			}
		}
	}
	if l.maxBuckets > 0 && len(l.buckets) > l.maxBuckets {
		for len(l.buckets) > l.maxBuckets {
			oldestKey := ""
			var oldest time.Time
			for key, tb := range l.buckets {
				if oldestKey == "" || tb.lastSeen.Before(oldest) {
					oldestKey = key
					oldest = tb.lastSeen
				}
			}
			if oldestKey == "" {
				break
			}
			delete(l.buckets, oldestKey)
		}
	}
}

// realIPMiddleware resolves the caller address once, honoring proxy
// headers only from trusted proxies, and rewrites X-Real-IP so handlers
// can read it without repeating the trust check.
func (s *Server) realIPMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Set("X-Real-IP", s.clientIP(r))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if s.logger != nil {
			user := "-"
			if v := r.Context().Value(auth.SessionContextKey); v != nil {
				sr := v.(*store.SessionRecord)
				user = sr.Username
			}
			s.logger.Printf("RESP %s %s user=%s status=%d dur=%s bytes=%d", r.Method, r.URL.Path, user, rec.status, time.Since(start), rec.size)
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	size   int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// withSession authenticates the bearer token. Invalid tokens answer
// 401 with one of the session-invalidation error codes so clients know
// to tear down their stored state.
func (s *Server) withSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		v, err := s.sessionManager.Validate(r.Context(), token)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": "internal error"})
			return
		}
		if v.Code != "" {
			if s.logger != nil {
				s.logger.Printf("AUTH fail %s %s code=%s", r.Method, r.URL.Path, v.Code)
			}
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"success":   false,
				"errorCode": v.Code,
				"message":   v.Message,
			})
			return
		}
		sr := v.Session
		ctx := context.WithValue(r.Context(), auth.SessionContextKey, sr)
		ctx = context.WithValue(ctx, auth.UserContextKey, v.User)
		now := time.Now().UTC()
		if s.activityTracker == nil || s.activityTracker.shouldUpdate(sr.ID, now, sessionActivityInterval) {
			_ = s.sessions.Touch(r.Context(), sr.ID, now)
		}
		if ip := s.clientIP(r); !sr.IPChanged && ip != "" && sr.IP != "" && ip != sr.IP {
			sr.IPChanged = true
			_ = s.sessions.MarkIPChanged(r.Context(), sr.ID)
			if s.logger != nil {
				s.logger.Printf("SESSION ip change user=%s session=%s %s -> %s", sr.Username, sr.ID, sr.IP, ip)
			}
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[len("bearer "):])
}

func (s *Server) requirePermission(perm rbac.Permission) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			val := r.Context().Value(auth.SessionContextKey)
			if val == nil {
				writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "errorCode": auth.CodeInvalidToken, "message": "unauthorized"})
				return
			}
			sess := val.(*store.SessionRecord)
			if !s.allowedForSession(r.Context(), sess, perm) {
				if s.logger != nil {
					s.logger.Printf("PERM fail %s %s user=%s need=%s", r.Method, r.URL.Path, sess.Username, perm)
				}
				writeJSON(w, http.StatusForbidden, map[string]any{"success": false, "errorCode": "INSUFFICIENT_PERMISSIONS", "message": "forbidden"})
				return
			}
			next.ServeHTTP(w, r)
		}
	}
}

func (s *Server) allowedForSession(ctx context.Context, sess *store.SessionRecord, perm rbac.Permission) bool {
	user, _ := ctxUser(ctx)
	if user == nil {
		return false
	}
	role, err := s.roles.GetByID(ctx, user.RoleID)
	if err != nil || role == nil {
		return false
	}
	return s.policy.Allowed([]string{role.Name}, perm)
}

func ctxUser(ctx context.Context) (*store.User, bool) {
	v, ok := ctx.Value(auth.UserContextKey).(*store.User)
	return v, ok
}

// rateLimitMiddleware throttles login attempts per source IP and per
// target username.
func (s *Server) rateLimitMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := s.clientIP(r)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "bad request"})
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		var cred auth.Credentials
		_ = json.Unmarshal(body, &cred)
		username := strings.ToLower(strings.TrimSpace(cred.Username))
		if !s.loginLimiter.allow(strings.ToLower(ip)) {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"success": false, "message": "too many attempts"})
			return
		}
		if username != "" && !s.loginLimiter.allow("user|"+username) {
			writeJSON(w, http.StatusTooManyRequests, map[string]any{"success": false, "message": "too many attempts"})
			return
		}
		next.ServeHTTP(w, r)
	}
}

func (s *Server) clientIP(r *http.Request) string {
	ip, _, _ := net.SplitHostPort(r.RemoteAddr)
	if ip == "" {
		ip = r.RemoteAddr
	}
	ip = strings.TrimSpace(ip)
	if s == nil || s.cfg == nil || !isTrustedProxy(ip, s.cfg.Security.TrustedProxies) {
		return ip
	}
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			if candidate := strings.TrimSpace(part); candidate != "" {
				return candidate
			}
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return ip
}

func isTrustedProxy(ip string, trusted []string) bool {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return false
	}
	for _, raw := range trusted {
		val := strings.TrimSpace(raw)
		if val == "" {
			continue
		}
		if strings.Contains(val, "/") {
			if _, block, err := net.ParseCIDR(val); err == nil && block.Contains(parsed) {
				return true
			}
			continue
		}
		if parsed.Equal(net.ParseIP(val)) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
