package auth

type contextKey string

// Context keys set by the session middleware.
const (
	SessionContextKey contextKey = "clubhub.session"
	UserContextKey    contextKey = "clubhub.user"
)
