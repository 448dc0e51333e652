package api

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"clubhub/api/handlers"
	"clubhub/config"
	"clubhub/core/auth"
	"clubhub/core/bootstrap"
	"clubhub/core/rbac"
	"clubhub/core/store"
	"clubhub/core/utils"

	"github.com/go-chi/chi/v5"
	"github.com/robfig/cron/v3"
)

type Server struct {
	cfg             *config.AppConfig
	db              *sql.DB
	router          *chi.Mux
	httpServer      *http.Server
	logger          *utils.Logger
	sessionManager  *auth.SessionManager
	users           store.UsersStore
	roles           store.RolesStore
	sessions        store.SessionStore
	challenges      store.ChallengeStore
	activities      store.ActivityStore
	policy          *rbac.Policy
	sweeper         *cron.Cron
	loginLimiter    *requestLimiter
	activityTracker *sessionActivity
}

func NewServer(cfg *config.AppConfig, db *sql.DB, logger *utils.Logger) *Server {
	users := store.NewUsersStore(db)
	roles := store.NewRolesStore(db)
	sessions := store.NewSessionsStore(db)
	challenges := store.NewChallengesStore(db)
	activities := store.NewActivityStore(db)
	s := &Server{
		cfg:             cfg,
		db:              db,
		router:          chi.NewRouter(),
		logger:          logger,
		sessionManager:  auth.NewSessionManager(sessions, users, cfg, logger),
		users:           users,
		roles:           roles,
		sessions:        sessions,
		challenges:      challenges,
		activities:      activities,
		policy:          rbac.NewPolicy(nil),
		loginLimiter:    newLimiter(loginLimiterCapacity(cfg), loginLimiterRefill(cfg)),
		activityTracker: newSessionActivity(),
	}
	if err := bootstrap.LoadPolicy(context.Background(), roles, s.policy); err != nil && logger != nil {
		logger.Errorf("load policy: %v", err)
	}
	s.registerRoutes()
	s.registerObservabilityRoutes()
	s.registerSweeper()
	return s
}

func loginLimiterCapacity(cfg *config.AppConfig) int {
	if cfg != nil && cfg.Security.LoginRateBurst > 0 {
		return cfg.Security.LoginRateBurst
	}
	return 10
}

// loginLimiterRefill derives the bucket refill interval from the
// sustained per-minute rate, keeping the burst as the bucket size.
func loginLimiterRefill(cfg *config.AppConfig) time.Duration {
	burst := loginLimiterCapacity(cfg)
	perMinute := 0
	if cfg != nil {
		perMinute = cfg.Security.LoginRatePerMinute
	}
	if perMinute <= 0 || perMinute <= burst {
		return time.Minute
	}
	return time.Minute * time.Duration(burst) / time.Duration(perMinute)
}

func (s *Server) Start() error {
	if s.sweeper != nil {
		s.sweeper.Start()
	}
	s.httpServer = &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// registerSweeper schedules the session/challenge expiry sweep. The
// sweep is what converts a timed-out session into the recorded
// "timeout" logout reason even when its owner never comes back.
func (s *Server) registerSweeper() {
	if s.cfg == nil || !s.cfg.Sweeper.Enabled {
		return
	}
	schedule := s.cfg.Sweeper.Schedule
	if schedule == "" {
		schedule = "@every 1m"
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := s.sessionManager.Sweep(ctx); err != nil && s.logger != nil {
			s.logger.Errorf("session sweep: %v", err)
		}
		if _, err := s.challenges.DeleteExpired(ctx, time.Now()); err != nil && s.logger != nil {
			s.logger.Errorf("challenge sweep: %v", err)
		}
	})
	if err != nil {
		if s.logger != nil {
			s.logger.Errorf("sweeper schedule %q: %v", schedule, err)
		}
		return
	}
	s.sweeper = c
}

func (s *Server) registerRoutes() {
	s.router.Use(s.realIPMiddleware)
	s.router.Use(s.loggingMiddleware)

	authHandler := handlers.NewAuthHandler(s.cfg, s.users, s.roles, s.sessions, s.challenges, s.sessionManager, s.activities, s.logger)
	monitoringHandler := handlers.NewMonitoringHandler(s.cfg, s.sessions, s.activities, s.logger)

	s.router.Route("/auth", func(r chi.Router) {
		r.Use(s.jsonMiddleware)
		r.Post("/login", s.rateLimitMiddleware(authHandler.Login))
		r.Post("/verify-2fa", s.rateLimitMiddleware(authHandler.Verify2FA))
		r.Post("/logout", s.withSession(authHandler.Logout))
		r.Get("/2fa/status", s.withSession(authHandler.TwoFAStatus))
		r.Post("/2fa/enable", s.withSession(authHandler.TwoFAEnable))
		r.Post("/2fa/disable", s.withSession(authHandler.TwoFADisable))
		r.Post("/2fa/regenerate", s.withSession(authHandler.TwoFARegenerate))
	})

	s.router.Route("/monitoring", func(r chi.Router) {
		r.Use(s.jsonMiddleware)
		r.Get("/sessions", s.withSession(s.requirePermission("SESSIONS_VIEW")(monitoringHandler.Sessions)))
		r.Delete("/sessions/{id}", s.withSession(s.requirePermission("SESSIONS_TERMINATE")(monitoringHandler.Terminate)))
		r.Get("/activities", s.withSession(s.requirePermission("ACTIVITIES_VIEW")(monitoringHandler.Activities)))
	})
}
