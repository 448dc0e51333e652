package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"clubhub/core/auth"
	"clubhub/core/utils"
)

// State of the auth machine.
type State string

const (
	StateInitializing     State = "initializing"
	StateAnonymous        State = "anonymous"
	StateTwoFactorPending State = "twoFactorPending"
	StateAuthenticated    State = "authenticated"
)

// Well-known navigation targets the controller redirects between.
const (
	RouteLogin           = "/login"
	RouteTwoFactorVerify = "/verify-2fa"
	RouteDashboard       = "/"
)

// ErrLoginInFlight is returned when a login is invoked while another
// one has not finished. The second call is dropped, not queued.
var ErrLoginInFlight = errors.New("login already in flight")

// ErrNoPendingChallenge is returned by VerifyTwoFactor outside the
// twoFactorPending state.
var ErrNoPendingChallenge = errors.New("no pending two-factor challenge")

// Challenge is the client-side view of an unfinished second factor.
type Challenge struct {
	TempToken      string
	UserID         int64
	QRCodeURL      string
	ManualEntryKey string
	IsNewSetup     bool
	SetupReason    string
}

// AuthController drives the anonymous / twoFactorPending /
// authenticated machine from transport results and forced-logout
// events, and answers permission and redirect queries for the UI.
type AuthController struct {
	client      *Client
	store       TokenStore
	bus         *LogoutBus
	logger      *utils.Logger
	unsubscribe func()

	mu              sync.Mutex
	state           State
	user            *auth.UserDTO
	challenge       *Challenge
	lastLogout      *LogoutEvent
	loginInFlight   bool
	redirectHandled bool
	watchdog        *Watchdog
	watchdogOpts    []WatchdogOption
}

type ControllerOption func(*AuthController)

// WithWatchdogOptions configures the expiry watchdog the controller
// runs while authenticated.
func WithWatchdogOptions(opts ...WatchdogOption) ControllerOption {
	return func(c *AuthController) { c.watchdogOpts = opts }
}

func NewAuthController(cl *Client, store TokenStore, bus *LogoutBus, logger *utils.Logger, opts ...ControllerOption) *AuthController {
	c := &AuthController{
		client: cl,
		store:  store,
		bus:    bus,
		logger: logger,
		state:  StateInitializing,
	}
	for _, opt := range opts {
		opt(c)
	}
	if bus != nil {
		c.unsubscribe = bus.Subscribe(c.onForcedLogout)
	}
	return c
}

// Close detaches the controller from the forced-logout bus and stops
// the watchdog if one is running.
func (c *AuthController) Close() {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.mu.Lock()
	c.stopWatchdogLocked()
	c.mu.Unlock()
}

// Init resolves the implicit initializing state from persisted data: a
// stored, unexpired token restores authenticated; anything else clears
// to anonymous.
func (c *AuthController) Init(ctx context.Context) State {
	token, hasToken := c.store.Token()
	user, hasUser := c.store.User()
	expiresAt, hasExpiry := c.store.ExpiresAt()

	c.mu.Lock()
	defer c.mu.Unlock()
	if hasToken && hasUser && hasExpiry && time.Now().Before(expiresAt) && token != "" {
		c.user = user
		c.setStateLocked(StateAuthenticated)
		return c.state
	}
	_ = c.store.Clear()
	c.user = nil
	c.setStateLocked(StateAnonymous)
	return c.state
}

// Login runs the first auth step. Reentrant calls are dropped with
// ErrLoginInFlight while one is outstanding.
func (c *AuthController) Login(ctx context.Context, username, password string, opts *auth.LoginOptions) (State, error) {
	c.mu.Lock()
	if c.loginInFlight {
		c.mu.Unlock()
		return c.state, ErrLoginInFlight
	}
	c.loginInFlight = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.loginInFlight = false
		c.mu.Unlock()
	}()

	res, err := c.client.Login(ctx, username, password, opts)
	if err != nil {
		return c.State(), err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if res.RequireTwoFactor {
		c.challenge = &Challenge{
			TempToken:      res.TempToken,
			UserID:         res.UserID,
			QRCodeURL:      res.QRCodeURL,
			ManualEntryKey: res.ManualEntryKey,
			IsNewSetup:     res.IsNewSetup,
			SetupReason:    res.SetupReason,
		}
		c.setStateLocked(StateTwoFactorPending)
		return c.state, nil
	}
	c.user = res.User
	c.challenge = nil
	c.lastLogout = nil
	c.setStateLocked(StateAuthenticated)
	return c.state, nil
}

// VerifyTwoFactor completes the pending challenge. An invalid code
// leaves the challenge untouched so the caller may retry.
func (c *AuthController) VerifyTwoFactor(ctx context.Context, code string) (State, error) {
	c.mu.Lock()
	ch := c.challenge
	c.mu.Unlock()
	if ch == nil {
		return c.State(), ErrNoPendingChallenge
	}
	res, err := c.client.VerifyTwoFactor(ctx, ch.TempToken, code)
	if err != nil {
		return c.State(), err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = res.User
	c.challenge = nil
	c.lastLogout = nil
	c.setStateLocked(StateAuthenticated)
	return c.state, nil
}

// Logout always lands in anonymous, whether or not the server heard
// about it.
func (c *AuthController) Logout(ctx context.Context) State {
	_ = c.client.Logout(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.user = nil
	c.challenge = nil
	c.setStateLocked(StateAnonymous)
	return c.state
}

// onForcedLogout tears down auth state once. Firing while already
// anonymous is a safe no-op.
func (c *AuthController) onForcedLogout(ev LogoutEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateAnonymous {
		return
	}
	if c.logger != nil {
		c.logger.Printf("forced logout code=%s reason=%s", ev.ErrorCode, ev.Reason)
	}
	c.user = nil
	c.challenge = nil
	c.lastLogout = &ev
	c.setStateLocked(StateAnonymous)
}

func (c *AuthController) setStateLocked(next State) {
	if c.state == next {
		return
	}
	c.state = next
	c.redirectHandled = false
	if next == StateAuthenticated {
		c.startWatchdogLocked()
	} else {
		c.stopWatchdogLocked()
	}
}

// startWatchdogLocked replaces any running watchdog with a fresh one.
// A Watchdog is single-use, so each authenticated entry gets its own.
func (c *AuthController) startWatchdogLocked() {
	c.stopWatchdogLocked()
	c.watchdog = NewWatchdog(c.store, c.bus, c.watchdogOpts...)
	c.watchdog.Start()
}

func (c *AuthController) stopWatchdogLocked() {
	if c.watchdog != nil {
		c.watchdog.Stop()
		c.watchdog = nil
	}
}

func (c *AuthController) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *AuthController) User() *auth.UserDTO {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

func (c *AuthController) Challenge() *Challenge {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.challenge
}

// LastForcedLogout returns the event behind the most recent forced
// logout, so the UI can show a human-readable reason. Cleared on the
// next successful login.
func (c *AuthController) LastForcedLogout() *LogoutEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastLogout
}

// HasPermission is false without a user, role or permission set; true
// when the set holds the wildcard; otherwise an exact-match check.
func (c *AuthController) HasPermission(name string) bool {
	if name == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.user == nil || c.user.Role == nil || len(c.user.Role.Permissions) == 0 {
		return false
	}
	for _, p := range c.user.Role.Permissions {
		if p == "ADMIN" || p == name {
			return true
		}
	}
	return false
}

// RedirectFor is the pure routing rule: where should a client on
// current be sent, given the state.
func RedirectFor(state State, current string) (string, bool) {
	switch state {
	case StateAuthenticated:
		if current == RouteLogin || current == RouteTwoFactorVerify {
			return RouteDashboard, true
		}
	case StateTwoFactorPending:
		if current != RouteTwoFactorVerify {
			return RouteTwoFactorVerify, true
		}
	case StateAnonymous:
		if current != RouteLogin {
			return RouteLogin, true
		}
	}
	return "", false
}

// NextRedirect applies RedirectFor once per logical state: after it
// answers, further calls are suppressed until the state changes again.
// This is the latch that prevents redirect loops from effect re-fires.
func (c *AuthController) NextRedirect(current string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.redirectHandled {
		return "", false
	}
	target, ok := RedirectFor(c.state, current)
	if !ok {
		return "", false
	}
	c.redirectHandled = true
	return target, true
}
