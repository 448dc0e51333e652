package client

import (
	"sync"
	"time"
)

const defaultWatchdogInterval = 30 * time.Second

// Watchdog polls the token store and forces a logout once the stored
// expiry passes. It is an independent trigger from the transport's 401
// interception; whichever fires first wins and the other becomes a
// no-op.
type Watchdog struct {
	store    TokenStore
	bus      *LogoutBus
	interval time.Duration
	now      func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

type WatchdogOption func(*Watchdog)

func WithInterval(d time.Duration) WatchdogOption {
	return func(w *Watchdog) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithClock overrides wall-clock time. Used by tests.
func WithClock(now func() time.Time) WatchdogOption {
	return func(w *Watchdog) {
		if now != nil {
			w.now = now
		}
	}
}

func NewWatchdog(store TokenStore, bus *LogoutBus, opts ...WatchdogOption) *Watchdog {
	w := &Watchdog{
		store:    store,
		bus:      bus,
		interval: defaultWatchdogInterval,
		now:      time.Now,
		stop:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Watchdog) Start() {
	go w.run()
}

func (w *Watchdog) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
}

func (w *Watchdog) run() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.Check()
		}
	}
}

// Check runs one poll cycle. Exported so callers with their own timer
// can drive it directly.
func (w *Watchdog) Check() {
	if _, ok := w.store.Token(); !ok {
		return
	}
	expiresAt, ok := w.store.ExpiresAt()
	if !ok {
		return
	}
	if w.now().Before(expiresAt) {
		return
	}
	_ = w.store.Clear()
	if w.bus != nil {
		w.bus.Publish(LogoutEvent{
			ErrorCode: CodeTokenExpired,
			Message:   "session expired",
			Reason:    "timeout",
		})
	}
}
