package client

import (
	"testing"
	"time"
)

func TestWatchdogFiresOnExpiry(t *testing.T) {
	store := NewMemoryTokenStore()
	bus := NewLogoutBus()
	var events []LogoutEvent
	bus.Subscribe(func(ev LogoutEvent) { events = append(events, ev) })

	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	w := NewWatchdog(store, bus, WithClock(func() time.Time { return now }))

	_ = store.Save("tok", testUser(), now.Add(time.Minute))
	w.Check()
	if len(events) != 0 {
		t.Fatalf("fired before expiry")
	}

	now = now.Add(2 * time.Minute)
	w.Check()
	if len(events) != 1 {
		t.Fatalf("expected one event, got %d", len(events))
	}
	ev := events[0]
	if ev.ErrorCode != CodeTokenExpired || ev.Reason != "timeout" {
		t.Fatalf("event = %+v", ev)
	}
	if _, ok := store.Token(); ok {
		t.Fatalf("token not cleared on expiry")
	}

	// the store is empty now; further checks are no-ops
	w.Check()
	if len(events) != 1 {
		t.Fatalf("watchdog re-fired after teardown")
	}
}

func TestWatchdogIgnoresEmptyStore(t *testing.T) {
	store := NewMemoryTokenStore()
	bus := NewLogoutBus()
	fired := false
	bus.Subscribe(func(LogoutEvent) { fired = true })

	w := NewWatchdog(store, bus)
	w.Check()
	if fired {
		t.Fatalf("fired with no stored token")
	}
}

func TestWatchdogStartStop(t *testing.T) {
	store := NewMemoryTokenStore()
	bus := NewLogoutBus()
	done := make(chan struct{})
	bus.Subscribe(func(LogoutEvent) {
		select {
		case <-done:
		default:
			close(done)
		}
	})

	_ = store.Save("tok", testUser(), time.Now().Add(-time.Minute))
	w := NewWatchdog(store, bus, WithInterval(5*time.Millisecond))
	w.Start()
	defer w.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("ticker never drove a check")
	}
	w.Stop()
	w.Stop() // idempotent
}
