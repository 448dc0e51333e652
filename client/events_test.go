package client

import "testing"

func TestLogoutBusPublishOrder(t *testing.T) {
	bus := NewLogoutBus()
	var got []string
	bus.Subscribe(func(ev LogoutEvent) { got = append(got, "a:"+ev.ErrorCode) })
	bus.Subscribe(func(ev LogoutEvent) { got = append(got, "b:"+ev.ErrorCode) })

	bus.Publish(LogoutEvent{ErrorCode: CodeSessionTerminated})
	if len(got) != 2 || got[0] != "a:SESSION_TERMINATED" || got[1] != "b:SESSION_TERMINATED" {
		t.Fatalf("handlers ran out of order: %v", got)
	}
}

func TestLogoutBusCancel(t *testing.T) {
	bus := NewLogoutBus()
	calls := 0
	cancel := bus.Subscribe(func(LogoutEvent) { calls++ })

	bus.Publish(LogoutEvent{})
	cancel()
	cancel() // idempotent
	bus.Publish(LogoutEvent{})
	if calls != 1 {
		t.Fatalf("cancelled handler still firing: %d calls", calls)
	}
}

func TestLogoutBusNilHandler(t *testing.T) {
	bus := NewLogoutBus()
	cancel := bus.Subscribe(nil)
	cancel()
	bus.Publish(LogoutEvent{}) // must not panic
}

func TestIsForcedLogoutCode(t *testing.T) {
	for _, code := range []string{
		CodeSessionTerminated, CodeSessionExpired, CodeTokenExpired,
		CodeInvalidToken, CodeUserInactive,
	} {
		if !IsForcedLogoutCode(code) {
			t.Fatalf("%s should force a logout", code)
		}
	}
	for _, code := range []string{"", "INVALID_CREDENTIALS", "INSUFFICIENT_PERMISSIONS", CodeNetworkError} {
		if IsForcedLogoutCode(code) {
			t.Fatalf("%s should not force a logout", code)
		}
	}
}
