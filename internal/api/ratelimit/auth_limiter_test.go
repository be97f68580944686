package ratelimit

import (
	"testing"
	"time"
)

// fixedClock advances manually so lockout expiry can be tested without
// sleeping.
type fixedClock struct {
	t time.Time
}

func (c *fixedClock) now() time.Time          { return c.t }
func (c *fixedClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter() (*AuthLimiter, *fixedClock) {
	clock := &fixedClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := NewAuthLimiter()
	l.now = clock.now
	return l, clock
}

func TestIPWindowBudget(t *testing.T) {
	l, clock := newTestLimiter()

	for i := 0; i < DefaultIPRequestsPerMinute; i++ {
		if !l.allowIP("10.0.0.1") {
			t.Fatalf("request %d rejected inside budget", i+1)
		}
	}
	if l.allowIP("10.0.0.1") {
		t.Error("request over budget allowed")
	}
	if !l.allowIP("10.0.0.2") {
		t.Error("unrelated IP throttled")
	}

	clock.advance(DefaultIPWindowDuration + time.Second)
	if !l.allowIP("10.0.0.1") {
		t.Error("request rejected after window expired")
	}
}

func TestAccountLockoutEscalation(t *testing.T) {
	l, clock := newTestLimiter()

	for i := 0; i < DefaultMaxFailedAttempts; i++ {
		if l.IsAccountLocked("admin") {
			t.Fatalf("locked after %d failures", i)
		}
		l.RecordFailedAttempt("admin")
	}

	if !l.IsAccountLocked("admin") {
		t.Fatal("not locked at failure threshold")
	}
	if got := l.GetLockoutRemaining("admin"); got != DefaultLockoutDuration {
		t.Errorf("first lockout = %v, want %v", got, DefaultLockoutDuration)
	}

	// A second streak after the lockout expires locks twice as long.
	clock.advance(DefaultLockoutDuration + time.Second)
	if l.IsAccountLocked("admin") {
		t.Fatal("still locked after lockout expired")
	}
	for i := 0; i < DefaultMaxFailedAttempts; i++ {
		l.RecordFailedAttempt("admin")
	}
	if got := l.GetLockoutRemaining("admin"); got != 2*DefaultLockoutDuration {
		t.Errorf("second lockout = %v, want %v", got, 2*DefaultLockoutDuration)
	}
}

func TestSuccessfulLoginClearsStreak(t *testing.T) {
	l, _ := newTestLimiter()

	for i := 0; i < DefaultMaxFailedAttempts-1; i++ {
		l.RecordFailedAttempt("admin")
	}
	l.RecordSuccessfulLogin("admin")
	l.RecordFailedAttempt("admin")
	if l.IsAccountLocked("admin") {
		t.Error("locked despite cleared streak")
	}
}

func TestCleanupDropsExpiredState(t *testing.T) {
	l, clock := newTestLimiter()

	l.allowIP("10.0.0.1")
	l.RecordFailedAttempt("alice")

	clock.advance(2 * DefaultIPWindowDuration)
	l.Cleanup()

	if len(l.requests) != 0 {
		t.Errorf("IP windows not cleaned: %v", l.requests)
	}
	if len(l.accounts) != 0 {
		t.Errorf("accounts not cleaned: %v", l.accounts)
	}
}
