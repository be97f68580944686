// Package ratelimit throttles the unauthenticated login surface: a
// per-IP sliding window on requests plus escalating per-account lockouts
// on repeated failed logins.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	// Per-IP request budget over the sliding window.
	DefaultIPRequestsPerMinute = 10
	DefaultIPWindowDuration    = time.Minute

	// Failed logins before an account locks, and how long the first
	// lockout lasts. Each subsequent lockout doubles, capped at an hour.
	DefaultMaxFailedAttempts = 5
	DefaultLockoutDuration   = 15 * time.Minute
	MaxLockoutDuration       = time.Hour
)

// lockoutState tracks the failed-login streak for one account.
type lockoutState struct {
	failures    int
	strikes     int // completed lockouts, drives escalation
	lockedUntil time.Time
}

// AuthLimiter guards the auth endpoints. All state is in-memory; a
// restart clears it, which is acceptable for a single-admin service.
type AuthLimiter struct {
	mu       sync.RWMutex
	requests map[string][]time.Time // per-IP request timestamps within the window
	accounts map[string]*lockoutState

	ipLimit     int
	ipWindow    time.Duration
	maxFailures int
	baseLockout time.Duration
	now         func() time.Time
}

// NewAuthLimiter creates a limiter with the default thresholds.
func NewAuthLimiter() *AuthLimiter {
	return &AuthLimiter{
		requests:    make(map[string][]time.Time),
		accounts:    make(map[string]*lockoutState),
		ipLimit:     DefaultIPRequestsPerMinute,
		ipWindow:    DefaultIPWindowDuration,
		maxFailures: DefaultMaxFailedAttempts,
		baseLockout: DefaultLockoutDuration,
		now:         time.Now,
	}
}

// Middleware rejects requests from IPs that exhausted their window budget.
func (l *AuthLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.allowIP(c.RealIP()) {
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, please try again later")
			}
			return next(c)
		}
	}
}

func (l *AuthLimiter) allowIP(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.ipWindow)

	recent := l.requests[ip][:0]
	for _, ts := range l.requests[ip] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}
	if len(recent) >= l.ipLimit {
		l.requests[ip] = recent
		return false
	}
	l.requests[ip] = append(recent, now)
	return true
}

// IsAccountLocked reports whether the account is currently locked out.
func (l *AuthLimiter) IsAccountLocked(username string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	state, ok := l.accounts[username]
	return ok && l.now().Before(state.lockedUntil)
}

// GetLockoutRemaining returns how long until the account unlocks, or zero.
func (l *AuthLimiter) GetLockoutRemaining(username string) time.Duration {
	l.mu.RLock()
	defer l.mu.RUnlock()

	state, ok := l.accounts[username]
	if !ok {
		return 0
	}
	if remaining := state.lockedUntil.Sub(l.now()); remaining > 0 {
		return remaining
	}
	return 0
}

// RecordFailedAttempt counts a failed login. Reaching the failure
// threshold locks the account; repeat offenders lock for longer.
func (l *AuthLimiter) RecordFailedAttempt(username string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.accounts[username]
	if !ok {
		state = &lockoutState{}
		l.accounts[username] = state
	}

	// An expired lockout resets the streak before the new failure counts.
	if state.failures >= l.maxFailures && l.now().After(state.lockedUntil) {
		state.failures = 0
	}

	state.failures++
	if state.failures < l.maxFailures {
		return
	}

	state.strikes++
	lockout := l.baseLockout * time.Duration(state.strikes)
	if lockout > MaxLockoutDuration {
		lockout = MaxLockoutDuration
	}
	state.lockedUntil = l.now().Add(lockout)
}

// RecordSuccessfulLogin clears the account's failure streak.
func (l *AuthLimiter) RecordSuccessfulLogin(username string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.accounts, username)
}

// Cleanup drops idle IP windows and expired lockouts.
func (l *AuthLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.ipWindow)

	for ip, timestamps := range l.requests {
		idle := true
		for _, ts := range timestamps {
			if ts.After(cutoff) {
				idle = false
				break
			}
		}
		if idle {
			delete(l.requests, ip)
		}
	}

	for username, state := range l.accounts {
		if now.After(state.lockedUntil) && state.failures < l.maxFailures {
			delete(l.accounts, username)
		}
	}
}

// StartCleanup runs Cleanup on a fixed interval for the process lifetime.
func (l *AuthLimiter) StartCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			l.Cleanup()
		}
	}()
}
