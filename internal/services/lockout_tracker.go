package services

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/adminguard/internal/models"
)

// LockoutConfig holds configuration for lockout and rate limiting behavior
type LockoutConfig struct {
	MaxFailedAttempts    int
	LockoutDuration      time.Duration
	RateLimitWindow      time.Duration
	RateLimitMaxAttempts int
	HistorySize          int
}

// DefaultLockoutConfig returns the thresholds used when nothing is configured
func DefaultLockoutConfig() LockoutConfig {
	return LockoutConfig{
		MaxFailedAttempts:    3,
		LockoutDuration:      15 * time.Minute,
		RateLimitWindow:      5 * time.Minute,
		RateLimitMaxAttempts: 5,
		HistorySize:          20,
	}
}

// RateLimitedMessage is surfaced while the trailing attempt window is full
const RateLimitedMessage = "Too many login attempts. Please wait a few minutes before trying again."

// LockoutTracker holds one tab's SecurityState and bounded attempt history.
// Every check is evaluated against the clock when called.
type LockoutTracker struct {
	mu       sync.Mutex
	config   LockoutConfig
	now      func() time.Time
	logger   *slog.Logger
	state    models.SecurityState
	attempts []models.LoginAttempt
}

// NewLockoutTracker creates a tracker. now may be nil to use the wall clock.
func NewLockoutTracker(config LockoutConfig, now func() time.Time, logger *slog.Logger) *LockoutTracker {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LockoutTracker{
		config: config,
		now:    now,
		logger: logger,
		state:  models.SecurityState{LastActivity: now()},
	}
}

// RecordFailure counts a failed attempt and returns the inline message.
// locked is true when this failure reached the threshold.
func (t *LockoutTracker) RecordFailure() (message string, locked bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.FailedAttempts++
	if t.state.FailedAttempts >= t.config.MaxFailedAttempts {
		until := t.now().Add(t.config.LockoutDuration)
		t.state.LockoutUntil = &until
		t.logger.Warn("console locked out",
			slog.Int("failed_attempts", t.state.FailedAttempts),
			slog.Duration("lockout_duration", t.config.LockoutDuration))
		return fmt.Sprintf("Too many failed attempts. Account locked for %s.", humanDuration(t.config.LockoutDuration)), true
	}

	remaining := t.config.MaxFailedAttempts - t.state.FailedAttempts
	return fmt.Sprintf("Invalid credentials. %d attempts remaining.", remaining), false
}

// IsLocked reports whether a lockout is in force now
func (t *LockoutTracker) IsLocked() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state.IsLockedAt(t.now())
}

// LockedUntil returns the lockout expiry while it is in the future
func (t *LockoutTracker) LockedUntil() *time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.state.IsLockedAt(t.now()) {
		return nil
	}
	until := *t.state.LockoutUntil
	return &until
}

// LockedMessage describes the lockout still in force, or "" when not locked
func (t *LockoutTracker) LockedMessage() string {
	until := t.LockedUntil()
	if until == nil {
		return ""
	}
	left := until.Sub(t.now())
	return fmt.Sprintf("Account locked due to too many failed attempts. Try again in %s.", humanDuration(left))
}

// IsRateLimited reports whether the attempts in the trailing window meet the ceiling
func (t *LockoutTracker) IsRateLimited() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	since := t.now().Add(-t.config.RateLimitWindow)
	count := 0
	for _, a := range t.attempts {
		if a.Timestamp.After(since) {
			count++
		}
	}
	return count >= t.config.RateLimitMaxAttempts
}

// RecordAttempt appends to the history, dropping the oldest entries past the cap
func (t *LockoutTracker) RecordAttempt(attempt models.LoginAttempt) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if attempt.Timestamp.IsZero() {
		attempt.Timestamp = t.now()
	}
	t.attempts = append(t.attempts, attempt)
	if overflow := len(t.attempts) - t.config.HistorySize; t.config.HistorySize > 0 && overflow > 0 {
		t.attempts = append([]models.LoginAttempt(nil), t.attempts[overflow:]...)
	}
}

// Reset clears the failure counter and any lockout
func (t *LockoutTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.FailedAttempts = 0
	t.state.LockoutUntil = nil
}

// BeginSession records the session now owned by the tab
func (t *LockoutTracker) BeginSession(sessionID string, start time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.SessionID = sessionID
	t.state.SessionStartTime = start
	t.state.LastActivity = start
}

// EndSession clears session bookkeeping and failure counters. Lockout survives.
func (t *LockoutTracker) EndSession() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.SessionID = ""
	t.state.SessionStartTime = time.Time{}
	t.state.FailedAttempts = 0
	t.state.LastActivity = t.now()
}

// TouchActivity stamps lastActivity
func (t *LockoutTracker) TouchActivity(at time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state.LastActivity = at
}

// State returns a copy of the security state
func (t *LockoutTracker) State() models.SecurityState {
	t.mu.Lock()
	defer t.mu.Unlock()
	state := t.state
	if state.LockoutUntil != nil {
		until := *state.LockoutUntil
		state.LockoutUntil = &until
	}
	return state
}

// RecentAttempts returns up to n of the newest attempts, newest first
func (t *LockoutTracker) RecentAttempts(n int) []models.LoginAttempt {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n > len(t.attempts) {
		n = len(t.attempts)
	}
	out := make([]models.LoginAttempt, 0, n)
	for i := len(t.attempts) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, t.attempts[i])
	}
	return out
}

// humanDuration renders whole minutes, or seconds below one minute
func humanDuration(d time.Duration) string {
	if d < time.Minute {
		secs := int((d + time.Second - 1) / time.Second)
		if secs == 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", secs)
	}
	mins := int((d + time.Minute - 1) / time.Minute)
	if mins == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", mins)
}
