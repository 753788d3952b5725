package background

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/adminguard/internal/models"
)

// Task names owned by a SessionLifecycle
const (
	TaskCountdown = "countdown"
	TaskSync      = "sync"
	TaskIdle      = "idle"
)

// ExpiryReason records why a session ended
type ExpiryReason string

const (
	ReasonLogout         ExpiryReason = "logout"
	ReasonSessionTimeout ExpiryReason = "session_timeout"
	ReasonIdleTimeout    ExpiryReason = "idle_timeout"
)

// SessionRepository is the tab-bound session persistence a lifecycle drives
type SessionRepository interface {
	Current(ctx context.Context) *models.AdminSession
	ClearCurrent(ctx context.Context)
	List(ctx context.Context) []models.AdminSession
	AddOrUpdate(ctx context.Context, session models.AdminSession)
	Remove(ctx context.Context, sessionID string)
	Touch(ctx context.Context, now time.Time) *models.AdminSession
	PurgeExpired(ctx context.Context, now time.Time, timeout time.Duration) []models.AdminSession
}

type LifecycleConfig struct {
	SessionTimeout    time.Duration
	IdleTimeout       time.Duration
	CountdownInterval time.Duration
	SyncInterval      time.Duration
	Now               func() time.Time
}

// LifecycleHooks are invoked without any lifecycle lock held
type LifecycleHooks struct {
	OnTick     func(remaining time.Duration)
	OnActivity func(at time.Time)
	OnExpire   func(reason ExpiryReason)
}

// SessionLifecycle owns the countdown, sync and idle tasks of one tab's session
type SessionLifecycle struct {
	store   SessionRepository
	sched   *Scheduler
	cfg     LifecycleConfig
	hooks   LifecycleHooks
	baseCtx context.Context
	logger  *slog.Logger

	mu        sync.Mutex
	active    bool
	loginTime time.Time
	remaining time.Duration
}

// NewSessionLifecycle creates a lifecycle. baseCtx is handed to timer-driven callbacks.
func NewSessionLifecycle(baseCtx context.Context, store SessionRepository, cfg LifecycleConfig, hooks LifecycleHooks, logger *slog.Logger) *SessionLifecycle {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionLifecycle{
		store:   store,
		sched:   NewScheduler(),
		cfg:     cfg,
		hooks:   hooks,
		baseCtx: baseCtx,
		logger:  logger,
	}
}

// StartTimer begins the countdown from loginTime and arms the idle timer.
// Calling it again replaces the running countdown.
func (l *SessionLifecycle) StartTimer(loginTime time.Time) {
	l.mu.Lock()
	l.active = true
	l.loginTime = loginTime
	l.remaining = l.remainingAt(l.cfg.Now())
	l.mu.Unlock()

	l.sched.Every(TaskCountdown, l.cfg.CountdownInterval, func() { l.Tick(l.baseCtx) })
	l.armIdle()
}

// StartSync begins the periodic roster sweep
func (l *SessionLifecycle) StartSync() {
	l.sched.Every(TaskSync, l.cfg.SyncInterval, func() { l.Sync(l.baseCtx) })
}

// Tick performs one countdown step
func (l *SessionLifecycle) Tick(ctx context.Context) {
	now := l.cfg.Now()

	l.mu.Lock()
	if !l.active {
		l.mu.Unlock()
		return
	}
	l.remaining = l.remainingAt(now)
	remaining := l.remaining
	l.mu.Unlock()

	if remaining > 0 {
		l.store.Touch(ctx, now)
	}
	if l.hooks.OnTick != nil {
		l.hooks.OnTick(remaining)
	}
	if remaining == 0 {
		l.Expire(ctx, ReasonSessionTimeout)
	}
}

// Sync purges expired roster entries and returns how many were removed.
// The current pointer is cleared only when its session was purged.
func (l *SessionLifecycle) Sync(ctx context.Context) int {
	now := l.cfg.Now()
	removed := l.store.PurgeExpired(ctx, now, l.cfg.SessionTimeout)

	current := l.store.Current(ctx)
	purgedCurrent := false
	if current != nil {
		for _, s := range removed {
			if s.SessionID == current.SessionID {
				purgedCurrent = true
				break
			}
		}
	}

	switch {
	case purgedCurrent:
		l.store.ClearCurrent(ctx)
		if l.Active() {
			l.Expire(ctx, ReasonSessionTimeout)
		}
	case current != nil:
		l.store.Touch(ctx, now)
		if l.hooks.OnActivity != nil {
			l.hooks.OnActivity(now)
		}
	}

	if len(removed) > 0 {
		l.logger.Debug("purged expired sessions", "removed", len(removed))
	}
	return len(removed)
}

// OnUserActivity records an interaction and re-arms the idle timer
func (l *SessionLifecycle) OnUserActivity(ctx context.Context) {
	if !l.Active() {
		return
	}
	now := l.cfg.Now()
	l.store.Touch(ctx, now)
	if l.hooks.OnActivity != nil {
		l.hooks.OnActivity(now)
	}
	l.armIdle()
}

func (l *SessionLifecycle) armIdle() {
	if l.cfg.IdleTimeout <= 0 {
		return
	}
	l.sched.After(TaskIdle, l.cfg.IdleTimeout, func() { l.Expire(l.baseCtx, ReasonIdleTimeout) })
}

// Expire tears the session down. Only the first call after StartTimer has any
// effect; it reports whether this call did the teardown.
func (l *SessionLifecycle) Expire(ctx context.Context, reason ExpiryReason) bool {
	l.mu.Lock()
	if !l.active {
		l.mu.Unlock()
		return false
	}
	l.active = false
	l.remaining = 0
	l.mu.Unlock()

	l.sched.CancelAll()
	if current := l.store.Current(ctx); current != nil {
		l.store.Remove(ctx, current.SessionID)
	}

	if l.hooks.OnExpire != nil {
		l.hooks.OnExpire(reason)
	}
	return true
}

// Remaining is the time left as of the last countdown step
func (l *SessionLifecycle) Remaining() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remaining
}

func (l *SessionLifecycle) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Scheduled reports whether the named task is running
func (l *SessionLifecycle) Scheduled(name string) bool {
	return l.sched.Active(name)
}

// Stop cancels every task without ending the session
func (l *SessionLifecycle) Stop() {
	l.sched.CancelAll()
}

func (l *SessionLifecycle) remainingAt(now time.Time) time.Duration {
	remaining := l.cfg.SessionTimeout - now.Sub(l.loginTime)
	if remaining < 0 {
		return 0
	}
	return remaining
}
