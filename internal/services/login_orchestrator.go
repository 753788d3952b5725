package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/adminguard/internal/background"
	"github.com/BradenHooton/adminguard/internal/geo"
	"github.com/BradenHooton/adminguard/internal/models"
	"github.com/BradenHooton/adminguard/pkg/logger"
	"github.com/google/uuid"
)

// Outcome classifies a login submission
type Outcome string

const (
	OutcomeSuccess               Outcome = "success"
	OutcomeLockedOut             Outcome = "locked_out"
	OutcomeRateLimited           Outcome = "rate_limited"
	OutcomeInvalidCredentials    Outcome = "invalid_credentials"
	OutcomeInsufficientPrivilege Outcome = "insufficient_privilege"
	OutcomeInProgress            Outcome = "in_progress"
)

// Inline messages shown by the console
const (
	InsufficientPrivilegeMessage = "Access denied. Admin privileges required."
	SessionExpiredMessage        = "Session expired for security reasons. Please log in again."
	InProgressMessage            = "A login attempt is already in progress."
	AuthenticationFailedMessage  = "Authentication failed. Please try again."
)

const notifyTimeout = 10 * time.Second

// Validator checks credentials
type Validator interface {
	Validate(ctx context.Context, username, password string) (*CredentialResult, error)
}

// GeoResolver annotates new sessions with location metadata
type GeoResolver interface {
	Resolve(ctx context.Context) models.GeoLocation
}

// SessionStore is the tab-bound session persistence with its change feed
type SessionStore interface {
	background.SessionRepository
	Watch(ctx context.Context, fn func()) error
}

// ConsoleMetrics records login and session outcomes
type ConsoleMetrics interface {
	LoginOutcome(outcome string)
	Lockout()
	SessionExpired(reason string)
}

// OrchestratorConfig holds the timing policy of a console
type OrchestratorConfig struct {
	Lockout           LockoutConfig
	SessionTimeout    time.Duration
	IdleTimeout       time.Duration
	CountdownInterval time.Duration
	SyncInterval      time.Duration

	// CountBackendFailures makes lookup errors count toward the lockout threshold
	CountBackendFailures bool

	Now func() time.Time
}

// OrchestratorDeps are the collaborators of a console. Notifier and Metrics may be nil.
type OrchestratorDeps struct {
	Validator Validator
	Geo       GeoResolver
	Store     SessionStore
	Notifier  LockoutNotifier
	Metrics   ConsoleMetrics
	Audit     *logger.AuditLogger
	Logger    *slog.Logger
}

// LoginResult is the outcome of Submit with exactly one inline message on rejection
type LoginResult struct {
	Outcome Outcome
	Message string
	State   models.AuthState
}

// EventType names console change notifications
type EventType string

const (
	EventStatus   EventType = "status"
	EventSessions EventType = "sessions"
	EventTick     EventType = "tick"
)

// ConsoleEvent is pushed to subscribers when the console changes
type ConsoleEvent struct {
	Type EventType
	View ConsoleView
}

// LoginOrchestrator is the login gate of one browser tab
type LoginOrchestrator struct {
	tabID     string
	cfg       OrchestratorConfig
	deps      OrchestratorDeps
	tracker   *LockoutTracker
	lifecycle *background.SessionLifecycle
	logger    *slog.Logger

	baseCtx context.Context
	cancel  context.CancelFunc
	refresh chan struct{}
	wg      sync.WaitGroup

	mountOnce sync.Once

	mu          sync.Mutex
	state       models.AuthState
	message     string
	activeCount int
	lastSeen    time.Time
	submitting  bool
	listeners   map[int]chan ConsoleEvent
	nextID      int
}

// NewLoginOrchestrator creates the console for tabID. Call Mount before use and Close when done.
func NewLoginOrchestrator(tabID string, cfg OrchestratorConfig, deps OrchestratorDeps) *LoginOrchestrator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Audit == nil {
		deps.Audit = logger.NewAuditLogger(deps.Logger)
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	o := &LoginOrchestrator{
		tabID:     tabID,
		cfg:       cfg,
		deps:      deps,
		logger:    deps.Logger.With(slog.String("tab_id", tabID)),
		baseCtx:   baseCtx,
		cancel:    cancel,
		refresh:   make(chan struct{}, 1),
		state:     models.Unauthenticated{},
		lastSeen:  cfg.Now(),
		listeners: make(map[int]chan ConsoleEvent),
	}
	o.tracker = NewLockoutTracker(cfg.Lockout, cfg.Now, o.logger)
	o.lifecycle = background.NewSessionLifecycle(baseCtx, deps.Store, background.LifecycleConfig{
		SessionTimeout:    cfg.SessionTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		CountdownInterval: cfg.CountdownInterval,
		SyncInterval:      cfg.SyncInterval,
		Now:               cfg.Now,
	}, background.LifecycleHooks{
		OnTick:     o.onTick,
		OnActivity: o.tracker.TouchActivity,
		OnExpire:   o.onExpire,
	}, o.logger)
	return o
}

// TabID returns the tab this console serves
func (o *LoginOrchestrator) TabID() string {
	return o.tabID
}

// Mount restores a persisted session younger than the session timeout, purges
// an older one, sweeps the roster and starts following roster changes.
// Only the first call has any effect.
func (o *LoginOrchestrator) Mount(ctx context.Context) {
	o.mountOnce.Do(func() {
		o.restore(ctx)
		o.lifecycle.Sync(ctx)
		o.refreshActiveCount(ctx)

		o.wg.Add(2)
		go o.watchRoster()
		go o.refreshLoop()
	})
}

func (o *LoginOrchestrator) restore(ctx context.Context) {
	current := o.deps.Store.Current(ctx)
	if current == nil {
		return
	}

	now := o.cfg.Now()
	if now.Sub(current.LoginTime) >= o.cfg.SessionTimeout {
		o.deps.Store.Remove(ctx, current.SessionID)
		o.logger.Info("purged expired persisted session", slog.String("session_id", truncateID(current.SessionID)))
		return
	}

	o.tracker.BeginSession(current.SessionID, current.LoginTime)
	o.setState(models.Authenticated{
		Session:   *current,
		ExpiresAt: current.LoginTime.Add(o.cfg.SessionTimeout),
	}, "")
	o.lifecycle.StartTimer(current.LoginTime)
	o.lifecycle.StartSync()

	o.deps.Audit.LogSessionEvent(logger.AuditEvent{
		EventType: "session_restored",
		TabID:     o.tabID,
		UserID:    current.UserID,
		SessionID: current.SessionID,
		IPAddress: current.IP,
		Country:   current.Country,
	})
}

// Submit runs one login attempt
func (o *LoginOrchestrator) Submit(ctx context.Context, username, password string) LoginResult {
	o.mu.Lock()
	if o.submitting {
		o.mu.Unlock()
		return LoginResult{Outcome: OutcomeInProgress, Message: InProgressMessage, State: o.State()}
	}
	if _, ok := o.state.(models.Authenticated); ok {
		o.mu.Unlock()
		return LoginResult{Outcome: OutcomeSuccess, State: o.State()}
	}
	o.submitting = true
	o.lastSeen = o.cfg.Now()
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.submitting = false
		o.mu.Unlock()
	}()

	if o.tracker.IsLocked() {
		return o.reject(OutcomeLockedOut, o.tracker.LockedMessage())
	}
	if o.tracker.IsRateLimited() {
		return o.reject(OutcomeRateLimited, RateLimitedMessage)
	}

	o.setState(models.Authenticating{StartedAt: o.cfg.Now()}, "")

	result, err := o.deps.Validator.Validate(ctx, username, password)
	switch {
	case errors.Is(err, context.Canceled):
		// The caller went away mid-lookup; nothing was decided about the credentials
		o.logger.Info("credential lookup abandoned by client", slog.String("tab_id", o.tabID))
		return o.finishRejected(username, OutcomeInvalidCredentials, AuthenticationFailedMessage, "client_cancelled")
	case err != nil:
		o.logger.Error("credential lookup failed", slog.Any("error", err))
		if o.cfg.CountBackendFailures {
			return o.fail(ctx, username, "backend_error")
		}
		o.recordFailedAttempt(ctx)
		return o.finishRejected(username, OutcomeInvalidCredentials, AuthenticationFailedMessage, "backend_error")
	case result == nil:
		return o.fail(ctx, username, "invalid_credentials")
	case !result.HasAdminAccess:
		o.recordFailedAttempt(ctx)
		return o.finishRejected(username, OutcomeInsufficientPrivilege, InsufficientPrivilegeMessage, "insufficient_privilege")
	}

	return o.succeed(ctx, username, result.User)
}

// reject answers without contacting the validator or touching the history
func (o *LoginOrchestrator) reject(outcome Outcome, message string) LoginResult {
	o.setMessage(message)
	o.observe(outcome)
	return LoginResult{Outcome: outcome, Message: message, State: o.State()}
}

func (o *LoginOrchestrator) fail(ctx context.Context, username, reason string) LoginResult {
	message, locked := o.tracker.RecordFailure()
	o.recordFailedAttempt(ctx)

	outcome := OutcomeInvalidCredentials
	if locked {
		outcome = OutcomeLockedOut
		if o.deps.Metrics != nil {
			o.deps.Metrics.Lockout()
		}
		o.notifyLockout(ctx, username)
	}
	return o.finishRejected(username, outcome, message, reason)
}

func (o *LoginOrchestrator) finishRejected(username string, outcome Outcome, message, reason string) LoginResult {
	o.setState(models.Unauthenticated{}, message)
	o.observe(outcome)
	o.deps.Audit.LogAuthAttempt(logger.AuditEvent{
		EventType:     "admin_login",
		TabID:         o.tabID,
		Email:         username,
		Success:       false,
		FailureReason: reason,
		Metadata:      map[string]string{"outcome": string(outcome)},
	})
	return LoginResult{Outcome: outcome, Message: message, State: o.State()}
}

func (o *LoginOrchestrator) succeed(ctx context.Context, username string, user *models.User) LoginResult {
	sessionID := uuid.NewString()
	loc := o.deps.Geo.Resolve(ctx)

	now := o.cfg.Now()
	session := models.AdminSession{
		SessionID:    sessionID,
		IP:           loc.IP,
		Country:      loc.Country,
		City:         loc.City,
		LoginTime:    now,
		LastActivity: now,
		IsActive:     true,
		UserID:       user.ID,
	}
	o.deps.Store.AddOrUpdate(ctx, session)

	o.tracker.Reset()
	o.tracker.BeginSession(sessionID, now)
	o.lifecycle.StartTimer(now)
	o.lifecycle.StartSync()
	o.tracker.RecordAttempt(models.LoginAttempt{
		Timestamp: now,
		Success:   true,
		IPAddress: loc.IP,
		Country:   loc.Country,
		SessionID: sessionID,
	})

	o.setState(models.Authenticated{Session: session, ExpiresAt: now.Add(o.cfg.SessionTimeout)}, "")
	o.refreshActiveCount(ctx)
	o.observe(OutcomeSuccess)

	o.deps.Audit.LogAuthAttempt(logger.AuditEvent{
		EventType: "admin_login",
		TabID:     o.tabID,
		UserID:    user.ID,
		Email:     username,
		SessionID: sessionID,
		IPAddress: loc.IP,
		Country:   loc.Country,
		Success:   true,
	})

	return LoginResult{Outcome: OutcomeSuccess, State: o.State()}
}

// recordFailedAttempt logs a rejected credential check. Failed attempts are
// never geolocated, so only the request's client IP is kept.
func (o *LoginOrchestrator) recordFailedAttempt(ctx context.Context) {
	ip := geo.ClientIPFrom(ctx)
	if ip == "" {
		ip = geo.Unknown
	}
	o.tracker.RecordAttempt(models.LoginAttempt{
		Timestamp: o.cfg.Now(),
		Success:   false,
		IPAddress: ip,
		Country:   geo.Unknown,
	})
}

func (o *LoginOrchestrator) notifyLockout(ctx context.Context, username string) {
	if o.deps.Notifier == nil {
		return
	}
	until := o.tracker.LockedUntil()
	if until == nil {
		return
	}
	alert := LockoutAlert{
		TabID:          o.tabID,
		Email:          username,
		IPAddress:      geo.ClientIPFrom(ctx),
		FailedAttempts: o.tracker.State().FailedAttempts,
		LockedUntil:    *until,
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		if err := o.deps.Notifier.NotifyLockout(sendCtx, alert); err != nil {
			o.logger.Error("lockout alert failed", slog.Any("error", err))
		}
	}()
}

// OnUserActivity reports a qualifying interaction from the tab
func (o *LoginOrchestrator) OnUserActivity(ctx context.Context) {
	o.mu.Lock()
	o.lastSeen = o.cfg.Now()
	o.mu.Unlock()

	o.lifecycle.OnUserActivity(ctx)
}

// Logout ends the session without an inline message
func (o *LoginOrchestrator) Logout(ctx context.Context) {
	o.mu.Lock()
	o.lastSeen = o.cfg.Now()
	o.mu.Unlock()

	if !o.lifecycle.Expire(ctx, background.ReasonLogout) {
		o.setState(models.Unauthenticated{}, "")
	}
}

func (o *LoginOrchestrator) onTick(time.Duration) {
	o.emit(EventTick)
}

func (o *LoginOrchestrator) onExpire(reason background.ExpiryReason) {
	o.tracker.EndSession()

	message := SessionExpiredMessage
	if reason == background.ReasonLogout {
		message = ""
	}

	var session models.AdminSession
	o.mu.Lock()
	if auth, ok := o.state.(models.Authenticated); ok {
		session = auth.Session
	}
	o.mu.Unlock()

	o.setState(models.Unauthenticated{}, message)
	o.refreshActiveCount(o.baseCtx)

	if o.deps.Metrics != nil {
		o.deps.Metrics.SessionExpired(string(reason))
	}
	o.deps.Audit.LogSessionEvent(logger.AuditEvent{
		EventType: "session_ended",
		TabID:     o.tabID,
		UserID:    session.UserID,
		SessionID: session.SessionID,
		IPAddress: session.IP,
		Country:   session.Country,
		Metadata:  map[string]string{"reason": string(reason)},
	})
}

// State returns the tab's auth state. An unauthenticated tab under lockout reads as LockedOut.
func (o *LoginOrchestrator) State() models.AuthState {
	o.mu.Lock()
	state := o.state
	o.mu.Unlock()

	if _, ok := state.(models.Unauthenticated); ok {
		if until := o.tracker.LockedUntil(); until != nil {
			return models.LockedOut{Until: *until}
		}
	}
	return state
}

// SecurityState returns a copy of the tab's counters
func (o *LoginOrchestrator) SecurityState() models.SecurityState {
	return o.tracker.State()
}

// Lifecycle exposes the session lifecycle for inspection
func (o *LoginOrchestrator) Lifecycle() *background.SessionLifecycle {
	return o.lifecycle
}

// Idle reports whether the console holds nothing worth keeping: no session,
// no lockout and no request for longer than idleFor
func (o *LoginOrchestrator) Idle(idleFor time.Duration) bool {
	if o.State().Status() != models.StatusUnauthenticated {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.submitting && o.cfg.Now().Sub(o.lastSeen) > idleFor
}

// Subscribe returns a channel of console events and a function that releases it
func (o *LoginOrchestrator) Subscribe() (<-chan ConsoleEvent, func()) {
	ch := make(chan ConsoleEvent, 16)

	o.mu.Lock()
	id := o.nextID
	o.nextID++
	o.listeners[id] = ch
	o.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			o.mu.Lock()
			delete(o.listeners, id)
			o.mu.Unlock()
		})
	}
}

// Done is closed once the console is closed
func (o *LoginOrchestrator) Done() <-chan struct{} {
	return o.baseCtx.Done()
}

// Close stops the console's goroutines without ending its session, which stays
// in the shared roster for another process or a later restore.
func (o *LoginOrchestrator) Close() {
	o.cancel()
	o.lifecycle.Stop()
	o.wg.Wait()
}

func (o *LoginOrchestrator) watchRoster() {
	defer o.wg.Done()
	err := o.deps.Store.Watch(o.baseCtx, func() {
		select {
		case o.refresh <- struct{}{}:
		default:
		}
	})
	if err != nil && o.baseCtx.Err() == nil {
		o.logger.Warn("roster change feed stopped", slog.Any("error", err))
	}
}

func (o *LoginOrchestrator) refreshLoop() {
	defer o.wg.Done()
	for {
		select {
		case <-o.baseCtx.Done():
			return
		case <-o.refresh:
			o.refreshActiveCount(o.baseCtx)
		}
	}
}

func (o *LoginOrchestrator) refreshActiveCount(ctx context.Context) {
	count := len(o.deps.Store.List(ctx))

	o.mu.Lock()
	changed := count != o.activeCount
	o.activeCount = count
	o.mu.Unlock()

	if changed {
		o.emit(EventSessions)
	}
}

func (o *LoginOrchestrator) setState(state models.AuthState, message string) {
	o.mu.Lock()
	changed := o.state.Status() != state.Status()
	o.state = state
	o.message = message
	o.mu.Unlock()

	if changed {
		o.emit(EventStatus)
	}
}

func (o *LoginOrchestrator) setMessage(message string) {
	o.mu.Lock()
	o.message = message
	o.mu.Unlock()
}

func (o *LoginOrchestrator) observe(outcome Outcome) {
	if o.deps.Metrics != nil {
		o.deps.Metrics.LoginOutcome(string(outcome))
	}
}

func (o *LoginOrchestrator) emit(eventType EventType) {
	o.mu.Lock()
	if len(o.listeners) == 0 {
		o.mu.Unlock()
		return
	}
	o.mu.Unlock()

	event := ConsoleEvent{Type: eventType, View: o.View()}

	o.mu.Lock()
	defer o.mu.Unlock()
	for _, ch := range o.listeners {
		select {
		case ch <- event:
		default:
			// Slow subscriber; it will catch up on the next event
		}
	}
}

func truncateID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return fmt.Sprintf("%s...", id[:8])
}
