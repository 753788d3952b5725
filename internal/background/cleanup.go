package background

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/adminguard/internal/models"
)

// RosterPurger is the roster-wide view used by the cleanup sweep
type RosterPurger interface {
	PurgeExpired(ctx context.Context, now time.Time, timeout time.Duration) []models.AdminSession
	List(ctx context.Context) []models.AdminSession
}

// ConsoleEvictor drops idle consoles held in memory
type ConsoleEvictor interface {
	Evict(idleFor time.Duration) int
	Len() int
}

// CleanupGauges receives the sizes observed by each sweep
type CleanupGauges interface {
	SetRosterSize(n int)
	SetConsoles(n int)
}

// CleanupManager periodically purges expired sessions from the shared roster,
// so it stays clean while no console is running, and evicts idle consoles.
type CleanupManager struct {
	roster         RosterPurger
	consoles       ConsoleEvictor
	gauges         CleanupGauges
	logger         *slog.Logger
	interval       time.Duration
	sessionTimeout time.Duration
	evictAfter     time.Duration
	now            func() time.Time
	stopCh         chan struct{}
	stopOnce       sync.Once
}

// NewCleanupManager creates a new cleanup manager. consoles and gauges may be nil.
func NewCleanupManager(
	roster RosterPurger,
	consoles ConsoleEvictor,
	gauges CleanupGauges,
	logger *slog.Logger,
	interval, sessionTimeout, evictAfter time.Duration,
) *CleanupManager {
	return &CleanupManager{
		roster:         roster,
		consoles:       consoles,
		gauges:         gauges,
		logger:         logger,
		interval:       interval,
		sessionTimeout: sessionTimeout,
		evictAfter:     evictAfter,
		now:            time.Now,
		stopCh:         make(chan struct{}),
	}
}

// Start runs a sweep immediately and then every interval until stopped
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			cm.RunOnce(ctx)
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// RunOnce performs a single sweep
func (cm *CleanupManager) RunOnce(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	removed := cm.roster.PurgeExpired(cleanupCtx, cm.now(), cm.sessionTimeout)
	if len(removed) > 0 {
		cm.logger.Info("expired session cleanup completed", slog.Int("sessions_removed", len(removed)))
	}

	evicted := 0
	if cm.consoles != nil && cm.evictAfter > 0 {
		evicted = cm.consoles.Evict(cm.evictAfter)
		if evicted > 0 {
			cm.logger.Info("idle consoles evicted", slog.Int("consoles_evicted", evicted))
		}
	}

	if cm.gauges != nil {
		cm.gauges.SetRosterSize(len(cm.roster.List(cleanupCtx)))
		if cm.consoles != nil {
			cm.gauges.SetConsoles(cm.consoles.Len())
		}
	}
}

// Stop signals the cleanup manager to stop. Safe to call more than once.
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
