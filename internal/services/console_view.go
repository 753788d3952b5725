package services

import (
	"fmt"
	"time"

	"github.com/BradenHooton/adminguard/internal/models"
)

const recentItems = 3

// SessionSummary is a roster entry as displayed to other admins
type SessionSummary struct {
	SessionID    string    `json:"session_id"`
	IP           string    `json:"ip"`
	Country      string    `json:"country"`
	City         string    `json:"city"`
	LoginTime    time.Time `json:"login_time"`
	LastActivity time.Time `json:"last_activity"`
	IsActive     bool      `json:"is_active"`
}

// ConsoleView is everything the login page and dashboard shell render
type ConsoleView struct {
	Status           models.AuthStatus     `json:"status"`
	Message          string                `json:"message,omitempty"`
	FailedAttempts   int                   `json:"failed_attempts"`
	LockoutUntil     *time.Time            `json:"lockout_until,omitempty"`
	ActiveSessions   int                   `json:"active_sessions"`
	SessionID        string                `json:"session_id,omitempty"`
	RemainingTime    string                `json:"remaining_time,omitempty"`
	RemainingSeconds int                   `json:"remaining_seconds"`
	RecentSessions   []SessionSummary      `json:"recent_sessions"`
	RecentAttempts   []models.LoginAttempt `json:"recent_attempts"`
}

// View snapshots the console for rendering
func (o *LoginOrchestrator) View() ConsoleView {
	state := o.State()
	security := o.tracker.State()

	o.mu.Lock()
	message := o.message
	active := o.activeCount
	o.mu.Unlock()

	view := ConsoleView{
		Status:         state.Status(),
		Message:        message,
		FailedAttempts: security.FailedAttempts,
		ActiveSessions: active,
		RecentSessions: []SessionSummary{},
		RecentAttempts: o.tracker.RecentAttempts(recentItems),
	}

	switch s := state.(type) {
	case models.LockedOut:
		until := s.Until
		view.LockoutUntil = &until
	case models.Authenticated:
		remaining := s.ExpiresAt.Sub(o.cfg.Now())
		if remaining < 0 {
			remaining = 0
		}
		view.SessionID = truncateID(s.Session.SessionID)
		view.RemainingTime = formatRemaining(remaining)
		view.RemainingSeconds = int(remaining / time.Second)
		view.RecentSessions = o.recentSessions()
	}

	return view
}

// recentSessions returns the newest roster entries first
func (o *LoginOrchestrator) recentSessions() []SessionSummary {
	roster := o.deps.Store.List(o.baseCtx)
	out := make([]SessionSummary, 0, recentItems)
	for i := len(roster) - 1; i >= 0 && len(out) < recentItems; i-- {
		s := roster[i]
		out = append(out, SessionSummary{
			SessionID:    truncateID(s.SessionID),
			IP:           s.IP,
			Country:      s.Country,
			City:         s.City,
			LoginTime:    s.LoginTime,
			LastActivity: s.LastActivity,
			IsActive:     s.IsActive,
		})
	}
	return out
}

// formatRemaining renders MM:SS
func formatRemaining(d time.Duration) string {
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
