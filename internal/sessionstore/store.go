package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/BradenHooton/adminguard/internal/models"
)

const (
	// RosterKey holds the JSON array of every tracked admin session
	RosterKey = "adminSessions"
	// currentKeyPrefix + tab id holds that tab's current session
	currentKeyPrefix = "currentAdminSession:"
)

// Store is a tab-bound view over a KV backend. It never returns errors:
// unavailable backends, missing keys and malformed JSON read as empty.
// A Store created with an empty tab id has no current-session pointer.
type Store struct {
	kv     KV
	tabID  string
	logger *slog.Logger
}

// NewStore binds a store to one tab
func NewStore(kv KV, tabID string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{kv: kv, tabID: tabID, logger: logger}
}

// ForTab returns a store over the same backend bound to another tab
func (s *Store) ForTab(tabID string) *Store {
	return &Store{kv: s.kv, tabID: tabID, logger: s.logger}
}

// TabID returns the tab this store is bound to
func (s *Store) TabID() string {
	return s.tabID
}

func (s *Store) currentKey() string {
	return currentKeyPrefix + s.tabID
}

// Current returns the tab's current session or nil
func (s *Store) Current(ctx context.Context) *models.AdminSession {
	if s.tabID == "" {
		return nil
	}

	var session models.AdminSession
	if !s.read(ctx, s.currentKey(), &session) {
		return nil
	}
	if session.SessionID == "" {
		return nil
	}
	return &session
}

// SetCurrent replaces the tab's current session pointer
func (s *Store) SetCurrent(ctx context.Context, session models.AdminSession) {
	if s.tabID == "" {
		return
	}
	s.write(ctx, s.currentKey(), session)
}

// ClearCurrent deletes the tab's current session pointer
func (s *Store) ClearCurrent(ctx context.Context) {
	if s.tabID == "" {
		return
	}
	if err := s.kv.Delete(ctx, s.currentKey()); err != nil {
		s.logger.Warn("session store delete failed", "key", s.currentKey(), "error", err)
	}
}

// List returns the shared roster, empty when absent or unreadable
func (s *Store) List(ctx context.Context) []models.AdminSession {
	var sessions []models.AdminSession
	if !s.read(ctx, RosterKey, &sessions) {
		return []models.AdminSession{}
	}
	if sessions == nil {
		return []models.AdminSession{}
	}
	return sessions
}

// SetAll overwrites the roster and announces the change
func (s *Store) SetAll(ctx context.Context, sessions []models.AdminSession) {
	if sessions == nil {
		sessions = []models.AdminSession{}
	}
	if !s.write(ctx, RosterKey, sessions) {
		return
	}
	if err := s.kv.Publish(ctx, RosterKey); err != nil {
		s.logger.Warn("session store publish failed", "error", err)
	}
}

// AddOrUpdate upserts by session id and makes the session current for this tab
func (s *Store) AddOrUpdate(ctx context.Context, session models.AdminSession) {
	sessions := s.List(ctx)

	replaced := false
	for i := range sessions {
		if sessions[i].SessionID == session.SessionID {
			sessions[i] = session
			replaced = true
			break
		}
	}
	if !replaced {
		sessions = append(sessions, session)
	}

	s.SetAll(ctx, sessions)
	s.SetCurrent(ctx, session)
}

// Remove deletes a session from the roster and clears the current pointer if it matches
func (s *Store) Remove(ctx context.Context, sessionID string) {
	sessions := s.List(ctx)
	kept := make([]models.AdminSession, 0, len(sessions))
	for _, session := range sessions {
		if session.SessionID != sessionID {
			kept = append(kept, session)
		}
	}
	if len(kept) != len(sessions) {
		s.SetAll(ctx, kept)
	}

	if current := s.Current(ctx); current != nil && current.SessionID == sessionID {
		s.ClearCurrent(ctx)
	}
}

// Touch stamps lastActivity on the current session, in the pointer and the roster.
// It returns the updated session, or nil when the tab has none.
func (s *Store) Touch(ctx context.Context, now time.Time) *models.AdminSession {
	current := s.Current(ctx)
	if current == nil {
		return nil
	}
	current.LastActivity = now
	s.AddOrUpdate(ctx, *current)
	return current
}

// PurgeExpired drops roster entries idle for at least timeout and returns them
func (s *Store) PurgeExpired(ctx context.Context, now time.Time, timeout time.Duration) []models.AdminSession {
	sessions := s.List(ctx)
	kept := make([]models.AdminSession, 0, len(sessions))
	var removed []models.AdminSession
	for _, session := range sessions {
		if session.ExpiredAt(now, timeout) {
			removed = append(removed, session)
			continue
		}
		kept = append(kept, session)
	}
	if len(removed) > 0 {
		s.SetAll(ctx, kept)
	}
	return removed
}

// Watch calls fn whenever the roster changes, until ctx is cancelled
func (s *Store) Watch(ctx context.Context, fn func()) error {
	return s.kv.Watch(ctx, func(key string) {
		if key == RosterKey {
			fn()
		}
	})
}

func (s *Store) read(ctx context.Context, key string, dest any) bool {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrKeyNotFound) {
			s.logger.Warn("session store read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		s.logger.Warn("session store holds malformed data", "key", key, "error", err)
		return false
	}
	return true
}

func (s *Store) write(ctx context.Context, key string, value any) bool {
	raw, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("session store encode failed", "key", key, "error", err)
		return false
	}
	if err := s.kv.Set(ctx, key, raw); err != nil {
		s.logger.Warn("session store write failed", "key", key, "error", err)
		return false
	}
	return true
}
