package models

import "time"

// LoginAttempt represents a single admin console login attempt.
// Attempts live only in the owning console's memory.
type LoginAttempt struct {
	Timestamp time.Time `json:"timestamp"`
	Success   bool      `json:"success"`
	IPAddress string    `json:"ip"`
	Country   string    `json:"country"`
	SessionID string    `json:"session_id,omitempty"`
}

// SecurityState is the per-tab failure and activity bookkeeping
type SecurityState struct {
	FailedAttempts   int        `json:"failed_attempts"`
	LockoutUntil     *time.Time `json:"lockout_until,omitempty"`
	LastActivity     time.Time  `json:"last_activity"`
	SessionID        string     `json:"session_id"`
	SessionStartTime time.Time  `json:"session_start_time"`
}

// IsLockedAt reports whether a lockout is active at the given instant
func (s SecurityState) IsLockedAt(now time.Time) bool {
	return s.LockoutUntil != nil && now.Before(*s.LockoutUntil)
}
