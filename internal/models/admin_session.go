package models

import "time"

// AdminSession is one entry of the shared session roster.
// UserID references the remote users table, which stays authoritative.
type AdminSession struct {
	SessionID    string    `json:"sessionId"`
	IP           string    `json:"ip"`
	Country      string    `json:"country"`
	City         string    `json:"city"`
	LoginTime    time.Time `json:"loginTime"`
	LastActivity time.Time `json:"lastActivity"`
	IsActive     bool      `json:"isActive"`
	UserID       string    `json:"userId"`
}

// ExpiredAt reports whether the session has been inactive for at least timeout
func (s AdminSession) ExpiredAt(now time.Time, timeout time.Duration) bool {
	return now.Sub(s.LastActivity) >= timeout
}

// GeoLocation is best-effort location metadata attached to a session
type GeoLocation struct {
	IP      string `json:"ip"`
	Country string `json:"country"`
	City    string `json:"city"`
}
