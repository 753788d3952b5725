package models

import "time"

// AuthStatus names the states of a console's authentication state machine
type AuthStatus string

const (
	StatusUnauthenticated AuthStatus = "unauthenticated"
	StatusAuthenticating  AuthStatus = "authenticating"
	StatusAuthenticated   AuthStatus = "authenticated"
	StatusLockedOut       AuthStatus = "locked_out"
)

// AuthState is a closed set of console states. Only the types in this file implement it.
type AuthState interface {
	Status() AuthStatus
	isAuthState()
}

// Unauthenticated is the resting state of a tab without a session
type Unauthenticated struct{}

// Authenticating is held while credentials and geolocation are being resolved
type Authenticating struct {
	StartedAt time.Time
}

// Authenticated carries the tab's current session and its absolute expiry
type Authenticated struct {
	Session   AdminSession
	ExpiresAt time.Time
}

// LockedOut rejects every login attempt until the lockout elapses
type LockedOut struct {
	Until time.Time
}

func (Unauthenticated) Status() AuthStatus { return StatusUnauthenticated }
func (Authenticating) Status() AuthStatus  { return StatusAuthenticating }
func (Authenticated) Status() AuthStatus   { return StatusAuthenticated }
func (LockedOut) Status() AuthStatus       { return StatusLockedOut }

func (Unauthenticated) isAuthState() {}
func (Authenticating) isAuthState()  {}
func (Authenticated) isAuthState()   {}
func (LockedOut) isAuthState()       {}
