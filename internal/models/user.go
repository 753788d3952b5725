package models

import (
	"time"
)

// User is the cached view of a row in the remote users table.
type User struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	IsAdmin      bool // Admin console privilege flag
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
