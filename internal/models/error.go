package models

import "errors"

var (
	// Repository outcomes, mapped from driver errors
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("already exists")
	ErrBadRequest = errors.New("rejected by a table constraint")

	// ErrInvalidTabToken means the admin_tab cookie or header failed verification
	ErrInvalidTabToken = errors.New("invalid tab token")
)
