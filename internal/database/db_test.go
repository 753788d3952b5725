package database

import (
	"errors"
	"fmt"
	"testing"

	"github.com/BradenHooton/adminguard/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestMapPostgresError(t *testing.T) {
	assert.NoError(t, MapPostgresError(nil))
	assert.ErrorIs(t, MapPostgresError(fmt.Errorf("scan: %w", pgx.ErrNoRows)), models.ErrNotFound)
	assert.ErrorIs(t, MapPostgresError(&pgconn.PgError{Code: "23502"}), models.ErrBadRequest)
	assert.ErrorIs(t, MapPostgresError(&pgconn.PgError{Code: "22001"}), models.ErrBadRequest)

	dup := MapPostgresError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})
	assert.ErrorIs(t, dup, models.ErrConflict)
	assert.Contains(t, dup.Error(), "users_email_key")

	deadlock := &pgconn.PgError{Code: "40P01"}
	assert.Equal(t, error(deadlock), MapPostgresError(deadlock))

	other := errors.New("connection reset")
	assert.Equal(t, other, MapPostgresError(other))
}
