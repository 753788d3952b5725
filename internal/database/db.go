package database

import (
	"errors"
	"fmt"

	"github.com/BradenHooton/adminguard/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE classes the user repository cares about
var pgCodeSentinels = map[string]error{
	"23505": models.ErrConflict,   // unique_violation
	"23502": models.ErrBadRequest, // not_null_violation
	"23514": models.ErrBadRequest, // check_violation
	"22001": models.ErrBadRequest, // string_data_right_truncation
}

// MapPostgresError turns driver errors into model sentinels. The constraint
// name is kept in the message so logs still say which rule fired.
func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	sentinel, ok := pgCodeSentinels[pgErr.Code]
	if !ok {
		return err
	}
	if pgErr.ConstraintName == "" {
		return sentinel
	}
	return fmt.Errorf("%w: %s", sentinel, pgErr.ConstraintName)
}
