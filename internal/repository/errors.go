package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound is returned when a lookup or conditional update matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned when an insert hits a unique constraint.
	ErrAlreadyExists = errors.New("record already exists")
)

const pgUniqueViolation = "23505"

// mapErr translates driver errors into the package sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return ErrAlreadyExists
	}
	return err
}

// ErrConditionFailed is returned when a conditional update finds the row in
// an unexpected state.
var ErrConditionFailed = errors.New("condition failed")
