package storage

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrQuotaExceeded is returned when a realized session would push a plan past its total.
var ErrQuotaExceeded = errors.New("session quota exhausted")

// IsConflict reports an exclusion-constraint violation (overlapping appointment).
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// validID reports whether id can name a row; ids are uuids, anything else matches nothing.
func validID(id string) bool {
	return uuid.Validate(id) == nil
}
