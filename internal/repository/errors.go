package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrUserNotFound      = errors.New("user does not exist")
	ErrEventNotFound     = errors.New("event does not exist")
	ErrDuplicateUsername = errors.New("username is already taken")

	// ErrStoreUnavailable marks infrastructure failures (dead connection,
	// timeout) where the outcome of a write is unknown. Callers must treat
	// the operation as indeterminate and must not act on it as if it
	// succeeded.
	ErrStoreUnavailable = errors.New("event store is unavailable")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// classify separates "the database answered" errors, which each query maps
// to its own sentinel, from transport-level failures where no answer
// arrived at all.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return err
	}
	// Anything else (context deadline, dead socket, pool exhaustion) means
	// we never got an answer.
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
