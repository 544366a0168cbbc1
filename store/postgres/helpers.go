package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// pgError extracts the PostgreSQL error, or nil.
func pgError(err error) *pgconn.PgError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr
	}
	return nil
}

// isDuplicateOn checks if err is a unique_violation (23505) on the named
// constraint or index.
func isDuplicateOn(err error, constraint string) bool {
	pgErr := pgError(err)
	return pgErr != nil && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

// isDuplicateKey checks if err is any unique_violation (23505).
func isDuplicateKey(err error) bool {
	pgErr := pgError(err)
	return pgErr != nil && pgErr.Code == "23505"
}
