// Package store is the persistence layer: typed sqlx queries over the
// Postgres schema, one file per entity family. Services own business rules;
// the store owns SQL and row mapping.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/paradyne-ai/callcore/pkg/database"
)

var (
	// ErrNotFound is returned when a query matches no rows.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when an insert violates a uniqueness
	// constraint.
	ErrDuplicate = errors.New("duplicate")
)

// Store provides typed access to the database.
type Store struct {
	db *database.Client
}

// New creates a Store over the given database client.
func New(db *database.Client) *Store {
	return &Store{db: db}
}

// notFound wraps sql.ErrNoRows into ErrNotFound with entity context; other
// errors are wrapped as-is.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

// isUniqueViolation reports whether err is a Postgres unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
