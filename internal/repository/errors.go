// Package repository provides data access layer implementations for the application.
package repository

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrStaleVersion is returned when a versioned write matched no row.
var ErrStaleVersion = errors.New("repository: stale version")

// ErrReferenced is returned when a write broke a foreign key: the parent row is gone,
// or a child row still points at it.
var ErrReferenced = errors.New("repository: foreign key violation")

// classifyError maps driver errors that mean "lost a concurrent race" onto ErrStaleVersion
// and foreign key violations onto ErrReferenced.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return fmt.Errorf("%w: %s", ErrStaleVersion, pgErr.Message)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s", ErrReferenced, pgErr.ConstraintName)
		}
	}
	return err
}

// escapeLike escapes LIKE wildcards using '!' so the same pattern works on every dialect.
func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

func containsPattern(s string) string {
	return "%" + escapeLike(strings.ToLower(strings.TrimSpace(s))) + "%"
}
