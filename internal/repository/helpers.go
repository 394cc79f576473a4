package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var (
	// ErrEntityNotFound is returned when no entity has the requested ID.
	ErrEntityNotFound = errors.New("entity not found")
	// ErrVersionConflict is returned when a write's version precondition fails.
	ErrVersionConflict = errors.New("version conflict")
)

// timeLayout is used for every timestamp column. Fixed-width fractions keep
// the text sortable.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *EntityRepository) conn(tx *sql.Tx) execer {
	if tx != nil {
		return tx
	}
	return r.db
}

func nullableString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
