package data

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/target/mmk-autoapply/internal/data/pgxutil"
)

// rowScanner is satisfied by *sql.Row, *sql.Rows, pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func cloneNullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func cloneNullableTime(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func cloneNullableInt64(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

type pgxRowQuery struct {
	SQL  string
	Args []any
	Dest []any
}

// withPgxRow runs a single-row query on a native pgx connection. It is used
// where database/sql cannot scan the column type (TEXT[] into []string).
func withPgxRow(ctx context.Context, db *sql.DB, q pgxRowQuery) error {
	return pgxutil.WithPgxConn(ctx, db, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, q.SQL, q.Args...).Scan(q.Dest...)
	})
}

// isUUID reports whether id can be compared against a UUID column.
func isUUID(id string) bool {
	return uuid.Validate(id) == nil
}
