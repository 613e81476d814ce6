// Package store implements C7 (Source Registry) and C8 (Queue Manager):
// the two authoritative Postgres-backed persistence layers of the
// discovery pipeline.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgxIface is the narrow slice of *pgxpool.Pool's API this package uses.
// Business logic depends on this interface rather than the concrete pool
// type, the way kanban.Service depends only on query/scan semantics —
// this lets unit tests supply an in-memory fake instead of a real database.
type pgxIface interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}
