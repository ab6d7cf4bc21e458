package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool is the part of *pgxpool.Pool the repositories use. pgxmock pools satisfy it as well.
type Pool interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// querier is satisfied by both pools and transactions.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}
