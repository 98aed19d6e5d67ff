package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgExecutor abstracts a pgx pool, connection, or transaction.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// txBeginner is satisfied by executors that can open transactions, such as
// *pgxpool.Pool. Repositories fall back to plain statements when the
// executor cannot, which keeps pgxmock-backed tests simple.
type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
