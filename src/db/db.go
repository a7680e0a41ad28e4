/*
Package db holds the low-level helpers for querying the self-hosted Postgres
content store. Queries are plain SQL; arguments go through pgx, either
positionally ($1, $2) or with pgx.NamedArgs (@slug).

Single values come back through QueryOneScalar:

	count, err := db.QueryOneScalar[int](ctx, conn, `SELECT COUNT(*) FROM post`)
*/
package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// NotFound is returned by QueryOneScalar when the query matched no rows.
var NotFound = errors.New("not found")

// QueryOneScalar returns the single column of the first row, or NotFound.
func QueryOneScalar[T any](ctx context.Context, conn ConnOrTx, query string, args ...any) (T, error) {
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		var zero T
		return zero, err
	}
	res, err := pgx.CollectOneRow(rows, pgx.RowTo[T])
	if errors.Is(err, pgx.ErrNoRows) {
		var zero T
		return zero, NotFound
	}
	return res, err
}

// Runs f in a transaction, committing if it returns nil.
func WithTx(ctx context.Context, conn ConnOrTx, f func(tx pgx.Tx) error) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
