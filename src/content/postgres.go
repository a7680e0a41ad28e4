package content

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/quillpress/quill/src/db"
)

// PostgresFetcher serves content out of the self-hosted schema created by
// the migrations.
type PostgresFetcher struct {
	Conn db.ConnOrTx
}

var _ Fetcher = &PostgresFetcher{}

func (f *PostgresFetcher) Fetch(ctx context.Context, q Query, params Params) (json.RawMessage, error) {
	if q.SQL == "" {
		return nil, malformed(q, fmt.Errorf("query has no SQL form"))
	}

	var raw []byte
	err := f.Conn.QueryRow(ctx, q.SQL, pgx.NamedArgs(params)).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return json.RawMessage("null"), nil
	}
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			// The database answered, but not with something we can use.
			return nil, malformed(q, err)
		}
		return nil, transportError(ctx, q, err)
	}

	if raw == nil {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(raw) {
		return nil, malformed(q, fmt.Errorf("query did not return JSON"))
	}
	return raw, nil
}
