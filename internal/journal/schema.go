package journal

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer runs a statement. *pgxpool.Pool implements it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS lifecycle_events (
	id          UUID PRIMARY KEY,
	generation  UUID NOT NULL,
	instance_id TEXT NOT NULL,
	team_id     TEXT NOT NULL,
	event       TEXT NOT NULL,
	from_state  TEXT NOT NULL,
	to_state    TEXT NOT NULL,
	loss_kind   TEXT NOT NULL DEFAULT '',
	attempt     INTEGER NOT NULL DEFAULT 0,
	ts          BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS lifecycle_events_ts_idx ON lifecycle_events (ts);
`

// EnsureSchema creates the journal table if it does not exist.
func EnsureSchema(ctx context.Context, db Execer) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create journal schema: %w", err)
	}
	return nil
}
