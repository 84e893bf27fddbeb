package sqlstore

import (
	"context"
	"fmt"
)

// Snowflakes are stored as BIGINT and times as unix milliseconds so both
// dialects share the same column types.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS case_counters (
		guild_id     BIGINT PRIMARY KEY,
		last_case_id BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS cases (
		guild_id    BIGINT  NOT NULL,
		case_id     BIGINT  NOT NULL,
		action      TEXT    NOT NULL,
		target_id   BIGINT  NOT NULL,
		target_tag  TEXT    NOT NULL,
		executor_id BIGINT,
		reason      TEXT,
		attachments TEXT    NOT NULL DEFAULT '[]',
		msg_id      BIGINT,
		dm          TEXT,
		pending     BOOLEAN NOT NULL DEFAULT FALSE,
		created_at  BIGINT  NOT NULL,
		PRIMARY KEY (guild_id, case_id)
	)`,
	`CREATE INDEX IF NOT EXISTS cases_target_idx ON cases (guild_id, target_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS temp_bans (
		guild_id   BIGINT NOT NULL,
		user_id    BIGINT NOT NULL,
		expires_at BIGINT NOT NULL,
		created_at BIGINT NOT NULL,
		PRIMARY KEY (guild_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS temp_bans_expires_idx ON temp_bans (expires_at)`,
}

func (d *DB) migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i, err)
		}
	}
	return nil
}
