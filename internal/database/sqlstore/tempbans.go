package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"warden/internal/moderation"

	"github.com/disgoorg/snowflake/v2"
)

// TempBanStore implements moderation.TempBanRepository.
type TempBanStore struct {
	db *DB
}

func NewTempBanStore(db *DB) *TempBanStore {
	return &TempBanStore{db: db}
}

var _ moderation.TempBanRepository = (*TempBanStore)(nil)

func scanTempBan(row scanner) (moderation.TempBan, error) {
	var (
		tb                   moderation.TempBan
		guildID, userID      int64
		expiresAt, createdAt int64
	)
	if err := row.Scan(&guildID, &userID, &expiresAt, &createdAt); err != nil {
		return tb, err
	}
	tb.GuildID = snowflake.ID(guildID)
	tb.UserID = snowflake.ID(userID)
	tb.ExpiresAt = fromMillis(expiresAt)
	tb.CreatedAt = fromMillis(createdAt)
	return tb, nil
}

func (s *TempBanStore) Save(ctx context.Context, tx moderation.Tx, tb moderation.TempBan, now time.Time) error {
	if !tb.ExpiresAt.After(now) {
		return moderation.ErrTempBanExpiryNotFuture
	}
	q, err := s.db.conn(tx)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx, s.db.rebind(`
		INSERT INTO temp_bans (guild_id, user_id, expires_at, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (guild_id, user_id) DO UPDATE SET
			expires_at = excluded.expires_at,
			created_at = excluded.created_at
	`), int64(tb.GuildID), int64(tb.UserID), millis(tb.ExpiresAt), millis(tb.CreatedAt))
	if err != nil {
		return fmt.Errorf("save temp ban: %w", err)
	}
	return nil
}

func (s *TempBanStore) Delete(ctx context.Context, tx moderation.Tx, guildID, userID snowflake.ID) (*moderation.TempBan, error) {
	q, err := s.db.conn(tx)
	if err != nil {
		return nil, err
	}
	tb, err := scanTempBan(q.QueryRowContext(ctx, s.db.rebind(`
		DELETE FROM temp_bans WHERE guild_id = ? AND user_id = ?
		RETURNING guild_id, user_id, expires_at, created_at
	`), int64(guildID), int64(userID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, moderation.ErrTempBanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("delete temp ban: %w", err)
	}
	return &tb, nil
}

func (s *TempBanStore) Get(ctx context.Context, guildID, userID snowflake.ID) (*moderation.TempBan, error) {
	tb, err := scanTempBan(s.db.db.QueryRowContext(ctx, s.db.rebind(`
		SELECT guild_id, user_id, expires_at, created_at
		FROM temp_bans WHERE guild_id = ? AND user_id = ?
	`), int64(guildID), int64(userID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, moderation.ErrTempBanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get temp ban: %w", err)
	}
	return &tb, nil
}

// ListExpired returns temp bans due at now, oldest first. A limit of zero
// or less returns all of them.
func (s *TempBanStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]moderation.TempBan, error) {
	query := `
		SELECT guild_id, user_id, expires_at, created_at
		FROM temp_bans WHERE expires_at <= ?
		ORDER BY expires_at`
	args := []any{millis(now)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.db.QueryContext(ctx, s.db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list expired temp bans: %w", err)
	}
	defer rows.Close()

	var out []moderation.TempBan
	for rows.Next() {
		tb, err := scanTempBan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tb)
	}
	return out, rows.Err()
}

func (s *TempBanStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM temp_bans`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count temp bans: %w", err)
	}
	return n, nil
}
