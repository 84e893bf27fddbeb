package sqlstore

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"warden/internal/moderation"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const guildID = snowflake.ID(100)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), DriverSQLite, SQLiteDSN(filepath.Join(t.TempDir(), "warden.db")))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// insertCase allocates a number and saves c under it in one transaction.
func insertCase(t *testing.T, db *DB, cases *CaseStore, c moderation.Case) moderation.Case {
	t.Helper()
	ctx := context.Background()
	err := moderation.WithTx(ctx, db, func(tx moderation.Tx) error {
		id, err := cases.NextCaseNumber(ctx, tx, c.GuildID)
		if err != nil {
			return err
		}
		c.CaseID = id
		return cases.Save(ctx, tx, &c)
	})
	require.NoError(t, err)
	return c
}

func warn(target snowflake.ID) moderation.Case {
	return moderation.Case{
		GuildID:   guildID,
		Action:    moderation.ActionWarn,
		TargetID:  target,
		TargetTag: "user",
		CreatedAt: now,
	}
}

func TestRebind(t *testing.T) {
	pg := &DB{driver: DriverPostgres}
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b IN ($2, $3)", pg.rebind("SELECT 1 WHERE a = ? AND b IN (?, ?)"))

	lite := &DB{driver: DriverSQLite}
	assert.Equal(t, "a = ?", lite.rebind("a = ?"))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "")
	assert.Error(t, err)
}

func TestCaseNumbering(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	cases := NewCaseStore(db)

	t.Run("per guild sequences", func(t *testing.T) {
		assert.Equal(t, int64(1), insertCase(t, db, cases, warn(1)).CaseID)
		assert.Equal(t, int64(2), insertCase(t, db, cases, warn(1)).CaseID)

		other := warn(1)
		other.GuildID = 200
		assert.Equal(t, int64(1), insertCase(t, db, cases, other).CaseID)
	})

	t.Run("rollback releases the number", func(t *testing.T) {
		err := moderation.WithTx(ctx, db, func(tx moderation.Tx) error {
			_, err := cases.NextCaseNumber(ctx, tx, guildID)
			require.NoError(t, err)
			return errors.New("abort")
		})
		require.Error(t, err)
		assert.Equal(t, int64(3), insertCase(t, db, cases, warn(1)).CaseID)
	})

	t.Run("deleted numbers are not reused", func(t *testing.T) {
		require.NoError(t, cases.Delete(ctx, nil, guildID, 3))
		assert.Equal(t, int64(4), insertCase(t, db, cases, warn(1)).CaseID)
	})

	t.Run("concurrent allocation", func(t *testing.T) {
		db := newTestDB(t)
		cases := NewCaseStore(db)

		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			ids = map[int64]bool{}
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				c := insertCase(t, db, cases, warn(1))
				mu.Lock()
				ids[c.CaseID] = true
				mu.Unlock()
			}()
		}
		wg.Wait()

		assert.Len(t, ids, 20)
		for id := int64(1); id <= 20; id++ {
			assert.True(t, ids[id], "missing case %d", id)
		}
	})
}

func TestCaseRoundTrip(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	cases := NewCaseStore(db)

	c := warn(300)
	c.Action = moderation.ActionBan
	c.ExecutorID = 200
	c.Reason = "spam"
	c.Attachments = []string{"https://cdn.example/a.png"}
	c.Pending = true
	c = insertCase(t, db, cases, c)

	got, err := cases.Get(ctx, nil, guildID, c.CaseID)
	require.NoError(t, err)
	assert.Equal(t, c, *got)
	assert.Nil(t, got.DM)
	assert.Zero(t, got.MsgID)

	require.NoError(t, cases.SetMessageID(ctx, nil, guildID, c.CaseID, 9001))
	require.NoError(t, cases.ClearPending(ctx, nil, guildID, c.CaseID))
	require.NoError(t, cases.SetDMResult(ctx, nil, guildID, c.CaseID, moderation.DMResult{ChannelID: 1, MessageID: 2}))

	again, err := cases.Get(ctx, nil, guildID, c.CaseID)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(9001), again.MsgID)
	assert.False(t, again.Pending)
	require.NotNil(t, again.DM)
	assert.True(t, again.DM.Sent())
	assert.Equal(t, c.Reason, again.Reason)
	assert.Equal(t, c.Attachments, again.Attachments)

	exists, err := cases.Exists(ctx, nil, guildID, c.CaseID)
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = cases.Get(ctx, nil, guildID, 42)
	assert.ErrorIs(t, err, moderation.ErrCaseNotFound)
	assert.ErrorIs(t, cases.SetMessageID(ctx, nil, guildID, 42, 1), moderation.ErrCaseNotFound)
	assert.ErrorIs(t, cases.SetDMResult(ctx, nil, guildID, 42, moderation.DMResult{}), moderation.ErrCaseNotFound)
	assert.ErrorIs(t, cases.ClearPending(ctx, nil, guildID, 42), moderation.ErrCaseNotFound)
	assert.ErrorIs(t, cases.Delete(ctx, nil, guildID, 42), moderation.ErrCaseNotFound)
}

func TestCaseRanges(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	cases := NewCaseStore(db)
	for i := 0; i < 12; i++ {
		c := warn(snowflake.ID(300 + i))
		if i%2 == 0 {
			c.Reason = "existing"
		}
		insertCase(t, db, cases, c)
	}

	maxID, err := cases.MaxCaseID(ctx, guildID)
	require.NoError(t, err)
	assert.Equal(t, int64(12), maxID)

	empty, err := cases.MaxCaseID(ctx, 999)
	require.NoError(t, err)
	assert.Zero(t, empty)

	found, err := cases.FindByRange(ctx, nil, guildID, 3, 5)
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.Equal(t, int64(3), found[0].CaseID)

	updated, err := cases.UpdateReasonBulk(ctx, nil, guildID, 1, 4, "raid", true)
	require.NoError(t, err)
	require.Len(t, updated, 2)
	assert.Equal(t, int64(2), updated[0].CaseID)
	assert.Equal(t, int64(4), updated[1].CaseID)

	updated, err = cases.UpdateReasonBulk(ctx, nil, guildID, 1, 4, "raid", false)
	require.NoError(t, err)
	assert.Len(t, updated, 4)

	recent, err := cases.FindRecent(ctx, guildID, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, int64(12), recent[0].CaseID)

	matches, err := cases.SearchByIDPrefix(ctx, guildID, "1", 25)
	require.NoError(t, err)
	var ids []int64
	for _, c := range matches {
		ids = append(ids, c.CaseID)
	}
	assert.Equal(t, []int64{12, 11, 10, 1}, ids)

	removed, err := cases.DeleteRange(ctx, nil, guildID, 10, 20)
	require.NoError(t, err)
	require.Len(t, removed, 3)
	assert.Equal(t, int64(10), removed[0].CaseID)

	maxID, err = cases.MaxCaseID(ctx, guildID)
	require.NoError(t, err)
	assert.Equal(t, int64(9), maxID)
}

func TestFindPending(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	cases := NewCaseStore(db)

	ban := warn(300)
	ban.Action = moderation.ActionBan
	ban.Pending = true
	ban = insertCase(t, db, cases, ban)

	stale := warn(300)
	stale.Action = moderation.ActionBan
	stale.Pending = true
	stale.CreatedAt = now.Add(-time.Hour)
	insertCase(t, db, cases, stale)

	second := warn(300)
	second.Action = moderation.ActionBan
	second.Pending = true
	second = insertCase(t, db, cases, second)

	types := moderation.ActionBan.ReconcileTypes()

	got, err := cases.FindPending(ctx, nil, guildID, 300, types, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Equal(t, ban.CaseID, got.CaseID)

	_, err = cases.FindPending(ctx, nil, guildID, 301, types, now.Add(-time.Minute))
	assert.ErrorIs(t, err, moderation.ErrCaseNotFound)

	_, err = cases.FindPending(ctx, nil, guildID, 300, []moderation.ActionType{moderation.ActionKick}, now.Add(-time.Minute))
	assert.ErrorIs(t, err, moderation.ErrCaseNotFound)

	t.Run("oldest pending case matches first", func(t *testing.T) {
		require.NoError(t, cases.ClearPending(ctx, nil, guildID, got.CaseID))
		next, err := cases.FindPending(ctx, nil, guildID, 300, types, now.Add(-time.Minute))
		require.NoError(t, err)
		assert.Equal(t, second.CaseID, next.CaseID)

		require.NoError(t, cases.ClearPending(ctx, nil, guildID, next.CaseID))
		_, err = cases.FindPending(ctx, nil, guildID, 300, types, now.Add(-time.Minute))
		assert.ErrorIs(t, err, moderation.ErrCaseNotFound)
	})
}

func TestTempBans(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	bans := NewTempBanStore(db)

	tb := moderation.TempBan{GuildID: guildID, UserID: 300, ExpiresAt: now.Add(time.Hour), CreatedAt: now}

	t.Run("expiry must be in the future", func(t *testing.T) {
		past := tb
		past.ExpiresAt = now
		assert.ErrorIs(t, bans.Save(ctx, nil, past, now), moderation.ErrTempBanExpiryNotFuture)
	})

	t.Run("save replaces", func(t *testing.T) {
		require.NoError(t, bans.Save(ctx, nil, tb, now))
		longer := tb
		longer.ExpiresAt = now.Add(2 * time.Hour)
		require.NoError(t, bans.Save(ctx, nil, longer, now))

		got, err := bans.Get(ctx, guildID, 300)
		require.NoError(t, err)
		assert.Equal(t, longer.ExpiresAt, got.ExpiresAt)

		n, err := bans.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("list expired", func(t *testing.T) {
		other := tb
		other.UserID = 301
		require.NoError(t, bans.Save(ctx, nil, other, now))

		due, err := bans.ListExpired(ctx, now.Add(90*time.Minute), 0)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, snowflake.ID(301), due[0].UserID)

		due, err = bans.ListExpired(ctx, now.Add(3*time.Hour), 1)
		require.NoError(t, err)
		assert.Len(t, due, 1)
	})

	t.Run("delete returns the removed ban", func(t *testing.T) {
		removed, err := bans.Delete(ctx, nil, guildID, 301)
		require.NoError(t, err)
		assert.Equal(t, now.Add(time.Hour), removed.ExpiresAt)

		_, err = bans.Delete(ctx, nil, guildID, 301)
		assert.ErrorIs(t, err, moderation.ErrTempBanNotFound)
	})

	t.Run("rolled back with the transaction", func(t *testing.T) {
		err := moderation.WithTx(ctx, db, func(tx moderation.Tx) error {
			if _, err := bans.Delete(ctx, tx, guildID, 300); err != nil {
				return err
			}
			return errors.New("abort")
		})
		require.Error(t, err)
		_, err = bans.Get(ctx, guildID, 300)
		assert.NoError(t, err)
	})
}
