package cases

import (
	"context"
	"errors"
	"testing"
	"time"

	"warden/internal/moderation"
	"warden/internal/moderation/moderationtest"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	guildID   = snowflake.ID(100)
	channelID = snowflake.ID(500)
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store     *moderationtest.Store
	messenger *moderationtest.MockMessenger
	settings  *moderationtest.StaticSettings
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{
		store:     moderationtest.NewStore(),
		messenger: &moderationtest.MockMessenger{},
		settings: &moderationtest.StaticSettings{Settings: moderation.GuildSettings{
			ModLogChannel: channelID,
			ModLogEnabled: true,
		}},
	}
}

// seed stores cases 1..n. Each has a mod-log message created at msgTime(id).
func (f *fixture) seed(n int64, msgTime func(id int64) time.Time) {
	for id := int64(1); id <= n; id++ {
		c := moderation.Case{
			GuildID:   guildID,
			CaseID:    id,
			Action:    moderation.ActionWarn,
			TargetID:  snowflake.ID(300 + id),
			TargetTag: "user",
			CreatedAt: now,
		}
		if msgTime != nil {
			c.MsgID = snowflake.New(msgTime(id))
		}
		f.store.PutCase(c)
	}
}

func recentMessage(id int64) time.Time { return now.Add(-time.Duration(id) * time.Minute) }

func (f *fixture) deleter() *Deleter {
	return NewDeleter(f.store, f.store, f.messenger, f.settings, func() time.Time { return now })
}

func TestDeleteRange(t *testing.T) {
	ctx := context.Background()

	t.Run("deletes cases and bulk deletes messages", func(t *testing.T) {
		f := newFixture(t)
		f.seed(5, recentMessage)

		result, err := f.deleter().Delete(ctx, guildID, "2-4", false)
		require.NoError(t, err)
		assert.Len(t, result.Deleted, 3)
		assert.Equal(t, 3, result.MessagesDeleted)
		assert.Empty(t, result.MessageErrors)

		require.Len(t, f.messenger.Bulk, 1)
		assert.Len(t, f.messenger.Bulk[0], 3)

		remaining := f.store.Cases(guildID)
		require.Len(t, remaining, 2)
		assert.Equal(t, int64(1), remaining[0].CaseID)
		assert.Equal(t, int64(5), remaining[1].CaseID)
	})

	t.Run("keeps log messages on request", func(t *testing.T) {
		f := newFixture(t)
		f.seed(3, recentMessage)

		result, err := f.deleter().Delete(ctx, guildID, "latest~2", true)
		require.NoError(t, err)
		assert.Len(t, result.Deleted, 2)
		assert.Empty(t, f.messenger.Bulk)
		assert.Empty(t, f.messenger.Deleted)
	})

	t.Run("old messages are deleted individually", func(t *testing.T) {
		f := newFixture(t)
		f.seed(4, func(id int64) time.Time {
			if id <= 2 {
				return now.Add(-20 * 24 * time.Hour)
			}
			return recentMessage(id)
		})

		result, err := f.deleter().Delete(ctx, guildID, "1-4", false)
		require.NoError(t, err)
		assert.Equal(t, 4, result.MessagesDeleted)
		require.Len(t, f.messenger.Bulk, 1)
		assert.Len(t, f.messenger.Bulk[0], 2)
		assert.Len(t, f.messenger.Deleted, 2)
	})

	t.Run("bulk failure falls back to individual deletes", func(t *testing.T) {
		f := newFixture(t)
		f.seed(3, recentMessage)
		f.messenger.BulkDeleteFunc = func(snowflake.ID, []snowflake.ID) error { return errors.New("bad request") }
		var missing snowflake.ID
		f.messenger.DeleteFunc = func(_, id snowflake.ID) error {
			if missing == 0 {
				missing = id
				return moderation.ErrMessageNotFound
			}
			return nil
		}

		result, err := f.deleter().Delete(ctx, guildID, "1-3", false)
		require.NoError(t, err)
		assert.Equal(t, 3, result.MessagesDeleted)
		assert.Empty(t, result.MessageErrors)
		assert.Len(t, f.messenger.Deleted, 2)
	})

	t.Run("message errors are collected", func(t *testing.T) {
		f := newFixture(t)
		f.seed(1, recentMessage)
		f.messenger.DeleteFunc = func(_, _ snowflake.ID) error { return errors.New("missing access") }

		result, err := f.deleter().Delete(ctx, guildID, "1", false)
		require.NoError(t, err)
		assert.Len(t, result.Deleted, 1)
		assert.Len(t, result.MessageErrors, 1)
		assert.Empty(t, f.store.Cases(guildID))
	})

	t.Run("rejects ranges over the ceiling", func(t *testing.T) {
		f := newFixture(t)
		f.seed(60, nil)

		_, err := f.deleter().Delete(ctx, guildID, "1-50", false)
		var rerr *RangeError
		assert.True(t, errors.As(err, &rerr))

		_, err = f.deleter().Delete(ctx, guildID, "10-", false)
		assert.True(t, errors.As(err, &rerr))
		assert.Len(t, f.store.Cases(guildID), 60)
	})

	t.Run("missing cases", func(t *testing.T) {
		f := newFixture(t)
		f.seed(3, nil)
		_, err := f.deleter().Delete(ctx, guildID, "10", false)
		assert.ErrorIs(t, err, moderation.ErrCaseNotFound)
	})
}

type editor struct {
	edited []moderation.Case
	errFor map[int64]error
}

func (e *editor) Edit(ctx context.Context, c moderation.Case) error {
	if err := e.errFor[c.CaseID]; err != nil {
		return err
	}
	e.edited = append(e.edited, c)
	return nil
}

func TestReasonUpdate(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*fixture, *editor, *ReasonUpdater) {
		f := newFixture(t)
		f.seed(5, recentMessage)
		users := map[snowflake.ID]moderation.User{}
		for id := int64(1); id <= 5; id++ {
			users[snowflake.ID(300+id)] = moderation.User{ID: snowflake.ID(300 + id), Tag: "fresh"}
		}
		e := &editor{errFor: map[int64]error{}}
		u := NewReasonUpdater(f.store, f.store, &moderationtest.MockDirectory{Users: users}, e)
		return f, e, u
	}

	t.Run("updates cases without reasons", func(t *testing.T) {
		f, e, u := setup(t)
		result, err := u.Update(ctx, ReasonRequest{GuildID: guildID, Range: "1-3", Reason: "raid"})
		require.NoError(t, err)
		assert.False(t, result.NeedsConfirmation)
		assert.Len(t, result.Updated, 3)
		assert.Empty(t, result.Errors)

		require.Len(t, e.edited, 3)
		assert.Equal(t, "fresh", e.edited[0].TargetTag)
		assert.Equal(t, "raid", e.edited[0].Reason)

		c, err := f.store.Get(ctx, nil, guildID, 2)
		require.NoError(t, err)
		assert.Equal(t, "raid", c.Reason)
	})

	t.Run("asks before overwriting", func(t *testing.T) {
		f, e, u := setup(t)
		c, _ := f.store.Get(ctx, nil, guildID, 2)
		c.Reason = "original"
		f.store.PutCase(*c)

		result, err := u.Update(ctx, ReasonRequest{GuildID: guildID, Range: "1-3", Reason: "raid"})
		require.NoError(t, err)
		assert.True(t, result.NeedsConfirmation)
		assert.Equal(t, []int64{2}, result.WithReason)
		assert.Empty(t, result.Updated)
		assert.Empty(t, e.edited)

		c, _ = f.store.Get(ctx, nil, guildID, 2)
		assert.Equal(t, "original", c.Reason)

		result, err = u.Update(ctx, ReasonRequest{GuildID: guildID, Range: "1-3", Reason: "raid", Mode: ReasonOverwrite})
		require.NoError(t, err)
		assert.Len(t, result.Updated, 3)
		c, _ = f.store.Get(ctx, nil, guildID, 2)
		assert.Equal(t, "raid", c.Reason)
	})

	t.Run("only empty keeps existing reasons", func(t *testing.T) {
		f, _, u := setup(t)
		c, _ := f.store.Get(ctx, nil, guildID, 2)
		c.Reason = "original"
		f.store.PutCase(*c)

		result, err := u.Update(ctx, ReasonRequest{GuildID: guildID, Range: "1-3", Reason: "raid", Mode: ReasonOnlyEmpty})
		require.NoError(t, err)
		assert.Len(t, result.Updated, 2)
		c, _ = f.store.Get(ctx, nil, guildID, 2)
		assert.Equal(t, "original", c.Reason)
	})

	t.Run("per case errors do not fail the batch", func(t *testing.T) {
		f, e, u := setup(t)
		unknown, _ := f.store.Get(ctx, nil, guildID, 1)
		unknown.TargetID = 1
		f.store.PutCase(*unknown)
		e.errFor[2] = moderation.ErrMessageNotFound
		e.errFor[3] = errors.New("503")

		result, err := u.Update(ctx, ReasonRequest{GuildID: guildID, Range: "1-4", Reason: "raid"})
		require.NoError(t, err)
		assert.Len(t, result.Updated, 4)
		require.Len(t, result.Errors, 3)

		byCase := map[int64]error{}
		for _, ce := range result.Errors {
			byCase[ce.CaseID] = ce.Err
		}
		assert.ErrorIs(t, byCase[1], ErrUserUnfetchable)
		assert.ErrorIs(t, byCase[2], ErrMessageMissing)
		assert.ErrorIs(t, byCase[3], ErrMessageUnfetchable)
		assert.Len(t, e.edited, 1)
	})

	t.Run("invalid reason", func(t *testing.T) {
		_, _, u := setup(t)
		_, err := u.Update(ctx, ReasonRequest{GuildID: guildID, Range: "1", Reason: " "})
		assert.ErrorIs(t, err, moderation.ErrInvalidReason)
	})
}

func TestAutocomplete(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seed(30, nil)
	a := NewAutocomplete(f.store)

	values := func(s []Suggestion) []string {
		out := make([]string, 0, len(s))
		for _, v := range s {
			out = append(out, v.Value)
		}
		return out
	}

	t.Run("empty input", func(t *testing.T) {
		s, err := a.Suggest(ctx, guildID, "")
		require.NoError(t, err)
		require.NotEmpty(t, s)
		assert.Equal(t, "latest", s[0].Value)
		assert.Equal(t, "30", s[1].Value)
		assert.LessOrEqual(t, len(s), 25)
	})

	t.Run("latest", func(t *testing.T) {
		s, err := a.Suggest(ctx, guildID, "lat")
		require.NoError(t, err)
		assert.Equal(t, []string{"latest", "latest~2", "latest~5", "latest~10", "latest~25"}, values(s))

		s, err = a.Suggest(ctx, guildID, "latest~3")
		require.NoError(t, err)
		assert.Equal(t, []string{"latest~3"}, values(s))
		assert.Contains(t, s[0].Name, "#28-#30")
	})

	t.Run("single ids", func(t *testing.T) {
		s, err := a.Suggest(ctx, guildID, "2")
		require.NoError(t, err)
		assert.Contains(t, values(s), "2")
		assert.Contains(t, values(s), "25")
		assert.NotContains(t, values(s), "3")
	})

	t.Run("ranges", func(t *testing.T) {
		s, err := a.Suggest(ctx, guildID, "3-")
		require.NoError(t, err)
		v := values(s)
		assert.Equal(t, "3-27", v[0])
		assert.NotContains(t, v, "3-")

		s, err = a.Suggest(ctx, guildID, "10-")
		require.NoError(t, err)
		v = values(s)
		assert.Equal(t, "10-", v[0])
		assert.Equal(t, "10-30", v[1])

		s, err = a.Suggest(ctx, guildID, "10-1")
		require.NoError(t, err)
		for _, value := range values(s) {
			assert.Regexp(t, `^10-1\d$`, value)
		}
	})

	t.Run("garbage", func(t *testing.T) {
		s, err := a.Suggest(ctx, guildID, "xyz")
		require.NoError(t, err)
		assert.Empty(t, s)
	})
}
