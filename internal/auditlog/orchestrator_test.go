package auditlog

import (
	"context"
	"errors"
	"testing"
	"time"

	"warden/internal/moderation"
	"warden/internal/modlog"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrchestrator(f *fixture) *Orchestrator {
	dm := moderation.NewDMService(f.messenger, nil, f.settings)
	poster := modlog.NewPoster(f.messenger, f.settings, f.store, f.store)
	return NewOrchestrator(
		f.processor,
		NewNativeTimeoutDM(dm, f.settings),
		NewModLogStep(poster),
		f.store,
		f.store,
	)
}

func timeoutEvent(action moderation.ActionType, entryID snowflake.ID) Event {
	ev := event(action, entryID)
	until := entryTime.Add(time.Hour)
	if action != moderation.ActionTimeoutRemove {
		ev.TimeoutAfter = &until
	}
	return ev
}

func TestOrchestratorNativeTimeoutDM(t *testing.T) {
	ctx := context.Background()

	t.Run("sent when enabled", func(t *testing.T) {
		f := newFixture(t)
		f.settings.Settings.NativeTimeoutDMEnabled = true
		o := newOrchestrator(f)

		require.NoError(t, o.Handle(ctx, timeoutEvent(moderation.ActionTimeout, 1)))
		assert.Equal(t, 1, f.messenger.DMCount())

		cases := f.store.Cases(guildID)
		require.Len(t, cases, 1)
		require.NotNil(t, cases[0].DM)
		assert.True(t, cases[0].DM.Sent())
		assert.NotZero(t, cases[0].MsgID)
	})

	t.Run("removal also notifies", func(t *testing.T) {
		f := newFixture(t)
		f.settings.Settings.NativeTimeoutDMEnabled = true
		require.NoError(t, newOrchestrator(f).Handle(ctx, timeoutEvent(moderation.ActionTimeoutRemove, 1)))
		assert.Equal(t, 1, f.messenger.DMCount())
	})

	t.Run("not sent when disabled", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, newOrchestrator(f).Handle(ctx, timeoutEvent(moderation.ActionTimeout, 1)))
		assert.Equal(t, 0, f.messenger.DMCount())
	})

	t.Run("adjustment never notifies", func(t *testing.T) {
		f := newFixture(t)
		f.settings.Settings.NativeTimeoutDMEnabled = true
		require.NoError(t, newOrchestrator(f).Handle(ctx, timeoutEvent(moderation.ActionTimeoutAdjust, 1)))
		assert.Equal(t, 0, f.messenger.DMCount())
		assert.Len(t, f.store.Cases(guildID), 1)
	})

	t.Run("reconciled case is not notified again", func(t *testing.T) {
		f := newFixture(t)
		f.settings.Settings.NativeTimeoutDMEnabled = true
		f.store.PutCase(pendingCase(1, moderation.ActionTimeout, now.Add(-5*time.Second)))

		require.NoError(t, newOrchestrator(f).Handle(ctx, timeoutEvent(moderation.ActionTimeout, 1)))
		assert.Equal(t, 0, f.messenger.DMCount())
	})

	t.Run("kick is never notified here", func(t *testing.T) {
		f := newFixture(t)
		f.settings.Settings.NativeTimeoutDMEnabled = true
		require.NoError(t, newOrchestrator(f).Handle(ctx, event(moderation.ActionKick, 1)))
		assert.Equal(t, 0, f.messenger.DMCount())
	})
}

func TestOrchestratorDMFailureStillPosts(t *testing.T) {
	f := newFixture(t)
	f.settings.Settings.NativeTimeoutDMEnabled = true
	f.messenger.SendDMFunc = func(snowflake.ID) error { return moderation.ErrDMBlocked }

	require.NoError(t, newOrchestrator(f).Handle(context.Background(), timeoutEvent(moderation.ActionTimeout, 1)))
	require.Len(t, f.messenger.Sent, 1)

	cases := f.store.Cases(guildID)
	require.Len(t, cases, 1)
	require.NotNil(t, cases[0].DM)
	assert.False(t, cases[0].DM.Sent())
	assert.Equal(t, f.messenger.Sent[0].MessageID, cases[0].MsgID)
}

func TestOrchestratorPostsReconciledCase(t *testing.T) {
	f := newFixture(t)
	f.store.PutCase(pendingCase(3, moderation.ActionBan, now.Add(-5*time.Second)))

	require.NoError(t, newOrchestrator(f).Handle(context.Background(), event(moderation.ActionBan, 1)))
	require.Len(t, f.messenger.Sent, 1)
	assert.Equal(t, "Case #3 | Ban", f.messenger.Sent[0].Message.Embed.AuthorName)

	c, err := f.store.Get(context.Background(), nil, guildID, 3)
	require.NoError(t, err)
	assert.False(t, c.Pending)
	assert.Equal(t, f.messenger.Sent[0].MessageID, c.MsgID)
}

func TestOrchestratorModLogFailure(t *testing.T) {
	f := newFixture(t)
	f.messenger.SendMessageFunc = func(snowflake.ID) error { return errors.New("missing access") }

	err := newOrchestrator(f).Handle(context.Background(), event(moderation.ActionKick, 1))
	assert.Error(t, err)
	assert.Len(t, f.store.Cases(guildID), 1, "the case survives a failed post")
}
