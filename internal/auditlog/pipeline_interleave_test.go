package auditlog

import (
	"context"
	"testing"
	"time"

	"warden/internal/moderation"
	"warden/internal/moderation/moderationtest"
	"warden/internal/modlog"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSharedPipeline builds a pipeline writing to the same store, messenger
// and mod-log poster as the fixture's orchestrator.
func newSharedPipeline(f *fixture) *moderation.Pipeline {
	directory := &moderationtest.MockDirectory{GuildNameValue: "Test Guild"}
	return moderation.NewPipeline(moderation.PipelineDeps{
		Transactor: f.store,
		Cases:      f.store,
		TempBans:   f.store.TempBanRepo(),
		Enforcer:   &moderationtest.MockEnforcer{},
		DM:         moderation.NewDMService(f.messenger, directory, f.settings),
		Policy:     moderation.NewDMPolicy(f.settings),
		ModLog:     modlog.NewPoster(f.messenger, f.settings, f.store, f.store),
		Now:        func() time.Time { return now },
	})
}

func kickAction() moderation.KickAction {
	return moderation.KickAction{ActionBase: moderation.ActionBase{
		GuildID:  guildID,
		Executor: moderation.User{ID: 200, Tag: "mod"},
		Reason:   moderation.NewReason("bot reason"),
	}}
}

func kickTarget() moderation.Target {
	u := moderation.User{ID: targetID, Tag: "target"}
	return moderation.Target{User: u, Member: &moderation.Member{User: u}}
}

func TestAuditEntryDuringPipelineDM(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := newOrchestrator(f)
	pipeline := newSharedPipeline(f)

	handled := false
	f.messenger.SendDMFunc = func(userID snowflake.ID) error {
		if !handled {
			handled = true
			require.NoError(t, o.Handle(ctx, event(moderation.ActionKick, 1)))
		}
		return nil
	}

	c, err := pipeline.Execute(ctx, kickAction(), moderation.ActionKick, kickTarget())
	require.NoError(t, err)
	require.True(t, handled)

	require.Len(t, f.messenger.Sent, 1, "exactly one mod-log message")
	posted := f.messenger.Sent[0].MessageID

	cases := f.store.Cases(guildID)
	require.Len(t, cases, 1, "the audit entry reconciles the bot's case")
	stored := cases[0]
	assert.False(t, stored.Pending, "reconciled case stays reconciled")
	assert.Equal(t, posted, stored.MsgID, "mod-log message id survives the dm write")
	require.NotNil(t, stored.DM)
	assert.True(t, stored.DM.Sent())

	assert.False(t, c.Pending)
	assert.Equal(t, posted, c.MsgID)

	require.Len(t, f.messenger.Edited, 1, "mod-log entry refreshed with the dm result")
	assert.Equal(t, posted, f.messenger.Edited[0].MessageID)
}

func TestDMResultSurvivesLaterModLogPost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	o := newOrchestrator(f)
	pipeline := newSharedPipeline(f)

	c, err := pipeline.Execute(ctx, kickAction(), moderation.ActionKick, kickTarget())
	require.NoError(t, err)
	require.NotNil(t, c.DM)
	assert.True(t, c.Pending)
	assert.Empty(t, f.messenger.Sent, "platform actions are logged by reconciliation")

	require.NoError(t, o.Handle(ctx, event(moderation.ActionKick, 1)))

	cases := f.store.Cases(guildID)
	require.Len(t, cases, 1)
	stored := cases[0]
	assert.False(t, stored.Pending)
	assert.NotZero(t, stored.MsgID)
	require.NotNil(t, stored.DM, "mod-log write keeps the dm result")
	assert.Equal(t, *c.DM, *stored.DM)
}
