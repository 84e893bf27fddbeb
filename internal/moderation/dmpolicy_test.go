package moderation_test

import (
	"context"
	"errors"
	"testing"

	"warden/internal/moderation"
	"warden/internal/moderation/moderationtest"

	"github.com/stretchr/testify/assert"
)

func member() moderation.Target {
	return moderation.Target{
		User:   moderation.User{ID: 300, Tag: "target"},
		Member: &moderation.Member{User: moderation.User{ID: 300, Tag: "target"}},
	}
}

func base(reason moderation.Reason, choice moderation.DMChoice) moderation.ActionBase {
	return moderation.ActionBase{
		GuildID:  100,
		Executor: moderation.User{ID: 200, Tag: "mod"},
		Reason:   reason,
		DMChoice: choice,
	}
}

func TestShouldSendDM(t *testing.T) {
	ctx := context.Background()
	policy := moderation.NewDMPolicy(&moderationtest.StaticSettings{})
	withReason := base(moderation.NewReason("rule 1"), moderation.DMUnspecified)
	noReason := base(moderation.NoReason(), moderation.DMUnspecified)

	t.Run("ban only before enactment", func(t *testing.T) {
		ban := moderation.BanAction{ActionBase: withReason}
		assert.True(t, policy.ShouldSendDM(ctx, moderation.DMBefore, ban, member(), 100))
		assert.False(t, policy.ShouldSendDM(ctx, moderation.DMAfter, ban, member(), 100))
	})

	t.Run("kick only after enactment", func(t *testing.T) {
		kick := moderation.KickAction{ActionBase: withReason}
		assert.False(t, policy.ShouldSendDM(ctx, moderation.DMBefore, kick, member(), 100))
		assert.True(t, policy.ShouldSendDM(ctx, moderation.DMAfter, kick, member(), 100))
	})

	t.Run("warn always", func(t *testing.T) {
		disabled := moderation.NewDMPolicy(&moderationtest.StaticSettings{
			Settings: moderation.GuildSettings{DMEnabled: map[string]bool{"warn": false}},
		})
		warn := moderation.WarnAction{ActionBase: noReason}
		for _, timing := range []moderation.DMTiming{moderation.DMBefore, moderation.DMAfter} {
			assert.True(t, policy.ShouldSendDM(ctx, timing, warn, member(), 100))
			assert.True(t, disabled.ShouldSendDM(ctx, timing, warn, member(), 100))
		}
	})

	t.Run("no reason no dm", func(t *testing.T) {
		kick := moderation.KickAction{ActionBase: noReason}
		assert.False(t, policy.ShouldSendDM(ctx, moderation.DMBefore, kick, member(), 100))
		assert.False(t, policy.ShouldSendDM(ctx, moderation.DMAfter, kick, member(), 100))
	})

	t.Run("no member", func(t *testing.T) {
		warn := moderation.WarnAction{ActionBase: withReason}
		target := moderation.Target{User: moderation.User{ID: 300}}
		assert.False(t, policy.ShouldSendDM(ctx, moderation.DMAfter, warn, target, 100))
	})

	t.Run("unsupported actions ignore overrides", func(t *testing.T) {
		forced := base(moderation.NewReason("x"), moderation.DMYes)
		assert.False(t, policy.ShouldSendDM(ctx, moderation.DMAfter, moderation.NoteAction{ActionBase: forced}, member(), 100))
		assert.False(t, policy.ShouldSendDM(ctx, moderation.DMAfter, moderation.BanRemoveAction{ActionBase: forced}, member(), 100))
	})

	t.Run("explicit overrides", func(t *testing.T) {
		yes := moderation.KickAction{ActionBase: base(moderation.NoReason(), moderation.DMYes)}
		assert.True(t, policy.ShouldSendDM(ctx, moderation.DMAfter, yes, member(), 100))

		no := moderation.WarnAction{ActionBase: base(moderation.NewReason("x"), moderation.DMNo)}
		assert.False(t, policy.ShouldSendDM(ctx, moderation.DMAfter, no, member(), 100))
	})

	t.Run("guild setting", func(t *testing.T) {
		disabled := moderation.NewDMPolicy(&moderationtest.StaticSettings{
			Settings: moderation.GuildSettings{DMEnabled: map[string]bool{"ban": false, "timeout": true}},
		})
		assert.False(t, disabled.ShouldSendDM(ctx, moderation.DMBefore, moderation.TempBanAction{ActionBase: withReason}, member(), 100))
		assert.True(t, disabled.ShouldSendDM(ctx, moderation.DMAfter, moderation.TimeoutAction{ActionBase: withReason}, member(), 100))
		assert.True(t, disabled.ShouldSendDM(ctx, moderation.DMAfter, moderation.KickAction{ActionBase: withReason}, member(), 100))
	})

	t.Run("settings error falls back to sending", func(t *testing.T) {
		broken := moderation.NewDMPolicy(&moderationtest.StaticSettings{Err: errors.New("bolt closed")})
		assert.True(t, broken.ShouldSendDM(ctx, moderation.DMAfter, moderation.KickAction{ActionBase: withReason}, member(), 100))
	})
}
