package moderation_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"warden/internal/moderation"
	"warden/internal/moderation/moderationtest"

	"github.com/ptdewey/shutter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDMService() *moderation.DMService {
	settings := &moderationtest.StaticSettings{Settings: moderation.GuildSettings{
		DMText: map[string]string{"ban": "You may appeal at https://appeal.example"},
	}}
	return moderation.NewDMService(&moderationtest.MockMessenger{}, &moderationtest.MockDirectory{GuildNameValue: "Test Guild"}, settings)
}

func TestBuild(t *testing.T) {
	ctx := context.Background()
	svc := newDMService()

	msg := svc.Build(ctx, 100, moderation.ActionWarn, "", nil)
	require.NotNil(t, msg.Embed)
	assert.Equal(t, "You have received a warning in Test Guild", msg.Embed.Title)
	assert.Empty(t, msg.Embed.Fields)

	until := testNow.Add(time.Hour)
	msg = svc.Build(ctx, 100, moderation.ActionTimeout, "spam", &until)
	require.Len(t, msg.Embed.Fields, 2)
	assert.Equal(t, "spam", msg.Embed.Fields[0].Value)
	assert.Contains(t, msg.Embed.Fields[1].Value, "<t:1773493200:R>")

	unnamed := moderation.NewDMService(&moderationtest.MockMessenger{}, nil, nil)
	msg = unnamed.Build(ctx, 100, moderation.ActionKick, "", nil)
	assert.Contains(t, msg.Embed.Title, "the server")
}

func TestBuild_Snapshot(t *testing.T) {
	ctx := context.Background()
	svc := newDMService()
	expires := testNow.Add(7 * 24 * time.Hour)

	tests := []struct {
		name      string
		action    moderation.ActionType
		reason    string
		expiresAt *time.Time
	}{
		{"dm_warn", moderation.ActionWarn, "rule 2", nil},
		{"dm_ban_with_guild_text", moderation.ActionBan, "raiding", nil},
		{"dm_tempban_expiry", moderation.ActionTempBan, "cool off", &expires},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := json.Marshal(svc.Build(ctx, 100, tt.action, tt.reason, tt.expiresAt))
			require.NoError(t, err)
			shutter.SnapJSON(t, tt.name, string(body),
				shutter.ScrubTimestamp(),
				shutter.IgnoreKey("Timestamp"),
			)
		})
	}
}
