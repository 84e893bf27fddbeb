package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"warden/internal/auditlog"
	"warden/internal/moderation"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restError(status, code int, message string) error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: status},
		Message:  &discordgo.APIErrorMessage{Code: code, Message: message},
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unknown message", restError(404, discordgo.ErrCodeUnknownMessage, "Unknown Message"), moderation.ErrMessageNotFound},
		{"unknown ban", restError(404, discordgo.ErrCodeUnknownBan, "Unknown Ban"), moderation.ErrBanNotFound},
		{"unknown user", restError(404, discordgo.ErrCodeUnknownUser, "Unknown User"), moderation.ErrUserNotFound},
		{"dm blocked", restError(403, discordgo.ErrCodeCannotSendMessagesToThisUser, "Cannot send messages to this user"), moderation.ErrDMBlocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(tt.err), tt.want)
		})
	}

	t.Run("forbidden keeps the api message", func(t *testing.T) {
		err := mapError(restError(403, 50013, "Missing Permissions"))
		assert.EqualError(t, err, "Missing Permissions")
	})

	t.Run("other errors pass through", func(t *testing.T) {
		plain := errors.New("connection reset")
		assert.Same(t, plain, mapError(plain))
		assert.NoError(t, mapError(nil))
	})
}

func TestToEmbed(t *testing.T) {
	ts := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	embed := toEmbed(&moderation.Embed{
		Title:      "Ban",
		Color:      0xE74C3C,
		AuthorName: "Case #4 | Ban",
		Fields:     []moderation.EmbedField{{Name: "User", Value: "user (<@300>)", Inline: true}},
		Footer:     "User ID: 300",
		Timestamp:  ts,
	})
	require.NotNil(t, embed)
	assert.Equal(t, "Case #4 | Ban", embed.Author.Name)
	require.Len(t, embed.Fields, 1)
	assert.True(t, embed.Fields[0].Inline)
	assert.Equal(t, "User ID: 300", embed.Footer.Text)
	assert.Equal(t, "2026-03-14T12:00:00Z", embed.Timestamp)

	bare := toEmbed(&moderation.Embed{Description: "hi"})
	assert.Nil(t, bare.Author)
	assert.Nil(t, bare.Footer)
	assert.Empty(t, bare.Timestamp)
	assert.Nil(t, toEmbed(nil))

	send := toMessageSend(moderation.Message{Content: "hello"})
	assert.Empty(t, send.Embeds)
	assert.NotNil(t, send.AllowedMentions, "mod-log messages never ping")
}

func TestToMember(t *testing.T) {
	until := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	guild := &discordgo.Guild{
		OwnerID: "1",
		Roles: []*discordgo.Role{
			{ID: "10", Position: 1},
			{ID: "11", Position: 5},
			{ID: "12", Position: 3},
		},
	}

	m := toMember(guild, &discordgo.Member{
		User:                       &discordgo.User{ID: "300", Username: "target", Discriminator: "0"},
		Roles:                      []string{"10", "12", "99"},
		CommunicationDisabledUntil: &until,
	})
	require.NotNil(t, m)
	assert.Equal(t, 3, m.RolePosition)
	assert.False(t, m.IsOwner)
	assert.Equal(t, "target", m.User.Tag)
	assert.True(t, m.TimedOut(until.Add(-time.Hour)))

	owner := toMember(guild, &discordgo.Member{User: &discordgo.User{ID: "1"}})
	assert.True(t, owner.IsOwner)
	assert.Zero(t, owner.RolePosition)

	assert.Nil(t, toMember(guild, nil))
}

type recordingAudit struct {
	events []auditlog.Event
	err    error
}

func (r *recordingAudit) Handle(ctx context.Context, ev auditlog.Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func rawEntry(guildID string, action discordgo.AuditLogAction, targetID string) []byte {
	entryID := snowflake.New(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	return []byte(fmt.Sprintf(`{
		"guild_id": %q,
		"id": %q,
		"action_type": %d,
		"target_id": %q,
		"user_id": "200",
		"reason": "spam"
	}`, guildID, entryID.String(), action, targetID))
}

func TestAuditEventFromRaw(t *testing.T) {
	ev, ok, err := auditEventFromRaw(rawEntry("100", discordgo.AuditLogActionMemberBanAdd, "300"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snowflake.ID(100), ev.GuildID)
	assert.Equal(t, snowflake.ID(300), ev.TargetID)
	assert.Equal(t, snowflake.ID(200), ev.ExecutorID)
	assert.Equal(t, moderation.ActionBan, ev.Action)
	assert.Equal(t, "spam", ev.Reason)

	_, ok, err = auditEventFromRaw(rawEntry("100", discordgo.AuditLogActionChannelCreate, "300"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = auditEventFromRaw([]byte(`{`))
	assert.Error(t, err)
}

func TestGatewayRoutesAuditEntries(t *testing.T) {
	audit := &recordingAudit{}
	g := NewGateway(nil, audit, nil)

	g.onRawEvent(nil, &discordgo.Event{Type: "MESSAGE_CREATE", RawData: []byte(`{}`)})
	assert.Empty(t, audit.events)

	g.onRawEvent(nil, &discordgo.Event{Type: auditLogEntryCreate, RawData: rawEntry("100", discordgo.AuditLogActionMemberKick, "300")})
	require.Len(t, audit.events, 1)
	assert.Equal(t, moderation.ActionKick, audit.events[0].Action)

	audit.err = errors.New("database is locked")
	g.onRawEvent(nil, &discordgo.Event{Type: auditLogEntryCreate, RawData: rawEntry("100", discordgo.AuditLogActionMemberBanRemove, "300")})
	assert.Len(t, audit.events, 2)

	assert.False(t, g.Connected())
}
