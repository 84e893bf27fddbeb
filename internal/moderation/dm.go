package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/rs/zerolog/log"
)

const (
	colorBan     = 0xE74C3C
	colorKick    = 0xE67E22
	colorTimeout = 0xF1C40F
	colorWarn    = 0xF39C12
	colorNeutral = 0x3498DB
)

// dmBlockedMessage is stored on the case when the user doesn't accept DMs.
const dmBlockedMessage = "User has DMs disabled or blocked the bot"

// DMService builds and sends notifications to affected users.
type DMService struct {
	messenger DirectMessenger
	directory Directory
	settings  SettingsProvider
}

func NewDMService(messenger DirectMessenger, directory Directory, settings SettingsProvider) *DMService {
	return &DMService{messenger: messenger, directory: directory, settings: settings}
}

// Send notifies target about the action. Delivery failures are reported in
// the returned DMResult instead of an error; the caller records it on the
// case.
func (s *DMService) Send(ctx context.Context, guildID snowflake.ID, action ActionType, target User, reason string, expiresAt *time.Time) DMResult {
	msg := s.Build(ctx, guildID, action, reason, expiresAt)

	channelID, messageID, err := s.messenger.SendDM(ctx, target.ID, msg)
	if err != nil {
		result := DMResult{Error: err.Error()}
		if errors.Is(err, ErrDMBlocked) {
			result.Error = dmBlockedMessage
			log.Debug().
				Str("guild_id", guildID.String()).
				Str("target_id", target.ID.String()).
				Str("action", string(action)).
				Msg("dm: user does not accept direct messages")
		} else {
			log.Warn().Err(err).
				Str("guild_id", guildID.String()).
				Str("target_id", target.ID.String()).
				Str("action", string(action)).
				Msg("dm: failed to send")
		}
		return result
	}

	return DMResult{ChannelID: channelID, MessageID: messageID}
}

// Build renders the DM for an action.
func (s *DMService) Build(ctx context.Context, guildID snowflake.ID, action ActionType, reason string, expiresAt *time.Time) Message {
	guildName := "the server"
	if s.directory != nil {
		if name, err := s.directory.GuildName(ctx, guildID); err == nil && name != "" {
			guildName = name
		}
	}

	embed := &Embed{
		Title:     fmt.Sprintf("You have been %s in %s", action.PastTense(), guildName),
		Color:     actionColor(action),
		Timestamp: time.Now(),
	}
	if action == ActionWarn {
		embed.Title = fmt.Sprintf("You have received a warning in %s", guildName)
	}

	if s.settings != nil {
		if settings, err := s.settings.GuildSettings(ctx, guildID); err == nil {
			embed.Description = settings.DMTextFor(action)
		}
	}

	if reason != "" {
		embed.Fields = append(embed.Fields, EmbedField{Name: "Reason", Value: reason})
	}
	if expiresAt != nil {
		embed.Fields = append(embed.Fields, EmbedField{
			Name:  "Expires",
			Value: fmt.Sprintf("<t:%d:F> (<t:%d:R>)", expiresAt.Unix(), expiresAt.Unix()),
		})
	}

	return Message{Embed: embed}
}

func actionColor(t ActionType) int {
	switch {
	case t.IsBan():
		return colorBan
	case t == ActionKick:
		return colorKick
	case t.IsTimeout():
		return colorTimeout
	case t == ActionWarn:
		return colorWarn
	}
	return colorNeutral
}

// ActionColor exposes the embed color used for an action type.
func ActionColor(t ActionType) int { return actionColor(t) }
