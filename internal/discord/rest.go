// Package discord adapts a discordgo session to the moderation ports and
// feeds gateway events into the application.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"warden/internal/moderation"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
)

// Client implements the moderation platform ports over the Discord REST API.
type Client struct {
	s *discordgo.Session
}

func NewClient(s *discordgo.Session) *Client {
	return &Client{s: s}
}

var (
	_ moderation.Enforcer         = (*Client)(nil)
	_ moderation.DirectMessenger  = (*Client)(nil)
	_ moderation.ChannelMessenger = (*Client)(nil)
	_ moderation.Directory        = (*Client)(nil)
)

// mapError translates the REST errors the core distinguishes into sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return err
	}
	if rest.Message != nil {
		switch rest.Message.Code {
		case discordgo.ErrCodeUnknownMessage:
			return fmt.Errorf("%w: %v", moderation.ErrMessageNotFound, err)
		case discordgo.ErrCodeUnknownBan:
			return fmt.Errorf("%w: %v", moderation.ErrBanNotFound, err)
		case discordgo.ErrCodeUnknownUser:
			return fmt.Errorf("%w: %v", moderation.ErrUserNotFound, err)
		case discordgo.ErrCodeCannotSendMessagesToThisUser:
			return fmt.Errorf("%w: %v", moderation.ErrDMBlocked, err)
		}
	}
	if rest.Response != nil && rest.Response.StatusCode == http.StatusForbidden && rest.Message != nil {
		return errors.New(rest.Message.Message)
	}
	return err
}

func auditReason(reason string) []discordgo.RequestOption {
	if reason == "" {
		return nil
	}
	return []discordgo.RequestOption{discordgo.WithAuditLogReason(reason)}
}

func withContext(ctx context.Context, opts []discordgo.RequestOption) []discordgo.RequestOption {
	return append(opts, discordgo.WithContext(ctx))
}

// ========== Enforcer ==========

func (c *Client) Ban(ctx context.Context, guildID, userID snowflake.ID, reason string, deleteMessageDays int) error {
	err := c.s.GuildBanCreateWithReason(guildID.String(), userID.String(), reason, deleteMessageDays,
		discordgo.WithContext(ctx))
	return mapError(err)
}

func (c *Client) Unban(ctx context.Context, guildID, userID snowflake.ID, reason string) error {
	err := c.s.GuildBanDelete(guildID.String(), userID.String(), withContext(ctx, auditReason(reason))...)
	return mapError(err)
}

func (c *Client) Kick(ctx context.Context, guildID, userID snowflake.ID, reason string) error {
	err := c.s.GuildMemberDeleteWithReason(guildID.String(), userID.String(), reason, discordgo.WithContext(ctx))
	return mapError(err)
}

func (c *Client) Timeout(ctx context.Context, guildID, userID snowflake.ID, until *time.Time, reason string) error {
	err := c.s.GuildMemberTimeout(guildID.String(), userID.String(), until, withContext(ctx, auditReason(reason))...)
	return mapError(err)
}

// ========== Messages ==========

func (c *Client) SendDM(ctx context.Context, userID snowflake.ID, msg moderation.Message) (snowflake.ID, snowflake.ID, error) {
	channel, err := c.s.UserChannelCreate(userID.String(), discordgo.WithContext(ctx))
	if err != nil {
		return 0, 0, mapError(err)
	}
	channelID := parseID(channel.ID)

	sent, err := c.s.ChannelMessageSendComplex(channel.ID, toMessageSend(msg), discordgo.WithContext(ctx))
	if err != nil {
		return channelID, 0, mapError(err)
	}
	return channelID, parseID(sent.ID), nil
}

func (c *Client) SendMessage(ctx context.Context, channelID snowflake.ID, msg moderation.Message) (snowflake.ID, error) {
	sent, err := c.s.ChannelMessageSendComplex(channelID.String(), toMessageSend(msg), discordgo.WithContext(ctx))
	if err != nil {
		return 0, mapError(err)
	}
	return parseID(sent.ID), nil
}

func (c *Client) EditMessage(ctx context.Context, channelID, messageID snowflake.ID, msg moderation.Message) error {
	_, err := c.s.ChannelMessageEditComplex(toMessageEdit(channelID, messageID, msg), discordgo.WithContext(ctx))
	return mapError(err)
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID) error {
	return mapError(c.s.ChannelMessageDelete(channelID.String(), messageID.String(), discordgo.WithContext(ctx)))
}

func (c *Client) BulkDeleteMessages(ctx context.Context, channelID snowflake.ID, messageIDs []snowflake.ID) error {
	ids := make([]string, len(messageIDs))
	for i, id := range messageIDs {
		ids[i] = id.String()
	}
	return mapError(c.s.ChannelMessagesBulkDelete(channelID.String(), ids, discordgo.WithContext(ctx)))
}

// ========== Directory ==========

func (c *Client) FetchUser(ctx context.Context, userID snowflake.ID) (moderation.User, error) {
	u, err := c.s.User(userID.String(), discordgo.WithContext(ctx))
	if err != nil {
		return moderation.User{}, mapError(err)
	}
	return toUser(u), nil
}

func (c *Client) GuildName(ctx context.Context, guildID snowflake.ID) (string, error) {
	g, err := c.guild(ctx, guildID.String())
	if err != nil {
		return "", err
	}
	return g.Name, nil
}

// guild prefers the gateway state cache over a REST round trip.
func (c *Client) guild(ctx context.Context, guildID string) (*discordgo.Guild, error) {
	if c.s.State != nil {
		if g, err := c.s.State.Guild(guildID); err == nil {
			return g, nil
		}
	}
	g, err := c.s.Guild(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, mapError(err)
	}
	return g, nil
}
