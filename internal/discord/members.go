package discord

import (
	"context"
	"errors"
	"fmt"

	"warden/internal/moderation"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
)

// ResolveTarget looks the user up as a guild member, falling back to the
// plain user when they are not in the guild.
func (c *Client) ResolveTarget(ctx context.Context, guildID, userID snowflake.ID) (moderation.Target, error) {
	m, err := c.s.GuildMember(guildID.String(), userID.String(), discordgo.WithContext(ctx))
	if err == nil {
		g, gerr := c.guild(ctx, guildID.String())
		if gerr != nil {
			return moderation.Target{}, fmt.Errorf("load guild: %w", gerr)
		}
		member := toMember(g, m)
		return moderation.Target{User: member.User, Member: member}, nil
	}

	var rest *discordgo.RESTError
	if !errors.As(err, &rest) || rest.Message == nil || rest.Message.Code != discordgo.ErrCodeUnknownMember {
		return moderation.Target{}, mapError(err)
	}

	user, err := c.FetchUser(ctx, userID)
	if err != nil {
		return moderation.Target{}, err
	}
	return moderation.Target{User: user}, nil
}

// ResolveMember converts the invoking member of an interaction.
func (c *Client) ResolveMember(ctx context.Context, guildID snowflake.ID, m *discordgo.Member) *moderation.Member {
	g, _ := c.guild(ctx, guildID.String())
	return toMember(g, m)
}
