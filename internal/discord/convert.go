package discord

import (
	"time"

	"warden/internal/moderation"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
)

// parseID returns 0 for anything that is not a snowflake.
func parseID(s string) snowflake.ID {
	id, err := snowflake.Parse(s)
	if err != nil {
		return 0
	}
	return id
}

func toUser(u *discordgo.User) moderation.User {
	if u == nil {
		return moderation.User{}
	}
	return moderation.User{ID: parseID(u.ID), Tag: u.String(), Bot: u.Bot}
}

func toEmbed(e *moderation.Embed) *discordgo.MessageEmbed {
	if e == nil {
		return nil
	}
	out := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	if e.AuthorName != "" {
		out.Author = &discordgo.MessageEmbedAuthor{Name: e.AuthorName, IconURL: e.AuthorIcon}
	}
	for _, f := range e.Fields {
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if e.Footer != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	if !e.Timestamp.IsZero() {
		out.Timestamp = e.Timestamp.UTC().Format(time.RFC3339)
	}
	return out
}

func toMessageSend(msg moderation.Message) *discordgo.MessageSend {
	send := &discordgo.MessageSend{
		Content:         msg.Content,
		AllowedMentions: &discordgo.MessageAllowedMentions{},
	}
	if embed := toEmbed(msg.Embed); embed != nil {
		send.Embeds = []*discordgo.MessageEmbed{embed}
	}
	return send
}

func toMessageEdit(channelID, messageID snowflake.ID, msg moderation.Message) *discordgo.MessageEdit {
	edit := discordgo.NewMessageEdit(channelID.String(), messageID.String())
	edit.SetContent(msg.Content)
	if embed := toEmbed(msg.Embed); embed != nil {
		edit.SetEmbed(embed)
	}
	return edit
}

// highestRolePosition returns the position of the highest role among
// roleIDs. Unknown roles are ignored; no roles is position 0.
func highestRolePosition(guildRoles []*discordgo.Role, roleIDs []string) int {
	positions := make(map[string]int, len(guildRoles))
	for _, r := range guildRoles {
		positions[r.ID] = r.Position
	}
	highest := 0
	for _, id := range roleIDs {
		if p, ok := positions[id]; ok && p > highest {
			highest = p
		}
	}
	return highest
}

// toMember converts a guild member given the guild's roles and owner.
func toMember(g *discordgo.Guild, m *discordgo.Member) *moderation.Member {
	if m == nil {
		return nil
	}
	member := &moderation.Member{
		User:         toUser(m.User),
		TimeoutUntil: m.CommunicationDisabledUntil,
	}
	if g != nil {
		member.RolePosition = highestRolePosition(g.Roles, m.Roles)
		member.IsOwner = m.User != nil && g.OwnerID == m.User.ID
	}
	return member
}
