// Package modlog renders moderation cases into mod-log channel messages and
// keeps the case's message id in sync.
package modlog

import (
	"fmt"

	"warden/internal/moderation"
)

// Render builds the mod-log message for a case.
func Render(c moderation.Case) moderation.Message {
	target := c.TargetTag
	if target == "" {
		target = "Unknown user"
	}

	moderator := "Unknown"
	if c.ExecutorID != 0 {
		moderator = fmt.Sprintf("<@%s>", c.ExecutorID)
	}

	reason := c.Reason
	if reason == "" {
		reason = fmt.Sprintf("No reason provided. Use `/reason %d` to set one.", c.CaseID)
	}

	embed := &moderation.Embed{
		AuthorName: fmt.Sprintf("Case #%d | %s", c.CaseID, c.Action.Title()),
		Color:      moderation.ActionColor(c.Action),
		Fields: []moderation.EmbedField{
			{Name: "User", Value: fmt.Sprintf("%s (<@%s>)", target, c.TargetID), Inline: true},
			{Name: "Moderator", Value: moderator, Inline: true},
			{Name: "Reason", Value: reason},
		},
		Footer:    fmt.Sprintf("User ID: %s", c.TargetID),
		Timestamp: c.CreatedAt,
	}

	if c.DM != nil {
		status := "Sent"
		if !c.DM.Sent() {
			status = "Not sent: " + c.DM.Error
		}
		embed.Fields = append(embed.Fields, moderation.EmbedField{Name: "DM", Value: status, Inline: true})
	}
	for i, url := range c.Attachments {
		embed.Fields = append(embed.Fields, moderation.EmbedField{
			Name:  fmt.Sprintf("Attachment %d", i+1),
			Value: url,
		})
	}

	return moderation.Message{Embed: embed}
}
