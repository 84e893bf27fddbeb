package commands

import (
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
)

// options indexes the top-level options of a command invocation.
type options map[string]*discordgo.ApplicationCommandInteractionDataOption

func optionMap(opts []*discordgo.ApplicationCommandInteractionDataOption) options {
	m := make(options, len(opts))
	for _, o := range opts {
		m[o.Name] = o
	}
	return m
}

func (o options) has(name string) bool {
	_, ok := o[name]
	return ok
}

func (o options) string(name string) string {
	if opt, ok := o[name]; ok {
		if s, ok := opt.Value.(string); ok {
			return s
		}
	}
	return ""
}

func (o options) int(name string) int {
	if opt, ok := o[name]; ok {
		if f, ok := opt.Value.(float64); ok {
			return int(f)
		}
	}
	return 0
}

func (o options) bool(name string) bool {
	if opt, ok := o[name]; ok {
		if b, ok := opt.Value.(bool); ok {
			return b
		}
	}
	return false
}

// focused returns the option the user is typing into during autocomplete.
func (o options) focused() *discordgo.ApplicationCommandInteractionDataOption {
	for _, opt := range o {
		if opt.Focused {
			return opt
		}
	}
	return nil
}

var userRefPattern = regexp.MustCompile(`<@!?(\d{15,21})>|\b(\d{15,21})\b`)

// parseUserIDs extracts user ids from mentions and raw ids, dropping
// duplicates and keeping the order they were given in.
func parseUserIDs(s string) []snowflake.ID {
	var ids []snowflake.ID
	seen := map[snowflake.ID]bool{}
	for _, m := range userRefPattern.FindAllStringSubmatch(s, -1) {
		raw := m[1]
		if raw == "" {
			raw = m[2]
		}
		id, err := snowflake.Parse(strings.TrimSpace(raw))
		if err != nil || id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// attachmentURL returns the URL of the attachment option, if one was given.
func attachmentURL(data discordgo.ApplicationCommandInteractionData, o options) string {
	id := o.string(optAttachment)
	if id == "" || data.Resolved == nil {
		return ""
	}
	if a, ok := data.Resolved.Attachments[id]; ok && a != nil {
		return a.URL
	}
	return ""
}
