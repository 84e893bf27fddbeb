// Package auditlog reconciles platform audit log entries with moderation
// cases: bot-issued actions are matched to their pending case, native ones
// get a case of their own, and both end up in the mod-log.
package auditlog

import (
	"time"

	"warden/internal/moderation"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
)

// Event is a moderation-relevant audit log entry.
type Event struct {
	GuildID    snowflake.ID
	EntryID    snowflake.ID
	Action     moderation.ActionType
	TargetID   snowflake.ID
	ExecutorID snowflake.ID
	Reason     string

	// Set for member timeout changes.
	TimeoutBefore *time.Time
	TimeoutAfter  *time.Time

	CreatedAt time.Time
}

// EventFromEntry converts a gateway audit log entry. It reports false for
// entries that are not moderation actions against a user.
func EventFromEntry(guildID string, entry *discordgo.AuditLogEntry) (Event, bool) {
	if entry == nil || entry.ActionType == nil {
		return Event{}, false
	}

	gid, err := snowflake.Parse(guildID)
	if err != nil {
		return Event{}, false
	}
	entryID, err := snowflake.Parse(entry.ID)
	if err != nil {
		return Event{}, false
	}
	targetID, err := snowflake.Parse(entry.TargetID)
	if err != nil || targetID == 0 {
		return Event{}, false
	}
	executorID, _ := snowflake.Parse(entry.UserID)

	ev := Event{
		GuildID:    gid,
		EntryID:    entryID,
		TargetID:   targetID,
		ExecutorID: executorID,
		Reason:     entry.Reason,
		CreatedAt:  entryID.Time(),
	}

	switch *entry.ActionType {
	case discordgo.AuditLogActionMemberKick:
		ev.Action = moderation.ActionKick
	case discordgo.AuditLogActionMemberBanAdd:
		ev.Action = moderation.ActionBan
	case discordgo.AuditLogActionMemberBanRemove:
		ev.Action = moderation.ActionBanRemove
	case discordgo.AuditLogActionMemberUpdate:
		change := timeoutChange(entry.Changes)
		if change == nil {
			return Event{}, false
		}
		ev.TimeoutBefore = parseTime(change.OldValue)
		ev.TimeoutAfter = parseTime(change.NewValue)
		action, ok := classifyTimeout(ev.TimeoutBefore, ev.TimeoutAfter, ev.CreatedAt)
		if !ok {
			return Event{}, false
		}
		ev.Action = action
	default:
		return Event{}, false
	}

	return ev, true
}

func timeoutChange(changes []*discordgo.AuditLogChange) *discordgo.AuditLogChange {
	for _, c := range changes {
		if c != nil && c.Key != nil && *c.Key == discordgo.AuditLogChangeKeyCommunicationDisabledUntil {
			return c
		}
	}
	return nil
}

func parseTime(v interface{}) *time.Time {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil
	}
	return &t
}

// classifyTimeout tells a new timeout from a change of a running one and
// from a removal. A value in the past counts as no timeout.
func classifyTimeout(before, after *time.Time, at time.Time) (moderation.ActionType, bool) {
	active := func(t *time.Time) bool { return t != nil && t.After(at) }
	switch {
	case active(before) && active(after):
		return moderation.ActionTimeoutAdjust, true
	case active(after):
		return moderation.ActionTimeout, true
	case active(before):
		return moderation.ActionTimeoutRemove, true
	}
	return "", false
}
