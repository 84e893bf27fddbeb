package moderation

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Member is the guild-scoped view of a user.
type Member struct {
	User         User
	RolePosition int        // position of the highest role
	IsOwner      bool
	TimeoutUntil *time.Time // nil when not timed out
}

// TimedOut reports whether the member has an active timeout at now.
func (m *Member) TimedOut(now time.Time) bool {
	return m != nil && m.TimeoutUntil != nil && m.TimeoutUntil.After(now)
}

// Target is the user being acted on. Member is nil when the user is not (or
// no longer) in the guild.
type Target struct {
	User   User
	Member *Member
}

// DMResult records the outcome of notifying the affected user. A sent DM has
// channel and message ids; a failed one has Error set.
type DMResult struct {
	ChannelID snowflake.ID `json:"channel_id,omitempty"`
	MessageID snowflake.ID `json:"message_id,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// Sent reports whether the message was delivered.
func (r DMResult) Sent() bool { return r.MessageID != 0 && r.Error == "" }

// Case is the durable record of one moderation action, keyed by
// (GuildID, CaseID). Zero values of ExecutorID, Reason and MsgID are stored
// as NULL.
type Case struct {
	GuildID     snowflake.ID
	CaseID      int64
	Action      ActionType
	TargetID    snowflake.ID
	TargetTag   string
	ExecutorID  snowflake.ID
	Reason      string
	Attachments []string
	MsgID       snowflake.ID
	DM          *DMResult
	Pending     bool
	CreatedAt   time.Time
}

// HasReason reports whether the case carries a non-empty reason.
func (c *Case) HasReason() bool { return c.Reason != "" }

// TempBan schedules an automatic unban.
type TempBan struct {
	GuildID   snowflake.ID
	UserID    snowflake.ID
	ExpiresAt time.Time
	CreatedAt time.Time
}

// GuildSettings is the read-only slice of guild configuration the
// moderation core consumes.
type GuildSettings struct {
	GuildID                snowflake.ID      `json:"guild_id"`
	ModLogChannel          snowflake.ID      `json:"mod_log_channel,omitempty"`
	ModLogEnabled          bool              `json:"mod_log_enabled"`
	DMEnabled              map[string]bool   `json:"dm_enabled,omitempty"`
	DMText                 map[string]string `json:"dm_text,omitempty"`
	NativeTimeoutDMEnabled bool              `json:"native_timeout_dm_enabled"`
}

// DefaultGuildSettings is used for guilds that never configured anything.
func DefaultGuildSettings(guildID snowflake.ID) GuildSettings {
	return GuildSettings{GuildID: guildID}
}

// ModLogChannelID returns the mod-log channel if posting is enabled.
func (s GuildSettings) ModLogChannelID() (snowflake.ID, bool) {
	if !s.ModLogEnabled || s.ModLogChannel == 0 {
		return 0, false
	}
	return s.ModLogChannel, true
}

// dmSettingKey groups action types that share one DM toggle.
func dmSettingKey(t ActionType) string {
	switch {
	case t.IsBan():
		return "ban"
	case t.IsTimeout():
		return "timeout"
	}
	return string(t)
}

// DMEnabledFor returns the per-action DM toggle, true when unconfigured.
func (s GuildSettings) DMEnabledFor(t ActionType) bool {
	enabled, ok := s.DMEnabled[dmSettingKey(t)]
	if !ok {
		return true
	}
	return enabled
}

// DMTextFor returns the guild's custom DM text for an action, if any.
func (s GuildSettings) DMTextFor(t ActionType) string {
	return s.DMText[dmSettingKey(t)]
}

// Message is a platform-neutral outgoing message.
type Message struct {
	Content string
	Embed   *Embed
}

type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

type Embed struct {
	Title       string
	Description string
	Color       int
	AuthorName  string
	AuthorIcon  string
	Fields      []EmbedField
	Footer      string
	Timestamp   time.Time
}
