package moderation

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Enforcer performs the platform-side mutation of an action.
type Enforcer interface {
	Ban(ctx context.Context, guildID, userID snowflake.ID, reason string, deleteMessageDays int) error
	Unban(ctx context.Context, guildID, userID snowflake.ID, reason string) error
	Kick(ctx context.Context, guildID, userID snowflake.ID, reason string) error
	// Timeout sets the member's timeout to until, or clears it when until is nil.
	Timeout(ctx context.Context, guildID, userID snowflake.ID, until *time.Time, reason string) error
}

// DirectMessenger opens a DM channel with the user and sends msg. A user who
// can't receive DMs yields ErrDMBlocked.
type DirectMessenger interface {
	SendDM(ctx context.Context, userID snowflake.ID, msg Message) (channelID, messageID snowflake.ID, err error)
}

// ChannelMessenger manages guild channel messages.
type ChannelMessenger interface {
	SendMessage(ctx context.Context, channelID snowflake.ID, msg Message) (snowflake.ID, error)
	EditMessage(ctx context.Context, channelID, messageID snowflake.ID, msg Message) error
	DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID) error
	// BulkDeleteMessages removes 2 to 100 messages younger than 14 days.
	BulkDeleteMessages(ctx context.Context, channelID snowflake.ID, messageIDs []snowflake.ID) error
}

// Directory resolves users and guild names for rendering.
type Directory interface {
	FetchUser(ctx context.Context, userID snowflake.ID) (User, error)
	GuildName(ctx context.Context, guildID snowflake.ID) (string, error)
}
