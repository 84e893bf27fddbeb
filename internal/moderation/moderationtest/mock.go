package moderationtest

import (
	"context"
	"sync"
	"time"

	"warden/internal/moderation"

	"github.com/disgoorg/snowflake/v2"
)

// EnforcerCall records one platform mutation.
type EnforcerCall struct {
	Method  string
	GuildID snowflake.ID
	UserID  snowflake.ID
	Reason  string
	Until   *time.Time
}

// MockEnforcer is a function-field mock of moderation.Enforcer that also
// records every call.
type MockEnforcer struct {
	mu    sync.Mutex
	Calls []EnforcerCall

	BanFunc     func(guildID, userID snowflake.ID) error
	UnbanFunc   func(guildID, userID snowflake.ID) error
	KickFunc    func(guildID, userID snowflake.ID) error
	TimeoutFunc func(guildID, userID snowflake.ID, until *time.Time) error
}

var _ moderation.Enforcer = (*MockEnforcer)(nil)

func (m *MockEnforcer) record(c EnforcerCall) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, c)
}

// CallCount returns how many platform mutations were requested.
func (m *MockEnforcer) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func (m *MockEnforcer) Ban(ctx context.Context, guildID, userID snowflake.ID, reason string, deleteMessageDays int) error {
	m.record(EnforcerCall{Method: "ban", GuildID: guildID, UserID: userID, Reason: reason})
	if m.BanFunc != nil {
		return m.BanFunc(guildID, userID)
	}
	return nil
}

func (m *MockEnforcer) Unban(ctx context.Context, guildID, userID snowflake.ID, reason string) error {
	m.record(EnforcerCall{Method: "unban", GuildID: guildID, UserID: userID, Reason: reason})
	if m.UnbanFunc != nil {
		return m.UnbanFunc(guildID, userID)
	}
	return nil
}

func (m *MockEnforcer) Kick(ctx context.Context, guildID, userID snowflake.ID, reason string) error {
	m.record(EnforcerCall{Method: "kick", GuildID: guildID, UserID: userID, Reason: reason})
	if m.KickFunc != nil {
		return m.KickFunc(guildID, userID)
	}
	return nil
}

func (m *MockEnforcer) Timeout(ctx context.Context, guildID, userID snowflake.ID, until *time.Time, reason string) error {
	m.record(EnforcerCall{Method: "timeout", GuildID: guildID, UserID: userID, Reason: reason, Until: until})
	if m.TimeoutFunc != nil {
		return m.TimeoutFunc(guildID, userID, until)
	}
	return nil
}

// SentMessage is a message delivered through MockMessenger.
type SentMessage struct {
	ChannelID snowflake.ID
	MessageID snowflake.ID
	UserID    snowflake.ID
	Message   moderation.Message
}

// MockMessenger implements DirectMessenger and ChannelMessenger. Message ids
// are handed out sequentially starting at 1000.
type MockMessenger struct {
	mu     sync.Mutex
	nextID snowflake.ID

	DMs     []SentMessage
	Sent    []SentMessage
	Edited  []SentMessage
	Deleted []snowflake.ID
	Bulk    [][]snowflake.ID

	SendDMFunc      func(userID snowflake.ID) error
	SendMessageFunc func(channelID snowflake.ID) error
	EditMessageFunc func(channelID, messageID snowflake.ID) error
	DeleteFunc      func(channelID, messageID snowflake.ID) error
	BulkDeleteFunc  func(channelID snowflake.ID, ids []snowflake.ID) error
}

var (
	_ moderation.DirectMessenger  = (*MockMessenger)(nil)
	_ moderation.ChannelMessenger = (*MockMessenger)(nil)
)

func (m *MockMessenger) id() snowflake.ID {
	if m.nextID == 0 {
		m.nextID = 1000
	}
	m.nextID++
	return m.nextID
}

func (m *MockMessenger) SendDM(ctx context.Context, userID snowflake.ID, msg moderation.Message) (snowflake.ID, snowflake.ID, error) {
	if m.SendDMFunc != nil {
		if err := m.SendDMFunc(userID); err != nil {
			return 0, 0, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	channelID, messageID := m.id(), m.id()
	m.DMs = append(m.DMs, SentMessage{ChannelID: channelID, MessageID: messageID, UserID: userID, Message: msg})
	return channelID, messageID, nil
}

// DMCount returns the number of delivered direct messages.
func (m *MockMessenger) DMCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.DMs)
}

func (m *MockMessenger) SendMessage(ctx context.Context, channelID snowflake.ID, msg moderation.Message) (snowflake.ID, error) {
	if m.SendMessageFunc != nil {
		if err := m.SendMessageFunc(channelID); err != nil {
			return 0, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	messageID := m.id()
	m.Sent = append(m.Sent, SentMessage{ChannelID: channelID, MessageID: messageID, Message: msg})
	return messageID, nil
}

func (m *MockMessenger) EditMessage(ctx context.Context, channelID, messageID snowflake.ID, msg moderation.Message) error {
	if m.EditMessageFunc != nil {
		if err := m.EditMessageFunc(channelID, messageID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Edited = append(m.Edited, SentMessage{ChannelID: channelID, MessageID: messageID, Message: msg})
	return nil
}

func (m *MockMessenger) DeleteMessage(ctx context.Context, channelID, messageID snowflake.ID) error {
	if m.DeleteFunc != nil {
		if err := m.DeleteFunc(channelID, messageID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, messageID)
	return nil
}

func (m *MockMessenger) BulkDeleteMessages(ctx context.Context, channelID snowflake.ID, ids []snowflake.ID) error {
	if m.BulkDeleteFunc != nil {
		if err := m.BulkDeleteFunc(channelID, ids); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Bulk = append(m.Bulk, append([]snowflake.ID(nil), ids...))
	return nil
}

// MockDirectory resolves users from a map and names every guild GuildNameValue.
type MockDirectory struct {
	Users          map[snowflake.ID]moderation.User
	GuildNameValue string
}

var _ moderation.Directory = (*MockDirectory)(nil)

func (d *MockDirectory) FetchUser(ctx context.Context, userID snowflake.ID) (moderation.User, error) {
	u, ok := d.Users[userID]
	if !ok {
		return moderation.User{}, moderation.ErrUserNotFound
	}
	return u, nil
}

func (d *MockDirectory) GuildName(ctx context.Context, guildID snowflake.ID) (string, error) {
	return d.GuildNameValue, nil
}

// StaticSettings returns the same settings for every guild, or Err.
type StaticSettings struct {
	Settings moderation.GuildSettings
	Err      error
}

var _ moderation.SettingsProvider = (*StaticSettings)(nil)

func (s *StaticSettings) GuildSettings(ctx context.Context, guildID snowflake.ID) (moderation.GuildSettings, error) {
	if s.Err != nil {
		return moderation.GuildSettings{}, s.Err
	}
	settings := s.Settings
	settings.GuildID = guildID
	return settings, nil
}
