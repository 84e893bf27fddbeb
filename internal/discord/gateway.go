package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"warden/internal/auditlog"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
)

const auditLogEntryCreate = "GUILD_AUDIT_LOG_ENTRY_CREATE"

// Intents the bot identifies with. Guild bans covers audit log entry
// events.
const Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers | discordgo.IntentsGuildBans

// AuditHandler consumes reconciled audit log events.
type AuditHandler interface {
	Handle(ctx context.Context, ev auditlog.Event) error
}

// InteractionHandler answers slash commands, autocomplete and components.
type InteractionHandler interface {
	HandleInteraction(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate)
}

// NewSession creates a bot session with the intents the gateway needs.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	s.Identify.Intents = Intents
	return s, nil
}

// Gateway routes gateway events to the application for as long as Run is
// active.
type Gateway struct {
	s            *discordgo.Session
	audit        AuditHandler
	interactions InteractionHandler
	timeout      time.Duration

	ctx       context.Context
	connected atomic.Bool
}

func NewGateway(s *discordgo.Session, audit AuditHandler, interactions InteractionHandler) *Gateway {
	return &Gateway{
		s:            s,
		audit:        audit,
		interactions: interactions,
		timeout:      30 * time.Second,
		ctx:          context.Background(),
	}
}

// Run opens the gateway connection and blocks until ctx is cancelled.
func (g *Gateway) Run(ctx context.Context) error {
	g.ctx = ctx

	removers := []func(){
		g.s.AddHandler(g.onRawEvent),
		g.s.AddHandler(g.onInteraction),
		g.s.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
			g.connected.Store(true)
			log.Info().Str("user", r.User.String()).Int("guilds", len(r.Guilds)).Msg("Discord gateway ready")
		}),
		g.s.AddHandler(func(*discordgo.Session, *discordgo.Resumed) { g.connected.Store(true) }),
		g.s.AddHandler(func(*discordgo.Session, *discordgo.Disconnect) {
			g.connected.Store(false)
			log.Warn().Msg("Discord gateway disconnected")
		}),
	}
	defer func() {
		for _, remove := range removers {
			remove()
		}
	}()

	if err := g.s.Open(); err != nil {
		return fmt.Errorf("open discord gateway: %w", err)
	}

	<-ctx.Done()
	g.connected.Store(false)
	if err := g.s.Close(); err != nil {
		return fmt.Errorf("close discord gateway: %w", err)
	}
	return nil
}

// Connected reports whether the gateway session is currently up.
func (g *Gateway) Connected() bool { return g.connected.Load() }

func (g *Gateway) onRawEvent(_ *discordgo.Session, e *discordgo.Event) {
	if e.Type != auditLogEntryCreate {
		return
	}
	ev, ok, err := auditEventFromRaw(e.RawData)
	if err != nil {
		log.Warn().Err(err).Msg("discord: malformed audit log entry event")
		return
	}
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(g.ctx, g.timeout)
	defer cancel()
	if err := g.audit.Handle(ctx, ev); err != nil {
		log.Error().Err(err).
			Str("guild_id", ev.GuildID.String()).
			Str("target_id", ev.TargetID.String()).
			Str("action", string(ev.Action)).
			Msg("discord: failed to handle audit log entry")
	}
}

func (g *Gateway) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(g.ctx, g.timeout)
	defer cancel()
	g.interactions.HandleInteraction(ctx, s, i)
}

// auditEventFromRaw decodes a GUILD_AUDIT_LOG_ENTRY_CREATE payload. ok is
// false for entries that are not moderation actions on a user.
func auditEventFromRaw(raw json.RawMessage) (ev auditlog.Event, ok bool, err error) {
	var envelope struct {
		GuildID string `json:"guild_id"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return ev, false, err
	}
	var entry discordgo.AuditLogEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return ev, false, err
	}
	ev, ok = auditlog.EventFromEntry(envelope.GuildID, &entry)
	return ev, ok, nil
}
