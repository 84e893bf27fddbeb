package modlog

import (
	"context"
	"errors"
	"fmt"

	"warden/internal/metrics"
	"warden/internal/moderation"

	"github.com/rs/zerolog/log"
)

// Poster sends or edits mod-log messages and stores the resulting message
// id on the case.
type Poster struct {
	messenger moderation.ChannelMessenger
	settings  moderation.SettingsProvider
	tx        moderation.Transactor
	cases     moderation.CaseRepository
}

func NewPoster(messenger moderation.ChannelMessenger, settings moderation.SettingsProvider, tx moderation.Transactor, cases moderation.CaseRepository) *Poster {
	return &Poster{messenger: messenger, settings: settings, tx: tx, cases: cases}
}

var _ moderation.ModLogPoster = (*Poster)(nil)

// Post edits the case's existing message, or sends a new one when it has
// none or the old one is gone. Guilds without an enabled mod-log channel are
// skipped and c is returned unchanged.
func (p *Poster) Post(ctx context.Context, c moderation.Case) (moderation.Case, error) {
	settings, err := p.settings.GuildSettings(ctx, c.GuildID)
	if err != nil {
		return c, fmt.Errorf("load guild settings: %w", err)
	}
	channelID, ok := settings.ModLogChannelID()
	if !ok {
		return c, nil
	}

	msg := Render(c)
	if c.MsgID != 0 {
		err := p.messenger.EditMessage(ctx, channelID, c.MsgID, msg)
		if err == nil {
			metrics.ModLogPostsTotal.WithLabelValues("edited").Inc()
			return c, nil
		}
		if !errors.Is(err, moderation.ErrMessageNotFound) {
			metrics.ModLogPostsTotal.WithLabelValues("error").Inc()
			return c, fmt.Errorf("edit mod-log message: %w", err)
		}
		log.Debug().
			Str("guild_id", c.GuildID.String()).
			Int64("case_id", c.CaseID).
			Msg("modlog: message gone, sending a new one")
	}

	msgID, err := p.messenger.SendMessage(ctx, channelID, msg)
	if err != nil {
		metrics.ModLogPostsTotal.WithLabelValues("error").Inc()
		return c, fmt.Errorf("send mod-log message: %w", err)
	}
	metrics.ModLogPostsTotal.WithLabelValues("sent").Inc()

	c.MsgID = msgID
	if err := moderation.WithTx(ctx, p.tx, func(tx moderation.Tx) error {
		return p.cases.SetMessageID(ctx, tx, c.GuildID, c.CaseID, msgID)
	}); err != nil {
		return c, fmt.Errorf("store mod-log message id: %w", err)
	}
	return c, nil
}

// Edit re-renders the existing message of a case. It returns
// ErrMessageNotFound when the case has no message or it was deleted.
func (p *Poster) Edit(ctx context.Context, c moderation.Case) error {
	if c.MsgID == 0 {
		return moderation.ErrMessageNotFound
	}
	settings, err := p.settings.GuildSettings(ctx, c.GuildID)
	if err != nil {
		return fmt.Errorf("load guild settings: %w", err)
	}
	channelID, ok := settings.ModLogChannelID()
	if !ok {
		return moderation.ErrMessageNotFound
	}
	if err := p.messenger.EditMessage(ctx, channelID, c.MsgID, Render(c)); err != nil {
		metrics.ModLogPostsTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.ModLogPostsTotal.WithLabelValues("edited").Inc()
	return nil
}
