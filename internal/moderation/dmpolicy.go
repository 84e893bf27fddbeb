package moderation

import (
	"context"

	"github.com/disgoorg/snowflake/v2"
	"github.com/rs/zerolog/log"
)

// DMTiming is the pipeline phase relative to platform enactment.
type DMTiming string

const (
	DMBefore DMTiming = "before"
	DMAfter  DMTiming = "after"
)

// DMPolicy decides whether the affected user should be messaged.
type DMPolicy struct {
	settings SettingsProvider
}

func NewDMPolicy(settings SettingsProvider) *DMPolicy {
	return &DMPolicy{settings: settings}
}

// ShouldSendDM applies the rules in order: no member, unsupported action,
// explicit override, warn, timing, missing reason, guild setting.
func (p *DMPolicy) ShouldSendDM(ctx context.Context, timing DMTiming, action Action, target Target, guildID snowflake.ID) bool {
	if target.Member == nil {
		return false
	}

	t := action.Type()
	if !t.SupportsDM() {
		return false
	}

	switch action.Base().DMChoice {
	case DMYes:
		return true
	case DMNo:
		return false
	}

	if t == ActionWarn {
		return true
	}

	if timing != t.DMTiming() {
		return false
	}

	if !action.Base().Reason.IsSet() {
		return false
	}

	if p.settings == nil {
		return true
	}
	settings, err := p.settings.GuildSettings(ctx, guildID)
	if err != nil {
		log.Warn().Err(err).Str("guild_id", guildID.String()).Msg("dm policy: failed to load guild settings, using defaults")
		return true
	}
	return settings.DMEnabledFor(t)
}
