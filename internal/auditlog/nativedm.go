package auditlog

import (
	"context"
	"fmt"

	"warden/internal/metrics"
	"warden/internal/moderation"
	"warden/internal/tracing"

	"github.com/rs/zerolog/log"
)

// NativeTimeoutDM notifies users timed out through the Discord client
// instead of the bot.
type NativeTimeoutDM struct {
	dm       *moderation.DMService
	settings moderation.SettingsProvider
}

func NewNativeTimeoutDM(dm *moderation.DMService, settings moderation.SettingsProvider) *NativeTimeoutDM {
	return &NativeTimeoutDM{dm: dm, settings: settings}
}

// ShouldSend reports whether the user behind a processed event gets a DM.
// Cases reconciled from the pipeline were already handled there, and only
// the bot adjusts timeouts.
func (n *NativeTimeoutDM) ShouldSend(ctx context.Context, ev Event, p Processed) (bool, error) {
	if p.Reconciled {
		return false, nil
	}
	switch ev.Action {
	case moderation.ActionTimeout, moderation.ActionTimeoutRemove:
	default:
		return false, nil
	}

	settings, err := n.settings.GuildSettings(ctx, ev.GuildID)
	if err != nil {
		return false, fmt.Errorf("load guild settings: %w", err)
	}
	return settings.NativeTimeoutDMEnabled, nil
}

// Handle sends the DM when ShouldSend allows it and returns its outcome, or
// nil when nothing was sent.
func (n *NativeTimeoutDM) Handle(ctx context.Context, ev Event, p Processed) (*moderation.DMResult, error) {
	ok, err := n.ShouldSend(ctx, ev, p)
	if err != nil || !ok {
		return nil, err
	}

	ctx, span := tracing.StageSpan(ctx, "auditlog.native_dm", string(ev.Action))
	defer span.End()

	target := moderation.User{ID: ev.TargetID, Tag: p.Case.TargetTag}
	result := n.dm.Send(ctx, ev.GuildID, ev.Action, target, ev.Reason, ev.TimeoutAfter)
	outcome := "sent"
	if !result.Sent() {
		outcome = "error"
	}
	metrics.DMTotal.WithLabelValues(string(ev.Action), outcome).Inc()

	log.Debug().
		Str("guild_id", ev.GuildID.String()).
		Str("target_id", ev.TargetID.String()).
		Int64("case_id", p.Case.CaseID).
		Str("outcome", outcome).
		Msg("auditlog: native timeout dm")
	return &result, nil
}
