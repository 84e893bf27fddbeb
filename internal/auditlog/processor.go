package auditlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"warden/internal/metrics"
	"warden/internal/moderation"
	"warden/internal/tracing"

	"github.com/rs/zerolog/log"
)

// DefaultPendingWindow is how far back a pending case may have been created
// and still be matched to an audit log entry.
const DefaultPendingWindow = time.Minute

// Claimer marks an audit log entry as handled. Claim reports false when the
// entry was claimed before, e.g. after a gateway replay.
type Claimer interface {
	Claim(ctx context.Context, entryID string) (bool, error)
}

// Processed is the case an event resolved to.
type Processed struct {
	Case moderation.Case
	// Reconciled is set when the case was created by the bot's pipeline and
	// only flipped out of pending here.
	Reconciled bool
}

// ProcessorDeps are the collaborators of a Processor. Claims and Directory
// are optional.
type ProcessorDeps struct {
	Transactor    moderation.Transactor
	Cases         moderation.CaseRepository
	TempBans      moderation.TempBanRepository
	Settings      moderation.SettingsProvider
	Directory     moderation.Directory
	Claims        Claimer
	PendingWindow time.Duration
	Now           func() time.Time
}

// Processor turns audit log events into cases.
type Processor struct {
	tx        moderation.Transactor
	cases     moderation.CaseRepository
	tempBans  moderation.TempBanRepository
	settings  moderation.SettingsProvider
	directory moderation.Directory
	claims    Claimer
	window    time.Duration
	now       func() time.Time
}

func NewProcessor(deps ProcessorDeps) *Processor {
	p := &Processor{
		tx:        deps.Transactor,
		cases:     deps.Cases,
		tempBans:  deps.TempBans,
		settings:  deps.Settings,
		directory: deps.Directory,
		claims:    deps.Claims,
		window:    deps.PendingWindow,
		now:       deps.Now,
	}
	if p.window <= 0 {
		p.window = DefaultPendingWindow
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Process resolves ev to a case. It returns nil without error when the
// event is ignored: the guild has no mod-log channel, or the entry was
// already handled.
func (p *Processor) Process(ctx context.Context, ev Event) (*Processed, error) {
	ctx, span := tracing.StageSpan(ctx, "auditlog.process", string(ev.Action))
	defer span.End()

	logger := log.With().
		Str("guild_id", ev.GuildID.String()).
		Str("target_id", ev.TargetID.String()).
		Str("action", string(ev.Action)).
		Str("entry_id", ev.EntryID.String()).
		Logger()

	settings, err := p.settings.GuildSettings(ctx, ev.GuildID)
	if err != nil {
		tracing.EndWithError(span, err)
		metrics.AuditLogEventsTotal.WithLabelValues(string(ev.Action), "error").Inc()
		return nil, fmt.Errorf("load guild settings: %w", err)
	}
	if _, ok := settings.ModLogChannelID(); !ok {
		metrics.AuditLogEventsTotal.WithLabelValues(string(ev.Action), "no_modlog").Inc()
		return nil, nil
	}

	if p.claims != nil {
		claimed, err := p.claims.Claim(ctx, ev.EntryID.String())
		if err != nil {
			logger.Warn().Err(err).Msg("auditlog: failed to claim entry, processing anyway")
		} else if !claimed {
			metrics.AuditLogEventsTotal.WithLabelValues(string(ev.Action), "duplicate").Inc()
			logger.Debug().Msg("auditlog: entry already handled")
			return nil, nil
		}
	}

	// Resolved outside the transaction to keep API calls out of the case lock.
	tag := p.targetTag(ctx, ev)

	var result Processed
	err = moderation.WithTx(ctx, p.tx, func(tx moderation.Tx) error {
		since := p.now().Add(-p.window)
		pending, err := p.cases.FindPending(ctx, tx, ev.GuildID, ev.TargetID, ev.Action.ReconcileTypes(), since)
		switch {
		case err == nil:
			pending.Pending = false
			if err := p.cases.ClearPending(ctx, tx, pending.GuildID, pending.CaseID); err != nil {
				return fmt.Errorf("clear pending flag: %w", err)
			}
			result = Processed{Case: *pending, Reconciled: true}
			return nil
		case !errors.Is(err, moderation.ErrCaseNotFound):
			return fmt.Errorf("find pending case: %w", err)
		}

		c, err := p.createNative(ctx, tx, ev, tag)
		if err != nil {
			return err
		}
		result = Processed{Case: c}
		return nil
	})
	if err != nil {
		tracing.EndWithError(span, err)
		metrics.AuditLogEventsTotal.WithLabelValues(string(ev.Action), "error").Inc()
		logger.Error().Err(err).Msg("auditlog: failed to process entry")
		return nil, err
	}

	outcome := "created"
	if result.Reconciled {
		outcome = "reconciled"
	}
	metrics.AuditLogEventsTotal.WithLabelValues(string(ev.Action), outcome).Inc()
	logger.Info().Int64("case_id", result.Case.CaseID).Str("outcome", outcome).Msg("auditlog: entry processed")
	return &result, nil
}

// createNative records an action taken outside the bot. A native unban also
// ends any temp ban of the user.
func (p *Processor) createNative(ctx context.Context, tx moderation.Tx, ev Event, targetTag string) (moderation.Case, error) {
	caseID, err := p.cases.NextCaseNumber(ctx, tx, ev.GuildID)
	if err != nil {
		return moderation.Case{}, fmt.Errorf("allocate case number: %w", err)
	}

	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = p.now()
	}
	c := moderation.Case{
		GuildID:    ev.GuildID,
		CaseID:     caseID,
		Action:     ev.Action,
		TargetID:   ev.TargetID,
		TargetTag:  targetTag,
		ExecutorID: ev.ExecutorID,
		Reason:     ev.Reason,
		CreatedAt:  createdAt,
	}
	if err := p.cases.Save(ctx, tx, &c); err != nil {
		return moderation.Case{}, fmt.Errorf("save case: %w", err)
	}

	if ev.Action == moderation.ActionBanRemove && p.tempBans != nil {
		if _, err := p.tempBans.Delete(ctx, tx, ev.GuildID, ev.TargetID); err != nil && !errors.Is(err, moderation.ErrTempBanNotFound) {
			return moderation.Case{}, fmt.Errorf("delete temp ban: %w", err)
		}
	}
	return c, nil
}

func (p *Processor) targetTag(ctx context.Context, ev Event) string {
	if p.directory == nil {
		return ""
	}
	u, err := p.directory.FetchUser(ctx, ev.TargetID)
	if err != nil {
		log.Debug().Err(err).Str("target_id", ev.TargetID.String()).Msg("auditlog: failed to fetch target user")
		return ""
	}
	return u.Tag
}
