package auditlog

import (
	"context"
	"fmt"

	"warden/internal/metrics"
	"warden/internal/moderation"
	"warden/internal/tracing"

	"github.com/rs/zerolog/log"
)

// ModLogStep posts the mod-log entry of a processed event.
type ModLogStep struct {
	poster moderation.ModLogPoster
}

func NewModLogStep(poster moderation.ModLogPoster) *ModLogStep {
	return &ModLogStep{poster: poster}
}

// Post sends or edits the message and returns the case with its message id.
func (s *ModLogStep) Post(ctx context.Context, c moderation.Case) (moderation.Case, error) {
	ctx, span := tracing.StageSpan(ctx, "auditlog.modlog", string(c.Action))
	defer span.End()

	updated, err := s.poster.Post(ctx, c)
	if err != nil {
		tracing.EndWithError(span, err)
		return c, err
	}
	return updated, nil
}

// Orchestrator runs processing, the native timeout DM and mod-log posting
// for each audit log event.
type Orchestrator struct {
	processor *Processor
	nativeDM  *NativeTimeoutDM
	modLog    *ModLogStep
	tx        moderation.Transactor
	cases     moderation.CaseRepository
}

func NewOrchestrator(processor *Processor, nativeDM *NativeTimeoutDM, modLog *ModLogStep, tx moderation.Transactor, cases moderation.CaseRepository) *Orchestrator {
	return &Orchestrator{processor: processor, nativeDM: nativeDM, modLog: modLog, tx: tx, cases: cases}
}

// Handle processes one event. A failed DM is logged and does not keep the
// entry out of the mod-log.
func (o *Orchestrator) Handle(ctx context.Context, ev Event) error {
	processed, err := o.processor.Process(ctx, ev)
	if err != nil {
		return fmt.Errorf("process audit log entry: %w", err)
	}
	if processed == nil {
		return nil
	}

	logger := log.With().
		Str("guild_id", ev.GuildID.String()).
		Str("target_id", ev.TargetID.String()).
		Str("action", string(ev.Action)).
		Int64("case_id", processed.Case.CaseID).
		Logger()

	c := processed.Case
	if o.nativeDM != nil {
		result, err := o.nativeDM.Handle(ctx, ev, *processed)
		switch {
		case err != nil:
			logger.Warn().Err(err).Msg("auditlog: native timeout dm failed")
		case result != nil:
			c.DM = result
			if err := moderation.WithTx(ctx, o.tx, func(tx moderation.Tx) error {
				return o.cases.SetDMResult(ctx, tx, c.GuildID, c.CaseID, *result)
			}); err != nil {
				logger.Error().Err(err).Msg("auditlog: failed to store dm result")
			}
		}
	}

	if _, err := o.modLog.Post(ctx, c); err != nil {
		metrics.AuditLogEventsTotal.WithLabelValues(string(ev.Action), "modlog_failed").Inc()
		return fmt.Errorf("post mod-log entry: %w", err)
	}
	return nil
}
