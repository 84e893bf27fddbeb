package moderation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"warden/internal/metrics"
	"warden/internal/tracing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ModLogPoster posts or edits the mod-log message of a case and returns the
// case with its message id attached.
type ModLogPoster interface {
	Post(ctx context.Context, c Case) (Case, error)
}

// PipelineDeps are the collaborators of a Pipeline.
type PipelineDeps struct {
	Transactor Transactor
	Cases      CaseRepository
	TempBans   TempBanRepository
	Enforcer   Enforcer
	DM         *DMService
	Policy     *DMPolicy
	ModLog     ModLogPoster
	Now        func() time.Time
}

// Pipeline executes one action against one target: validate, create the
// record, DM before, enact, DM after, post to the mod-log.
type Pipeline struct {
	tx       Transactor
	cases    CaseRepository
	tempBans TempBanRepository
	enforcer Enforcer
	dm       *DMService
	policy   *DMPolicy
	modLog   ModLogPoster
	now      func() time.Time
}

func NewPipeline(deps PipelineDeps) *Pipeline {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		tx:       deps.Transactor,
		cases:    deps.Cases,
		tempBans: deps.TempBans,
		enforcer: deps.Enforcer,
		dm:       deps.DM,
		policy:   deps.Policy,
		modLog:   deps.ModLog,
		now:      now,
	}
}

// record is the outcome of the record-creation stage. reached is the last
// stage the run got to, complete only once the case was written.
type record struct {
	reached ExecState
	exec    ExecComplete
	// removedTempBan is the temp ban an unban deleted, kept so a failed
	// enactment can restore it.
	removedTempBan *TempBan
}

// Execute runs the pipeline. resolved must equal action.Type(), except that a
// timeout may be executed as a timeout adjustment.
func (p *Pipeline) Execute(ctx context.Context, action Action, resolved ActionType, target Target) (*Case, error) {
	if !compatibleTypes(action.Type(), resolved) {
		panic(fmt.Sprintf("moderation: action %s executed as %s", action.Type(), resolved))
	}

	base := action.Base()
	logger := log.With().
		Str("guild_id", base.GuildID.String()).
		Str("target_id", target.User.ID.String()).
		Str("action", string(resolved)).
		Logger()

	if err := p.stage(ctx, "validate", resolved, func(context.Context) error {
		return ValidateAction(action)
	}); err != nil {
		metrics.ActionsTotal.WithLabelValues(string(resolved), "invalid").Inc()
		return nil, err
	}

	var rec record
	if err := p.stage(ctx, "create_record", resolved, func(ctx context.Context) error {
		var err error
		rec, err = p.createRecord(ctx, action, resolved, target)
		return err
	}); err != nil {
		metrics.ActionsTotal.WithLabelValues(string(resolved), "persist_failed").Inc()
		logger.Error().Err(err).Msg("pipeline: failed to create case")
		p.compensate(ctx, rec.reached, nil, logger)
		return nil, fmt.Errorf("create case: %w", err)
	}
	exec := rec.exec
	logger = logger.With().Int64("case_id", exec.CaseID()).Logger()

	exec = p.notify(ctx, exec, DMBefore, logger)

	if err := p.stage(ctx, "enact", resolved, func(ctx context.Context) error {
		return p.enact(ctx, exec)
	}); err != nil {
		metrics.ActionsTotal.WithLabelValues(string(resolved), "enact_failed").Inc()
		logger.Error().Err(err).Msg("pipeline: platform rejected action")
		p.compensate(ctx, rec.exec, rec.removedTempBan, logger)
		return nil, err
	}

	exec = p.notify(ctx, exec, DMAfter, logger)
	exec = p.postModLog(ctx, exec, logger)

	metrics.ActionsTotal.WithLabelValues(string(resolved), "ok").Inc()
	logger.Info().Msg("pipeline: action executed")

	c := exec.Case()
	return &c, nil
}

func compatibleTypes(declared, resolved ActionType) bool {
	if declared == resolved {
		return true
	}
	return declared == ActionTimeout && resolved == ActionTimeoutAdjust
}

func (p *Pipeline) stage(ctx context.Context, name string, t ActionType, fn func(context.Context) error) error {
	ctx, span := tracing.StageSpan(ctx, "pipeline."+name, string(t))
	defer span.End()
	err := fn(ctx)
	tracing.EndWithError(span, err)
	return err
}

// createRecord allocates the case number, writes the case and applies the
// temp-ban change in one transaction.
func (p *Pipeline) createRecord(ctx context.Context, action Action, resolved ActionType, target Target) (record, error) {
	base := action.Base()
	now := p.now()

	var rec record
	err := WithTx(ctx, p.tx, func(tx Tx) error {
		initial := NewExec(action, resolved, target, tx)
		rec.reached = initial

		caseID, err := p.cases.NextCaseNumber(ctx, initial.Tx(), base.GuildID)
		if err != nil {
			return fmt.Errorf("allocate case number: %w", err)
		}
		withID := initial.WithCaseID(caseID)
		rec.reached = withID

		c := Case{
			GuildID:    base.GuildID,
			CaseID:     withID.CaseID(),
			Action:     resolved,
			TargetID:   target.User.ID,
			TargetTag:  target.User.Tag,
			ExecutorID: base.Executor.ID,
			Reason:     base.Reason.String(),
			Pending:    resolved.RequiresPlatformAction(),
			CreatedAt:  now,
		}
		if base.Attachment != "" {
			c.Attachments = []string{base.Attachment}
		}
		if err := p.cases.Save(ctx, withID.Tx(), &c); err != nil {
			return fmt.Errorf("save case: %w", err)
		}

		removed, err := p.applyTempBan(ctx, withID, now)
		if err != nil {
			return err
		}

		complete := withID.WithCase(c)
		rec = record{reached: complete, exec: complete, removedTempBan: removed}
		return nil
	})
	return rec, err
}

func (p *Pipeline) applyTempBan(ctx context.Context, exec ExecWithCaseID, now time.Time) (*TempBan, error) {
	guildID := exec.Action().Base().GuildID
	userID := exec.Target().User.ID

	switch exec.ActionType() {
	case ActionTempBan:
		d, _ := ActionDuration(exec.Action())
		tb := TempBan{
			GuildID:   guildID,
			UserID:    userID,
			ExpiresAt: now.Add(d.Value()),
			CreatedAt: now,
		}
		if err := p.tempBans.Save(ctx, exec.Tx(), tb, now); err != nil {
			return nil, fmt.Errorf("save temp ban: %w", err)
		}
	case ActionBanRemove:
		removed, err := p.tempBans.Delete(ctx, exec.Tx(), guildID, userID)
		if errors.Is(err, ErrTempBanNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("delete temp ban: %w", err)
		}
		return removed, nil
	}
	return nil, nil
}

// ExpiresAt returns when a timed action created at createdAt runs out.
func ExpiresAt(action Action, createdAt time.Time) *time.Time {
	d, ok := ActionDuration(action)
	if !ok {
		return nil
	}
	t := createdAt.Add(d.Value())
	return &t
}

func (p *Pipeline) notify(ctx context.Context, exec ExecComplete, timing DMTiming, logger zerolog.Logger) ExecComplete {
	t := exec.ActionType()
	if t.DMTiming() != timing || p.dm == nil || p.policy == nil {
		return exec
	}

	c := exec.Case()
	if !p.policy.ShouldSendDM(ctx, timing, exec.Action(), exec.Target(), c.GuildID) {
		return exec
	}

	ctx, span := tracing.StageSpan(ctx, "pipeline.dm_"+string(timing), string(t))
	defer span.End()

	result := p.dm.Send(ctx, c.GuildID, t, exec.Target().User, c.Reason, ExpiresAt(exec.Action(), c.CreatedAt))
	c.DM = &result
	metrics.DMTotal.WithLabelValues(string(t), dmOutcome(result)).Inc()

	// DM delivery is slow and external, so its result is written in its own
	// small transaction after the case transaction committed. Reconciliation
	// may have cleared the pending flag and posted the mod-log meanwhile, so
	// only the dm column is written and the stored case is read back.
	var stored *Case
	if err := WithTx(ctx, p.tx, func(tx Tx) error {
		if err := p.cases.SetDMResult(ctx, tx, c.GuildID, c.CaseID, result); err != nil {
			return err
		}
		var err error
		stored, err = p.cases.Get(ctx, tx, c.GuildID, c.CaseID)
		return err
	}); err != nil {
		logger.Error().Err(err).Msg("pipeline: failed to store dm result")
		tracing.EndWithError(span, err)
		return exec.WithUpdatedCase(c)
	}

	if stored.MsgID != 0 && p.modLog != nil && !t.ShouldPostToModLog() {
		if _, err := p.modLog.Post(ctx, *stored); err != nil {
			logger.Warn().Err(err).Msg("pipeline: failed to refresh mod-log entry with dm result")
		}
	}
	return exec.WithUpdatedCase(*stored)
}

func dmOutcome(r DMResult) string {
	switch {
	case r.Sent():
		return "sent"
	case r.Error == dmBlockedMessage:
		return "blocked"
	}
	return "error"
}

func (p *Pipeline) enact(ctx context.Context, exec ExecComplete) error {
	t := exec.ActionType()
	if !t.RequiresPlatformAction() {
		return nil
	}

	c := exec.Case()
	reason := c.Reason
	var err error
	switch t {
	case ActionBan, ActionTempBan:
		err = p.enforcer.Ban(ctx, c.GuildID, c.TargetID, reason, deleteMessageDays(exec.Action()))
	case ActionBanRemove:
		err = p.enforcer.Unban(ctx, c.GuildID, c.TargetID, reason)
	case ActionKick:
		err = p.enforcer.Kick(ctx, c.GuildID, c.TargetID, reason)
	case ActionTimeout, ActionTimeoutAdjust:
		err = p.enforcer.Timeout(ctx, c.GuildID, c.TargetID, ExpiresAt(exec.Action(), p.now()), reason)
	case ActionTimeoutRemove:
		err = p.enforcer.Timeout(ctx, c.GuildID, c.TargetID, nil, reason)
	}
	if err != nil {
		return &EnactError{Action: t, Err: err}
	}
	return nil
}

func deleteMessageDays(a Action) int {
	switch v := a.(type) {
	case BanAction:
		return v.DeleteMessageDays
	case TempBanAction:
		return v.DeleteMessageDays
	}
	return 0
}

// compensate undoes the record-creation stage after a failed run. A run
// that never got a committed case has nothing to undo: its transaction rolled
// back. Otherwise the case is deleted and the temp-ban change reverted; the
// case number stays consumed.
func (p *Pipeline) compensate(ctx context.Context, state ExecState, removedTempBan *TempBan, logger zerolog.Logger) {
	if state == nil || !state.HasModerationCase() {
		logger.Debug().Bool("has_case_id", state != nil && state.HasCaseID()).Msg("pipeline: record transaction rolled back, nothing to undo")
		return
	}
	c := state.(ExecComplete).Case()
	now := p.now()

	err := WithTx(ctx, p.tx, func(tx Tx) error {
		if err := p.cases.Delete(ctx, tx, c.GuildID, c.CaseID); err != nil && !errors.Is(err, ErrCaseNotFound) {
			return fmt.Errorf("delete case: %w", err)
		}

		switch state.ActionType() {
		case ActionTempBan:
			if _, err := p.tempBans.Delete(ctx, tx, c.GuildID, c.TargetID); err != nil && !errors.Is(err, ErrTempBanNotFound) {
				return fmt.Errorf("delete temp ban: %w", err)
			}
		case ActionBanRemove:
			if tb := removedTempBan; tb != nil && tb.ExpiresAt.After(now) {
				if err := p.tempBans.Save(ctx, tx, *tb, now); err != nil {
					return fmt.Errorf("restore temp ban: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		logger.Error().Err(err).Msg("pipeline: failed to roll back case after platform failure")
		return
	}
	logger.Info().Msg("pipeline: case removed after platform failure")
}

func (p *Pipeline) postModLog(ctx context.Context, exec ExecComplete, logger zerolog.Logger) ExecComplete {
	if !exec.ActionType().ShouldPostToModLog() || p.modLog == nil {
		return exec
	}

	ctx, span := tracing.StageSpan(ctx, "pipeline.modlog", string(exec.ActionType()))
	defer span.End()

	updated, err := p.modLog.Post(ctx, exec.Case())
	if err != nil {
		// The action already happened; a missing log entry is not fatal.
		tracing.EndWithError(span, err)
		logger.Warn().Err(err).Msg("pipeline: failed to post mod-log entry")
		return exec
	}
	return exec.WithUpdatedCase(updated)
}
