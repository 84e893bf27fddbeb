package cases

import (
	"context"
	"errors"
	"fmt"

	"warden/internal/metrics"
	"warden/internal/moderation"

	"github.com/disgoorg/snowflake/v2"
	"github.com/rs/zerolog/log"
)

// Per-case failures while refreshing mod-log messages after a reason update.
var (
	ErrUserUnfetchable    = errors.New("the user of this case could not be fetched")
	ErrMessageMissing     = errors.New("the mod-log message no longer exists")
	ErrMessageUnfetchable = errors.New("the mod-log message could not be edited")
)

// CaseError is a failure that affected a single case of a batch.
type CaseError struct {
	CaseID int64
	Err    error
}

func (e *CaseError) Error() string { return fmt.Sprintf("case #%d: %v", e.CaseID, e.Err) }
func (e *CaseError) Unwrap() error { return e.Err }

// ReasonMode controls what happens to cases that already have a reason.
type ReasonMode int

const (
	// ReasonCheck stops and asks for confirmation if any case has a reason.
	ReasonCheck ReasonMode = iota
	// ReasonOverwrite is the confirmed form of ReasonCheck.
	ReasonOverwrite
	// ReasonOnlyEmpty leaves cases that have a reason untouched.
	ReasonOnlyEmpty
)

type ReasonRequest struct {
	GuildID snowflake.ID
	Range   string
	Reason  string
	Mode    ReasonMode
}

// ReasonResult describes an update. With NeedsConfirmation set nothing was
// written and WithReason lists the cases that would be overwritten.
type ReasonResult struct {
	Start, End        int64
	NeedsConfirmation bool
	WithReason        []int64
	Updated           []moderation.Case
	Errors            []CaseError
}

// MessageEditor re-renders the mod-log message of a case.
type MessageEditor interface {
	Edit(ctx context.Context, c moderation.Case) error
}

// ReasonUpdater changes the reason of a range of cases.
type ReasonUpdater struct {
	tx        moderation.Transactor
	cases     moderation.CaseRepository
	directory moderation.Directory
	editor    MessageEditor
}

func NewReasonUpdater(tx moderation.Transactor, cases moderation.CaseRepository, directory moderation.Directory, editor MessageEditor) *ReasonUpdater {
	return &ReasonUpdater{tx: tx, cases: cases, directory: directory, editor: editor}
}

// Update writes the new reason and then refreshes each case's mod-log
// message. Refresh failures are collected per case and never undo the update.
func (u *ReasonUpdater) Update(ctx context.Context, req ReasonRequest) (*ReasonResult, error) {
	reason := moderation.NewReason(req.Reason)
	if err := reason.Validate(); err != nil {
		return nil, err
	}

	r, err := ParseRange(req.Range)
	if err != nil {
		return nil, err
	}
	maxID, err := u.cases.MaxCaseID(ctx, req.GuildID)
	if err != nil {
		return nil, fmt.Errorf("find latest case: %w", err)
	}
	start, end, err := r.Resolve(maxID)
	if err != nil {
		return nil, err
	}

	existing, err := u.cases.FindByRange(ctx, nil, req.GuildID, start, end)
	if err != nil {
		return nil, fmt.Errorf("load cases: %w", err)
	}
	if len(existing) == 0 {
		return nil, fmt.Errorf("cases %d-%d: %w", start, end, moderation.ErrCaseNotFound)
	}

	result := &ReasonResult{Start: start, End: end}
	for _, c := range existing {
		if c.HasReason() {
			result.WithReason = append(result.WithReason, c.CaseID)
		}
	}
	if req.Mode == ReasonCheck && len(result.WithReason) > 0 {
		result.NeedsConfirmation = true
		return result, nil
	}

	if err := moderation.WithTx(ctx, u.tx, func(tx moderation.Tx) error {
		var err error
		result.Updated, err = u.cases.UpdateReasonBulk(ctx, tx, req.GuildID, start, end, reason.String(), req.Mode == ReasonOnlyEmpty)
		return err
	}); err != nil {
		return nil, fmt.Errorf("update reasons: %w", err)
	}
	metrics.CaseReasonsUpdatedTotal.Add(float64(len(result.Updated)))

	for _, c := range result.Updated {
		if err := u.refresh(ctx, c); err != nil {
			result.Errors = append(result.Errors, CaseError{CaseID: c.CaseID, Err: err})
		}
	}

	log.Info().
		Str("guild_id", req.GuildID.String()).
		Int64("start", start).
		Int64("end", end).
		Int("updated", len(result.Updated)).
		Int("errors", len(result.Errors)).
		Msg("cases: reasons updated")
	return result, nil
}

func (u *ReasonUpdater) refresh(ctx context.Context, c moderation.Case) error {
	if c.MsgID == 0 {
		return nil
	}

	user, err := u.directory.FetchUser(ctx, c.TargetID)
	if err != nil {
		log.Debug().Err(err).Int64("case_id", c.CaseID).Msg("cases: failed to fetch user")
		return ErrUserUnfetchable
	}
	c.TargetTag = user.Tag

	if err := u.editor.Edit(ctx, c); err != nil {
		if errors.Is(err, moderation.ErrMessageNotFound) {
			return ErrMessageMissing
		}
		log.Debug().Err(err).Int64("case_id", c.CaseID).Msg("cases: failed to edit mod-log message")
		return ErrMessageUnfetchable
	}
	return nil
}
