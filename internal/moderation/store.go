package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Tx is an open unit of work on the case store. Repositories take it on
// every call so several writes can commit or roll back together; a nil Tx
// runs the call on its own.
type Tx interface {
	Commit() error
	Rollback() error
}

// Transactor opens transactions understood by the repositories of the same
// store.
type Transactor interface {
	BeginTx(ctx context.Context) (Tx, error)
}

// WithTx runs fn inside a transaction and commits it when fn succeeds.
func WithTx(ctx context.Context, t Transactor, fn func(tx Tx) error) error {
	tx, err := t.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// CaseRepository persists moderation cases. Implementations must be safe for
// concurrent use. Expected failures are reported as ErrCaseNotFound rather
// than generic errors.
type CaseRepository interface {
	// NextCaseNumber locks the guild's counter for the lifetime of tx and
	// returns the next unused case number. Numbers are never reused.
	NextCaseNumber(ctx context.Context, tx Tx, guildID snowflake.ID) (int64, error)

	Save(ctx context.Context, tx Tx, c *Case) error

	// Column-scoped writes. A case is written by the pipeline and by
	// reconciliation at the same time, so no writer replaces the whole row.
	SetDMResult(ctx context.Context, tx Tx, guildID snowflake.ID, caseID int64, dm DMResult) error
	SetMessageID(ctx context.Context, tx Tx, guildID snowflake.ID, caseID int64, msgID snowflake.ID) error
	ClearPending(ctx context.Context, tx Tx, guildID snowflake.ID, caseID int64) error

	Get(ctx context.Context, tx Tx, guildID snowflake.ID, caseID int64) (*Case, error)
	Delete(ctx context.Context, tx Tx, guildID snowflake.ID, caseID int64) error
	Exists(ctx context.Context, tx Tx, guildID snowflake.ID, caseID int64) (bool, error)

	// DeleteRange removes cases in [start, end] and returns what was removed.
	DeleteRange(ctx context.Context, tx Tx, guildID snowflake.ID, start, end int64) ([]Case, error)
	FindByRange(ctx context.Context, tx Tx, guildID snowflake.ID, start, end int64) ([]Case, error)

	// UpdateReasonBulk sets the reason of cases in [start, end]. With
	// onlyEmpty set, cases that already have a reason are left alone.
	UpdateReasonBulk(ctx context.Context, tx Tx, guildID snowflake.ID, start, end int64, reason string, onlyEmpty bool) ([]Case, error)

	SearchByIDPrefix(ctx context.Context, guildID snowflake.ID, prefix string, limit int) ([]Case, error)
	FindRecent(ctx context.Context, guildID snowflake.ID, limit int) ([]Case, error)
	MaxCaseID(ctx context.Context, guildID snowflake.ID) (int64, error)

	// FindPending returns the oldest pending case for the user with one of
	// the given action types created at or after since, or ErrCaseNotFound.
	FindPending(ctx context.Context, tx Tx, guildID, userID snowflake.ID, types []ActionType, since time.Time) (*Case, error)
}

// TempBanRepository persists scheduled unbans, unique per (guild, user).
type TempBanRepository interface {
	// Save creates or replaces the temp ban. The expiry must be after now.
	Save(ctx context.Context, tx Tx, tb TempBan, now time.Time) error
	// Delete removes and returns the temp ban, or ErrTempBanNotFound.
	Delete(ctx context.Context, tx Tx, guildID, userID snowflake.ID) (*TempBan, error)
	Get(ctx context.Context, guildID, userID snowflake.ID) (*TempBan, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]TempBan, error)
	Count(ctx context.Context) (int, error)
}

// SettingsProvider returns the guild configuration the core reads.
type SettingsProvider interface {
	GuildSettings(ctx context.Context, guildID snowflake.ID) (GuildSettings, error)
}
