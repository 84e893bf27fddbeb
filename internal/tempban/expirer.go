// Package tempban lifts temporary bans once they expire.
package tempban

import (
	"context"
	"errors"
	"fmt"
	"time"

	"warden/internal/metrics"
	"warden/internal/moderation"

	"github.com/rs/zerolog/log"
)

// ExpiredReason is the audit log reason of an automatic unban.
const ExpiredReason = "Temporary ban expired"

const defaultBatchSize = 100

// Expirer unbans users whose temp ban passed its expiry and removes the
// record. The unban shows up in the audit log and is reconciled into a
// regular case there.
type Expirer struct {
	tx        moderation.Transactor
	tempBans  moderation.TempBanRepository
	enforcer  moderation.Enforcer
	interval  time.Duration
	batchSize int
	now       func() time.Time
}

func NewExpirer(tx moderation.Transactor, tempBans moderation.TempBanRepository, enforcer moderation.Enforcer, interval time.Duration) *Expirer {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Expirer{
		tx:        tx,
		tempBans:  tempBans,
		enforcer:  enforcer,
		interval:  interval,
		batchSize: defaultBatchSize,
		now:       time.Now,
	}
}

// RunOnce lifts every expired temp ban and returns how many were removed.
// A ban the platform no longer knows about is removed too; other failures
// leave the record for the next run.
func (e *Expirer) RunOnce(ctx context.Context) (int, error) {
	expired, err := e.tempBans.ListExpired(ctx, e.now(), e.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list expired temp bans: %w", err)
	}

	removed := 0
	for _, tb := range expired {
		logger := log.With().
			Str("guild_id", tb.GuildID.String()).
			Str("target_id", tb.UserID.String()).
			Logger()

		status := "unbanned"
		err := e.enforcer.Unban(ctx, tb.GuildID, tb.UserID, ExpiredReason)
		switch {
		case errors.Is(err, moderation.ErrBanNotFound):
			status = "already_unbanned"
		case err != nil:
			metrics.TempBansExpiredTotal.WithLabelValues("error").Inc()
			logger.Warn().Err(err).Msg("tempban: failed to lift expired ban")
			continue
		}

		if err := moderation.WithTx(ctx, e.tx, func(tx moderation.Tx) error {
			_, err := e.tempBans.Delete(ctx, tx, tb.GuildID, tb.UserID)
			if errors.Is(err, moderation.ErrTempBanNotFound) {
				return nil
			}
			return err
		}); err != nil {
			metrics.TempBansExpiredTotal.WithLabelValues("error").Inc()
			logger.Error().Err(err).Msg("tempban: failed to delete expired temp ban")
			continue
		}

		metrics.TempBansExpiredTotal.WithLabelValues(status).Inc()
		logger.Info().Str("status", status).Msg("tempban: temp ban expired")
		removed++
	}
	return removed, nil
}

// Start runs RunOnce every interval until ctx is cancelled. It blocks.
func (e *Expirer) Start(ctx context.Context) error {
	log.Info().Dur("interval", e.interval).Msg("Temp ban expirer started")

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		if _, err := e.RunOnce(ctx); err != nil {
			log.Error().Err(err).Msg("tempban: expiry run failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// ActiveCount reports the number of stored temp bans for the metrics
// collector, or -1 when the store is unavailable.
func (e *Expirer) ActiveCount(ctx context.Context) int {
	n, err := e.tempBans.Count(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("tempban: failed to count temp bans")
		return -1
	}
	return n
}
