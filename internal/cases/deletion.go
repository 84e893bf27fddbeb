package cases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"warden/internal/metrics"
	"warden/internal/moderation"

	"github.com/disgoorg/snowflake/v2"
	"github.com/rs/zerolog/log"
)

// bulkDeleteMaxAge is the platform's age limit for bulk message deletion.
const bulkDeleteMaxAge = 14 * 24 * time.Hour

// DeleteResult describes a finished deletion. MessageErrors lists mod-log
// messages that could not be removed; the cases are gone regardless.
type DeleteResult struct {
	Start, End      int64
	Deleted         []moderation.Case
	MessagesDeleted int
	MessageErrors   []error
}

// Deleter removes ranges of cases and their mod-log messages.
type Deleter struct {
	tx        moderation.Transactor
	cases     moderation.CaseRepository
	messenger moderation.ChannelMessenger
	settings  moderation.SettingsProvider
	now       func() time.Time
}

func NewDeleter(tx moderation.Transactor, cases moderation.CaseRepository, messenger moderation.ChannelMessenger, settings moderation.SettingsProvider, now func() time.Time) *Deleter {
	if now == nil {
		now = time.Now
	}
	return &Deleter{tx: tx, cases: cases, messenger: messenger, settings: settings, now: now}
}

// Delete removes the cases in rangeStr. Unless keepLogMessages is set, their
// mod-log messages are deleted afterwards on a best-effort basis.
func (d *Deleter) Delete(ctx context.Context, guildID snowflake.ID, rangeStr string, keepLogMessages bool) (*DeleteResult, error) {
	r, err := ParseRange(rangeStr)
	if err != nil {
		return nil, err
	}
	maxID, err := d.cases.MaxCaseID(ctx, guildID)
	if err != nil {
		return nil, fmt.Errorf("find latest case: %w", err)
	}
	start, end, err := r.Resolve(maxID)
	if err != nil {
		return nil, err
	}

	var removed []moderation.Case
	if err := moderation.WithTx(ctx, d.tx, func(tx moderation.Tx) error {
		removed, err = d.cases.DeleteRange(ctx, tx, guildID, start, end)
		return err
	}); err != nil {
		return nil, fmt.Errorf("delete cases: %w", err)
	}
	if len(removed) == 0 {
		return nil, fmt.Errorf("cases %d-%d: %w", start, end, moderation.ErrCaseNotFound)
	}
	metrics.CasesDeletedTotal.Add(float64(len(removed)))

	log.Info().
		Str("guild_id", guildID.String()).
		Int64("start", start).
		Int64("end", end).
		Int("deleted", len(removed)).
		Msg("cases: deleted range")

	result := &DeleteResult{Start: start, End: end, Deleted: removed}
	if keepLogMessages {
		return result, nil
	}

	settings, err := d.settings.GuildSettings(ctx, guildID)
	if err != nil {
		result.MessageErrors = append(result.MessageErrors, fmt.Errorf("load guild settings: %w", err))
		return result, nil
	}
	channelID, ok := settings.ModLogChannelID()
	if !ok {
		return result, nil
	}

	var messages []snowflake.ID
	for _, c := range removed {
		if c.MsgID != 0 {
			messages = append(messages, c.MsgID)
		}
	}
	result.MessagesDeleted, result.MessageErrors = d.deleteMessages(ctx, channelID, messages)
	return result, nil
}

// deleteMessages bulk-deletes what it can and deletes the rest one by one.
// Messages that are already gone count as deleted.
func (d *Deleter) deleteMessages(ctx context.Context, channelID snowflake.ID, ids []snowflake.ID) (int, []error) {
	var recent, old []snowflake.ID
	cutoff := d.now().Add(-bulkDeleteMaxAge)
	for _, id := range ids {
		if id.Time().After(cutoff) {
			recent = append(recent, id)
		} else {
			old = append(old, id)
		}
	}

	deleted := 0
	individual := old
	if len(recent) >= 2 {
		if err := d.messenger.BulkDeleteMessages(ctx, channelID, recent); err != nil {
			log.Warn().Err(err).Str("channel_id", channelID.String()).Msg("cases: bulk delete failed, deleting individually")
			individual = append(individual, recent...)
		} else {
			deleted += len(recent)
		}
	} else {
		individual = append(individual, recent...)
	}

	var errs []error
	for _, id := range individual {
		err := d.messenger.DeleteMessage(ctx, channelID, id)
		if err != nil && !errors.Is(err, moderation.ErrMessageNotFound) {
			errs = append(errs, fmt.Errorf("message %s: %w", id, err))
			continue
		}
		deleted++
	}
	return deleted, errs
}
