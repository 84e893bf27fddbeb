package commands

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"warden/internal/cases"
	"warden/internal/metrics"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
)

const confirmPrefix = "reason_confirm"

// Confirmation button modes.
const (
	modeOverwrite = "overwrite"
	modeOnlyEmpty = "only_empty"
	modeCancel    = "cancel"
)

type pendingReason struct {
	req       cases.ReasonRequest
	moderator snowflake.ID
	expires   time.Time
}

// confirmations holds reason updates waiting for the moderator to pick an
// overwrite mode, keyed by the interaction that asked.
type confirmations struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]pendingReason
}

func newConfirmations(ttl time.Duration) *confirmations {
	return &confirmations{ttl: ttl, now: time.Now, items: map[string]pendingReason{}}
}

func (c *confirmations) put(key string, moderator snowflake.ID, req cases.ReasonRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for k, p := range c.items {
		if now.After(p.expires) {
			delete(c.items, k)
		}
	}
	c.items[key] = pendingReason{req: req, moderator: moderator, expires: now.Add(c.ttl)}
}

func (c *confirmations) take(key string) (pendingReason, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.items[key]
	if !ok || c.now().After(p.expires) {
		delete(c.items, key)
		return pendingReason{}, false
	}
	delete(c.items, key)
	return p, true
}

func confirmButtons(key string) []discordgo.MessageComponent {
	id := func(mode string) string { return confirmPrefix + ":" + key + ":" + mode }
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Overwrite all", Style: discordgo.DangerButton, CustomID: id(modeOverwrite)},
			discordgo.Button{Label: "Only cases without a reason", Style: discordgo.PrimaryButton, CustomID: id(modeOnlyEmpty)},
			discordgo.Button{Label: "Cancel", Style: discordgo.SecondaryButton, CustomID: id(modeCancel)},
		}},
	}
}

func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("#%d", id)
	}
	return strings.Join(parts, ", ")
}

func (h *Handler) runReason(ctx context.Context, key string, moderator, guildID snowflake.ID, o options) (Reply, string) {
	req := cases.ReasonRequest{
		GuildID: guildID,
		Range:   o.string(optCase),
		Reason:  o.string(optReason),
		Mode:    cases.ReasonCheck,
	}
	result, err := h.reasons.Update(ctx, req)
	if err != nil {
		return Reply{Content: userMessage(err)}, "error"
	}
	if result.NeedsConfirmation {
		h.pending.put(key, moderator, req)
		return Reply{
			Content:    fmt.Sprintf("Cases %s already have a reason. What should happen to them?", formatIDs(result.WithReason)),
			Components: confirmButtons(key),
		}, "confirm"
	}
	return Reply{Content: reasonSummary(result)}, "ok"
}

func reasonSummary(r *cases.ReasonResult) string {
	var b strings.Builder
	switch len(r.Updated) {
	case 0:
		b.WriteString("No cases needed a new reason.")
	case 1:
		fmt.Fprintf(&b, "Updated the reason of case #%d.", r.Updated[0].CaseID)
	default:
		fmt.Fprintf(&b, "Updated the reason of %d cases (#%d-#%d).", len(r.Updated), r.Start, r.End)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "\n⚠️ Case #%d: %v", e.CaseID, e.Err)
	}
	return b.String()
}

func (h *Handler) runUncase(ctx context.Context, guildID snowflake.ID, o options) (Reply, string) {
	result, err := h.deleter.Delete(ctx, guildID, o.string(optCase), o.bool(optKeepLogMessage))
	if err != nil {
		return Reply{Content: userMessage(err)}, "error"
	}

	var b strings.Builder
	if len(result.Deleted) == 1 {
		fmt.Fprintf(&b, "Deleted case #%d.", result.Deleted[0].CaseID)
	} else {
		fmt.Fprintf(&b, "Deleted %d cases (#%d-#%d).", len(result.Deleted), result.Start, result.End)
	}
	if n := len(result.MessageErrors); n > 0 {
		fmt.Fprintf(&b, "\n⚠️ %d mod-log message(s) could not be deleted.", n)
	}
	return Reply{Content: b.String()}, "ok"
}

// runComponent handles the reason confirmation buttons.
func (h *Handler) runComponent(ctx context.Context, i *discordgo.InteractionCreate) Reply {
	parts := strings.Split(i.MessageComponentData().CustomID, ":")
	if len(parts) != 3 || parts[0] != confirmPrefix {
		return Reply{Content: "Unknown button."}
	}
	key, mode := parts[1], parts[2]

	pending, ok := h.pending.take(key)
	if !ok {
		return Reply{Content: "This confirmation expired, run the command again."}
	}
	if i.Member == nil || i.Member.User == nil || i.Member.User.ID != pending.moderator.String() {
		h.pending.put(key, pending.moderator, pending.req)
		return Reply{Content: "Only the moderator who ran the command can confirm it.", Components: confirmButtons(key)}
	}

	switch mode {
	case modeOverwrite:
		pending.req.Mode = cases.ReasonOverwrite
	case modeOnlyEmpty:
		pending.req.Mode = cases.ReasonOnlyEmpty
	default:
		metrics.CommandsTotal.WithLabelValues(CmdReason, "cancelled").Inc()
		return Reply{Content: "Cancelled, no reasons were changed."}
	}

	result, err := h.reasons.Update(ctx, pending.req)
	if err != nil {
		metrics.CommandsTotal.WithLabelValues(CmdReason, "error").Inc()
		return Reply{Content: userMessage(err)}
	}
	metrics.CommandsTotal.WithLabelValues(CmdReason, "ok").Inc()
	return Reply{Content: reasonSummary(result)}
}
