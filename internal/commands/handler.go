package commands

import (
	"context"
	"time"

	"warden/internal/cases"
	"warden/internal/metrics"
	"warden/internal/moderation"
	"warden/internal/tracing"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/rs/zerolog/log"
)

// Moderator executes an action against several targets. *moderation.Service
// implements it.
type Moderator interface {
	ExecuteAction(ctx context.Context, action moderation.Action, targets []moderation.Target) []moderation.TargetResult
}

// Resolver looks up targets and the invoking member. *discord.Client
// implements it.
type Resolver interface {
	ResolveTarget(ctx context.Context, guildID, userID snowflake.ID) (moderation.Target, error)
	ResolveMember(ctx context.Context, guildID snowflake.ID, m *discordgo.Member) *moderation.Member
}

type CaseDeleter interface {
	Delete(ctx context.Context, guildID snowflake.ID, rangeStr string, keepLogMessages bool) (*cases.DeleteResult, error)
}

type ReasonSetter interface {
	Update(ctx context.Context, req cases.ReasonRequest) (*cases.ReasonResult, error)
}

type Suggester interface {
	Suggest(ctx context.Context, guildID snowflake.ID, partial string) ([]cases.Suggestion, error)
}

// Deps are the collaborators of a Handler.
type Deps struct {
	Moderator Moderator
	Resolver  Resolver
	Deleter   CaseDeleter
	Reasons   ReasonSetter
	Suggester Suggester
}

// Reply is the message a command answers with.
type Reply struct {
	Content    string
	Components []discordgo.MessageComponent
}

// Handler answers the bot's interactions.
type Handler struct {
	moderator Moderator
	resolver  Resolver
	deleter   CaseDeleter
	reasons   ReasonSetter
	suggester Suggester
	pending   *confirmations
}

func NewHandler(deps Deps) *Handler {
	return &Handler{
		moderator: deps.Moderator,
		resolver:  deps.Resolver,
		deleter:   deps.Deleter,
		reasons:   deps.Reasons,
		suggester: deps.Suggester,
		pending:   newConfirmations(5 * time.Minute),
	}
}

// HandleInteraction implements discord.InteractionHandler.
func (h *Handler) HandleInteraction(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		h.handleCommand(ctx, s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		choices := h.autocomplete(ctx, i)
		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionApplicationCommandAutocompleteResult,
			Data: &discordgo.InteractionResponseData{Choices: choices},
		}, discordgo.WithContext(ctx))
		if err != nil {
			log.Debug().Err(err).Msg("commands: failed to send autocomplete choices")
		}
	case discordgo.InteractionMessageComponent:
		reply := h.runComponent(ctx, i)
		components := reply.Components
		if components == nil {
			components = []discordgo.MessageComponent{}
		}
		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseUpdateMessage,
			Data: &discordgo.InteractionResponseData{Content: reply.Content, Components: components},
		}, discordgo.WithContext(ctx))
		if err != nil {
			log.Warn().Err(err).Msg("commands: failed to update confirmation message")
		}
	}
}

func (h *Handler) handleCommand(ctx context.Context, s *discordgo.Session, i *discordgo.InteractionCreate) {
	name := i.ApplicationCommandData().Name
	ctx, span := tracing.CommandSpan(ctx, name, i.GuildID)
	defer span.End()

	logger := log.With().Str("command", name).Str("guild_id", i.GuildID).Logger()

	// Actions take several API round trips, longer than the initial
	// response window allows.
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	}, discordgo.WithContext(ctx))
	if err != nil {
		metrics.CommandsTotal.WithLabelValues(name, "respond_failed").Inc()
		tracing.EndWithError(span, err)
		logger.Warn().Err(err).Msg("commands: failed to defer response")
		return
	}

	reply, status := h.runCommand(ctx, i)
	metrics.CommandsTotal.WithLabelValues(name, status).Inc()

	edit := &discordgo.WebhookEdit{Content: &reply.Content}
	if reply.Components != nil {
		edit.Components = &reply.Components
	}
	if _, err := s.InteractionResponseEdit(i.Interaction, edit, discordgo.WithContext(ctx)); err != nil {
		tracing.EndWithError(span, err)
		logger.Warn().Err(err).Msg("commands: failed to send response")
	}
}

// runCommand executes a command and returns its reply and metrics status.
func (h *Handler) runCommand(ctx context.Context, i *discordgo.InteractionCreate) (Reply, string) {
	data := i.ApplicationCommandData()
	o := optionMap(data.Options)

	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil || i.Member == nil || i.Member.User == nil {
		return Reply{Content: "This command only works in servers."}, "invalid"
	}
	executor := h.resolver.ResolveMember(ctx, guildID, i.Member)

	switch {
	case isActionCommand(data.Name):
		base := moderation.ActionBase{
			GuildID:        guildID,
			Executor:       executor.User,
			ExecutorMember: executor,
			Reason:         reasonFrom(o),
			DMChoice:       dmChoiceFrom(o),
			Attachment:     attachmentURL(data, o),
		}
		return h.runAction(ctx, data.Name, base, o)
	case data.Name == CmdReason:
		return h.runReason(ctx, i.ID, executor.User.ID, guildID, o)
	case data.Name == CmdUncase:
		return h.runUncase(ctx, guildID, o)
	}
	return Reply{Content: "Unknown command."}, "invalid"
}

func (h *Handler) runAction(ctx context.Context, name string, base moderation.ActionBase, o options) (Reply, string) {
	action, err := buildAction(name, base, o)
	if err != nil {
		return Reply{Content: userMessage(err)}, "invalid"
	}
	if err := moderation.ValidateAction(action); err != nil {
		return Reply{Content: userMessage(err)}, "invalid"
	}

	ids := parseUserIDs(o.string(optUsers))
	if len(ids) == 0 {
		return Reply{Content: "No users given."}, "invalid"
	}

	results := make([]moderation.TargetResult, len(ids))
	var targets []moderation.Target
	var slots []int
	for n, id := range ids {
		target, err := h.resolver.ResolveTarget(ctx, base.GuildID, id)
		if err != nil {
			results[n] = moderation.TargetResult{Target: moderation.Target{User: moderation.User{ID: id, Tag: id.String()}}, Err: err}
			continue
		}
		targets = append(targets, target)
		slots = append(slots, n)
	}

	if len(targets) > 0 {
		for n, r := range h.moderator.ExecuteAction(ctx, action, targets) {
			results[slots[n]] = r
		}
	}

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	status := "ok"
	switch {
	case failed == len(results):
		status = "error"
	case failed > 0:
		status = "partial"
	}
	return Reply{Content: actionSummary(results)}, status
}

func (h *Handler) autocomplete(ctx context.Context, i *discordgo.InteractionCreate) []*discordgo.ApplicationCommandOptionChoice {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return nil
	}
	o := optionMap(i.ApplicationCommandData().Options)
	focused := o.focused()
	if focused == nil || focused.Name != optCase {
		return nil
	}

	suggestions, err := h.suggester.Suggest(ctx, guildID, o.string(optCase))
	if err != nil {
		log.Warn().Err(err).Str("guild_id", i.GuildID).Msg("commands: case autocomplete failed")
		return nil
	}
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(suggestions))
	for _, s := range suggestions {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: s.Name, Value: s.Value})
	}
	return choices
}
