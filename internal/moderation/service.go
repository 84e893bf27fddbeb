package moderation

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/rs/zerolog/log"
)

// ActionExecutor runs one action against one target. *Pipeline implements it.
type ActionExecutor interface {
	Execute(ctx context.Context, action Action, resolved ActionType, target Target) (*Case, error)
}

// TargetResult is the outcome of an action for a single target. Exactly one
// of Case and Err is set.
type TargetResult struct {
	Target Target
	Case   *Case
	Err    error
}

// Service is the entry point used by commands. It checks permissions,
// resolves timeouts against the member's current state and runs the pipeline
// once per target.
type Service struct {
	executor ActionExecutor
	timeouts *TimeoutDetector
	botID    snowflake.ID
}

// NewService creates a moderation service acting as the bot user botID.
func NewService(executor ActionExecutor, timeouts *TimeoutDetector, botID snowflake.ID) *Service {
	if timeouts == nil {
		timeouts = NewTimeoutDetector(nil)
	}
	return &Service{executor: executor, timeouts: timeouts, botID: botID}
}

// ExecuteAction applies action to every target in order. Targets are never
// processed concurrently so case numbers are handed out in target order and
// API calls stay within predictable rate limits. A failure for one target
// does not stop the others.
func (s *Service) ExecuteAction(ctx context.Context, action Action, targets []Target) []TargetResult {
	results := make([]TargetResult, 0, len(targets))
	for _, target := range targets {
		c, err := s.executeOne(ctx, action, target)
		if err != nil {
			log.Debug().Err(err).
				Str("guild_id", action.Base().GuildID.String()).
				Str("target_id", target.User.ID.String()).
				Str("action", string(action.Type())).
				Msg("moderation: action failed for target")
		}
		results = append(results, TargetResult{Target: target, Case: c, Err: err})
	}
	return results
}

func (s *Service) executeOne(ctx context.Context, action Action, target Target) (*Case, error) {
	if err := s.CheckPermissions(action, target); err != nil {
		return nil, err
	}

	resolved := s.timeouts.Resolve(action, target)
	if resolved == ActionTimeoutAdjust {
		if timeout, ok := action.(TimeoutAction); ok {
			action = AsTimeoutAdjust(timeout)
		}
	}

	c, err := s.executor.Execute(ctx, action, resolved, target)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", action.Type(), target.User.Tag, err)
	}
	return c, nil
}

// CheckPermissions reports whether the executor may apply action to target.
func (s *Service) CheckPermissions(action Action, target Target) error {
	base := action.Base()
	t := action.Type()

	if target.User.ID == base.Executor.ID {
		return ErrTargetIsSelf
	}
	if s.botID != 0 && target.User.ID == s.botID && t != ActionNote {
		return ErrTargetIsBot
	}

	if target.Member == nil {
		switch t {
		case ActionKick, ActionTimeout, ActionTimeoutAdjust, ActionTimeoutRemove:
			return ErrTargetNotMember
		}
		return nil
	}

	if !t.RequiresPlatformAction() {
		return nil
	}
	if target.Member.IsOwner {
		return ErrTargetIsOwner
	}
	if executor := base.ExecutorMember; executor != nil && !executor.IsOwner {
		if target.Member.RolePosition >= executor.RolePosition {
			return ErrHierarchy
		}
	}
	return nil
}
