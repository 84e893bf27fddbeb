package moderation

import (
	"fmt"

	"github.com/disgoorg/snowflake/v2"
)

// ActionType identifies the kind of a moderation action. The string value is
// what gets persisted in the case table.
type ActionType string

const (
	ActionBan           ActionType = "ban"
	ActionTempBan       ActionType = "tempban"
	ActionKick          ActionType = "kick"
	ActionTimeout       ActionType = "timeout"
	ActionTimeoutAdjust ActionType = "timeout_adjust"
	ActionTimeoutRemove ActionType = "timeout_remove"
	ActionBanRemove     ActionType = "unban"
	ActionWarn          ActionType = "warn"
	ActionNote          ActionType = "note"
)

// AllActionTypes returns every known action type
func AllActionTypes() []ActionType {
	return []ActionType{
		ActionBan,
		ActionTempBan,
		ActionKick,
		ActionTimeout,
		ActionTimeoutAdjust,
		ActionTimeoutRemove,
		ActionBanRemove,
		ActionWarn,
		ActionNote,
	}
}

// ParseActionType converts a persisted value back into an ActionType.
func ParseActionType(s string) (ActionType, error) {
	for _, t := range AllActionTypes() {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown action type %q", s)
}

// IsBan reports whether the action removes the user from the guild with a ban.
func (t ActionType) IsBan() bool {
	return t == ActionBan || t == ActionTempBan
}

// IsTimeout reports whether the action sets, changes or clears a timeout.
func (t ActionType) IsTimeout() bool {
	return t == ActionTimeout || t == ActionTimeoutAdjust || t == ActionTimeoutRemove
}

// SupportsDM reports whether the affected user may ever be messaged about
// this action.
func (t ActionType) SupportsDM() bool {
	return t != ActionNote && t != ActionBanRemove
}

// RequiresPlatformAction reports whether the action mutates state on the
// platform. Every such action also produces a native audit-log entry.
func (t ActionType) RequiresPlatformAction() bool {
	switch t {
	case ActionBan, ActionTempBan, ActionKick, ActionTimeout, ActionTimeoutAdjust,
		ActionTimeoutRemove, ActionBanRemove:
		return true
	}
	return false
}

// ShouldPostToModLog reports whether the pipeline posts the mod-log entry
// itself. Everything else is posted by audit-log reconciliation.
func (t ActionType) ShouldPostToModLog() bool {
	return t == ActionWarn || t == ActionNote
}

// DMTiming is the pipeline phase in which the affected user is messaged.
// Ban-type actions DM before enactment since the user can't be reached as a
// member afterwards.
func (t ActionType) DMTiming() DMTiming {
	if t.IsBan() {
		return DMBefore
	}
	return DMAfter
}

// ReconcileTypes lists the case action types an audit-log entry of type t
// may be matched against. A native ban entry is also produced by temp-bans,
// and whether a timeout counts as an adjustment depends on whose clock
// decided the old one had run out.
func (t ActionType) ReconcileTypes() []ActionType {
	switch t {
	case ActionBan:
		return []ActionType{ActionBan, ActionTempBan}
	case ActionTimeout, ActionTimeoutAdjust:
		return []ActionType{ActionTimeout, ActionTimeoutAdjust}
	}
	return []ActionType{t}
}

// Title is the human readable name used in mod-log entries.
func (t ActionType) Title() string {
	switch t {
	case ActionBan:
		return "Ban"
	case ActionTempBan:
		return "Temporary Ban"
	case ActionKick:
		return "Kick"
	case ActionTimeout:
		return "Timeout"
	case ActionTimeoutAdjust:
		return "Timeout Adjusted"
	case ActionTimeoutRemove:
		return "Timeout Removed"
	case ActionBanRemove:
		return "Unban"
	case ActionWarn:
		return "Warn"
	case ActionNote:
		return "Note"
	}
	return string(t)
}

// PastTense is used in direct messages ("You have been banned from ...").
func (t ActionType) PastTense() string {
	switch t {
	case ActionBan, ActionTempBan:
		return "banned"
	case ActionKick:
		return "kicked"
	case ActionTimeout:
		return "timed out"
	case ActionTimeoutAdjust:
		return "had your timeout changed"
	case ActionTimeoutRemove:
		return "had your timeout removed"
	case ActionBanRemove:
		return "unbanned"
	case ActionWarn:
		return "warned"
	}
	return string(t)
}

// DMChoice is the executor's explicit override of the DM policy.
type DMChoice string

const (
	DMUnspecified DMChoice = "unspecified"
	DMYes         DMChoice = "yes_dm"
	DMNo          DMChoice = "no_dm"
)

// User is the minimal identity of a platform user.
type User struct {
	ID  snowflake.ID
	Tag string
	Bot bool
}

// ActionBase holds the fields every action variant carries.
type ActionBase struct {
	GuildID        snowflake.ID
	Executor       User
	ExecutorMember *Member
	Reason         Reason
	DMChoice       DMChoice
	Attachment     string
}

// Action is a closed set of moderation intents. Each variant carries only the
// fields it needs; switch on the concrete type to handle them.
type Action interface {
	Type() ActionType
	Base() ActionBase
	isAction()
}

type BanAction struct {
	ActionBase
	DeleteMessageDays int
}

type TempBanAction struct {
	ActionBase
	Duration          Duration
	DeleteMessageDays int
}

type KickAction struct{ ActionBase }

type TimeoutAction struct {
	ActionBase
	Duration Duration
}

type TimeoutAdjustAction struct {
	ActionBase
	Duration Duration
}

type TimeoutRemoveAction struct{ ActionBase }

type BanRemoveAction struct{ ActionBase }

type WarnAction struct{ ActionBase }

type NoteAction struct{ ActionBase }

func (a BanAction) Type() ActionType           { return ActionBan }
func (a TempBanAction) Type() ActionType       { return ActionTempBan }
func (a KickAction) Type() ActionType          { return ActionKick }
func (a TimeoutAction) Type() ActionType       { return ActionTimeout }
func (a TimeoutAdjustAction) Type() ActionType { return ActionTimeoutAdjust }
func (a TimeoutRemoveAction) Type() ActionType { return ActionTimeoutRemove }
func (a BanRemoveAction) Type() ActionType     { return ActionBanRemove }
func (a WarnAction) Type() ActionType          { return ActionWarn }
func (a NoteAction) Type() ActionType          { return ActionNote }

func (a ActionBase) Base() ActionBase { return a }
func (ActionBase) isAction()          {}

// ActionDuration returns the duration carried by timed variants.
func ActionDuration(a Action) (Duration, bool) {
	switch v := a.(type) {
	case TempBanAction:
		return v.Duration, true
	case TimeoutAction:
		return v.Duration, true
	case TimeoutAdjustAction:
		return v.Duration, true
	}
	return Duration{}, false
}

// AsTimeoutAdjust converts a timeout into an adjustment of an existing one.
func AsTimeoutAdjust(a TimeoutAction) TimeoutAdjustAction {
	return TimeoutAdjustAction{ActionBase: a.ActionBase, Duration: a.Duration}
}

// ValidateAction checks the reason and duration of an action. It never has
// side effects.
func ValidateAction(a Action) error {
	base := a.Base()
	if base.GuildID == 0 {
		return &ValidationError{Field: "guild", Message: "missing guild id"}
	}
	if base.Executor.ID == 0 {
		return &ValidationError{Field: "executor", Message: "missing executor"}
	}
	if err := base.Reason.Validate(); err != nil {
		return err
	}

	d, timed := ActionDuration(a)
	if !timed {
		return nil
	}
	if d.Value() <= 0 {
		return &ValidationError{Field: "duration", Message: "duration must be positive", Err: ErrInvalidDuration}
	}
	if a.Type().IsTimeout() && d.Value() > MaxTimeout {
		return &ValidationError{Field: "duration", Message: "timeouts can't be longer than 28 days", Err: ErrInvalidDuration}
	}
	return nil
}
