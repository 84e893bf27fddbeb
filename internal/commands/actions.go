package commands

import (
	"errors"
	"fmt"
	"strings"

	"warden/internal/cases"
	"warden/internal/moderation"
)

// buildAction turns a moderation command into its action variant.
func buildAction(name string, base moderation.ActionBase, o options) (moderation.Action, error) {
	var d moderation.Duration
	if name == CmdTempBan || name == CmdTimeout {
		var err error
		if d, err = moderation.ParseDuration(o.string(optDuration)); err != nil {
			return nil, err
		}
	}
	days := o.int(optDeleteDays)

	switch name {
	case CmdBan:
		return moderation.BanAction{ActionBase: base, DeleteMessageDays: days}, nil
	case CmdTempBan:
		return moderation.TempBanAction{ActionBase: base, Duration: d, DeleteMessageDays: days}, nil
	case CmdKick:
		return moderation.KickAction{ActionBase: base}, nil
	case CmdTimeout:
		return moderation.TimeoutAction{ActionBase: base, Duration: d}, nil
	case CmdUntimeout:
		return moderation.TimeoutRemoveAction{ActionBase: base}, nil
	case CmdUnban:
		return moderation.BanRemoveAction{ActionBase: base}, nil
	case CmdWarn:
		return moderation.WarnAction{ActionBase: base}, nil
	case CmdNote:
		return moderation.NoteAction{ActionBase: base}, nil
	}
	return nil, fmt.Errorf("unknown moderation command %q", name)
}

func isActionCommand(name string) bool {
	switch name {
	case CmdBan, CmdTempBan, CmdKick, CmdTimeout, CmdUntimeout, CmdUnban, CmdWarn, CmdNote:
		return true
	}
	return false
}

func reasonFrom(o options) moderation.Reason {
	if !o.has(optReason) {
		return moderation.NoReason()
	}
	return moderation.NewReason(o.string(optReason))
}

func dmChoiceFrom(o options) moderation.DMChoice {
	switch moderation.DMChoice(o.string(optDM)) {
	case moderation.DMYes:
		return moderation.DMYes
	case moderation.DMNo:
		return moderation.DMNo
	}
	return moderation.DMUnspecified
}

// userMessage renders err for the invoking moderator.
func userMessage(err error) string {
	var validation *moderation.ValidationError
	var rangeErr *cases.RangeError
	var enact *moderation.EnactError
	switch {
	case errors.As(err, &validation):
		return "Invalid " + validation.Field + ": " + validation.Message
	case errors.As(err, &rangeErr):
		return rangeErr.Error()
	case errors.As(err, &enact):
		return enact.Error()
	case errors.Is(err, moderation.ErrCaseNotFound):
		return "No cases found in that range."
	}
	for _, sentinel := range []error{
		moderation.ErrTargetIsSelf, moderation.ErrTargetIsOwner, moderation.ErrTargetIsBot,
		moderation.ErrHierarchy, moderation.ErrTargetNotMember, moderation.ErrUserNotFound,
	} {
		if errors.Is(err, sentinel) {
			return capitalize(sentinel.Error()) + "."
		}
	}
	return "Something went wrong, please try again."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// actionSummary lists the outcome of an action per target.
func actionSummary(results []moderation.TargetResult) string {
	var b strings.Builder
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(&b, "❌ %s: %s\n", r.Target.User.Tag, userMessage(r.Err))
			continue
		}
		fmt.Fprintf(&b, "✅ Case #%d %s: %s", r.Case.CaseID, r.Case.Action.Title(), r.Target.User.Tag)
		if r.Case.DM != nil && !r.Case.DM.Sent() {
			fmt.Fprintf(&b, " (DM not sent: %s)", r.Case.DM.Error)
		}
		b.WriteString("\n")
	}
	if b.Len() == 0 {
		return "No users given."
	}
	return strings.TrimSuffix(b.String(), "\n")
}
