// Package commands is the slash-command surface of the bot. It turns
// interactions into moderation actions and case maintenance requests and
// renders the results.
package commands

import (
	"github.com/bwmarrin/discordgo"
)

// Command names.
const (
	CmdBan       = "ban"
	CmdTempBan   = "tempban"
	CmdKick      = "kick"
	CmdTimeout   = "timeout"
	CmdUntimeout = "untimeout"
	CmdUnban     = "unban"
	CmdWarn      = "warn"
	CmdNote      = "note"
	CmdReason    = "reason"
	CmdUncase    = "uncase"
)

// Option names.
const (
	optUsers          = "users"
	optReason         = "reason"
	optDM             = "dm"
	optDuration       = "duration"
	optDeleteDays     = "delete_messages"
	optAttachment     = "attachment"
	optCase           = "case"
	optKeepLogMessage = "keep_log_messages"
)

func int64Ptr(v int64) *int64 { return &v }
func boolPtr(v bool) *bool    { return &v }

func usersOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        optUsers,
		Description: "Users to moderate, as mentions or IDs separated by spaces",
		Required:    true,
	}
}

func reasonOption(required bool) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        optReason,
		Description: "Reason for this action",
		Required:    required,
		MaxLength:   1024,
	}
}

func dmOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        optDM,
		Description: "Whether to DM the user (defaults to the server setting)",
		Choices: []*discordgo.ApplicationCommandOptionChoice{
			{Name: "Send DM", Value: "yes_dm"},
			{Name: "Don't send DM", Value: "no_dm"},
		},
	}
}

func durationOption(description string) *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        optDuration,
		Description: description,
		Required:    true,
	}
}

func deleteDaysOption() *discordgo.ApplicationCommandOption {
	minDays := 0.0
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionInteger,
		Name:        optDeleteDays,
		Description: "Days of messages to delete (0-7)",
		MinValue:    &minDays,
		MaxValue:    7,
	}
}

func attachmentOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionAttachment,
		Name:        optAttachment,
		Description: "Evidence to keep with the case",
	}
}

func caseOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:         discordgo.ApplicationCommandOptionString,
		Name:         optCase,
		Description:  "Case number or range, e.g. 12, 10-15, latest, latest~3",
		Required:     true,
		Autocomplete: true,
	}
}

func command(name, description string, perm int64, options ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:                     name,
		Description:              description,
		DefaultMemberPermissions: int64Ptr(perm),
		DMPermission:             boolPtr(false),
		Options:                  options,
	}
}

// Definitions returns every command the bot registers.
func Definitions() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		command(CmdBan, "Ban users from the server", discordgo.PermissionBanMembers,
			usersOption(), reasonOption(false), dmOption(), deleteDaysOption(), attachmentOption()),
		command(CmdTempBan, "Ban users for a limited time", discordgo.PermissionBanMembers,
			usersOption(), durationOption("How long the ban lasts, e.g. 7d or 12h"), reasonOption(false),
			dmOption(), deleteDaysOption(), attachmentOption()),
		command(CmdKick, "Kick users from the server", discordgo.PermissionKickMembers,
			usersOption(), reasonOption(false), dmOption(), attachmentOption()),
		command(CmdTimeout, "Time users out, or change an existing timeout", discordgo.PermissionModerateMembers,
			usersOption(), durationOption("How long the timeout lasts, up to 28d"), reasonOption(false),
			dmOption(), attachmentOption()),
		command(CmdUntimeout, "Remove a timeout", discordgo.PermissionModerateMembers,
			usersOption(), reasonOption(false), dmOption(), attachmentOption()),
		command(CmdUnban, "Unban users", discordgo.PermissionBanMembers,
			usersOption(), reasonOption(false), attachmentOption()),
		command(CmdWarn, "Warn users", discordgo.PermissionModerateMembers,
			usersOption(), reasonOption(true), dmOption(), attachmentOption()),
		command(CmdNote, "Add a private note to users' history", discordgo.PermissionModerateMembers,
			usersOption(), reasonOption(true), attachmentOption()),
		command(CmdReason, "Set the reason of cases", discordgo.PermissionModerateMembers,
			caseOption(), reasonOption(true)),
		command(CmdUncase, "Delete cases", discordgo.PermissionModerateMembers,
			caseOption(), &discordgo.ApplicationCommandOption{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        optKeepLogMessage,
				Description: "Keep the mod-log messages of the deleted cases",
			}),
	}
}
