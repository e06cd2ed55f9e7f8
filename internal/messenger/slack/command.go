package slack

import (
	"regexp"
	"strings"
)

// CommandAction represents the type of parsed command.
type CommandAction string

const (
	// CommandActionTask creates a task.
	CommandActionTask CommandAction = "task"
	// CommandActionStatus reports the caller's workload.
	CommandActionStatus CommandAction = "status"
	// CommandActionBalance runs the workload balancer.
	CommandActionBalance CommandAction = "balance"
	// CommandActionHelp lists the commands.
	CommandActionHelp CommandAction = "help"
	// CommandActionUnknown indicates an unrecognized or empty command.
	CommandActionUnknown CommandAction = "unknown"
)

// Command represents a parsed user command from Slack.
type Command struct {
	Action CommandAction
	Title  string // for task commands
	Board  string // for task commands; empty means the default board
	Raw    string // original text
}

// mentionPattern matches both Slack-encoded mentions (<@U12345>) and literal @taskboard at the start.
var mentionPattern = regexp.MustCompile(`^(?:<@[A-Z0-9]+>|@taskboard)\s*`) //nolint:gochecknoglobals // compiled regexp

// createTaskPattern matches "create task:" and "create task on <board>:" (case-insensitive).
var createTaskPattern = regexp.MustCompile(`(?i)^create\s+task(?:\s+on\s+([\w.-]+))?:\s*`) //nolint:gochecknoglobals // compiled regexp

// ParseCommand extracts a command from a Slack message text. Only messages
// that start with a mention are commands.
func ParseCommand(text string) Command {
	cmd := Command{
		Action: CommandActionUnknown,
		Raw:    text,
	}

	if !mentionPattern.MatchString(text) {
		return cmd
	}
	stripped := strings.TrimSpace(mentionPattern.ReplaceAllString(text, ""))
	if stripped == "" {
		return cmd
	}

	switch strings.ToLower(stripped) {
	case "status":
		cmd.Action = CommandActionStatus
		return cmd
	case "help":
		cmd.Action = CommandActionHelp
		return cmd
	case "balance", "assign":
		cmd.Action = CommandActionBalance
		return cmd
	}

	if m := createTaskPattern.FindStringSubmatchIndex(stripped); m != nil {
		title := strings.TrimSpace(stripped[m[1]:])
		if title == "" {
			return cmd
		}
		cmd.Action = CommandActionTask
		cmd.Title = title
		if m[2] >= 0 {
			cmd.Board = stripped[m[2]:m[3]]
		}
		return cmd
	}

	// Default: treat remaining text as a task title.
	cmd.Action = CommandActionTask
	cmd.Title = stripped

	return cmd
}
