package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/gosuda/taskboard/internal/balance"
	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/hub"
	"github.com/gosuda/taskboard/internal/ledger"
	tbslack "github.com/gosuda/taskboard/internal/messenger/slack"
)

const slackHelp = "Mention me with:\n" +
	"• `create task: <title>` or `create task on <board>: <title>`\n" +
	"• `status` for your workload\n" +
	"• `balance` to assign every unowned task\n" +
	"Any other text becomes a task on the default board."

var errSlackUnlinked = errors.New("your Slack account is not linked to a board user") //nolint:gochecknoglobals // sentinel error

// slackCommands runs Slack mention commands against the board, acting as
// the directory user whose SlackID matches the sender.
type slackCommands struct {
	ledger   *ledger.Ledger
	hub      *hub.Hub
	balancer *balance.Balancer
	users    domain.Directory
}

func (c *slackCommands) HandleCommand(ctx context.Context, slackUserID string, cmd tbslack.Command) (string, error) {
	if cmd.Action == tbslack.CommandActionHelp {
		return slackHelp, nil
	}

	u, err := c.resolve(ctx, slackUserID)
	if err != nil {
		return "", err
	}

	switch cmd.Action {
	case tbslack.CommandActionTask:
		t, err := c.ledger.Create(ctx, ledger.CreateInput{Board: cmd.Board, Title: cmd.Title, CreatedBy: u.ID})
		if err != nil {
			return "", fmt.Errorf("slackCommands.HandleCommand: %w", err)
		}
		if _, err := c.hub.Publish("", t.Board, domain.TaskEvent(domain.EventTaskCreated, t)); err != nil {
			return "", fmt.Errorf("slackCommands.HandleCommand: %w", err)
		}
		return fmt.Sprintf("Created *%s* on board `%s`.", t.Title, t.Board), nil

	case tbslack.CommandActionStatus:
		loads, err := c.balancer.Workload(ctx)
		if err != nil {
			return "", fmt.Errorf("slackCommands.HandleCommand: %w", err)
		}
		for _, w := range loads {
			if w.UserID == u.ID && w.TotalTasks > 0 {
				return fmt.Sprintf("You have %d active tasks (todo %d, in progress %d, review %d) and %d done.",
					w.ActiveTasks, w.ByStatus.Todo, w.ByStatus.InProgress, w.ByStatus.Review, w.CompletedTasks), nil
			}
		}
		return "You have no tasks.", nil

	case tbslack.CommandActionBalance:
		res, err := c.balancer.Balance(ctx)
		if err != nil {
			return "", fmt.Errorf("slackCommands.HandleCommand: %w", err)
		}
		if res.Assigned == 0 && len(res.Conflicts) == 0 {
			return "Nothing to assign.", nil
		}
		return fmt.Sprintf("Assigned %d tasks; %d skipped after concurrent edits.", res.Assigned, len(res.Conflicts)), nil

	default:
		return "", nil
	}
}

func (c *slackCommands) resolve(ctx context.Context, slackUserID string) (*domain.User, error) {
	users, err := c.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("slackCommands.resolve: %w", err)
	}
	for _, u := range users {
		if u.SlackID != "" && u.SlackID == slackUserID {
			return u, nil
		}
	}
	return nil, errSlackUnlinked
}
