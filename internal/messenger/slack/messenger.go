package slack

import (
	"context"
	"fmt"

	slacklib "github.com/slack-go/slack"

	"github.com/gosuda/taskboard/internal/messenger"
)

// SlackAPI abstracts the subset of the Slack client used by SlackMessenger.
type SlackAPI interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slacklib.MsgOption) (string, string, error)
}

// SlackMessenger implements messenger.Messenger for Slack.
type SlackMessenger struct {
	api SlackAPI
}

var _ messenger.Messenger = (*SlackMessenger)(nil) //nolint:gochecknoglobals // compile-time check

func NewSlackMessenger(api SlackAPI) *SlackMessenger {
	return &SlackMessenger{api: api}
}

// SendMessage posts a text message to a Slack channel and returns the message timestamp as MessageID.
func (m *SlackMessenger) SendMessage(ctx context.Context, channelID, text string) (messenger.MessageID, error) {
	_, ts, err := m.api.PostMessageContext(ctx, channelID, slacklib.MsgOptionText(text, false))
	if err != nil {
		return "", fmt.Errorf("slack.SlackMessenger.SendMessage: %w", err)
	}

	return messenger.MessageID(ts), nil
}

// Reply answers in the thread under parentID.
func (m *SlackMessenger) Reply(ctx context.Context, channelID string, parentID messenger.MessageID, text string) error {
	_, _, err := m.api.PostMessageContext(ctx, channelID,
		slacklib.MsgOptionTS(string(parentID)),
		slacklib.MsgOptionText(text, false),
	)
	if err != nil {
		return fmt.Errorf("slack.SlackMessenger.Reply: %w", err)
	}

	return nil
}

// SendNotification posts a direct message. Slack opens the DM when the
// channel is a user ID.
func (m *SlackMessenger) SendNotification(ctx context.Context, userExternalID, text string) error {
	_, _, err := m.api.PostMessageContext(ctx, userExternalID,
		slacklib.MsgOptionText(text, false),
		slacklib.MsgOptionBlocks(BuildNotificationBlocks(text)...),
	)
	if err != nil {
		return fmt.Errorf("slack.SlackMessenger.SendNotification: %w", err)
	}

	return nil
}

func (m *SlackMessenger) Platform() string {
	return "slack"
}
