package messenger

import "context"

// MessageID uniquely identifies a message within a messenger platform.
type MessageID string

// Messenger abstracts a chat platform used for board notifications.
type Messenger interface {
	// SendMessage posts a text message to a channel and returns its platform message ID.
	SendMessage(ctx context.Context, channelID, text string) (MessageID, error)

	// Reply posts text into the thread rooted at parentID.
	Reply(ctx context.Context, channelID string, parentID MessageID, text string) error

	// SendNotification sends a direct message to a user by their external
	// platform ID (e.g. Slack user ID).
	SendNotification(ctx context.Context, userExternalID, text string) error

	// Platform returns the messenger platform identifier (e.g. "slack").
	Platform() string
}
