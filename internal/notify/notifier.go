package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/messenger"
)

// ErrPlatformNotFound is returned when a messenger platform is not registered.
var ErrPlatformNotFound = errors.New("notify: platform not found") //nolint:gochecknoglobals // sentinel error

// MessengerRegistry maps platform names to Messenger implementations.
type MessengerRegistry interface {
	Get(platform string) (messenger.Messenger, bool)
}

// UserResolver looks up the directory record of a user.
type UserResolver interface {
	GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

type link struct {
	platform   string
	externalID string
}

// Notifier dispatches push notifications to users through their linked messenger accounts.
type Notifier struct {
	messengers MessengerRegistry
	users      UserResolver
}

func New(messengers MessengerRegistry, users UserResolver) *Notifier {
	return &Notifier{
		messengers: messengers,
		users:      users,
	}
}

// Notify sends a notification to the user via their first working messenger link.
// Users without links are logged and skipped.
func (n *Notifier) Notify(ctx context.Context, userID uuid.UUID, message string) error {
	u, err := n.users.GetUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("notify.Notifier.Notify: get user: %w", err)
	}

	links := linksOf(u)
	if len(links) == 0 {
		log.Info().Str("user_id", userID.String()).Str("message", message).Msg("notify: no messenger links")
		return nil
	}

	var lastErr error
	for _, l := range links {
		sendErr := n.NotifyVia(ctx, l.platform, l.externalID, message)
		if sendErr == nil {
			return nil
		}
		lastErr = sendErr
	}

	return fmt.Errorf("notify.Notifier.Notify: all links failed: %w", lastErr)
}

// NotifyVia sends a notification using a specific platform and external ID directly.
func (n *Notifier) NotifyVia(ctx context.Context, platform, externalID, message string) error {
	msg, ok := n.messengers.Get(platform)
	if !ok {
		return fmt.Errorf("notify.Notifier.NotifyVia: platform %q: %w", platform, ErrPlatformNotFound)
	}

	if err := msg.SendNotification(ctx, externalID, message); err != nil {
		return fmt.Errorf("notify.Notifier.NotifyVia: send: %w", err)
	}

	return nil
}

func linksOf(u *domain.User) []link {
	var out []link
	if u.SlackID != "" {
		out = append(out, link{platform: "slack", externalID: u.SlackID})
	}
	return out
}
