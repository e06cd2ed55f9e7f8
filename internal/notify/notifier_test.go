package notify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/messenger"
	"github.com/gosuda/taskboard/internal/notify"
	"github.com/gosuda/taskboard/internal/store/memory"
)

// --- mocks ---

type mockMessenger struct {
	platform      string
	notifications []sentNotification
	notifyErr     error
}

type sentNotification struct {
	externalID string
	text       string
}

func (m *mockMessenger) SendMessage(context.Context, string, string) (messenger.MessageID, error) {
	return "", nil
}

func (m *mockMessenger) Reply(context.Context, string, messenger.MessageID, string) error {
	return nil
}

func (m *mockMessenger) SendNotification(_ context.Context, externalID, text string) error {
	if m.notifyErr != nil {
		return m.notifyErr
	}
	m.notifications = append(m.notifications, sentNotification{externalID: externalID, text: text})
	return nil
}

func (m *mockMessenger) Platform() string { return m.platform }

type mockRegistry struct {
	messengers map[string]messenger.Messenger
}

func (r *mockRegistry) Get(platform string) (messenger.Messenger, bool) {
	m, ok := r.messengers[platform]
	return m, ok
}

func directory(users ...*domain.User) *memory.Store {
	s := memory.New()
	for _, u := range users {
		s.AddUser(u)
	}
	return s
}

// --- Notify tests ---

func TestNotify(t *testing.T) {
	t.Parallel()

	linked := &domain.User{ID: uuid.New(), Name: "Ada", SlackID: "U123"}
	unlinked := &domain.User{ID: uuid.New(), Name: "Bo"}

	t.Run("happy path sends via slack link", func(t *testing.T) {
		t.Parallel()

		slackMsg := &mockMessenger{platform: "slack"}
		reg := &mockRegistry{messengers: map[string]messenger.Messenger{"slack": slackMsg}}

		n := notify.New(reg, directory(linked))
		require.NoError(t, n.Notify(t.Context(), linked.ID, "hello"))

		require.Len(t, slackMsg.notifications, 1)
		assert.Equal(t, "U123", slackMsg.notifications[0].externalID)
		assert.Equal(t, "hello", slackMsg.notifications[0].text)
	})

	t.Run("no links falls back to log without error", func(t *testing.T) {
		t.Parallel()

		slackMsg := &mockMessenger{platform: "slack"}
		reg := &mockRegistry{messengers: map[string]messenger.Messenger{"slack": slackMsg}}

		n := notify.New(reg, directory(unlinked))
		require.NoError(t, n.Notify(t.Context(), unlinked.ID, "hello"))
		assert.Empty(t, slackMsg.notifications)
	})

	t.Run("unknown user propagates not found", func(t *testing.T) {
		t.Parallel()

		n := notify.New(&mockRegistry{}, directory())
		err := n.Notify(t.Context(), uuid.New(), "hello")

		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Contains(t, err.Error(), "get user")
	})

	t.Run("SendNotification failure returns error", func(t *testing.T) {
		t.Parallel()

		slackMsg := &mockMessenger{platform: "slack", notifyErr: errors.New("api down")}
		reg := &mockRegistry{messengers: map[string]messenger.Messenger{"slack": slackMsg}}

		n := notify.New(reg, directory(linked))
		err := n.Notify(t.Context(), linked.ID, "hello")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "all links failed")
	})

	t.Run("unregistered platform fails", func(t *testing.T) {
		t.Parallel()

		n := notify.New(&mockRegistry{messengers: map[string]messenger.Messenger{}}, directory(linked))
		err := n.Notify(t.Context(), linked.ID, "hello")

		require.Error(t, err)
		assert.ErrorIs(t, err, notify.ErrPlatformNotFound)
	})
}

// --- NotifyVia tests ---

func TestNotifyVia(t *testing.T) {
	t.Parallel()

	t.Run("happy path", func(t *testing.T) {
		t.Parallel()

		slackMsg := &mockMessenger{platform: "slack"}
		reg := &mockRegistry{messengers: map[string]messenger.Messenger{"slack": slackMsg}}

		n := notify.New(reg, directory())
		require.NoError(t, n.NotifyVia(t.Context(), "slack", "U123", "hello"))

		require.Len(t, slackMsg.notifications, 1)
		assert.Equal(t, "U123", slackMsg.notifications[0].externalID)
	})

	t.Run("unknown platform returns ErrPlatformNotFound", func(t *testing.T) {
		t.Parallel()

		n := notify.New(&mockRegistry{messengers: map[string]messenger.Messenger{}}, directory())
		err := n.NotifyVia(t.Context(), "unknown", "U123", "hello")

		require.Error(t, err)
		assert.ErrorIs(t, err, notify.ErrPlatformNotFound)
	})

	t.Run("SendNotification error wraps", func(t *testing.T) {
		t.Parallel()

		slackMsg := &mockMessenger{platform: "slack", notifyErr: errors.New("timeout")}
		reg := &mockRegistry{messengers: map[string]messenger.Messenger{"slack": slackMsg}}

		n := notify.New(reg, directory())
		err := n.NotifyVia(t.Context(), "slack", "U123", "hello")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "send")
	})
}
