package notify_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosuda/taskboard/internal/domain"
	"github.com/gosuda/taskboard/internal/notify"
)

func TestRegistry(t *testing.T) {
	t.Parallel()

	t.Run("keyed by platform", func(t *testing.T) {
		t.Parallel()

		slackMsg := &mockMessenger{platform: "slack"}
		reg := notify.NewRegistry(slackMsg)

		got, ok := reg.Get("slack")
		require.True(t, ok)
		assert.Same(t, slackMsg, got)

		_, ok = reg.Get("email")
		assert.False(t, ok)
	})

	t.Run("later add replaces", func(t *testing.T) {
		t.Parallel()

		first := &mockMessenger{platform: "slack"}
		second := &mockMessenger{platform: "slack"}
		reg := notify.NewRegistry(first)
		reg.Add(second)

		got, ok := reg.Get("slack")
		require.True(t, ok)
		assert.Same(t, second, got)
		assert.Equal(t, []string{"slack"}, reg.Platforms())
	})

	t.Run("platforms sorted", func(t *testing.T) {
		t.Parallel()

		reg := notify.NewRegistry(&mockMessenger{platform: "teams"}, &mockMessenger{platform: "slack"})
		assert.Equal(t, []string{"slack", "teams"}, reg.Platforms())
		assert.Empty(t, notify.NewRegistry().Platforms())
	})

	t.Run("drives Notify", func(t *testing.T) {
		t.Parallel()

		slackMsg := &mockMessenger{platform: "slack"}
		u := &domain.User{ID: uuid.New(), Name: "Ada", SlackID: "U9"}

		n := notify.New(notify.NewRegistry(slackMsg), directory(u))
		require.NoError(t, n.Notify(t.Context(), u.ID, "due soon"))
		require.Len(t, slackMsg.notifications, 1)
		assert.Equal(t, "U9", slackMsg.notifications[0].externalID)
	})
}
