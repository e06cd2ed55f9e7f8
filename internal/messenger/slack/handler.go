package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
	slacklib "github.com/slack-go/slack"

	"github.com/gosuda/taskboard/internal/messenger"
)

// CommandHandler executes a parsed command on behalf of a Slack user and
// returns the text to reply with.
type CommandHandler interface {
	HandleCommand(ctx context.Context, slackUserID string, cmd Command) (string, error)
}

// Replier posts a threaded answer.
type Replier interface {
	Reply(ctx context.Context, channelID string, parentID messenger.MessageID, text string) error
}

// Handler processes Slack Events API webhooks.
type Handler struct {
	signingSecret string
	commands      CommandHandler
	replies       Replier
}

func NewHandler(signingSecret string, commands CommandHandler, replies Replier) *Handler {
	return &Handler{
		signingSecret: signingSecret,
		commands:      commands,
		replies:       replies,
	}
}

// slackEvent represents the outer envelope of Slack Events API payloads.
type slackEvent struct {
	Type      string          `json:"type"`
	Challenge string          `json:"challenge,omitempty"`
	Event     json.RawMessage `json:"event,omitempty"`
}

// innerEvent represents the inner event within an event_callback.
type innerEvent struct {
	Type     string `json:"type"`
	Channel  string `json:"channel"`
	TS       string `json:"ts"`
	ThreadTS string `json:"thread_ts,omitempty"`
	Text     string `json:"text"`
	User     string `json:"user"`
	BotID    string `json:"bot_id,omitempty"`
}

// HandleEvents is an http.HandlerFunc for POST /slack/events.
func (h *Handler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	if verifyErr := h.verifySignature(r.Header, body); verifyErr != nil {
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var envelope slackEvent
	if unmarshalErr := json.Unmarshal(body, &envelope); unmarshalErr != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	switch envelope.Type {
	case "url_verification":
		h.handleURLVerification(w, envelope.Challenge)
	case "event_callback":
		h.handleEventCallback(r.Context(), w, envelope.Event)
	default:
		w.WriteHeader(http.StatusOK)
	}
}

func (h *Handler) handleURLVerification(w http.ResponseWriter, challenge string) {
	w.Header().Set("Content-Type", "application/json")

	resp := map[string]string{"challenge": challenge}
	if encodeErr := json.NewEncoder(w).Encode(resp); encodeErr != nil {
		log.Error().Err(encodeErr).Msg("slack: encode url verification response")
	}
}

// handleEventCallback runs mention commands and answers in the message's thread.
func (h *Handler) handleEventCallback(ctx context.Context, w http.ResponseWriter, rawEvent json.RawMessage) {
	var evt innerEvent
	if unmarshalErr := json.Unmarshal(rawEvent, &evt); unmarshalErr != nil {
		http.Error(w, "invalid event JSON", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)

	if (evt.Type != "app_mention" && evt.Type != "message") || evt.BotID != "" {
		return
	}
	cmd := ParseCommand(evt.Text)
	if cmd.Action == CommandActionUnknown {
		return
	}

	reply, err := h.commands.HandleCommand(ctx, evt.User, cmd)
	if err != nil {
		log.Error().Err(err).Str("action", string(cmd.Action)).Str("slack_user", evt.User).Msg("slack: command failed")
		reply = "Sorry, that did not work: " + err.Error()
	}
	if reply == "" {
		return
	}

	parent := evt.ThreadTS
	if parent == "" {
		parent = evt.TS
	}
	if replyErr := h.replies.Reply(ctx, evt.Channel, messenger.MessageID(parent), reply); replyErr != nil {
		log.Error().Err(replyErr).Str("channel", evt.Channel).Msg("slack: reply failed")
	}
}

// verifySignature validates the Slack request signature using the signing secret.
func (h *Handler) verifySignature(header http.Header, body []byte) error {
	sv, err := slacklib.NewSecretsVerifier(header, h.signingSecret)
	if err != nil {
		return fmt.Errorf("slack.Handler.verifySignature: create verifier: %w", err)
	}

	if _, writeErr := sv.Write(body); writeErr != nil {
		return fmt.Errorf("slack.Handler.verifySignature: write body: %w", writeErr)
	}

	if ensureErr := sv.Ensure(); ensureErr != nil {
		return fmt.Errorf("slack.Handler.verifySignature: ensure: %w", ensureErr)
	}

	return nil
}
