package slack

import (
	slacklib "github.com/slack-go/slack"
)

// BuildNotificationBlocks renders a notification as a markdown section with
// a small context footer naming the board service.
func BuildNotificationBlocks(text string) []slacklib.Block {
	section := slacklib.NewSectionBlock(
		slacklib.NewTextBlockObject(slacklib.MarkdownType, text, false, false),
		nil,
		nil,
	)
	footer := slacklib.NewContextBlock("",
		slacklib.NewTextBlockObject(slacklib.PlainTextType, "taskboard", false, false),
	)

	return []slacklib.Block{section, footer}
}
