package slack

import (
	"context"

	"github.com/slack-go/slack"
)

// poster is the part of the Slack API used by the notifier
type poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}
