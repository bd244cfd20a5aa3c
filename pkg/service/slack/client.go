package slack

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/interfaces"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/domain/types"
	"github.com/secmon-lab/wishwell/pkg/utils/logging"
	"github.com/slack-go/slack"
)

// maxErrorBytes keeps failure summaries well below the section text limit
const maxErrorBytes = 2000

// Notifier posts a summary of every finished training run to a channel
type Notifier struct {
	api       poster
	channelID string
	apiURL    string
}

var _ interfaces.Notifier = &Notifier{}

// Option is a functional option for notifier configuration
type Option func(*Notifier)

// WithAPIURL points the client at another Slack API endpoint
func WithAPIURL(url string) Option {
	return func(n *Notifier) {
		n.apiURL = url
	}
}

// New creates a notifier with the provided bot token and channel
func New(token, channelID string, opts ...Option) (*Notifier, error) {
	if token == "" {
		return nil, goerr.New("Slack bot token is required")
	}
	if channelID == "" {
		return nil, goerr.New("Slack channel ID is required")
	}

	n := &Notifier{channelID: channelID}
	for _, opt := range opts {
		opt(n)
	}

	var clientOpts []slack.Option
	if n.apiURL != "" {
		clientOpts = append(clientOpts, slack.OptionAPIURL(n.apiURL))
	}
	n.api = slack.New(token, clientOpts...)

	return n, nil
}

// NotifyRun posts the outcome of a finished run. Runs still in progress are ignored.
func (n *Notifier) NotifyRun(ctx context.Context, run *model.ModelUpdate) error {
	if run == nil || !run.Status.IsTerminal() {
		return nil
	}

	title := runTitle(run)
	blocks := buildRunBlocks(run)

	_, ts, err := n.api.PostMessageContext(ctx, n.channelID,
		slack.MsgOptionText(title, false),
		slack.MsgOptionBlocks(blocks...),
	)
	if err != nil {
		return goerr.Wrap(err, "failed to post training run notification",
			goerr.V("channel_id", n.channelID),
			goerr.V("run_id", run.ID),
			goerr.V("version", run.Version))
	}

	logging.From(ctx).Debug("training run notified",
		slog.String("channel_id", n.channelID),
		slog.String("ts", ts),
		slog.Int64("version", run.Version),
	)
	return nil
}

func runTitle(run *model.ModelUpdate) string {
	switch run.Status {
	case types.RunStatusCompleted:
		return fmt.Sprintf(":crystal_ball: Training run #%d completed", run.Version)
	default:
		return fmt.Sprintf(":warning: Training run #%d failed", run.Version)
	}
}

func buildRunBlocks(run *model.ModelUpdate) []slack.Block {
	fields := []*slack.TextBlockObject{
		mrkdwn("*Trigger*\n%s", run.Trigger),
		mrkdwn("*Wishes*\n%d", run.WishesCount),
		mrkdwn("*Topics created*\n%d", run.TopicsCreated),
		mrkdwn("*Noise*\n%d", run.NoiseCount),
		mrkdwn("*Superseded topics*\n%d", run.SupersededCount),
		mrkdwn("*Duration*\n%s", run.Duration().Round(time.Second)),
	}

	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, fmt.Sprintf("Training run #%d %s", run.Version, run.Status), false, false)),
		slack.NewSectionBlock(nil, fields, nil),
	}

	if run.Status == types.RunStatusFailed && run.Error != "" {
		blocks = append(blocks, slack.NewSectionBlock(
			mrkdwn("*Error*\n```%s```", truncateToMaxBytes(run.Error, maxErrorBytes)),
			nil, nil,
		))
	}

	return blocks
}

func mrkdwn(format string, args ...any) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf(format, args...), false, false)
}

// truncateToMaxBytes cuts s to at most maxBytes without splitting a UTF-8 sequence
func truncateToMaxBytes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := maxBytes
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
