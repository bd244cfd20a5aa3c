package config

import (
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/service/slack"
	"github.com/urfave/cli/v3"
)

// Slack configures training run notifications
type Slack struct {
	botToken  string
	channelID string
}

func (x *Slack) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "slack-bot-token",
			Usage:       "Slack Bot User OAuth Token for run notifications",
			Category:    "Slack",
			Destination: &x.botToken,
			Sources:     cli.EnvVars("WISHWELL_SLACK_BOT_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "slack-channel-id",
			Usage:       "Slack channel ID that receives run notifications",
			Category:    "Slack",
			Destination: &x.channelID,
			Sources:     cli.EnvVars("WISHWELL_SLACK_CHANNEL_ID"),
		},
	}
}

func (x Slack) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("bot_token_set", x.botToken != ""),
		slog.String("channel_id", x.channelID),
	)
}

// IsConfigured returns true if notifications can be sent
func (x *Slack) IsConfigured() bool {
	return x.botToken != "" && x.channelID != ""
}

// Configure returns the notifier, or nil when Slack is not configured
func (x *Slack) Configure() (*slack.Notifier, error) {
	if x.botToken == "" && x.channelID == "" {
		return nil, nil
	}
	if !x.IsConfigured() {
		return nil, goerr.Wrap(ErrMissingOption, "both slack-bot-token and slack-channel-id are required")
	}

	notifier, err := slack.New(x.botToken, x.channelID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create slack notifier")
	}
	return notifier, nil
}
