package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/urfave/cli/v3"
)

const defaultGeminiModelName = "gemini"

// Gemini configures the LLM behind topic naming, wish moderation and the
// llm embedding backend. Without a project the pipeline runs LLM-free:
// topics keep their term based names and every wish is accepted.
type Gemini struct {
	projectID string
	location  string
	model     string
}

func (g *Gemini) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini API (enables topic labeling and moderation)",
			Category:    "LLM",
			Sources:     cli.EnvVars("WISHWELL_GEMINI_PROJECT"),
			Destination: &g.projectID,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini API",
			Category:    "LLM",
			Value:       "us-central1",
			Sources:     cli.EnvVars("WISHWELL_GEMINI_LOCATION"),
			Destination: &g.location,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model for labeling and moderation, recorded on rejected wishes (default: client default)",
			Category:    "LLM",
			Sources:     cli.EnvVars("WISHWELL_GEMINI_MODEL"),
			Destination: &g.model,
		},
	}
}

func (g Gemini) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("project_id", g.projectID),
		slog.String("location", g.location),
		slog.String("model", g.ModelName()),
	)
}

// Enabled reports whether an LLM client will be created
func (g *Gemini) Enabled() bool {
	return g.projectID != ""
}

// ModelName is the name stored as the moderation model of rejected wishes
func (g *Gemini) ModelName() string {
	if g.model == "" {
		return defaultGeminiModelName
	}
	return g.model
}

// Configure returns nil when no project is set
func (g *Gemini) Configure(ctx context.Context) (gollem.LLMClient, error) {
	if !g.Enabled() {
		return nil, nil
	}

	var opts []gemini.Option
	if g.model != "" {
		opts = append(opts, gemini.WithModel(g.model))
	}

	client, err := gemini.New(ctx, g.projectID, g.location, opts...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create Gemini client",
			goerr.V("project_id", g.projectID),
			goerr.V("location", g.location))
	}

	return client, nil
}
