package labeling

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
	"github.com/secmon-lab/wishwell/pkg/domain/interfaces"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
)

const (
	maxPromptTerms   = 10
	maxPromptSamples = 5
)

// Labeler asks an LLM for a short topic name and description
type Labeler struct {
	llmClient gollem.LLMClient
}

var _ interfaces.Labeler = &Labeler{}

func New(llmClient gollem.LLMClient) (*Labeler, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}
	return &Labeler{llmClient: llmClient}, nil
}

type llmResponse struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Label returns ErrLabelingUnavailable on any failure of the LLM call
func (l *Labeler) Label(ctx context.Context, terms []string, samples []string) (*model.TopicLabel, error) {
	session, err := l.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(responseSchema()),
		gollem.WithSessionSystemPrompt("You are a helpful assistant that labels topics concisely."),
	)
	if err != nil {
		return nil, unavailable(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(buildPrompt(terms, samples)))
	if err != nil {
		return nil, unavailable(err, "failed to generate topic label")
	}
	if resp == nil || len(resp.Texts) == 0 {
		return nil, goerr.Wrap(model.ErrLabelingUnavailable, "empty LLM response")
	}

	var parsed llmResponse
	if err := json.Unmarshal([]byte(resp.Texts[0]), &parsed); err != nil {
		return nil, unavailable(err, "failed to parse LLM response", goerr.V("response", resp.Texts[0]))
	}
	if strings.TrimSpace(parsed.Name) == "" {
		return nil, goerr.Wrap(model.ErrLabelingUnavailable, "LLM returned empty topic name", goerr.V("response", resp.Texts[0]))
	}

	return &model.TopicLabel{
		Name:        strings.TrimSpace(parsed.Name),
		Description: strings.TrimSpace(parsed.Description),
	}, nil
}

func unavailable(err error, msg string, opts ...goerr.Option) error {
	return goerr.Wrap(fmt.Errorf("%w: %w", model.ErrLabelingUnavailable, err), msg, opts...)
}

func buildPrompt(terms []string, samples []string) string {
	var sb strings.Builder

	sb.WriteString("You are analyzing topics from a \"wishing well\" app where people submit wishes.\n\n")
	sb.WriteString("Given the following information about a topic:\n")
	fmt.Fprintf(&sb, "- Top words: %s\n", strings.Join(terms[:min(maxPromptTerms, len(terms))], ", "))
	sb.WriteString("- Sample wishes from this topic:\n")
	for _, s := range samples[:min(maxPromptSamples, len(samples))] {
		fmt.Fprintf(&sb, "  - %s\n", s)
	}
	sb.WriteString("\nGenerate a concise, human-readable label and description for this topic.\n")
	sb.WriteString("The name should be short and catchy (3-6 words), like a category in a wish catalog, ")
	sb.WriteString("for example \"World Peace & Harmony\", \"Financial Freedom\" or \"Travel & Adventure\".\n")
	sb.WriteString("The description explains what kinds of wishes belong here in 1-2 sentences.\n")

	return sb.String()
}

func responseSchema() *gollem.Parameter {
	return &gollem.Parameter{
		Title:       "TopicLabel",
		Description: "Human readable label of a topic",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"name": {
				Type:        gollem.TypeString,
				Description: "Short, catchy topic name (3-6 words)",
				Required:    true,
			},
			"description": {
				Type:        gollem.TypeString,
				Description: "Brief description of what kinds of wishes belong here (1-2 sentences)",
				Required:    true,
			},
		},
	}
}
