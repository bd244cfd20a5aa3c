package moderation

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

const defaultModelName = "gemini"

// Moderator classifies wish submissions with an LLM before they are stored
type Moderator struct {
	llmClient gollem.LLMClient
	modelName string
}

var _ interfaces.Moderator = &Moderator{}

type Option func(*Moderator)

// WithModelName sets the name recorded on rejected wishes
func WithModelName(name string) Option {
	return func(m *Moderator) {
		if name != "" {
			m.modelName = name
		}
	}
}

func New(llmClient gollem.LLMClient, opts ...Option) (*Moderator, error) {
	if llmClient == nil {
		return nil, goerr.New("LLM client is required")
	}
	m := &Moderator{llmClient: llmClient, modelName: defaultModelName}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

type llmResponse struct {
	Allowed    bool     `json:"allowed"`
	Categories []string `json:"categories"`
}

// Check returns an error when the model could not decide. Callers must treat
// that as a rejection.
func (m *Moderator) Check(ctx context.Context, text string) (*model.ModerationResult, error) {
	session, err := m.llmClient.NewSession(ctx,
		gollem.WithSessionContentType(gollem.ContentTypeJSON),
		gollem.WithSessionResponseSchema(responseSchema()),
		gollem.WithSessionSystemPrompt(systemPrompt),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create LLM session")
	}

	resp, err := session.GenerateContent(ctx, gollem.Text(text))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to moderate content")
	}
	if resp == nil || len(resp.Texts) == 0 {
		return nil, goerr.New("empty moderation response")
	}

	var parsed llmResponse
	if err := json.Unmarshal([]byte(resp.Texts[0]), &parsed); err != nil {
		return nil, goerr.Wrap(err, "failed to parse moderation response", goerr.V("response", resp.Texts[0]))
	}

	result := &model.ModerationResult{Allowed: parsed.Allowed, Model: m.modelName}
	if !parsed.Allowed {
		categories := parsed.Categories
		if len(categories) == 0 {
			categories = []string{"policy"}
		}
		result.Reason = fmt.Sprintf("Content flagged for: %s", strings.Join(categories, ", "))
	}
	return result, nil
}

// ModelName returns the name recorded on rejected wishes
func (m *Moderator) ModelName() string {
	return m.modelName
}

const systemPrompt = `You moderate anonymous wishes submitted to a public "wishing well".
Decide whether the wish can be shown publicly. Reject content that contains
harassment, hate, threats, sexual content, self-harm encouragement or
personal data of others. Ordinary personal wishes, including sad or
ambitious ones, are allowed. When rejecting, list the violated categories.`

func responseSchema() *gollem.Parameter {
	return &gollem.Parameter{
		Title:       "ModerationResult",
		Description: "Moderation decision for a wish",
		Type:        gollem.TypeObject,
		Properties: map[string]*gollem.Parameter{
			"allowed": {
				Type:        gollem.TypeBoolean,
				Description: "true when the wish may be published",
				Required:    true,
			},
			"categories": {
				Type:        gollem.TypeArray,
				Description: "Violated categories, empty when allowed",
				Items: &gollem.Parameter{
					Type: gollem.TypeString,
				},
			},
		},
	}
}
