package labeling_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gollem/llm/gemini"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/service/labeling"
)

type mockSession struct {
	generateContentFn func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error)
}

func (s *mockSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	return s.generateContentFn(ctx, input...)
}

func (s *mockSession) Generate(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
	return s.generateContentFn(ctx, input...)
}

func (s *mockSession) Stream(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *mockSession) GenerateStream(ctx context.Context, input ...gollem.Input) (<-chan *gollem.Response, error) {
	return nil, nil
}

func (s *mockSession) History() (*gollem.History, error) {
	return nil, nil
}

func (s *mockSession) AppendHistory(*gollem.History) error {
	return nil
}

func (s *mockSession) CountToken(ctx context.Context, input ...gollem.Input) (int, error) {
	return 0, nil
}

type mockLLMClient struct {
	session    *mockSession
	sessionErr error
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	if c.sessionErr != nil {
		return nil, c.sessionErr
	}
	return c.session, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return nil, nil
}

func respond(text string) *mockLLMClient {
	return &mockLLMClient{session: &mockSession{
		generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
			return &gollem.Response{Texts: []string{text}}, nil
		},
	}}
}

func TestLabeler_Label(t *testing.T) {
	var prompt string
	client := &mockLLMClient{session: &mockSession{
		generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
			if text, ok := input[0].(gollem.Text); ok {
				prompt = string(text)
			}
			return &gollem.Response{Texts: []string{`{"name":" Health & Longevity ","description":"Wishes about staying healthy."}`}}, nil
		},
	}}

	l, err := labeling.New(client)
	gt.NoError(t, err).Required()

	label, err := l.Label(t.Context(), []string{"health", "doctor"}, []string{"I wish to stay healthy"})
	gt.NoError(t, err).Required()
	gt.Value(t, label.Name).Equal("Health & Longevity")
	gt.Value(t, label.Description).Equal("Wishes about staying healthy.")

	gt.String(t, prompt).Contains("health, doctor")
	gt.String(t, prompt).Contains("I wish to stay healthy")
}

func TestLabeler_Unavailable(t *testing.T) {
	testCases := map[string]*mockLLMClient{
		"session error": {sessionErr: errors.New("quota")},
		"generate error": {session: &mockSession{
			generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
				return nil, errors.New("timeout")
			},
		}},
		"no texts": {session: &mockSession{
			generateContentFn: func(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
				return &gollem.Response{}, nil
			},
		}},
		"invalid json": respond("not json"),
		"empty name":   respond(`{"name":"","description":"x"}`),
	}

	for name, client := range testCases {
		t.Run(name, func(t *testing.T) {
			l, err := labeling.New(client)
			gt.NoError(t, err).Required()

			_, err = l.Label(t.Context(), []string{"a"}, nil)
			gt.Error(t, err).Is(model.ErrLabelingUnavailable)
		})
	}
}

func TestLabeler_RequiresClient(t *testing.T) {
	_, err := labeling.New(nil)
	gt.Error(t, err)
}

func TestLabeler_WithRealGemini(t *testing.T) {
	projectID := os.Getenv("TEST_GEMINI_PROJECT")
	if projectID == "" {
		t.Skip("TEST_GEMINI_PROJECT not set")
	}
	location := os.Getenv("TEST_GEMINI_LOCATION")
	if location == "" {
		t.Skip("TEST_GEMINI_LOCATION not set")
	}

	ctx := context.Background()
	client, err := gemini.New(ctx, projectID, location)
	gt.NoError(t, err).Required()

	l, err := labeling.New(client)
	gt.NoError(t, err).Required()

	label, err := l.Label(ctx,
		[]string{"travel", "japan", "beach", "trip"},
		[]string{"I wish to travel to Japan", "A beach trip with my family"},
	)
	gt.NoError(t, err).Required()
	gt.String(t, label.Name).NotEqual("")
}

func TestResponseSchema(t *testing.T) {
	schema := labeling.ResponseSchema()
	gt.Value(t, schema.Type).Equal(gollem.TypeObject)
	for _, name := range []string{"name", "description"} {
		prop, ok := schema.Properties[name]
		if !ok {
			t.Fatalf("property %q is missing", name)
		}
		gt.Bool(t, prop.Required).True()
		gt.Value(t, prop.Type).Equal(gollem.TypeString)
	}
}
