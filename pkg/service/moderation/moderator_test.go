package moderation_test

import (
	"context"
	"errors"
	"testing"

	"github.com/m-mizutani/gollem"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/wishwell/pkg/service/moderation"
)

type mockSession struct {
	text string
	err  error
}

func (s *mockSession) GenerateContent(ctx context.Context, input ...gollem.Input) (*gollem.Response, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &gollem.Response{Texts: []string{s.text}}, nil
}

func (s *mockSession) Generate(ctx context.Context, input []gollem.Input, opts ...gollem.GenerateOption) (*gollem.Response, error) {
	return s.GenerateContent(ctx, input...)
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
	session *mockSession
}

func (c *mockLLMClient) NewSession(ctx context.Context, options ...gollem.SessionOption) (gollem.Session, error) {
	return c.session, nil
}

func (c *mockLLMClient) GenerateEmbedding(ctx context.Context, dimension int, input []string) ([][]float64, error) {
	return nil, nil
}

func TestModerator_Check(t *testing.T) {
	t.Run("allowed", func(t *testing.T) {
		m, err := moderation.New(&mockLLMClient{session: &mockSession{text: `{"allowed":true}`}})
		gt.NoError(t, err).Required()

		result, err := m.Check(t.Context(), "I wish for world peace")
		gt.NoError(t, err).Required()
		gt.B(t, result.Allowed).True()
		gt.Value(t, result.Reason).Equal("")
		gt.Value(t, result.Model).Equal("gemini")
	})

	t.Run("flagged with categories", func(t *testing.T) {
		m, err := moderation.New(
			&mockLLMClient{session: &mockSession{text: `{"allowed":false,"categories":["harassment","hate"]}`}},
			moderation.WithModelName("gemini-2.5-flash"),
		)
		gt.NoError(t, err).Required()

		result, err := m.Check(t.Context(), "bad")
		gt.NoError(t, err).Required()
		gt.B(t, result.Allowed).False()
		gt.Value(t, result.Reason).Equal("Content flagged for: harassment, hate")
		gt.Value(t, result.Model).Equal("gemini-2.5-flash")
		gt.Value(t, m.ModelName()).Equal("gemini-2.5-flash")
	})

	t.Run("flagged without categories", func(t *testing.T) {
		m, err := moderation.New(&mockLLMClient{session: &mockSession{text: `{"allowed":false}`}})
		gt.NoError(t, err).Required()

		result, err := m.Check(t.Context(), "bad")
		gt.NoError(t, err).Required()
		gt.Value(t, result.Reason).Equal("Content flagged for: policy")
	})

	t.Run("service error", func(t *testing.T) {
		m, err := moderation.New(&mockLLMClient{session: &mockSession{err: errors.New("unavailable")}})
		gt.NoError(t, err).Required()

		_, err = m.Check(t.Context(), "anything")
		gt.Error(t, err)
	})

	t.Run("broken response", func(t *testing.T) {
		m, err := moderation.New(&mockLLMClient{session: &mockSession{text: "{"}})
		gt.NoError(t, err).Required()

		_, err = m.Check(t.Context(), "anything")
		gt.Error(t, err)
	})
}

func TestResponseSchema(t *testing.T) {
	schema := moderation.ResponseSchema()

	allowed, ok := schema.Properties["allowed"]
	if !ok {
		t.Fatal("property allowed is missing")
	}
	gt.Bool(t, allowed.Required).True()
	gt.Value(t, allowed.Type).Equal(gollem.TypeBoolean)

	categories, ok := schema.Properties["categories"]
	if !ok {
		t.Fatal("property categories is missing")
	}
	gt.Bool(t, categories.Required).False()
	gt.Value(t, categories.Items.Type).Equal(gollem.TypeString)
}
