package embedding

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gollem"
)

// DefaultLLMDimension is the output dimension requested from LLM embedding APIs
const DefaultLLMDimension = 768

type llmBackend struct {
	client    gollem.LLMClient
	dimension int
}

// NewLLMLoader returns a Loader that embeds through the LLM client
func NewLLMLoader(client gollem.LLMClient, dimension int) Loader {
	return func(ctx context.Context) (Backend, error) {
		if client == nil {
			return nil, goerr.New("LLM client is required for llm embedding backend")
		}
		if dimension <= 0 {
			dimension = DefaultLLMDimension
		}
		return &llmBackend{client: client, dimension: dimension}, nil
	}
}

func (b *llmBackend) Name() string {
	return "llm"
}

func (b *llmBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings, err := b.client.GenerateEmbedding(ctx, b.dimension, texts)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to generate embedding", goerr.V("count", len(texts)))
	}

	vectors := make([][]float32, len(embeddings))
	for i, e := range embeddings {
		v := make([]float32, len(e))
		for j, x := range e {
			v[j] = float32(x)
		}
		vectors[i] = v
	}
	return vectors, nil
}
