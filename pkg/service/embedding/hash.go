package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultHashDimension is the vector size of the hashing backend
const DefaultHashDimension = 256

// hashBackend embeds texts by signed feature hashing of words and character
// trigrams. It needs no model files and is deterministic, which makes it the
// development and test backend.
type hashBackend struct {
	dimension int
}

// NewHashLoader returns a Loader for the local hashing backend
func NewHashLoader(dimension int) Loader {
	return func(ctx context.Context) (Backend, error) {
		if dimension <= 0 {
			dimension = DefaultHashDimension
		}
		return &hashBackend{dimension: dimension}, nil
	}
}

func (b *hashBackend) Name() string {
	return "hash"
}

func (b *hashBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = b.embed(text)
	}
	return vectors, nil
}

func (b *hashBackend) embed(text string) []float32 {
	v := make([]float32, b.dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	for _, w := range words {
		b.add(v, "w:"+w, 1.0)
		padded := []rune(" " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			b.add(v, "c:"+string(padded[i:i+3]), 0.5)
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

func (b *hashBackend) add(v []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(b.dimension))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	v[idx] += weight
}
