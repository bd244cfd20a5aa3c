package normalizer_test

import (
	"strings"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/service/normalizer"
)

func newPlainNormalizer(t *testing.T, opts ...normalizer.Option) *normalizer.Normalizer {
	t.Helper()
	opts = append([]normalizer.Option{
		normalizer.WithoutLanguageDetection(),
		normalizer.WithoutLemmatization(),
	}, opts...)
	n, err := normalizer.New(opts...)
	gt.NoError(t, err).Required()
	return n
}

func TestNormalize(t *testing.T) {
	n := newPlainNormalizer(t)

	tests := []struct {
		name       string
		input      string
		tokens     []string
		degenerate bool
	}{
		{
			name:   "lower-cases and strips punctuation and stopwords",
			input:  "I wish to Travel to JAPAN!!!",
			tokens: []string{"travel", "japan"},
		},
		{
			name:   "folds full-width characters",
			input:  "ＴＲＡＶＥＬ ａｂｒｏａｄ",
			tokens: []string{"travel", "abroad"},
		},
		{
			name:   "drops numbers and single letters",
			input:  "Run 5 km a day, x",
			tokens: []string{"run", "km"},
		},
		{
			name:       "only stopwords is degenerate",
			input:      "I wish I could...",
			tokens:     nil,
			degenerate: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Normalize(tt.input)
			gt.NoError(t, err).Required()
			gt.Value(t, got.Original).Equal(tt.input)
			gt.Number(t, len(got.Tokens)).Equal(len(tt.tokens))
			for i := range tt.tokens {
				gt.Value(t, got.Tokens[i]).Equal(tt.tokens[i])
			}
			if tt.degenerate {
				gt.B(t, got.Degenerate).True()
			} else {
				gt.B(t, got.Degenerate).False()
			}
		})
	}
}

func TestNormalize_Errors(t *testing.T) {
	n := newPlainNormalizer(t, normalizer.WithMaxLength(10))

	t.Run("invalid UTF-8", func(t *testing.T) {
		_, err := n.Normalize("travel \xff\xfe")
		gt.Error(t, err).Is(model.ErrNormalization)
	})

	t.Run("blank", func(t *testing.T) {
		_, err := n.Normalize("   \t")
		gt.Error(t, err).Is(model.ErrNormalization)
	})

	t.Run("too long", func(t *testing.T) {
		_, err := n.Normalize(strings.Repeat("a", 11))
		gt.Error(t, err).Is(model.ErrNormalization)
	})
}

func TestNormalize_Deterministic(t *testing.T) {
	n := newPlainNormalizer(t)
	a, err := n.Normalize("Learn to play the guitar and the piano")
	gt.NoError(t, err).Required()
	b, err := n.Normalize("Learn to play the guitar and the piano")
	gt.NoError(t, err).Required()
	gt.Value(t, a.Tokens).Equal(b.Tokens)
}

func TestTokens_Lazy(t *testing.T) {
	n := newPlainNormalizer(t)

	var first []string
	for token := range n.Tokens("healthy family happy garden") {
		first = append(first, token)
		if len(first) == 2 {
			break
		}
	}
	gt.Value(t, first).Equal([]string{"healthy", "family"})
}

func TestWithStopwords(t *testing.T) {
	n := newPlainNormalizer(t, normalizer.WithStopwords("Garden"))
	got, err := n.Normalize("a big garden")
	gt.NoError(t, err).Required()
	gt.Value(t, got.Tokens).Equal([]string{"big"})
}

func TestNormalize_Lemmatization(t *testing.T) {
	n, err := normalizer.New(normalizer.WithoutLanguageDetection())
	gt.NoError(t, err).Required()

	got, err := n.Normalize("visit many countries")
	gt.NoError(t, err).Required()
	gt.A(t, got.Tokens).Has("country")
}

func TestNormalize_LanguageDetection(t *testing.T) {
	n, err := normalizer.New(normalizer.WithoutLemmatization())
	gt.NoError(t, err).Required()

	german, err := n.Normalize("Ich möchte eines Tages mit meiner Familie nach Japan reisen")
	gt.NoError(t, err).Required()
	gt.Value(t, german.Language).Equal("de")

	short, err := n.Normalize("go ski")
	gt.NoError(t, err).Required()
	gt.Value(t, short.Language).Equal("")
}

func TestNew_RequiresTwoLanguages(t *testing.T) {
	_, err := normalizer.New(normalizer.WithLanguages(), normalizer.WithoutLemmatization())
	gt.Error(t, err)
}
