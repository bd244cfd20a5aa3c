package normalizer

import (
	"iter"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
	"github.com/m-mizutani/goerr/v2"
	lingua "github.com/pemistahl/lingua-go"
	"github.com/secmon-lab/wishwell/pkg/domain/interfaces"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"golang.org/x/text/unicode/norm"
)

const (
	minTokenLength   = 2
	minDetectLetters = 6
)

var defaultLanguages = []lingua.Language{
	lingua.English,
	lingua.Spanish,
	lingua.French,
	lingua.German,
	lingua.Italian,
	lingua.Portuguese,
	lingua.Dutch,
}

// Normalizer converts raw wish text into a deterministic token sequence:
// NFKC folding, lower-casing, punctuation stripping, stopword removal and,
// for English text, lemmatization.
type Normalizer struct {
	maxLength  int
	stopwords  map[string]struct{}
	lemmatizer *golem.Lemmatizer
	detector   lingua.LanguageDetector
	languages  []lingua.Language
	lemmatize  bool
	detect     bool
}

var _ interfaces.Normalizer = &Normalizer{}

type Option func(*Normalizer)

// WithMaxLength sets the maximum accepted number of characters
func WithMaxLength(n int) Option {
	return func(x *Normalizer) {
		x.maxLength = n
	}
}

// WithStopwords adds stopwords to the built-in English list
func WithStopwords(words ...string) Option {
	return func(x *Normalizer) {
		for _, w := range words {
			x.stopwords[strings.ToLower(w)] = struct{}{}
		}
	}
}

// WithLanguages sets the candidate languages of language detection. At least
// two languages are required by the detector.
func WithLanguages(langs ...lingua.Language) Option {
	return func(x *Normalizer) {
		x.languages = langs
	}
}

// WithoutLanguageDetection treats every text as English
func WithoutLanguageDetection() Option {
	return func(x *Normalizer) {
		x.detect = false
	}
}

// WithoutLemmatization keeps tokens in their surface form
func WithoutLemmatization() Option {
	return func(x *Normalizer) {
		x.lemmatize = false
	}
}

// New creates a Normalizer. The English lemmatization dictionary is loaded here.
func New(opts ...Option) (*Normalizer, error) {
	n := &Normalizer{
		maxLength: model.MaxWishLength,
		stopwords: newStopwordSet(englishStopwords),
		languages: defaultLanguages,
		lemmatize: true,
		detect:    true,
	}
	for _, opt := range opts {
		opt(n)
	}

	if n.lemmatize {
		lemmatizer, err := golem.New(en.New())
		if err != nil {
			return nil, goerr.Wrap(err, "failed to load English lemmatizer")
		}
		n.lemmatizer = lemmatizer
	}

	if n.detect {
		if len(n.languages) < 2 {
			return nil, goerr.New("language detection requires at least two languages",
				goerr.V("languages", len(n.languages)))
		}
		n.detector = lingua.NewLanguageDetectorBuilder().
			FromLanguages(n.languages...).
			Build()
	}

	return n, nil
}

// Normalize validates text and returns its normalized tokens. Invalid UTF-8,
// blank and over-long input fail with model.ErrNormalization. A text whose
// tokens are all removed is returned with Degenerate set.
func (n *Normalizer) Normalize(text string) (*model.NormalizedText, error) {
	if !utf8.ValidString(text) {
		return nil, goerr.Wrap(model.ErrNormalization, "invalid UTF-8 sequence")
	}

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, goerr.Wrap(model.ErrNormalization, "text is blank")
	}
	if length := utf8.RuneCountInString(trimmed); n.maxLength > 0 && length > n.maxLength {
		return nil, goerr.Wrap(model.ErrNormalization, "text is too long",
			goerr.V("length", length),
			goerr.V("max_length", n.maxLength))
	}

	folded := fold(trimmed)
	lang := n.detectLanguage(folded)
	tokens := slices.Collect(n.tokens(folded, lang))

	return &model.NormalizedText{
		Original:   text,
		Tokens:     tokens,
		Language:   lang,
		Degenerate: len(tokens) == 0,
	}, nil
}

// Tokens lazily yields normalized tokens of text without validation.
func (n *Normalizer) Tokens(text string) iter.Seq[string] {
	folded := fold(text)
	return n.tokens(folded, n.detectLanguage(folded))
}

func (n *Normalizer) tokens(folded, lang string) iter.Seq[string] {
	english := lang == "" || lang == "en"
	return func(yield func(string) bool) {
		for field := range strings.FieldsFuncSeq(folded, isSeparator) {
			token := n.token(field, english)
			if token == "" {
				continue
			}
			if !yield(token) {
				return
			}
		}
	}
}

func (n *Normalizer) token(field string, english bool) string {
	if utf8.RuneCountInString(field) < minTokenLength || isNumeric(field) {
		return ""
	}
	if n.isStopword(field) {
		return ""
	}
	if english && n.lemmatizer != nil {
		field = n.lemmatizer.Lemma(field)
		if n.isStopword(field) {
			return ""
		}
	}
	return field
}

func (n *Normalizer) isStopword(token string) bool {
	_, ok := n.stopwords[token]
	return ok
}

func (n *Normalizer) detectLanguage(text string) string {
	if n.detector == nil {
		return ""
	}

	letters := 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters < minDetectLetters {
		return ""
	}

	language, ok := n.detector.DetectLanguageOf(text)
	if !ok {
		return ""
	}
	code := strings.ToLower(language.IsoCode639_1().String())
	if len(code) != 2 {
		return ""
	}
	return code
}

func fold(text string) string {
	return strings.ToLower(norm.NFKC.String(text))
}

func isSeparator(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r)
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsNumber(r) {
			return false
		}
	}
	return true
}
