package topic

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/interfaces"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/domain/types"
	"github.com/secmon-lab/wishwell/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

const fallbackNameTerms = 3

// BuildInput is the clustered corpus of one training run. Texts and the
// cluster result are aligned by index.
type BuildInput struct {
	Texts      []*model.NormalizedText
	Clusters   *model.ClusterResult
	TopTerms   int
	SampleSize int
}

// BuiltTopic is a topic candidate for one non-noise cluster, before it is
// given an identifier by the training run.
type BuiltTopic struct {
	ClusterLabel int
	Terms        []model.TopicTerm
	Label        model.TopicLabel
	LabelSource  types.LabelSource
	Members      []int
}

// Builder turns clusters into topic candidates
type Builder struct {
	labeler     interfaces.Labeler
	timeout     time.Duration
	concurrency int
}

type Option func(*Builder)

// WithLabeler sets the labeling collaborator. Without one every topic gets
// the term based fallback label.
func WithLabeler(labeler interfaces.Labeler) Option {
	return func(b *Builder) {
		b.labeler = labeler
	}
}

// WithLabelTimeout bounds each labeling call
func WithLabelTimeout(d time.Duration) Option {
	return func(b *Builder) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithConcurrency sets how many labeling calls may run at once
func WithConcurrency(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

func New(opts ...Option) *Builder {
	b := &Builder{
		timeout:     model.DefaultLabelTimeout,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build returns one topic per cluster ordered by cluster label. Labeling
// failures are absorbed by the fallback label; only cancellation of ctx and
// scoring errors are returned.
func (b *Builder) Build(ctx context.Context, input BuildInput) ([]*BuiltTopic, error) {
	if input.Clusters == nil {
		return nil, goerr.New("cluster result is required")
	}
	if len(input.Clusters.Labels) != len(input.Texts) {
		return nil, goerr.New("cluster labels and texts are not aligned",
			goerr.V("labels", len(input.Clusters.Labels)),
			goerr.V("texts", len(input.Texts)))
	}

	topics := make([]*BuiltTopic, input.Clusters.ClusterCount)
	classes := make([][]int, input.Clusters.ClusterCount)
	for label := range topics {
		members := input.Clusters.Members(label)
		topics[label] = &BuiltTopic{ClusterLabel: label, Members: members}
		classes[label] = members
	}

	docs := make([]string, len(input.Texts))
	for i, text := range input.Texts {
		if text != nil {
			docs[i] = text.Text()
		}
	}

	terms, err := classTerms(docs, classes, input.TopTerms)
	if err != nil {
		return nil, err
	}
	for i, t := range topics {
		t.Terms = terms[i]
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(b.concurrency)
	for _, t := range topics {
		samples := sampleTexts(input, t.Members, input.SampleSize)
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return goerr.Wrap(err, "topic labeling cancelled")
			}
			t.Label, t.LabelSource = b.label(egCtx, t, samples)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, goerr.Wrap(err, "topic building cancelled")
	}

	return topics, nil
}

func (b *Builder) label(ctx context.Context, t *BuiltTopic, samples []string) (model.TopicLabel, types.LabelSource) {
	termStrings := make([]string, len(t.Terms))
	for i, term := range t.Terms {
		termStrings[i] = term.Term
	}

	if b.labeler == nil {
		return FallbackLabel(t.ClusterLabel, termStrings), types.LabelSourceFallback
	}

	labelCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	label, err := b.labeler.Label(labelCtx, termStrings, samples)
	if err == nil && (label == nil || strings.TrimSpace(label.Name) == "") {
		err = goerr.New("labeler returned empty name")
	}
	if err != nil {
		logging.From(ctx).Warn("topic labeling unavailable, using fallback label",
			slog.Int("cluster", t.ClusterLabel),
			slog.Any("error", err),
		)
		return FallbackLabel(t.ClusterLabel, termStrings), types.LabelSourceFallback
	}

	return model.TopicLabel{
		Name:        strings.TrimSpace(label.Name),
		Description: strings.TrimSpace(label.Description),
	}, types.LabelSourceLabeler
}

// FallbackLabel derives a deterministic label from the top terms
func FallbackLabel(clusterLabel int, terms []string) model.TopicLabel {
	if len(terms) == 0 {
		return model.TopicLabel{
			Name:        fmt.Sprintf("Topic %d", clusterLabel+1),
			Description: "No representative keywords",
		}
	}
	return model.TopicLabel{
		Name:        "Topic: " + strings.Join(terms[:min(fallbackNameTerms, len(terms))], ", "),
		Description: "Keywords: " + strings.Join(terms, ", "),
	}
}

// sampleTexts picks up to n original texts of the most confident members
func sampleTexts(input BuildInput, members []int, n int) []string {
	if n <= 0 {
		return nil
	}
	ordered := slices.Clone(members)
	probs := input.Clusters.Probabilities
	slices.SortStableFunc(ordered, func(a, b int) int {
		var pa, pb float64
		if a < len(probs) {
			pa = probs[a]
		}
		if b < len(probs) {
			pb = probs[b]
		}
		if c := cmp.Compare(pb, pa); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})

	samples := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	for _, idx := range ordered {
		text := input.Texts[idx]
		if text == nil {
			continue
		}
		original := strings.TrimSpace(text.Original)
		if original == "" {
			continue
		}
		if _, ok := seen[original]; ok {
			continue
		}
		seen[original] = struct{}{}
		samples = append(samples, original)
		if len(samples) == n {
			break
		}
	}
	return samples
}
