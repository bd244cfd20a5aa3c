package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/wishwell/pkg/domain/interfaces"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/service/normalizer"
)

const stubDimension = 8

// blobEmbedder places texts mentioning health or travel on two nearby
// directions and everything else on far away directions.
type blobEmbedder struct {
	mu      sync.Mutex
	calls   int
	outlier func(input string) bool
	err     error
	block   chan struct{}
	entered chan struct{}
}

var _ interfaces.Embedder = &blobEmbedder{}

func (e *blobEmbedder) Name() string { return "blob-stub" }

func (e *blobEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()

	if e.entered != nil {
		close(e.entered)
	}
	if e.block != nil {
		select {
		case <-e.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrEmbedding, e.err)
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = e.embed(text)
	}
	return vectors, nil
}

func (e *blobEmbedder) embed(text string) []float32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	sum := h.Sum32()
	jitter := float64(sum%100)/1000 - 0.05

	v := make([]float32, stubDimension)
	isOutlier := e.outlier != nil && e.outlier(text)
	switch {
	case !isOutlier && strings.Contains(text, "health"):
		angle := 0.4636 + jitter
		v[0], v[1] = float32(math.Cos(angle)), float32(math.Sin(angle))
	case !isOutlier && strings.Contains(text, "travel"):
		angle := -0.4636 + jitter
		v[0], v[1] = float32(math.Cos(angle)), float32(math.Sin(angle))
	default:
		v[0] = -1
		v[2+int(sum%3)] = 1
	}
	return v
}

var healthWishes = []string{
	"I want better health for my grandpa",
	"Good health and a long life for my parents",
	"My grandmother health should improve soon",
	"Mental health support for every student",
	"Health insurance that everyone can afford",
	"I hope my health recovers after surgery",
	"Better health care in rural hospitals",
	"Health and happiness for my newborn son",
	"Stay in good health while running marathons",
	"Free health checkups at the community center",
	"Health for my friends fighting cancer",
	"Keep my dog in good health this winter",
}

var travelWishes = []string{
	"I want to travel to Japan next spring",
	"Travel around Europe by train with friends",
	"Cheap travel tickets to visit my family abroad",
	"Travel to Iceland and watch the northern lights",
	"A long travel adventure across South America",
	"Travel with my kids to the national parks",
	"Honeymoon travel to the Maldives beaches",
	"Travel to Kenya for a wildlife safari",
	"Solo travel through Southeast Asia",
	"Travel by motorcycle along the coast",
	"Business travel that includes a free weekend",
	"Travel to Peru and hike to Machu Picchu",
}

var randomWishes = []string{
	"xqzv plorkt bnmw",
	"zzkt qwpl vrrn",
	"gribble fnord snark",
}

func newTestNormalizer(t *testing.T) *normalizer.Normalizer {
	t.Helper()
	n, err := normalizer.New(normalizer.WithoutLanguageDetection())
	gt.NoError(t, err).Required()
	return n
}

func seedWishes(t *testing.T, repo interfaces.Repository, groups ...[]string) []*model.Wish {
	t.Helper()
	var wishes []*model.Wish
	for _, group := range groups {
		for _, content := range group {
			w, err := repo.Wish().Create(context.Background(), &model.Wish{Content: content})
			gt.NoError(t, err).Required()
			wishes = append(wishes, w)
		}
	}
	return wishes
}

type labelerFunc func(ctx context.Context, terms, samples []string) (*model.TopicLabel, error)

func (f labelerFunc) Label(ctx context.Context, terms, samples []string) (*model.TopicLabel, error) {
	return f(ctx, terms, samples)
}

type recordingNotifier struct {
	mu   sync.Mutex
	runs []*model.ModelUpdate
}

func (n *recordingNotifier) NotifyRun(ctx context.Context, run *model.ModelUpdate) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.runs = append(n.runs, run)
	return nil
}

type recordingArchiver struct {
	points []*model.ProjectionPoint
	err    error
}

func (a *recordingArchiver) ArchiveProjection(ctx context.Context, run *model.ModelUpdate, points []*model.ProjectionPoint) error {
	a.points = points
	return a.err
}

type moderatorFunc func(ctx context.Context, text string) (*model.ModerationResult, error)

func (f moderatorFunc) Check(ctx context.Context, text string) (*model.ModerationResult, error) {
	return f(ctx, text)
}

var errStub = errors.New("stub failure")
