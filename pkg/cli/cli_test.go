package cli_test

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/wishwell/pkg/cli"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/domain/types"
	"github.com/secmon-lab/wishwell/pkg/repository/memory"
	"github.com/secmon-lab/wishwell/pkg/service/embedding"
	"github.com/secmon-lab/wishwell/pkg/service/normalizer"
	"github.com/secmon-lab/wishwell/pkg/service/worker"
	"github.com/secmon-lab/wishwell/pkg/usecase"
)

func baseArgs(command string, extra ...string) []string {
	args := []string{"wishwell", "--log-output", "stderr", command,
		"--repository-backend", "memory",
		"--skip-language-detection",
	}
	return append(args, extra...)
}

func TestRun_SeedCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wishes.txt")
	gt.NoError(t, os.WriteFile(path, []byte("see the ocean\n\n# comment\nlearn the violin\n"), 0600)).Required()

	gt.NoError(t, cli.Run(context.Background(), baseArgs("seed", "--file", path), "test"))
}

func TestRun_SeedCommand_MissingFile(t *testing.T) {
	err := cli.Run(context.Background(), baseArgs("seed", "--file", filepath.Join(t.TempDir(), "none.txt")), "test")
	gt.Error(t, err)
}

func TestRun_TrainCommand_NoWishes(t *testing.T) {
	gt.NoError(t, cli.Run(context.Background(), baseArgs("train"), "test"))
}

func TestRun_TrainCommand_InvalidConfig(t *testing.T) {
	err := cli.Run(context.Background(), baseArgs("train", "--training-min-cluster-size", "1"), "test")
	gt.Error(t, err).Is(model.ErrInvalidTrainingConfig)
}

func TestRun_StatusCommand(t *testing.T) {
	gt.NoError(t, cli.Run(context.Background(), []string{"wishwell", "--log-output", "stderr", "status", "--repository-backend", "memory"}, "test"))
}

func TestRun_MigrateCommand_MemoryBackend(t *testing.T) {
	err := cli.Run(context.Background(), []string{"wishwell", "--log-output", "stderr", "migrate", "--repository-backend", "memory"}, "test")
	gt.Error(t, err)
}

func TestSeedWishes(t *testing.T) {
	repo := memory.New()
	n, err := normalizer.New(normalizer.WithoutLanguageDetection())
	gt.NoError(t, err).Required()
	moderator := moderatorFunc(func(ctx context.Context, text string) (*model.ModerationResult, error) {
		return &model.ModerationResult{Allowed: !strings.Contains(text, "scam"), Reason: "fraud", Model: "stub"}, nil
	})
	uc := usecase.New(repo, n, embedding.New("hash", embedding.NewHashLoader(16)), usecase.WithModerator(moderator))

	src := strings.NewReader(strings.Join([]string{
		"a quiet morning",
		"",
		"join my crypto scam",
		strings.Repeat("x", model.MaxWishLength+1),
		"a warm dinner with friends",
	}, "\n"))

	created, rejected, invalid, err := cli.SeedWishes(context.Background(), uc.Wish, src)
	gt.NoError(t, err).Required()
	gt.Value(t, created).Equal(2)
	gt.Value(t, rejected).Equal(1)
	gt.Value(t, invalid).Equal(1)

	wishes, err := repo.Wish().ListActive(context.Background())
	gt.NoError(t, err).Required()
	gt.Array(t, wishes).Length(2)
}

type moderatorFunc func(ctx context.Context, text string) (*model.ModerationResult, error)

func (f moderatorFunc) Check(ctx context.Context, text string) (*model.ModerationResult, error) {
	return f(ctx, text)
}

func TestPrintStatus(t *testing.T) {
	color.NoColor = true
	ctx := context.Background()
	repo := memory.New()

	var buf bytes.Buffer
	gt.NoError(t, cli.PrintStatus(ctx, &buf, repo, 10)).Required()
	gt.String(t, buf.String()).Contains("no training runs yet")

	_, err := repo.Wish().Create(ctx, &model.Wish{Content: "a new bike"})
	gt.NoError(t, err).Required()
	run, err := repo.ModelUpdate().Begin(ctx, &model.ModelUpdate{
		Trigger:       types.TriggerCLI,
		Configuration: model.DefaultTrainingConfig(),
	}, time.Hour)
	gt.NoError(t, err).Required()
	gt.NoError(t, repo.ModelUpdate().Fail(ctx, run.ID, "embedding backend unavailable", time.Now())).Required()

	buf.Reset()
	gt.NoError(t, cli.PrintStatus(ctx, &buf, repo, 10)).Required()
	out := buf.String()
	gt.String(t, out).Contains("total: 1  unassigned: 1  active topics: 0")
	gt.String(t, out).Contains("v1")
	gt.String(t, out).Contains("failed")
	gt.String(t, out).Contains("embedding backend unavailable")
}

func TestGetIndexConfig(t *testing.T) {
	cfg := cli.GetIndexConfig("dev")
	gt.Array(t, cfg.Collections).Length(3).Required()
	gt.Value(t, cfg.Collections[0].Name).Equal("dev_model_updates")
	gt.Value(t, cli.GetIndexConfig("").Collections[0].Name).Equal("model_updates")
}

// stallingEmbedder blocks until its context is cancelled
type stallingEmbedder struct {
	entered chan struct{}
}

func (e *stallingEmbedder) Name() string { return "stalling" }

func (e *stallingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	close(e.entered)
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestStopTraining(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	for i := range 12 {
		_, err := repo.Wish().Create(ctx, &model.Wish{Content: fmt.Sprintf("I wish to travel to city number %d", i)})
		gt.NoError(t, err).Required()
	}

	norm, err := normalizer.New(normalizer.WithoutLanguageDetection())
	gt.NoError(t, err).Required()
	embedder := &stallingEmbedder{entered: make(chan struct{})}
	training := usecase.NewTrainingUseCase(repo, norm, embedder)

	w := worker.NewTrainingWorker(training, "@hourly", worker.WithRunOnStart())
	gt.NoError(t, w.Start(ctx)).Required()

	select {
	case <-embedder.entered:
	case <-time.After(10 * time.Second):
		t.Fatal("scheduled training did not reach the embedding stage")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	gt.NoError(t, cli.StopTraining(stopCtx, training, w))
	gt.Bool(t, training.IsRunning()).False()

	latest, err := repo.ModelUpdate().GetLatest(ctx)
	gt.NoError(t, err).Required()
	gt.Value(t, latest.Status).Equal(types.RunStatusFailed)
	gt.Value(t, latest.Trigger).Equal(types.TriggerSchedule)
}
