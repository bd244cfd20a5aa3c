package config_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/wishwell/pkg/cli/config"
	"github.com/secmon-lab/wishwell/pkg/utils/logging"
)

func TestRepository_Configure(t *testing.T) {
	t.Run("memory backend", func(t *testing.T) {
		repo, err := config.NewRepositoryForTest(config.BackendMemory).Configure(context.Background())
		gt.NoError(t, err).Required()
		gt.NoError(t, repo.Close())
	})

	t.Run("firestore requires project", func(t *testing.T) {
		_, err := config.NewRepositoryForTest(config.BackendFirestore).Configure(context.Background())
		gt.Error(t, err).Is(config.ErrMissingOption)
	})

	t.Run("postgres requires DSN", func(t *testing.T) {
		_, err := config.NewRepositoryForTest(config.BackendPostgres).Configure(context.Background())
		gt.Error(t, err).Is(config.ErrMissingOption)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := config.NewRepositoryForTest("mysql").Configure(context.Background())
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})
}

func TestLogger_Configure(t *testing.T) {
	prev := logging.Default()
	defer logging.SetDefault(prev)

	t.Run("json to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.log")
		closer, err := config.NewLoggerForTest("debug", "json", path).Configure()
		gt.NoError(t, err).Required()
		closer()
	})

	t.Run("console to stderr", func(t *testing.T) {
		closer, err := config.NewLoggerForTest("warn", "console", "stderr").Configure()
		gt.NoError(t, err).Required()
		closer()
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := config.NewLoggerForTest("verbose", "json", "stdout").Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := config.NewLoggerForTest("info", "xml", "stdout").Configure()
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})
}

func TestSlack_Configure(t *testing.T) {
	t.Run("disabled without token and channel", func(t *testing.T) {
		notifier, err := config.NewSlackForTest("", "").Configure()
		gt.NoError(t, err)
		gt.Value(t, notifier).Nil()
	})

	t.Run("partial configuration is an error", func(t *testing.T) {
		_, err := config.NewSlackForTest("xoxb-test", "").Configure()
		gt.Error(t, err).Is(config.ErrMissingOption)
	})

	t.Run("configured", func(t *testing.T) {
		notifier, err := config.NewSlackForTest("xoxb-test", "C0123").Configure()
		gt.NoError(t, err).Required()
		gt.Value(t, notifier).NotNil()
	})
}

func TestEmbedding_Configure(t *testing.T) {
	t.Run("hash backend by default", func(t *testing.T) {
		m, err := config.NewEmbeddingForTest("", "").Configure(nil)
		gt.NoError(t, err).Required()
		gt.NoError(t, m.Load(context.Background())).Required()
		defer func() { _ = m.Close() }()

		vectors, err := m.Embed(context.Background(), []string{"world peace"})
		gt.NoError(t, err).Required()
		gt.Array(t, vectors).Length(1)
	})

	t.Run("http backend requires endpoint", func(t *testing.T) {
		_, err := config.NewEmbeddingForTest(config.EmbeddingBackendHTTP, "").Configure(nil)
		gt.Error(t, err).Is(config.ErrMissingOption)
	})

	t.Run("llm backend requires client", func(t *testing.T) {
		_, err := config.NewEmbeddingForTest(config.EmbeddingBackendLLM, "").Configure(nil)
		gt.Error(t, err).Is(config.ErrMissingOption)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := config.NewEmbeddingForTest("onnx", "").Configure(nil)
		gt.Error(t, err).Is(config.ErrInvalidConfig)
	})
}
