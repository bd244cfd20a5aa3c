package logging_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/wishwell/pkg/utils/logging"
)

func TestFrom(t *testing.T) {
	t.Run("falls back to default", func(t *testing.T) {
		gt.Value(t, logging.From(context.Background())).Equal(logging.Default())
	})

	t.Run("returns logger from context", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		ctx := logging.With(context.Background(), logger)

		logging.From(ctx).Info("hello", "run", "r1")
		gt.String(t, buf.String()).Contains(`"run":"r1"`)
	})
}

func TestSetDefault(t *testing.T) {
	prev := logging.Default()
	defer logging.SetDefault(prev)

	var buf bytes.Buffer
	logging.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	logging.Default().Info("training started")
	gt.String(t, buf.String()).Contains("training started")

	logging.SetDefault(nil)
	gt.Value(t, logging.Default()).NotNil()
}
