package safe

import (
	"context"
	"io"
	"log/slog"

	"github.com/secmon-lab/wishwell/pkg/utils/logging"
)

// Close closes c and logs a failure. nil closers are ignored.
func Close(ctx context.Context, c io.Closer) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logging.From(ctx).Warn("failed to close", slog.Any("error", err))
	}
}

// Write writes data to w and logs a failure. Used for response bodies after
// the status has been committed.
func Write(ctx context.Context, w io.Writer, data []byte) {
	if w == nil {
		return
	}
	if _, err := w.Write(data); err != nil {
		logging.From(ctx).Warn("failed to write", slog.Any("error", err), slog.Int("size", len(data)))
	}
}
