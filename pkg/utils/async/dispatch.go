package async

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/utils/errutil"
	"github.com/secmon-lab/wishwell/pkg/utils/logging"
)

// Dispatch runs handler in a new goroutine detached from ctx cancellation.
// The logger and values of ctx are preserved. Errors and panics are handled
// by errutil. The returned channel is closed when handler returns, and the
// returned cancel func cancels the context handler runs with.
func Dispatch(ctx context.Context, name string, handler func(ctx context.Context) error) (<-chan struct{}, context.CancelFunc) {
	bgCtx, cancel := context.WithCancel(logging.With(context.WithoutCancel(ctx), logging.From(ctx)))
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				errutil.Handle(bgCtx, goerr.New("panic in async handler",
					goerr.V("name", name),
					goerr.V("panic", fmt.Sprint(r))), "async handler panicked")
			}
		}()

		if err := handler(bgCtx); err != nil {
			errutil.Handle(bgCtx, goerr.Wrap(err, "async handler failed", goerr.V("name", name)), "async handler failed")
		}
	}()

	return done, cancel
}
