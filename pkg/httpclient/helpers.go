package httpclient

import (
	"context"
	"io"
	"time"

	"github.com/tilinna/clock"
)

// interruptableSleep will sleep for the specified duration,
// or until the context is cancelled, whichever comes first.
func interruptableSleep(ctx context.Context, d time.Duration) bool {
	timer := clock.NewTimer(ctx, d)
	select {
	case <-ctx.Done():
		timer.Stop()
		return true
	case <-timer.C:
		return false
	}
}

func consumeAndClose(r io.ReadCloser) {
	_, _ = io.Copy(io.Discard, r)
	_ = r.Close()
}
