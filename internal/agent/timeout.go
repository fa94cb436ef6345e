package agent

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrWorkerTimeout is returned when a worker exceeds its per-call timeout.
var ErrWorkerTimeout = errors.New("worker timed out")

// timedWorker bounds each Execute call. A timeout surfaces as an ordinary
// worker error so callers isolate it like any other failure.
type timedWorker struct {
	Worker
	timeout time.Duration
}

// Execute runs the wrapped worker under a deadline.
func (w *timedWorker) Execute(ctx context.Context, instructions string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := w.Worker.Execute(ctx, instructions)
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		if r.err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s: %v", ErrWorkerTimeout, w.timeout, r.err)
		}
		return r.out, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %s", ErrWorkerTimeout, w.timeout)
		}
		return "", ctx.Err()
	}
}

// Timeout returns the configured bound.
func (w *timedWorker) Timeout() time.Duration {
	return w.timeout
}
