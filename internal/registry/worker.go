package registry

import (
	"context"
	"sync/atomic"
	"time"
)

// worker performs a command's simulated work. Commands reference it weakly,
// so the owning entry must keep it reachable.
type worker struct {
	name     string
	duration time.Duration
	runs     atomic.Int64

	// scope opens a progress scope around each run and returns its release
	// func. nil when the command does not show progress.
	scope func() (release func())
}

// Run is the synchronous action.
func (w *worker) Run() {
	_ = w.work(context.Background())
}

// RunAsync is the asynchronous action.
func (w *worker) RunAsync(ctx context.Context) error {
	return w.work(ctx)
}

func (w *worker) work(ctx context.Context) error {
	if w.scope != nil {
		defer w.scope()()
	}
	w.runs.Add(1)

	if w.duration <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(w.duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
