// Package jobs holds the background workers started next to the HTTP server.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/uteshop/uteshop-api/internal/platform/metrics"
)

// Worker is a long-running background loop.
type Worker interface {
	Start(ctx context.Context)
	Name() string
}

// BaseWorker runs one unit of work on a fixed interval.
type BaseWorker struct {
	name     string
	interval time.Duration
	log      *slog.Logger
}

func NewBaseWorker(name string, interval time.Duration, log *slog.Logger) BaseWorker {
	if interval <= 0 {
		interval = time.Second
	}
	return BaseWorker{
		name:     name,
		interval: interval,
		log:      log.With("worker", name),
	}
}

func (w *BaseWorker) Name() string { return w.name }

// Poll runs work once straight away, then on every tick until ctx is done.
// A failed pass is logged and retried on the next tick.
func (w *BaseWorker) Poll(ctx context.Context, work func(context.Context) error) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.InfoContext(ctx, "worker started", "interval", w.interval)
	for {
		w.runOnce(ctx, work)
		select {
		case <-ctx.Done():
			w.log.Info("worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// runOnce reports whether the pass succeeded. Errors caused by shutdown are
// not counted as failures.
func (w *BaseWorker) runOnce(ctx context.Context, work func(context.Context) error) bool {
	if ctx.Err() != nil {
		return true
	}
	if err := work(ctx); err != nil && ctx.Err() == nil {
		metrics.WorkerRuns.WithLabelValues(w.name, "error").Inc()
		w.log.ErrorContext(ctx, "worker pass failed", "err", err)
		return false
	}
	metrics.WorkerRuns.WithLabelValues(w.name, "ok").Inc()
	return true
}

// RunAll starts every worker and blocks until all of them have returned.
func RunAll(ctx context.Context, workers ...Worker) {
	var wg sync.WaitGroup
	for _, w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.Start(ctx)
		}()
	}
	wg.Wait()
}
