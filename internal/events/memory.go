package events

import (
	"context"
	"log/slog"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/platform/metrics"
)

// MemoryBufferSize bounds the in-process queue.
const MemoryBufferSize = 1024

// MemoryBus queues events on a channel drained by Run.
type MemoryBus struct {
	ch  chan core.Event
	d   *Dispatcher
	log *slog.Logger
}

func NewMemoryBus(d *Dispatcher, log *slog.Logger) *MemoryBus {
	return newMemoryBus(d, log, MemoryBufferSize)
}

func newMemoryBus(d *Dispatcher, log *slog.Logger, size int) *MemoryBus {
	if log == nil {
		log = slog.Default()
	}
	return &MemoryBus{ch: make(chan core.Event, size), d: d, log: log.With("bus", "memory")}
}

var _ core.EventPublisher = (*MemoryBus)(nil)

// Publish never blocks. When the buffer is full the event is dropped.
func (b *MemoryBus) Publish(ctx context.Context, e core.Event) error {
	select {
	case b.ch <- e:
		metrics.EventsPublished.WithLabelValues(string(e.Type), "memory").Inc()
	default:
		metrics.EventsDropped.WithLabelValues(string(e.Type)).Inc()
		b.log.WarnContext(ctx, "event buffer full, dropping event", "type", e.Type, "key", e.Key)
	}
	return nil
}

// Run dispatches queued events until ctx is cancelled. Handlers get a
// context detached from cancellation so shutdown does not abort them midway.
func (b *MemoryBus) Run(ctx context.Context) {
	hctx := context.WithoutCancel(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-b.ch:
			if err := b.d.Dispatch(hctx, e); err != nil {
				b.log.ErrorContext(hctx, "event handler failed", "type", e.Type, "key", e.Key, "err", err)
			}
		}
	}
}
