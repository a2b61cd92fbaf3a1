package jobs

import (
	"context"
	"log/slog"
	"time"
)

// Consumer pulls one batch of events from a broker and dispatches it.
type Consumer interface {
	Consume(ctx context.Context) error
}

// EventConsumerWorker feeds broker events to the in-process handlers. The
// consumer's own poll wait paces the loop; interval only spaces out retries.
type EventConsumerWorker struct {
	BaseWorker
	consumer Consumer
}

func NewEventConsumerWorker(c Consumer, interval time.Duration, log *slog.Logger) *EventConsumerWorker {
	return &EventConsumerWorker{
		BaseWorker: NewBaseWorker("event-consumer", interval, log),
		consumer:   c,
	}
}

func (w *EventConsumerWorker) Start(ctx context.Context) {
	w.log.InfoContext(ctx, "worker started")
	for ctx.Err() == nil {
		if w.runOnce(ctx, w.consumer.Consume) {
			continue
		}
		select {
		case <-ctx.Done():
		case <-time.After(w.interval):
		}
	}
	w.log.Info("worker stopped")
}
