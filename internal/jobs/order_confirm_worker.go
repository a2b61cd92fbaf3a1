package jobs

import (
	"context"
	"log/slog"
	"time"
)

// OrderConfirmer is the part of the order service this worker drives.
type OrderConfirmer interface {
	AutoConfirmPending(ctx context.Context, age time.Duration, limit int) (int, error)
}

// OrderConfirmWorker moves pending orders to processing once they are older
// than the confirmation delay, giving customers a window to cancel.
type OrderConfirmWorker struct {
	BaseWorker
	orders OrderConfirmer
	after  time.Duration
	batch  int
}

func NewOrderConfirmWorker(orders OrderConfirmer, after, interval time.Duration, log *slog.Logger) *OrderConfirmWorker {
	return &OrderConfirmWorker{
		BaseWorker: NewBaseWorker("order-auto-confirm", interval, log),
		orders:     orders,
		after:      after,
		batch:      50,
	}
}

func (w *OrderConfirmWorker) Start(ctx context.Context) {
	w.Poll(ctx, w.confirm)
}

// confirm drains full batches within a single pass.
func (w *OrderConfirmWorker) confirm(ctx context.Context) error {
	total := 0
	for ctx.Err() == nil {
		n, err := w.orders.AutoConfirmPending(ctx, w.after, w.batch)
		total += n
		if err != nil {
			return err
		}
		if n < w.batch {
			break
		}
	}
	if total > 0 {
		w.log.InfoContext(ctx, "orders auto-confirmed", "count", total)
	}
	return nil
}
