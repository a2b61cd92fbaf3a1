package jobs

import (
	"context"
	"log/slog"
	"time"
)

type VoucherWindowSyncer interface {
	SyncWindows(ctx context.Context) (int64, error)
}

// VoucherWindowWorker keeps is_active in step with each voucher's start and
// end dates.
type VoucherWindowWorker struct {
	BaseWorker
	vouchers VoucherWindowSyncer
}

func NewVoucherWindowWorker(vouchers VoucherWindowSyncer, interval time.Duration, log *slog.Logger) *VoucherWindowWorker {
	return &VoucherWindowWorker{
		BaseWorker: NewBaseWorker("voucher-window", interval, log),
		vouchers:   vouchers,
	}
}

func (w *VoucherWindowWorker) Start(ctx context.Context) {
	w.Poll(ctx, func(ctx context.Context) error {
		n, err := w.vouchers.SyncWindows(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			w.log.InfoContext(ctx, "voucher windows synced", "changed", n)
		}
		return nil
	})
}
