package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/uteshop/uteshop-api/internal/core"
)

type PointsConfigStore struct {
	mu  sync.RWMutex
	cfg *core.PointsConfig
}

func NewPointsConfigStore() *PointsConfigStore {
	return &PointsConfigStore{}
}

func (s *PointsConfigStore) Get(_ context.Context) (core.PointsConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg == nil {
		return core.DefaultPointsConfig(), nil
	}
	return *s.cfg, nil
}

func (s *PointsConfigStore) Save(_ context.Context, c core.PointsConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = &c
	return nil
}

type PointTxStore struct {
	mu  sync.RWMutex
	txs []core.PointTx
}

func NewPointTxStore() *PointTxStore {
	return &PointTxStore{}
}

func (s *PointTxStore) Create(_ context.Context, tx core.PointTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txs = append(s.txs, tx)
	return nil
}

func (s *PointTxStore) List(_ context.Context, f core.PointTxFilter) ([]core.PointTx, int64, error) {
	s.mu.RLock()
	var out []core.PointTx
	for _, tx := range s.txs {
		if (f.UserID == "" || tx.UserID == f.UserID) && (f.Type == "" || tx.Type == f.Type) {
			out = append(out, tx)
		}
	}
	s.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b core.PointTx) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return paginate(out, f.Page), int64(len(out)), nil
}

func (s *PointTxStore) ExistsForOrder(_ context.Context, orderID string, t core.PointTxType) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.ContainsFunc(s.txs, func(tx core.PointTx) bool {
		return tx.OrderID == orderID && tx.Type == t
	}), nil
}

func (s *PointTxStore) Totals(_ context.Context) (core.PointTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var t core.PointTotals
	for _, tx := range s.txs {
		switch {
		case tx.Type == core.PointsEarned, tx.Type == core.PointsAdjustment && tx.Points > 0:
			t.Issued += tx.Points
		case tx.Type == core.PointsRedeemed:
			t.Redeemed += -tx.Points
		}
	}
	return t, nil
}

func (s *PointTxStore) CountSince(_ context.Context, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, tx := range s.txs {
		if !tx.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (s *PointTxStore) EarnedBetween(_ context.Context, from, to time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for _, tx := range s.txs {
		earned := tx.Type == core.PointsEarned || tx.Type == core.PointsAdjustment
		if earned && tx.Points > 0 && !tx.CreatedAt.Before(from) && tx.CreatedAt.Before(to) {
			n += tx.Points
		}
	}
	return n, nil
}
