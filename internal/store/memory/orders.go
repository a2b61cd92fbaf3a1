package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/uteshop/uteshop-api/internal/core"
)

type OrderStore struct {
	mu      sync.RWMutex
	orders  map[string]core.Order
	numbers map[int]int64
}

func NewOrderStore() *OrderStore {
	return &OrderStore{orders: make(map[string]core.Order), numbers: make(map[int]int64)}
}

func cloneOrder(o core.Order) core.Order {
	o.Items = slices.Clone(o.Items)
	o.History = slices.Clone(o.History)
	return o
}

func (s *OrderStore) Create(_ context.Context, o core.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return fmt.Errorf("%w: order %s exists", core.ErrConflict, o.ID)
	}
	s.orders[o.ID] = cloneOrder(o)
	return nil
}

func (s *OrderStore) Get(_ context.Context, id string) (core.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return core.Order{}, core.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (s *OrderStore) Transition(_ context.Context, id string, from core.OrderStatus, t core.OrderTransition) (core.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return core.Order{}, core.ErrOrderNotFound
	}
	if o.Status != from {
		return core.Order{}, core.ErrOrderStatusChanged
	}
	o = cloneOrder(o)
	o.Status = t.To
	o.History = append(o.History, core.StatusChange{Status: t.To, At: t.At, Note: t.Note})
	if t.PaymentStatus != "" {
		o.PaymentStatus = t.PaymentStatus
	}
	switch t.To {
	case core.OrderDelivered:
		o.DeliveredAt = &t.At
	case core.OrderCancelled:
		o.CancelledAt = &t.At
	}
	o.UpdatedAt = t.At
	s.orders[id] = o
	return cloneOrder(o), nil
}

func (s *OrderStore) SetPaymentStatus(_ context.Context, id string, ps core.PaymentStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return core.ErrOrderNotFound
	}
	o.PaymentStatus = ps
	o.UpdatedAt = at
	s.orders[id] = o
	return nil
}

func (s *OrderStore) filter(f core.OrderFilter) []core.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Order
	for _, o := range values(s.orders) {
		switch {
		case f.UserID != "" && o.UserID != f.UserID:
		case f.Status != "" && o.Status != f.Status:
		case f.PaymentStatus != "" && o.PaymentStatus != f.PaymentStatus:
		case f.PaymentMethod != "" && o.PaymentMethod != f.PaymentMethod:
		case f.Search != "" && !strings.Contains(strings.ToUpper(o.Number), strings.ToUpper(strings.TrimSpace(f.Search))):
		case f.CreatedGTE != nil && o.CreatedAt.Before(*f.CreatedGTE):
		case f.CreatedLT != nil && !o.CreatedAt.Before(*f.CreatedLT):
		default:
			out = append(out, cloneOrder(o))
		}
	}
	return out
}

func (s *OrderStore) List(_ context.Context, f core.OrderFilter) ([]core.Order, int64, error) {
	out := s.filter(f)
	slices.SortStableFunc(out, func(a, b core.Order) int {
		switch f.Sort {
		case core.OrderSortOldest:
			return a.CreatedAt.Compare(b.CreatedAt)
		case core.OrderSortTotalDesc:
			return cmp.Compare(b.TotalPrice, a.TotalPrice)
		case core.OrderSortTotalAsc:
			return cmp.Compare(a.TotalPrice, b.TotalPrice)
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return paginate(out, f.Page), int64(len(out)), nil
}

func (s *OrderStore) Count(_ context.Context, f core.OrderFilter) (int64, error) {
	return int64(len(s.filter(f))), nil
}

func (s *OrderStore) Totals(_ context.Context, f core.OrderFilter) (core.OrderTotals, error) {
	var t core.OrderTotals
	for _, o := range s.filter(f) {
		t.Count++
		t.Revenue += o.TotalPrice
	}
	return t, nil
}

func (s *OrderStore) CountByStatus(_ context.Context, f core.OrderFilter) (map[core.OrderStatus]int64, error) {
	out := make(map[core.OrderStatus]int64)
	for _, o := range s.filter(f) {
		out[o.Status]++
	}
	return out, nil
}

func (s *OrderStore) FindPendingBefore(_ context.Context, before time.Time, limit int) ([]core.Order, error) {
	out := s.filter(core.OrderFilter{Status: core.OrderPending, CreatedLT: &before})
	slices.SortStableFunc(out, func(a, b core.Order) int { return a.CreatedAt.Compare(b.CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *OrderStore) NextNumber(_ context.Context, year int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.numbers[year]++
	return s.numbers[year], nil
}
