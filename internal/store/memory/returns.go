package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/uteshop/uteshop-api/internal/core"
)

type ReturnStore struct {
	mu      sync.RWMutex
	returns map[string]core.ReturnRequest
}

func NewReturnStore() *ReturnStore {
	return &ReturnStore{returns: make(map[string]core.ReturnRequest)}
}

func (s *ReturnStore) Create(_ context.Context, r core.ReturnRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openFor(r.OrderID) {
		return core.ErrReturnExists
	}
	s.returns[r.ID] = r
	return nil
}

func (s *ReturnStore) openFor(orderID string) bool {
	for _, r := range s.returns {
		if r.OrderID == orderID && r.Status != core.ReturnRejected {
			return true
		}
	}
	return false
}

func (s *ReturnStore) Get(_ context.Context, id string) (core.ReturnRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.returns[id]
	if !ok {
		return core.ReturnRequest{}, core.ErrReturnNotFound
	}
	return r, nil
}

func (s *ReturnStore) ExistsOpenForOrder(_ context.Context, orderID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.openFor(orderID), nil
}

func (s *ReturnStore) List(_ context.Context, f core.ReturnFilter) ([]core.ReturnRequest, int64, error) {
	s.mu.RLock()
	var out []core.ReturnRequest
	for _, r := range values(s.returns) {
		if (f.UserID == "" || r.UserID == f.UserID) && (f.Status == "" || r.Status == f.Status) {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b core.ReturnRequest) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return paginate(out, f.Page), int64(len(out)), nil
}

func (s *ReturnStore) Decide(_ context.Context, id string, d core.ReturnDecision) (core.ReturnRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.returns[id]
	if !ok {
		return core.ReturnRequest{}, core.ErrReturnNotFound
	}
	if r.Status != core.ReturnPending {
		return core.ReturnRequest{}, core.ErrReturnNotPending
	}
	r.Status = d.Status
	r.AdminNote = d.AdminNote
	r.PointsAwarded = d.PointsAwarded
	r.ProcessedBy = d.ProcessedBy
	r.ProcessedAt = &d.At
	r.UpdatedAt = d.At
	s.returns[id] = r
	return r, nil
}

func (s *ReturnStore) Reopen(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.returns[id]
	if !ok {
		return core.ErrReturnNotFound
	}
	r.Status = core.ReturnPending
	r.AdminNote = ""
	r.PointsAwarded = 0
	r.ProcessedBy = ""
	r.ProcessedAt = nil
	s.returns[id] = r
	return nil
}

func (s *ReturnStore) Stats(_ context.Context) (core.ReturnStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := core.ReturnStats{ByStatus: map[core.ReturnStatus]int64{
		core.ReturnPending: 0, core.ReturnApproved: 0, core.ReturnRejected: 0,
	}}
	for _, r := range s.returns {
		st.Total++
		st.ByStatus[r.Status]++
		if r.Status == core.ReturnApproved {
			st.TotalRefunded += r.RefundAmount
			st.PointsAwarded += r.PointsAwarded
		}
	}
	return st, nil
}
