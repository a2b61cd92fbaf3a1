package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/uteshop/uteshop-api/internal/core"
)

type VoucherStore struct {
	mu       sync.RWMutex
	vouchers map[string]core.Voucher
}

func NewVoucherStore() *VoucherStore {
	return &VoucherStore{vouchers: make(map[string]core.Voucher)}
}

func (s *VoucherStore) codeTaken(id, code string) bool {
	for otherID, v := range s.vouchers {
		if otherID != id && v.Code == code {
			return true
		}
	}
	return false
}

func (s *VoucherStore) Create(_ context.Context, v core.Voucher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.codeTaken(v.ID, v.Code) {
		return core.ErrVoucherCodeTaken
	}
	s.vouchers[v.ID] = v
	return nil
}

func (s *VoucherStore) Get(_ context.Context, id string) (core.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vouchers[id]
	if !ok {
		return core.Voucher{}, core.ErrVoucherNotFound
	}
	return v, nil
}

func (s *VoucherStore) GetByCode(_ context.Context, code string) (core.Voucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.vouchers {
		if v.Code == code {
			return v, nil
		}
	}
	return core.Voucher{}, core.ErrVoucherNotFound
}

func (s *VoucherStore) Update(_ context.Context, v core.Voucher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.vouchers[v.ID]
	if !ok {
		return core.ErrVoucherNotFound
	}
	if s.codeTaken(v.ID, v.Code) {
		return core.ErrVoucherCodeTaken
	}
	v.UsesCount, v.ClaimsCount = cur.UsesCount, cur.ClaimsCount
	s.vouchers[v.ID] = v
	return nil
}

func (s *VoucherStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vouchers[id]; !ok {
		return core.ErrVoucherNotFound
	}
	delete(s.vouchers, id)
	return nil
}

func (s *VoucherStore) List(_ context.Context, f core.VoucherFilter) ([]core.Voucher, int64, error) {
	s.mu.RLock()
	var out []core.Voucher
	for _, v := range values(s.vouchers) {
		switch {
		case f.RewardType != "" && v.RewardType != f.RewardType:
		case f.Status != "" && v.StatusAt(f.Now) != f.Status:
		case !matches(f.Search, v.Code, v.Description):
		default:
			out = append(out, v)
		}
	}
	s.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b core.Voucher) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return paginate(out, f.Page), int64(len(out)), nil
}

// bump adjusts a counter, refusing to go past max_issued or below zero.
func (s *VoucherStore) bump(id string, field func(v *core.Voucher) *int64, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vouchers[id]
	if !ok {
		return core.ErrVoucherNotFound
	}
	n := field(&v)
	if delta > 0 && *n >= v.MaxIssued {
		return core.ErrVoucherExhausted
	}
	*n = max(0, *n+delta)
	s.vouchers[id] = v
	return nil
}

func uses(v *core.Voucher) *int64   { return &v.UsesCount }
func claims(v *core.Voucher) *int64 { return &v.ClaimsCount }

func (s *VoucherStore) IncrementUses(_ context.Context, id string) error {
	return s.bump(id, uses, 1)
}

func (s *VoucherStore) DecrementUses(_ context.Context, id string) error {
	return s.bump(id, uses, -1)
}

func (s *VoucherStore) TryClaim(_ context.Context, id string) error {
	return s.bump(id, claims, 1)
}

func (s *VoucherStore) ReleaseClaim(_ context.Context, id string) error {
	return s.bump(id, claims, -1)
}

func (s *VoucherStore) SyncActiveWindow(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed int64
	for id, v := range s.vouchers {
		if active := v.ActiveAt(now); active != v.IsActive {
			v.IsActive = active
			v.UpdatedAt = now
			s.vouchers[id] = v
			changed++
		}
	}
	return changed, nil
}

func (s *VoucherStore) Stats(_ context.Context, now time.Time) (core.VoucherStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var st core.VoucherStats
	for _, v := range s.vouchers {
		st.Total++
		st.TotalUsage += v.UsesCount
		switch v.StatusAt(now) {
		case core.VoucherActive:
			st.Active++
		case core.VoucherExpired:
			st.Expired++
		}
	}
	return st, nil
}

func (s *VoucherStore) TopClaimed(_ context.Context, limit int) ([]core.Voucher, error) {
	s.mu.RLock()
	out := values(s.vouchers)
	s.mu.RUnlock()
	out = slices.DeleteFunc(out, func(v core.Voucher) bool { return v.ClaimsCount == 0 })
	slices.SortStableFunc(out, func(a, b core.Voucher) int { return cmp.Compare(b.ClaimsCount, a.ClaimsCount) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type UserVoucherStore struct {
	mu      sync.RWMutex
	entries []core.UserVoucher
}

func NewUserVoucherStore() *UserVoucherStore {
	return &UserVoucherStore{}
}

func (s *UserVoucherStore) Create(_ context.Context, uv core.UserVoucher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, uv)
	return nil
}

func (s *UserVoucherStore) ListByUser(_ context.Context, userID string) ([]core.UserVoucher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.UserVoucher{}
	for _, uv := range s.entries {
		if uv.UserID == userID {
			out = append(out, uv)
		}
	}
	slices.SortStableFunc(out, func(a, b core.UserVoucher) int { return b.ClaimedAt.Compare(a.ClaimedAt) })
	return out, nil
}

func (s *UserVoucherStore) CountForUser(_ context.Context, userID, voucherID string) (claimed, used int64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, uv := range s.entries {
		if uv.UserID == userID && uv.VoucherID == voucherID {
			claimed++
			if uv.IsUsed {
				used++
			}
		}
	}
	return claimed, used, nil
}

func (s *UserVoucherStore) MarkUsed(_ context.Context, userID, voucherID, orderID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, uv := range s.entries {
		if uv.UserID == userID && uv.VoucherID == voucherID && !uv.IsUsed {
			s.entries[i].IsUsed = true
			s.entries[i].UsedAt = &at
			s.entries[i].OrderID = orderID
			return true, nil
		}
	}
	return false, nil
}

func (s *UserVoucherStore) ReleaseUse(_ context.Context, userID, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	for _, uv := range s.entries {
		if uv.UserID == userID && uv.OrderID == orderID && uv.IsUsed {
			if uv.Source == core.SourceOther {
				continue
			}
			uv.IsUsed = false
			uv.UsedAt = nil
			uv.OrderID = ""
		}
		kept = append(kept, uv)
	}
	s.entries = kept
	return nil
}
