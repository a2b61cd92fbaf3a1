package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/uteshop/uteshop-api/internal/core"
)

type UserStore struct {
	mu    sync.RWMutex
	users map[string]core.User
}

func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]core.User)}
}

func (s *UserStore) Create(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return core.ErrEmailTaken
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *UserStore) Get(_ context.Context, id string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return core.User{}, core.ErrUserNotFound
}

func (s *UserStore) GetByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return core.User{}, core.ErrUserNotFound
}

func (s *UserStore) Update(_ context.Context, u core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[u.ID]
	if !ok {
		return core.ErrUserNotFound
	}
	// Balance and tier only move through AdjustPoints and SetTier.
	u.Loyalty = cur.Loyalty
	u.PasswordHash = cur.PasswordHash
	s.users[u.ID] = u
	return nil
}

func (s *UserStore) mutate(id string, fn func(u *core.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.ErrUserNotFound
	}
	fn(&u)
	s.users[id] = u
	return nil
}

func (s *UserStore) UpdatePassword(_ context.Context, id, hash string, at time.Time) error {
	return s.mutate(id, func(u *core.User) {
		u.PasswordHash = hash
		u.UpdatedAt = at
	})
}

func (s *UserStore) SetActive(_ context.Context, id string, active bool, at time.Time) error {
	return s.mutate(id, func(u *core.User) {
		u.IsActive = active
		u.UpdatedAt = at
	})
}

func (s *UserStore) AdjustPoints(_ context.Context, id string, delta int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return 0, core.ErrUserNotFound
	}
	if u.Loyalty.Balance+delta < 0 {
		return u.Loyalty.Balance, core.ErrInsufficientPoints
	}
	u.Loyalty.Balance += delta
	s.users[id] = u
	return u.Loyalty.Balance, nil
}

func (s *UserStore) SetTier(_ context.Context, id string, tier core.Tier) error {
	return s.mutate(id, func(u *core.User) { u.Loyalty.Tier = tier })
}

func (s *UserStore) RecalculateTiers(_ context.Context, silver, gold int64) (int64, error) {
	cfg := core.PointsConfig{SilverThreshold: silver, GoldThreshold: gold}
	s.mu.Lock()
	defer s.mu.Unlock()
	var changed int64
	for id, u := range s.users {
		if u.Role != core.RoleCustomer {
			continue
		}
		if tier := cfg.TierFor(u.Loyalty.Balance); tier != u.Loyalty.Tier {
			u.Loyalty.Tier = tier
			s.users[id] = u
			changed++
		}
	}
	return changed, nil
}

func (s *UserStore) filter(f core.UserFilter) []core.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.User
	for _, u := range values(s.users) {
		switch {
		case f.Role != "" && u.Role != f.Role:
		case f.MinBalance > 0 && u.Loyalty.Balance < f.MinBalance:
		case f.IsActive != nil && u.IsActive != *f.IsActive:
		case f.CreatedGTE != nil && u.CreatedAt.Before(*f.CreatedGTE):
		case f.CreatedLT != nil && !u.CreatedAt.Before(*f.CreatedLT):
		case !matches(f.Search, u.Name, u.Email):
		default:
			out = append(out, u)
		}
	}
	return out
}

func (s *UserStore) List(_ context.Context, f core.UserFilter) ([]core.User, int64, error) {
	out := s.filter(f)
	slices.SortStableFunc(out, func(a, b core.User) int {
		if f.SortBy == "points" {
			if c := cmp.Compare(b.Loyalty.Balance, a.Loyalty.Balance); c != 0 {
				return c
			}
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return paginate(out, f.Page), int64(len(out)), nil
}

func (s *UserStore) Count(_ context.Context, f core.UserFilter) (int64, error) {
	return int64(len(s.filter(f))), nil
}

func (s *UserStore) CountByTier(_ context.Context) (map[core.Tier]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[core.Tier]int64{core.TierBronze: 0, core.TierSilver: 0, core.TierGold: 0}
	for _, u := range s.users {
		if u.Role == core.RoleCustomer {
			tier := u.Loyalty.Tier
			if tier == "" {
				tier = core.TierBronze
			}
			out[tier]++
		}
	}
	return out, nil
}

type OTPStore struct {
	mu   sync.Mutex
	otps map[string]core.OTP
}

func NewOTPStore() *OTPStore {
	return &OTPStore{otps: make(map[string]core.OTP)}
}

func (s *OTPStore) Replace(_ context.Context, otp core.OTP) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, o := range s.otps {
		if o.Email == otp.Email && o.Purpose == otp.Purpose {
			delete(s.otps, id)
		}
	}
	s.otps[otp.ID] = otp
	return nil
}

func (s *OTPStore) GetLatest(_ context.Context, email string, purpose core.OTPPurpose) (core.OTP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		latest core.OTP
		found  bool
	)
	for _, o := range s.otps {
		if o.Email == email && o.Purpose == purpose && (!found || o.CreatedAt.After(latest.CreatedAt)) {
			latest, found = o, true
		}
	}
	if !found {
		return core.OTP{}, core.ErrNotFound
	}
	return latest, nil
}

func (s *OTPStore) IncrementAttempts(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.otps[id]
	if !ok {
		return core.ErrNotFound
	}
	o.Attempts++
	s.otps[id] = o
	return nil
}

func (s *OTPStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.otps, id)
	return nil
}
