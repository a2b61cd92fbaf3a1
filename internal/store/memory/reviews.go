package memory

import (
	"context"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/uteshop/uteshop-api/internal/core"
)

type ReviewStore struct {
	mu      sync.RWMutex
	reviews map[string]core.Review
}

func NewReviewStore() *ReviewStore {
	return &ReviewStore{reviews: make(map[string]core.Review)}
}

func (s *ReviewStore) Create(_ context.Context, r core.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, other := range s.reviews {
		if other.OrderID == r.OrderID && other.ProductID == r.ProductID {
			return core.ErrReviewExists
		}
	}
	s.reviews[r.ID] = r
	return nil
}

func (s *ReviewStore) Get(_ context.Context, id string) (core.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[id]
	if !ok {
		return core.Review{}, core.ErrReviewNotFound
	}
	return r, nil
}

func (s *ReviewStore) List(_ context.Context, f core.ReviewFilter) ([]core.Review, int64, error) {
	s.mu.RLock()
	var out []core.Review
	for _, r := range values(s.reviews) {
		switch {
		case f.ProductID != "" && r.ProductID != f.ProductID:
		case f.UserID != "" && r.UserID != f.UserID:
		case f.Rating != 0 && r.Rating != f.Rating:
		case r.IsDeleted && !f.IncludeDeleted:
		default:
			out = append(out, r)
		}
	}
	s.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b core.Review) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return paginate(out, f.Page), int64(len(out)), nil
}

func (s *ReviewStore) Summary(_ context.Context, productID string) (core.RatingSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var sum core.RatingSummary
	total := 0
	for _, r := range s.reviews {
		if r.ProductID == productID && !r.IsDeleted {
			sum.Count++
			total += r.Rating
		}
	}
	if sum.Count > 0 {
		sum.Average = math.Round(float64(total)/float64(sum.Count)*10) / 10
	}
	return sum, nil
}

func (s *ReviewStore) mutate(id string, fn func(r *core.Review) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return core.ErrReviewNotFound
	}
	if err := fn(&r); err != nil {
		return err
	}
	s.reviews[id] = r
	return nil
}

func (s *ReviewStore) SetReply(_ context.Context, id string, reply core.ReviewReply) error {
	return s.mutate(id, func(r *core.Review) error {
		r.AdminReply = &reply
		r.UpdatedAt = reply.RepliedAt
		return nil
	})
}

func (s *ReviewStore) SetDeleted(_ context.Context, id string, deleted bool, at time.Time) error {
	return s.mutate(id, func(r *core.Review) error {
		r.IsDeleted = deleted
		r.DeletedAt = nil
		if deleted {
			r.DeletedAt = &at
		}
		r.UpdatedAt = at
		return nil
	})
}

func (s *ReviewStore) MarkRewardClaimed(_ context.Context, id string, kind core.RewardKind, at time.Time) error {
	return s.mutate(id, func(r *core.Review) error {
		if r.RewardClaimed {
			return core.ErrRewardClaimed
		}
		r.RewardClaimed = true
		r.RewardKind = kind
		r.UpdatedAt = at
		return nil
	})
}

func (s *ReviewStore) ResetReward(_ context.Context, id string) error {
	return s.mutate(id, func(r *core.Review) error {
		r.RewardClaimed = false
		r.RewardKind = ""
		return nil
	})
}
