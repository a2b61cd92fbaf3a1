package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/uteshop/uteshop-api/internal/core"
)

type pairKey struct{ user, product string }

type FavoriteStore struct {
	mu   sync.RWMutex
	favs map[pairKey]core.Favorite
}

func NewFavoriteStore() *FavoriteStore {
	return &FavoriteStore{favs: make(map[pairKey]core.Favorite)}
}

func (s *FavoriteStore) Add(_ context.Context, f core.Favorite) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := pairKey{f.UserID, f.ProductID}
	if _, ok := s.favs[k]; !ok {
		s.favs[k] = f
	}
	return nil
}

func (s *FavoriteStore) Remove(_ context.Context, userID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.favs, pairKey{userID, productID})
	return nil
}

func (s *FavoriteStore) List(_ context.Context, userID string) ([]core.Favorite, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.Favorite{}
	for k, f := range s.favs {
		if k.user == userID {
			out = append(out, f)
		}
	}
	slices.SortFunc(out, func(a, b core.Favorite) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return out, nil
}

func (s *FavoriteStore) Exists(_ context.Context, userID, productID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.favs[pairKey{userID, productID}]
	return ok, nil
}

func (s *FavoriteStore) CountForProduct(_ context.Context, productID string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	for k := range s.favs {
		if k.product == productID {
			n++
		}
	}
	return n, nil
}

type ViewedStore struct {
	mu    sync.RWMutex
	views map[pairKey]time.Time
}

func NewViewedStore() *ViewedStore {
	return &ViewedStore{views: make(map[pairKey]time.Time)}
}

func (s *ViewedStore) Record(_ context.Context, userID, productID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[pairKey{userID, productID}] = at
	return nil
}

func (s *ViewedStore) List(_ context.Context, userID string, limit int) ([]core.ViewedProduct, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []core.ViewedProduct{}
	for k, at := range s.views {
		if k.user == userID {
			out = append(out, core.ViewedProduct{UserID: userID, ProductID: k.product, ViewedAt: at})
		}
	}
	slices.SortFunc(out, func(a, b core.ViewedProduct) int { return b.ViewedAt.Compare(a.ViewedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *ViewedStore) Remove(_ context.Context, userID, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.views, pairKey{userID, productID})
	return nil
}

func (s *ViewedStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.views {
		if k.user == userID {
			delete(s.views, k)
		}
	}
	return nil
}

type CartStore struct {
	mu    sync.Mutex
	carts map[string]core.Cart
}

func NewCartStore() *CartStore {
	return &CartStore{carts: make(map[string]core.Cart)}
}

func (s *CartStore) Get(_ context.Context, userID string) (core.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[userID]
	if !ok {
		return core.Cart{UserID: userID, Items: []core.CartItem{}}, nil
	}
	c.Items = slices.Clone(c.Items)
	return c, nil
}

func (s *CartStore) Save(_ context.Context, c core.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.Items = slices.Clone(c.Items)
	s.carts[c.UserID] = c
	return nil
}

func (s *CartStore) RemoveItems(_ context.Context, userID string, keys []core.CartKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.carts[userID]
	if !ok {
		return nil
	}
	c.Items = slices.DeleteFunc(slices.Clone(c.Items), func(it core.CartItem) bool {
		return slices.Contains(keys, core.CartKey{ProductID: it.ProductID, Size: it.Size})
	})
	s.carts[userID] = c
	return nil
}

func (s *CartStore) Clear(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
	return nil
}
