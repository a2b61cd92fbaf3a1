package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/uteshop/uteshop-api/internal/core"
)

// named is the shared shape of brands and categories: unique names, searched by name.
type named[T any] struct {
	mu       sync.RWMutex
	items    map[string]T
	key      func(T) (id, name string)
	exists   error
	notFound error
}

func (s *named[T]) Create(_ context.Context, v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, name := s.key(v)
	if s.taken(id, name) {
		return s.exists
	}
	s.items[id] = v
	return nil
}

func (s *named[T]) taken(id, name string) bool {
	for otherID, other := range s.items {
		if _, n := s.key(other); otherID != id && strings.EqualFold(n, name) {
			return true
		}
	}
	return false
}

func (s *named[T]) Get(_ context.Context, id string) (T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.items[id]
	if !ok {
		return v, s.notFound
	}
	return v, nil
}

func (s *named[T]) Update(_ context.Context, v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, name := s.key(v)
	if _, ok := s.items[id]; !ok {
		return s.notFound
	}
	if s.taken(id, name) {
		return s.exists
	}
	s.items[id] = v
	return nil
}

func (s *named[T]) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return s.notFound
	}
	delete(s.items, id)
	return nil
}

func (s *named[T]) DeleteMany(_ context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := s.items[id]; ok {
			delete(s.items, id)
			n++
		}
	}
	return n, nil
}

func (s *named[T]) List(_ context.Context, search string, p core.Page) ([]T, int64, error) {
	s.mu.RLock()
	var out []T
	for _, v := range values(s.items) {
		if _, name := s.key(v); matches(search, name) {
			out = append(out, v)
		}
	}
	s.mu.RUnlock()
	slices.SortStableFunc(out, func(a, b T) int {
		_, na := s.key(a)
		_, nb := s.key(b)
		return strings.Compare(strings.ToLower(na), strings.ToLower(nb))
	})
	return paginate(out, p), int64(len(out)), nil
}

func (s *named[T]) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.items)), nil
}

type BrandStore struct {
	named[core.Brand]
}

func NewBrandStore() *BrandStore {
	return &BrandStore{named[core.Brand]{
		items:    make(map[string]core.Brand),
		key:      func(b core.Brand) (string, string) { return b.ID, b.Name },
		exists:   core.ErrBrandExists,
		notFound: core.ErrBrandNotFound,
	}}
}

type CategoryStore struct {
	named[core.Category]
}

func NewCategoryStore() *CategoryStore {
	return &CategoryStore{named[core.Category]{
		items:    make(map[string]core.Category),
		key:      func(c core.Category) (string, string) { return c.ID, c.Name },
		exists:   core.ErrCategoryExists,
		notFound: core.ErrCategoryNotFound,
	}}
}
