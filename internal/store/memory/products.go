package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/uteshop/uteshop-api/internal/core"
)

type ProductStore struct {
	mu       sync.RWMutex
	products map[string]core.Product
}

func NewProductStore() *ProductStore {
	return &ProductStore{products: make(map[string]core.Product)}
}

func cloneProduct(p core.Product) core.Product {
	p.Images = slices.Clone(p.Images)
	p.Sizes = slices.Clone(p.Sizes)
	return p
}

func (s *ProductStore) Create(_ context.Context, p core.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[p.ID]; ok {
		return fmt.Errorf("%w: product %s exists", core.ErrConflict, p.ID)
	}
	s.products[p.ID] = cloneProduct(p)
	return nil
}

func (s *ProductStore) Get(_ context.Context, id string) (core.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return core.Product{}, core.ErrProductNotFound
	}
	return cloneProduct(p), nil
}

func (s *ProductStore) GetMany(_ context.Context, ids []string) ([]core.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, cloneProduct(p))
		}
	}
	return out, nil
}

func (s *ProductStore) Update(_ context.Context, p core.Product) error {
	return s.mutate(p.ID, func(cur *core.Product) error {
		*cur = cloneProduct(p)
		return nil
	})
}

func (s *ProductStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return core.ErrProductNotFound
	}
	delete(s.products, id)
	return nil
}

func (s *ProductStore) DeleteMany(_ context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if _, ok := s.products[id]; ok {
			delete(s.products, id)
			n++
		}
	}
	return n, nil
}

func (s *ProductStore) filter(f core.ProductFilter) []core.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Product
	for _, p := range values(s.products) {
		switch {
		case f.CategoryID != "" && p.CategoryID != f.CategoryID:
		case f.BrandID != "" && p.BrandID != f.BrandID:
		case f.MinPrice > 0 && p.Price < f.MinPrice:
		case f.MaxPrice > 0 && p.Price > f.MaxPrice:
		case len(f.IDs) > 0 && !slices.Contains(f.IDs, p.ID):
		case f.ExcludeID != "" && p.ID == f.ExcludeID:
		case f.VisibleOnly && !p.Purchasable():
		case f.CreatedGTE != nil && p.CreatedAt.Before(*f.CreatedGTE):
		case f.CreatedLT != nil && !p.CreatedAt.Before(*f.CreatedLT):
		case !matches(f.Search, p.Name, p.Description):
		default:
			out = append(out, cloneProduct(p))
		}
	}
	return out
}

func productOrder(sort core.ProductSort) func(a, b core.Product) int {
	byNewest := func(a, b core.Product) int { return b.CreatedAt.Compare(a.CreatedAt) }
	then := func(c int, a, b core.Product) int {
		if c != 0 {
			return c
		}
		return byNewest(a, b)
	}
	switch sort {
	case core.SortBestSelling:
		return func(a, b core.Product) int { return then(cmp.Compare(b.SoldCount, a.SoldCount), a, b) }
	case core.SortMostViewed:
		return func(a, b core.Product) int { return then(cmp.Compare(b.ViewCount, a.ViewCount), a, b) }
	case core.SortTopDiscount:
		return func(a, b core.Product) int {
			return then(cmp.Compare(b.DiscountPercentage, a.DiscountPercentage), a, b)
		}
	case core.SortPriceAsc:
		return func(a, b core.Product) int { return then(cmp.Compare(a.Price, b.Price), a, b) }
	case core.SortPriceDesc:
		return func(a, b core.Product) int { return then(cmp.Compare(b.Price, a.Price), a, b) }
	}
	return byNewest
}

func (s *ProductStore) List(_ context.Context, f core.ProductFilter) ([]core.Product, int64, error) {
	out := s.filter(f)
	slices.SortStableFunc(out, productOrder(f.Sort))
	return paginate(out, f.Page), int64(len(out)), nil
}

func (s *ProductStore) Count(_ context.Context, f core.ProductFilter) (int64, error) {
	return int64(len(s.filter(f))), nil
}

func (s *ProductStore) mutate(id string, fn func(p *core.Product) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return core.ErrProductNotFound
	}
	p = cloneProduct(p)
	if err := fn(&p); err != nil {
		return err
	}
	s.products[id] = p
	return nil
}

func (s *ProductStore) IncrementViews(_ context.Context, id string) error {
	return s.mutate(id, func(p *core.Product) error {
		p.ViewCount++
		return nil
	})
}

func (s *ProductStore) ReserveStock(_ context.Context, id, size string, qty int) error {
	return s.mutate(id, func(p *core.Product) error {
		if err := moveStock(p, size, -qty); err != nil {
			return err
		}
		p.SoldCount += int64(qty)
		return nil
	})
}

func (s *ProductStore) ReleaseStock(_ context.Context, id, size string, qty int) error {
	return s.mutate(id, func(p *core.Product) error {
		if err := moveStock(p, size, qty); err != nil {
			return err
		}
		p.SoldCount = max(0, p.SoldCount-int64(qty))
		return nil
	})
}

// moveStock adds delta to the stock of size, keeping the total in step.
func moveStock(p *core.Product, size string, delta int) error {
	if !p.HasSizes() {
		if p.Stock+delta < 0 {
			return core.ErrInsufficientStock
		}
		p.Stock += delta
		return nil
	}
	i := slices.IndexFunc(p.Sizes, func(s core.SizeStock) bool { return s.Size == size })
	if i < 0 {
		return fmt.Errorf("%w: size %q is not offered", core.ErrValidation, size)
	}
	if p.Sizes[i].Stock+delta < 0 {
		return core.ErrInsufficientStock
	}
	p.Sizes[i].Stock += delta
	p.Stock += delta
	return nil
}

func (s *ProductStore) SetDiscount(_ context.Context, id string, pct int, at time.Time) error {
	return s.mutate(id, func(p *core.Product) error {
		p.DiscountPercentage = pct
		p.UpdatedAt = at
		return nil
	})
}

func (s *ProductStore) SetVisibility(_ context.Context, id string, visible bool, at time.Time) error {
	return s.mutate(id, func(p *core.Product) error {
		p.IsVisible = visible
		p.UpdatedAt = at
		return nil
	})
}

func (s *ProductStore) AddImage(_ context.Context, id, url string, at time.Time) error {
	return s.mutate(id, func(p *core.Product) error {
		p.Images = append(p.Images, url)
		p.UpdatedAt = at
		return nil
	})
}
