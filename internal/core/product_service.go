package core

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/uteshop/uteshop-api/internal/platform/ids"
	"github.com/uteshop/uteshop-api/internal/platform/metrics"
)

const (
	productListCachePrefix = "products:list:"
	storefrontPageSize     = 12
	similarLimit           = 8
)

type ProductService interface {
	Home(ctx context.Context) (HomeBlocks, error)
	List(ctx context.Context, f ProductFilter) (PageResult[Product], error)
	Get(ctx context.Context, id, viewerID string) (Product, error)
	Similar(ctx context.Context, id string, limit int) ([]Product, error)
	Stats(ctx context.Context, id string) (ProductStats, error)

	AdminList(ctx context.Context, f ProductFilter) (PageResult[Product], error)
	AdminGet(ctx context.Context, id string) (Product, error)
	Create(ctx context.Context, in ProductInput) (Product, error)
	Update(ctx context.Context, id string, in ProductInput) (Product, error)
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) (int64, error)
	SetDiscount(ctx context.Context, id string, pct int) (Product, error)
	SetVisibility(ctx context.Context, id string, visible bool) (Product, error)
	AddImage(ctx context.Context, id, url string) (Product, error)
}

type ProductDeps struct {
	Products   ProductRepo
	Brands     BrandRepo
	Categories CategoryRepo
	Reviews    ReviewRepo
	Favorites  FavoriteRepo
	Viewed     ViewedRepo
	Cache      Cache
	CacheTTL   time.Duration
	Events     EventPublisher
	Log        *slog.Logger
}

type productService struct {
	products   ProductRepo
	brands     BrandRepo
	categories CategoryRepo
	reviews    ReviewRepo
	favorites  FavoriteRepo
	viewed     ViewedRepo
	cache      Cache
	cacheTTL   time.Duration
	events     EventPublisher
	log        *slog.Logger
	clock      func() time.Time
}

func NewProductService(d ProductDeps, opts ...Option) ProductService {
	o := buildOptions(opts)
	s := &productService{
		products:   d.Products,
		brands:     d.Brands,
		categories: d.Categories,
		reviews:    d.Reviews,
		favorites:  d.Favorites,
		viewed:     d.Viewed,
		cache:      d.Cache,
		cacheTTL:   d.CacheTTL,
		events:     d.Events,
		log:        d.Log,
		clock:      o.clock,
	}
	if s.cache == nil {
		s.cache = NopCache{}
	}
	if s.events == nil {
		s.events = NopPublisher{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.cacheTTL <= 0 {
		s.cacheTTL = time.Minute
	}
	return s
}

func (s *productService) Home(ctx context.Context) (HomeBlocks, error) {
	var home HomeBlocks

	block := func(sort ProductSort, limit int, dst *[]Product) func() error {
		return func() error {
			items, _, err := s.products.List(ctx, ProductFilter{
				VisibleOnly: true,
				Sort:        sort,
				Page:        Page{Page: 1, Limit: limit},
			})
			if err != nil {
				return err
			}
			*dst = nonNil(items)
			return nil
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(block(SortNewest, 8, &home.Newest))
	g.Go(block(SortBestSelling, 6, &home.BestSelling))
	g.Go(block(SortMostViewed, 8, &home.MostViewed))
	g.Go(block(SortTopDiscount, 4, &home.TopDiscount))
	g.Go(func() error {
		n, err := s.products.Count(ctx, ProductFilter{VisibleOnly: true})
		home.Totals.Products = n
		return err
	})
	g.Go(func() error {
		n, err := s.categories.Count(ctx)
		home.Totals.Categories = n
		return err
	})
	g.Go(func() error {
		n, err := s.brands.Count(ctx)
		home.Totals.Brands = n
		return err
	})
	if err := g.Wait(); err != nil {
		return HomeBlocks{}, err
	}
	return home, nil
}

func (s *productService) List(ctx context.Context, f ProductFilter) (PageResult[Product], error) {
	f.VisibleOnly = true
	f.Page = NewPage(f.Page.Page, f.Page.Limit, storefrontPageSize)
	if f.Sort == "" {
		f.Sort = SortNewest
	}
	if f.MinPrice > 0 && f.MaxPrice > 0 && f.MinPrice > f.MaxPrice {
		return PageResult[Product]{}, fmt.Errorf("%w: min_price cannot exceed max_price", ErrValidation)
	}

	key := listCacheKey(f)
	if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var cached PageResult[Product]
		if err := json.Unmarshal(raw, &cached); err == nil {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return cached, nil
		}
	} else if err != nil {
		s.log.WarnContext(ctx, "product cache read failed", "err", err)
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()

	items, total, err := s.products.List(ctx, f)
	if err != nil {
		return PageResult[Product]{}, err
	}
	res := NewPageResult(items, total, f.Page)

	if raw, err := json.Marshal(res); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
			s.log.WarnContext(ctx, "product cache write failed", "err", err)
		}
	}
	return res, nil
}

func (s *productService) Get(ctx context.Context, id, viewerID string) (Product, error) {
	p, err := s.products.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if !p.Purchasable() {
		return Product{}, ErrProductNotFound
	}

	if err := s.products.IncrementViews(ctx, id); err != nil {
		s.log.WarnContext(ctx, "increment product views failed", "product_id", id, "err", err)
	} else {
		p.ViewCount++
	}

	if viewerID != "" && s.viewed != nil {
		if err := s.viewed.Record(ctx, viewerID, id, s.clock()); err != nil {
			s.log.WarnContext(ctx, "record viewed product failed", "product_id", id, "err", err)
		}
	}
	return p, nil
}

func (s *productService) Similar(ctx context.Context, id string, limit int) ([]Product, error) {
	p, err := s.products.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > MaxPageSize {
		limit = similarLimit
	}
	items, _, err := s.products.List(ctx, ProductFilter{
		CategoryID:  p.CategoryID,
		ExcludeID:   p.ID,
		VisibleOnly: true,
		Sort:        SortBestSelling,
		Page:        Page{Page: 1, Limit: limit},
	})
	if err != nil {
		return nil, err
	}
	return nonNil(items), nil
}

func (s *productService) Stats(ctx context.Context, id string) (ProductStats, error) {
	p, err := s.products.Get(ctx, id)
	if err != nil {
		return ProductStats{}, err
	}
	stats := ProductStats{ProductID: p.ID, SoldCount: p.SoldCount, ViewCount: p.ViewCount}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sum, err := s.reviews.Summary(gctx, id)
		stats.ReviewCount = sum.Count
		stats.AverageRating = sum.Average
		return err
	})
	g.Go(func() error {
		n, err := s.favorites.CountForProduct(gctx, id)
		stats.FavoriteCount = n
		return err
	})
	if err := g.Wait(); err != nil {
		return ProductStats{}, err
	}
	return stats, nil
}

func (s *productService) AdminList(ctx context.Context, f ProductFilter) (PageResult[Product], error) {
	f.VisibleOnly = false
	f.Page = f.Page.Normalize()
	if f.Sort == "" {
		f.Sort = SortNewest
	}
	items, total, err := s.products.List(ctx, f)
	if err != nil {
		return PageResult[Product]{}, err
	}
	return NewPageResult(items, total, f.Page), nil
}

func (s *productService) AdminGet(ctx context.Context, id string) (Product, error) {
	if id == "" {
		return Product{}, fmt.Errorf("%w: missing product ID", ErrValidation)
	}
	return s.products.Get(ctx, id)
}

func (s *productService) Create(ctx context.Context, in ProductInput) (Product, error) {
	// 1) Validate input and references
	if err := in.Validate(); err != nil {
		return Product{}, err
	}
	if err := s.checkRefs(ctx, in); err != nil {
		return Product{}, err
	}

	// 2) Build product
	now := s.clock()
	p := Product{
		ID:                 ids.New(),
		Name:               in.Name,
		Description:        in.Description,
		Price:              in.Price,
		Stock:              in.Stock,
		Images:             nonNil(in.Images),
		CategoryID:         in.CategoryID,
		BrandID:            in.BrandID,
		DiscountPercentage: in.DiscountPercentage,
		IsActive:           boolOr(in.IsActive, true),
		IsVisible:          boolOr(in.IsVisible, true),
		Sizes:              in.Sizes,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	// 3) Persist
	if err := s.products.Create(ctx, p); err != nil {
		return Product{}, err
	}
	s.afterWrite(ctx, p)
	return p, nil
}

func (s *productService) Update(ctx context.Context, id string, in ProductInput) (Product, error) {
	if err := in.Validate(); err != nil {
		return Product{}, err
	}
	p, err := s.products.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if err := s.checkRefs(ctx, in); err != nil {
		return Product{}, err
	}

	p.Name = in.Name
	p.Description = in.Description
	p.Price = in.Price
	p.Stock = in.Stock
	p.Images = nonNil(in.Images)
	p.CategoryID = in.CategoryID
	p.BrandID = in.BrandID
	p.DiscountPercentage = in.DiscountPercentage
	p.IsActive = boolOr(in.IsActive, p.IsActive)
	p.IsVisible = boolOr(in.IsVisible, p.IsVisible)
	p.Sizes = in.Sizes
	p.UpdatedAt = s.clock()

	if err := s.products.Update(ctx, p); err != nil {
		return Product{}, err
	}
	s.afterWrite(ctx, p)
	return p, nil
}

func (s *productService) Delete(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	publishEvent(ctx, s.events, s.log, EventProductDeleted, id, ProductDeletion{ProductID: id}, s.clock())
	return nil
}

func (s *productService) DeleteMany(ctx context.Context, productIDs []string) (int64, error) {
	if len(productIDs) == 0 {
		return 0, fmt.Errorf("%w: ids are required", ErrValidation)
	}
	n, err := s.products.DeleteMany(ctx, productIDs)
	if err != nil {
		return 0, err
	}
	s.invalidate(ctx)
	for _, id := range productIDs {
		publishEvent(ctx, s.events, s.log, EventProductDeleted, id, ProductDeletion{ProductID: id}, s.clock())
	}
	return n, nil
}

func (s *productService) SetDiscount(ctx context.Context, id string, pct int) (Product, error) {
	if err := validateDiscountPercentage(pct); err != nil {
		return Product{}, err
	}
	if err := s.products.SetDiscount(ctx, id, pct, s.clock()); err != nil {
		return Product{}, err
	}
	return s.reloadAfterWrite(ctx, id)
}

func (s *productService) SetVisibility(ctx context.Context, id string, visible bool) (Product, error) {
	if err := s.products.SetVisibility(ctx, id, visible, s.clock()); err != nil {
		return Product{}, err
	}
	return s.reloadAfterWrite(ctx, id)
}

func (s *productService) AddImage(ctx context.Context, id, url string) (Product, error) {
	if url == "" {
		return Product{}, fmt.Errorf("%w: image url is required", ErrValidation)
	}
	if err := s.products.AddImage(ctx, id, url, s.clock()); err != nil {
		return Product{}, err
	}
	return s.reloadAfterWrite(ctx, id)
}

func (s *productService) reloadAfterWrite(ctx context.Context, id string) (Product, error) {
	p, err := s.products.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	s.afterWrite(ctx, p)
	return p, nil
}

func (s *productService) checkRefs(ctx context.Context, in ProductInput) error {
	if _, err := s.categories.Get(ctx, in.CategoryID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: category %q does not exist", ErrValidation, in.CategoryID)
		}
		return err
	}
	if _, err := s.brands.Get(ctx, in.BrandID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("%w: brand %q does not exist", ErrValidation, in.BrandID)
		}
		return err
	}
	return nil
}

func (s *productService) afterWrite(ctx context.Context, p Product) {
	s.invalidate(ctx)
	publishEvent(ctx, s.events, s.log, EventProductSaved, p.ID, p, s.clock())
}

func (s *productService) invalidate(ctx context.Context) {
	if err := s.cache.DeletePrefix(ctx, productListCachePrefix); err != nil {
		s.log.WarnContext(ctx, "product cache invalidation failed", "err", err)
	}
}

func listCacheKey(f ProductFilter) string {
	raw, _ := json.Marshal(f)
	sum := sha1.Sum(raw)
	return productListCachePrefix + hex.EncodeToString(sum[:])
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
