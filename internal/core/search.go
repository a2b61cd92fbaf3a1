package core

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/uteshop/uteshop-api/internal/platform/metrics"
	"github.com/uteshop/uteshop-api/internal/platform/tracing"
)

const (
	SourceElasticsearch = "elasticsearch"
	SourceDatabase      = "database"

	reindexBatch      = 100
	facetScanLimit    = 500
	defaultSuggestMax = 8
)

type SearchQuery struct {
	Text       string      `json:"q"`
	CategoryID string      `json:"category_id,omitempty"`
	BrandID    string      `json:"brand_id,omitempty"`
	MinPrice   int64       `json:"min_price,omitempty"`
	MaxPrice   int64       `json:"max_price,omitempty"`
	Sort       ProductSort `json:"sort,omitempty"`
	Page       Page        `json:"page"`
}

type SearchResult struct {
	PageResult[Product]
	Source string `json:"source"`
}

type FacetBucket struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

type PriceBucket struct {
	Label string `json:"label"`
	From  int64  `json:"from"`
	To    int64  `json:"to,omitempty"` // 0 is unbounded
	Count int64  `json:"count"`
}

type SearchFacets struct {
	Categories  []FacetBucket `json:"categories"`
	Brands      []FacetBucket `json:"brands"`
	PriceRanges []PriceBucket `json:"price_ranges"`
	Source      string        `json:"source"`
}

// PriceRanges are the buckets both facet paths report.
var PriceRanges = []PriceBucket{
	{Label: "Dưới 500K", From: 0, To: 500_000},
	{Label: "500K - 1 triệu", From: 500_000, To: 1_000_000},
	{Label: "1 - 2 triệu", From: 1_000_000, To: 2_000_000},
	{Label: "Trên 2 triệu", From: 2_000_000},
}

// SearchIndex is a full-text product index.
type SearchIndex interface {
	EnsureIndex(ctx context.Context) error
	Index(ctx context.Context, p Product) error
	BulkIndex(ctx context.Context, ps []Product) error
	Delete(ctx context.Context, id string) error
	Search(ctx context.Context, q SearchQuery) ([]Product, int64, error)
	Suggest(ctx context.Context, prefix string, limit int) ([]string, error)
	Facets(ctx context.Context, q SearchQuery) (SearchFacets, error)
	Ping(ctx context.Context) error
}

type SearchService interface {
	Search(ctx context.Context, q SearchQuery) (SearchResult, error)
	Suggest(ctx context.Context, prefix string, limit int) ([]string, error)
	Facets(ctx context.Context, q SearchQuery) (SearchFacets, error)
	// Reindex rebuilds the index from the product store and returns how many were indexed.
	Reindex(ctx context.Context) (int, error)
	// Sync keeps the index in step with product events.
	Sync(ctx context.Context, e Event) error
}

type searchService struct {
	index    SearchIndex // nil when no search cluster is configured
	products ProductRepo
	log      *slog.Logger
}

func NewSearchService(index SearchIndex, products ProductRepo, log *slog.Logger) SearchService {
	if log == nil {
		log = slog.Default()
	}
	return &searchService{index: index, products: products, log: log}
}

func (s *searchService) Search(ctx context.Context, q SearchQuery) (res SearchResult, err error) {
	ctx, span := tracing.Start(ctx, "search.products", attribute.String("q", q.Text))
	defer func() {
		span.SetAttributes(attribute.String("source", res.Source))
		tracing.RecordError(span, err)
		span.End()
	}()

	q.Text = strings.TrimSpace(q.Text)
	q.Page = NewPage(q.Page.Page, q.Page.Limit, storefrontPageSize)
	if q.Sort == "" && q.Text == "" {
		q.Sort = SortNewest
	}

	if s.index != nil {
		items, total, err := s.index.Search(ctx, q)
		if err == nil {
			return SearchResult{PageResult: NewPageResult(items, total, q.Page), Source: SourceElasticsearch}, nil
		}
		s.log.WarnContext(ctx, "search index query failed, falling back to database", "err", err)
	}
	metrics.SearchFallbacks.Inc()

	f := q.filter()
	f.Page = q.Page
	items, total, err := s.products.List(ctx, f)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{PageResult: NewPageResult(items, total, q.Page), Source: SourceDatabase}, nil
}

func (q SearchQuery) filter() ProductFilter {
	sort := q.Sort
	if sort == "" {
		sort = SortBestSelling
	}
	return ProductFilter{
		Search:      q.Text,
		CategoryID:  q.CategoryID,
		BrandID:     q.BrandID,
		MinPrice:    q.MinPrice,
		MaxPrice:    q.MaxPrice,
		VisibleOnly: true,
		Sort:        sort,
	}
}

func (s *searchService) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return []string{}, nil
	}
	if limit <= 0 || limit > 20 {
		limit = defaultSuggestMax
	}
	if s.index != nil {
		out, err := s.index.Suggest(ctx, prefix, limit)
		if err == nil {
			return nonNil(out), nil
		}
		s.log.WarnContext(ctx, "search suggest failed, falling back to database", "err", err)
	}
	metrics.SearchFallbacks.Inc()

	items, _, err := s.products.List(ctx, ProductFilter{
		Search:      prefix,
		VisibleOnly: true,
		Sort:        SortBestSelling,
		Page:        Page{Page: 1, Limit: limit},
	})
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, p := range items {
		out = append(out, p.Name)
	}
	return out, nil
}

func (s *searchService) Facets(ctx context.Context, q SearchQuery) (SearchFacets, error) {
	q.Text = strings.TrimSpace(q.Text)
	if s.index != nil {
		f, err := s.index.Facets(ctx, q)
		if err == nil {
			f.Source = SourceElasticsearch
			return f, nil
		}
		s.log.WarnContext(ctx, "search facets failed, falling back to database", "err", err)
	}
	metrics.SearchFallbacks.Inc()

	f := q.filter()
	f.Page = Page{Page: 1, Limit: facetScanLimit}
	items, _, err := s.products.List(ctx, f)
	if err != nil {
		return SearchFacets{}, err
	}
	return facetsFrom(items), nil
}

// facetsFrom counts facets over an in-memory result set.
func facetsFrom(items []Product) SearchFacets {
	cats := map[string]int64{}
	brands := map[string]int64{}
	prices := make([]PriceBucket, len(PriceRanges))
	copy(prices, PriceRanges)
	for _, p := range items {
		cats[p.CategoryID]++
		brands[p.BrandID]++
		price := p.DiscountedPrice()
		for i, b := range prices {
			if price >= b.From && (b.To == 0 || price < b.To) {
				prices[i].Count++
				break
			}
		}
	}
	return SearchFacets{
		Categories:  buckets(cats),
		Brands:      buckets(brands),
		PriceRanges: prices,
		Source:      SourceDatabase,
	}
}

func buckets(m map[string]int64) []FacetBucket {
	out := make([]FacetBucket, 0, len(m))
	for k, n := range m {
		out = append(out, FacetBucket{Key: k, Count: n})
	}
	slices.SortFunc(out, func(a, b FacetBucket) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Key, b.Key)
	})
	return out
}

func (s *searchService) Reindex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, fmt.Errorf("%w: search index is not configured", ErrUnavailable)
	}
	if err := s.index.EnsureIndex(ctx); err != nil {
		return 0, err
	}
	indexed := 0
	for page := 1; ; page++ {
		items, _, err := s.products.List(ctx, ProductFilter{
			VisibleOnly: true,
			Sort:        SortNewest,
			Page:        Page{Page: page, Limit: reindexBatch},
		})
		if err != nil {
			return indexed, err
		}
		if len(items) == 0 {
			break
		}
		if err := s.index.BulkIndex(ctx, items); err != nil {
			return indexed, err
		}
		indexed += len(items)
		if len(items) < reindexBatch {
			break
		}
	}
	s.log.InfoContext(ctx, "search index rebuilt", "products", indexed)
	return indexed, nil
}

func (s *searchService) Sync(ctx context.Context, e Event) error {
	if s.index == nil {
		return nil
	}
	switch e.Type {
	case EventProductSaved:
		var p Product
		if err := e.Decode(&p); err != nil {
			return fmt.Errorf("decode %s: %w", e.Type, err)
		}
		if !p.Purchasable() {
			return ignoreNotFound(s.index.Delete(ctx, p.ID))
		}
		return s.index.Index(ctx, p)
	case EventProductDeleted:
		var d ProductDeletion
		if err := e.Decode(&d); err != nil {
			return fmt.Errorf("decode %s: %w", e.Type, err)
		}
		return ignoreNotFound(s.index.Delete(ctx, d.ProductID))
	}
	return nil
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
