// Package search implements the product index on Elasticsearch.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/platform/textnorm"
)

type Config struct {
	URL      string
	Username string
	Password string
	Index    string
}

// Index is a core.SearchIndex over one Elasticsearch index.
type Index struct {
	es   *elasticsearch.Client
	name string
}

var _ core.SearchIndex = (*Index)(nil)

// New returns nil, nil when no URL is configured.
func New(cfg Config) (*Index, error) {
	if cfg.URL == "" {
		return nil, nil
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: strings.Split(cfg.URL, ","),
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	name := cfg.Index
	if name == "" {
		name = "products"
	}
	return &Index{es: es, name: name}, nil
}

// document is what gets stored per product.
type document struct {
	core.Product
	NameFolded      string `json:"name_folded"`
	DiscountedPrice int64  `json:"discounted_price"`
}

func toDocument(p core.Product) document {
	return document{Product: p, NameFolded: textnorm.Fold(p.Name), DiscountedPrice: p.DiscountedPrice()}
}

var mapping = map[string]any{
	"settings": map[string]any{
		"analysis": map[string]any{
			"analyzer": map[string]any{
				"folded": map[string]any{
					"type":      "custom",
					"tokenizer": "standard",
					"filter":    []string{"lowercase", "asciifolding"},
				},
			},
		},
	},
	"mappings": map[string]any{
		"properties": map[string]any{
			"id":                  map[string]any{"type": "keyword"},
			"name":                map[string]any{"type": "text", "fields": map[string]any{"raw": map[string]any{"type": "keyword"}}},
			"name_folded":         map[string]any{"type": "text", "analyzer": "folded"},
			"description":         map[string]any{"type": "text", "analyzer": "folded"},
			"category_id":         map[string]any{"type": "keyword"},
			"brand_id":            map[string]any{"type": "keyword"},
			"price":               map[string]any{"type": "long"},
			"discounted_price":    map[string]any{"type": "long"},
			"discount_percentage": map[string]any{"type": "integer"},
			"sold_count":          map[string]any{"type": "long"},
			"view_count":          map[string]any{"type": "long"},
			"is_active":           map[string]any{"type": "boolean"},
			"is_visible":          map[string]any{"type": "boolean"},
			"created_at":          map[string]any{"type": "date"},
		},
	},
}

func (i *Index) EnsureIndex(ctx context.Context) error {
	res, err := i.es.Indices.Exists([]string{i.name}, i.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("search.exists: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	body, err := encode(mapping)
	if err != nil {
		return err
	}
	res, err = i.es.Indices.Create(i.name, i.es.Indices.Create.WithBody(body), i.es.Indices.Create.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("search.create: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		e := responseError("create", res)
		if strings.Contains(e.Error(), "resource_already_exists_exception") {
			return nil
		}
		return e
	}
	return nil
}

func (i *Index) Index(ctx context.Context, p core.Product) error {
	body, err := encode(toDocument(p))
	if err != nil {
		return err
	}
	res, err := i.es.Index(i.name, body, i.es.Index.WithDocumentID(p.ID), i.es.Index.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("search.index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("index", res)
	}
	return nil
}

func (i *Index) BulkIndex(ctx context.Context, ps []core.Product) error {
	if len(ps) == 0 {
		return nil
	}
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{Client: i.es, Index: i.name, NumWorkers: 2})
	if err != nil {
		return fmt.Errorf("search.bulk: %w", err)
	}

	var (
		mu       sync.Mutex
		failed   int
		firstErr error
	)
	for _, p := range ps {
		b, err := json.Marshal(toDocument(p))
		if err != nil {
			return fmt.Errorf("search.bulk encode %s: %w", p.ID, err)
		}
		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: p.ID,
			Body:       bytes.NewReader(b),
			OnFailure: func(_ context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				if err == nil {
					err = fmt.Errorf("%s: %s", res.Error.Type, res.Error.Reason)
				}
				mu.Lock()
				defer mu.Unlock()
				failed++
				if firstErr == nil {
					firstErr = fmt.Errorf("document %s: %w", item.DocumentID, err)
				}
			},
		})
		if err != nil {
			return fmt.Errorf("search.bulk add: %w", err)
		}
	}
	if err := bi.Close(ctx); err != nil {
		return fmt.Errorf("search.bulk close: %w", err)
	}
	if failed > 0 {
		return fmt.Errorf("search.bulk: %d of %d documents failed: %w", failed, len(ps), firstErr)
	}
	return nil
}

func (i *Index) Delete(ctx context.Context, id string) error {
	res, err := i.es.Delete(i.name, id, i.es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("search.delete: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: product %s is not indexed", core.ErrNotFound, id)
	}
	if res.IsError() {
		return responseError("delete", res)
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source document `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations struct {
		Categories termsAgg `json:"categories"`
		Brands     termsAgg `json:"brands"`
		Prices     struct {
			Buckets []struct {
				Key      string `json:"key"`
				DocCount int64  `json:"doc_count"`
			} `json:"buckets"`
		} `json:"prices"`
	} `json:"aggregations"`
}

type termsAgg struct {
	Buckets []struct {
		Key      string `json:"key"`
		DocCount int64  `json:"doc_count"`
	} `json:"buckets"`
}

func (a termsAgg) buckets() []core.FacetBucket {
	out := make([]core.FacetBucket, 0, len(a.Buckets))
	for _, b := range a.Buckets {
		out = append(out, core.FacetBucket{Key: b.Key, Count: b.DocCount})
	}
	return out
}

func (i *Index) search(ctx context.Context, op string, body map[string]any) (searchResponse, error) {
	var out searchResponse
	buf, err := encode(body)
	if err != nil {
		return out, err
	}
	res, err := i.es.Search(
		i.es.Search.WithContext(ctx),
		i.es.Search.WithIndex(i.name),
		i.es.Search.WithBody(buf),
		i.es.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return out, fmt.Errorf("search.%s: %w", op, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return out, responseError(op, res)
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("search.%s decode: %w", op, err)
	}
	return out, nil
}

func (i *Index) Search(ctx context.Context, q core.SearchQuery) ([]core.Product, int64, error) {
	res, err := i.search(ctx, "search", searchBody(q))
	if err != nil {
		return nil, 0, err
	}
	items := make([]core.Product, 0, len(res.Hits.Hits))
	for _, h := range res.Hits.Hits {
		items = append(items, h.Source.Product)
	}
	return items, res.Hits.Total.Value, nil
}

func (i *Index) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	res, err := i.search(ctx, "suggest", suggestBody(prefix, limit))
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	out := make([]string, 0, limit)
	for _, h := range res.Hits.Hits {
		name := h.Source.Name
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (i *Index) Facets(ctx context.Context, q core.SearchQuery) (core.SearchFacets, error) {
	res, err := i.search(ctx, "facets", facetsBody(q))
	if err != nil {
		return core.SearchFacets{}, err
	}
	prices := make([]core.PriceBucket, len(core.PriceRanges))
	copy(prices, core.PriceRanges)
	for _, b := range res.Aggregations.Prices.Buckets {
		for j := range prices {
			if prices[j].Label == b.Key {
				prices[j].Count = b.DocCount
			}
		}
	}
	return core.SearchFacets{
		Categories:  res.Aggregations.Categories.buckets(),
		Brands:      res.Aggregations.Brands.buckets(),
		PriceRanges: prices,
	}, nil
}

func (i *Index) Ping(ctx context.Context) error {
	res, err := i.es.Ping(i.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("search.ping: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return responseError("ping", res)
	}
	return nil
}

func encode(v any) (*bytes.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("search.encode: %w", err)
	}
	return bytes.NewReader(b), nil
}

func responseError(op string, res *esapi.Response) error {
	body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
	return fmt.Errorf("search.%s: %s: %s", op, res.Status(), strings.TrimSpace(string(body)))
}
