package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uteshop/uteshop-api/internal/core"
)

func TestSortClause(t *testing.T) {
	tail := []any{
		map[string]any{"created_at": map[string]any{"order": "desc"}},
		map[string]any{"id": map[string]any{"order": "desc"}},
	}
	assert.Equal(t, tail, sortClause(core.SortNewest, true))
	assert.Equal(t, append([]any{"_score"}, tail...), sortClause("", true))
	assert.Equal(t, tail, sortClause("", false))
	assert.Equal(t,
		append([]any{map[string]any{"price": map[string]any{"order": "asc"}}}, tail...),
		sortClause(core.SortPriceAsc, true))
}

func TestSearchBody(t *testing.T) {
	body := searchBody(core.SearchQuery{
		Text:       " áo sơ mi ",
		CategoryID: "c1",
		MinPrice:   100_000,
		Page:       core.Page{Page: 3, Limit: 12},
	})
	assert.Equal(t, 24, body["from"])
	assert.Equal(t, 12, body["size"])

	b := body["query"].(map[string]any)["bool"].(map[string]any)
	mm := b["must"].([]any)[0].(map[string]any)["multi_match"].(map[string]any)
	assert.Equal(t, "áo sơ mi", mm["query"])
	assert.Equal(t, "AUTO", mm["fuzziness"])

	f := b["filter"].([]any)
	assert.Len(t, f, 4)
	assert.Contains(t, f, map[string]any{"term": map[string]any{"category_id": "c1"}})
	assert.Contains(t, f, map[string]any{"range": map[string]any{"price": map[string]any{"gte": int64(100_000)}}})
}

func TestFacetsBodyUsesSharedPriceRanges(t *testing.T) {
	aggs := facetsBody(core.SearchQuery{})["aggs"].(map[string]any)
	ranges := aggs["prices"].(map[string]any)["range"].(map[string]any)["ranges"].([]any)
	require.Len(t, ranges, len(core.PriceRanges))
	assert.NotContains(t, ranges[len(ranges)-1], "to")
}

// fakeCluster answers like Elasticsearch for the handful of endpoints used here.
func fakeCluster(t *testing.T, handle func(w http.ResponseWriter, r *http.Request, body map[string]any)) *Index {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		var body map[string]any
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			_ = json.Unmarshal(b, &body)
		}
		handle(w, r, body)
	}))
	t.Cleanup(srv.Close)

	idx, err := New(Config{URL: srv.URL, Index: "products"})
	require.NoError(t, err)
	return idx
}

func TestIndexSearch(t *testing.T) {
	var seen map[string]any
	idx := fakeCluster(t, func(w http.ResponseWriter, r *http.Request, body map[string]any) {
		assert.Equal(t, "/products/_search", r.URL.Path)
		seen = body
		_, _ = io.WriteString(w, `{
			"hits": {
				"total": {"value": 31},
				"hits": [
					{"_source": {"id": "p1", "name": "Áo sơ mi", "price": 300000, "discount_percentage": 10, "name_folded": "ao so mi", "discounted_price": 270000}},
					{"_source": {"id": "p2", "name": "Áo thun", "price": 150000}}
				]
			}
		}`)
	})

	items, total, err := idx.Search(context.Background(), core.SearchQuery{Text: "ao", Page: core.Page{Page: 1, Limit: 2}})
	require.NoError(t, err)
	assert.Equal(t, int64(31), total)
	require.Len(t, items, 2)
	assert.Equal(t, "Áo sơ mi", items[0].Name)
	assert.Equal(t, int64(270_000), items[0].DiscountedPrice())
	assert.EqualValues(t, 2, seen["size"])
}

func TestIndexFacets(t *testing.T) {
	idx := fakeCluster(t, func(w http.ResponseWriter, _ *http.Request, _ map[string]any) {
		_, _ = io.WriteString(w, `{
			"hits": {"total": {"value": 3}, "hits": []},
			"aggregations": {
				"categories": {"buckets": [{"key": "c1", "doc_count": 2}, {"key": "c2", "doc_count": 1}]},
				"brands": {"buckets": [{"key": "b1", "doc_count": 3}]},
				"prices": {"buckets": [
					{"key": "Dưới 500K", "doc_count": 2},
					{"key": "500K - 1 triệu", "doc_count": 0},
					{"key": "1 - 2 triệu", "doc_count": 1},
					{"key": "Trên 2 triệu", "doc_count": 0}
				]}
			}
		}`)
	})

	f, err := idx.Facets(context.Background(), core.SearchQuery{})
	require.NoError(t, err)
	assert.Equal(t, []core.FacetBucket{{Key: "c1", Count: 2}, {Key: "c2", Count: 1}}, f.Categories)
	assert.Equal(t, []core.FacetBucket{{Key: "b1", Count: 3}}, f.Brands)
	require.Len(t, f.PriceRanges, 4)
	assert.Equal(t, int64(2), f.PriceRanges[0].Count)
	assert.Equal(t, int64(1), f.PriceRanges[2].Count)
	assert.Zero(t, core.PriceRanges[0].Count, "shared ranges must not be mutated")
}

func TestIndexSuggestDeduplicates(t *testing.T) {
	idx := fakeCluster(t, func(w http.ResponseWriter, _ *http.Request, _ map[string]any) {
		_, _ = io.WriteString(w, `{"hits": {"total": {"value": 3}, "hits": [
			{"_source": {"name": "Áo thun"}},
			{"_source": {"name": "Áo thun"}},
			{"_source": {"name": "Áo khoác"}}
		]}}`)
	})

	out, err := idx.Suggest(context.Background(), "ao", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"Áo thun", "Áo khoác"}, out)
}

func TestIndexDeleteMissing(t *testing.T) {
	idx := fakeCluster(t, func(w http.ResponseWriter, r *http.Request, _ map[string]any) {
		assert.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"result": "not_found"}`)
	})

	err := idx.Delete(context.Background(), "p9")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestIndexSearchErrorStatus(t *testing.T) {
	idx := fakeCluster(t, func(w http.ResponseWriter, _ *http.Request, _ map[string]any) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"error": "cluster_block_exception"}`)
	})

	_, _, err := idx.Search(context.Background(), core.SearchQuery{Page: core.Page{Page: 1, Limit: 10}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cluster_block_exception")
}

func TestNewWithoutURL(t *testing.T) {
	idx, err := New(Config{})
	require.NoError(t, err)
	assert.Nil(t, idx)
}
