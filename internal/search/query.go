package search

import (
	"strings"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/platform/textnorm"
)

const facetBuckets = 50

// filters restricts hits to purchasable products matching the query facets.
func filters(q core.SearchQuery) []any {
	out := []any{
		map[string]any{"term": map[string]any{"is_active": true}},
		map[string]any{"term": map[string]any{"is_visible": true}},
	}
	if q.CategoryID != "" {
		out = append(out, map[string]any{"term": map[string]any{"category_id": q.CategoryID}})
	}
	if q.BrandID != "" {
		out = append(out, map[string]any{"term": map[string]any{"brand_id": q.BrandID}})
	}
	if q.MinPrice > 0 || q.MaxPrice > 0 {
		rng := map[string]any{}
		if q.MinPrice > 0 {
			rng["gte"] = q.MinPrice
		}
		if q.MaxPrice > 0 {
			rng["lte"] = q.MaxPrice
		}
		out = append(out, map[string]any{"range": map[string]any{"price": rng}})
	}
	return out
}

func boolQuery(q core.SearchQuery) map[string]any {
	b := map[string]any{"filter": filters(q)}
	if text := strings.TrimSpace(q.Text); text != "" {
		b["must"] = []any{map[string]any{
			"multi_match": map[string]any{
				"query":     text,
				"fields":    []string{"name^3", "name_folded^2", "description"},
				"fuzziness": "AUTO",
			},
		}}
	}
	return map[string]any{"bool": b}
}

// sortClause orders by relevance when there is text and no explicit sort.
func sortClause(s core.ProductSort, hasText bool) []any {
	desc := func(field string) map[string]any { return map[string]any{field: map[string]any{"order": "desc"}} }
	tail := []any{desc("created_at"), desc("id")}

	var head []any
	switch s {
	case core.SortNewest:
	case core.SortBestSelling:
		head = []any{desc("sold_count")}
	case core.SortMostViewed:
		head = []any{desc("view_count")}
	case core.SortTopDiscount:
		head = []any{desc("discount_percentage")}
	case core.SortPriceAsc:
		head = []any{map[string]any{"price": map[string]any{"order": "asc"}}}
	case core.SortPriceDesc:
		head = []any{desc("price")}
	default:
		if hasText {
			head = []any{"_score"}
		}
	}
	return append(head, tail...)
}

func searchBody(q core.SearchQuery) map[string]any {
	return map[string]any{
		"query": boolQuery(q),
		"sort":  sortClause(q.Sort, strings.TrimSpace(q.Text) != ""),
		"from":  q.Page.Offset(),
		"size":  q.Page.Limit,
	}
}

func suggestBody(prefix string, limit int) map[string]any {
	return map[string]any{
		"_source": []string{"name"},
		"size":    limit * 2,
		"query": map[string]any{
			"bool": map[string]any{
				"filter": filters(core.SearchQuery{}),
				"must": []any{map[string]any{
					"match_phrase_prefix": map[string]any{"name_folded": textnorm.Fold(strings.TrimSpace(prefix))},
				}},
			},
		},
		"sort": []any{"_score", map[string]any{"sold_count": map[string]any{"order": "desc"}}},
	}
}

func facetsBody(q core.SearchQuery) map[string]any {
	ranges := make([]any, 0, len(core.PriceRanges))
	for _, b := range core.PriceRanges {
		r := map[string]any{"key": b.Label, "from": b.From}
		if b.To > 0 {
			r["to"] = b.To
		}
		ranges = append(ranges, r)
	}
	return map[string]any{
		"size":  0,
		"query": boolQuery(q),
		"aggs": map[string]any{
			"categories": map[string]any{"terms": map[string]any{"field": "category_id", "size": facetBuckets}},
			"brands":     map[string]any{"terms": map[string]any{"field": "brand_id", "size": facetBuckets}},
			"prices":     map[string]any{"range": map[string]any{"field": "discounted_price", "ranges": ranges}},
		},
	}
}
