package core

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Page is a 1-based page request.
type Page struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// NewPage clamps page and limit into range, falling back to def for the limit.
func NewPage(page, limit, def int) Page {
	if page < 1 {
		page = 1
	}
	if def <= 0 {
		def = DefaultPageSize
	}
	if limit <= 0 {
		limit = def
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return Page{Page: page, Limit: limit}
}

func (p Page) Offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Normalize fills a zero page with defaults.
func (p Page) Normalize() Page {
	return NewPage(p.Page, p.Limit, DefaultPageSize)
}

// PageResult carries one page of items plus the total match count.
type PageResult[T any] struct {
	Items []T   `json:"items"`
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
}

func NewPageResult[T any](items []T, total int64, p Page) PageResult[T] {
	if items == nil {
		items = []T{}
	}
	return PageResult[T]{Items: items, Total: total, Page: p.Page, Limit: p.Limit}
}

// TotalPages is derived rather than stored.
func (r PageResult[T]) TotalPages() int {
	if r.Limit <= 0 {
		return 0
	}
	return int((r.Total + int64(r.Limit) - 1) / int64(r.Limit))
}
