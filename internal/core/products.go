package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type ProductSort string

const (
	SortNewest      ProductSort = "newest"
	SortBestSelling ProductSort = "best-selling"
	SortMostViewed  ProductSort = "most-viewed"
	SortTopDiscount ProductSort = "top-discount"
	SortPriceAsc    ProductSort = "price-asc"
	SortPriceDesc   ProductSort = "price-desc"
)

// ParseProductSort accepts an empty value as newest.
func ParseProductSort(s string) (ProductSort, error) {
	switch ProductSort(s) {
	case "":
		return SortNewest, nil
	case SortNewest, SortBestSelling, SortMostViewed, SortTopDiscount, SortPriceAsc, SortPriceDesc:
		return ProductSort(s), nil
	}
	return "", fmt.Errorf("%w: unknown sort %q", ErrValidation, s)
}

type SizeStock struct {
	Size  string `json:"size"`
	Stock int    `json:"stock"`
}

type Product struct {
	ID                 string      `json:"id"`
	Name               string      `json:"name"`
	Description        string      `json:"description,omitempty"`
	Price              int64       `json:"price"`
	Stock              int         `json:"stock"`
	Images             []string    `json:"images"`
	CategoryID         string      `json:"category_id"`
	BrandID            string      `json:"brand_id"`
	SoldCount          int64       `json:"sold_count"`
	ViewCount          int64       `json:"view_count"`
	DiscountPercentage int         `json:"discount_percentage"`
	IsActive           bool        `json:"is_active"`
	IsVisible          bool        `json:"is_visible"`
	Sizes              []SizeStock `json:"sizes,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// DiscountedPrice is the selling price after the product discount, in whole VND.
func (p Product) DiscountedPrice() int64 {
	return p.Price - p.Price*int64(p.DiscountPercentage)/100
}

// Purchasable reports whether customers can see and buy the product.
func (p Product) Purchasable() bool {
	return p.IsActive && p.IsVisible
}

// HasSizes reports whether stock is tracked per size.
func (p Product) HasSizes() bool {
	return len(p.Sizes) > 0
}

// Available returns the stock for a size, or the total stock for unsized products.
func (p Product) Available(size string) (int, error) {
	if !p.HasSizes() {
		return p.Stock, nil
	}
	if size == "" {
		return 0, fmt.Errorf("%w: size is required for %s", ErrValidation, p.Name)
	}
	for _, s := range p.Sizes {
		if s.Size == size {
			return s.Stock, nil
		}
	}
	return 0, fmt.Errorf("%w: size %q is not offered for %s", ErrValidation, size, p.Name)
}

type ProductInput struct {
	Name               string      `json:"name"`
	Description        string      `json:"description"`
	Price              int64       `json:"price"`
	Stock              int         `json:"stock"`
	Images             []string    `json:"images"`
	CategoryID         string      `json:"category_id"`
	BrandID            string      `json:"brand_id"`
	DiscountPercentage int         `json:"discount_percentage"`
	IsActive           *bool       `json:"is_active,omitempty"`
	IsVisible          *bool       `json:"is_visible,omitempty"`
	Sizes              []SizeStock `json:"sizes,omitempty"`
}

func (in *ProductInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return fmt.Errorf("%w: product name is required", ErrValidation)
	}
	if in.Price <= 0 {
		return fmt.Errorf("%w: price must be greater than 0", ErrValidation)
	}
	if in.Stock < 0 {
		return fmt.Errorf("%w: stock cannot be negative", ErrValidation)
	}
	if err := validateDiscountPercentage(in.DiscountPercentage); err != nil {
		return err
	}
	if in.CategoryID == "" {
		return fmt.Errorf("%w: category_id is required", ErrValidation)
	}
	if in.BrandID == "" {
		return fmt.Errorf("%w: brand_id is required", ErrValidation)
	}
	seen := make(map[string]bool, len(in.Sizes))
	total := 0
	for i, s := range in.Sizes {
		s.Size = strings.TrimSpace(s.Size)
		in.Sizes[i].Size = s.Size
		if s.Size == "" {
			return fmt.Errorf("%w: size label is required", ErrValidation)
		}
		if seen[s.Size] {
			return fmt.Errorf("%w: duplicate size %q", ErrValidation, s.Size)
		}
		if s.Stock < 0 {
			return fmt.Errorf("%w: stock for size %q cannot be negative", ErrValidation, s.Size)
		}
		seen[s.Size] = true
		total += s.Stock
	}
	if len(in.Sizes) > 0 {
		in.Stock = total
	}
	return nil
}

func validateDiscountPercentage(pct int) error {
	if pct < 0 || pct > 100 {
		return fmt.Errorf("%w: discount percentage must be between 0 and 100", ErrValidation)
	}
	return nil
}

type ProductFilter struct {
	Search      string
	CategoryID  string
	BrandID     string
	MinPrice    int64
	MaxPrice    int64
	IDs         []string
	ExcludeID   string
	VisibleOnly bool
	CreatedGTE  *time.Time
	CreatedLT   *time.Time
	Sort        ProductSort
	Page        Page
}

type ProductRepo interface {
	Create(ctx context.Context, p Product) error
	Get(ctx context.Context, id string) (Product, error)
	GetMany(ctx context.Context, ids []string) ([]Product, error)
	Update(ctx context.Context, p Product) error
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) (int64, error)
	List(ctx context.Context, f ProductFilter) ([]Product, int64, error)
	Count(ctx context.Context, f ProductFilter) (int64, error)
	IncrementViews(ctx context.Context, id string) error
	// ReserveStock takes qty units (of size, when sized) and counts them as
	// sold, failing with ErrInsufficientStock when not enough are left.
	ReserveStock(ctx context.Context, id, size string, qty int) error
	ReleaseStock(ctx context.Context, id, size string, qty int) error
	SetDiscount(ctx context.Context, id string, pct int, at time.Time) error
	SetVisibility(ctx context.Context, id string, visible bool, at time.Time) error
	AddImage(ctx context.Context, id, url string, at time.Time) error
}

// HomeBlocks feeds the storefront landing page.
type HomeBlocks struct {
	Newest      []Product  `json:"newest"`
	BestSelling []Product  `json:"best_selling"`
	MostViewed  []Product  `json:"most_viewed"`
	TopDiscount []Product  `json:"top_discount"`
	Totals      HomeTotals `json:"totals"`
}

type HomeTotals struct {
	Products   int64 `json:"products"`
	Categories int64 `json:"categories"`
	Brands     int64 `json:"brands"`
}

type ProductStats struct {
	ProductID     string  `json:"product_id"`
	SoldCount     int64   `json:"sold_count"`
	ViewCount     int64   `json:"view_count"`
	ReviewCount   int64   `json:"review_count"`
	AverageRating float64 `json:"average_rating"`
	FavoriteCount int64   `json:"favorite_count"`
}

var (
	ErrProductNotFound   = fmt.Errorf("%w: product not found", ErrNotFound)
	ErrInsufficientStock = fmt.Errorf("%w: insufficient stock", ErrConflict)
)
