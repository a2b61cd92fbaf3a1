package core

import (
	"context"
	"fmt"
	"time"

	"github.com/uteshop/uteshop-api/internal/platform/ids"
)

// CatalogService manages brands and categories.
type CatalogService interface {
	ListBrands(ctx context.Context, search string, p Page) (PageResult[Brand], error)
	GetBrand(ctx context.Context, id string) (Brand, error)
	CreateBrand(ctx context.Context, in BrandInput) (Brand, error)
	UpdateBrand(ctx context.Context, id string, in BrandInput) (Brand, error)
	DeleteBrand(ctx context.Context, id string) error
	DeleteBrands(ctx context.Context, ids []string) (int64, error)

	ListCategories(ctx context.Context, search string, p Page) (PageResult[Category], error)
	GetCategory(ctx context.Context, id string) (Category, error)
	CreateCategory(ctx context.Context, in CategoryInput) (Category, error)
	UpdateCategory(ctx context.Context, id string, in CategoryInput) (Category, error)
	DeleteCategory(ctx context.Context, id string) error
	DeleteCategories(ctx context.Context, ids []string) (int64, error)
}

type catalogService struct {
	brands     BrandRepo
	categories CategoryRepo
	products   ProductRepo
	clock      func() time.Time
}

func NewCatalogService(brands BrandRepo, categories CategoryRepo, products ProductRepo, opts ...Option) CatalogService {
	o := buildOptions(opts)
	return &catalogService{
		brands:     brands,
		categories: categories,
		products:   products,
		clock:      o.clock,
	}
}

func (s *catalogService) ListBrands(ctx context.Context, search string, p Page) (PageResult[Brand], error) {
	p = p.Normalize()
	items, total, err := s.brands.List(ctx, search, p)
	if err != nil {
		return PageResult[Brand]{}, err
	}
	return NewPageResult(items, total, p), nil
}

func (s *catalogService) GetBrand(ctx context.Context, id string) (Brand, error) {
	if id == "" {
		return Brand{}, fmt.Errorf("%w: missing brand ID", ErrValidation)
	}
	return s.brands.Get(ctx, id)
}

func (s *catalogService) CreateBrand(ctx context.Context, in BrandInput) (Brand, error) {
	if err := in.Validate(); err != nil {
		return Brand{}, err
	}
	now := s.clock()
	b := Brand{
		ID:          ids.New(),
		Name:        in.Name,
		Description: in.Description,
		Logo:        in.Logo,
		Website:     in.Website,
		Country:     in.Country,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.brands.Create(ctx, b); err != nil {
		return Brand{}, err
	}
	return b, nil
}

func (s *catalogService) UpdateBrand(ctx context.Context, id string, in BrandInput) (Brand, error) {
	if err := in.Validate(); err != nil {
		return Brand{}, err
	}
	b, err := s.brands.Get(ctx, id)
	if err != nil {
		return Brand{}, err
	}
	b.Name = in.Name
	b.Description = in.Description
	b.Logo = in.Logo
	b.Website = in.Website
	b.Country = in.Country
	b.UpdatedAt = s.clock()
	if err := s.brands.Update(ctx, b); err != nil {
		return Brand{}, err
	}
	return b, nil
}

func (s *catalogService) DeleteBrand(ctx context.Context, id string) error {
	n, err := s.products.Count(ctx, ProductFilter{BrandID: id})
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w (%d products)", ErrBrandInUse, n)
	}
	return s.brands.Delete(ctx, id)
}

func (s *catalogService) DeleteBrands(ctx context.Context, brandIDs []string) (int64, error) {
	if len(brandIDs) == 0 {
		return 0, fmt.Errorf("%w: ids are required", ErrValidation)
	}
	for _, id := range brandIDs {
		n, err := s.products.Count(ctx, ProductFilter{BrandID: id})
		if err != nil {
			return 0, err
		}
		if n > 0 {
			return 0, fmt.Errorf("%w: brand %s has %d products", ErrBrandInUse, id, n)
		}
	}
	return s.brands.DeleteMany(ctx, brandIDs)
}

func (s *catalogService) ListCategories(ctx context.Context, search string, p Page) (PageResult[Category], error) {
	p = p.Normalize()
	items, total, err := s.categories.List(ctx, search, p)
	if err != nil {
		return PageResult[Category]{}, err
	}
	return NewPageResult(items, total, p), nil
}

func (s *catalogService) GetCategory(ctx context.Context, id string) (Category, error) {
	if id == "" {
		return Category{}, fmt.Errorf("%w: missing category ID", ErrValidation)
	}
	return s.categories.Get(ctx, id)
}

func (s *catalogService) CreateCategory(ctx context.Context, in CategoryInput) (Category, error) {
	if err := in.Validate(); err != nil {
		return Category{}, err
	}
	now := s.clock()
	c := Category{
		ID:          ids.New(),
		Name:        in.Name,
		Description: in.Description,
		Image:       in.Image,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.categories.Create(ctx, c); err != nil {
		return Category{}, err
	}
	return c, nil
}

func (s *catalogService) UpdateCategory(ctx context.Context, id string, in CategoryInput) (Category, error) {
	if err := in.Validate(); err != nil {
		return Category{}, err
	}
	c, err := s.categories.Get(ctx, id)
	if err != nil {
		return Category{}, err
	}
	c.Name = in.Name
	c.Description = in.Description
	c.Image = in.Image
	c.UpdatedAt = s.clock()
	if err := s.categories.Update(ctx, c); err != nil {
		return Category{}, err
	}
	return c, nil
}

func (s *catalogService) DeleteCategory(ctx context.Context, id string) error {
	n, err := s.products.Count(ctx, ProductFilter{CategoryID: id})
	if err != nil {
		return err
	}
	if n > 0 {
		return fmt.Errorf("%w (%d products)", ErrCategoryInUse, n)
	}
	return s.categories.Delete(ctx, id)
}

func (s *catalogService) DeleteCategories(ctx context.Context, categoryIDs []string) (int64, error) {
	if len(categoryIDs) == 0 {
		return 0, fmt.Errorf("%w: ids are required", ErrValidation)
	}
	for _, id := range categoryIDs {
		n, err := s.products.Count(ctx, ProductFilter{CategoryID: id})
		if err != nil {
			return 0, err
		}
		if n > 0 {
			return 0, fmt.Errorf("%w: category %s has %d products", ErrCategoryInUse, id, n)
		}
	}
	return s.categories.DeleteMany(ctx, categoryIDs)
}
