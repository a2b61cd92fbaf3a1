package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Brand struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Logo        string    `json:"logo,omitempty"`
	Website     string    `json:"website,omitempty"`
	Country     string    `json:"country,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type BrandInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Logo        string `json:"logo"`
	Website     string `json:"website"`
	Country     string `json:"country"`
}

type Category struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

type BrandRepo interface {
	Create(ctx context.Context, b Brand) error
	Get(ctx context.Context, id string) (Brand, error)
	Update(ctx context.Context, b Brand) error
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) (int64, error)
	List(ctx context.Context, search string, p Page) ([]Brand, int64, error)
	Count(ctx context.Context) (int64, error)
}

type CategoryRepo interface {
	Create(ctx context.Context, c Category) error
	Get(ctx context.Context, id string) (Category, error)
	Update(ctx context.Context, c Category) error
	Delete(ctx context.Context, id string) error
	DeleteMany(ctx context.Context, ids []string) (int64, error)
	List(ctx context.Context, search string, p Page) ([]Category, int64, error)
	Count(ctx context.Context) (int64, error)
}

func (in *BrandInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return fmt.Errorf("%w: brand name is required", ErrValidation)
	}
	if len(in.Name) > 100 {
		return fmt.Errorf("%w: brand name must be at most 100 characters", ErrValidation)
	}
	return nil
}

func (in *CategoryInput) Validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return fmt.Errorf("%w: category name is required", ErrValidation)
	}
	if len(in.Name) > 100 {
		return fmt.Errorf("%w: category name must be at most 100 characters", ErrValidation)
	}
	return nil
}

var (
	ErrBrandNotFound    = fmt.Errorf("%w: brand not found", ErrNotFound)
	ErrBrandExists      = fmt.Errorf("%w: brand name already exists", ErrConflict)
	ErrBrandInUse       = fmt.Errorf("%w: brand still has products", ErrConflict)
	ErrCategoryNotFound = fmt.Errorf("%w: category not found", ErrNotFound)
	ErrCategoryExists   = fmt.Errorf("%w: category name already exists", ErrConflict)
	ErrCategoryInUse    = fmt.Errorf("%w: category still has products", ErrConflict)
)
