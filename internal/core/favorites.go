package core

import (
	"context"
	"fmt"
	"time"
)

type Favorite struct {
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

type FavoriteRepo interface {
	// Add is idempotent.
	Add(ctx context.Context, f Favorite) error
	Remove(ctx context.Context, userID, productID string) error
	List(ctx context.Context, userID string) ([]Favorite, error)
	Exists(ctx context.Context, userID, productID string) (bool, error)
	CountForProduct(ctx context.Context, productID string) (int64, error)
}

type ViewedProduct struct {
	UserID    string    `json:"user_id"`
	ProductID string    `json:"product_id"`
	ViewedAt  time.Time `json:"viewed_at"`
}

type ViewedRepo interface {
	// Record upserts on (user, product) and refreshes ViewedAt.
	Record(ctx context.Context, userID, productID string, at time.Time) error
	List(ctx context.Context, userID string, limit int) ([]ViewedProduct, error)
	Remove(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
}

// ProductEntry pairs a user's list entry with the product it points to.
type ProductEntry struct {
	Product Product   `json:"product"`
	At      time.Time `json:"at"`
}

const viewedHistoryLimit = 20

// LibraryService covers the per-user product lists: favorites and recently viewed.
type LibraryService interface {
	AddFavorite(ctx context.Context, userID, productID string) error
	RemoveFavorite(ctx context.Context, userID, productID string) error
	Favorites(ctx context.Context, userID string) ([]ProductEntry, error)
	IsFavorite(ctx context.Context, userID, productID string) (bool, error)

	Viewed(ctx context.Context, userID string) ([]ProductEntry, error)
	RemoveViewed(ctx context.Context, userID, productID string) error
	ClearViewed(ctx context.Context, userID string) error
}

type libraryService struct {
	favorites FavoriteRepo
	viewed    ViewedRepo
	products  ProductRepo
	clock     func() time.Time
}

func NewLibraryService(favorites FavoriteRepo, viewed ViewedRepo, products ProductRepo, opts ...Option) LibraryService {
	o := buildOptions(opts)
	return &libraryService{favorites: favorites, viewed: viewed, products: products, clock: o.clock}
}

func (s *libraryService) AddFavorite(ctx context.Context, userID, productID string) error {
	if productID == "" {
		return fmt.Errorf("%w: product_id is required", ErrValidation)
	}
	if _, err := s.products.Get(ctx, productID); err != nil {
		return err
	}
	return s.favorites.Add(ctx, Favorite{UserID: userID, ProductID: productID, CreatedAt: s.clock()})
}

func (s *libraryService) RemoveFavorite(ctx context.Context, userID, productID string) error {
	return s.favorites.Remove(ctx, userID, productID)
}

func (s *libraryService) Favorites(ctx context.Context, userID string) ([]ProductEntry, error) {
	favs, err := s.favorites.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(favs))
	at := make(map[string]time.Time, len(favs))
	for i, f := range favs {
		ids[i] = f.ProductID
		at[f.ProductID] = f.CreatedAt
	}
	return s.join(ctx, ids, at)
}

func (s *libraryService) IsFavorite(ctx context.Context, userID, productID string) (bool, error) {
	return s.favorites.Exists(ctx, userID, productID)
}

func (s *libraryService) Viewed(ctx context.Context, userID string) ([]ProductEntry, error) {
	views, err := s.viewed.List(ctx, userID, viewedHistoryLimit)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(views))
	at := make(map[string]time.Time, len(views))
	for i, v := range views {
		ids[i] = v.ProductID
		at[v.ProductID] = v.ViewedAt
	}
	return s.join(ctx, ids, at)
}

func (s *libraryService) RemoveViewed(ctx context.Context, userID, productID string) error {
	return s.viewed.Remove(ctx, userID, productID)
}

func (s *libraryService) ClearViewed(ctx context.Context, userID string) error {
	return s.viewed.Clear(ctx, userID)
}

// join keeps the order of ids and skips products that no longer exist.
func (s *libraryService) join(ctx context.Context, ids []string, at map[string]time.Time) ([]ProductEntry, error) {
	if len(ids) == 0 {
		return []ProductEntry{}, nil
	}
	products, err := s.products.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	out := make([]ProductEntry, 0, len(ids))
	for _, id := range ids {
		p, ok := byID[id]
		if !ok {
			continue
		}
		out = append(out, ProductEntry{Product: p, At: at[id]})
	}
	return out, nil
}
