package core

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type CartItem struct {
	ProductID string    `json:"product_id"`
	Size      string    `json:"size,omitempty"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"added_at"`
}

type Cart struct {
	UserID    string     `json:"user_id"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CartKey identifies a cart line.
type CartKey struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size,omitempty"`
}

type CartRepo interface {
	// Get returns an empty cart when the user has none yet.
	Get(ctx context.Context, userID string) (Cart, error)
	Save(ctx context.Context, c Cart) error
	RemoveItems(ctx context.Context, userID string, keys []CartKey) error
	Clear(ctx context.Context, userID string) error
}

type CartLine struct {
	ProductID          string `json:"product_id"`
	Name               string `json:"name"`
	Image              string `json:"image,omitempty"`
	Size               string `json:"size,omitempty"`
	Quantity           int    `json:"quantity"`
	UnitPrice          int64  `json:"unit_price"`
	OriginalPrice      int64  `json:"original_price"`
	DiscountPercentage int    `json:"discount_percentage"`
	LineTotal          int64  `json:"line_total"`
	Available          int    `json:"available"`
}

type CartView struct {
	Lines     []CartLine `json:"items"`
	Subtotal  int64      `json:"subtotal"`
	ItemCount int        `json:"item_count"`
}

type AddCartItemInput struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

type CartService interface {
	Get(ctx context.Context, userID string) (CartView, error)
	AddItem(ctx context.Context, userID string, in AddCartItemInput) (CartView, error)
	UpdateItem(ctx context.Context, userID string, key CartKey, quantity int) (CartView, error)
	RemoveItem(ctx context.Context, userID string, key CartKey) (CartView, error)
	Clear(ctx context.Context, userID string) error
}

type cartService struct {
	carts    CartRepo
	products ProductRepo
	clock    func() time.Time
}

func NewCartService(carts CartRepo, products ProductRepo, opts ...Option) CartService {
	o := buildOptions(opts)
	return &cartService{carts: carts, products: products, clock: o.clock}
}

func (s *cartService) Get(ctx context.Context, userID string) (CartView, error) {
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return CartView{}, err
	}
	return s.view(ctx, cart)
}

func (s *cartService) AddItem(ctx context.Context, userID string, in AddCartItemInput) (CartView, error) {
	// 1) Validate input
	if in.ProductID == "" {
		return CartView{}, fmt.Errorf("%w: product_id is required", ErrValidation)
	}
	if in.Quantity < 1 {
		return CartView{}, fmt.Errorf("%w: quantity must be at least 1", ErrValidation)
	}

	// 2) Check product and stock
	p, err := s.products.Get(ctx, in.ProductID)
	if err != nil {
		return CartView{}, err
	}
	if !p.Purchasable() {
		return CartView{}, fmt.Errorf("%w: product is not available", ErrInvalidState)
	}
	available, err := p.Available(in.Size)
	if err != nil {
		return CartView{}, err
	}
	if !p.HasSizes() {
		in.Size = ""
	}

	// 3) Merge into cart
	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return CartView{}, err
	}
	now := s.clock()
	merged := false
	for i := range cart.Items {
		if cart.Items[i].ProductID == in.ProductID && cart.Items[i].Size == in.Size {
			cart.Items[i].Quantity += in.Quantity
			if cart.Items[i].Quantity > available {
				return CartView{}, fmt.Errorf("%w: only %d left", ErrInsufficientStock, available)
			}
			merged = true
			break
		}
	}
	if !merged {
		if in.Quantity > available {
			return CartView{}, fmt.Errorf("%w: only %d left", ErrInsufficientStock, available)
		}
		cart.Items = append(cart.Items, CartItem{
			ProductID: in.ProductID,
			Size:      in.Size,
			Quantity:  in.Quantity,
			AddedAt:   now,
		})
	}
	cart.UserID = userID
	cart.UpdatedAt = now

	// 4) Persist
	if err := s.carts.Save(ctx, cart); err != nil {
		return CartView{}, err
	}
	return s.view(ctx, cart)
}

func (s *cartService) UpdateItem(ctx context.Context, userID string, key CartKey, quantity int) (CartView, error) {
	if quantity < 0 {
		return CartView{}, fmt.Errorf("%w: quantity cannot be negative", ErrValidation)
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, userID, key)
	}

	cart, err := s.carts.Get(ctx, userID)
	if err != nil {
		return CartView{}, err
	}
	idx := cart.indexOf(key)
	if idx < 0 {
		return CartView{}, ErrCartItemNotFound
	}

	p, err := s.products.Get(ctx, key.ProductID)
	if err != nil {
		return CartView{}, err
	}
	available, err := p.Available(key.Size)
	if err != nil {
		return CartView{}, err
	}
	if quantity > available {
		return CartView{}, fmt.Errorf("%w: only %d left", ErrInsufficientStock, available)
	}

	cart.Items[idx].Quantity = quantity
	cart.UpdatedAt = s.clock()
	if err := s.carts.Save(ctx, cart); err != nil {
		return CartView{}, err
	}
	return s.view(ctx, cart)
}

func (s *cartService) RemoveItem(ctx context.Context, userID string, key CartKey) (CartView, error) {
	if err := s.carts.RemoveItems(ctx, userID, []CartKey{key}); err != nil {
		return CartView{}, err
	}
	return s.Get(ctx, userID)
}

func (s *cartService) Clear(ctx context.Context, userID string) error {
	return s.carts.Clear(ctx, userID)
}

func (c Cart) indexOf(key CartKey) int {
	for i, it := range c.Items {
		if it.ProductID == key.ProductID && it.Size == key.Size {
			return i
		}
	}
	return -1
}

// view prices the cart from current product data; vanished products are skipped.
func (s *cartService) view(ctx context.Context, cart Cart) (CartView, error) {
	v := CartView{Lines: []CartLine{}}
	if len(cart.Items) == 0 {
		return v, nil
	}

	ids := make([]string, 0, len(cart.Items))
	for _, it := range cart.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.products.GetMany(ctx, ids)
	if err != nil {
		return CartView{}, err
	}
	byID := make(map[string]Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	for _, it := range cart.Items {
		p, ok := byID[it.ProductID]
		if !ok {
			continue
		}
		available, err := p.Available(it.Size)
		if err != nil && !errors.Is(err, ErrValidation) {
			return CartView{}, err
		}
		unit := p.DiscountedPrice()
		line := CartLine{
			ProductID:          p.ID,
			Name:               p.Name,
			Size:               it.Size,
			Quantity:           it.Quantity,
			UnitPrice:          unit,
			OriginalPrice:      p.Price,
			DiscountPercentage: p.DiscountPercentage,
			LineTotal:          unit * int64(it.Quantity),
			Available:          available,
		}
		if len(p.Images) > 0 {
			line.Image = p.Images[0]
		}
		v.Lines = append(v.Lines, line)
		v.Subtotal += line.LineTotal
		v.ItemCount += it.Quantity
	}
	return v, nil
}

var ErrCartItemNotFound = fmt.Errorf("%w: item not in cart", ErrNotFound)
