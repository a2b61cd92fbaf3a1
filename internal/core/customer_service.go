package core

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
)

type CustomerSummary struct {
	User
	TotalOrders int64 `json:"total_orders"`
	TotalSpent  int64 `json:"total_spent"`
}

type CustomerStats struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Inactive int64 `json:"inactive"`
}

// CustomerService is the admin view of customer accounts.
type CustomerService interface {
	List(ctx context.Context, search string, p Page) (PageResult[CustomerSummary], error)
	Get(ctx context.Context, id string) (CustomerSummary, error)
	Stats(ctx context.Context) (CustomerStats, error)
	SetActive(ctx context.Context, id string, active bool) (User, error)
	Orders(ctx context.Context, id string, p Page) (PageResult[Order], error)
}

type customerService struct {
	users  UserRepo
	orders OrderRepo
	clock  func() time.Time
}

func NewCustomerService(users UserRepo, orders OrderRepo, opts ...Option) CustomerService {
	o := buildOptions(opts)
	return &customerService{users: users, orders: orders, clock: o.clock}
}

func (s *customerService) List(ctx context.Context, search string, p Page) (PageResult[CustomerSummary], error) {
	p = p.Normalize()
	users, total, err := s.users.List(ctx, UserFilter{Role: RoleCustomer, Search: search, Page: p})
	if err != nil {
		return PageResult[CustomerSummary]{}, err
	}

	out := make([]CustomerSummary, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, u := range users {
		g.Go(func() error {
			sum, err := s.summarize(gctx, u)
			out[i] = sum
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return PageResult[CustomerSummary]{}, err
	}
	return NewPageResult(out, total, p), nil
}

func (s *customerService) summarize(ctx context.Context, u User) (CustomerSummary, error) {
	all, err := s.orders.Count(ctx, OrderFilter{UserID: u.ID})
	if err != nil {
		return CustomerSummary{}, err
	}
	spent, err := s.orders.Totals(ctx, OrderFilter{UserID: u.ID, Status: OrderDelivered})
	if err != nil {
		return CustomerSummary{}, err
	}
	return CustomerSummary{User: u, TotalOrders: all, TotalSpent: spent.Revenue}, nil
}

func (s *customerService) Get(ctx context.Context, id string) (CustomerSummary, error) {
	u, err := s.customer(ctx, id)
	if err != nil {
		return CustomerSummary{}, err
	}
	return s.summarize(ctx, u)
}

func (s *customerService) Stats(ctx context.Context) (CustomerStats, error) {
	var st CustomerStats
	active := true
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.users.Count(gctx, UserFilter{Role: RoleCustomer})
		st.Total = n
		return err
	})
	g.Go(func() error {
		n, err := s.users.Count(gctx, UserFilter{Role: RoleCustomer, IsActive: &active})
		st.Active = n
		return err
	})
	if err := g.Wait(); err != nil {
		return CustomerStats{}, err
	}
	st.Inactive = st.Total - st.Active
	return st, nil
}

func (s *customerService) SetActive(ctx context.Context, id string, active bool) (User, error) {
	u, err := s.customer(ctx, id)
	if err != nil {
		return User{}, err
	}
	now := s.clock()
	if err := s.users.SetActive(ctx, id, active, now); err != nil {
		return User{}, err
	}
	u.IsActive = active
	u.UpdatedAt = now
	return u, nil
}

func (s *customerService) Orders(ctx context.Context, id string, p Page) (PageResult[Order], error) {
	if _, err := s.customer(ctx, id); err != nil {
		return PageResult[Order]{}, err
	}
	p = p.Normalize()
	items, total, err := s.orders.List(ctx, OrderFilter{UserID: id, Sort: OrderSortNewest, Page: p})
	if err != nil {
		return PageResult[Order]{}, err
	}
	return NewPageResult(items, total, p), nil
}

// customer loads a user and hides admin accounts.
func (s *customerService) customer(ctx context.Context, id string) (User, error) {
	if id == "" {
		return User{}, fmt.Errorf("%w: missing customer ID", ErrValidation)
	}
	u, err := s.users.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if u.Role != RoleCustomer {
		return User{}, ErrUserNotFound
	}
	return u, nil
}
