package core

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/uteshop/uteshop-api/internal/platform/tracing"
)

// yearlyBuckets is how many years a yearly series spans, ending at the requested year.
const yearlyBuckets = 5

type Granularity string

const (
	Monthly Granularity = "monthly"
	Yearly  Granularity = "yearly"
)

func ParseGranularity(s string) (Granularity, error) {
	switch Granularity(s) {
	case "", Monthly:
		return Monthly, nil
	case Yearly:
		return Yearly, nil
	}
	return "", fmt.Errorf("%w: type must be monthly or yearly", ErrValidation)
}

type Growth struct {
	Revenue   string `json:"revenue"`
	Orders    string `json:"orders"`
	Customers string `json:"customers"`
	Products  string `json:"products"`
}

type GeneralStats struct {
	Year           int    `json:"year"`
	TotalRevenue   int64  `json:"total_revenue"`
	TotalOrders    int64  `json:"total_orders"`
	TotalCustomers int64  `json:"total_customers"`
	TotalProducts  int64  `json:"total_products"`
	Growth         Growth `json:"growth"`
}

type RevenuePoint struct {
	Label      string `json:"label"`
	Revenue    int64  `json:"revenue"`
	Value      int64  `json:"value"` // revenue in millions of VND
	OrderCount int64  `json:"order_count"`
}

type CountPoint struct {
	Label string `json:"label"`
	Count int64  `json:"count"`
}

type CompletedOrder struct {
	ID           string     `json:"id"`
	OrderCode    string     `json:"order_code"`
	Number       string     `json:"order_number"`
	CustomerName string     `json:"customer_name"`
	CustomerMail string     `json:"customer_email"`
	ItemCount    int        `json:"item_count"`
	TotalPrice   int64      `json:"total_price"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type TopProduct struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	SoldCount int64  `json:"sold_count"`
	Price     int64  `json:"price"`
	Revenue   int64  `json:"revenue"`
}

type AnalyticsService interface {
	General(ctx context.Context, year int) (GeneralStats, error)
	Revenue(ctx context.Context, year int, g Granularity) ([]RevenuePoint, error)
	NewCustomers(ctx context.Context, year int, g Granularity) ([]CountPoint, error)
	CompletedOrders(ctx context.Context, p Page) (PageResult[CompletedOrder], error)
	TopProducts(ctx context.Context, limit int) ([]TopProduct, error)
}

type analyticsService struct {
	orders   OrderRepo
	users    UserRepo
	products ProductRepo
	clock    func() time.Time
}

func NewAnalyticsService(orders OrderRepo, users UserRepo, products ProductRepo, opts ...Option) AnalyticsService {
	o := buildOptions(opts)
	return &analyticsService{orders: orders, users: users, products: products, clock: o.clock}
}

// period is a half-open [from, to) range with a display label.
type period struct {
	label    string
	from, to time.Time
}

func yearRange(year int) (time.Time, time.Time) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(1, 0, 0)
}

func periods(year int, g Granularity) []period {
	if g == Yearly {
		out := make([]period, 0, yearlyBuckets)
		for y := year - yearlyBuckets + 1; y <= year; y++ {
			from, to := yearRange(y)
			out = append(out, period{label: strconv.Itoa(y), from: from, to: to})
		}
		return out
	}
	out := make([]period, 0, 12)
	start, _ := yearRange(year)
	for m := range 12 {
		from := start.AddDate(0, m, 0)
		out = append(out, period{label: fmt.Sprintf("T%d", m+1), from: from, to: from.AddDate(0, 1, 0)})
	}
	return out
}

func (s *analyticsService) year(year int) (int, error) {
	if year == 0 {
		return s.clock().Year(), nil
	}
	if year < 2000 || year > 9999 {
		return 0, fmt.Errorf("%w: invalid year %d", ErrValidation, year)
	}
	return year, nil
}

func (s *analyticsService) General(ctx context.Context, year int) (GeneralStats, error) {
	year, err := s.year(year)
	if err != nil {
		return GeneralStats{}, err
	}
	ctx, span := tracing.Start(ctx, "analytics.general", attribute.Int("year", year))
	defer span.End()

	from, to := yearRange(year)
	prevFrom := from.AddDate(-1, 0, 0)

	var (
		cur, prev                OrderTotals
		customers, prevCustomers int64
		products, newProducts    int64
		prevProducts             int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cur, err = s.orders.Totals(gctx, OrderFilter{Status: OrderDelivered, CreatedGTE: &from, CreatedLT: &to})
		return err
	})
	g.Go(func() (err error) {
		prev, err = s.orders.Totals(gctx, OrderFilter{Status: OrderDelivered, CreatedGTE: &prevFrom, CreatedLT: &from})
		return err
	})
	g.Go(func() (err error) {
		customers, err = s.users.Count(gctx, UserFilter{Role: RoleCustomer, CreatedGTE: &from, CreatedLT: &to})
		return err
	})
	g.Go(func() (err error) {
		prevCustomers, err = s.users.Count(gctx, UserFilter{Role: RoleCustomer, CreatedGTE: &prevFrom, CreatedLT: &from})
		return err
	})
	g.Go(func() (err error) {
		products, err = s.products.Count(gctx, ProductFilter{})
		return err
	})
	g.Go(func() (err error) {
		newProducts, err = s.products.Count(gctx, ProductFilter{CreatedGTE: &from, CreatedLT: &to})
		return err
	})
	g.Go(func() (err error) {
		prevProducts, err = s.products.Count(gctx, ProductFilter{CreatedGTE: &prevFrom, CreatedLT: &from})
		return err
	})
	if err := g.Wait(); err != nil {
		tracing.RecordError(span, err)
		return GeneralStats{}, err
	}

	return GeneralStats{
		Year:           year,
		TotalRevenue:   cur.Revenue,
		TotalOrders:    cur.Count,
		TotalCustomers: customers,
		TotalProducts:  products,
		Growth: Growth{
			Revenue:   GrowthRate(cur.Revenue, prev.Revenue),
			Orders:    GrowthRate(cur.Count, prev.Count),
			Customers: GrowthRate(customers, prevCustomers),
			Products:  GrowthRate(newProducts, prevProducts),
		},
	}, nil
}

// GrowthRate formats the change from previous to current as "+x.x%" or "-x.x%".
func GrowthRate(current, previous int64) string {
	switch {
	case previous == 0 && current > 0:
		return "+100.0%"
	case previous == 0:
		return "+0.0%"
	}
	pct := float64(current-previous) / float64(previous) * 100
	s := strconv.FormatFloat(pct, 'f', 1, 64)
	if !strings.HasPrefix(s, "-") {
		s = "+" + s
	}
	return s + "%"
}

func (s *analyticsService) Revenue(ctx context.Context, year int, gran Granularity) ([]RevenuePoint, error) {
	year, err := s.year(year)
	if err != nil {
		return nil, err
	}
	ctx, span := tracing.Start(ctx, "analytics.revenue", attribute.Int("year", year), attribute.String("granularity", string(gran)))
	defer span.End()

	ps := periods(year, gran)
	out := make([]RevenuePoint, len(ps))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range ps {
		g.Go(func() error {
			t, err := s.orders.Totals(gctx, OrderFilter{Status: OrderDelivered, CreatedGTE: &p.from, CreatedLT: &p.to})
			out[i] = RevenuePoint{
				Label:      p.label,
				Revenue:    t.Revenue,
				Value:      int64(math.Round(float64(t.Revenue) / 1_000_000)),
				OrderCount: t.Count,
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		tracing.RecordError(span, err)
		return nil, err
	}
	return out, nil
}

func (s *analyticsService) NewCustomers(ctx context.Context, year int, gran Granularity) ([]CountPoint, error) {
	year, err := s.year(year)
	if err != nil {
		return nil, err
	}
	ps := periods(year, gran)
	out := make([]CountPoint, len(ps))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range ps {
		g.Go(func() error {
			n, err := s.users.Count(gctx, UserFilter{Role: RoleCustomer, CreatedGTE: &p.from, CreatedLT: &p.to})
			out[i] = CountPoint{Label: p.label, Count: n}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// OrderCode is the short code shown on the dashboard.
func OrderCode(id string) string {
	if len(id) > 6 {
		id = id[len(id)-6:]
	}
	return "#ORD" + strings.ToUpper(id)
}

func (s *analyticsService) CompletedOrders(ctx context.Context, p Page) (PageResult[CompletedOrder], error) {
	p = p.Normalize()
	orders, total, err := s.orders.List(ctx, OrderFilter{Status: OrderDelivered, Sort: OrderSortNewest, Page: p})
	if err != nil {
		return PageResult[CompletedOrder]{}, err
	}

	names := make(map[string]User)
	out := make([]CompletedOrder, 0, len(orders))
	for _, o := range orders {
		u, ok := names[o.UserID]
		if !ok {
			if got, err := s.users.Get(ctx, o.UserID); err == nil {
				u = got
			}
			names[o.UserID] = u
		}
		items := 0
		for _, it := range o.Items {
			items += it.Quantity
		}
		out = append(out, CompletedOrder{
			ID:           o.ID,
			OrderCode:    OrderCode(o.ID),
			Number:       o.Number,
			CustomerName: u.Name,
			CustomerMail: u.Email,
			ItemCount:    items,
			TotalPrice:   o.TotalPrice,
			DeliveredAt:  o.DeliveredAt,
			CreatedAt:    o.CreatedAt,
		})
	}
	return NewPageResult(out, total, p), nil
}

func (s *analyticsService) TopProducts(ctx context.Context, limit int) ([]TopProduct, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = 10
	}
	items, _, err := s.products.List(ctx, ProductFilter{Sort: SortBestSelling, Page: Page{Page: 1, Limit: limit}})
	if err != nil {
		return nil, err
	}
	out := make([]TopProduct, 0, len(items))
	for _, p := range items {
		tp := TopProduct{
			ProductID: p.ID,
			Name:      p.Name,
			SoldCount: p.SoldCount,
			Price:     p.DiscountedPrice(),
			Revenue:   p.SoldCount * p.DiscountedPrice(),
		}
		if len(p.Images) > 0 {
			tp.Image = p.Images[0]
		}
		out = append(out, tp)
	}
	return out, nil
}
