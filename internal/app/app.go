// Package app assembles services, event handlers and HTTP routes from a
// set of repositories and adapters. Both cmd/api and the end-to-end tests
// build through it.
package app

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/events"
	transporthttp "github.com/uteshop/uteshop-api/internal/http"
	"github.com/uteshop/uteshop-api/internal/http/handlers"
	"github.com/uteshop/uteshop-api/internal/store/memory"
	"github.com/uteshop/uteshop-api/internal/store/mongo"
)

type Repos struct {
	Users         core.UserRepo
	OTPs          core.OTPRepo
	Brands        core.BrandRepo
	Categories    core.CategoryRepo
	Products      core.ProductRepo
	Favorites     core.FavoriteRepo
	Viewed        core.ViewedRepo
	Carts         core.CartRepo
	Vouchers      core.VoucherRepo
	UserVouchers  core.UserVoucherRepo
	PointsConfig  core.PointsConfigRepo
	PointTxs      core.PointTxRepo
	Orders        core.OrderRepo
	Reviews       core.ReviewRepo
	Returns       core.ReturnRepo
	Notifications core.NotificationRepo
}

func MemoryRepos(s *memory.Store) Repos {
	return Repos{
		Users: s.Users, OTPs: s.OTPs, Brands: s.Brands, Categories: s.Categories,
		Products: s.Products, Favorites: s.Favorites, Viewed: s.Viewed, Carts: s.Carts,
		Vouchers: s.Vouchers, UserVouchers: s.UserVouchers, PointsConfig: s.PointsConfig,
		PointTxs: s.PointTxs, Orders: s.Orders, Reviews: s.Reviews, Returns: s.Returns,
		Notifications: s.Notifications,
	}
}

func MongoRepos(s *mongo.Store) Repos {
	return Repos{
		Users: s.Users, OTPs: s.OTPs, Brands: s.Brands, Categories: s.Categories,
		Products: s.Products, Favorites: s.Favorites, Viewed: s.Viewed, Carts: s.Carts,
		Vouchers: s.Vouchers, UserVouchers: s.UserVouchers, PointsConfig: s.PointsConfig,
		PointTxs: s.PointTxs, Orders: s.Orders, Reviews: s.Reviews, Returns: s.Returns,
		Notifications: s.Notifications,
	}
}

// Adapters are the outbound ports. Cache, Index, Media and Events may be nil.
type Adapters struct {
	Tokens   core.TokenIssuer
	Revoker  core.TokenRevoker
	Throttle core.Throttle
	Mailer   core.Mailer
	Cache    core.Cache
	Index    core.SearchIndex
	Media    core.MediaStore
	Events   core.EventPublisher
}

type Settings struct {
	ShippingFee        int64
	ReviewRewardPoints int64
	CacheTTL           time.Duration
	Options            []core.Option
}

type Services struct {
	Auth          core.AuthService
	Catalog       core.CatalogService
	Products      core.ProductService
	Search        core.SearchService
	Carts         core.CartService
	Library       core.LibraryService
	Orders        core.OrderService
	Vouchers      core.VoucherService
	Points        core.PointsService
	Reviews       core.ReviewService
	Returns       core.ReturnService
	Notifications core.NotificationService
	Customers     core.CustomerService
	Analytics     core.AnalyticsService
}

func NewServices(r Repos, a Adapters, s Settings, log *slog.Logger) Services {
	opts := s.Options
	notifications := core.NewNotificationService(r.Notifications, a.Events, log, opts...)

	return Services{
		Auth: core.NewAuthService(core.AuthDeps{
			Users: r.Users, OTPs: r.OTPs, Tokens: a.Tokens, Revoker: a.Revoker,
			Throttle: a.Throttle, Mailer: a.Mailer, Log: log,
		}, opts...),
		Catalog: core.NewCatalogService(r.Brands, r.Categories, r.Products, opts...),
		Products: core.NewProductService(core.ProductDeps{
			Products: r.Products, Brands: r.Brands, Categories: r.Categories,
			Reviews: r.Reviews, Favorites: r.Favorites, Viewed: r.Viewed,
			Cache: a.Cache, CacheTTL: s.CacheTTL, Events: a.Events, Log: log,
		}, opts...),
		Search:  core.NewSearchService(a.Index, r.Products, log),
		Carts:   core.NewCartService(r.Carts, r.Products, opts...),
		Library: core.NewLibraryService(r.Favorites, r.Viewed, r.Products, opts...),
		Orders: core.NewOrderService(core.OrderDeps{
			Orders: r.Orders, Products: r.Products, Users: r.Users, Carts: r.Carts,
			Vouchers: r.Vouchers, UserVouchers: r.UserVouchers, PointTxs: r.PointTxs,
			PointsConfig: r.PointsConfig, Notifier: notifications, Events: a.Events,
			Cache: a.Cache, Log: log, ShippingFee: s.ShippingFee,
		}, opts...),
		Vouchers: core.NewVoucherService(r.Vouchers, r.UserVouchers, opts...),
		Points:   core.NewPointsService(r.Users, r.PointTxs, r.PointsConfig, log, opts...),
		Reviews: core.NewReviewService(core.ReviewDeps{
			Reviews: r.Reviews, Orders: r.Orders, Users: r.Users, Vouchers: r.Vouchers,
			UserVouchers: r.UserVouchers, PointTxs: r.PointTxs, PointsConfig: r.PointsConfig,
			Notifier: notifications, Log: log, RewardPoints: s.ReviewRewardPoints,
		}, opts...),
		Returns: core.NewReturnService(core.ReturnDeps{
			Returns: r.Returns, Orders: r.Orders, Users: r.Users, PointTxs: r.PointTxs,
			PointsConfig: r.PointsConfig, Notifier: notifications, Log: log,
		}, opts...),
		Notifications: notifications,
		Customers:     core.NewCustomerService(r.Users, r.Orders, opts...),
		Analytics:     core.NewAnalyticsService(r.Orders, r.Users, r.Products, opts...),
	}
}

// Subscribe registers the in-process reactions to domain events. push may
// be nil when realtime delivery is off.
func (s Services) Subscribe(d *events.Dispatcher, push events.Handler) {
	d.On(core.EventProductSaved, s.Search.Sync)
	d.On(core.EventProductDeleted, s.Search.Sync)
	if push != nil {
		d.On(core.EventNotificationCreated, push)
	}
}

// RouteOptions are the HTTP settings that do not come from services.
type RouteOptions struct {
	Health             http.Handler
	Live               http.Handler
	InternalAPIKey     string
	AllowedOrigins     []string
	RequestTimeout     time.Duration
	RateLimitPerMinute int
	AuthLimit          func(http.Handler) http.Handler
}

// RouterDeps lists every handler on the surfaces it serves.
func (s Services) RouterDeps(a Adapters, o RouteOptions, log *slog.Logger) transporthttp.Deps {
	var (
		auth          = handlers.NewAuthHandler(s.Auth, o.AuthLimit, log)
		catalog       = handlers.NewCatalogHandler(s.Catalog, log)
		products      = handlers.NewProductHandler(s.Products, a.Media, log)
		search        = handlers.NewSearchHandler(s.Search, log)
		carts         = handlers.NewCartHandler(s.Carts, log)
		library       = handlers.NewLibraryHandler(s.Library, log)
		orders        = handlers.NewOrderHandler(s.Orders, log)
		vouchers      = handlers.NewVoucherHandler(s.Vouchers, log)
		points        = handlers.NewPointsHandler(s.Points, log)
		reviews       = handlers.NewReviewHandler(s.Reviews, log)
		returns       = handlers.NewReturnHandler(s.Returns, log)
		notifications = handlers.NewNotificationHandler(s.Notifications, log)
		customers     = handlers.NewCustomerHandler(s.Customers, log)
		analytics     = handlers.NewAnalyticsHandler(s.Analytics, log)
	)

	return transporthttp.Deps{
		Log:     log,
		Tokens:  a.Tokens,
		Revoker: a.Revoker,
		Health:  o.Health,
		Live:    o.Live,
		Mounts: []handlers.Mountable{
			auth, catalog, products, search, carts, library, orders,
			vouchers, points, reviews, returns, notifications,
		},
		Admin: []handlers.AdminMountable{
			catalog, products, search, orders, vouchers, points,
			reviews, returns, notifications, customers, analytics,
		},
		Internal: []handlers.InternalMountable{
			points, notifications,
		},
		InternalAPIKey:     o.InternalAPIKey,
		AllowedOrigins:     o.AllowedOrigins,
		RequestTimeout:     o.RequestTimeout,
		RateLimitPerMinute: o.RateLimitPerMinute,
	}
}
