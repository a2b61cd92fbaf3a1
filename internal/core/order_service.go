package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"github.com/uteshop/uteshop-api/internal/platform/ids"
	"github.com/uteshop/uteshop-api/internal/platform/metrics"
	"github.com/uteshop/uteshop-api/internal/platform/tracing"
)

type OrderService interface {
	Create(ctx context.Context, userID string, in CreateOrderInput) (Order, error)
	ListMine(ctx context.Context, userID string, f OrderFilter) (PageResult[Order], error)
	GetMine(ctx context.Context, userID, id string) (Order, error)
	CancelMine(ctx context.Context, userID, id, reason string) (Order, error)
	ConfirmReceived(ctx context.Context, userID, id string) (Order, error)

	AdminList(ctx context.Context, f OrderFilter) (PageResult[Order], error)
	AdminGet(ctx context.Context, id string) (Order, error)
	Stats(ctx context.Context) (OrderStats, error)
	UpdateStatus(ctx context.Context, id string, to OrderStatus, note string) (Order, error)
	UpdatePaymentStatus(ctx context.Context, id string, ps PaymentStatus) (Order, error)

	// AutoConfirmPending moves pending orders older than age to processing.
	AutoConfirmPending(ctx context.Context, age time.Duration, limit int) (int, error)
}

type OrderDeps struct {
	Orders       OrderRepo
	Products     ProductRepo
	Users        UserRepo
	Carts        CartRepo
	Vouchers     VoucherRepo
	UserVouchers UserVoucherRepo
	PointTxs     PointTxRepo
	PointsConfig PointsConfigRepo
	Notifier     Notifier
	Events       EventPublisher
	// Cache holds product list pages; stock moves clear it.
	Cache       Cache
	Log         *slog.Logger
	ShippingFee int64
}

type orderService struct {
	orders      OrderRepo
	products    ProductRepo
	carts       CartRepo
	vouchers    voucherLedger
	points      pointsLedger
	notifier    Notifier
	events      EventPublisher
	cache       Cache
	log         *slog.Logger
	shippingFee int64
	clock       func() time.Time
}

func NewOrderService(d OrderDeps, opts ...Option) OrderService {
	o := buildOptions(opts)
	if d.Events == nil {
		d.Events = NopPublisher{}
	}
	if d.Cache == nil {
		d.Cache = NopCache{}
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	return &orderService{
		orders:      d.Orders,
		products:    d.Products,
		carts:       d.Carts,
		vouchers:    voucherLedger{vouchers: d.Vouchers, userVouchers: d.UserVouchers},
		points:      pointsLedger{users: d.Users, txs: d.PointTxs, configs: d.PointsConfig, log: d.Log},
		notifier:    d.Notifier,
		events:      d.Events,
		cache:       d.Cache,
		log:         d.Log,
		shippingFee: d.ShippingFee,
		clock:       o.clock,
	}
}

// undoStack runs compensations in reverse order.
type undoStack []func(context.Context) error

func (u *undoStack) push(f func(context.Context) error) { *u = append(*u, f) }

func (u undoStack) run(ctx context.Context, log *slog.Logger) {
	for i := len(u) - 1; i >= 0; i-- {
		if err := u[i](ctx); err != nil {
			log.ErrorContext(ctx, "order compensation failed", "err", err)
		}
	}
}

func (s *orderService) Create(ctx context.Context, userID string, in CreateOrderInput) (o Order, err error) {
	ctx, span := tracing.Start(ctx, "orders.create", attribute.String("user_id", userID), attribute.Int("items", len(in.Items)))
	defer func() {
		tracing.RecordError(span, err)
		span.End()
	}()

	// 1) Validate input
	if err := in.Validate(); err != nil {
		return Order{}, err
	}
	now := s.clock()
	orderID := ids.New()

	var undo undoStack
	defer func() {
		if err != nil {
			// Compensations must run even when the request context is gone.
			undo.run(context.WithoutCancel(ctx), s.log)
		}
	}()

	// 2) Price items and reserve stock
	items := make([]OrderItem, 0, len(in.Items))
	var subtotal int64
	for _, it := range in.Items {
		p, err := s.products.Get(ctx, it.ProductID)
		if err != nil {
			return Order{}, err
		}
		if !p.Purchasable() {
			return Order{}, fmt.Errorf("%w: %s is not available", ErrInvalidState, p.Name)
		}
		size := it.Size
		if !p.HasSizes() {
			size = ""
		} else if _, err := p.Available(size); err != nil {
			return Order{}, err
		}
		if err := s.products.ReserveStock(ctx, p.ID, size, it.Quantity); err != nil {
			if errors.Is(err, ErrInsufficientStock) {
				return Order{}, fmt.Errorf("%w: %s", ErrInsufficientStock, p.Name)
			}
			return Order{}, err
		}
		productID, qty := p.ID, it.Quantity
		undo.push(func(ctx context.Context) error { return s.products.ReleaseStock(ctx, productID, size, qty) })

		unit := p.DiscountedPrice()
		line := OrderItem{
			ProductID:          p.ID,
			Name:               p.Name,
			Size:               size,
			Quantity:           it.Quantity,
			OriginalPrice:      p.Price,
			DiscountPercentage: p.DiscountPercentage,
			DiscountedPrice:    unit,
			LineTotal:          unit * int64(it.Quantity),
		}
		if len(p.Images) > 0 {
			line.Image = p.Images[0]
		}
		items = append(items, line)
		subtotal += line.LineTotal
	}

	o = Order{
		ID:              orderID,
		UserID:          userID,
		Items:           items,
		Subtotal:        subtotal,
		ShippingFee:     s.shippingFee,
		ShippingAddress: in.ShippingAddress,
		Phone:           in.Phone,
		Note:            in.Note,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   PaymentUnpaid,
		Status:          OrderPending,
		History:         []StatusChange{{Status: OrderPending, At: now}},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// 3) Apply voucher
	if in.VoucherCode != "" {
		v, q, err := s.vouchers.quote(ctx, userID, in.VoucherCode, subtotal, now)
		if err != nil {
			return Order{}, err
		}
		if err := s.vouchers.redeem(ctx, userID, orderID, v, now); err != nil {
			return Order{}, err
		}
		undo.push(func(ctx context.Context) error { return s.vouchers.release(ctx, userID, orderID, v.ID) })
		o.VoucherID = v.ID
		o.VoucherCode = v.Code
		o.VoucherDiscount = q.Discount
		if q.FreeShipping {
			o.ShippingFee = 0
		}
	}

	// 4) Apply points
	if in.PointsToUse > 0 {
		cfg, err := s.points.configs.Get(ctx)
		if err != nil {
			return Order{}, err
		}
		remaining := o.Subtotal - o.VoucherDiscount + o.ShippingFee
		usable := (remaining + cfg.PointsValue - 1) / cfg.PointsValue
		used := min(in.PointsToUse, usable)
		if used > 0 {
			tx, err := s.points.apply(ctx, userID, PointsRedeemed, used,
				fmt.Sprintf("Dùng %d điểm cho đơn hàng", used), orderID, now)
			if err != nil {
				return Order{}, err
			}
			undo.push(func(ctx context.Context) error {
				_, err := s.points.apply(ctx, userID, PointsAdjustment, -tx.Points, "Hoàn điểm do tạo đơn thất bại", orderID, s.clock())
				return err
			})
			o.PointsUsed = used
			o.PointsDiscount = min(used*cfg.PointsValue, remaining)
		}
	}

	// 5) Number and persist
	o.TotalPrice = max(0, o.Subtotal-o.VoucherDiscount-o.PointsDiscount+o.ShippingFee)
	seq, err := s.orders.NextNumber(ctx, now.Year())
	if err != nil {
		return Order{}, err
	}
	o.Number = FormatOrderNumber(now.Year(), seq)
	if err := s.orders.Create(ctx, o); err != nil {
		return Order{}, err
	}

	// 6) Side effects that must not fail the order
	keys := make([]CartKey, len(items))
	for i, it := range items {
		keys[i] = CartKey{ProductID: it.ProductID, Size: it.Size}
	}
	s.stockMoved(ctx)
	if err := s.carts.RemoveItems(ctx, userID, keys); err != nil {
		s.log.WarnContext(ctx, "cart cleanup failed", "order_id", o.ID, "err", err)
	}
	notifyQuietly(ctx, s.notifier, s.log, NotificationInput{
		Recipient: userID,
		Title:     "Đặt hàng thành công",
		Message:   fmt.Sprintf("Đơn hàng %s của bạn đã được tạo và đang chờ xác nhận.", o.Number),
		Link:      "/orders/" + o.ID,
		OrderID:   o.ID,
		Type:      NotifyOrder,
	})
	notifyQuietly(ctx, s.notifier, s.log, NotificationInput{
		Recipient: AdminRecipient,
		Title:     "Đơn hàng mới",
		Message:   fmt.Sprintf("Đơn hàng %s vừa được đặt, tổng %d VND.", o.Number, o.TotalPrice),
		Link:      "/admin/orders/" + o.ID,
		OrderID:   o.ID,
		Type:      NotifyOrder,
	})
	publishEvent(ctx, s.events, s.log, EventOrderCreated, o.ID, o, now)
	metrics.OrdersCreated.Inc()

	s.log.InfoContext(ctx, "order created", "order_id", o.ID, "number", o.Number, "total", o.TotalPrice)
	return o, nil
}

func (s *orderService) ListMine(ctx context.Context, userID string, f OrderFilter) (PageResult[Order], error) {
	f.UserID = userID
	f.Page = f.Page.Normalize()
	if f.Status != "" && !f.Status.Valid() {
		return PageResult[Order]{}, fmt.Errorf("%w: unknown status %q", ErrValidation, f.Status)
	}
	items, total, err := s.orders.List(ctx, f)
	if err != nil {
		return PageResult[Order]{}, err
	}
	return NewPageResult(items, total, f.Page), nil
}

func (s *orderService) GetMine(ctx context.Context, userID, id string) (Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if o.UserID != userID {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (s *orderService) CancelMine(ctx context.Context, userID, id, reason string) (Order, error) {
	o, err := s.GetMine(ctx, userID, id)
	if err != nil {
		return Order{}, err
	}
	if o.Status != OrderPending {
		return Order{}, fmt.Errorf("%w: only pending orders can be cancelled", ErrInvalidState)
	}
	if reason == "" {
		reason = "Khách hàng hủy đơn"
	}
	return s.transition(ctx, o, OrderCancelled, reason)
}

func (s *orderService) ConfirmReceived(ctx context.Context, userID, id string) (Order, error) {
	o, err := s.GetMine(ctx, userID, id)
	if err != nil {
		return Order{}, err
	}
	if o.Status != OrderShipped {
		return Order{}, fmt.Errorf("%w: only shipped orders can be confirmed", ErrInvalidState)
	}
	return s.transition(ctx, o, OrderDelivered, "Khách hàng xác nhận đã nhận hàng")
}

func (s *orderService) AdminList(ctx context.Context, f OrderFilter) (PageResult[Order], error) {
	f.Page = f.Page.Normalize()
	switch f.Sort {
	case "":
		f.Sort = OrderSortNewest
	case OrderSortNewest, OrderSortOldest, OrderSortTotalDesc, OrderSortTotalAsc:
	default:
		return PageResult[Order]{}, fmt.Errorf("%w: unknown sort %q", ErrValidation, f.Sort)
	}
	if f.Status != "" && !f.Status.Valid() {
		return PageResult[Order]{}, fmt.Errorf("%w: unknown status %q", ErrValidation, f.Status)
	}
	if f.PaymentStatus != "" && !f.PaymentStatus.Valid() {
		return PageResult[Order]{}, fmt.Errorf("%w: unknown payment status %q", ErrValidation, f.PaymentStatus)
	}
	if f.PaymentMethod != "" && !f.PaymentMethod.Valid() {
		return PageResult[Order]{}, fmt.Errorf("%w: unknown payment method %q", ErrValidation, f.PaymentMethod)
	}
	items, total, err := s.orders.List(ctx, f)
	if err != nil {
		return PageResult[Order]{}, err
	}
	return NewPageResult(items, total, f.Page), nil
}

func (s *orderService) AdminGet(ctx context.Context, id string) (Order, error) {
	if id == "" {
		return Order{}, fmt.Errorf("%w: missing order ID", ErrValidation)
	}
	return s.orders.Get(ctx, id)
}

func (s *orderService) Stats(ctx context.Context) (OrderStats, error) {
	var st OrderStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := s.orders.CountByStatus(gctx, OrderFilter{})
		st.ByStatus = m
		return err
	})
	g.Go(func() error {
		t, err := s.orders.Totals(gctx, OrderFilter{Status: OrderDelivered})
		st.DeliveredRevenue = t.Revenue
		return err
	})
	g.Go(func() error {
		n, err := s.orders.Count(gctx, OrderFilter{PaymentStatus: PaymentPaid})
		st.Paid = n
		return err
	})
	g.Go(func() error {
		n, err := s.orders.Count(gctx, OrderFilter{PaymentStatus: PaymentUnpaid})
		st.Unpaid = n
		return err
	})
	if err := g.Wait(); err != nil {
		return OrderStats{}, err
	}
	if st.ByStatus == nil {
		st.ByStatus = map[OrderStatus]int64{}
	}
	for _, n := range st.ByStatus {
		st.Total += n
	}
	return st, nil
}

func (s *orderService) UpdateStatus(ctx context.Context, id string, to OrderStatus, note string) (Order, error) {
	if !to.Valid() {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return Order{}, err
	}
	return s.transition(ctx, o, to, note)
}

func (s *orderService) UpdatePaymentStatus(ctx context.Context, id string, ps PaymentStatus) (Order, error) {
	if !ps.Valid() {
		return Order{}, fmt.Errorf("%w: unknown payment status %q", ErrValidation, ps)
	}
	if err := s.orders.SetPaymentStatus(ctx, id, ps, s.clock()); err != nil {
		return Order{}, err
	}
	return s.orders.Get(ctx, id)
}

func (s *orderService) AutoConfirmPending(ctx context.Context, age time.Duration, limit int) (int, error) {
	pending, err := s.orders.FindPendingBefore(ctx, s.clock().Add(-age), limit)
	if err != nil {
		return 0, err
	}
	confirmed := 0
	for _, o := range pending {
		if _, err := s.transition(ctx, o, OrderProcessing, "Tự động xác nhận"); err != nil {
			if errors.Is(err, ErrOrderStatusChanged) {
				continue
			}
			return confirmed, err
		}
		confirmed++
	}
	return confirmed, nil
}

// transition applies a status change and its side effects.
func (s *orderService) transition(ctx context.Context, o Order, to OrderStatus, note string) (Order, error) {
	from := o.Status
	if !from.CanTransitionTo(to) {
		return Order{}, fmt.Errorf("%w: cannot move order from %s to %s", ErrInvalidState, from, to)
	}
	now := s.clock()

	t := OrderTransition{To: to, At: now, Note: note}
	switch {
	case to == OrderCancelled && o.PaymentStatus == PaymentPaid:
		t.PaymentStatus = PaymentRefunded
	case to == OrderDelivered && o.PaymentMethod == PaymentCOD:
		t.PaymentStatus = PaymentPaid
	}

	updated, err := s.orders.Transition(ctx, o.ID, from, t)
	if err != nil {
		return Order{}, err
	}
	metrics.OrderTransitions.WithLabelValues(string(from), string(to)).Inc()

	switch to {
	case OrderCancelled:
		s.restore(ctx, updated)
	case OrderDelivered:
		s.earnPoints(ctx, updated)
	}

	in := NotificationInput{
		Recipient: updated.UserID,
		Title:     "Cập nhật đơn hàng",
		Message:   fmt.Sprintf("Đơn hàng %s của bạn đã chuyển sang trạng thái: %s", updated.Number, to.Label()),
		Link:      "/orders/" + updated.ID,
		OrderID:   updated.ID,
		Type:      NotifyOrder,
	}
	if to == OrderShipped {
		in.Type = NotifyOrderDeliveryConfirmation
		in.Message = fmt.Sprintf("Đơn hàng %s đang được giao. Vui lòng xác nhận khi bạn đã nhận được hàng.", updated.Number)
		in.Actions = []NotificationAction{{Label: "Đã nhận hàng", Action: "confirm_received"}}
	}
	notifyQuietly(ctx, s.notifier, s.log, in)
	publishEvent(ctx, s.events, s.log, EventOrderStatusChanged, updated.ID,
		OrderStatusChange{OrderID: updated.ID, UserID: updated.UserID, From: from, To: to}, now)
	return updated, nil
}

// restore gives back everything a cancelled order took.
func (s *orderService) restore(ctx context.Context, o Order) {
	for _, it := range o.Items {
		if err := s.products.ReleaseStock(ctx, it.ProductID, it.Size, it.Quantity); err != nil {
			s.log.ErrorContext(ctx, "release stock failed", "order_id", o.ID, "product_id", it.ProductID, "err", err)
		}
	}
	s.stockMoved(ctx)
	if o.VoucherID != "" {
		if err := s.vouchers.release(ctx, o.UserID, o.ID, o.VoucherID); err != nil {
			s.log.ErrorContext(ctx, "release voucher failed", "order_id", o.ID, "err", err)
		}
	}
	if o.PointsUsed > 0 {
		desc := fmt.Sprintf("Hoàn %d điểm do hủy đơn hàng %s", o.PointsUsed, o.Number)
		if _, err := s.points.apply(ctx, o.UserID, PointsAdjustment, o.PointsUsed, desc, o.ID, s.clock()); err != nil {
			s.log.ErrorContext(ctx, "refund points failed", "order_id", o.ID, "err", err)
		}
	}
}

// stockMoved drops cached product lists, which carry stock and sold counts.
func (s *orderService) stockMoved(ctx context.Context) {
	if err := s.cache.DeletePrefix(ctx, productListCachePrefix); err != nil {
		s.log.WarnContext(ctx, "product cache invalidation failed", "err", err)
	}
}

func (s *orderService) earnPoints(ctx context.Context, o Order) {
	done, err := s.points.txs.ExistsForOrder(ctx, o.ID, PointsEarned)
	if err != nil {
		s.log.ErrorContext(ctx, "check earned points failed", "order_id", o.ID, "err", err)
		return
	}
	if done {
		return
	}
	cfg, err := s.points.configs.Get(ctx)
	if err != nil {
		s.log.ErrorContext(ctx, "load points config failed", "err", err)
		return
	}
	earned := cfg.EarnedFor(o.TotalPrice)
	if earned <= 0 {
		return
	}
	desc := fmt.Sprintf("Tích %d điểm từ đơn hàng %s", earned, o.Number)
	if _, err := s.points.apply(ctx, o.UserID, PointsEarned, earned, desc, o.ID, s.clock()); err != nil {
		s.log.ErrorContext(ctx, "earn points failed", "order_id", o.ID, "err", err)
	}
}
