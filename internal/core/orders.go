package core

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

type OrderStatus string

const (
	OrderPending    OrderStatus = "pending"
	OrderProcessing OrderStatus = "processing"
	OrderPrepared   OrderStatus = "prepared"
	OrderShipped    OrderStatus = "shipped"
	OrderDelivered  OrderStatus = "delivered"
	OrderCancelled  OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:    {OrderProcessing, OrderCancelled},
	OrderProcessing: {OrderPrepared, OrderCancelled},
	OrderPrepared:   {OrderShipped, OrderCancelled},
	OrderShipped:    {OrderDelivered},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderProcessing, OrderPrepared, OrderShipped, OrderDelivered, OrderCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether to is a legal next status.
func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	return slices.Contains(orderTransitions[s], to)
}

// Label is the customer-facing Vietnamese status name.
func (s OrderStatus) Label() string {
	switch s {
	case OrderPending:
		return "Chờ xác nhận"
	case OrderProcessing:
		return "Đã xác nhận"
	case OrderPrepared:
		return "Đang chuẩn bị hàng"
	case OrderShipped:
		return "Đang giao hàng"
	case OrderDelivered:
		return "Đã giao hàng"
	case OrderCancelled:
		return "Đã hủy"
	}
	return string(s)
}

type PaymentMethod string

const (
	PaymentCOD     PaymentMethod = "COD"
	PaymentStripe  PaymentMethod = "STRIPE"
	PaymentMoMo    PaymentMethod = "MOMO"
	PaymentZaloPay PaymentMethod = "ZALOPAY"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCOD, PaymentStripe, PaymentMoMo, PaymentZaloPay:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid     PaymentStatus = "unpaid"
	PaymentPaid       PaymentStatus = "paid"
	PaymentRefunded   PaymentStatus = "refunded"
	PaymentProcessing PaymentStatus = "processing"
)

func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentUnpaid, PaymentPaid, PaymentRefunded, PaymentProcessing:
		return true
	}
	return false
}

type OrderItem struct {
	ProductID          string `json:"product_id"`
	Name               string `json:"name"`
	Image              string `json:"image,omitempty"`
	Size               string `json:"size,omitempty"`
	Quantity           int    `json:"quantity"`
	OriginalPrice      int64  `json:"original_price"`
	DiscountPercentage int    `json:"discount_percentage"`
	DiscountedPrice    int64  `json:"discounted_price"`
	LineTotal          int64  `json:"line_total"`
}

type StatusChange struct {
	Status OrderStatus `json:"status"`
	At     time.Time   `json:"at"`
	Note   string      `json:"note,omitempty"`
}

type Order struct {
	ID              string         `json:"id"`
	Number          string         `json:"order_number"`
	UserID          string         `json:"user_id"`
	Items           []OrderItem    `json:"items"`
	Subtotal        int64          `json:"subtotal"`
	ShippingFee     int64          `json:"shipping_fee"`
	VoucherID       string         `json:"voucher_id,omitempty"`
	VoucherCode     string         `json:"voucher_code,omitempty"`
	VoucherDiscount int64          `json:"voucher_discount"`
	PointsUsed      int64          `json:"points_used"`
	PointsDiscount  int64          `json:"points_discount"`
	TotalPrice      int64          `json:"total_price"`
	ShippingAddress string         `json:"shipping_address"`
	Phone           string         `json:"phone"`
	Note            string         `json:"note,omitempty"`
	PaymentMethod   PaymentMethod  `json:"payment_method"`
	PaymentStatus   PaymentStatus  `json:"payment_status"`
	Status          OrderStatus    `json:"status"`
	History         []StatusChange `json:"status_history"`
	DeliveredAt     *time.Time     `json:"delivered_at,omitempty"`
	CancelledAt     *time.Time     `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Contains reports whether the order has a line for productID.
func (o Order) Contains(productID string) bool {
	return slices.ContainsFunc(o.Items, func(it OrderItem) bool { return it.ProductID == productID })
}

// DeliveredTime falls back to the last update for orders delivered before
// delivered_at was recorded.
func (o Order) DeliveredTime() time.Time {
	if o.DeliveredAt != nil {
		return *o.DeliveredAt
	}
	return o.UpdatedAt
}

type OrderItemInput struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
}

type CreateOrderInput struct {
	Items           []OrderItemInput `json:"items"`
	ShippingAddress string           `json:"shipping_address"`
	Phone           string           `json:"phone"`
	Note            string           `json:"note"`
	PaymentMethod   PaymentMethod    `json:"payment_method"`
	VoucherCode     string           `json:"voucher_code"`
	PointsToUse     int64            `json:"points_to_use"`
}

func (in *CreateOrderInput) Validate() error {
	if len(in.Items) == 0 {
		return fmt.Errorf("%w: order items are required", ErrValidation)
	}
	for i, it := range in.Items {
		if it.ProductID == "" {
			return fmt.Errorf("%w: items[%d].product_id is required", ErrValidation, i)
		}
		if it.Quantity < 1 {
			return fmt.Errorf("%w: items[%d].quantity must be at least 1", ErrValidation, i)
		}
	}
	in.ShippingAddress = strings.TrimSpace(in.ShippingAddress)
	in.Phone = strings.TrimSpace(in.Phone)
	if in.ShippingAddress == "" {
		return fmt.Errorf("%w: shipping address is required", ErrValidation)
	}
	if in.Phone == "" {
		return fmt.Errorf("%w: phone is required", ErrValidation)
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = PaymentCOD
	}
	if !in.PaymentMethod.Valid() {
		return fmt.Errorf("%w: unknown payment method %q", ErrValidation, in.PaymentMethod)
	}
	if in.PointsToUse < 0 {
		return fmt.Errorf("%w: points_to_use cannot be negative", ErrValidation)
	}
	return nil
}

type OrderSort string

const (
	OrderSortNewest    OrderSort = "newest"
	OrderSortOldest    OrderSort = "oldest"
	OrderSortTotalDesc OrderSort = "total-desc"
	OrderSortTotalAsc  OrderSort = "total-asc"
)

type OrderFilter struct {
	UserID        string
	Status        OrderStatus
	PaymentStatus PaymentStatus
	PaymentMethod PaymentMethod
	Search        string // order number fragment
	CreatedGTE    *time.Time
	CreatedLT     *time.Time
	Sort          OrderSort
	Page          Page
}

// OrderTransition describes a status change applied by OrderRepo.Transition.
type OrderTransition struct {
	To            OrderStatus
	At            time.Time
	Note          string
	PaymentStatus PaymentStatus // empty keeps the current value
}

type OrderTotals struct {
	Count   int64 `json:"count"`
	Revenue int64 `json:"revenue"`
}

type OrderRepo interface {
	Create(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (Order, error)
	// Transition moves the order from from to t.To, appending to the history.
	// It fails with ErrOrderStatusChanged when the stored status is not from.
	Transition(ctx context.Context, id string, from OrderStatus, t OrderTransition) (Order, error)
	SetPaymentStatus(ctx context.Context, id string, ps PaymentStatus, at time.Time) error
	List(ctx context.Context, f OrderFilter) ([]Order, int64, error)
	Count(ctx context.Context, f OrderFilter) (int64, error)
	// Totals counts matching orders and sums their total_price.
	Totals(ctx context.Context, f OrderFilter) (OrderTotals, error)
	CountByStatus(ctx context.Context, f OrderFilter) (map[OrderStatus]int64, error)
	FindPendingBefore(ctx context.Context, before time.Time, limit int) ([]Order, error)
	// NextNumber allocates the next sequence number for year.
	NextNumber(ctx context.Context, year int) (int64, error)
}

// FormatOrderNumber renders ORD-YYYY-NNNNNN.
func FormatOrderNumber(year int, seq int64) string {
	return fmt.Sprintf("ORD-%d-%06d", year, seq)
}

type OrderStats struct {
	ByStatus         map[OrderStatus]int64 `json:"by_status"`
	Total            int64                 `json:"total"`
	DeliveredRevenue int64                 `json:"delivered_revenue"`
	Paid             int64                 `json:"paid"`
	Unpaid           int64                 `json:"unpaid"`
}

var (
	ErrOrderNotFound      = fmt.Errorf("%w: order not found", ErrNotFound)
	ErrOrderStatusChanged = fmt.Errorf("%w: order status changed concurrently", ErrConflict)
)
