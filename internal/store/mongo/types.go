package mongo

import (
	"strings"
	"time"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/platform/textnorm"
)

const (
	ColUsers         = "users"
	ColOTPs          = "otps"
	ColBrands        = "brands"
	ColCategories    = "categories"
	ColProducts      = "products"
	ColFavorites     = "favorites"
	ColViewed        = "viewed_products"
	ColCarts         = "carts"
	ColVouchers      = "vouchers"
	ColUserVouchers  = "user_vouchers"
	ColSettings      = "settings"
	ColPointTxs      = "point_transactions"
	ColOrders        = "orders"
	ColReviews       = "reviews"
	ColReturns       = "return_requests"
	ColNotifications = "notifications"
	ColCounters      = "counters"
)

// fold builds the diacritic-free text that search regexes run against.
func fold(parts ...string) string {
	return textnorm.Fold(strings.Join(parts, " "))
}

// User
type LoyaltyDoc struct {
	Balance int64  `bson:"balance"`
	Tier    string `bson:"tier"`
}

type UserDoc struct {
	ID           string     `bson:"_id"`
	Name         string     `bson:"name"`
	Email        string     `bson:"email"` // unique index
	PasswordHash string     `bson:"password_hash"`
	Role         string     `bson:"role"`
	Phone        string     `bson:"phone,omitempty"`
	Address      string     `bson:"address,omitempty"`
	BirthDate    *time.Time `bson:"birth_date,omitempty"`
	AvatarURL    string     `bson:"avatar_url,omitempty"`
	IsActive     bool       `bson:"is_active"`
	Loyalty      LoyaltyDoc `bson:"loyalty"`
	SearchText   string     `bson:"search_text"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
}

func toUserDoc(u core.User) UserDoc {
	return UserDoc{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Phone:        u.Phone,
		Address:      u.Address,
		BirthDate:    u.BirthDate,
		AvatarURL:    u.AvatarURL,
		IsActive:     u.IsActive,
		Loyalty:      LoyaltyDoc{Balance: u.Loyalty.Balance, Tier: string(u.Loyalty.Tier)},
		SearchText:   fold(u.Name, u.Email),
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func fromUserDoc(d UserDoc) core.User {
	return core.User{
		ID:           d.ID,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Role:         core.Role(d.Role),
		Phone:        d.Phone,
		Address:      d.Address,
		BirthDate:    d.BirthDate,
		AvatarURL:    d.AvatarURL,
		IsActive:     d.IsActive,
		Loyalty:      core.LoyaltyPoints{Balance: d.Loyalty.Balance, Tier: core.Tier(d.Loyalty.Tier)},
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// OTP
type OTPDoc struct {
	ID        string    `bson:"_id"`
	Email     string    `bson:"email"`
	CodeHash  string    `bson:"code_hash"`
	Purpose   string    `bson:"purpose"`
	Attempts  int       `bson:"attempts"`
	ExpiresAt time.Time `bson:"expires_at"` // TTL index
	CreatedAt time.Time `bson:"created_at"`
}

func toOTPDoc(o core.OTP) OTPDoc {
	return OTPDoc{
		ID:        o.ID,
		Email:     o.Email,
		CodeHash:  o.CodeHash,
		Purpose:   string(o.Purpose),
		Attempts:  o.Attempts,
		ExpiresAt: o.ExpiresAt,
		CreatedAt: o.CreatedAt,
	}
}

func fromOTPDoc(d OTPDoc) core.OTP {
	return core.OTP{
		ID:        d.ID,
		Email:     d.Email,
		CodeHash:  d.CodeHash,
		Purpose:   core.OTPPurpose(d.Purpose),
		Attempts:  d.Attempts,
		ExpiresAt: d.ExpiresAt,
		CreatedAt: d.CreatedAt,
	}
}

// Brand and category share a unique, case-insensitive name key.
type BrandDoc struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	NameKey     string    `bson:"name_key"` // unique index
	SearchText  string    `bson:"search_text"`
	Description string    `bson:"description,omitempty"`
	Logo        string    `bson:"logo,omitempty"`
	Website     string    `bson:"website,omitempty"`
	Country     string    `bson:"country,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func toBrandDoc(b core.Brand) BrandDoc {
	return BrandDoc{
		ID:          b.ID,
		Name:        b.Name,
		NameKey:     nameKey(b.Name),
		SearchText:  fold(b.Name),
		Description: b.Description,
		Logo:        b.Logo,
		Website:     b.Website,
		Country:     b.Country,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

func fromBrandDoc(d BrandDoc) core.Brand {
	return core.Brand{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Logo:        d.Logo,
		Website:     d.Website,
		Country:     d.Country,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type CategoryDoc struct {
	ID          string    `bson:"_id"`
	Name        string    `bson:"name"`
	NameKey     string    `bson:"name_key"` // unique index
	SearchText  string    `bson:"search_text"`
	Description string    `bson:"description,omitempty"`
	Image       string    `bson:"image,omitempty"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func toCategoryDoc(c core.Category) CategoryDoc {
	return CategoryDoc{
		ID:          c.ID,
		Name:        c.Name,
		NameKey:     nameKey(c.Name),
		SearchText:  fold(c.Name),
		Description: c.Description,
		Image:       c.Image,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func fromCategoryDoc(d CategoryDoc) core.Category {
	return core.Category{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Image:       d.Image,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// Product
type SizeStockDoc struct {
	Size  string `bson:"size"`
	Stock int    `bson:"stock"`
}

type ProductDoc struct {
	ID                 string         `bson:"_id"`
	Name               string         `bson:"name"`
	Description        string         `bson:"description,omitempty"`
	SearchText         string         `bson:"search_text"`
	Price              int64          `bson:"price"`
	Stock              int            `bson:"stock"`
	Images             []string       `bson:"images"`
	CategoryID         string         `bson:"category_id"`
	BrandID            string         `bson:"brand_id"`
	SoldCount          int64          `bson:"sold_count"`
	ViewCount          int64          `bson:"view_count"`
	DiscountPercentage int            `bson:"discount_percentage"`
	IsActive           bool           `bson:"is_active"`
	IsVisible          bool           `bson:"is_visible"`
	Sizes              []SizeStockDoc `bson:"sizes"`
	CreatedAt          time.Time      `bson:"created_at"`
	UpdatedAt          time.Time      `bson:"updated_at"`
}

func toProductDoc(p core.Product) ProductDoc {
	sizes := make([]SizeStockDoc, len(p.Sizes))
	for i, s := range p.Sizes {
		sizes[i] = SizeStockDoc{Size: s.Size, Stock: s.Stock}
	}
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return ProductDoc{
		ID:                 p.ID,
		Name:               p.Name,
		Description:        p.Description,
		SearchText:         fold(p.Name, p.Description),
		Price:              p.Price,
		Stock:              p.Stock,
		Images:             images,
		CategoryID:         p.CategoryID,
		BrandID:            p.BrandID,
		SoldCount:          p.SoldCount,
		ViewCount:          p.ViewCount,
		DiscountPercentage: p.DiscountPercentage,
		IsActive:           p.IsActive,
		IsVisible:          p.IsVisible,
		Sizes:              sizes,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

func fromProductDoc(d ProductDoc) core.Product {
	var sizes []core.SizeStock
	for _, s := range d.Sizes {
		sizes = append(sizes, core.SizeStock{Size: s.Size, Stock: s.Stock})
	}
	return core.Product{
		ID:                 d.ID,
		Name:               d.Name,
		Description:        d.Description,
		Price:              d.Price,
		Stock:              d.Stock,
		Images:             d.Images,
		CategoryID:         d.CategoryID,
		BrandID:            d.BrandID,
		SoldCount:          d.SoldCount,
		ViewCount:          d.ViewCount,
		DiscountPercentage: d.DiscountPercentage,
		IsActive:           d.IsActive,
		IsVisible:          d.IsVisible,
		Sizes:              sizes,
		CreatedAt:          d.CreatedAt,
		UpdatedAt:          d.UpdatedAt,
	}
}

// Favorites and viewed products are keyed by (user_id, product_id).
type FavoriteDoc struct {
	UserID    string    `bson:"user_id"`
	ProductID string    `bson:"product_id"`
	CreatedAt time.Time `bson:"created_at"`
}

type ViewedDoc struct {
	UserID    string    `bson:"user_id"`
	ProductID string    `bson:"product_id"`
	ViewedAt  time.Time `bson:"viewed_at"`
}

// Cart is one document per user, _id = user id.
type CartItemDoc struct {
	ProductID string    `bson:"product_id"`
	Size      string    `bson:"size"`
	Quantity  int       `bson:"quantity"`
	AddedAt   time.Time `bson:"added_at"`
}

type CartDoc struct {
	UserID    string        `bson:"_id"`
	Items     []CartItemDoc `bson:"items"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

func toCartDoc(c core.Cart) CartDoc {
	items := make([]CartItemDoc, len(c.Items))
	for i, it := range c.Items {
		items[i] = CartItemDoc{ProductID: it.ProductID, Size: it.Size, Quantity: it.Quantity, AddedAt: it.AddedAt}
	}
	return CartDoc{UserID: c.UserID, Items: items, UpdatedAt: c.UpdatedAt}
}

func fromCartDoc(d CartDoc) core.Cart {
	items := make([]core.CartItem, len(d.Items))
	for i, it := range d.Items {
		items[i] = core.CartItem{ProductID: it.ProductID, Size: it.Size, Quantity: it.Quantity, AddedAt: it.AddedAt}
	}
	return core.Cart{UserID: d.UserID, Items: items, UpdatedAt: d.UpdatedAt}
}

// Voucher
type VoucherDoc struct {
	ID                string    `bson:"_id"`
	Code              string    `bson:"code"` // unique index
	Description       string    `bson:"description,omitempty"`
	SearchText        string    `bson:"search_text"`
	DiscountType      string    `bson:"discount_type"`
	DiscountValue     int64     `bson:"discount_value"`
	MaxDiscountAmount int64     `bson:"max_discount_amount"`
	MinOrderAmount    int64     `bson:"min_order_amount"`
	StartDate         time.Time `bson:"start_date"`
	EndDate           time.Time `bson:"end_date"`
	MaxIssued         int64     `bson:"max_issued"`
	UsesCount         int64     `bson:"uses_count"`
	ClaimsCount       int64     `bson:"claims_count"`
	MaxUsesPerUser    int64     `bson:"max_uses_per_user"`
	IsActive          bool      `bson:"is_active"`
	Disabled          bool      `bson:"disabled"`
	RewardType        string    `bson:"reward_type"`
	CreatedAt         time.Time `bson:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at"`
}

func toVoucherDoc(v core.Voucher) VoucherDoc {
	return VoucherDoc{
		ID:                v.ID,
		Code:              v.Code,
		Description:       v.Description,
		SearchText:        fold(v.Code, v.Description),
		DiscountType:      string(v.DiscountType),
		DiscountValue:     v.DiscountValue,
		MaxDiscountAmount: v.MaxDiscountAmount,
		MinOrderAmount:    v.MinOrderAmount,
		StartDate:         v.StartDate,
		EndDate:           v.EndDate,
		MaxIssued:         v.MaxIssued,
		UsesCount:         v.UsesCount,
		ClaimsCount:       v.ClaimsCount,
		MaxUsesPerUser:    v.MaxUsesPerUser,
		IsActive:          v.IsActive,
		Disabled:          v.Disabled,
		RewardType:        string(v.RewardType),
		CreatedAt:         v.CreatedAt,
		UpdatedAt:         v.UpdatedAt,
	}
}

func fromVoucherDoc(d VoucherDoc) core.Voucher {
	return core.Voucher{
		ID:                d.ID,
		Code:              d.Code,
		Description:       d.Description,
		DiscountType:      core.DiscountType(d.DiscountType),
		DiscountValue:     d.DiscountValue,
		MaxDiscountAmount: d.MaxDiscountAmount,
		MinOrderAmount:    d.MinOrderAmount,
		StartDate:         d.StartDate,
		EndDate:           d.EndDate,
		MaxIssued:         d.MaxIssued,
		UsesCount:         d.UsesCount,
		ClaimsCount:       d.ClaimsCount,
		MaxUsesPerUser:    d.MaxUsesPerUser,
		IsActive:          d.IsActive,
		Disabled:          d.Disabled,
		RewardType:        core.RewardType(d.RewardType),
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

type UserVoucherDoc struct {
	ID        string     `bson:"_id"`
	UserID    string     `bson:"user_id"`
	VoucherID string     `bson:"voucher_id"`
	Code      string     `bson:"code"`
	Source    string     `bson:"source"`
	ClaimedAt time.Time  `bson:"claimed_at"`
	IsUsed    bool       `bson:"is_used"`
	UsedAt    *time.Time `bson:"used_at,omitempty"`
	OrderID   string     `bson:"order_id,omitempty"`
}

func toUserVoucherDoc(uv core.UserVoucher) UserVoucherDoc {
	return UserVoucherDoc{
		ID:        uv.ID,
		UserID:    uv.UserID,
		VoucherID: uv.VoucherID,
		Code:      uv.Code,
		Source:    string(uv.Source),
		ClaimedAt: uv.ClaimedAt,
		IsUsed:    uv.IsUsed,
		UsedAt:    uv.UsedAt,
		OrderID:   uv.OrderID,
	}
}

func fromUserVoucherDoc(d UserVoucherDoc) core.UserVoucher {
	return core.UserVoucher{
		ID:        d.ID,
		UserID:    d.UserID,
		VoucherID: d.VoucherID,
		Code:      d.Code,
		Source:    core.VoucherSource(d.Source),
		ClaimedAt: d.ClaimedAt,
		IsUsed:    d.IsUsed,
		UsedAt:    d.UsedAt,
		OrderID:   d.OrderID,
	}
}

// Points
type PointsConfigDoc struct {
	ID              string    `bson:"_id"`
	PointsValue     int64     `bson:"points_value"`
	SilverThreshold int64     `bson:"silver_threshold"`
	GoldThreshold   int64     `bson:"gold_threshold"`
	PointsPerOrder  int64     `bson:"points_per_order"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

type PointTxDoc struct {
	ID           string     `bson:"_id"`
	UserID       string     `bson:"user_id"`
	Type         string     `bson:"type"`
	Points       int64      `bson:"points"`
	BalanceAfter int64      `bson:"balance_after"`
	Description  string     `bson:"description"`
	OrderID      string     `bson:"order_id,omitempty"`
	ExpiryDate   *time.Time `bson:"expiry_date,omitempty"`
	CreatedAt    time.Time  `bson:"created_at"`
}

func toPointTxDoc(tx core.PointTx) PointTxDoc {
	return PointTxDoc{
		ID:           tx.ID,
		UserID:       tx.UserID,
		Type:         string(tx.Type),
		Points:       tx.Points,
		BalanceAfter: tx.BalanceAfter,
		Description:  tx.Description,
		OrderID:      tx.OrderID,
		ExpiryDate:   tx.ExpiryDate,
		CreatedAt:    tx.CreatedAt,
	}
}

func fromPointTxDoc(d PointTxDoc) core.PointTx {
	return core.PointTx{
		ID:           d.ID,
		UserID:       d.UserID,
		Type:         core.PointTxType(d.Type),
		Points:       d.Points,
		BalanceAfter: d.BalanceAfter,
		Description:  d.Description,
		OrderID:      d.OrderID,
		ExpiryDate:   d.ExpiryDate,
		CreatedAt:    d.CreatedAt,
	}
}

// Order
type OrderItemDoc struct {
	ProductID          string `bson:"product_id"`
	Name               string `bson:"name"`
	Image              string `bson:"image,omitempty"`
	Size               string `bson:"size,omitempty"`
	Quantity           int    `bson:"quantity"`
	OriginalPrice      int64  `bson:"original_price"`
	DiscountPercentage int    `bson:"discount_percentage"`
	DiscountedPrice    int64  `bson:"discounted_price"`
	LineTotal          int64  `bson:"line_total"`
}

type StatusChangeDoc struct {
	Status string    `bson:"status"`
	At     time.Time `bson:"at"`
	Note   string    `bson:"note,omitempty"`
}

type OrderDoc struct {
	ID              string            `bson:"_id"`
	Number          string            `bson:"number"` // unique index
	UserID          string            `bson:"user_id"`
	Items           []OrderItemDoc    `bson:"items"`
	Subtotal        int64             `bson:"subtotal"`
	ShippingFee     int64             `bson:"shipping_fee"`
	VoucherID       string            `bson:"voucher_id,omitempty"`
	VoucherCode     string            `bson:"voucher_code,omitempty"`
	VoucherDiscount int64             `bson:"voucher_discount"`
	PointsUsed      int64             `bson:"points_used"`
	PointsDiscount  int64             `bson:"points_discount"`
	TotalPrice      int64             `bson:"total_price"`
	ShippingAddress string            `bson:"shipping_address"`
	Phone           string            `bson:"phone"`
	Note            string            `bson:"note,omitempty"`
	PaymentMethod   string            `bson:"payment_method"`
	PaymentStatus   string            `bson:"payment_status"`
	Status          string            `bson:"status"`
	History         []StatusChangeDoc `bson:"history"`
	DeliveredAt     *time.Time        `bson:"delivered_at,omitempty"`
	CancelledAt     *time.Time        `bson:"cancelled_at,omitempty"`
	CreatedAt       time.Time         `bson:"created_at"`
	UpdatedAt       time.Time         `bson:"updated_at"`
}

func toOrderDoc(o core.Order) OrderDoc {
	items := make([]OrderItemDoc, len(o.Items))
	for i, it := range o.Items {
		items[i] = OrderItemDoc(it)
	}
	history := make([]StatusChangeDoc, len(o.History))
	for i, h := range o.History {
		history[i] = StatusChangeDoc{Status: string(h.Status), At: h.At, Note: h.Note}
	}
	return OrderDoc{
		ID:              o.ID,
		Number:          o.Number,
		UserID:          o.UserID,
		Items:           items,
		Subtotal:        o.Subtotal,
		ShippingFee:     o.ShippingFee,
		VoucherID:       o.VoucherID,
		VoucherCode:     o.VoucherCode,
		VoucherDiscount: o.VoucherDiscount,
		PointsUsed:      o.PointsUsed,
		PointsDiscount:  o.PointsDiscount,
		TotalPrice:      o.TotalPrice,
		ShippingAddress: o.ShippingAddress,
		Phone:           o.Phone,
		Note:            o.Note,
		PaymentMethod:   string(o.PaymentMethod),
		PaymentStatus:   string(o.PaymentStatus),
		Status:          string(o.Status),
		History:         history,
		DeliveredAt:     o.DeliveredAt,
		CancelledAt:     o.CancelledAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func fromOrderDoc(d OrderDoc) core.Order {
	items := make([]core.OrderItem, len(d.Items))
	for i, it := range d.Items {
		items[i] = core.OrderItem(it)
	}
	history := make([]core.StatusChange, len(d.History))
	for i, h := range d.History {
		history[i] = core.StatusChange{Status: core.OrderStatus(h.Status), At: h.At, Note: h.Note}
	}
	return core.Order{
		ID:              d.ID,
		Number:          d.Number,
		UserID:          d.UserID,
		Items:           items,
		Subtotal:        d.Subtotal,
		ShippingFee:     d.ShippingFee,
		VoucherID:       d.VoucherID,
		VoucherCode:     d.VoucherCode,
		VoucherDiscount: d.VoucherDiscount,
		PointsUsed:      d.PointsUsed,
		PointsDiscount:  d.PointsDiscount,
		TotalPrice:      d.TotalPrice,
		ShippingAddress: d.ShippingAddress,
		Phone:           d.Phone,
		Note:            d.Note,
		PaymentMethod:   core.PaymentMethod(d.PaymentMethod),
		PaymentStatus:   core.PaymentStatus(d.PaymentStatus),
		Status:          core.OrderStatus(d.Status),
		History:         history,
		DeliveredAt:     d.DeliveredAt,
		CancelledAt:     d.CancelledAt,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
}

// Review
type ReviewReplyDoc struct {
	Comment   string    `bson:"comment"`
	AdminID   string    `bson:"admin_id"`
	RepliedAt time.Time `bson:"replied_at"`
}

type ReviewDoc struct {
	ID            string          `bson:"_id"`
	UserID        string          `bson:"user_id"`
	UserName      string          `bson:"user_name,omitempty"`
	ProductID     string          `bson:"product_id"`
	OrderID       string          `bson:"order_id"`
	Rating        int             `bson:"rating"`
	Comment       string          `bson:"comment,omitempty"`
	AdminReply    *ReviewReplyDoc `bson:"admin_reply,omitempty"`
	RewardClaimed bool            `bson:"reward_claimed"`
	RewardKind    string          `bson:"reward_kind,omitempty"`
	IsDeleted     bool            `bson:"is_deleted"`
	DeletedAt     *time.Time      `bson:"deleted_at,omitempty"`
	CreatedAt     time.Time       `bson:"created_at"`
	UpdatedAt     time.Time       `bson:"updated_at"`
}

func toReviewDoc(r core.Review) ReviewDoc {
	d := ReviewDoc{
		ID:            r.ID,
		UserID:        r.UserID,
		UserName:      r.UserName,
		ProductID:     r.ProductID,
		OrderID:       r.OrderID,
		Rating:        r.Rating,
		Comment:       r.Comment,
		RewardClaimed: r.RewardClaimed,
		RewardKind:    string(r.RewardKind),
		IsDeleted:     r.IsDeleted,
		DeletedAt:     r.DeletedAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.AdminReply != nil {
		reply := ReviewReplyDoc(*r.AdminReply)
		d.AdminReply = &reply
	}
	return d
}

func fromReviewDoc(d ReviewDoc) core.Review {
	r := core.Review{
		ID:            d.ID,
		UserID:        d.UserID,
		UserName:      d.UserName,
		ProductID:     d.ProductID,
		OrderID:       d.OrderID,
		Rating:        d.Rating,
		Comment:       d.Comment,
		RewardClaimed: d.RewardClaimed,
		RewardKind:    core.RewardKind(d.RewardKind),
		IsDeleted:     d.IsDeleted,
		DeletedAt:     d.DeletedAt,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	if d.AdminReply != nil {
		reply := core.ReviewReply(*d.AdminReply)
		r.AdminReply = &reply
	}
	return r
}

// ReturnRequest. OpenOrderID mirrors OrderID while the request is pending
// or approved; a sparse unique index on it allows one open request per order.
type ReturnDoc struct {
	ID            string     `bson:"_id"`
	OrderID       string     `bson:"order_id"`
	OpenOrderID   string     `bson:"open_order_id,omitempty"`
	OrderNumber   string     `bson:"order_number"`
	UserID        string     `bson:"user_id"`
	Reason        string     `bson:"reason"`
	ReasonText    string     `bson:"reason_text"`
	CustomReason  string     `bson:"custom_reason,omitempty"`
	Status        string     `bson:"status"`
	RefundAmount  int64      `bson:"refund_amount"`
	PointsAwarded int64      `bson:"points_awarded"`
	AdminNote     string     `bson:"admin_note,omitempty"`
	ProcessedBy   string     `bson:"processed_by,omitempty"`
	ProcessedAt   *time.Time `bson:"processed_at,omitempty"`
	CreatedAt     time.Time  `bson:"created_at"`
	UpdatedAt     time.Time  `bson:"updated_at"`
}

func toReturnDoc(r core.ReturnRequest) ReturnDoc {
	d := ReturnDoc{
		ID:            r.ID,
		OrderID:       r.OrderID,
		OrderNumber:   r.OrderNumber,
		UserID:        r.UserID,
		Reason:        string(r.Reason),
		ReasonText:    r.ReasonText,
		CustomReason:  r.CustomReason,
		Status:        string(r.Status),
		RefundAmount:  r.RefundAmount,
		PointsAwarded: r.PointsAwarded,
		AdminNote:     r.AdminNote,
		ProcessedBy:   r.ProcessedBy,
		ProcessedAt:   r.ProcessedAt,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.Status != core.ReturnRejected {
		d.OpenOrderID = r.OrderID
	}
	return d
}

func fromReturnDoc(d ReturnDoc) core.ReturnRequest {
	return core.ReturnRequest{
		ID:            d.ID,
		OrderID:       d.OrderID,
		OrderNumber:   d.OrderNumber,
		UserID:        d.UserID,
		Reason:        core.ReturnReason(d.Reason),
		ReasonText:    d.ReasonText,
		CustomReason:  d.CustomReason,
		Status:        core.ReturnStatus(d.Status),
		RefundAmount:  d.RefundAmount,
		PointsAwarded: d.PointsAwarded,
		AdminNote:     d.AdminNote,
		ProcessedBy:   d.ProcessedBy,
		ProcessedAt:   d.ProcessedAt,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// Notification
type NotificationActionDoc struct {
	Label  string `bson:"label"`
	Action string `bson:"action"`
}

type NotificationDoc struct {
	ID        string                  `bson:"_id"`
	Recipient string                  `bson:"recipient"`
	Title     string                  `bson:"title"`
	Message   string                  `bson:"message"`
	Link      string                  `bson:"link,omitempty"`
	OrderID   string                  `bson:"order_id,omitempty"`
	Type      string                  `bson:"type"`
	Read      bool                    `bson:"read"`
	Actions   []NotificationActionDoc `bson:"actions,omitempty"`
	CreatedAt time.Time               `bson:"created_at"`
}

func toNotificationDoc(n core.Notification) NotificationDoc {
	var actions []NotificationActionDoc
	for _, a := range n.Actions {
		actions = append(actions, NotificationActionDoc(a))
	}
	return NotificationDoc{
		ID:        n.ID,
		Recipient: n.Recipient,
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		OrderID:   n.OrderID,
		Type:      string(n.Type),
		Read:      n.Read,
		Actions:   actions,
		CreatedAt: n.CreatedAt,
	}
}

func fromNotificationDoc(d NotificationDoc) core.Notification {
	var actions []core.NotificationAction
	for _, a := range d.Actions {
		actions = append(actions, core.NotificationAction(a))
	}
	return core.Notification{
		ID:        d.ID,
		Recipient: d.Recipient,
		Title:     d.Title,
		Message:   d.Message,
		Link:      d.Link,
		OrderID:   d.OrderID,
		Type:      core.NotificationType(d.Type),
		Read:      d.Read,
		Actions:   actions,
		CreatedAt: d.CreatedAt,
	}
}
