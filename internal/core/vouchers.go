package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type DiscountType string

const (
	DiscountPercentage  DiscountType = "PERCENTAGE"
	DiscountFixedAmount DiscountType = "FIXED_AMOUNT"
	DiscountFreeShip    DiscountType = "FREE_SHIP"
)

type RewardType string

const (
	RewardGeneral    RewardType = "GENERAL"
	RewardReview     RewardType = "REVIEW"
	RewardFirstOrder RewardType = "FIRST_ORDER"
	RewardBirthday   RewardType = "BIRTHDAY"
	RewardLoyalty    RewardType = "LOYALTY"
)

func (r RewardType) valid() bool {
	switch r {
	case RewardGeneral, RewardReview, RewardFirstOrder, RewardBirthday, RewardLoyalty:
		return true
	}
	return false
}

type VoucherSource string

const (
	SourceReview    VoucherSource = "REVIEW"
	SourceAdminGift VoucherSource = "ADMIN_GIFT"
	SourcePromotion VoucherSource = "PROMOTION"
	SourceLoyalty   VoucherSource = "LOYALTY"
	SourceOther     VoucherSource = "OTHER"
)

type VoucherStatus string

const (
	VoucherActive   VoucherStatus = "active"
	VoucherExpired  VoucherStatus = "expired"
	VoucherUpcoming VoucherStatus = "upcoming"
	VoucherInactive VoucherStatus = "inactive"
)

type Voucher struct {
	ID                string       `json:"id"`
	Code              string       `json:"code"`
	Description       string       `json:"description,omitempty"`
	DiscountType      DiscountType `json:"discount_type"`
	DiscountValue     int64        `json:"discount_value"`
	MaxDiscountAmount int64        `json:"max_discount_amount"`
	MinOrderAmount    int64        `json:"min_order_amount"`
	StartDate         time.Time    `json:"start_date"`
	EndDate           time.Time    `json:"end_date"`
	MaxIssued         int64        `json:"max_issued"`
	UsesCount         int64        `json:"uses_count"`
	ClaimsCount       int64        `json:"claims_count"`
	MaxUsesPerUser    int64        `json:"max_uses_per_user"`
	IsActive          bool         `json:"is_active"`
	// Disabled is set by admins and keeps the voucher inactive whatever its window.
	Disabled   bool       `json:"disabled"`
	RewardType RewardType `json:"reward_type"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// InWindow reports whether now falls inside [StartDate, EndDate].
func (v Voucher) InWindow(now time.Time) bool {
	return !now.Before(v.StartDate) && !now.After(v.EndDate)
}

// ActiveAt is the is_active value the voucher should carry at now.
func (v Voucher) ActiveAt(now time.Time) bool {
	return !v.Disabled && v.InWindow(now)
}

func (v Voucher) StatusAt(now time.Time) VoucherStatus {
	switch {
	case v.Disabled || !v.IsActive && v.InWindow(now):
		return VoucherInactive
	case now.After(v.EndDate):
		return VoucherExpired
	case now.Before(v.StartDate):
		return VoucherUpcoming
	}
	return VoucherActive
}

// Quote computes the discount for an order amount.
func (v Voucher) Quote(amount int64) VoucherQuote {
	q := VoucherQuote{VoucherID: v.ID, Code: v.Code, DiscountType: v.DiscountType, Amount: amount}
	switch v.DiscountType {
	case DiscountPercentage:
		q.Discount = amount * v.DiscountValue / 100
		if v.MaxDiscountAmount > 0 && q.Discount > v.MaxDiscountAmount {
			q.Discount = v.MaxDiscountAmount
		}
	case DiscountFixedAmount:
		q.Discount = min(v.DiscountValue, amount)
	case DiscountFreeShip:
		q.FreeShipping = true
	}
	q.FinalAmount = max(0, amount-q.Discount)
	return q
}

type VoucherQuote struct {
	VoucherID    string       `json:"voucher_id"`
	Code         string       `json:"code"`
	DiscountType DiscountType `json:"discount_type"`
	Amount       int64        `json:"amount"`
	Discount     int64        `json:"discount"`
	FreeShipping bool         `json:"free_shipping"`
	FinalAmount  int64        `json:"final_amount"`
}

type UserVoucher struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	VoucherID string        `json:"voucher_id"`
	Code      string        `json:"code"`
	Source    VoucherSource `json:"source"`
	ClaimedAt time.Time     `json:"claimed_at"`
	IsUsed    bool          `json:"is_used"`
	UsedAt    *time.Time    `json:"used_at,omitempty"`
	OrderID   string        `json:"order_id,omitempty"`
}

// UserVoucherView is a user's voucher joined with its definition.
type UserVoucherView struct {
	UserVoucher
	Voucher *Voucher `json:"voucher,omitempty"`
}

type VoucherInput struct {
	Code              string       `json:"code"`
	Description       string       `json:"description"`
	DiscountType      DiscountType `json:"discount_type"`
	DiscountValue     int64        `json:"discount_value"`
	MaxDiscountAmount int64        `json:"max_discount_amount"`
	MinOrderAmount    int64        `json:"min_order_amount"`
	StartDate         time.Time    `json:"start_date"`
	EndDate           time.Time    `json:"end_date"`
	MaxIssued         int64        `json:"max_issued"`
	MaxUsesPerUser    int64        `json:"max_uses_per_user"`
	IsActive          *bool        `json:"is_active,omitempty"`
	RewardType        RewardType   `json:"reward_type"`
}

func (in *VoucherInput) Validate() error {
	in.Code = strings.ToUpper(strings.TrimSpace(in.Code))
	if in.Code == "" {
		return fmt.Errorf("%w: voucher code is required", ErrValidation)
	}
	if in.RewardType == "" {
		in.RewardType = RewardGeneral
	}
	if !in.RewardType.valid() {
		return fmt.Errorf("%w: unknown reward type %q", ErrValidation, in.RewardType)
	}
	switch in.DiscountType {
	case DiscountPercentage:
		if in.DiscountValue < 1 || in.DiscountValue > 100 {
			return fmt.Errorf("%w: percentage must be between 1 and 100", ErrValidation)
		}
	case DiscountFixedAmount:
		if in.DiscountValue <= 0 {
			return fmt.Errorf("%w: fixed discount must be greater than 0", ErrValidation)
		}
	case DiscountFreeShip:
		in.DiscountValue = 0
	case "":
		return fmt.Errorf("%w: discount type is required", ErrValidation)
	default:
		return fmt.Errorf("%w: unknown discount type %q", ErrValidation, in.DiscountType)
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return fmt.Errorf("%w: start_date and end_date are required", ErrValidation)
	}
	if !in.StartDate.Before(in.EndDate) {
		return fmt.Errorf("%w: start_date must be before end_date", ErrValidation)
	}
	if in.MaxIssued < 1 {
		return fmt.Errorf("%w: max_issued must be at least 1", ErrValidation)
	}
	if in.MaxUsesPerUser < 1 {
		return fmt.Errorf("%w: max_uses_per_user must be at least 1", ErrValidation)
	}
	if in.MaxDiscountAmount < 0 || in.MinOrderAmount < 0 {
		return fmt.Errorf("%w: amounts cannot be negative", ErrValidation)
	}
	return nil
}

type VoucherFilter struct {
	Search     string // code or description
	Status     VoucherStatus
	RewardType RewardType
	Now        time.Time // reference time for Status
	Page       Page
}

type VoucherStats struct {
	Total      int64     `json:"total"`
	Active     int64     `json:"active"`
	Expired    int64     `json:"expired"`
	TotalUsage int64     `json:"total_usage"`
	TopClaimed []Voucher `json:"top_claimed"`
}

type VoucherRepo interface {
	Create(ctx context.Context, v Voucher) error
	Get(ctx context.Context, id string) (Voucher, error)
	GetByCode(ctx context.Context, code string) (Voucher, error)
	Update(ctx context.Context, v Voucher) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f VoucherFilter) ([]Voucher, int64, error)
	// IncrementUses fails with ErrVoucherExhausted once uses_count reaches max_issued.
	IncrementUses(ctx context.Context, id string) error
	DecrementUses(ctx context.Context, id string) error
	// TryClaim fails with ErrVoucherExhausted once claims_count reaches max_issued.
	TryClaim(ctx context.Context, id string) error
	ReleaseClaim(ctx context.Context, id string) error
	// SyncActiveWindow rewrites is_active from the date window and returns how many changed.
	SyncActiveWindow(ctx context.Context, now time.Time) (int64, error)
	Stats(ctx context.Context, now time.Time) (VoucherStats, error)
	TopClaimed(ctx context.Context, limit int) ([]Voucher, error)
}

type UserVoucherRepo interface {
	Create(ctx context.Context, uv UserVoucher) error
	ListByUser(ctx context.Context, userID string) ([]UserVoucher, error)
	// CountForUser returns how many times the user holds the voucher and how many of those are used.
	CountForUser(ctx context.Context, userID, voucherID string) (claimed, used int64, err error)
	// MarkUsed flips one unused entry to used; false when there is none.
	MarkUsed(ctx context.Context, userID, voucherID, orderID string, at time.Time) (bool, error)
	// ReleaseUse undoes the uses recorded for an order. Claimed entries go back
	// to unused; SourceOther entries written at redemption are removed.
	ReleaseUse(ctx context.Context, userID, orderID string) error
}

var (
	ErrVoucherNotFound   = fmt.Errorf("%w: voucher not found", ErrNotFound)
	ErrVoucherCodeTaken  = fmt.Errorf("%w: voucher code already exists", ErrConflict)
	ErrVoucherInUse      = fmt.Errorf("%w: voucher has been used", ErrConflict)
	ErrVoucherExhausted  = fmt.Errorf("%w: voucher is no longer available", ErrConflict)
	ErrVoucherInactive   = fmt.Errorf("%w: voucher is not active", ErrValidation)
	ErrVoucherLimit      = fmt.Errorf("%w: voucher usage limit reached", ErrValidation)
	ErrVoucherMinOrder   = fmt.Errorf("%w: order amount is below the voucher minimum", ErrValidation)
	ErrVoucherNotClaimed = fmt.Errorf("%w: voucher cannot be claimed", ErrValidation)
)
