package core

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const maxReviewComment = 500

type ReviewReply struct {
	Comment   string    `json:"comment"`
	AdminID   string    `json:"admin_id"`
	RepliedAt time.Time `json:"replied_at"`
}

type Review struct {
	ID            string       `json:"id"`
	UserID        string       `json:"user_id"`
	UserName      string       `json:"user_name,omitempty"`
	ProductID     string       `json:"product_id"`
	OrderID       string       `json:"order_id"`
	Rating        int          `json:"rating"`
	Comment       string       `json:"comment,omitempty"`
	AdminReply    *ReviewReply `json:"admin_reply,omitempty"`
	RewardClaimed bool         `json:"reward_claimed"`
	RewardKind    RewardKind   `json:"reward_kind,omitempty"`
	IsDeleted     bool         `json:"is_deleted"`
	DeletedAt     *time.Time   `json:"deleted_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

type ReviewInput struct {
	ProductID string `json:"product_id"`
	OrderID   string `json:"order_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

func (in *ReviewInput) Validate() error {
	in.Comment = strings.TrimSpace(in.Comment)
	if in.ProductID == "" || in.OrderID == "" {
		return fmt.Errorf("%w: product_id and order_id are required", ErrValidation)
	}
	if in.Rating < 1 || in.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}
	if utf8.RuneCountInString(in.Comment) > maxReviewComment {
		return fmt.Errorf("%w: comment must be at most %d characters", ErrValidation, maxReviewComment)
	}
	return nil
}

type ReviewFilter struct {
	ProductID      string
	UserID         string
	Rating         int
	IncludeDeleted bool
	Page           Page
}

type RatingSummary struct {
	Count   int64   `json:"count"`
	Average float64 `json:"average"`
}

type ReviewRepo interface {
	// Create fails with ErrReviewExists for a second review of the same (order, product).
	Create(ctx context.Context, r Review) error
	Get(ctx context.Context, id string) (Review, error)
	List(ctx context.Context, f ReviewFilter) ([]Review, int64, error)
	// Summary covers non-deleted reviews only.
	Summary(ctx context.Context, productID string) (RatingSummary, error)
	SetReply(ctx context.Context, id string, reply ReviewReply) error
	SetDeleted(ctx context.Context, id string, deleted bool, at time.Time) error
	// MarkRewardClaimed fails with ErrRewardClaimed when the reward was already taken.
	MarkRewardClaimed(ctx context.Context, id string, kind RewardKind, at time.Time) error
	ResetReward(ctx context.Context, id string) error
}

type RewardKind string

const (
	RewardPoints  RewardKind = "POINTS"
	RewardVoucher RewardKind = "VOUCHER"
)

// ReviewRewards lists what a reviewer can pick from.
type ReviewRewards struct {
	Points   int64     `json:"points"`
	Vouchers []Voucher `json:"vouchers"`
}

type ReviewCreated struct {
	Review  Review        `json:"review"`
	Rewards ReviewRewards `json:"rewards"`
}

type RewardChoice struct {
	Kind        RewardKind `json:"reward_type"`
	VoucherCode string     `json:"voucher_code"`
}

type RewardResult struct {
	Kind        RewardKind   `json:"reward_type"`
	Points      int64        `json:"points,omitempty"`
	UserVoucher *UserVoucher `json:"user_voucher,omitempty"`
}

type ProductReviews struct {
	PageResult[Review]
	Summary RatingSummary `json:"summary"`
}

var (
	ErrReviewNotFound = fmt.Errorf("%w: review not found", ErrNotFound)
	ErrReviewExists   = fmt.Errorf("%w: product already reviewed for this order", ErrConflict)
	ErrRewardClaimed  = fmt.Errorf("%w: reward already claimed", ErrConflict)
)
