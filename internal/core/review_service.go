package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/uteshop/uteshop-api/internal/platform/ids"
)

type ReviewService interface {
	Create(ctx context.Context, userID string, in ReviewInput) (ReviewCreated, error)
	ClaimReward(ctx context.Context, userID, reviewID string, choice RewardChoice) (RewardResult, error)
	ForProduct(ctx context.Context, productID string, p Page) (ProductReviews, error)
	Mine(ctx context.Context, userID string, p Page) (PageResult[Review], error)

	AdminList(ctx context.Context, f ReviewFilter) (PageResult[Review], error)
	Reply(ctx context.Context, adminID, id, comment string) (Review, error)
	Delete(ctx context.Context, id string) error
	Restore(ctx context.Context, id string) error
}

type ReviewDeps struct {
	Reviews      ReviewRepo
	Orders       OrderRepo
	Users        UserRepo
	Vouchers     VoucherRepo
	UserVouchers UserVoucherRepo
	PointTxs     PointTxRepo
	PointsConfig PointsConfigRepo
	Notifier     Notifier
	Log          *slog.Logger
	RewardPoints int64
}

type reviewService struct {
	reviews      ReviewRepo
	orders       OrderRepo
	users        UserRepo
	vouchers     voucherLedger
	points       pointsLedger
	notifier     Notifier
	log          *slog.Logger
	rewardPoints int64
	clock        func() time.Time
}

func NewReviewService(d ReviewDeps, opts ...Option) ReviewService {
	o := buildOptions(opts)
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.RewardPoints <= 0 {
		d.RewardPoints = 100
	}
	return &reviewService{
		reviews:      d.Reviews,
		orders:       d.Orders,
		users:        d.Users,
		vouchers:     voucherLedger{vouchers: d.Vouchers, userVouchers: d.UserVouchers},
		points:       pointsLedger{users: d.Users, txs: d.PointTxs, configs: d.PointsConfig, log: d.Log},
		notifier:     d.Notifier,
		log:          d.Log,
		rewardPoints: d.RewardPoints,
		clock:        o.clock,
	}
}

func (s *reviewService) Create(ctx context.Context, userID string, in ReviewInput) (ReviewCreated, error) {
	// 1) Validate input
	if err := in.Validate(); err != nil {
		return ReviewCreated{}, err
	}

	// 2) Order must be the reviewer's, delivered and contain the product
	o, err := s.orders.Get(ctx, in.OrderID)
	if err != nil {
		return ReviewCreated{}, err
	}
	if o.UserID != userID {
		return ReviewCreated{}, ErrOrderNotFound
	}
	if o.Status != OrderDelivered {
		return ReviewCreated{}, fmt.Errorf("%w: only delivered orders can be reviewed", ErrInvalidState)
	}
	if !o.Contains(in.ProductID) {
		return ReviewCreated{}, fmt.Errorf("%w: product is not part of this order", ErrValidation)
	}

	// 3) Persist
	now := s.clock()
	r := Review{
		ID:        ids.New(),
		UserID:    userID,
		ProductID: in.ProductID,
		OrderID:   in.OrderID,
		Rating:    in.Rating,
		Comment:   in.Comment,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if u, err := s.users.Get(ctx, userID); err == nil {
		r.UserName = u.Name
	}
	if err := s.reviews.Create(ctx, r); err != nil {
		return ReviewCreated{}, err
	}

	// 4) Offer rewards
	rewards, err := s.rewardsFor(ctx, userID, now)
	if err != nil {
		s.log.WarnContext(ctx, "list review rewards failed", "review_id", r.ID, "err", err)
		rewards = ReviewRewards{Points: s.rewardPoints, Vouchers: []Voucher{}}
	}
	return ReviewCreated{Review: r, Rewards: rewards}, nil
}

func (s *reviewService) rewardsFor(ctx context.Context, userID string, now time.Time) (ReviewRewards, error) {
	out := ReviewRewards{Points: s.rewardPoints, Vouchers: []Voucher{}}
	candidates, _, err := s.vouchers.vouchers.List(ctx, VoucherFilter{
		Status:     VoucherActive,
		RewardType: RewardReview,
		Now:        now,
		Page:       Page{Page: 1, Limit: MaxPageSize},
	})
	if err != nil {
		return out, err
	}
	for _, v := range candidates {
		ok, err := s.vouchers.claimable(ctx, userID, v, now)
		if err != nil {
			return out, err
		}
		if ok {
			out.Vouchers = append(out.Vouchers, v)
		}
	}
	return out, nil
}

func (s *reviewService) ClaimReward(ctx context.Context, userID, reviewID string, choice RewardChoice) (RewardResult, error) {
	r, err := s.reviews.Get(ctx, reviewID)
	if err != nil {
		return RewardResult{}, err
	}
	if r.UserID != userID || r.IsDeleted {
		return RewardResult{}, ErrReviewNotFound
	}
	if r.RewardClaimed {
		return RewardResult{}, ErrRewardClaimed
	}

	var v Voucher
	switch choice.Kind {
	case RewardPoints:
	case RewardVoucher:
		code := strings.ToUpper(strings.TrimSpace(choice.VoucherCode))
		if code == "" {
			return RewardResult{}, fmt.Errorf("%w: voucher_code is required", ErrValidation)
		}
		if v, err = s.vouchers.vouchers.GetByCode(ctx, code); err != nil {
			return RewardResult{}, err
		}
		if v.RewardType != RewardReview {
			return RewardResult{}, fmt.Errorf("%w: %s is not a review reward", ErrVoucherNotClaimed, v.Code)
		}
	default:
		return RewardResult{}, fmt.Errorf("%w: reward_type must be POINTS or VOUCHER", ErrValidation)
	}

	now := s.clock()
	if err := s.reviews.MarkRewardClaimed(ctx, reviewID, choice.Kind, now); err != nil {
		return RewardResult{}, err
	}

	res, err := s.grant(ctx, userID, r, choice.Kind, v, now)
	if err != nil {
		if rerr := s.reviews.ResetReward(context.WithoutCancel(ctx), reviewID); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return RewardResult{}, err
	}

	notifyQuietly(ctx, s.notifier, s.log, NotificationInput{
		Recipient: userID,
		Title:     "Nhận thưởng đánh giá",
		Message:   rewardMessage(res),
		Link:      "/profile/rewards",
		Type:      NotifyReward,
	})
	return res, nil
}

func (s *reviewService) grant(ctx context.Context, userID string, r Review, kind RewardKind, v Voucher, now time.Time) (RewardResult, error) {
	if kind == RewardPoints {
		if _, err := s.points.apply(ctx, userID, PointsEarned, s.rewardPoints, "Thưởng đánh giá sản phẩm", r.OrderID, now); err != nil {
			return RewardResult{}, err
		}
		return RewardResult{Kind: RewardPoints, Points: s.rewardPoints}, nil
	}
	uv, err := s.vouchers.claim(ctx, userID, v, SourceReview, now)
	if err != nil {
		return RewardResult{}, err
	}
	return RewardResult{Kind: RewardVoucher, UserVoucher: &uv}, nil
}

func rewardMessage(res RewardResult) string {
	if res.Kind == RewardPoints {
		return fmt.Sprintf("Bạn đã nhận %d điểm thưởng cho đánh giá sản phẩm.", res.Points)
	}
	return fmt.Sprintf("Bạn đã nhận voucher %s cho đánh giá sản phẩm.", res.UserVoucher.Code)
}

func (s *reviewService) ForProduct(ctx context.Context, productID string, p Page) (ProductReviews, error) {
	p = p.Normalize()
	items, total, err := s.reviews.List(ctx, ReviewFilter{ProductID: productID, Page: p})
	if err != nil {
		return ProductReviews{}, err
	}
	sum, err := s.reviews.Summary(ctx, productID)
	if err != nil {
		return ProductReviews{}, err
	}
	return ProductReviews{PageResult: NewPageResult(items, total, p), Summary: sum}, nil
}

func (s *reviewService) Mine(ctx context.Context, userID string, p Page) (PageResult[Review], error) {
	p = p.Normalize()
	items, total, err := s.reviews.List(ctx, ReviewFilter{UserID: userID, Page: p})
	if err != nil {
		return PageResult[Review]{}, err
	}
	return NewPageResult(items, total, p), nil
}

func (s *reviewService) AdminList(ctx context.Context, f ReviewFilter) (PageResult[Review], error) {
	f.Page = f.Page.Normalize()
	if f.Rating < 0 || f.Rating > 5 {
		return PageResult[Review]{}, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}
	items, total, err := s.reviews.List(ctx, f)
	if err != nil {
		return PageResult[Review]{}, err
	}
	return NewPageResult(items, total, f.Page), nil
}

func (s *reviewService) Reply(ctx context.Context, adminID, id, comment string) (Review, error) {
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return Review{}, fmt.Errorf("%w: reply comment is required", ErrValidation)
	}
	if len([]rune(comment)) > 1000 {
		return Review{}, fmt.Errorf("%w: reply must be at most 1000 characters", ErrValidation)
	}
	if err := s.reviews.SetReply(ctx, id, ReviewReply{Comment: comment, AdminID: adminID, RepliedAt: s.clock()}); err != nil {
		return Review{}, err
	}
	return s.reviews.Get(ctx, id)
}

func (s *reviewService) Delete(ctx context.Context, id string) error {
	return s.reviews.SetDeleted(ctx, id, true, s.clock())
}

func (s *reviewService) Restore(ctx context.Context, id string) error {
	return s.reviews.SetDeleted(ctx, id, false, s.clock())
}
