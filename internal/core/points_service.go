package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/uteshop/uteshop-api/internal/platform/ids"
)

type PointsService interface {
	Summary(ctx context.Context, userID string) (PointsSummary, error)
	History(ctx context.Context, userID string, p Page) (PageResult[PointTx], error)
	Config(ctx context.Context) (PointsConfig, error)
	// Credit adds points to a user from a trusted caller (internal route).
	Credit(ctx context.Context, userID string, points int64, description string) (PointTx, error)

	Customers(ctx context.Context, search string, p Page) (PageResult[User], error)
	Transactions(ctx context.Context, f PointTxFilter) (PageResult[PointTx], error)
	CreateTransaction(ctx context.Context, in PointTxInput) (PointTx, error)
	Stats(ctx context.Context) (PointsStats, error)
	UpdateConfig(ctx context.Context, c PointsConfig) (PointsConfig, error)
	RecalculateTiers(ctx context.Context) (int64, error)
}

// pointsLedger applies balance movements. Every change goes through apply so
// the transaction log and the user's tier stay in step with the balance.
type pointsLedger struct {
	users   UserRepo
	txs     PointTxRepo
	configs PointsConfigRepo
	log     *slog.Logger
}

// apply moves points for t. points is the unsigned amount except for
// ADJUSTMENT, which may be negative.
func (l pointsLedger) apply(ctx context.Context, userID string, t PointTxType, points int64, description, orderID string, now time.Time) (PointTx, error) {
	var delta int64
	switch t {
	case PointsEarned:
		if points <= 0 {
			return PointTx{}, ErrPointsNotPositive
		}
		delta = points
	case PointsRedeemed:
		if points <= 0 {
			return PointTx{}, ErrPointsNotPositive
		}
		delta = -points
	case PointsExpired:
		if points <= 0 {
			return PointTx{}, ErrPointsNotPositive
		}
		u, err := l.users.Get(ctx, userID)
		if err != nil {
			return PointTx{}, err
		}
		delta = -min(points, u.Loyalty.Balance)
	case PointsAdjustment:
		if points == 0 {
			return PointTx{}, fmt.Errorf("%w: adjustment cannot be 0", ErrValidation)
		}
		delta = points
	default:
		return PointTx{}, fmt.Errorf("%w: unknown transaction type %q", ErrValidation, t)
	}

	balance, err := l.users.AdjustPoints(ctx, userID, delta)
	if err != nil {
		return PointTx{}, err
	}

	tx := PointTx{
		ID:           ids.New(),
		UserID:       userID,
		Type:         t,
		Points:       delta,
		BalanceAfter: balance,
		Description:  description,
		OrderID:      orderID,
		CreatedAt:    now,
	}
	if t == PointsEarned {
		exp := now.AddDate(1, 0, 0)
		tx.ExpiryDate = &exp
	}
	if err := l.txs.Create(ctx, tx); err != nil {
		if _, rerr := l.users.AdjustPoints(ctx, userID, -delta); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return PointTx{}, err
	}

	if err := l.retier(ctx, userID, balance); err != nil {
		l.log.WarnContext(ctx, "tier update failed", "user_id", userID, "err", err)
	}
	return tx, nil
}

func (l pointsLedger) retier(ctx context.Context, userID string, balance int64) error {
	cfg, err := l.configs.Get(ctx)
	if err != nil {
		return err
	}
	return l.users.SetTier(ctx, userID, cfg.TierFor(balance))
}

type pointsService struct {
	ledger pointsLedger
	clock  func() time.Time
}

func NewPointsService(users UserRepo, txs PointTxRepo, configs PointsConfigRepo, log *slog.Logger, opts ...Option) PointsService {
	o := buildOptions(opts)
	if log == nil {
		log = slog.Default()
	}
	return &pointsService{
		ledger: pointsLedger{users: users, txs: txs, configs: configs, log: log},
		clock:  o.clock,
	}
}

func (s *pointsService) Summary(ctx context.Context, userID string) (PointsSummary, error) {
	u, err := s.ledger.users.Get(ctx, userID)
	if err != nil {
		return PointsSummary{}, err
	}
	cfg, err := s.ledger.configs.Get(ctx)
	if err != nil {
		return PointsSummary{}, err
	}
	next, missing := cfg.NextTier(u.Loyalty.Balance)
	return PointsSummary{
		Balance:          u.Loyalty.Balance,
		Tier:             cfg.TierFor(u.Loyalty.Balance),
		NextTier:         next,
		PointsToNextTier: missing,
		BalanceValue:     u.Loyalty.Balance * cfg.PointsValue,
		Config:           cfg,
	}, nil
}

func (s *pointsService) History(ctx context.Context, userID string, p Page) (PageResult[PointTx], error) {
	return s.Transactions(ctx, PointTxFilter{UserID: userID, Page: p})
}

func (s *pointsService) Config(ctx context.Context) (PointsConfig, error) {
	return s.ledger.configs.Get(ctx)
}

func (s *pointsService) Credit(ctx context.Context, userID string, points int64, description string) (PointTx, error) {
	if userID == "" {
		return PointTx{}, fmt.Errorf("%w: user_id is required", ErrValidation)
	}
	if description = strings.TrimSpace(description); description == "" {
		description = "Cộng điểm thưởng"
	}
	return s.ledger.apply(ctx, userID, PointsEarned, points, description, "", s.clock())
}

func (s *pointsService) Customers(ctx context.Context, search string, p Page) (PageResult[User], error) {
	p = p.Normalize()
	items, total, err := s.ledger.users.List(ctx, UserFilter{
		Role:   RoleCustomer,
		Search: search,
		SortBy: "points",
		Page:   p,
	})
	if err != nil {
		return PageResult[User]{}, err
	}
	return NewPageResult(items, total, p), nil
}

func (s *pointsService) Transactions(ctx context.Context, f PointTxFilter) (PageResult[PointTx], error) {
	f.Page = f.Page.Normalize()
	if f.Type != "" && !f.Type.valid() {
		return PageResult[PointTx]{}, fmt.Errorf("%w: unknown transaction type %q", ErrValidation, f.Type)
	}
	items, total, err := s.ledger.txs.List(ctx, f)
	if err != nil {
		return PageResult[PointTx]{}, err
	}
	return NewPageResult(items, total, f.Page), nil
}

func (s *pointsService) CreateTransaction(ctx context.Context, in PointTxInput) (PointTx, error) {
	if in.UserID == "" {
		return PointTx{}, fmt.Errorf("%w: user_id is required", ErrValidation)
	}
	desc := strings.TrimSpace(in.Description)
	if desc == "" {
		return PointTx{}, fmt.Errorf("%w: description is required", ErrValidation)
	}
	return s.ledger.apply(ctx, in.UserID, in.Type, in.Points, desc, in.OrderID, s.clock())
}

func (s *pointsService) Stats(ctx context.Context) (PointsStats, error) {
	now := s.clock()
	var stats PointsStats

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := s.ledger.txs.Totals(gctx)
		stats.PointTotals = t
		return err
	})
	g.Go(func() error {
		n, err := s.ledger.users.Count(gctx, UserFilter{Role: RoleCustomer, MinBalance: 1})
		stats.ActiveMembers = n
		return err
	})
	g.Go(func() error {
		m, err := s.ledger.users.CountByTier(gctx)
		stats.MembersByTier = m
		return err
	})
	g.Go(func() error {
		n, err := s.ledger.txs.CountSince(gctx, now.AddDate(0, 0, -30))
		stats.TransactionsLast30 = n
		return err
	})
	g.Go(func() error {
		top, _, err := s.ledger.users.List(gctx, UserFilter{
			Role:       RoleCustomer,
			MinBalance: 1,
			SortBy:     "points",
			Page:       Page{Page: 1, Limit: 10},
		})
		stats.TopCustomers = nonNil(top)
		return err
	})

	stats.MonthlyTrend = make([]MonthlyPoints, 6)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -5, 0)
	for i := range 6 {
		from := first.AddDate(0, i, 0)
		to := from.AddDate(0, 1, 0)
		g.Go(func() error {
			n, err := s.ledger.txs.EarnedBetween(gctx, from, to)
			stats.MonthlyTrend[i] = MonthlyPoints{Label: from.Format("01/2006"), Points: n}
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return PointsStats{}, err
	}
	if stats.MembersByTier == nil {
		stats.MembersByTier = map[Tier]int64{}
	}
	return stats, nil
}

func (s *pointsService) UpdateConfig(ctx context.Context, c PointsConfig) (PointsConfig, error) {
	if err := c.Validate(); err != nil {
		return PointsConfig{}, err
	}
	c.UpdatedAt = s.clock()
	if err := s.ledger.configs.Save(ctx, c); err != nil {
		return PointsConfig{}, err
	}
	if _, err := s.ledger.users.RecalculateTiers(ctx, c.SilverThreshold, c.GoldThreshold); err != nil {
		return PointsConfig{}, err
	}
	return c, nil
}

func (s *pointsService) RecalculateTiers(ctx context.Context) (int64, error) {
	cfg, err := s.ledger.configs.Get(ctx)
	if err != nil {
		return 0, err
	}
	return s.ledger.users.RecalculateTiers(ctx, cfg.SilverThreshold, cfg.GoldThreshold)
}
