package core

import (
	"context"
	"fmt"
	"time"
)

// PointsConfig holds the loyalty program parameters.
type PointsConfig struct {
	PointsValue     int64     `json:"points_value"`     // VND per point
	SilverThreshold int64     `json:"silver_threshold"` // balance needed for SILVER
	GoldThreshold   int64     `json:"gold_threshold"`   // balance needed for GOLD
	PointsPerOrder  int64     `json:"points_per_order"` // points per points_value spent
	UpdatedAt       time.Time `json:"updated_at"`
}

func DefaultPointsConfig() PointsConfig {
	return PointsConfig{
		PointsValue:     1000,
		SilverThreshold: 1000,
		GoldThreshold:   5000,
		PointsPerOrder:  1,
	}
}

func (c PointsConfig) Validate() error {
	if c.PointsValue <= 0 {
		return fmt.Errorf("%w: points_value must be greater than 0", ErrValidation)
	}
	if c.PointsPerOrder < 0 {
		return fmt.Errorf("%w: points_per_order cannot be negative", ErrValidation)
	}
	if c.SilverThreshold <= 0 || c.GoldThreshold <= 0 {
		return fmt.Errorf("%w: thresholds must be greater than 0", ErrValidation)
	}
	if c.SilverThreshold >= c.GoldThreshold {
		return fmt.Errorf("%w: silver_threshold must be below gold_threshold", ErrValidation)
	}
	return nil
}

func (c PointsConfig) TierFor(balance int64) Tier {
	switch {
	case balance >= c.GoldThreshold:
		return TierGold
	case balance >= c.SilverThreshold:
		return TierSilver
	}
	return TierBronze
}

// NextTier returns the tier above the balance and the points still missing.
// GOLD members get an empty tier.
func (c PointsConfig) NextTier(balance int64) (Tier, int64) {
	switch c.TierFor(balance) {
	case TierBronze:
		return TierSilver, c.SilverThreshold - balance
	case TierSilver:
		return TierGold, c.GoldThreshold - balance
	}
	return "", 0
}

// EarnedFor is the number of points a delivered order of total VND earns.
func (c PointsConfig) EarnedFor(total int64) int64 {
	if c.PointsValue <= 0 || total <= 0 {
		return 0
	}
	return total / c.PointsValue * c.PointsPerOrder
}

type PointsConfigRepo interface {
	// Get returns DefaultPointsConfig when nothing is stored.
	Get(ctx context.Context) (PointsConfig, error)
	Save(ctx context.Context, c PointsConfig) error
}

type PointTxType string

const (
	PointsEarned     PointTxType = "EARNED"
	PointsRedeemed   PointTxType = "REDEEMED"
	PointsExpired    PointTxType = "EXPIRED"
	PointsAdjustment PointTxType = "ADJUSTMENT"
)

func (t PointTxType) valid() bool {
	switch t {
	case PointsEarned, PointsRedeemed, PointsExpired, PointsAdjustment:
		return true
	}
	return false
}

// PointTx is one movement on a customer's balance. Points is signed: redemptions
// and expiries are stored negative.
type PointTx struct {
	ID           string      `json:"id"`
	UserID       string      `json:"user_id"`
	Type         PointTxType `json:"type"`
	Points       int64       `json:"points"`
	BalanceAfter int64       `json:"balance_after"`
	Description  string      `json:"description"`
	OrderID      string      `json:"order_id,omitempty"`
	ExpiryDate   *time.Time  `json:"expiry_date,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}

type PointTxFilter struct {
	UserID string
	Type   PointTxType
	Page   Page
}

type PointTotals struct {
	Issued   int64 `json:"total_issued"`
	Redeemed int64 `json:"total_redeemed"`
}

type PointTxRepo interface {
	Create(ctx context.Context, tx PointTx) error
	List(ctx context.Context, f PointTxFilter) ([]PointTx, int64, error)
	ExistsForOrder(ctx context.Context, orderID string, t PointTxType) (bool, error)
	// Totals sums EARNED plus positive ADJUSTMENT as issued, and REDEEMED as redeemed.
	Totals(ctx context.Context) (PointTotals, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	// EarnedBetween sums positive EARNED and ADJUSTMENT points created in [from, to).
	EarnedBetween(ctx context.Context, from, to time.Time) (int64, error)
}

type PointsSummary struct {
	Balance          int64        `json:"balance"`
	Tier             Tier         `json:"tier"`
	NextTier         Tier         `json:"next_tier,omitempty"`
	PointsToNextTier int64        `json:"points_to_next_tier"`
	BalanceValue     int64        `json:"balance_value"`
	Config           PointsConfig `json:"config"`
}

type PointTxInput struct {
	UserID      string      `json:"user_id"`
	Type        PointTxType `json:"type"`
	Points      int64       `json:"points"`
	Description string      `json:"description"`
	OrderID     string      `json:"order_id"`
}

type MonthlyPoints struct {
	Label  string `json:"label"`
	Points int64  `json:"points"`
}

type PointsStats struct {
	PointTotals
	ActiveMembers      int64           `json:"active_members"`
	MembersByTier      map[Tier]int64  `json:"members_by_tier"`
	TransactionsLast30 int64           `json:"transactions_last_30_days"`
	TopCustomers       []User          `json:"top_customers"`
	MonthlyTrend       []MonthlyPoints `json:"monthly_trend"`
}

var ErrPointsNotPositive = fmt.Errorf("%w: points must be greater than 0", ErrValidation)
