package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uteshop/uteshop-api/internal/platform/ids"
)

type VoucherService interface {
	AdminList(ctx context.Context, f VoucherFilter) (PageResult[Voucher], error)
	AdminGet(ctx context.Context, id string) (Voucher, error)
	Create(ctx context.Context, in VoucherInput) (Voucher, error)
	Update(ctx context.Context, id string, in VoucherInput) (Voucher, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (VoucherStats, error)

	Validate(ctx context.Context, userID, code string, amount int64) (VoucherQuote, error)
	Claim(ctx context.Context, userID, code string) (UserVoucher, error)
	Mine(ctx context.Context, userID string) ([]UserVoucherView, error)
	Available(ctx context.Context) ([]Voucher, error)

	// SyncWindows flips is_active for vouchers whose window opened or closed.
	SyncWindows(ctx context.Context) (int64, error)
}

// voucherLedger holds the redemption rules shared by orders, reviews and the
// voucher endpoints.
type voucherLedger struct {
	vouchers     VoucherRepo
	userVouchers UserVoucherRepo
}

// quote checks that userID may apply code to amount at now.
func (l voucherLedger) quote(ctx context.Context, userID, code string, amount int64, now time.Time) (Voucher, VoucherQuote, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return Voucher{}, VoucherQuote{}, fmt.Errorf("%w: voucher code is required", ErrValidation)
	}
	v, err := l.vouchers.GetByCode(ctx, code)
	if err != nil {
		return Voucher{}, VoucherQuote{}, err
	}
	if !v.IsActive || !v.ActiveAt(now) {
		return Voucher{}, VoucherQuote{}, ErrVoucherInactive
	}
	if v.UsesCount >= v.MaxIssued {
		return Voucher{}, VoucherQuote{}, ErrVoucherExhausted
	}
	if amount < v.MinOrderAmount {
		return Voucher{}, VoucherQuote{}, fmt.Errorf("%w (minimum %d)", ErrVoucherMinOrder, v.MinOrderAmount)
	}
	if userID != "" {
		_, used, err := l.userVouchers.CountForUser(ctx, userID, v.ID)
		if err != nil {
			return Voucher{}, VoucherQuote{}, err
		}
		if used >= v.MaxUsesPerUser {
			return Voucher{}, VoucherQuote{}, ErrVoucherLimit
		}
	}
	return v, v.Quote(amount), nil
}

// redeem records one use of v by userID on orderID.
func (l voucherLedger) redeem(ctx context.Context, userID, orderID string, v Voucher, now time.Time) error {
	if err := l.vouchers.IncrementUses(ctx, v.ID); err != nil {
		return err
	}
	marked, err := l.userVouchers.MarkUsed(ctx, userID, v.ID, orderID, now)
	if err != nil {
		return err
	}
	if marked {
		return nil
	}
	// Typed-in codes have no claim entry; record the use directly.
	return l.userVouchers.Create(ctx, UserVoucher{
		ID:        ids.New(),
		UserID:    userID,
		VoucherID: v.ID,
		Code:      v.Code,
		Source:    SourceOther,
		ClaimedAt: now,
		IsUsed:    true,
		UsedAt:    &now,
		OrderID:   orderID,
	})
}

func (l voucherLedger) release(ctx context.Context, userID, orderID, voucherID string) error {
	if err := l.vouchers.DecrementUses(ctx, voucherID); err != nil {
		return err
	}
	return l.userVouchers.ReleaseUse(ctx, userID, orderID)
}

// claimable reports whether userID can still claim v.
func (l voucherLedger) claimable(ctx context.Context, userID string, v Voucher, now time.Time) (bool, error) {
	if !v.IsActive || !v.ActiveAt(now) || v.ClaimsCount >= v.MaxIssued {
		return false, nil
	}
	claimed, _, err := l.userVouchers.CountForUser(ctx, userID, v.ID)
	if err != nil {
		return false, err
	}
	return claimed < v.MaxUsesPerUser, nil
}

// claim reserves a claim slot on v and hands it to userID.
func (l voucherLedger) claim(ctx context.Context, userID string, v Voucher, source VoucherSource, now time.Time) (UserVoucher, error) {
	ok, err := l.claimable(ctx, userID, v, now)
	if err != nil {
		return UserVoucher{}, err
	}
	if !ok {
		return UserVoucher{}, ErrVoucherNotClaimed
	}
	if err := l.vouchers.TryClaim(ctx, v.ID); err != nil {
		return UserVoucher{}, err
	}
	uv := UserVoucher{
		ID:        ids.New(),
		UserID:    userID,
		VoucherID: v.ID,
		Code:      v.Code,
		Source:    source,
		ClaimedAt: now,
	}
	if err := l.userVouchers.Create(ctx, uv); err != nil {
		if rerr := l.vouchers.ReleaseClaim(ctx, v.ID); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return UserVoucher{}, err
	}
	return uv, nil
}

type voucherService struct {
	ledger voucherLedger
	clock  func() time.Time
}

func NewVoucherService(vouchers VoucherRepo, userVouchers UserVoucherRepo, opts ...Option) VoucherService {
	o := buildOptions(opts)
	return &voucherService{
		ledger: voucherLedger{vouchers: vouchers, userVouchers: userVouchers},
		clock:  o.clock,
	}
}

func (s *voucherService) AdminList(ctx context.Context, f VoucherFilter) (PageResult[Voucher], error) {
	f.Page = f.Page.Normalize()
	if f.Now.IsZero() {
		f.Now = s.clock()
	}
	switch f.Status {
	case "", VoucherActive, VoucherExpired, VoucherUpcoming, VoucherInactive:
	default:
		return PageResult[Voucher]{}, fmt.Errorf("%w: unknown status %q", ErrValidation, f.Status)
	}
	items, total, err := s.ledger.vouchers.List(ctx, f)
	if err != nil {
		return PageResult[Voucher]{}, err
	}
	return NewPageResult(items, total, f.Page), nil
}

func (s *voucherService) AdminGet(ctx context.Context, id string) (Voucher, error) {
	return s.ledger.vouchers.Get(ctx, id)
}

func (s *voucherService) Create(ctx context.Context, in VoucherInput) (Voucher, error) {
	if err := in.Validate(); err != nil {
		return Voucher{}, err
	}
	now := s.clock()
	v := Voucher{
		ID:        ids.New(),
		CreatedAt: now,
	}
	applyVoucherInput(&v, in, now)
	if err := s.ledger.vouchers.Create(ctx, v); err != nil {
		return Voucher{}, err
	}
	return v, nil
}

func (s *voucherService) Update(ctx context.Context, id string, in VoucherInput) (Voucher, error) {
	if err := in.Validate(); err != nil {
		return Voucher{}, err
	}
	v, err := s.ledger.vouchers.Get(ctx, id)
	if err != nil {
		return Voucher{}, err
	}
	if in.MaxIssued < v.UsesCount {
		return Voucher{}, fmt.Errorf("%w: max_issued cannot be below uses_count (%d)", ErrValidation, v.UsesCount)
	}
	applyVoucherInput(&v, in, s.clock())
	if err := s.ledger.vouchers.Update(ctx, v); err != nil {
		return Voucher{}, err
	}
	return v, nil
}

func applyVoucherInput(v *Voucher, in VoucherInput, now time.Time) {
	v.Code = in.Code
	v.Description = strings.TrimSpace(in.Description)
	v.DiscountType = in.DiscountType
	v.DiscountValue = in.DiscountValue
	v.MaxDiscountAmount = in.MaxDiscountAmount
	v.MinOrderAmount = in.MinOrderAmount
	v.StartDate = in.StartDate
	v.EndDate = in.EndDate
	v.MaxIssued = in.MaxIssued
	v.MaxUsesPerUser = in.MaxUsesPerUser
	v.RewardType = in.RewardType
	v.Disabled = in.IsActive != nil && !*in.IsActive
	v.IsActive = v.ActiveAt(now)
	v.UpdatedAt = now
}

func (s *voucherService) Delete(ctx context.Context, id string) error {
	v, err := s.ledger.vouchers.Get(ctx, id)
	if err != nil {
		return err
	}
	if v.UsesCount > 0 {
		return fmt.Errorf("%w (%d uses)", ErrVoucherInUse, v.UsesCount)
	}
	return s.ledger.vouchers.Delete(ctx, id)
}

func (s *voucherService) Stats(ctx context.Context) (VoucherStats, error) {
	stats, err := s.ledger.vouchers.Stats(ctx, s.clock())
	if err != nil {
		return VoucherStats{}, err
	}
	top, err := s.ledger.vouchers.TopClaimed(ctx, 5)
	if err != nil {
		return VoucherStats{}, err
	}
	stats.TopClaimed = nonNil(top)
	return stats, nil
}

func (s *voucherService) Validate(ctx context.Context, userID, code string, amount int64) (VoucherQuote, error) {
	if amount < 0 {
		return VoucherQuote{}, fmt.Errorf("%w: amount cannot be negative", ErrValidation)
	}
	_, q, err := s.ledger.quote(ctx, userID, code, amount, s.clock())
	return q, err
}

func (s *voucherService) Claim(ctx context.Context, userID, code string) (UserVoucher, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return UserVoucher{}, fmt.Errorf("%w: voucher code is required", ErrValidation)
	}
	v, err := s.ledger.vouchers.GetByCode(ctx, code)
	if err != nil {
		return UserVoucher{}, err
	}
	if v.RewardType != RewardGeneral {
		return UserVoucher{}, fmt.Errorf("%w: %s vouchers are not claimable", ErrVoucherNotClaimed, v.RewardType)
	}
	return s.ledger.claim(ctx, userID, v, SourcePromotion, s.clock())
}

func (s *voucherService) Mine(ctx context.Context, userID string) ([]UserVoucherView, error) {
	owned, err := s.ledger.userVouchers.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	cache := make(map[string]*Voucher)
	out := make([]UserVoucherView, 0, len(owned))
	for _, uv := range owned {
		v, ok := cache[uv.VoucherID]
		if !ok {
			got, err := s.ledger.vouchers.Get(ctx, uv.VoucherID)
			switch {
			case err == nil:
				v = &got
			case errors.Is(err, ErrNotFound):
			default:
				return nil, err
			}
			cache[uv.VoucherID] = v
		}
		out = append(out, UserVoucherView{UserVoucher: uv, Voucher: v})
	}
	return out, nil
}

func (s *voucherService) Available(ctx context.Context) ([]Voucher, error) {
	items, _, err := s.ledger.vouchers.List(ctx, VoucherFilter{
		Status:     VoucherActive,
		RewardType: RewardGeneral,
		Now:        s.clock(),
		Page:       Page{Page: 1, Limit: MaxPageSize},
	})
	if err != nil {
		return nil, err
	}
	out := make([]Voucher, 0, len(items))
	for _, v := range items {
		if v.ClaimsCount < v.MaxIssued {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *voucherService) SyncWindows(ctx context.Context) (int64, error) {
	return s.ledger.vouchers.SyncActiveWindow(ctx, s.clock())
}
