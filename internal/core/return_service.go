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

type ReturnService interface {
	Create(ctx context.Context, userID string, in ReturnInput) (ReturnRequest, error)
	Eligibility(ctx context.Context, userID, orderID string) (ReturnEligibility, error)
	Mine(ctx context.Context, userID string, p Page) (PageResult[ReturnRequest], error)

	AdminList(ctx context.Context, f ReturnFilter) (PageResult[ReturnRequest], error)
	AdminGet(ctx context.Context, id string) (ReturnRequest, error)
	Approve(ctx context.Context, adminID, id, note string) (ReturnRequest, error)
	Reject(ctx context.Context, adminID, id, note string) (ReturnRequest, error)
	Stats(ctx context.Context) (ReturnStats, error)
}

type ReturnDeps struct {
	Returns      ReturnRepo
	Orders       OrderRepo
	Users        UserRepo
	PointTxs     PointTxRepo
	PointsConfig PointsConfigRepo
	Notifier     Notifier
	Log          *slog.Logger
}

type returnService struct {
	returns  ReturnRepo
	orders   OrderRepo
	points   pointsLedger
	notifier Notifier
	log      *slog.Logger
	clock    func() time.Time
}

func NewReturnService(d ReturnDeps, opts ...Option) ReturnService {
	o := buildOptions(opts)
	if d.Log == nil {
		d.Log = slog.Default()
	}
	return &returnService{
		returns:  d.Returns,
		orders:   d.Orders,
		points:   pointsLedger{users: d.Users, txs: d.PointTxs, configs: d.PointsConfig, log: d.Log},
		notifier: d.Notifier,
		log:      d.Log,
		clock:    o.clock,
	}
}

func (s *returnService) Create(ctx context.Context, userID string, in ReturnInput) (ReturnRequest, error) {
	// 1) Validate input
	if err := in.Validate(); err != nil {
		return ReturnRequest{}, err
	}

	// 2) Check the order is returnable
	o, err := s.ownOrder(ctx, userID, in.OrderID)
	if err != nil {
		return ReturnRequest{}, err
	}
	now := s.clock()
	if el := s.eligibility(o, now); !el.Eligible {
		if o.Status != OrderDelivered {
			return ReturnRequest{}, fmt.Errorf("%w: %s", ErrInvalidState, el.Reason)
		}
		return ReturnRequest{}, ErrReturnWindow
	}
	open, err := s.returns.ExistsOpenForOrder(ctx, o.ID)
	if err != nil {
		return ReturnRequest{}, err
	}
	if open {
		return ReturnRequest{}, ErrReturnExists
	}

	// 3) Persist
	text, _ := in.Reason.Text()
	r := ReturnRequest{
		ID:           ids.New(),
		OrderID:      o.ID,
		OrderNumber:  o.Number,
		UserID:       userID,
		Reason:       in.Reason,
		ReasonText:   text,
		CustomReason: in.CustomReason,
		Status:       ReturnPending,
		RefundAmount: o.TotalPrice,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.returns.Create(ctx, r); err != nil {
		return ReturnRequest{}, err
	}

	notifyQuietly(ctx, s.notifier, s.log, NotificationInput{
		Recipient: AdminRecipient,
		Title:     "Yêu cầu hoàn trả mới",
		Message:   fmt.Sprintf("Đơn hàng %s có yêu cầu hoàn trả: %s", o.Number, text),
		Link:      "/admin/returns/" + r.ID,
		OrderID:   o.ID,
		Type:      NotifyReturn,
	})
	return r, nil
}

func (s *returnService) Eligibility(ctx context.Context, userID, orderID string) (ReturnEligibility, error) {
	o, err := s.ownOrder(ctx, userID, orderID)
	if err != nil {
		return ReturnEligibility{}, err
	}
	el := s.eligibility(o, s.clock())
	if !el.Eligible {
		return el, nil
	}
	open, err := s.returns.ExistsOpenForOrder(ctx, o.ID)
	if err != nil {
		return ReturnEligibility{}, err
	}
	if open {
		return ReturnEligibility{Eligible: false, Reason: "Đơn hàng đã có yêu cầu hoàn trả", Deadline: el.Deadline}, nil
	}
	return el, nil
}

func (s *returnService) eligibility(o Order, now time.Time) ReturnEligibility {
	if o.Status != OrderDelivered {
		return ReturnEligibility{Reason: "Chỉ đơn hàng đã giao mới được hoàn trả"}
	}
	deadline := o.DeliveredTime().Add(ReturnWindow)
	if now.After(deadline) {
		return ReturnEligibility{Reason: "Đã quá thời hạn 24 giờ kể từ khi nhận hàng", Deadline: &deadline}
	}
	return ReturnEligibility{Eligible: true, Deadline: &deadline}
}

func (s *returnService) ownOrder(ctx context.Context, userID, orderID string) (Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.UserID != userID {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (s *returnService) Mine(ctx context.Context, userID string, p Page) (PageResult[ReturnRequest], error) {
	return s.AdminList(ctx, ReturnFilter{UserID: userID, Page: p})
}

func (s *returnService) AdminList(ctx context.Context, f ReturnFilter) (PageResult[ReturnRequest], error) {
	f.Page = f.Page.Normalize()
	switch f.Status {
	case "", ReturnPending, ReturnApproved, ReturnRejected:
	default:
		return PageResult[ReturnRequest]{}, fmt.Errorf("%w: unknown status %q", ErrValidation, f.Status)
	}
	items, total, err := s.returns.List(ctx, f)
	if err != nil {
		return PageResult[ReturnRequest]{}, err
	}
	return NewPageResult(items, total, f.Page), nil
}

func (s *returnService) AdminGet(ctx context.Context, id string) (ReturnRequest, error) {
	return s.returns.Get(ctx, id)
}

func (s *returnService) Approve(ctx context.Context, adminID, id, note string) (ReturnRequest, error) {
	r, err := s.returns.Get(ctx, id)
	if err != nil {
		return ReturnRequest{}, err
	}
	if r.Status != ReturnPending {
		return ReturnRequest{}, ErrReturnNotPending
	}
	cfg, err := s.points.configs.Get(ctx)
	if err != nil {
		return ReturnRequest{}, err
	}
	awarded := r.RefundAmount / cfg.PointsValue
	now := s.clock()

	// Flip the request first so a concurrent approval cannot award twice.
	r, err = s.returns.Decide(ctx, id, ReturnDecision{
		Status:        ReturnApproved,
		AdminNote:     strings.TrimSpace(note),
		PointsAwarded: awarded,
		ProcessedBy:   adminID,
		At:            now,
	})
	if err != nil {
		return ReturnRequest{}, err
	}

	if awarded > 0 {
		desc := fmt.Sprintf("Hoàn tiền đơn hàng %s bằng điểm", r.OrderNumber)
		if _, err := s.points.apply(ctx, r.UserID, PointsAdjustment, awarded, desc, r.OrderID, now); err != nil {
			if rerr := s.returns.Reopen(context.WithoutCancel(ctx), id); rerr != nil {
				err = errors.Join(err, rerr)
			}
			return ReturnRequest{}, err
		}
	}
	if err := s.orders.SetPaymentStatus(ctx, r.OrderID, PaymentRefunded, now); err != nil {
		s.log.ErrorContext(ctx, "mark order refunded failed", "order_id", r.OrderID, "err", err)
	}

	notifyQuietly(ctx, s.notifier, s.log, NotificationInput{
		Recipient: r.UserID,
		Title:     "Yêu cầu hoàn trả được chấp nhận",
		Message:   fmt.Sprintf("Yêu cầu hoàn trả đơn hàng %s đã được chấp nhận. Bạn nhận được %d điểm.", r.OrderNumber, awarded),
		Link:      "/orders/" + r.OrderID,
		OrderID:   r.OrderID,
		Type:      NotifyReturn,
	})
	return r, nil
}

func (s *returnService) Reject(ctx context.Context, adminID, id, note string) (ReturnRequest, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return ReturnRequest{}, fmt.Errorf("%w: a note is required to reject a return", ErrValidation)
	}
	r, err := s.returns.Decide(ctx, id, ReturnDecision{
		Status:      ReturnRejected,
		AdminNote:   note,
		ProcessedBy: adminID,
		At:          s.clock(),
	})
	if err != nil {
		return ReturnRequest{}, err
	}
	notifyQuietly(ctx, s.notifier, s.log, NotificationInput{
		Recipient: r.UserID,
		Title:     "Yêu cầu hoàn trả bị từ chối",
		Message:   fmt.Sprintf("Yêu cầu hoàn trả đơn hàng %s bị từ chối: %s", r.OrderNumber, note),
		Link:      "/orders/" + r.OrderID,
		OrderID:   r.OrderID,
		Type:      NotifyReturn,
	})
	return r, nil
}

func (s *returnService) Stats(ctx context.Context) (ReturnStats, error) {
	st, err := s.returns.Stats(ctx)
	if err != nil {
		return ReturnStats{}, err
	}
	if st.ByStatus == nil {
		st.ByStatus = map[ReturnStatus]int64{}
	}
	return st, nil
}
