package core

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ReturnWindow is how long after delivery a customer may ask for a refund.
const ReturnWindow = 24 * time.Hour

type ReturnReason string

const (
	ReasonWrongItem      ReturnReason = "wrong_item"
	ReasonDamaged        ReturnReason = "damaged"
	ReasonNotAsDescribed ReturnReason = "not_as_described"
	ReasonSizeNotFit     ReturnReason = "size_not_fit"
	ReasonQualityIssue   ReturnReason = "quality_issue"
	ReasonChangedMind    ReturnReason = "changed_mind"
	ReasonOther          ReturnReason = "other"
)

var returnReasonText = map[ReturnReason]string{
	ReasonWrongItem:      "Giao sai sản phẩm",
	ReasonDamaged:        "Sản phẩm bị hư hỏng",
	ReasonNotAsDescribed: "Không đúng mô tả",
	ReasonSizeNotFit:     "Size không vừa",
	ReasonQualityIssue:   "Chất lượng không tốt",
	ReasonChangedMind:    "Đổi ý không muốn mua",
	ReasonOther:          "Lý do khác",
}

// Text is the display text of a known reason.
func (r ReturnReason) Text() (string, bool) {
	t, ok := returnReasonText[r]
	return t, ok
}

type ReturnStatus string

const (
	ReturnPending  ReturnStatus = "pending"
	ReturnApproved ReturnStatus = "approved"
	ReturnRejected ReturnStatus = "rejected"
)

type ReturnRequest struct {
	ID            string       `json:"id"`
	OrderID       string       `json:"order_id"`
	OrderNumber   string       `json:"order_number"`
	UserID        string       `json:"user_id"`
	Reason        ReturnReason `json:"reason"`
	ReasonText    string       `json:"reason_text"`
	CustomReason  string       `json:"custom_reason,omitempty"`
	Status        ReturnStatus `json:"status"`
	RefundAmount  int64        `json:"refund_amount"`
	PointsAwarded int64        `json:"points_awarded"`
	AdminNote     string       `json:"admin_note,omitempty"`
	ProcessedBy   string       `json:"processed_by,omitempty"`
	ProcessedAt   *time.Time   `json:"processed_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

type ReturnInput struct {
	OrderID      string       `json:"order_id"`
	Reason       ReturnReason `json:"reason"`
	CustomReason string       `json:"custom_reason"`
}

func (in *ReturnInput) Validate() error {
	in.CustomReason = strings.TrimSpace(in.CustomReason)
	if in.OrderID == "" {
		return fmt.Errorf("%w: order_id is required", ErrValidation)
	}
	if _, ok := in.Reason.Text(); !ok {
		return fmt.Errorf("%w: unknown reason %q", ErrValidation, in.Reason)
	}
	if in.Reason == ReasonOther && in.CustomReason == "" {
		return fmt.Errorf("%w: custom_reason is required when reason is other", ErrValidation)
	}
	return nil
}

type ReturnEligibility struct {
	Eligible bool       `json:"eligible"`
	Reason   string     `json:"reason,omitempty"`
	Deadline *time.Time `json:"deadline,omitempty"`
}

type ReturnFilter struct {
	UserID string
	Status ReturnStatus
	Page   Page
}

// ReturnDecision is what ReturnRepo.Decide writes.
type ReturnDecision struct {
	Status        ReturnStatus
	AdminNote     string
	PointsAwarded int64
	ProcessedBy   string
	At            time.Time
}

type ReturnStats struct {
	ByStatus      map[ReturnStatus]int64 `json:"by_status"`
	Total         int64                  `json:"total"`
	TotalRefunded int64                  `json:"total_refunded"`
	PointsAwarded int64                  `json:"total_points_awarded"`
}

type ReturnRepo interface {
	Create(ctx context.Context, r ReturnRequest) error
	Get(ctx context.Context, id string) (ReturnRequest, error)
	// ExistsOpenForOrder reports a pending or approved request for the order.
	ExistsOpenForOrder(ctx context.Context, orderID string) (bool, error)
	List(ctx context.Context, f ReturnFilter) ([]ReturnRequest, int64, error)
	// Decide applies d to a pending request, failing with ErrReturnNotPending otherwise.
	Decide(ctx context.Context, id string, d ReturnDecision) (ReturnRequest, error)
	// Reopen puts an approved request back to pending and clears the decision.
	Reopen(ctx context.Context, id string) error
	Stats(ctx context.Context) (ReturnStats, error)
}

var (
	ErrReturnNotFound   = fmt.Errorf("%w: return request not found", ErrNotFound)
	ErrReturnExists     = fmt.Errorf("%w: a return request already exists for this order", ErrConflict)
	ErrReturnNotPending = fmt.Errorf("%w: return request is not pending", ErrInvalidState)
	ErrReturnWindow     = fmt.Errorf("%w: the return window has closed", ErrValidation)
)
