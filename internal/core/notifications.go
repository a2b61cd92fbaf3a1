package core

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/uteshop/uteshop-api/internal/platform/ids"
)

// AdminRecipient addresses the shared admin feed.
const AdminRecipient = "admin"

type NotificationType string

const (
	NotifyNormal                    NotificationType = "normal"
	NotifyOrder                     NotificationType = "order"
	NotifyOrderDeliveryConfirmation NotificationType = "order_delivery_confirmation"
	NotifyReturn                    NotificationType = "return"
	NotifyReward                    NotificationType = "reward"
)

type NotificationAction struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

type Notification struct {
	ID        string               `json:"id"`
	Recipient string               `json:"recipient"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Link      string               `json:"link,omitempty"`
	OrderID   string               `json:"order_id,omitempty"`
	Type      NotificationType     `json:"type"`
	Read      bool                 `json:"read"`
	Actions   []NotificationAction `json:"actions,omitempty"`
	CreatedAt time.Time            `json:"created_at"`
}

type NotificationInput struct {
	Recipient string               `json:"recipient"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Link      string               `json:"link"`
	OrderID   string               `json:"order_id"`
	Type      NotificationType     `json:"type"`
	Actions   []NotificationAction `json:"actions"`
}

func (in *NotificationInput) Validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Message = strings.TrimSpace(in.Message)
	if in.Recipient == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if in.Title == "" || in.Message == "" {
		return fmt.Errorf("%w: title and message are required", ErrValidation)
	}
	switch in.Type {
	case "":
		in.Type = NotifyNormal
	case NotifyNormal, NotifyOrder, NotifyOrderDeliveryConfirmation, NotifyReturn, NotifyReward:
	default:
		return fmt.Errorf("%w: unknown notification type %q", ErrValidation, in.Type)
	}
	return nil
}

type NotificationRepo interface {
	Create(ctx context.Context, n Notification) error
	// List returns the recipient's notifications newest first.
	List(ctx context.Context, recipient string, unreadOnly bool, p Page) ([]Notification, int64, error)
	CountUnread(ctx context.Context, recipient string) (int64, error)
	MarkRead(ctx context.Context, recipient, id string) error
	MarkAllRead(ctx context.Context, recipient string) (int64, error)
	DeleteRead(ctx context.Context, recipient string) (int64, error)
}

// Notifier is what other services use to tell someone something happened.
type Notifier interface {
	Notify(ctx context.Context, in NotificationInput) (Notification, error)
}

type NotificationService interface {
	Notifier
	List(ctx context.Context, recipient string, unreadOnly bool, p Page) (PageResult[Notification], error)
	UnreadCount(ctx context.Context, recipient string) (int64, error)
	MarkRead(ctx context.Context, recipient, id string) error
	MarkAllRead(ctx context.Context, recipient string) (int64, error)
	DeleteRead(ctx context.Context, recipient string) (int64, error)
}

type notificationService struct {
	repo   NotificationRepo
	events EventPublisher
	log    *slog.Logger
	clock  func() time.Time
}

func NewNotificationService(repo NotificationRepo, events EventPublisher, log *slog.Logger, opts ...Option) NotificationService {
	o := buildOptions(opts)
	if events == nil {
		events = NopPublisher{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &notificationService{repo: repo, events: events, log: log, clock: o.clock}
}

func (s *notificationService) Notify(ctx context.Context, in NotificationInput) (Notification, error) {
	if err := in.Validate(); err != nil {
		return Notification{}, err
	}
	n := Notification{
		ID:        ids.New(),
		Recipient: in.Recipient,
		Title:     in.Title,
		Message:   in.Message,
		Link:      in.Link,
		OrderID:   in.OrderID,
		Type:      in.Type,
		Actions:   in.Actions,
		CreatedAt: s.clock(),
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return Notification{}, err
	}
	publishEvent(ctx, s.events, s.log, EventNotificationCreated, n.Recipient, n, n.CreatedAt)
	return n, nil
}

func (s *notificationService) List(ctx context.Context, recipient string, unreadOnly bool, p Page) (PageResult[Notification], error) {
	p = NewPage(p.Page, p.Limit, 20)
	items, total, err := s.repo.List(ctx, recipient, unreadOnly, p)
	if err != nil {
		return PageResult[Notification]{}, err
	}
	return NewPageResult(items, total, p), nil
}

func (s *notificationService) UnreadCount(ctx context.Context, recipient string) (int64, error) {
	return s.repo.CountUnread(ctx, recipient)
}

func (s *notificationService) MarkRead(ctx context.Context, recipient, id string) error {
	if id == "" {
		return fmt.Errorf("%w: missing notification ID", ErrValidation)
	}
	return s.repo.MarkRead(ctx, recipient, id)
}

func (s *notificationService) MarkAllRead(ctx context.Context, recipient string) (int64, error) {
	return s.repo.MarkAllRead(ctx, recipient)
}

func (s *notificationService) DeleteRead(ctx context.Context, recipient string) (int64, error) {
	return s.repo.DeleteRead(ctx, recipient)
}

// notifyQuietly logs instead of failing the caller; notifications trail a
// committed write.
func notifyQuietly(ctx context.Context, n Notifier, log *slog.Logger, in NotificationInput) {
	if n == nil {
		return
	}
	if _, err := n.Notify(ctx, in); err != nil {
		log.WarnContext(ctx, "notification failed", "recipient", in.Recipient, "type", in.Type, "err", err)
	}
}

var ErrNotificationNotFound = fmt.Errorf("%w: notification not found", ErrNotFound)
