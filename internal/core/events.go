package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/uteshop/uteshop-api/internal/platform/ids"
)

type EventType string

const (
	EventOrderCreated        EventType = "order.created"
	EventOrderStatusChanged  EventType = "order.status_changed"
	EventProductSaved        EventType = "product.saved"
	EventProductDeleted      EventType = "product.deleted"
	EventNotificationCreated EventType = "notification.created"
)

// Event is a fact other parts of the system may react to.
type Event struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func NewEvent(t EventType, key string, payload any, at time.Time) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", t, err)
	}
	return Event{ID: ids.New(), Type: t, Key: key, Payload: raw, OccurredAt: at}, nil
}

// Decode unmarshals the payload into v.
func (e Event) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}

// NopPublisher discards events.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// OrderStatusChange is the payload of EventOrderStatusChanged.
type OrderStatusChange struct {
	OrderID string      `json:"order_id"`
	UserID  string      `json:"user_id"`
	From    OrderStatus `json:"from"`
	To      OrderStatus `json:"to"`
}

// ProductDeletion is the payload of EventProductDeleted.
type ProductDeletion struct {
	ProductID string `json:"product_id"`
}

// publishEvent is fire-and-forget: the write that produced the event has
// already been committed, so a failed publish is logged rather than returned.
func publishEvent(ctx context.Context, pub EventPublisher, log *slog.Logger, t EventType, key string, payload any, at time.Time) {
	if pub == nil {
		return
	}
	e, err := NewEvent(t, key, payload, at)
	if err == nil {
		err = pub.Publish(ctx, e)
	}
	if err != nil && log != nil {
		log.WarnContext(ctx, "event publish failed", "type", t, "key", key, "err", err)
	}
}
