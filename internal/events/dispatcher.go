// Package events delivers domain events to in-process handlers, either
// straight from a buffered channel or through a Kafka topic.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/uteshop/uteshop-api/internal/core"
)

type Handler func(ctx context.Context, e core.Event) error

// Dispatcher routes events to the handlers registered for their type.
type Dispatcher struct {
	handlers map[core.EventType][]Handler
	log      *slog.Logger
}

func NewDispatcher(log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{handlers: make(map[core.EventType][]Handler), log: log}
}

// On registers h for t. Register everything before the bus starts.
func (d *Dispatcher) On(t core.EventType, h Handler) {
	d.handlers[t] = append(d.handlers[t], h)
}

// Dispatch runs every handler for e.Type and joins their errors. Events
// nobody listens to are skipped.
func (d *Dispatcher) Dispatch(ctx context.Context, e core.Event) error {
	hs, ok := d.handlers[e.Type]
	if !ok {
		d.log.DebugContext(ctx, "no handler for event, skipping", "type", e.Type, "key", e.Key)
		return nil
	}
	var errs []error
	for _, h := range hs {
		if err := h(ctx, e); err != nil {
			errs = append(errs, fmt.Errorf("%s %s: %w", e.Type, e.ID, err))
		}
	}
	return errors.Join(errs...)
}
