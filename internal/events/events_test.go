package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/goleak"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/platform/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func quietLog() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func mustEvent(t *testing.T, typ core.EventType, key string, payload any) core.Event {
	t.Helper()
	e, err := core.NewEvent(typ, key, payload, time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	return e
}

func TestDispatcher(t *testing.T) {
	ctx := context.Background()
	d := NewDispatcher(quietLog())

	var got []string
	d.On(core.EventProductSaved, func(_ context.Context, e core.Event) error {
		got = append(got, "index:"+e.Key)
		return nil
	})
	d.On(core.EventProductSaved, func(_ context.Context, e core.Event) error {
		got = append(got, "audit:"+e.Key)
		return errors.New("audit down")
	})

	err := d.Dispatch(ctx, mustEvent(t, core.EventProductSaved, "p1", map[string]string{"id": "p1"}))
	assert.ErrorContains(t, err, "audit down")
	assert.Equal(t, []string{"index:p1", "audit:p1"}, got, "a failing handler does not stop the others")

	assert.NoError(t, d.Dispatch(ctx, mustEvent(t, core.EventOrderCreated, "o1", nil)))
}

func TestMemoryBusDeliversInOrder(t *testing.T) {
	d := NewDispatcher(quietLog())
	var (
		mu   sync.Mutex
		keys []string
		done = make(chan struct{})
	)
	d.On(core.EventNotificationCreated, func(_ context.Context, e core.Event) error {
		mu.Lock()
		defer mu.Unlock()
		keys = append(keys, e.Key)
		if len(keys) == 3 {
			close(done)
		}
		return nil
	})

	bus := NewMemoryBus(d, quietLog())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		bus.Run(ctx)
		close(stopped)
	}()

	for _, k := range []string{"u1", "u2", "u3"} {
		require.NoError(t, bus.Publish(ctx, mustEvent(t, core.EventNotificationCreated, k, nil)))
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("events were not dispatched")
	}
	cancel()
	<-stopped

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"u1", "u2", "u3"}, keys)
}

func TestMemoryBusDropsWhenFull(t *testing.T) {
	bus := newMemoryBus(NewDispatcher(quietLog()), quietLog(), 1)
	ctx := context.Background()
	before := testutil.ToFloat64(metrics.EventsDropped.WithLabelValues(string(core.EventOrderCreated)))

	require.NoError(t, bus.Publish(ctx, mustEvent(t, core.EventOrderCreated, "o1", nil)))
	require.NoError(t, bus.Publish(ctx, mustEvent(t, core.EventOrderCreated, "o2", nil)))

	after := testutil.ToFloat64(metrics.EventsDropped.WithLabelValues(string(core.EventOrderCreated)))
	assert.Equal(t, before+1, after)
	assert.Len(t, bus.ch, 1)
	assert.Equal(t, "o1", (<-bus.ch).Key)
}

func TestRecordRoundTrip(t *testing.T) {
	e := mustEvent(t, core.EventOrderStatusChanged, "o1", core.OrderStatusChange{
		OrderID: "o1", UserID: "u1", From: core.OrderShipped, To: core.OrderDelivered,
	})

	rec, err := toRecord(e)
	require.NoError(t, err)
	assert.Equal(t, []byte("o1"), rec.Key)
	assert.Equal(t, []kgo.RecordHeader{{Key: "type", Value: []byte("order.status_changed")}}, rec.Headers)

	back, err := fromRecord(rec)
	require.NoError(t, err)
	assert.Equal(t, e.ID, back.ID)
	assert.True(t, e.OccurredAt.Equal(back.OccurredAt))

	var change core.OrderStatusChange
	require.NoError(t, back.Decode(&change))
	assert.Equal(t, core.OrderDelivered, change.To)

	_, err = fromRecord(&kgo.Record{Topic: "uteshop.events", Value: []byte("{")})
	assert.Error(t, err)
}

func TestNewKafkaBusNeedsBrokers(t *testing.T) {
	_, err := NewKafkaBus(KafkaConfig{Topic: "t"}, NewDispatcher(nil), nil)
	assert.Error(t, err)
}
