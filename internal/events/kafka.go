package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/uteshop/uteshop-api/internal/core"
	"github.com/uteshop/uteshop-api/internal/platform/metrics"
)

type KafkaConfig struct {
	Brokers []string
	Topic   string
	Group   string
}

// KafkaBus produces events to one topic and consumes them with a group.
type KafkaBus struct {
	client *kgo.Client
	topic  string
	d      *Dispatcher
	log    *slog.Logger
	// pollWait bounds one Consume call.
	pollWait time.Duration
}

func NewKafkaBus(cfg KafkaConfig, d *Dispatcher, log *slog.Logger) (*KafkaBus, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if log == nil {
		log = slog.Default()
	}
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topic),
		kgo.DisableAutoCommit(),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &KafkaBus{client: client, topic: cfg.Topic, d: d, log: log.With("bus", "kafka"), pollWait: time.Second}, nil
}

var _ core.EventPublisher = (*KafkaBus)(nil)

func (b *KafkaBus) Publish(ctx context.Context, e core.Event) error {
	rec, err := toRecord(e)
	if err != nil {
		return err
	}
	if err := b.client.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("kafka produce %s: %w", e.Type, err)
	}
	metrics.EventsPublished.WithLabelValues(string(e.Type), "kafka").Inc()
	return nil
}

func toRecord(e core.Event) (*kgo.Record, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event %s: %w", e.Type, err)
	}
	return &kgo.Record{
		Key:     []byte(e.Key),
		Value:   value,
		Headers: []kgo.RecordHeader{{Key: "type", Value: []byte(e.Type)}},
	}, nil
}

func fromRecord(r *kgo.Record) (core.Event, error) {
	var e core.Event
	if err := json.Unmarshal(r.Value, &e); err != nil {
		return e, fmt.Errorf("decode record at %s/%d@%d: %w", r.Topic, r.Partition, r.Offset, err)
	}
	return e, nil
}

// Consume polls once, dispatches what arrived and commits it. Records that
// fail to decode or whose handlers fail are logged and committed so one bad
// event cannot wedge the group.
func (b *KafkaBus) Consume(ctx context.Context) error {
	pollCtx, cancel := context.WithTimeout(ctx, b.pollWait)
	defer cancel()

	fetches := b.client.PollFetches(pollCtx)
	if fetches.IsClientClosed() {
		return kgo.ErrClientClosed
	}
	var fetchErr error
	fetches.EachError(func(topic string, partition int32, err error) {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return
		}
		fetchErr = errors.Join(fetchErr, fmt.Errorf("fetch %s/%d: %w", topic, partition, err))
	})

	fetches.EachRecord(func(r *kgo.Record) {
		e, err := fromRecord(r)
		if err != nil {
			b.log.ErrorContext(ctx, "skipping undecodable event", "err", err)
			return
		}
		if err := b.d.Dispatch(ctx, e); err != nil {
			b.log.ErrorContext(ctx, "event handler failed", "type", e.Type, "key", e.Key, "err", err)
		}
	})

	if fetches.NumRecords() > 0 {
		if err := b.client.CommitUncommittedOffsets(ctx); err != nil {
			return errors.Join(fetchErr, fmt.Errorf("kafka commit: %w", err))
		}
	}
	return fetchErr
}

func (b *KafkaBus) Ping(ctx context.Context) error {
	return b.client.Ping(ctx)
}

// Close leaves the group and flushes pending produces.
func (b *KafkaBus) Close() {
	b.client.Close()
}
