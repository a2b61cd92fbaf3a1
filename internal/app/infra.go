package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/uteshop/uteshop-api/internal/events"
	"github.com/uteshop/uteshop-api/internal/http/health"
	"github.com/uteshop/uteshop-api/internal/platform/config"
	"github.com/uteshop/uteshop-api/internal/platform/mailer"
	"github.com/uteshop/uteshop-api/internal/platform/media"
	"github.com/uteshop/uteshop-api/internal/platform/token"
	"github.com/uteshop/uteshop-api/internal/search"
	"github.com/uteshop/uteshop-api/internal/store/dynamo"
	"github.com/uteshop/uteshop-api/internal/store/memory"
	"github.com/uteshop/uteshop-api/internal/store/mongo"
	redisstore "github.com/uteshop/uteshop-api/internal/store/redis"
)

// Infra is everything opened from configuration: repositories, adapters,
// the event plumbing and the readiness checks that go with them.
type Infra struct {
	Repos      Repos
	Adapters   Adapters
	Dispatcher *events.Dispatcher
	Checks     []health.Check

	// Exactly one of these is set.
	MemoryBus *events.MemoryBus
	KafkaBus  *events.KafkaBus

	// Set when the matching backend is configured.
	Mongo  *mongo.Client
	Dynamo *dynamo.Client
	Index  *search.Index

	closers []func(context.Context) error
	log     *slog.Logger
}

// Open connects every configured backend. Optional backends that are not
// configured fall back to in-process versions. On error, anything already
// opened is closed.
func Open(ctx context.Context, cfg *config.Config, log *slog.Logger) (_ *Infra, err error) {
	in := &Infra{Dispatcher: events.NewDispatcher(log), log: log}
	defer func() {
		if err != nil {
			in.Close(context.Background())
		}
	}()

	if err := in.openStore(ctx, cfg); err != nil {
		return nil, err
	}
	if err := in.openDynamo(ctx, cfg); err != nil {
		return nil, err
	}
	if err := in.openRedis(ctx, cfg); err != nil {
		return nil, err
	}
	if err := in.openSearch(ctx, cfg); err != nil {
		return nil, err
	}
	if err := in.openMedia(ctx, cfg); err != nil {
		return nil, err
	}
	if err := in.openEvents(cfg); err != nil {
		return nil, err
	}

	in.Adapters.Tokens = token.NewJWTService(cfg.JWTSecret, cfg.JWTRefreshSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	if cfg.SMTPHost != "" {
		in.Adapters.Mailer = mailer.NewSMTP(mailer.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
	} else {
		log.Warn("SMTP_HOST not set, OTP codes will only be logged")
		in.Adapters.Mailer = mailer.NewLog(log)
	}
	return in, nil
}

func (in *Infra) openStore(ctx context.Context, cfg *config.Config) error {
	if cfg.DBType == "memory" {
		in.log.Warn("using in-memory store, data is lost on restart")
		in.Repos = MemoryRepos(memory.New())
		return nil
	}

	client, err := mongo.Connect(ctx, cfg, in.log)
	if err != nil {
		return err
	}
	in.Mongo = client
	in.closers = append(in.closers, client.Close)
	in.Checks = append(in.Checks, health.Check{Name: "mongo", Pinger: client})

	if err := mongo.EnsureIndexes(ctx, client.DB); err != nil {
		return fmt.Errorf("ensure mongo indexes: %w", err)
	}
	in.Repos = MongoRepos(mongo.NewStore(client.DB, time.Duration(cfg.MongoOpTimeoutMs)*time.Millisecond))
	in.log.Info("connected to mongo", "db", cfg.MongoDB)
	return nil
}

// openDynamo moves notifications and viewed history to DynamoDB.
func (in *Infra) openDynamo(ctx context.Context, cfg *config.Config) error {
	if cfg.NotificationStore != "dynamodb" {
		return nil
	}
	client, err := dynamo.NewClient(ctx, dynamo.Config{
		Region:          cfg.AWSRegion,
		Endpoint:        cfg.DynamoDBEndpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	}, in.log)
	if err != nil {
		return err
	}
	if err := dynamo.EnsureTables(ctx, client.DB, in.log); err != nil {
		return err
	}
	in.Dynamo = client
	in.Repos.Notifications = dynamo.NewNotificationRepo(client.DB)
	in.Repos.Viewed = dynamo.NewViewedRepo(client.DB)
	in.Checks = append(in.Checks, health.Check{Name: "dynamodb", Pinger: client})
	return nil
}

func (in *Infra) openRedis(ctx context.Context, cfg *config.Config) error {
	rc, err := redisstore.New(ctx, redisstore.Config{URL: cfg.RedisURL, PoolSize: cfg.RedisPoolSize})
	if err != nil {
		return err
	}
	if rc == nil {
		in.Adapters.Cache = memory.NewCache()
		in.Adapters.Revoker = token.NewMemoryRevoker()
		in.Adapters.Throttle = memory.NewThrottle()
		return nil
	}
	in.Adapters.Cache = redisstore.NewCache(rc.Client)
	in.Adapters.Revoker = redisstore.NewRevoker(rc.Client)
	in.Adapters.Throttle = redisstore.NewThrottle(rc.Client)
	in.Checks = append(in.Checks, health.Check{Name: "redis", Pinger: health.PingFunc(rc.Health)})
	in.closers = append(in.closers, func(context.Context) error { return rc.Close() })
	return nil
}

func (in *Infra) openSearch(ctx context.Context, cfg *config.Config) error {
	idx, err := search.New(search.Config{
		URL:      cfg.ElasticsearchURL,
		Username: cfg.ElasticsearchUsername,
		Password: cfg.ElasticsearchPassword,
		Index:    cfg.ElasticsearchIndex,
	})
	if err != nil {
		return err
	}
	if idx == nil {
		return nil
	}
	// Search degrades to the database, so a cluster that is down at boot is
	// not fatal.
	if err := idx.EnsureIndex(ctx); err != nil {
		in.log.Warn("elasticsearch index setup failed", "err", err)
	}
	in.Index = idx
	in.Adapters.Index = idx
	in.Checks = append(in.Checks, health.Check{Name: "elasticsearch", Pinger: idx, Optional: true})
	return nil
}

func (in *Infra) openMedia(ctx context.Context, cfg *config.Config) error {
	store, err := media.NewS3(ctx, media.Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.AWSRegion,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		PublicBaseURL:   cfg.S3PublicBaseURL,
	})
	if err != nil {
		return err
	}
	if store != nil {
		in.Adapters.Media = store
	}
	return nil
}

func (in *Infra) openEvents(cfg *config.Config) error {
	if len(cfg.KafkaBrokers) == 0 {
		in.MemoryBus = events.NewMemoryBus(in.Dispatcher, in.log)
		in.Adapters.Events = in.MemoryBus
		return nil
	}
	bus, err := events.NewKafkaBus(events.KafkaConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
		Group:   cfg.KafkaGroup,
	}, in.Dispatcher, in.log)
	if err != nil {
		return err
	}
	in.KafkaBus = bus
	in.Adapters.Events = bus
	in.Checks = append(in.Checks, health.Check{Name: "kafka", Pinger: bus, Optional: true})
	in.closers = append(in.closers, func(context.Context) error { bus.Close(); return nil })
	return nil
}

// Close releases backends in reverse order of opening.
func (in *Infra) Close(ctx context.Context) error {
	var errs []error
	for i := len(in.closers) - 1; i >= 0; i-- {
		if err := in.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	in.closers = nil
	return errors.Join(errs...)
}
