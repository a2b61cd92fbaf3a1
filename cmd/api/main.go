package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/uteshop/uteshop-api/internal/app"
	transporthttp "github.com/uteshop/uteshop-api/internal/http"
	"github.com/uteshop/uteshop-api/internal/http/health"
	"github.com/uteshop/uteshop-api/internal/jobs"
	"github.com/uteshop/uteshop-api/internal/middleware"
	"github.com/uteshop/uteshop-api/internal/platform/config"
	"github.com/uteshop/uteshop-api/internal/platform/logging"
	"github.com/uteshop/uteshop-api/internal/realtime"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.MustLoad()
	log := logging.New(cfg.Env)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("uteshop-api stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	infra, err := app.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open backends: %w", err)
	}
	defer func() {
		if err := infra.Close(context.Background()); err != nil {
			log.Error("closing backends", "err", err)
		}
	}()

	svc := app.NewServices(infra.Repos, infra.Adapters, app.Settings{
		ShippingFee:        cfg.ShippingFee,
		ReviewRewardPoints: cfg.ReviewRewardPoints,
		CacheTTL:           cfg.CacheTTL,
	}, log)

	hub := realtime.NewHub(infra.Adapters.Tokens, infra.Adapters.Revoker, cfg.AllowedOrigins, log)
	defer hub.Close()
	svc.Subscribe(infra.Dispatcher, hub.HandleNotification)

	var authLimit func(http.Handler) http.Handler
	if cfg.AuthRateLimitRPM > 0 {
		authLimit = middleware.NewRateLimiter(ctx, cfg.AuthRateLimitRPM, time.Minute).Middleware
	}
	router := transporthttp.NewRouter(ctx, svc.RouterDeps(infra.Adapters, app.RouteOptions{
		Health:             health.New(log, 2*time.Second, infra.Checks...),
		Live:               hub,
		InternalAPIKey:     cfg.InternalAPIKey,
		AllowedOrigins:     cfg.AllowedOrigins,
		RequestTimeout:     time.Duration(cfg.HTTPRequestTimeoutSec) * time.Second,
		RateLimitPerMinute: cfg.RateLimitRPM,
		AuthLimit:          authLimit,
	}, log))

	// Background work shares ctx and is drained before backends close.
	interval := time.Duration(cfg.WorkerIntervalSec) * time.Second
	workers := []jobs.Worker{
		jobs.NewOrderConfirmWorker(svc.Orders, cfg.OrderAutoConfirmAfter, interval, log),
		jobs.NewVoucherWindowWorker(svc.Vouchers, interval, log),
	}
	if infra.KafkaBus != nil {
		workers = append(workers, jobs.NewEventConsumerWorker(infra.KafkaBus, time.Second, log))
	}
	var bg sync.WaitGroup
	bg.Add(1)
	go func() {
		defer bg.Done()
		jobs.RunAll(ctx, workers...)
	}()
	if infra.MemoryBus != nil {
		bg.Add(1)
		go func() {
			defer bg.Done()
			infra.MemoryBus.Run(ctx)
		}()
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTPReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTPWriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.HTTPIdleTimeoutSec) * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr, "env", cfg.Env, "store", cfg.DBType)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	case err := <-serveErr:
		cancel()
		bg.Wait()
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "err", err)
	}
	cancel()
	bg.Wait()
	log.Info("server stopped")
	return nil
}
