package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/aurelia-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/aurelia-backend/api/controllers/webhooks"
	"github.com/angelmondragon/aurelia-backend/api/routes"
	"github.com/angelmondragon/aurelia-backend/internal/ledger"
	"github.com/angelmondragon/aurelia-backend/internal/orders"
	"github.com/angelmondragon/aurelia-backend/internal/webhooks/paystack"
	"github.com/angelmondragon/aurelia-backend/pkg/config"
	"github.com/angelmondragon/aurelia-backend/pkg/db"
	"github.com/angelmondragon/aurelia-backend/pkg/logger"
	"github.com/angelmondragon/aurelia-backend/pkg/metrics"
	"github.com/angelmondragon/aurelia-backend/pkg/migrate"
	"github.com/angelmondragon/aurelia-backend/pkg/outbox"
	"github.com/angelmondragon/aurelia-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	bootCtx := context.Background()

	dbClient, err := db.New(bootCtx, cfg.DB, logg)
	if err != nil {
		return err
	}
	closers := []func() error{dbClient.Close}
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
	}()

	if err := migrate.MaybeRunDev(bootCtx, cfg, logg, dbClient); err != nil {
		return err
	}

	// The router and controller take interfaces; a nil *redis.Client must
	// never reach them as a typed nil.
	var (
		redisPinger controllers.Pinger
		guard       webhookcontrollers.PaystackWebhookGuard
	)
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(bootCtx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		closers = append(closers, redisClient.Close)
		idempotency, err := paystack.NewIdempotencyGuard(redisClient, cfg.Paystack.IdempotencyTTL, "paystack")
		if err != nil {
			return err
		}
		redisPinger = redisClient
		guard = idempotency
	} else {
		logg.Warn(bootCtx, "redis not configured, webhook deliveries rely on ledger dedupe only")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	orderRepo := orders.NewRepository(dbClient.DB())
	ledgerRepo := ledger.NewRepository(dbClient.DB())
	ledgerService, err := ledger.NewService(ledgerRepo)
	if err != nil {
		return err
	}
	resolver, err := paystack.NewResolver(orderRepo, ledgerService, paystack.ConstantBackoff(cfg.Paystack.ResolveAttempts, cfg.Paystack.ResolveDelay))
	if err != nil {
		return err
	}
	webhookService, err := paystack.NewService(paystack.ServiceParams{
		Orders:            orderRepo,
		Ledger:            ledgerService,
		Outbox:            outbox.NewService(outbox.NewRepository(dbClient.DB()), logg),
		TransactionRunner: dbClient,
		Resolver:          resolver,
		Logger:            logg,
		Metrics:           metrics.NewWebhookMetrics(reg),
	})
	if err != nil {
		return err
	}
	if cfg.Paystack.SecretKey == "" {
		logg.Warn(bootCtx, "paystack secret key not configured, webhooks will be rejected")
	}
	gate := paystack.NewGate(paystack.GateConfig{
		Secret:        cfg.Paystack.SecretKey,
		AllowedIPs:    cfg.Paystack.AllowedIPs,
		EnforceOrigin: cfg.App.IsProd(),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(bootCtx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           routes.NewRouter(cfg, logg, dbClient, redisPinger, reg, metrics.NewHTTPMetrics(reg), webhookService, gate, guard),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-sigCtx.Done():
	}

	logg.Info(ctx, "api server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logg.Info(ctx, "api server stopped")
	return nil
}
