package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"earlykickoff-backend/internal/config"
	"earlykickoff-backend/internal/domain/ports/adapter"
	"earlykickoff-backend/internal/infra/adapters/fetch"
	payAdapters "earlykickoff-backend/internal/infra/adapters/payment"
	"earlykickoff-backend/internal/infra/adapters/qrcode"
	"earlykickoff-backend/internal/infra/adapters/storage"
	"earlykickoff-backend/internal/infra/api"
	pg "earlykickoff-backend/internal/infra/db/postgres"
	"earlykickoff-backend/internal/infra/logging"
	"earlykickoff-backend/internal/infra/metrics"
	red "earlykickoff-backend/internal/infra/redis"
	"earlykickoff-backend/internal/infra/sched"
	"earlykickoff-backend/internal/infra/worker"
	"earlykickoff-backend/internal/usecase"
)

// set via -ldflags
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (simulated gateway, console logs)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	rateLimiter := red.NewRateLimiter(redisClient)
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	userRepo := pg.NewPostgresUserRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	payRepo := pg.NewPaymentRepo(pool)
	webhookRepo := pg.NewWebhookEventRepo(pool)
	taskRepo := pg.NewFulfillmentTaskRepo(pool)
	orderRepo := pg.NewOrderRepo(pool)
	ticketRepo := pg.NewTicketRepo(pool)
	catalogRepo := pg.NewCatalogRepoCacheDecorator(pg.NewCatalogRepo(pool), redisClient, cfg.Redis.TTL)

	// ---- Adapters ----
	store, err := storage.NewS3Storage(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("object storage")
	}
	fetcher := fetch.NewHTTPFetcher(cfg.Storage.FetchTimeout)
	encoder := qrcode.NewEncoder()

	var gateway adapter.PaymentGateway
	if cfg.Mpesa.Configured() {
		gateway, err = payAdapters.NewMpesaGateway(cfg.Mpesa, red.NewTokenCache(redisClient, "mpesa"))
		if err != nil {
			logger.Fatal().Err(err).Msg("mpesa gateway")
		}
	} else {
		if !cfg.Runtime.Dev {
			logger.Fatal().Msg("mpesa credentials missing; run with -dev to use the simulated gateway")
		}
		gateway = payAdapters.NewSimulatedGateway()
	}
	logger.Info().Str("gateway", gateway.Name()).Msg("payment gateway ready")

	vipPrice, err := decimal.NewFromString(cfg.Subscription.VIPPrice)
	if err != nil {
		logger.Fatal().Err(err).Str("vip_price", cfg.Subscription.VIPPrice).Msg("subscription.vip_price")
	}

	// ---- Use cases ----
	qrSvc := usecase.NewQRService(encoder, store, cfg.App.PublicBaseURL, cfg.App.QRSize, logger)
	subUC := usecase.NewSubscriptionUseCase(userRepo, subRepo, tm, vipPrice, cfg.Subscription.IntervalDays, logger)
	ticketUC := usecase.NewTicketUseCase(ticketRepo, payRepo, userRepo, catalogRepo, taskRepo, tm, qrSvc,
		cfg.App.TicketVerifyBase, cfg.Fulfillment.MaxAttempts, logger)
	fulfillUC := usecase.NewFulfillmentUseCase(taskRepo, payRepo, orderRepo, userRepo, ticketUC, subUC, qrSvc,
		usecase.RetryPolicy{
			MaxAttempts: cfg.Fulfillment.MaxAttempts,
			BaseBackoff: cfg.Fulfillment.BaseBackoff,
			MaxBackoff:  cfg.Fulfillment.MaxBackoff,
			StuckAfter:  cfg.Fulfillment.StuckAfter,
		}, logger)
	payUC := usecase.NewPaymentUseCase(payRepo, webhookRepo, taskRepo, orderRepo, catalogRepo, userRepo, subUC, fulfillUC,
		gateway, tm, usecase.PaymentOptions{
			VIPPrice:     vipPrice,
			MaxAttempts:  cfg.Fulfillment.MaxAttempts,
			AbandonAfter: cfg.Reconciler.AbandonAfter,
			Dev:          cfg.Runtime.Dev,
		}, logger)
	imageUC := usecase.NewImageUseCase(catalogRepo, orderRepo, ticketRepo, store, fetcher, cfg.Storage.SignTTL, logger)

	// ---- Background workers ----
	workers := worker.NewPool(cfg.Fulfillment.Workers, logger)
	workers.Start(ctx)

	var wg sync.WaitGroup
	runLoop := func(name string, run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Str("loop", name).Msg("background loop stopped")
			}
		}()
	}
	runLoop("fulfillment", sched.NewFulfillmentWorker(fulfillUC, workers,
		cfg.Fulfillment.PollInterval, cfg.Fulfillment.BatchSize, logger).Run)
	runLoop("reconciler", sched.NewPaymentReconciler(payUC, payRepo, locker,
		cfg.Reconciler.Interval, cfg.Reconciler.StaleAfter, cfg.Reconciler.BatchSize, logger).Run)
	runLoop("expiry", sched.NewExpiryWorker(cfg.Subscription.ExpiryInterval, subUC, logger).Run)
	runLoop("pool-stats", func(ctx context.Context) error {
		t := time.NewTicker(15 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				metrics.ObservePool(pool.Stat())
			}
		}
	})

	// ---- HTTP ----
	srv := api.NewServer(payUC, subUC, imageUC, fulfillUC,
		api.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer), rateLimiter,
		api.Options{
			AdminAPIKey:    cfg.Admin.APIKey,
			RequestTimeout: cfg.HTTP.RequestTimeout,
			InitiateLimit:  cfg.HTTP.InitiateLimit,
		}, logger)
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Str("version", version).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	// ---- Graceful shutdown ----
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	wg.Wait()
	workers.Stop()
	logger.Info().Msg("bye")
}
