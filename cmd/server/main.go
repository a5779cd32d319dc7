package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/honeynil/dreamnity-payments/internal/api"
	"github.com/honeynil/dreamnity-payments/internal/config"
	"github.com/honeynil/dreamnity-payments/internal/handler"
	"github.com/honeynil/dreamnity-payments/internal/infrastructure/auth"
	"github.com/honeynil/dreamnity-payments/internal/infrastructure/exchange"
	"github.com/honeynil/dreamnity-payments/internal/infrastructure/kafka"
	"github.com/honeynil/dreamnity-payments/internal/infrastructure/memory"
	"github.com/honeynil/dreamnity-payments/internal/infrastructure/redis"
	"github.com/honeynil/dreamnity-payments/internal/observability"
	"github.com/honeynil/dreamnity-payments/internal/repository"
	"github.com/honeynil/dreamnity-payments/internal/repository/kv"
	core "github.com/honeynil/dreamnity-payments/internal/repository/postgres"
	service "github.com/honeynil/dreamnity-payments/internal/services"
	"github.com/honeynil/dreamnity-payments/internal/simulate"
	"github.com/honeynil/dreamnity-payments/internal/storage"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
)

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, metricsHandler, err := observability.Setup(ctx, "dreamnity-payments", cfg.LogLevel, cfg.OTLPEndpoint)
	if err != nil {
		slog.Error("failed to init tracing", "error", err)
	}
	defer shutdownTracing(context.Background())

	// Store backend
	var backend storage.KV
	switch cfg.StoreBackend {
	case "redis":
		redisClient, err := redis.NewClient(ctx, cfg.RedisAddr, 0)
		if err != nil {
			slog.Error("failed to connect to redis", "addr", cfg.RedisAddr, "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		backend = redisClient
	default:
		backend = memory.NewStore()
	}
	store := storage.NewManager(backend)

	// Snapshot archive
	var archive repository.SnapshotRepository
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			slog.Error("failed to open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		snapshots := core.NewPostgresSnapshotRepository(db)
		if err := snapshots.Migrate(ctx); err != nil {
			slog.Error("failed to migrate snapshots table", "error", err)
			os.Exit(1)
		}
		archive = snapshots
	}

	// Event broker
	var publisher service.EventPublisher = service.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		producer := kafka.NewProducer(cfg.KafkaBrokers)
		defer producer.Close()
		publisher = producer
	}

	gen := simulate.NewGenerator(nil)

	rates := service.NewRatesService(store, exchange.NewClient(cfg.RateAPIURL), cfg.RateCacheTTL)
	var rateSource service.RateSource = rates
	if !cfg.UseLiveRate {
		rate, err := decimal.NewFromString(cfg.PaymentRate)
		if err != nil {
			slog.Warn("invalid PAYMENT_RATE, using default", "value", cfg.PaymentRate, "error", err)
			rate = service.DefaultPaymentRate
		}
		rateSource = service.FixedRate{Rate: rate}
	}

	// Services
	feed := service.NewNotificationFeed(cfg.NotificationTTL)
	defer feed.Close()

	users := kv.NewUserRepository(ctx, store, kv.Options{BcryptCost: cfg.BcryptCost, SeedDemoUser: cfg.SeedDemoUser})
	tokens := auth.NewJWTService(cfg.JWTSecret, cfg.JWTTTL)
	authSvc := service.NewAuthService(ctx, users, store, tokens, publisher, cfg.LoginDelay)
	defer authSvc.Close()

	ledger := service.NewLedgerService(ctx, store, service.LedgerOptions{
		Rates:     rateSource,
		Artifacts: gen,
		Publisher: publisher,
		Notifier:  feed,
		LinkDelay: cfg.PaymentLinkDelay,
	})
	defer ledger.Close()

	wallet := service.NewWalletService(ctx, store, service.WalletOptions{
		Artifacts:       gen,
		Publisher:       publisher,
		Notifier:        feed,
		ConversionDelay: cfg.ConversionDelay,
	})
	defer wallet.Close()

	settlement := service.NewSettlementService(store, feed, cfg.SettlementToggleDelay)
	defer settlement.Close()

	data := service.NewDataService(store, archive, users, ledger, wallet)
	ingestor := service.NewIngestor(ledger, feed)

	// Inbound events
	if len(cfg.KafkaBrokers) > 0 {
		for _, topic := range []string{kafka.TopicSettlements, kafka.TopicAlerts} {
			consumer := kafka.NewConsumer(cfg.KafkaBrokers, topic, "dreamnity-payments-"+topic, ingestor)
			defer consumer.Close()
			go consumer.Consume(ctx)
		}
	}

	if cfg.Simulate {
		go simulate.NewSettlementSweeper(ledger, ingestor, gen, cfg.SweepInterval, cfg.SweepProbability).Run(ctx)
		go simulate.NewAlertGenerator(ingestor, gen, cfg.AlertInterval, cfg.AlertProbability).Run(ctx)
		slog.Info("development simulators started")
	}

	h := handler.NewHandler(handler.Services{
		Auth:       authSvc,
		Ledger:     ledger,
		Wallet:     wallet,
		Feed:       feed,
		Rates:      rates,
		Settlement: settlement,
		Data:       data,
	})
	router := api.SetupRouter(h, authSvc, metricsHandler)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	// Ends open notification streams so Shutdown does not wait on them.
	server.RegisterOnShutdown(feed.Close)
	go func() {
		slog.Info("starting server", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown failed", "error", err)
	}
	slog.Info("server stopped")
}
