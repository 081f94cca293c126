package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noelye/agentic-pos/internal/chain"
	"github.com/noelye/agentic-pos/internal/config"
	"github.com/noelye/agentic-pos/internal/db"
	"github.com/noelye/agentic-pos/internal/events"
	internalhttp "github.com/noelye/agentic-pos/internal/http"
	"github.com/noelye/agentic-pos/internal/ledger"
	"github.com/noelye/agentic-pos/internal/orders"
	"github.com/noelye/agentic-pos/internal/payments"
	"github.com/noelye/agentic-pos/internal/pricing"
	"github.com/noelye/agentic-pos/internal/service"
	"github.com/noelye/agentic-pos/internal/store"
	"github.com/noelye/agentic-pos/internal/watcher"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	if err := chain.ValidateAddress(cfg.Merchant.Address); err != nil {
		log.Fatalf("merchant address invalid: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	var journal *store.Store
	if cfg.DB.DSN != "" {
		pool, err := db.Connect(ctx, cfg.DB.DSN)
		if err != nil {
			logger.Fatal("db connect failed", zap.Error(err))
		}
		defer pool.Close()
		journal = store.New(pool)
	}

	fallback, err := decimal.NewFromString(cfg.Pricing.FallbackRate)
	if err != nil {
		logger.Fatal("invalid fallback rate", zap.Error(err))
	}
	oracle := pricing.New(
		cfg.Pricing.URL,
		time.Duration(cfg.Pricing.TTLSeconds)*time.Second,
		fallback,
		logger.Named("pricing"),
	)

	pending := ledger.New()
	orderClient := orders.NewClient(cfg.Orders.BaseURL)
	hub := events.NewHub(logger.Named("events"))

	matcher := payments.NewMatcher(pending, orderClient, logger.Named("matcher"))
	if journal != nil {
		matcher.Journal = journal
	}
	matcher.Events = hub

	w := watcher.New(
		cfg.Oracle.WSEndpoints,
		cfg.Merchant.Address,
		cfg.Oracle.Commitment,
		matcher,
		logger.Named("watcher"),
	)
	w.Keepalive = time.Duration(cfg.Watcher.KeepaliveSeconds) * time.Second
	w.MaxAttempts = cfg.Watcher.MaxReconnectAttempts
	if cfg.Oracle.RPCEndpoint != "" && cfg.Watcher.PollIntervalSeconds > 0 {
		w.RPC = chain.NewRPCClient(cfg.Oracle.RPCEndpoint, os.Getenv("HELIUS_API_KEY"))
		w.PollInterval = time.Duration(cfg.Watcher.PollIntervalSeconds) * time.Second
	}
	w.Start(ctx)

	svc := &service.Service{
		Pricing:       oracle,
		Ledger:        pending,
		Merchant:      cfg.Merchant.Address,
		MerchantLabel: cfg.Merchant.Label,
		Log:           logger.Named("service"),
	}

	h := internalhttp.NewHandler(svc, w, journal, hub)
	srv := internalhttp.NewServer(h, hub)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router,
	}

	go func() {
		logger.Info("payments service listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("merchant", cfg.Merchant.Address))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	w.Stop()
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}
