package main

import (
	"context"
	"errors"
	"github.com/ariefcatur/go-premium-orders/internal/config"
	"github.com/ariefcatur/go-premium-orders/internal/httpx"
	"github.com/ariefcatur/go-premium-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-premium-orders/internal/kafka"
	"github.com/ariefcatur/go-premium-orders/internal/logger"
	"github.com/ariefcatur/go-premium-orders/internal/orders"
	"github.com/ariefcatur/go-premium-orders/internal/payment"
	"github.com/ariefcatur/go-premium-orders/internal/postgres"
	"github.com/ariefcatur/go-premium-orders/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	lg, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	if cfg.MigrateOnStart {
		if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
			lg.Fatal("migrate", zap.Error(err))
		}
	}
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		lg.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, lg)
	prod.Start()

	// Service & handler
	repo := &orders.Repo{DB: db}
	svc := &orders.Service{
		Store: repo,
		Invoices: payment.NewClient(payment.Config{
			BaseURL:   cfg.Payment.BaseURL,
			SecretKey: cfg.Payment.SecretKey,
			Timeout:   cfg.Payment.Timeout,
		}, lg),
		Events:      prod,
		Log:         lg,
		ServiceName: cfg.ServiceName,
		Hold:        cfg.OrderHold,
		SuccessURL:  cfg.Payment.SuccessURL,
		FailureURL:  cfg.Payment.FailureURL,
	}
	if cfg.Payment.CallbackToken == "" {
		lg.Warn("PAYMENT_CALLBACK_TOKEN is empty, payment callbacks will be rejected")
	}

	router := httpx.NewRouter(lg)
	(&httpx.OrdersHandler{
		Orders: svc,
		Idem:   &redisx.Idempotency{RDB: rdb},
		Log:    lg,
		Dev:    cfg.IsDevelopment(),
	}).Register(router)
	(&httpx.PaymentsHandler{Orders: svc, Token: cfg.Payment.CallbackToken, Log: lg, Dev: cfg.IsDevelopment()}).Register(router)
	(&httpx.ProductsHandler{
		Stock: &inventory.StockCache{Redis: rdb, Source: repo, TTL: redisx.TTLStock, Log: lg},
		Log:   lg,
		Dev:   cfg.IsDevelopment(),
	}).Register(router)

	// HTTP server
	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	// graceful shutdown
	go func() {
		lg.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("listen", zap.Error(err))
		}
	}()

	// wait signal
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	lg.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // tutup inbox -> flush & close writer
	prod.WaitClosed() // drain
}
