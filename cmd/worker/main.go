package main

import (
	"context"
	"github.com/ariefcatur/go-premium-orders/internal/config"
	"github.com/ariefcatur/go-premium-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-premium-orders/internal/kafka"
	"github.com/ariefcatur/go-premium-orders/internal/logger"
	"github.com/ariefcatur/go-premium-orders/internal/orders"
	"github.com/ariefcatur/go-premium-orders/internal/postgres"
	"github.com/ariefcatur/go-premium-orders/internal/redisx"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
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
	lg = lg.With(zap.String("process", "worker"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.PostgresMaxConns)
	if err != nil {
		lg.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Producer: order.expired dari sweeper
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, lg)
	prod.Start()

	repo := &orders.Repo{DB: db}
	// sweeper tidak memanggil gateway, jadi Invoices tidak dipasang
	svc := &orders.Service{
		Store:       repo,
		Events:      prod,
		Log:         lg,
		ServiceName: cfg.WorkerGroup,
		Hold:        cfg.OrderHold,
	}
	sweeper := &orders.Sweeper{Orders: svc, Interval: cfg.SweepInterval, Batch: cfg.SweepBatch, Log: lg}

	stock := &inventory.Service{
		Cache:       &inventory.StockCache{Redis: rdb, Source: repo, TTL: redisx.TTLStock, Log: lg},
		Redis:       rdb,
		ServiceName: cfg.WorkerGroup,
		Log:         lg,
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.WorkerGroup, orders.AllTopics, cfg.WorkerConcurrency, lg)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		lg.Info("stock cache consumer started",
			zap.String("group", cfg.WorkerGroup),
			zap.Strings("topics", orders.AllTopics),
			zap.Int("workers", cfg.WorkerConcurrency))
		if err := cons.Start(ctx, stock.HandleOrderEvent); err != nil {
			lg.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
		lg.Info("shutting down worker...")
	case <-ctx.Done():
	}
	cancel()
	wg.Wait()
	prod.Close()
	prod.WaitClosed()
}
