package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/andreasstove999/duck-emporium/internal/config"
	"github.com/andreasstove999/duck-emporium/internal/db"
	"github.com/andreasstove999/duck-emporium/internal/dedup"
	"github.com/andreasstove999/duck-emporium/internal/events"
	"github.com/andreasstove999/duck-emporium/internal/http/inventoryapi"
	"github.com/andreasstove999/duck-emporium/internal/inventory"
	"github.com/andreasstove999/duck-emporium/internal/logging"
	"github.com/andreasstove999/duck-emporium/internal/sequence"
)

func main() {
	cfg := config.LoadInventory()

	logger, err := logging.New(events.InventoryServiceName, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("inventory-service stopped", zap.Error(err))
	}
}

func run(cfg config.Inventory, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- DB ---
	if cfg.RunMigrations {
		if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
			return fmt.Errorf("db migrate: %w", err)
		}
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()

	repo := inventory.NewPostgresRepository(pool)

	// --- AMQP ---
	var consumer *events.Consumer
	if cfg.ConsumeEvents {
		conn, err := events.Dial(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("dial rabbitmq: %w", err)
		}
		defer conn.Close()

		publisher, err := events.NewPublisher(conn, events.PublisherOptions{
			Producer:  events.InventoryServiceName,
			Sequencer: sequence.NewCounter(pool),
			Logger:    logger.Named("events"),
		})
		if err != nil {
			return fmt.Errorf("create stock publisher: %w", err)
		}
		defer publisher.Close()

		handler := events.CartCheckedOutHandler(repo, dedup.New(pool, events.CartCheckedOutConsumerName), publisher, logger.Named("checkout"))
		consumer, err = events.StartConsumer(ctx, conn, events.InventoryServiceName, events.CartCheckedOutRoutingKey, handler, logger)
		if err != nil {
			return fmt.Errorf("start consumer: %w", err)
		}
		defer consumer.Close()
	}

	// --- HTTP ---
	h := inventoryapi.NewHandler(repo, logger)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           inventoryapi.NewRouter(h, logger, cfg.CORSAllowOrigins),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		runErr = fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	_ = httpServer.Shutdown(shutdownCtx)
	cancel()

	if consumer != nil {
		select {
		case <-consumer.Done():
		case <-shutdownCtx.Done():
			logger.Warn("consumer did not stop before shutdown timeout")
		}
	}

	logger.Info("shutdown complete")
	return runErr
}
