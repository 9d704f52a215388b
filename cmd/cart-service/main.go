package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/andreasstove999/duck-emporium/internal/cart"
	"github.com/andreasstove999/duck-emporium/internal/config"
	"github.com/andreasstove999/duck-emporium/internal/db"
	"github.com/andreasstove999/duck-emporium/internal/events"
	"github.com/andreasstove999/duck-emporium/internal/http/cartapi"
	"github.com/andreasstove999/duck-emporium/internal/inventory"
	"github.com/andreasstove999/duck-emporium/internal/logging"
	"github.com/andreasstove999/duck-emporium/internal/reconcile"
	"github.com/andreasstove999/duck-emporium/internal/sequence"
)

func main() {
	cfg := config.LoadCart()

	logger, err := logging.New(events.CartServiceName, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("cart-service stopped", zap.Error(err))
	}
}

func run(cfg config.Cart, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		store     cart.Store
		sequencer events.Sequencer
		closers   []io.Closer
	)
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	switch cfg.Store {
	case config.StoreSQLite:
		s, err := cart.OpenSQLiteStore(cfg.SQLitePath)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		closers = append(closers, s)
		store = s
		logger.Info("using sqlite cart store", zap.String("path", cfg.SQLitePath))
	default:
		if cfg.RunMigrations {
			if err := db.RunMigrations(cfg.DatabaseDSN, logger); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
		}
		pool, err := db.NewPool(ctx, cfg.DatabaseDSN)
		if err != nil {
			return fmt.Errorf("db connect: %w", err)
		}
		defer pool.Close()
		store = cart.NewPostgresStore(pool)
		sequencer = sequence.NewCounter(pool)
	}

	lookup, err := inventory.NewHTTPLookup(cfg.InventoryURL, &http.Client{Timeout: 2 * cfg.InventoryLookupTimeout})
	if err != nil {
		return err
	}
	reconciler := reconcile.New(lookup,
		reconcile.WithLookupTimeout(cfg.InventoryLookupTimeout),
		reconcile.WithMaxConcurrency(cfg.MaxConcurrency),
		reconcile.WithLogger(logger.Named("reconcile")),
	)

	opts := []cart.ServiceOption{cart.WithLogger(logger.Named("cart"))}
	if cfg.PublishEvents {
		conn, err := events.Dial(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("dial rabbitmq: %w", err)
		}
		closers = append(closers, conn)

		publisher, err := events.NewPublisher(conn, events.PublisherOptions{
			Producer:  events.CartServiceName,
			Sequencer: sequencer,
			Logger:    logger.Named("events"),
		})
		if err != nil {
			return fmt.Errorf("create cart publisher: %w", err)
		}
		closers = append(closers, publisher)
		opts = append(opts, cart.WithPublisher(publisher))
	}

	svc := cart.NewService(store, reconciler, opts...)
	router := cartapi.NewRouter(cartapi.NewHandler(svc, logger), logger, cfg.CORSAllowOrigins)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr), zap.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}
