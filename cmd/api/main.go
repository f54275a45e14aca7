package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cakeshop-cart/internal/config"
	"cakeshop-cart/internal/db"
	"cakeshop-cart/internal/httpserver"
	"cakeshop-cart/internal/kvstore"
	"cakeshop-cart/internal/logging"
	"cakeshop-cart/internal/migrate"
	"cakeshop-cart/internal/notify"
	productrepo "cakeshop-cart/internal/repository/product"
	"cakeshop-cart/internal/service/session"
	"go.uber.org/zap"
)

const pruneInterval = 10 * time.Minute

type backend struct {
	kv      kvstore.Store
	catalog httpserver.ProductCatalog
	close   func()
}

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("api")

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx := context.Background()
	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open cart store", zap.String("backend", cfg.StoreBackend), zap.Error(err))
	}
	defer be.close()

	sessions := session.NewManager(be.kv, session.Config{
		TTL:       cfg.SessionTTL,
		KeyPrefix: cfg.CartKeyPrefix,
		TaxRate:   cfg.TaxRate,
		Notifier:  notify.NewLog(logger.Named("notify")),
		Logger:    logger,
	})

	srv, err := httpserver.New(cfg.HTTPAddr, logger, httpserver.Deps{
		Sessions:       sessions,
		Catalog:        be.catalog,
		Backend:        be.kv,
		CORSOrigins:    cfg.CORSOrigins,
		Currency:       cfg.Currency,
		CurrencyDigits: cfg.CurrencyDigits,
	})
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	pruneCtx, stopPrune := context.WithCancel(ctx)
	defer stopPrune()
	go func() {
		ticker := time.NewTicker(pruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				sessions.Prune()
			case <-pruneCtx.Done():
				return
			}
		}
	}()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("backend", cfg.StoreBackend),
			zap.String("tax_rate", cfg.TaxRate.String()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
	}
	stopPrune()
	if err := sessions.Close(); err != nil {
		logger.Warn("close carts", zap.Error(err))
	}
	logger.Info("server stopped")
}

func openBackend(ctx context.Context, cfg config.Config, logger *zap.Logger) (backend, error) {
	switch cfg.StoreBackend {
	case config.BackendRedis:
		r := kvstore.NewRedis(cfg.RedisAddr)
		if err := r.WaitReady(ctx, 5); err != nil {
			_ = r.Close()
			return backend{}, err
		}
		return backend{kv: r, close: func() { _ = r.Close() }}, nil

	case config.BackendPostgres:
		pool, err := db.Connect(ctx, cfg.DBConnString)
		if err != nil {
			return backend{}, err
		}
		version, err := migrate.Apply(ctx, pool)
		if err != nil {
			pool.Close()
			return backend{}, err
		}
		logger.Info("schema ready", zap.Uint("version", version))
		return backend{
			kv:      kvstore.NewPostgres(pool),
			catalog: productrepo.NewPostgres(pool, logger),
			close:   pool.Close,
		}, nil

	default:
		logger.Warn("using in-memory cart store; carts are lost on restart")
		return backend{kv: kvstore.NewMemory(), close: func() {}}, nil
	}
}
