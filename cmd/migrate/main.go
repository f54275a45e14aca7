package main

import (
	"context"
	"log"

	"cakeshop-cart/internal/config"
	"cakeshop-cart/internal/db"
	"cakeshop-cart/internal/logging"
	"cakeshop-cart/internal/migrate"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("migrate")

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	defer pool.Close()

	version, err := migrate.Apply(ctx, pool)
	if err != nil {
		logger.Fatal("apply migrations", zap.Error(err))
	}

	logger.Info("migrations applied", zap.Uint("version", version))
}
