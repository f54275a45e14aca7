package main

import (
	"context"
	"log"

	"cakeshop-cart/internal/config"
	"cakeshop-cart/internal/db"
	"cakeshop-cart/internal/logging"
	"cakeshop-cart/internal/repository/product"
	"cakeshop-cart/internal/seed"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()
	logger, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	logger = logger.Named("seed")

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	defer pool.Close()

	n, err := seed.Apply(ctx, product.NewPostgres(pool, logger))
	if err != nil {
		logger.Fatal("seed apply", zap.Error(err))
	}

	logger.Info("seed applied", zap.Int("products", n))
}
