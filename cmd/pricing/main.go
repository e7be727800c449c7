// Package main запускает HTTP-сервер сервиса ценообразования и лояльности.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/storefront-pricing/internal/config"
	"github.com/mmeshcher/storefront-pricing/internal/handler"
	"github.com/mmeshcher/storefront-pricing/internal/middleware"
	"github.com/mmeshcher/storefront-pricing/internal/rates"
	"github.com/mmeshcher/storefront-pricing/internal/repository"
	"github.com/mmeshcher/storefront-pricing/internal/service"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}
	defer repo.Close()

	var ratesClient *rates.Client
	if cfg.RatesProviderAddress != "" {
		ratesClient = rates.NewClient(cfg.RatesProviderAddress)
	}

	var provider service.RateProvider
	if ratesClient != nil {
		provider = ratesClient
	}

	svc := service.NewService(repo, provider, logger, cfg.ForeignCurrency)
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware("storefront-secret")
	h := handler.NewHandler(svc, logger, authMiddleware)

	r := h.SetupRouter()

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// Запуск фонового обновления курса валют
	g.Go(func() error {
		svc.StartRateRefresh(ctx)
		return nil
	})

	// Запуск HTTP-сервера
	g.Go(func() error {
		sugar.Infow("starting pricing server", "addr", cfg.RunAddress, "currency", cfg.ForeignCurrency)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Fatalw("application terminated with error", "error", err)
	}
}
