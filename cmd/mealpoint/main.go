package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mealpoint/mealpoint/internal/app"
	"github.com/mealpoint/mealpoint/internal/auth"
	"github.com/mealpoint/mealpoint/internal/canteen"
	"github.com/mealpoint/mealpoint/internal/masterdata"
	"github.com/mealpoint/mealpoint/internal/observability"
	"github.com/mealpoint/mealpoint/internal/platform/cache"
	"github.com/mealpoint/mealpoint/internal/platform/db"
	"github.com/mealpoint/mealpoint/internal/sales"
	"github.com/mealpoint/mealpoint/internal/stock"
	"github.com/mealpoint/mealpoint/internal/supply"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, redisClient, cfg.JWTSecret, cfg.TokenTTL)
	authHandler := auth.NewHandler(logger, authService)

	canteenRepo := canteen.NewRepository(pool)
	canteenService := canteen.NewService(canteenRepo)
	canteenHandler := canteen.NewHandler(logger, canteenService)

	catalogRepo := masterdata.NewRepository(pool)
	catalogService := masterdata.NewService(catalogRepo)
	catalogHandler := masterdata.NewHandler(logger, catalogService)

	stockRepo := stock.NewRepository(pool)
	stockService := stock.NewService(stockRepo, catalogService)
	stockHandler := stock.NewHandler(logger, stockService)

	salesRepo := sales.NewRepository(pool)
	salesService := sales.NewService(salesRepo, catalogService, canteenService)
	salesHandler := sales.NewHandler(logger, salesService)

	supplyRepo := supply.NewRepository(pool)
	supplyService := supply.NewService(supplyRepo, catalogService, canteenService)
	supplyHandler := supply.NewHandler(logger, supplyService)

	metrics := observability.NewMetrics()

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		AuthService:       authService,
		AuthHandler:       authHandler,
		CanteenHandler:    canteenHandler,
		MasterDataHandler: catalogHandler,
		StockHandler:      stockHandler,
		SalesHandler:      salesHandler,
		SupplyHandler:     supplyHandler,
		Metrics:           metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
