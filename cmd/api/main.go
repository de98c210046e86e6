package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/nikhilllyadav/SpringBus/internal/api"
	"github.com/nikhilllyadav/SpringBus/internal/api/handler"
	apimiddleware "github.com/nikhilllyadav/SpringBus/internal/api/middleware"
	"github.com/nikhilllyadav/SpringBus/internal/application"
	"github.com/nikhilllyadav/SpringBus/internal/config"
	"github.com/nikhilllyadav/SpringBus/internal/infrastructure/postgres"
	"github.com/nikhilllyadav/SpringBus/internal/infrastructure/queue"
	redisinfra "github.com/nikhilllyadav/SpringBus/internal/infrastructure/redis"
	stripeinfra "github.com/nikhilllyadav/SpringBus/internal/infrastructure/stripe"
	"github.com/nikhilllyadav/SpringBus/internal/pkg/logger"
	"github.com/nikhilllyadav/SpringBus/internal/pkg/metrics"
	"github.com/nikhilllyadav/SpringBus/internal/worker"
)

func main() {
	cfg := config.Load()

	// ロガー初期化
	logger.Set(logger.NewLogger(os.Getenv("APP_ENV")))
	defer logger.Sync()

	// メトリクス初期化
	m := metrics.Init()

	// DB接続
	db, err := postgres.NewConnection(&cfg.Database)
	if err != nil {
		logger.Fatal("データベース接続に失敗", zap.Error(err))
	}
	defer db.Close()

	// マイグレーション実行
	migrationsPath := os.Getenv("MIGRATIONS_PATH")
	if migrationsPath == "" {
		migrationsPath = "migrations"
	}
	if err := postgres.RunMigrations(db.DB, migrationsPath); err != nil {
		logger.Fatal("マイグレーションに失敗", zap.Error(err))
	}

	// Redis接続（未接続でもDBの行ロックのみで動作する）
	var (
		lockManager *redisinfra.LockManager
		cache       *redisinfra.AvailabilityCache
	)
	redisClient := redisinfra.NewClient(&cfg.Redis)
	if err := redisinfra.Ping(context.Background(), redisClient); err != nil {
		logger.Warn("Redis接続に失敗、分散ロックとキャッシュなしで起動します", zap.Error(err))
		redisClient = nil
	} else {
		defer redisClient.Close()
		lockManager = redisinfra.NewLockManager(redisClient)
		cache = redisinfra.NewAvailabilityCache(redisClient)
	}

	// RabbitMQ接続（未接続でも通知なしで動作する）
	var notifier application.ConfirmationNotifier
	publisher, err := queue.NewConfirmationPublisher(&cfg.AMQP)
	if err != nil {
		logger.Warn("RabbitMQ接続に失敗、確定通知なしで起動します", zap.Error(err))
	} else {
		defer publisher.Close()
		notifier = publisher
	}

	// 決済ゲートウェイ
	gateway := stripeinfra.NewGateway(&cfg.Stripe)

	// リポジトリとサービス
	txManager := postgres.NewTxManager(db)
	tripRepo := postgres.NewTripRepository(db)
	bookingRepo := postgres.NewBookingRepository(db)

	tripService := application.NewTripService(txManager, tripRepo, lockManager, cache)
	bookingService := application.NewBookingService(txManager, bookingRepo, tripRepo, lockManager, cache)
	paymentService := application.NewPaymentService(txManager, bookingRepo, tripRepo, gateway, lockManager, cache, notifier)

	// 期限切れ予約リーパー起動
	reaperCtx, reaperCancel := context.WithCancel(context.Background())
	defer reaperCancel()
	reaper := worker.NewExpiredBookingReaper(bookingService, cfg.Booking.ReaperInterval, cfg.Booking.LockExpiry)
	go reaper.Start(reaperCtx)

	// ハンドラー
	tripHandler := handler.NewTripHandler(tripService)
	bookingHandler := handler.NewBookingHandler(bookingService)
	paymentHandler := handler.NewPaymentHandler(paymentService)
	healthHandler := handler.NewHealthHandler()

	// Echo セットアップ
	e := echo.New()
	e.HideBanner = true
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	apimiddleware.SetupMiddleware(e)
	e.Use(apimiddleware.PrometheusMiddleware(m))

	e.GET("/health", healthHandler.Check)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), apimiddleware.MetricsBasicAuth())

	v1 := e.Group("/api/v1")
	v1.POST("/trips", tripHandler.Create)
	v1.GET("/trips", tripHandler.List)
	v1.GET("/trips/:id", tripHandler.GetByID)
	v1.GET("/trips/:id/seats", tripHandler.GetSeatMap)
	v1.POST("/trips/:id/seats/lock", tripHandler.LockSeats)

	v1.POST("/bookings", bookingHandler.Create)
	v1.GET("/bookings", bookingHandler.GetUserBookings)
	v1.GET("/bookings/all", bookingHandler.ListAll)
	v1.GET("/bookings/:id", bookingHandler.GetByID)
	v1.POST("/bookings/:id/payment-intent", paymentHandler.CreateIntent)

	v1.POST("/payments/webhook", paymentHandler.Webhook)

	// サーバー起動
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Server.Port)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("サーバー起動エラー", zap.Error(err))
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("サーバーをシャットダウンしています")

	// リーパーを先に止めてから接続を閉じる
	reaper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("サーバーシャットダウンエラー", zap.Error(err))
	}

	logger.Info("サーバーが正常にシャットダウンしました")
}
