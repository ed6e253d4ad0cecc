package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tempmail/bot/internal/bot"
	"tempmail/bot/internal/cache"
	"tempmail/bot/internal/config"
	"tempmail/bot/internal/health"
	"tempmail/bot/internal/logger"
	"tempmail/bot/internal/mailtm"
	"tempmail/bot/internal/monitoring"
	"tempmail/bot/internal/pool"
	"tempmail/bot/internal/service"
	"tempmail/bot/internal/storage"
	"tempmail/bot/internal/storage/memory"
	redisstore "tempmail/bot/internal/storage/redis"
	sqlstore "tempmail/bot/internal/storage/sql"
)

// main 启动 Telegram 机器人与运维 HTTP 端点。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		File:        cfg.Log.File,
		MaxSize:     100,
		MaxBackups:  3,
		MaxAge:      28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting tempmail bot",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.String("provider", cfg.Provider.BaseURL),
	)

	// 初始化会话存储层
	var store storage.Store
	if cfg.Database.Type != "" {
		store, err = sqlstore.NewStore(&cfg.Database)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize database storage: %v", err))
		}
		log.Info("using database session storage", zap.String("type", cfg.Database.Type))
	} else {
		store = memory.NewStore()
		log.Info("using memory session storage (development mode)")
	}
	defer store.Close()

	// 初始化待确认状态存储
	var confirms storage.ConfirmationStore
	if cfg.Redis.Address != "" {
		confirms, err = redisstore.NewConfirmStore(&cfg.Redis, cfg.Confirm.TTL)
		if err != nil {
			panic(fmt.Sprintf("failed to initialize redis confirmation store: %v", err))
		}
		log.Info("using redis confirmation store", zap.String("address", cfg.Redis.Address))
	} else {
		confirms = cache.NewConfirmCache(cfg.Confirm.TTL)
		log.Info("using local confirmation cache", zap.Duration("ttl", cfg.Confirm.TTL))
	}
	defer confirms.Close()

	// 初始化邮件提供方客户端与会话管理器
	provider := mailtm.NewClient(cfg.Provider, log)
	sessions := service.NewSessionManager(provider, store, log)

	// 初始化监控与健康检查
	metrics := monitoring.NewMetrics()
	healthChecker := health.NewHealthChecker(store, provider, log)

	// 初始化更新分发协程池
	dispatch := pool.NewWorkerPool(cfg.Dispatch.Workers, cfg.Dispatch.QueueSize, log)

	// 初始化 Telegram 机器人
	tgBot, err := bot.New(cfg.Telegram, sessions, confirms, dispatch, metrics, log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize telegram bot: %v", err))
	}
	log.Info("telegram bot authorized", zap.String("username", tgBot.Username()))

	// 运维端点：健康检查与 Prometheus 指标
	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/health/live", gin.WrapF(healthChecker.LiveHandler()))
	router.GET("/health/ready", gin.WrapF(healthChecker.ReadyHandler()))
	router.GET("/metrics", gin.WrapH(metrics.HTTPHandler()))

	opsAddr := fmt.Sprintf("%s:%d", cfg.Ops.Host, cfg.Ops.Port)
	opsServer := &http.Server{
		Addr:              opsAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// 运维 HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting ops HTTP server", zap.String("address", opsAddr))
		if err := opsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("ops HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// Telegram 长轮询 goroutine
	group.Go(func() error {
		return tgBot.Run(groupCtx)
	})

	// 优雅停机 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := opsServer.Shutdown(shutdownCtx); err != nil {
			log.Error("ops HTTP server shutdown error", zap.Error(err))
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		log.Error("bot exited with error", zap.Error(err))
	}
	log.Info("bot stopped")
}
