package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"tempmail/gateway/internal/cache"
	"tempmail/gateway/internal/clock"
	"tempmail/gateway/internal/config"
	"tempmail/gateway/internal/domain"
	"tempmail/gateway/internal/health"
	"tempmail/gateway/internal/logger"
	"tempmail/gateway/internal/monitoring"
	"tempmail/gateway/internal/ratelimit"
	"tempmail/gateway/internal/referral"
	"tempmail/gateway/internal/security"
	"tempmail/gateway/internal/service"
	httptransport "tempmail/gateway/internal/transport/http"
	"tempmail/gateway/internal/upstream"
)

const (
	version = "1.0.0"

	redisKeyPrefix = "tempmail:gateway:"
	shutdownWait   = 10 * time.Second
)

// @title TempMail Gateway API
// @version 1.0.0
// @description 临时邮箱 API 网关：转发服务商接口，附带缓存、限流、攻击检测与推荐奖励
// @BasePath /
// @schemes http https

// main 启动临时邮箱 API 网关。
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
	log, err := logger.NewLogger(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		File:        cfg.Log.File,
		MaxSizeMB:   100,
		MaxBackups:  3,
		MaxAgeDays:  28,
		Compress:    true,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting tempmail gateway",
		zap.String("version", version),
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
		zap.String("upstream", cfg.Upstream.BaseURL),
	)

	clk := clock.Real{}
	metrics := monitoring.NewMetrics()

	client := upstream.NewClient(upstream.Config{
		BaseURL: cfg.Upstream.BaseURL,
		Timeout: cfg.Upstream.Timeout,
		RPS:     cfg.Upstream.RPS,
		Burst:   cfg.Upstream.Burst,
	}, domain.NewSchemaValidator(), log, metrics)

	// 初始化响应缓存
	healthOpts := health.Options{UpstreamURL: cfg.Upstream.BaseURL}
	var responseCache cache.Cache
	var redisCache *cache.RedisCache

	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		redisCache, err = cache.NewRedisCache(&cfg.Redis, redisKeyPrefix, log)
		if err != nil {
			log.Fatal("failed to initialize redis cache", zap.Error(err))
		}
		responseCache = redisCache
		healthOpts.Cache = redisCache
	default:
		responseCache = cache.NewLocalCache(cfg.Cache.MaxEntries, clk)
		log.Info("using in-memory response cache", zap.Int("max_entries", cfg.Cache.MaxEntries))
	}

	mailService := service.NewMailService(client, responseCache, cfg.Cache.DomainsTTL, log, metrics)
	ledger := referral.NewLedger(referral.WithReward(cfg.Referral.Reward), referral.WithClock(clk))
	detector := security.NewDetector(nil, cfg.Guard.Ladder, clk)
	limiter := ratelimit.NewFixedWindow(cfg.RateLimit.Max, cfg.RateLimit.Window, clk)

	log.Info("gateway guards configured",
		zap.Int("ratelimit_max", cfg.RateLimit.Max),
		zap.Duration("ratelimit_window", cfg.RateLimit.Window),
		zap.Durations("block_ladder", cfg.Guard.Ladder),
		zap.Int("referral_reward", cfg.Referral.Reward),
	)

	// 初始化告警系统
	alertManager := monitoring.NewAlertManager(clk, log)
	alertManager.AddReceiver(monitoring.NewLogAlertReceiver(log))
	alertManager.AddRule(monitoring.HighMemoryUsageRule(512.0)) // 512MB
	alertManager.AddRule(monitoring.BlockedIPsRule(detector.BlockedCount, 50))
	if redisCache != nil {
		alertManager.AddRule(monitoring.CacheConnectionRule(redisCache.Ping))
	}

	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:      cfg,
		MailService: mailService,
		Referrals:   ledger,
		Detector:    detector,
		Limiter:     limiter,
		Taunts:      security.NewTaunts(nil, nil),
		Metrics:     metrics,
		Health:      health.NewChecker(healthOpts, log),
		Logger:      log,
	})

	httpAddr := cfg.Server.Addr()
	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		// 附件转发受上游超时约束，写超时需覆盖它
		WriteTimeout: cfg.Upstream.Timeout + 15*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 定时清理过期限流窗口与违规记录 goroutine
	group.Go(func() error {
		interval := cfg.RateLimit.Window
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		log.Info("starting guard cleanup task", zap.Duration("interval", interval))

		for {
			select {
			case <-groupCtx.Done():
				log.Info("guard cleanup task stopped")
				return nil
			case <-ticker.C:
				if n := limiter.Cleanup(); n > 0 {
					log.Debug("expired rate limit windows removed", zap.Int("count", n))
				}
				if n := detector.Cleanup(); n > 0 {
					log.Debug("expired strike records removed", zap.Int("count", n))
				}
			}
		}
	})

	// 告警监控 goroutine
	group.Go(func() error {
		log.Info("starting alert monitoring", zap.Duration("interval", time.Minute))
		alertManager.StartMonitoring(groupCtx, time.Minute)
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		if redisCache != nil {
			if err := redisCache.Close(); err != nil {
				log.Warn("redis close warning", zap.Error(err))
			}
		}

		log.Info("servers stopped")
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
