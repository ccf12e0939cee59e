package httptransport

import (
	"net/http"
	"time"

	gincors "github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempmail/gateway/internal/config"
	"tempmail/gateway/internal/health"
	"tempmail/gateway/internal/middleware"
	"tempmail/gateway/internal/monitoring"
	"tempmail/gateway/internal/ratelimit"
	"tempmail/gateway/internal/referral"
	"tempmail/gateway/internal/security"
	"tempmail/gateway/internal/service"
)

// Handler 聚合所有 HTTP 处理逻辑。
type Handler struct {
	mail      *service.MailService
	referrals *referral.Ledger
	metrics   *monitoring.Metrics
	logger    *zap.Logger
}

// RouterDependencies 路由器依赖项
type RouterDependencies struct {
	Config      *config.Config
	MailService *service.MailService
	Referrals   *referral.Ledger
	Detector    *security.Detector
	Limiter     *ratelimit.FixedWindow
	Taunts      *security.Taunts
	Metrics     *monitoring.Metrics
	Health      *health.Checker // 可选
	Logger      *zap.Logger
}

// NewRouter 创建并返回 Gin 路由实例。
//
// 运维端点（/health、/metrics）在攻击检测与限流之前注册，不受其约束；
// 其余路由与未匹配路径都会经过这两道关卡。
func NewRouter(deps RouterDependencies) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	// 未配置可信代理时 ClientIP 只取连接地址，伪造的 X-Forwarded-For 无法绕过封禁与限流
	if err := router.SetTrustedProxies(deps.Config.Server.TrustedProxies); err != nil {
		logger.Warn("invalid trusted proxies, falling back to remote address",
			zap.Strings("trusted_proxies", deps.Config.Server.TrustedProxies),
			zap.Error(err),
		)
		_ = router.SetTrustedProxies(nil)
	}

	router.Use(middleware.RecoveryHandler(logger, deps.Metrics))
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(gincors.New(corsConfig(deps.Config.CORS.AllowedOrigins)))
	router.Use(middleware.HTTPMetrics(deps.Metrics))
	router.Use(middleware.BodySizeLimit(deps.Config.Server.BodyLimit))

	// 健康检查
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if deps.Health != nil {
		router.GET("/health/live", gin.WrapF(deps.Health.LiveEndpoint))
		router.GET("/health/ready", gin.WrapF(deps.Health.ReadyEndpoint))
	}
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.HTTPHandler()))
	}

	// 之后注册的路由全部经过攻击检测与限流
	router.Use(middleware.AttackGuard(deps.Detector, deps.Taunts, logger, deps.Metrics))
	router.Use(middleware.RateLimit(deps.Limiter, deps.Taunts, logger, deps.Metrics))

	handler := &Handler{
		mail:      deps.MailService,
		referrals: deps.Referrals,
		metrics:   deps.Metrics,
		logger:    logger,
	}

	api := router.Group("/api")
	{
		api.GET("/domains", handler.listDomains)

		api.GET("/inbox/:email", handler.listInbox)
		api.DELETE("/inbox/:email", handler.deleteInbox)

		api.GET("/email/:id", handler.getEmail)
		api.DELETE("/email/:id", handler.deleteEmail)

		api.GET("/attachment/:emailId/:attachmentId", handler.downloadAttachment)

		referralRoutes := api.Group("/referral")
		{
			referralRoutes.GET("/create", handler.createReferral)
			referralRoutes.GET("/stats", handler.referralStats)
			referralRoutes.POST("/claim/:code", handler.claimReferral)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		NotFound(c, MsgNotFound)
	})

	return router
}

func corsConfig(origins []string) gincors.Config {
	cfg := gincors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Disposition",
			"X-Cache",
			"X-RateLimit-Limit",
			"X-RateLimit-Remaining",
			"X-RateLimit-Reset",
			middleware.RequestIDHeader,
		},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	// 如果允许所有来源，则需清空凭证支持。
	for _, origin := range cfg.AllowOrigins {
		if origin == "*" {
			cfg.AllowOrigins = nil
			cfg.AllowAllOrigins = true
			cfg.AllowCredentials = false
			break
		}
	}
	return cfg
}
