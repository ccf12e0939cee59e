package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempmail/gateway/internal/monitoring"
	"tempmail/gateway/internal/ratelimit"
	"tempmail/gateway/internal/security"
)

// RateLimit 按客户端 IP 的固定窗口限流中间件
func RateLimit(limiter *ratelimit.FixedWindow, taunts *security.Taunts, log *zap.Logger, metrics *monitoring.Metrics) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		ip := c.ClientIP()
		d := limiter.Allow(ip)

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(d.ResetTime.Unix(), 10))

		if !d.Allowed {
			metrics.RecordBlock(monitoring.BlockRateLimit)
			log.Info("rate limit exceeded",
				zap.String("ip", ip),
				zap.Time("reset", d.ResetTime),
			)
			c.Header("Retry-After", strconv.FormatInt(secondsUntil(limiter.Now(), d.ResetTime), 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": taunts.Pick(),
			})
			return
		}

		c.Next()
	}
}
