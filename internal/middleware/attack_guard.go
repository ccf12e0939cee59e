package middleware

import (
	"bytes"
	"errors"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tempmail/gateway/internal/monitoring"
	"tempmail/gateway/internal/security"
)

// AttackGuard 攻击检测中间件
//
// 将查询参数与请求体拼接后交给检测器；命中规则或 IP 处于封禁期时返回 403。
// 命中的规则只写日志，不返回给客户端。
func AttackGuard(detector *security.Detector, taunts *security.Taunts, log *zap.Logger, metrics *monitoring.Metrics) gin.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}

	return func(c *gin.Context) {
		body, err := readBody(c)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				abortTooLarge(c)
				return
			}
			log.Warn("failed to read request body", zap.Error(err), zap.String("ip", c.ClientIP()))
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		ip := c.ClientIP()
		payload := security.SerializeRequest(c.Request.URL.Query(), body)

		if verdict := detector.Inspect(ip, payload); verdict.Attack {
			metrics.RecordAttack(verdict.Rule.Category)
			metrics.RecordBlock(monitoring.BlockAttack)
			log.Warn("attack detected",
				zap.String("ip", ip),
				zap.String("rule", verdict.Rule.Name),
				zap.String("category", verdict.Rule.Category),
				zap.Int("strikes", verdict.Strikes),
				zap.Time("blocked_until", verdict.BlockedUntil),
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", c.GetString(RequestIDKey)),
			)

			resp := gin.H{"error": taunts.Pick()}
			if verdict.Strikes > 1 {
				resp["blockedUntil"] = secondsUntil(detector.Now(), verdict.BlockedUntil)
			}
			c.AbortWithStatusJSON(http.StatusForbidden, resp)
			return
		}

		if until, blocked := detector.Blocked(ip); blocked {
			metrics.RecordBlock(monitoring.BlockBanned)
			log.Info("blocked ip rejected",
				zap.String("ip", ip),
				zap.Time("blocked_until", until),
			)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":        taunts.Pick(),
				"blockedUntil": secondsUntil(detector.Now(), until),
			})
			return
		}

		c.Next()
	}
}

// readBody 读取并还原请求体，供后续处理器再次读取
func readBody(c *gin.Context) ([]byte, error) {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil, nil
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, err
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

// secondsUntil 距截止时间的剩余秒数（向上取整）
func secondsUntil(now, until time.Time) int64 {
	remaining := until.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int64(math.Ceil(remaining.Seconds()))
}
