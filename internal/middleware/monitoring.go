package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tempmail/gateway/internal/monitoring"
)

// unmatchedEndpoint 未匹配路由的指标标签，避免任意路径撑爆标签基数
const unmatchedEndpoint = "unmatched"

// HTTPMetrics HTTP 指标中间件
func HTTPMetrics(metrics *monitoring.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = unmatchedEndpoint
		}

		size := int64(c.Writer.Size())
		if size < 0 {
			size = 0
		}

		metrics.RecordHTTPRequest(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
			size,
		)
	}
}
