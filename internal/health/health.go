package health

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/heptiolabs/healthcheck"
	"go.uber.org/zap"
)

const (
	// DefaultGoroutineThreshold 存活检查允许的最大 goroutine 数
	DefaultGoroutineThreshold = 10000

	checkTimeout = 3 * time.Second
)

// Pinger 可探活的依赖（如 Redis 缓存）
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options 健康检查配置
type Options struct {
	UpstreamURL        string // 服务商地址，用于 DNS 就绪检查
	GoroutineThreshold int
	Cache              Pinger // 可选，启用 Redis 缓存时传入
}

// Checker 健康检查器
type Checker struct {
	health healthcheck.Handler
	logger *zap.Logger
}

// NewChecker 创建健康检查器
func NewChecker(opts Options, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.GoroutineThreshold <= 0 {
		opts.GoroutineThreshold = DefaultGoroutineThreshold
	}

	hc := &Checker{
		health: healthcheck.NewHandler(),
		logger: logger,
	}

	hc.health.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(opts.GoroutineThreshold))

	if host := upstreamHost(opts.UpstreamURL); host != "" {
		hc.health.AddReadinessCheck("upstream-dns", healthcheck.DNSResolveCheck(host, checkTimeout))
	}

	if opts.Cache != nil {
		hc.health.AddReadinessCheck("redis", healthcheck.Timeout(PingCheck(opts.Cache), checkTimeout))
	}

	return hc
}

// Handler 返回健康检查处理器（/live 与 /ready）
func (hc *Checker) Handler() http.Handler {
	return hc.health
}

// LiveEndpoint 存活检查
func (hc *Checker) LiveEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.LiveEndpoint(w, r)
}

// ReadyEndpoint 就绪检查，包含存活检查项
func (hc *Checker) ReadyEndpoint(w http.ResponseWriter, r *http.Request) {
	hc.health.ReadyEndpoint(w, r)
}

// PingCheck 将 Pinger 包装为健康检查项
func PingCheck(p Pinger) healthcheck.Check {
	return func() error {
		ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
		defer cancel()

		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("ping failed: %w", err)
		}
		return nil
	}
}

func upstreamHost(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
