package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 缓存后端
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// ServerConfig 定义 HTTP 服务器的监听配置参数
type ServerConfig struct {
	Host      string // 监听地址，默认 "0.0.0.0"
	Port      int    // 监听端口，默认 8080
	BodyLimit int64  // 请求体上限（字节），默认 1 MiB

	// TrustedProxies 可信反向代理的 IP 或 CIDR，默认为空。
	// 仅当请求来自这些地址时才采信 X-Forwarded-For，否则以连接地址作为客户端 IP。
	TrustedProxies []string
}

// Addr 返回 host:port 形式的监听地址
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// UpstreamConfig 定义临时邮箱服务商的调用参数
type UpstreamConfig struct {
	BaseURL string        // 服务商地址，默认 https://api.barid.site
	Timeout time.Duration // 单次调用超时，默认 15 秒
	RPS     float64       // 出站请求速率上限，<=0 表示不限制
	Burst   int           // 出站突发容量
}

// CacheConfig 定义响应缓存配置
type CacheConfig struct {
	Backend    string        // "memory" 或 "redis"
	DomainsTTL time.Duration // 域名列表缓存时间，默认 1 小时
	MaxEntries int           // 内存缓存最大条目数
}

// RateLimitConfig 定义按 IP 的固定窗口限流
type RateLimitConfig struct {
	Max    int           // 每个窗口允许的请求数，默认 100
	Window time.Duration // 窗口长度，默认 1 分钟
}

// GuardConfig 定义攻击检测的封禁阶梯
type GuardConfig struct {
	Ladder []time.Duration // 第 N 次违规的封禁时长，超出部分使用最后一级
}

// ReferralConfig 定义推荐奖励
type ReferralConfig struct {
	Reward int // 每次成功领取的奖励额度，默认 50
}

// CORSConfig 定义跨域资源共享 (CORS) 配置
type CORSConfig struct {
	AllowedOrigins []string // 允许的来源列表，"*" 表示允许所有来源
}

// LogConfig 定义日志系统配置
type LogConfig struct {
	Level       string // 日志级别: debug, info, warn, error
	Development bool   // 开发模式: 控制台编码与详细堆栈
	File        string // 日志文件路径，留空只输出到标准输出
}

// RedisConfig 定义 Redis 缓存服务配置
type RedisConfig struct {
	Address  string // Redis 服务地址，格式 "host:port"，默认 "localhost:6379"
	Password string // Redis 认证密码，留空表示无密码
	DB       int    // Redis 数据库编号，默认 0
}

// Config 是网关配置的根结构体
type Config struct {
	Server    ServerConfig
	Upstream  UpstreamConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Guard     GuardConfig
	Referral  ReferralConfig
	CORS      CORSConfig
	Log       LogConfig
	Redis     RedisConfig
}

// Load 从环境变量和 .env 文件加载网关配置
//
// 配置加载优先级（从高到低）：
//  1. 系统环境变量
//  2. .env 文件（如果存在）
//  3. 默认值
//
// 环境变量前缀: TEMPMAIL_
// 例如: TEMPMAIL_UPSTREAM_BASE_URL, TEMPMAIL_RATELIMIT_MAX
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetEnvPrefix("tempmail")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	timeout, err := parseDuration(v, "upstream.timeout")
	if err != nil {
		return nil, err
	}
	domainsTTL, err := parseDuration(v, "cache.domains_ttl")
	if err != nil {
		return nil, err
	}
	window, err := parseDuration(v, "ratelimit.window")
	if err != nil {
		return nil, err
	}
	ladder, err := parseLadder(v.GetString("guard.ladder"))
	if err != nil {
		return nil, err
	}

	corsOrigins := parseList(v.GetString("cors.allowed_origins"))
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	cfg := &Config{
		Server: ServerConfig{
			Host:      v.GetString("server.host"),
			Port:      v.GetInt("server.port"),
			BodyLimit: v.GetInt64("server.body_limit"),

			TrustedProxies: parseList(v.GetString("server.trusted_proxies")),
		},
		Upstream: UpstreamConfig{
			BaseURL: strings.TrimRight(v.GetString("upstream.base_url"), "/"),
			Timeout: timeout,
			RPS:     v.GetFloat64("upstream.rps"),
			Burst:   v.GetInt("upstream.burst"),
		},
		Cache: CacheConfig{
			Backend:    strings.ToLower(strings.TrimSpace(v.GetString("cache.backend"))),
			DomainsTTL: domainsTTL,
			MaxEntries: v.GetInt("cache.max_entries"),
		},
		RateLimit: RateLimitConfig{
			Max:    v.GetInt("ratelimit.max"),
			Window: window,
		},
		Guard: GuardConfig{
			Ladder: ladder,
		},
		Referral: ReferralConfig{
			Reward: v.GetInt("referral.reward"),
		},
		CORS: CORSConfig{
			AllowedOrigins: corsOrigins,
		},
		Log: LogConfig{
			Level:       v.GetString("log.level"),
			Development: v.GetBool("log.development"),
			File:        v.GetString("log.file"),
		},
		Redis: RedisConfig{
			Address:  v.GetString("redis.address"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.body_limit", 1<<20)
	v.SetDefault("server.trusted_proxies", "")
	v.SetDefault("upstream.base_url", "https://api.barid.site")
	v.SetDefault("upstream.timeout", "15s")
	v.SetDefault("upstream.rps", 20)
	v.SetDefault("upstream.burst", 40)
	v.SetDefault("cache.backend", CacheBackendMemory)
	v.SetDefault("cache.domains_ttl", "1h")
	v.SetDefault("cache.max_entries", 1024)
	v.SetDefault("ratelimit.max", 100)
	v.SetDefault("ratelimit.window", "1m")
	v.SetDefault("guard.ladder", "60s,300s,1800s")
	v.SetDefault("referral.reward", 50)
	v.SetDefault("cors.allowed_origins", "*")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("log.file", "")
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
}

// Validate 校验配置取值
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.Server.BodyLimit <= 0 {
		errs = append(errs, errors.New("server.body_limit must be positive"))
	}
	for _, proxy := range c.Server.TrustedProxies {
		if net.ParseIP(proxy) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(proxy); err != nil {
			errs = append(errs, fmt.Errorf("server.trusted_proxies: invalid IP or CIDR %q", proxy))
		}
	}

	u, err := url.Parse(c.Upstream.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("upstream.base_url must be an absolute http(s) URL: %q", c.Upstream.BaseURL))
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, errors.New("upstream.timeout must be positive"))
	}

	switch c.Cache.Backend {
	case CacheBackendMemory, CacheBackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown cache.backend: %q", c.Cache.Backend))
	}
	if c.Cache.DomainsTTL <= 0 {
		errs = append(errs, errors.New("cache.domains_ttl must be positive"))
	}
	if c.Cache.MaxEntries <= 0 {
		errs = append(errs, errors.New("cache.max_entries must be positive"))
	}

	if c.RateLimit.Max <= 0 {
		errs = append(errs, errors.New("ratelimit.max must be positive"))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("ratelimit.window must be positive"))
	}

	if len(c.Guard.Ladder) == 0 {
		errs = append(errs, errors.New("guard.ladder must not be empty"))
	}
	for i, d := range c.Guard.Ladder {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("guard.ladder[%d] must be positive", i))
		}
		if i > 0 && d < c.Guard.Ladder[i-1] {
			errs = append(errs, errors.New("guard.ladder must be non-decreasing"))
			break
		}
	}

	if c.Referral.Reward <= 0 {
		errs = append(errs, errors.New("referral.reward must be positive"))
	}

	return errors.Join(errs...)
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// parseLadder 解析逗号分隔的时长列表，如 "60s,300s,1800s"
func parseLadder(value string) ([]time.Duration, error) {
	items := parseList(value)
	ladder := make([]time.Duration, 0, len(items))
	for _, item := range items {
		d, err := time.ParseDuration(item)
		if err != nil {
			return nil, fmt.Errorf("invalid guard.ladder entry %q: %w", item, err)
		}
		ladder = append(ladder, d)
	}
	return ladder, nil
}

// parseList 将逗号分隔的字符串解析为字符串切片，已去除空白字符
func parseList(value string) []string {
	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}

// loadEnvFile 尝试加载 .env 文件
//
// 加载顺序：
//  1. 当前目录的 .env
//  2. 父目录的 .env
//
// 文件不存在时静默跳过；已存在的环境变量不会被覆盖。
func loadEnvFile() {
	if err := godotenv.Load(".env"); err == nil {
		return
	}

	parentEnv := filepath.Join("..", ".env")
	if _, err := os.Stat(parentEnv); err == nil {
		_ = godotenv.Load(parentEnv)
	}
}
