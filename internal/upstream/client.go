package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"tempmail/gateway/internal/domain"
)

// DefaultBaseURL 临时邮箱服务商地址
const DefaultBaseURL = "https://api.barid.site"

// 上游 JSON 响应的最大读取字节数
const maxEnvelopeBytes = 10 * 1024 * 1024

// 调用结果标签
const (
	OutcomeOK          = "ok"
	OutcomeNotFound    = "not_found"
	OutcomeClientError = "client_error"
	OutcomeUnavailable = "unavailable"
)

// Config 上游客户端配置
type Config struct {
	BaseURL   string        // 服务商地址，默认 https://api.barid.site
	Timeout   time.Duration // 单次调用（含附件流复制）的超时
	RPS       float64       // 出站令牌桶速率，<=0 表示不限制
	Burst     int           // 令牌桶容量
	UserAgent string
}

// Observer 记录上游调用耗时与结果
type Observer interface {
	ObserveUpstream(op, outcome string, duration time.Duration)
}

// AttachmentStream 附件字节流，调用方负责关闭 Body
type AttachmentStream struct {
	Body               io.ReadCloser
	ContentType        string
	ContentDisposition string
	ContentLength      int64 // 未知时为 -1
}

// Client 封装对服务商的 HTTP 调用
//
// 每个操作只发起一次请求，失败不重试。
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	schema     *domain.SchemaValidator
	logger     *zap.Logger
	observer   Observer
}

// envelope 服务商统一响应格式
type envelope struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result"`
	Error   string          `json:"error,omitempty"`
}

// NewClient 创建上游客户端
func NewClient(cfg Config, schema *domain.SchemaValidator, logger *zap.Logger, observer Observer) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "tempmail-gateway"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:  limiter,
		schema:   schema,
		logger:   logger,
		observer: observer,
	}
}

// ListDomains 获取可用域名列表
func (c *Client) ListDomains(ctx context.Context) ([]string, error) {
	const op = "list_domains"
	var domains []string
	err := c.observe(op, func() error {
		env, err := c.fetchEnvelope(ctx, op, http.MethodGet, "/domains")
		if err != nil {
			return err
		}
		if !env.Success {
			domains = []string{}
			return nil
		}
		domains, err = c.schema.ParseDomains(env.Result)
		if err != nil {
			return &Error{Op: op, Kind: ErrUnavailable, Err: err}
		}
		return nil
	})
	return domains, err
}

// ListInbox 获取地址下的邮件列表
func (c *Client) ListInbox(ctx context.Context, address string) ([]domain.EmailSummary, error) {
	const op = "list_inbox"
	var emails []domain.EmailSummary
	err := c.observe(op, func() error {
		env, err := c.fetchEnvelope(ctx, op, http.MethodGet, "/emails/"+url.PathEscape(address))
		if err != nil {
			return err
		}
		if !env.Success {
			emails = []domain.EmailSummary{}
			return nil
		}
		emails, err = c.schema.ParseEmailSummaries(env.Result)
		if err != nil {
			return &Error{Op: op, Kind: ErrUnavailable, Err: err}
		}
		return nil
	})
	return emails, err
}

// GetEmail 获取单封邮件详情
func (c *Client) GetEmail(ctx context.Context, id string) (domain.Email, error) {
	const op = "get_email"
	var email domain.Email
	err := c.observe(op, func() error {
		env, err := c.fetchEnvelope(ctx, op, http.MethodGet, "/inbox/"+url.PathEscape(id))
		if err != nil {
			return err
		}
		if !env.Success {
			return &Error{Op: op, Kind: ErrNotFound}
		}
		email, err = c.schema.ParseEmail(env.Result)
		if err != nil {
			return &Error{Op: op, Kind: ErrUnavailable, Err: err}
		}
		return nil
	})
	return email, err
}

// DeleteEmail 删除单封邮件
func (c *Client) DeleteEmail(ctx context.Context, id string) error {
	const op = "delete_email"
	return c.observe(op, func() error {
		env, err := c.fetchEnvelope(ctx, op, http.MethodDelete, "/inbox/"+url.PathEscape(id))
		if err != nil {
			return err
		}
		if !env.Success {
			return &Error{Op: op, Kind: ErrNotFound}
		}
		return nil
	})
}

// DeleteInbox 删除地址下全部邮件，返回删除数量
func (c *Client) DeleteInbox(ctx context.Context, address string) (int, error) {
	const op = "delete_inbox"
	var deleted int
	err := c.observe(op, func() error {
		env, err := c.fetchEnvelope(ctx, op, http.MethodDelete, "/emails/"+url.PathEscape(address))
		if err != nil {
			return err
		}
		if env.Success {
			deleted = parseDeletedCount(env.Result)
		}
		return nil
	})
	return deleted, err
}

// GetAttachment 打开附件字节流
//
// 响应体不做缓冲，直接交给调用方；流的读取同样受客户端超时约束。
func (c *Client) GetAttachment(ctx context.Context, emailID, attachmentID string) (*AttachmentStream, error) {
	const op = "get_attachment"
	var stream *AttachmentStream
	err := c.observe(op, func() error {
		path := "/attachments/" + url.PathEscape(emailID) + "/" + url.PathEscape(attachmentID)
		resp, err := c.do(ctx, op, http.MethodGet, path)
		if err != nil {
			return err
		}
		stream = &AttachmentStream{
			Body:               resp.Body,
			ContentType:        resp.Header.Get("Content-Type"),
			ContentDisposition: resp.Header.Get("Content-Disposition"),
			ContentLength:      resp.ContentLength,
		}
		return nil
	})
	return stream, err
}

// fetchEnvelope 发起请求并解析服务商响应信封
func (c *Client) fetchEnvelope(ctx context.Context, op, method, path string) (*envelope, error) {
	resp, err := c.do(ctx, op, method, path)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxEnvelopeBytes)).Decode(&env); err != nil {
		return nil, &Error{Op: op, Kind: ErrUnavailable, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return &env, nil
}

// do 执行一次 HTTP 调用，非 2xx 响应转换为分类错误
func (c *Client) do(ctx context.Context, op, method, path string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &Error{Op: op, Kind: ErrUnavailable, Err: fmt.Errorf("throttle: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, &Error{Op: op, Kind: ErrUnavailable, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Op: op, Kind: ErrUnavailable, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		return nil, classifyStatus(op, resp.StatusCode)
	}
	return resp, nil
}

// observe 记录调用耗时与结果
func (c *Client) observe(op string, fn func() error) error {
	start := time.Now()
	err := fn()
	duration := time.Since(start)

	outcome := outcomeOf(err)
	if c.observer != nil {
		c.observer.ObserveUpstream(op, outcome, duration)
	}

	switch outcome {
	case OutcomeUnavailable:
		c.logger.Warn("upstream call failed",
			zap.String("op", op),
			zap.Int("status", StatusOf(err)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
	default:
		c.logger.Debug("upstream call",
			zap.String("op", op),
			zap.String("outcome", outcome),
			zap.Duration("duration", duration),
		)
	}
	return err
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrNotFound):
		return OutcomeNotFound
	case errors.Is(err, ErrClient):
		return OutcomeClientError
	default:
		return OutcomeUnavailable
	}
}

// parseDeletedCount 兼容 {"deleted_count": n} 与纯数字两种结果
func parseDeletedCount(raw json.RawMessage) int {
	var obj struct {
		DeletedCount int `json:"deleted_count"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.DeletedCount
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	return 0
}
