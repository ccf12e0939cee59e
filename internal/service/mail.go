package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"tempmail/gateway/internal/cache"
	"tempmail/gateway/internal/domain"
	"tempmail/gateway/internal/monitoring"
	"tempmail/gateway/internal/upstream"
)

// DomainsCacheKey 域名列表的缓存键
const DomainsCacheKey = "domains"

// DefaultDomainsTTL 域名列表默认缓存时间
const DefaultDomainsTTL = time.Hour

// ErrInvalidAttachmentID 附件 ID 非法，同时满足 errors.Is(err, domain.ErrInvalidID)
var ErrInvalidAttachmentID = fmt.Errorf("attachment: %w", domain.ErrInvalidID)

// CacheStatus 域名列表的缓存命中情况，写入 X-Cache 响应头
type CacheStatus string

const (
	CacheHit  CacheStatus = "HIT"
	CacheMiss CacheStatus = "MISS"
)

// Provider 临时邮箱服务商
type Provider interface {
	ListDomains(ctx context.Context) ([]string, error)
	ListInbox(ctx context.Context, address string) ([]domain.EmailSummary, error)
	GetEmail(ctx context.Context, id string) (domain.Email, error)
	DeleteEmail(ctx context.Context, id string) error
	DeleteInbox(ctx context.Context, address string) (int, error)
	GetAttachment(ctx context.Context, emailID, attachmentID string) (*upstream.AttachmentStream, error)
}

// CacheRecorder 记录缓存命中情况
type CacheRecorder interface {
	RecordCacheLookup(key, result string)
}

// MailService 网关的邮件业务：校验参数后转发给服务商，域名列表走缓存。
type MailService struct {
	provider   Provider
	cache      cache.Cache
	domainsTTL time.Duration
	validator  *domain.EmailValidator
	logger     *zap.Logger
	recorder   CacheRecorder
}

// NewMailService 创建邮件业务服务
//
// 参数:
//   - provider: 服务商客户端
//   - c: 响应缓存，nil 时不缓存
//   - domainsTTL: 域名列表缓存时间，<=0 时使用 DefaultDomainsTTL
//   - logger: 日志记录器
//   - recorder: 缓存指标，可为 nil
func NewMailService(provider Provider, c cache.Cache, domainsTTL time.Duration, logger *zap.Logger, recorder CacheRecorder) *MailService {
	if domainsTTL <= 0 {
		domainsTTL = DefaultDomainsTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailService{
		provider:   provider,
		cache:      c,
		domainsTTL: domainsTTL,
		validator:  domain.NewEmailValidator(),
		logger:     logger,
		recorder:   recorder,
	}
}

// Domains 返回可用域名列表
//
// 缓存读写失败只记录日志并按未命中处理；空列表不写入缓存。
func (s *MailService) Domains(ctx context.Context) ([]string, CacheStatus, error) {
	if cached, ok := s.cachedDomains(ctx); ok {
		s.record(monitoring.CacheHit)
		return cached, CacheHit, nil
	}
	s.record(monitoring.CacheMiss)

	domains, err := s.provider.ListDomains(ctx)
	if err != nil {
		return nil, CacheMiss, err
	}

	if s.cache != nil && len(domains) > 0 {
		data, err := json.Marshal(domains)
		if err == nil {
			err = s.cache.Set(ctx, DomainsCacheKey, data, s.domainsTTL)
		}
		if err != nil {
			s.record(monitoring.CacheError)
			s.logger.Warn("cache write failed", zap.String("key", DomainsCacheKey), zap.Error(err))
		}
	}
	return domains, CacheMiss, nil
}

func (s *MailService) cachedDomains(ctx context.Context) ([]string, bool) {
	if s.cache == nil {
		return nil, false
	}

	data, ok, err := s.cache.Get(ctx, DomainsCacheKey)
	if err != nil {
		s.record(monitoring.CacheError)
		s.logger.Warn("cache read failed", zap.String("key", DomainsCacheKey), zap.Error(err))
		return nil, false
	}
	if !ok {
		return nil, false
	}

	var domains []string
	if err := json.Unmarshal(data, &domains); err != nil {
		s.logger.Warn("cached value corrupt", zap.String("key", DomainsCacheKey), zap.Error(err))
		return nil, false
	}
	return domains, true
}

// Inbox 列出地址下的邮件
func (s *MailService) Inbox(ctx context.Context, address string) ([]domain.EmailSummary, error) {
	address, err := s.address(address)
	if err != nil {
		return nil, err
	}
	return s.provider.ListInbox(ctx, address)
}

// Email 获取邮件详情
func (s *MailService) Email(ctx context.Context, id string) (domain.Email, error) {
	if err := s.validator.ValidateID(id); err != nil {
		return domain.Email{}, err
	}
	return s.provider.GetEmail(ctx, id)
}

// DeleteEmail 删除单封邮件
func (s *MailService) DeleteEmail(ctx context.Context, id string) error {
	if err := s.validator.ValidateID(id); err != nil {
		return err
	}
	return s.provider.DeleteEmail(ctx, id)
}

// DeleteInbox 清空地址下的邮件，返回删除数量
//
// 服务商对不存在的收件箱返回 404 时视为删除了 0 封。
func (s *MailService) DeleteInbox(ctx context.Context, address string) (int, error) {
	address, err := s.address(address)
	if err != nil {
		return 0, err
	}
	deleted, err := s.provider.DeleteInbox(ctx, address)
	if errors.Is(err, upstream.ErrNotFound) {
		return 0, nil
	}
	return deleted, err
}

// Attachment 打开附件字节流，调用方负责关闭
func (s *MailService) Attachment(ctx context.Context, emailID, attachmentID string) (*upstream.AttachmentStream, error) {
	if err := s.validator.ValidateID(emailID); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateID(attachmentID); err != nil {
		return nil, ErrInvalidAttachmentID
	}
	return s.provider.GetAttachment(ctx, emailID, attachmentID)
}

func (s *MailService) address(raw string) (string, error) {
	address := strings.TrimSpace(raw)
	if err := s.validator.ValidateEmail(address); err != nil {
		return "", err
	}
	return address, nil
}

func (s *MailService) record(result string) {
	if s.recorder != nil {
		s.recorder.RecordCacheLookup(DomainsCacheKey, result)
	}
}
