package referral

import (
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"tempmail/gateway/internal/clock"
	"tempmail/gateway/internal/domain"
)

var (
	ErrReferralNotFound = errors.New("referral code not found")
	ErrSelfReferral     = errors.New("cannot claim own referral code")
	ErrAlreadyClaimed   = errors.New("referral code already claimed by this session")
)

const (
	// DefaultReward 每次成功领取为推荐人增加的额度
	DefaultReward = 50
	// AnonymousSession 未提供会话标识时使用的默认值
	AnonymousSession = "anonymous"

	codeLength      = 8
	maxCodeAttempts = 16
)

// CodeGenerator 生成推荐码
type CodeGenerator func() string

// ClaimResult 领取结果
type ClaimResult struct {
	Success     bool `json:"success"`
	BonusEmails int  `json:"bonusEmails"`
}

// Ledger 进程内推荐账本
type Ledger struct {
	mu      sync.Mutex
	records map[string]*domain.Referral // sessionID -> record
	owners  map[string]string           // code -> sessionID
	claims  map[string]map[string]int64 // code -> claimant -> 领取时间（毫秒）
	reward  int
	gen     CodeGenerator
	clock   clock.Clock
}

// Option 账本选项
type Option func(*Ledger)

// WithReward 设置单次奖励额度
func WithReward(reward int) Option {
	return func(l *Ledger) {
		if reward > 0 {
			l.reward = reward
		}
	}
}

// WithCodeGenerator 替换推荐码生成器
func WithCodeGenerator(gen CodeGenerator) Option {
	return func(l *Ledger) {
		if gen != nil {
			l.gen = gen
		}
	}
}

// WithClock 替换时钟
func WithClock(clk clock.Clock) Option {
	return func(l *Ledger) {
		l.clock = clock.OrReal(clk)
	}
}

// NewLedger 创建推荐账本
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		records: make(map[string]*domain.Referral),
		owners:  make(map[string]string),
		claims:  make(map[string]map[string]int64),
		reward:  DefaultReward,
		gen:     NewCode,
		clock:   clock.Real{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewCode 从随机 UUID 中截取 8 位大写十六进制推荐码
func NewCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:codeLength])
}

// SessionID 规范化会话标识，空白时返回 AnonymousSession
func SessionID(raw string) string {
	sid := strings.TrimSpace(raw)
	if sid == "" {
		return AnonymousSession
	}
	return sid
}

// CreateOrGet 返回会话的推荐记录，不存在时创建
func (l *Ledger) CreateOrGet(sessionID string) domain.Referral {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.getOrCreateLocked(sessionID)
}

// Stats 返回会话的推荐统计，不存在时创建
func (l *Ledger) Stats(sessionID string) domain.ReferralStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.getOrCreateLocked(sessionID).Stats()
}

// Claim 领取推荐码
//
// 同一领取者对同一推荐码只能领取一次，会话不能领取自己的推荐码。
func (l *Ledger) Claim(code, claimantSessionID string) (ClaimResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ownerID, ok := l.owners[code]
	if !ok {
		return ClaimResult{}, ErrReferralNotFound
	}
	if ownerID == claimantSessionID {
		return ClaimResult{}, ErrSelfReferral
	}

	claimants := l.claims[code]
	if _, claimed := claimants[claimantSessionID]; claimed {
		return ClaimResult{}, ErrAlreadyClaimed
	}
	if claimants == nil {
		claimants = make(map[string]int64)
		l.claims[code] = claimants
	}
	claimants[claimantSessionID] = l.clock.Now().UnixMilli()

	owner := l.records[ownerID]
	owner.Referrals++
	owner.BonusEmails += l.reward

	return ClaimResult{Success: true, BonusEmails: l.reward}, nil
}

// Lookup 按推荐码查找所属记录
func (l *Ledger) Lookup(code string) (domain.Referral, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	ownerID, ok := l.owners[code]
	if !ok {
		return domain.Referral{}, false
	}
	return *l.records[ownerID], true
}

// Reward 单次奖励额度
func (l *Ledger) Reward() int {
	return l.reward
}

func (l *Ledger) getOrCreateLocked(sessionID string) *domain.Referral {
	if rec, ok := l.records[sessionID]; ok {
		return rec
	}

	rec := &domain.Referral{
		ID:           sessionID,
		ReferralCode: l.uniqueCodeLocked(),
		CreatedAt:    l.clock.Now().UnixMilli(),
	}
	l.records[sessionID] = rec
	l.owners[rec.ReferralCode] = sessionID
	return rec
}

// uniqueCodeLocked 冲突时重试，多次失败后追加随机后缀
func (l *Ledger) uniqueCodeLocked() string {
	var code string
	for i := 0; i < maxCodeAttempts; i++ {
		code = l.gen()
		if _, taken := l.owners[code]; !taken && code != "" {
			return code
		}
	}
	for {
		code += NewCode()
		if _, taken := l.owners[code]; !taken {
			return code
		}
	}
}
