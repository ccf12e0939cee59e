package security

import (
	"sync"
	"time"

	"tempmail/gateway/internal/clock"
)

// DefaultLadder 按违规次数递增的封禁时长，最后一级封顶
var DefaultLadder = []time.Duration{
	60 * time.Second,
	300 * time.Second,
	1800 * time.Second,
}

// SuspiciousActivity 单个 IP 的违规记录，仅存在于进程内存
type SuspiciousActivity struct {
	Strikes      int
	BlockedUntil time.Time
}

// Verdict 一次检测的结论
type Verdict struct {
	Attack       bool
	Rule         Rule
	Strikes      int
	BlockedUntil time.Time
}

// Detector 攻击检测器
//
// 命中规则时累加该 IP 的违规次数，并按阶梯设置封禁截止时间。
type Detector struct {
	mu       sync.Mutex
	filter   *ContentFilter
	ladder   []time.Duration
	activity map[string]*SuspiciousActivity
	clock    clock.Clock
}

// NewDetector 创建攻击检测器
//
// 参数:
//   - filter: 规则过滤器，nil 时使用默认规则
//   - ladder: 封禁时长阶梯，为空时使用 DefaultLadder
//   - clk: 时钟，nil 时使用系统时间
func NewDetector(filter *ContentFilter, ladder []time.Duration, clk clock.Clock) *Detector {
	if filter == nil {
		filter = NewContentFilter(nil)
	}
	if len(ladder) == 0 {
		ladder = DefaultLadder
	}
	return &Detector{
		filter:   filter,
		ladder:   ladder,
		activity: make(map[string]*SuspiciousActivity),
		clock:    clock.OrReal(clk),
	}
}

// Inspect 检测请求内容；未命中时不修改任何状态
func (d *Detector) Inspect(ip, payload string) Verdict {
	rule, matched := d.filter.Match(payload)
	if !matched {
		return Verdict{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	act, ok := d.activity[ip]
	if !ok {
		act = &SuspiciousActivity{}
		d.activity[ip] = act
	}
	act.Strikes++
	act.BlockedUntil = d.clock.Now().Add(BlockDuration(d.ladder, act.Strikes))

	return Verdict{
		Attack:       true,
		Rule:         rule,
		Strikes:      act.Strikes,
		BlockedUntil: act.BlockedUntil,
	}
}

// Blocked 返回 IP 当前是否处于封禁期及截止时间
func (d *Detector) Blocked(ip string) (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	act, ok := d.activity[ip]
	if !ok || !d.clock.Now().Before(act.BlockedUntil) {
		return time.Time{}, false
	}
	return act.BlockedUntil, true
}

// Activity 返回 IP 的违规记录副本
func (d *Detector) Activity(ip string) (SuspiciousActivity, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	act, ok := d.activity[ip]
	if !ok {
		return SuspiciousActivity{}, false
	}
	return *act, true
}

// BlockedCount 当前处于封禁期的 IP 数量
func (d *Detector) BlockedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	n := 0
	for _, act := range d.activity {
		if now.Before(act.BlockedUntil) {
			n++
		}
	}
	return n
}

// Cleanup 删除已解封且超过最高一级封禁时长未再违规的记录，返回删除数量
//
// 被删除的 IP 再次命中时从第一级重新计数。
func (d *Detector) Cleanup() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.clock.Now()
	decay := d.ladder[len(d.ladder)-1]
	removed := 0
	for ip, act := range d.activity {
		if !now.Before(act.BlockedUntil.Add(decay)) {
			delete(d.activity, ip)
			removed++
		}
	}
	return removed
}

// Now 返回检测器使用的当前时间
func (d *Detector) Now() time.Time {
	return d.clock.Now()
}

// BlockDuration 第 strikes 次违规对应的封禁时长
func BlockDuration(ladder []time.Duration, strikes int) time.Duration {
	if len(ladder) == 0 || strikes <= 0 {
		return 0
	}
	idx := strikes - 1
	if idx > len(ladder)-1 {
		idx = len(ladder) - 1
	}
	return ladder[idx]
}
