package ratelimit

import (
	"sync"
	"time"

	"tempmail/gateway/internal/clock"
)

// 默认限流参数：每个 IP 每分钟 100 次
const (
	DefaultMax    = 100
	DefaultWindow = time.Minute
)

// State 单个 IP 的窗口计数
type State struct {
	Count     int
	ResetTime time.Time
}

// Decision 一次限流判定结果
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetTime time.Time
}

// FixedWindow 固定窗口限流器（按 IP 计数）
type FixedWindow struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	clients map[string]*State
	clock   clock.Clock
}

// NewFixedWindow 创建固定窗口限流器
//
// 参数:
//   - max: 每个窗口允许的请求数，<=0 时使用 DefaultMax
//   - window: 窗口长度，<=0 时使用 DefaultWindow
//   - clk: 时钟，nil 时使用系统时间
func NewFixedWindow(max int, window time.Duration, clk clock.Clock) *FixedWindow {
	if max <= 0 {
		max = DefaultMax
	}
	if window <= 0 {
		window = DefaultWindow
	}
	return &FixedWindow{
		max:     max,
		window:  window,
		clients: make(map[string]*State),
		clock:   clock.OrReal(clk),
	}
}

// Allow 检查并计入一次请求
//
// 当前时间晚于 ResetTime 时开启新窗口；被拒绝的请求不计数。
func (l *FixedWindow) Allow(ip string) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	st, ok := l.clients[ip]
	if !ok || now.After(st.ResetTime) {
		st = &State{Count: 1, ResetTime: now.Add(l.window)}
		l.clients[ip] = st
		return l.decision(true, st)
	}

	if st.Count < l.max {
		st.Count++
		return l.decision(true, st)
	}
	return l.decision(false, st)
}

func (l *FixedWindow) decision(allowed bool, st *State) Decision {
	remaining := l.max - st.Count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   allowed,
		Limit:     l.max,
		Remaining: remaining,
		ResetTime: st.ResetTime,
	}
}

// State 返回 IP 的窗口计数副本
func (l *FixedWindow) State(ip string) (State, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, ok := l.clients[ip]
	if !ok {
		return State{}, false
	}
	return *st, true
}

// Limit 每个窗口允许的请求数
func (l *FixedWindow) Limit() int {
	return l.max
}

// Window 窗口长度
func (l *FixedWindow) Window() time.Duration {
	return l.window
}

// Cleanup 移除已过期的窗口，返回移除数量
func (l *FixedWindow) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	removed := 0
	for ip, st := range l.clients {
		if now.After(st.ResetTime) {
			delete(l.clients, ip)
			removed++
		}
	}
	return removed
}

// Now 返回限流器使用的当前时间
func (l *FixedWindow) Now() time.Time {
	return l.clock.Now()
}
