package clock

import (
	"sync"
	"time"
)

// Clock 提供当前时间，便于测试中控制 TTL 与限流窗口
type Clock interface {
	Now() time.Time
}

// Real 使用系统时间
type Real struct{}

// Now 返回系统当前时间
func (Real) Now() time.Time {
	return time.Now()
}

// Fake 可手动推进的测试时钟
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake 创建从指定时间开始的测试时钟
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

// Now 返回当前模拟时间
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance 推进模拟时间
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Set 直接设置模拟时间
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// OrReal 返回 c，若为 nil 则返回系统时钟
func OrReal(c Clock) Clock {
	if c == nil {
		return Real{}
	}
	return c
}
