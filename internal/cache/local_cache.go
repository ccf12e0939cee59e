package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"tempmail/gateway/internal/clock"
)

// ErrCacheFull 条目数达到上限时写入新键返回
var ErrCacheFull = errors.New("cache: max entries reached")

// Cache 响应缓存接口
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Entry 缓存条目
type Entry struct {
	Data      []byte
	Timestamp time.Time
	TTL       time.Duration
}

// LocalCache 进程内缓存（L1 缓存）
//
// 特点：
// - 读取时检查过期，过期条目立即删除
// - 无后台清理协程，无 LRU
// - 可选的条目数上限，仅限制新键
type LocalCache struct {
	mu         sync.Mutex
	entries    map[string]Entry
	maxEntries int
	clock      clock.Clock
}

// NewLocalCache 创建本地缓存
//
// 参数:
//   - maxEntries: 最大缓存条目数，<=0 表示不限制
//   - clk: 时钟，nil 时使用系统时间
func NewLocalCache(maxEntries int, clk clock.Clock) *LocalCache {
	return &LocalCache{
		entries:    make(map[string]Entry),
		maxEntries: maxEntries,
		clock:      clock.OrReal(clk),
	}
}

// Get 获取缓存值
func (c *LocalCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}

	// 检查是否过期
	if c.clock.Now().Sub(entry.Timestamp) >= entry.TTL {
		delete(c.entries, key)
		return nil, false, nil
	}

	return entry.Data, true, nil
}

// Set 设置缓存值
func (c *LocalCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && c.maxEntries > 0 && len(c.entries) >= c.maxEntries {
		return ErrCacheFull
	}

	c.entries[key] = Entry{
		Data:      value,
		Timestamp: c.clock.Now(),
		TTL:       ttl,
	}
	return nil
}

// Delete 删除缓存值
func (c *LocalCache) Delete(key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// Len 当前条目数（包括尚未被读取清理的过期条目）
func (c *LocalCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
