package security

import "math/rand/v2"

// DefaultTaunts 拒绝请求时返回的提示语，不透露命中的规则
var DefaultTaunts = []string{
	"Nice try. Maybe take a break?",
	"Our hamsters are unimpressed.",
	"Request denied. Go read a book.",
	"That's not how any of this works.",
	"Slow down, cowboy.",
	"Access denied. The mailbox gremlins said no.",
	"Error 418: I'm a teapot, not a target.",
	"Hmm, no. Try something more productive.",
}

// Taunts 从固定池中均匀随机挑选提示语
type Taunts struct {
	pool []string
	pick func(n int) int
}

// NewTaunts 创建提示语选择器
//
// pick 返回 [0, n) 内的下标，nil 时使用 math/rand/v2。
func NewTaunts(pool []string, pick func(n int) int) *Taunts {
	if len(pool) == 0 {
		pool = DefaultTaunts
	}
	if pick == nil {
		pick = rand.IntN
	}
	return &Taunts{pool: pool, pick: pick}
}

// Pick 随机返回一条提示语
func (t *Taunts) Pick() string {
	return t.pool[t.pick(len(t.pool))]
}

// Pool 返回提示语池副本
func (t *Taunts) Pool() []string {
	out := make([]string, len(t.pool))
	copy(out, t.pool)
	return out
}
