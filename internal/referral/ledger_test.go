package referral

import (
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tempmail/gateway/internal/clock"
)

func sequence(codes ...string) CodeGenerator {
	var (
		mu sync.Mutex
		i  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		code := codes[i%len(codes)]
		i++
		return code
	}
}

func TestNewCode(t *testing.T) {
	pattern := regexp.MustCompile(`^[0-9A-F]{8}$`)
	for i := 0; i < 50; i++ {
		assert.Regexp(t, pattern, NewCode())
	}
}

func TestSessionID(t *testing.T) {
	assert.Equal(t, AnonymousSession, SessionID(""))
	assert.Equal(t, AnonymousSession, SessionID("   "))
	assert.Equal(t, "abc", SessionID(" abc "))
}

func TestLedger_CreateOrGetIdempotent(t *testing.T) {
	start := time.UnixMilli(1_700_000_000_123)
	l := NewLedger(WithClock(clock.NewFake(start)))

	first := l.CreateOrGet("s1")
	second := l.CreateOrGet("s1")

	assert.Equal(t, first.ReferralCode, second.ReferralCode)
	assert.Equal(t, "s1", first.ID)
	assert.Equal(t, start.UnixMilli(), first.CreatedAt)
	assert.Zero(t, first.Referrals)
	assert.Zero(t, first.BonusEmails)

	stats := l.Stats("s1")
	assert.Equal(t, first.ReferralCode, stats.ReferralCode)

	// Stats 对未知会话同样创建记录
	created := l.Stats("s2")
	assert.Equal(t, created.ReferralCode, l.CreateOrGet("s2").ReferralCode)
	assert.NotEqual(t, first.ReferralCode, created.ReferralCode)
}

func TestLedger_Claim(t *testing.T) {
	l := NewLedger(WithCodeGenerator(sequence("AAAA0001", "BBBB0002")))

	owner := l.CreateOrGet("alice")
	require.Equal(t, "AAAA0001", owner.ReferralCode)

	res, err := l.Claim("AAAA0001", "bob")
	require.NoError(t, err)
	assert.Equal(t, ClaimResult{Success: true, BonusEmails: 50}, res)

	stats := l.Stats("alice")
	assert.Equal(t, 1, stats.TotalReferrals)
	assert.Equal(t, 50, stats.BonusEmails)

	// 不同领取者可以再次领取
	_, err = l.Claim("AAAA0001", "carol")
	require.NoError(t, err)
	assert.Equal(t, 100, l.Stats("alice").BonusEmails)
}

func TestLedger_ClaimErrors(t *testing.T) {
	l := NewLedger(WithCodeGenerator(sequence("AAAA0001", "BBBB0002")))
	l.CreateOrGet("alice")

	t.Run("未知推荐码", func(t *testing.T) {
		_, err := l.Claim("BOGUS-CODE", "bob")
		assert.ErrorIs(t, err, ErrReferralNotFound)
	})

	t.Run("领取自己的推荐码", func(t *testing.T) {
		_, err := l.Claim("AAAA0001", "alice")
		assert.ErrorIs(t, err, ErrSelfReferral)

		stats := l.Stats("alice")
		assert.Zero(t, stats.TotalReferrals)
		assert.Zero(t, stats.BonusEmails)
	})

	t.Run("重复领取", func(t *testing.T) {
		_, err := l.Claim("AAAA0001", "bob")
		require.NoError(t, err)

		_, err = l.Claim("AAAA0001", "bob")
		assert.ErrorIs(t, err, ErrAlreadyClaimed)
		assert.Equal(t, 1, l.Stats("alice").TotalReferrals)
	})

	t.Run("推荐码区分大小写", func(t *testing.T) {
		_, err := l.Claim("aaaa0001", "dave")
		assert.ErrorIs(t, err, ErrReferralNotFound)
	})
}

func TestLedger_CodeCollisionRetry(t *testing.T) {
	l := NewLedger(WithCodeGenerator(sequence("SAME0000", "SAME0000", "NEXT0001")))

	a := l.CreateOrGet("a")
	b := l.CreateOrGet("b")

	assert.Equal(t, "SAME0000", a.ReferralCode)
	assert.Equal(t, "NEXT0001", b.ReferralCode)

	rec, ok := l.Lookup("NEXT0001")
	require.True(t, ok)
	assert.Equal(t, "b", rec.ID)
}

func TestLedger_CodeGeneratorExhausted(t *testing.T) {
	l := NewLedger(WithCodeGenerator(func() string { return "FIXED000" }))

	a := l.CreateOrGet("a")
	b := l.CreateOrGet("b")

	assert.Equal(t, "FIXED000", a.ReferralCode)
	assert.NotEqual(t, a.ReferralCode, b.ReferralCode)
	assert.Contains(t, b.ReferralCode, "FIXED000")
}

func TestLedger_CustomReward(t *testing.T) {
	l := NewLedger(WithReward(10))
	code := l.CreateOrGet("owner").ReferralCode

	res, err := l.Claim(code, "friend")
	require.NoError(t, err)
	assert.Equal(t, 10, res.BonusEmails)
	assert.Equal(t, 10, l.Reward())
}

func TestLedger_ConcurrentClaims(t *testing.T) {
	l := NewLedger()
	code := l.CreateOrGet("owner").ReferralCode

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// 每个领取者尝试两次，只有一次成功
			claimant := fmt.Sprintf("claimant-%d", i%50)
			_, _ = l.Claim(code, claimant)
		}(i)
	}
	wg.Wait()

	stats := l.Stats("owner")
	assert.Equal(t, 50, stats.TotalReferrals)
	assert.Equal(t, 50*DefaultReward, stats.BonusEmails)
}
