package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"tempmail/gateway/internal/clock"
)

type recordingReceiver struct {
	alerts []Alert
}

func (r *recordingReceiver) SendAlert(alert *Alert) error {
	r.alerts = append(r.alerts, *alert)
	return nil
}

func TestAlertManager_TriggerAndResolve(t *testing.T) {
	clk := clock.NewFake(time.Unix(1_700_000_000, 0))
	am := NewAlertManager(clk, nil)
	recv := &recordingReceiver{}
	am.AddReceiver(recv)

	firing := true
	am.AddRule(AlertRule{
		ID:        "test",
		Name:      "Test",
		Condition: func() bool { return firing },
		Level:     AlertLevelWarning,
		Cooldown:  time.Minute,
	})

	am.CheckRules()
	require.Len(t, recv.alerts, 1)
	assert.Equal(t, "test_1700000000", recv.alerts[0].ID)
	assert.Len(t, am.ActiveAlerts(), 1)

	// 未解决前不重复发送
	am.CheckRules()
	assert.Len(t, recv.alerts, 1)

	firing = false
	am.CheckRules()
	assert.Empty(t, am.ActiveAlerts())

	// 冷却期内再次满足条件不发送
	firing = true
	clk.Advance(30 * time.Second)
	am.CheckRules()
	assert.Len(t, recv.alerts, 1)

	clk.Advance(31 * time.Second)
	am.CheckRules()
	assert.Len(t, recv.alerts, 2)
}

func TestBuiltinRules(t *testing.T) {
	blocked := 0
	rule := BlockedIPsRule(func() int { return blocked }, 3)
	assert.False(t, rule.Condition())
	blocked = 3
	assert.True(t, rule.Condition())

	healthy := CacheConnectionRule(func(context.Context) error { return nil })
	assert.False(t, healthy.Condition())
	broken := CacheConnectionRule(func(context.Context) error { return errors.New("dial tcp: refused") })
	assert.True(t, broken.Condition())
	assert.Equal(t, AlertLevelCritical, broken.Level)

	assert.False(t, HighMemoryUsageRule(1<<20).Condition())
}

func TestLogAlertReceiver(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	recv := NewLogAlertReceiver(zap.New(core))

	require.NoError(t, recv.SendAlert(&Alert{ID: "a", Level: AlertLevelCritical}))
	require.NoError(t, recv.SendAlert(&Alert{ID: "b", Level: AlertLevelWarning}))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "CRITICAL ALERT", entries[0].Message)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}
