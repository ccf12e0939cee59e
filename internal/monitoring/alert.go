package monitoring

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/zap"

	"tempmail/gateway/internal/clock"
)

// AlertLevel 告警级别
type AlertLevel string

const (
	AlertLevelInfo     AlertLevel = "info"
	AlertLevelWarning  AlertLevel = "warning"
	AlertLevelCritical AlertLevel = "critical"
)

// Alert 告警
type Alert struct {
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Message    string     `json:"message"`
	Level      AlertLevel `json:"level"`
	Component  string     `json:"component"`
	Timestamp  time.Time  `json:"timestamp"`
	Resolved   bool       `json:"resolved"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// AlertRule 告警规则
//
// Condition 为真时触发告警；条件恢复后自动标记为已解决。
type AlertRule struct {
	ID        string
	Name      string
	Condition func() bool
	Level     AlertLevel
	Component string
	Message   string
	Cooldown  time.Duration
}

// AlertReceiver 告警接收器接口
type AlertReceiver interface {
	SendAlert(alert *Alert) error
}

// AlertManager 告警管理器
type AlertManager struct {
	mu            sync.Mutex
	alerts        map[string]*Alert // 按规则 ID 保存最近一次告警
	rules         []AlertRule
	lastTriggered map[string]time.Time
	receivers     []AlertReceiver
	clock         clock.Clock
	logger        *zap.Logger
}

// NewAlertManager 创建告警管理器
func NewAlertManager(clk clock.Clock, logger *zap.Logger) *AlertManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertManager{
		alerts:        make(map[string]*Alert),
		lastTriggered: make(map[string]time.Time),
		clock:         clock.OrReal(clk),
		logger:        logger,
	}
}

// AddReceiver 添加告警接收器
func (am *AlertManager) AddReceiver(receiver AlertReceiver) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.receivers = append(am.receivers, receiver)
}

// AddRule 添加告警规则
func (am *AlertManager) AddRule(rule AlertRule) {
	am.mu.Lock()
	defer am.mu.Unlock()
	am.rules = append(am.rules, rule)
}

// ActiveAlerts 获取未解决的告警
func (am *AlertManager) ActiveAlerts() []Alert {
	am.mu.Lock()
	defer am.mu.Unlock()

	alerts := make([]Alert, 0, len(am.alerts))
	for _, alert := range am.alerts {
		if !alert.Resolved {
			alerts = append(alerts, *alert)
		}
	}
	return alerts
}

// CheckRules 检查全部告警规则
func (am *AlertManager) CheckRules() {
	am.mu.Lock()
	rules := make([]AlertRule, len(am.rules))
	copy(rules, am.rules)
	am.mu.Unlock()

	// 条件函数可能较慢，不持锁执行
	for _, rule := range rules {
		if rule.Condition() {
			am.trigger(rule)
		} else {
			am.resolve(rule.ID)
		}
	}
}

func (am *AlertManager) trigger(rule AlertRule) {
	am.mu.Lock()
	defer am.mu.Unlock()

	now := am.clock.Now()
	if existing, ok := am.alerts[rule.ID]; ok && !existing.Resolved {
		return
	}
	if last, ok := am.lastTriggered[rule.ID]; ok && now.Sub(last) < rule.Cooldown {
		return
	}

	alert := &Alert{
		ID:        fmt.Sprintf("%s_%d", rule.ID, now.Unix()),
		Title:     rule.Name,
		Message:   rule.Message,
		Level:     rule.Level,
		Component: rule.Component,
		Timestamp: now,
	}
	am.alerts[rule.ID] = alert
	am.lastTriggered[rule.ID] = now

	for _, receiver := range am.receivers {
		if err := receiver.SendAlert(alert); err != nil {
			am.logger.Error("failed to send alert",
				zap.String("alert_id", alert.ID),
				zap.Error(err),
			)
		}
	}
}

func (am *AlertManager) resolve(ruleID string) {
	am.mu.Lock()
	defer am.mu.Unlock()

	alert, ok := am.alerts[ruleID]
	if !ok || alert.Resolved {
		return
	}
	now := am.clock.Now()
	alert.Resolved = true
	alert.ResolvedAt = &now

	am.logger.Info("alert resolved", zap.String("alert_id", alert.ID))
}

// StartMonitoring 按间隔检查规则，直到 ctx 取消
func (am *AlertManager) StartMonitoring(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			am.CheckRules()
		}
	}
}

// ========== 内置告警规则 ==========

// HighMemoryUsageRule 高内存使用告警规则
func HighMemoryUsageRule(thresholdMB float64) AlertRule {
	return AlertRule{
		ID:   "high_memory_usage",
		Name: "High Memory Usage",
		Condition: func() bool {
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			return float64(m.Alloc)/1024/1024 > thresholdMB
		},
		Level:     AlertLevelWarning,
		Component: "memory",
		Message:   fmt.Sprintf("Memory usage exceeds %.0f MB", thresholdMB),
		Cooldown:  5 * time.Minute,
	}
}

// BlockedIPsRule 封禁 IP 数量告警规则，用于发现集中攻击
func BlockedIPsRule(count func() int, threshold int) AlertRule {
	return AlertRule{
		ID:   "blocked_ip_surge",
		Name: "Blocked IP Surge",
		Condition: func() bool {
			return count() >= threshold
		},
		Level:     AlertLevelWarning,
		Component: "attack_guard",
		Message:   fmt.Sprintf("%d or more client IPs are currently blocked", threshold),
		Cooldown:  10 * time.Minute,
	}
}

// CacheConnectionRule 缓存后端连接告警规则
func CacheConnectionRule(ping func(ctx context.Context) error) AlertRule {
	return AlertRule{
		ID:   "cache_connection",
		Name: "Cache Connection",
		Condition: func() bool {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return ping(ctx) != nil
		},
		Level:     AlertLevelCritical,
		Component: "cache",
		Message:   "Cache backend connection failed",
		Cooldown:  time.Minute,
	}
}

// ========== 告警接收器实现 ==========

// LogAlertReceiver 日志告警接收器
type LogAlertReceiver struct {
	logger *zap.Logger
}

// NewLogAlertReceiver 创建日志告警接收器
func NewLogAlertReceiver(logger *zap.Logger) *LogAlertReceiver {
	return &LogAlertReceiver{logger: logger}
}

// SendAlert 发送告警到日志
func (lar *LogAlertReceiver) SendAlert(alert *Alert) error {
	fields := []zap.Field{
		zap.String("alert_id", alert.ID),
		zap.String("title", alert.Title),
		zap.String("message", alert.Message),
		zap.String("component", alert.Component),
		zap.Time("timestamp", alert.Timestamp),
	}

	switch alert.Level {
	case AlertLevelCritical:
		lar.logger.Error("CRITICAL ALERT", fields...)
	case AlertLevelWarning:
		lar.logger.Warn("WARNING ALERT", fields...)
	default:
		lar.logger.Info("INFO ALERT", fields...)
	}
	return nil
}
