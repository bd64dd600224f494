// Package cost 提供每日费用账本与限额控制。
package cost

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/easyops/codepilot-go/pkg/core/errors"
	"github.com/easyops/codepilot-go/pkg/cost/store"
)

// ledgerKey 账本在键值存储中的键。
const ledgerKey = "cost_tracker"

// State 账本状态
type State string

const (
	// StateNormal 正常
	StateNormal State = "normal"
	// StateWarning 用量达到限额 80%
	StateWarning State = "warning"
	// StateNearLimit 用量达到限额 90%
	StateNearLimit State = "near_limit"
	// StateBlocked 用量达到限额，后续请求被拒绝
	StateBlocked State = "blocked"
)

// Tracker 账本数据
type Tracker struct {
	// DailyUsage 当日累计费用（美元）
	DailyUsage float64 `json:"daily_usage"`
	// DailyLimit 每日限额（美元）
	DailyLimit float64 `json:"daily_limit"`
	// TotalUsage 历史累计费用，不随日切重置
	TotalUsage float64 `json:"total_usage"`
	// LastReset 上次日切时间
	LastReset time.Time `json:"last_reset"`
}

// State 返回当前用量对应的状态
func (t Tracker) State() State {
	if t.DailyLimit <= 0 {
		return StateNormal
	}

	ratio := t.DailyUsage / t.DailyLimit
	switch {
	case ratio >= 1.0:
		return StateBlocked
	case ratio >= 0.9:
		return StateNearLimit
	case ratio >= 0.8:
		return StateWarning
	default:
		return StateNormal
	}
}

// Ledger 费用账本
//
// 每次成功的模型调用后记账；日切在每次记账或授权检查的开头
// 惰性执行，不使用后台定时器。每次变更后写入键值存储，
// 写入失败只记日志，内存状态仍是权威数据。并发安全。
type Ledger struct {
	mu      sync.Mutex
	tracker Tracker
	kv      store.KV

	warned bool
	now    func() time.Time
}

// LedgerOption 账本选项
type LedgerOption func(*Ledger)

// WithDailyLimit 设置每日限额
func WithDailyLimit(limit float64) LedgerOption {
	return func(l *Ledger) {
		l.tracker.DailyLimit = limit
	}
}

// WithClock 注入时钟，便于测试
func WithClock(now func() time.Time) LedgerOption {
	return func(l *Ledger) {
		l.now = now
	}
}

// NewLedger 创建费用账本
//
// kv 不为空时先尝试恢复已持久化的账本，恢复失败按新账本处理。
func NewLedger(kv store.KV, opts ...LedgerOption) *Ledger {
	l := &Ledger{
		tracker: Tracker{
			DailyLimit: 5.0,
		},
		kv:  kv,
		now: time.Now,
	}

	for _, opt := range opts {
		opt(l)
	}

	l.tracker.LastReset = l.now()
	l.restore()
	return l
}

// Authorize 检查是否允许发起新的模型调用
//
// 先执行惰性日切，用量达到限额时返回 COST_LIMIT_EXCEEDED
// 分类错误，调用方不得再触达提供商。
func (l *Ledger) Authorize() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rolloverLocked()

	if l.tracker.State() == StateBlocked {
		return errors.NewClassified(errors.ErrCostLimitExceeded,
			fmt.Sprintf("daily usage %.2f reached limit %.2f", l.tracker.DailyUsage, l.tracker.DailyLimit))
	}

	return nil
}

// Record 记录一次调用费用
//
// 开头执行惰性日切；进入预警区间时输出一次性提示日志。
func (l *Ledger) Record(ctx context.Context, amount float64) {
	if amount < 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.rolloverLocked()

	l.tracker.DailyUsage += amount
	l.tracker.TotalUsage += amount

	switch l.tracker.State() {
	case StateWarning:
		if !l.warned {
			l.warned = true
			slog.Warn("daily cost approaching limit",
				"usage", l.tracker.DailyUsage,
				"limit", l.tracker.DailyLimit,
			)
		}
	case StateNearLimit:
		slog.Warn("daily cost near limit",
			"usage", l.tracker.DailyUsage,
			"limit", l.tracker.DailyLimit,
		)
	case StateBlocked:
		slog.Error("daily cost limit reached, further requests blocked",
			"usage", l.tracker.DailyUsage,
			"limit", l.tracker.DailyLimit,
		)
	}

	l.persistLocked(ctx)
}

// Snapshot 返回账本的只读副本
func (l *Ledger) Snapshot() Tracker {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rolloverLocked()
	return l.tracker
}

// ResetDailyCost 清零当日用量并更新日切时间。
// TotalUsage 不受影响。
func (l *Ledger) ResetDailyCost(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.resetLocked()
	l.persistLocked(ctx)
}

// rolloverLocked 在日历日期变化时执行日切。调用方需持有锁。
func (l *Ledger) rolloverLocked() {
	now := l.now()
	y1, m1, d1 := l.tracker.LastReset.Date()
	y2, m2, d2 := now.Date()
	if y1 == y2 && m1 == m2 && d1 == d2 {
		return
	}

	slog.Info("daily cost rollover",
		"previous_usage", l.tracker.DailyUsage,
		"total_usage", l.tracker.TotalUsage,
	)
	l.resetLocked()
}

// resetLocked 清零当日用量。调用方需持有锁。
func (l *Ledger) resetLocked() {
	l.tracker.DailyUsage = 0
	l.tracker.LastReset = l.now()
	l.warned = false
}

// persistLocked 持久化账本。失败只记日志，内存状态仍然权威。
// 调用方需持有锁。
func (l *Ledger) persistLocked(ctx context.Context) {
	if l.kv == nil {
		return
	}

	data, err := json.Marshal(l.tracker)
	if err != nil {
		slog.Error("failed to marshal cost tracker", "error", err)
		return
	}

	if err := l.kv.Set(ctx, ledgerKey, data); err != nil {
		slog.Error("failed to persist cost tracker", "error", err)
	}
}

// restore 从键值存储恢复账本，失败按新账本处理。
func (l *Ledger) restore() {
	if l.kv == nil {
		return
	}

	data, err := l.kv.Get(context.Background(), ledgerKey)
	if err != nil {
		if err != store.ErrNotFound {
			slog.Warn("failed to restore cost tracker", "error", err)
		}
		return
	}

	var saved Tracker
	if err := json.Unmarshal(data, &saved); err != nil {
		slog.Warn("failed to decode cost tracker", "error", err)
		return
	}

	limit := l.tracker.DailyLimit
	l.tracker = saved
	if limit > 0 {
		l.tracker.DailyLimit = limit
	}
}
