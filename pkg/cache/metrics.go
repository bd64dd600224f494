package cache

import (
	"sync"
	"time"
)

// latencyWindow 滚动平均响应时间的采样窗口大小。
const latencyWindow = 20

// Metrics 请求级统计
//
// 累计命中率、成功率与最近 20 次调用的滚动平均耗时。
type Metrics struct {
	mu sync.Mutex

	hits   int64
	misses int64

	successes int64
	failures  int64

	latencies [latencyWindow]time.Duration
	latIdx    int
	latCount  int
}

// MetricsSnapshot 统计快照
type MetricsSnapshot struct {
	// Hits 缓存命中次数
	Hits int64 `json:"hits"`
	// Misses 缓存未命中次数
	Misses int64 `json:"misses"`
	// HitRate 累计命中率（0-1）
	HitRate float64 `json:"hit_rate"`
	// SuccessRate 请求成功率（0-1）
	SuccessRate float64 `json:"success_rate"`
	// AvgLatency 最近 20 次调用的平均耗时
	AvgLatency time.Duration `json:"avg_latency"`
}

// NewMetrics 创建统计器
func NewMetrics() *Metrics {
	return &Metrics{}
}

// RecordHit 记录一次缓存命中
func (m *Metrics) RecordHit() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hits++
}

// RecordMiss 记录一次缓存未命中
func (m *Metrics) RecordMiss() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.misses++
}

// RecordRequest 记录一次请求结果及耗时
func (m *Metrics) RecordRequest(latency time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if success {
		m.successes++
	} else {
		m.failures++
	}

	m.latencies[m.latIdx] = latency
	m.latIdx = (m.latIdx + 1) % latencyWindow
	if m.latCount < latencyWindow {
		m.latCount++
	}
}

// Snapshot 返回当前统计快照
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		Hits:   m.hits,
		Misses: m.misses,
	}

	if total := m.hits + m.misses; total > 0 {
		snap.HitRate = float64(m.hits) / float64(total)
	}
	if total := m.successes + m.failures; total > 0 {
		snap.SuccessRate = float64(m.successes) / float64(total)
	}
	if m.latCount > 0 {
		var sum time.Duration
		for i := 0; i < m.latCount; i++ {
			sum += m.latencies[i]
		}
		snap.AvgLatency = sum / time.Duration(m.latCount)
	}

	return snap
}
