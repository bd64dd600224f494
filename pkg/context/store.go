package context

import (
	"sync"
	"time"
)

// Store 上下文块存储
//
// 并发安全。写入时按 (type, source) 去重，相似内容保留较新者；
// 每个采集周期清理过期块，超出容量时淘汰最旧的块。
type Store struct {
	mu        sync.Mutex
	chunks    []*Chunk
	maxChunks int
	maxAge    time.Duration
	threshold float64
}

// StoreOption 存储选项
type StoreOption func(*Store)

// WithMaxChunks 设置块数量上限
func WithMaxChunks(n int) StoreOption {
	return func(s *Store) {
		s.maxChunks = n
	}
}

// WithMaxAge 设置块最大存活时间
func WithMaxAge(d time.Duration) StoreOption {
	return func(s *Store) {
		s.maxAge = d
	}
}

// WithSimilarityThreshold 设置去重相似度阈值
func WithSimilarityThreshold(t float64) StoreOption {
	return func(s *Store) {
		s.threshold = t
	}
}

// NewStore 创建上下文块存储
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		maxChunks: 50,
		maxAge:    2 * time.Hour,
		threshold: DefaultSimilarityThreshold,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Add 写入上下文块
//
// 与已有块同 (type, source) 且内容相似度超过阈值时视为重复：
// 较新者替换较旧者，较旧的来块被丢弃。超出容量时先淘汰最旧块。
func (s *Store) Add(chunk *Chunk) {
	if chunk == nil || chunk.Content == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.chunks {
		if existing.Type != chunk.Type || existing.Source != chunk.Source {
			continue
		}
		if Similarity(existing.Content, chunk.Content) <= s.threshold {
			continue
		}
		if chunk.Timestamp.After(existing.Timestamp) {
			s.chunks[i] = chunk
		}
		return
	}

	s.chunks = append(s.chunks, chunk)
	s.enforceCap()
}

// Chunks 返回当前所有块的快照
func (s *Store) Chunks() []*Chunk {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Chunk, len(s.chunks))
	copy(out, s.chunks)
	return out
}

// Len 返回当前块数量
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

// Cleanup 清理超过最大存活时间的块，返回清理数量。
// 每个采集周期调用一次。
func (s *Store) Cleanup() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-s.maxAge)
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if c.Timestamp.After(cutoff) {
			kept = append(kept, c)
		}
	}

	removed := len(s.chunks) - len(kept)
	s.chunks = kept
	return removed
}

// Clear 清空存储
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
}

// enforceCap 超出容量时淘汰最旧块，保留其余块的写入顺序。
// 调用方需持有锁。
func (s *Store) enforceCap() {
	for len(s.chunks) > s.maxChunks {
		oldest := 0
		for i, c := range s.chunks {
			if c.Timestamp.Before(s.chunks[oldest].Timestamp) {
				oldest = i
			}
		}
		s.chunks = append(s.chunks[:oldest], s.chunks[oldest+1:]...)
	}
}
