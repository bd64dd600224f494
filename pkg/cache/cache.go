package cache

import (
	"sync"
	"time"

	"github.com/easyops/codepilot-go/pkg/core/llm"
)

// Entry 一条缓存记录
type Entry struct {
	// Response 缓存的响应
	Response *llm.Response
	// Timestamp 写入时间
	Timestamp time.Time
	// RequestHash 请求哈希（即缓存键）
	RequestHash string
	// AccessCount 命中次数
	AccessCount int
	// LastAccessed 最近访问时间
	LastAccessed time.Time
}

// Cache 响应缓存
//
// 进程内存级，不做持久化。容量上限内按最久未访问淘汰，
// 过期条目在读取时惰性删除。并发安全。
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*Entry
	maxEntries int
	ttl        time.Duration

	now func() time.Time
}

// Option 缓存选项
type Option func(*Cache)

// WithMaxEntries 设置容量上限
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		c.maxEntries = n
	}
}

// WithTTL 设置条目存活时间
func WithTTL(d time.Duration) Option {
	return func(c *Cache) {
		c.ttl = d
	}
}

// New 创建响应缓存
func New(opts ...Option) *Cache {
	c := &Cache{
		entries:    make(map[string]*Entry),
		maxEntries: 100,
		ttl:        30 * time.Minute,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get 按键查询缓存
//
// 过期条目视为不存在并顺手删除。命中时递增访问计数、
// 刷新访问时间，返回标记 Cached=true 的响应副本。
func (c *Cache) Get(key string) (*llm.Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}

	if c.now().Sub(entry.Timestamp) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}

	entry.AccessCount++
	entry.LastAccessed = c.now()

	resp := *entry.Response
	resp.Cached = true
	return &resp, true
}

// Put 写入缓存
//
// 达到容量上限时淘汰最久未访问的一条，再插入新条目。
func (c *Cache) Put(key string, resp *llm.Response) {
	if resp == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}

	stored := *resp
	now := c.now()
	c.entries[key] = &Entry{
		Response:     &stored,
		Timestamp:    now,
		RequestHash:  key,
		AccessCount:  1,
		LastAccessed: now,
	}
}

// Len 返回当前条目数
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear 清空缓存
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*Entry)
}

// evictOldest 删除 LastAccessed 最小的条目。调用方需持有锁。
func (c *Cache) evictOldest() {
	var oldestKey string
	var oldestTime time.Time

	for key, entry := range c.entries {
		if oldestKey == "" || entry.LastAccessed.Before(oldestTime) {
			oldestKey = key
			oldestTime = entry.LastAccessed
		}
	}

	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
