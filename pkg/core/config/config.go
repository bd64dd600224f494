// Package config 提供配置加载和管理功能
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config 全局配置结构
type Config struct {
	// LLM LLM 提供商配置
	LLM LLMConfig `koanf:"llm"`
	// Context 上下文流水线配置
	Context ContextConfig `koanf:"context"`
	// Cache 响应缓存配置
	Cache CacheConfig `koanf:"cache"`
	// Cost 费用账本配置
	Cost CostConfig `koanf:"cost"`
	// Observability 可观测性配置
	Observability ObservabilityConfig `koanf:"observability"`
}

// ContextConfig 上下文流水线配置
type ContextConfig struct {
	// MaxChunks 上下文片段总数上限
	MaxChunks int `koanf:"max_chunks"`
	// MaxAge 片段最大存活时间
	MaxAge time.Duration `koanf:"max_age"`
	// HardCap 上下文预算硬上限（Token）
	HardCap int `koanf:"hard_cap"`
	// ReserveRatio 为模型响应预留的比例 (0.0-1.0)
	ReserveRatio float64 `koanf:"reserve_ratio"`
	// RecencyEnabled 排序时是否叠加新近度衰减
	RecencyEnabled bool `koanf:"recency_enabled"`
	// TokenCounter 计数器选择："estimated"（默认，确定性）或 "tiktoken"
	TokenCounter string `koanf:"token_counter"`
}

// CacheConfig 响应缓存配置
type CacheConfig struct {
	// MaxEntries 缓存容量
	MaxEntries int `koanf:"max_entries"`
	// TTL 条目存活时间
	TTL time.Duration `koanf:"ttl"`
}

// CostConfig 费用账本配置
type CostConfig struct {
	// DailyLimit 每日费用上限（美元）
	DailyLimit float64 `koanf:"daily_limit"`
	// StorePath 持久化存储路径（SQLite），为空时使用内存存储
	StorePath string `koanf:"store_path"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	// Enabled 是否启用
	Enabled bool `koanf:"enabled"`
	// ServiceName 服务名称
	ServiceName string `koanf:"service_name"`
	// TracerEndpoint 追踪端点
	TracerEndpoint string `koanf:"tracer_endpoint"`
	// MetricsEndpoint 指标端点
	MetricsEndpoint string `koanf:"metrics_endpoint"`
	// SampleRate 采样率 [0, 1]
	SampleRate float64 `koanf:"sample_rate"`
}

// Loader 配置加载器
type Loader struct {
	k *koanf.Koanf
}

// NewLoader 创建配置加载器
func NewLoader() *Loader {
	return &Loader{
		k: koanf.New("."),
	}
}

// LoadEnv 从环境变量加载配置
func (l *Loader) LoadEnv(prefix string) error {
	return l.k.Load(env.Provider(prefix, ".", func(s string) string {
		// 转换环境变量名: CODEPILOT_LLM_API_KEY -> llm.api_key
		s = strings.TrimPrefix(s, prefix)
		s = strings.ToLower(s)
		s = strings.ReplaceAll(s, "_", ".")
		return s
	}), nil)
}

// Unmarshal 解析配置到结构体
func (l *Loader) Unmarshal(cfg *Config) error {
	return l.k.Unmarshal("", cfg)
}

// Get 获取配置值
func (l *Loader) Get(key string) interface{} {
	return l.k.Get(key)
}

// GetString 获取字符串配置值
func (l *Loader) GetString(key string) string {
	return l.k.String(key)
}

// GetDuration 获取时间间隔配置值
func (l *Loader) GetDuration(key string) time.Duration {
	return l.k.Duration(key)
}

// Load 加载完整配置（环境变量，CODEPILOT_ 前缀）
func Load() (*Config, error) {
	loader := NewLoader()

	if err := loader.LoadEnv("CODEPILOT_"); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := loader.Unmarshal(cfg); err != nil {
		return nil, err
	}

	applyDefaults(cfg)

	return cfg, nil
}

// applyDefaults 应用默认配置值
func applyDefaults(cfg *Config) {
	// LLM 默认值
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 30 * time.Second
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 3
	}
	if cfg.LLM.RetryDelay == 0 {
		cfg.LLM.RetryDelay = time.Second
	}

	// Context 默认值
	if cfg.Context.MaxChunks == 0 {
		cfg.Context.MaxChunks = 50
	}
	if cfg.Context.MaxAge == 0 {
		cfg.Context.MaxAge = 2 * time.Hour
	}
	if cfg.Context.HardCap == 0 {
		cfg.Context.HardCap = 8000
	}
	if cfg.Context.ReserveRatio == 0 {
		cfg.Context.ReserveRatio = 0.2
	}
	if cfg.Context.TokenCounter == "" {
		cfg.Context.TokenCounter = "estimated"
	}

	// Cache 默认值
	if cfg.Cache.MaxEntries == 0 {
		cfg.Cache.MaxEntries = 100
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 30 * time.Minute
	}

	// Cost 默认值
	if cfg.Cost.DailyLimit == 0 {
		cfg.Cost.DailyLimit = 5.0
	}

	// Observability 默认值
	if cfg.Observability.SampleRate == 0 {
		cfg.Observability.SampleRate = 1.0
	}
}
