package config

import "time"

// Provider LLM 提供商类型
type Provider string

const (
	// ProviderOpenAI OpenAI 提供商
	ProviderOpenAI Provider = "openai"
	// ProviderRelay 聚合中继提供商（OpenAI 兼容目录服务）
	ProviderRelay Provider = "relay"
)

// IsValid 检查提供商是否有效
func (p Provider) IsValid() bool {
	switch p {
	case ProviderOpenAI, ProviderRelay:
		return true
	default:
		return false
	}
}

// LLMConfig LLM 配置
type LLMConfig struct {
	// DefaultModel 未指定模型时使用的模型 ID
	DefaultModel string `koanf:"default_model"`
	// APIKey 主提供商 API 密钥
	APIKey string `koanf:"api_key"`
	// BaseURL 主提供商自定义端点
	BaseURL string `koanf:"base_url"`
	// RelayAPIKey 中继提供商 API 密钥
	RelayAPIKey string `koanf:"relay_api_key"`
	// RelayBaseURL 中继提供商端点
	RelayBaseURL string `koanf:"relay_base_url"`
	// Timeout 请求超时时间
	// 默认: 30s, 最大: 5m
	Timeout time.Duration `koanf:"timeout"`
	// MaxRetries 最大重试次数
	// 默认: 3, 最大: 10
	MaxRetries int `koanf:"max_retries"`
	// RetryDelay 重试间隔基数
	// 默认: 1s
	RetryDelay time.Duration `koanf:"retry_delay"`
	// Temperature 默认温度
	Temperature float64 `koanf:"temperature"`
	// MaxTokens 默认最大输出 Token
	MaxTokens int `koanf:"max_tokens"`
}

// Validate 验证 LLM 配置
func (c *LLMConfig) Validate() error {
	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}
	if c.Timeout > 5*time.Minute {
		c.Timeout = 5 * time.Minute
	}
	if c.MaxRetries < 0 {
		return ErrInvalidMaxRetries
	}
	if c.MaxRetries > 10 {
		c.MaxRetries = 10
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return ErrInvalidTemperature
	}
	return nil
}

// WithDefaults 返回带默认值的配置
func (c LLMConfig) WithDefaults() LLMConfig {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = time.Second
	}
	if c.Temperature == 0 {
		c.Temperature = 0.7
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	return c
}
