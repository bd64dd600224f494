package llm

import "time"

// Option LLM 客户端配置选项函数
type Option func(*Options)

// Options LLM 客户端配置选项
type Options struct {
	// APIKey API 密钥
	APIKey string
	// BaseURL 自定义 API 端点
	BaseURL string
	// Timeout 请求超时
	Timeout time.Duration
	// Temperature 默认温度
	Temperature float64
	// MaxTokens 默认最大输出 Token
	MaxTokens int
	// CatalogTTL 模型目录缓存时间
	CatalogTTL time.Duration
}

// DefaultOptions 返回默认选项
func DefaultOptions() *Options {
	return &Options{
		Timeout:     30 * time.Second,
		Temperature: 0.7,
		MaxTokens:   4096,
		CatalogTTL:  5 * time.Minute,
	}
}

// WithAPIKey 设置 API 密钥
func WithAPIKey(key string) Option {
	return func(o *Options) {
		o.APIKey = key
	}
}

// WithBaseURL 设置自定义端点
func WithBaseURL(url string) Option {
	return func(o *Options) {
		o.BaseURL = url
	}
}

// WithTimeout 设置超时时间
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithTemperature 设置默认温度
func WithTemperature(t float64) Option {
	return func(o *Options) {
		o.Temperature = t
	}
}

// WithMaxTokens 设置默认最大输出 Token
func WithMaxTokens(n int) Option {
	return func(o *Options) {
		o.MaxTokens = n
	}
}

// WithCatalogTTL 设置模型目录缓存时间
func WithCatalogTTL(d time.Duration) Option {
	return func(o *Options) {
		o.CatalogTTL = d
	}
}

// resolveOptions 将请求选项与客户端默认值合并
func resolveOptions(opts *ChatOptions, defaults *Options) ChatOptions {
	resolved := ChatOptions{
		MaxTokens:   defaults.MaxTokens,
		Temperature: defaults.Temperature,
	}
	if opts != nil {
		if opts.MaxTokens > 0 {
			resolved.MaxTokens = opts.MaxTokens
		}
		if opts.Temperature > 0 {
			resolved.Temperature = opts.Temperature
		}
	}
	return resolved
}
