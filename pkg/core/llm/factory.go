package llm

import (
	"os"
	"time"

	"github.com/easyops/codepilot-go/pkg/core/config"
	"github.com/easyops/codepilot-go/pkg/core/errors"
)

// SecretStore 密钥查询接口
//
// 按提供商名称返回 API 密钥，配置文件缺失时的补充来源。
type SecretStore interface {
	// GetAPIKey 返回密钥，第二个返回值表示是否存在
	GetAPIKey(provider string) (string, bool)
}

// EnvSecretStore 基于环境变量的密钥存储
//
// openai 读 OPENAI_API_KEY，relay 读 RELAY_API_KEY。
type EnvSecretStore struct{}

// GetAPIKey 从环境变量读取密钥
func (EnvSecretStore) GetAPIKey(provider string) (string, bool) {
	var key string
	switch provider {
	case string(config.ProviderOpenAI):
		key = os.Getenv("OPENAI_API_KEY")
	case string(config.ProviderRelay):
		key = os.Getenv("RELAY_API_KEY")
	}
	return key, key != ""
}

var _ SecretStore = EnvSecretStore{}

// ProviderMiddleware 提供商包装函数，用于注入追踪等横切能力
type ProviderMiddleware func(Provider) Provider

// NewRouterFromConfig 按配置构建多提供商路由器
//
// 主提供商为 OpenAI，配置了中继端点时追加中继提供商作为备选。
// 配置缺少密钥时回落到 secrets 查询。middleware 依次包装每个提供商。
func NewRouterFromConfig(cfg config.LLMConfig, secrets SecretStore, middleware ...ProviderMiddleware) (*Router, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if secrets == nil {
		secrets = EnvSecretStore{}
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey, _ = secrets.GetAPIKey(string(config.ProviderOpenAI))
	}
	if apiKey == "" {
		return nil, errors.WrapError(errors.ErrInvalidAPIKey, "openai api key not configured")
	}

	openaiOpts := []Option{
		WithAPIKey(apiKey),
		WithTimeout(cfg.Timeout),
		WithTemperature(cfg.Temperature),
		WithMaxTokens(cfg.MaxTokens),
	}
	if cfg.BaseURL != "" {
		openaiOpts = append(openaiOpts, WithBaseURL(cfg.BaseURL))
	}

	primary, err := NewOpenAI(openaiOpts...)
	if err != nil {
		return nil, err
	}

	providers := []Provider{primary}

	if cfg.RelayBaseURL != "" {
		relayKey := cfg.RelayAPIKey
		if relayKey == "" {
			relayKey, _ = secrets.GetAPIKey(string(config.ProviderRelay))
		}
		providers = append(providers, NewRelayClient(
			WithRelayBaseURL(cfg.RelayBaseURL),
			WithRelayAPIKey(relayKey),
		))
	}

	for i, p := range providers {
		for _, wrap := range middleware {
			p = wrap(p)
		}
		providers[i] = p
	}

	retry := errors.RetryConfig{
		MaxRetries:        cfg.MaxRetries,
		BaseDelay:         cfg.RetryDelay,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2,
	}

	return NewRouter(providers, WithRetryConfig(retry))
}
