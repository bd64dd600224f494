package config

import "errors"

// 配置验证相关错误
var (
	// ErrInvalidTimeout 超时时间无效
	ErrInvalidTimeout = errors.New("invalid timeout value")
	// ErrInvalidMaxRetries 重试次数无效
	ErrInvalidMaxRetries = errors.New("invalid max retries value")
	// ErrInvalidTemperature 温度值无效
	ErrInvalidTemperature = errors.New("temperature must be between 0 and 2")
	// ErrInvalidDailyLimit 每日费用上限无效
	ErrInvalidDailyLimit = errors.New("daily cost limit must be positive")
)
