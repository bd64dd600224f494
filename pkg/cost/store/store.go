// Package store 提供费用账本的持久化存储。
package store

import (
	"context"
	"errors"
)

// ErrNotFound 键不存在
var ErrNotFound = errors.New("store: key not found")

// KV 键值存储接口
//
// 账本持久化只需要按键读写 JSON 文档。
type KV interface {
	// Get 读取键对应的值，不存在时返回 ErrNotFound。
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入键值，键存在时覆盖。
	Set(ctx context.Context, key string, value []byte) error

	// Close 关闭存储。
	Close() error
}
