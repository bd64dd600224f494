// Package cache 提供对话响应的内存缓存。
//
// 以请求内容的稳定哈希为键，带容量上限、TTL 惰性过期
// 和最久未访问淘汰。缓存是尽力而为的：任何失败都降级为
// 缓存未命中，不中断请求。
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/easyops/codepilot-go/pkg/core/message"
)

// keyContentPrefix 参与哈希的每条消息内容前缀长度。
const keyContentPrefix = 500

// Key 计算请求的稳定缓存键。
//
// 哈希覆盖有序的 (role, 内容前 500 字符) 对、模型 ID、
// maxTokens 和 temperature；同请求恒产生同键。
func Key(messages []message.Message, modelID string, maxTokens int, temperature float64) string {
	var b strings.Builder

	for _, msg := range messages {
		content := msg.Content
		if len(content) > keyContentPrefix {
			content = content[:keyContentPrefix]
		}
		b.WriteString(string(msg.Role))
		b.WriteByte(':')
		b.WriteString(content)
		b.WriteByte('\x1e')
	}

	fmt.Fprintf(&b, "%s|%d|%g", modelID, maxTokens, temperature)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
