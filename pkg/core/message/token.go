package message

// EstimateTokens 返回文本的确定性 Token 估算值。
//
// 估算公式为 ceil(len(text)/4)，对输入长度单调。
// 该值只用于预算比较，计费一律使用提供商上报的用量。
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// EstimateMessages 返回消息列表内容的估算 Token 总数。
func EstimateMessages(messages []Message) int {
	total := 0
	for _, msg := range messages {
		total += EstimateTokens(msg.Content)
	}
	return total
}

// Add 累加用量统计
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
	u.TotalCost += other.TotalCost
}

// IsEmpty 检查是否为空
func (u *Usage) IsEmpty() bool {
	return u.TotalTokens == 0
}
