package context

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/easyops/codepilot-go/pkg/core/message"
)

// DefaultHardCap 上下文目标预算的硬上限。
const DefaultHardCap = 8000

// DefaultReserveRatio 为模型回复保留的 Token 比例。
const DefaultReserveRatio = 0.2

// minContextRatio 保证给上下文的最低预算比例。
const minContextRatio = 0.3

// structuralMarkers 压缩时保留的行模式，按顺序匹配。
// 保留声明、导入、注释与 TODO/FIXME 标记行。
var structuralMarkers = []*regexp.Regexp{
	regexp.MustCompile(`^\s*(func|type|struct|interface|class|def|fn|impl)\b`),
	regexp.MustCompile(`^\s*(import|from|require|include|use|package)\b`),
	regexp.MustCompile(`^\s*(//|#|/\*|\*|--)`),
	regexp.MustCompile(`\b(TODO|FIXME)\b`),
	regexp.MustCompile(`^\s*(var|const|let|public|private|protected|static)\b`),
}

// sectionOrder 组装时各类型的分段标题与顺序。
var sectionOrder = []struct {
	Header string
	Types  []ChunkType
}{
	{"Project Context", []ChunkType{ChunkTypeWorkspace}},
	{"Current File Context", []ChunkType{ChunkTypeFile, ChunkTypeSelection}},
	{"Current Issues", []ChunkType{ChunkTypeError}},
	{"Documentation", []ChunkType{ChunkTypeDocumentation}},
	{"Conversation Notes", []ChunkType{ChunkTypeChatHistory}},
}

// OptimizeResult 组装结果
type OptimizeResult struct {
	// Messages 组装后的消息列表
	Messages []message.Message
	// ContextSummary 各分段的摘要说明
	ContextSummary string
	// TokensUsed 补充上下文实际占用的 Token 数
	TokensUsed int
	// CompressionApplied 是否对某个块做过结构化压缩
	CompressionApplied bool
}

// Assembler 上下文组装器
//
// 在 Token 预算内把排序后的上下文块拼装成系统消息，
// 插入到对话消息之前。
type Assembler struct {
	counter      TokenCounter
	prioritizer  *Prioritizer
	hardCap      int
	reserveRatio float64
}

// AssemblerOption 组装器选项
type AssemblerOption func(*Assembler)

// WithTokenCounter 设置 Token 计数器
func WithTokenCounter(counter TokenCounter) AssemblerOption {
	return func(a *Assembler) {
		a.counter = counter
	}
}

// WithPrioritizer 设置排序器
func WithPrioritizer(p *Prioritizer) AssemblerOption {
	return func(a *Assembler) {
		a.prioritizer = p
	}
}

// WithHardCap 设置上下文预算硬上限
func WithHardCap(n int) AssemblerOption {
	return func(a *Assembler) {
		a.hardCap = n
	}
}

// NewAssembler 创建组装器
func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		counter:      DefaultTokenCounter(),
		prioritizer:  NewPrioritizer(),
		hardCap:      DefaultHardCap,
		reserveRatio: DefaultReserveRatio,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Optimize 在预算内把上下文块组装进消息列表。
//
// 任一消息带 EmbeddedContext 标记时直接透传，该检查永远优先。
// 为模型回复保留预算后，剩余预算内逐块尝试：整块放入、
// 结构化压缩后放入、或跳过。
func (a *Assembler) Optimize(messages []message.Message, modelMaxTokens int, taskType string, chunks []*Chunk) *OptimizeResult {
	for _, msg := range messages {
		if msg.EmbeddedContext {
			return &OptimizeResult{
				Messages:           messages,
				CompressionApplied: false,
			}
		}
	}

	target := int(float64(modelMaxTokens) * (1 - a.reserveRatio))
	if target > a.hardCap {
		target = a.hardCap
	}

	messageTokens := 0
	for _, msg := range messages {
		messageTokens += a.counter.Count(msg.Content)
	}

	available := target - messageTokens
	if floor := int(float64(target) * minContextRatio); available < floor {
		available = floor
	}

	lastUser := lastUserContent(messages)
	ranked := a.prioritizer.Rank(chunks, lastUser, taskType)

	var (
		included    []*Chunk
		tokensUsed  int
		compressed  bool
		summaryPart []string
	)

	for _, chunk := range ranked {
		cost := a.counter.Count(chunk.Content)
		if tokensUsed+cost <= available {
			included = append(included, chunk)
			tokensUsed += cost
			continue
		}

		slim := compressStructural(chunk.Content)
		if slim == "" || slim == chunk.Content {
			continue
		}
		slimCost := a.counter.Count(slim)
		if tokensUsed+slimCost > available {
			continue
		}

		copied := *chunk
		copied.Content = slim
		copied.TokenCount = slimCost
		included = append(included, &copied)
		tokensUsed += slimCost
		compressed = true
	}

	if len(included) == 0 {
		return &OptimizeResult{
			Messages:           messages,
			CompressionApplied: false,
		}
	}

	contextText := buildSections(included, &summaryPart)

	result := make([]message.Message, 0, len(messages)+1)
	ctxMsg := message.NewSystemMessage(contextText)
	ctxMsg.EmbeddedContext = true
	result = append(result, ctxMsg)
	result = append(result, messages...)

	return &OptimizeResult{
		Messages:           result,
		ContextSummary:     strings.Join(summaryPart, "; "),
		TokensUsed:         tokensUsed,
		CompressionApplied: compressed,
	}
}

// compressStructural 只保留结构标记行。
// 没有任何行命中时返回空串，调用方应跳过该块。
func compressStructural(content string) string {
	lines := strings.Split(content, "\n")
	var kept []string

	for _, line := range lines {
		for _, marker := range structuralMarkers {
			if marker.MatchString(line) {
				kept = append(kept, line)
				break
			}
		}
	}

	if len(kept) == 0 || len(kept) == len(lines) {
		return ""
	}
	return strings.Join(kept, "\n")
}

// buildSections 按类型分段拼装上下文文本。
func buildSections(chunks []*Chunk, summary *[]string) string {
	byType := make(map[ChunkType][]*Chunk)
	for _, c := range chunks {
		byType[c.Type] = append(byType[c.Type], c)
	}

	var parts []string
	for _, section := range sectionOrder {
		var body []string
		count := 0
		for _, t := range section.Types {
			for _, c := range byType[t] {
				if c.Source != "" {
					body = append(body, fmt.Sprintf("--- %s ---\n%s", c.Source, c.Content))
				} else {
					body = append(body, c.Content)
				}
				count++
			}
		}
		if len(body) == 0 {
			continue
		}

		parts = append(parts, fmt.Sprintf("## %s\n\n%s", section.Header, strings.Join(body, "\n\n")))
		*summary = append(*summary, fmt.Sprintf("%s: %d", section.Header, count))
	}

	return strings.Join(parts, "\n\n")
}

// lastUserContent 返回最近一条用户消息的内容。
func lastUserContent(messages []message.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == message.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
