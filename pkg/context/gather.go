package context

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/easyops/codepilot-go/pkg/core/message"
)

// Gatherer 定义从来源收集上下文块的接口。
type Gatherer interface {
	// Gather 从来源收集上下文块。
	Gather(ctx context.Context, input *GatherInput) ([]*Chunk, error)
}

// GatherInput 包含收集上下文的输入数据。
type GatherInput struct {
	// Query 是当前用户请求。
	Query string

	// TaskType 是请求的任务类型（如 "coding"、"explain"）。
	TaskType string

	// History 是对话历史。
	History []message.Message
}

// EditorSelection 编辑器当前状态
type EditorSelection struct {
	// FilePath 当前文件路径
	FilePath string
	// Selection 选中的文本（可能为空）
	Selection string
	// Surrounding 光标附近的若干行代码
	Surrounding string
}

// EditorSource 提供编辑器当前状态。
type EditorSource interface {
	// Current 返回当前编辑器状态，无活动编辑器时返回 nil。
	Current(ctx context.Context) (*EditorSelection, error)
}

// WorkspaceReader 提供工作区文件访问。
type WorkspaceReader interface {
	// ReadFile 读取文件内容。
	ReadFile(ctx context.Context, path string) (string, error)

	// FindFiles 按 glob 模式查找文件路径，excludeGlob 非空时排除匹配的路径。
	FindFiles(ctx context.Context, pattern, excludeGlob string, limit int) ([]string, error)
}

// Diagnostic 一条诊断信息
type Diagnostic struct {
	// FilePath 出错文件
	FilePath string
	// Line 行号（1 起）
	Line int
	// Severity 严重性（"error"、"warning"）
	Severity string
	// Message 诊断消息
	Message string
}

// DiagnosticsSource 提供当前诊断信息。
type DiagnosticsSource interface {
	// ListErrors 返回当前的诊断列表。
	ListErrors(ctx context.Context) ([]Diagnostic, error)
}

// EditorGatherer 从编辑器收集选中内容和当前文件上下文。
type EditorGatherer struct {
	source EditorSource
}

// NewEditorGatherer 创建新的 EditorGatherer。
func NewEditorGatherer(source EditorSource) *EditorGatherer {
	return &EditorGatherer{source: source}
}

// Gather 收集编辑器上下文。
func (g *EditorGatherer) Gather(ctx context.Context, _ *GatherInput) ([]*Chunk, error) {
	if g.source == nil {
		return nil, nil
	}

	state, err := g.source.Current(ctx)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, nil
	}

	var chunks []*Chunk
	if state.Selection != "" {
		chunks = append(chunks, NewChunk(ChunkTypeSelection, state.Selection, state.FilePath))
	}
	if state.Surrounding != "" {
		chunks = append(chunks, NewChunk(ChunkTypeFile, state.Surrounding, state.FilePath))
	}

	return chunks, nil
}

// WorkspaceGatherer 收集项目清单和 README 等工作区级信息。
type WorkspaceGatherer struct {
	reader WorkspaceReader
	// ManifestPatterns 要查找的清单文件模式。
	ManifestPatterns []string
	// MaxFiles 单次收集的文件数上限。
	MaxFiles int
}

// NewWorkspaceGatherer 创建新的 WorkspaceGatherer。
func NewWorkspaceGatherer(reader WorkspaceReader) *WorkspaceGatherer {
	return &WorkspaceGatherer{
		reader: reader,
		ManifestPatterns: []string{
			"go.mod", "package.json", "pyproject.toml", "Cargo.toml",
			"README.md", "README",
		},
		MaxFiles: 5,
	}
}

// Gather 收集工作区上下文。
func (g *WorkspaceGatherer) Gather(ctx context.Context, _ *GatherInput) ([]*Chunk, error) {
	if g.reader == nil {
		return nil, nil
	}

	var chunks []*Chunk
	for _, pattern := range g.ManifestPatterns {
		if len(chunks) >= g.MaxFiles {
			break
		}

		paths, err := g.reader.FindFiles(ctx, pattern, "", 1)
		if err != nil || len(paths) == 0 {
			continue
		}

		content, err := g.reader.ReadFile(ctx, paths[0])
		if err != nil || content == "" {
			continue
		}

		chunkType := ChunkTypeWorkspace
		if strings.HasPrefix(strings.ToUpper(filepath.Base(paths[0])), "README") {
			chunkType = ChunkTypeDocumentation
		}
		chunks = append(chunks, NewChunk(chunkType, content, paths[0]))
	}

	return chunks, nil
}

// DiagnosticsGatherer 收集当前诊断信息。
type DiagnosticsGatherer struct {
	source DiagnosticsSource
	// MaxErrors 单次收集的诊断数上限。
	MaxErrors int
}

// NewDiagnosticsGatherer 创建新的 DiagnosticsGatherer。
func NewDiagnosticsGatherer(source DiagnosticsSource) *DiagnosticsGatherer {
	return &DiagnosticsGatherer{
		source:    source,
		MaxErrors: 10,
	}
}

// Gather 收集诊断上下文。
func (g *DiagnosticsGatherer) Gather(ctx context.Context, _ *GatherInput) ([]*Chunk, error) {
	if g.source == nil {
		return nil, nil
	}

	diags, err := g.source.ListErrors(ctx)
	if err != nil {
		return nil, err
	}

	if len(diags) > g.MaxErrors {
		diags = diags[:g.MaxErrors]
	}

	chunks := make([]*Chunk, 0, len(diags))
	for _, d := range diags {
		content := fmt.Sprintf("%s:%d [%s] %s", d.FilePath, d.Line, d.Severity, d.Message)
		source := fmt.Sprintf("%s:%d", d.FilePath, d.Line)
		chunks = append(chunks, NewChunk(ChunkTypeError, content, source))
	}

	return chunks, nil
}

// HistoryGatherer 收集对话历史摘要作为上下文块。
type HistoryGatherer struct {
	// MaxMessages 限制要包含的消息数量。
	MaxMessages int
}

// NewHistoryGatherer 创建新的 HistoryGatherer。
func NewHistoryGatherer(maxMessages int) *HistoryGatherer {
	if maxMessages <= 0 {
		maxMessages = 10
	}
	return &HistoryGatherer{
		MaxMessages: maxMessages,
	}
}

// Gather 收集对话历史。
func (g *HistoryGatherer) Gather(_ context.Context, input *GatherInput) ([]*Chunk, error) {
	if len(input.History) == 0 {
		return nil, nil
	}

	messages := input.History
	if len(messages) > g.MaxMessages {
		messages = messages[len(messages)-g.MaxMessages:]
	}

	var content strings.Builder
	for _, msg := range messages {
		fmt.Fprintf(&content, "[%s] %s\n", msg.Role, msg.Content)
	}

	if content.Len() == 0 {
		return nil, nil
	}

	return []*Chunk{NewChunk(ChunkTypeChatHistory, content.String(), "history")}, nil
}

// CompositeGatherer 组合多个收集器。
//
// 单个收集器失败时记录日志并跳过，不影响其余收集器。
type CompositeGatherer struct {
	gatherers []Gatherer
}

// NewCompositeGatherer 创建新的 CompositeGatherer。
func NewCompositeGatherer(gatherers ...Gatherer) *CompositeGatherer {
	return &CompositeGatherer{gatherers: gatherers}
}

// Gather 从所有收集器收集块。
func (g *CompositeGatherer) Gather(ctx context.Context, input *GatherInput) ([]*Chunk, error) {
	var all []*Chunk

	for _, gatherer := range g.gatherers {
		chunks, err := gatherer.Gather(ctx, input)
		if err != nil {
			slog.Warn("context gatherer failed, skipping",
				"gatherer", fmt.Sprintf("%T", gatherer),
				"error", err,
			)
			continue
		}
		all = append(all, chunks...)
	}

	return all, nil
}

// 编译时接口检查
var _ Gatherer = (*EditorGatherer)(nil)
var _ Gatherer = (*WorkspaceGatherer)(nil)
var _ Gatherer = (*DiagnosticsGatherer)(nil)
var _ Gatherer = (*HistoryGatherer)(nil)
var _ Gatherer = (*CompositeGatherer)(nil)
