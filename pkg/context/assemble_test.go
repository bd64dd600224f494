package context_test

import (
	"strings"
	"testing"

	ctxpkg "github.com/easyops/codepilot-go/pkg/context"
	"github.com/easyops/codepilot-go/pkg/core/message"
)

func TestAssembler_PassThrough(t *testing.T) {
	assembler := ctxpkg.NewAssembler()

	embedded := message.NewSystemMessage("context already baked in")
	embedded.EmbeddedContext = true
	messages := []message.Message{
		embedded,
		message.NewUserMessage("hello"),
	}

	chunks := []*ctxpkg.Chunk{
		ctxpkg.NewChunk(ctxpkg.ChunkTypeFile, "should not be added", "x.go"),
	}

	result := assembler.Optimize(messages, 4096, "coding", chunks)

	if len(result.Messages) != 2 {
		t.Fatalf("len = %d, want 2 (pass-through must not modify messages)", len(result.Messages))
	}
	if result.CompressionApplied {
		t.Error("pass-through must report CompressionApplied=false")
	}
	if result.TokensUsed != 0 {
		t.Errorf("TokensUsed = %d, want 0", result.TokensUsed)
	}
}

func TestAssembler_PrependsContextMessage(t *testing.T) {
	assembler := ctxpkg.NewAssembler()

	messages := []message.Message{
		message.NewUserMessage("what does this selection do"),
	}
	chunks := []*ctxpkg.Chunk{
		ctxpkg.NewChunk(ctxpkg.ChunkTypeSelection, "x := compute(y)", "main.go"),
	}

	result := assembler.Optimize(messages, 4096, "coding", chunks)

	if len(result.Messages) != 2 {
		t.Fatalf("len = %d, want 2", len(result.Messages))
	}

	ctxMsg := result.Messages[0]
	if ctxMsg.Role != message.RoleSystem {
		t.Errorf("Role = %v, want system", ctxMsg.Role)
	}
	if !ctxMsg.EmbeddedContext {
		t.Error("the synthetic context message must carry the embedded marker")
	}
	if !strings.Contains(ctxMsg.Content, "x := compute(y)") {
		t.Error("context message should contain the chunk content")
	}
	if !strings.Contains(ctxMsg.Content, "Current File Context") {
		t.Error("context message should carry the section header")
	}
}

func TestAssembler_BudgetNeverExceeded(t *testing.T) {
	assembler := ctxpkg.NewAssembler()

	// maxTokens=1000 → target=800, 消息很短 → available≈800
	messages := []message.Message{
		message.NewUserMessage("short question"),
	}

	var chunks []*ctxpkg.Chunk
	big := strings.Repeat("plain body text without structure ", 200)
	for i := 0; i < 10; i++ {
		chunks = append(chunks, ctxpkg.NewChunk(ctxpkg.ChunkTypeDocumentation, big, "doc"+string(rune('a'+i))))
	}

	result := assembler.Optimize(messages, 1000, "", chunks)

	target := 800
	if result.TokensUsed > target {
		t.Errorf("TokensUsed = %d, must not exceed available budget %d", result.TokensUsed, target)
	}
}

func TestAssembler_MinimumContextFloor(t *testing.T) {
	assembler := ctxpkg.NewAssembler()

	// 很长的对话历史会吃掉全部目标预算，
	// 但上下文仍应保有目标的 30%
	longHistory := strings.Repeat("previous conversation content ", 500)
	messages := []message.Message{
		message.NewUserMessage(longHistory),
		message.NewUserMessage("current question"),
	}

	chunk := ctxpkg.NewChunk(ctxpkg.ChunkTypeSelection, "selected := snippet()", "main.go")
	result := assembler.Optimize(messages, 1000, "", []*ctxpkg.Chunk{chunk})

	// target=800, floor=240；小块应仍然放得进去
	if len(result.Messages) != 3 {
		t.Fatalf("len = %d, want 3 (chunk should fit within the 30%% floor)", len(result.Messages))
	}
}

func TestAssembler_StructuralCompression(t *testing.T) {
	assembler := ctxpkg.NewAssembler()

	messages := []message.Message{
		message.NewUserMessage("review this file"),
	}

	// 文件块超出预算，但声明/导入/注释行压缩后可以放入
	var sb strings.Builder
	sb.WriteString("package main\n")
	sb.WriteString("import \"fmt\"\n")
	sb.WriteString("// entry point\n")
	sb.WriteString("func main() {\n")
	for i := 0; i < 800; i++ {
		sb.WriteString("\tresult = result + someVeryLongVariableName\n")
	}
	sb.WriteString("}\n")

	chunk := ctxpkg.NewChunk(ctxpkg.ChunkTypeFile, sb.String(), "main.go")
	result := assembler.Optimize(messages, 1000, "coding", []*ctxpkg.Chunk{chunk})

	if !result.CompressionApplied {
		t.Fatal("expected structural compression to be applied")
	}

	ctxMsg := result.Messages[0]
	if !strings.Contains(ctxMsg.Content, "import \"fmt\"") {
		t.Error("compressed chunk should retain import lines")
	}
	if strings.Contains(ctxMsg.Content, "someVeryLongVariableName") {
		t.Error("compressed chunk should drop plain body lines")
	}
}

func TestAssembler_SkipsWhatCannotFit(t *testing.T) {
	assembler := ctxpkg.NewAssembler()

	messages := []message.Message{
		message.NewUserMessage("hello"),
	}

	// 全部是无结构文本，压缩无济于事，只能跳过
	huge := strings.Repeat("unstructured prose body ", 2000)
	chunk := ctxpkg.NewChunk(ctxpkg.ChunkTypeDocumentation, huge, "guide.md")

	result := assembler.Optimize(messages, 1000, "", []*ctxpkg.Chunk{chunk})

	if len(result.Messages) != 1 {
		t.Errorf("len = %d, want 1 (nothing fit, no context message)", len(result.Messages))
	}
	if result.TokensUsed != 0 {
		t.Errorf("TokensUsed = %d, want 0", result.TokensUsed)
	}
}

func TestEstimatedCounter_Count(t *testing.T) {
	counter := ctxpkg.NewEstimatedCounter()

	tests := []struct {
		name     string
		text     string
		expected int
	}{
		{"empty string", "", 0},
		{"one char rounds up", "a", 1},
		{"four chars", "abcd", 1},
		{"five chars rounds up", "abcde", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := counter.Count(tt.text); got != tt.expected {
				t.Errorf("Count(%q) = %d, want %d", tt.text, got, tt.expected)
			}
		})
	}
}

func TestEstimatedCounter_Monotonic(t *testing.T) {
	counter := ctxpkg.NewEstimatedCounter()

	prev := 0
	text := ""
	for i := 0; i < 64; i++ {
		text += "x"
		got := counter.Count(text)
		if got < prev {
			t.Fatalf("Count not monotonic at length %d: %d < %d", i+1, got, prev)
		}
		prev = got
	}
}
