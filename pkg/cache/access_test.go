package cache

import (
	"testing"

	"github.com/easyops/codepilot-go/pkg/core/llm"
)

// 访问计数属于条目内部状态，这里用包内测试直接检查。
func TestEntryAccessCount(t *testing.T) {
	c := New()
	resp := &llm.Response{Content: "counted"}

	c.Put("k", resp)
	if got := c.entries["k"].AccessCount; got != 1 {
		t.Fatalf("AccessCount after Put = %d, want 1", got)
	}

	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected hit")
	}
	if got := c.entries["k"].AccessCount; got != 2 {
		t.Errorf("AccessCount after one hit = %d, want 2", got)
	}

	if _, ok := c.Get("k"); !ok {
		t.Fatal("expected hit")
	}
	if got := c.entries["k"].AccessCount; got != 3 {
		t.Errorf("AccessCount after two hits = %d, want 3", got)
	}

	// 覆盖写入重置计数
	c.Put("k", &llm.Response{Content: "replaced"})
	if got := c.entries["k"].AccessCount; got != 1 {
		t.Errorf("AccessCount after overwrite = %d, want 1", got)
	}
}
