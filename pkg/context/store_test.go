package context_test

import (
	"testing"
	"time"

	ctxpkg "github.com/easyops/codepilot-go/pkg/context"
)

func TestStore_AddAndDedupe(t *testing.T) {
	store := ctxpkg.NewStore()

	older := ctxpkg.NewChunk(ctxpkg.ChunkTypeFile, "func main() { fmt.Println(\"hello world\") }", "main.go")
	older.Timestamp = time.Now().Add(-time.Minute)

	newer := ctxpkg.NewChunk(ctxpkg.ChunkTypeFile, "func main() { fmt.Println(\"hello world!\") }", "main.go")

	store.Add(older)
	store.Add(newer)

	chunks := store.Chunks()
	if len(chunks) != 1 {
		t.Fatalf("len = %d, want 1 (similar chunks with same type+source dedupe)", len(chunks))
	}
	if chunks[0].ID != newer.ID {
		t.Error("the newer chunk should win on dedupe")
	}
}

func TestStore_DedupeOlderIncomingDropped(t *testing.T) {
	store := ctxpkg.NewStore()

	newer := ctxpkg.NewChunk(ctxpkg.ChunkTypeFile, "package main\nimport \"fmt\"\nfunc main() {}", "main.go")
	older := ctxpkg.NewChunk(ctxpkg.ChunkTypeFile, "package main\nimport \"fmt\"\nfunc main() { }", "main.go")
	older.Timestamp = time.Now().Add(-time.Hour)

	store.Add(newer)
	store.Add(older)

	chunks := store.Chunks()
	if len(chunks) != 1 {
		t.Fatalf("len = %d, want 1", len(chunks))
	}
	if chunks[0].ID != newer.ID {
		t.Error("an older incoming duplicate must not replace the existing chunk")
	}
}

func TestStore_DifferentSourceNoDedupe(t *testing.T) {
	store := ctxpkg.NewStore()

	store.Add(ctxpkg.NewChunk(ctxpkg.ChunkTypeFile, "identical content here", "a.go"))
	store.Add(ctxpkg.NewChunk(ctxpkg.ChunkTypeFile, "identical content here", "b.go"))

	if store.Len() != 2 {
		t.Errorf("len = %d, want 2 (different sources never dedupe)", store.Len())
	}
}

func TestStore_Cleanup(t *testing.T) {
	store := ctxpkg.NewStore()

	stale := ctxpkg.NewChunk(ctxpkg.ChunkTypeWorkspace, "old manifest", "go.mod")
	stale.Timestamp = time.Now().Add(-3 * time.Hour)

	fresh := ctxpkg.NewChunk(ctxpkg.ChunkTypeFile, "recent file content", "main.go")

	store.Add(stale)
	store.Add(fresh)

	removed := store.Cleanup()
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	for _, c := range store.Chunks() {
		if c.Age() > 2*time.Hour {
			t.Errorf("chunk %q survived cleanup with age %v", c.Source, c.Age())
		}
	}
}

func TestStore_CapacityDropsOldest(t *testing.T) {
	store := ctxpkg.NewStore(ctxpkg.WithMaxChunks(3))

	base := time.Now().Add(-time.Hour)
	var ids []string
	for i := 0; i < 4; i++ {
		c := ctxpkg.NewChunk(ctxpkg.ChunkTypeDocumentation,
			"documentation body number "+string(rune('a'+i)),
			"doc-"+string(rune('a'+i)))
		c.Timestamp = base.Add(time.Duration(i) * time.Minute)
		ids = append(ids, c.ID)
		store.Add(c)
	}

	chunks := store.Chunks()
	if len(chunks) != 3 {
		t.Fatalf("len = %d, want 3", len(chunks))
	}
	for _, c := range chunks {
		if c.ID == ids[0] {
			t.Error("the oldest chunk should have been dropped past capacity")
		}
	}
}

func TestStore_CapacityKeepsInsertionOrder(t *testing.T) {
	store := ctxpkg.NewStore(ctxpkg.WithMaxChunks(3))

	base := time.Now().Add(-time.Hour)

	// 最旧的块写在中间，淘汰后其余块必须保持写入顺序
	offsets := []time.Duration{3 * time.Minute, 0, 5 * time.Minute, 8 * time.Minute}
	var ids []string
	for i, off := range offsets {
		c := ctxpkg.NewChunk(ctxpkg.ChunkTypeDocumentation,
			"ordering body number "+string(rune('a'+i)),
			"order-"+string(rune('a'+i)))
		c.Timestamp = base.Add(off)
		ids = append(ids, c.ID)
		store.Add(c)
	}

	chunks := store.Chunks()
	if len(chunks) != 3 {
		t.Fatalf("len = %d, want 3", len(chunks))
	}

	want := []string{ids[0], ids[2], ids[3]}
	for i, c := range chunks {
		if c.ID != want[i] {
			t.Fatalf("chunks[%d].ID = %s, want %s (survivors must keep insertion order)", i, c.ID, want[i])
		}
	}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		high bool
	}{
		{"identical", "the quick brown fox", "the quick brown fox", true},
		{"near identical", "the quick brown fox jumps over", "the quick brown fox jumps over!", true},
		{"unrelated", "database connection pooling", "user interface rendering", false},
		{"too short", "a", "b", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim := ctxpkg.Similarity(tt.a, tt.b)
			if tt.high && sim <= ctxpkg.DefaultSimilarityThreshold {
				t.Errorf("Similarity = %.2f, want > %.2f", sim, ctxpkg.DefaultSimilarityThreshold)
			}
			if !tt.high && sim > ctxpkg.DefaultSimilarityThreshold {
				t.Errorf("Similarity = %.2f, want <= %.2f", sim, ctxpkg.DefaultSimilarityThreshold)
			}
		})
	}
}

func TestChunkType_BasePriority(t *testing.T) {
	tests := []struct {
		chunkType ctxpkg.ChunkType
		expected  int
	}{
		{ctxpkg.ChunkTypeSelection, 90},
		{ctxpkg.ChunkTypeError, 80},
		{ctxpkg.ChunkTypeFile, 75},
		{ctxpkg.ChunkTypeWorkspace, 60},
		{ctxpkg.ChunkTypeDocumentation, 50},
	}

	for _, tt := range tests {
		if got := tt.chunkType.BasePriority(); got != tt.expected {
			t.Errorf("%s.BasePriority() = %d, want %d", tt.chunkType, got, tt.expected)
		}
	}
}
