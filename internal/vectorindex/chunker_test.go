package vectorindex

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestChunkerSplit(t *testing.T) {
	c := NewChunker(4, 1)

	var sb strings.Builder
	for i := 1; i <= 10; i++ {
		fmt.Fprintf(&sb, "line %d\n", i)
	}

	chunks := c.Split("main.go", []byte(sb.String()))
	if len(chunks) == 0 {
		t.Fatal("no chunks produced")
	}

	for i, ch := range chunks {
		if ch.Path != "main.go" {
			t.Errorf("chunk %d path = %q", i, ch.Path)
		}
		if ch.Ordinal != i {
			t.Errorf("chunk %d ordinal = %d", i, ch.Ordinal)
		}
	}

	// First window covers the first 4 lines.
	if !strings.HasPrefix(chunks[0].Text, "line 1\n") || !strings.Contains(chunks[0].Text, "line 4") {
		t.Errorf("first chunk = %q", chunks[0].Text)
	}
	// Consecutive windows share the overlap line.
	if !strings.Contains(chunks[0].Text, "line 4") || !strings.Contains(chunks[1].Text, "line 4") {
		t.Error("overlap line missing from one of the adjacent chunks")
	}
	// Every line appears somewhere.
	all := ""
	for _, ch := range chunks {
		all += ch.Text + "\n"
	}
	for i := 1; i <= 10; i++ {
		if !strings.Contains(all, fmt.Sprintf("line %d", i)) {
			t.Errorf("line %d lost during chunking", i)
		}
	}
}

func TestChunkerSkipsEmptyContent(t *testing.T) {
	c := NewChunker(80, 10)

	if chunks := c.Split("empty.go", nil); chunks != nil {
		t.Errorf("empty file produced %d chunks", len(chunks))
	}
	if chunks := c.Split("blank.go", []byte("  \n\t\n\n")); chunks != nil {
		t.Errorf("whitespace file produced %d chunks", len(chunks))
	}
}

func TestChunkerShortFileIsOneChunk(t *testing.T) {
	c := NewChunker(80, 10)
	chunks := c.Split("small.go", []byte("package main\n\nfunc main() {}\n"))
	if len(chunks) != 1 {
		t.Fatalf("chunks = %d, want 1", len(chunks))
	}
	if chunks[0].Ordinal != 0 {
		t.Errorf("ordinal = %d, want 0", chunks[0].Ordinal)
	}
}

func TestNewChunkerDefaults(t *testing.T) {
	c := NewChunker(0, -1)
	if c.Lines != 80 || c.Overlap != 10 {
		t.Errorf("defaults = %d/%d, want 80/10", c.Lines, c.Overlap)
	}

	// Overlap must stay below the window size.
	c = NewChunker(10, 20)
	if c.Overlap >= c.Lines {
		t.Errorf("overlap %d not clamped below window %d", c.Overlap, c.Lines)
	}
}

func TestPointIDDeterministic(t *testing.T) {
	projectID := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	a := pointID(projectID, "feature/x", "main.go", 0)
	b := pointID(projectID, "feature/x", "main.go", 0)
	if a != b {
		t.Error("same inputs produced different point ids")
	}

	distinct := map[string]uuid.UUID{
		"project": pointID(uuid.New(), "feature/x", "main.go", 0),
		"branch":  pointID(projectID, "feature/y", "main.go", 0),
		"path":    pointID(projectID, "feature/x", "other.go", 0),
		"ordinal": pointID(projectID, "feature/x", "main.go", 1),
	}
	for dim, id := range distinct {
		if id == a {
			t.Errorf("changing %s did not change the point id", dim)
		}
	}
}
