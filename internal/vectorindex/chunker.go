package vectorindex

import "strings"

// Chunk is one embeddable window of a file.
type Chunk struct {
	Path    string
	Ordinal int
	Text    string
}

// Chunker splits file content into overlapping line windows. This is the
// minimal splitter the store implementations need; ranking-oriented chunking
// strategies live with whatever consumes the index, not here.
type Chunker struct {
	Lines   int // window size in lines
	Overlap int // lines shared between consecutive windows
}

func NewChunker(lines, overlap int) *Chunker {
	if lines <= 0 {
		lines = 80
	}
	if overlap < 0 || overlap >= lines {
		overlap = lines / 8
	}
	return &Chunker{Lines: lines, Overlap: overlap}
}

// Split breaks content into chunks. Empty and whitespace-only files produce
// no chunks.
func (c *Chunker) Split(path string, content []byte) []Chunk {
	text := string(content)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	lines := strings.Split(text, "\n")
	step := c.Lines - c.Overlap

	var chunks []Chunk
	for start, ordinal := 0, 0; start < len(lines); start, ordinal = start+step, ordinal+1 {
		end := start + c.Lines
		if end > len(lines) {
			end = len(lines)
		}
		window := strings.Join(lines[start:end], "\n")
		if strings.TrimSpace(window) != "" {
			chunks = append(chunks, Chunk{Path: path, Ordinal: ordinal, Text: window})
		}
		if end == len(lines) {
			break
		}
	}
	return chunks
}
