// Package chunker splits extracted document text into overlapping,
// word-boundary-respecting segments for embedding.
package chunker

import "strings"

const (
	// DefaultChunkSize is the window width in characters. Roughly 450 tokens
	// at 4 characters per token for mixed Indonesian/English text.
	DefaultChunkSize = 1800

	// DefaultOverlap is the number of characters shared between consecutive
	// chunks so context carries across the boundary. Roughly 75 tokens.
	DefaultOverlap = 300

	// DefaultMinLen is the floor below which a trailing fragment is discarded.
	DefaultMinLen = 50
)

// Chunk is a bounded slice of a document's cleaned text. CharStart and
// CharEnd are offsets into the normalized text, not the raw input.
type Chunk struct {
	Text      string
	Index     int
	Source    string
	CharStart int
	CharEnd   int
}

// Chunker produces chunks with a fixed-width sliding window.
type Chunker struct {
	size    int
	overlap int
	minLen  int
}

// New creates a Chunker. Zero or negative parameters fall back to defaults.
func New(size, overlap, minLen int) *Chunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap <= 0 {
		overlap = DefaultOverlap
	}
	if minLen <= 0 {
		minLen = DefaultMinLen
	}
	return &Chunker{size: size, overlap: overlap, minLen: minLen}
}

// Split normalizes whitespace and walks a sliding window over the text.
// The window end is pulled back to the nearest preceding space so words are
// never cut, unless no space exists past the window start. Fragments at or
// under the minimum length are dropped. The same input always yields the
// same chunk sequence.
func (c *Chunker) Split(text, source string) []Chunk {
	clean := Normalize(text)

	var chunks []Chunk
	start := 0

	for start < len(clean) {
		end := start + c.size

		if end < len(clean) {
			// Don't cut mid-word: back up to the nearest space.
			if sp := strings.LastIndex(clean[:end+1], " "); sp > start {
				end = sp
			}
		} else {
			end = len(clean)
		}

		piece := strings.TrimSpace(clean[start:end])
		if len(piece) > c.minLen {
			chunks = append(chunks, Chunk{
				Text:      piece,
				Index:     len(chunks),
				Source:    source,
				CharStart: start,
				CharEnd:   end,
			})
		}

		if end >= len(clean) {
			break
		}

		// Slide back by the overlap for the next window. When the remaining
		// text is shorter than the overlap this would stall, so force at
		// least one character of progress.
		next := end - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}

// Normalize collapses whitespace runs to single spaces and trims the ends.
// PDF extraction tends to leave stray line breaks and double spaces.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
