package storage

import (
	"fmt"

	"github.com/google/uuid"
)

// Chunk represents one stored knowledge-base record: a text segment with its
// embedding vector and positional metadata.
type Chunk struct {
	ID        string // deterministic UUID, see PointID
	Source    string // originating file name, the purge/re-ingest grouping key
	Index     int    // position within the source (0, 1, 2...)
	Text      string
	CharStart int // offset into the source's cleaned text
	CharEnd   int
	Page      int       // 1-based page hint, 0 when unknown
	Embedding []float32 // 768-dim vector (gemini-embedding-001)
}

// ScoredChunk pairs a search hit with its cosine distance.
// Similarity = 1 - Distance; this only holds for the cosine metric.
type ScoredChunk struct {
	Chunk    *Chunk
	Distance float64
}

// DefaultCollection is the Qdrant collection holding the knowledge base.
const DefaultCollection = "pens_docs"

// VectorDimension is the embedding size requested from gemini-embedding-001.
const VectorDimension = 768

// PointID derives the deterministic point id for a chunk of a source.
// Re-ingesting the same source with the same chunking overwrites records in
// place. This does NOT protect against a shrinking chunk count between
// ingestions; callers must purge the source first (see DeleteBySource).
func PointID(source string, index int) string {
	name := fmt.Sprintf("%s_chunk_%d", source, index)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name)).String()
}
