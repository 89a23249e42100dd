// Package vectorindex holds the similarity index the retrieval stage searches.
// An index is always replaced as a whole; stores never merge two documents.
package vectorindex

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Chunk is one embedded fragment of the ingested document.
type Chunk struct {
	ID       string            `json:"id"`
	Index    int               `json:"index"`
	Source   string            `json:"source"`
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Vector   []float32         `json:"vector"`
}

type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// Generation identifies one successful build of the index.
type Generation struct {
	ID         uuid.UUID `json:"id"`
	Source     string    `json:"source"`
	ChunkCount int       `json:"chunk_count"`
	BuiltAt    time.Time `json:"built_at"`
}

// Store is the similarity index. Implementations must make Replace atomic with
// respect to concurrent Search calls.
type Store interface {
	// Replace discards the current contents and installs chunks as the new index.
	Replace(ctx context.Context, source string, chunks []Chunk) (Generation, error)

	// Search returns up to k chunks ranked by cosine similarity, highest first.
	// It returns ragerr.ErrIndexUnavailable when no build has ever succeeded.
	Search(ctx context.Context, vector []float32, k int) ([]ScoredChunk, error)

	// Generation reports the current build, or ragerr.ErrIndexUnavailable.
	Generation(ctx context.Context) (Generation, error)
}

// CosineSimilarity returns 0 for vectors of different length or zero magnitude.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// TopK scores every chunk and keeps the k best. Equal scores keep chunk order,
// so repeated searches over the same index return the same sequence.
func TopK(chunks []Chunk, vector []float32, k int) []ScoredChunk {
	results := make([]ScoredChunk, 0, len(chunks))
	for _, c := range chunks {
		results = append(results, ScoredChunk{Chunk: c, Score: CosineSimilarity(vector, c.Vector)})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if k >= 0 && k < len(results) {
		results = results[:k]
	}
	return results
}
