package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

const DefaultHashDimension = 256

// HashProvider embeds text by hashing lowercase word tokens into a fixed
// number of buckets. It needs no model server and is deterministic, which
// makes it usable offline and in tests. Retrieval quality is lexical only.
type HashProvider struct {
	dimension int
}

func NewHashProvider(dimension int) EmbeddingProvider {
	if dimension <= 0 {
		dimension = DefaultHashDimension
	}
	return &HashProvider{dimension: dimension}
}

func (p *HashProvider) Generate(ctx context.Context, text string, taskType string) (*EmbeddingResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, p.dimension)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%uint32(p.dimension)]++
	}

	return &EmbeddingResponse{
		Embedding: EmbeddingResponseEmbedding{Values: normalizeVector(vec)},
	}, nil
}
