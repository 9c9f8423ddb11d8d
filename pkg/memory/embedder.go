package memory

import (
	"context"
	"hash/fnv"
	"strings"
)

// hashEmbedder is a deterministic, dependency-free Embedder used when no
// LLM credential is configured (§6: missing LLM_API_KEY still has to
// leave the rest of the system running). It buckets words into a fixed
// number of dimensions by hash, which preserves enough lexical overlap
// for Recall's cosine distance to return *something* sensible without
// calling out to an embedding API — a deliberate simplification, not a
// semantic embedding; see DESIGN.md.
type hashEmbedder struct {
	dims int
}

// NewHashEmbedder builds the bootstrapper's fallback Embedder.
func NewHashEmbedder(dims int) Embedder {
	if dims < 1 {
		dims = 64
	}
	return &hashEmbedder{dims: dims}
}

func (h *hashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, h.dims)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		sum := fnv.New32a()
		_, _ = sum.Write([]byte(word))
		vec[int(sum.Sum32())%h.dims]++
	}
	return vec, nil
}
