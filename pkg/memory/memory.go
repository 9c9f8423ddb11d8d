// Package memory implements the Memory Store (C3): an embedding-indexed
// recall of past situation/recommendation pairs. The embedding backend
// is unspecified by design, so vectors are stored as a plain float8[]
// column and compared with a linear scan in Go rather than a real ANN
// index (see DESIGN.md — this is a deliberate simplification, not a
// production vector database).
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
)

// Embedder turns free text into a vector. Providers live under
// pkg/gateway; the store only depends on this narrow interface so
// recall works the same whether the vectors come from an LLM provider
// or a stub used in tests.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the Memory Store (C3).
type Store struct {
	db       *sql.DB
	embedder Embedder
}

// New wires an already-migrated pool with an embedding backend.
func New(db *sql.DB, embedder Embedder) *Store {
	return &Store{db: db, embedder: embedder}
}

// Recalled is one nearest-neighbor hit.
type Recalled struct {
	Recommendation string
	Distance       float64
}

// Record persists an immutable situation/recommendation pair for
// future recall. Embedding failures are returned, not swallowed — a
// silently unindexed memory would never surface again.
func (s *Store) Record(ctx context.Context, situation, recommendation string) error {
	vec, err := s.embedder.Embed(ctx, situation)
	if err != nil {
		return fmt.Errorf("embedding situation: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO memory_entries (situation, recommendation, embedding) VALUES ($1, $2, $3)`,
		situation, recommendation, float32sToFloat64s(vec),
	)
	if err != nil {
		return fmt.Errorf("inserting memory entry: %w", err)
	}
	return nil
}

// Recall returns up to n entries ordered by ascending embedding
// distance to situation. Missing/empty store returns an empty slice,
// never an error (§4.3).
func (s *Store) Recall(ctx context.Context, situation string, n int) ([]Recalled, error) {
	if n <= 0 {
		return []Recalled{}, nil
	}

	query, err := s.embedder.Embed(ctx, situation)
	if err != nil {
		return nil, fmt.Errorf("embedding query situation: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT recommendation, embedding FROM memory_entries`)
	if err != nil {
		return nil, fmt.Errorf("scanning memory entries: %w", err)
	}
	defer rows.Close()

	var candidates []Recalled
	for rows.Next() {
		var rec string
		var embedding []float64
		if err := rows.Scan(&rec, &embedding); err != nil {
			return nil, fmt.Errorf("scanning memory row: %w", err)
		}
		dist := cosineDistance(query, float64sToFloat32s(embedding))
		candidates = append(candidates, Recalled{Recommendation: rec, Distance: dist})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Distance < candidates[j].Distance })
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	if candidates == nil {
		candidates = []Recalled{}
	}
	return candidates, nil
}

// cosineDistance is 1 - cosine similarity; identical vectors yield 0,
// orthogonal vectors yield 1. Mismatched or zero-length vectors are
// treated as maximally distant rather than panicking.
func cosineDistance(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 1.0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1.0
	}
	similarity := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	return 1 - similarity
}

func float32sToFloat64s(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func float64sToFloat32s(in []float64) []float32 {
	out := make([]float32, len(in))
	for i, v := range in {
		out[i] = float32(v)
	}
	return out
}
