package store

import (
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"sync"

	"docquery/types"
)

// Embedder is the embedding capability the index depends on.
type Embedder interface {
	Embed(text string) ([]float32, error)
	Model() string
}

// Storer is the vector index contract consumed by the query system.
type Storer interface {
	Add(ctx context.Context, chunks []types.DocumentChunk) error
	Search(ctx context.Context, query string, k int) ([]types.ScoredChunk, error)
	SemanticSearch(ctx context.Context, query string, k int, threshold float64) ([]types.DocumentChunk, error)
	Save(ctx context.Context, path string) error
	Load(ctx context.Context, path string) error
	Stats(ctx context.Context) (types.IndexStats, error)
}

// MemoryIndex is a flat in-memory inner-product index. Chunk records and
// embedding vectors are kept in lock-step slices; a chunk's position is the
// only handle mapping a search hit back to its record, so the two slices
// must never desynchronize in length. The index is append-only.
type MemoryIndex struct {
	mu       sync.RWMutex
	embedder Embedder
	dim      int
	vectors  [][]float32
	chunks   []types.DocumentChunk
}

func NewMemoryIndex(embedder Embedder) *MemoryIndex {
	return &MemoryIndex{
		embedder: embedder,
	}
}

// Add embeds every chunk's content and appends vectors and records
// together. All embeddings are computed before anything is appended, so a
// failing embedding call leaves the index unchanged. The first successful
// add fixes the index dimensionality for its lifetime.
func (m *MemoryIndex) Add(ctx context.Context, chunks []types.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	vectors := make([][]float32, 0, len(chunks))
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		vec, err := m.embedder.Embed(chunk.Content)
		if err != nil {
			return fmt.Errorf("embedding chunk %s: %w", chunk.ChunkID, err)
		}
		vectors = append(vectors, vec)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dim := m.dim
	if dim == 0 {
		dim = len(vectors[0])
	}
	for i, vec := range vectors {
		if len(vec) != dim {
			return fmt.Errorf("embedding for chunk %s has dimension %d, index expects %d",
				chunks[i].ChunkID, len(vec), dim)
		}
	}

	m.dim = dim
	m.vectors = append(m.vectors, vectors...)
	m.chunks = append(m.chunks, chunks...)
	log.Printf("[INDEX] Added %d chunks, index size is now %d", len(chunks), len(m.chunks))
	return nil
}

// Search embeds the query and returns the k nearest chunks by inner
// product, ordered by non-increasing score. An empty index returns no
// results and no error.
func (m *MemoryIndex) Search(ctx context.Context, query string, k int) ([]types.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	empty := len(m.chunks) == 0
	m.mu.RUnlock()
	if empty {
		return nil, nil
	}

	queryVec, err := m.embedder.Embed(query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	scores := make([]float64, len(m.vectors))
	for i, vec := range m.vectors {
		scores[i] = dot(vec, queryVec)
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})

	if k > len(order) {
		k = len(order)
	}
	results := make([]types.ScoredChunk, 0, k)
	for _, idx := range order[:k] {
		results = append(results, types.ScoredChunk{
			Chunk: m.chunks[idx],
			Score: scores[idx],
		})
	}
	return results, nil
}

// SemanticSearch filters Search results by the similarity threshold,
// discarding scores and preserving descending-score order.
func (m *MemoryIndex) SemanticSearch(ctx context.Context, query string, k int, threshold float64) ([]types.DocumentChunk, error) {
	results, err := m.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}

	var chunks []types.DocumentChunk
	for _, r := range results {
		if r.Score >= threshold {
			chunks = append(chunks, r.Chunk)
		}
	}
	return chunks, nil
}

// vectorsBlob is the similarity-structure half of a snapshot.
type vectorsBlob struct {
	Dimension int
	Vectors   [][]float32
}

// metaBlob is the metadata half of a snapshot: the full ordered chunk list
// plus the embedding model identity.
type metaBlob struct {
	ModelName string                `json:"model_name"`
	Dimension int                   `json:"dimension"`
	Chunks    []types.DocumentChunk `json:"chunks"`
}

// Save persists the index as two files keyed by a path prefix:
// <path>.index holds the vectors, <path>.meta holds chunk records, model
// name and dimensionality. Both are written per call and must be loaded
// together.
func (m *MemoryIndex) Save(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	vb := vectorsBlob{Dimension: m.dim, Vectors: m.vectors}
	mb := metaBlob{ModelName: m.embedder.Model(), Dimension: m.dim, Chunks: m.chunks}
	m.mu.RUnlock()

	indexFile, err := os.Create(path + ".index")
	if err != nil {
		return fmt.Errorf("creating index file: %w", err)
	}
	defer indexFile.Close()
	if err := gob.NewEncoder(indexFile).Encode(vb); err != nil {
		return fmt.Errorf("encoding index file: %w", err)
	}

	metaFile, err := os.Create(path + ".meta")
	if err != nil {
		return fmt.Errorf("creating metadata file: %w", err)
	}
	defer metaFile.Close()
	if err := json.NewEncoder(metaFile).Encode(mb); err != nil {
		return fmt.Errorf("encoding metadata file: %w", err)
	}

	log.Printf("[INDEX] Saved %d chunks to %s.{index,meta}", len(mb.Chunks), path)
	return nil
}

// Load restores a snapshot written by Save. Both blobs are read and
// cross-checked before anything is applied: on any error the in-memory
// state is left exactly as it was.
func (m *MemoryIndex) Load(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	indexFile, err := os.Open(path + ".index")
	if err != nil {
		return fmt.Errorf("opening index file: %w", err)
	}
	defer indexFile.Close()

	var vb vectorsBlob
	if err := gob.NewDecoder(indexFile).Decode(&vb); err != nil {
		return fmt.Errorf("decoding index file: %w", err)
	}

	metaFile, err := os.Open(path + ".meta")
	if err != nil {
		return fmt.Errorf("opening metadata file: %w", err)
	}
	defer metaFile.Close()

	var mb metaBlob
	if err := json.NewDecoder(metaFile).Decode(&mb); err != nil {
		return fmt.Errorf("decoding metadata file: %w", err)
	}

	if vb.Dimension != mb.Dimension {
		return fmt.Errorf("snapshot corrupt: index dimension %d does not match metadata dimension %d",
			vb.Dimension, mb.Dimension)
	}
	if len(vb.Vectors) != len(mb.Chunks) {
		return fmt.Errorf("snapshot corrupt: %d vectors but %d chunk records",
			len(vb.Vectors), len(mb.Chunks))
	}
	for i, vec := range vb.Vectors {
		if len(vec) != vb.Dimension {
			return fmt.Errorf("snapshot corrupt: vector %d has dimension %d, expected %d",
				i, len(vec), vb.Dimension)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dim != 0 && vb.Dimension != m.dim {
		return fmt.Errorf("snapshot dimension %d does not match index dimension %d", vb.Dimension, m.dim)
	}

	m.dim = vb.Dimension
	m.vectors = vb.Vectors
	m.chunks = mb.Chunks
	log.Printf("[INDEX] Loaded %d chunks from %s.{index,meta}", len(m.chunks), path)
	return nil
}

func (m *MemoryIndex) Stats(ctx context.Context) (types.IndexStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return types.IndexStats{
		TotalDocuments: len(m.chunks),
		IndexSize:      len(m.vectors),
		Dimension:      m.dim,
		ModelName:      m.embedder.Model(),
	}, nil
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
