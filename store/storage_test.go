package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docquery/types"
)

// stubEmbedder returns fixed vectors per text so similarity ordering is
// fully deterministic in tests.
type stubEmbedder struct {
	vectors map[string][]float32
	err     error
}

func (s *stubEmbedder) Embed(text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	if vec, ok := s.vectors[text]; ok {
		return vec, nil
	}
	return []float32{1, 0, 0}, nil
}

func (s *stubEmbedder) Model() string { return "stub-embedder" }

func chunkFor(content string) types.DocumentChunk {
	return types.DocumentChunk{
		Content: content,
		Source:  "test.pdf",
		ChunkID: content + "_chunk_0",
	}
}

func TestMemoryIndexAddAndStats(t *testing.T) {
	idx := NewMemoryIndex(&stubEmbedder{vectors: map[string][]float32{
		"alpha": {1, 0, 0},
		"beta":  {0, 1, 0},
	}})
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []types.DocumentChunk{chunkFor("alpha"), chunkFor("beta")}))

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalDocuments)
	assert.Equal(t, 2, stats.IndexSize)
	assert.Equal(t, 3, stats.Dimension)
	assert.Equal(t, "stub-embedder", stats.ModelName)
}

func TestMemoryIndexAddEmbedFailureLeavesIndexUnchanged(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{"alpha": {1, 0, 0}}}
	idx := NewMemoryIndex(emb)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []types.DocumentChunk{chunkFor("alpha")}))

	emb.err = fmt.Errorf("embedding backend down")
	err := idx.Add(ctx, []types.DocumentChunk{chunkFor("beta")})
	require.Error(t, err)

	emb.err = nil
	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDocuments)
	assert.Equal(t, 1, stats.IndexSize)
}

func TestMemoryIndexRejectedFirstAddDoesNotFixDimension(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{
		"wide":   {1, 0, 0},
		"narrow": {0, 1},
	}}
	idx := NewMemoryIndex(emb)
	ctx := context.Background()

	err := idx.Add(ctx, []types.DocumentChunk{chunkFor("wide"), chunkFor("narrow")})
	require.Error(t, err)

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalDocuments)
	assert.Equal(t, 0, stats.Dimension, "a rejected batch must not pin the index dimension")

	// The empty index must still accept a consistent batch of a
	// different width.
	require.NoError(t, idx.Add(ctx, []types.DocumentChunk{chunkFor("narrow")}))

	stats, err = idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDocuments)
	assert.Equal(t, 2, stats.Dimension)
}

func TestMemoryIndexSearchOrdersByScore(t *testing.T) {
	idx := NewMemoryIndex(&stubEmbedder{vectors: map[string][]float32{
		"exact":   {1, 0, 0},
		"partial": {0.5, 0.5, 0},
		"far":     {0, 1, 0},
		"query":   {1, 0, 0},
	}})
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []types.DocumentChunk{
		chunkFor("far"), chunkFor("exact"), chunkFor("partial"),
	}))

	results, err := idx.Search(ctx, "query", 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "exact", results[0].Chunk.Content)
	assert.Equal(t, "partial", results[1].Chunk.Content)
	assert.Equal(t, "far", results[2].Chunk.Content)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.InDelta(t, 0.5, results[1].Score, 1e-9)
	assert.InDelta(t, 0.0, results[2].Score, 1e-9)
}

func TestMemoryIndexSearchCapsAtK(t *testing.T) {
	idx := NewMemoryIndex(&stubEmbedder{vectors: map[string][]float32{}})
	ctx := context.Background()

	var chunks []types.DocumentChunk
	for i := 0; i < 10; i++ {
		chunks = append(chunks, chunkFor(fmt.Sprintf("doc %d", i)))
	}
	require.NoError(t, idx.Add(ctx, chunks))

	results, err := idx.Search(ctx, "query", 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestMemoryIndexSearchEmptyIndex(t *testing.T) {
	idx := NewMemoryIndex(&stubEmbedder{})

	results, err := idx.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryIndexSemanticSearchAppliesThreshold(t *testing.T) {
	idx := NewMemoryIndex(&stubEmbedder{vectors: map[string][]float32{
		"exact":   {1, 0, 0},
		"partial": {0.5, 0.5, 0},
		"far":     {0, 1, 0},
		"query":   {1, 0, 0},
	}})
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []types.DocumentChunk{
		chunkFor("far"), chunkFor("exact"), chunkFor("partial"),
	}))

	chunks, err := idx.SemanticSearch(ctx, "query", 10, 0.3)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "exact", chunks[0].Content)
	assert.Equal(t, "partial", chunks[1].Content)

	chunks, err = idx.SemanticSearch(ctx, "query", 10, 0.9)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "exact", chunks[0].Content)

	chunks, err = idx.SemanticSearch(ctx, "query", 10, 1.5)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestMemoryIndexSaveLoadRoundTrip(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{
		"alpha": {1, 0, 0},
		"beta":  {0, 1, 0},
		"query": {1, 0, 0},
	}}
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshot")

	src := NewMemoryIndex(emb)
	require.NoError(t, src.Add(ctx, []types.DocumentChunk{chunkFor("alpha"), chunkFor("beta")}))
	require.NoError(t, src.Save(ctx, path))

	dst := NewMemoryIndex(emb)
	require.NoError(t, dst.Load(ctx, path))

	srcStats, err := src.Stats(ctx)
	require.NoError(t, err)
	dstStats, err := dst.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, srcStats, dstStats)

	results, err := dst.Search(ctx, "query", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "alpha", results[0].Chunk.Content)
	assert.Equal(t, "alpha_chunk_0", results[0].Chunk.ChunkID)
}

func TestMemoryIndexLoadMissingFiles(t *testing.T) {
	idx := NewMemoryIndex(&stubEmbedder{})
	err := idx.Load(context.Background(), filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
}

func TestMemoryIndexLoadCorruptSnapshotLeavesStateIntact(t *testing.T) {
	emb := &stubEmbedder{vectors: map[string][]float32{"alpha": {1, 0, 0}}}
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshot")

	idx := NewMemoryIndex(emb)
	require.NoError(t, idx.Add(ctx, []types.DocumentChunk{chunkFor("alpha")}))
	require.NoError(t, idx.Save(ctx, path))

	require.NoError(t, os.WriteFile(path+".meta", []byte("{not json"), 0o644))

	err := idx.Load(ctx, path)
	require.Error(t, err)

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDocuments)
	assert.Equal(t, 1, stats.IndexSize)
}

func TestMemoryIndexLoadDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "snapshot")

	src := NewMemoryIndex(&stubEmbedder{vectors: map[string][]float32{"alpha": {1, 0, 0}}})
	require.NoError(t, src.Add(ctx, []types.DocumentChunk{chunkFor("alpha")}))
	require.NoError(t, src.Save(ctx, path))

	dst := NewMemoryIndex(&stubEmbedder{vectors: map[string][]float32{"beta": {0, 1}}})
	require.NoError(t, dst.Add(ctx, []types.DocumentChunk{chunkFor("beta")}))

	err := dst.Load(ctx, path)
	require.Error(t, err)

	stats, err := dst.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalDocuments)
	assert.Equal(t, 2, stats.Dimension)
}
