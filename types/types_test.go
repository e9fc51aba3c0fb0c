package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromEnvDefaults(t *testing.T) {
	cfg, err := ConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, DefaultChunkSize, cfg.ChunkSize)
	assert.Equal(t, DefaultChunkOverlap, cfg.ChunkOverlap)
	assert.Equal(t, DefaultTopK, cfg.TopK)
	assert.Equal(t, DefaultThreshold, cfg.Threshold)
	assert.Equal(t, "memory", cfg.StoreBackend)
	assert.Equal(t, 3*time.Second, cfg.MonitoringTime)
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("CHUNK_OVERLAP", "50")
	t.Setenv("TOP_K", "10")
	t.Setenv("SEARCH_THRESHOLD", "0.5")
	t.Setenv("STORE_BACKEND", "postgres")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.ChunkSize)
	assert.Equal(t, 50, cfg.ChunkOverlap)
	assert.Equal(t, 10, cfg.TopK)
	assert.Equal(t, 0.5, cfg.Threshold)
	assert.Equal(t, "postgres", cfg.StoreBackend)
}

func TestConfigFromEnvRejectsBadChunking(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "100")
	t.Setenv("CHUNK_OVERLAP", "100")

	_, err := ConfigFromEnv()
	require.Error(t, err)
}

func TestConfigFromEnvUnparseableFallsBackToDefault(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "not-a-number")

	cfg, err := ConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, DefaultChunkSize, cfg.ChunkSize)
}

func TestConfigValidate(t *testing.T) {
	valid := Config{ChunkSize: 1000, ChunkOverlap: 200, TopK: 5}
	require.NoError(t, valid.Validate())

	tests := []Config{
		{ChunkSize: 0, ChunkOverlap: 0, TopK: 5},
		{ChunkSize: 100, ChunkOverlap: -1, TopK: 5},
		{ChunkSize: 100, ChunkOverlap: 100, TopK: 5},
		{ChunkSize: 100, ChunkOverlap: 150, TopK: 5},
		{ChunkSize: 100, ChunkOverlap: 20, TopK: 0},
	}
	for _, cfg := range tests {
		assert.Errorf(t, cfg.Validate(), "config %+v should be rejected", cfg)
	}
}

func TestQueryParamsValidation(t *testing.T) {
	params := &QueryParams{Query: "what is covered?", TopK: 5, Threshold: 0.3}
	assert.Nil(t, params.Validate())

	missing := &QueryParams{}
	errs := missing.Validate()
	require.NotNil(t, errs)
	assert.Contains(t, errs, "Query")

	badThreshold := &QueryParams{Query: "q", Threshold: 1.5}
	assert.NotNil(t, badThreshold.Validate())

	badTopK := &QueryParams{Query: "q", TopK: -1}
	assert.NotNil(t, badTopK.Validate())
}

func TestBatchQueryParamsValidation(t *testing.T) {
	ok := &BatchQueryParams{Queries: []string{"first", "second"}}
	assert.Nil(t, ok.Validate())

	empty := &BatchQueryParams{}
	assert.NotNil(t, empty.Validate())

	blankEntry := &BatchQueryParams{Queries: []string{"first", ""}}
	assert.NotNil(t, blankEntry.Validate())
}

func TestSnapshotParamsValidation(t *testing.T) {
	ok := &SnapshotParams{Path: "backups/system"}
	assert.Nil(t, ok.Validate())

	missing := &SnapshotParams{}
	errs := missing.Validate()
	require.NotNil(t, errs)
	assert.Contains(t, errs, "Path")
}
