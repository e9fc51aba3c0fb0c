package types

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// DocumentChunk is the atomic unit of retrieval: a bounded span of text
// extracted from one source document.
type DocumentChunk struct {
	Content    string            `json:"content"`
	Source     string            `json:"source"`
	ChunkID    string            `json:"chunk_id"`
	PageNumber int               `json:"page_number,omitempty"`
	Section    string            `json:"section,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// ScoredChunk pairs a chunk with its inner-product similarity score.
// Higher score means more similar.
type ScoredChunk struct {
	Chunk DocumentChunk `json:"chunk"`
	Score float64       `json:"score"`
}

// IndexStats describes the state of a vector index. TotalDocuments and
// IndexSize must always be equal; a mismatch indicates a partial add.
type IndexStats struct {
	TotalDocuments int    `json:"total_documents"`
	IndexSize      int    `json:"index_size"`
	Dimension      int    `json:"dimension"`
	ModelName      string `json:"model_name"`
}

// SystemStats is the full stats record reported by the query system.
type SystemStats struct {
	VectorStore  IndexStats `json:"vector_store"`
	LLMModel     string     `json:"llm_model"`
	ChunkSize    int        `json:"chunk_size"`
	ChunkOverlap int        `json:"chunk_overlap"`
}

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultTopK         = 5
	DefaultThreshold    = 0.3
	DefaultEmbeddingDim = 768
)

type Config struct {
	ChunkSize    int
	ChunkOverlap int
	TopK         int
	Threshold    float64

	// Index persistence prefix: Save writes <IndexPath>.index and <IndexPath>.meta.
	IndexPath    string
	StoreBackend string // "memory" or "postgres"
	EmbeddingDim int    // column width for the postgres backend

	MonitoringTime time.Duration
	SourceDir      string
	ArchiveDir     string
	BadDir         string

	// Header/footer crop in points applied to PDFs before extraction.
	// Zero disables cropping.
	PDFCropTop    float64
	PDFCropBottom float64
}

// ConfigFromEnv builds a Config from environment variables, applying
// defaults for anything unset. Chunking parameters are validated here so a
// bad configuration fails at startup instead of looping during ingestion.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		ChunkSize:      envInt("CHUNK_SIZE", DefaultChunkSize),
		ChunkOverlap:   envInt("CHUNK_OVERLAP", DefaultChunkOverlap),
		TopK:           envInt("TOP_K", DefaultTopK),
		Threshold:      envFloat("SEARCH_THRESHOLD", DefaultThreshold),
		IndexPath:      envStr("INDEX_PATH", "backups/system"),
		StoreBackend:   envStr("STORE_BACKEND", "memory"),
		EmbeddingDim:   envInt("EMBEDDING_DIM", DefaultEmbeddingDim),
		MonitoringTime: time.Duration(envInt("MONITORING_TIME_SEC", 3)) * time.Second,
		SourceDir:      envStr("LOADER_SOURCE_DIR", "source"),
		ArchiveDir:     envStr("LOADER_ARCHIVE_DIR", "archive"),
		BadDir:         envStr("LOADER_BAD_DIR", "bad"),
		PDFCropTop:     envFloat("PDF_CROP_TOP", 0),
		PDFCropBottom:  envFloat("PDF_CROP_BOTTOM", 0),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces the chunking invariants: both parameters positive and
// overlap strictly smaller than chunk size, otherwise the sliding window
// makes no progress.
func (c Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("chunk overlap must not be negative, got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be less than chunk size %d", c.ChunkOverlap, c.ChunkSize)
	}
	if c.TopK <= 0 {
		return fmt.Errorf("top_k must be positive, got %d", c.TopK)
	}
	return nil
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
