package loader

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkoukk/tiktoken-go"

	"docquery/types"
)

// Tokenizer is the tokenization capability the chunker slides over. It
// must be deterministic for a fixed vocabulary so chunk boundaries are
// reproducible across runs.
type Tokenizer interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

type tiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewCL100KTokenizer returns a Tokenizer backed by the cl100k_base
// vocabulary.
func NewCL100KTokenizer() (Tokenizer, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("loading cl100k_base encoding: %w", err)
	}
	return &tiktokenTokenizer{enc: enc}, nil
}

func (t *tiktokenTokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

func (t *tiktokenTokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// Chunker splits text into overlapping token-bounded windows.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	tokenizer    Tokenizer
}

// NewChunker validates the window parameters up front: an overlap equal to
// or larger than the chunk size would make the window stride zero or
// negative and the loop would never progress.
func NewChunker(chunkSize, chunkOverlap int, tokenizer Tokenizer) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if chunkOverlap < 0 {
		return nil, fmt.Errorf("chunk overlap must not be negative, got %d", chunkOverlap)
	}
	if chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be less than chunk size %d", chunkOverlap, chunkSize)
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		tokenizer:    tokenizer,
	}, nil
}

// Chunk tokenizes text and emits one DocumentChunk per window of up to
// chunkSize tokens, advancing by chunkSize-chunkOverlap tokens each step.
// A final partial window is emitted when it carries tokens no earlier
// window covered; the walk stops once a window reaches the end of the
// sequence, so no pure-overlap tail is produced. Windows decoding to
// whitespace-only text are dropped. Chunk ids are sequential per call:
// "<source>_chunk_<n>".
func (c *Chunker) Chunk(text, source string, pageNumber int, section string, metadata map[string]string) []types.DocumentChunk {
	tokens := c.tokenizer.Encode(text)

	var chunks []types.DocumentChunk
	step := c.chunkSize - c.chunkOverlap
	seq := 0

	for i := 0; i < len(tokens); i += step {
		end := i + c.chunkSize
		if end > len(tokens) {
			end = len(tokens)
		}

		content := c.tokenizer.Decode(tokens[i:end])
		if strings.TrimSpace(content) != "" {
			chunks = append(chunks, types.DocumentChunk{
				Content:    content,
				Source:     source,
				ChunkID:    fmt.Sprintf("%s_chunk_%d", source, seq),
				PageNumber: pageNumber,
				Section:    section,
				Timestamp:  time.Now(),
				Metadata:   metadata,
			})
			seq++
		}

		if end == len(tokens) {
			break
		}
	}

	return chunks
}
