// Package loader turns raw document files (PDF, DOCX, email) into
// overlapping token-bounded chunks ready for indexing.
package loader

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"docquery/types"
)

// DocumentLoader extracts text from supported file formats and chunks it.
type DocumentLoader struct {
	cfg     types.Config
	chunker *Chunker
}

func New(cfg types.Config) (*DocumentLoader, error) {
	tokenizer, err := NewCL100KTokenizer()
	if err != nil {
		return nil, err
	}
	return NewWithTokenizer(cfg, tokenizer)
}

func NewWithTokenizer(cfg types.Config, tokenizer Tokenizer) (*DocumentLoader, error) {
	chunker, err := NewChunker(cfg.ChunkSize, cfg.ChunkOverlap, tokenizer)
	if err != nil {
		return nil, err
	}
	return &DocumentLoader{
		cfg:     cfg,
		chunker: chunker,
	}, nil
}

// ProcessPDF extracts text page by page and chunks each page separately.
// Chunk sources are suffixed with the page number for citation.
func (l *DocumentLoader) ProcessPDF(path string) ([]types.DocumentChunk, error) {
	src := path
	if l.cfg.PDFCropTop > 0 || l.cfg.PDFCropBottom > 0 {
		cropped := filepath.Join(os.TempDir(), "crop_"+filepath.Base(path))
		if err := cropHeaderFooter(path, cropped, l.cfg.PDFCropTop, l.cfg.PDFCropBottom); err != nil {
			return nil, err
		}
		defer os.Remove(cropped)
		src = cropped
	}

	pages, err := extractPDFPages(src)
	if err != nil {
		return nil, err
	}

	base := fileStem(path)
	var chunks []types.DocumentChunk
	for i, text := range pages {
		if strings.TrimSpace(text) == "" {
			continue
		}
		pageNr := i + 1
		source := fmt.Sprintf("%s_page_%d", base, pageNr)
		chunks = append(chunks, l.chunker.Chunk(text, source, pageNr, "", nil)...)
	}
	return chunks, nil
}

// ProcessDOCX joins all non-empty paragraphs into one text blob and chunks
// it as a single unit tagged "document".
func (l *DocumentLoader) ProcessDOCX(path string) ([]types.DocumentChunk, error) {
	text, err := readDOCXText(path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return l.chunker.Chunk(text, fileStem(path), 0, "document", nil), nil
}

// ProcessEmail chunks the message body tagged "email", carrying the
// subject, sender and date headers as chunk metadata.
func (l *DocumentLoader) ProcessEmail(path string) ([]types.DocumentChunk, error) {
	email, err := readEmail(path)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(email.Body) == "" {
		return nil, nil
	}

	metadata := map[string]string{
		"subject": email.Subject,
		"sender":  email.Sender,
		"date":    email.Date,
		"type":    "email",
	}
	return l.chunker.Chunk(email.Body, fileStem(path), 0, "email", metadata), nil
}

// ProcessFile dispatches on the file extension. Unsupported extensions
// yield no chunks and no error.
func (l *DocumentLoader) ProcessFile(path string) ([]types.DocumentChunk, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return l.ProcessPDF(path)
	case ".docx":
		return l.ProcessDOCX(path)
	case ".eml":
		return l.ProcessEmail(path)
	default:
		return nil, nil
	}
}

// ProcessDirectory extracts and chunks every supported file in the
// directory. A failing file is logged and contributes zero chunks; it
// never aborts the batch.
func (l *DocumentLoader) ProcessDirectory(dir string) ([]types.DocumentChunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var all []types.DocumentChunk
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		chunks, err := l.ProcessFile(path)
		if err != nil {
			log.Printf("[LOADER] Error processing %s: %v", path, err)
			continue
		}
		if len(chunks) > 0 {
			log.Printf("[LOADER] Processed %s: %d chunks", path, len(chunks))
		}
		all = append(all, chunks...)
	}
	return all, nil
}

// fileStem is the file name without directory or extension.
func fileStem(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
