// Package agent wires retrieval, context assembly and the LLM call into
// the query system exposed to the API and loader layers.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"docquery/loader"
	"docquery/model"
	"docquery/store"
	"docquery/types"
)

const promptTemplate = `You are an expert AI assistant specializing in insurance, legal, HR, and compliance domains.
Your task is to answer queries based on the provided document context.

## Context:
The following documents have been retrieved based on the user's query:
%s

## User Query:
%s

## Instructions:
1. Analyze the provided documents carefully
2. Extract relevant information that directly addresses the query
3. If the documents don't contain sufficient information, state this clearly
4. Provide specific references to document sections when possible

## Response:`

// System is the retrieval and response assembler. It owns the index and
// loader configuration; both are mutated only by Ingest. Queries never
// fail outright: every call yields a well-formed QueryResponse.
type System struct {
	logger *slog.Logger
	store  store.Storer
	loader *loader.DocumentLoader
	llm    model.LLM
	cfg    types.Config
}

func New(cfg types.Config, storer store.Storer, docLoader *loader.DocumentLoader, llm model.LLM) *System {
	return &System{
		logger: slog.Default(),
		store:  storer,
		loader: docLoader,
		llm:    llm,
		cfg:    cfg,
	}
}

// Ingest extracts and chunks every supported file in the directory and
// adds the result to the index.
func (s *System) Ingest(ctx context.Context, dir string) error {
	s.logger.Info("processing documents", "dir", dir)

	chunks, err := s.loader.ProcessDirectory(dir)
	if err != nil {
		return err
	}
	s.logger.Info("processed document chunks", "count", len(chunks))

	if err := s.store.Add(ctx, chunks); err != nil {
		return fmt.Errorf("adding chunks to index: %w", err)
	}
	return nil
}

// Query retrieves the chunks most similar to the query text and asks the
// LLM to synthesize an answer grounded in them. Zero or negative topK and
// threshold fall back to the configured defaults.
func (s *System) Query(ctx context.Context, query string, topK int, threshold float64) types.QueryResponse {
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	if threshold <= 0 {
		threshold = s.cfg.Threshold
	}

	chunks, err := s.store.SemanticSearch(ctx, query, topK, threshold)
	if err != nil {
		s.logger.Error("semantic search failed", "error", err)
		return types.QueryResponse{
			Answer:          "Error processing your query. Please try again.",
			Confidence:      0.0,
			Sources:         []string{},
			Reasoning:       fmt.Sprintf("Error occurred during retrieval: %v", err),
			RelevantClauses: []string{},
			Domain:          "unknown",
			Timestamp:       time.Now(),
		}
	}

	if len(chunks) == 0 {
		return types.QueryResponse{
			Answer:          "No relevant documents found to answer your query.",
			Confidence:      0.0,
			Sources:         []string{},
			Reasoning:       "No documents matched the query criteria.",
			RelevantClauses: []string{},
			Domain:          "unknown",
			Timestamp:       time.Now(),
		}
	}

	docContext := buildContext(chunks)
	prompt := fmt.Sprintf(promptTemplate, docContext, query)

	answer, err := s.llm.Complete(ctx, prompt)
	if err != nil {
		s.logger.Error("LLM completion failed", "error", err)
		return types.QueryResponse{
			Answer:          "Error processing your query. Please try again.",
			Confidence:      0.0,
			Sources:         sourcesOf(chunks),
			Reasoning:       fmt.Sprintf("Error occurred during response generation: %v", err),
			RelevantClauses: []string{},
			Domain:          "unknown",
			Timestamp:       time.Now(),
		}
	}

	confidence := float64(len(chunks)) / float64(topK)
	if confidence > 1.0 {
		confidence = 1.0
	}

	return types.QueryResponse{
		Answer:          answer,
		Confidence:      confidence,
		Sources:         sourcesOf(chunks),
		Reasoning:       fmt.Sprintf("Found %d relevant document chunks that match the query.", len(chunks)),
		RelevantClauses: relevantClauses(chunks),
		Domain:          classifyDomain(query, answer),
		Timestamp:       time.Now(),
	}
}

// BatchQuery runs each query independently; one failing query does not
// prevent the rest from being processed.
func (s *System) BatchQuery(ctx context.Context, queries []string) []types.QueryResponse {
	responses := make([]types.QueryResponse, 0, len(queries))
	for _, q := range queries {
		responses = append(responses, s.Query(ctx, q, 0, 0))
	}
	return responses
}

// Save persists the index under the given path prefix.
func (s *System) Save(ctx context.Context, path string) error {
	if err := s.store.Save(ctx, path); err != nil {
		return err
	}
	s.logger.Info("system saved", "path", path)
	return nil
}

// Load restores the index from the given path prefix. On failure the
// in-memory state is left untouched.
func (s *System) Load(ctx context.Context, path string) error {
	if err := s.store.Load(ctx, path); err != nil {
		return err
	}
	s.logger.Info("system loaded", "path", path)
	return nil
}

// Stats reports index statistics along with the chunking and LLM
// configuration.
func (s *System) Stats(ctx context.Context) (types.SystemStats, error) {
	indexStats, err := s.store.Stats(ctx)
	if err != nil {
		return types.SystemStats{}, err
	}
	return types.SystemStats{
		VectorStore:  indexStats,
		LLMModel:     s.llm.Model(),
		ChunkSize:    s.cfg.ChunkSize,
		ChunkOverlap: s.cfg.ChunkOverlap,
	}, nil
}

// buildContext assembles the labeled context string handed to the LLM,
// one block per retrieved chunk in result order.
func buildContext(chunks []types.DocumentChunk) string {
	var sb strings.Builder
	for i, chunk := range chunks {
		fmt.Fprintf(&sb, "Document %d: %s\n", i+1, chunk.Source)
		fmt.Fprintf(&sb, "Content: %s\n", chunk.Content)
		if chunk.PageNumber > 0 {
			fmt.Fprintf(&sb, "Page: %d\n", chunk.PageNumber)
		}
		if chunk.Section != "" {
			fmt.Fprintf(&sb, "Section: %s\n", chunk.Section)
		}
		if len(chunk.Metadata) > 0 {
			meta, err := json.Marshal(chunk.Metadata)
			if err == nil {
				fmt.Fprintf(&sb, "Metadata: %s\n", meta)
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// sourcesOf lists each retrieved chunk's source identifier in result
// order, duplicates included.
func sourcesOf(chunks []types.DocumentChunk) []string {
	sources := make([]string, len(chunks))
	for i, chunk := range chunks {
		sources[i] = chunk.Source
	}
	return sources
}

const clauseLength = 100

// relevantClauses excerpts the first hundred characters of the top three
// chunks.
func relevantClauses(chunks []types.DocumentChunk) []string {
	n := len(chunks)
	if n > 3 {
		n = 3
	}
	clauses := make([]string, 0, n)
	for _, chunk := range chunks[:n] {
		content := []rune(chunk.Content)
		if len(content) > clauseLength {
			content = content[:clauseLength]
		}
		clauses = append(clauses, string(content)+"...")
	}
	return clauses
}
