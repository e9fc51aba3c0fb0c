package model

import (
	"log/slog"
	"os"
)

// EmbedderInterface is the embedding capability: text in, fixed-dimension
// vector out. Implementations must be deterministic for a fixed model
// identifier and should return L2-normalized vectors so that inner-product
// similarity behaves like cosine similarity.
type EmbedderInterface interface {
	Embed(text string) ([]float32, error)
	Model() string
}

// NewEmbedder selects an embedding provider from the environment.
// EMBEDDING_PROVIDER=openai uses the OpenAI API, anything else falls back
// to a local Ollama instance.
func NewEmbedder() (EmbedderInterface, error) {
	if os.Getenv("EMBEDDING_PROVIDER") == "openai" {
		embedder, err := NewOpenAIEmbedder()
		if err != nil {
			return nil, err
		}
		slog.Info("using OpenAI embeddings", "model", embedder.Model())
		return embedder, nil
	}

	embedder := NewOllamaEmbedder()
	slog.Info("using local Ollama embeddings", "model", embedder.Model())
	return embedder, nil
}
