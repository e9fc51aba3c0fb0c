package model

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	openai "github.com/sashabaranov/go-openai"
)

const (
	defaultOpenAIEmbeddingModel = string(openai.SmallEmbedding3)
	defaultOpenAIChatModel      = "gpt-4o-mini"
)

// OpenAIEmbedder computes embeddings through the OpenAI embeddings API.
// Transient failures are retried with exponential backoff.
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

func NewOpenAIEmbedder() (*OpenAIEmbedder, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	model := os.Getenv("OPENAI_EMBEDDING_MODEL")
	if model == "" {
		model = defaultOpenAIEmbeddingModel
	}

	return &OpenAIEmbedder{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

func (e *OpenAIEmbedder) Model() string {
	return e.model
}

func (e *OpenAIEmbedder) Embed(text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var vector []float32
	operation := func() error {
		resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: []string{text},
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 {
			return backoff.Permanent(fmt.Errorf("empty embedding response"))
		}
		vector = resp.Data[0].Embedding
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return nil, fmt.Errorf("openai embedding failed: %w", err)
	}

	vec64 := make([]float64, len(vector))
	for i, v := range vector {
		vec64[i] = float64(v)
	}
	return normalize(vec64), nil
}

// OpenAILLM generates completions through the OpenAI chat API.
type OpenAILLM struct {
	client *openai.Client
	model  string
}

func NewOpenAILLM() (*OpenAILLM, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable not set")
	}

	model := os.Getenv("OPENAI_CHAT_MODEL")
	if model == "" {
		model = defaultOpenAIChatModel
	}

	return &OpenAILLM{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

func (l *OpenAILLM) Model() string {
	return l.model
}

func (l *OpenAILLM) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: l.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned an empty completion")
	}
	return resp.Choices[0].Message.Content, nil
}
