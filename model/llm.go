package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

// LLM is the text-completion capability: one prompt in, one completion out.
// The call may fail; retry policy belongs to the caller.
type LLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Model() string
}

// NewLLM selects a completion provider from the environment.
// LLM_PROVIDER=openai uses the OpenAI chat API, anything else falls back
// to a local Ollama instance.
func NewLLM() (LLM, error) {
	if os.Getenv("LLM_PROVIDER") == "openai" {
		llm, err := NewOpenAILLM()
		if err != nil {
			return nil, err
		}
		slog.Info("using OpenAI completions", "model", llm.Model())
		return llm, nil
	}

	llm := NewOllamaLLM()
	slog.Info("using local Ollama completions", "model", llm.Model())
	return llm, nil
}

// OllamaLLM generates completions through the Ollama generate API.
type OllamaLLM struct {
	apiURL string
	model  string
}

type generateRequest struct {
	Model  string `json:"model"`
	System string `json:"system"`
	Prompt string `json:"prompt"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func NewOllamaLLM() *OllamaLLM {
	return &OllamaLLM{
		apiURL: os.Getenv("LLM_URL"),
		model:  os.Getenv("LLM_MODEL"),
	}
}

func (l *OllamaLLM) Model() string {
	return l.model
}

func (l *OllamaLLM) Complete(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	defer func() {
		slog.Debug("LLM completion finished", "took", time.Since(start))
	}()

	reqBody, err := json.Marshal(generateRequest{
		Model:  l.model,
		Prompt: prompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", l.apiURL, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to call LLM: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("LLM API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	var genResp generateResponse
	if err := json.Unmarshal(body, &genResp); err == nil && genResp.Response != "" {
		return genResp.Response, nil
	}

	// Streaming response: collect the chunks into one string.
	var output string
	decoder := json.NewDecoder(bytes.NewReader(body))
	for decoder.More() {
		var chunk generateResponse
		if err := decoder.Decode(&chunk); err != nil {
			break
		}
		output += chunk.Response
	}
	if output == "" {
		return "", fmt.Errorf("LLM returned an empty completion")
	}
	return output, nil
}
