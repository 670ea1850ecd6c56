package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/codesearch-dev/codesearch/internal/cserr"
)

// Ollama request/response shapes for POST /api/embed (batch) and the
// legacy single-prompt /api/embeddings, per Ollama's HTTP API.
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// OllamaConfig configures the Ollama HTTP adapter.
type OllamaConfig struct {
	BaseURL    string
	Model      string
	Dimensions int
	Timeout    time.Duration
}

// OllamaEmbedder calls a local Ollama daemon's embeddings endpoint.
// The model weights themselves are an out-of-scope external
// collaborator (spec.md §1); this adapter only speaks the wire
// protocol.
type OllamaEmbedder struct {
	client *http.Client
	cfg    OllamaConfig
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder builds an OllamaEmbedder, applying defaults for
// any zero-valued config fields.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://127.0.0.1:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 768
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OllamaEmbedder{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
	}
}

func (e *OllamaEmbedder) Dimensions() int { return e.cfg.Dimensions }
func (e *OllamaEmbedder) ModelID() string { return e.cfg.Model }
func (e *OllamaEmbedder) Close() error    { return nil }

// Available pings Ollama's /api/tags endpoint.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// EmbedBatch sends one /api/embed request for the whole batch. Callers
// are expected to have already sized batches via AutoBatchSize.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.cfg.Model, Input: texts})
	if err != nil {
		return nil, cserr.EmbeddingFailed(len(texts), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, cserr.EmbeddingFailed(len(texts), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, cserr.EmbeddingFailed(len(texts), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, cserr.EmbeddingFailed(len(texts), fmt.Errorf("ollama returned %d: %s", resp.StatusCode, raw))
	}

	var out ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, cserr.EmbeddingFailed(len(texts), err)
	}
	if len(out.Embeddings) != len(texts) {
		return nil, cserr.EmbeddingFailed(len(texts), fmt.Errorf("expected %d embeddings, got %d", len(texts), len(out.Embeddings)))
	}
	return out.Embeddings, nil
}
