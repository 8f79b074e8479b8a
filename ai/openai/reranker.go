package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/poiesic/askit/ai"
)

// Reranker implements ai.Reranker against a Cohere-compatible /rerank
// endpoint, as served by Infinity or Text Embeddings Inference.
type Reranker struct {
	endpoint string
	model    string
	client   *http.Client
	logger   *slog.Logger
}

// rerankRequest is the wire format of a /rerank call.
type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

// rerankResult carries one scored document. Index refers to the
// position in the request's Documents slice.
type rerankResult struct {
	Index          int     `json:"index"`
	RelevanceScore float64 `json:"relevance_score"`
}

type rerankResponse struct {
	Results []rerankResult `json:"results"`
}

// newReranker is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newReranker(config *ai.Config) (*Reranker, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Reranker{
		endpoint: config.RerankHost + "/rerank",
		model:    config.RerankModel,
		client:   &http.Client{Timeout: config.RerankTimeout},
		logger:   slog.Default().With("component", "openai-reranker"),
	}, nil
}

// NewReranker creates a new reranker using the provided configuration.
//
// Returns ai.Reranker interface to enforce abstraction.
func NewReranker(config *ai.Config) (ai.Reranker, error) {
	return newReranker(config)
}

// Rerank scores every passage against the query and returns the scores
// in passage order. The endpoint responds sorted by score, so results
// are mapped back through their index field.
func (r *Reranker) Rerank(ctx context.Context, query string, passages []string) ([]float64, error) {
	if len(passages) == 0 {
		return []float64{}, nil
	}

	r.logger.Debug("reranking passages", "count", len(passages))

	payload, err := json.Marshal(rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: passages,
		TopN:      len(passages),
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		r.logger.Error("rerank request failed", "err", err)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		r.logger.Error("rerank request rejected", "status", resp.StatusCode)
		return nil, fmt.Errorf("rerank: unexpected status %d: %s", resp.StatusCode, truncateBody(body))
	}

	var parsed rerankResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("rerank: malformed response: %w", err)
	}

	scores := make([]float64, len(passages))
	seen := make([]bool, len(passages))
	for _, res := range parsed.Results {
		if res.Index < 0 || res.Index >= len(passages) {
			return nil, fmt.Errorf("rerank: result index %d out of range", res.Index)
		}
		scores[res.Index] = res.RelevanceScore
		seen[res.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("rerank: no score returned for passage %d", i)
		}
	}

	return scores, nil
}

// truncateBody bounds error messages built from response bodies.
func truncateBody(b []byte) string {
	const max = 256
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
