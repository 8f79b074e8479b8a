package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/poiesic/askit/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReranker(t *testing.T, serverURL string) *Reranker {
	t.Helper()

	cfg := ai.NewConfig(ai.WithRerankHost(serverURL))
	reranker, err := newReranker(cfg)
	require.NoError(t, err)
	return reranker
}

func TestRerankerRerank(t *testing.T) {
	var captured rerankRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rerank", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		// Respond sorted by score, the way real rerank services do.
		resp := rerankResponse{Results: []rerankResult{
			{Index: 2, RelevanceScore: 4.5},
			{Index: 0, RelevanceScore: -1.25},
			{Index: 1, RelevanceScore: -7.0},
		}}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	reranker := newTestReranker(t, server.URL)

	passages := []string{"first passage", "second passage", "third passage"}
	scores, err := reranker.Rerank(context.Background(), "test query", passages)
	require.NoError(t, err)

	// Scores come back in passage order, not score order.
	assert.Equal(t, []float64{-1.25, -7.0, 4.5}, scores)

	assert.Equal(t, "bge-reranker-v2-m3", captured.Model)
	assert.Equal(t, "test query", captured.Query)
	assert.Equal(t, passages, captured.Documents)
	assert.Equal(t, len(passages), captured.TopN)
}

func TestRerankerRerank_EmptyPassages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for empty passages")
	}))
	defer server.Close()

	reranker := newTestReranker(t, server.URL)

	scores, err := reranker.Rerank(context.Background(), "query", nil)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestRerankerRerank_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	reranker := newTestReranker(t, server.URL)

	_, err := reranker.Rerank(context.Background(), "query", []string{"passage"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestRerankerRerank_MalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	reranker := newTestReranker(t, server.URL)

	_, err := reranker.Rerank(context.Background(), "query", []string{"passage"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed response")
}

func TestRerankerRerank_MissingScore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := rerankResponse{Results: []rerankResult{
			{Index: 0, RelevanceScore: 1.0},
		}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	reranker := newTestReranker(t, server.URL)

	_, err := reranker.Rerank(context.Background(), "query", []string{"one", "two"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no score returned for passage 1")
}

func TestRerankerRerank_IndexOutOfRange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := rerankResponse{Results: []rerankResult{
			{Index: 5, RelevanceScore: 1.0},
		}}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	reranker := newTestReranker(t, server.URL)

	_, err := reranker.Rerank(context.Background(), "query", []string{"one"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}
