package rag

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/poiesic/askit/ai"
	"github.com/poiesic/askit/core"
)

const (
	// rewriteHistoryLimit caps the transcript at the last ten messages
	// (five turns).
	rewriteHistoryLimit = 10

	rewriteAttempts = 3

	rewriteTemperature = 0.0
)

// DefaultRewriteMaxTokens bounds the rewritten question's length.
const DefaultRewriteMaxTokens = 256

// rewriteResponse matches the JSON object the rewrite prompt demands.
type rewriteResponse struct {
	StandaloneQuestion string `json:"standalone_question"`
}

// Rewriter folds conversation history into a standalone question so
// retrieval works from a query that names its own subject. It never fails:
// every internal problem degrades to returning the original query.
type Rewriter struct {
	generator ai.Generator
	maxTokens int
	logger    *slog.Logger
}

// NewRewriter creates a rewriter on top of the generation service.
func NewRewriter(generator ai.Generator) (*Rewriter, error) {
	if generator == nil {
		return nil, ErrGeneratorRequired
	}

	return &Rewriter{
		generator: generator,
		maxTokens: DefaultRewriteMaxTokens,
		logger:    slog.Default().With("component", "rewriter"),
	}, nil
}

// Rewrite returns the standalone form of query given the session history.
// An empty or blank history returns query unchanged, byte for byte.
func (r *Rewriter) Rewrite(ctx context.Context, history []core.Message, query string) string {
	if !hasDialogue(history) {
		return query
	}
	if len(history) > rewriteHistoryLimit {
		history = history[len(history)-rewriteHistoryLimit:]
	}

	req := ai.GenerationRequest{
		System:      buildRewriteSystemPrompt(),
		Prompt:      buildRewriteUserPrompt(history, query),
		Temperature: rewriteTemperature,
		MaxTokens:   r.maxTokens,
		JSONMode:    true,
	}

	// A failed model call keeps the original query; only malformed JSON
	// earns another attempt.
	for attempt := 0; attempt < rewriteAttempts; attempt++ {
		response, err := r.generator.Generate(ctx, req)
		if err != nil {
			r.logger.Warn("query rewrite failed, keeping original",
				"attempt", attempt+1, "err", err)
			return query
		}

		text := stripCodeFences(response)
		text = repairJSON(text)

		var parsed rewriteResponse
		if err := json.Unmarshal([]byte(text), &parsed); err != nil {
			r.logger.Warn("error parsing rewrite response",
				"attempt", attempt+1,
				"response", text,
				"err", err)
			continue
		}

		rewritten := strings.TrimSpace(parsed.StandaloneQuestion)
		if rewritten == "" {
			r.logger.Debug("rewrite came back empty, keeping original")
			return query
		}
		if estimateTokens(rewritten) > r.maxTokens {
			r.logger.Warn("rewrite exceeds token budget, keeping original",
				"estimated", estimateTokens(rewritten), "budget", r.maxTokens)
			return query
		}
		return rewritten
	}

	r.logger.Warn("failed to parse rewrite after retries, keeping original")
	return query
}

// hasDialogue reports whether any history message carries visible content.
func hasDialogue(history []core.Message) bool {
	for _, message := range history {
		if strings.TrimSpace(message.Content) != "" {
			return true
		}
	}
	return false
}

// stripCodeFences removes a markdown code fence wrapper if present.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
