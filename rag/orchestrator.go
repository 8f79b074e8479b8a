package rag

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/poiesic/askit/ai"
	"github.com/poiesic/askit/core"
	"github.com/poiesic/askit/retrieval"
	"github.com/poiesic/askit/session"
	"github.com/poiesic/askit/storage"
)

// Pipeline defaults.
const (
	// DefaultDenseK is the candidate budget for vector search.
	DefaultDenseK = 20
	// DefaultSparseK is the candidate budget for lexical search.
	DefaultSparseK = 20
	// DefaultTopK caps the context set after cliff truncation.
	DefaultTopK = 5
	// DefaultRelevanceThreshold is the minimum cross-encoder logit a
	// candidate needs to stay in play.
	DefaultRelevanceThreshold = -5.0
	// DefaultHistoryLimit is how many messages the rewriter sees.
	DefaultHistoryLimit = 10
	// DefaultMaxContextTokens bounds the assembled context block.
	DefaultMaxContextTokens = 3000
	// DefaultAnswerMaxTokens bounds the generated answer.
	DefaultAnswerMaxTokens = 1024

	answerTemperature = 0.2
)

// DenseSearcher produces candidates by vector similarity.
type DenseSearcher interface {
	Retrieve(ctx context.Context, vector []float32, k int, filter core.SegmentFilter) ([]core.Candidate, error)
}

// SparseSearcher produces candidates by lexical match.
type SparseSearcher interface {
	Retrieve(ctx context.Context, query string, k int, filter core.SegmentFilter) ([]core.Candidate, error)
}

// ContextHydrator joins candidates with their stored content.
type ContextHydrator interface {
	Hydrate(ctx context.Context, candidates []core.Candidate, filter core.SegmentFilter) ([]core.HydratedCandidate, error)
}

var (
	_ DenseSearcher   = (*retrieval.DenseRetriever)(nil)
	_ SparseSearcher  = (*retrieval.SparseRetriever)(nil)
	_ ContextHydrator = (*retrieval.Hydrator)(nil)
)

// Request is one conversational question against the knowledge base.
type Request struct {
	// SessionID names the conversation. It must satisfy
	// core.ValidateSessionID.
	SessionID string

	// Query is the user's question.
	Query string

	// Permissions is the caller's raw permission value: nil, a string or
	// a list of strings. Nil resolves to no documents, so retrieval is
	// skipped and only generation runs.
	Permissions any
}

// Answer is the outcome of a request.
type Answer struct {
	// Text is the final answer, after the guardrail.
	Text string

	// Rewritten is the query retrieval actually ran, equal to the
	// original question when no rewrite happened.
	Rewritten string

	// Sources are the candidates the answer was grounded on, best first.
	Sources []core.RankedCandidate

	// Guardrailed reports whether Text was replaced by NoInformationAnswer.
	Guardrailed bool
}

// Orchestrator runs the request pipeline: validation, permission
// resolution, history-aware query rewriting, hybrid retrieval, reranking,
// adaptive truncation, generation, guardrail and persistence.
//
// Failures follow a fixed taxonomy. Validation, generation and persistence
// problems are terminal and surface wrapping core.ErrValidation,
// core.ErrGeneration and core.ErrPersistence. Everything on the retrieval
// side is logged and degrades to fewer, possibly zero, candidates; the
// request still answers.
type Orchestrator struct {
	resolver storage.PermissionResolver
	sessions *session.Store
	dense    DenseSearcher
	sparse   SparseSearcher
	hydrator ContextHydrator
	models   *modelPool
	rewriter *Rewriter
	ranker   *retrieval.AdaptiveRanker

	denseK           int
	sparseK          int
	topK             int
	threshold        float64
	historyLimit     int
	maxContextTokens int
	answerMaxTokens  int
	rewriteMaxTokens int
	poolSize         int
	logger           *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithDenseK sets the vector search candidate budget.
// Default is DefaultDenseK.
func WithDenseK(k int) Option {
	return func(o *Orchestrator) error {
		if k < 1 {
			return ErrInvalidK
		}
		o.denseK = k
		return nil
	}
}

// WithSparseK sets the lexical search candidate budget.
// Default is DefaultSparseK.
func WithSparseK(k int) Option {
	return func(o *Orchestrator) error {
		if k < 1 {
			return ErrInvalidK
		}
		o.sparseK = k
		return nil
	}
}

// WithTopK caps how many candidates survive adaptive truncation.
// Default is DefaultTopK.
func WithTopK(k int) Option {
	return func(o *Orchestrator) error {
		if k < 1 {
			return retrieval.ErrInvalidTopK
		}
		o.topK = k
		return nil
	}
}

// WithRelevanceThreshold sets the minimum rerank score. Cross-encoder
// scores are signed logits, so negative thresholds are normal.
// Default is DefaultRelevanceThreshold.
func WithRelevanceThreshold(threshold float64) Option {
	return func(o *Orchestrator) error {
		o.threshold = threshold
		return nil
	}
}

// WithHistoryLimit sets how many session messages feed the rewriter.
// Default is DefaultHistoryLimit.
func WithHistoryLimit(limit int) Option {
	return func(o *Orchestrator) error {
		if limit < 1 {
			return ErrInvalidHistoryLimit
		}
		o.historyLimit = limit
		return nil
	}
}

// WithMaxContextTokens bounds the assembled context block.
// Default is DefaultMaxContextTokens.
func WithMaxContextTokens(tokens int) Option {
	return func(o *Orchestrator) error {
		if tokens < 1 {
			return ErrInvalidTokenBudget
		}
		o.maxContextTokens = tokens
		return nil
	}
}

// WithAnswerMaxTokens bounds the generated answer.
// Default is DefaultAnswerMaxTokens.
func WithAnswerMaxTokens(tokens int) Option {
	return func(o *Orchestrator) error {
		if tokens < 1 {
			return ErrInvalidTokenBudget
		}
		o.answerMaxTokens = tokens
		return nil
	}
}

// WithRewriteMaxTokens bounds the rewritten question.
// Default is DefaultRewriteMaxTokens.
func WithRewriteMaxTokens(tokens int) Option {
	return func(o *Orchestrator) error {
		if tokens < 1 {
			return ErrInvalidTokenBudget
		}
		o.rewriteMaxTokens = tokens
		return nil
	}
}

// WithPoolSize caps concurrent in-flight model calls.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(o *Orchestrator) error {
		if size < 1 {
			size = 1
		}
		o.poolSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// NewOrchestrator creates the request pipeline over its collaborators.
func NewOrchestrator(
	resolver storage.PermissionResolver,
	sessions *session.Store,
	provider ai.AIProvider,
	dense DenseSearcher,
	sparse SparseSearcher,
	hydrator ContextHydrator,
	opts ...Option,
) (*Orchestrator, error) {
	if resolver == nil {
		return nil, ErrResolverRequired
	}
	if sessions == nil {
		return nil, ErrSessionStoreRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}
	if dense == nil {
		return nil, ErrDenseSearcherRequired
	}
	if sparse == nil {
		return nil, ErrSparseSearcherRequired
	}
	if hydrator == nil {
		return nil, ErrHydratorRequired
	}

	// Default pool size
	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	o := &Orchestrator{
		resolver:         resolver,
		sessions:         sessions,
		dense:            dense,
		sparse:           sparse,
		hydrator:         hydrator,
		denseK:           DefaultDenseK,
		sparseK:          DefaultSparseK,
		topK:             DefaultTopK,
		threshold:        DefaultRelevanceThreshold,
		historyLimit:     DefaultHistoryLimit,
		maxContextTokens: DefaultMaxContextTokens,
		answerMaxTokens:  DefaultAnswerMaxTokens,
		rewriteMaxTokens: DefaultRewriteMaxTokens,
		poolSize:         poolSize,
		logger:           slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}

	// Build the stages that depend on final configuration.
	ranker, err := retrieval.NewAdaptiveRanker(o.threshold, o.topK)
	if err != nil {
		return nil, err
	}
	o.ranker = ranker

	rewriter, err := NewRewriter(provider.Generator())
	if err != nil {
		return nil, err
	}
	rewriter.maxTokens = o.rewriteMaxTokens
	rewriter.logger = o.logger.With("component", "rewriter")
	o.rewriter = rewriter

	models, err := newModelPool(o.poolSize, provider)
	if err != nil {
		return nil, err
	}
	o.models = models

	return o, nil
}

// Ask answers a question in the context of its session.
func (o *Orchestrator) Ask(ctx context.Context, req Request) (*Answer, error) {
	return o.AskWithMonitor(ctx, req, nil)
}

// AskWithMonitor answers a question and reports each pipeline stage to the
// monitor.
func (o *Orchestrator) AskWithMonitor(ctx context.Context, req Request, monitor Monitor) (answer *Answer, err error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if err := core.ValidateSessionID(req.SessionID); err != nil {
		return nil, err
	}

	monitor.Start(query)
	defer func() { monitor.Finish(answer, err) }()

	filter, retrievable, err := o.resolveScope(ctx, req.Permissions, monitor)
	if err != nil {
		return nil, err
	}

	history := o.loadHistory(ctx, req.SessionID)

	effective := query
	if len(history) > 0 {
		if rewritten := o.rewriter.Rewrite(ctx, history, query); rewritten != query {
			effective = rewritten
			o.sessions.RememberRewrite(req.SessionID, rewritten)
		}
	}
	monitor.AfterRewrite(query, effective)

	var kept []core.RankedCandidate
	if retrievable {
		kept = o.retrieve(ctx, effective, filter, monitor)
	}
	monitor.AfterSelect(kept)

	text, err := o.generateAnswer(ctx, effective, kept)
	if err != nil {
		return nil, err
	}

	guardrailed := false
	if len(kept) == 0 && !strings.Contains(text, NoInformationAnswer) {
		o.logger.Info("guardrail replaced answer without sources",
			"session_id", req.SessionID)
		text = NoInformationAnswer
		guardrailed = true
	}
	monitor.AfterGuardrail(guardrailed)

	if err := o.persistTurn(ctx, req.SessionID, query, text, kept); err != nil {
		return nil, err
	}

	answer = &Answer{
		Text:        text,
		Rewritten:   effective,
		Sources:     kept,
		Guardrailed: guardrailed,
	}
	return answer, nil
}

// Retrieve runs only the retrieval side of the pipeline: permission
// resolution, hybrid search, hydration, reranking and adaptive truncation.
// No history is consulted, nothing is generated and nothing is persisted,
// so the result shows exactly what a matching Ask would ground its answer
// on.
func (o *Orchestrator) Retrieve(ctx context.Context, query string, permissions any, monitor Monitor) (kept []core.RankedCandidate, err error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	monitor.Start(query)
	defer func() { monitor.Finish(nil, err) }()

	filter, retrievable, err := o.resolveScope(ctx, permissions, monitor)
	if err != nil {
		return nil, err
	}

	if retrievable {
		kept = o.retrieve(ctx, query, filter, monitor)
	}
	monitor.AfterSelect(kept)

	return kept, nil
}

// Close releases the model worker pool. Collaborators passed to the
// constructor stay open; their lifecycle belongs to the caller.
func (o *Orchestrator) Close() {
	o.models.Release()
}

// resolveScope turns the raw permission value into a segment filter. The
// boolean reports whether any document is visible at all; when it is false
// the retrieval stages are skipped entirely. Malformed input is the only
// error; a failing resolver fails closed to an empty document set.
func (o *Orchestrator) resolveScope(ctx context.Context, raw any, monitor Monitor) (core.SegmentFilter, bool, error) {
	tokens, err := core.NormalizePermissionTokens(raw)
	if err != nil {
		return core.SegmentFilter{}, false, err
	}

	scope := core.NewPermissionScope(tokens...)
	if scope.IsEmpty() {
		monitor.AfterResolve(scope, 0)
		return core.SegmentFilter{}, false, nil
	}

	allowed, err := o.resolver.ResolveAllowedDocuments(ctx, scope)
	if err != nil {
		o.logger.Error("permission resolution failed, retrieval skipped",
			"err", err)
		monitor.AfterResolve(scope, 0)
		return core.SegmentFilter{}, false, nil
	}
	monitor.AfterResolve(scope, len(allowed))
	if len(allowed) == 0 {
		return core.SegmentFilter{}, false, nil
	}

	return core.NewSegmentFilter(scope, allowed), true, nil
}

// loadHistory fetches the rewriter's view of the conversation. A failing
// session store degrades to an empty history.
func (o *Orchestrator) loadHistory(ctx context.Context, sessionID string) []core.Message {
	history, err := o.sessions.Load(ctx, sessionID, o.historyLimit)
	if err != nil {
		o.logger.Error("history load failed, continuing without history",
			"session_id", sessionID, "err", err)
		return nil
	}
	return history
}

// retrieve runs the candidate pipeline: embed, parallel dense and sparse
// search, fusion, hydration, rerank and adaptive truncation. Every failure
// inside it is non-terminal; the affected stage contributes nothing and
// the survivors carry on.
func (o *Orchestrator) retrieve(ctx context.Context, query string, filter core.SegmentFilter, monitor Monitor) []core.RankedCandidate {
	// Without a query vector dense search sits out; lexical search does
	// not need one.
	vector, err := o.models.embed(ctx, query)
	if err != nil {
		o.logger.Error("query embedding failed", "err", err)
		vector = nil
	}

	var denseHits, sparseHits []core.Candidate
	var wg sync.WaitGroup

	if vector != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hits, err := o.dense.Retrieve(ctx, vector, o.denseK, filter)
			if err != nil {
				o.logger.Error("dense retrieval failed", "err", err)
				return
			}
			denseHits = hits
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		hits, err := o.sparse.Retrieve(ctx, query, o.sparseK, filter)
		if err != nil {
			o.logger.Error("sparse retrieval failed", "err", err)
			return
		}
		sparseHits = hits
	}()

	wg.Wait()

	fused := retrieval.FuseCandidates(denseHits, sparseHits)
	monitor.AfterRetrieve(len(denseHits), len(sparseHits), len(fused))
	if len(fused) == 0 {
		return nil
	}

	hydrated, err := o.hydrator.Hydrate(ctx, fused, filter)
	if err != nil {
		o.logger.Error("hydration failed", "err", err)
		return nil
	}
	monitor.AfterHydrate(hydrated)
	if len(hydrated) == 0 {
		return nil
	}

	ranked, err := o.rerank(ctx, query, hydrated)
	if err != nil {
		o.logger.Error("rerank failed", "err", err)
		return nil
	}
	monitor.AfterRerank(ranked)

	return o.ranker.Rank(ranked)
}

// rerank scores hydrated candidates against the query with the
// cross-encoder and pairs each candidate with its score.
func (o *Orchestrator) rerank(ctx context.Context, query string, candidates []core.HydratedCandidate) ([]core.RankedCandidate, error) {
	passages := make([]string, len(candidates))
	for i, candidate := range candidates {
		passages[i] = candidate.Content
	}

	scores, err := o.models.rerank(ctx, query, passages)
	if err != nil {
		return nil, err
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("reranker returned %d scores for %d passages", len(scores), len(candidates))
	}

	ranked := make([]core.RankedCandidate, len(candidates))
	for i := range candidates {
		ranked[i] = core.RankedCandidate{
			HydratedCandidate: candidates[i],
			RerankScore:       scores[i],
		}
	}
	return ranked, nil
}

// generateAnswer assembles the context block and calls the generation
// service. Failures and empty answers are terminal, wrapping
// core.ErrGeneration.
func (o *Orchestrator) generateAnswer(ctx context.Context, query string, kept []core.RankedCandidate) (string, error) {
	contextBlock := assembleContext(kept, o.maxContextTokens)

	text, err := o.models.generate(ctx, ai.GenerationRequest{
		System:      buildAnswerSystemPrompt(contextBlock),
		Prompt:      query,
		Temperature: answerTemperature,
		MaxTokens:   o.answerMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", core.ErrGeneration, err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: model returned an empty answer", core.ErrGeneration)
	}
	return text, nil
}

// persistTurn writes the user question and the assistant answer, with the
// answer's segment references, as one session turn. The original question
// is stored, not the rewrite: later rewrites need the words the user
// actually typed.
func (o *Orchestrator) persistTurn(ctx context.Context, sessionID, query, text string, kept []core.RankedCandidate) error {
	refs := make([]core.SegmentRef, len(kept))
	for i, candidate := range kept {
		refs[i] = core.SegmentRef{
			DocId:     candidate.DocId,
			SegmentId: candidate.SegmentId,
			Score:     candidate.RerankScore,
		}
	}

	return o.sessions.Append(ctx, sessionID,
		core.Message{Role: core.MessageRoleUser, Content: query},
		core.Message{Role: core.MessageRoleAssistant, Content: text, Refs: refs},
	)
}
