// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package askit

import (
	"context"
	"io"
	"log/slog"

	"github.com/poiesic/askit/ai"
	"github.com/poiesic/askit/ai/openai"
	"github.com/poiesic/askit/core"
	"github.com/poiesic/askit/ingestion"
	"github.com/poiesic/askit/rag"
	"github.com/poiesic/askit/reindex"
	"github.com/poiesic/askit/retrieval"
	"github.com/poiesic/askit/session"
	"github.com/poiesic/askit/storage"
	"github.com/poiesic/askit/storage/badger"
)

// Engine bundles storage, the sparse index, model services, session memory
// and the answer pipeline behind a single handle. Open it on a directory,
// ingest documents, ask questions, close it.
type Engine struct {
	backend      *badger.Backend
	segments     storage.SegmentRepository
	documents    storage.DocumentRepository
	sessionRepo  storage.SessionRepository
	sessions     *session.Store
	index        *retrieval.BM25Index
	provider     ai.AIProvider
	orchestrator *rag.Orchestrator
	pipeline     *ingestion.Pipeline
	logger       *slog.Logger
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	aiConfig       *ai.Config
	provider       ai.AIProvider
	inMemory       bool
	logger         *slog.Logger
	askOptions     []rag.Option
	ingestOptions  []ingestion.Option
	sessionOptions []session.Option
}

// WithAIConfig points the engine at specific model services. Ignored when
// a provider is injected with WithProvider.
func WithAIConfig(config *ai.Config) Option {
	return func(o *engineOptions) {
		o.aiConfig = config
	}
}

// WithProvider injects a ready AI provider instead of constructing the
// OpenAI-compatible one from config. The engine takes ownership and closes
// it on Close.
func WithProvider(provider ai.AIProvider) Option {
	return func(o *engineOptions) {
		o.provider = provider
	}
}

// WithInMemory keeps all storage in memory; the path passed to Open is
// ignored and nothing survives Close. Meant for tests and experiments.
func WithInMemory() Option {
	return func(o *engineOptions) {
		o.inMemory = true
	}
}

// WithLogger sets the logger handed to every component.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// WithAskOptions forwards options to the answer pipeline, such as
// rag.WithTopK, rag.WithRelevanceThreshold or rag.WithPoolSize.
func WithAskOptions(opts ...rag.Option) Option {
	return func(o *engineOptions) {
		o.askOptions = append(o.askOptions, opts...)
	}
}

// WithIngestOptions forwards options to the ingestion pipeline, such as
// ingestion.WithPoolSize.
func WithIngestOptions(opts ...ingestion.Option) Option {
	return func(o *engineOptions) {
		o.ingestOptions = append(o.ingestOptions, opts...)
	}
}

// WithSessionOptions forwards options to the session store, such as
// session.WithWindow.
func WithSessionOptions(opts ...session.Option) Option {
	return func(o *engineOptions) {
		o.sessionOptions = append(o.sessionOptions, opts...)
	}
}

// Open assembles an Engine on the badger database at filePath, creating it
// if needed. The in-memory sparse index is rebuilt from stored segments
// before Open returns, so lexical search works immediately.
func Open(filePath string, opts ...Option) (*Engine, error) {
	// Apply options
	options := &engineOptions{
		aiConfig: ai.DefaultConfig(), // Default if not provided
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}

	// Open backend
	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	// Create segment repository
	segments, err := badger.NewSegmentRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	// Create document repository
	documents, err := badger.NewDocumentRepository(backend)
	if err != nil {
		segments.Close()
		backend.Close()
		return nil, err
	}

	// Create session repository and the cache in front of it
	sessionRepo, err := badger.NewSessionRepository(backend)
	if err != nil {
		documents.Close()
		segments.Close()
		backend.Close()
		return nil, err
	}

	sessionOpts := append([]session.Option{session.WithLogger(options.logger)}, options.sessionOptions...)
	store, err := session.NewStore(sessionRepo, sessionOpts...)
	if err != nil {
		sessionRepo.Close()
		documents.Close()
		segments.Close()
		backend.Close()
		return nil, err
	}

	// Create AI provider with configured settings
	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(options.aiConfig)
		if err != nil {
			store.Close()
			sessionRepo.Close()
			documents.Close()
			segments.Close()
			backend.Close()
			return nil, err
		}
	}

	closeAll := func() {
		provider.Close()
		store.Close()
		sessionRepo.Close()
		documents.Close()
		segments.Close()
		backend.Close()
	}

	// Rebuild the in-memory sparse index from stored segments
	index := retrieval.NewBM25Index()
	indexed, err := reindex.RebuildSparseIndex(context.Background(), segments, index, reindex.DefaultBatchSize)
	if err != nil {
		closeAll()
		return nil, err
	}
	if indexed > 0 {
		options.logger.Info("sparse index rebuilt", "segments", indexed)
	}

	// Retrieval stages
	dense, err := retrieval.NewDenseRetriever(segments)
	if err != nil {
		closeAll()
		return nil, err
	}
	sparse, err := retrieval.NewSparseRetriever(index)
	if err != nil {
		closeAll()
		return nil, err
	}
	hydrator, err := retrieval.NewHydrator(segments, documents)
	if err != nil {
		closeAll()
		return nil, err
	}

	// Answer pipeline
	askOpts := append([]rag.Option{rag.WithLogger(options.logger)}, options.askOptions...)
	orchestrator, err := rag.NewOrchestrator(documents, store, provider, dense, sparse, hydrator, askOpts...)
	if err != nil {
		closeAll()
		return nil, err
	}

	// Ingestion pipeline
	ingestOpts := append([]ingestion.Option{ingestion.WithLogger(options.logger)}, options.ingestOptions...)
	pipeline, err := ingestion.NewPipeline(segments, documents, index, provider, ingestOpts...)
	if err != nil {
		orchestrator.Close()
		closeAll()
		return nil, err
	}

	return &Engine{
		backend:      backend,
		segments:     segments,
		documents:    documents,
		sessionRepo:  sessionRepo,
		sessions:     store,
		index:        index,
		provider:     provider,
		orchestrator: orchestrator,
		pipeline:     pipeline,
		logger:       options.logger,
	}, nil
}

// Ask answers a question in the context of its session.
func (e *Engine) Ask(ctx context.Context, req rag.Request) (*rag.Answer, error) {
	return e.orchestrator.Ask(ctx, req)
}

// AskWithMonitor answers a question and reports each pipeline stage to the
// monitor.
func (e *Engine) AskWithMonitor(ctx context.Context, req rag.Request, monitor rag.Monitor) (*rag.Answer, error) {
	return e.orchestrator.AskWithMonitor(ctx, req, monitor)
}

// Retrieve runs only the retrieval stages and returns the ranked
// candidates a matching Ask would ground its answer on. Nothing is
// generated or persisted.
func (e *Engine) Retrieve(ctx context.Context, query string, permissions any, monitor rag.Monitor) ([]core.RankedCandidate, error) {
	return e.orchestrator.Retrieve(ctx, query, permissions, monitor)
}

// Ingest stores a document and queues its segments for embedding. The
// returned document is in status pending; it flips to ready once the
// embedding work scheduled here completes.
func (e *Engine) Ingest(ctx context.Context, input ingestion.DocumentInput) (*core.Document, error) {
	return e.pipeline.Ingest(ctx, input)
}

// Wait blocks until embedding work queued by earlier Ingest calls has
// finished.
func (e *Engine) Wait() {
	e.pipeline.Wait()
}

// DeleteDocument hides a document from retrieval by marking it deleted.
// Its record and segments stay in place until PurgeDocument.
func (e *Engine) DeleteDocument(ctx context.Context, id core.ID) error {
	return e.documents.DeleteDocument(ctx, id)
}

// PurgeDocument removes a document outright: its segments, its sparse
// index entries and finally the record itself. After a purge the same
// source can be ingested again.
func (e *Engine) PurgeDocument(ctx context.Context, id core.ID) error {
	if _, err := e.documents.GetDocument(ctx, id); err != nil {
		return err
	}

	removed, err := e.segments.DeleteSegmentsByDocument(ctx, id)
	if err != nil {
		return err
	}
	e.index.RemoveDocument(id)

	if err := e.documents.PurgeDocument(ctx, id); err != nil {
		return err
	}

	e.logger.Info("document purged", "doc_id", id, "segments", removed)
	return nil
}

// Documents lists every document record, including deleted ones.
func (e *Engine) Documents(ctx context.Context) ([]*core.Document, error) {
	return e.documents.ListDocuments(ctx)
}

// Sessions lists the IDs of sessions with stored history.
func (e *Engine) Sessions(ctx context.Context) ([]string, error) {
	return e.sessions.Sessions(ctx)
}

// ClearSession removes a conversation's entire stored history and returns
// the number of messages removed.
func (e *Engine) ClearSession(ctx context.Context, sessionID string) (int, error) {
	return e.sessions.Delete(ctx, sessionID)
}

// Reindex regenerates every stored vector with the current embedding
// model. Pass a nil config for defaults; progress may be nil.
func (e *Engine) Reindex(ctx context.Context, config *reindex.Config, progress io.Writer) error {
	if progress == nil {
		progress = io.Discard
	}
	reindexer := reindex.NewReindexer(e.segments, e.provider.Embedder(), config, progress)
	return reindexer.Run(ctx)
}

// SegmentRepository exposes the underlying segment store.
func (e *Engine) SegmentRepository() storage.SegmentRepository {
	return e.segments
}

// DocumentRepository exposes the underlying document store.
func (e *Engine) DocumentRepository() storage.DocumentRepository {
	return e.documents
}

// SessionStore exposes the session cache and its durable log.
func (e *Engine) SessionStore() *session.Store {
	return e.sessions
}

// Close waits for queued ingestion work, then releases every component.
func (e *Engine) Close() error {
	// Ingestion first so queued embedding work lands before stores close
	e.pipeline.Wait()
	e.pipeline.Release()

	e.orchestrator.Close()

	// Close AI provider before the stores it no longer needs
	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
	}

	e.sessions.Close()

	// Close repositories
	if err := e.sessionRepo.Close(); err != nil {
		e.logger.Error("error closing session repository", "err", err)
		return err
	}
	if err := e.documents.Close(); err != nil {
		e.logger.Error("error closing document repository", "err", err)
		return err
	}
	if err := e.segments.Close(); err != nil {
		e.logger.Error("error closing segment repository", "err", err)
		return err
	}

	// Close backend
	if err := e.backend.Close(); err != nil {
		e.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}
