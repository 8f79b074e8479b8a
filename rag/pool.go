package rag

import (
	"context"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/askit/ai"
)

// modelPool funnels every embedding, rerank and generation call through one
// bounded ants pool, capping in-flight model traffic independently of how
// many requests the caller runs concurrently. Submission blocks until a
// worker frees up; the wrapped calls honor their context, so a cancelled
// request releases its worker as soon as the service notices.
type modelPool struct {
	pool      *ants.Pool
	embedder  ai.Embedder
	generator ai.Generator
	reranker  ai.Reranker
}

func newModelPool(size int, provider ai.AIProvider) (*modelPool, error) {
	if size < 1 {
		size = 1
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}

	return &modelPool{
		pool:      pool,
		embedder:  provider.Embedder(),
		generator: provider.Generator(),
		reranker:  provider.Reranker(),
	}, nil
}

// run executes fn on the pool and waits for it to finish.
func (m *modelPool) run(fn func()) error {
	done := make(chan struct{})
	if err := m.pool.Submit(func() {
		defer close(done)
		fn()
	}); err != nil {
		return err
	}
	<-done
	return nil
}

func (m *modelPool) embed(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	var err error
	if runErr := m.run(func() {
		vector, err = m.embedder.EmbedText(ctx, text)
	}); runErr != nil {
		return nil, runErr
	}
	return vector, err
}

func (m *modelPool) rerank(ctx context.Context, query string, passages []string) ([]float64, error) {
	var scores []float64
	var err error
	if runErr := m.run(func() {
		scores, err = m.reranker.Rerank(ctx, query, passages)
	}); runErr != nil {
		return nil, runErr
	}
	return scores, err
}

func (m *modelPool) generate(ctx context.Context, req ai.GenerationRequest) (string, error) {
	var text string
	var err error
	if runErr := m.run(func() {
		text, err = m.generator.Generate(ctx, req)
	}); runErr != nil {
		return "", runErr
	}
	return text, err
}

// Release releases the worker pool. The modelPool must not be used after.
func (m *modelPool) Release() {
	m.pool.Release()
}
