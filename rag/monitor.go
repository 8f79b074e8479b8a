package rag

import (
	"github.com/poiesic/askit/core"
)

// Monitor provides hooks to observe a request moving through the answer
// pipeline. Implement this interface to track intermediate stages; callbacks
// run inline on the request path and must return quickly.
type Monitor interface {
	Start(query string)
	AfterResolve(scope core.PermissionScope, allowedDocs int)
	AfterRewrite(original, rewritten string)
	AfterRetrieve(denseHits, sparseHits, fused int)
	AfterHydrate(candidates []core.HydratedCandidate)
	AfterRerank(candidates []core.RankedCandidate)
	AfterSelect(kept []core.RankedCandidate)
	AfterGuardrail(applied bool)
	Finish(answer *Answer, err error)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                  {}
func (n *noopMonitor) AfterResolve(_ core.PermissionScope, _ int)      {}
func (n *noopMonitor) AfterRewrite(_, _ string)                       {}
func (n *noopMonitor) AfterRetrieve(_, _, _ int)                      {}
func (n *noopMonitor) AfterHydrate(_ []core.HydratedCandidate)         {}
func (n *noopMonitor) AfterRerank(_ []core.RankedCandidate)            {}
func (n *noopMonitor) AfterSelect(_ []core.RankedCandidate)            {}
func (n *noopMonitor) AfterGuardrail(_ bool)                          {}
func (n *noopMonitor) Finish(_ *Answer, _ error)                      {}
