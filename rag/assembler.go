package rag

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/askit/core"
)

const (
	contextSeparator = "\n\n---\n\n"

	// charsPerToken is the crude length heuristic used to budget prompt
	// text without a tokenizer round-trip.
	charsPerToken = 4
)

// estimateTokens approximates the token count of a string.
func estimateTokens(s string) int {
	return len(s) / charsPerToken
}

// assembleContext renders ranked candidates into the numbered passage block
// the answer prompt embeds. Candidates are emitted in rank order until the
// token budget is spent. A first passage too large for the whole budget is
// truncated rather than dropped, so the model always sees the best hit.
func assembleContext(candidates []core.RankedCandidate, maxTokens int) string {
	if len(candidates) == 0 {
		return ""
	}

	budget := maxTokens * charsPerToken
	var b strings.Builder

	for i, candidate := range candidates {
		block := renderPassage(i+1, candidate)
		need := len(block)
		if b.Len() > 0 {
			need += len(contextSeparator)
		}
		if b.Len()+need > budget {
			if b.Len() == 0 {
				b.WriteString(truncateForBudget(block, budget))
			}
			break
		}
		if b.Len() > 0 {
			b.WriteString(contextSeparator)
		}
		b.WriteString(block)
	}

	return b.String()
}

// renderPassage formats one candidate as a numbered block the prompt rules
// can cite as [n].
func renderPassage(n int, candidate core.RankedCandidate) string {
	header := fmt.Sprintf("[%d] %s", n, candidate.DocumentSource)
	if candidate.PageIdx > 0 {
		header = fmt.Sprintf("%s (page %d)", header, candidate.PageIdx)
	}
	return header + "\n" + candidate.Content
}

// truncateForBudget cuts s to at most maxBytes without splitting a rune.
func truncateForBudget(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	cut := s[:maxBytes]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
