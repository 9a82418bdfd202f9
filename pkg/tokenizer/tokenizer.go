// Package tokenizer provides local, deterministic token counting.
//
// Every count in the assistant's ledger comes from here rather than from an
// upstream provider's self-reported usage fields. Prompts that are built but
// never sent (pre-send budgeting) and cleaned history the provider never saw
// in that exact form still get reproducible counts.
package tokenizer

import "strings"

// Counter converts text to a token count. Implementations must be pure:
// the same text yields the same count on every call, and empty text is 0.
type Counter interface {
	Count(text string) int
}

// Heuristic estimates tokens from a blend of word and character counts,
// roughly tracking the ~4 chars/token of GPT-style encoders. Exact BPE
// counting would need the model's vocabulary; for budgeting and cost
// estimation the blend stays within a few percent on prose.
type Heuristic struct{}

// NewHeuristic returns the default counter used throughout the assistant.
func NewHeuristic() Heuristic { return Heuristic{} }

// Count implements Counter.
func (Heuristic) Count(text string) int {
	if text == "" {
		return 0
	}

	words := len(strings.Fields(text))
	chars := len(text)

	n := (words + chars/4) / 2
	if n < 1 {
		// Non-empty text is never zero tokens.
		return 1
	}
	return n
}
