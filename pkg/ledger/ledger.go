// Package ledger tracks per-session token usage and estimated spend.
//
// Four counters are add-only accumulators; the conversation counter is a
// snapshot that is recomputed and overwritten after every completed turn,
// because history length can shrink when an outer layer trims it. No
// operation ever decrements an accumulator. The estimated cost is derived
// on read and never stored, so it cannot drift from the counters.
package ledger

import "sync"

// PriceTable holds the per-token rates for a session. Rates are fixed for
// the lifetime of the session that was created with them.
type PriceTable struct {
	InputRate  float64 `json:"input_rate" toml:"input_rate"`   // currency units per input token
	OutputRate float64 `json:"output_rate" toml:"output_rate"` // currency units per output token
}

// Snapshot is the read-only projection consumed by sidebar displays and the
// ledger endpoint.
type Snapshot struct {
	ProcessedTokens    int     `json:"total_processed_tokens"`
	ConversationTokens int     `json:"total_conversation_tokens"`
	RAGContextTokens   int     `json:"total_rag_context_tokens"`
	InputTokens        int     `json:"total_input_tokens"`
	OutputTokens       int     `json:"total_output_tokens"`
	EstimatedCost      float64 `json:"estimated_session_cost"`
}

// Ledger is the set of running counters for one session. It is owned by the
// session's orchestrator, which mutates it only at turn checkpoints; reads
// may come from other goroutines (the ledger endpoint), hence the lock.
type Ledger struct {
	mu sync.Mutex

	prices PriceTable

	processed    int
	conversation int
	ragContext   int
	input        int
	output       int
}

// New creates a zeroed ledger priced with the given table.
func New(prices PriceTable) *Ledger {
	return &Ledger{prices: prices}
}

// RecordPrompt accounts for a prompt that was built and is about to be
// sent: n tokens are added to the processed and input accumulators.
// Negative n is ignored.
func (l *Ledger) RecordPrompt(n int) {
	if n < 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.processed += n
	l.input += n
}

// RecordCompletion accounts for generated output: n tokens are added to the
// processed and output accumulators. Negative n is ignored.
func (l *Ledger) RecordCompletion(n int) {
	if n < 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.processed += n
	l.output += n
}

// RecordRAGContext accounts for retrieved document context attached to a
// turn. Negative n is ignored.
func (l *Ledger) RecordRAGContext(n int) {
	if n < 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ragContext += n
}

// SetConversationTokens overwrites the conversation counter with a freshly
// computed count of the cleaned history. This is the one non-monotonic
// counter: it replaces, never adds.
func (l *Ledger) SetConversationTokens(n int) {
	if n < 0 {
		n = 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.conversation = n
}

// EstimatedCost derives the session spend from the input/output
// accumulators and the price table.
func (l *Ledger) EstimatedCost() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.costLocked()
}

func (l *Ledger) costLocked() float64 {
	return float64(l.input)*l.prices.InputRate + float64(l.output)*l.prices.OutputRate
}

// Snapshot returns a consistent view of all counters plus the derived cost.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Snapshot{
		ProcessedTokens:    l.processed,
		ConversationTokens: l.conversation,
		RAGContextTokens:   l.ragContext,
		InputTokens:        l.input,
		OutputTokens:       l.output,
		EstimatedCost:      l.costLocked(),
	}
}
