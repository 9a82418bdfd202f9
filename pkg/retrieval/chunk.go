// Package retrieval fetches and aggregates document context for a turn.
package retrieval

import (
	"strings"

	"github.com/bylawhq/bylaw/pkg/tokenizer"
)

// Chunk is a unit of source-document text returned by the vector index.
type Chunk struct {
	Text      string `json:"text"`
	SourceRef string `json:"source_ref,omitempty"`
}

// Context is the aggregated document context for one turn.
type Context struct {
	// Chunks after exact-text deduplication, first occurrence wins,
	// original order preserved among survivors.
	Chunks []Chunk

	// Text is the deduped chunk texts joined for prompt injection.
	Text string

	// Tokens is the sum of local token counts over the deduped texts.
	// Counts reported by the retrieval service are never used, so the
	// ledger stays consistent with every other locally counted prompt.
	Tokens int
}

// Aggregate dedupes the unioned candidate set from all retrieval calls and
// counts the surviving text. An empty candidate set yields a zero Context,
// which is a valid (context-free) turn.
func Aggregate(counter tokenizer.Counter, chunks []Chunk) Context {
	seen := make(map[string]struct{}, len(chunks))
	var agg Context

	for _, c := range chunks {
		if _, dup := seen[c.Text]; dup {
			continue
		}
		seen[c.Text] = struct{}{}
		agg.Chunks = append(agg.Chunks, c)
		agg.Tokens += counter.Count(c.Text)
	}

	texts := make([]string, len(agg.Chunks))
	for i, c := range agg.Chunks {
		texts[i] = c.Text
	}
	agg.Text = strings.Join(texts, "\n\n")

	return agg
}
