package retrieval

import (
	"context"
	"sort"
	"strings"
)

// KeywordStore is an in-memory Retriever ranking chunks by shared lowercase
// terms with the query. It backs development and test setups where no
// vector index is configured; it makes no claim to ranking quality.
type KeywordStore struct {
	chunks []Chunk
}

// NewKeywordStore creates a store holding the given chunks.
func NewKeywordStore(chunks []Chunk) *KeywordStore {
	return &KeywordStore{chunks: chunks}
}

// Retrieve implements Retriever. Chunks sharing no terms with the query are
// omitted; survivors are ordered by descending overlap, ties by insertion
// order.
func (s *KeywordStore) Retrieve(_ context.Context, query string, k int) ([]Chunk, error) {
	if k <= 0 {
		return nil, nil
	}

	terms := make(map[string]struct{})
	for _, t := range strings.Fields(strings.ToLower(query)) {
		terms[t] = struct{}{}
	}

	type scored struct {
		chunk Chunk
		score int
		order int
	}

	var matches []scored
	for i, c := range s.chunks {
		score := 0
		for _, t := range strings.Fields(strings.ToLower(c.Text)) {
			if _, ok := terms[t]; ok {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{chunk: c, score: score, order: i})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].order < matches[j].order
	})

	if len(matches) > k {
		matches = matches[:k]
	}

	out := make([]Chunk, len(matches))
	for i, m := range matches {
		out[i] = m.chunk
	}
	return out, nil
}
