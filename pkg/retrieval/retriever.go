package retrieval

import "context"

// Retriever fetches candidate chunks for a single query. Deduplication and
// token counting are the caller's responsibility, not the service's.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Chunk, error)
}

// Embedder turns text into a vector for similarity search. The assistant
// treats embedding production as an opaque external service.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
