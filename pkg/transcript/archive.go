package transcript

import (
	"context"
	"fmt"

	"github.com/bylawhq/bylaw/pkg/llm"
)

// Archive persists transcript entries. Content-addressing makes Put
// idempotent: storing an entry that already exists is a no-op.
type Archive interface {
	// Put stores an entry, reporting whether it was new.
	Put(ctx context.Context, e *Entry) (bool, error)

	// Get retrieves an entry by hash. Returns ErrNotFound if absent.
	Get(ctx context.Context, hash string) (*Entry, error)

	// Has checks whether an entry exists.
	Has(ctx context.Context, hash string) (bool, error)

	// List returns every entry in the archive.
	List(ctx context.Context) ([]*Entry, error)

	// Heads returns entries with no children - the tips of archived
	// conversations.
	Heads(ctx context.Context) ([]*Entry, error)

	// History returns the chain from the first message to the entry
	// with the given hash, in chronological order.
	History(ctx context.Context, hash string) ([]*Entry, error)

	// Close releases any resources held by the archive.
	Close() error
}

// ErrNotFound is returned when an entry doesn't exist in the archive.
type ErrNotFound struct {
	Hash string
}

func (e ErrNotFound) Error() string {
	if e.Hash == "" {
		return "transcript entry not found"
	}
	return "transcript entry not found: " + e.Hash
}

// Record chains a cleaned conversation snapshot into the archive and
// returns the head hash. Shared prefixes across sessions deduplicate; a
// different reply to the same history branches at the reply.
func Record(ctx context.Context, a Archive, model string, messages []llm.Message) (string, error) {
	var parent *Entry

	for _, msg := range messages {
		e := NewEntry(msg.Role, msg.Content, model, parent)
		if _, err := a.Put(ctx, e); err != nil {
			return "", fmt.Errorf("storing transcript entry: %w", err)
		}
		parent = e
	}

	if parent == nil {
		return "", nil
	}
	return parent.Hash, nil
}
