// Package transcript archives completed, cleaned conversation turns as a
// content-addressed chain. Identical histories hash identically and
// deduplicate; divergent replies branch from their shared prefix. The
// content is the identity - no session IDs are stored.
package transcript

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Entry is a single archived message, linked to the entry before it.
type Entry struct {
	// Hash is the content-addressed identifier (SHA-256, hex-encoded).
	Hash string `json:"hash"`

	// ParentHash links to the previous entry; nil for the first message
	// of a conversation.
	ParentHash *string `json:"parent_hash"`

	Role    string `json:"role"`
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
}

// NewEntry creates an entry for one message, hashed over its content and
// its parent's hash.
func NewEntry(role, content, model string, parent *Entry) *Entry {
	e := &Entry{
		Role:    role,
		Content: content,
		Model:   model,
	}

	if parent != nil {
		e.ParentHash = &parent.Hash
	}

	e.Hash = e.computeHash()
	return e
}

type hashInput struct {
	Parent  string `json:"parent,omitempty"`
	Role    string `json:"role"`
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
}

func (e *Entry) computeHash() string {
	i := hashInput{
		Role:    e.Role,
		Content: e.Content,
		Model:   e.Model,
	}

	if e.ParentHash != nil {
		i.Parent = *e.ParentHash
	}

	// Canonical JSON encoding for deterministic hashing
	data, err := json.Marshal(i)
	if err != nil {
		panic("failed to marshal hash input: " + err.Error())
	}

	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
