// Package llm holds the wire types for the Ollama-compatible inference API
// the assistant talks to for query expansion, chat completion, and embeddings.
package llm

// Conversation roles. A conversation always opens with exactly one
// RoleSystem message; everything after it is user or assistant turns.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a single entry in a conversation.
type Message struct {
	Role    string `json:"role"`    // "system", "user", "assistant"
	Content string `json:"content"` // The message text
}

// ValidRole reports whether role is one of the three allowed values.
func ValidRole(role string) bool {
	return role == RoleSystem || role == RoleUser || role == RoleAssistant
}
