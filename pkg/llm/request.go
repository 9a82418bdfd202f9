package llm

// ChatRequest is a chat completion request (Ollama-compatible).
type ChatRequest struct {
	Model    string    `json:"model"`            // Model name (e.g., "llama3", "qwen2.5")
	Messages []Message `json:"messages"`         // Conversation history
	Stream   *bool     `json:"stream,omitempty"` // Whether to stream responses (upstream defaults to true)
	Format   string    `json:"format,omitempty"` // Response format ("json" for JSON mode)

	Options *Options `json:"options,omitempty"`
}

// EmbedRequest is an embedding request (Ollama-compatible).
type EmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}
