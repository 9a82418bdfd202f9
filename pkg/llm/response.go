package llm

import "time"

// ChatResponse is a complete (non-streamed) chat completion response.
type ChatResponse struct {
	Model     string    `json:"model"`      // Model that generated the response
	CreatedAt time.Time `json:"created_at"` // Response timestamp
	Message   Message   `json:"message"`    // The assistant's reply
	Done      bool      `json:"done"`       // Whether generation is complete

	// Upstream-reported counts. Informational only: the assistant never
	// feeds these into its ledger, which counts locally for determinism.
	PromptEvalCount int `json:"prompt_eval_count,omitempty"`
	EvalCount       int `json:"eval_count,omitempty"`
}

// EmbedResponse carries one embedding vector per input string.
type EmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}
