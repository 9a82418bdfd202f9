package llm

import "time"

// StreamChunk is a single NDJSON line in a streaming chat response.
// The final chunk has Done=true and an empty or partial Message; the
// stream is not complete until that marker arrives.
type StreamChunk struct {
	Model     string    `json:"model"`
	CreatedAt time.Time `json:"created_at"`
	Message   Message   `json:"message"`
	Done      bool      `json:"done"`

	PromptEvalCount int `json:"prompt_eval_count,omitempty"`
	EvalCount       int `json:"eval_count,omitempty"`
}
