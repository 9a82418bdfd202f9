package llm

// Options contains model inference parameters.
type Options struct {
	Temperature *float64 `json:"temperature,omitempty"` // Sampling temperature (0.0-2.0)
	TopP        *float64 `json:"top_p,omitempty"`       // Nucleus sampling threshold
	Seed        *int     `json:"seed,omitempty"`        // Random seed for reproducibility
	NumPredict  *int     `json:"num_predict,omitempty"` // Max tokens to generate
	Stop        []string `json:"stop,omitempty"`        // Stop generation at these sequences
}

// Float64 returns a pointer to v, for building Options literals.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v, for building Options literals.
func Int(v int) *int { return &v }
