package llm

// ErrorResponse represents an error from the inference API.
type ErrorResponse struct {
	Error string `json:"error"`
}
