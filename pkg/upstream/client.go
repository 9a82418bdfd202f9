// Package upstream is an HTTP client for the Ollama-compatible inference
// API used for query expansion, chat completion, and embeddings.
package upstream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bylawhq/bylaw/pkg/llm"
)

// ErrStreamTruncated is returned when a streaming response ends without
// the done marker.
var ErrStreamTruncated = errors.New("stream ended before done marker")

// Client talks to one upstream inference server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the given base URL (e.g. "http://localhost:11434").
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			// LLM requests can be slow, especially with long contexts
			Timeout: 5 * time.Minute,
		},
	}
}

// Chat performs a non-streaming chat completion.
func (c *Client) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	streaming := false
	req.Stream = &streaming

	body, err := c.post(ctx, "/api/chat", req)
	if err != nil {
		return nil, err
	}

	var resp llm.ChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &resp, nil
}

// ChatStream performs a streaming chat completion, invoking fn for each
// incremental text segment. It returns the full concatenated response only
// after the stream's done marker arrives; a stream that errors or ends
// early returns an error and the caller must not count the partial text.
func (c *Client) ChatStream(ctx context.Context, req *llm.ChatRequest, fn func(segment string) error) (string, error) {
	streaming := true
	req.Stream = &streaming

	reqBody, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(httpResp.Body)
		return "", fmt.Errorf("upstream returned %d: %s", httpResp.StatusCode, string(body))
	}

	var full bytes.Buffer
	done := false

	scanner := bufio.NewScanner(httpResp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var chunk llm.StreamChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			return "", fmt.Errorf("parse chunk: %w", err)
		}

		if chunk.Message.Content != "" {
			full.WriteString(chunk.Message.Content)
			if fn != nil {
				if err := fn(chunk.Message.Content); err != nil {
					return "", err
				}
			}
		}

		if chunk.Done {
			done = true
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read stream: %w", err)
	}
	if !done {
		return "", ErrStreamTruncated
	}

	return full.String(), nil
}

// Embed returns one embedding vector per input string.
func (c *Client) Embed(ctx context.Context, req *llm.EmbedRequest) (*llm.EmbedResponse, error) {
	body, err := c.post(ctx, "/api/embed", req)
	if err != nil {
		return nil, err
	}

	var resp llm.EmbedResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream returned %d: %s", httpResp.StatusCode, string(body))
	}

	return body, nil
}

// Embedder adapts the client to the retrieval.Embedder contract for a
// fixed embedding model.
type Embedder struct {
	client *Client
	model  string
}

// NewEmbedder creates an Embedder using the given model.
func NewEmbedder(client *Client, model string) *Embedder {
	return &Embedder{client: client, model: model}
}

// Embed returns the vector for a single text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embed(ctx, &llm.EmbedRequest{Model: e.model, Input: []string{text}})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, errors.New("upstream returned no embeddings")
	}
	return resp.Embeddings[0], nil
}
