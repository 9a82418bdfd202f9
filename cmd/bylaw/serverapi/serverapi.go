// Package serverapi is a small client for a running bylaw assistant server,
// shared by the CLI subcommands.
package serverapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bylawhq/bylaw/pkg/ledger"
)

// Client talks to one assistant server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the given server URL.
func New(serverURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{
			// A turn spans expansion, retrieval, and a full stream.
			Timeout: 10 * time.Minute,
		},
	}
}

// TurnResult is the outcome of one chat turn.
type TurnResult struct {
	Reply          string
	Ledger         ledger.Snapshot
	TranscriptHead string
}

type sessionResponse struct {
	ID string `json:"id"`
}

type streamLine struct {
	Content        string          `json:"content"`
	Done           bool            `json:"done"`
	Ledger         ledger.Snapshot `json:"ledger"`
	TranscriptHead string          `json:"transcript_head"`
	Error          string          `json:"error"`
	Retryable      bool            `json:"retryable"`
}

// CreateSession starts a new session and returns its id.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/sessions", nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	var created sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return created.ID, nil
}

// DeleteSession ends a session.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/sessions/"+id, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return nil
}

// Chat runs one turn, invoking onSegment for each streamed piece of the
// reply, and returns the assembled result once the server's done marker
// arrives.
func (c *Client) Chat(ctx context.Context, id, message string, onSegment func(string) error) (*TurnResult, error) {
	payload, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/sessions/"+id+"/chat", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}

	var reply strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}

		var line streamLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return nil, fmt.Errorf("parse stream line: %w", err)
		}

		switch {
		case line.Error != "":
			if line.Retryable {
				return nil, fmt.Errorf("turn failed (retryable): %s", line.Error)
			}
			return nil, fmt.Errorf("turn failed: %s", line.Error)
		case line.Done:
			return &TurnResult{
				Reply:          reply.String(),
				Ledger:         line.Ledger,
				TranscriptHead: line.TranscriptHead,
			}, nil
		case line.Content != "":
			reply.WriteString(line.Content)
			if onSegment != nil {
				if err := onSegment(line.Content); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	return nil, errors.New("stream ended before done marker")
}
