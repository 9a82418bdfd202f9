package assistant

import (
	"context"
	"encoding/json"

	"github.com/bylawhq/bylaw/pkg/llm"
	"github.com/bylawhq/bylaw/pkg/upstream"
)

// Expansion is the result of a query-expansion call. Raw carries the exact
// text the model produced so its tokens can be counted even when parsing
// falls back.
type Expansion struct {
	Queries []string
	Raw     string
}

// Expander reformulates an expansion prompt into search queries. A
// transport failure is transient and aborts the turn.
type Expander interface {
	Expand(ctx context.Context, prompt string) (*Expansion, error)
}

// QueryExpander calls the upstream model for expansion. Malformed output
// is not an error: the turn proceeds with the bare query alone, because
// tokens were already spent and a broken reformulation list should not
// cost the user their question.
type QueryExpander struct {
	client *upstream.Client
	model  string
}

// NewQueryExpander creates an expander using the given model.
func NewQueryExpander(client *upstream.Client, model string) *QueryExpander {
	return &QueryExpander{client: client, model: model}
}

// Expand implements Expander.
func (q *QueryExpander) Expand(ctx context.Context, prompt string) (*Expansion, error) {
	resp, err := q.client.Chat(ctx, &llm.ChatRequest{
		Model:    q.model,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Options:  &llm.Options{Temperature: llm.Float64(0.7)},
	})
	if err != nil {
		return nil, err
	}

	exp := &Expansion{Raw: resp.Message.Content}

	var queries []string
	if err := json.Unmarshal([]byte(resp.Message.Content), &queries); err == nil {
		for _, s := range queries {
			if s != "" {
				exp.Queries = append(exp.Queries, s)
			}
		}
	}

	return exp, nil
}
