package assistant

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/bylawhq/bylaw/pkg/conversation"
	"github.com/bylawhq/bylaw/pkg/ledger"
	"github.com/bylawhq/bylaw/pkg/llm"
	"github.com/bylawhq/bylaw/pkg/retrieval"
	"github.com/bylawhq/bylaw/pkg/tokenizer"
)

// State is the orchestrator's position in the turn cycle.
type State int32

const (
	StateIdle State = iota
	StateExpanding
	StateRetrieving
	StateComposing
	StateStreaming
	StateCleaning
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateExpanding:
		return "expanding"
	case StateRetrieving:
		return "retrieving"
	case StateComposing:
		return "composing"
	case StateStreaming:
		return "streaming"
	case StateCleaning:
		return "cleaning"
	default:
		return "unknown"
	}
}

// Streamer produces a streamed chat completion for a prompt. fn is invoked
// for each incremental segment; the full concatenated text is returned only
// after the stream's end marker. A mid-flight failure returns an error and
// the partial text must not be counted.
type Streamer interface {
	Stream(ctx context.Context, messages []llm.Message, fn func(segment string) error) (string, error)
}

// Orchestrator drives the three-stage turn for one session: expand the
// query, retrieve document context, stream the reply - updating the
// session ledger at each checkpoint and restoring conversation hygiene
// once the turn completes.
//
// Turns are strictly sequential per session; Turn holds the orchestrator
// lock for the whole cycle.
type Orchestrator struct {
	mu    sync.Mutex
	state atomic.Int32

	counter   tokenizer.Counter
	log       *conversation.Log
	ledger    *ledger.Ledger
	expander  Expander
	retriever retrieval.Retriever
	chunksPer int
	streamer  Streamer
	logger    *zap.Logger
}

// NewOrchestrator wires an orchestrator around a fresh conversation log.
func NewOrchestrator(
	systemPrompt string,
	counter tokenizer.Counter,
	prices ledger.PriceTable,
	expander Expander,
	retriever retrieval.Retriever,
	chunksPerQuery int,
	streamer Streamer,
	logger *zap.Logger,
) *Orchestrator {
	if chunksPerQuery <= 0 {
		chunksPerQuery = 3
	}
	return &Orchestrator{
		counter:   counter,
		log:       conversation.NewLog(systemPrompt),
		ledger:    ledger.New(prices),
		expander:  expander,
		retriever: retriever,
		chunksPer: chunksPerQuery,
		streamer:  streamer,
		logger:    logger,
	}
}

// State reports the current turn stage, safe to read concurrently.
func (o *Orchestrator) State() State {
	return State(o.state.Load())
}

func (o *Orchestrator) setState(s State) {
	o.state.Store(int32(s))
}

// Ledger exposes the session's counters for read-only projections.
func (o *Orchestrator) Ledger() *ledger.Ledger {
	return o.ledger
}

// History returns the cleaned conversation snapshot.
func (o *Orchestrator) History() []llm.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.log.Snapshot()
}

// Turn runs one complete user-query-to-reply cycle. onSegment, if non-nil,
// receives each streamed segment as it arrives; ledger counts are still
// deferred until the stream completes. The returned string is the full
// assistant reply.
func (o *Orchestrator) Turn(ctx context.Context, query string, onSegment func(segment string) error) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	defer o.setState(StateIdle)

	// Step 1: the raw query joins the history unmodified; keep it
	// separately for restoration after the turn.
	bare := query
	if err := o.log.Append(llm.Message{Role: llm.RoleUser, Content: query}); err != nil {
		return "", &PreconditionError{Op: "append query", Err: err}
	}

	// Step 2: expansion.
	o.setState(StateExpanding)
	expansionPrompt := expansionInstruction(5) + "\n\n" + conversation.Render(o.log.Snapshot())
	o.ledger.RecordPrompt(o.counter.Count(expansionPrompt))

	if err := ctx.Err(); err != nil {
		o.log.RemoveLast()
		return "", err
	}

	exp, err := o.expander.Expand(ctx, expansionPrompt)
	if err != nil {
		o.log.RemoveLast()
		return "", &TransientServiceError{Stage: "expansion", Err: err}
	}
	o.ledger.RecordCompletion(o.counter.Count(exp.Raw))

	o.logger.Debug("query expanded",
		zap.Int("expanded_queries", len(exp.Queries)),
	)

	// Step 3: retrieval over the bare query plus every expansion.
	// Zero chunks is not an error; the turn proceeds context-free.
	o.setState(StateRetrieving)
	var candidates []retrieval.Chunk
	for _, q := range append([]string{bare}, exp.Queries...) {
		if err := ctx.Err(); err != nil {
			o.log.RemoveLast()
			return "", err
		}

		chunks, err := o.retriever.Retrieve(ctx, q, o.chunksPer)
		if err != nil {
			o.log.RemoveLast()
			return "", &TransientServiceError{Stage: "retrieval", Err: err}
		}
		candidates = append(candidates, chunks...)
	}

	agg := retrieval.Aggregate(o.counter, candidates)
	o.ledger.RecordRAGContext(agg.Tokens)

	o.logger.Debug("context aggregated",
		zap.Int("candidates", len(candidates)),
		zap.Int("deduped", len(agg.Chunks)),
		zap.Int("context_tokens", agg.Tokens),
	)

	// Step 4: compose the chat prompt. The retrieved context rides
	// inside the last user message, so the snapshot is the whole prompt
	// and the bare query appears exactly once.
	o.setState(StateComposing)
	if err := o.log.OverwriteLastUser(contextBlock(bare, agg.Text)); err != nil {
		return "", &PreconditionError{Op: "inject context", Err: err}
	}

	prompt := o.log.Snapshot()
	o.ledger.RecordPrompt(o.counter.Count(conversation.Render(prompt)))

	if err := ctx.Err(); err != nil {
		o.log.RemoveLast()
		return "", err
	}

	// Step 5: stream the reply. No counts are committed until the end
	// marker arrives; an interrupted stream leaves the turn without an
	// assistant message and without output tokens.
	o.setState(StateStreaming)
	full, err := o.streamer.Stream(ctx, prompt, onSegment)
	if err != nil {
		return "", &StreamInterruptedError{Err: err}
	}

	o.ledger.RecordCompletion(o.counter.Count(full))
	if err := o.log.Append(llm.Message{Role: llm.RoleAssistant, Content: full}); err != nil {
		return "", &PreconditionError{Op: "append reply", Err: err}
	}

	// Steps 7-8: strip the injected context, then overwrite the
	// conversation counter with a count of the cleaned history.
	o.setState(StateCleaning)
	if err := o.log.OverwriteLastUser(bare); err != nil {
		return "", &PreconditionError{Op: "clean history", Err: err}
	}
	o.ledger.SetConversationTokens(o.counter.Count(conversation.Render(o.log.Snapshot())))

	return full, nil
}
