// Package assistant wires the RAG question-answering pipeline - query
// expansion, chunk retrieval, streamed chat completion - around per-session
// conversation logs and token ledgers, and serves it over HTTP.
package assistant

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/bylawhq/bylaw/pkg/ledger"
	"github.com/bylawhq/bylaw/pkg/llm"
	"github.com/bylawhq/bylaw/pkg/retrieval"
	"github.com/bylawhq/bylaw/pkg/tokenizer"
	"github.com/bylawhq/bylaw/pkg/transcript"
	"github.com/bylawhq/bylaw/pkg/upstream"
)

// Server hosts independent assistant sessions and their ledgers.
type Server struct {
	mu     sync.RWMutex
	config Config

	sessions  *Manager
	archive   transcript.Archive
	retriever retrieval.Retriever
	counter   tokenizer.Counter
	client    *upstream.Client
	logger    *zap.Logger
	server    *fiber.App
}

// chatStreamer adapts the upstream client to the orchestrator's Streamer
// contract for a fixed chat model.
type chatStreamer struct {
	client *upstream.Client
	model  string
}

func (s chatStreamer) Stream(ctx context.Context, messages []llm.Message, fn func(string) error) (string, error) {
	return s.client.ChatStream(ctx, &llm.ChatRequest{
		Model:    s.model,
		Messages: messages,
		Options:  &llm.Options{Temperature: llm.Float64(0)},
	}, fn)
}

// New creates a Server from config.
func New(config Config, logger *zap.Logger) (*Server, error) {
	client := upstream.New(config.Upstream)

	var retriever retrieval.Retriever
	if config.ChunkDB != "" {
		store, err := retrieval.NewSQLiteVecStore(config.ChunkDB, config.EmbedDim,
			upstream.NewEmbedder(client, config.EmbedModel))
		if err != nil {
			return nil, fmt.Errorf("open chunk store: %w", err)
		}
		retriever = store
		logger.Info("using sqlite-vec chunk store", zap.String("path", config.ChunkDB))
	} else {
		retriever = retrieval.NewKeywordStore(nil)
		logger.Warn("no chunk store configured, retrieval will return nothing")
	}

	var archive transcript.Archive
	if config.TranscriptDB != "" {
		var err error
		archive, err = transcript.NewSQLiteArchive(config.TranscriptDB)
		if err != nil {
			return nil, fmt.Errorf("open transcript archive: %w", err)
		}
		logger.Info("using SQLite transcript archive", zap.String("path", config.TranscriptDB))
	} else {
		archive = transcript.NewMemoryArchive()
		logger.Info("using in-memory transcript archive")
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
		// Enable streaming
		StreamRequestBody: true,
	})

	s := &Server{
		config:    config,
		sessions:  NewManager(),
		archive:   archive,
		retriever: retriever,
		counter:   tokenizer.NewHeuristic(),
		client:    client,
		logger:    logger,
		server:    app,
	}

	s.registerRoutes(app)
	return s, nil
}

func (s *Server) registerRoutes(app *fiber.App) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(map[string]string{"status": "ok"})
	})

	app.Post("/api/sessions", s.handleCreateSession)
	app.Get("/api/sessions/:id/ledger", s.handleLedger)
	app.Get("/api/sessions/:id/history", s.handleHistory)
	app.Delete("/api/sessions/:id", s.handleDeleteSession)
	app.Post("/api/sessions/:id/chat", s.handleChat)

	app.Get("/transcripts", s.handleListTranscripts)
	app.Get("/transcripts/:hash", s.handleGetTranscript)
}

// Run starts the server on the configured listen address.
func (s *Server) Run() error {
	s.mu.RLock()
	listen := s.config.Listen
	upstreamURL := s.config.Upstream
	s.mu.RUnlock()

	s.logger.Info("starting assistant server",
		zap.String("listen", listen),
		zap.String("upstream", upstreamURL),
	)
	return s.server.Listen(listen)
}

// RunWithListener serves on an existing listener. Used by tests and by
// callers that manage their own sockets.
func (s *Server) RunWithListener(l net.Listener) error {
	return s.server.Listener(l)
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown() error {
	return s.server.Shutdown()
}

// Close shuts down the server and releases resources.
func (s *Server) Close() error {
	if closer, ok := s.retriever.(io.Closer); ok {
		closer.Close()
	}
	return s.archive.Close()
}

// ApplyConfig adopts reloaded settings. Pricing, models, and retrieval
// parameters apply to sessions created from now on; listen address and
// database paths need a restart.
func (s *Server) ApplyConfig(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.config.Pricing = cfg.Pricing
	s.config.ChatModel = cfg.ChatModel
	s.config.ExpansionModel = cfg.ExpansionModel
	s.config.RetrieveK = cfg.RetrieveK
	s.config.SystemPrompt = cfg.SystemPrompt
}

// newOrchestrator builds a session orchestrator from the current config.
func (s *Server) newOrchestrator() *Orchestrator {
	s.mu.RLock()
	cfg := s.config
	s.mu.RUnlock()

	return NewOrchestrator(
		cfg.SystemPrompt,
		s.counter,
		cfg.Pricing,
		NewQueryExpander(s.client, cfg.ExpansionModel),
		s.retriever,
		cfg.RetrieveK,
		chatStreamer{client: s.client, model: cfg.ChatModel},
		s.logger,
	)
}

// SessionResponse describes a created session.
type SessionResponse struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
}

func (s *Server) handleCreateSession(c *fiber.Ctx) error {
	sess := s.sessions.Create(s.newOrchestrator())

	s.logger.Info("session created", zap.String("session_id", sess.ID))
	return c.Status(fiber.StatusCreated).JSON(SessionResponse{
		ID:        sess.ID,
		CreatedAt: sess.CreatedAt.Format("2006-01-02T15:04:05Z"),
	})
}

func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	id := c.Params("id")
	if err := s.sessions.Delete(id); err != nil {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "session not found"})
	}

	s.logger.Info("session ended", zap.String("session_id", id))
	return c.SendStatus(fiber.StatusNoContent)
}

// LedgerResponse is the sidebar projection of a session's counters.
type LedgerResponse struct {
	SessionID string          `json:"session_id"`
	State     string          `json:"state"`
	Ledger    ledger.Snapshot `json:"ledger"`
}

func (s *Server) handleLedger(c *fiber.Ctx) error {
	sess, err := s.sessions.Get(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "session not found"})
	}

	return c.JSON(LedgerResponse{
		SessionID: sess.ID,
		State:     sess.Orchestrator.State().String(),
		Ledger:    sess.Orchestrator.Ledger().Snapshot(),
	})
}

func (s *Server) handleHistory(c *fiber.Ctx) error {
	sess, err := s.sessions.Get(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "session not found"})
	}

	history := sess.Orchestrator.History()
	return c.JSON(map[string]any{
		"session_id": sess.ID,
		"messages":   history,
		"count":      len(history),
	})
}

// ChatRequestBody is the payload of the chat endpoint.
type ChatRequestBody struct {
	Message string `json:"message"`
}

// chat stream line shapes; exactly one of the fields groups is set per line.
type chatSegmentLine struct {
	Content string `json:"content"`
}

type chatFinalLine struct {
	Done           bool            `json:"done"`
	Ledger         ledger.Snapshot `json:"ledger"`
	TranscriptHead string          `json:"transcript_head,omitempty"`
}

type chatErrorLine struct {
	Error     string `json:"error"`
	Retryable bool   `json:"retryable"`
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	sess, err := s.sessions.Get(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "session not found"})
	}

	var body ChatRequestBody
	if err := json.Unmarshal(c.Body(), &body); err != nil || body.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
	}

	s.mu.RLock()
	chatModel := s.config.ChatModel
	s.mu.RUnlock()

	c.Set("Content-Type", "application/x-ndjson")
	c.Set("Transfer-Encoding", "chunked")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		writeLine := func(v any) error {
			line, err := json.Marshal(v)
			if err != nil {
				return err
			}
			if _, err := w.Write(line); err != nil {
				return err
			}
			if _, err := w.Write([]byte("\n")); err != nil {
				return err
			}
			return w.Flush()
		}

		// The client connection's context ends when fiber returns the
		// handler; the turn manages its own lifetime.
		reply, err := sess.Orchestrator.Turn(context.Background(), body.Message, func(segment string) error {
			return writeLine(chatSegmentLine{Content: segment})
		})
		if err != nil {
			s.logger.Error("turn failed",
				zap.String("session_id", sess.ID),
				zap.Error(err),
			)
			writeLine(chatErrorLine{Error: err.Error(), Retryable: retryable(err)})
			return
		}

		// Archive the cleaned history. Write-behind: an archive failure
		// must not fail the turn that already happened.
		head, archiveErr := transcript.Record(context.Background(), s.archive, chatModel, sess.Orchestrator.History())
		if archiveErr != nil {
			s.logger.Error("failed to archive transcript", zap.Error(archiveErr))
		} else {
			s.logger.Info("turn archived",
				zap.String("session_id", sess.ID),
				zap.String("head", truncate(head, 16)),
				zap.Int("reply_len", len(reply)),
			)
		}

		writeLine(chatFinalLine{
			Done:           true,
			Ledger:         sess.Orchestrator.Ledger().Snapshot(),
			TranscriptHead: head,
		})
	}))

	return nil
}

// retryable reports whether the error taxonomy marks err as worth retrying.
func retryable(err error) bool {
	var transient *TransientServiceError
	var interrupted *StreamInterruptedError
	return errors.As(err, &transient) || errors.As(err, &interrupted)
}

// TranscriptHistoryResponse is one archived conversation.
type TranscriptHistoryResponse struct {
	HeadHash string              `json:"head_hash"`
	Depth    int                 `json:"depth"`
	Entries  []*transcript.Entry `json:"entries"`
}

func (s *Server) handleListTranscripts(c *fiber.Ctx) error {
	ctx := c.Context()

	heads, err := s.archive.Heads(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to list transcripts"})
	}

	histories := make([]TranscriptHistoryResponse, 0, len(heads))
	for _, head := range heads {
		entries, err := s.archive.History(ctx, head.Hash)
		if err != nil {
			s.logger.Warn("failed to build history for head", zap.String("hash", head.Hash), zap.Error(err))
			continue
		}
		histories = append(histories, TranscriptHistoryResponse{
			HeadHash: head.Hash,
			Depth:    len(entries),
			Entries:  entries,
		})
	}

	return c.JSON(map[string]any{
		"count":       len(histories),
		"transcripts": histories,
	})
}

func (s *Server) handleGetTranscript(c *fiber.Ctx) error {
	hash := c.Params("hash")
	if hash == "" {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "hash parameter required"})
	}

	entries, err := s.archive.History(c.Context(), hash)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "transcript not found"})
	}

	return c.JSON(TranscriptHistoryResponse{
		HeadHash: hash,
		Depth:    len(entries),
		Entries:  entries,
	})
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
