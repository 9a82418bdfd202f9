package assistant

import (
	"fmt"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/bylawhq/bylaw/pkg/ledger"
)

// Config is the assistant server configuration.
type Config struct {
	// Address to listen on (e.g., ":8080")
	Listen string `toml:"listen"`

	// Upstream inference provider URL (e.g., "http://localhost:11434")
	Upstream string `toml:"upstream"`

	// Models for each pipeline stage.
	ChatModel      string `toml:"chat_model"`
	ExpansionModel string `toml:"expansion_model"`
	EmbedModel     string `toml:"embed_model"`

	// Retrieval parameters.
	RetrieveK int `toml:"retrieve_k"` // chunks fetched per query
	EmbedDim  int `toml:"embed_dim"`  // embedding vector width

	// ChunkDB is the sqlite-vec chunk index. Empty selects the
	// in-memory keyword fallback (development only).
	ChunkDB string `toml:"chunk_db"`

	// TranscriptDB persists completed turns. Empty keeps them in memory.
	TranscriptDB string `toml:"transcript_db"`

	// SystemPrompt overrides the default conversation seed.
	SystemPrompt string `toml:"system_prompt"`

	// Pricing is fixed per session at session creation.
	Pricing ledger.PriceTable `toml:"pricing"`
}

// DefaultConfig returns the configuration used when no file or flag says
// otherwise. Rates default to gpt-4o-mini list pricing.
func DefaultConfig() Config {
	return Config{
		Listen:         ":8080",
		Upstream:       "http://localhost:11434",
		ChatModel:      "llama3",
		ExpansionModel: "llama3",
		EmbedModel:     "nomic-embed-text",
		RetrieveK:      3,
		EmbedDim:       768,
		SystemPrompt:   DefaultSystemPrompt,
		Pricing: ledger.PriceTable{
			InputRate:  0.15e-6,
			OutputRate: 0.60e-6,
		},
	}
}

// LoadConfig reads a TOML file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg, nil
}

// WatchConfig re-reads path whenever it changes and hands the result to
// apply. Reloaded pricing and retrieval settings affect sessions created
// afterwards; live sessions keep the rates they were born with. The
// watcher runs until stop is closed.
func WatchConfig(path string, logger *zap.Logger, apply func(Config), stop <-chan struct{}) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Watch the directory: editors replace files on save, which drops
	// a watch on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", path, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-stop:
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				cfg, err := LoadConfig(path)
				if err != nil {
					logger.Warn("config reload failed", zap.Error(err))
					continue
				}
				logger.Info("config reloaded", zap.String("path", path))
				apply(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("config watcher error", zap.Error(err))
			}
		}
	}()

	return nil
}
