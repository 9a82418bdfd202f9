package main

import (
	"flag"

	"go.uber.org/zap"

	"github.com/bylawhq/bylaw/assistant"
	"github.com/bylawhq/bylaw/pkg/logger"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "", "Path to TOML config file (optional)")
	listenAddr := flag.String("listen", "", "Address to listen on (overrides config)")
	upstreamURL := flag.String("upstream", "", "Upstream inference provider URL (e.g., Ollama)")
	chunkDB := flag.String("chunks", "", "Path to sqlite-vec chunk index (overrides config)")
	transcriptDB := flag.String("transcripts", "", "Path to SQLite transcript archive (overrides config)")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	// Set up logger
	logger := logger.NewLogger(*debug)
	defer logger.Sync()

	config := assistant.DefaultConfig()
	if *configPath != "" {
		var err error
		config, err = assistant.LoadConfig(*configPath)
		if err != nil {
			logger.Fatal("failed to load config", zap.Error(err))
		}
	}
	if *listenAddr != "" {
		config.Listen = *listenAddr
	}
	if *upstreamURL != "" {
		config.Upstream = *upstreamURL
	}
	if *chunkDB != "" {
		config.ChunkDB = *chunkDB
	}
	if *transcriptDB != "" {
		config.TranscriptDB = *transcriptDB
	}

	logger.Info("bylaw assistant starting",
		zap.String("listen", config.Listen),
		zap.String("upstream", config.Upstream),
		zap.Bool("debug", *debug),
	)

	server, err := assistant.New(config, logger)
	if err != nil {
		logger.Fatal("failed to create server", zap.Error(err))
	}
	defer server.Close()

	// Hot-reload pricing and retrieval settings for new sessions.
	if *configPath != "" {
		stop := make(chan struct{})
		defer close(stop)
		if err := assistant.WatchConfig(*configPath, logger, server.ApplyConfig, stop); err != nil {
			logger.Warn("config watch unavailable", zap.Error(err))
		}
	}

	if err := server.Run(); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
