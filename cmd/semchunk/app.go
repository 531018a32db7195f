package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/semchunk/internal/chunker"
	"github.com/dshills/semchunk/internal/config"
	"github.com/dshills/semchunk/internal/embedder"
	"github.com/dshills/semchunk/internal/indexer"
	"github.com/dshills/semchunk/internal/logging"
	"github.com/dshills/semchunk/internal/storage"
)

// app holds the components shared by every command
type app struct {
	cfg     *config.Config
	logger  logging.Logger
	emb     embedder.Embedder
	chunker *chunker.Chunker
	store   *storage.SQLiteStorage
}

// newApp loads configuration and builds the logger, embedder and chunker.
// Storage is opened separately by commands that need it.
func newApp(cmd *cobra.Command) (*app, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}

	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if db, _ := cmd.Flags().GetString("db"); db != "" {
		cfg.DBPath = db
	}

	logger := logging.New(cfg.LoggingConfig())

	emb, err := embedder.New(cfg.EmbedderConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}

	seg, err := cfg.NewSegmenter()
	if err != nil {
		_ = emb.Close()
		return nil, err
	}

	logger.Debug("configuration loaded",
		"provider", emb.Provider(),
		"model", emb.Model(),
		"segmenter", seg.Name(),
		"db", cfg.DBPath)

	return &app{
		cfg:     cfg,
		logger:  logger,
		emb:     emb,
		chunker: chunker.New(emb, seg, logger),
	}, nil
}

func (a *app) openStorage() (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(a.cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.store = store
	return store, nil
}

func (a *app) newIndexer(store storage.Storage) *indexer.Indexer {
	return indexer.New(store, a.chunker, indexer.Config{
		Workers:  a.cfg.WorkerCount(),
		Provider: a.emb.Provider(),
		Model:    a.emb.Model(),
		Logger:   a.logger,
	})
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close storage", "error", err)
		}
	}
	if err := a.emb.Close(); err != nil {
		a.logger.Warn("failed to close embedder", "error", err)
	}
}

// addOptionFlags registers per-run overrides of the chunking defaults
func addOptionFlags(cmd *cobra.Command) {
	cmd.Flags().Int("buffer-size", 0, "Neighbouring units on each side in a context window")
	cmd.Flags().Float64("percentile", 0, "Breakpoint percentile of the distance distribution (0-100)")
	cmd.Flags().Int("min-chunk-sentences", 0, "Minimum units per chunk after merging")
}

// chunkOptions overlays changed flags onto the configured defaults
func (a *app) chunkOptions(cmd *cobra.Command) (chunker.Options, error) {
	opts := a.cfg.ChunkOptions()
	if cmd.Flags().Changed("buffer-size") {
		opts.BufferSize, _ = cmd.Flags().GetInt("buffer-size")
	}
	if cmd.Flags().Changed("percentile") {
		opts.PercentileThreshold, _ = cmd.Flags().GetFloat64("percentile")
	}
	if cmd.Flags().Changed("min-chunk-sentences") {
		opts.MinChunkSentences, _ = cmd.Flags().GetInt("min-chunk-sentences")
	}
	return opts, opts.Validate()
}
