package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dshills/semchunk/internal/mcp"
	"github.com/dshills/semchunk/internal/storage"
)

// serveCmd returns the MCP server command
func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			store, err := a.openStorage()
			if err != nil {
				return err
			}

			server, err := mcp.NewServer(mcp.Config{
				Storage:          store,
				Chunker:          a.chunker,
				Indexer:          a.newIndexer(store),
				Defaults:         a.cfg.ChunkOptions(),
				FixedWindowWords: a.cfg.FixedWindowWords,
				Provider:         a.emb.Provider(),
				Model:            a.emb.Model(),
				Logger:           a.logger,
			})
			if err != nil {
				return fmt.Errorf("failed to create MCP server: %w", err)
			}

			a.logger.Info("semchunk starting",
				"version", version,
				"build_mode", storage.BuildMode,
				"driver", storage.DriverName)

			err = server.Serve(cmd.Context())
			if cmd.Context().Err() != nil {
				a.logger.Info("server stopped")
				return nil
			}
			return err
		},
	}
}

// chunkCmd returns the one-shot chunking command
func chunkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chunk <file|->",
		Short: "Chunk a file (or stdin) and print the chunks as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			opts, err := a.chunkOptions(cmd)
			if err != nil {
				return err
			}

			// Neither path touches storage
			idx := a.newIndexer(nil)

			if args[0] == "-" {
				text, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read stdin: %w", err)
				}
				res, err := idx.ChunkText(cmd.Context(), string(text), opts)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
					"segmenter":  res.Segmenter,
					"unit_count": res.Units,
					"threshold":  res.Threshold,
					"chunks":     res.Chunks,
				})
			}

			res, err := idx.ChunkFile(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"path":       res.Document.Path,
				"segmenter":  res.Segmenter,
				"unit_count": res.Units,
				"threshold":  res.Threshold,
				"chunks":     res.Chunks,
			})
		},
	}
	addOptionFlags(cmd)
	return cmd
}

// indexCmd returns the batch indexing command
func indexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index <path>",
		Short: "Chunk every supported file under path and store the chunks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			opts, err := a.chunkOptions(cmd)
			if err != nil {
				return err
			}

			store, err := a.openStorage()
			if err != nil {
				return err
			}

			stats, err := a.newIndexer(store).IndexPath(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}

			if err := writeJSON(cmd.OutOrStdout(), map[string]interface{}{
				"documents_indexed": stats.DocumentsIndexed,
				"documents_skipped": stats.DocumentsSkipped,
				"documents_failed":  stats.DocumentsFailed,
				"documents_removed": stats.DocumentsRemoved,
				"units_processed":   stats.UnitsProcessed,
				"chunks_created":    stats.ChunksCreated,
				"duration_ms":       stats.Duration.Milliseconds(),
				"errors":            stats.ErrorMessages,
			}); err != nil {
				return err
			}
			if stats.DocumentsFailed > 0 {
				return fmt.Errorf("%d documents failed", stats.DocumentsFailed)
			}
			return nil
		},
	}
	addOptionFlags(cmd)
	return cmd
}

// versionCmd returns the version command
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and storage build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "semchunk\n")
			fmt.Fprintf(out, "Version: %s\n", version)
			fmt.Fprintf(out, "Build Time: %s\n", buildTime)
			fmt.Fprintf(out, "Build Mode: %s\n", storage.BuildMode)
			fmt.Fprintf(out, "SQLite Driver: %s\n", storage.DriverName)
			fmt.Fprintf(out, "Schema Version: %s\n", storage.CurrentSchemaVersion)
		},
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

