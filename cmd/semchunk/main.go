package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		// stdout is reserved for command output and the MCP protocol
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "semchunk",
		Short:         "Semantic chunking of text and subtitles",
		Long:          "Split documents into semantically coherent chunks at topic shifts, store them and serve them over MCP.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	root.PersistentFlags().String("env-file", "", "Path to a .env file (default ./.env when present)")
	root.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides SEMCHUNK_LOG_LEVEL)")
	root.PersistentFlags().String("db", "", "Database path (overrides SEMCHUNK_DB_PATH)")

	root.AddCommand(
		serveCmd(),
		chunkCmd(),
		indexCmd(),
		versionCmd(),
	)

	return root
}
