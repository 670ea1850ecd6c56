package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codesearch-dev/codesearch/internal/logging"
	"github.com/codesearch-dev/codesearch/internal/repo"
)

var logLevel string

// NewRootCmd builds the codesearch root command and registers every
// subcommand from spec.md §6.
func NewRootCmd() *cobra.Command {
	var logCleanup func()

	cmd := &cobra.Command{
		Use:           "codesearch",
		Short:         "Local-first hybrid code search for AI coding agents",
		Long:          `codesearch indexes a repository with AST-aware chunking and serves hybrid BM25 + semantic search over it, as an MCP stdio tool, an HTTP API, or a CLI, entirely on your machine.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(c *cobra.Command, args []string) error {
			logCleanup = setupLogging(firstPathArg(args))
			return nil
		},
		PersistentPostRun: func(c *cobra.Command, args []string) {
			if logCleanup != nil {
				logCleanup()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "loglevel", "info", "log level: debug, info, warn, error")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newClearCmd())
	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newSetupCmd())
	cmd.AddCommand(newCacheCmd())

	return cmd
}

// Execute runs the root command and returns the process exit code,
// mapping a canceled-by-signal context to 130 and an *exitError to its
// carried code, per spec.md §6.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	if ctx.Err() == context.Canceled {
		return 130
	}

	var ec *exitError
	if errors.As(err, &ec) {
		fmt.Fprintln(os.Stderr, "error:", ec.Error())
		return ec.ExitCode()
	}

	fmt.Fprintln(os.Stderr, "error:", err)
	return 1
}

// firstPathArg returns args[0] when it names an existing directory
// (the `index [path]`/`serve [path]` convention), else ".", so the
// persistent logging hook anchors to the right repository without
// every subcommand re-resolving it itself.
func firstPathArg(args []string) string {
	if len(args) > 0 {
		if info, err := os.Stat(args[0]); err == nil && info.IsDir() {
			return args[0]
		}
	}
	return "."
}

// setupLogging wires slog to a JSON file under the resolved index
// database directory (spec.md §6's logging section). When no index
// database exists yet, file logging is skipped and slog keeps its
// default handler, so no command creates the database as a side effect.
func setupLogging(startPath string) func() {
	loc, err := repo.Resolve(startPath)
	if err != nil || loc.DBPath == "" || !dirExists(loc.DBPath) {
		return func() {}
	}
	dbRoot := loc.DBPath

	logger, cleanup, err := logging.Setup(dbRoot, logLevel, false)
	if err != nil {
		slog.Warn("failed to set up file logging", slog.String("error", err.Error()))
		return func() {}
	}
	slog.SetDefault(logger)
	return cleanup
}
