package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/codesearch-dev/codesearch/internal/embedcache"
	"github.com/codesearch-dev/codesearch/internal/ui"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache {stats|clear} [model]",
		Short: "Inspect or clear the persistent embedding cache",
		Long: `cache operates on ~/.codesearch/embedding_cache, the content-addressed
disk cache shared across every repository for a given embedding model
(spec.md §4.E). With no model argument, stats/clear act on every
model's subdirectory; with one, only that model's.`,
		RunE: func(c *cobra.Command, args []string) error {
			return usageErrorf("cache requires a subcommand: stats or clear")
		},
	}

	var yes bool
	statsCmd := &cobra.Command{
		Use:   "stats [model]",
		Short: "Report entry count and size of the persistent embedding cache",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runCacheStats(c.OutOrStdout(), modelArg(args))
		},
	}
	clearCmd := &cobra.Command{
		Use:   "clear [model]",
		Short: "Delete entries from the persistent embedding cache",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return runCacheClear(c.OutOrStdout(), modelArg(args), yes)
		},
	}
	clearCmd.Flags().BoolVar(&yes, "yes", false, "skip the confirmation prompt")

	cmd.AddCommand(statsCmd, clearCmd)
	return cmd
}

func modelArg(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return ""
}

func cacheRoots(model string) ([]string, error) {
	root, err := embedcache.DefaultRoot()
	if err != nil {
		return nil, fmt.Errorf("resolve cache root: %w", err)
	}
	if model != "" {
		return []string{embedcache.ModelDir(root, model)}, nil
	}

	entries, err := os.ReadDir(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, root+string(os.PathSeparator)+e.Name())
		}
	}
	return dirs, nil
}

func runCacheStats(out io.Writer, model string) error {
	dirs, err := cacheRoots(model)
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		fmt.Fprintln(out, "Cache is empty.")
		return nil
	}

	var totalEntries int
	var totalBytes int64
	for _, dir := range dirs {
		entries, bytes, err := diskUsage(dir)
		if err != nil {
			continue
		}
		totalEntries += entries
		totalBytes += bytes
		fmt.Fprintf(out, "%s\t%d entries\t%s\n", dir, entries, ui.FormatBytes(bytes))
	}
	fmt.Fprintf(out, "Total:\t%d entries\t%s\n", totalEntries, ui.FormatBytes(totalBytes))
	return nil
}

func diskUsage(dir string) (int, int64, error) {
	c, err := embedcache.New(dir, 1, 1, 0) // stats-only: no active model to check dimension against
	if err != nil {
		return 0, 0, err
	}
	return c.DiskUsage()
}

func runCacheClear(out io.Writer, model string, yes bool) error {
	dirs, err := cacheRoots(model)
	if err != nil {
		return err
	}
	if len(dirs) == 0 {
		fmt.Fprintln(out, "Cache is already empty.")
		return nil
	}

	label := "every model's cache"
	if model != "" {
		label = model + "'s cache"
	}
	if !yes && !confirm(fmt.Sprintf("Clear %s?", label)) {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("remove %s: %w", dir, err)
		}
	}
	fmt.Fprintln(out, "Cleared.")
	return nil
}
