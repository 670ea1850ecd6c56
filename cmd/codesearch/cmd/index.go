package cmd

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/codesearch-dev/codesearch/internal/kv"
	"github.com/codesearch-dev/codesearch/internal/repo"
	"github.com/codesearch-dev/codesearch/internal/ui"
	"github.com/codesearch-dev/codesearch/internal/walk"
)

func newIndexCmd() *cobra.Command {
	var force, dryRun, add, global, rm, list bool
	var modelOverride string

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Build or refresh the semantic+lexical index for a repository",
		Long: `index builds the hybrid BM25/vector index for the repository containing
path (default the current directory).

With no flags it runs an incremental refresh: only files whose digest
changed since the last run are re-chunked and re-embedded. --force
clears every sub-database and rebuilds from scratch.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}

			if modeCount(force, dryRun, add, rm, list) > 1 {
				return usageErrorf("--force, --dry-run, --add, --rm, and --list are mutually exclusive")
			}

			out := c.OutOrStdout()
			switch {
			case list:
				return runIndexList(out, path, global)
			case rm:
				return runIndexRemove(out, path, global)
			case add:
				return runIndexAdd(out, path, global)
			case dryRun:
				return runIndexDryRun(out, path, global)
			default:
				return runIndexBuild(c.Context(), out, path, force, global, modelOverride)
			}
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "clear every sub-database and rebuild from scratch")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing")
	cmd.Flags().BoolVar(&add, "add", false, "register this repository's database location without indexing")
	cmd.Flags().BoolVar(&global, "global", false, "use the global ~/.codesearch.dbs/ location instead of local .codesearch.db")
	cmd.Flags().BoolVar(&rm, "rm", false, "remove this repository's resolved index database")
	cmd.Flags().BoolVar(&list, "list", false, "list files currently tracked in this repository's index")
	cmd.Flags().StringVar(&modelOverride, "model", "", "model id to compare against the configured embedder's; a different id forces a full rebuild (the embedder itself still comes from the configuration)")

	return cmd
}

func modeCount(flags ...bool) int {
	n := 0
	for _, f := range flags {
		if f {
			n++
		}
	}
	return n
}

func runIndexBuild(ctx context.Context, out io.Writer, path string, force, global bool, modelOverride string) error {
	loc, err := resolveLocation(path, global)
	if err != nil {
		return err
	}

	a, err := openAppAt(loc, true)
	if err != nil {
		return err
	}
	defer a.Close()

	if modelOverride != "" && modelOverride != a.embedder.ModelID() {
		force = true
	}
	if schema, err := a.mgr.Schema(); err == nil && schema.ModelID != "" && schema.ModelID != a.embedder.ModelID() {
		force = true
	}

	renderer := ui.NewRenderer(ui.Config{Output: out, ProjectDir: loc.RepoRoot})
	if err := renderer.Start(ctx); err != nil {
		return err
	}

	start := time.Now()
	var buildErr error
	if force {
		renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageScanning})
		buildErr = a.mgr.FullBuild(ctx)
	} else {
		buildErr = runIncrementalBuild(ctx, a, renderer)
		if buildErr == nil {
			buildErr = a.vectors.Save(vectorsDir(loc.DBPath))
		}
	}

	files, chunks, _ := a.mgr.Counts()
	stats := ui.CompletionStats{
		Files:    files,
		Chunks:   chunks,
		Duration: time.Since(start),
		Model:    a.embedder.ModelID(),
		Dims:     a.embedder.Dimensions(),
	}
	renderer.Complete(stats)
	_ = renderer.Stop()

	if buildErr != nil {
		return fmt.Errorf("index: %w", buildErr)
	}

	fmt.Fprintf(out, "Indexed %d files, %d chunks into %s\n", files, chunks, loc.DBPath)
	return nil
}

// runIncrementalBuild walks the repository and re-indexes any file
// whose content digest changed since the last run, mirroring what a
// live Watcher Suite modify event would trigger (spec.md §4.M) without
// needing one running.
func runIncrementalBuild(ctx context.Context, a *app, renderer ui.Renderer) error {
	var paths []string
	if err := a.walker.Walk(func(f walk.File) error {
		paths = append(paths, f.Path)
		return nil
	}); err != nil {
		return err
	}

	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageIndexing, Total: len(paths)})
	for i, p := range paths {
		abs := filepath.Join(a.loc.RepoRoot, p)
		content, err := os.ReadFile(abs)
		if err != nil {
			renderer.AddError(ui.ErrorEvent{File: p, Err: err})
			continue
		}
		digest := sha256.Sum256(content)

		rec, ok, err := a.env.GetFileRecord(p)
		if err == nil && ok && rec.Digest == digest {
			renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageIndexing, Current: i + 1, Total: len(paths), CurrentFile: p})
			continue
		}

		if err := a.mgr.IndexFile(ctx, p); err != nil {
			renderer.AddError(ui.ErrorEvent{File: p, Err: err})
			continue
		}
		renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageIndexing, Current: i + 1, Total: len(paths), CurrentFile: p})
	}
	return nil
}

func runIndexDryRun(out io.Writer, path string, global bool) error {
	loc, err := resolveLocation(path, global)
	if err != nil {
		return err
	}

	walker, err := walk.New(loc.RepoRoot)
	if err != nil {
		return err
	}

	var env *kv.Environment
	if dirExists(loc.DBPath) {
		env, err = kv.Open(loc.DBPath, 1, 64)
		if err != nil {
			return err
		}
		defer env.Close()
	}

	seen := make(map[string]bool)
	var added, modified, unchanged int

	err = walker.Walk(func(f walk.File) error {
		seen[f.Path] = true
		content, err := os.ReadFile(filepath.Join(loc.RepoRoot, f.Path))
		if err != nil {
			return nil
		}
		digest := sha256.Sum256(content)

		if env == nil {
			added++
			return nil
		}
		rec, ok, err := env.GetFileRecord(f.Path)
		if err != nil || !ok {
			added++
			return nil
		}
		if rec.Digest == digest {
			unchanged++
		} else {
			modified++
		}
		return nil
	})
	if err != nil {
		return err
	}

	removed := 0
	if env != nil {
		if records, err := env.AllFileRecords(); err == nil {
			for _, rec := range records {
				if !seen[rec.Path] {
					removed++
				}
			}
		}
	}

	fmt.Fprintf(out, "Would add %d, modify %d, remove %d, leave %d unchanged in %s\n", added, modified, removed, unchanged, loc.DBPath)
	return nil
}

func runIndexAdd(out io.Writer, path string, global bool) error {
	loc, err := resolveLocation(path, global)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(loc.DBPath, 0o755); err != nil {
		return fmt.Errorf("register database: %w", err)
	}
	fmt.Fprintf(out, "Registered %s for %s\n", loc.DBPath, loc.RepoRoot)
	return nil
}

func runIndexRemove(out io.Writer, path string, global bool) error {
	loc, err := resolveLocation(path, global)
	if err != nil {
		return err
	}
	if !dirExists(loc.DBPath) {
		fmt.Fprintf(out, "No index database at %s\n", loc.DBPath)
		return nil
	}
	if err := os.RemoveAll(loc.DBPath); err != nil {
		return fmt.Errorf("remove database: %w", err)
	}
	fmt.Fprintf(out, "Removed %s\n", loc.DBPath)
	return nil
}

func runIndexList(out io.Writer, path string, global bool) error {
	loc, err := resolveLocation(path, global)
	if err != nil {
		return err
	}
	if !dirExists(loc.DBPath) {
		fmt.Fprintln(out, "Not indexed.")
		return nil
	}

	env, err := kv.Open(loc.DBPath, 1, 64)
	if err != nil {
		return err
	}
	defer env.Close()

	records, err := env.AllFileRecords()
	if err != nil {
		return err
	}
	for _, rec := range records {
		fmt.Fprintf(out, "%s\t%d chunks\n", rec.Path, len(rec.ChunkIDs))
	}
	return nil
}
