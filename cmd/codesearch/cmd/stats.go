package cmd

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/codesearch-dev/codesearch/internal/ui"
)

func newStatsCmd() *cobra.Command {
	var asJSON bool
	var noColor bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index health and storage usage for the current repository",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			a, err := openApp(".", false)
			if err != nil {
				return err
			}
			defer a.Close()

			info, err := buildStatusInfo(a)
			if err != nil {
				return err
			}

			r := ui.NewStatusRenderer(c.OutOrStdout(), noColor)
			if asJSON {
				return r.RenderJSON(info)
			}
			return r.Render(info)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print stats as JSON")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "disable ANSI styling")

	return cmd
}

func buildStatusInfo(a *app) (ui.StatusInfo, error) {
	files, chunks, err := a.mgr.Counts()
	if err != nil {
		return ui.StatusInfo{}, err
	}
	schema, _ := a.mgr.Schema()
	kvStats, err := a.env.Stat()
	if err != nil {
		return ui.StatusInfo{}, err
	}
	vectorSize := dirSize(vectorsDir(a.loc.DBPath))
	_, cacheBytes, _ := a.cache.DiskUsage()
	metadataSize := kvStats.FileSizeBytes

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	embedderState := "ready"
	if !a.embedder.Available(ctx) {
		embedderState = "offline"
	}

	return ui.StatusInfo{
		ProjectName:   filepath.Base(a.loc.RepoRoot),
		DBPath:        a.loc.DBPath,
		TotalFiles:    files,
		TotalChunks:   chunks,
		LastIndexed:   schema.LastFullBuild,
		MetadataSize:  metadataSize,
		LexicalSize:   0,
		VectorSize:    vectorSize,
		CacheSize:     cacheBytes,
		TotalSize:     metadataSize + vectorSize + cacheBytes,
		Model:         a.embedder.ModelID(),
		Dimensions:    a.embedder.Dimensions(),
		EmbedderState: embedderState,
		WatcherStatus: "n/a",
	}, nil
}

func dirSize(dir string) int64 {
	var total int64
	_ = filepath.Walk(dir, func(_ string, info os.FileInfo, err error) error {
		if err != nil || info == nil || info.IsDir() {
			return nil
		}
		total += info.Size()
		return nil
	})
	return total
}
