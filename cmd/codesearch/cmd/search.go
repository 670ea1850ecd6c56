package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codesearch-dev/codesearch/internal/model"
	"github.com/codesearch-dev/codesearch/internal/query"
	"github.com/codesearch-dev/codesearch/internal/ui"
)

func newSearchCmd() *cobra.Command {
	var (
		limit       int
		perFile     int
		showContent bool
		showScores  bool
		compact     bool
		sync        bool
		asJSON      bool
		filterPath  string
		vectorOnly  bool
		rerank      bool
		rerankTop   int
		rrfK        int
		createIndex bool
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed repository",
		Long: `search runs a hybrid BM25 + vector query against the repository's index
and prints the top matching chunks.

By default it fuses lexical and vector rankings with RRF. --vector-only
skips the lexical pass; --rerank additionally reranks the fused top
results.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			if vectorOnly && rerank {
				return usageErrorf("--vector-only and --rerank are mutually exclusive")
			}

			q := strings.Join(args, " ")
			path := "."

			a, err := openApp(path, createIndex)
			if err != nil {
				return err
			}
			defer a.Close()

			if sync {
				if err := runIncrementalBuild(c.Context(), a, noopRenderer{}); err != nil {
					return fmt.Errorf("sync before search: %w", err)
				}
			}

			mode := query.ModeHybrid
			switch {
			case vectorOnly:
				mode = query.ModeVector
			case rerank:
				mode = query.ModeRerank
			}

			opts := query.Options{RRFConstant: rrfK, RerankTop: rerankTop}
			results, err := a.engine.SemanticSearch(c.Context(), q, limit, filterPath, mode, opts)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if perFile > 0 {
				results = capPerFile(results, perFile)
			}

			if asJSON {
				return printSearchJSON(c.OutOrStdout(), results, showContent, showScores)
			}
			printSearchText(c.OutOrStdout(), results, showContent, showScores, compact)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "m", 10, "maximum results to return")
	cmd.Flags().IntVar(&perFile, "per-file", 0, "cap results per file (0 = unlimited)")
	cmd.Flags().BoolVar(&showContent, "content", false, "print each chunk's full content")
	cmd.Flags().BoolVar(&showScores, "scores", false, "print each result's fused score")
	cmd.Flags().BoolVar(&compact, "compact", false, "print a compact one-line-per-result summary")
	cmd.Flags().BoolVar(&sync, "sync", false, "refresh changed files before searching")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print results as JSON")
	cmd.Flags().StringVar(&filterPath, "filter-path", "", "restrict results to paths with this prefix")
	cmd.Flags().BoolVar(&vectorOnly, "vector-only", false, "skip the lexical pass, rank by vector similarity alone")
	cmd.Flags().BoolVar(&rerank, "rerank", false, "rerank the fused top results")
	cmd.Flags().IntVar(&rerankTop, "rerank-top", 0, "how many fused results to rerank (0 = engine default)")
	cmd.Flags().IntVar(&rrfK, "rrf-k", 0, "RRF constant k (0 = engine default)")
	cmd.Flags().BoolVar(&createIndex, "create-index", true, "build an index on the fly if none exists")

	return cmd
}

func capPerFile(results []query.Result, perFile int) []query.Result {
	counts := make(map[string]int)
	out := results[:0:0]
	for _, r := range results {
		if counts[r.Chunk.Path] >= perFile {
			continue
		}
		counts[r.Chunk.Path]++
		out = append(out, r)
	}
	return out
}

func printSearchText(out io.Writer, results []query.Result, showContent, showScores, compact bool) {
	if len(results) == 0 {
		fmt.Fprintln(out, "No results.")
		return
	}
	for _, r := range results {
		c := r.Chunk
		if compact {
			fmt.Fprintf(out, "%s:%d-%d %s\n", c.Path, c.StartLine, c.EndLine, c.Signature)
			continue
		}

		header := fmt.Sprintf("%s:%d-%d", c.Path, c.StartLine, c.EndLine)
		if showScores {
			header += fmt.Sprintf("  [score %.4f]", r.Score)
		}
		fmt.Fprintln(out, header)
		if c.Signature != "" {
			fmt.Fprintf(out, "  %s\n", c.Signature)
		}
		if showContent {
			fmt.Fprintln(out, indent(c.Content, "    "))
		}
		fmt.Fprintln(out)
	}
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

type searchResultJSON struct {
	Path      string  `json:"path"`
	StartLine int     `json:"start_line"`
	EndLine   int     `json:"end_line"`
	Kind      string  `json:"kind"`
	Signature string  `json:"signature"`
	Score     float64 `json:"score,omitempty"`
	Content   string  `json:"content,omitempty"`
}

func printSearchJSON(w io.Writer, results []query.Result, showContent, showScores bool) error {
	out := make([]searchResultJSON, 0, len(results))
	for _, r := range results {
		item := searchResultJSON{
			Path:      r.Chunk.Path,
			StartLine: r.Chunk.StartLine,
			EndLine:   r.Chunk.EndLine,
			Kind:      kindString(r.Chunk.Kind),
			Signature: r.Chunk.Signature,
		}
		if showScores {
			item.Score = r.Score
		}
		if showContent {
			item.Content = r.Chunk.Content
		}
		out = append(out, item)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func kindString(k model.Kind) string {
	return string(k)
}

// noopRenderer discards progress events for a --sync refresh done as
// part of a search command, which prints nothing until the results
// themselves (unlike `index`, which shows a live progress view).
type noopRenderer struct{}

func (noopRenderer) Start(_ context.Context) error     { return nil }
func (noopRenderer) UpdateProgress(_ ui.ProgressEvent) {}
func (noopRenderer) AddError(_ ui.ErrorEvent)          {}
func (noopRenderer) Complete(_ ui.CompletionStats)     {}
func (noopRenderer) Stop() error                       { return nil }
