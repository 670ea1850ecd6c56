package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/codesearch-dev/codesearch/internal/config"
	"github.com/codesearch-dev/codesearch/internal/embed"
	"github.com/codesearch-dev/codesearch/internal/repo"
)

func newSetupCmd() *cobra.Command {
	var model string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Probe for a local embedder and write a project config",
		Long: `setup checks whether an Ollama daemon is reachable and, if so, writes
<repoRoot>/.codesearch.yaml selecting it with --model (default
nomic-embed-text). Without a reachable Ollama it configures the
offline static embedder instead.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			loc, err := repo.Resolve(".")
			if err != nil {
				return fmt.Errorf("resolve repository: %w", err)
			}

			cfg := config.Default()

			ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
			defer cancel()

			ollama := embed.NewOllamaEmbedder(embed.OllamaConfig{Model: model})
			if ollama.Available(ctx) {
				cfg.Embed.Provider = "ollama"
				cfg.Embed.Model = ollama.ModelID()
				cfg.Embed.OllamaURL = "http://127.0.0.1:11434"
				fmt.Printf("Ollama reachable, using model %s (%d dims)\n", ollama.ModelID(), ollama.Dimensions())
			} else {
				cfg.Embed.Provider = "static"
				cfg.Embed.Model = "static-256"
				fmt.Println("Ollama not reachable, falling back to the offline static embedder")
			}

			path := filepath.Join(loc.RepoRoot, ".codesearch.yaml")
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("write config: %w", err)
			}

			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&model, "model", "nomic-embed-text", "Ollama embedding model to select")

	return cmd
}
