package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codesearch-dev/codesearch/internal/repo"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every index database resolvable for the current repository",
		Long: `list walks from the current directory to the git root and beyond,
reporting every local .codesearch.db it finds plus the global
~/.codesearch.dbs/ location, matching the ambiguity the Watcher Suite
and search commands resolve against (spec.md §4.N).`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			locs, err := repo.FindDatabases(".")
			if err != nil {
				return err
			}
			if len(locs) == 0 {
				fmt.Fprintln(c.OutOrStdout(), "No index databases found.")
				return nil
			}
			for _, loc := range locs {
				kind := "local"
				if loc.Global {
					kind = "global"
				}
				fmt.Fprintf(c.OutOrStdout(), "%s\t%s\t(%s)\n", loc.DBPath, loc.RepoRoot, kind)
			}
			return nil
		},
	}
	return cmd
}
