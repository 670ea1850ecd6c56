package cmd

import (
	"github.com/spf13/cobra"

	"github.com/codesearch-dev/codesearch/internal/mcpserver"
	"github.com/codesearch-dev/codesearch/internal/version"
)

func newMCPCmd() *cobra.Command {
	var createIndex bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP stdio server over the current repository's index",
		Long: `mcp serves semantic_search, find_references, get_file_chunks,
find_databases, and index_status over an MCP stdio transport, for use
as a tool server by AI coding agents.

Nothing but protocol frames goes to stdout; diagnostics go to the log
file under the index's database directory.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			path := "."

			a, err := openApp(path, createIndex)
			if err != nil {
				return err
			}
			defer a.Close()

			a.startWatcher(c.Context())

			srv := mcpserver.New("codesearch", version.Short(), a.engine, a.mgr, a.loc.RepoRoot)
			return srv.Run(c.Context())
		},
	}

	cmd.Flags().BoolVar(&createIndex, "create-index", true, "build an index on the fly if none exists")

	return cmd
}
