package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codesearch-dev/codesearch/internal/httpserver"
)

func newServeCmd() *cobra.Command {
	var port int
	var createIndex bool

	cmd := &cobra.Command{
		Use:   "serve [path]",
		Short: "Serve the HTTP search API over a repository's index",
		Long: `serve starts the HTTP surface (GET /health, GET /status, POST /search)
bound to the index for the repository containing path (default the
current directory), running until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}

			a, err := openApp(path, createIndex)
			if err != nil {
				return err
			}
			defer a.Close()

			a.startWatcher(c.Context())

			addr := fmt.Sprintf(":%d", port)
			srv := httpserver.New(addr, a.engine, a.mgr, a.loc.RepoRoot)

			fmt.Printf("codesearch serving %s on %s\n", a.loc.RepoRoot, addr)
			return srv.Run(c.Context())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 4444, "HTTP port to listen on")
	cmd.Flags().BoolVarP(&createIndex, "create-index", "c", true, "build an index on the fly if none exists")

	return cmd
}
