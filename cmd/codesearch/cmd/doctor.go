package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/codesearch-dev/codesearch/internal/preflight"
)

func newDoctorCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the local environment for codesearch's requirements",
		Long: `doctor reports disk space, memory, write permissions, file descriptor
limits, and (unless --offline) whether an Ollama embedder is reachable,
each as pass/warn/fail.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			path := "."

			checker := preflight.New(preflight.WithOffline(offline))
			results := checker.RunAll(c.Context(), path)
			checker.PrintResults(results)

			if checker.HasCriticalFailures(results) {
				return &exitError{code: 1, err: errors.New("doctor found critical failures")}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "skip the embedder reachability check")

	return cmd
}
