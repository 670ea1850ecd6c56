package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newClearCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Wipe the current repository's index contents",
		Long: `clear empties every store (metadata, lexical postings, vector graph,
embedding cache) for the repository's resolved database without
removing the database directory itself. Use 'index --rm' to remove the
directory entirely.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			a, err := openApp(".", false)
			if err != nil {
				return err
			}
			defer a.Close()

			if !yes && !confirm(fmt.Sprintf("Clear index at %s?", a.loc.DBPath)) {
				fmt.Fprintln(c.OutOrStdout(), "Aborted.")
				return nil
			}

			if err := a.env.Clear(); err != nil {
				return fmt.Errorf("clear metadata/lexical store: %w", err)
			}
			a.vectors.Clear()
			if err := a.vectors.Save(vectorsDir(a.loc.DBPath)); err != nil {
				return fmt.Errorf("save cleared vector index: %w", err)
			}

			fmt.Fprintf(c.OutOrStdout(), "Cleared %s\n", a.loc.DBPath)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N] ", prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes"
}
