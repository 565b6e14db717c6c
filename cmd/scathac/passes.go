package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scatha/internal/pass"

	_ "scatha/internal/transform"
)

func newPassesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "passes",
		Short: "list every registered pass (name, category, required/provided invariants)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, d := range pass.All() {
				fmt.Fprintf(out, "%-14s %-10s requires=%v provides=%v\n", d.Name, d.Category, d.Requires, d.Provides)
			}
			return nil
		},
	}
}
