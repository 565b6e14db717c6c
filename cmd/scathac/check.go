package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scatha/internal/ssa"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file.ir>",
		Short: "parse a textual IR module and validate its invariants without optimizing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mod, err := readAndParse(args[0])
			if err != nil {
				return err
			}
			violations := ssa.Validate(mod)
			if reportViolations(violations) {
				return fmt.Errorf("%d invariant violation(s)", len(violations))
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}
