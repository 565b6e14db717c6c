package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scatha/internal/pass"
	"scatha/internal/ssa"

	// Blank-imported so every transform pass's init() registration has
	// run before this command looks the names up in the registry.
	_ "scatha/internal/transform"
)

func newRunCmd() *cobra.Command {
	var only string
	var noVerify bool
	var maxRounds int

	cmd := &cobra.Command{
		Use:   "run <file.ir>",
		Short: "run the optimization pipeline over a textual IR module and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mod, err := readAndParse(args[0])
			if err != nil {
				return err
			}

			names := pass.DefaultSSAPipeline
			if only != "" {
				names = strings.Split(only, ",")
			}
			p := pass.NewPipeline(names...)
			p.Out = cmd.ErrOrStderr()
			if _, err := p.RunToFixpoint(mod, maxRounds); err != nil {
				return err
			}

			if !noVerify {
				if reportViolations(ssa.Validate(mod)) {
					return fmt.Errorf("pipeline produced invalid IR")
				}
			}

			fmt.Fprint(cmd.OutOrStdout(), ssa.Print(mod))
			return nil
		},
	}
	cmd.Flags().StringVar(&only, "only", "", "comma-separated pass names to run instead of the default pipeline")
	cmd.Flags().BoolVar(&noVerify, "no-verify", false, "skip invariant validation after the pipeline runs")
	cmd.Flags().IntVar(&maxRounds, "max-rounds", 8, "maximum fixed-point rounds over the pipeline")
	return cmd
}
