package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scatha/internal/mir"
	"scatha/internal/pass"
	"scatha/internal/ssa"

	_ "scatha/internal/transform"
)

func newEmitMIRCmd() *cobra.Command {
	var only string
	var skipOpt bool

	cmd := &cobra.Command{
		Use:   "emit-mir <file.ir>",
		Short: "optimize a textual IR module and lower it to MIR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mod, err := readAndParse(args[0])
			if err != nil {
				return err
			}

			if !skipOpt {
				names := pass.DefaultSSAPipeline
				if only != "" {
					names = strings.Split(only, ",")
				}
				p := pass.NewPipeline(names...)
				p.Out = cmd.ErrOrStderr()
				if _, err := p.RunToFixpoint(mod, 8); err != nil {
					return err
				}
			}

			if reportViolations(ssa.Validate(mod)) {
				return fmt.Errorf("cannot lower invalid IR to MIR")
			}

			mmod := mir.Lower(mod)
			for _, fn := range mmod.Functions {
				mir.InstSimplify(fn)
				mir.JumpElision(fn)
			}

			fmt.Fprint(cmd.OutOrStdout(), mir.Print(mmod))
			return nil
		},
	}
	cmd.Flags().StringVar(&only, "only", "", "comma-separated pass names to run before lowering")
	cmd.Flags().BoolVar(&skipOpt, "no-optimize", false, "lower straight from the parsed module, skipping the optimization pipeline")
	return cmd
}
