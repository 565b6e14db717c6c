// Command scathac drives the compiler middle-end over the textual SSA IR
// form, for tests and standalone tools that sit downstream of the source
// front end: parse/validate a module, run the optimization pipeline over
// it, emit MIR, and list the registered passes.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "scathac",
		Short: "scatha middle-end driver: parse, optimize, and lower textual SSA IR",
	}
	root.AddCommand(newCheckCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newEmitMIRCmd())
	root.AddCommand(newPassesCmd())
	return root
}
