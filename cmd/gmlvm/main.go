// Command gmlvm drives the compiler and interpreter in internal/build and
// internal/vm: compile a script, run it, disassemble its bytecode, or open
// a line-editing REPL against a persistent world.
//
// Grounded on saferwall-pe's cmd/pedumper.go for cobra wiring style: one
// root command carrying shared flags, one file per subcommand.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"j5.nz/gml/internal/diag"
)

var (
	verbose bool
	logger  *zap.Logger
)

func main() {
	root := &cobra.Command{
		Use:           "gmlvm",
		Short:         "Compile and run GML-like scripts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := diag.NewLogger(verbose)
			if err != nil {
				return fmt.Errorf("gmlvm: logger: %w", err)
			}
			logger = l
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable development-mode structured logging")

	root.AddCommand(newCompileCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newDisasmCmd())
	root.AddCommand(newReplCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
