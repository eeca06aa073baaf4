package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"j5.nz/gml/internal/build"
	"j5.nz/gml/internal/diag"
	"j5.nz/gml/internal/symbol"
	"j5.nz/gml/internal/value"
	"j5.nz/gml/internal/vm"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <file> [args...]",
		Short: "Compile and execute a script's main function",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, assets, debug, err := buildFile(args[0])
			if err != nil {
				if be, ok := err.(*build.BuildError); ok {
					for _, f := range be.Failures {
						fmt.Fprintln(cmd.ErrOrStderr(), f)
					}
					return fmt.Errorf("compile failed")
				}
				return err
			}

			program := build.NewProgram(h, assets)
			world := vm.NewWorld()
			thread := vm.NewThread()

			arguments := make([]value.Value, len(args)-1)
			for i, a := range args[1:] {
				if f, err := strconv.ParseFloat(a, 64); err == nil {
					arguments[i] = value.FromFloat64(f)
				} else {
					arguments[i] = value.FromSymbol(symbol.Intern(a))
				}
			}

			result, err := thread.Execute(program, world, symbol.Intern(mainScript), arguments)
			if err != nil {
				if de, ok := err.(*diag.Error); ok {
					diag.Print(cmd.ErrOrStderr(), de, program.Resolver(debug))
					return fmt.Errorf("run failed")
				}
				return err
			}

			if r, ok := result.Real(); ok {
				fmt.Fprintln(cmd.OutOrStdout(), r)
			} else if s, ok := result.Symbol(); ok {
				fmt.Fprintln(cmd.OutOrStdout(), s.String())
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "<array>")
			}
			return nil
		},
	}
}
