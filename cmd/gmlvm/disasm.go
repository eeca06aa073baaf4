package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"j5.nz/gml/internal/build"
	"j5.nz/gml/internal/bytecode"
	"j5.nz/gml/internal/symbol"
)

func newDisasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <file>",
		Short: "Compile a script and print its bytecode",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, assets, _, err := buildFile(args[0])
			if err != nil {
				if be, ok := err.(*build.BuildError); ok {
					for _, f := range be.Failures {
						fmt.Fprintln(cmd.ErrOrStderr(), f)
					}
					return fmt.Errorf("compile failed")
				}
				return err
			}

			fn, _, ok := assets.Function(0)
			if !ok {
				return fmt.Errorf("gmlvm: main did not compile")
			}
			disassemble(cmd.OutOrStdout(), symbol.Intern(mainScript), fn)
			return nil
		},
	}
}

func disassemble(w io.Writer, name symbol.Symbol, fn *bytecode.Function) {
	fmt.Fprintf(w, "%s: params=%d locals=%d\n", name, fn.Params, fn.Locals)
	for pc, inst := range fn.Instructions {
		op, a, b, c := inst.Decode()
		switch op {
		case bytecode.Jump, bytecode.BranchFalse:
			_, wa, target := inst.DecodeWide()
			fmt.Fprintf(w, "%4d  %-16s a%d -> %d\n", pc, op, wa, target)
		default:
			fmt.Fprintf(w, "%4d  %-16s %d %d %d\n", pc, op, a, b, c)
		}
	}
}
