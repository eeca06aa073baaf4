package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"j5.nz/gml/internal/build"
)

func newCompileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile <file>",
		Short: "Compile a script and report errors, without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, _, _, err := buildFile(args[0])
			if err != nil {
				if be, ok := err.(*build.BuildError); ok {
					for _, f := range be.Failures {
						fmt.Fprintln(cmd.ErrOrStderr(), f)
					}
					return fmt.Errorf("compile failed")
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}
