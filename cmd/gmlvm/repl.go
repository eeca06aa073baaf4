package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"j5.nz/gml/internal/build"
	"j5.nz/gml/internal/diag"
	"j5.nz/gml/internal/host"
	"j5.nz/gml/internal/stdlib"
	"j5.nz/gml/internal/vm"
)

func newReplCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Read-eval-print loop against a persistent world",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepl(cmd)
		},
	}
}

// runRepl compiles one statement or expression-program at a time via
// internal/build.CompileString and runs it against a world and thread
// that live for the whole session, the way a script engine embedded in a
// long-running host would be driven interactively. Grounded on
// chzyer/readline's own example main loop.
func runRepl(cmd *cobra.Command) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "gml> ",
		HistoryFile:     "",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          cmd.OutOrStdout(),
		Stderr:          cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("gmlvm: repl: %w", err)
	}
	defer rl.Close()

	h := host.New(logger)
	if err := stdlib.Register(h); err != nil {
		return fmt.Errorf("gmlvm: repl: %w", err)
	}
	assets, debug, err := build.Build(context.Background(), h)
	if err != nil {
		return fmt.Errorf("gmlvm: repl: %w", err)
	}
	program := build.NewProgram(h, assets)
	world := vm.NewWorld()
	thread := vm.NewThread()

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if line == "" {
			continue
		}

		id, err := build.CompileString(context.Background(), h, assets, debug, line)
		if err != nil {
			if be, ok := err.(*build.BuildError); ok {
				for _, f := range be.Failures {
					fmt.Fprintln(rl.Stderr(), f)
				}
				continue
			}
			fmt.Fprintln(rl.Stderr(), err)
			continue
		}

		result, err := thread.ExecuteID(program, world, id, nil)
		if err != nil {
			if de, ok := err.(*diag.Error); ok {
				diag.Print(rl.Stderr(), de, program.Resolver(debug))
			} else {
				fmt.Fprintln(rl.Stderr(), err)
			}
			continue
		}

		if r, ok := result.Real(); ok {
			fmt.Fprintln(rl.Stdout(), r)
		} else if s, ok := result.Symbol(); ok {
			fmt.Fprintln(rl.Stdout(), s.String())
		} else {
			fmt.Fprintln(rl.Stdout(), "<array>")
		}
	}
}
