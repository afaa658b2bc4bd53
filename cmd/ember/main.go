// Command ember runs the bytecode interpreter: execute a source file,
// disassemble its compiled form, or drop into an interactive REPL.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"github.com/emberlang/ember/pkg/bytecode"
	"github.com/emberlang/ember/pkg/compiler"
	"github.com/emberlang/ember/pkg/object"
	"github.com/emberlang/ember/pkg/vm"
)

const version = "0.1.0"

func main() {
	cmd := &cli.Command{
		Name:    "ember",
		Usage:   "a small class-based bytecode interpreter",
		Version: version,
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "trace-exec", Usage: "print each instruction before it executes"},
			&cli.BoolFlag{Name: "stress-gc", Usage: "collect garbage on every allocation"},
			&cli.BoolFlag{Name: "log-gc", Usage: "print GC cycle summaries to stderr"},
		},
		Commands: []*cli.Command{
			runCommand(),
			replCommand(),
			disasmCommand(),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() > 0 {
				return runFile(cmd, cmd.Args().First())
			}
			return repl(cmd)
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		if code, ok := err.(exitCoder); ok {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(code.ExitCode())
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// exitCoder lets run/repl/disasm propagate spec.md §6's exit codes (0, 65,
// 70) through a normal Go error return instead of calling os.Exit deep
// inside a command handler.
type exitCoder interface {
	error
	ExitCode() int
}

type cliError struct {
	msg  string
	code int
}

func (e *cliError) Error() string { return e.msg }
func (e *cliError) ExitCode() int { return e.code }

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "execute a source file",
		ArgsUsage: "<file>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() < 1 {
				return &cliError{"run: missing source file", 64}
			}
			return runFile(cmd, cmd.Args().First())
		},
	}
}

func replCommand() *cli.Command {
	return &cli.Command{
		Name:  "repl",
		Usage: "start an interactive session",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return repl(cmd)
		},
	}
}

func disasmCommand() *cli.Command {
	return &cli.Command{
		Name:      "disasm",
		Usage:     "compile a source file and print its bytecode listing",
		ArgsUsage: "<file>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() < 1 {
				return &cliError{"disasm: missing source file", 64}
			}
			return disasmFile(cmd.Args().First())
		},
	}
}

func runFile(cmd *cli.Command, path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}

	machine := newVM(cmd)
	result := machine.Interpret(string(source))
	if requested, code := machine.ExitRequested(); requested {
		return &cliError{"", code}
	}
	switch result {
	case vm.InterpretCompileError:
		return &cliError{"", 65}
	case vm.InterpretRuntimeError:
		return &cliError{"", 70}
	}
	return nil
}

func disasmFile(path string) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading %s", path)
	}

	strings := object.NewStrings()
	fn, errs, ok := compiler.Compile(string(source), strings)
	if !ok {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e)
		}
		return &cliError{"", 65}
	}
	bytecode.Disassemble(os.Stdout, fn.Chunk, fmt.Sprintf("script [%s]", fn.DebugID))
	return nil
}

func newVM(cmd *cli.Command) *vm.VM {
	machine := vm.New()
	machine.TraceExec = cmd.Bool("trace-exec")
	machine.StressGC = cmd.Bool("stress-gc")
	machine.LogGC = cmd.Bool("log-gc")
	return machine
}

// repl drives an interactive session backed by readline for history and
// line editing. Each line is compiled and run independently against a
// single persistent VM, so top-level variables and classes accumulate
// across inputs the way a REPL user expects.
func repl(cmd *cli.Command) error {
	color := isatty.IsTerminal(os.Stdout.Fd())
	prompt := "> "
	if color {
		prompt = "\033[36m> \033[0m"
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          prompt,
		HistoryFile:     "",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return errors.Wrap(err, "starting readline")
	}
	defer rl.Close()

	machine := newVM(cmd)
	fmt.Printf("ember %s\n", version)

	for {
		line, err := rl.Readline()
		if err != nil { // io.EOF on ^D, readline.ErrInterrupt on ^C
			return nil
		}
		if line == "" {
			continue
		}
		result := machine.Interpret(line)
		if requested, code := machine.ExitRequested(); requested {
			os.Exit(code)
		}
		switch result {
		case vm.InterpretCompileError:
			fmt.Fprintln(os.Stderr, "compile error")
		case vm.InterpretRuntimeError:
			// machine.Interpret already printed the runtime error's trace.
		}
	}
}
