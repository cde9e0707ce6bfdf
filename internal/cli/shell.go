package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
)

const shellHelp = `commands:
  purge              run one purge pass
  list               show registered stores
  history [after]    show audited passes
  help               show this help
  quit               exit`

// NewShellCommand opens an interactive prompt over the wired stack.
func NewShellCommand(root *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive purge shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := openEnv(root, nil)
			if err != nil {
				return err
			}
			defer e.Close()

			rl, err := readline.NewEx(&readline.Config{
				Prompt:          "halftrip> ",
				InterruptPrompt: "^C",
				EOFPrompt:       "quit",
				Stdout:          cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}
			defer rl.Close()

			fmt.Fprintln(rl.Stdout(), shellHelp)
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
				if quit := e.exec(cmd.Context(), rl.Stdout(), root.Format, line); quit {
					return nil
				}
			}
		},
	}
}

// exec runs one shell line and reports whether the shell should exit.
func (e *env) exec(ctx context.Context, w io.Writer, format, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprintln(w, shellHelp)
	case "list":
		for i, name := range e.app.Registry.Names() {
			fmt.Fprintf(w, "%d. %s\n", i+1, name)
		}
	case "purge":
		res := e.app.Coordinator.PurgeAll(ctx)
		if e.app.History != nil {
			e.app.History.Record(res)
		}
		_ = writeResult(w, format, res)
	case "history":
		if e.app.History == nil {
			fmt.Fprintln(w, "audit history disabled")
			return false
		}
		var after uint64
		if len(fields) > 1 {
			n, err := strconv.ParseUint(fields[1], 10, 64)
			if err != nil {
				fmt.Fprintf(w, "bad sequence %q\n", fields[1])
				return false
			}
			after = n
		}
		records, _ := e.app.History.Since(after)
		for _, r := range records {
			status := "ok"
			if !r.AllSucceeded {
				status = "not cleared: " + strings.Join(r.Failed(), ", ")
			}
			fmt.Fprintf(w, "#%d %s %dms %s\n", r.Seq, r.PassID, r.DurationMs, status)
		}
	default:
		fmt.Fprintf(w, "unknown command %q (try help)\n", fields[0])
	}
	return false
}
