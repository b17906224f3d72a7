package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"
)

// ErrNotInteractive is returned by Prompt when stdin is not a terminal.
var ErrNotInteractive = errors.New("stdin is not a terminal (pass --yes to run non-interactively)")

// Param is one line of the confirmation summary.
type Param struct {
	Name  string
	Value string
}

// Confirmer asks the operator whether to proceed.
type Confirmer interface {
	Confirm(ctx context.Context, title string, params []Param) (bool, error)
}

// AutoConfirm always proceeds.
type AutoConfirm struct{}

func (AutoConfirm) Confirm(context.Context, string, []Param) (bool, error) { return true, nil }

// Prompt prints the parameters as a table and reads a y/N answer.
type Prompt struct {
	In  io.Reader
	Out io.Writer
	// Interactive reports whether In is attached to a terminal.
	Interactive func() bool
}

// NewPrompt prompts on the given terminal.
func NewPrompt(in *os.File, out io.Writer) *Prompt {
	return &Prompt{
		In:          in,
		Out:         out,
		Interactive: func() bool { return term.IsTerminal(int(in.Fd())) },
	}
}

// Confirm renders the summary and returns true only for "y" or "yes".
func (p *Prompt) Confirm(ctx context.Context, title string, params []Param) (bool, error) {
	if p.Interactive != nil && !p.Interactive() {
		return false, ErrNotInteractive
	}

	fmt.Fprintln(p.Out, title)
	fmt.Fprintln(p.Out)
	w := tabwriter.NewWriter(p.Out, 0, 0, 2, ' ', 0)
	for _, param := range params {
		fmt.Fprintf(w, "  %s\t%s\n", param.Name, param.Value)
	}
	if err := w.Flush(); err != nil {
		return false, err
	}
	fmt.Fprintln(p.Out)
	fmt.Fprint(p.Out, "Proceed? [y/N]: ")

	answer := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(p.In).ReadString('\n')
		answer <- line
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(p.Out)
		return false, ctx.Err()
	case line := <-answer:
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return true, nil
		default:
			return false, nil
		}
	}
}
