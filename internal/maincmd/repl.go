package maincmd

import (
	"bufio"
	"context"
	"fmt"

	"github.com/mna/mainer"
	"github.com/mna/nenuphar/internal/natives"
	"github.com/mna/nenuphar/internal/value"
	vmpkg "github.com/mna/nenuphar/internal/vm"
	"github.com/mna/nenuphar/lang/compiler"
)

// Repl starts an interactive read-eval-print loop, sharing one Heap (and
// therefore one set of globals and infix operators) across every line
// entered, so definitions from earlier lines remain visible.
func (c *Cmd) Repl(ctx context.Context, stdio mainer.Stdio, args []string) error {
	heap := value.NewHeap()
	natives.Install(heap)
	c.configureHeap(heap)

	scanner := bufio.NewScanner(stdio.Stdin)
	fmt.Fprintln(stdio.Stdout, "nat repl — ^D to exit")
	for {
		fmt.Fprint(stdio.Stdout, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(stdio.Stdout)
			return nil
		}
		line := scanner.Text()
		if line == "" {
			continue
		}

		fn, errs := compiler.Compile(heap, []byte(line), "<repl>")
		if len(errs) > 0 {
			for _, e := range errs {
				fmt.Fprintln(stdio.Stderr, e.Error())
			}
			continue
		}

		vm := vmpkg.New(heap, stdio.Stdout, stdio.Stderr)
		vm.TraceExec = c.TraceExec
		if err := vm.Interpret(fn); err != nil {
			fmt.Fprintln(stdio.Stderr, err)
		}
	}
}
