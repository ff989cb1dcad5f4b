package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"
	"github.com/mna/nenuphar/internal/natives"
	"github.com/mna/nenuphar/internal/value"
	vmpkg "github.com/mna/nenuphar/internal/vm"
	"github.com/mna/nenuphar/lang/compiler"
)

// Run compiles and executes the single file given on the command line.
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	path := args[0]
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}

	heap := value.NewHeap()
	natives.Install(heap)
	c.configureHeap(heap)

	fn, errs := compiler.Compile(heap, src, path)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(stdio.Stderr, "%s:%s\n", path, e.Error())
		}
		return errs[0]
	}

	vm := vmpkg.New(heap, stdio.Stdout, stdio.Stderr)
	vm.TraceExec = c.TraceExec
	if err := vm.Interpret(fn); err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	return nil
}

// configureHeap applies the ambient NAT_GC_STRESS/NAT_GC_LOG knobs (see
// internal/cli) to a freshly built Heap.
func (c *Cmd) configureHeap(heap *value.Heap) {
	heap.DebugStressGC = c.GCStress
	heap.DebugLogGC = c.GCLog
	if c.GCLog {
		heap.Log = func(format string, args ...any) {
			fmt.Fprintf(os.Stderr, format+"\n", args...)
		}
	}
}
