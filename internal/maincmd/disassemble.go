package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"
	"github.com/mna/nenuphar/internal/value"
	"github.com/mna/nenuphar/lang/compiler"
)

// Disassemble compiles each given file and prints its bytecode without
// running it, for inspecting what the compiler emitted.
func (c *Cmd) Disassemble(ctx context.Context, stdio mainer.Stdio, args []string) error {
	var firstErr error
	for _, path := range args {
		if err := disassembleFile(stdio, path); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func disassembleFile(stdio mainer.Stdio, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}

	heap := value.NewHeap()
	fn, errs := compiler.Compile(heap, src, path)
	if len(errs) > 0 {
		for _, e := range errs {
			fmt.Fprintf(stdio.Stderr, "%s:%s\n", path, e.Error())
		}
		return errs[0]
	}

	value.DisassembleChunk(stdio.Stdout, fn.Chunk, path)
	return nil
}
