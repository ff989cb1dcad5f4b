// Package vm implements the stack-based bytecode interpreter: the dispatch
// loop, call frames, upvalue capture/closing, method binding, and runtime
// error reporting.
package vm

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/mna/nenuphar/internal/value"
)

const (
	maxFrames = 256
	stackMax  = maxFrames * 256
)

// CallFrame is one activation record: the closure being executed, its
// instruction pointer, and the base stack slot its locals start at.
type CallFrame struct {
	Closure   *value.ObjClosure
	IP        int
	StackBase int
}

// VM is one interpreter instance: its own value stack, call frame stack,
// open-upvalue list, and the Heap it allocates into. Nothing here is
// process-global, so multiple VMs (e.g. one per REPL session) can coexist.
type VM struct {
	Heap *value.Heap

	stack  []value.Value
	frames []CallFrame

	openUpvalues *value.ObjUpvalue // sorted by descending stack address

	Stdout io.Writer
	Stderr io.Writer
	stdin  *bufio.Scanner

	TraceExec bool

	initString *value.ObjString
}

// RuntimeError is a guest-level error: a THROW, a failed native, or a
// dispatch failure (calling a non-callable, undefined global, etc). It
// carries a formatted call-stack trace, the "[line L] in NAME" form.
type RuntimeError struct {
	Value     value.Value
	Message   string
	Trace     []string
}

func (e *RuntimeError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Value.String()
	}
	out := msg
	for _, l := range e.Trace {
		out += "\n" + l
	}
	return out
}

// New returns a VM ready to run code compiled against heap.
func New(heap *value.Heap, stdout, stderr io.Writer) *VM {
	vm := &VM{
		Heap: heap,
		// preallocated to stackMax and never reallocated: ObjUpvalue.Location
		// holds raw pointers into this backing array while open (see
		// call.go's slotIndex), which would dangle across a slice growth.
		stack:  make([]value.Value, 0, stackMax),
		Stdout: stdout,
		Stderr: stderr,
	}
	vm.initString = heap.Retain("init")
	heap.Retain("call")
	heap.Retain("iter")
	heap.Retain("next")
	heap.Retain("done")
	return vm
}

// --- stack primitives --------------------------------------------------------

func (vm *VM) push(v value.Value) {
	if len(vm.stack) >= stackMax {
		panic(vm.runtimeErr("stack overflow"))
	}
	vm.stack = append(vm.stack, v)
}

func (vm *VM) pop() value.Value {
	v := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return v
}

func (vm *VM) peek(distance int) value.Value {
	return vm.stack[len(vm.stack)-1-distance]
}

func (vm *VM) frame() *CallFrame { return &vm.frames[len(vm.frames)-1] }

// Interpret runs fn (the module's implicit top-level function, wrapped in a
// Closure with no upvalues) to completion and returns any uncaught runtime
// error.
func (vm *VM) Interpret(fn *value.ObjFunction) (err error) {
	closure := vm.Heap.NewClosure(fn)
	vm.push(value.Obj(closure))
	vm.callClosure(closure, 0)

	defer func() {
		if r := recover(); r != nil {
			if re, ok := r.(*RuntimeError); ok {
				err = re
				return
			}
			panic(r)
		}
	}()
	vm.run()
	return nil
}

func (vm *VM) runtimeErr(format string, args ...any) *RuntimeError {
	msg := fmt.Sprintf(format, args...)
	return &RuntimeError{Message: msg, Trace: vm.captureTrace()}
}

func (vm *VM) captureTrace() []string {
	trace := make([]string, 0, len(vm.frames))
	for i := len(vm.frames) - 1; i >= 0; i-- {
		f := vm.frames[i]
		fn := f.Closure.Fn
		line := 0
		if f.IP-1 >= 0 && f.IP-1 < len(fn.Chunk.Lines) {
			line = fn.Chunk.Lines[f.IP-1]
		}
		name := fn.Name
		if name == "" {
			name = "script"
		}
		trace = append(trace, fmt.Sprintf("[line %d] in %s", line, name))
	}
	return trace
}

// MarkRoots marks every VM-owned GC root: the value stack, every call
// frame's closure, and the open-upvalue list (the root set, minus
// the Heap's own Globals and retained strings, which Heap.Collect marks
// itself).
func (vm *VM) MarkRoots(h *value.Heap) {
	for _, v := range vm.stack {
		h.Mark(v)
	}
	for _, f := range vm.frames {
		h.MarkObject(f.Closure)
	}
	for uv := vm.openUpvalues; uv != nil; uv = uv.OpenNext {
		h.MarkObject(uv)
	}
}

func (vm *VM) maybeCollect() {
	if vm.Heap.ShouldCollect() {
		vm.Heap.Collect(vm.MarkRoots)
	}
}

// --- natives.vmLike surface --------------------------------------------

// Print writes s followed by a newline to the VM's configured stdout,
// matching OpPrint's own formatting (run.go).
func (vm *VM) Print(s string) { fmt.Fprintln(vm.Stdout, s) }

// Call invokes callee with args and returns its result, for natives (map,
// filter, reduce, compose) that need to call back into guest code.
func (vm *VM) Call(callee value.Value, args []value.Value) (result value.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if re, ok := r.(*RuntimeError); ok {
				err = re
				return
			}
			panic(r)
		}
	}()
	vm.push(callee)
	for _, a := range args {
		vm.push(a)
	}
	depth := len(vm.frames)
	vm.callValue(callee, len(args))
	if len(vm.frames) > depth {
		vm.runUntilDepth(depth)
	}
	return vm.pop(), nil
}

// InvokeMethod calls receiver's name method with args without materializing
// an intermediate BoundMethod, for natives (the free `len` function's
// __len__ fallback) that need to dispatch a well-known dunder method on an
// arbitrary Instance from outside the dispatch loop.
func (vm *VM) InvokeMethod(receiver value.Value, name string, args []value.Value) (result value.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			if re, ok := r.(*RuntimeError); ok {
				err = re
				return
			}
			panic(r)
		}
	}()
	vm.push(receiver)
	for _, a := range args {
		vm.push(a)
	}
	depth := len(vm.frames)
	vm.invoke(name, len(args))
	if len(vm.frames) > depth {
		vm.runUntilDepth(depth)
	}
	return vm.pop(), nil
}

// runUntilDepth drives the dispatch loop until the frame stack unwinds back
// to depth, used by Call to execute a guest closure invoked from a native
// without recursing into a second top-level Interpret.
func (vm *VM) runUntilDepth(depth int) {
	for len(vm.frames) > depth {
		vm.step()
	}
}

// ReadLine reads one line from the process's standard input for the
// `input` native, lazily wrapping os.Stdin on first use.
func (vm *VM) ReadLine() (string, bool) {
	if vm.stdin == nil {
		vm.stdin = bufio.NewScanner(os.Stdin)
	}
	if !vm.stdin.Scan() {
		return "", false
	}
	return vm.stdin.Text(), true
}
