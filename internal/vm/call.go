package vm

import (
	"unsafe"

	"github.com/mna/nenuphar/internal/value"
)

// callValue dispatches a call to whatever kind of callee sits at
// stack[top-argc-1] ("Call protocol"): Closure, Native, Class
// (constructs an Instance and runs its init), BoundMethod, or an Instance
// with a `call` method of its own. argc does not include the callee.
func (vm *VM) callValue(callee value.Value, argc int) {
	if !callee.IsObject() {
		panic(vm.runtimeErr("%s is not callable", callee.TypeName()))
	}
	switch c := callee.AsObject().(type) {
	case *value.ObjClosure:
		vm.callClosure(c, argc)
	case *value.ObjNative:
		vm.callNative(c, argc)
	case *value.ObjClass:
		vm.callClass(c, argc)
	case *value.ObjBoundMethod:
		base := len(vm.stack) - argc - 1
		vm.stack[base] = c.Receiver
		vm.callClosure(c.Method, argc)
	case *value.ObjOverload:
		vm.callOverload(c, argc)
	case *value.ObjInstance:
		vm.invokeInstance(c, "call", argc)
	default:
		panic(vm.runtimeErr("%s is not callable", callee.TypeName()))
	}
}

func (vm *VM) callClosure(c *value.ObjClosure, argc int) {
	vm.collapseVariadic(c.Fn, argc)
	if len(vm.frames) >= maxFrames {
		panic(vm.runtimeErr("stack overflow"))
	}
	base := len(vm.stack) - c.Fn.Arity - 1
	vm.frames = append(vm.frames, CallFrame{Closure: c, StackBase: base})
	vm.maybeCollect()
}

// collapseVariadic implements the variadic collapsing algorithm
// ("check arity"): when fn.Variadic, every argument from fn.Arity-1 onward
// (0-based) is popped off the stack and gathered into one trailing
// ObjSequence, so the stack ends up with exactly fn.Arity values for the new
// frame's locals. A non-variadic call must supply exactly fn.Arity
// arguments, no forgiveness either way. A variadic call short by exactly one
// argument (the rest parameter omitted entirely) gets an empty Sequence
// pushed as its rest parameter; any larger shortfall is an arity error that
// reports the fn.Arity-1 fixed parameters as the minimum.
func (vm *VM) collapseVariadic(fn *value.ObjFunction, argc int) {
	if !fn.Variadic {
		if argc != fn.Arity {
			panic(vm.runtimeErr("expected %d arguments but got %d", fn.Arity, argc))
		}
		return
	}

	if argc == fn.Arity-1 {
		vm.push(value.Obj(vm.Heap.NewSequence(nil)))
		return
	}
	if argc < fn.Arity-1 {
		panic(vm.runtimeErr("expected at least %d arguments but got %d", fn.Arity-1, argc))
	}

	fixed := fn.Arity - 1
	restCount := argc - fixed
	rest := make([]value.Value, restCount)
	for i := restCount - 1; i >= 0; i-- {
		rest[i] = vm.pop()
	}
	seq := vm.Heap.NewSequence(rest)
	vm.push(value.Obj(seq))
}

func (vm *VM) callNative(n *value.ObjNative, argc int) {
	if !n.Variadic && argc != n.Arity {
		panic(vm.runtimeErr("expected %d arguments but got %d", n.Arity, argc))
	}
	args := make([]value.Value, argc)
	copy(args, vm.stack[len(vm.stack)-argc:])
	result, err := n.Fn(vm, args)
	vm.stack = vm.stack[:len(vm.stack)-argc-1]
	if err != nil {
		panic(vm.runtimeErr("%s", err.Error()))
	}
	vm.push(result)
}

func (vm *VM) callClass(c *value.ObjClass, argc int) {
	inst := vm.Heap.NewInstance(c)
	base := len(vm.stack) - argc - 1
	vm.stack[base] = value.Obj(inst)
	if init, ok := c.Methods[vm.initString.Chars]; ok {
		vm.callClosure(init, argc)
		return
	}
	if argc != 0 {
		panic(vm.runtimeErr("expected 0 arguments but got %d", argc))
	}
}

// callOverload tries each closure of o in declaration order, invoking the
// first whose arity (accounting for its own variadic flag) accepts argc
// ("Overloaded functions"). Pattern matching against patterned
// parameters is approximated here by arity alone; see DESIGN.md.
func (vm *VM) callOverload(o *value.ObjOverload, argc int) {
	for _, c := range o.Closures {
		if c.Fn.Variadic && argc >= c.Fn.Arity-1 {
			vm.callClosure(c, argc)
			return
		}
		if !c.Fn.Variadic && argc == c.Fn.Arity {
			vm.callClosure(c, argc)
			return
		}
	}
	panic(vm.runtimeErr("no overload of %s accepts %d arguments", o.Name, argc))
}

// invoke implements the INVOKE/SUPER_INVOKE peephole: look up name on
// receiver (an Instance field takes priority, per field-shadows-
// method), then call it without materializing an intermediate BoundMethod.
func (vm *VM) invoke(name string, argc int) {
	receiver := vm.peek(argc)
	if !receiver.IsObject() {
		panic(vm.runtimeErr("%s has no method %q", receiver.TypeName(), name))
	}
	inst, ok := receiver.AsObject().(*value.ObjInstance)
	if !ok {
		vm.invokeNonInstance(receiver, name, argc)
		return
	}
	vm.invokeInstance(inst, name, argc)
}

func (vm *VM) invokeInstance(inst *value.ObjInstance, name string, argc int) {
	if field, ok := inst.Fields[name]; ok {
		base := len(vm.stack) - argc - 1
		vm.stack[base] = field
		vm.callValue(field, argc)
		return
	}
	method, ok := inst.Class.Methods[name]
	if !ok {
		panic(vm.runtimeErr("undefined method %q", name))
	}
	vm.callClosure(method, argc)
}

// invokeNonInstance dispatches method calls on non-Instance receivers
// (Sequence, Map, String, Number, ...) to well-known natives registered
// under "Type#method" in globals by the natives package bootstrap.
func (vm *VM) invokeNonInstance(receiver value.Value, name string, argc int) {
	key := receiver.TypeName() + "#" + name
	fnVal, ok := vm.Heap.Globals.Get(key)
	if !ok {
		panic(vm.runtimeErr("%s has no method %q", receiver.TypeName(), name))
	}
	base := len(vm.stack) - argc - 1
	vm.stack = append(vm.stack, value.Unit)
	copy(vm.stack[base+1:], vm.stack[base:len(vm.stack)-1])
	vm.stack[base] = fnVal
	vm.callValue(fnVal, argc+1)
}

func (vm *VM) bindMethod(class *value.ObjClass, name string) (*value.ObjBoundMethod, bool) {
	m, ok := class.Methods[name]
	if !ok {
		return nil, false
	}
	receiver := vm.pop()
	bm := vm.Heap.NewBoundMethod(receiver, m)
	return bm, true
}

// slotIndex recovers the stack index a Location pointer refers to. Safe as
// long as vm.stack's backing array never reallocates while any Upvalue
// holds a pointer into it, which New preallocates stackMax capacity to
// guarantee (push never grows past that without panicking first).
func (vm *VM) slotIndex(p *value.Value) int {
	base := unsafe.Pointer(&vm.stack[:cap(vm.stack)][0])
	return int((uintptr(unsafe.Pointer(p)) - uintptr(base)) / unsafe.Sizeof(value.Value{}))
}

func (vm *VM) slot(i int) *value.Value { return &vm.stack[:cap(vm.stack)][i] }

// captureUpvalue returns the open Upvalue for the stack slot at local (a
// pointer into vm.stack's backing array), creating one if none is open yet
// for that slot. The open list is kept sorted by descending stack address
// so a linear scan from the head finds (or correctly inserts before) the
// right slot.
func (vm *VM) captureUpvalue(local *value.Value) *value.ObjUpvalue {
	targetIdx := vm.slotIndex(local)
	var prev *value.ObjUpvalue
	cur := vm.openUpvalues
	for cur != nil && vm.slotIndex(cur.Location) >= targetIdx {
		if vm.slotIndex(cur.Location) == targetIdx {
			return cur
		}
		prev = cur
		cur = cur.OpenNext
	}
	created := vm.Heap.NewUpvalue(local)
	created.OpenNext = cur
	if prev == nil {
		vm.openUpvalues = created
	} else {
		prev.OpenNext = created
	}
	return created
}

// closeUpvalues closes every open upvalue whose stack slot is at or above
// last, detaching it from the stack and copying its value into the
// Upvalue's own storage. Called on scope exit and function return.
func (vm *VM) closeUpvalues(last *value.Value) {
	lastIdx := vm.slotIndex(last)
	for vm.openUpvalues != nil && vm.slotIndex(vm.openUpvalues.Location) >= lastIdx {
		uv := vm.openUpvalues
		uv.Close()
		vm.openUpvalues = uv.OpenNext
	}
}
