package vm

import (
	"fmt"
	"os"

	"github.com/mna/nenuphar/internal/value"
	"github.com/mna/nenuphar/lang/compiler"
)

// run is the main dispatch loop. It executes until the
// outermost call frame (the module's implicit top level) returns, or a
// runtime error panics out (recovered by Interpret).
func (vm *VM) run() {
	for len(vm.frames) > 0 {
		vm.step()
	}
}

// step executes exactly one instruction in the current frame. Split out of
// run so a native that calls back into guest code (Call, in vm.go) can
// drive the loop down to a target frame depth without recursing into a
// second Interpret/recover pair.
func (vm *VM) step() {
	f := vm.frame()
	chunk := f.Closure.Fn.Chunk
	op := value.Opcode(chunk.Code[f.IP])
	f.IP++

	if vm.TraceExec {
		fmt.Fprintf(vm.Stderr, "          ")
		for _, v := range vm.stack {
			fmt.Fprintf(vm.Stderr, "[ %s ]", v.String())
		}
		fmt.Fprintln(vm.Stderr)
		value.DisassembleInstruction(vm.Stderr, chunk, f.IP-1)
	}

	switch op {
	case value.OpConstant:
		vm.push(chunk.Constants[vm.readU16(f)])
	case value.OpNil:
		vm.push(value.Nil)
	case value.OpTrue:
		vm.push(value.True)
	case value.OpFalse:
		vm.push(value.False)
	case value.OpUnit:
		vm.push(value.Unit)
	case value.OpUndefined:
		vm.push(value.Undefined)
	case value.OpPop:
		vm.pop()

	case value.OpGetLocal:
		vm.push(*vm.slot(f.StackBase + int(vm.readU16(f))))
	case value.OpSetLocal:
		*vm.slot(f.StackBase+int(vm.readU16(f))) = vm.peek(0)
	case value.OpGetUpvalue:
		vm.push(f.Closure.Upvalues[vm.readU16(f)].Get())
	case value.OpSetUpvalue:
		f.Closure.Upvalues[vm.readU16(f)].Set(vm.peek(0))

	case value.OpGetGlobal:
		name := vm.constantString(chunk, vm.readU16(f))
		v, ok := vm.Heap.Globals.Get(name)
		if !ok {
			panic(vm.runtimeErr("undefined variable %q", name))
		}
		vm.push(v)
	case value.OpDefineGlobal:
		name := vm.constantString(chunk, vm.readU16(f))
		vm.Heap.Globals.Set(name, vm.pop())
	case value.OpSetGlobal:
		name := vm.constantString(chunk, vm.readU16(f))
		if !vm.Heap.Globals.Has(name) {
			panic(vm.runtimeErr("undefined variable %q", name))
		}
		vm.Heap.Globals.Set(name, vm.peek(0))
	case value.OpSetTypeGlobal:
		name := vm.constantString(chunk, vm.readU16(f))
		vm.Heap.Globals.Set(name, vm.pop())
	case value.OpSetTypeLocal:
		*vm.slot(f.StackBase + int(vm.readU16(f))) = vm.peek(0)

	case value.OpGetProperty:
		vm.getProperty(vm.constantString(chunk, vm.readU16(f)))
	case value.OpSetProperty:
		vm.setProperty(vm.constantString(chunk, vm.readU16(f)))
	case value.OpGetSuper:
		name := vm.constantString(chunk, vm.readU16(f))
		super := vm.pop().AsObject().(*value.ObjClass)
		bm, ok := vm.bindMethod(super, name)
		if !ok {
			panic(vm.runtimeErr("undefined superclass method %q", name))
		}
		vm.push(value.Obj(bm))

	case value.OpEqual:
		b, a := vm.pop(), vm.pop()
		vm.push(value.Bool(vm.valuesEqual(a, b)))
	case value.OpNot:
		vm.push(value.Bool(!vm.pop().Truthy()))
	case value.OpNegate:
		a := vm.pop()
		if !a.IsNumber() {
			panic(vm.runtimeErr("cannot negate a %s", a.TypeName()))
		}
		vm.push(value.Number(-a.AsNumber()))

	case value.OpJump:
		f.IP += int(vm.readU16(f))
	case value.OpJumpIfFalse:
		off := vm.readU16(f)
		if !vm.peek(0).Truthy() {
			f.IP += int(off)
		}
	case value.OpLoop:
		f.IP -= int(vm.readU16(f))

	case value.OpCall:
		argc := int(vm.readU8(f))
		vm.callValue(vm.peek(argc), argc)
	case value.OpCallPostfix:
		argc := int(vm.readU8(f))
		callee := vm.pop()
		base := len(vm.stack) - argc
		vm.stack = append(vm.stack, value.Unit)
		copy(vm.stack[base+1:], vm.stack[base:len(vm.stack)-1])
		vm.stack[base] = callee
		vm.callValue(callee, argc)
	case value.OpCallInfix:
		name := vm.constantString(chunk, vm.readU16(f))
		rhs, lhs := vm.pop(), vm.pop()
		fnVal, ok := vm.Heap.Globals.Get(name)
		if !ok {
			panic(vm.runtimeErr("undefined infix operator %q", name))
		}
		vm.push(fnVal)
		vm.push(lhs)
		vm.push(rhs)
		vm.callValue(fnVal, 2)
	case value.OpInvoke:
		name := vm.constantString(chunk, vm.readU16(f))
		argc := int(vm.readU8(f))
		vm.invoke(name, argc)
	case value.OpSuperInvoke:
		name := vm.constantString(chunk, vm.readU16(f))
		argc := int(vm.readU8(f))
		super := vm.pop().AsObject().(*value.ObjClass)
		method, ok := super.Methods[name]
		if !ok {
			panic(vm.runtimeErr("undefined superclass method %q", name))
		}
		vm.callClosure(method, argc)

	case value.OpReturn:
		vm.doReturn()
	case value.OpImplicitReturn:
		vm.push(value.Unit)
		vm.doReturn()

	case value.OpClosure:
		vm.makeClosure(f, chunk)
	case value.OpCloseUpvalue:
		top := vm.slot(len(vm.stack) - 1)
		vm.closeUpvalues(top)
		vm.pop()

	case value.OpClass:
		name := vm.constantString(chunk, vm.readU16(f))
		vm.push(value.Obj(vm.Heap.NewClass(name)))
	case value.OpInherit:
		superVal := vm.peek(1)
		super, ok := superVal.AsObjectSafe().(*value.ObjClass)
		if !ok {
			panic(vm.runtimeErr("superclass must be a class"))
		}
		sub := vm.pop().AsObject().(*value.ObjClass)
		sub.Inherit(super)
	case value.OpMethod:
		name := vm.constantString(chunk, vm.readU16(f))
		method := vm.pop().AsObject().(*value.ObjClosure)
		class := vm.peek(0).AsObject().(*value.ObjClass)
		class.Methods[name] = method

	case value.OpSubscriptGet:
		vm.subscriptGet()
	case value.OpSubscriptSet:
		vm.subscriptSet()
	case value.OpMember:
		b, a := vm.pop(), vm.pop()
		vm.push(value.Bool(vm.memberOf(a, b)))
	case value.OpSpread:
		// The value to spread is already on the stack; spread's element
		// expansion for call arguments is performed at the call site by
		// flattening a Sequence argument (see call.go's spreadArgs), so
		// this opcode is a marker consumed there. As a standalone
		// instruction (e.g. in a sequence literal) it flattens in place.
		vm.spreadInPlace()

	case value.OpDestructure:
		vm.destructure()

	case value.OpPrint:
		fmt.Fprintln(vm.Stdout, vm.pop().String())
	case value.OpExprStatement:
		vm.pop()
	case value.OpImport:
		vm.doImport()
	case value.OpThrow:
		v := vm.pop()
		inst, ok := v.AsObjectSafe().(*value.ObjInstance)
		if !ok {
			panic(vm.runtimeErr("can only throw instances, not a %s", v.TypeName()))
		}
		msg, ok := inst.Fields["message"].AsObjectSafe().(*value.ObjString)
		if !ok {
			panic(vm.runtimeErr("thrown instance must have a string message field"))
		}
		panic(&RuntimeError{Value: v, Message: inst.Class.Name + ": " + msg.Chars, Trace: vm.captureTrace()})
	case value.OpSign:
		// TODO: signature metadata is popped but not yet consulted by overload
		// dispatch, which currently matches on arity alone.
		vm.pop()
	case value.OpOverload:
		n := int(vm.readU8(f))
		vm.makeOverload(n)

	default:
		panic(vm.runtimeErr("unimplemented opcode %s", op))
	}
}

func (vm *VM) readU8(f *CallFrame) byte {
	b := f.Closure.Fn.Chunk.Code[f.IP]
	f.IP++
	return b
}

func (vm *VM) readU16(f *CallFrame) uint16 {
	v := f.Closure.Fn.Chunk.ReadU16(f.IP)
	f.IP += 2
	return v
}

func (vm *VM) constantString(c *value.Chunk, idx uint16) string {
	return c.Constants[idx].AsObject().(*value.ObjString).Chars
}

func (vm *VM) doReturn() {
	result := vm.pop()
	f := vm.frame()
	vm.closeUpvalues(vm.slot(f.StackBase))
	vm.stack = vm.stack[:f.StackBase]
	vm.frames = vm.frames[:len(vm.frames)-1]
	vm.push(result)
}

func (vm *VM) makeClosure(f *CallFrame, chunk *value.Chunk) {
	idx := vm.readU16(f)
	fn := chunk.Constants[idx].AsObject().(*value.ObjFunction)
	closure := vm.Heap.NewClosure(fn)
	for i := range closure.Upvalues {
		isLocal := vm.readU8(f)
		index := vm.readU8(f)
		if isLocal != 0 {
			closure.Upvalues[i] = vm.captureUpvalue(vm.slot(f.StackBase + int(index)))
		} else {
			closure.Upvalues[i] = f.Closure.Upvalues[index]
		}
	}
	vm.push(value.Obj(closure))
}

func (vm *VM) makeOverload(n int) {
	closures := make([]*value.ObjClosure, n)
	for i := n - 1; i >= 0; i-- {
		closures[i] = vm.pop().AsObject().(*value.ObjClosure)
	}
	name := ""
	if len(closures) > 0 {
		name = closures[0].Fn.Name
	}
	vm.push(value.Obj(vm.Heap.NewOverload(name, closures)))
}

// valuesEqual implements the equality rule: structural for
// primitives, identity for Objects by default, except ObjInstances whose
// class defines __eq__, which is dispatched as a method call.
func (vm *VM) valuesEqual(a, b value.Value) bool {
	if inst, ok := a.AsObjectSafe().(*value.ObjInstance); ok {
		if _, ok := inst.Class.Methods["__eq__"]; ok {
			vm.push(a)
			vm.push(b)
			depth := len(vm.frames)
			vm.invoke("__eq__", 1)
			vm.runUntilDepth(depth)
			return vm.pop().Truthy()
		}
	}
	return value.IdentityEqual(a, b)
}

func (vm *VM) getProperty(name string) {
	receiver := vm.peek(0)
	inst, ok := receiver.AsObjectSafe().(*value.ObjInstance)
	if !ok {
		panic(vm.runtimeErr("only instances have properties"))
	}
	if field, ok := inst.Fields[name]; ok {
		vm.pop()
		vm.push(field)
		return
	}
	bm, ok := vm.bindMethod(inst.Class, name)
	if !ok {
		panic(vm.runtimeErr("undefined property %q", name))
	}
	vm.push(value.Obj(bm))
}

func (vm *VM) setProperty(name string) {
	v := vm.pop()
	receiver := vm.pop()
	inst, ok := receiver.AsObjectSafe().(*value.ObjInstance)
	if !ok {
		panic(vm.runtimeErr("only instances have settable properties"))
	}
	inst.Fields[name] = v
	vm.push(v)
}

func (vm *VM) subscriptGet() {
	key := vm.pop()
	target := vm.pop()
	if inst, ok := target.AsObjectSafe().(*value.ObjInstance); ok {
		if _, ok := inst.Class.Methods["__get__"]; ok {
			vm.push(target)
			vm.push(key)
			vm.invoke("__get__", 1)
			return
		}
		panic(vm.runtimeErr("%s is not subscriptable", target.TypeName()))
	}
	switch t := target.AsObjectSafe().(type) {
	case *value.ObjMap:
		v, ok := t.Get(key)
		if !ok {
			vm.push(value.Nil)
			return
		}
		vm.push(v)
	case *value.ObjSequence:
		idx, ok := sequenceIndex(t, key)
		if !ok {
			panic(vm.runtimeErr("sequence index out of range"))
		}
		vm.push(t.Values[idx])
	default:
		panic(vm.runtimeErr("%s is not subscriptable", target.TypeName()))
	}
}

func (vm *VM) subscriptSet() {
	v := vm.pop()
	key := vm.pop()
	target := vm.pop()
	if inst, ok := target.AsObjectSafe().(*value.ObjInstance); ok {
		if _, ok := inst.Class.Methods["__set__"]; ok {
			vm.push(target)
			vm.push(key)
			vm.push(v)
			vm.invoke("__set__", 2)
			vm.pop()
			vm.push(v)
			return
		}
		panic(vm.runtimeErr("%s does not support item assignment", target.TypeName()))
	}
	switch t := target.AsObjectSafe().(type) {
	case *value.ObjMap:
		t.Set(key, v)
	case *value.ObjSequence:
		idx, ok := sequenceIndex(t, key)
		if !ok {
			panic(vm.runtimeErr("sequence index out of range"))
		}
		t.Values[idx] = v
	default:
		panic(vm.runtimeErr("%s does not support item assignment", target.TypeName()))
	}
	vm.push(v)
}

func sequenceIndex(s *value.ObjSequence, key value.Value) (int, bool) {
	if !key.IsNumber() {
		return 0, false
	}
	idx := int(key.AsNumber())
	if idx < 0 {
		idx += len(s.Values)
	}
	if idx < 0 || idx >= len(s.Values) {
		return 0, false
	}
	return idx, true
}

func (vm *VM) memberOf(elem, collection value.Value) bool {
	if inst, ok := collection.AsObjectSafe().(*value.ObjInstance); ok {
		if _, ok := inst.Class.Methods["__in__"]; ok {
			vm.push(collection)
			vm.push(elem)
			depth := len(vm.frames)
			vm.invoke("__in__", 1)
			vm.runUntilDepth(depth)
			return vm.pop().Truthy()
		}
		panic(vm.runtimeErr("%s is not a collection", collection.TypeName()))
	}
	switch c := collection.AsObjectSafe().(type) {
	case *value.ObjSequence:
		for _, v := range c.Values {
			if vm.valuesEqual(v, elem) {
				return true
			}
		}
		return false
	case *value.ObjMap:
		return c.Has(elem)
	default:
		panic(vm.runtimeErr("%s is not a collection", collection.TypeName()))
	}
}

// spreadInPlace flattens a Sequence sitting on top of the stack into its
// elements (used by sequence-literal spread; call-argument spread handles
// flattening inline at the call site in functions.go's compiled form).
func (vm *VM) spreadInPlace() {
	top := vm.pop()
	seq, ok := top.AsObjectSafe().(*value.ObjSequence)
	if !ok {
		panic(vm.runtimeErr("cannot spread a %s", top.TypeName()))
	}
	for _, v := range seq.Values {
		vm.push(v)
	}
}

// destructure implements DESTRUCTURE (`let x <- e;` and the expression
// form `x <- e`): the operand is left on top of the stack for the
// subsequent store, unwrapped via __destructure__ for any ObjInstance
// whose class defines it, the same dunder-dispatch idiom valuesEqual uses
// for __eq__. Values with no such method unwrap to themselves.
func (vm *VM) destructure() {
	v := vm.pop()
	if inst, ok := v.AsObjectSafe().(*value.ObjInstance); ok {
		if _, ok := inst.Class.Methods["__destructure__"]; ok {
			vm.push(v)
			vm.invoke("__destructure__", 0)
			return
		}
	}
	vm.push(v)
}

// doImport loads and runs a module file relative to the process's working
// directory, sharing this VM's Heap (and therefore its globals and infix
// table) so the imported file's top-level declarations become globals of
// the importing program.
// Modules do not get their own namespace in this build: importing a file
// twice re-runs its top level each time, and its alias binds to Unit.
func (vm *VM) doImport() {
	path := vm.pop().AsObject().(*value.ObjString).Chars
	src, err := os.ReadFile(path)
	if err != nil {
		panic(vm.runtimeErr("import %q: %s", path, err))
	}
	fn, errs := compiler.Compile(vm.Heap, src, path)
	if len(errs) > 0 {
		panic(vm.runtimeErr("import %q: %s", path, errs[0].Error()))
	}
	sub := New(vm.Heap, vm.Stdout, vm.Stderr)
	if err := sub.Interpret(fn); err != nil {
		panic(vm.runtimeErr("import %q: %s", path, err.Error()))
	}
	vm.push(value.Unit)
}
