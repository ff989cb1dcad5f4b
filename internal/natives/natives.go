// Package natives installs the bootstrap globals and core native functions
// every nat program starts with: arithmetic/comparison infix
// operators, the well-known collection constructors, and the small set of
// free functions (len, str, type, clock, entries, ...) that the compiler's
// desugaring (sequence/map literals, composition) and ordinary programs
// both call directly by name.
package natives

import (
	"fmt"
	"sort"
	"time"

	"github.com/mna/nenuphar/internal/value"
)

// vmLike is the minimal surface natives need from *vm.VM. It is declared
// here (rather than importing internal/vm) to avoid a natives<->vm import
// cycle: natives are registered into the Heap's Globals and invoked by the
// VM, which passes itself as the opaque `th any` parameter of
// value.NativeFunc; natives that need VM services type-assert against this
// interface instead of the concrete type.
type vmLike interface {
	Print(s string)
	Call(callee value.Value, args []value.Value) (value.Value, error)
	InvokeMethod(receiver value.Value, name string, args []value.Value) (value.Value, error)
	ReadLine() (string, bool)
}

// Install registers every bootstrap global and native function into heap's
// Globals table, and seeds the default infix operator precedences for the
// arithmetic/comparison operators: `+`, `-`, `*`, `/`, `>`, `<`, `>=`, `<=`
// are thin forwarders over the dunder globals that actually do the work
// (__add__, __sub__, __mul__, __div__, __gt__, __lt__, __gte__, __lte__),
// so overriding a dunder changes the corresponding operator.
func Install(heap *value.Heap) {
	installArithmetic(heap)
	installHashNatives(heap)
	installCoreNatives(heap)
	installBootstrapTypes(heap)
	installCollectionMethods(heap)
}

func define(heap *value.Heap, name string, arity int, variadic bool, fn value.NativeFunc) {
	n := heap.NewNative(name, arity, variadic, fn)
	heap.Globals.Set(name, value.Obj(n))
}

// --- arithmetic & comparison -------------------------------------------------

// installArithmetic installs the arithmetic/comparison operators under
// their dunder names (__add__, __sub__, __mul__, __div__, __gt__, __lt__,
// __gte__, __lte__, matching the original's core.c bootstrap), then gives
// each symbolic spelling (+, -, *, ...) a default infix precedence and a
// thin forwarding native that looks its dunder name up in Globals at call
// time and calls it. Guest code that reassigns e.g. __add__ therefore
// changes what `+` does, since CALL_INFIX always goes through the symbolic
// name's forwarder, and the forwarder always re-reads the dunder global.
func installArithmetic(heap *value.Heap) {
	type op struct {
		symbol string
		dunder string
		prec   int
		fn     func(a, b value.Value) (value.Value, error)
	}
	add := func(a, b value.Value) (value.Value, error) { return addValues(heap, a, b) }
	ops := []op{
		{"+", "__add__", 500, add},
		{"-", "__sub__", 500, func(a, b value.Value) (value.Value, error) { return numOp(a, b, func(x, y float64) float64 { return x - y }) }},
		{"*", "__mul__", 600, func(a, b value.Value) (value.Value, error) { return numOp(a, b, func(x, y float64) float64 { return x * y }) }},
		{"/", "__div__", 600, func(a, b value.Value) (value.Value, error) { return numOp(a, b, func(x, y float64) float64 { return x / y }) }},
		{">", "__gt__", 400, func(a, b value.Value) (value.Value, error) { return cmpOp(a, b, func(c int) bool { return c > 0 }) }},
		{"<", "__lt__", 400, func(a, b value.Value) (value.Value, error) { return cmpOp(a, b, func(c int) bool { return c < 0 }) }},
		{">=", "__gte__", 400, func(a, b value.Value) (value.Value, error) { return cmpOp(a, b, func(c int) bool { return c >= 0 }) }},
		{"<=", "__lte__", 400, func(a, b value.Value) (value.Value, error) { return cmpOp(a, b, func(c int) bool { return c <= 0 }) }},
	}
	for _, o := range ops {
		fn, dunder, symbol := o.fn, o.dunder, o.symbol
		define(heap, dunder, 2, false, func(th any, args []value.Value) (value.Value, error) {
			return fn(args[0], args[1])
		})
		define(heap, symbol, 2, false, func(th any, args []value.Value) (value.Value, error) {
			dunderFn, ok := heap.Globals.Get(dunder)
			if !ok {
				return value.Nil, fmt.Errorf("undefined operator %q", dunder)
			}
			v, ok := th.(vmLike)
			if !ok {
				return value.Nil, fmt.Errorf("%s is not available in this context", symbol)
			}
			return v.Call(dunderFn, args)
		})
		heap.Infixes.Define(symbol, o.prec)
	}
}

// installHashNatives installs getHash/setHash (§6, core.c:318-369).
// getHash returns the bucket hash value.HashValue would use for a Map key
// (per-Kind: numbers/bools/nil/strings hash structurally, other Objects
// hash via their Header.Hash slot, 0 meaning unhashable). setHash writes
// that slot directly on an Object, letting guest code make its own
// instances usable as Map keys by giving them a stable custom hash; it
// refuses Strings (whose Header.Hash is the immutable interned content
// hash) and non-Objects.
func installHashNatives(heap *value.Heap) {
	define(heap, "getHash", 1, false, func(th any, args []value.Value) (value.Value, error) {
		h, ok := value.HashValue(args[0])
		if !ok {
			return value.Nil, fmt.Errorf("%s is not hashable", args[0].TypeName())
		}
		return value.Number(float64(h)), nil
	})
	define(heap, "setHash", 2, false, func(th any, args []value.Value) (value.Value, error) {
		obj := args[0].AsObjectSafe()
		if obj == nil {
			return value.Nil, fmt.Errorf("can only set hash of an object")
		}
		if _, ok := obj.(*value.ObjString); ok {
			return value.Nil, fmt.Errorf("can't set hash of a string")
		}
		if !args[1].IsNumber() {
			return value.Nil, fmt.Errorf("hash must be a number")
		}
		obj.Hdr().Hash = uint32(args[1].AsNumber())
		return value.Nil, nil
	})
}

func addValues(heap *value.Heap, a, b value.Value) (value.Value, error) {
	if a.IsNumber() && b.IsNumber() {
		return value.Number(a.AsNumber() + b.AsNumber()), nil
	}
	if as, ok := a.AsObjectSafe().(*value.ObjString); ok {
		if bs, ok := b.AsObjectSafe().(*value.ObjString); ok {
			return value.Obj(heap.InternString(as.Chars + bs.Chars)), nil
		}
	}
	return value.Nil, fmt.Errorf("cannot add %s and %s", a.TypeName(), b.TypeName())
}

func numOp(a, b value.Value, f func(x, y float64) float64) (value.Value, error) {
	if !a.IsNumber() || !b.IsNumber() {
		return value.Nil, fmt.Errorf("expected numbers, got %s and %s", a.TypeName(), b.TypeName())
	}
	return value.Number(f(a.AsNumber(), b.AsNumber())), nil
}

func cmpOp(a, b value.Value, pred func(c int) bool) (value.Value, error) {
	if !a.IsNumber() || !b.IsNumber() {
		return value.Nil, fmt.Errorf("expected numbers, got %s and %s", a.TypeName(), b.TypeName())
	}
	x, y := a.AsNumber(), b.AsNumber()
	c := 0
	switch {
	case x < y:
		c = -1
	case x > y:
		c = 1
	}
	return value.Bool(pred(c)), nil
}

// --- core free functions ------------------------------------------------

func installCoreNatives(heap *value.Heap) {
	define(heap, "len", 1, false, func(th any, args []value.Value) (value.Value, error) {
		switch o := args[0].AsObjectSafe().(type) {
		case *value.ObjString:
			return value.Number(float64(len(o.Chars))), nil
		case *value.ObjSequence:
			return value.Number(float64(o.Len())), nil
		case *value.ObjMap:
			return value.Number(float64(o.Len())), nil
		case *value.ObjInstance:
			if _, ok := o.Class.Methods["__len__"]; ok {
				v, ok := th.(vmLike)
				if !ok {
					return value.Nil, fmt.Errorf("len is not available in this context")
				}
				return v.InvokeMethod(args[0], "__len__", nil)
			}
			return value.Nil, fmt.Errorf("%s has no length", args[0].TypeName())
		default:
			return value.Nil, fmt.Errorf("%s has no length", args[0].TypeName())
		}
	})

	define(heap, "str", 1, false, func(th any, args []value.Value) (value.Value, error) {
		return value.Obj(heap.InternString(args[0].String())), nil
	})

	define(heap, "type", 1, false, func(th any, args []value.Value) (value.Value, error) {
		return value.Obj(heap.InternString(args[0].TypeName())), nil
	})

	define(heap, "clock", 0, false, func(th any, args []value.Value) (value.Value, error) {
		return value.Number(float64(time.Now().UnixNano()) / 1e9), nil
	})

	define(heap, "entries", 1, false, func(th any, args []value.Value) (value.Value, error) {
		m, ok := args[0].AsObjectSafe().(*value.ObjMap)
		if !ok {
			return value.Nil, fmt.Errorf("entries expects a map, got %s", args[0].TypeName())
		}
		out := make([]value.Value, 0, m.Len())
		for _, e := range m.Iterate() {
			out = append(out, value.Obj(heap.NewSequence([]value.Value{e.Key, e.Value})))
		}
		return value.Obj(heap.NewSequence(out)), nil
	})

	define(heap, "fields", 1, false, func(th any, args []value.Value) (value.Value, error) {
		inst, ok := args[0].AsObjectSafe().(*value.ObjInstance)
		if !ok {
			return value.Nil, fmt.Errorf("fields expects an instance, got %s", args[0].TypeName())
		}
		out := make([]value.Value, 0, len(inst.Fields))
		for k := range inst.Fields {
			out = append(out, value.Obj(heap.InternString(k)))
		}
		return value.Obj(heap.NewSequence(out)), nil
	})

	define(heap, "range", 1, true, func(th any, args []value.Value) (value.Value, error) {
		return rangeNative(heap, args)
	})

	define(heap, "input", 0, false, func(th any, args []value.Value) (value.Value, error) {
		v, ok := th.(vmLike)
		if !ok {
			return value.Nil, fmt.Errorf("input is not available in this context")
		}
		line, ok := v.ReadLine()
		if !ok {
			return value.Nil, nil
		}
		return value.Obj(heap.InternString(line)), nil
	})

	define(heap, "sort", 1, false, func(th any, args []value.Value) (value.Value, error) {
		return sortNative(heap, args[0])
	})

	define(heap, "map", 2, false, func(th any, args []value.Value) (value.Value, error) {
		return mapNative(th, heap, args[0], args[1])
	})

	define(heap, "filter", 2, false, func(th any, args []value.Value) (value.Value, error) {
		return filterNative(th, heap, args[0], args[1])
	})

	define(heap, "reduce", 3, false, func(th any, args []value.Value) (value.Value, error) {
		return reduceNative(th, args[0], args[1], args[2])
	})

	define(heap, "compose", 2, false, func(th any, args []value.Value) (value.Value, error) {
		f, g := args[0], args[1]
		v, ok := th.(vmLike)
		if !ok {
			return value.Nil, fmt.Errorf("compose is not available in this context")
		}
		return value.Obj(heap.NewNative("<composed>", 1, true, func(th2 any, inner []value.Value) (value.Value, error) {
			mid, err := v.Call(g, inner)
			if err != nil {
				return value.Nil, err
			}
			return v.Call(f, []value.Value{mid})
		})), nil
	})
}

func rangeNative(heap *value.Heap, args []value.Value) (value.Value, error) {
	var start, stop, step float64 = 0, 0, 1
	switch len(args) {
	case 1:
		stop = args[0].AsNumber()
	case 2:
		start, stop = args[0].AsNumber(), args[1].AsNumber()
	case 3:
		start, stop, step = args[0].AsNumber(), args[1].AsNumber(), args[2].AsNumber()
	default:
		return value.Nil, fmt.Errorf("range expects 1 to 3 arguments")
	}
	if step == 0 {
		return value.Nil, fmt.Errorf("range step cannot be 0")
	}
	var out []value.Value
	if step > 0 {
		for x := start; x < stop; x += step {
			out = append(out, value.Number(x))
		}
	} else {
		for x := start; x > stop; x += step {
			out = append(out, value.Number(x))
		}
	}
	return value.Obj(heap.NewSequence(out)), nil
}

func sortNative(heap *value.Heap, v value.Value) (value.Value, error) {
	seq, ok := v.AsObjectSafe().(*value.ObjSequence)
	if !ok {
		return value.Nil, fmt.Errorf("sort expects a sequence, got %s", v.TypeName())
	}
	out := make([]value.Value, len(seq.Values))
	copy(out, seq.Values)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsNumber() && out[j].IsNumber() {
			return out[i].AsNumber() < out[j].AsNumber()
		}
		return out[i].String() < out[j].String()
	})
	return value.Obj(heap.NewSequence(out)), nil
}

func mapNative(th any, heap *value.Heap, fn, seqVal value.Value) (value.Value, error) {
	v, ok := th.(vmLike)
	if !ok {
		return value.Nil, fmt.Errorf("map is not available in this context")
	}
	seq, ok := seqVal.AsObjectSafe().(*value.ObjSequence)
	if !ok {
		return value.Nil, fmt.Errorf("map expects a sequence, got %s", seqVal.TypeName())
	}
	out := make([]value.Value, len(seq.Values))
	for i, el := range seq.Values {
		r, err := v.Call(fn, []value.Value{el})
		if err != nil {
			return value.Nil, err
		}
		out[i] = r
	}
	return value.Obj(heap.NewSequence(out)), nil
}

func filterNative(th any, heap *value.Heap, fn, seqVal value.Value) (value.Value, error) {
	v, ok := th.(vmLike)
	if !ok {
		return value.Nil, fmt.Errorf("filter is not available in this context")
	}
	seq, ok := seqVal.AsObjectSafe().(*value.ObjSequence)
	if !ok {
		return value.Nil, fmt.Errorf("filter expects a sequence, got %s", seqVal.TypeName())
	}
	var out []value.Value
	for _, el := range seq.Values {
		r, err := v.Call(fn, []value.Value{el})
		if err != nil {
			return value.Nil, err
		}
		if r.Truthy() {
			out = append(out, el)
		}
	}
	return value.Obj(heap.NewSequence(out)), nil
}

func reduceNative(th any, fn, init, seqVal value.Value) (value.Value, error) {
	v, ok := th.(vmLike)
	if !ok {
		return value.Nil, fmt.Errorf("reduce is not available in this context")
	}
	seq, ok := seqVal.AsObjectSafe().(*value.ObjSequence)
	if !ok {
		return value.Nil, fmt.Errorf("reduce expects a sequence, got %s", seqVal.TypeName())
	}
	acc := init
	for _, el := range seq.Values {
		r, err := v.Call(fn, []value.Value{acc, el})
		if err != nil {
			return value.Nil, err
		}
		acc = r
	}
	return acc, nil
}
