package natives

import (
	"github.com/mna/nenuphar/internal/value"
)

// installCollectionMethods registers the "Type#method" globals that
// invokeNonInstance (internal/vm/call.go) dispatches built-in method calls
// on Sequence/Map/String receivers to, since those are not Instances and so
// carry no Class.Methods of their own ("well-known methods").
func installCollectionMethods(heap *value.Heap) {
	define(heap, "sequence#iter", 1, false, func(th any, args []value.Value) (value.Value, error) {
		seq := args[0].AsObjectSafe().(*value.ObjSequence)
		return value.Obj(newSequenceIterator(heap, seq)), nil
	})
	define(heap, "sequence#add", 2, false, func(th any, args []value.Value) (value.Value, error) {
		seq := args[0].AsObjectSafe().(*value.ObjSequence)
		seq.Add(args[1])
		return args[0], nil
	})
	define(heap, "sequence#push", 2, false, func(th any, args []value.Value) (value.Value, error) {
		seq := args[0].AsObjectSafe().(*value.ObjSequence)
		seq.Add(args[1])
		return args[0], nil
	})
	define(heap, "sequence#pop", 1, false, func(th any, args []value.Value) (value.Value, error) {
		seq := args[0].AsObjectSafe().(*value.ObjSequence)
		n := len(seq.Values)
		if n == 0 {
			return value.Nil, nil
		}
		v := seq.Values[n-1]
		seq.Values = seq.Values[:n-1]
		return v, nil
	})
	define(heap, "sequence#len", 1, false, func(th any, args []value.Value) (value.Value, error) {
		seq := args[0].AsObjectSafe().(*value.ObjSequence)
		return value.Number(float64(seq.Len())), nil
	})

	define(heap, "map#iter", 1, false, func(th any, args []value.Value) (value.Value, error) {
		m := args[0].AsObjectSafe().(*value.ObjMap)
		return value.Obj(newMapIterator(heap, m)), nil
	})
	define(heap, "map#has", 2, false, func(th any, args []value.Value) (value.Value, error) {
		m := args[0].AsObjectSafe().(*value.ObjMap)
		return value.Bool(m.Has(args[1])), nil
	})
	define(heap, "map#get", 2, false, func(th any, args []value.Value) (value.Value, error) {
		m := args[0].AsObjectSafe().(*value.ObjMap)
		v, ok := m.Get(args[1])
		if !ok {
			return value.Nil, nil
		}
		return v, nil
	})
	define(heap, "map#set", 3, false, func(th any, args []value.Value) (value.Value, error) {
		m := args[0].AsObjectSafe().(*value.ObjMap)
		m.Set(args[1], args[2])
		return args[0], nil
	})
	define(heap, "map#delete", 2, false, func(th any, args []value.Value) (value.Value, error) {
		m := args[0].AsObjectSafe().(*value.ObjMap)
		return value.Bool(m.Delete(args[1])), nil
	})
	define(heap, "map#len", 1, false, func(th any, args []value.Value) (value.Value, error) {
		m := args[0].AsObjectSafe().(*value.ObjMap)
		return value.Number(float64(m.Len())), nil
	})

	define(heap, "string#len", 1, false, func(th any, args []value.Value) (value.Value, error) {
		s := args[0].AsObjectSafe().(*value.ObjString)
		return value.Number(float64(len(s.Chars))), nil
	})
}

// newSequenceIterator builds an Iterator-class Instance whose `done`/`next`
// are native-backed closures capturing a private cursor. They are stored as
// instance fields (not Class.Methods) because invokeInstance checks fields
// first and callValue dispatches ObjNative directly, which sidesteps
// needing bytecode closures for built-in iteration state.
func newSequenceIterator(heap *value.Heap, seq *value.ObjSequence) *value.ObjInstance {
	iterClass, _ := heap.Globals.Get("Iterator")
	inst := heap.NewInstance(iterClass.AsObject().(*value.ObjClass))
	idx := 0
	inst.Fields["done"] = value.Obj(heap.NewNative("<iter done>", 0, false, func(th any, a []value.Value) (value.Value, error) {
		return value.Bool(idx >= len(seq.Values)), nil
	}))
	inst.Fields["next"] = value.Obj(heap.NewNative("<iter next>", 0, false, func(th any, a []value.Value) (value.Value, error) {
		if idx >= len(seq.Values) {
			return value.Nil, nil
		}
		v := seq.Values[idx]
		idx++
		return v, nil
	}))
	return inst
}

func newMapIterator(heap *value.Heap, m *value.ObjMap) *value.ObjInstance {
	iterClass, _ := heap.Globals.Get("Iterator")
	inst := heap.NewInstance(iterClass.AsObject().(*value.ObjClass))
	entries := m.Iterate()
	idx := 0
	inst.Fields["done"] = value.Obj(heap.NewNative("<iter done>", 0, false, func(th any, a []value.Value) (value.Value, error) {
		return value.Bool(idx >= len(entries)), nil
	}))
	inst.Fields["next"] = value.Obj(heap.NewNative("<iter next>", 0, false, func(th any, a []value.Value) (value.Value, error) {
		if idx >= len(entries) {
			return value.Nil, nil
		}
		e := entries[idx]
		idx++
		return value.Obj(heap.NewSequence([]value.Value{e.Key, e.Value})), nil
	}))
	return inst
}
