package value

import "github.com/dolthub/swiss"

// StringMap is a thin wrapper over swiss.Map[string, Value], used for a
// VM-internal table that needs fast, allocation-light lookups by name but
// has no externally observable probing/tombstone contract: the globals
// table. (The infix precedence table is InfixTable and the constants-dedup
// cache is a plain Go map; see DESIGN.md; contrast with ObjMap in map.go, which hand-rolls
// the open-addressing scheme because that one IS observable guest
// behavior).
type StringMap struct {
	m *swiss.Map[string, Value]
}

func NewStringMap() *StringMap {
	return &StringMap{m: swiss.NewMap[string, Value](8)}
}

func (s *StringMap) Get(k string) (Value, bool) { return s.m.Get(k) }
func (s *StringMap) Set(k string, v Value)       { s.m.Put(k, v) }
func (s *StringMap) Delete(k string) bool        { return s.m.Delete(k) }
func (s *StringMap) Has(k string) bool           { _, ok := s.m.Get(k); return ok }
func (s *StringMap) Len() int                    { return int(s.m.Count()) }

// Each calls fn for every entry. Order is unspecified.
func (s *StringMap) Each(fn func(k string, v Value)) {
	s.m.Iter(func(k string, v Value) bool {
		fn(k, v)
		return false
	})
}

// InfixTable is the process-wide name -> signed precedence mapping
// consulted by the Pratt parser and by CALL_INFIX (GLOSSARY
// "Infix table"). Positive = left-assoc, negative = right-assoc, absent (or
// zero) = not an operator.
type InfixTable struct {
	m *swiss.Map[string, int]
}

func NewInfixTable() *InfixTable {
	return &InfixTable{m: swiss.NewMap[string, int](8)}
}

// Precedence returns the signed precedence for name, or 0 if name is not a
// registered infix operator.
func (t *InfixTable) Precedence(name string) int {
	p, _ := t.m.Get(name)
	return p
}

// Define registers name as an infix operator with the given signed
// precedence (negative for right-associative).
func (t *InfixTable) Define(name string, precedence int) {
	t.m.Put(name, precedence)
}
