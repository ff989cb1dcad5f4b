package value

// ObjMap is the guest-visible hashed map: open addressing with
// linear probing, power-of-two capacity, 0.75 max load factor, and
// tombstones on delete so probing never terminates prematurely on a chain
// that has had a deletion in it.
//
// This is hand-rolled rather than built on top of github.com/dolthub/swiss
// (used elsewhere in this codebase for VM-internal tables, see DESIGN.md)
// because the tombstone-recycling behavior and the exact probing order are
// externally observable guest-language behavior, not an implementation
// detail swiss's API exposes (no tombstone count, no guaranteed
// linear-probe order, no hook to plug in the per-Kind hash functions
// below).
type ObjMap struct {
	Header
	entries []mapEntry
	count   int // live entries, not counting tombstones
	full    int // live entries + tombstones, drives the resize threshold
}

type mapEntry struct {
	key   Value
	value Value
}

var _ Object = (*ObjMap)(nil)

const mapMaxLoad = 0.75

// NewMap returns an empty map with no backing storage yet allocated (mirrors
// the C initTable/initial-capacity-0 design: the first Set triggers the
// initial grow to capacity 8).
func NewMap() *ObjMap {
	m := &ObjMap{}
	m.Kind = ObjKindMap
	return m
}

func (m *ObjMap) String() string { return "map" }

func (m *ObjMap) Blacken(h *Heap) {
	for _, e := range m.entries {
		if e.key.IsUndefined() {
			continue
		}
		h.Mark(e.key)
		h.Mark(e.value)
	}
}

func (m *ObjMap) Len() int { return m.count }

// HashValue computes the map-bucket hash for v per the per-Kind
// rules, or reports ok=false if v is not hashable (an Object whose header
// Hash field is still 0).
func HashValue(v Value) (h uint32, ok bool) {
	switch v.Kind() {
	case KindNumber:
		return wangHash(v.AsNumber()), true
	case KindBool:
		if v.AsBool() {
			return 1, true
		}
		return 2, true
	case KindNil:
		return 3, true
	case KindUnit:
		return 4, true
	case KindUndefined:
		return 5, true
	case KindObject:
		o := v.AsObject()
		if s, ok := o.(*ObjString); ok {
			return s.Header.Hash, true
		}
		if c, ok := o.(*ObjClass); ok {
			// identity pointer reinterpreted as a number, per.
			return wangHash(float64(uintptr(classAddr(c)))), true
		}
		hd := o.Hdr()
		if hd.Hash == 0 {
			return 0, false
		}
		return hd.Hash, true
	default:
		return 0, false
	}
}

// wangHash is the Wang 64->32 bit mix of a float64's IEEE bits.
func wangHash(n float64) uint32 {
	key := floatBits(n)
	key = (^key) + (key << 18)
	key = key ^ (key >> 31)
	key = key * 21
	key = key ^ (key >> 11)
	key = key + (key << 6)
	key = key ^ (key >> 22)
	return uint32(key)
}

func floatBits(n float64) uint64 {
	return float64bits(n)
}

// Get looks up k, returning (value, true) on a hit.
func (m *ObjMap) Get(k Value) (Value, bool) {
	if len(m.entries) == 0 {
		return Value{}, false
	}
	h, ok := HashValue(k)
	if !ok {
		return Value{}, false
	}
	idx, found := m.find(k, h)
	if !found {
		return Value{}, false
	}
	return m.entries[idx].value, true
}

func (m *ObjMap) Has(k Value) bool {
	_, ok := m.Get(k)
	return ok
}

// Set inserts or overwrites the value for k, growing the table if the load
// factor would exceed 0.75. Returns false if k is unhashable.
func (m *ObjMap) Set(k, v Value) bool {
	h, ok := HashValue(k)
	if !ok {
		return false
	}
	if len(m.entries) == 0 || float64(m.full+1) > float64(len(m.entries))*mapMaxLoad {
		m.grow()
	}
	idx, found := m.find(k, h)
	isNewKey := !found
	if isNewKey {
		if m.entries[idx].key.IsUndefined() {
			m.full++
		}
		m.count++
	}
	m.entries[idx] = mapEntry{key: k, value: v}
	return true
}

// Delete removes k, leaving a tombstone so that later probes for other keys
// that hashed into the same chain still terminate correctly.
func (m *ObjMap) Delete(k Value) bool {
	if len(m.entries) == 0 {
		return false
	}
	h, ok := HashValue(k)
	if !ok {
		return false
	}
	idx, found := m.find(k, h)
	if !found {
		return false
	}
	m.entries[idx] = mapEntry{key: Undefined, value: True} // tombstone
	m.count--
	return true
}

// find performs linear probing for key k (hash h), returning the slot index
// and whether it was an exact hit. On miss, it returns the first tombstone
// seen (or the first empty slot if none), exactly as describes.
func (m *ObjMap) find(k Value, h uint32) (int, bool) {
	cap := uint32(len(m.entries))
	idx := h & (cap - 1)
	var tombstone = -1
	for {
		e := &m.entries[idx]
		switch {
		case e.key.IsUndefined():
			if e.value.IsUndefined() {
				// truly empty slot
				if tombstone != -1 {
					return tombstone, false
				}
				return int(idx), false
			}
			// tombstone
			if tombstone == -1 {
				tombstone = int(idx)
			}
		case mapKeysEqual(e.key, k):
			return int(idx), true
		}
		idx = (idx + 1) & (cap - 1)
	}
}

func mapKeysEqual(a, b Value) bool {
	if as, ok := a.AsObjectSafe().(*ObjString); ok {
		if bs, ok := b.AsObjectSafe().(*ObjString); ok {
			return as == bs // interned: pointer equality is string equality
		}
		return false
	}
	return IdentityEqual(a, b)
}

// AsObjectSafe returns the Object payload, or nil if v is not an Object.
func (v Value) AsObjectSafe() Object {
	if v.kind != KindObject {
		return nil
	}
	return v.obj
}

func (m *ObjMap) grow() {
	newCap := 8
	if len(m.entries) > 0 {
		newCap = len(m.entries) * 2
	}
	old := m.entries
	m.entries = make([]mapEntry, newCap)
	for i := range m.entries {
		m.entries[i] = mapEntry{key: Undefined, value: Undefined}
	}
	m.count = 0
	m.full = 0
	for _, e := range old {
		if e.key.IsUndefined() {
			continue
		}
		h, _ := HashValue(e.key)
		idx, _ := m.find(e.key, h)
		m.entries[idx] = e
		m.count++
		m.full++
	}
}

// Iterate returns the live (non-tombstone) entries in table order, used by
// `entries()` and for-in iteration over maps.
func (m *ObjMap) Iterate() []struct{ Key, Value Value } {
	out := make([]struct{ Key, Value Value }, 0, m.count)
	for _, e := range m.entries {
		if e.key.IsUndefined() {
			continue
		}
		out = append(out, struct{ Key, Value Value }{e.key, e.value})
	}
	return out
}
