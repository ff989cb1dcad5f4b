package value

import (
	"math"
	"unsafe"
)

func float64bits(n float64) uint64 { return math.Float64bits(n) }

// classAddr returns the identity address of a class, used as the number
// input to the Wang hash mix for class keys.
func classAddr(c *ObjClass) unsafe.Pointer { return unsafe.Pointer(c) }
