package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/nenuphar/internal/natives"
	"github.com/mna/nenuphar/internal/value"
	"github.com/mna/nenuphar/lang/compiler"
)

// checkChunkProperties walks c, asserting:
//   - P2: the sum of (1 + operand width) across every opcode equals len(c.Code).
//   - P1: every opcode's operand width matches the fixed table (implicit,
//     since walking relies on it to find the next opcode at all: a
//     mismatch would desync and the walk would run off the end or panic
//     reading a bogus CLOSURE upvalue count).
//   - P3: every CLOSURE instruction is followed by exactly 2*UpvalueCount
//     bytes of upvalue-descriptor data, matching the target Function's
//     declared upvalue count.
//
// It recurses into every nested *value.ObjFunction found in the constants
// pool so the whole compiled program is covered, not just the module top
// level.
func checkChunkProperties(t *testing.T, fn *value.ObjFunction, seen map[*value.ObjFunction]bool) {
	t.Helper()
	if seen[fn] {
		return
	}
	seen[fn] = true

	c := fn.Chunk
	offset := 0
	for offset < len(c.Code) {
		op := value.Opcode(c.Code[offset])
		width := value.OperandWidth(op)
		switch width {
		case -1:
			// CLOSURE: u16 constant index, then 2*N upvalue-descriptor bytes.
			constIdx := c.ReadU16(offset + 1)
			require.Less(t, int(constIdx), len(c.Constants), "CLOSURE constant index out of range")
			target, ok := c.Constants[constIdx].AsObject().(*value.ObjFunction)
			require.True(t, ok, "CLOSURE constant must be a Function")
			offset += 3 + 2*target.UpvalueCount
		default:
			require.GreaterOrEqual(t, width, 0)
			offset += 1 + width
		}
	}
	require.Equal(t, len(c.Code), offset, "P2: opcode+operand widths must sum to Code length")

	for _, v := range c.Constants {
		if nested, ok := v.AsObjectSafe().(*value.ObjFunction); ok {
			checkChunkProperties(t, nested, seen)
		}
	}
}

func mustCompile(t *testing.T, src string) *value.ObjFunction {
	t.Helper()
	heap := value.NewHeap()
	natives.Install(heap)
	fn, errs := compiler.Compile(heap, []byte(src), "<test>")
	require.Empty(t, errs, "unexpected compile errors for:\n%s", src)
	return fn
}

func TestChunkProperties_SimpleScript(t *testing.T) {
	fn := mustCompile(t, `let x = 1; print x + 2;`)
	checkChunkProperties(t, fn, map[*value.ObjFunction]bool{})
}

func TestChunkProperties_NestedClosuresAndUpvalues(t *testing.T) {
	fn := mustCompile(t, `
		let mk = (n) => {
			let m = n * 2;
			return () => n + m;
		};
		print mk(3)();
	`)
	checkChunkProperties(t, fn, map[*value.ObjFunction]bool{})
}

func TestChunkProperties_ClassesAndControlFlow(t *testing.T) {
	fn := mustCompile(t, `
		class A { m() => 1; }
		class B extends A {
			m() => {
				let i = 0;
				while (i < 3) {
					i = i + 1;
				}
				if (i == 3) {
					return super.m() + i;
				} else {
					return 0;
				}
			};
		}
		print B().m();
	`)
	checkChunkProperties(t, fn, map[*value.ObjFunction]bool{})
}

func TestChunkProperties_VariadicAndOverload(t *testing.T) {
	fn := mustCompile(t, `
		let f = (a) => a | (a, *b) => b;
		print f(1);
	`)
	checkChunkProperties(t, fn, map[*value.ObjFunction]bool{})
}

func TestChunkProperties_Comprehension(t *testing.T) {
	fn := mustCompile(t, `
		print [x * x | x in Sequence(1, 2, 3), x > 1].len();
	`)
	checkChunkProperties(t, fn, map[*value.ObjFunction]bool{})
}

func TestChunkProperties_UserInfix(t *testing.T) {
	fn := mustCompile(t, `
		let infixr (3) $ = (f, x) => f(x);
		print (n => n + 1) $ 41;
	`)
	checkChunkProperties(t, fn, map[*value.ObjFunction]bool{})
}

// P2 on a deliberately jump-heavy program: every forward JUMP/JUMP_IF_FALSE
// and backward LOOP must still leave the opcode stream self-consistent.
func TestChunkProperties_ManyJumps(t *testing.T) {
	fn := mustCompile(t, `
		let i = 0;
		for (let j = 0; j < 10; j = j + 1) {
			if (j == 0) { i = i + 1; } else { if (j == 1) { i = i + 2; } else { i = i + 3; } }
		}
		print i;
	`)
	checkChunkProperties(t, fn, map[*value.ObjFunction]bool{})
}
