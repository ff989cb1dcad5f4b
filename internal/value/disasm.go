package value

import (
	"fmt"
	"io"
)

// DisassembleChunk writes a human-readable listing of chunk to w. This is
// diagnostic only ("bytecode layout is internal... the
// disassembler output format is diagnostic only"); nothing in the compiler
// or VM depends on its output.
func DisassembleChunk(w io.Writer, c *Chunk, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		offset = DisassembleInstruction(w, c, offset)
	}
}

// DisassembleInstruction writes one instruction starting at offset and
// returns the offset of the next instruction.
func DisassembleInstruction(w io.Writer, c *Chunk, offset int) int {
	fmt.Fprintf(w, "%04d ", offset)
	if offset > 0 && c.Lines[offset] == c.Lines[offset-1] {
		fmt.Fprint(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", c.Lines[offset])
	}

	op := Opcode(c.Code[offset])
	width := OperandWidth(op)
	switch width {
	case 0:
		fmt.Fprintln(w, op)
		return offset + 1
	case 1:
		arg := c.Code[offset+1]
		fmt.Fprintf(w, "%-16s %4d\n", op, arg)
		return offset + 2
	case 2:
		arg := c.ReadU16(offset + 1)
		suffix := ""
		switch op {
		case OpConstant, OpGetGlobal, OpDefineGlobal, OpSetGlobal, OpGetProperty,
			OpSetProperty, OpGetSuper, OpClass, OpMethod, OpSetTypeGlobal:
			if int(arg) < len(c.Constants) {
				suffix = fmt.Sprintf(" ; %s", c.Constants[arg].String())
			}
		}
		fmt.Fprintf(w, "%-16s %4d%s\n", op, arg, suffix)
		return offset + 3
	case 3:
		name := c.ReadU16(offset + 1)
		argc := c.Code[offset+3]
		suffix := ""
		if int(name) < len(c.Constants) {
			suffix = fmt.Sprintf(" ; %s", c.Constants[name].String())
		}
		fmt.Fprintf(w, "%-16s %4d (%d args)%s\n", op, name, argc, suffix)
		return offset + 4
	default:
		// CLOSURE: u16 function-constant index, then a (isLocal,index) pair
		// per upvalue, width determined at print time from the Function's
		// declared upvalue count.
		return disassembleClosure(w, c, offset)
	}
}

func disassembleClosure(w io.Writer, c *Chunk, offset int) int {
	constIdx := c.ReadU16(offset + 1)
	fmt.Fprintf(w, "%-16s %4d\n", OpClosure, constIdx)
	next := offset + 3
	if int(constIdx) < len(c.Constants) {
		if fn, ok := c.Constants[constIdx].AsObjectSafe().(*ObjFunction); ok {
			for i := 0; i < fn.UpvalueCount; i++ {
				isLocal := c.Code[next]
				index := c.Code[next+1]
				kind := "upvalue"
				if isLocal != 0 {
					kind = "local"
				}
				fmt.Fprintf(w, "%04d      |                     %s %d\n", next, kind, index)
				next += 2
			}
		}
	}
	return next
}
