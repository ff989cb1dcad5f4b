// Package compiler implements the single-pass Pratt parser/compiler: source
// bytes go in, a compiled *value.ObjFunction (the module's implicit top
// level, recursively owning every nested function as a constant) comes out.
// There is no separate AST phase; each grammar production emits bytecode
// directly into the current function's Chunk as it is recognized.
package compiler

import (
	"fmt"

	"github.com/mna/nenuphar/internal/value"
	"github.com/mna/nenuphar/lang/scanner"
	"github.com/mna/nenuphar/lang/token"
)

// maxLocals and maxUpvalues mirror the 8-bit/16-bit operand widths chosen
// for the instruction set: a function may have at most 256 locals live at
// once (operands into GET_LOCAL/SET_LOCAL are u16 but the compiler still
// caps locals at a conservative 256, matching a fixed-size locals array) and
// at most 256 captured upvalues.
const (
	maxLocals   = 256
	maxUpvalues = 256
)

// Error is a single compile-time diagnostic. Line is 1-based.
type Error struct {
	Line    int
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("[line %d] compile error: %s", e.Line, e.Message) }

type local struct {
	name       string
	depth      int // -1 while being declared but not yet defined (own initializer can't see it)
	isCaptured bool
	isConst    bool
}

type upvalueRef struct {
	index   uint16
	isLocal bool
}

// funcState holds the per-function compilation state; one is pushed for the
// implicit top-level function and for every nested function literal, linked
// via funcState.enclosing since Go has no ambient global to thread it through.
type funcState struct {
	enclosing *funcState

	fn   *value.ObjFunction
	kind value.FuncKind

	locals      []local
	upvalues    []upvalueRef
	scopeDepth  int
	loopDepths  []loopState
	classStates []*classState
}

type loopState struct {
	continueTarget int
	breakJumps     []int
}

type classState struct {
	enclosing   *classState
	hasSuperclass bool
}

// Parser drives the single-pass compile: it owns the scanner, the current
// and previous tokens, the active function chain, and the Heap used to
// intern constants, allocate Functions, and consult/update the process-wide
// infix operator table (the "runtime-assigned signed precedence").
type Parser struct {
	heap *value.Heap
	sc   *scanner.Scanner
	src  []byte

	cur, prev scanner.Token

	fs *funcState

	errors    []*Error
	panicMode bool
}

// Compile parses and compiles src (a single module) into its implicit
// top-level *value.ObjFunction, or returns the accumulated compile errors.
func Compile(heap *value.Heap, src []byte, moduleName string) (*value.ObjFunction, []*Error) {
	p := &Parser{heap: heap, sc: scanner.New(src), src: src}
	p.fs = &funcState{fn: heap.NewFunction(moduleName), kind: value.FuncPlain, scopeDepth: 0}
	// slot 0 of every function's locals is reserved for the receiver/callee
	// cell: `this` for methods, the closure itself otherwise.
	p.fs.locals = append(p.fs.locals, local{name: "", depth: 0})

	p.advance()
	for !p.check(token.EOF) {
		p.declaration()
	}
	p.consume(token.EOF, "expected end of file")

	fn := p.endFunction()
	if len(p.errors) > 0 {
		return nil, p.errors
	}
	return fn, nil
}

// --- token stream plumbing -------------------------------------------------

func (p *Parser) advance() {
	p.prev = p.cur
	for {
		p.cur = p.sc.Next()
		if p.cur.Kind != token.ILLEGAL {
			break
		}
		p.errorAtCurrent(p.cur.Message)
	}
}

func (p *Parser) check(k token.Token) bool { return p.cur.Kind == k }

func (p *Parser) match(k token.Token) bool {
	if !p.check(k) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) consume(k token.Token, msg string) {
	if p.cur.Kind == k {
		p.advance()
		return
	}
	p.errorAtCurrent(msg)
}

func (p *Parser) lexeme(t scanner.Token) string { return t.Lexeme(p.src) }

func (p *Parser) errorAt(t scanner.Token, msg string) {
	if p.panicMode {
		return
	}
	p.panicMode = true
	p.errors = append(p.errors, &Error{Line: t.Line, Message: msg})
}

func (p *Parser) errorAtCurrent(msg string) { p.errorAt(p.cur, msg) }
func (p *Parser) error(msg string)          { p.errorAt(p.prev, msg) }

// synchronize discards tokens until a likely statement boundary, limiting
// cascades of spurious errors after one real syntax error (panic-mode
// recovery).
func (p *Parser) synchronize() {
	p.panicMode = false
	for !p.check(token.EOF) {
		if p.prev.Kind == token.SEMI {
			return
		}
		switch p.cur.Kind {
		case token.CLASS, token.LET, token.CONST, token.FOR, token.IF, token.WHILE,
			token.RETURN, token.THROW, token.PRINT, token.IMPORT:
			return
		}
		p.advance()
	}
}

// --- chunk emission ---------------------------------------------------------

func (p *Parser) chunk() *value.Chunk { return p.fs.fn.Chunk }

func (p *Parser) emit(b byte)                  { p.chunk().Write(b, p.prev.Line) }
func (p *Parser) emitOp(op value.Opcode)       { p.chunk().WriteOp(op, p.prev.Line) }
func (p *Parser) emitU16At(v uint16)           { p.chunk().WriteU16(v, p.prev.Line) }
func (p *Parser) emitOpU16(op value.Opcode, v uint16) {
	p.emitOp(op)
	p.emitU16At(v)
}
func (p *Parser) emitOpU8(op value.Opcode, v byte) {
	p.emitOp(op)
	p.emit(v)
}

func (p *Parser) emitConstant(v value.Value) {
	p.emitOpU16(value.OpConstant, p.chunk().AddConstant(v))
}

func (p *Parser) identConstant(name string) uint16 {
	return p.chunk().AddConstant(value.Obj(p.heap.InternString(name)))
}

// emitJump emits a two-operand-byte placeholder jump and returns its offset
// for later patchJump.
func (p *Parser) emitJump(op value.Opcode) int {
	p.emitOp(op)
	off := len(p.chunk().Code)
	p.emit(0xff)
	p.emit(0xff)
	return off
}

func (p *Parser) patchJump(offset int) {
	jump := len(p.chunk().Code) - offset - 2
	if jump > 0xffff {
		p.error("jump target too far to encode")
	}
	p.chunk().PatchU16(offset, uint16(jump))
}

func (p *Parser) emitLoop(loopStart int) {
	p.emitOp(value.OpLoop)
	offset := len(p.chunk().Code) - loopStart + 2
	if offset > 0xffff {
		p.error("loop body too large to encode")
	}
	p.emitU16At(uint16(offset))
}

func (p *Parser) emitReturn() {
	if p.fs.kind == value.FuncInitializer {
		p.emitOpU16(value.OpGetLocal, 0) // implicit return of `this`
	} else {
		p.emitOp(value.OpNil)
	}
	p.emitOp(value.OpReturn)
}

func (p *Parser) endFunction() *value.ObjFunction {
	if len(p.chunk().Code) == 0 || value.Opcode(p.chunk().Code[len(p.chunk().Code)-1]) != value.OpReturn {
		p.emitOp(value.OpImplicitReturn)
	}
	fn := p.fs.fn
	fn.UpvalueCount = len(p.fs.upvalues)
	for _, uv := range p.fs.upvalues {
		fn.UpvalueDescs = append(fn.UpvalueDescs, value.UpvalueDesc{IsLocal: uv.isLocal, Index: uv.index})
	}
	p.fs = p.fs.enclosing
	return fn
}

// --- scopes & locals ---------------------------------------------------------

func (p *Parser) beginScope() { p.fs.scopeDepth++ }

func (p *Parser) endScope() {
	p.fs.scopeDepth--
	for len(p.fs.locals) > 0 && p.fs.locals[len(p.fs.locals)-1].depth > p.fs.scopeDepth {
		if p.fs.locals[len(p.fs.locals)-1].isCaptured {
			p.emitOp(value.OpCloseUpvalue)
		} else {
			p.emitOp(value.OpPop)
		}
		p.fs.locals = p.fs.locals[:len(p.fs.locals)-1]
	}
}

func (p *Parser) addLocal(name string, isConst bool) {
	if len(p.fs.locals) >= maxLocals {
		p.error("too many local variables in function")
		return
	}
	p.fs.locals = append(p.fs.locals, local{name: name, depth: -1, isConst: isConst})
}

func (p *Parser) declareLocal(name string, isConst bool) {
	if p.fs.scopeDepth == 0 {
		return
	}
	for i := len(p.fs.locals) - 1; i >= 0; i-- {
		l := p.fs.locals[i]
		if l.depth != -1 && l.depth < p.fs.scopeDepth {
			break
		}
		if l.name == name {
			p.error("variable already declared in this scope")
		}
	}
	p.addLocal(name, isConst)
}

func (p *Parser) markInitialized() {
	if p.fs.scopeDepth == 0 {
		return
	}
	p.fs.locals[len(p.fs.locals)-1].depth = p.fs.scopeDepth
}

func resolveLocal(fs *funcState, name string) (int, bool) {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			if fs.locals[i].depth == -1 {
				return -1, false // own initializer referencing itself
			}
			return i, true
		}
	}
	return -1, false
}

// resolveUpvalue walks the enclosing function chain looking for name as a
// local; when found, it threads an upvalue capture through every
// intervening function, deduplicating repeated captures of the same slot
// ("Upvalue capture").
func resolveUpvalue(fs *funcState, name string) (int, bool) {
	if fs.enclosing == nil {
		return -1, false
	}
	if idx, ok := resolveLocal(fs.enclosing, name); ok {
		fs.enclosing.locals[idx].isCaptured = true
		return addUpvalue(fs, uint16(idx), true), true
	}
	if idx, ok := resolveUpvalue(fs.enclosing, name); ok {
		return addUpvalue(fs, uint16(idx), false), true
	}
	return -1, false
}

func addUpvalue(fs *funcState, index uint16, isLocal bool) int {
	for i, uv := range fs.upvalues {
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if len(fs.upvalues) >= maxUpvalues {
		return 0
	}
	fs.upvalues = append(fs.upvalues, upvalueRef{index: index, isLocal: isLocal})
	return len(fs.upvalues) - 1
}
