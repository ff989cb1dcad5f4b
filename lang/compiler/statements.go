package compiler

import (
	"github.com/mna/nenuphar/internal/value"
	"github.com/mna/nenuphar/lang/token"
)

// consumeSemi accepts a terminating ';' if present; the grammar treats it as
// optional before '}' and EOF, a forgiving statement terminator.
func (p *Parser) consumeSemi() {
	if p.check(token.RBRACE) || p.check(token.EOF) {
		return
	}
	p.consume(token.SEMI, "expected ';' after statement")
}

func (p *Parser) statement() {
	switch {
	case p.match(token.PRINT):
		p.printStatement()
	case p.match(token.IF):
		p.ifStatement()
	case p.match(token.WHILE):
		p.whileStatement()
	case p.match(token.FOR):
		p.forStatement()
	case p.match(token.RETURN):
		p.returnStatement()
	case p.match(token.THROW):
		p.throwStatement()
	case p.match(token.IMPORT):
		p.importStatement()
	case p.match(token.LBRACE):
		p.beginScope()
		p.block()
		p.endScope()
	default:
		p.expressionStatement()
	}
}

func (p *Parser) block() {
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		p.declaration()
	}
	p.consume(token.RBRACE, "expected '}' after block")
}

func (p *Parser) printStatement() {
	p.expression()
	p.consumeSemi()
	p.emitOp(value.OpPrint)
}

func (p *Parser) expressionStatement() {
	p.expression()
	p.consumeSemi()
	p.emitOp(value.OpExprStatement)
}

func (p *Parser) ifStatement() {
	p.consume(token.LPAREN, "expected '(' after 'if'")
	p.expression()
	p.consume(token.RPAREN, "expected ')' after condition")

	thenJump := p.emitJump(value.OpJumpIfFalse)
	p.emitOp(value.OpPop)
	p.statement()

	elseJump := p.emitJump(value.OpJump)
	p.patchJump(thenJump)
	p.emitOp(value.OpPop)

	if p.match(token.ELSE) {
		p.statement()
	}
	p.patchJump(elseJump)
}

func (p *Parser) whileStatement() {
	loopStart := len(p.chunk().Code)
	p.fs.loopDepths = append(p.fs.loopDepths, loopState{continueTarget: loopStart})

	p.consume(token.LPAREN, "expected '(' after 'while'")
	p.expression()
	p.consume(token.RPAREN, "expected ')' after condition")

	exitJump := p.emitJump(value.OpJumpIfFalse)
	p.emitOp(value.OpPop)
	p.statement()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emitOp(value.OpPop)
	p.endLoop()
}

func (p *Parser) endLoop() {
	ls := p.fs.loopDepths[len(p.fs.loopDepths)-1]
	for _, j := range ls.breakJumps {
		p.patchJump(j)
	}
	p.fs.loopDepths = p.fs.loopDepths[:len(p.fs.loopDepths)-1]
}

// forStatement parses both the C-style `for (init; cond; post) body` and the
// `for (name in iterable) body` form; the two are disambiguated by checking
// for IN after the first clause.
func (p *Parser) forStatement() {
	p.consume(token.LPAREN, "expected '(' after 'for'")
	p.beginScope()

	if p.check(token.IDENT) {
		save := p.sc.Save()
		savedCur, savedPrev := p.cur, p.prev
		nameTok := p.cur
		p.advance()
		if p.check(token.IN) {
			p.advance()
			p.forInStatement(nameTok)
			p.endScope()
			return
		}
		p.sc.Goto(save)
		p.cur, p.prev = savedCur, savedPrev
	}

	switch {
	case p.match(token.SEMI):
		// no initializer
	case p.match(token.LET):
		p.letDeclaration(false)
	default:
		p.expressionStatement()
	}

	loopStart := len(p.chunk().Code)
	exitJump := -1
	if !p.match(token.SEMI) {
		p.expression()
		p.consume(token.SEMI, "expected ';' after loop condition")
		exitJump = p.emitJump(value.OpJumpIfFalse)
		p.emitOp(value.OpPop)
	}

	if !p.check(token.RPAREN) {
		bodyJump := p.emitJump(value.OpJump)
		incrementStart := len(p.chunk().Code)
		p.expression()
		p.emitOp(value.OpExprStatement)
		p.consume(token.RPAREN, "expected ')' after for clauses")

		p.emitLoop(loopStart)
		loopStart = incrementStart
		p.patchJump(bodyJump)
	} else {
		p.advance() // consume ')'
	}

	p.fs.loopDepths = append(p.fs.loopDepths, loopState{continueTarget: loopStart})
	p.statement()
	p.emitLoop(loopStart)

	if exitJump != -1 {
		p.patchJump(exitJump)
		p.emitOp(value.OpPop)
	}
	p.endLoop()
	p.endScope()
}

// forInStatement compiles `for (name in iterable) body` by desugaring to an
// internal iterator protocol: the iterable expression is evaluated once,
// its well-known `iter` method produces an Iterator instance, and each
// iteration calls that Iterator's `next`/`done` methods (Iterator
// bootstrap type).
func (p *Parser) forInStatement(nameTok interface {
	Lexeme([]byte) string
}) {
	name := nameTok.Lexeme(p.src)

	p.expression() // the iterable
	p.consume(token.RPAREN, "expected ')' after for-in clause")

	p.invokeMethod("iter", 0)
	p.addLocal(" iter", true)
	p.markInitialized()
	iterSlot := len(p.fs.locals) - 1

	loopStart := len(p.chunk().Code)
	p.emitOpU16(value.OpGetLocal, uint16(iterSlot))
	p.invokeMethod("done", 0)
	p.emitOp(value.OpNot)
	exitJump := p.emitJump(value.OpJumpIfFalse)
	p.emitOp(value.OpPop)

	p.emitOpU16(value.OpGetLocal, uint16(iterSlot))
	p.invokeMethod("next", 0)
	p.addLocal(name, false)
	p.markInitialized()

	p.fs.loopDepths = append(p.fs.loopDepths, loopState{continueTarget: loopStart})
	p.statement()

	// pop the per-iteration `name` binding before looping back
	p.emitOp(value.OpPop)
	p.fs.locals = p.fs.locals[:len(p.fs.locals)-1]

	p.emitLoop(loopStart)
	p.patchJump(exitJump)
	p.emitOp(value.OpPop) // done() result
	p.endLoop()
}

// invokeMethod emits the GET_PROPERTY+CALL pattern collapsed into the
// single INVOKE instruction, avoiding an intermediate bound-method
// allocation for the common case of calling a method by name.
func (p *Parser) invokeMethod(name string, argc byte) {
	nameConstant := p.identConstant(name)
	p.emitOp(value.OpInvoke)
	p.emitU16At(nameConstant)
	p.emit(argc)
}

func (p *Parser) returnStatement() {
	if p.fs.enclosing == nil {
		p.error("cannot return from top-level code")
	}
	if p.match(token.SEMI) {
		p.emitReturn()
		return
	}
	if p.fs.kind == value.FuncInitializer {
		p.error("cannot return a value from an initializer")
	}
	p.expression()
	p.consumeSemi()
	p.emitOp(value.OpReturn)
}

func (p *Parser) throwStatement() {
	p.expression()
	p.consumeSemi()
	p.emitOp(value.OpThrow)
}

// importStatement parses `import "path" [as name]`. The module path is
// carried as a string constant for the VM's IMPORT handler; the alias (the
// path itself when no `as` is given) is declared as an ordinary variable
// holding IMPORT's result.
func (p *Parser) importStatement() {
	p.consume(token.STRING, "expected a module path string")
	pathTok := p.prev
	path := decodeString(p, pathTok)

	alias := path
	if p.match(token.AS) {
		p.consume(token.IDENT, "expected an alias name after 'as'")
		alias = p.lexeme(p.prev)
	}

	p.emitConstant(value.Obj(p.heap.InternString(path)))
	p.emitOp(value.OpImport)

	global := p.declareVariableNamed(alias, false)
	p.defineVariable(global, false)
	p.consumeSemi()
}
