package compiler

import (
	"github.com/mna/nenuphar/internal/value"
	"github.com/mna/nenuphar/lang/scanner"
	"github.com/mna/nenuphar/lang/token"
)

// cursor snapshots both the scanner's byte cursor and the parser's
// one-token lookahead pair, so the parser can rewind to an earlier point in
// the token stream and resume from exactly where it left off. Comprehension
// compilation needs this twice over: once to skip past the head expression
// without emitting it (its bytecode must be emitted after the clause setup,
// not before), and once more to come back and actually compile it once the
// accumulator/iterator locals it references are in scope.
type cursor struct {
	cp        scanner.Checkpoint
	cur, prev scanner.Token
}

func (p *Parser) saveCursor() cursor {
	return cursor{cp: p.sc.Save(), cur: p.cur, prev: p.prev}
}

func (p *Parser) restoreCursor(c cursor) {
	p.sc.Goto(c.cp)
	p.cur, p.prev = c.cur, c.prev
}

// looksLikeComprehension performs bounded, restoring lookahead from just
// past the opening '[' or '{' (already consumed by the caller) to check for
// a top-level '|' before the matching closing bracket ("Comprehensions":
// "Detection uses the scanner checkpoint: advance to a top-level `|` before
// the closing bracket/brace"). Brackets/braces/parens nested inside the
// head expression are skipped over without inspection so a '|' inside a
// nested literal or call is never mistaken for the comprehension separator.
func (p *Parser) looksLikeComprehension() bool {
	save := p.saveCursor()
	found := false
	for depth := 1; depth > 0 && !p.check(token.EOF); {
		if depth == 1 && p.check(token.IDENT) && p.lexeme(p.cur) == "|" {
			found = true
			break
		}
		switch p.cur.Kind {
		case token.LPAREN, token.LBRACK, token.LBRACE:
			depth++
		case token.RPAREN, token.RBRACK, token.RBRACE:
			depth--
		}
		p.advance()
	}
	p.restoreCursor(save)
	return found
}

// skipToTopLevelPipe advances past the comprehension's head expression
// without emitting any bytecode for it, stopping just after the top-level
// '|' separator (whose presence looksLikeComprehension has already
// confirmed). The expression's own tokens are revisited and actually
// compiled later, once the clause chain has established the scope the
// expression is evaluated in (see comprehensionBody).
func (p *Parser) skipToTopLevelPipe() {
	for depth := 1; depth > 0 && !p.check(token.EOF); {
		if depth == 1 && p.check(token.IDENT) && p.lexeme(p.cur) == "|" {
			p.advance()
			return
		}
		switch p.cur.Kind {
		case token.LPAREN, token.LBRACK, token.LBRACE:
			depth++
		case token.RPAREN, token.RBRACK, token.RBRACE:
			depth--
		}
		p.advance()
	}
}

// parseComprehension compiles `[expr | clauses]` (isSet false) or
// `{expr | clauses}` (isSet true), called once looksLikeComprehension has
// confirmed the opening bracket introduces a comprehension rather than a
// plain literal. The opening bracket has already been consumed; closer is
// the token that ends it.
//
// Per "Comprehensions": compile an anonymous closure whose frame holds a
// fresh Sequence (or Set-as-Map) accumulator, a nested chain of iterator
// loops and predicate guards desugared from the clause list, and an
// innermost body that computes expr and appends it to the accumulator; the
// call site emits CALL 0 so the comprehension's value ends up on the stack.
func (p *Parser) parseComprehension(isSet bool, closer token.Token) {
	exprStart := p.saveCursor()
	p.skipToTopLevelPipe()

	p.comprehensionBody(isSet, exprStart)

	p.consume(closer, "expected closing bracket after comprehension")
	p.emitOpU8(value.OpCall, 0)
}

// comprehensionBody compiles the comprehension's closure: a 0-arg function
// whose body constructs the accumulator, compiles the clause chain, and
// returns the accumulator. exprStart is positioned at the very first token
// of the head expression (before any clause has been parsed).
func (p *Parser) comprehensionBody(isSet bool, exprStart cursor) {
	enclosing := p.fs
	p.fs = &funcState{enclosing: enclosing, fn: p.heap.NewFunction(""), kind: value.FuncPlain}
	p.fs.locals = append(p.fs.locals, local{name: "", depth: 0})
	p.beginScope()

	ctorName := "Sequence"
	if isSet {
		ctorName = "Map"
	}
	p.namedVariable(fakeToken{name: ctorName}, false)
	p.emitOpU8(value.OpCall, 0)
	p.addLocal(" acc", true)
	p.markInitialized()
	accSlot := len(p.fs.locals) - 1

	p.compileClauses(accSlot, isSet, exprStart)

	p.emitOpU16(value.OpGetLocal, uint16(accSlot))
	p.emitOp(value.OpReturn)

	fn := p.endFunction()
	p.emitClosure(fn)
}

// compileClauses recursively compiles the comma-separated clause list: each
// clause is either an iterator binding (`name in iterable`) or a predicate
// guard (any other expression). Reaching the closing bracket with no more
// clauses is the recursion's base case, at which point the head expression
// is compiled and appended to the accumulator.
func (p *Parser) compileClauses(accSlot int, isSet bool, exprStart cursor) {
	if p.check(token.RBRACK) || p.check(token.RBRACE) {
		p.compileComprehensionAppend(accSlot, isSet, exprStart)
		return
	}

	if p.check(token.IDENT) {
		save := p.saveCursor()
		nameTok := p.cur
		p.advance()
		if p.check(token.IN) {
			p.advance()
			p.compileIterClause(nameTok, accSlot, isSet, exprStart)
			return
		}
		p.restoreCursor(save)
	}

	p.compilePredClause(accSlot, isSet, exprStart)
}

// compileIterClause compiles one `name in iterable` clause as a loop over
// iterable's iter()/done()/next() protocol (the same desugar forInStatement
// uses for `for (name in iterable)`), nesting the remaining clauses (or the
// body, if this was the last clause) inside the loop.
func (p *Parser) compileIterClause(nameTok scanner.Token, accSlot int, isSet bool, exprStart cursor) {
	p.expression() // the iterable, evaluated once per enclosing iteration
	p.invokeMethod("iter", 0)
	p.beginScope()
	p.addLocal(" citer", true)
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
	p.addLocal(p.lexeme(nameTok), false)
	p.markInitialized()

	if p.match(token.COMMA) {
		p.compileClauses(accSlot, isSet, exprStart)
	} else {
		p.compileComprehensionAppend(accSlot, isSet, exprStart)
	}

	// pop the per-iteration `name` binding before looping back
	p.emitOp(value.OpPop)
	p.fs.locals = p.fs.locals[:len(p.fs.locals)-1]

	p.emitLoop(loopStart)
	p.patchJump(exitJump)
	p.emitOp(value.OpPop) // done() result
	p.endScope()
}

// compilePredClause compiles a predicate guard: the remaining clauses (or
// the body) run only when the predicate is truthy, matching the shape of
// ifStatement's single-branch form.
func (p *Parser) compilePredClause(accSlot int, isSet bool, exprStart cursor) {
	p.expression()
	skipJump := p.emitJump(value.OpJumpIfFalse)
	p.emitOp(value.OpPop)

	if p.match(token.COMMA) {
		p.compileClauses(accSlot, isSet, exprStart)
	} else {
		p.compileComprehensionAppend(accSlot, isSet, exprStart)
	}

	doneJump := p.emitJump(value.OpJump)
	p.patchJump(skipJump)
	p.emitOp(value.OpPop)
	p.patchJump(doneJump)
}

// compileComprehensionAppend is the recursion's base case: it jumps the
// token stream back to the head expression, compiles it (in whatever
// iterator/predicate scope is currently active), appends the result to the
// accumulator (`add` for a Sequence, `set(elem, true)` for a Set-as-Map),
// and then jumps the token stream forward again to resume exactly where
// clause parsing left off (at the closing bracket).
func (p *Parser) compileComprehensionAppend(accSlot int, isSet bool, exprStart cursor) {
	resume := p.saveCursor()
	p.restoreCursor(exprStart)

	p.emitOpU16(value.OpGetLocal, uint16(accSlot))
	p.expression()
	if isSet {
		p.emitOp(value.OpTrue)
		p.invokeMethod("set", 2)
	} else {
		p.invokeMethod("add", 1)
	}
	p.emitOp(value.OpPop)

	p.restoreCursor(resume)
}
