package compiler

import (
	"github.com/mna/nenuphar/internal/value"
	"github.com/mna/nenuphar/lang/scanner"
	"github.com/mna/nenuphar/lang/token"
)

// function compiles a function literal whose opening '(' has not yet been
// consumed (the method-declaration call site): it consumes the '(' itself
// before delegating to functionBody.
func (p *Parser) function(kind value.FuncKind, name string) {
	p.consume(token.LPAREN, "expected '(' after function name")
	p.functionBody(kind, name)
}

// functionBody compiles a function literal's parameter list and body into a
// new nested funcState, leaving a CLOSURE instruction (with its trailing
// upvalue-descriptor run) in the enclosing chunk. The caller must already
// have consumed the opening '(' (parseGroupingOrFunction does this itself
// while disambiguating a group from a function literal).
// name is used only for diagnostics and the function's displayed name.
func (p *Parser) functionBody(kind value.FuncKind, name string) {
	enclosing := p.fs
	p.fs = &funcState{enclosing: enclosing, fn: p.heap.NewFunction(name), kind: kind}
	receiver := ""
	if kind == value.FuncMethod || kind == value.FuncInitializer {
		receiver = "this"
	}
	p.fs.locals = append(p.fs.locals, local{name: receiver, depth: 0})
	p.beginScope()

	if !p.check(token.RPAREN) {
		for {
			p.fs.fn.Arity++
			if p.fs.fn.Arity > 255 {
				p.error("too many parameters")
			}
			if p.checkVariadicMarker() {
				p.fs.fn.Variadic = true
				p.markInitialized()
				break // variadic parameter must be last
			}
			p.parameter()
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RPAREN, "expected ')' after parameters")
	p.consume(token.FATARROW, "expected '=>' before function body")

	if p.match(token.LBRACE) {
		p.block()
		if kind == value.FuncInitializer {
			p.emitReturn()
		}
	} else {
		// expression-bodied function: `(x) => x + 1`
		p.expression()
		if kind == value.FuncInitializer {
			p.emitOp(value.OpPop)
			p.emitReturn()
		} else {
			p.emitOp(value.OpReturn)
		}
	}

	fn := p.endFunction()
	p.emitClosure(fn)
}

// emitClosure emits the CLOSURE instruction for fn plus its trailing
// (isLocal, index) upvalue-descriptor pairs. Shared by functionBody and the
// comprehension desugar (comprehension.go), both of which build a
// *value.ObjFunction via a nested funcState and need the same closing
// CLOSURE sequence.
func (p *Parser) emitClosure(fn *value.ObjFunction) {
	p.emitOp(value.OpClosure)
	p.emitU16At(p.chunk().AddConstant(value.Obj(fn)))
	for _, uv := range fn.UpvalueDescs {
		if uv.IsLocal {
			p.emit(1)
		} else {
			p.emit(0)
		}
		p.emit(byte(uv.Index))
	}
}

// tryNakedCurry recognizes the naked-currying function literal spelling
// ("Functions": `a b c => body` desugaring to nested single-parameter
// closures) from the prefix-parselet position for a plain IDENT (p.prev is
// already the first parameter name). FATARROW never appears anywhere else
// in an expression's grammar except right after a parenthesized parameter
// list (handled separately by looksLikeFunctionLiteral/functionBody), so a
// bare run of IDENT tokens leading directly into '=>' unambiguously marks a
// naked-curry head; anything else and the run is restored so the caller can
// fall back to treating p.prev as an ordinary variable reference.
func (p *Parser) tryNakedCurry() bool {
	save := p.saveCursor()
	names := []string{p.lexeme(p.prev)}
	for p.check(token.IDENT) {
		names = append(names, p.lexeme(p.cur))
		p.advance()
	}
	if !p.check(token.FATARROW) {
		p.restoreCursor(save)
		return false
	}
	p.advance() // consume '=>'
	p.nakedCurryClosure(names)
	return true
}

// nakedCurryClosure compiles one level of a naked-curry chain: a single-
// parameter closure named names[0] whose body is either the real function
// body (names is the last element) or another nested closure for the rest
// of names. Each level's CLOSURE instruction lands in its enclosing level's
// chunk exactly the way an ordinary nested function literal's does
// (functionBody), so `a b c => body` behaves as `(a) => (b) => (c) =>
// body` under repeated single-argument calls.
func (p *Parser) nakedCurryClosure(names []string) {
	enclosing := p.fs
	p.fs = &funcState{enclosing: enclosing, fn: p.heap.NewFunction(""), kind: value.FuncPlain}
	p.fs.fn.Arity = 1
	p.fs.locals = append(p.fs.locals, local{name: "", depth: 0})
	p.beginScope()
	p.declareLocal(names[0], false)
	p.markInitialized()

	if len(names) == 1 {
		if p.match(token.LBRACE) {
			p.block()
		} else {
			p.expression()
			p.emitOp(value.OpReturn)
		}
	} else {
		p.nakedCurryClosure(names[1:])
		p.emitOp(value.OpReturn)
	}

	fn := p.endFunction()
	p.emitClosure(fn)
}

// checkVariadicMarker recognizes a variadic final parameter. The scanner
// treats '*' as an ordinary symbolic-identifier character (lets
// '*' double as both the multiplication infix operator and the variadic
// marker). A symbol-started identifier stops at the first letter, so
// `*rest` lexes as two tokens ("*", "rest") with or without a space; the
// single-IDENT "*rest" branch below is also accepted. Either way the
// declared local is named "rest".
func (p *Parser) checkVariadicMarker() bool {
	if !p.check(token.IDENT) {
		return false
	}
	lex := p.lexeme(p.cur)
	if lex == "*" {
		p.advance()
		p.consume(token.IDENT, "expected parameter name after '*'")
		p.declareLocal(p.lexeme(p.prev), false)
		return true
	}
	if len(lex) > 1 && lex[0] == '*' {
		p.advance()
		p.declareLocal(lex[1:], false)
		return true
	}
	return false
}

// parameter parses one plain or patterned parameter name. Patterned
// parameters ("Patterned functions": e.g. `(0)` or `([h,...t])`
// matched positionally against an overload alternative) are accepted
// syntactically and bind a local under a synthetic name. The pattern itself
// is not checked at call time: the function is only flagged Patterned, and
// overload dispatch selects an alternative by arity alone.
func (p *Parser) parameter() {
	if p.check(token.NUMBER) || p.check(token.STRING) || p.check(token.LBRACK) || p.check(token.LBRACE) {
		p.fs.fn.Patterned = true
		p.skipPatternLiteral()
		p.declareLocal(syntheticParamName(p.fs.fn.Arity), false)
		p.markInitialized()
		return
	}
	p.consume(token.IDENT, "expected a parameter name")
	p.declareLocal(p.lexeme(p.prev), false)
	p.markInitialized()
}

func syntheticParamName(n int) string {
	return "$pattern" + string(rune('0'+n%10))
}

// skipPatternLiteral consumes one literal or destructuring pattern used in
// patterned-parameter position without emitting any bytecode; the pattern
// shape is not recorded anywhere.
func (p *Parser) skipPatternLiteral() {
	switch {
	case p.match(token.NUMBER), p.match(token.STRING):
	case p.match(token.LBRACK):
		for !p.check(token.RBRACK) && !p.check(token.EOF) {
			p.skipPatternLiteral()
			if !p.match(token.COMMA) {
				break
			}
		}
		p.consume(token.RBRACK, "expected ']' to close pattern")
	case p.match(token.LBRACE):
		for !p.check(token.RBRACE) && !p.check(token.EOF) {
			p.skipPatternLiteral()
			if !p.match(token.COMMA) {
				break
			}
		}
		p.consume(token.RBRACE, "expected '}' to close pattern")
	default:
		p.advance()
	}
}

// argumentList parses a parenthesized call argument list (the opening
// paren already consumed) and returns the argument count.
func (p *Parser) argumentList() byte {
	argc := 0
	if !p.check(token.RPAREN) {
		for {
			if p.trySpreadArgument() {
				p.emitOp(value.OpSpread)
			} else {
				p.expression()
			}
			argc++
			if argc > 255 {
				p.error("too many arguments")
			}
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RPAREN, "expected ')' after arguments")
	return byte(argc)
}

// trySpreadArgument recognizes a `*expr` spread argument (
// "Spread"). As with checkVariadicMarker, `*name` lexes as the IDENT "*"
// followed by the name; this leaves the spread target's value on the stack and reports
// true, or reports false (and parses nothing) if the next token isn't a
// spread marker at all.
func (p *Parser) trySpreadArgument() bool {
	if !p.check(token.IDENT) {
		return false
	}
	lex := p.lexeme(p.cur)
	switch {
	case lex == "*":
		p.advance()
		p.expression()
		return true
	case len(lex) > 1 && lex[0] == '*':
		p.advance()
		p.emitVariableByName(lex[1:])
		return true
	default:
		return false
	}
}

// decodeString returns the unescaped contents of a STRING token.
func decodeString(p *Parser, t scanner.Token) string { return scanner.Decode(p.src, t) }
