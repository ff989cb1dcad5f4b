package compiler

import (
	"github.com/mna/nenuphar/internal/value"
	"github.com/mna/nenuphar/lang/token"
)

// declaration parses one top-level or block-level declaration/statement and
// resynchronizes on error.
func (p *Parser) declaration() {
	switch {
	case p.match(token.LET):
		p.letDeclaration(false)
	case p.match(token.CONST):
		p.letDeclaration(true)
	case p.match(token.CLASS):
		p.classDeclaration()
	case p.match(token.DOM):
		p.domDeclaration()
	default:
		p.statement()
	}
	if p.panicMode {
		p.synchronize()
	}
}

// letDeclaration handles `let name = expr`, `const name = expr`, the
// destructuring form `let name <- expr` (the value passes through
// DESTRUCTURE before the store), and the infix-operator form
// `let infix[l|r] (prec) name = expr` (user infix operators are registered
// in the process-wide infix table at the point their declaration is
// compiled, so every subsequent expression in the compilation unit can use
// name as an infix operator).
func (p *Parser) letDeclaration(isConst bool) {
	if !isConst && (p.check(token.INFIX) || p.check(token.INFIXL) || p.check(token.INFIXR)) {
		p.infixDeclaration()
		return
	}

	global, typeVar := p.parseVariable("expected variable name", isConst)
	if p.match(token.EQ) {
		p.expression()
	} else if p.match(token.LARROW) {
		p.expression()
		p.emitOp(value.OpDestructure)
	} else {
		p.emitOp(value.OpNil)
	}
	p.consumeSemi()
	p.defineVariable(global, typeVar)
}

// infixDeclaration parses `infix|infixl|infixr (precedence) name = body`.
// infixr yields a negative stored precedence, distinguishing
// right-associativity at parse time (GLOSSARY "Infix table").
func (p *Parser) infixDeclaration() {
	rightAssoc := p.check(token.INFIXR)
	p.advance() // consume INFIX/INFIXL/INFIXR

	p.consume(token.LPAREN, "expected '(' before infix precedence")
	p.consume(token.NUMBER, "expected a numeric precedence")
	precTok := p.prev
	prec := parseNumber(p.lexeme(precTok))
	p.consume(token.RPAREN, "expected ')' after infix precedence")

	p.consume(token.IDENT, "expected an operator name")
	name := p.lexeme(p.prev)

	signed := int(prec)
	if rightAssoc {
		signed = -signed
	}
	p.heap.Infixes.Define(name, signed)

	global := p.declareVariableNamed(name, false)
	p.consume(token.EQ, "expected '=' in infix operator definition")
	p.expression()
	p.consumeSemi()
	p.defineVariable(global, false)
}

func parseNumber(lit string) float64 {
	var n float64
	var frac float64 = 1
	inFrac := false
	for _, c := range lit {
		switch {
		case c == '.':
			inFrac = true
		case c >= '0' && c <= '9':
			if inFrac {
				frac /= 10
				n += float64(c-'0') * frac
			} else {
				n = n*10 + float64(c-'0')
			}
		}
	}
	return n
}

// parseVariable consumes an identifier and declares it as local (if inside a
// scope) or returns its global-name constant index, plus whether the name is
// lexically a type variable ("Dom declarations": identifiers
// starting u..z, as the scanner already classifies via Token.TypeVar).
func (p *Parser) parseVariable(msg string, isConst bool) (uint16, bool) {
	p.consume(token.IDENT, msg)
	nameTok := p.prev
	return p.declareVariableNamed(p.lexeme(nameTok), isConst), nameTok.TypeVar
}

func (p *Parser) declareVariableNamed(name string, isConst bool) uint16 {
	if p.fs.scopeDepth > 0 {
		p.declareLocal(name, isConst)
		return 0
	}
	return p.identConstant(name)
}

func (p *Parser) defineVariable(global uint16, typeVar bool) {
	if p.fs.scopeDepth > 0 {
		p.markInitialized()
		return
	}
	if typeVar {
		p.emitOpU16(value.OpSetTypeGlobal, global)
		return
	}
	p.emitOpU16(value.OpDefineGlobal, global)
}

// classDeclaration parses `class Name [extends Super] { methods... }`
// ("Classes"). Each method compiles as a function literal whose
// implicit receiver is local slot 0; `init` methods get FuncInitializer
// kind so the compiler emits an implicit `return this`.
func (p *Parser) classDeclaration() {
	p.consume(token.IDENT, "expected class name")
	nameTok := p.prev
	name := p.lexeme(nameTok)
	nameConstant := p.identConstant(name)
	p.declareVariableNamed(name, false)

	p.emitOpU16(value.OpClass, nameConstant)
	p.defineVariable(nameConstant, false)

	cs := &classState{enclosing: p.classState()}
	p.fs.classStates = append(p.fs.classStates, cs)
	defer func() { p.fs.classStates = p.fs.classStates[:len(p.fs.classStates)-1] }()

	if p.match(token.EXTENDS) {
		p.consume(token.IDENT, "expected superclass name")
		p.namedVariable(p.prev, false)
		if p.lexeme(p.prev) == name {
			p.error("a class cannot extend itself")
		}

		p.beginScope()
		p.addLocal("super", true)
		p.markInitialized()

		p.namedVariable(nameTok, false)
		p.emitOp(value.OpInherit)
		cs.hasSuperclass = true
	} else if name != "Object" {
		// "Without extends, the implicit superclass is the globally bound
		// Object" — every class but the bootstrap root itself inherits it.
		p.namedVariable(fakeToken{name: "Object"}, false)

		p.beginScope()
		p.addLocal("super", true)
		p.markInitialized()

		p.namedVariable(nameTok, false)
		p.emitOp(value.OpInherit)
		cs.hasSuperclass = true
	}

	p.namedVariable(nameTok, false)
	p.consume(token.LBRACE, "expected '{' before class body")
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		p.method()
	}
	p.consume(token.RBRACE, "expected '}' after class body")
	p.emitOp(value.OpPop) // pop the class value pushed for METHOD targeting

	if cs.hasSuperclass {
		p.endScope()
	}
}

func (p *Parser) classState() *classState {
	for fs := p.fs; fs != nil; fs = fs.enclosing {
		if n := len(fs.classStates); n > 0 {
			return fs.classStates[n-1]
		}
	}
	return nil
}

func (p *Parser) method() {
	p.consume(token.IDENT, "expected method name")
	nameTok := p.prev
	name := p.lexeme(nameTok)
	nameConstant := p.identConstant(name)

	kind := value.FuncMethod
	if name == "init" {
		kind = value.FuncInitializer
	}
	p.function(kind, name)
	p.emitOpU16(value.OpMethod, nameConstant)
	// a method's body, expression- or block-form, may be followed by an
	// optional ';' before the next method or the closing '}'.
	p.match(token.SEMI)
}

// domDeclaration parses `dom Name { decls }` ("Dom declarations",
// SPEC_FULL supplement grounded in original_source/'s dispatch-by-receiver-
// type mechanism). It declares Name bound to a bootstrap Domain value
// (so it's introspectable and nameable like a class), then compiles the
// block's own declarations directly into the enclosing scope: a global
// `let` binding inside whose name is a type variable (u..z) emits
// SET_TYPE_GLOBAL via the normal defineVariable path, which the VM stores as
// a plain global; a local binding is an ordinary local (no SET_TYPE_LOCAL is
// emitted). No dispatch by receiver type takes place. The dom block itself
// is a naming/grouping device, not a scope.
func (p *Parser) domDeclaration() {
	p.consume(token.IDENT, "expected domain name")
	name := p.lexeme(p.prev)
	nameConstant := p.identConstant(name)

	p.namedVariable(fakeToken{name: "Domain"}, false)
	p.emitConstant(value.Obj(p.heap.InternString(name)))
	p.emitOpU8(value.OpCall, 1)
	p.declareVariableNamed(name, false)
	p.defineVariable(nameConstant, false)

	p.consume(token.LBRACE, "expected '{' before domain body")
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		p.declaration()
	}
	p.consume(token.RBRACE, "expected '}' after domain body")
}
