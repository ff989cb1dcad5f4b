package compiler

import (
	"github.com/mna/nenuphar/internal/value"
	"github.com/mna/nenuphar/lang/token"
)

// precedence levels for the fixed grammar. User-defined infix operators
// sit between precEquality and precUnary: their binding power is
// looked up dynamically in the heap's InfixTable rather than baked into
// this table, which is what makes `let infix (5) myOp = ...` able to slot a
// new operator in anywhere in the precedence range at definition time.
type precedence int

const (
	precNone precedence = iota
	precAssignment // =
	precOr         // ||
	precAnd        // &&
	precEquality   // ==, !=
	precInfixMin   // floor for any positive (left-assoc) user infix precedence
	precInfixMax = 1000 // ceiling; user precedences are expected well under this
	precUnary           // !, -
	precCall            // ., (), []
	precPrimary
)

type parseFn func(p *Parser, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence precedence
}

// expression parses a full expression at the lowest precedence.
func (p *Parser) expression() { p.parsePrecedence(precAssignment) }

func (p *Parser) parsePrecedence(prec precedence) {
	p.advance()
	rule := getRule(p.prev.Kind)
	if rule.prefix == nil {
		p.error("expected an expression")
		return
	}
	canAssign := prec <= precAssignment
	rule.prefix(p, canAssign)

	for {
		if p.check(token.IDENT) {
			if opPrec, ok := p.infixOperatorPrecedence(); ok {
				binding := precedence(abs(opPrec))
				if binding < prec {
					break
				}
				p.userInfix(opPrec, canAssign)
				continue
			}
		}
		nextRule := getRule(p.cur.Kind)
		if nextRule.precedence < prec || nextRule.infix == nil {
			break
		}
		p.advance()
		nextRule.infix(p, canAssign)
	}

	if canAssign && p.match(token.EQ) {
		p.error("invalid assignment target")
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// infixOperatorPrecedence reports the signed precedence registered for the
// current IDENT token's lexeme, scaled into the fixed grammar's band
// (precInfixMin..precInfixMax) so it interleaves correctly with ||, &&, and
// unary/call precedence (the "runtime-assigned signed precedence").
func (p *Parser) infixOperatorPrecedence() (int, bool) {
	name := p.lexeme(p.cur)
	raw := p.heap.Infixes.Precedence(name)
	if raw == 0 {
		return 0, false
	}
	sign := 1
	if raw < 0 {
		sign = -1
		raw = -raw
	}
	scaled := int(precInfixMin) + raw
	if scaled > precInfixMax {
		scaled = precInfixMax
	}
	return sign * scaled, true
}

// userInfix compiles `lhs OP rhs` for a registered infix operator name,
// emitting CALL_INFIX which looks the operator's closure up by name in the
// globals table at runtime ("CALL_INFIX").
func (p *Parser) userInfix(signedPrec int, canAssign bool) {
	name := p.lexeme(p.cur)
	nameConstant := p.identConstant(name)
	p.advance() // consume the operator identifier

	nextPrec := precedence(abs(signedPrec))
	if signedPrec > 0 {
		nextPrec++ // left-associative: parse the right side one level tighter
	}
	p.parsePrecedence(nextPrec)

	p.emitOp(value.OpCallInfix)
	p.emitU16At(nameConstant)
}

func getRule(k token.Token) parseRule {
	if r, ok := rules[k]; ok {
		return r
	}
	return parseRule{}
}

// --- primary & prefix parselets ---------------------------------------------

func parseNumberLiteral(p *Parser, canAssign bool) {
	p.emitConstant(value.Number(parseNumber(p.lexeme(p.prev))))
}

func parseStringLiteral(p *Parser, canAssign bool) {
	p.emitConstant(value.Obj(p.heap.InternString(decodeString(p, p.prev))))
}

func parseLiteralKeyword(p *Parser, canAssign bool) {
	switch p.prev.Kind {
	case token.TRUE:
		p.emitOp(value.OpTrue)
	case token.FALSE:
		p.emitOp(value.OpFalse)
	case token.NIL:
		p.emitOp(value.OpNil)
	case token.UNDEFINED:
		p.emitOp(value.OpUndefined)
	}
}

func parseGrouping(p *Parser, canAssign bool) {
	p.expression()
	p.consume(token.RPAREN, "expected ')' after expression")
}

func parseUnary(p *Parser, canAssign bool) {
	opTok := p.prev
	p.parsePrecedence(precUnary)
	switch opTok.Kind {
	case token.BANG:
		p.emitOp(value.OpNot)
	default:
		p.emitOp(value.OpNegate)
	}
}

func parseAnd(p *Parser, canAssign bool) {
	endJump := p.emitJump(value.OpJumpIfFalse)
	p.emitOp(value.OpPop)
	p.parsePrecedence(precAnd)
	p.patchJump(endJump)
}

func parseOr(p *Parser, canAssign bool) {
	elseJump := p.emitJump(value.OpJumpIfFalse)
	endJump := p.emitJump(value.OpJump)
	p.patchJump(elseJump)
	p.emitOp(value.OpPop)
	p.parsePrecedence(precOr)
	p.patchJump(endJump)
}

func parseEquality(p *Parser, canAssign bool) {
	opTok := p.prev
	p.parsePrecedence(precEquality + 1)
	p.emitOp(value.OpEqual)
	if opTok.Kind == token.BANGEQ {
		p.emitOp(value.OpNot)
	}
}

// parseMember compiles `elem in collection` to MEMBER (
// "Membership").
func parseMember(p *Parser, canAssign bool) {
	p.parsePrecedence(precEquality + 1)
	p.emitOp(value.OpMember)
}

func parseVariableRef(p *Parser, canAssign bool) {
	if p.tryNakedCurry() {
		return
	}
	p.namedVariable(p.prev, canAssign)
}

func parseThis(p *Parser, canAssign bool) {
	if p.classState() == nil {
		p.error("'this' used outside of a method")
	}
	p.namedVariable(fakeToken{name: "this"}, false)
}

func parseSuper(p *Parser, canAssign bool) {
	cs := p.classState()
	if cs == nil {
		p.error("'super' used outside of a method")
	} else if !cs.hasSuperclass {
		p.error("class has no superclass")
	}
	p.consume(token.DOT, "expected '.' after 'super'")
	p.consume(token.IDENT, "expected superclass method name")
	nameConstant := p.identConstant(p.lexeme(p.prev))

	p.namedVariable(fakeToken{name: "this"}, false)
	if p.check(token.LPAREN) {
		p.advance()
		argc := p.argumentList()
		p.namedVariable(fakeToken{name: "super"}, false)
		p.emitOp(value.OpSuperInvoke)
		p.emitU16At(nameConstant)
		p.emit(argc)
		return
	}
	p.namedVariable(fakeToken{name: "super"}, false)
	p.emitOpU16(value.OpGetSuper, nameConstant)
}

// fakeToken implements the minimal Lexeme accessor namedVariable needs, for
// compiler-internal name lookups (`this`, `super`, desugared spread
// targets) that have no literal source spelling at the point they're
// resolved.
type fakeToken struct{ name string }

func (f fakeToken) Lexeme([]byte) string { return f.name }

func parseCall(p *Parser, canAssign bool) {
	argc := p.argumentList()
	p.emitOpU8(value.OpCall, argc)
}

// parseDot handles property access (DOT). The scanner produces COMPOSE
// instead when the dot has whitespace on both sides ("a . b"), and that is
// compiled by parseCompose; "a.b", "a. b" and "a .b" all reach parseDot.
func parseDot(p *Parser, canAssign bool) {
	p.consume(token.IDENT, "expected a property name after '.'")
	nameConstant := p.identConstant(p.lexeme(p.prev))

	switch {
	case canAssign && p.match(token.EQ):
		p.expression()
		p.emitOpU16(value.OpSetProperty, nameConstant)
	case p.check(token.LPAREN):
		p.advance()
		argc := p.argumentList()
		p.emitOp(value.OpInvoke)
		p.emitU16At(nameConstant)
		p.emit(argc)
	default:
		p.emitOpU16(value.OpGetProperty, nameConstant)
	}
}

// parseCompose implements `f . g`, producing a new callable that applies g
// then f ("Composition"). Lowered to a call of the `compose`
// bootstrap native. By the time this infix parselet runs, lhs (f) is
// already the lone value on top of the VM stack (the prefix parselet left
// it there); rhs is parsed next, and CALL_POSTFIX's "callee on top, N
// arguments already below it" convention (the same one sequence/map
// literals use) lets this avoid needing a stack-reordering opcode.
func parseCompose(p *Parser, canAssign bool) {
	p.parsePrecedence(precCall)
	p.namedVariable(fakeToken{name: "compose"}, false)
	p.emitOpU8(value.OpCallPostfix, 2)
}

func parseSubscript(p *Parser, canAssign bool) {
	p.expression()
	p.consume(token.RBRACK, "expected ']' after subscript")
	if canAssign && p.match(token.EQ) {
		p.expression()
		p.emitOp(value.OpSubscriptSet)
		return
	}
	p.emitOp(value.OpSubscriptGet)
}

// parseSequenceLiteral compiles `[e1, e2, ...]` by pushing each element and
// collecting them with SPREAD-aware semantics, matching the runtime
// ObjSequence representation. A top-level '|' before the closing ']'
// instead marks a sequence comprehension ("Comprehensions"), delegated to
// parseComprehension.
func parseSequenceLiteral(p *Parser, canAssign bool) {
	if p.looksLikeComprehension() {
		p.parseComprehension(false, token.RBRACK)
		return
	}
	count := 0
	if !p.check(token.RBRACK) {
		for {
			if p.trySpreadArgument() {
				p.emitOp(value.OpSpread)
			} else {
				p.expression()
			}
			count++
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RBRACK, "expected ']' after sequence literal")
	p.namedVariable(fakeToken{name: "Sequence"}, false)
	p.emitOpU8(value.OpCallPostfix, byte(count))
}

// parseMapLiteral compiles `{k: v, ...}` (map) or `{e1, e2, ...}` (set,
// sugar for a Map whose values are all `true`), disambiguated by whether a
// COLON follows the first element ("Map and set literals"). A
// top-level '|' before the closing '}' instead marks a set comprehension
// ("Comprehensions"), delegated to parseComprehension.
func parseMapLiteral(p *Parser, canAssign bool) {
	if p.looksLikeComprehension() {
		p.parseComprehension(true, token.RBRACE)
		return
	}
	count := 0
	if !p.check(token.RBRACE) {
		for {
			p.expression()
			if p.match(token.COLON) {
				p.expression()
			} else {
				p.emitOp(value.OpTrue)
			}
			count++
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RBRACE, "expected '}' after map literal")
	p.namedVariable(fakeToken{name: "Map"}, false)
	p.emitOpU8(value.OpCallPostfix, byte(count*2))
}

// --- variable resolution ----------------------------------------------------

// namedVariable emits the GET sequence for name, or a SET sequence if
// canAssign and an '=' or '<-' follows (the latter running the value
// through DESTRUCTURE first: "x <- e"), choosing local/upvalue/global
// addressing by where the name resolves.
func (p *Parser) namedVariable(nameTok interface{ Lexeme([]byte) string }, canAssign bool) {
	name := nameTok.Lexeme(p.src)
	var getOp, setOp value.Opcode
	var arg int

	if idx, ok := resolveLocal(p.fs, name); ok {
		getOp, setOp, arg = value.OpGetLocal, value.OpSetLocal, idx
	} else if idx, ok := resolveUpvalue(p.fs, name); ok {
		getOp, setOp, arg = value.OpGetUpvalue, value.OpSetUpvalue, idx
	} else {
		getOp, setOp, arg = value.OpGetGlobal, value.OpSetGlobal, int(p.identConstant(name))
	}

	if canAssign && p.match(token.EQ) {
		if getOp == value.OpGetLocal {
			if p.fs.locals[arg].isConst {
				p.error("cannot assign to a const variable")
			}
		}
		p.expression()
		p.emitOpU16(setOp, uint16(arg))
		return
	}
	if canAssign && p.match(token.LARROW) {
		if getOp == value.OpGetLocal {
			if p.fs.locals[arg].isConst {
				p.error("cannot assign to a const variable")
			}
		}
		p.expression()
		p.emitOp(value.OpDestructure)
		p.emitOpU16(setOp, uint16(arg))
		return
	}
	p.emitOpU16(getOp, uint16(arg))
}

// emitVariableByName is namedVariable without a real source token, used by
// the spread-argument desugaring for an IDENT lexeme of the form "*name".
func (p *Parser) emitVariableByName(name string) {
	p.namedVariable(fakeToken{name: name}, false)
}
