package compiler

import (
	"github.com/mna/nenuphar/internal/value"
	"github.com/mna/nenuphar/lang/token"
)

// rules is the Pratt parse table mapping each fixed-grammar token to its
// prefix parselet, infix parselet, and infix binding power. Symbolic
// operators (+, -, *, /, >, <, ==ish comparisons, user-defined operators)
// are not here: they lex as IDENT and are dispatched dynamically through
// the heap's InfixTable (see parsePrecedence/infixOperatorPrecedence in
// expressions.go), matching the runtime-assigned infix precedence.
var rules map[token.Token]parseRule

func init() {
	rules = map[token.Token]parseRule{
		token.LPAREN: {prefix: parseGroupingOrFunction, infix: parseCall, precedence: precCall},
		token.LBRACK: {prefix: parseSequenceLiteral, infix: parseSubscript, precedence: precCall},
		token.LBRACE: {prefix: parseMapLiteral},

		token.DOT:     {infix: parseDot, precedence: precCall},
		token.COMPOSE: {infix: parseCompose, precedence: precCall},

		token.BANG: {prefix: parseUnary},

		token.EQEQ:   {infix: parseEquality, precedence: precEquality},
		token.BANGEQ: {infix: parseEquality, precedence: precEquality},
		token.ANDAND: {infix: parseAnd, precedence: precAnd},
		token.OROR:   {infix: parseOr, precedence: precOr},
		token.IN:     {infix: parseMember, precedence: precEquality},

		token.NUMBER: {prefix: parseNumberLiteral},
		token.STRING: {prefix: parseStringLiteral},
		token.IDENT:  {prefix: parseVariableRef},

		token.TRUE:      {prefix: parseLiteralKeyword},
		token.FALSE:     {prefix: parseLiteralKeyword},
		token.NIL:       {prefix: parseLiteralKeyword},
		token.UNDEFINED: {prefix: parseLiteralKeyword},
		token.THIS:      {prefix: parseThis},
		token.SUPER:     {prefix: parseSuper},
	}
}

// parseGroupingOrFunction disambiguates `(expr)` from a function literal's
// parameter list `(a, b) => ...` by speculatively scanning ahead to the
// matching close paren and checking for a following '=>' (the
// same lookahead trick the grammar note calls for since both productions
// start identically). The naked-currying spelling (`a b c => body`, with no
// parens around the parameter names) is handled separately, from the plain
// IDENT prefix parselet (see tryNakedCurry in functions.go) since it has no
// opening delimiter to dispatch on here.
func parseGroupingOrFunction(p *Parser, canAssign bool) {
	if looksLikeFunctionLiteral(p) {
		p.functionBody(value.FuncPlain, "")
		n := 1
		for p.isPipe() {
			p.advance() // consume the '|' separator
			p.consume(token.LPAREN, "expected '(' after '|' in an overloaded function")
			p.functionBody(value.FuncPlain, "")
			n++
		}
		if n > 1 {
			if n > 255 {
				p.error("too many overload alternatives")
			}
			p.emitOp(value.OpOverload)
			p.emit(byte(n))
		}
		return
	}
	parseGrouping(p, canAssign)
}

// isPipe reports whether the current token is the bare "|" identifier,
// the separator between alternatives of a multi-body overloaded function
// ("a => ... | b => ..."). "|" lexes as an ordinary symbolic
// IDENT (see scanner.identSymbols) exactly like any runtime-assignable
// infix operator name, so it is recognized by its lexeme rather than a
// dedicated token kind.
func (p *Parser) isPipe() bool {
	return p.check(token.IDENT) && p.lexeme(p.cur) == "|"
}

// looksLikeFunctionLiteral performs bounded lookahead from the just-consumed
// '(' to decide whether this parenthesized group is a parameter list. It
// saves and restores the full scanner+parser cursor so the real parse
// re-scans the tokens for real, using the scanner's Checkpoint for
// backtracking lookahead instead of building a lookahead token buffer.
func looksLikeFunctionLiteral(p *Parser) bool {
	save := p.sc.Save()
	savedCur, savedPrev := p.cur, p.prev

	depth := 1
	for depth > 0 {
		if p.cur.Kind == token.EOF {
			p.sc.Goto(save)
			p.cur, p.prev = savedCur, savedPrev
			return false
		}
		switch p.cur.Kind {
		case token.LPAREN:
			depth++
		case token.RPAREN:
			depth--
		}
		p.prev = p.cur
		p.cur = p.sc.Next()
	}
	isArrow := p.prev.Kind == token.FATARROW || p.cur.Kind == token.FATARROW

	p.sc.Goto(save)
	p.cur, p.prev = savedCur, savedPrev
	return isArrow
}
