package scanner_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/nenuphar/lang/scanner"
	"github.com/mna/nenuphar/lang/token"
)

func kinds(src string) []token.Token {
	sc := scanner.New([]byte(src))
	var out []token.Token
	for {
		tok := sc.Next()
		out = append(out, tok.Kind)
		if tok.Kind == token.EOF {
			break
		}
	}
	return out
}

// "a.b" has no whitespace on either side of the dot: property access.
func TestDotNoWhitespaceIsPropertyAccess(t *testing.T) {
	require.Equal(t, []token.Token{token.IDENT, token.DOT, token.IDENT, token.EOF}, kinds("a.b"))
}

// "a . b" has whitespace on both sides: function composition.
func TestDotWhitespaceBothSidesIsCompose(t *testing.T) {
	require.Equal(t, []token.Token{token.IDENT, token.COMPOSE, token.IDENT, token.EOF}, kinds("a . b"))
}

// "a. b" has only trailing whitespace: still property access, since
// whitespace must surround the dot on both sides to mean composition.
func TestDotTrailingWhitespaceOnlyIsPropertyAccess(t *testing.T) {
	require.Equal(t, []token.Token{token.IDENT, token.DOT, token.IDENT, token.EOF}, kinds("a. b"))
}

// "a .b" has only leading whitespace: also property access.
func TestDotLeadingWhitespaceOnlyIsPropertyAccess(t *testing.T) {
	require.Equal(t, []token.Token{token.IDENT, token.DOT, token.IDENT, token.EOF}, kinds("a .b"))
}

func lexemes(t *testing.T, src string) []string {
	t.Helper()
	sc := scanner.New([]byte(src))
	var out []string
	for {
		tok := sc.Next()
		if tok.Kind == token.EOF {
			break
		}
		out = append(out, tok.Lexeme([]byte(src)))
	}
	return out
}

func TestNumber_IntegerFloatAndExponent(t *testing.T) {
	require.Equal(t, []string{"123", "1.5", "1e10", "2E-3", "3.14e+2"},
		lexemes(t, "123 1.5 1e10 2E-3 3.14e+2"))
}

// A bare trailing "e" with no digits after it is not consumed as an
// exponent: the number ends at "1" and "e" starts a fresh identifier.
func TestNumber_TrailingEWithoutDigitsIsNotExponent(t *testing.T) {
	require.Equal(t, []string{"1", "e"}, lexemes(t, "1e"))
}

func TestNumber_LeadingDotRequiresDigit(t *testing.T) {
	// ".5" is a number; a bare "." with no following digit is DOT/COMPOSE,
	// not the start of a number.
	require.Equal(t, []token.Token{token.NUMBER, token.EOF}, kinds(".5"))
	require.Equal(t, []token.Token{token.DOT, token.IDENT, token.EOF}, kinds(".x"))
}

func TestIdentifier_AlphaIdentContinuesWithDigitsAndSymbols(t *testing.T) {
	require.Equal(t, []string{"foo2", "bar?"}, lexemes(t, "foo2 bar?"))
}

// Digits glued directly after a symbolic identifier do not continue it:
// "+1" scans as the operator "+" followed by the number "1".
func TestIdentifier_SymbolicIdentDoesNotAbsorbDigits(t *testing.T) {
	require.Equal(t, []string{"+", "1"}, lexemes(t, "+1"))
}

func TestIdentifier_KeywordsAndFixedOperatorsGetTheirOwnKind(t *testing.T) {
	require.Equal(t, []token.Token{token.LET, token.IDENT, token.EQ, token.NUMBER, token.SEMI, token.EOF},
		kinds("let x = 1;"))
	require.Equal(t, []token.Token{token.IDENT, token.FATARROW, token.IDENT, token.EOF}, kinds("x => x"))
}

// A symbolic run not in the fixed-operator set (the grammar leaves it free
// for a user `let infix` declaration) tokenizes as IDENT, not its own kind.
func TestIdentifier_UserSymbolicOperatorStaysIdent(t *testing.T) {
	require.Equal(t, []token.Token{token.IDENT, token.EOF}, kinds("$"))
	require.Equal(t, []token.Token{token.IDENT, token.EOF}, kinds("<*>"))
}

// Identifiers starting with a letter in 'u'..'z' are flagged as
// syntactically in the type-variable range.
func TestIdentifier_TypeVariableRange(t *testing.T) {
	sc := scanner.New([]byte("u v z a t"))
	var flags []bool
	for {
		tok := sc.Next()
		if tok.Kind == token.EOF {
			break
		}
		flags = append(flags, tok.TypeVar)
	}
	require.Equal(t, []bool{true, true, true, false, false}, flags)
}

func TestString_DoubleAndSingleQuoted(t *testing.T) {
	require.Equal(t, []token.Token{token.STRING, token.STRING, token.EOF}, kinds(`"hi" 'lo'`))
}

func TestString_UnterminatedProducesIllegalToken(t *testing.T) {
	sc := scanner.New([]byte(`"unterminated`))
	tok := sc.Next()
	require.Equal(t, token.ILLEGAL, tok.Kind)
	require.Equal(t, "unterminated string", tok.Message)
}

func TestString_NewlineInsideIsIllegal(t *testing.T) {
	sc := scanner.New([]byte("\"a\nb\""))
	tok := sc.Next()
	require.Equal(t, token.ILLEGAL, tok.Kind)
}

func TestDecode_ResolvesEscapeSequences(t *testing.T) {
	src := []byte(`"a\nb\t\"c\\d"`)
	sc := scanner.New(src)
	tok := sc.Next()
	require.Equal(t, token.STRING, tok.Kind)
	require.Equal(t, "a\nb\t\"c\\d", scanner.Decode(src, tok))
}

func TestDecode_NoEscapesReturnsRawContent(t *testing.T) {
	src := []byte(`"plain"`)
	sc := scanner.New(src)
	tok := sc.Next()
	require.Equal(t, "plain", scanner.Decode(src, tok))
}

func TestLineComment_SkippedAndDoesNotAdvanceLine(t *testing.T) {
	sc := scanner.New([]byte("let x = 1; // trailing comment\nlet y = 2;"))
	var lines []int
	for {
		tok := sc.Next()
		if tok.Kind == token.EOF {
			break
		}
		lines = append(lines, tok.Line)
	}
	require.Equal(t, []int{1, 1, 1, 1, 1, 2, 2, 2, 2, 2}, lines)
}

func TestCheckpoint_SaveAndGotoRewindsCursor(t *testing.T) {
	sc := scanner.New([]byte("let x = 1;"))
	first := sc.Next()
	require.Equal(t, token.LET, first.Kind)

	cp := sc.Save()
	second := sc.Next()
	require.Equal(t, token.IDENT, second.Kind)

	sc.Goto(cp)
	replayed := sc.Next()
	require.Equal(t, second, replayed)
}

func TestSingleCharPunctuation(t *testing.T) {
	require.Equal(t,
		[]token.Token{
			token.LPAREN, token.RPAREN, token.LBRACE, token.RBRACE,
			token.LBRACK, token.RBRACK, token.COMMA, token.SEMI, token.COLON, token.EOF,
		},
		kinds("(){}[],;:"))
}
