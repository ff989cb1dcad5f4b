package token_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/nenuphar/lang/token"
)

func TestLookupIdent_KeywordsAndPlainIdents(t *testing.T) {
	require.Equal(t, token.LET, token.LookupIdent("let"))
	require.Equal(t, token.CLASS, token.LookupIdent("class"))
	require.Equal(t, token.EXTENDS, token.LookupIdent("extends"))
	require.Equal(t, token.INFIXR, token.LookupIdent("infixr"))
	require.Equal(t, token.IDENT, token.LookupIdent("notAKeyword"))
	require.Equal(t, token.IDENT, token.LookupIdent("+"))
}

// Fixed-grammar symbolic spellings must resolve to their dedicated token
// kinds, never IDENT, so they can't be shadowed by a user `let infix`
// declaration of the same spelling.
func TestLookupOperator_FixedGrammarSpellings(t *testing.T) {
	cases := map[string]token.Token{
		"=":  token.EQ,
		"==": token.EQEQ,
		"!":  token.BANG,
		"!=": token.BANGEQ,
		"&&": token.ANDAND,
		"||": token.OROR,
		"=>": token.FATARROW,
		"<-": token.LARROW,
	}
	for lit, want := range cases {
		require.Equal(t, want, token.LookupOperator(lit), "lexeme %q", lit)
	}
}

// Runtime-assignable operator spellings must stay IDENT so the infix table
// (not the fixed parse table) governs them.
func TestLookupOperator_RuntimeAssignableSpellingsStayIdent(t *testing.T) {
	for _, lit := range []string{"+", "-", "*", "/", ">", "<", ">=", "<=", "$", "|"} {
		require.Equal(t, token.IDENT, token.LookupOperator(lit), "lexeme %q", lit)
	}
}

func TestToken_IsKeywordIsLiteralClass(t *testing.T) {
	require.True(t, token.LET.IsKeyword())
	require.False(t, token.IDENT.IsKeyword())

	require.True(t, token.IDENT.IsLiteralClass())
	require.True(t, token.NUMBER.IsLiteralClass())
	require.True(t, token.STRING.IsLiteralClass())
	require.False(t, token.LPAREN.IsLiteralClass())
}

func TestToken_String(t *testing.T) {
	require.Equal(t, "let", token.LET.String())
	require.Equal(t, "=>", token.FATARROW.String())
}
