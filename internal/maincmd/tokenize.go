package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mna/mainer"
	"github.com/mna/nenuphar/lang/scanner"
	"github.com/mna/nenuphar/lang/token"
)

// Tokenize runs the scanner phase alone and prints the resulting tokens,
// one per line, for each file given on the command line.
func (c *Cmd) Tokenize(ctx context.Context, stdio mainer.Stdio, args []string) error {
	var firstErr error
	for _, path := range args {
		if err := tokenizeFile(stdio, path); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func tokenizeFile(stdio mainer.Stdio, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}

	sc := scanner.New(src)
	for {
		tok := sc.Next()
		fmt.Fprintf(stdio.Stdout, "%s:%d: %s", path, tok.Line, tok.Kind)
		if tok.Kind.IsLiteralClass() || tok.Kind == token.ILLEGAL {
			fmt.Fprintf(stdio.Stdout, " %q", tok.Lexeme(src))
		}
		fmt.Fprintln(stdio.Stdout)
		if tok.Kind == token.EOF {
			break
		}
		if tok.Kind == token.ILLEGAL {
			return fmt.Errorf("%s:%d: %s", path, tok.Line, tok.Message)
		}
	}
	return nil
}
