package maincmd_test

import (
	"bytes"
	"context"
	"flag"
	"path/filepath"
	"testing"

	"github.com/mna/mainer"
	"github.com/mna/nenuphar/internal/filetest"
	"github.com/mna/nenuphar/internal/maincmd"
)

var testUpdateTokenizeTests = flag.Bool("test.update-tokenize-tests", false, "If set, replace expected tokenize test results with actual results.")

func TestTokenize(t *testing.T) {
	ctx := context.Background()
	srcDir, resultDir := filepath.Join("testdata", "in"), filepath.Join("testdata", "out")

	for _, fi := range filetest.SourceFiles(t, srcDir, ".nat") {
		t.Run(fi.Name(), func(t *testing.T) {
			var buf bytes.Buffer
			stdio := mainer.Stdio{Stdout: &buf}

			c := &maincmd.Cmd{}
			_ = c.Tokenize(ctx, stdio, []string{filepath.Join(srcDir, fi.Name())})
			filetest.DiffOutput(t, fi, buf.String(), resultDir, testUpdateTokenizeTests)
		})
	}
}
