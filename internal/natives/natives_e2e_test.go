package natives_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/nenuphar/internal/natives"
	"github.com/mna/nenuphar/internal/value"
	"github.com/mna/nenuphar/internal/vm"
	"github.com/mna/nenuphar/lang/compiler"
)

func run(t *testing.T, src string) (string, error) {
	t.Helper()
	heap := value.NewHeap()
	natives.Install(heap)

	fn, errs := compiler.Compile(heap, []byte(src), "<test>")
	require.Empty(t, errs, "compile errors for:\n%s", src)

	var out bytes.Buffer
	m := vm.New(heap, &out, &out)
	err := m.Interpret(fn)
	return out.String(), err
}

func runOK(t *testing.T, src string) string {
	t.Helper()
	out, err := run(t, src)
	require.NoError(t, err)
	return out
}

func lines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func TestNatives_MapFilterReduce(t *testing.T) {
	out := runOK(t, `
		let doubled = map((x) => x * 2, Sequence(1, 2, 3));
		print doubled.len();
		let evens = filter((x) => x == 2 || x == 4, Sequence(1, 2, 3, 4));
		print evens.len();
		let total = reduce((acc, x) => acc + x, 0, Sequence(1, 2, 3, 4));
		print total;
	`)
	require.Equal(t, []string{"3", "2", "10"}, lines(out))
}

func TestNatives_Compose(t *testing.T) {
	out := runOK(t, `
		let addOne = (x) => x + 1;
		let double = (x) => x * 2;
		let f = compose(double, addOne);
		print f(3);
	`)
	require.Equal(t, []string{"8"}, lines(out))
}

func TestNatives_SortNumbers(t *testing.T) {
	out := runOK(t, `
		let s = sort(Sequence(3, 1, 2));
		print s.len();
	`)
	require.Equal(t, []string{"3"}, lines(out))
}

func TestNatives_Range(t *testing.T) {
	out := runOK(t, `
		print range(3).len();
		print range(1, 4).len();
	`)
	require.Equal(t, []string{"3", "3"}, lines(out))
}

func TestNatives_LenStrType(t *testing.T) {
	out := runOK(t, `
		print len("hello");
		print str(42);
		print type(42);
		print type("hi");
	`)
	require.Equal(t, []string{"5", "42", "number", "string"}, lines(out))
}

func TestNatives_MapLiteralAndEntries(t *testing.T) {
	out := runOK(t, `
		let m = {"a": 1, "b": 2};
		print entries(m).len();
	`)
	require.Equal(t, []string{"2"}, lines(out))
}

func TestNatives_SetLiteralMembership(t *testing.T) {
	out := runOK(t, `
		let s = {1, 2, 3};
		print s.has(2);
		print s.has(4);
	`)
	require.Equal(t, []string{"true", "false"}, lines(out))
}

func TestNatives_FieldsOnInstance(t *testing.T) {
	out := runOK(t, `
		class Point extends Object {
			init(x, y) => { this.x = x; this.y = y; };
		}
		print fields(Point(1, 2)).len();
	`)
	require.Equal(t, []string{"2"}, lines(out))
}

func TestNatives_SequenceMethods(t *testing.T) {
	out := runOK(t, `
		let s = Sequence(1, 2, 3);
		s.push(4);
		print s.len();
		s.pop();
		print s.len();
	`)
	require.Equal(t, []string{"4", "3"}, lines(out))
}

func TestNatives_MapMethods(t *testing.T) {
	out := runOK(t, `
		let m = Map();
		m.set("x", 10);
		print m.get("x");
		print m.has("x");
		m.delete("x");
		print m.has("x");
		print m.len();
	`)
	require.Equal(t, []string{"10", "true", "false", "0"}, lines(out))
}
