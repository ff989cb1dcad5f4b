package vm_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mna/nenuphar/internal/natives"
	"github.com/mna/nenuphar/internal/value"
	vmpkg "github.com/mna/nenuphar/internal/vm"
	"github.com/mna/nenuphar/lang/compiler"
)

// run compiles and executes src against a fresh Heap/VM pair, returning
// everything printed to stdout and any uncaught runtime error.
func run(t *testing.T, src string) (string, error) {
	t.Helper()

	heap := value.NewHeap()
	natives.Install(heap)

	fn, errs := compiler.Compile(heap, []byte(src), "<test>")
	require.Empty(t, errs, "compile errors for:\n%s", src)

	var out bytes.Buffer
	vm := vmpkg.New(heap, &out, &out)
	err := vm.Interpret(fn)
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

// S1: arithmetic and print.
func TestEndToEnd_Arithmetic(t *testing.T) {
	out := runOK(t, `let x = 1; print x + 2;`)
	require.Equal(t, []string{"3"}, lines(out))
}

// S2: recursive function.
func TestEndToEnd_Recursion(t *testing.T) {
	out := runOK(t, `let f = (n) => if (n == 0) 1; else n * f(n - 1); print f(5);`)
	require.Equal(t, []string{"120"}, lines(out))
}

// S3: single inheritance and super calls.
func TestEndToEnd_Inheritance(t *testing.T) {
	out := runOK(t, `
		class A { m() => 1; }
		class B extends A { m() => 2 + super.m(); }
		print B().m();
	`)
	require.Equal(t, []string{"3"}, lines(out))
}

// S4: closures capture their defining environment.
func TestEndToEnd_Closure(t *testing.T) {
	out := runOK(t, `
		let mk = (n) => () => n;
		let g = mk(7);
		print g();
	`)
	require.Equal(t, []string{"7"}, lines(out))
}

// S5: a closed-over upvalue observes mutation, not definition-time value.
func TestEndToEnd_UpvalueMutation(t *testing.T) {
	out := runOK(t, `
		let c = 0;
		let inc = () => { c = c + 1; return c; };
		print inc();
		print inc();
	`)
	require.Equal(t, []string{"1", "2"}, lines(out))
}

// S6: user-defined right-associative infix operator with runtime precedence.
func TestEndToEnd_UserInfix(t *testing.T) {
	out := runOK(t, `
		let infixr (3) $ = (f, x) => f(x);
		print (n => n + 1) $ 41;
	`)
	require.Equal(t, []string{"42"}, lines(out))
}

func TestEndToEnd_NakedCurrying(t *testing.T) {
	out := runOK(t, `
		let add3 = a b c => a + b + c;
		print add3(1)(2)(3);
	`)
	require.Equal(t, []string{"6"}, lines(out))
}

// S7: variadic collapsing of trailing arguments into a Sequence.
func TestEndToEnd_Variadic(t *testing.T) {
	out := runOK(t, `
		let s = (first, *rest) => first + rest.len();
		print s(10, "a", "b", "c");
	`)
	require.Equal(t, []string{"13"}, lines(out))
}

// S8: comprehension over a Sequence.
func TestEndToEnd_Comprehension(t *testing.T) {
	out := runOK(t, `print [x * x | x in Sequence(1, 2, 3)].len();`)
	require.Equal(t, []string{"3"}, lines(out))
}

func TestEndToEnd_VariadicNoTrailingArgs(t *testing.T) {
	// called exactly one short: the variadic parameter collapses to an
	// empty Sequence rather than erroring.
	out := runOK(t, `
		let s = (first, *rest) => first + rest.len();
		print s(10);
	`)
	require.Equal(t, []string{"10"}, lines(out))
}

func TestEndToEnd_VariadicTwoShortIsArityError(t *testing.T) {
	// short by more than one (the rest parameter and a fixed parameter both
	// missing): only the exactly-one-short case gets an empty rest
	// Sequence, so this fails the arity check.
	_, err := run(t, `
		let s = (first, second, *rest) => first;
		print s(10);
	`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "expected at least 2 arguments but got 1")
}

func TestEndToEnd_NonVariadicArityMismatchErrors(t *testing.T) {
	_, err := run(t, `
		let f = (a, b) => a + b;
		print f(1);
	`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "expected 2 arguments but got 1")
}

func TestEndToEnd_NonVariadicTooManyArgsErrors(t *testing.T) {
	_, err := run(t, `
		let f = (a) => a;
		print f(1, 2);
	`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "expected 1 arguments but got 2")
}

func TestEndToEnd_OverridingDunderChangesOperator(t *testing.T) {
	out := runOK(t, `
		let __add__ = (a, b) => a * b;
		print 3 + 4;
	`)
	require.Equal(t, []string{"12"}, lines(out))
}

func TestEndToEnd_GetHashSetHash(t *testing.T) {
	out := runOK(t, `
		class Thing extends Object {}
		let t = Thing();
		setHash(t, 99);
		print getHash(t);
		print getHash(1) == getHash(1);
	`)
	require.Equal(t, []string{"99", "true"}, lines(out))
}

func TestEndToEnd_Destructure(t *testing.T) {
	out := runOK(t, `
		class Box extends Object {
			init(v) => { this.v = v; };
			__destructure__() => this.v;
		}
		let x <- Box(42);
		print x;

		let y = 0;
		y <- Box(7);
		print y;
	`)
	require.Equal(t, []string{"42", "7"}, lines(out))
}

func TestEndToEnd_DestructureDefaultIsIdentity(t *testing.T) {
	out := runOK(t, `
		let x <- 10;
		print x;
	`)
	require.Equal(t, []string{"10"}, lines(out))
}

func TestEndToEnd_GlobalsAndLocalsScoping(t *testing.T) {
	out := runOK(t, `
		let x = 1;
		{
			let x = 2;
			print x;
		}
		print x;
	`)
	require.Equal(t, []string{"2", "1"}, lines(out))
}

func TestEndToEnd_WhileAndForLoops(t *testing.T) {
	out := runOK(t, `
		let i = 0;
		let total = 0;
		while (i < 5) {
			total = total + i;
			i = i + 1;
		}
		print total;

		let acc = 0;
		for (let j = 0; j < 3; j = j + 1) {
			acc = acc + j;
		}
		print acc;
	`)
	require.Equal(t, []string{"10", "3"}, lines(out))
}

func TestEndToEnd_ForIn(t *testing.T) {
	out := runOK(t, `
		for (v in Sequence(1, 2, 3)) {
			print v;
		}
	`)
	require.Equal(t, []string{"1", "2", "3"}, lines(out))
}

func TestEndToEnd_MapLiteralAndSubscript(t *testing.T) {
	out := runOK(t, `
		let m = {"a": 1, "b": 2};
		print m["a"];
		m["c"] = 3;
		print m["c"];
	`)
	require.Equal(t, []string{"1", "3"}, lines(out))
}

func TestEndToEnd_RuntimeErrorThrow(t *testing.T) {
	_, err := run(t, `
		class MyError extends Object {
			init() => { this.message = "boom"; };
		}
		throw MyError();
	`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
}

// P7: a closure captures the value of its upvalue at the moment the
// upvalue is closed (the local going out of scope, or the loop iterating),
// not the value at the closure's definition time.
func TestEndToEnd_ClosureObservesValueAtCloseTime(t *testing.T) {
	out := runOK(t, `
		let makers = Sequence();
		for (let i = 0; i < 3; i = i + 1) {
			let captured = i;
			makers.push(() => captured);
		}
		print makers[0]();
		print makers[1]();
		print makers[2]();
	`)
	require.Equal(t, []string{"0", "1", "2"}, lines(out))
}

// P9: a subclass gets a snapshot of the superclass's methods at INHERIT
// time; later redefining a method on the superclass does not retroactively
// change what the subclass sees.
func TestEndToEnd_InheritSnapshotsMethodsAtDeclarationTime(t *testing.T) {
	out := runOK(t, `
		class A { m() => 1; }
		class B extends A {}
		let b = B();
		class A { m() => 2; }
		print b.m();
	`)
	require.Equal(t, []string{"1"}, lines(out))
}

// Overloaded (multi-body) functions dispatch by arity: the first
// alternative whose arity (accounting for variadic) accepts the call wins.
func TestEndToEnd_OverloadDispatchByArity(t *testing.T) {
	out := runOK(t, `
		let f = (a) => a | (a, b) => a + b;
		print f(10);
		print f(10, 5);
	`)
	require.Equal(t, []string{"10", "15"}, lines(out))
}

func TestEndToEnd_SuperInvokeThroughTwoLevels(t *testing.T) {
	out := runOK(t, `
		class A { m() => 1; }
		class B extends A { m() => super.m() + 1; }
		class C extends B { m() => super.m() + 1; }
		print C().m();
	`)
	require.Equal(t, []string{"3"}, lines(out))
}

func TestEndToEnd_EqDunderOverridesInstanceEquality(t *testing.T) {
	out := runOK(t, `
		class Box extends Object {
			init(v) => { this.v = v; };
			__eq__(other) => this.v == other.v;
		}
		print Box(1) == Box(1);
		print Box(1) == Box(2);
	`)
	require.Equal(t, []string{"true", "false"}, lines(out))
}

func TestEndToEnd_LenDunderOnInstance(t *testing.T) {
	out := runOK(t, `
		class Bag extends Object {
			init() => { this.items = Sequence(1, 2, 3); };
			__len__() => this.items.len();
		}
		print len(Bag());
	`)
	require.Equal(t, []string{"3"}, lines(out))
}

func TestEndToEnd_GetSetDunderOnInstance(t *testing.T) {
	out := runOK(t, `
		class Grid extends Object {
			init() => { this.backing = Map(); };
			__get__(k) => this.backing.get(k);
			__set__(k, v) => { this.backing.set(k, v); };
		}
		let g = Grid();
		g["x"] = 42;
		print g["x"];
	`)
	require.Equal(t, []string{"42"}, lines(out))
}

func TestEndToEnd_InDunderOnInstance(t *testing.T) {
	out := runOK(t, `
		class Range extends Object {
			init(lo, hi) => { this.lo = lo; this.hi = hi; };
			__in__(x) => x >= this.lo && x < this.hi;
		}
		let r = Range(0, 10);
		print 5 in r;
		print 15 in r;
	`)
	require.Equal(t, []string{"true", "false"}, lines(out))
}

func TestEndToEnd_FieldsAreOpen(t *testing.T) {
	out := runOK(t, `
		class Point extends Object {
			init(x, y) => { this.x = x; this.y = y; };
		}
		let p = Point(1, 2);
		p.z = 3;
		print p.x + p.y + p.z;
	`)
	require.Equal(t, []string{"6"}, lines(out))
}
