package interp

import (
	"strings"
	"testing"

	"github.com/sscript-lang/sscript/pkg/diagnostics"
	"github.com/sscript-lang/sscript/pkg/parser"
)

// helper to parse and evaluate source in a fresh environment
func evalSrc(t *testing.T, source string) Value {
	t.Helper()
	return evalIn(t, source, NewEnv(nil))
}

func evalIn(t *testing.T, source string, env *Env) Value {
	t.Helper()
	prog, diags := parser.ParseSource(source, "test.ss")
	if len(diags) > 0 {
		t.Fatalf("parse failed: %v", diags)
	}
	v, err := Eval(prog, env)
	if err != nil {
		t.Fatalf("eval failed: %v", err)
	}
	return v
}

// helper expecting a runtime error
func evalErr(t *testing.T, source string) *RuntimeError {
	t.Helper()
	prog, diags := parser.ParseSource(source, "test.ss")
	if len(diags) > 0 {
		t.Fatalf("parse failed: %v", diags)
	}
	_, err := Eval(prog, NewEnv(nil))
	if err == nil {
		t.Fatalf("expected runtime error for %q", source)
	}
	re, ok := err.(*RuntimeError)
	if !ok {
		t.Fatalf("expected *RuntimeError, got %T", err)
	}
	return re
}

func wantInt(t *testing.T, v Value, expected int64) {
	t.Helper()
	i, ok := v.(Int)
	if !ok {
		t.Fatalf("expected integer, got %s (%s)", TypeName(v), Render(v))
	}
	if i.Value != expected {
		t.Errorf("expected %d, got %d", expected, i.Value)
	}
}

func wantFloat(t *testing.T, v Value, expected float64) {
	t.Helper()
	f, ok := v.(Float)
	if !ok {
		t.Fatalf("expected float, got %s (%s)", TypeName(v), Render(v))
	}
	if f.Value != expected {
		t.Errorf("expected %g, got %g", expected, f.Value)
	}
}

func wantStr(t *testing.T, v Value, expected string) {
	t.Helper()
	s, ok := v.(Str)
	if !ok {
		t.Fatalf("expected string, got %s (%s)", TypeName(v), Render(v))
	}
	if s.Value != expected {
		t.Errorf("expected %q, got %q", expected, s.Value)
	}
}

func wantRender(t *testing.T, v Value, expected string) {
	t.Helper()
	if got := Render(v); got != expected {
		t.Errorf("expected %s, got %s", expected, got)
	}
}

// ---------------------------------------------------------------------------
// Test: arithmetic
// ---------------------------------------------------------------------------
func TestArithmetic(t *testing.T) {
	tests := []struct {
		src      string
		expected int64
	}{
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
		{"10 - 4 - 3", 3},
		{"2 ^ 10", 1024},
		{"2 ^ 3 ^ 2", 512},
		{"-2 ^ 2", -4},
		{"7 / 7", 1},
		{"10 / 2", 5},
		{"+5", 5},
		{"--5", 5},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			wantInt(t, evalSrc(t, tt.src), tt.expected)
		})
	}
}

func TestFloatPromotion(t *testing.T) {
	wantFloat(t, evalSrc(t, "1 + 2.5"), 3.5)
	wantFloat(t, evalSrc(t, "2.0 * 3"), 6.0)
	wantFloat(t, evalSrc(t, "1.5 - 0.5"), 1.0)

	// Integer arithmetic stays integer.
	wantInt(t, evalSrc(t, "2 + 3"), 5)
}

func TestDivision(t *testing.T) {
	// Exact integer division stays integer.
	wantInt(t, evalSrc(t, "10 / 2"), 5)
	// A remainder promotes to float.
	wantFloat(t, evalSrc(t, "7 / 2"), 3.5)
	// Float division.
	wantFloat(t, evalSrc(t, "7.0 / 2"), 3.5)
}

func TestDivisionByZero(t *testing.T) {
	for _, src := range []string{"1 / 0", "1 / 0.0", "1.5 / 0"} {
		t.Run(src, func(t *testing.T) {
			re := evalErr(t, src)
			if re.Diag.Code != diagnostics.EDivZero {
				t.Errorf("expected E_DIV_ZERO, got %s", re.Diag.Code)
			}
			if re.Diag.Span == nil {
				t.Error("expected a span")
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Test: strings
// ---------------------------------------------------------------------------
func TestStringOps(t *testing.T) {
	wantStr(t, evalSrc(t, `"foo" + "bar"`), "foobar")
	wantStr(t, evalSrc(t, `"ab" * 3`), "ababab")
	wantStr(t, evalSrc(t, `"ab" * 0`), "")
	wantInt(t, evalSrc(t, `"a" == "a"`), 1)
	wantInt(t, evalSrc(t, `"a" == "b"`), 0)
	wantInt(t, evalSrc(t, `"a" != "b"`), 1)
}

func TestStringTypeErrors(t *testing.T) {
	for _, src := range []string{`"a" + 1`, `"a" - "b"`, `"a" < "b"`, `"a" * "b"`} {
		t.Run(src, func(t *testing.T) {
			re := evalErr(t, src)
			if re.Diag.Code != diagnostics.EType {
				t.Errorf("expected E_TYPE, got %s", re.Diag.Code)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// Test: lists
// ---------------------------------------------------------------------------
func TestListOps(t *testing.T) {
	wantRender(t, evalSrc(t, "[1,2,3] + 4"), "[1, 2, 3, 4]")
	wantRender(t, evalSrc(t, "[1,2,3,4] - 2"), "[1, 2, 4]")
	wantRender(t, evalSrc(t, "[1,2,3] * [4,5]"), "[1, 2, 3, 4, 5]")
	wantInt(t, evalSrc(t, "[10,20,30] / 1"), 20)
	wantInt(t, evalSrc(t, "[1,2] == [1,2]"), 1)
	wantInt(t, evalSrc(t, "[1,2] == [1,3]"), 0)
	wantInt(t, evalSrc(t, "[1,2] != [1]"), 1)
	wantInt(t, evalSrc(t, "[1, 2.0] == [1.0, 2]"), 1)
}

func TestListIndexOutOfRange(t *testing.T) {
	for _, src := range []string{"[1,2] / 5", "[1,2] / -1", "[1,2] - 2", "[] / 0"} {
		t.Run(src, func(t *testing.T) {
			re := evalErr(t, src)
			if re.Diag.Code != diagnostics.EIndex {
				t.Errorf("expected E_INDEX, got %s", re.Diag.Code)
			}
		})
	}
}

func TestListElementsEvaluatedInOrder(t *testing.T) {
	v := evalSrc(t, "var x = 1; [var x = x + 1, var x = x * 10, x]")
	// program yields [1, [2, 20, 20]]
	wantRender(t, v, "[1, [2, 20, 20]]")
}

// ---------------------------------------------------------------------------
// Test: comparisons and boolean connectives
// ---------------------------------------------------------------------------
func TestComparisons(t *testing.T) {
	tests := []struct {
		src      string
		expected int64
	}{
		{"1 < 2", 1},
		{"2 < 1", 0},
		{"2 <= 2", 1},
		{"3 >= 4", 0},
		{"1 == 1.0", 1},
		{"1 != 1", 0},
		{"1.5 > 1", 1},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			wantInt(t, evalSrc(t, tt.src), tt.expected)
		})
	}
}

func TestBooleanConnectives(t *testing.T) {
	wantInt(t, evalSrc(t, "1 and 2"), 1)
	wantInt(t, evalSrc(t, "0 and 2"), 0)
	wantInt(t, evalSrc(t, "0 or 3"), 1)
	wantInt(t, evalSrc(t, "0 or 0"), 0)
	wantInt(t, evalSrc(t, "not 0"), 1)
	wantInt(t, evalSrc(t, "not 5"), 0)
	wantInt(t, evalSrc(t, `not ""`), 1)
	wantInt(t, evalSrc(t, "not []"), 1)
}

func TestShortCircuit(t *testing.T) {
	var calls []string
	env := NewEnv(nil)
	env.Set("hit", &Builtin{Name: "hit", Arity: 1, Fn: func(args []Value) (Value, error) {
		calls = append(calls, Render(args[0]))
		return args[0], nil
	}})

	// Right operand must not be evaluated when the left decides.
	evalIn(t, `0 and hit("a")`, env)
	evalIn(t, `1 or hit("b")`, env)
	if len(calls) != 0 {
		t.Fatalf("short-circuit violated, calls: %v", calls)
	}

	// And must be evaluated when it does not.
	evalIn(t, `1 and hit("c")`, env)
	evalIn(t, `0 or hit("d")`, env)
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %v", calls)
	}
}

// ---------------------------------------------------------------------------
// Test: variables and scoping
// ---------------------------------------------------------------------------
func TestVariables(t *testing.T) {
	v := evalSrc(t, "var x = 41; x + 1")
	wantRender(t, v, "[41, 42]")

	// Assignment yields the assigned value.
	wantInt(t, evalSrc(t, "var x = 7"), 7)
}

func TestUnknownName(t *testing.T) {
	re := evalErr(t, "nope")
	if re.Diag.Code != diagnostics.EUnbound {
		t.Errorf("expected E_UNBOUND, got %s", re.Diag.Code)
	}
	if !strings.Contains(re.Diag.Message, "'nope' is not defined") {
		t.Errorf("unexpected message: %s", re.Diag.Message)
	}
	if re.Diag.Span == nil || re.Diag.Span.StartCol != 1 {
		t.Errorf("expected span at col 1, got %+v", re.Diag.Span)
	}
}

func TestClosureCapture(t *testing.T) {
	// A function resolves free variables through its defining scope,
	// not the call site's.
	src := `
var x = 10
func get() -> x
func shadowed()
  var x = 99
  return get()
end
shadowed()
`
	v := evalSrc(t, src)
	list, ok := v.(List)
	if !ok {
		t.Fatalf("expected list of statement values, got %s", Render(v))
	}
	wantInt(t, list.Items[len(list.Items)-1], 10)
}

// ---------------------------------------------------------------------------
// Test: if
// ---------------------------------------------------------------------------
func TestIfExpressionForm(t *testing.T) {
	src := `var x = 10; if x < 5 then "a" elif x >= 5 and x < 8 then "b" else "c"`
	v := evalSrc(t, src)
	list := v.(List)
	wantStr(t, list.Items[1], "c")
}

func TestIfNoMatchYieldsNull(t *testing.T) {
	v := evalSrc(t, "if 0 then 1")
	if _, ok := v.(Null); !ok {
		t.Errorf("expected null, got %s", Render(v))
	}
}

func TestIfBlockFormYieldsNull(t *testing.T) {
	v := evalSrc(t, "if 1 then\n  42\nend")
	if _, ok := v.(Null); !ok {
		t.Errorf("expected null from block form, got %s", Render(v))
	}
}

func TestIfBlockStatementsRun(t *testing.T) {
	src := "var x = 0\nif 1 then\n  var x = 42\nend\nx"
	v := evalSrc(t, src)
	list := v.(List)
	wantInt(t, list.Items[2], 42)
}

// ---------------------------------------------------------------------------
// Test: for
// ---------------------------------------------------------------------------
func TestForCollects(t *testing.T) {
	// The end bound is exclusive.
	wantRender(t, evalSrc(t, "for i = 1 to 5 do i * i"), "[1, 4, 9, 16]")
}

func TestForStep(t *testing.T) {
	wantRender(t, evalSrc(t, "for i = 0 to 10 step 3 do i"), "[0, 3, 6, 9]")
	wantRender(t, evalSrc(t, "for i = 5 to 0 step -1 do i"), "[5, 4, 3, 2, 1]")
}

func TestForFloatBounds(t *testing.T) {
	wantRender(t, evalSrc(t, "for i = 0.0 to 1 step 0.5 do i"), "[0.0, 0.5]")
}

func TestForEmptyRange(t *testing.T) {
	wantRender(t, evalSrc(t, "for i = 5 to 5 do i"), "[]")
	wantRender(t, evalSrc(t, "for i = 5 to 1 do i"), "[]")
}

func TestForBlockFormYieldsNull(t *testing.T) {
	v := evalSrc(t, "for i = 0 to 3 do\n  i\nend")
	if _, ok := v.(Null); !ok {
		t.Errorf("expected null from block form, got %s", Render(v))
	}
}

func TestForZeroStep(t *testing.T) {
	re := evalErr(t, "for i = 0 to 3 step 0 do i")
	if re.Diag.Code != diagnostics.EStep {
		t.Errorf("expected E_STEP, got %s", re.Diag.Code)
	}
}

func TestForNonNumericBounds(t *testing.T) {
	re := evalErr(t, `for i = "a" to 3 do i`)
	if re.Diag.Code != diagnostics.EType {
		t.Errorf("expected E_TYPE, got %s", re.Diag.Code)
	}
}

func TestForBreakContinue(t *testing.T) {
	wantRender(t, evalSrc(t, "for i = 0 to 10 do if i == 3 then break else i"), "[0, 1, 2]")
	// Continue skips the append.
	wantRender(t, evalSrc(t, "for i = 0 to 5 do if i == 2 then continue else i"), "[0, 1, 3, 4]")
}

func TestForVariableVisibleAfterLoop(t *testing.T) {
	// The loop variable is defined in the current scope.
	v := evalSrc(t, "for i = 0 to 3 do i; i")
	list := v.(List)
	wantInt(t, list.Items[1], 2)
}

// ---------------------------------------------------------------------------
// Test: while
// ---------------------------------------------------------------------------
func TestWhileCollects(t *testing.T) {
	wantRender(t, evalSrc(t, "var x = 0; while x < 5 do var x = x + 1"), "[0, [1, 2, 3, 4, 5]]")
}

func TestWhileBreak(t *testing.T) {
	src := "var x = 0; while 1 do if x == 3 then break else var x = x + 1"
	v := evalSrc(t, src)
	list := v.(List)
	wantRender(t, list.Items[1], "[1, 2, 3]")
}

func TestWhileFalseNeverRuns(t *testing.T) {
	wantRender(t, evalSrc(t, "while 0 do 1"), "[]")
}

func TestWhileBlockFormYieldsNull(t *testing.T) {
	v := evalSrc(t, "var x = 0\nwhile x < 3 do\n  var x = x + 1\nend")
	list := v.(List)
	if _, ok := list.Items[1].(Null); !ok {
		t.Errorf("expected null from block form, got %s", Render(list.Items[1]))
	}
}

// ---------------------------------------------------------------------------
// Test: functions
// ---------------------------------------------------------------------------
func TestFactorial(t *testing.T) {
	src := "func fact(n) -> if n <= 1 then 1 else n * fact(n - 1); fact(5)"
	v := evalSrc(t, src)
	list := v.(List)
	wantInt(t, list.Items[1], 120)
}

func TestAnonymousFunc(t *testing.T) {
	src := `var add = func (a, b) -> a + b; add("foo", "bar")`
	v := evalSrc(t, src)
	list := v.(List)
	wantStr(t, list.Items[1], "foobar")
}

func TestNamedFuncBindsItself(t *testing.T) {
	v := evalSrc(t, "func f() -> 1; f()")
	list := v.(List)
	wantInt(t, list.Items[1], 1)
}

func TestFuncValueRendering(t *testing.T) {
	wantRender(t, evalSrc(t, "func f() -> 1"), "<function f>")
	wantRender(t, evalSrc(t, "func () -> 1"), "<function anonymous>")
}

func TestBlockFuncReturn(t *testing.T) {
	src := `
func classify(n)
  if n < 0 then return "neg"
  if n == 0 then return "zero"
  return "pos"
end
classify(-5)
`
	v := evalSrc(t, src)
	list := v.(List)
	wantStr(t, list.Items[1], "neg")
}

func TestBlockFuncWithoutReturnYieldsNull(t *testing.T) {
	src := "func noop()\n  1 + 1\nend\nnoop()"
	v := evalSrc(t, src)
	list := v.(List)
	if _, ok := list.Items[1].(Null); !ok {
		t.Errorf("expected null, got %s", Render(list.Items[1]))
	}
}

func TestBareReturnYieldsNull(t *testing.T) {
	src := "func f()\n  return\nend\nf()"
	v := evalSrc(t, src)
	list := v.(List)
	if _, ok := list.Items[1].(Null); !ok {
		t.Errorf("expected null, got %s", Render(list.Items[1]))
	}
}

func TestArityMismatch(t *testing.T) {
	for _, src := range []string{"func f(a) -> a; f()", "func f(a) -> a; f(1, 2)"} {
		t.Run(src, func(t *testing.T) {
			prog, _ := parser.ParseSource(src, "test.ss")
			_, err := Eval(prog, NewEnv(nil))
			re, ok := err.(*RuntimeError)
			if !ok {
				t.Fatalf("expected runtime error, got %v", err)
			}
			if re.Diag.Code != diagnostics.EArity {
				t.Errorf("expected E_ARITY, got %s", re.Diag.Code)
			}
		})
	}
}

func TestCallNonCallable(t *testing.T) {
	re := evalErr(t, "var x = 3; x()")
	if re.Diag.Code != diagnostics.ENotCallable {
		t.Errorf("expected E_NOT_CALLABLE, got %s", re.Diag.Code)
	}
}

func TestParamsShadowOuter(t *testing.T) {
	src := "var n = 100; func double(n) -> n * 2; double(4); n"
	v := evalSrc(t, src)
	list := v.(List)
	wantInt(t, list.Items[2], 8)
	wantInt(t, list.Items[3], 100)
}

func TestRecursionDepthLimited(t *testing.T) {
	re := evalErr(t, "func loop() -> loop(); loop()")
	if !strings.Contains(re.Diag.Message, "call depth") {
		t.Errorf("unexpected message: %s", re.Diag.Message)
	}
}

// ---------------------------------------------------------------------------
// Test: control-flow signals escaping their construct
// ---------------------------------------------------------------------------
func TestSignalsOutsideConstruct(t *testing.T) {
	tests := []struct {
		src     string
		message string
	}{
		{"break", "'break' outside of loop"},
		{"continue", "'continue' outside of loop"},
		{"return 1", "'return' outside of function"},
		{"func f() -> if 1 then break; f()", "'break' outside of loop"},
		{"func f() -> if 1 then continue; f()", "'continue' outside of loop"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			prog, diags := parser.ParseSource(tt.src, "test.ss")
			if len(diags) > 0 {
				t.Fatalf("parse failed: %v", diags)
			}
			_, err := Eval(prog, NewEnv(nil))
			re, ok := err.(*RuntimeError)
			if !ok {
				t.Fatalf("expected runtime error, got %v", err)
			}
			if re.Diag.Code != diagnostics.EFlow {
				t.Errorf("expected E_FLOW, got %s", re.Diag.Code)
			}
			if !strings.Contains(re.Diag.Message, tt.message) {
				t.Errorf("expected %q in %q", tt.message, re.Diag.Message)
			}
		})
	}
}

func TestReturnInsideLoopExitsFunction(t *testing.T) {
	src := `
func firstOver(limit)
  for i = 0 to 100 do
    if i > limit then return i
  end
  return -1
end
firstOver(7)
`
	v := evalSrc(t, src)
	list := v.(List)
	wantInt(t, list.Items[1], 8)
}

// ---------------------------------------------------------------------------
// Test: top-level program value
// ---------------------------------------------------------------------------
func TestTopLevelValues(t *testing.T) {
	// Empty program yields null.
	if _, ok := evalSrc(t, "").(Null); !ok {
		t.Error("expected null for empty program")
	}
	// A single statement yields its value directly.
	wantInt(t, evalSrc(t, "1 + 2"), 3)
	// Multiple statements collect into a list.
	wantRender(t, evalSrc(t, "1 + 2; 3 * 4; 5 + 6 * 7"), "[3, 12, 47]")
}

// ---------------------------------------------------------------------------
// Test: type mismatch spans point at the operator
// ---------------------------------------------------------------------------
func TestTypeErrorSpan(t *testing.T) {
	re := evalErr(t, `1 + "x"`)
	if re.Diag.Span == nil {
		t.Fatal("expected span")
	}
	if re.Diag.Span.StartCol != 3 {
		t.Errorf("expected span at the operator (col 3), got col %d", re.Diag.Span.StartCol)
	}
}
