package interp

import (
	"fmt"

	"github.com/sscript-lang/sscript/pkg/ast"
	"github.com/sscript-lang/sscript/pkg/diagnostics"
)

// RuntimeError represents a runtime error during sscript execution.
type RuntimeError struct {
	Diag diagnostics.Diagnostic
}

func (e *RuntimeError) Error() string {
	return e.Diag.Message
}

func errAt(code, msg string, span ast.Span) error {
	return &RuntimeError{Diag: diagnostics.MakeDiag(code, msg, &span, "")}
}

// maxCallDepth bounds recursive function calls so runaway recursion is
// reported as a runtime error instead of exhausting the host stack.
const maxCallDepth = 5000

// flowKind identifies a control-flow signal produced by return, break,
// or continue. Signals propagate out of every visitor until an enclosing
// loop or function body consumes them.
type flowKind int

const (
	flowNone flowKind = iota
	flowReturn
	flowBreak
	flowContinue
)

type flow struct {
	kind flowKind
	span ast.Span
}

var noFlow = flow{}

type evaluator struct {
	depth int
}

// Eval evaluates a parsed program in the given environment. With more
// than one top-level statement the result is a list of the statements'
// values; a single statement yields its value directly and an empty
// program yields null.
func Eval(prog *ast.Program, env *Env) (Value, error) {
	ev := &evaluator{}

	var values []Value
	for _, stmt := range prog.Statements {
		v, fl, err := ev.evalStmt(stmt, env)
		if err != nil {
			return nil, err
		}
		if fl.kind != flowNone {
			return nil, flowEscapeError(fl)
		}
		values = append(values, v)
	}

	switch len(values) {
	case 0:
		return NewNull(), nil
	case 1:
		return values[0], nil
	default:
		return List{Items: values}, nil
	}
}

func flowEscapeError(fl flow) error {
	switch fl.kind {
	case flowReturn:
		return errAt(diagnostics.EFlow, "'return' outside of function", fl.span)
	case flowBreak:
		return errAt(diagnostics.EFlow, "'break' outside of loop", fl.span)
	default:
		return errAt(diagnostics.EFlow, "'continue' outside of loop", fl.span)
	}
}

// --- Statements ---

func (ev *evaluator) evalStmt(stmt ast.Stmt, env *Env) (Value, flow, error) {
	switch s := stmt.(type) {
	case *ast.ExprStmt:
		return ev.evalExpr(s.X, env)

	case *ast.ReturnStmt:
		value := NewNull()
		if s.Value != nil {
			v, fl, err := ev.evalExpr(s.Value, env)
			if err != nil || fl.kind != flowNone {
				return nil, fl, err
			}
			value = v
		}
		return value, flow{kind: flowReturn, span: s.Span}, nil

	case *ast.BreakStmt:
		return nil, flow{kind: flowBreak, span: s.Span}, nil

	case *ast.ContinueStmt:
		return nil, flow{kind: flowContinue, span: s.Span}, nil
	}
	return nil, noFlow, errAt(diagnostics.EType, fmt.Sprintf("unexpected statement %s", stmt.Kind()), stmt.NodeSpan())
}

// evalBody runs an if/loop body in env. A block-form body yields null;
// an expression-form body yields its single statement's value.
func (ev *evaluator) evalBody(body ast.Body, env *Env) (Value, flow, error) {
	if body.Block {
		for _, stmt := range body.Statements {
			v, fl, err := ev.evalStmt(stmt, env)
			if err != nil || fl.kind != flowNone {
				return v, fl, err
			}
		}
		return NewNull(), noFlow, nil
	}

	return ev.evalStmt(body.Statements[0], env)
}

// --- Expressions ---

func (ev *evaluator) evalExpr(expr ast.Expr, env *Env) (Value, flow, error) {
	switch e := expr.(type) {
	case *ast.IntLit:
		return Int{Value: e.Value}, noFlow, nil

	case *ast.FloatLit:
		return Float{Value: e.Value}, noFlow, nil

	case *ast.StrLit:
		return Str{Value: e.Value}, noFlow, nil

	case *ast.ListLit:
		items := make([]Value, 0, len(e.Elements))
		for _, elem := range e.Elements {
			v, fl, err := ev.evalExpr(elem, env)
			if err != nil || fl.kind != flowNone {
				return nil, fl, err
			}
			items = append(items, v)
		}
		return List{Items: items}, noFlow, nil

	case *ast.Ident:
		v, ok := env.Get(e.Name)
		if !ok {
			return nil, noFlow, errAt(diagnostics.EUnbound, fmt.Sprintf("'%s' is not defined", e.Name), e.Span)
		}
		return v, noFlow, nil

	case *ast.AssignExpr:
		v, fl, err := ev.evalExpr(e.Value, env)
		if err != nil || fl.kind != flowNone {
			return nil, fl, err
		}
		env.Set(e.Name, v)
		return v, noFlow, nil

	case *ast.BinaryExpr:
		return ev.evalBinary(e, env)

	case *ast.UnaryExpr:
		operand, fl, err := ev.evalExpr(e.Operand, env)
		if err != nil || fl.kind != flowNone {
			return nil, fl, err
		}
		v, err := applyUnary(e.Op, operand, e.Span)
		return v, noFlow, err

	case *ast.IfExpr:
		return ev.evalIf(e, env)

	case *ast.ForExpr:
		return ev.evalFor(e, env)

	case *ast.WhileExpr:
		return ev.evalWhile(e, env)

	case *ast.FuncLit:
		fn := &Func{Name: e.Name, Params: e.Params, Body: e.Body, Env: env}
		if e.Name != "" {
			env.Set(e.Name, fn)
		}
		return fn, noFlow, nil

	case *ast.CallExpr:
		return ev.evalCall(e, env)
	}
	return nil, noFlow, errAt(diagnostics.EType, fmt.Sprintf("unexpected expression %s", expr.Kind()), expr.NodeSpan())
}

func (ev *evaluator) evalBinary(e *ast.BinaryExpr, env *Env) (Value, flow, error) {
	// The boolean connectives short-circuit and always yield 0 or 1.
	if e.Op == ast.OpAnd || e.Op == ast.OpOr {
		left, fl, err := ev.evalExpr(e.Left, env)
		if err != nil || fl.kind != flowNone {
			return nil, fl, err
		}
		if e.Op == ast.OpAnd && !Truthiness(left) {
			return boolValue(false), noFlow, nil
		}
		if e.Op == ast.OpOr && Truthiness(left) {
			return boolValue(true), noFlow, nil
		}
		right, fl, err := ev.evalExpr(e.Right, env)
		if err != nil || fl.kind != flowNone {
			return nil, fl, err
		}
		return boolValue(Truthiness(right)), noFlow, nil
	}

	left, fl, err := ev.evalExpr(e.Left, env)
	if err != nil || fl.kind != flowNone {
		return nil, fl, err
	}
	right, fl, err := ev.evalExpr(e.Right, env)
	if err != nil || fl.kind != flowNone {
		return nil, fl, err
	}
	v, err := applyBinary(e.Op, left, right, e.OpSpan)
	return v, noFlow, err
}

func (ev *evaluator) evalIf(e *ast.IfExpr, env *Env) (Value, flow, error) {
	for _, c := range e.Cases {
		cond, fl, err := ev.evalExpr(c.Cond, env)
		if err != nil || fl.kind != flowNone {
			return nil, fl, err
		}
		if Truthiness(cond) {
			return ev.evalBody(c.Body, env)
		}
	}
	if e.Else != nil {
		return ev.evalBody(*e.Else, env)
	}
	return NewNull(), noFlow, nil
}

func (ev *evaluator) evalFor(e *ast.ForExpr, env *Env) (Value, flow, error) {
	from, fl, err := ev.evalExpr(e.From, env)
	if err != nil || fl.kind != flowNone {
		return nil, fl, err
	}
	to, fl, err := ev.evalExpr(e.To, env)
	if err != nil || fl.kind != flowNone {
		return nil, fl, err
	}
	step := Value(Int{Value: 1})
	if e.Step != nil {
		step, fl, err = ev.evalExpr(e.Step, env)
		if err != nil || fl.kind != flowNone {
			return nil, fl, err
		}
	}

	fromF, ok := numeric(from)
	if !ok {
		return nil, noFlow, errAt(diagnostics.EType,
			fmt.Sprintf("'for' start value must be a number, got %s", TypeName(from)), e.From.NodeSpan())
	}
	toF, ok := numeric(to)
	if !ok {
		return nil, noFlow, errAt(diagnostics.EType,
			fmt.Sprintf("'for' end value must be a number, got %s", TypeName(to)), e.To.NodeSpan())
	}
	stepF, ok := numeric(step)
	if !ok {
		return nil, noFlow, errAt(diagnostics.EType,
			fmt.Sprintf("'for' step value must be a number, got %s", TypeName(step)), e.Step.NodeSpan())
	}
	if stepF == 0 {
		span := e.Span
		if e.Step != nil {
			span = e.Step.NodeSpan()
		}
		return nil, noFlow, errAt(diagnostics.EStep, "'for' step must not be zero", span)
	}

	// Stay in integer arithmetic when every bound is an integer.
	_, fromInt := from.(Int)
	_, toInt := to.(Int)
	_, stepInt := step.(Int)
	useInt := fromInt && toInt && stepInt

	var results []Value
	collect := !e.Body.Block

	running := func(cur float64) bool {
		if stepF > 0 {
			return cur < toF
		}
		return cur > toF
	}

	for cur := fromF; running(cur); cur += stepF {
		if useInt {
			env.Set(e.VarName, Int{Value: int64(cur)})
		} else {
			env.Set(e.VarName, Float{Value: cur})
		}

		v, fl, err := ev.evalBody(e.Body, env)
		if err != nil {
			return nil, noFlow, err
		}
		switch fl.kind {
		case flowReturn:
			return v, fl, nil
		case flowBreak:
			return ev.loopResult(collect, results), noFlow, nil
		case flowContinue:
			continue
		}
		if collect {
			results = append(results, v)
		}
	}
	return ev.loopResult(collect, results), noFlow, nil
}

func (ev *evaluator) evalWhile(e *ast.WhileExpr, env *Env) (Value, flow, error) {
	var results []Value
	collect := !e.Body.Block

	for {
		cond, fl, err := ev.evalExpr(e.Cond, env)
		if err != nil || fl.kind != flowNone {
			return nil, fl, err
		}
		if !Truthiness(cond) {
			return ev.loopResult(collect, results), noFlow, nil
		}

		v, fl, err := ev.evalBody(e.Body, env)
		if err != nil {
			return nil, noFlow, err
		}
		switch fl.kind {
		case flowReturn:
			return v, fl, nil
		case flowBreak:
			return ev.loopResult(collect, results), noFlow, nil
		case flowContinue:
			continue
		}
		if collect {
			results = append(results, v)
		}
	}
}

// loopResult packages a finished loop's value: the accumulated list for
// an expression-form body, null for a block-form body.
func (ev *evaluator) loopResult(collect bool, results []Value) Value {
	if !collect {
		return NewNull()
	}
	if results == nil {
		results = []Value{}
	}
	return List{Items: results}
}

func (ev *evaluator) evalCall(e *ast.CallExpr, env *Env) (Value, flow, error) {
	callee, fl, err := ev.evalExpr(e.Callee, env)
	if err != nil || fl.kind != flowNone {
		return nil, fl, err
	}

	args := make([]Value, 0, len(e.Args))
	for _, argExpr := range e.Args {
		v, fl, err := ev.evalExpr(argExpr, env)
		if err != nil || fl.kind != flowNone {
			return nil, fl, err
		}
		args = append(args, v)
	}

	switch fn := callee.(type) {
	case *Func:
		return ev.callFunc(fn, args, e.Span)

	case *Builtin:
		if fn.Arity >= 0 && len(args) != fn.Arity {
			return nil, noFlow, errAt(diagnostics.EArity,
				fmt.Sprintf("%s expects %d arguments, got %d", displayName(fn.Name), fn.Arity, len(args)), e.Span)
		}
		v, err := fn.Fn(args)
		if err != nil {
			if re, ok := err.(*RuntimeError); ok {
				if re.Diag.Span == nil {
					span := e.Span
					re.Diag.Span = &span
				}
				return nil, noFlow, re
			}
			return nil, noFlow, errAt(diagnostics.EBuiltin, err.Error(), e.Span)
		}
		if v == nil {
			v = NewNull()
		}
		return v, noFlow, nil
	}

	return nil, noFlow, errAt(diagnostics.ENotCallable,
		fmt.Sprintf("value of type %s is not callable", TypeName(callee)), e.Callee.NodeSpan())
}

func (ev *evaluator) callFunc(fn *Func, args []Value, callSpan ast.Span) (Value, flow, error) {
	if len(args) != len(fn.Params) {
		return nil, noFlow, errAt(diagnostics.EArity,
			fmt.Sprintf("%s expects %d arguments, got %d", displayName(fn.Name), len(fn.Params), len(args)), callSpan)
	}
	if ev.depth >= maxCallDepth {
		return nil, noFlow, errAt(diagnostics.EFlow, "maximum call depth exceeded", callSpan)
	}
	ev.depth++
	defer func() { ev.depth-- }()

	callEnv := NewEnv(fn.Env)
	for i, name := range fn.Params {
		callEnv.Set(name, args[i])
	}

	v, fl, err := ev.evalBody(fn.Body, callEnv)
	if err != nil {
		return nil, noFlow, err
	}
	switch fl.kind {
	case flowReturn:
		return v, noFlow, nil
	case flowBreak, flowContinue:
		return nil, noFlow, flowEscapeError(fl)
	}
	if fn.Body.Block {
		return NewNull(), noFlow, nil
	}
	return v, noFlow, nil
}

func displayName(name string) string {
	if name == "" {
		return "anonymous function"
	}
	return fmt.Sprintf("'%s'", name)
}
