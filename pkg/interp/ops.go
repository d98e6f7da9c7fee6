package interp

import (
	"fmt"
	"math"

	"github.com/sscript-lang/sscript/pkg/ast"
	"github.com/sscript-lang/sscript/pkg/diagnostics"
)

// numeric pulls the float value out of either numeric kind.
func numeric(v Value) (float64, bool) {
	switch n := v.(type) {
	case Int:
		return float64(n.Value), true
	case Float:
		return n.Value, true
	}
	return 0, false
}

func bothInt(a, b Value) (int64, int64, bool) {
	ai, ok := a.(Int)
	if !ok {
		return 0, 0, false
	}
	bi, ok := b.(Int)
	if !ok {
		return 0, 0, false
	}
	return ai.Value, bi.Value, true
}

func typeMismatch(op ast.BinaryOp, left, right Value, span ast.Span) error {
	return errAt(diagnostics.EType,
		fmt.Sprintf("cannot apply '%s' to %s and %s", op, TypeName(left), TypeName(right)), span)
}

// applyBinary evaluates a binary operator on two values. The boolean
// connectives are handled in the evaluator because they short-circuit.
func applyBinary(op ast.BinaryOp, left, right Value, span ast.Span) (Value, error) {
	switch op {
	case ast.OpAdd:
		return applyAdd(left, right, span)
	case ast.OpSub:
		return applySub(left, right, span)
	case ast.OpMul:
		return applyMul(left, right, span)
	case ast.OpDiv:
		return applyDiv(left, right, span)
	case ast.OpPow:
		return applyPow(left, right, span)
	case ast.OpEqEq:
		return boolValue(Equals(left, right)), nil
	case ast.OpNeq:
		return boolValue(!Equals(left, right)), nil
	case ast.OpLt, ast.OpGt, ast.OpLtEq, ast.OpGtEq:
		return applyOrdered(op, left, right, span)
	}
	return nil, errAt(diagnostics.EType, fmt.Sprintf("unknown operator '%s'", op), span)
}

func applyAdd(left, right Value, span ast.Span) (Value, error) {
	if li, ri, ok := bothInt(left, right); ok {
		return Int{Value: li + ri}, nil
	}
	if lf, ok := numeric(left); ok {
		if rf, ok := numeric(right); ok {
			return Float{Value: lf + rf}, nil
		}
	}
	if ls, ok := left.(Str); ok {
		if rs, ok := right.(Str); ok {
			return Str{Value: ls.Value + rs.Value}, nil
		}
	}
	// list + element appends.
	if ll, ok := left.(List); ok {
		items := make([]Value, len(ll.Items)+1)
		copy(items, ll.Items)
		items[len(ll.Items)] = right
		return List{Items: items}, nil
	}
	return nil, typeMismatch(ast.OpAdd, left, right, span)
}

func applySub(left, right Value, span ast.Span) (Value, error) {
	if li, ri, ok := bothInt(left, right); ok {
		return Int{Value: li - ri}, nil
	}
	if lf, ok := numeric(left); ok {
		if rf, ok := numeric(right); ok {
			return Float{Value: lf - rf}, nil
		}
	}
	// list - index removes the element at that index.
	if ll, ok := left.(List); ok {
		idx, ok := right.(Int)
		if !ok {
			return nil, typeMismatch(ast.OpSub, left, right, span)
		}
		if idx.Value < 0 || idx.Value >= int64(len(ll.Items)) {
			return nil, errAt(diagnostics.EIndex,
				fmt.Sprintf("element index %d out of range for list of length %d", idx.Value, len(ll.Items)), span)
		}
		items := make([]Value, 0, len(ll.Items)-1)
		items = append(items, ll.Items[:idx.Value]...)
		items = append(items, ll.Items[idx.Value+1:]...)
		return List{Items: items}, nil
	}
	return nil, typeMismatch(ast.OpSub, left, right, span)
}

func applyMul(left, right Value, span ast.Span) (Value, error) {
	if li, ri, ok := bothInt(left, right); ok {
		return Int{Value: li * ri}, nil
	}
	if lf, ok := numeric(left); ok {
		if rf, ok := numeric(right); ok {
			return Float{Value: lf * rf}, nil
		}
	}
	// string * count repeats.
	if ls, ok := left.(Str); ok {
		if n, ok := right.(Int); ok {
			if n.Value < 0 {
				return Str{}, nil
			}
			var out []byte
			for i := int64(0); i < n.Value; i++ {
				out = append(out, ls.Value...)
			}
			return Str{Value: string(out)}, nil
		}
	}
	// list * list concatenates.
	if ll, ok := left.(List); ok {
		if rl, ok := right.(List); ok {
			items := make([]Value, 0, len(ll.Items)+len(rl.Items))
			items = append(items, ll.Items...)
			items = append(items, rl.Items...)
			return List{Items: items}, nil
		}
	}
	return nil, typeMismatch(ast.OpMul, left, right, span)
}

func applyDiv(left, right Value, span ast.Span) (Value, error) {
	// list / index retrieves the element at that index.
	if ll, ok := left.(List); ok {
		idx, ok := right.(Int)
		if !ok {
			return nil, typeMismatch(ast.OpDiv, left, right, span)
		}
		if idx.Value < 0 || idx.Value >= int64(len(ll.Items)) {
			return nil, errAt(diagnostics.EIndex,
				fmt.Sprintf("element index %d out of range for list of length %d", idx.Value, len(ll.Items)), span)
		}
		return ll.Items[idx.Value], nil
	}

	if li, ri, ok := bothInt(left, right); ok {
		if ri == 0 {
			return nil, errAt(diagnostics.EDivZero, "division by zero", span)
		}
		// Exact integer division stays integer; a remainder promotes.
		if li%ri == 0 {
			return Int{Value: li / ri}, nil
		}
		return Float{Value: float64(li) / float64(ri)}, nil
	}
	if lf, ok := numeric(left); ok {
		if rf, ok := numeric(right); ok {
			if rf == 0 {
				return nil, errAt(diagnostics.EDivZero, "division by zero", span)
			}
			return Float{Value: lf / rf}, nil
		}
	}
	return nil, typeMismatch(ast.OpDiv, left, right, span)
}

func applyPow(left, right Value, span ast.Span) (Value, error) {
	if li, ri, ok := bothInt(left, right); ok {
		if ri >= 0 {
			return Int{Value: intPow(li, ri)}, nil
		}
		return Float{Value: math.Pow(float64(li), float64(ri))}, nil
	}
	if lf, ok := numeric(left); ok {
		if rf, ok := numeric(right); ok {
			return Float{Value: math.Pow(lf, rf)}, nil
		}
	}
	return nil, typeMismatch(ast.OpPow, left, right, span)
}

// intPow computes base**exp for exp >= 0 by binary exponentiation.
func intPow(base, exp int64) int64 {
	result := int64(1)
	for exp > 0 {
		if exp&1 == 1 {
			result *= base
		}
		base *= base
		exp >>= 1
	}
	return result
}

func applyOrdered(op ast.BinaryOp, left, right Value, span ast.Span) (Value, error) {
	lf, lok := numeric(left)
	rf, rok := numeric(right)
	if !lok || !rok {
		return nil, typeMismatch(op, left, right, span)
	}
	switch op {
	case ast.OpLt:
		return boolValue(lf < rf), nil
	case ast.OpGt:
		return boolValue(lf > rf), nil
	case ast.OpLtEq:
		return boolValue(lf <= rf), nil
	default:
		return boolValue(lf >= rf), nil
	}
}

// applyUnary evaluates a unary operator. `not` is defined for every
// value kind; `+` and `-` only for numbers.
func applyUnary(op ast.UnaryOp, operand Value, span ast.Span) (Value, error) {
	switch op {
	case ast.OpNot:
		return boolValue(!Truthiness(operand)), nil
	case ast.OpNeg:
		switch n := operand.(type) {
		case Int:
			return Int{Value: -n.Value}, nil
		case Float:
			return Float{Value: -n.Value}, nil
		}
	case ast.OpPos:
		switch operand.(type) {
		case Int, Float:
			return operand, nil
		}
	}
	return nil, errAt(diagnostics.EType,
		fmt.Sprintf("cannot apply '%s' to %s", op, TypeName(operand)), span)
}
