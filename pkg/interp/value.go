// Package interp implements the sscript tree-walking interpreter.
package interp

import (
	"github.com/sscript-lang/sscript/pkg/ast"
)

// Value is the interface for all sscript runtime values.
// Use the sealed marker method to restrict implementations to this package.
type Value interface {
	value() // sealed marker
}

// Null represents the absence of a value.
type Null struct{}

func (Null) value() {}

// Int represents an integer value.
type Int struct {
	Value int64
}

func (Int) value() {}

// Float represents a floating-point value.
type Float struct {
	Value float64
}

func (Float) value() {}

// Str represents an immutable string value.
type Str struct {
	Value string
}

func (Str) value() {}

// List represents an ordered list of values. The list operators return
// new lists; the Items slice of an existing value is never mutated.
type List struct {
	Items []Value
}

func (List) value() {}

// Func is a user-defined function closing over its defining environment.
type Func struct {
	Name   string // empty for anonymous functions
	Params []string
	Body   ast.Body
	Env    *Env
}

func (*Func) value() {}

// Builtin is a host-provided callable registered in the global
// environment.
type Builtin struct {
	Name  string
	Arity int
	Fn    func(args []Value) (Value, error)
}

func (*Builtin) value() {}

// NewNull creates a null value.
func NewNull() Value {
	return Null{}
}

// NewInt creates an integer value.
func NewInt(v int64) Value {
	return Int{Value: v}
}

// NewFloat creates a float value.
func NewFloat(v float64) Value {
	return Float{Value: v}
}

// NewStr creates a string value.
func NewStr(s string) Value {
	return Str{Value: s}
}

// NewList creates a list value.
func NewList(items []Value) Value {
	return List{Items: items}
}

// TypeName returns the user-facing name of a value's kind.
func TypeName(v Value) string {
	switch v.(type) {
	case Null:
		return "null"
	case Int:
		return "integer"
	case Float:
		return "float"
	case Str:
		return "string"
	case List:
		return "list"
	case *Func, *Builtin:
		return "function"
	default:
		return "unknown"
	}
}

// Truthiness returns the boolean interpretation of a value. Zero of
// either numeric kind, the empty string, the empty list, and null are
// falsy; everything else is truthy.
func Truthiness(v Value) bool {
	switch val := v.(type) {
	case Null:
		return false
	case Int:
		return val.Value != 0
	case Float:
		return val.Value != 0
	case Str:
		return val.Value != ""
	case List:
		return len(val.Items) != 0
	default:
		return true
	}
}

// boolValue maps a Go bool onto the language's comparison result values.
func boolValue(b bool) Value {
	if b {
		return Int{Value: 1}
	}
	return Int{Value: 0}
}

// Equals reports deep equality of two values. Mixed integer/float pairs
// compare numerically; lists compare element-wise; functions compare by
// identity.
func Equals(a, b Value) bool {
	switch av := a.(type) {
	case Null:
		_, ok := b.(Null)
		return ok
	case Int:
		switch bv := b.(type) {
		case Int:
			return av.Value == bv.Value
		case Float:
			return float64(av.Value) == bv.Value
		}
		return false
	case Float:
		switch bv := b.(type) {
		case Int:
			return av.Value == float64(bv.Value)
		case Float:
			return av.Value == bv.Value
		}
		return false
	case Str:
		bv, ok := b.(Str)
		return ok && av.Value == bv.Value
	case List:
		bv, ok := b.(List)
		if !ok || len(av.Items) != len(bv.Items) {
			return false
		}
		for i := range av.Items {
			if !Equals(av.Items[i], bv.Items[i]) {
				return false
			}
		}
		return true
	case *Func:
		bv, ok := b.(*Func)
		return ok && av == bv
	case *Builtin:
		bv, ok := b.(*Builtin)
		return ok && av == bv
	}
	return false
}
