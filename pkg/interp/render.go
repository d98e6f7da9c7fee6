package interp

import (
	"math"
	"strconv"
	"strings"
)

// Render returns the canonical printed representation of a value:
// integers in decimal, floats always with a decimal point, strings
// quoted with escapes, lists in brackets, functions as <function NAME>.
func Render(v Value) string {
	switch val := v.(type) {
	case Null:
		return "null"
	case Int:
		return strconv.FormatInt(val.Value, 10)
	case Float:
		return formatFloat(val.Value)
	case Str:
		return quote(val.Value)
	case List:
		parts := make([]string, len(val.Items))
		for i, item := range val.Items {
			parts[i] = Render(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Func:
		if val.Name == "" {
			return "<function anonymous>"
		}
		return "<function " + val.Name + ">"
	case *Builtin:
		return "<function " + val.Name + ">"
	}
	return "<unknown>"
}

// RenderRaw is Render except top-level strings print unquoted. This is
// what print uses.
func RenderRaw(v Value) string {
	if s, ok := v.(Str); ok {
		return s.Value
	}
	return Render(v)
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") && !math.IsInf(f, 0) && !math.IsNaN(f) {
		s += ".0"
	}
	return s
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
