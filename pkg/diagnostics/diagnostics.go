// Package diagnostics defines sscript diagnostic types for lex, parse,
// and runtime errors.
package diagnostics

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sscript-lang/sscript/pkg/ast"
)

// Diagnostic code constants.
const (
	ELex         = "E_LEX"
	EParse       = "E_PARSE"
	EUnbound     = "E_UNBOUND"
	EType        = "E_TYPE"
	EDivZero     = "E_DIV_ZERO"
	EIndex       = "E_INDEX"
	EArity       = "E_ARITY"
	EStep        = "E_STEP"
	ENotCallable = "E_NOT_CALLABLE"
	EFlow        = "E_FLOW"
	EBuiltin     = "E_BUILTIN"
	EIO          = "E_IO"
)

// Diagnostic represents a lex, parse, or runtime diagnostic.
type Diagnostic struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Span    *ast.Span `json:"span,omitempty"`
	Hint    string    `json:"hint,omitempty"`
}

// MakeDiag creates a new Diagnostic.
func MakeDiag(code, message string, span *ast.Span, hint string) Diagnostic {
	return Diagnostic{
		Code:    code,
		Message: message,
		Span:    span,
		Hint:    hint,
	}
}

// FormatDiagnostic formats a single diagnostic for display.
func FormatDiagnostic(d Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(d)
		return string(b)
	}
	loc := "<unknown>"
	if d.Span != nil {
		loc = fmt.Sprintf("%s:%d:%d", d.Span.File, d.Span.StartLine, d.Span.StartCol)
	}
	out := fmt.Sprintf("error[%s]: %s\n  --> %s", d.Code, d.Message, loc)
	if d.Hint != "" {
		out += fmt.Sprintf("\n  hint: %s", d.Hint)
	}
	return out
}

// FormatDiagnostics formats a slice of diagnostics for display.
func FormatDiagnostics(diags []Diagnostic, pretty bool) string {
	if !pretty {
		b, _ := json.Marshal(diags)
		return string(b)
	}
	parts := make([]string, len(diags))
	for i, d := range diags {
		parts[i] = FormatDiagnostic(d, true)
	}
	return strings.Join(parts, "\n\n")
}

// Annotate renders the source lines covered by the diagnostic's span with
// a caret underline beneath the offending tokens:
//
//	var x = 1 +
//	          ^
//
// The source must be the same text the span was produced from. Returns an
// empty string when the diagnostic has no span.
func Annotate(d Diagnostic, source string) string {
	if d.Span == nil {
		return ""
	}
	sp := *d.Span

	var b strings.Builder
	lines := strings.Split(source, "\n")

	for ln := sp.StartLine; ln <= sp.EndLine && ln-1 < len(lines); ln++ {
		text := strings.TrimSuffix(lines[ln-1], "\r")

		// Caret range on this line, 1-based columns.
		from := 1
		if ln == sp.StartLine {
			from = sp.StartCol
		}
		to := len(text) + 1
		if ln == sp.EndLine {
			to = sp.EndCol
		}
		if to <= from {
			to = from + 1
		}

		b.WriteString(text)
		b.WriteByte('\n')
		b.WriteString(strings.Repeat(" ", from-1))
		b.WriteString(strings.Repeat("^", to-from))
		if ln < sp.EndLine {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
