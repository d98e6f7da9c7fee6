// Package runtime provides the top-level sscript orchestrator wiring
// the lexer, parser, and interpreter together behind one API.
package runtime

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sscript-lang/sscript/pkg/diagnostics"
	"github.com/sscript-lang/sscript/pkg/interp"
	"github.com/sscript-lang/sscript/pkg/parser"
)

// Runtime holds the persistent global environment scripts and REPL
// lines evaluate against.
type Runtime struct {
	stdin   io.Reader
	stdout  io.Writer
	extra   []*interp.Builtin
	globals *interp.Env
	lastSrc map[string]string
}

// Option is a functional option for configuring the Runtime.
type Option func(*Runtime)

// WithStdin sets the input stream for the input builtins.
func WithStdin(r io.Reader) Option {
	return func(rt *Runtime) {
		rt.stdin = r
	}
}

// WithStdout sets the output stream for print.
func WithStdout(w io.Writer) Option {
	return func(rt *Runtime) {
		rt.stdout = w
	}
}

// WithBuiltin registers an additional host callable in the global
// environment.
func WithBuiltin(b *interp.Builtin) Option {
	return func(rt *Runtime) {
		rt.extra = append(rt.extra, b)
	}
}

// New creates a Runtime with a fresh global environment populated with
// the default builtins.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		lastSrc: make(map[string]string),
	}
	for _, opt := range opts {
		opt(rt)
	}

	host := interp.Host{
		Stdin:      rt.stdin,
		Stdout:     rt.stdout,
		LoadScript: rt.loadScript,
	}
	rt.globals = interp.GlobalEnv(host)
	for _, b := range rt.extra {
		rt.globals.Set(b.Name, b)
	}
	return rt
}

// Globals exposes the runtime's global environment.
func (rt *Runtime) Globals() *interp.Env {
	return rt.globals
}

// Run tokenizes, parses, and evaluates source in the global environment.
// Bindings made by the program persist into later Run calls, which is
// what the REPL relies on.
func (rt *Runtime) Run(source, filename string) (interp.Value, error) {
	rt.lastSrc[filename] = source

	program, diags := parser.ParseSource(source, filename)
	if len(diags) > 0 {
		return nil, &DiagnosticError{Diagnostics: diags}
	}
	return interp.Eval(program, rt.globals)
}

// Check tokenizes and parses source without evaluating it.
func (rt *Runtime) Check(source, filename string) []diagnostics.Diagnostic {
	_, diags := parser.ParseSource(source, filename)
	return diags
}

// Source returns the most recent source text seen for filename, for
// diagnostic annotation.
func (rt *Runtime) Source(filename string) (string, bool) {
	src, ok := rt.lastSrc[filename]
	return src, ok
}

// loadScript backs the run(path) builtin: it reads the file and
// evaluates it in the global environment, returning the script's
// top-level value.
func (rt *Runtime) loadScript(path string) (interp.Value, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read script %q: %w", path, err)
	}
	return rt.Run(string(data), path)
}

// DiagnosticError wraps diagnostics as an error.
type DiagnosticError struct {
	Diagnostics []diagnostics.Diagnostic
}

func (e *DiagnosticError) Error() string {
	msgs := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		msgs[i] = fmt.Sprintf("%s: %s", d.Code, d.Message)
	}
	return strings.Join(msgs, "; ")
}
