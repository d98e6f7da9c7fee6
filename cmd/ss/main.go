// Command ss is the sscript CLI: script runner, syntax checker, and
// interactive shell.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/peterh/liner"

	"github.com/sscript-lang/sscript/pkg/diagnostics"
	"github.com/sscript-lang/sscript/pkg/interp"
	"github.com/sscript-lang/sscript/pkg/runtime"
)

const (
	historyFile = ".sscript_history"
	prompt      = "ss> "
)

func main() {
	if len(os.Args) < 2 {
		os.Exit(cmdRepl())
	}

	switch cmd := os.Args[1]; cmd {
	case "run":
		os.Exit(cmdRun(os.Args[2:]))
	case "check":
		os.Exit(cmdCheck(os.Args[2:]))
	case "repl":
		os.Exit(cmdRepl())
	case "help", "--help", "-h":
		usage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		usage(os.Stderr)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: ss [command] [options]")
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  run <file>    run a script (use '-' for stdin)")
	fmt.Fprintln(w, "  check <file>  parse a script and report diagnostics")
	fmt.Fprintln(w, "  repl          start the interactive shell (default)")
}

func cmdRun(args []string) int {
	var file string
	pretty := false

	for _, arg := range args {
		switch arg {
		case "--pretty":
			pretty = true
		default:
			if !strings.HasPrefix(arg, "-") || arg == "-" {
				file = arg
			}
		}
	}
	if file == "" {
		fmt.Fprintln(os.Stderr, "usage: ss run <file> [--pretty]")
		return 1
	}

	source, filename, code := readSource(file)
	if code != 0 {
		return code
	}

	rt := runtime.New()
	value, err := rt.Run(source, filename)
	if err != nil {
		return reportError(err, source, filename, pretty)
	}

	if _, isNull := value.(interp.Null); !isNull {
		fmt.Println(interp.Render(value))
	}
	return 0
}

func cmdCheck(args []string) int {
	var file string
	pretty := false

	for _, arg := range args {
		switch arg {
		case "--pretty":
			pretty = true
		default:
			if !strings.HasPrefix(arg, "-") || arg == "-" {
				file = arg
			}
		}
	}
	if file == "" {
		fmt.Fprintln(os.Stderr, "usage: ss check <file> [--pretty]")
		return 1
	}

	source, filename, code := readSource(file)
	if code != 0 {
		return code
	}

	rt := runtime.New()
	diags := rt.Check(source, filename)
	if len(diags) > 0 {
		fmt.Fprintln(os.Stderr, diagnostics.FormatDiagnostics(diags, pretty))
		if pretty {
			printAnnotations(diags, source, filename)
		}
		return 2
	}
	if pretty {
		fmt.Println("No errors found.")
	} else {
		fmt.Println("[]")
	}
	return 0
}

func cmdRepl() int {
	fmt.Println("sscript shell. Ctrl+C cancels input, Ctrl+D exits. Type :quit to exit.")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	rt := runtime.New()

	for {
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			fmt.Println()
			return 0
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, ":") {
			switch strings.ToLower(trimmed) {
			case ":quit":
				return 0
			default:
				fmt.Println("unknown command. Type :quit to exit.")
			}
			continue
		}

		ln.AppendHistory(line)

		value, err := rt.Run(line, "<stdin>")
		if err != nil {
			reportError(err, line, "<stdin>", true)
			continue
		}
		if _, isNull := value.(interp.Null); !isNull {
			fmt.Println(interp.Render(value))
		}
	}
}

func readSource(file string) (string, string, int) {
	if file == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error reading stdin: %s\n", err)
			return "", "", 1
		}
		return string(data), "<stdin>", 0
	}

	source, err := os.ReadFile(file)
	if err != nil {
		diag := diagnostics.MakeDiag(diagnostics.EIO, fmt.Sprintf("cannot read file: %s", file), nil, "")
		fmt.Fprintln(os.Stderr, diagnostics.FormatDiagnostic(diag, false))
		return "", "", 1
	}
	return string(source), file, 0
}

// reportError prints a pipeline error with its diagnostics and returns
// the process exit code for it: 2 for lex/parse errors, 4 for runtime
// errors.
func reportError(err error, source, filename string, pretty bool) int {
	var diagErr *runtime.DiagnosticError
	if errors.As(err, &diagErr) {
		fmt.Fprintln(os.Stderr, diagnostics.FormatDiagnostics(diagErr.Diagnostics, pretty))
		if pretty {
			printAnnotations(diagErr.Diagnostics, source, filename)
		}
		return 2
	}

	var rtErr *interp.RuntimeError
	if errors.As(err, &rtErr) {
		fmt.Fprintln(os.Stderr, diagnostics.FormatDiagnostic(rtErr.Diag, pretty))
		if pretty {
			printAnnotations([]diagnostics.Diagnostic{rtErr.Diag}, source, filename)
		}
		return 4
	}

	fmt.Fprintln(os.Stderr, err.Error())
	return 4
}

// printAnnotations renders caret underlines for diagnostics whose span
// belongs to the given file.
func printAnnotations(diags []diagnostics.Diagnostic, source, filename string) {
	for _, d := range diags {
		if d.Span == nil || d.Span.File != filename {
			continue
		}
		if ann := diagnostics.Annotate(d, source); ann != "" {
			fmt.Fprintln(os.Stderr, ann)
		}
	}
}
