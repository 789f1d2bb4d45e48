package engine

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/aledsdavies/gounit/core/ast"
	"github.com/aledsdavies/gounit/pkgs/generator"
	"github.com/aledsdavies/gounit/pkgs/parser"
)

// StdinName is the input path that reads the specification from stdin
const StdinName = "-"

// GenerationResult is the result of compiling one specification
type GenerationResult struct {
	Input     string // specification path, StdinName for stdin
	Output    string // target file, empty for stdin
	Package   string // package of the generated file
	Code      []byte // formatted Go source
	Root      *ast.Root
	File      *generator.File
	Warnings  []string
	Telemetry *parser.ParseTelemetry
}

// String returns the generated code as a string
func (g *GenerationResult) String() string {
	return string(g.Code)
}

// IsStdin reports whether the specification was read from stdin
func (g *GenerationResult) IsStdin() bool {
	return g.Input == StdinName
}

// UpToDate reports whether path already holds exactly the generated code
func (g *GenerationResult) UpToDate(path string) bool {
	current, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return bytes.Equal(current, g.Code)
}

// WriteFile writes the generated code to path unless it is already up to
// date, and reports whether the file changed
func (g *GenerationResult) WriteFile(path string) (bool, error) {
	if g.UpToDate(path) {
		return false, nil
	}
	if err := os.WriteFile(path, g.Code, 0o644); err != nil {
		return false, err
	}
	return true, nil
}

// RunResult is the outcome of one run over several specifications
type RunResult struct {
	Results []*GenerationResult // in input order
	Written []string            // files that changed on disk
}

// Summary returns a one-line summary of the run
func (r *RunResult) Summary() string {
	var b strings.Builder
	tests := 0
	for _, res := range r.Results {
		tests += res.Root.TestCount()
	}
	b.WriteString(plural(len(r.Results), "specification"))
	b.WriteString(", ")
	b.WriteString(plural(tests, "test"))
	b.WriteString(", ")
	b.WriteString(plural(len(r.Written), "file"))
	b.WriteString(" written")
	return b.String()
}

// Warnings returns every warning of the run, prefixed with its input
func (r *RunResult) Warnings() []string {
	var out []string
	for _, res := range r.Results {
		for _, w := range res.Warnings {
			out = append(out, res.Input+": "+w)
		}
	}
	return out
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
