package parser

import (
	"fmt"
	"strings"

	"github.com/aledsdavies/gounit/core/ast"
)

// ErrorType represents different categories of parsing errors
type ErrorType int

const (
	ErrorSyntax     ErrorType = iota // lexical error: bad character, unterminated string or comment
	ErrorUnexpected                  // a token other than the expected set
	ErrorDuplicate                   // a second hook of one kind, or colliding names
	ErrorBody                        // unbalanced or syntactically invalid Go body
	ErrorInvalid                     // well-formed but unusable: empty label, bad import path
)

func (e ErrorType) String() string {
	switch e {
	case ErrorSyntax:
		return "syntax error"
	case ErrorUnexpected:
		return "unexpected token"
	case ErrorDuplicate:
		return "duplicate"
	case ErrorBody:
		return "invalid body"
	case ErrorInvalid:
		return "invalid"
	default:
		return "error"
	}
}

// ParseError is a positioned parse failure. Parsing stops at the first one.
type ParseError struct {
	Type       ErrorType
	Message    string
	Pos        ast.Position
	Filename   string
	Input      string
	Expected   []string      // keywords or tokens accepted at Pos, for ErrorUnexpected
	Suggestion string        // closest expected keyword, if any
	Related    *ast.Position // first definition for ErrorDuplicate, enclosing block otherwise
	Cause      error
}

// Error returns the formatted error message with a code snippet
func (e *ParseError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Type, e.Message)
	if e.Suggestion != "" {
		fmt.Fprintf(&b, " (did you mean `%s`?)", e.Suggestion)
	}
	if snippet := e.createCodeSnippet(); snippet != "" {
		b.WriteString("\n")
		b.WriteString(snippet)
	}
	return b.String()
}

// Short returns a single-line "file:line:col: message" form
func (e *ParseError) Short() string {
	msg := e.Message
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean `%s`?)", e.Suggestion)
	}
	return fmt.Sprintf("%s: %s: %s", e.location(), e.Type, msg)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

func (e *ParseError) location() string {
	if e.Filename == "" {
		return e.Pos.String()
	}
	return e.Filename + ":" + e.Pos.String()
}

// createCodeSnippet renders the offending line in Rust/Clang style
func (e *ParseError) createCodeSnippet() string {
	if e.Input == "" || !e.Pos.IsValid() {
		return ""
	}

	lines := strings.Split(e.Input, "\n")
	if e.Pos.Line > len(lines) {
		return ""
	}
	lineContent := strings.TrimRight(lines[e.Pos.Line-1], "\r")

	var snippet strings.Builder
	snippet.WriteString(fmt.Sprintf("  --> %s\n", e.location()))
	snippet.WriteString("   |\n")
	snippet.WriteString(fmt.Sprintf("%2d | %s\n", e.Pos.Line, lineContent))
	snippet.WriteString("   | ")
	if e.Pos.Column > 0 && e.Pos.Column <= len(lineContent)+1 {
		// Keep tabs so the caret lines up under tab-indented source.
		snippet.WriteString(caretPadding(lineContent[:e.Pos.Column-1]) + "^")
	}
	return snippet.String()
}

func caretPadding(prefix string) string {
	var b strings.Builder
	for _, r := range prefix {
		if r == '\t' {
			b.WriteByte('\t')
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

// formatExpected joins keywords as "`a`, `b` or `c`"
func formatExpected(expected []string) string {
	quoted := make([]string, len(expected))
	for i, e := range expected {
		if strings.HasPrefix(e, "'") {
			quoted[i] = e
		} else {
			quoted[i] = "`" + e + "`"
		}
	}
	switch len(quoted) {
	case 0:
		return ""
	case 1:
		return quoted[0]
	default:
		return strings.Join(quoted[:len(quoted)-1], ", ") + " or " + quoted[len(quoted)-1]
	}
}
