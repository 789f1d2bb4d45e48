package generator

import (
	"fmt"
	"strings"

	"github.com/aledsdavies/gounit/core/ast"
)

// GeneratorError provides error reporting with the offending generated text
type GeneratorError struct {
	Message   string
	ErrorType string // "options", "template", "format" or "collision"
	Source    string // unformatted output, for "format" errors
	Cause     error

	// Pos and Related locate the two declarations of a "collision" error
	Pos     *ast.Position
	Related *ast.Position
}

func (e *GeneratorError) Error() string {
	var builder strings.Builder

	if e.ErrorType != "" {
		builder.WriteString(fmt.Sprintf("[%s] ", e.ErrorType))
	}
	builder.WriteString(e.Message)
	if e.Cause != nil {
		builder.WriteString(fmt.Sprintf(": %v", e.Cause))
	}
	return builder.String()
}

func (e *GeneratorError) Unwrap() error {
	return e.Cause
}

// NewOptionsError reports unusable generation options
func NewOptionsError(message string) *GeneratorError {
	return &GeneratorError{Message: message, ErrorType: "options"}
}

// NewTemplateError reports a failed template execution
func NewTemplateError(templateName string, cause error) *GeneratorError {
	return &GeneratorError{
		Message:   fmt.Sprintf("error in template '%s'", templateName),
		ErrorType: "template",
		Cause:     cause,
	}
}

// NewFormatError reports output that go/format rejected. Source keeps the
// raw output so it can be inspected.
func NewFormatError(source []byte, cause error) *GeneratorError {
	return &GeneratorError{
		Message:   "generated code is not valid Go",
		ErrorType: "format",
		Source:    string(source),
		Cause:     cause,
	}
}

// NewCollisionError reports two tests of one file that lower to the same
// top-level name
func NewCollisionError(c Collision) *GeneratorError {
	pos, first := c.Pos, c.First
	return &GeneratorError{
		Message:   fmt.Sprintf("%s is declared twice, the first declaration is at %s", c.Name, first),
		ErrorType: "collision",
		Pos:       &pos,
		Related:   &first,
	}
}
