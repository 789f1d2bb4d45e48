package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aledsdavies/gounit/pkgs/parser"
)

// Error types for different categories of failures
const (
	// Input/File errors
	ErrInputRead    = "INPUT_READ_ERROR"
	ErrFileNotFound = "FILE_NOT_FOUND"
	ErrOutputWrite  = "OUTPUT_WRITE_ERROR"

	// Usage errors
	ErrInvalidArguments = "INVALID_ARGUMENTS"
	ErrConfigInvalid    = "CONFIG_INVALID"
	ErrPackageUnknown   = "PACKAGE_UNKNOWN"

	// Specification errors
	ErrFileParse = "FILE_PARSE_ERROR"

	// Generation errors
	ErrCodeGeneration = "CODE_GENERATION_ERROR"
	ErrStale          = "STALE_OUTPUT"
)

// Exit codes reported by the CLI
const (
	ExitSuccess          = 0
	ExitInvalidArguments = 1
	ExitIOError          = 2
	ExitParseError       = 3
	ExitGenerationError  = 4
)

var exitCodes = map[string]int{
	ErrInputRead:        ExitIOError,
	ErrFileNotFound:     ExitIOError,
	ErrOutputWrite:      ExitIOError,
	ErrInvalidArguments: ExitInvalidArguments,
	ErrConfigInvalid:    ExitInvalidArguments,
	ErrPackageUnknown:   ExitInvalidArguments,
	ErrFileParse:        ExitParseError,
	ErrCodeGeneration:   ExitGenerationError,
	ErrStale:            ExitGenerationError,
}

// GounitError represents a structured error with type and context
type GounitError struct {
	Type    string
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error implements the error interface
func (e *GounitError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if file, ok := e.Context["file"]; ok {
		b.Reset()
		fmt.Fprintf(&b, "%v: %s", file, e.Message)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap allows error unwrapping
func (e *GounitError) Unwrap() error {
	return e.Cause
}

// New creates a new GounitError
func New(errorType, message string) *GounitError {
	return &GounitError{
		Type:    errorType,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// Wrap creates a new GounitError wrapping an existing error
func Wrap(errorType, message string, cause error) *GounitError {
	return &GounitError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (e *GounitError) WithContext(key string, value interface{}) *GounitError {
	e.Context[key] = value
	return e
}

// GetContext returns context value by key
func (e *GounitError) GetContext(key string) (interface{}, bool) {
	value, exists := e.Context[key]
	return value, exists
}

// ContextKeys returns the context keys in sorted order, for stable logging
func (e *GounitError) ContextKeys() []string {
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Helper functions for common error scenarios

// NewInputError creates an input-related error
func NewInputError(file string, cause error) *GounitError {
	return Wrap(ErrInputRead, "cannot read specification", cause).WithContext("file", file)
}

// NewParseError wraps a parse failure for one file
func NewParseError(file string, cause error) *GounitError {
	return Wrap(ErrFileParse, "invalid specification", cause).WithContext("file", file)
}

// NewGenerationError creates a code generation error
func NewGenerationError(file string, cause error) *GounitError {
	return Wrap(ErrCodeGeneration, "cannot generate tests", cause).WithContext("file", file)
}

// NewOutputError creates an error for a failed write of generated code
func NewOutputError(file string, cause error) *GounitError {
	return Wrap(ErrOutputWrite, "cannot write generated tests", cause).WithContext("file", file)
}

// NewConfigError creates a configuration error
func NewConfigError(file string, cause error) *GounitError {
	e := Wrap(ErrConfigInvalid, "invalid configuration", cause)
	if file != "" {
		e.WithContext("file", file)
	}
	return e
}

// IsErrorType checks if an error, or any error it wraps, is of a specific type
func IsErrorType(err error, errorType string) bool {
	var gErr *GounitError
	if stderrors.As(err, &gErr) {
		return gErr.Type == errorType
	}
	return false
}

// ExitCode maps an error to the process exit code. Parse errors not wrapped
// in a GounitError still map to ExitParseError.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var gErr *GounitError
	if stderrors.As(err, &gErr) {
		if code, ok := exitCodes[gErr.Type]; ok {
			return code
		}
	}
	var pErr *parser.ParseError
	if stderrors.As(err, &pErr) {
		return ExitParseError
	}
	return ExitInvalidArguments
}
