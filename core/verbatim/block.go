// Package verbatim handles the Go statement bodies embedded in a gounit
// specification.
//
// A body is never interpreted. It is located (the matching closing brace is
// found with the Go scanner, so braces inside strings, runes and comments do
// not count), checked for syntax with the Go parser, and later re-emitted
// unchanged into generated code.
package verbatim

import (
	"fmt"
	"go/parser"
	"go/scanner"
	"go/token"
	"io"
	"strings"
)

// Position is a location in specification source.
// Line and Column are 1-based, Column counts bytes, Offset is 0-based.
type Position struct {
	Offset int `json:"offset"`
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// IsValid reports whether the position was set.
func (p Position) IsValid() bool {
	return p.Line > 0
}

// Block is an opaque body: the source text strictly between a pair of braces.
type Block struct {
	Text  string
	Open  Position // the '{'
	Close Position // the matching '}'
}

// IsEmpty reports whether the body holds nothing but whitespace.
func (b Block) IsEmpty() bool {
	return strings.TrimSpace(b.Text) == ""
}

// Source returns the body with surrounding whitespace removed. Interior text,
// including raw string contents, is untouched.
func (b Block) Source() string {
	return strings.TrimSpace(b.Text)
}

// Emit writes the body to w.
func (b Block) Emit(w io.Writer) error {
	_, err := io.WriteString(w, b.Source())
	return err
}

// Error is a malformed body: unbalanced braces or invalid Go syntax.
type Error struct {
	Pos     Position
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}

// Scan reads the body that opens at src[open], which must be '{'. openPos is
// the source position of that brace. The returned block ends at the matching
// closing brace; callers resume reading at block.Close.Offset+1.
func Scan(src []byte, open int, openPos Position) (Block, error) {
	if open < 0 || open >= len(src) || src[open] != '{' {
		return Block{}, &Error{Pos: openPos, Message: "expected '{' to open a block body"}
	}

	sub := src[open:]
	fset := token.NewFileSet()
	file := fset.AddFile("", fset.Base(), len(sub))

	var errs scanner.ErrorList
	var s scanner.Scanner
	s.Init(file, sub, func(pos token.Position, msg string) { errs.Add(pos, msg) }, 0)

	depth := 0
	for {
		pos, tok, _ := s.Scan()
		if errs.Len() > 0 {
			first := errs[0]
			return Block{}, &Error{Pos: mapPosition(openPos, first.Pos.Line, first.Pos.Column, first.Pos.Offset), Message: first.Msg}
		}

		switch tok {
		case token.LBRACE:
			depth++
		case token.RBRACE:
			depth--
			if depth == 0 {
				p := fset.Position(pos)
				return Block{
					Text:  string(sub[1:p.Offset]),
					Open:  openPos,
					Close: mapPosition(openPos, p.Line, p.Column, p.Offset),
				}, nil
			}
		case token.EOF:
			return Block{}, &Error{Pos: openPos, Message: "block body is never closed, missing '}'"}
		}
	}
}

// wrapPrefix turns a body into a parseable Go file. It has no newline so that
// line 1 of the wrapper is the line of the opening brace.
const wrapPrefix = "package p;func _(){"

// Validate checks that the body is a syntactically valid sequence of Go
// statements. Errors point at the original source.
func Validate(b Block) error {
	src := wrapPrefix + b.Text + "\n}"
	fset := token.NewFileSet()
	_, err := parser.ParseFile(fset, "", src, parser.SkipObjectResolution)
	if err == nil {
		return nil
	}

	list, ok := err.(scanner.ErrorList)
	if !ok || len(list) == 0 {
		return &Error{Pos: b.Open, Message: err.Error()}
	}

	first := list[0]
	line, col := first.Pos.Line, first.Pos.Column
	if line == 1 {
		// Rebase so column 1 is the opening brace, as in Scan.
		col -= len(wrapPrefix) - 1
	}
	bodyOffset := first.Pos.Offset - len(wrapPrefix)
	if bodyOffset < 0 {
		bodyOffset = 0
	}

	// Positions past the body (the synthetic closing brace) clamp to it.
	if bodyOffset > len(b.Text) {
		return &Error{Pos: b.Close, Message: first.Msg}
	}

	return &Error{
		Pos: Position{
			Offset: b.Open.Offset + 1 + bodyOffset,
			Line:   b.Open.Line + line - 1,
			Column: columnOnLine(b.Open, line, col),
		},
		Message: first.Msg,
	}
}

// mapPosition converts a position relative to the sub-slice that starts at
// the opening brace back into source coordinates.
func mapPosition(open Position, line, col, offset int) Position {
	return Position{
		Offset: open.Offset + offset,
		Line:   open.Line + line - 1,
		Column: columnOnLine(open, line, col),
	}
}

func columnOnLine(open Position, line, col int) int {
	if line == 1 {
		return open.Column + col - 1
	}
	return col
}
