package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	gerrors "github.com/aledsdavies/gounit/pkgs/errors"
	"github.com/aledsdavies/gounit/pkgs/parser"
)

// Display writes human-readable diagnostics and progress
type Display struct {
	w io.Writer
	p Palette
}

// NewDisplay creates a display writing to w
func NewDisplay(w io.Writer, useColor bool) *Display {
	return &Display{w: w, p: NewPalette(w, useColor)}
}

// Error formats err for the terminal. Parse errors get a code snippet; an
// error holding several errors prints each of them.
func (d *Display) Error(err error) {
	if err == nil {
		return
	}
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range multi.Unwrap() {
			d.Error(e)
		}
		return
	}

	var pErr *parser.ParseError
	if errors.As(err, &pErr) {
		d.parseError(pErr)
		return
	}

	var gErr *gerrors.GounitError
	if errors.As(err, &gErr) && gErr.Type == gerrors.ErrStale {
		if files, ok := gErr.GetContext("files"); ok {
			fmt.Fprintf(d.w, "%s generated files are out of date\n", d.p.Error.Render("error:"))
			for _, f := range files.([]string) {
				fmt.Fprintf(d.w, "  %s\n", f)
			}
			fmt.Fprintf(d.w, "%s run gounit generate\n", d.p.Hint.Render("hint:"))
			return
		}
	}

	fmt.Fprintf(d.w, "%s %s\n", d.p.Error.Render("error:"), err.Error())
}

// parseError renders the header, then the snippet lines with a colored
// gutter and caret
func (d *Display) parseError(e *parser.ParseError) {
	lines := strings.Split(e.Error(), "\n")
	fmt.Fprintf(d.w, "%s %s\n", d.p.Error.Render("error:"), lines[0])

	for _, line := range lines[1:] {
		switch {
		case strings.HasPrefix(line, "  -->"):
			fmt.Fprintf(d.w, "%s%s\n", d.p.Gutter.Render("  -->"), strings.TrimPrefix(line, "  -->"))
		case len(line) >= 4 && line[3] == '|':
			gutter, rest := line[:4], line[4:]
			if strings.HasPrefix(gutter, "   ") && strings.HasSuffix(rest, "^") {
				rest = strings.TrimSuffix(rest, "^") + d.p.Caret.Render("^")
			}
			fmt.Fprintf(d.w, "%s%s\n", d.p.Gutter.Render(gutter), rest)
		default:
			fmt.Fprintln(d.w, line)
		}
	}
}

// Warning prints a warning line
func (d *Display) Warning(msg string) {
	fmt.Fprintf(d.w, "%s %s\n", d.p.Warning.Render("warning:"), msg)
}

// Wrote reports a written file
func (d *Display) Wrote(path string) {
	fmt.Fprintf(d.w, "%s %s\n", d.p.Success.Render("wrote"), path)
}

// OK reports a specification that parsed cleanly
func (d *Display) OK(path string) {
	fmt.Fprintf(d.w, "%s %s\n", d.p.Success.Render("ok"), path)
}

// Summary prints a faint summary line
func (d *Display) Summary(msg string) {
	fmt.Fprintln(d.w, d.p.Faint.Render(msg))
}
