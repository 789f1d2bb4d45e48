package main

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Palette holds the styles used for terminal output. Without color every
// style renders text unchanged.
type Palette struct {
	Error   lipgloss.Style
	Warning lipgloss.Style
	Success lipgloss.Style
	Hint    lipgloss.Style
	Gutter  lipgloss.Style
	Caret   lipgloss.Style
	Faint   lipgloss.Style
}

// NewPalette returns the styles for w
func NewPalette(w io.Writer, useColor bool) Palette {
	if !useColor {
		plain := lipgloss.NewStyle()
		return Palette{plain, plain, plain, plain, plain, plain, plain}
	}
	r := lipgloss.NewRenderer(w)
	return Palette{
		Error:   r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Warning: r.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
		Success: r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		Hint:    r.NewStyle().Foreground(lipgloss.Color("6")),
		Gutter:  r.NewStyle().Foreground(lipgloss.Color("12")),
		Caret:   r.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
		Faint:   r.NewStyle().Foreground(lipgloss.Color("244")),
	}
}

// ShouldUseColor determines if color output should be used on w.
// Respects --no-color flag and NO_COLOR environment variable.
func ShouldUseColor(noColorFlag bool, w io.Writer) bool {
	if noColorFlag {
		return false
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fileInfo, err := f.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
