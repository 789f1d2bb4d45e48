package ast

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aledsdavies/gounit/core/verbatim"
)

// Position represents source location information
type Position = verbatim.Position

// BlockKind enumerates the keyword-introduced blocks of the grammar
type BlockKind int

const (
	KindDescribe BlockKind = iota
	KindTest
	KindSetup
	KindSetupAll
	KindTeardown
	KindTeardownAll
)

var kindKeywords = [...]string{
	KindDescribe:    "describe",
	KindTest:        "test",
	KindSetup:       "setup",
	KindSetupAll:    "setup_all",
	KindTeardown:    "teardown",
	KindTeardownAll: "teardown_all",
}

// String returns the keyword that introduces the block
func (k BlockKind) String() string {
	if int(k) >= 0 && int(k) < len(kindKeywords) {
		return kindKeywords[k]
	}
	return fmt.Sprintf("BlockKind(%d)", int(k))
}

// IsHook reports whether the kind is one of the four optional hooks
func (k BlockKind) IsHook() bool {
	switch k {
	case KindSetup, KindSetupAll, KindTeardown, KindTeardownAll:
		return true
	default:
		return false
	}
}

// KindForKeyword maps a keyword to its block kind
func KindForKeyword(word string) (BlockKind, bool) {
	for k, kw := range kindKeywords {
		if kw == word {
			return BlockKind(k), true
		}
	}
	return 0, false
}

// MemberKinds lists the kinds accepted inside a describe body, in the order
// they are reported in diagnostics
func MemberKinds() []BlockKind {
	return []BlockKind{KindSetupAll, KindSetup, KindTest, KindTeardown, KindTeardownAll}
}

// Root represents a whole specification file
type Root struct {
	Source    string // file name the specification was read from, may be empty
	Package   string // package clause, empty when the file has none
	Imports   []Import
	Ident     string // outer scope identifier
	Describes []*Describe
	Pos       Position
}

// Import is one import declared in the preamble
type Import struct {
	Name string // alias, "." or "_"; empty for a plain import
	Path string
	Pos  Position
}

// Describe is a named group of tests sharing hooks
type Describe struct {
	Ident       string
	SetupAll    *Hook
	Setup       *Hook
	Tests       []*Test
	Teardown    *Hook
	TeardownAll *Hook
	Pos         Position
}

// Test is one test case
type Test struct {
	Ident string
	Body  verbatim.Block
	Pos   Position
}

// Hook is a setup or teardown block
type Hook struct {
	Kind  BlockKind
	Label string // optional description, not an identifier
	Body  verbatim.Block
	Pos   Position
}

// Hook returns the hook of the given kind, or nil
func (d *Describe) Hook(kind BlockKind) *Hook {
	switch kind {
	case KindSetupAll:
		return d.SetupAll
	case KindSetup:
		return d.Setup
	case KindTeardown:
		return d.Teardown
	case KindTeardownAll:
		return d.TeardownAll
	default:
		return nil
	}
}

// SetHook stores h in its slot and returns the hook previously stored there.
// A non-nil result means the describe already had a hook of that kind.
func (d *Describe) SetHook(h *Hook) (previous *Hook) {
	switch h.Kind {
	case KindSetupAll:
		previous, d.SetupAll = d.SetupAll, h
	case KindSetup:
		previous, d.Setup = d.Setup, h
	case KindTeardown:
		previous, d.Teardown = d.Teardown, h
	case KindTeardownAll:
		previous, d.TeardownAll = d.TeardownAll, h
	default:
		panic(fmt.Sprintf("SetHook: %s is not a hook", h.Kind))
	}
	return previous
}

// Hooks returns the hooks present, in execution order
func (d *Describe) Hooks() []*Hook {
	var hooks []*Hook
	for _, h := range []*Hook{d.SetupAll, d.Setup, d.Teardown, d.TeardownAll} {
		if h != nil {
			hooks = append(hooks, h)
		}
	}
	return hooks
}

// TestCount returns the number of tests across all describes
func (r *Root) TestCount() int {
	n := 0
	for _, d := range r.Describes {
		n += len(d.Tests)
	}
	return n
}

// String renders the tree in DSL syntax. Describe and test names print in
// their sanitized form since the original labels are not kept.
func (r *Root) String() string {
	var b strings.Builder
	if r.Package != "" {
		fmt.Fprintf(&b, "package %s\n", r.Package)
	}
	for _, imp := range r.Imports {
		if imp.Name != "" {
			fmt.Fprintf(&b, "import %s %s\n", imp.Name, strconv.Quote(imp.Path))
		} else {
			fmt.Fprintf(&b, "import %s\n", strconv.Quote(imp.Path))
		}
	}
	if r.Ident != "" {
		fmt.Fprintf(&b, "suite %s\n", strconv.Quote(r.Ident))
	}
	for _, d := range r.Describes {
		b.WriteString(d.String())
	}
	return b.String()
}

func (d *Describe) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "describe %s {\n", strconv.Quote(d.Ident))
	writeHook(&b, d.SetupAll)
	writeHook(&b, d.Setup)
	for _, t := range d.Tests {
		fmt.Fprintf(&b, "\ttest %s { %s }\n", strconv.Quote(t.Ident), t.Body.Source())
	}
	writeHook(&b, d.Teardown)
	writeHook(&b, d.TeardownAll)
	b.WriteString("}\n")
	return b.String()
}

func writeHook(b *strings.Builder, h *Hook) {
	if h == nil {
		return
	}
	b.WriteString("\t" + h.Kind.String())
	if h.Label != "" {
		b.WriteString(" " + strconv.Quote(h.Label))
	}
	fmt.Fprintf(b, " { %s }\n", h.Body.Source())
}
