// Package generator lowers a specification tree into a Go test file.
//
// Lowering (Lower) is total over a parsed ast.Root: every decision that can
// fail was made by the parser. Rendering (Render) executes the templates and
// formats the result with go/format.
package generator

import (
	"bytes"
	"fmt"
	"go/format"
	"go/token"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/template"

	"github.com/aledsdavies/gounit/core/ast"
	"github.com/aledsdavies/gounit/core/invariant"
)

// Layout selects how scopes are expressed in Go
type Layout string

const (
	// LayoutFunctions emits one top-level Test function per test
	LayoutFunctions Layout = "functions"
	// LayoutSubtests emits one Test function per root with t.Run scopes
	LayoutSubtests Layout = "subtests"
)

// ParseLayout validates a layout name. Empty means LayoutFunctions.
func ParseLayout(s string) (Layout, error) {
	switch Layout(s) {
	case "", LayoutFunctions:
		return LayoutFunctions, nil
	case LayoutSubtests:
		return LayoutSubtests, nil
	default:
		return "", fmt.Errorf("unknown layout %q (want %s or %s)", s, LayoutFunctions, LayoutSubtests)
	}
}

// TeardownMode selects how the per-test teardown is emitted
type TeardownMode string

const (
	// TeardownInline places teardown after the test body
	TeardownInline TeardownMode = "inline"
	// TeardownCleanup registers teardown with t.Cleanup before the body, so
	// it also runs when the test stops early
	TeardownCleanup TeardownMode = "cleanup"
)

// ParseTeardownMode validates a teardown mode. Empty means TeardownInline.
func ParseTeardownMode(s string) (TeardownMode, error) {
	switch TeardownMode(s) {
	case "", TeardownInline:
		return TeardownInline, nil
	case TeardownCleanup:
		return TeardownCleanup, nil
	default:
		return "", fmt.Errorf("unknown teardown mode %q (want %s or %s)", s, TeardownInline, TeardownCleanup)
	}
}

// DefaultPrefix is prepended to every test identifier
const DefaultPrefix = "test_"

// Options control lowering
type Options struct {
	Package  string // used when the specification has no package clause
	Layout   Layout
	Prefix   string // prepended to test identifiers, may be empty
	Parallel bool   // emit t.Parallel() in every test
	Teardown TeardownMode
}

// DefaultOptions returns the options used when nothing is configured
func DefaultOptions() Options {
	return Options{
		Layout:   LayoutFunctions,
		Prefix:   DefaultPrefix,
		Teardown: TeardownInline,
	}
}

// File is a lowered specification, ready for the templates
type File struct {
	Source   string // base name of the specification, for the header
	Package  string
	Imports  []Import
	Groups   []Group // LayoutFunctions
	Suite    *Suite  // LayoutSubtests
	Warnings []string

	// Collisions are top-level names declared twice. Render refuses a File
	// that has any.
	Collisions []Collision
}

// Collision is a generated name that two tests map to
type Collision struct {
	Name  string
	Pos   ast.Position // the later declaration
	First ast.Position
}

// Import is one import spec of the generated file
type Import struct {
	Name string
	Path string
}

// Suite is the single test function of the subtests layout
type Suite struct {
	Name   string
	Groups []Group
}

// Group is the output of one describe
type Group struct {
	Describe    string
	Guard       string // sync.Once variable, empty when nothing uses one
	TeardownAll *HookCode
	Notes       []string
	Tests       []TestCase
}

// TestCase is one emitted test, a function or a t.Run closure
type TestCase struct {
	Name            string
	Parallel        bool
	Guard           string
	SetupAll        *HookCode
	Setup           *HookCode
	Teardown        *HookCode
	TeardownCleanup bool
	Scoped          bool // wrap the body in its own block
	Body            string
}

// HookCode is a hook body with its comment
type HookCode struct {
	Kind  string
	Label string
	Body  string
}

// subtestGuard is the local once-guard name inside each describe closure
const subtestGuard = "setupAllOnce"

// Lower converts a parsed specification into a File.
func Lower(root *ast.Root, opts Options) *File {
	invariant.NotNil(root, "root")
	invariant.Precondition(root.Ident != "", "root scope must be named before lowering")

	f := &File{
		Package: root.Package,
	}
	if f.Package == "" {
		f.Package = opts.Package
	}
	if root.Source != "" && root.Source != "-" {
		f.Source = filepath.Base(root.Source)
	}

	declared := make(map[string]ast.Position)
	var groups []Group
	for _, d := range root.Describes {
		groups = append(groups, lowerDescribe(root, d, opts, f, declared))
	}

	needTesting, needSync := false, false
	for _, g := range groups {
		if len(g.Tests) > 0 {
			needTesting = true
		}
		if g.Guard != "" {
			needSync = true
		}
	}

	switch opts.Layout {
	case LayoutSubtests:
		if len(groups) > 0 {
			f.Suite = &Suite{Name: "Test_" + root.Ident, Groups: groups}
			needTesting = true
		}
	default:
		f.Groups = groups
	}

	f.Imports = lowerImports(root.Imports, needTesting, needSync)
	return f
}

// declare records a package-level name and notes a collision when it is
// already taken in this file
func (f *File) declare(declared map[string]ast.Position, name string, pos ast.Position) {
	if first, taken := declared[name]; taken {
		f.Collisions = append(f.Collisions, Collision{Name: name, Pos: pos, First: first})
		return
	}
	declared[name] = pos
}

func lowerDescribe(root *ast.Root, d *ast.Describe, opts Options, f *File, declared map[string]ast.Position) Group {
	g := Group{Describe: d.Ident}
	hasTests := len(d.Tests) > 0

	if d.SetupAll != nil && hasTests {
		if opts.Layout == LayoutSubtests {
			g.Guard = subtestGuard
		} else {
			g.Guard = fmt.Sprintf("setupAll_%s_%s", root.Ident, d.Ident)
			f.declare(declared, g.Guard, d.SetupAll.Pos)
		}
	}

	if d.TeardownAll != nil {
		switch {
		case opts.Layout == LayoutSubtests && hasTests:
			g.TeardownAll = hookCode(d.TeardownAll)
		case opts.Layout != LayoutSubtests:
			g.Notes = append(g.Notes, fmt.Sprintf(
				"teardown_all of describe %q is not emitted: the functions layout has no end-of-scope hook, use layout subtests", d.Ident))
			f.Warnings = append(f.Warnings, fmt.Sprintf(
				"describe %q: teardown_all is ignored in the %s layout", d.Ident, LayoutFunctions))
		}
	}

	cleanup := opts.Teardown == TeardownCleanup
	for _, t := range d.Tests {
		tc := TestCase{
			Parallel:        opts.Parallel,
			Guard:           g.Guard,
			TeardownCleanup: cleanup,
			Body:            t.Body.Source(),
			SetupAll:        hookCode(d.SetupAll),
			Setup:           hookCode(d.Setup),
			Teardown:        hookCode(d.Teardown),
		}
		tc.Scoped = tc.Setup != nil || (tc.Teardown != nil && !cleanup)

		if opts.Layout == LayoutSubtests {
			tc.Name = opts.Prefix + t.Ident
		} else {
			tc.Name = fmt.Sprintf("Test_%s_%s_%s%s", root.Ident, d.Ident, opts.Prefix, t.Ident)
			f.declare(declared, tc.Name, t.Pos)
		}
		g.Tests = append(g.Tests, tc)
	}
	return g
}

func hookCode(h *ast.Hook) *HookCode {
	if h == nil {
		return nil
	}
	return &HookCode{Kind: h.Kind.String(), Label: h.Label, Body: h.Body.Source()}
}

// lowerImports merges the imports generated code needs with the preamble
// imports, one spec per path, sorted by path as gofmt does.
func lowerImports(preamble []ast.Import, needTesting, needSync bool) []Import {
	seen := make(map[string]bool)
	var imports []Import
	add := func(name, path string) {
		if seen[path] {
			return
		}
		seen[path] = true
		imports = append(imports, Import{Name: name, Path: path})
	}

	if needTesting {
		add("", "testing")
	}
	if needSync {
		add("", "sync")
	}
	for _, imp := range preamble {
		add(imp.Name, imp.Path)
	}

	sort.SliceStable(imports, func(i, j int) bool {
		return imports[i].Path < imports[j].Path
	})
	return imports
}

var templateFuncs = template.FuncMap{
	"quote":   strconv.Quote,
	"comment": commentText,
}

// commentText flattens text so it fits on one comment line
func commentText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

var fileTemplate = template.Must(
	template.New("gounit").Funcs(templateFuncs).Parse(NewTemplateRegistry().GetAllTemplates()),
)

// Render executes the templates and formats the result
func Render(f *File) ([]byte, error) {
	if f.Package == "" {
		return nil, NewOptionsError("no package name: the specification has no package clause and none was configured")
	}
	if !token.IsIdentifier(f.Package) {
		return nil, NewOptionsError(fmt.Sprintf("invalid package name %q", f.Package))
	}

	if len(f.Collisions) > 0 {
		return nil, NewCollisionError(f.Collisions[0])
	}

	var buf bytes.Buffer
	if err := fileTemplate.ExecuteTemplate(&buf, "file", f); err != nil {
		return nil, NewTemplateError("file", err)
	}

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, NewFormatError(buf.Bytes(), err)
	}
	return formatted, nil
}

// Generate lowers and renders in one step
func Generate(root *ast.Root, opts Options) ([]byte, error) {
	return Render(Lower(root, opts))
}

// TestNames lists the top-level Test functions a File declares, for
// collision checks across files of one package.
func (f *File) TestNames() []string {
	if f.Suite != nil {
		return []string{f.Suite.Name}
	}
	var names []string
	for _, g := range f.Groups {
		for _, t := range g.Tests {
			names = append(names, t.Name)
		}
	}
	return names
}

// GuardNames lists package-level guard variables a File declares
func (f *File) GuardNames() []string {
	var names []string
	for _, g := range f.Groups {
		if g.Guard != "" {
			names = append(names, g.Guard)
		}
	}
	return names
}
