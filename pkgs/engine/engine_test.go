package engine

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/gounit/core/naming"
	"github.com/aledsdavies/gounit/pkgs/config"
	gerrors "github.com/aledsdavies/gounit/pkgs/errors"
	"github.com/aledsdavies/gounit/pkgs/parser"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

const additionSpec = `describe "Addition" {
	test "adds" { t.Log("adds") }
	test "subtracts" { t.Log("subtracts") }
}
`

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b.gounit"), "")
	writeFile(t, filepath.Join(dir, "a.gounit"), "")
	writeFile(t, filepath.Join(dir, "notes.txt"), "")
	writeFile(t, filepath.Join(dir, "sub", "c.gounit"), "")
	writeFile(t, filepath.Join(dir, "testdata", "skip.gounit"), "")
	writeFile(t, filepath.Join(dir, ".hidden", "skip.gounit"), "")
	writeFile(t, filepath.Join(dir, "vendor", "skip.gounit"), "")

	files, err := Discover([]string{dir, filepath.Join(dir, "a.gounit"), StdinName})
	require.NoError(t, err)

	expected := []string{
		filepath.Join(dir, "a.gounit"),
		filepath.Join(dir, "b.gounit"),
		filepath.Join(dir, "sub", "c.gounit"),
		StdinName,
	}
	if diff := cmp.Diff(expected, files); diff != "" {
		t.Errorf("discovered files mismatch (-want +got):\n%s", diff)
	}

	_, err = Discover([]string{filepath.Join(dir, "missing.gounit")})
	require.Error(t, err)
	assert.True(t, gerrors.IsErrorType(err, gerrors.ErrFileNotFound))
	assert.Equal(t, gerrors.ExitIOError, gerrors.ExitCode(err))
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		spec, suffix, expected string
	}{
		{"calc.gounit", config.DefaultSuffix, "calc_gounit_test.go"},
		{filepath.Join("pkg", "math", "add.gounit"), "_spec_test.go", filepath.Join("pkg", "math", "add_spec_test.go")},
		{"noext", "_test.go", "noext_test.go"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, OutputPath(tt.spec, tt.suffix))
	}
}

func TestInferPackage(t *testing.T) {
	dir := t.TempDir()

	pkg, err := InferPackage(dir, config.DefaultSuffix)
	require.NoError(t, err)
	assert.Empty(t, pkg)

	writeFile(t, filepath.Join(dir, "old_gounit_test.go"), "package stale\n")
	writeFile(t, filepath.Join(dir, "calc_test.go"), "package calc_test\n")
	pkg, err = InferPackage(dir, config.DefaultSuffix)
	require.NoError(t, err)
	assert.Equal(t, "calc_test", pkg, "generated files are ignored")

	writeFile(t, filepath.Join(dir, "calc.go"), "// Package calc adds.\npackage calc\n\nfunc Add(a, b int) int { return a + b }\n")
	pkg, err = InferPackage(dir, config.DefaultSuffix)
	require.NoError(t, err)
	assert.Equal(t, "calc", pkg, "non-test files win")

	pkg, err = InferPackage(filepath.Join(dir, "missing"), config.DefaultSuffix)
	require.NoError(t, err)
	assert.Empty(t, pkg)
}

func TestPackageResolution(t *testing.T) {
	dir := t.TempDir()
	spec := filepath.Join(dir, "calc.gounit")
	writeFile(t, spec, additionSpec)

	_, err := New(nil).Compile(spec)
	require.Error(t, err)
	assert.True(t, gerrors.IsErrorType(err, gerrors.ErrPackageUnknown))
	assert.Equal(t, gerrors.ExitInvalidArguments, gerrors.ExitCode(err))

	writeFile(t, filepath.Join(dir, "calc.go"), "package calc\n")
	res, err := New(nil).Compile(spec)
	require.NoError(t, err)
	assert.Equal(t, "calc", res.Package)

	cfg := config.Default()
	cfg.Package = "configured"
	res, err = New(cfg).Compile(spec)
	require.NoError(t, err)
	assert.Equal(t, "configured", res.Package)

	writeFile(t, spec, "package fromspec\n"+additionSpec)
	res, err = New(cfg).Compile(spec)
	require.NoError(t, err)
	assert.Equal(t, "fromspec", res.Package)
}

func TestGenerateWritesNextToSpecification(t *testing.T) {
	dir := t.TempDir()
	spec := filepath.Join(dir, "calc.gounit")
	writeFile(t, spec, "package calc\n"+additionSpec)

	e := New(nil)
	run, err := e.Generate(context.Background(), []string{spec})
	require.NoError(t, err)

	out := filepath.Join(dir, "calc_gounit_test.go")
	assert.Equal(t, []string{out}, run.Written)
	assert.Equal(t, "1 specification, 2 tests, 1 file written", run.Summary())

	code, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(code), "// Code generated by gounit from calc.gounit. DO NOT EDIT."))
	assert.Contains(t, string(code), "func Test_tests_addition_test_adds(t *testing.T)")

	// An unchanged specification leaves the output alone.
	run, err = e.Generate(context.Background(), []string{spec})
	require.NoError(t, err)
	assert.Empty(t, run.Written)
}

func TestParseErrorWritesNothing(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.gounit")
	bad := filepath.Join(dir, "bad.gounit")
	writeFile(t, good, "package calc\n"+additionSpec)
	writeFile(t, bad, "package calc\ndescribe \"d\" {\n\tsetup {}\n\tsetup {}\n}\n")

	_, err := New(nil).Generate(context.Background(), []string{good, bad})
	require.Error(t, err)
	assert.Equal(t, gerrors.ExitParseError, gerrors.ExitCode(err))

	var pErr *parser.ParseError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, parser.ErrorDuplicate, pErr.Type)
	assert.Contains(t, err.Error(), bad)

	_, statErr := os.Stat(filepath.Join(dir, "good_gounit_test.go"))
	assert.True(t, os.IsNotExist(statErr), "no output may be written when any file fails")
}

func TestGenerationErrorType(t *testing.T) {
	dir := t.TempDir()
	spec := filepath.Join(dir, "calc.gounit")
	writeFile(t, spec, additionSpec)

	cfg := config.Default()
	cfg.Package = "not-valid"
	_, err := New(cfg).Compile(spec)
	require.Error(t, err)
	assert.True(t, gerrors.IsErrorType(err, gerrors.ErrCodeGeneration))
	assert.Equal(t, gerrors.ExitGenerationError, gerrors.ExitCode(err))
}

func TestNamesCollidingWithinOneFile(t *testing.T) {
	dir := t.TempDir()
	spec := filepath.Join(dir, "calc.gounit")
	writeFile(t, spec, `package calc
describe "a" {
	test "b test c" {}
}
describe "a test b" {
	test "c" {}
}
`)

	_, err := New(nil).Generate(context.Background(), []string{spec})
	require.Error(t, err)
	assert.Equal(t, gerrors.ExitParseError, gerrors.ExitCode(err))

	var pErr *parser.ParseError
	require.True(t, errors.As(err, &pErr))
	assert.Equal(t, parser.ErrorDuplicate, pErr.Type)
	assert.Contains(t, pErr.Short(), spec+":6:2")
	assert.Contains(t, pErr.Message, "Test_tests_a_test_b_test_c is declared twice, the first declaration is at 3:2")
	require.NotNil(t, pErr.Related)
	assert.Equal(t, 3, pErr.Related.Line)
	assert.NoFileExists(t, OutputPath(spec, config.DefaultSuffix))

	noPrefix := ""
	cfg := config.Default()
	cfg.Prefix = &noPrefix
	_, err = New(cfg).Compile(spec)
	assert.NoError(t, err, "without a prefix the names differ")
}

func TestCollisionsAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.gounit")
	b := filepath.Join(dir, "b.gounit")
	writeFile(t, a, "package calc\n"+additionSpec)
	writeFile(t, b, "package calc\n"+additionSpec)

	_, err := New(nil).CompileAll(context.Background(), []string{a, b})
	require.Error(t, err)
	assert.True(t, gerrors.IsErrorType(err, gerrors.ErrCodeGeneration))
	assert.Contains(t, err.Error(), "Test_tests_addition_test_adds is generated by both")

	cfg := config.Default()
	cfg.Naming = config.NamingContent
	results, err := New(cfg).CompileAll(context.Background(), []string{a, b})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.NotEqual(t, results[0].Root.Ident, results[1].Root.Ident)

	cfg.Naming = config.NamingSequence
	results, err = New(cfg).CompileAll(context.Background(), []string{a, b})
	require.NoError(t, err)
	idents := []string{results[0].Root.Ident, results[1].Root.Ident}
	assert.ElementsMatch(t, []string{"gounit_0", "gounit_1"}, idents)
}

func TestSameNamesInDifferentPackagesDoNotCollide(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "one", "a.gounit")
	b := filepath.Join(dir, "two", "b.gounit")
	writeFile(t, a, "package one\n"+additionSpec)
	writeFile(t, b, "package two\n"+additionSpec)

	results, err := New(nil).CompileAll(context.Background(), []string{a, b})
	require.NoError(t, err)
	assert.Equal(t, a, results[0].Input)
	assert.Equal(t, b, results[1].Input)
}

func TestResultsKeepInputOrder(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"e", "d", "c", "b", "a"} {
		p := filepath.Join(dir, name+".gounit")
		writeFile(t, p, "package calc\nsuite \""+name+"\"\n"+additionSpec)
		paths = append(paths, p)
	}

	results, err := New(nil, WithJobs(2)).CompileAll(context.Background(), paths)
	require.NoError(t, err)
	for i, res := range results {
		assert.Equal(t, paths[i], res.Input)
	}
}

func TestCheckReportsEveryFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.gounit")
	bad1 := filepath.Join(dir, "bad1.gounit")
	bad2 := filepath.Join(dir, "bad2.gounit")
	writeFile(t, good, additionSpec)
	writeFile(t, bad1, `describe "d" { it "x" {} }`)
	writeFile(t, bad2, `describe "d" { test "x" { if { } }`)

	e := New(nil)
	require.NoError(t, e.Check(context.Background(), []string{good}))

	err := e.Check(context.Background(), []string{bad1, good, bad2})
	require.Error(t, err)

	var multi *MultiError
	require.True(t, errors.As(err, &multi))
	require.Len(t, multi.Errors, 2)
	assert.Contains(t, multi.Errors[0].Error(), bad1)
	assert.Contains(t, multi.Errors[1].Error(), bad2)
	assert.Equal(t, gerrors.ExitParseError, gerrors.ExitCode(err))
}

func TestStale(t *testing.T) {
	dir := t.TempDir()
	spec := filepath.Join(dir, "calc.gounit")
	writeFile(t, spec, "package calc\n"+additionSpec)
	e := New(nil)

	stale, err := e.Stale(context.Background(), []string{spec})
	require.Error(t, err)
	assert.True(t, gerrors.IsErrorType(err, gerrors.ErrStale))
	assert.Equal(t, []string{filepath.Join(dir, "calc_gounit_test.go")}, stale)

	_, err = e.Generate(context.Background(), []string{spec})
	require.NoError(t, err)
	stale, err = e.Stale(context.Background(), []string{spec})
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func TestStdin(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "calc.go"), "package calc\n")

	e := New(nil, WithStdin(strings.NewReader(additionSpec), dir))
	run, err := e.Generate(context.Background(), []string{StdinName})
	require.NoError(t, err)
	require.Len(t, run.Results, 1)
	assert.Empty(t, run.Written, "stdin output is returned, not written")

	res := run.Results[0]
	assert.True(t, res.IsStdin())
	assert.Empty(t, res.Output)
	assert.Equal(t, "calc", res.Package)
	assert.Contains(t, res.String(), "func Test_tests_addition_test_adds")
}

func TestWarningsForFunctionsLayoutTeardownAll(t *testing.T) {
	dir := t.TempDir()
	spec := filepath.Join(dir, "calc.gounit")
	writeFile(t, spec, "package calc\ndescribe \"d\" { teardown_all {} test \"t\" {} }\n")

	run, err := New(nil).Generate(context.Background(), []string{spec})
	require.NoError(t, err)
	require.Len(t, run.Warnings(), 1)
	assert.True(t, strings.HasPrefix(run.Warnings()[0], spec+": "))
}

func TestInjectedNamer(t *testing.T) {
	dir := t.TempDir()
	spec := filepath.Join(dir, "calc.gounit")
	writeFile(t, spec, "package calc\n"+additionSpec)

	res, err := New(nil, WithScopeNamer(naming.Fixed("unit"))).Compile(spec)
	require.NoError(t, err)
	assert.Equal(t, "unit", res.Root.Ident)
}

func TestCanceledContext(t *testing.T) {
	dir := t.TempDir()
	spec := filepath.Join(dir, "calc.gounit")
	writeFile(t, spec, "package calc\n"+additionSpec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(nil).CompileAll(ctx, []string{spec})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExampleIsUpToDate(t *testing.T) {
	spec := filepath.Join("..", "..", "examples", "calculator", "calc.gounit")
	stale, err := New(nil).Stale(context.Background(), []string{spec})
	require.NoError(t, err, "run go generate ./examples/...")
	assert.Empty(t, stale)
}
