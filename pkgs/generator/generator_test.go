package generator

import (
	"errors"
	goast "go/ast"
	goparser "go/parser"
	gotoken "go/token"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/gounit/core/ast"
	"github.com/aledsdavies/gounit/pkgs/parser"
)

func parse(t *testing.T, src string) *ast.Root {
	t.Helper()
	root, err := parser.Parse([]byte(src), parser.WithSourceName("specs/calc.gounit"))
	require.NoError(t, err)
	return root
}

func generate(t *testing.T, src string, opts Options) string {
	t.Helper()
	if opts.Package == "" {
		opts.Package = "calc"
	}
	out, err := Generate(parse(t, src), opts)
	require.NoError(t, err)
	return string(out)
}

// parseGo checks the output is valid Go and returns its syntax tree
func parseGo(t *testing.T, src string) *goast.File {
	t.Helper()
	file, err := goparser.ParseFile(gotoken.NewFileSet(), "gen_test.go", src, goparser.ParseComments)
	require.NoError(t, err, "generated code:\n%s", src)
	return file
}

func funcNames(file *goast.File) []string {
	var names []string
	for _, decl := range file.Decls {
		if fn, ok := decl.(*goast.FuncDecl); ok {
			names = append(names, fn.Name.Name)
		}
	}
	return names
}

func importPaths(file *goast.File) []string {
	var paths []string
	for _, imp := range file.Imports {
		p, _ := strconv.Unquote(imp.Path.Value)
		paths = append(paths, p)
	}
	return paths
}

func TestScenarioAGolden(t *testing.T) {
	got := generate(t, `
describe "Addition" {
	test "adds" { t.Log("adds") }
	test "subtracts" { t.Log("subtracts") }
}`, DefaultOptions())

	expected := `// Code generated by gounit from calc.gounit. DO NOT EDIT.

package calc

import (
	"testing"
)

func Test_tests_addition_test_adds(t *testing.T) {
	t.Log("adds")
}

func Test_tests_addition_test_subtracts(t *testing.T) {
	t.Log("subtracts")
}
`
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("generated code mismatch (-want +got):\n%s", diff)
	}
}

func TestAllHooksFunctionsGolden(t *testing.T) {
	got := generate(t, `
describe "D" {
	teardown_all { t.Log("never") }
	teardown { t.Log("after") }
	test "t" { t.Log(x) }
	setup { x := 1 }
	setup_all "once" { counter++ }
}`, DefaultOptions())

	expected := `// Code generated by gounit from calc.gounit. DO NOT EDIT.

package calc

import (
	"sync"
	"testing"
)

// teardown_all of describe "d" is not emitted: the functions layout has no end-of-scope hook, use layout subtests

var setupAll_tests_d sync.Once

func Test_tests_d_test_t(t *testing.T) {
	setupAll_tests_d.Do(func() {
		// setup_all: once
		counter++
	})
	// setup
	x := 1
	{
		t.Log(x)
	}
	// teardown
	t.Log("after")
}
`
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("generated code mismatch (-want +got):\n%s", diff)
	}
}

func TestSubtestsGolden(t *testing.T) {
	opts := DefaultOptions()
	opts.Layout = LayoutSubtests
	opts.Parallel = true
	opts.Teardown = TeardownCleanup

	got := generate(t, `
suite "Calc"
describe "D" {
	setup_all { t.Log("once") }
	teardown { t.Log("after") }
	teardown_all { t.Log("all done") }
	test "t" { t.Log("body") }
}`, opts)

	expected := `// Code generated by gounit from calc.gounit. DO NOT EDIT.

package calc

import (
	"sync"
	"testing"
)

func Test_calc(t *testing.T) {
	t.Run("d", func(t *testing.T) {
		var setupAllOnce sync.Once
		t.Cleanup(func() {
			// teardown_all
			t.Log("all done")
		})
		t.Run("test_t", func(t *testing.T) {
			t.Parallel()
			setupAllOnce.Do(func() {
				// setup_all
				t.Log("once")
			})
			t.Cleanup(func() {
				// teardown
				t.Log("after")
			})
			t.Log("body")
		})
	})
}
`
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("generated code mismatch (-want +got):\n%s", diff)
	}
}

func TestHookOrderWithAllHooks(t *testing.T) {
	out := generate(t, `
describe "d" {
	teardown { step("teardown") }
	test "t" { step("test") }
	setup { step("setup") }
	setup_all { step("setup_all") }
	teardown_all { step("teardown_all") }
}`, DefaultOptions())

	parseGo(t, out)

	order := []string{"setup_all", "setup", "test", "teardown"}
	last := -1
	for _, kw := range order {
		idx := strings.Index(out, `step("`+kw+`")`)
		require.GreaterOrEqual(t, idx, 0, "%s body missing", kw)
		assert.Greater(t, idx, last, "%s is out of order", kw)
		last = idx
	}
	assert.NotContains(t, out, `step("teardown_all")`, "functions layout does not emit teardown_all")
}

func TestOrderPreservedAcrossInterleavedHooks(t *testing.T) {
	out := generate(t, `
describe "d" {
	test "c" {}
	setup {}
	test "a" {}
	teardown {}
	test "b" {}
}
describe "e" { test "z" {} }`, DefaultOptions())

	expected := []string{
		"Test_tests_d_test_c",
		"Test_tests_d_test_a",
		"Test_tests_d_test_b",
		"Test_tests_e_test_z",
	}
	if diff := cmp.Diff(expected, funcNames(parseGo(t, out))); diff != "" {
		t.Errorf("function order mismatch (-want +got):\n%s", diff)
	}
}

func TestImports(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		layout   Layout
		expected []string
	}{
		{
			name:     "testing only without setup_all",
			input:    `describe "d" { setup {} test "t" {} }`,
			expected: []string{"testing"},
		},
		{
			name:     "sync with setup_all",
			input:    `describe "d" { setup_all {} test "t" {} }`,
			expected: []string{"sync", "testing"},
		},
		{
			name:     "no guard without tests",
			input:    `describe "d" { setup_all {} }`,
			expected: nil,
		},
		{
			name:     "subtests always need testing",
			input:    `describe "d" {}`,
			layout:   LayoutSubtests,
			expected: []string{"testing"},
		},
		{
			name:     "preamble merged, sorted and deduplicated",
			input:    "import (\n\"testing\"\n\"fmt\"\n_ \"embed\"\n)\ndescribe \"d\" { test \"t\" { fmt.Println() } }",
			expected: []string{"embed", "fmt", "testing"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := DefaultOptions()
			if tt.layout != "" {
				opts.Layout = tt.layout
			}
			file := parseGo(t, generate(t, tt.input, opts))
			if diff := cmp.Diff(tt.expected, importPaths(file)); diff != "" {
				t.Errorf("imports mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestNamingOptions(t *testing.T) {
	src := `describe "Math/Add" { test "Adds: Two" {} }`

	opts := DefaultOptions()
	opts.Prefix = ""
	assert.Equal(t, []string{"Test_tests_mathadd_adds_two"}, funcNames(parseGo(t, generate(t, src, opts))))

	root, err := parser.Parse([]byte("suite \"Unit\"\n"+src), parser.WithSourceName("x.gounit"))
	require.NoError(t, err)
	f := Lower(root, DefaultOptions())
	assert.Equal(t, []string{"Test_unit_mathadd_test_adds_two"}, f.TestNames())
}

func TestTeardownAllHandlingPerLayout(t *testing.T) {
	root := parse(t, `describe "d" { teardown_all { done() } test "t" {} }`)

	functions := Lower(root, Options{Package: "calc", Layout: LayoutFunctions})
	require.Len(t, functions.Warnings, 1)
	assert.Contains(t, functions.Warnings[0], "teardown_all is ignored")
	assert.Nil(t, functions.Groups[0].TeardownAll)

	subtests := Lower(root, Options{Package: "calc", Layout: LayoutSubtests})
	assert.Empty(t, subtests.Warnings)
	require.NotNil(t, subtests.Suite)
	require.NotNil(t, subtests.Suite.Groups[0].TeardownAll)
	assert.Equal(t, "done()", subtests.Suite.Groups[0].TeardownAll.Body)
}

func TestTeardownCleanupRunsBeforeBodyRegistration(t *testing.T) {
	opts := DefaultOptions()
	opts.Teardown = TeardownCleanup
	out := generate(t, `describe "d" { teardown { after() } test "t" { body() } }`, opts)
	parseGo(t, out)

	cleanup := strings.Index(out, "t.Cleanup(func() {")
	body := strings.Index(out, "body()")
	require.GreaterOrEqual(t, cleanup, 0)
	assert.Less(t, cleanup, body)
	assert.Less(t, cleanup, strings.Index(out, "after()"))
}

func TestParallel(t *testing.T) {
	opts := DefaultOptions()
	opts.Parallel = true
	out := generate(t, `describe "d" { test "a" {} test "b" {} }`, opts)
	assert.Equal(t, 2, strings.Count(out, "t.Parallel()"))
}

func TestBodiesAreVerbatim(t *testing.T) {
	out := generate(t, "describe \"d\" { test \"t\" {\n\ts := `line one\n  keep   spacing }`\n\t_ = s\n} }", DefaultOptions())
	assert.Contains(t, out, "`line one\n  keep   spacing }`")
}

func TestLowerTakesPackageFromSpecification(t *testing.T) {
	root := parse(t, "package other\ndescribe \"d\" {}")
	assert.Equal(t, "other", Lower(root, Options{Package: "calc"}).Package)
	assert.Equal(t, "calc.gounit", Lower(root, Options{}).Source)
}

func TestLowerRequiresNamedRoot(t *testing.T) {
	assert.Panics(t, func() { Lower(nil, DefaultOptions()) })
	assert.Panics(t, func() { Lower(&ast.Root{}, DefaultOptions()) })
}

func TestRenderErrors(t *testing.T) {
	root := parse(t, `describe "d" { test "t" {} }`)

	_, err := Render(Lower(root, Options{}))
	var genErr *GeneratorError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, "options", genErr.ErrorType)

	_, err = Render(Lower(root, Options{Package: "not-valid"}))
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, "options", genErr.ErrorType)
}

func TestGuardNames(t *testing.T) {
	root := parse(t, `
describe "a" { setup_all {} test "t" {} }
describe "b" { test "t" {} }`)

	f := Lower(root, DefaultOptions())
	assert.Equal(t, []string{"setupAll_tests_a"}, f.GuardNames())

	opts := DefaultOptions()
	opts.Layout = LayoutSubtests
	assert.Empty(t, Lower(root, opts).GuardNames(), "subtests guards are local")
}

func TestParseLayoutAndTeardown(t *testing.T) {
	l, err := ParseLayout("")
	require.NoError(t, err)
	assert.Equal(t, LayoutFunctions, l)
	l, err = ParseLayout("subtests")
	require.NoError(t, err)
	assert.Equal(t, LayoutSubtests, l)
	_, err = ParseLayout("nested")
	assert.Error(t, err)

	m, err := ParseTeardownMode("cleanup")
	require.NoError(t, err)
	assert.Equal(t, TeardownCleanup, m)
	_, err = ParseTeardownMode("deferred")
	assert.Error(t, err)
}

func TestDeterministicOutput(t *testing.T) {
	src := `describe "d" { setup_all {} setup {} test "a" {} test "b" {} teardown {} }`
	first := generate(t, src, DefaultOptions())
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, generate(t, src, DefaultOptions()))
	}
}

const crossDescribeSpec = `describe "a" {
	test "b test c" {}
}
describe "a test b" {
	test "c" {}
}
`

func TestFunctionNamesCollidingAcrossDescribes(t *testing.T) {
	opts := DefaultOptions()
	opts.Package = "calc"

	f := Lower(parse(t, crossDescribeSpec), opts)
	require.Len(t, f.Collisions, 1)
	assert.Equal(t, "Test_tests_a_test_b_test_c", f.Collisions[0].Name)
	assert.Equal(t, 5, f.Collisions[0].Pos.Line)
	assert.Equal(t, 2, f.Collisions[0].First.Line)

	_, err := Render(f)
	var genErr *GeneratorError
	require.True(t, errors.As(err, &genErr))
	assert.Equal(t, "collision", genErr.ErrorType)
	require.NotNil(t, genErr.Pos)
	require.NotNil(t, genErr.Related)
	assert.Equal(t, "5:2", genErr.Pos.String())
	assert.Equal(t, "2:2", genErr.Related.String())
	assert.Contains(t, genErr.Error(), "Test_tests_a_test_b_test_c is declared twice")
}

func TestNamesThatOnlyCollideUnderOneNaming(t *testing.T) {
	noPrefix := DefaultOptions()
	noPrefix.Prefix = ""
	file := parseGo(t, generate(t, crossDescribeSpec, noPrefix))
	assert.Equal(t, []string{"Test_tests_a_b_test_c", "Test_tests_a_test_b_c"}, funcNames(file))

	subtests := DefaultOptions()
	subtests.Layout = LayoutSubtests
	parseGo(t, generate(t, crossDescribeSpec, subtests))
}

func TestGuardForSuiteStartingWithDigit(t *testing.T) {
	src := `suite "2024 release"
describe "math" {
	setup_all { _ = 1 }
	test "adds" {}
}`
	out := generate(t, src, DefaultOptions())
	file := parseGo(t, out)
	assert.Contains(t, out, "var setupAll_2024_release_math sync.Once")
	assert.Equal(t, []string{"Test_2024_release_math_test_adds"}, funcNames(file))

	f := Lower(parse(t, src), DefaultOptions())
	assert.Equal(t, []string{"setupAll_2024_release_math"}, f.GuardNames())
}
