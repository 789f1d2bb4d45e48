package naming

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledsdavies/gounit/core/ast"
	"github.com/aledsdavies/gounit/core/verbatim"
)

func TestSanitizeLabel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Success: Add Positive Numbers", "success_add_positive_numbers"},
		{"adds", "adds"},
		{"Add: positive", "add_positive"},
		{"Add positive", "add_positive"},
		{"already_clean", "already_clean"},
		{"a/b", "a/b"},
		{"  two  spaces", "__two__spaces"},
		{"::", ""},
		{"Ünïcode Label", "ünïcode_label"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if diff := cmp.Diff(tt.expected, SanitizeLabel(tt.input)); diff != "" {
				t.Errorf("SanitizeLabel(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestSanitizeDescribeLabel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Addition", "addition"},
		{"Math/Addition", "mathaddition"},
		{"API: v2/users list", "api_v2users_list"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if diff := cmp.Diff(tt.expected, SanitizeDescribeLabel(tt.input)); diff != "" {
				t.Errorf("SanitizeDescribeLabel(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func FuzzSanitizeIdempotent(f *testing.F) {
	for _, seed := range []string{
		"Success: Add Positive Numbers",
		"Math/Addition: edge cases",
		"ÀÉÎ: ŒÆ",
		"İstanbul",
		"\xff\xfe broken utf8",
		"",
	} {
		f.Add(seed)
	}

	f.Fuzz(func(t *testing.T, label string) {
		once := SanitizeLabel(label)
		if twice := SanitizeLabel(once); twice != once {
			t.Errorf("SanitizeLabel not idempotent: %q -> %q -> %q", label, once, twice)
		}
		onceD := SanitizeDescribeLabel(label)
		if twiceD := SanitizeDescribeLabel(onceD); twiceD != onceD {
			t.Errorf("SanitizeDescribeLabel not idempotent: %q -> %q -> %q", label, onceD, twiceD)
		}
	})
}

func TestIsIdentFragment(t *testing.T) {
	assert.True(t, IsIdentFragment("success_add_positive_numbers"))
	assert.True(t, IsIdentFragment("2nd_case"))
	assert.True(t, IsIdentFragment("ünïcode"))
	assert.False(t, IsIdentFragment(""))
	assert.False(t, IsIdentFragment("with-dash"))
	assert.False(t, IsIdentFragment("bang!"))
	assert.False(t, IsIdentFragment("a/b"))
}

func TestEncodeBase58(t *testing.T) {
	tests := []struct {
		input    uint64
		expected string
	}{
		{0, "1"},
		{1, "2"},
		{57, "z"},
		{58, "21"},
		{58*58 - 1, "zz"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, EncodeBase58(tt.input), "EncodeBase58(%d)", tt.input)
	}
	assert.True(t, IsIdentFragment(EncodeBase58(^uint64(0))))
}

func TestFixedNamer(t *testing.T) {
	n := Fixed(DefaultRoot)
	assert.Equal(t, "tests", n.ScopeName(&ast.Root{}))
	assert.Equal(t, "tests", n.ScopeName(nil))
}

func TestSequenceNamerIsUniqueUnderConcurrency(t *testing.T) {
	seq := NewSequence("")
	const callers = 64

	names := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			names[i] = seq.ScopeName(nil)
		}(i)
	}
	wg.Wait()

	seen := make(map[string]bool, callers)
	for _, name := range names {
		require.False(t, seen[name], "duplicate scope name %q", name)
		require.True(t, IsIdentFragment(name), "scope name %q is not an identifier", name)
		seen[name] = true
	}
	assert.Len(t, seen, callers)
}

func TestSequenceNamerFormat(t *testing.T) {
	seq := NewSequence("spec")
	assert.Equal(t, "spec_0", seq.ScopeName(nil))
	assert.Equal(t, "spec_1", seq.ScopeName(nil))
}

func TestContentHashNamer(t *testing.T) {
	root := func(testIdent string) *ast.Root {
		return &ast.Root{
			Source: "calc.gounit",
			Describes: []*ast.Describe{{
				Ident: "addition",
				Tests: []*ast.Test{{Ident: testIdent, Body: verbatim.Block{Text: "x()"}}},
			}},
		}
	}

	namer := ContentHash{}
	first := namer.ScopeName(root("adds"))
	assert.Equal(t, first, namer.ScopeName(root("adds")), "same content must give the same name")
	assert.NotEqual(t, first, namer.ScopeName(root("subtracts")))
	assert.Regexp(t, `^gounit_[1-9A-HJ-NP-Za-km-z]+$`, first)
	assert.True(t, IsIdentFragment(first))

	moved := root("adds")
	moved.Source = "pkg/calc/calc.gounit"
	assert.Equal(t, first, namer.ScopeName(moved), "the directory is not part of the name")

	custom := ContentHash{Prefix: "calc"}.ScopeName(root("adds"))
	assert.Regexp(t, `^calc_`, custom)
}
