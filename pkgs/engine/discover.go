package engine

import (
	"errors"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gerrors "github.com/aledsdavies/gounit/pkgs/errors"
)

// SpecExt is the file extension of specifications
const SpecExt = ".gounit"

// Discover expands the given paths into specification files. Files are kept
// as given, in order. Directories are walked recursively for *.gounit files,
// skipping hidden directories, testdata and vendor. Duplicates are dropped.
func Discover(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		key := p
		if p != StdinName {
			key = filepath.Clean(p)
		}
		if !seen[key] {
			seen[key] = true
			files = append(files, p)
		}
	}

	for _, p := range paths {
		if p == StdinName {
			add(p)
			continue
		}
		info, err := os.Stat(p)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, gerrors.Wrap(gerrors.ErrFileNotFound, "no such file or directory", nil).WithContext("file", p)
			}
			return nil, gerrors.NewInputError(p, err)
		}
		if !info.IsDir() {
			add(p)
			continue
		}

		found, err := walkSpecs(p)
		if err != nil {
			return nil, gerrors.NewInputError(p, err)
		}
		for _, f := range found {
			add(f)
		}
	}
	return files, nil
}

func walkSpecs(root string) ([]string, error) {
	var found []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && skipDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if filepath.Ext(path) == SpecExt {
			found = append(found, path)
		}
		return nil
	})
	sort.Strings(found)
	return found, err
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") || name == "testdata" || name == "vendor"
}

// OutputPath is the generated file for a specification: the base name with
// its extension replaced by suffix, next to the specification
func OutputPath(spec, suffix string) string {
	dir, base := filepath.Split(spec)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, base+suffix)
}

// InferPackage reads the package clause of the Go files in dir. Non-test
// files win over test files; generated files with the given suffix are
// ignored. It returns "" when dir has no usable Go file.
func InferPackage(dir, suffix string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", err
	}

	var sources, tests []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".go" || strings.HasSuffix(name, suffix) {
			continue
		}
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "_") {
			continue
		}
		if strings.HasSuffix(name, "_test.go") {
			tests = append(tests, name)
		} else {
			sources = append(sources, name)
		}
	}

	fset := token.NewFileSet()
	for _, name := range append(sources, tests...) {
		f, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.PackageClauseOnly)
		if err != nil {
			continue
		}
		return f.Name.Name, nil
	}
	return "", nil
}
