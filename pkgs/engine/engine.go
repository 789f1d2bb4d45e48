// Package engine runs the gounit pipeline over files: discovery, config,
// parse, generate, collision checks and output.
//
// A run is all-or-nothing: every specification is compiled before anything is
// written, so a parse error in one file leaves every output untouched.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/aledsdavies/gounit/core/naming"
	"github.com/aledsdavies/gounit/pkgs/config"
	gerrors "github.com/aledsdavies/gounit/pkgs/errors"
	"github.com/aledsdavies/gounit/pkgs/generator"
	"github.com/aledsdavies/gounit/pkgs/parser"
)

// Engine compiles specifications with one resolved configuration
type Engine struct {
	cfg    *config.Config
	namer  naming.ScopeNamer
	logger *slog.Logger
	jobs   int
	stdin  io.Reader
	dir    string // directory of stdin specifications
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger for telemetry and warnings
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithJobs bounds the number of files compiled concurrently
func WithJobs(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.jobs = n
		}
	}
}

// WithScopeNamer overrides the namer built from the config
func WithScopeNamer(namer naming.ScopeNamer) Option {
	return func(e *Engine) {
		if namer != nil {
			e.namer = namer
		}
	}
}

// WithStdin sets the reader used for the StdinName input and the directory
// its package is inferred from
func WithStdin(r io.Reader, dir string) Option {
	return func(e *Engine) {
		e.stdin = r
		e.dir = dir
	}
}

// New creates an engine. cfg must be validated; nil means config.Default().
// The scope namer is built once here so a sequence namer is shared by every
// file of the engine.
func New(cfg *config.Config, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	e := &Engine{
		cfg:    cfg,
		logger: slog.New(slog.DiscardHandler),
		jobs:   runtime.GOMAXPROCS(0),
		stdin:  os.Stdin,
		dir:    ".",
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.namer == nil {
		e.namer = cfg.ScopeNamer()
	}
	return e
}

// Config returns the engine's configuration
func (e *Engine) Config() *config.Config {
	return e.cfg
}

func (e *Engine) read(path string) ([]byte, error) {
	if path == StdinName {
		data, err := io.ReadAll(e.stdin)
		if err != nil {
			return nil, gerrors.NewInputError("<stdin>", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, gerrors.Wrap(gerrors.ErrFileNotFound, "no such file", nil).WithContext("file", path)
		}
		return nil, gerrors.NewInputError(path, err)
	}
	return data, nil
}

func (e *Engine) parserOpts(path string) []parser.ParserOpt {
	opts := []parser.ParserOpt{
		parser.WithScopeNamer(e.namer),
		parser.WithLogger(e.logger),
		parser.WithTelemetryTiming(),
	}
	return append(opts, parser.WithSourceName(displayName(path)))
}

// Parse reads and parses one specification
func (e *Engine) Parse(path string) (*parser.Result, error) {
	data, err := e.read(path)
	if err != nil {
		return nil, err
	}
	return e.ParseSource(path, data)
}

// ParseSource parses specification text read from path
func (e *Engine) ParseSource(path string, data []byte) (*parser.Result, error) {
	res, err := parser.ParseDetailed(data, e.parserOpts(path)...)
	if err != nil {
		return nil, gerrors.NewParseError(displayName(path), err)
	}
	e.logger.Debug("parsed", "file", displayName(path), "telemetry", res.Telemetry)
	return res, nil
}

// Compile reads, parses and generates one specification
func (e *Engine) Compile(path string) (*GenerationResult, error) {
	data, err := e.read(path)
	if err != nil {
		return nil, err
	}
	return e.CompileSource(path, data)
}

// CompileSource parses and generates specification text read from path
func (e *Engine) CompileSource(path string, data []byte) (*GenerationResult, error) {
	res, err := e.ParseSource(path, data)
	if err != nil {
		return nil, err
	}

	out := &GenerationResult{
		Input:     path,
		Root:      res.Root,
		Telemetry: res.Telemetry,
	}
	dir := e.dir
	if path != StdinName {
		out.Output = OutputPath(path, e.cfg.Suffix)
		dir = filepath.Dir(path)
	}

	opts := e.cfg.GeneratorOptions()
	if res.Root.Package == "" {
		pkg, err := e.resolvePackage(dir)
		if err != nil {
			return nil, gerrors.Wrap(gerrors.ErrPackageUnknown, "cannot determine package", err).
				WithContext("file", displayName(path))
		}
		opts.Package = pkg
	}

	out.File = generator.Lower(res.Root, opts)
	out.Package = out.File.Package
	out.Warnings = out.File.Warnings
	for _, w := range out.Warnings {
		e.logger.Warn(w, "file", displayName(path))
	}

	code, err := generator.Render(out.File)
	if err != nil {
		return nil, e.generationError(path, data, err)
	}
	out.Code = code
	return out, nil
}

// generationError wraps a Render failure. Names that collide within the file
// point at source positions, so they are reported like a parse error.
func (e *Engine) generationError(path string, data []byte, err error) error {
	var ge *generator.GeneratorError
	if errors.As(err, &ge) && ge.Pos != nil {
		return gerrors.NewParseError(displayName(path), &parser.ParseError{
			Type:     parser.ErrorDuplicate,
			Message:  ge.Message,
			Pos:      *ge.Pos,
			Filename: displayName(path),
			Input:    string(data),
			Related:  ge.Related,
		})
	}
	return gerrors.NewGenerationError(displayName(path), err)
}

// resolvePackage picks the package for a specification without a package
// clause: the configured package, then the package of the Go files next to
// the output.
func (e *Engine) resolvePackage(dir string) (string, error) {
	if e.cfg.Package != "" {
		return e.cfg.Package, nil
	}
	pkg, err := InferPackage(dir, e.cfg.Suffix)
	if err != nil {
		return "", err
	}
	if pkg == "" {
		return "", fmt.Errorf("no package clause, no configured package and no Go files in %s", dir)
	}
	return pkg, nil
}

// CompileAll compiles every path concurrently and checks the results for
// name collisions. Results are in input order. Nothing is written.
func (e *Engine) CompileAll(ctx context.Context, paths []string) ([]*GenerationResult, error) {
	results := make([]*GenerationResult, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.jobs)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := e.Compile(path)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := checkCollisions(results); err != nil {
		return nil, err
	}
	return results, nil
}

// Generate compiles every path and writes each output next to its
// specification. Stdin results are returned but not written.
func (e *Engine) Generate(ctx context.Context, paths []string) (*RunResult, error) {
	results, err := e.CompileAll(ctx, paths)
	if err != nil {
		return nil, err
	}

	run := &RunResult{Results: results}
	for _, res := range results {
		if res.IsStdin() {
			continue
		}
		changed, err := res.WriteFile(res.Output)
		if err != nil {
			return run, gerrors.NewOutputError(res.Output, err)
		}
		if changed {
			run.Written = append(run.Written, res.Output)
			e.logger.Info("wrote", "file", res.Output)
		} else {
			e.logger.Debug("up to date", "file", res.Output)
		}
	}
	return run, nil
}

// Check parses every path and returns all parse errors joined, in input
// order. Generation is not attempted.
func (e *Engine) Check(ctx context.Context, paths []string) error {
	errs := make([]error, len(paths))

	var g errgroup.Group
	g.SetLimit(e.jobs)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				errs[i] = err
				return nil
			}
			_, errs[i] = e.Parse(path)
			return nil
		})
	}
	_ = g.Wait()

	return joinErrors(errs)
}

// Stale compiles every path and reports the outputs that are missing or
// differ from what would be generated
func (e *Engine) Stale(ctx context.Context, paths []string) ([]string, error) {
	results, err := e.CompileAll(ctx, paths)
	if err != nil {
		return nil, err
	}
	var stale []string
	for _, res := range results {
		if res.IsStdin() {
			continue
		}
		if !res.UpToDate(res.Output) {
			stale = append(stale, res.Output)
		}
	}
	if len(stale) > 0 {
		return stale, gerrors.New(gerrors.ErrStale, "generated files are out of date: "+strings.Join(stale, ", ")).
			WithContext("files", stale)
	}
	return nil, nil
}

// checkCollisions rejects two specifications that would declare the same
// package-level name in one Go package
func checkCollisions(results []*GenerationResult) error {
	type key struct{ dir, pkg, name string }
	owners := make(map[key]string)

	for _, res := range results {
		dir := "."
		if !res.IsStdin() {
			dir = filepath.Dir(res.Output)
		}
		names := append(res.File.TestNames(), res.File.GuardNames()...)
		for _, name := range names {
			k := key{dir, res.Package, name}
			if first, ok := owners[k]; ok && first != res.Input {
				return gerrors.New(gerrors.ErrCodeGeneration, fmt.Sprintf(
					"%s is generated by both %s and %s; give one of them a suite name or use naming content",
					name, displayName(first), displayName(res.Input))).WithContext("file", displayName(res.Input))
			}
			owners[k] = res.Input
		}
	}
	return nil
}

func joinErrors(errs []error) error {
	var kept []error
	for _, err := range errs {
		if err != nil {
			kept = append(kept, err)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return &MultiError{Errors: kept}
	}
}

// MultiError holds the errors of several files
type MultiError struct {
	Errors []error
}

func (m *MultiError) Error() string {
	msgs := make([]string, len(m.Errors))
	for i, err := range m.Errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "\n")
}

// Unwrap exposes every error to errors.Is and errors.As
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

func displayName(path string) string {
	if path == StdinName {
		return "<stdin>"
	}
	return path
}
