// Package parser turns gounit specification source into an ast.Root.
//
// The grammar is small enough for recursive descent with one token of
// lookahead: every block starts with a reserved keyword, so dispatch is a
// switch over ast.BlockKind. Go bodies arrive from the lexer as single BODY
// tokens and are validated with go/parser, never interpreted.
//
// Errors are terminal. Parse returns either a complete Root or the first
// error; there is no recovery and no partial tree.
package parser

import (
	"errors"
	"fmt"
	"go/token"
	"time"

	"golang.org/x/mod/module"

	"github.com/aledsdavies/gounit/core/ast"
	"github.com/aledsdavies/gounit/core/invariant"
	"github.com/aledsdavies/gounit/core/naming"
	"github.com/aledsdavies/gounit/core/verbatim"
	"github.com/aledsdavies/gounit/pkgs/lexer"
)

// reservedImports are referenced by name from generated code
var reservedImports = map[string]bool{
	"testing": true,
	"sync":    true,
}

// Result is a parsed specification plus optional telemetry
type Result struct {
	Root      *ast.Root
	Telemetry *ParseTelemetry // nil unless telemetry was enabled
}

// Parse parses a specification
func Parse(src []byte, opts ...ParserOpt) (*ast.Root, error) {
	res, err := ParseDetailed(src, opts...)
	if err != nil {
		return nil, err
	}
	return res.Root, nil
}

// ParseDetailed parses a specification and reports telemetry when enabled
func ParseDetailed(src []byte, opts ...ParserOpt) (*Result, error) {
	config := defaultConfig()
	for _, opt := range opts {
		opt(&config)
	}

	var start time.Time
	if config.telemetry >= TelemetryTiming {
		start = time.Now()
	}

	tokens := lexer.NewLexer(src, lexer.WithLogger(config.logger)).GetTokens()

	var lexTime time.Duration
	if config.telemetry >= TelemetryTiming {
		lexTime = time.Since(start)
	}

	p := &parser{
		input:  src,
		tokens: tokens,
		config: config,
	}
	root, err := p.parseFile()
	if err != nil {
		config.logger.Debug("parse failed", "source", config.source, "error", err)
		return nil, err
	}

	res := &Result{Root: root}
	if config.telemetry >= TelemetryBasic {
		res.Telemetry = &ParseTelemetry{
			TokenCount:    len(tokens),
			DescribeCount: len(root.Describes),
			TestCount:     root.TestCount(),
			HookCount:     p.hooks,
		}
		if config.telemetry >= TelemetryTiming {
			res.Telemetry.TotalTime = time.Since(start)
			res.Telemetry.LexTime = lexTime
			res.Telemetry.ParseTime = res.Telemetry.TotalTime - lexTime
		}
	}

	config.logger.Debug("parsed specification",
		"source", config.source,
		"root", root.Ident,
		"describes", len(root.Describes),
		"tests", root.TestCount())
	return res, nil
}

type parser struct {
	input  []byte
	tokens []lexer.Token
	pos    int
	config ParserConfig
	hooks  int
}

func (p *parser) current() lexer.Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	// GetTokens always ends with EOF
	return p.tokens[len(p.tokens)-1]
}

func (p *parser) advance() lexer.Token {
	tok := p.current()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

// expect consumes a token of the given type or reports what was wanted
func (p *parser) expect(tt lexer.TokenType, want string) (lexer.Token, error) {
	tok := p.current()
	if tok.Type != tt {
		return tok, p.unexpected(tok, want)
	}
	return p.advance(), nil
}

func (p *parser) parseFile() (*ast.Root, error) {
	root := &ast.Root{
		Source: p.config.source,
		Pos:    p.current().Position,
	}

	if err := p.parsePreamble(root); err != nil {
		return nil, err
	}

	seen := make(map[string]*ast.Describe)
	for p.current().Type != lexer.EOF {
		tok := p.current()
		kind, ok := tok.Type.BlockKind()
		if !ok || kind != ast.KindDescribe {
			expected := []string{"describe"}
			if len(root.Describes) == 0 {
				expected = []string{"package", "import", "suite", "describe"}
			}
			return nil, p.unexpectedOneOf(tok, expected, nil)
		}

		d, err := p.parseDescribe()
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[d.Ident]; dup {
			return nil, p.duplicateName("describe", d.Ident, d.Pos, prev.Pos)
		}
		seen[d.Ident] = d
		root.Describes = append(root.Describes, d)
	}

	if root.Ident == "" {
		root.Ident = p.config.namer.ScopeName(root)
		invariant.Postcondition(naming.IsIdentFragment(root.Ident),
			"scope namer returned %q, which is not an identifier fragment", root.Ident)
	}
	return root, nil
}

// parsePreamble consumes package, import and suite clauses in any order
func (p *parser) parsePreamble(root *ast.Root) error {
	var pkg, suite *lexer.Token
	for {
		tok := p.current()
		switch tok.Type {
		case lexer.PACKAGE:
			if pkg != nil {
				return p.duplicateClause("package", tok.Position, pkg.Position)
			}
			p.advance()
			name, err := p.parsePackageName()
			if err != nil {
				return err
			}
			pkg = &tok
			root.Package = name

		case lexer.IMPORT:
			if err := p.parseImports(root); err != nil {
				return err
			}

		case lexer.SUITE:
			if suite != nil {
				return p.duplicateClause("suite", tok.Position, suite.Position)
			}
			p.advance()
			label, err := p.expect(lexer.STRING, "suite label string")
			if err != nil {
				return err
			}
			ident, err := p.labelIdent(label, "suite", naming.SanitizeDescribeLabel)
			if err != nil {
				return err
			}
			suite = &tok
			root.Ident = ident

		default:
			return nil
		}
	}
}

func (p *parser) parsePackageName() (string, error) {
	tok := p.current()
	// Keywords of the DSL are ordinary Go identifiers: "package test" is fine.
	if tok.Type != lexer.IDENTIFIER && !tok.Type.IsKeyword() {
		return "", p.unexpected(tok, "package name")
	}
	p.advance()
	if !token.IsIdentifier(tok.Value) || tok.Value == "_" {
		return "", p.invalid(tok.Position, fmt.Sprintf("invalid package name `%s`", tok.Value))
	}
	return tok.Value, nil
}

func (p *parser) parseImports(root *ast.Root) error {
	p.advance() // import

	if p.current().Type != lexer.LPAREN {
		return p.parseImportSpec(root)
	}

	open := p.advance()
	for {
		switch p.current().Type {
		case lexer.RPAREN:
			p.advance()
			return nil
		case lexer.STRING, lexer.IDENTIFIER, lexer.DOT:
			if err := p.parseImportSpec(root); err != nil {
				return err
			}
		default:
			return p.unexpectedOneOf(p.current(), []string{"import path", "')'"}, &open.Position)
		}
	}
}

func (p *parser) parseImportSpec(root *ast.Root) error {
	imp := ast.Import{Pos: p.current().Position}

	switch tok := p.current(); tok.Type {
	case lexer.DOT:
		imp.Name = "."
		p.advance()
	case lexer.IDENTIFIER:
		imp.Name = tok.Value
		p.advance()
	}

	path, err := p.expect(lexer.STRING, "import path string")
	if err != nil {
		return err
	}
	imp.Path = path.Value

	if err := module.CheckImportPath(imp.Path); err != nil {
		return p.invalidWithCause(path.Position, fmt.Sprintf("invalid import path %q", imp.Path), err)
	}
	if reservedImports[imp.Path] && imp.Name != "" {
		return p.invalid(imp.Pos, fmt.Sprintf("import %q cannot be renamed, generated code refers to it by its package name", imp.Path))
	}
	for _, prev := range root.Imports {
		if prev.Path == imp.Path {
			related := prev.Pos
			return &ParseError{
				Type:     ErrorDuplicate,
				Message:  fmt.Sprintf("import %q is already declared at %s", imp.Path, prev.Pos),
				Pos:      imp.Pos,
				Filename: p.config.source,
				Input:    string(p.input),
				Related:  &related,
			}
		}
	}

	root.Imports = append(root.Imports, imp)
	return nil
}

func (p *parser) parseDescribe() (*ast.Describe, error) {
	kw := p.advance() // describe

	label, err := p.expect(lexer.STRING, "describe label string")
	if err != nil {
		return nil, err
	}
	ident, err := p.labelIdent(label, "describe", naming.SanitizeDescribeLabel)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(lexer.LBRACE, "'{' to open the describe body"); err != nil {
		return nil, err
	}

	d := &ast.Describe{Ident: ident, Pos: kw.Position}
	tests := make(map[string]*ast.Test)

	for {
		tok := p.current()
		if tok.Type == lexer.RBRACE {
			p.advance()
			return d, nil
		}

		kind, ok := tok.Type.BlockKind()
		if !ok {
			return nil, p.unexpectedMember(tok, d)
		}
		prev := p.pos

		switch kind {
		case ast.KindTest:
			t, err := p.parseTest()
			if err != nil {
				return nil, err
			}
			if prev, dup := tests[t.Ident]; dup {
				return nil, p.duplicateName("test", t.Ident, t.Pos, prev.Pos)
			}
			tests[t.Ident] = t
			d.Tests = append(d.Tests, t)

		case ast.KindSetupAll, ast.KindSetup, ast.KindTeardown, ast.KindTeardownAll:
			h, err := p.parseHook(kind)
			if err != nil {
				return nil, err
			}
			if prev := d.SetHook(h); prev != nil {
				related := prev.Pos
				return nil, &ParseError{
					Type: ErrorDuplicate,
					Message: fmt.Sprintf("duplicate `%s` in describe `%s`, the first one is at %s",
						kind, d.Ident, prev.Pos),
					Pos:      h.Pos,
					Filename: p.config.source,
					Input:    string(p.input),
					Related:  &related,
				}
			}
			p.hooks++

		default:
			// A nested describe.
			return nil, p.unexpectedMember(tok, d)
		}
		invariant.Invariant(p.pos > prev, "describe member at %s consumed no tokens", tok.Position)
	}
}

func (p *parser) parseTest() (*ast.Test, error) {
	kw := p.advance() // test

	label, err := p.expect(lexer.STRING, "test label string")
	if err != nil {
		return nil, err
	}
	ident, err := p.labelIdent(label, "test", naming.SanitizeLabel)
	if err != nil {
		return nil, err
	}
	body, err := p.parseBody(ast.KindTest)
	if err != nil {
		return nil, err
	}
	return &ast.Test{Ident: ident, Body: body, Pos: kw.Position}, nil
}

func (p *parser) parseHook(kind ast.BlockKind) (*ast.Hook, error) {
	kw := p.advance()

	h := &ast.Hook{Kind: kind, Pos: kw.Position}
	if p.current().Type == lexer.STRING {
		h.Label = p.advance().Value
	}

	body, err := p.parseBody(kind)
	if err != nil {
		return nil, err
	}
	h.Body = body
	return h, nil
}

func (p *parser) parseBody(kind ast.BlockKind) (verbatim.Block, error) {
	tok := p.current()
	if tok.Type == lexer.ILLEGAL {
		return verbatim.Block{}, p.lexError(tok)
	}
	if tok.Type != lexer.BODY {
		return verbatim.Block{}, p.unexpected(tok, fmt.Sprintf("'{' to open the %s body", kind))
	}
	p.advance()

	if err := verbatim.Validate(tok.Body); err != nil {
		return verbatim.Block{}, p.bodyError(err, tok.Position)
	}
	return tok.Body, nil
}

// labelIdent sanitizes a label and checks the result can be part of a Go
// identifier
func (p *parser) labelIdent(label lexer.Token, what string, sanitize func(string) string) (string, error) {
	ident := sanitize(label.Value)
	if ident == "" {
		return "", p.invalid(label.Position, fmt.Sprintf("%s label %s is empty after sanitizing", what, label.Raw))
	}
	if !naming.IsIdentFragment(ident) {
		return "", p.invalid(label.Position,
			fmt.Sprintf("%s label %s gives `%s`, which is not a valid Go identifier; use letters, digits, spaces, '_' and ':'",
				what, label.Raw, ident))
	}
	return ident, nil
}

func (p *parser) unexpected(tok lexer.Token, want string) error {
	if tok.Type == lexer.ILLEGAL {
		return p.lexError(tok)
	}
	return &ParseError{
		Type:     ErrorUnexpected,
		Message:  fmt.Sprintf("expected %s, got %s", want, tok),
		Pos:      tok.Position,
		Filename: p.config.source,
		Input:    string(p.input),
	}
}

func (p *parser) unexpectedOneOf(tok lexer.Token, expected []string, related *ast.Position) error {
	if tok.Type == lexer.ILLEGAL {
		return p.lexError(tok)
	}
	err := &ParseError{
		Type:     ErrorUnexpected,
		Message:  fmt.Sprintf("expected %s, got %s", formatExpected(expected), tok),
		Pos:      tok.Position,
		Filename: p.config.source,
		Input:    string(p.input),
		Expected: expected,
		Related:  related,
	}
	if tok.Type == lexer.IDENTIFIER {
		err.Suggestion = findClosestMatch(tok.Value, keywordsOnly(expected))
	}
	return err
}

func (p *parser) unexpectedMember(tok lexer.Token, d *ast.Describe) error {
	kinds := ast.MemberKinds()
	expected := make([]string, 0, len(kinds)+1)
	for _, k := range kinds {
		expected = append(expected, k.String())
	}
	expected = append(expected, "'}'")

	pos := d.Pos
	err := p.unexpectedOneOf(tok, expected, &pos)
	if pe, ok := err.(*ParseError); ok && tok.Type == lexer.EOF {
		pe.Message = fmt.Sprintf("describe `%s` opened at %s is never closed", d.Ident, d.Pos)
	}
	return err
}

func keywordsOnly(expected []string) []string {
	out := make([]string, 0, len(expected))
	for _, e := range expected {
		if lexer.LookupKeyword(e) != lexer.IDENTIFIER {
			out = append(out, e)
		}
	}
	return out
}

func (p *parser) duplicateName(what, ident string, pos, first ast.Position) error {
	return &ParseError{
		Type:     ErrorDuplicate,
		Message:  fmt.Sprintf("%s `%s` is already defined at %s", what, ident, first),
		Pos:      pos,
		Filename: p.config.source,
		Input:    string(p.input),
		Related:  &first,
	}
}

func (p *parser) duplicateClause(what string, pos, first ast.Position) error {
	return &ParseError{
		Type:     ErrorDuplicate,
		Message:  fmt.Sprintf("`%s` clause is already given at %s", what, first),
		Pos:      pos,
		Filename: p.config.source,
		Input:    string(p.input),
		Related:  &first,
	}
}

func (p *parser) invalid(pos ast.Position, msg string) error {
	return p.invalidWithCause(pos, msg, nil)
}

func (p *parser) invalidWithCause(pos ast.Position, msg string, cause error) error {
	return &ParseError{
		Type:     ErrorInvalid,
		Message:  msg,
		Pos:      pos,
		Filename: p.config.source,
		Input:    string(p.input),
		Cause:    cause,
	}
}

func (p *parser) lexError(tok lexer.Token) error {
	var bodyErr *verbatim.Error
	if errors.As(tok.Err, &bodyErr) {
		return p.bodyError(bodyErr, tok.Position)
	}
	return &ParseError{
		Type:     ErrorSyntax,
		Message:  tok.Value,
		Pos:      tok.Position,
		Filename: p.config.source,
		Input:    string(p.input),
		Cause:    tok.Err,
	}
}

func (p *parser) bodyError(err error, fallback ast.Position) error {
	pe := &ParseError{
		Type:     ErrorBody,
		Message:  err.Error(),
		Pos:      fallback,
		Filename: p.config.source,
		Input:    string(p.input),
		Cause:    err,
	}
	var bodyErr *verbatim.Error
	if errors.As(err, &bodyErr) {
		pe.Message = bodyErr.Message
		pe.Pos = bodyErr.Pos
	}
	return pe
}
