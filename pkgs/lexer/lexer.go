package lexer

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/aledsdavies/gounit/core/invariant"
	"github.com/aledsdavies/gounit/core/verbatim"
)

// ASCII character lookup tables for fast classification
var (
	isWhitespace     [128]bool
	isIdentStart     [128]bool
	isIdentPart      [128]bool
	singleCharTokens [128]TokenType
)

func init() {
	for i := 0; i < 128; i++ {
		ch := byte(i)
		isWhitespace[i] = ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' || ch == '\f'
		isIdentStart[i] = ('a' <= ch && ch <= 'z') || ('A' <= ch && ch <= 'Z') || ch == '_'
		isIdentPart[i] = isIdentStart[i] || ('0' <= ch && ch <= '9')
		singleCharTokens[i] = ILLEGAL
	}

	singleCharTokens['{'] = LBRACE
	singleCharTokens['}'] = RBRACE
	singleCharTokens['('] = LPAREN
	singleCharTokens[')'] = RPAREN
	singleCharTokens['.'] = DOT
}

// LexerOpt configures a Lexer
type LexerOpt func(*Lexer)

// WithLogger sets the debug logger. Tokens are logged at debug level.
func WithLogger(logger *slog.Logger) LexerOpt {
	return func(l *Lexer) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// Lexer tokenizes the DSL level of a specification. It has two modes: the
// language mode for keywords, labels and punctuation, and a body mode entered
// on the first '{' after a block keyword, which captures the whole Go body as
// a single BODY token.
type Lexer struct {
	input     []byte
	pos       int // current byte offset
	line      int
	lineStart int // byte offset of the current line

	expectBody bool // a block keyword was seen, the next '{' opens a body
	failed     bool // an ILLEGAL token was produced, only EOF follows

	logger *slog.Logger
}

// NewLexer creates a lexer over input.
// Debug output goes to stderr when GOUNIT_DEBUG_LEXER is set and no logger
// was supplied.
func NewLexer(input []byte, opts ...LexerOpt) *Lexer {
	l := &Lexer{
		input:  input,
		line:   1,
		logger: defaultLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func defaultLogger() *slog.Logger {
	if os.Getenv("GOUNIT_DEBUG_LEXER") == "" {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}

// GetTokens lexes the whole input. The slice always ends with EOF; after an
// ILLEGAL token nothing but EOF follows.
func (l *Lexer) GetTokens() []Token {
	tokens := make([]Token, 0, len(l.input)/4+1)
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens
		}
	}
}

// NextToken returns the next token
func (l *Lexer) NextToken() Token {
	prev := l.pos
	tok := l.next()
	// Only EOF and ILLEGAL may leave the input where it was.
	invariant.Invariant(tok.Type == EOF || tok.Type == ILLEGAL || l.pos > prev,
		"%s token at %s consumed no input", tok.Type, tok.Position)
	l.logger.Debug("token", "type", tok.Type, "value", tok.Value, "pos", tok.Position)

	switch {
	case tok.Type == ILLEGAL:
		l.failed = true
	case tok.Type.opensBody():
		l.expectBody = true
	case tok.Type == BODY || tok.Type == DESCRIBE || tok.Type == RBRACE:
		l.expectBody = false
	}
	return tok
}

func (l *Lexer) next() Token {
	if l.failed {
		return Token{Type: EOF, Position: l.position()}
	}

	if tok, ok := l.skipWhitespaceAndComments(); !ok {
		return tok
	}

	start := l.position()
	if l.pos >= len(l.input) {
		return Token{Type: EOF, Position: start}
	}

	ch := l.input[l.pos]
	switch {
	case ch == '{' && l.expectBody:
		return l.lexBody(start)
	case ch < utf8.RuneSelf && singleCharTokens[ch] != ILLEGAL:
		l.advance(1)
		return Token{Type: singleCharTokens[ch], Value: string(ch), Raw: string(ch), Position: start}
	case ch == '"':
		return l.lexString(start)
	case ch == '`':
		return l.lexRawString(start)
	case l.isIdentStartAt(l.pos):
		return l.lexIdentifier(start)
	default:
		r, size := utf8.DecodeRune(l.input[l.pos:])
		raw := string(l.input[l.pos : l.pos+size])
		l.advance(size)
		return l.illegal(start, raw, fmt.Sprintf("unexpected character %q", r))
	}
}

func (l *Lexer) position() verbatim.Position {
	return verbatim.Position{Offset: l.pos, Line: l.line, Column: l.pos - l.lineStart + 1}
}

// advance moves n bytes forward, tracking line starts
func (l *Lexer) advance(n int) {
	for i := 0; i < n && l.pos < len(l.input); i++ {
		if l.input[l.pos] == '\n' {
			l.line++
			l.lineStart = l.pos + 1
		}
		l.pos++
	}
}

func (l *Lexer) illegal(start verbatim.Position, raw, msg string) Token {
	return Token{Type: ILLEGAL, Value: msg, Raw: raw, Position: start, Err: fmt.Errorf("%s", msg)}
}

// skipWhitespaceAndComments returns ok=false with an ILLEGAL token when a
// block comment is never closed
func (l *Lexer) skipWhitespaceAndComments() (Token, bool) {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case ch < utf8.RuneSelf && isWhitespace[ch]:
			l.advance(1)
		case ch == '/' && l.peek(1) == '/':
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.advance(1)
			}
		case ch == '/' && l.peek(1) == '*':
			start := l.position()
			l.advance(2)
			for {
				if l.pos >= len(l.input) {
					return l.illegal(start, "/*", "comment not terminated"), false
				}
				if l.input[l.pos] == '*' && l.peek(1) == '/' {
					l.advance(2)
					break
				}
				l.advance(1)
			}
		default:
			return Token{}, true
		}
	}
	return Token{}, true
}

func (l *Lexer) peek(n int) byte {
	if l.pos+n < len(l.input) {
		return l.input[l.pos+n]
	}
	return 0
}

func (l *Lexer) isIdentStartAt(pos int) bool {
	ch := l.input[pos]
	if ch < utf8.RuneSelf {
		return isIdentStart[ch]
	}
	r, _ := utf8.DecodeRune(l.input[pos:])
	return unicode.IsLetter(r)
}

func (l *Lexer) lexIdentifier(start verbatim.Position) Token {
	begin := l.pos
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch < utf8.RuneSelf {
			if !isIdentPart[ch] {
				break
			}
			l.advance(1)
			continue
		}
		r, size := utf8.DecodeRune(l.input[l.pos:])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		l.advance(size)
	}

	word := string(l.input[begin:l.pos])
	return Token{Type: LookupKeyword(word), Value: word, Raw: word, Position: start}
}

// lexString reads an interpreted string literal with Go escape rules
func (l *Lexer) lexString(start verbatim.Position) Token {
	begin := l.pos
	l.advance(1)
	for {
		if l.pos >= len(l.input) || l.input[l.pos] == '\n' {
			return l.illegal(start, string(l.input[begin:l.pos]), "string literal not terminated")
		}
		ch := l.input[l.pos]
		if ch == '\\' {
			l.advance(2)
			continue
		}
		l.advance(1)
		if ch == '"' {
			break
		}
	}

	raw := string(l.input[begin:l.pos])
	value, err := strconv.Unquote(raw)
	if err != nil {
		return l.illegal(start, raw, "invalid escape in string literal")
	}
	return Token{Type: STRING, Value: value, Raw: raw, Position: start}
}

func (l *Lexer) lexRawString(start verbatim.Position) Token {
	begin := l.pos
	l.advance(1)
	for {
		if l.pos >= len(l.input) {
			return l.illegal(start, string(l.input[begin:l.pos]), "raw string literal not terminated")
		}
		ch := l.input[l.pos]
		l.advance(1)
		if ch == '`' {
			break
		}
	}

	raw := string(l.input[begin:l.pos])
	return Token{Type: STRING, Value: raw[1 : len(raw)-1], Raw: raw, Position: start}
}

// lexBody captures a Go body through the matching closing brace
func (l *Lexer) lexBody(start verbatim.Position) Token {
	block, err := verbatim.Scan(l.input, l.pos, start)
	if err != nil {
		tok := l.illegal(start, "{", err.Error())
		tok.Err = err
		if bodyErr, ok := err.(*verbatim.Error); ok {
			tok.Position = bodyErr.Pos
			tok.Value = bodyErr.Message
		}
		return tok
	}

	l.advance(block.Close.Offset + 1 - l.pos)
	return Token{
		Type:     BODY,
		Value:    block.Text,
		Raw:      string(l.input[start.Offset:l.pos]),
		Position: start,
		Body:     block,
	}
}
