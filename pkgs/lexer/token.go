package lexer

import (
	"fmt"

	"github.com/aledsdavies/gounit/core/ast"
	"github.com/aledsdavies/gounit/core/verbatim"
)

// TokenType represents the type of token in a gounit specification
type TokenType int

const (
	// Special tokens
	EOF TokenType = iota
	ILLEGAL

	// Preamble keywords
	PACKAGE // package
	IMPORT  // import
	SUITE   // suite

	// Block keywords
	DESCRIBE     // describe
	TEST         // test
	SETUP        // setup
	SETUP_ALL    // setup_all
	TEARDOWN     // teardown
	TEARDOWN_ALL // teardown_all

	// Punctuation
	LBRACE // {
	RBRACE // }
	LPAREN // (
	RPAREN // )
	DOT    // .

	// Literals and content
	IDENTIFIER // package names, import aliases
	STRING     // "label" or `label`
	BODY       // { Go statements } after a block keyword
)

var tokenNames = [...]string{
	EOF:          "EOF",
	ILLEGAL:      "ILLEGAL",
	PACKAGE:      "PACKAGE",
	IMPORT:       "IMPORT",
	SUITE:        "SUITE",
	DESCRIBE:     "DESCRIBE",
	TEST:         "TEST",
	SETUP:        "SETUP",
	SETUP_ALL:    "SETUP_ALL",
	TEARDOWN:     "TEARDOWN",
	TEARDOWN_ALL: "TEARDOWN_ALL",
	LBRACE:       "LBRACE",
	RBRACE:       "RBRACE",
	LPAREN:       "LPAREN",
	RPAREN:       "RPAREN",
	DOT:          "DOT",
	IDENTIFIER:   "IDENTIFIER",
	STRING:       "STRING",
	BODY:         "BODY",
}

func (t TokenType) String() string {
	if int(t) < len(tokenNames) && int(t) >= 0 {
		return tokenNames[t]
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}

var keywords = map[string]TokenType{
	"package":      PACKAGE,
	"import":       IMPORT,
	"suite":        SUITE,
	"describe":     DESCRIBE,
	"test":         TEST,
	"setup":        SETUP,
	"setup_all":    SETUP_ALL,
	"teardown":     TEARDOWN,
	"teardown_all": TEARDOWN_ALL,
}

// LookupKeyword returns the keyword token for word, or IDENTIFIER
func LookupKeyword(word string) TokenType {
	if tok, ok := keywords[word]; ok {
		return tok
	}
	return IDENTIFIER
}

// Keywords returns every reserved word
func Keywords() []string {
	words := make([]string, 0, len(keywords))
	for w := range keywords {
		words = append(words, w)
	}
	return words
}

// IsKeyword reports whether the token type is a reserved word
func (t TokenType) IsKeyword() bool {
	return t >= PACKAGE && t <= TEARDOWN_ALL
}

// opensBody reports whether a body follows the keyword
func (t TokenType) opensBody() bool {
	return t >= TEST && t <= TEARDOWN_ALL
}

// BlockKind maps a block keyword token to its AST kind
func (t TokenType) BlockKind() (ast.BlockKind, bool) {
	switch t {
	case DESCRIBE:
		return ast.KindDescribe, true
	case TEST:
		return ast.KindTest, true
	case SETUP:
		return ast.KindSetup, true
	case SETUP_ALL:
		return ast.KindSetupAll, true
	case TEARDOWN:
		return ast.KindTeardown, true
	case TEARDOWN_ALL:
		return ast.KindTeardownAll, true
	default:
		return 0, false
	}
}

// Token represents a single token
type Token struct {
	Type     TokenType
	Value    string // identifier text, decoded string value, or error message for ILLEGAL
	Raw      string // source text of the token
	Position verbatim.Position
	Body     verbatim.Block // set for BODY
	Err      error          // set for ILLEGAL
}

// String returns a readable form of the token for diagnostics
func (t Token) String() string {
	switch t.Type {
	case EOF:
		return "end of file"
	case ILLEGAL:
		return fmt.Sprintf("illegal input %q", t.Raw)
	case STRING:
		return fmt.Sprintf("string %s", t.Raw)
	case IDENTIFIER:
		return fmt.Sprintf("identifier `%s`", t.Value)
	case BODY:
		return "block body"
	default:
		if t.Type.IsKeyword() {
			return fmt.Sprintf("keyword `%s`", t.Raw)
		}
		return fmt.Sprintf("'%s'", t.Raw)
	}
}
