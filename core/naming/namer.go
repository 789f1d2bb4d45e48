package naming

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sync/atomic"

	"github.com/aledsdavies/gounit/core/ast"
	"github.com/aledsdavies/gounit/core/invariant"
)

// DefaultRoot is the outer scope name used when nothing else names it.
const DefaultRoot = "tests"

// ScopeNamer names the outer scope of a specification that has no suite
// clause. The parser calls it once per Root, after all describes are parsed
// and before Root.Ident is set.
//
// Uniqueness across roots is the namer's contract, not the parser's: callers
// that generate several specifications into one Go package pass a namer that
// never repeats.
type ScopeNamer interface {
	ScopeName(root *ast.Root) string
}

// Fixed always returns the same literal.
type Fixed string

func (f Fixed) ScopeName(*ast.Root) string {
	return string(f)
}

// Sequence hands out prefix_0, prefix_1, ... and is safe for concurrent use.
// Only uniqueness is guaranteed; which root gets which number depends on call
// order.
type Sequence struct {
	prefix string
	next   atomic.Uint64
}

// NewSequence creates a sequence namer. An empty prefix means "gounit".
func NewSequence(prefix string) *Sequence {
	if prefix == "" {
		prefix = "gounit"
	}
	return &Sequence{prefix: prefix}
}

func (s *Sequence) ScopeName(*ast.Root) string {
	n := s.next.Add(1) - 1
	return fmt.Sprintf("%s_%d", s.prefix, n)
}

// ContentHash derives the name from the canonical encoding of the tree, so
// regenerating an unchanged specification yields the same name while two
// different specifications in one package do not collide.
type ContentHash struct {
	Prefix string
}

func (c ContentHash) ScopeName(root *ast.Root) string {
	cr := ast.Canonicalize(root)
	// The name must not depend on the directory the file was read from.
	if cr.Source != "" {
		cr.Source = filepath.Base(cr.Source)
	}
	sum, err := cr.Hash()
	// Canonical CBOR of plain strings and slices cannot fail to encode.
	invariant.Postcondition(err == nil, "canonical hash must not fail: %v", err)

	prefix := c.Prefix
	if prefix == "" {
		prefix = "gounit"
	}
	return prefix + "_" + EncodeBase58(binary.BigEndian.Uint64(sum[:8]))
}
