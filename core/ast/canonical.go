package ast

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"golang.org/x/crypto/blake2b"
)

// CanonicalVersion is bumped whenever the canonical layout changes, so that
// hashes from different layouts never compare equal.
const CanonicalVersion uint8 = 1

// CanonicalRoot is the position-free form of a Root used for hashing and for
// dumping the tree. Two specifications that differ only in layout outside
// block bodies have the same canonical form.
type CanonicalRoot struct {
	Version   uint8               `cbor:"version" json:"version"`
	Source    string              `cbor:"source" json:"source,omitempty"`
	Package   string              `cbor:"package" json:"package,omitempty"`
	Imports   []CanonicalImport   `cbor:"imports" json:"imports,omitempty"`
	Ident     string              `cbor:"ident" json:"ident,omitempty"`
	Describes []CanonicalDescribe `cbor:"describes" json:"describes"`
}

// CanonicalImport is an import in canonical form
type CanonicalImport struct {
	Name string `cbor:"name" json:"name,omitempty"`
	Path string `cbor:"path" json:"path"`
}

// CanonicalDescribe is a describe in canonical form. Hooks are keyed by
// keyword so absent hooks are absent from the encoding.
type CanonicalDescribe struct {
	Ident string                   `cbor:"ident" json:"ident"`
	Hooks map[string]CanonicalHook `cbor:"hooks" json:"hooks,omitempty"`
	Tests []CanonicalTest          `cbor:"tests" json:"tests"`
}

// CanonicalHook is a hook in canonical form
type CanonicalHook struct {
	Label string `cbor:"label" json:"label,omitempty"`
	Body  string `cbor:"body" json:"body"`
}

// CanonicalTest is a test in canonical form
type CanonicalTest struct {
	Ident string `cbor:"ident" json:"ident"`
	Body  string `cbor:"body" json:"body"`
}

// Canonicalize builds the canonical form of root
func Canonicalize(root *Root) *CanonicalRoot {
	cr := &CanonicalRoot{
		Version:   CanonicalVersion,
		Source:    root.Source,
		Package:   root.Package,
		Ident:     root.Ident,
		Describes: make([]CanonicalDescribe, 0, len(root.Describes)),
	}

	for _, imp := range root.Imports {
		cr.Imports = append(cr.Imports, CanonicalImport{Name: imp.Name, Path: imp.Path})
	}

	for _, d := range root.Describes {
		cd := CanonicalDescribe{
			Ident: d.Ident,
			Tests: make([]CanonicalTest, 0, len(d.Tests)),
		}
		for _, h := range d.Hooks() {
			if cd.Hooks == nil {
				cd.Hooks = make(map[string]CanonicalHook)
			}
			cd.Hooks[h.Kind.String()] = CanonicalHook{Label: h.Label, Body: h.Body.Source()}
		}
		for _, t := range d.Tests {
			cd.Tests = append(cd.Tests, CanonicalTest{Ident: t.Ident, Body: t.Body.Source()})
		}
		cr.Describes = append(cr.Describes, cd)
	}

	return cr
}

// MarshalBinary produces deterministic CBOR encoding of the canonical tree.
func (cr *CanonicalRoot) MarshalBinary() ([]byte, error) {
	encMode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}

	// Alias drops the MarshalBinary method so CBOR does not recurse into it.
	type canonicalRootAlias CanonicalRoot
	data, err := encMode.Marshal((*canonicalRootAlias)(cr))
	if err != nil {
		return nil, fmt.Errorf("CBOR encoding failed: %w", err)
	}

	return data, nil
}

// Hash computes the BLAKE2b-256 digest of the canonical encoding.
func (cr *CanonicalRoot) Hash() ([32]byte, error) {
	data, err := cr.MarshalBinary()
	if err != nil {
		return [32]byte{}, err
	}
	return blake2b.Sum256(data), nil
}

// DecodeCanonical reads a CBOR-encoded canonical tree.
func DecodeCanonical(data []byte) (*CanonicalRoot, error) {
	type canonicalRootAlias CanonicalRoot
	var alias canonicalRootAlias
	if err := cbor.Unmarshal(data, &alias); err != nil {
		return nil, fmt.Errorf("CBOR decoding failed: %w", err)
	}
	cr := CanonicalRoot(alias)
	return &cr, nil
}
