// Package naming turns free-text labels into identifier fragments and names
// the outer scope of generated code.
package naming

import (
	"strings"
	"unicode"
)

// SanitizeLabel converts a test label into an identifier fragment.
// The transform is fixed and order-sensitive: lowercase, each space becomes
// an underscore, colons are removed.
//
//	SanitizeLabel("Success: Add Positive Numbers") == "success_add_positive_numbers"
//
// No uniqueness check is made here.
func SanitizeLabel(label string) string {
	s := strings.ToLower(label)
	s = strings.ReplaceAll(s, " ", "_")
	return strings.ReplaceAll(s, ":", "")
}

// SanitizeDescribeLabel is SanitizeLabel with path separators removed as well.
func SanitizeDescribeLabel(label string) string {
	return strings.ReplaceAll(SanitizeLabel(label), "/", "")
}

// IsIdentFragment reports whether s can be embedded in a Go identifier:
// non-empty and made only of letters, digits and underscores.
func IsIdentFragment(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r != '_' && !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
