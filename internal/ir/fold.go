package ir

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Fold returns the case-insensitive comparison form of s.
//
// The string is NFC normalized first so that composed and decomposed forms of
// the same character (common with Japanese kana and accented Latin text) match,
// then Unicode case folded. Plain strings.ToLower only handles simple mappings.
func Fold(s string) string {
	return cases.Fold().String(norm.NFC.String(s))
}

// ContainsFold reports whether needle occurs in haystack, ignoring case.
// needle must already be folded with Fold.
func ContainsFold(haystack, foldedNeedle string) bool {
	if foldedNeedle == "" {
		return true
	}
	return strings.Contains(Fold(haystack), foldedNeedle)
}
