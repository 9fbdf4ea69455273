package redact

import (
	"strings"
)

// String masks the middle half of s, keeping a quarter of its runes visible
// at each end.
func String(s string) string {
	r := []rune(s)
	keep := len(r) / 4

	return string(r[:keep]) + strings.Repeat("*", len(r)-2*keep) + string(r[len(r)-keep:])
}
