package query

import "strings"

const upperhex = "0123456789ABCDEF"

// shouldEscape reports whether c must be percent-encoded in a query value.
// OData punctuation that servers expect verbatim ($ ' ( ) , : / ; = @ *) is kept.
func shouldEscape(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return false
	}
	switch c {
	case '-', '_', '.', '~', '$', '\'', '(', ')', ',', ':', '/', ';', '=', '@', '*', '!':
		return false
	}
	return true
}

// Escape percent-encodes s for use as a query parameter name or value.
// Spaces become %20, never '+', and '&', '+', '#' and '%' are always encoded.
func Escape(s string) string {
	n := 0
	for i := 0; i < len(s); i++ {
		if shouldEscape(s[i]) {
			n++
		}
	}
	if n == 0 {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + 2*n)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if shouldEscape(c) {
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&15])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// EscapePathSegment percent-encodes a single resource path segment such as a
// key predicate. Unlike Escape it also encodes '/'.
func EscapePathSegment(s string) string {
	return strings.ReplaceAll(Escape(s), "/", "%2F")
}
