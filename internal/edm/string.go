package edm

import "strings"

// QuoteString returns s as an OData string literal: single-quoted with
// embedded single quotes doubled.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
