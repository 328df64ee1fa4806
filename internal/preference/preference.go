// Package preference builds Prefer header values and reads the
// Preference-Applied header a service answers with.
package preference

import (
	"net/http"
	"strconv"
	"strings"
)

// Preference values sent by the client.
const (
	ReturnRepresentation = "return=representation"
	ReturnMinimal        = "return=minimal"
	TrackChanges         = "odata.track-changes"
)

// MaxPageSize returns the preference asking for at most n entries per page.
func MaxPageSize(n int) string {
	return "odata.maxpagesize=" + strconv.Itoa(n)
}

// Applied represents the preferences a service reports as honoured.
type Applied struct {
	ReturnRepresentation bool
	ReturnMinimal        bool
	TrackChanges         bool
	// MaxPageSize is the page size the service applied, 0 if none.
	MaxPageSize int
}

// ParseApplied parses the Preference-Applied header of a response.
// Preferences may be comma-separated or repeated across header lines.
func ParseApplied(h http.Header) *Applied {
	applied := &Applied{}
	for _, line := range h.Values("Preference-Applied") {
		for _, p := range strings.Split(line, ",") {
			p = strings.ToLower(strings.TrimSpace(p))
			name, value, _ := strings.Cut(p, "=")
			switch strings.TrimSpace(name) {
			case "return":
				switch strings.TrimSpace(value) {
				case "representation":
					applied.ReturnRepresentation = true
				case "minimal":
					applied.ReturnMinimal = true
				}
			case "odata.track-changes":
				applied.TrackChanges = true
			case "odata.maxpagesize":
				if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && n > 0 {
					applied.MaxPageSize = n
				}
			}
		}
	}
	return applied
}

// ReturnsContent reports whether a write response is expected to carry the
// entity, given the status code. POST defaults to a representation, PATCH and
// PUT default to none unless the service applied return=representation.
func (a *Applied) ReturnsContent(isPost bool, statusCode int) bool {
	if statusCode == http.StatusNoContent {
		return false
	}
	if isPost {
		return !a.ReturnMinimal
	}
	return a.ReturnRepresentation || statusCode == http.StatusOK
}
