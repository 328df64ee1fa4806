package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Version represents an OData protocol version
type Version struct {
	Major int
	Minor int
}

// Protocol versions understood by the client.
var (
	V3   = Version{Major: 3, Minor: 0}
	V4   = Version{Major: 4, Minor: 0}
	V401 = Version{Major: 4, Minor: 1}
)

// Pre-computed string representations for the standard OData versions.
const (
	v300String = "3.0"
	v400String = "4.0"
	v401String = "4.01"
)

// String returns the version as a string in "Major.Minor" format
// For minor version 1, returns "4.01" to match OData convention
func (v Version) String() string {
	switch v {
	case V3:
		return v300String
	case V4:
		return v400String
	case V401:
		return v401String
	}
	if v.Minor == 0 {
		return fmt.Sprintf("%d.0", v.Major)
	}
	if v.Minor < 10 {
		return fmt.Sprintf("%d.0%d", v.Major, v.Minor)
	}
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// IsZero reports whether the version is unset.
func (v Version) IsZero() bool {
	return v.Major == 0 && v.Minor == 0
}

// LessThanOrEqual compares two versions using decimal comparison
func (v Version) LessThanOrEqual(other Version) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	return v.Minor <= other.Minor
}

// Supports returns whether this version supports a specific client feature.
func (v Version) Supports(feature string) bool {
	switch feature {
	case "in-operator":
		// The 'in' operator was added in OData 4.01
		return V401.LessThanOrEqual(v)
	case "nested-query-options":
		// $expand=Nav($filter=...;$select=...) is a v4 construct
		return V4.LessThanOrEqual(v)
	case "count-option":
		// v3 uses $inlinecount=allpages instead of $count=true
		return V4.LessThanOrEqual(v)
	case "typed-literal-prefixes":
		// guid'..', datetime'..', time'..' were dropped in v4
		return !V4.LessThanOrEqual(v)
	default:
		return false
	}
}

// AnnotationPrefix returns the prefix of control information in JSON payloads
// ("@odata." for v4, "odata." for v3 JSON light).
func (v Version) AnnotationPrefix() string {
	if V4.LessThanOrEqual(v) {
		return "@odata."
	}
	return "odata."
}

// HeaderName returns the request header that carries the protocol version.
func (v Version) HeaderName() string {
	if V4.LessThanOrEqual(v) {
		return "OData-Version"
	}
	return "DataServiceVersion"
}

// MaxHeaderName returns the request header that carries the maximum accepted version.
func (v Version) MaxHeaderName() string {
	if V4.LessThanOrEqual(v) {
		return "OData-MaxVersion"
	}
	return "MaxDataServiceVersion"
}

// parseVersion parses a version string like "4.0" or "4.01" into major and minor components.
// Returns an error if the version string is invalid.
func parseVersion(version string) (int, int, error) {
	version = strings.TrimSpace(version)
	// Response headers may carry a trailing client hint ("3.0;NetFx")
	if idx := strings.IndexByte(version, ';'); idx >= 0 {
		version = strings.TrimSpace(version[:idx])
	}
	if version == "" {
		return 0, 0, fmt.Errorf("empty version string")
	}

	parts := strings.Split(version, ".")
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid major version in %s: %w", version, err)
	}

	minor := 0
	if len(parts) > 1 {
		minor, err = strconv.Atoi(parts[1])
		if err != nil {
			return 0, 0, fmt.Errorf("invalid minor version in %s: %w", version, err)
		}
	}

	return major, minor, nil
}

// Parse parses a version string such as "4.0", "4.01" or "3.0;NetFx".
func Parse(versionStr string) (Version, error) {
	major, minor, err := parseVersion(versionStr)
	if err != nil {
		return Version{}, err
	}
	return Version{Major: major, Minor: minor}, nil
}
