package version

import "testing"

func TestVersion_String(t *testing.T) {
	tests := []struct {
		name     string
		version  Version
		expected string
	}{
		{"3.0", Version{3, 0}, "3.0"},
		{"4.0", Version{4, 0}, "4.0"},
		{"4.01", Version{4, 1}, "4.01"},
		{"4.12", Version{4, 12}, "4.12"},
		{"5.0", Version{5, 0}, "5.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.version.String()
			if result != tt.expected {
				t.Errorf("Version.String() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestVersion_LessThanOrEqual(t *testing.T) {
	tests := []struct {
		name     string
		v1       Version
		v2       Version
		expected bool
	}{
		{"3.0 <= 4.0", V3, V4, true},
		{"4.0 <= 4.0", Version{4, 0}, Version{4, 0}, true},
		{"4.0 <= 4.01", Version{4, 0}, Version{4, 1}, true},
		{"4.01 <= 4.0", Version{4, 1}, Version{4, 0}, false},
		{"5.0 <= 4.12", Version{5, 0}, Version{4, 12}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.v1.LessThanOrEqual(tt.v2)
			if result != tt.expected {
				t.Errorf("%v.LessThanOrEqual(%v) = %v, want %v", tt.v1, tt.v2, result, tt.expected)
			}
		})
	}
}

func TestVersion_Supports(t *testing.T) {
	tests := []struct {
		name     string
		version  Version
		feature  string
		expected bool
	}{
		{"4.0 in-operator", V4, "in-operator", false},
		{"4.01 in-operator", V401, "in-operator", true},
		{"3.0 nested options", V3, "nested-query-options", false},
		{"4.0 nested options", V4, "nested-query-options", true},
		{"3.0 count option", V3, "count-option", false},
		{"3.0 literal prefixes", V3, "typed-literal-prefixes", true},
		{"4.0 literal prefixes", V4, "typed-literal-prefixes", false},
		{"unknown feature", V401, "teleport", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.version.Supports(tt.feature)
			if result != tt.expected {
				t.Errorf("%v.Supports(%q) = %v, want %v", tt.version, tt.feature, result, tt.expected)
			}
		})
	}
}

func TestVersion_Headers(t *testing.T) {
	if got := V4.HeaderName(); got != "OData-Version" {
		t.Errorf("V4.HeaderName() = %q", got)
	}
	if got := V3.MaxHeaderName(); got != "MaxDataServiceVersion" {
		t.Errorf("V3.MaxHeaderName() = %q", got)
	}
	if got := V401.AnnotationPrefix(); got != "@odata." {
		t.Errorf("V401.AnnotationPrefix() = %q", got)
	}
	if got := V3.AnnotationPrefix(); got != "odata." {
		t.Errorf("V3.AnnotationPrefix() = %q", got)
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    Version
		expectError bool
	}{
		{"4.0", "4.0", V4, false},
		{"4.01", "4.01", V401, false},
		{"major only", "4", V4, false},
		{"whitespace", "  4.0  ", V4, false},
		{"v3 with client hint", "3.0;NetFx", V3, false},
		{"empty", "", Version{}, true},
		{"invalid major", "x.0", Version{}, true},
		{"invalid minor", "4.x", Version{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := Parse(tt.input)
			if tt.expectError {
				if err == nil {
					t.Errorf("Parse(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.input, err)
			}
			if v != tt.expected {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, v, tt.expected)
			}
		})
	}
}
