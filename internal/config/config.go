// Package config loads named client profiles from YAML or TOML files.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/nlstn/go-odata-client/internal/version"
)

// Format identifies a profile file encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

var (
	// ErrUnknownFormat is returned for files that are neither YAML nor TOML.
	ErrUnknownFormat = errors.New("config: unknown file format")

	// ErrProfileNotFound is returned when the requested profile does not exist.
	ErrProfileNotFound = errors.New("config: profile not found")
)

// Profile describes how to reach one OData service.
type Profile struct {
	BaseURL string            `yaml:"base_url" toml:"base_url"`
	Version string            `yaml:"version" toml:"version"`
	Headers map[string]string `yaml:"headers" toml:"headers"`

	// RateLimit is the number of requests per second; zero disables limiting.
	RateLimit float64 `yaml:"rate_limit" toml:"rate_limit"`
	Burst     int     `yaml:"burst" toml:"burst"`

	Timeout  time.Duration `yaml:"timeout" toml:"timeout"`
	PageSize int           `yaml:"page_size" toml:"page_size"`

	// Compression enables gzip and zstd response encodings.
	Compression bool `yaml:"compression" toml:"compression"`
}

// File is the top-level document of a profile file.
type File struct {
	Default  string              `yaml:"default" toml:"default"`
	Profiles map[string]*Profile `yaml:"profiles" toml:"profiles"`
}

// DetectFormat returns the format implied by a file extension.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// Load reads and parses a profile file.
func Load(path string) (*File, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path) //nolint:gosec // path is chosen by the user
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	f, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return f, nil
}

// Parse decodes a profile document in the given format.
func Parse(data []byte, format Format) (*File, error) {
	var f File
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), &f)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown keys: %v", undecoded)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}

	for name, p := range f.Profiles {
		if p == nil {
			return nil, fmt.Errorf("profile %q is empty", name)
		}
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("profile %q: %w", name, err)
		}
	}
	return &f, nil
}

// Names returns the profile names in sorted order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Profiles))
	for name := range f.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Profile returns the named profile. An empty name selects the default
// profile, or the only profile when the file has exactly one.
func (f *File) Profile(name string) (*Profile, error) {
	if name == "" {
		name = f.Default
	}
	if name == "" && len(f.Profiles) == 1 {
		for _, p := range f.Profiles {
			return p, nil
		}
	}
	p, ok := f.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %s)", ErrProfileNotFound, name, strings.Join(f.Names(), ", "))
	}
	return p, nil
}

// Validate checks the profile for values the client cannot use.
func (p *Profile) Validate() error {
	if p.BaseURL == "" {
		return errors.New("base_url is required")
	}
	u, err := url.Parse(p.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must be http or https, got %q", u.Scheme)
	}
	if _, err := p.ProtocolVersion(); err != nil {
		return err
	}
	if p.RateLimit < 0 {
		return fmt.Errorf("rate_limit must not be negative")
	}
	if p.Burst < 0 {
		return fmt.Errorf("burst must not be negative")
	}
	if p.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if p.PageSize < 0 {
		return fmt.Errorf("page_size must not be negative")
	}
	return nil
}

// ProtocolVersion parses the configured version, defaulting to 4.0.
func (p *Profile) ProtocolVersion() (version.Version, error) {
	if p.Version == "" {
		return version.V4, nil
	}
	v, err := version.Parse(p.Version)
	if err != nil {
		return version.Version{}, fmt.Errorf("invalid version: %w", err)
	}
	if v.Major != 3 && v.Major != 4 {
		return version.Version{}, fmt.Errorf("unsupported version %s", v)
	}
	return v, nil
}
