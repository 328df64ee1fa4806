package odata

import (
	"io"

	"github.com/nlstn/go-odata-client/internal/edm"
	"github.com/nlstn/go-odata-client/internal/metadata"
	"github.com/nlstn/go-odata-client/internal/version"
)

// Schema is the read-only schema lookup commands are resolved against.
// A client without a schema resolves every chain untyped.
type Schema = metadata.Schema

// StaticSchema is an in-memory Schema built by hand, from Go structs or from
// a $metadata document.
type StaticSchema = metadata.Static

// Schema entries.
type (
	EntityType = metadata.EntityType
	EntitySet  = metadata.EntitySet
	Singleton  = metadata.Singleton
	Property   = metadata.Property
	Navigation = metadata.Navigation
	Parameter  = metadata.Parameter
	Operation  = metadata.Operation
)

// NewSchema creates an empty schema whose default namespace is namespace.
//
// Example:
//
//	schema := odata.NewSchema("Trippin")
//	if err := schema.Register(&Person{}, "People"); err != nil {
//	    return err
//	}
func NewSchema(namespace string) *StaticSchema {
	return metadata.NewStatic(namespace)
}

// ParseMetadata reads a CSDL $metadata document (v3 or v4).
func ParseMetadata(r io.Reader) (*StaticSchema, error) {
	return metadata.ParseCSDL(r)
}

// Version is an OData protocol version.
type Version = version.Version

// Protocol versions.
var (
	V3   = version.V3
	V4   = version.V4
	V401 = version.V401
)

// ParseVersion parses a version string such as "4.0" or "3.0".
func ParseVersion(s string) (Version, error) {
	return version.Parse(s)
}

// Primitive values without a direct Go counterpart.
type (
	// Date is an Edm.Date.
	Date = edm.Date
	// TimeOfDay is an Edm.TimeOfDay.
	TimeOfDay = edm.TimeOfDay
	// Enum is a member of a schema enumeration type, for untyped enum literals.
	Enum = edm.Enum
)
