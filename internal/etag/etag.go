// Package etag reads entity tags from OData payloads and formats If-Match
// preconditions.
package etag

import (
	"reflect"
	"strings"

	"github.com/nlstn/go-odata-client/internal/version"
)

// annotationNames lists the entity tag annotation spellings, v4 first.
var annotationNames = []string{"@odata.etag", "odata.etag"}

// Annotation returns the entity tag annotation name for protocol version v.
func Annotation(v version.Version) string {
	return v.AnnotationPrefix() + "etag"
}

// FromEntity extracts the entity tag carried by an entity. Maps are searched
// for the etag annotation; structs for a field whose json name is the
// annotation. Returns an empty string if the entity carries no tag.
func FromEntity(entity interface{}) string {
	if entity == nil {
		return ""
	}

	if m, ok := entity.(map[string]interface{}); ok {
		return fromMap(m)
	}

	entityValue := reflect.ValueOf(entity)
	for entityValue.Kind() == reflect.Ptr {
		if entityValue.IsNil() {
			return ""
		}
		entityValue = entityValue.Elem()
	}
	if entityValue.Kind() != reflect.Struct {
		return ""
	}
	return fromStruct(entityValue)
}

func fromMap(entityMap map[string]interface{}) string {
	for _, name := range annotationNames {
		if s, ok := entityMap[name].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func fromStruct(entityValue reflect.Value) string {
	entityType := entityValue.Type()
	for i := 0; i < entityType.NumField(); i++ {
		field := entityType.Field(i)
		if !field.IsExported() {
			continue
		}
		jsonName := strings.Split(field.Tag.Get("json"), ",")[0]
		for _, name := range annotationNames {
			if jsonName != name {
				continue
			}
			fieldValue := entityValue.Field(i)
			if fieldValue.Kind() == reflect.Ptr {
				if fieldValue.IsNil() {
					return ""
				}
				fieldValue = fieldValue.Elem()
			}
			if fieldValue.Kind() == reflect.String {
				return fieldValue.String()
			}
		}
	}
	return ""
}

// IfMatch formats tag as an If-Match header value. Quoted tags, weak tags
// and "*" pass through unchanged; bare values are quoted.
func IfMatch(tag string) string {
	tag = strings.TrimSpace(tag)
	switch {
	case tag == "", tag == "*":
		return tag
	case strings.HasPrefix(tag, "W/"), strings.HasPrefix(tag, `"`):
		return tag
	}
	return `"` + tag + `"`
}

// Parse extracts the ETag value from a quoted ETag string
// Handles both strong ("value") and weak (W/"value") ETags
func Parse(etagHeader string) string {
	if etagHeader == "" {
		return ""
	}

	// Remove W/ prefix if present (weak ETag)
	if len(etagHeader) > 2 && etagHeader[:2] == "W/" {
		etagHeader = etagHeader[2:]
	}

	// Remove quotes
	if len(etagHeader) >= 2 && etagHeader[0] == '"' && etagHeader[len(etagHeader)-1] == '"' {
		return etagHeader[1 : len(etagHeader)-1]
	}

	return etagHeader
}

// Match checks if the provided If-Match header value matches the current ETag
// Returns true if ifMatch is "*" and an ETag exists
func Match(ifMatch string, currentETag string) bool {
	if ifMatch == "" {
		return false
	}

	// "*" matches any ETag (entity must exist)
	if ifMatch == "*" {
		return currentETag != ""
	}

	return Parse(ifMatch) == Parse(currentETag)
}
