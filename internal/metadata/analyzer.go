package metadata

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/nlstn/go-odata-client/internal/edm"
)

// EntityMetadata holds metadata derived from a Go struct used as an OData entity
type EntityMetadata struct {
	GoType        reflect.Type
	EntityName    string
	EntitySetName string
	Properties    []PropertyMetadata
	KeyProperties []PropertyMetadata // Support for composite keys
	AlternateKeys [][]string         // Wire names, grouped by `odata:"altkey=Group"`
	ETagProperty  *PropertyMetadata  // Property carrying the concurrency token (optional)
	IsSingleton   bool               // True if this is a singleton (single instance accessible by name)
	SingletonName string             // Name of the singleton (if IsSingleton is true)
}

// PropertyMetadata holds metadata information about an entity property
type PropertyMetadata struct {
	Name              string // Wire name (json tag or field name)
	Type              reflect.Type
	FieldName         string
	EdmType           string
	IsKey             bool
	IsNavigationProp  bool
	NavigationTarget  string // Entity type name for navigation properties
	NavigationIsArray bool   // True for collection navigation properties
	IsComplex         bool   // True for nested structs without a key
	IsETag            bool
	Nullable          bool
	AlternateKey      string // Alternate key group name
	EnumTypeName      string // Name of the enum type, from `odata:"enum=NS.Type"`
}

// AnalyzeEntity extracts metadata from a Go struct for OData usage
func AnalyzeEntity(entity interface{}) (*EntityMetadata, error) {
	entityType, err := structType(entity, "entity")
	if err != nil {
		return nil, err
	}

	metadata := initializeMetadata(entityType)
	analyzeFields(entityType, metadata)

	// Validate that we have at least one key property
	if len(metadata.KeyProperties) == 0 {
		return nil, fmt.Errorf("entity %s must have at least one key property (use `odata:\"key\"` tag or name field 'ID')", metadata.EntityName)
	}

	return metadata, nil
}

// AnalyzeSingleton extracts metadata from a Go struct for OData singleton usage
// Singletons are single instances of an entity type that can be accessed directly by name
func AnalyzeSingleton(entity interface{}, singletonName string) (*EntityMetadata, error) {
	entityType, err := structType(entity, "singleton")
	if err != nil {
		return nil, err
	}

	metadata := initializeMetadata(entityType)
	metadata.EntitySetName = singletonName
	metadata.SingletonName = singletonName
	metadata.IsSingleton = true
	analyzeFields(entityType, metadata)

	// Singletons are addressed by name, so a key is optional
	return metadata, nil
}

func structType(entity interface{}, what string) (reflect.Type, error) {
	var entityType reflect.Type
	if t, ok := entity.(reflect.Type); ok {
		entityType = t
	} else {
		entityType = reflect.TypeOf(entity)
	}
	if entityType == nil {
		return nil, fmt.Errorf("%s must be a struct, got nil", what)
	}

	// Handle pointer types
	for entityType.Kind() == reflect.Ptr {
		entityType = entityType.Elem()
	}

	if entityType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%s must be a struct, got %s", what, entityType.Kind())
	}
	return entityType, nil
}

// initializeMetadata creates a new EntityMetadata struct with basic information
func initializeMetadata(entityType reflect.Type) *EntityMetadata {
	entityName := entityType.Name()

	return &EntityMetadata{
		GoType:        entityType,
		EntityName:    entityName,
		EntitySetName: pluralize(entityName),
		Properties:    make([]PropertyMetadata, 0),
	}
}

func analyzeFields(entityType reflect.Type, metadata *EntityMetadata) {
	groups := make(map[string][]string)
	var groupOrder []string

	for i := 0; i < entityType.NumField(); i++ {
		field := entityType.Field(i)

		// Embedded structs contribute their fields, the way encoding/json flattens them
		if field.Anonymous && indirect(field.Type).Kind() == reflect.Struct && field.Tag.Get("json") == "" {
			analyzeFields(indirect(field.Type), metadata)
			continue
		}

		// Skip unexported fields
		if !field.IsExported() {
			continue
		}

		jsonName := getJsonName(field)
		if jsonName == "-" {
			continue
		}

		property := analyzeField(field, jsonName)
		if property.IsKey {
			metadata.KeyProperties = append(metadata.KeyProperties, property)
		}
		if property.AlternateKey != "" {
			if _, ok := groups[property.AlternateKey]; !ok {
				groupOrder = append(groupOrder, property.AlternateKey)
			}
			groups[property.AlternateKey] = append(groups[property.AlternateKey], property.Name)
		}
		metadata.Properties = append(metadata.Properties, property)
	}

	for i := range metadata.Properties {
		if metadata.Properties[i].IsETag {
			metadata.ETagProperty = &metadata.Properties[i]
		}
	}

	// Auto-detect key if no explicit key is set and field name is "ID"
	if len(metadata.KeyProperties) == 0 {
		for i := range metadata.Properties {
			if metadata.Properties[i].FieldName == "ID" {
				metadata.Properties[i].IsKey = true
				metadata.KeyProperties = append(metadata.KeyProperties, metadata.Properties[i])
				break
			}
		}
	}

	for _, g := range groupOrder {
		metadata.AlternateKeys = append(metadata.AlternateKeys, groups[g])
	}
}

// analyzeField analyzes a single struct field and creates a PropertyMetadata
func analyzeField(field reflect.StructField, jsonName string) PropertyMetadata {
	property := PropertyMetadata{
		Name:      jsonName,
		Type:      field.Type,
		FieldName: field.Name,
		Nullable:  isNullable(field.Type),
	}

	// Check for OData tags
	tags := parseODataTag(field.Tag.Get("odata"))
	analyzeNavigationProperty(&property, field, tags)
	analyzeODataTags(&property, tags)

	if !property.IsNavigationProp && property.EdmType == "" {
		property.EdmType = edmTypeOf(field.Type, property)
	}
	return property
}

// analyzeNavigationProperty determines if a field is a navigation property or a complex property
func analyzeNavigationProperty(property *PropertyMetadata, field reflect.StructField, tags map[string]string) {
	fieldType := field.Type
	isSlice := fieldType.Kind() == reflect.Slice
	if isSlice {
		fieldType = fieldType.Elem()
	}
	fieldType = indirect(fieldType)

	if fieldType.Kind() != reflect.Struct || isPrimitiveStruct(fieldType) {
		return
	}

	_, tagged := tags["nav"]
	if tagged || hasKey(fieldType) {
		property.IsNavigationProp = true
		property.NavigationTarget = fieldType.Name()
		property.NavigationIsArray = isSlice
		return
	}
	property.IsComplex = true
}

func parseODataTag(tag string) map[string]string {
	tags := make(map[string]string)
	if tag == "" {
		return tags
	}
	// Parse tag as comma-separated key-value pairs
	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		tags[name] = value
	}
	return tags
}

// analyzeODataTags processes OData-specific tags on a field
func analyzeODataTags(property *PropertyMetadata, tags map[string]string) {
	for name, value := range tags {
		switch name {
		case "key":
			property.IsKey = true
		case "etag":
			property.IsETag = true
		case "altkey":
			property.AlternateKey = value
			if value == "" {
				property.AlternateKey = property.Name
			}
		case "enum":
			property.EnumTypeName = value
			property.EdmType = value
		case "type":
			property.EdmType = value
		case "nullable":
			property.Nullable = value != "false"
		}
	}
}

var primitiveStructs = map[reflect.Type]bool{
	reflect.TypeOf(time.Time{}):     true,
	reflect.TypeOf(edm.Date{}):      true,
	reflect.TypeOf(edm.TimeOfDay{}): true,
	reflect.TypeOf(edm.Enum{}):      true,
}

func isPrimitiveStruct(t reflect.Type) bool {
	if primitiveStructs[t] {
		return true
	}
	_, err := edm.FromGoType(t)
	return err == nil
}

// hasKey reports whether a struct type looks like an entity: an `odata:"key"` tag or an ID field.
func hasKey(t reflect.Type) bool {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous && indirect(field.Type).Kind() == reflect.Struct && hasKey(indirect(field.Type)) {
			return true
		}
		if !field.IsExported() {
			continue
		}
		if field.Name == "ID" {
			return true
		}
		if _, ok := parseODataTag(field.Tag.Get("odata"))["key"]; ok {
			return true
		}
	}
	return false
}

func edmTypeOf(t reflect.Type, property PropertyMetadata) string {
	if property.IsComplex {
		name := indirect(t)
		if name.Kind() == reflect.Slice {
			return "Collection(" + indirect(name.Elem()).Name() + ")"
		}
		return name.Name()
	}
	if t.Kind() == reflect.Slice && t.Elem().Kind() != reflect.Uint8 {
		if inner, err := edm.FromGoType(t.Elem()); err == nil {
			return "Collection(" + inner + ")"
		}
		return ""
	}
	typeName, err := edm.FromGoType(t)
	if err != nil {
		return ""
	}
	return typeName
}

func isNullable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Interface:
		return true
	}
	return false
}

func indirect(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t
}

// getJsonName extracts the JSON field name from struct tags
func getJsonName(field reflect.StructField) string {
	jsonTag := field.Tag.Get("json")
	if jsonTag == "" {
		return field.Name
	}

	// Handle json:",omitempty" or json:"fieldname,omitempty"
	parts := strings.Split(jsonTag, ",")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}

	return field.Name
}

// EntityType converts the analyzed struct into a schema entity type in namespace.
func (m *EntityMetadata) EntityType(namespace string) EntityType {
	t := EntityType{
		Name:          m.EntityName,
		Namespace:     namespace,
		AlternateKeys: m.AlternateKeys,
	}
	for _, k := range m.KeyProperties {
		t.Keys = append(t.Keys, k.Name)
	}
	if m.ETagProperty != nil {
		t.ETagProperty = m.ETagProperty.Name
	}
	for _, p := range m.Properties {
		if p.IsNavigationProp {
			t.Navigations = append(t.Navigations, Navigation{
				Name:       p.Name,
				Target:     p.NavigationTarget,
				Collection: p.NavigationIsArray,
			})
			continue
		}
		edmType := p.EdmType
		if p.IsComplex && namespace != "" {
			if inner, ok := strings.CutPrefix(edmType, "Collection("); ok {
				edmType = "Collection(" + namespace + "." + inner
			} else {
				edmType = namespace + "." + edmType
			}
		}
		t.Properties = append(t.Properties, Property{Name: p.Name, Type: edmType, Nullable: p.Nullable})
	}
	return t
}

// Register analyzes entity and adds its type and an entity set named setName
// to the schema. An empty setName uses the pluralized type name. Types reachable
// through navigation properties are registered as well.
func (s *Static) Register(entity interface{}, setName string) error {
	meta, err := AnalyzeEntity(entity)
	if err != nil {
		return err
	}
	if setName == "" {
		setName = meta.EntitySetName
	}
	if err := s.registerType(meta, make(map[reflect.Type]bool)); err != nil {
		return err
	}
	s.AddEntitySet(setName, meta.EntityName)
	return nil
}

// RegisterSingleton analyzes entity and adds its type and a singleton called name.
func (s *Static) RegisterSingleton(entity interface{}, name string) error {
	meta, err := AnalyzeSingleton(entity, name)
	if err != nil {
		return err
	}
	if err := s.registerType(meta, make(map[reflect.Type]bool)); err != nil {
		return err
	}
	s.AddSingleton(name, meta.EntityName)
	return nil
}

// RegisterType analyzes entity and adds its type without an entity set, e.g.
// for derived types used in casts.
func (s *Static) RegisterType(entity interface{}, baseType string) error {
	meta, err := AnalyzeSingleton(entity, "")
	if err != nil {
		return err
	}
	meta.IsSingleton = false
	t := meta.EntityType(s.namespace)
	t.BaseType = baseType
	if baseType != "" {
		// Inherited fields are embedded; the base type owns them
		if base, ok := s.EntityType(baseType); ok {
			t.Keys = nil
			t.Properties = withoutInherited(t.Properties, base)
			t.Navigations = withoutInheritedNav(t.Navigations, base)
		}
	}
	s.AddEntityType(t)
	return s.registerNavigationTargets(meta, map[reflect.Type]bool{meta.GoType: true})
}

func (s *Static) registerType(meta *EntityMetadata, seen map[reflect.Type]bool) error {
	seen[meta.GoType] = true
	s.AddEntityType(meta.EntityType(s.namespace))
	return s.registerNavigationTargets(meta, seen)
}

func (s *Static) registerNavigationTargets(meta *EntityMetadata, seen map[reflect.Type]bool) error {
	for _, p := range meta.Properties {
		if !p.IsNavigationProp {
			continue
		}
		target := p.Type
		if target.Kind() == reflect.Slice {
			target = target.Elem()
		}
		target = indirect(target)
		if seen[target] {
			continue
		}
		if _, ok := s.EntityType(target.Name()); ok {
			continue
		}
		targetMeta, err := AnalyzeSingleton(target, "")
		if err != nil {
			return fmt.Errorf("navigation %s.%s: %w", meta.EntityName, p.Name, err)
		}
		if err := s.registerType(targetMeta, seen); err != nil {
			return err
		}
	}
	return nil
}

func withoutInherited(props []Property, base *EntityType) []Property {
	out := props[:0:0]
	for _, p := range props {
		if _, ok := base.Property(p.Name); !ok {
			out = append(out, p)
		}
	}
	return out
}

func withoutInheritedNav(navs []Navigation, base *EntityType) []Navigation {
	out := navs[:0:0]
	for _, n := range navs {
		if _, ok := base.Navigation(n.Name); !ok {
			out = append(out, n)
		}
	}
	return out
}

// pluralize creates a simple pluralized form of the entity name
// This is a basic implementation - could be enhanced with proper pluralization library
func pluralize(word string) string {
	if word == "" {
		return word
	}

	// Simple pluralization rules
	switch {
	case strings.HasSuffix(word, "y") && len(word) > 1 && !isVowel(rune(word[len(word)-2])):
		// Only change y to ies if preceded by a consonant (e.g., "Category" -> "Categories")
		// If preceded by a vowel, just add s (e.g., "Key" -> "Keys")
		return word[:len(word)-1] + "ies"
	case strings.HasSuffix(word, "s") || strings.HasSuffix(word, "x") || strings.HasSuffix(word, "z") ||
		strings.HasSuffix(word, "ch") || strings.HasSuffix(word, "sh"):
		return word + "es"
	default:
		return word + "s"
	}
}

// isVowel checks if a rune is a vowel
func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u', 'A', 'E', 'I', 'O', 'U':
		return true
	default:
		return false
	}
}
