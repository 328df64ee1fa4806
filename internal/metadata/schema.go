// Package metadata provides the read-only schema lookup the client resolves
// command chains against: entity sets, singletons, entity types with their
// key, structural and navigation properties, and bound or unbound operations.
package metadata

import (
	"strings"
	"sync"
)

// Schema is the read-only schema lookup used during resolution.
// Type names may be passed qualified ("NS.Person") or unqualified ("Person").
type Schema interface {
	Namespace() string
	EntitySet(name string) (*EntitySet, bool)
	Singleton(name string) (*Singleton, bool)
	EntityType(name string) (*EntityType, bool)
	// EntitySetOf returns the entity set whose entity type is typeName.
	EntitySetOf(typeName string) (*EntitySet, bool)
	// Operation returns the function or action named name.
	Operation(name string) (*Operation, bool)
}

// Property is a structural property of an entity or complex type.
type Property struct {
	Name     string
	Type     string
	Nullable bool
}

// Navigation is a navigation property.
type Navigation struct {
	Name       string
	Target     string // qualified or unqualified entity type name
	Collection bool
	Partner    string
}

// EntityType describes an entity type. Keys lists the key property names in
// declared order; AlternateKeys lists additional unique property combinations.
type EntityType struct {
	Name          string
	Namespace     string
	BaseType      string
	Keys          []string
	AlternateKeys [][]string
	Properties    []Property
	Navigations   []Navigation
	Open          bool
	ETagProperty  string
}

// FullName returns the namespace-qualified type name.
func (t *EntityType) FullName() string {
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// Property returns the structural property called name.
func (t *EntityType) Property(name string) (*Property, bool) {
	for i := range t.Properties {
		if t.Properties[i].Name == name {
			return &t.Properties[i], true
		}
	}
	return nil, false
}

// Navigation returns the navigation property called name.
func (t *EntityType) Navigation(name string) (*Navigation, bool) {
	for i := range t.Navigations {
		if t.Navigations[i].Name == name {
			return &t.Navigations[i], true
		}
	}
	return nil, false
}

// KeyType returns the declared EDM type of key property name, or "" when unknown.
func (t *EntityType) KeyType(name string) string {
	if p, ok := t.Property(name); ok {
		return p.Type
	}
	return ""
}

// IsKey reports whether names is exactly the set of key properties, in any order.
func (t *EntityType) IsKey(names []string) bool {
	return sameSet(t.Keys, names)
}

// MatchAlternateKey returns the alternate key consisting of exactly names.
func (t *EntityType) MatchAlternateKey(names []string) ([]string, bool) {
	for _, alt := range t.AlternateKeys {
		if sameSet(alt, names) {
			return alt, true
		}
	}
	return nil, false
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) || len(a) == 0 {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, n := range a {
		seen[n]++
	}
	for _, n := range b {
		if seen[n] == 0 {
			return false
		}
		seen[n]--
	}
	return true
}

// EntitySet is a named collection of entities of one entity type.
type EntitySet struct {
	Name       string
	EntityType string
}

// Singleton is a named single entity.
type Singleton struct {
	Name       string
	EntityType string
}

// Parameter is a function or action parameter.
type Parameter struct {
	Name string
	Type string
}

// Operation is a function or action.
type Operation struct {
	Name       string
	Namespace  string
	IsAction   bool
	IsBound    bool
	Parameters []Parameter
	// ReturnType is the EDM or schema type returned; collections use "Collection(T)".
	ReturnType string
}

// FullName returns the namespace-qualified operation name.
func (o *Operation) FullName() string {
	if o.Namespace == "" {
		return o.Name
	}
	return o.Namespace + "." + o.Name
}

// ReturnsCollection reports whether the operation returns a collection.
func (o *Operation) ReturnsCollection() bool {
	return strings.HasPrefix(o.ReturnType, "Collection(")
}

// ReturnElementType returns the return type with any Collection() wrapper removed.
func (o *Operation) ReturnElementType() string {
	if o.ReturnsCollection() {
		return strings.TrimSuffix(strings.TrimPrefix(o.ReturnType, "Collection("), ")")
	}
	return o.ReturnType
}

// Static is an in-memory Schema assembled by hand, from Go structs or from CSDL.
// It is safe for concurrent reads once built; the Add methods lock.
type Static struct {
	mu         sync.RWMutex
	namespace  string
	types      map[string]*EntityType
	sets       map[string]*EntitySet
	singletons map[string]*Singleton
	operations map[string]*Operation
	flattened  map[string]*EntityType
}

// NewStatic creates an empty schema whose default namespace is namespace.
func NewStatic(namespace string) *Static {
	return &Static{
		namespace:  namespace,
		types:      make(map[string]*EntityType),
		sets:       make(map[string]*EntitySet),
		singletons: make(map[string]*Singleton),
		operations: make(map[string]*Operation),
		flattened:  make(map[string]*EntityType),
	}
}

// Namespace returns the default namespace.
func (s *Static) Namespace() string {
	return s.namespace
}

// AddEntityType registers t. An empty Namespace is replaced by the schema default.
func (s *Static) AddEntityType(t EntityType) *Static {
	if t.Namespace == "" {
		t.Namespace = s.namespace
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.types[t.FullName()] = &t
	s.flattened = make(map[string]*EntityType)
	return s
}

// AddEntitySet registers an entity set of typeName.
func (s *Static) AddEntitySet(name, typeName string) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[name] = &EntitySet{Name: name, EntityType: typeName}
	return s
}

// AddSingleton registers a singleton of typeName.
func (s *Static) AddSingleton(name, typeName string) *Static {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.singletons[name] = &Singleton{Name: name, EntityType: typeName}
	return s
}

// AddOperation registers a function or action.
func (s *Static) AddOperation(op Operation) *Static {
	if op.Namespace == "" {
		op.Namespace = s.namespace
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.operations[op.Name] = &op
	return s
}

// EntitySet implements Schema.
func (s *Static) EntitySet(name string) (*EntitySet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.sets[name]
	return set, ok
}

// Singleton implements Schema.
func (s *Static) Singleton(name string) (*Singleton, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	single, ok := s.singletons[name]
	return single, ok
}

// Operation implements Schema. Qualified names are accepted.
func (s *Static) Operation(name string) (*Operation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if op, ok := s.operations[name]; ok {
		return op, true
	}
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		op, ok := s.operations[name[idx+1:]]
		if ok && op.FullName() == name {
			return op, true
		}
	}
	return nil, false
}

// EntitySetOf implements Schema.
func (s *Static) EntitySetOf(typeName string) (*EntitySet, bool) {
	t, ok := s.EntityType(typeName)
	if !ok {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *EntitySet
	for _, set := range s.sets {
		if s.qualify(set.EntityType) == t.FullName() {
			if found != nil {
				// Several sets share the type; the caller must name one.
				return nil, false
			}
			found = set
		}
	}
	return found, found != nil
}

// EntityType implements Schema. The returned type includes the keys and
// properties inherited from its base types.
func (s *Static) EntityType(name string) (*EntityType, bool) {
	s.mu.RLock()
	full := s.qualify(name)
	if t, ok := s.flattened[full]; ok {
		s.mu.RUnlock()
		return t, true
	}
	t, ok := s.flatten(full, 0)
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	s.mu.Lock()
	s.flattened[full] = t
	s.mu.Unlock()
	return t, true
}

// qualify maps an unqualified type name to its registered full name.
func (s *Static) qualify(name string) string {
	if _, ok := s.types[name]; ok {
		return name
	}
	if full := s.namespace + "." + name; s.types[full] != nil {
		return full
	}
	for full, t := range s.types {
		if t.Name == name {
			return full
		}
	}
	return name
}

func (s *Static) flatten(full string, depth int) (*EntityType, bool) {
	t, ok := s.types[full]
	if !ok || depth > 32 {
		return nil, false
	}
	merged := *t
	if t.BaseType == "" {
		return &merged, true
	}
	base, ok := s.flatten(s.qualify(t.BaseType), depth+1)
	if !ok {
		return &merged, true
	}
	if len(merged.Keys) == 0 {
		merged.Keys = base.Keys
	}
	if merged.ETagProperty == "" {
		merged.ETagProperty = base.ETagProperty
	}
	merged.AlternateKeys = append(append([][]string{}, base.AlternateKeys...), t.AlternateKeys...)
	merged.Properties = append(append([]Property{}, base.Properties...), t.Properties...)
	merged.Navigations = append(append([]Navigation{}, base.Navigations...), t.Navigations...)
	merged.Open = merged.Open || base.Open
	return &merged, true
}

// IsDerivedFrom reports whether typeName equals baseName or inherits from it.
func IsDerivedFrom(schema Schema, typeName, baseName string) bool {
	base, ok := schema.EntityType(baseName)
	if !ok {
		return false
	}
	for depth := 0; depth < 32; depth++ {
		t, ok := schema.EntityType(typeName)
		if !ok {
			return false
		}
		if t.FullName() == base.FullName() {
			return true
		}
		if t.BaseType == "" {
			return false
		}
		typeName = t.BaseType
	}
	return false
}
