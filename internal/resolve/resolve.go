// Package resolve turns the resource path segments of a command chain into an
// OData resource path, validating entity sets, keys, navigations, type casts
// and operations against a schema when one is available.
package resolve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"github.com/nlstn/go-odata-client/internal/edm"
	"github.com/nlstn/go-odata-client/internal/expr"
	"github.com/nlstn/go-odata-client/internal/metadata"
	"github.com/nlstn/go-odata-client/internal/odataerr"
	"github.com/nlstn/go-odata-client/internal/query"
	"github.com/nlstn/go-odata-client/internal/version"
)

// SegmentKind identifies the kind of a path segment.
type SegmentKind int

const (
	// SegmentRoot addresses an entity set or singleton by name.
	SegmentRoot SegmentKind = iota
	// SegmentKey applies a key predicate to the current collection.
	SegmentKey
	// SegmentNavigation follows a navigation property.
	SegmentNavigation
	// SegmentCast narrows the current resource to a derived type.
	SegmentCast
	// SegmentFunction invokes a function, bound when it follows another segment.
	SegmentFunction
	// SegmentAction invokes an action, bound when it follows another segment.
	SegmentAction
)

// KeyValue is one key value. Name is empty for positional keys.
type KeyValue struct {
	Name  string
	Value interface{}
}

// Segment is one step of a resource path.
type Segment struct {
	Kind SegmentKind

	// Name is the entity set, singleton, navigation, type or operation name.
	Name string

	// TypeName optionally pins the entity type of a root segment.
	TypeName string

	// Keys holds the key values of a SegmentKey, positional or named.
	Keys []KeyValue

	// Params holds function parameters.
	Params map[string]interface{}
}

// Target is a resolved resource path.
type Target struct {
	// Path is the escaped resource path relative to the service root, without a leading slash.
	Path string

	// EntitySet is the root entity set or singleton name.
	EntitySet string

	// EntityType is the type addressed by the path, nil for untyped resources.
	EntityType *metadata.EntityType

	// Collection reports whether the path addresses a collection.
	Collection bool

	// Single reports whether the path addresses one entity (keyed or singleton).
	Single bool

	// Operation is the function or action the path ends with, if known.
	Operation *metadata.Operation

	// IsAction reports whether the path ends with an action invocation.
	IsAction bool

	// Params are query parameters produced by resolution: parameter aliases
	// for complex function arguments and v3 service operation arguments.
	Params []query.Param
}

// Resolver resolves segments against an optional schema.
type Resolver struct {
	Schema  metadata.Schema
	Version version.Version
}

// Resolve resolves segments into a Target.
func (r *Resolver) Resolve(segments []Segment) (*Target, error) {
	if len(segments) == 0 {
		return nil, &odataerr.ResolutionError{Segment: "", Message: "empty resource path", Err: odataerr.ErrUnknownEntitySet}
	}
	if r.Version.IsZero() {
		r = &Resolver{Schema: r.Schema, Version: version.V4}
	}

	t := &Target{}
	var parts []string
	for i, seg := range segments {
		var (
			part string
			err  error
		)
		switch seg.Kind {
		case SegmentRoot:
			if i != 0 {
				return nil, &odataerr.ResolutionError{Segment: seg.Name, Message: "entity set must be the first segment", Err: odataerr.ErrUnknownEntitySet}
			}
			part, err = r.root(t, seg)
		case SegmentKey:
			if i == 0 {
				return nil, &odataerr.ResolutionError{Segment: "(...)", Message: "key without an entity set", Err: odataerr.ErrKeyMismatch}
			}
			var key string
			key, err = r.key(t, seg)
			if err == nil && len(parts) > 0 {
				parts[len(parts)-1] += key
				continue
			}
		case SegmentNavigation:
			part, err = r.navigate(t, seg)
		case SegmentCast:
			part, err = r.cast(t, seg)
		case SegmentFunction, SegmentAction:
			part, err = r.operation(t, seg, i == 0)
		default:
			err = fmt.Errorf("odata: unknown segment kind %d", seg.Kind)
		}
		if err != nil {
			return nil, err
		}
		if part != "" {
			parts = append(parts, part)
		}
	}
	t.Path = strings.Join(parts, "/")
	return t, nil
}

func (r *Resolver) root(t *Target, seg Segment) (string, error) {
	t.EntitySet = seg.Name
	if r.Schema == nil {
		t.Collection = true
		return query.EscapePathSegment(seg.Name), nil
	}
	if single, ok := r.Schema.Singleton(seg.Name); ok {
		t.EntityType = r.entityType(single.EntityType, seg.TypeName)
		t.Single = true
		return query.EscapePathSegment(seg.Name), nil
	}
	if set, ok := r.Schema.EntitySet(seg.Name); ok {
		t.EntityType = r.entityType(set.EntityType, seg.TypeName)
		t.Collection = true
		return query.EscapePathSegment(seg.Name), nil
	}
	if seg.TypeName != "" {
		// Typed usage against a set the schema does not list.
		t.EntityType, _ = r.Schema.EntityType(seg.TypeName)
		t.Collection = true
		return query.EscapePathSegment(seg.Name), nil
	}
	return "", &odataerr.ResolutionError{Segment: seg.Name, Err: odataerr.ErrUnknownEntitySet}
}

// entityType prefers the explicit type when it is derived from the declared one.
func (r *Resolver) entityType(declared, explicit string) *metadata.EntityType {
	if explicit != "" && metadata.IsDerivedFrom(r.Schema, explicit, declared) {
		if et, ok := r.Schema.EntityType(explicit); ok {
			return et
		}
	}
	et, _ := r.Schema.EntityType(declared)
	return et
}

func (r *Resolver) key(t *Target, seg Segment) (string, error) {
	if t.Single || (!t.Collection && t.EntityType != nil) {
		return "", &odataerr.ResolutionError{Segment: t.EntitySet, Message: "key applied to a single entity", Err: odataerr.ErrKeyMismatch}
	}
	predicate, err := r.KeyPredicate(t.EntityType, seg.Keys)
	if err != nil {
		return "", err
	}
	t.Collection = false
	t.Single = true
	return predicate, nil
}

// KeyPredicate renders "(value)" or "(A=a,B=b)" for keys against et. A nil et
// formats values by their Go type.
func (r *Resolver) KeyPredicate(et *metadata.EntityType, keys []KeyValue) (string, error) {
	if len(keys) == 0 {
		return "", &odataerr.ResolutionError{Segment: typeName(et), Message: "no key values", Err: odataerr.ErrKeyMismatch}
	}
	named := keys[0].Name != ""
	for _, k := range keys[1:] {
		if (k.Name != "") != named {
			return "", &odataerr.ResolutionError{Segment: typeName(et), Message: "mixed named and positional key values", Err: odataerr.ErrKeyMismatch}
		}
	}

	if et == nil {
		if !named && len(keys) == 1 {
			lit, err := r.literal(keys[0].Value, "")
			if err != nil {
				return "", err
			}
			return "(" + lit + ")", nil
		}
		if !named {
			return "", &odataerr.ResolutionError{Segment: "(...)", Message: "composite keys need property names without a schema", Err: odataerr.ErrKeyMismatch}
		}
		return r.namedPredicate(nil, keys, keyNames(keys))
	}

	if !named {
		if len(keys) != len(et.Keys) {
			return "", &odataerr.ResolutionError{
				Segment: et.FullName(),
				Message: fmt.Sprintf("expected %d key values (%s), got %d", len(et.Keys), strings.Join(et.Keys, ","), len(keys)),
				Err:     odataerr.ErrKeyMismatch,
			}
		}
		if len(keys) == 1 {
			lit, err := r.literal(keys[0].Value, et.KeyType(et.Keys[0]))
			if err != nil {
				return "", keyError(et, et.Keys[0], err)
			}
			return "(" + lit + ")", nil
		}
		named := make([]KeyValue, len(keys))
		for i, k := range keys {
			named[i] = KeyValue{Name: et.Keys[i], Value: k.Value}
		}
		return r.namedPredicate(et, named, et.Keys)
	}

	names := keyNames(keys)
	if et.IsKey(names) {
		if len(keys) == 1 {
			lit, err := r.literal(keys[0].Value, et.KeyType(keys[0].Name))
			if err != nil {
				return "", keyError(et, keys[0].Name, err)
			}
			return "(" + lit + ")", nil
		}
		return r.namedPredicate(et, keys, et.Keys)
	}
	if alt, ok := et.MatchAlternateKey(names); ok {
		return r.namedPredicate(et, keys, alt)
	}
	return "", &odataerr.ResolutionError{
		Segment: et.FullName(),
		Message: fmt.Sprintf("%s is neither the key (%s) nor an alternate key", strings.Join(names, ","), strings.Join(et.Keys, ",")),
		Err:     odataerr.ErrKeyMismatch,
	}
}

// namedPredicate renders A=a,B=b in the order given by order.
func (r *Resolver) namedPredicate(et *metadata.EntityType, keys []KeyValue, order []string) (string, error) {
	values := make(map[string]interface{}, len(keys))
	for _, k := range keys {
		values[k.Name] = k.Value
	}
	parts := make([]string, len(order))
	for i, name := range order {
		declared := ""
		if et != nil {
			declared = et.KeyType(name)
		}
		lit, err := r.literal(values[name], declared)
		if err != nil {
			return "", keyError(et, name, err)
		}
		parts[i] = name + "=" + lit
	}
	return "(" + strings.Join(parts, ",") + ")", nil
}

func (r *Resolver) literal(value interface{}, declared string) (string, error) {
	var (
		lit string
		err error
	)
	if declared == "" {
		lit, err = expr.FormatLiteral(value, r.Version)
	} else {
		lit, err = edm.FormatTypedLiteral(value, declared, r.Version)
	}
	if err != nil {
		return "", err
	}
	return query.EscapePathSegment(lit), nil
}

func keyError(et *metadata.EntityType, name string, err error) error {
	return &odataerr.ResolutionError{Segment: typeName(et) + "." + name, Message: err.Error(), Err: odataerr.ErrKeyMismatch}
}

func keyNames(keys []KeyValue) []string {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.Name
	}
	sort.Strings(names)
	return names
}

func typeName(et *metadata.EntityType) string {
	if et == nil {
		return "<untyped>"
	}
	return et.FullName()
}

func (r *Resolver) navigate(t *Target, seg Segment) (string, error) {
	if t.EntityType == nil {
		// Untyped: nothing to validate against.
		t.Collection, t.Single = true, false
		return query.EscapePathSegment(seg.Name), nil
	}
	nav, err := r.findNavigation(t.EntityType, seg.Name)
	if err != nil {
		return "", err
	}
	target, ok := r.Schema.EntityType(nav.Target)
	if !ok {
		return "", &odataerr.ResolutionError{Segment: nav.Name, Message: "target type " + nav.Target + " is not in the schema", Err: odataerr.ErrUnknownType}
	}
	t.EntityType = target
	t.Collection = nav.Collection
	t.Single = !nav.Collection
	t.Operation = nil
	return nav.Name, nil
}

// findNavigation looks name up as a navigation property, then as the target
// type of exactly one navigation property.
func (r *Resolver) findNavigation(et *metadata.EntityType, name string) (*metadata.Navigation, error) {
	if nav, ok := et.Navigation(name); ok {
		return nav, nil
	}
	var match *metadata.Navigation
	count := 0
	for i := range et.Navigations {
		nav := &et.Navigations[i]
		target, ok := r.Schema.EntityType(nav.Target)
		if !ok || (target.Name != name && target.FullName() != name) {
			continue
		}
		match = nav
		count++
	}
	switch count {
	case 1:
		return match, nil
	case 0:
		return nil, &odataerr.ResolutionError{Segment: name, Message: "not a navigation property of " + et.FullName(), Err: odataerr.ErrUnknownNavigation}
	default:
		return nil, &odataerr.ResolutionError{Segment: name, Message: "several navigation properties of " + et.FullName() + " target this type", Err: odataerr.ErrUnknownNavigation}
	}
}

func (r *Resolver) cast(t *Target, seg Segment) (string, error) {
	if r.Schema == nil {
		return query.EscapePathSegment(seg.Name), nil
	}
	target, ok := r.Schema.EntityType(seg.Name)
	if !ok {
		return "", &odataerr.ResolutionError{Segment: seg.Name, Err: odataerr.ErrUnknownType}
	}
	if t.EntityType != nil {
		if target.FullName() == t.EntityType.FullName() {
			return "", nil
		}
		if !metadata.IsDerivedFrom(r.Schema, target.FullName(), t.EntityType.FullName()) {
			return "", &odataerr.ResolutionError{Segment: seg.Name, Message: "not derived from " + t.EntityType.FullName(), Err: odataerr.ErrUnknownType}
		}
	}
	t.EntityType = target
	return target.FullName(), nil
}

func (r *Resolver) operation(t *Target, seg Segment, unbound bool) (string, error) {
	isAction := seg.Kind == SegmentAction
	var op *metadata.Operation
	if r.Schema != nil {
		found, ok := r.Schema.Operation(seg.Name)
		if !ok {
			return "", &odataerr.ResolutionError{Segment: seg.Name, Message: "unknown function or action", Err: odataerr.ErrUnknownProperty}
		}
		if found.IsAction != isAction {
			kind := "function"
			if found.IsAction {
				kind = "action"
			}
			return "", &odataerr.ResolutionError{Segment: seg.Name, Message: "operation is a " + kind, Err: odataerr.ErrUnknownProperty}
		}
		op = found
	}

	name := seg.Name
	if op != nil {
		name = op.Name
		if !unbound {
			name = op.FullName()
		}
	}
	if unbound {
		t.EntitySet = name
	}
	t.Operation = op
	t.IsAction = isAction
	t.Single = false
	t.Collection = false
	if op != nil && op.ReturnType != "" {
		t.Collection = op.ReturnsCollection()
		t.EntityType, _ = r.Schema.EntityType(op.ReturnElementType())
	} else {
		t.EntityType = nil
	}

	if isAction {
		return query.EscapePathSegment(name), nil
	}
	args, err := r.functionArgs(op, seg.Params, t)
	if err != nil {
		return "", err
	}
	if !r.Version.Supports("nested-query-options") {
		// v3 service operations take their arguments from the query string.
		return query.EscapePathSegment(name), nil
	}
	return query.EscapePathSegment(name) + "(" + strings.Join(args, ",") + ")", nil
}

// functionArgs renders name=literal arguments in declared order when the
// operation is known, in name order otherwise. Complex arguments become
// parameter aliases carried as query parameters.
func (r *Resolver) functionArgs(op *metadata.Operation, params map[string]interface{}, t *Target) ([]string, error) {
	order := expr.SortedKeys(params)
	declared := map[string]string{}
	if op != nil && len(op.Parameters) > 0 {
		order = order[:0]
		for _, p := range op.Parameters {
			declared[p.Name] = p.Type
			if _, ok := params[p.Name]; ok {
				order = append(order, p.Name)
			}
		}
		for name := range params {
			if _, ok := declared[name]; !ok {
				return nil, &odataerr.ResolutionError{Segment: op.Name, Message: "unknown parameter " + name, Err: odataerr.ErrUnknownProperty}
			}
		}
	}

	v3 := !r.Version.Supports("nested-query-options")
	var args []string
	for _, name := range order {
		value := params[name]
		var lit string
		switch value.(type) {
		case map[string]interface{}, []interface{}:
			if v3 {
				return nil, &odataerr.ExpressionError{Mode: "function parameters", Node: name, Reason: "complex parameters require OData v4"}
			}
			data, err := json.Marshal(value)
			if err != nil {
				return nil, err
			}
			alias := "@" + name
			t.Params = append(t.Params, query.Param{Name: alias, Value: string(data)})
			args = append(args, name+"="+alias)
			continue
		default:
			var err error
			if typ := declared[name]; typ != "" && !strings.HasPrefix(typ, "Collection(") {
				lit, err = edm.FormatTypedLiteral(value, typ, r.Version)
			} else {
				lit, err = expr.FormatLiteral(value, r.Version)
			}
			if err != nil {
				return nil, &odataerr.ResolutionError{Segment: name, Message: err.Error(), Err: odataerr.ErrUnsupportedExpression}
			}
		}
		if v3 {
			t.Params = append(t.Params, query.Param{Name: name, Value: lit})
			continue
		}
		args = append(args, name+"="+query.EscapePathSegment(lit))
	}
	return args, nil
}
