package resolve

import (
	"fmt"
	"strings"

	"github.com/nlstn/go-odata-client/internal/metadata"
	"github.com/nlstn/go-odata-client/internal/odataerr"
	"github.com/nlstn/go-odata-client/internal/query"
)

// CheckOptions validates the $expand, $select and $orderby paths of opts
// against et, descending into the options of each expanded navigation.
// Without a schema or a known type everything is accepted.
func (r *Resolver) CheckOptions(et *metadata.EntityType, opts *query.QueryOptions) error {
	if r.Schema == nil || et == nil || opts == nil {
		return nil
	}
	for _, exp := range opts.Expand {
		target, err := r.walk(et, splitMember(exp.NavigationProperty), true)
		if err != nil {
			return err
		}
		if err := r.CheckOptions(target, &exp.Options); err != nil {
			return err
		}
	}
	for _, path := range opts.Select {
		if _, err := r.walk(et, splitMember(path), false); err != nil {
			return err
		}
	}
	for _, item := range opts.OrderBy {
		if _, err := r.walk(et, splitMember(item.Property), false); err != nil {
			return err
		}
	}
	return nil
}

// CheckMember validates a member path of a filter. expand is the navigation
// path of the expanded collection the filter applies to, empty for the
// addressed resource itself.
func (r *Resolver) CheckMember(et *metadata.EntityType, expand, path []string) error {
	if r.Schema == nil || et == nil {
		return nil
	}
	base, err := r.walk(et, expand, true)
	if err != nil || base == nil {
		return err
	}
	_, err = r.walk(base, path, false)
	return err
}

// walk follows segments from et and returns the entity type reached, or nil
// when the path ends in a structural property or leaves what the schema
// describes. navOnly demands navigation properties and type casts only.
func (r *Resolver) walk(et *metadata.EntityType, segments []string, navOnly bool) (*metadata.EntityType, error) {
	cur := et
	for _, seg := range segments {
		switch {
		case cur == nil, seg == "*", strings.HasPrefix(seg, "$"), strings.HasSuffix(seg, ".*"):
			return nil, nil
		case strings.Contains(seg, "."):
			target, ok := r.Schema.EntityType(seg)
			if !ok || !metadata.IsDerivedFrom(r.Schema, target.FullName(), cur.FullName()) {
				return nil, &odataerr.ResolutionError{Segment: seg, Message: "not a type derived from " + cur.FullName(), Err: odataerr.ErrUnknownType}
			}
			cur = target
			continue
		}
		if nav, ok := cur.Navigation(seg); ok {
			target, ok := r.Schema.EntityType(nav.Target)
			if !ok {
				return nil, nil
			}
			cur = target
			continue
		}
		if navOnly {
			return nil, &odataerr.ResolutionError{Segment: seg, Message: "not a navigation property of " + cur.FullName(), Err: odataerr.ErrUnknownNavigation}
		}
		// Complex types are not part of the schema lookup.
		if _, ok := cur.Property(seg); ok || cur.Open {
			return nil, nil
		}
		return nil, &odataerr.ResolutionError{Segment: seg, Message: fmt.Sprintf("not a property of %s", cur.FullName()), Err: odataerr.ErrUnknownProperty}
	}
	return cur, nil
}

func splitMember(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
}
