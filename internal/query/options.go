// Package query assembles OData system query options and renders them as an
// escaped query string.
package query

import (
	"strings"

	"github.com/nlstn/go-odata-client/internal/version"
)

// QueryOptions holds the system query options of one request, or of one
// expanded navigation when nested inside an ExpandOption.
type QueryOptions struct {
	Filter  []string // AND-combined
	Select  []string
	Expand  []*ExpandOption
	OrderBy []OrderByItem
	Top     *int
	Skip    *int
	Count   bool
	Search  string
	Params  []Param // custom and parameter-alias options, rendered last
}

// ExpandOption represents a single $expand clause
type ExpandOption struct {
	NavigationProperty string
	Options            QueryOptions // Nested $filter, $select, $expand, $orderby, $top, $skip, $count
}

// OrderByItem represents a single orderby clause
type OrderByItem struct {
	Property   string
	Descending bool
}

// Param is a single name=value query parameter.
type Param struct {
	Name  string
	Value string
}

// Clone returns a deep copy of o.
func (o *QueryOptions) Clone() *QueryOptions {
	out := &QueryOptions{
		Filter:  append([]string(nil), o.Filter...),
		Select:  append([]string(nil), o.Select...),
		OrderBy: append([]OrderByItem(nil), o.OrderBy...),
		Count:   o.Count,
		Search:  o.Search,
		Params:  append([]Param(nil), o.Params...),
	}
	if o.Top != nil {
		top := *o.Top
		out.Top = &top
	}
	if o.Skip != nil {
		skip := *o.Skip
		out.Skip = &skip
	}
	for _, e := range o.Expand {
		out.Expand = append(out.Expand, &ExpandOption{
			NavigationProperty: e.NavigationProperty,
			Options:            *e.Options.Clone(),
		})
	}
	return out
}

// IsEmpty reports whether no option is set.
func (o *QueryOptions) IsEmpty() bool {
	return len(o.Filter) == 0 && len(o.Select) == 0 && len(o.Expand) == 0 && len(o.OrderBy) == 0 &&
		o.Top == nil && o.Skip == nil && !o.Count && o.Search == "" && len(o.Params) == 0
}

// AddFilter appends a translated predicate; predicates are AND-combined.
func (o *QueryOptions) AddFilter(filter string) {
	if filter != "" {
		o.Filter = append(o.Filter, filter)
	}
}

// AddSelect adds property paths, ignoring ones already selected.
func (o *QueryOptions) AddSelect(paths ...string) {
	for _, p := range paths {
		if p != "" && !contains(o.Select, p) {
			o.Select = append(o.Select, p)
		}
	}
}

// AddOrderBy appends ordering clauses.
func (o *QueryOptions) AddOrderBy(items ...OrderByItem) {
	o.OrderBy = append(o.OrderBy, items...)
}

// AddParam appends a custom query parameter.
func (o *QueryOptions) AddParam(name, value string) {
	o.Params = append(o.Params, Param{Name: name, Value: value})
}

// AddExpand adds a navigation path and returns the option for its last
// segment. Multi-segment paths ("Trips/PlanItems") become nested expands.
// Expanding a path twice returns the existing option.
func (o *QueryOptions) AddExpand(path string) *ExpandOption {
	segments := splitPath(path)
	if len(segments) == 0 {
		return nil
	}
	current := o
	var exp *ExpandOption
	for _, seg := range segments {
		exp = current.findExpand(seg)
		if exp == nil {
			exp = &ExpandOption{NavigationProperty: seg}
			current.Expand = append(current.Expand, exp)
		}
		current = &exp.Options
	}
	return exp
}

// FindExpand returns the deepest expand matching a prefix of path and the
// remaining path below it. It returns nil when the first segment is not expanded.
func (o *QueryOptions) FindExpand(path string) (*ExpandOption, string) {
	segments := splitPath(path)
	current := o
	var found *ExpandOption
	consumed := 0
	for i, seg := range segments {
		exp := current.findExpand(seg)
		if exp == nil {
			break
		}
		found = exp
		consumed = i + 1
		current = &exp.Options
	}
	if found == nil {
		return nil, path
	}
	return found, strings.Join(segments[consumed:], "/")
}

func (o *QueryOptions) findExpand(nav string) *ExpandOption {
	for _, e := range o.Expand {
		if e.NavigationProperty == nav {
			return e
		}
	}
	return nil
}

// hasNestedQuery reports whether options other than $expand/$select are set.
func (o *QueryOptions) hasNestedQuery() bool {
	return len(o.Filter) > 0 || len(o.OrderBy) > 0 || o.Top != nil || o.Skip != nil || o.Count || o.Search != ""
}

func splitPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' })
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// filterString AND-combines the accumulated predicates.
func filterString(filters []string) string {
	switch len(filters) {
	case 0:
		return ""
	case 1:
		return filters[0]
	}
	parts := make([]string, len(filters))
	for i, f := range filters {
		parts[i] = "(" + f + ")"
	}
	return strings.Join(parts, " and ")
}

// countParam returns the inline count option for protocol version v.
func countParam(v version.Version) Param {
	if v.Supports("count-option") {
		return Param{Name: "$count", Value: "true"}
	}
	return Param{Name: "$inlinecount", Value: "allpages"}
}
