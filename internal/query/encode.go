package query

import (
	"strconv"
	"strings"

	"github.com/nlstn/go-odata-client/internal/odataerr"
	"github.com/nlstn/go-odata-client/internal/version"
)

// Encode renders the options as ordered parameters: $filter, $expand,
// $select, $orderby, $top, $skip, $count ($inlinecount before v4), $search,
// then custom parameters.
func (o *QueryOptions) Encode(v version.Version) ([]Param, error) {
	var params []Param

	if f := filterString(o.Filter); f != "" {
		params = append(params, Param{Name: "$filter", Value: f})
	}

	selects := o.Select
	if len(o.Expand) > 0 {
		var expand string
		if v.Supports("nested-query-options") {
			expand = renderExpandsV4(o.Expand)
		} else {
			paths, nestedSelects, err := flattenExpandsV3(o.Expand, "")
			if err != nil {
				return nil, err
			}
			expand = strings.Join(paths, ",")
			if len(selects) > 0 || len(nestedSelects) > 0 {
				selects = append(append([]string(nil), selects...), nestedSelects...)
			}
		}
		params = append(params, Param{Name: "$expand", Value: expand})
	}

	if len(selects) > 0 {
		params = append(params, Param{Name: "$select", Value: strings.Join(selects, ",")})
	}
	if len(o.OrderBy) > 0 {
		params = append(params, Param{Name: "$orderby", Value: orderByString(o.OrderBy)})
	}
	if o.Top != nil {
		params = append(params, Param{Name: "$top", Value: strconv.Itoa(*o.Top)})
	}
	if o.Skip != nil {
		params = append(params, Param{Name: "$skip", Value: strconv.Itoa(*o.Skip)})
	}
	if o.Count {
		params = append(params, countParam(v))
	}
	if o.Search != "" {
		params = append(params, Param{Name: "$search", Value: o.Search})
	}
	params = append(params, o.Params...)
	return params, nil
}

func orderByString(items []OrderByItem) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = item.Property
		if item.Descending {
			parts[i] += " desc"
		}
	}
	return strings.Join(parts, ",")
}

// renderExpandsV4 renders Nav(opt;opt),Nav2 with options nested in parentheses.
func renderExpandsV4(expands []*ExpandOption) string {
	parts := make([]string, len(expands))
	for i, e := range expands {
		parts[i] = e.NavigationProperty + nestedOptions(&e.Options)
	}
	return strings.Join(parts, ",")
}

func nestedOptions(o *QueryOptions) string {
	var opts []string
	if f := filterString(o.Filter); f != "" {
		opts = append(opts, "$filter="+f)
	}
	if len(o.Expand) > 0 {
		opts = append(opts, "$expand="+renderExpandsV4(o.Expand))
	}
	if len(o.Select) > 0 {
		opts = append(opts, "$select="+strings.Join(o.Select, ","))
	}
	if len(o.OrderBy) > 0 {
		opts = append(opts, "$orderby="+orderByString(o.OrderBy))
	}
	if o.Top != nil {
		opts = append(opts, "$top="+strconv.Itoa(*o.Top))
	}
	if o.Skip != nil {
		opts = append(opts, "$skip="+strconv.Itoa(*o.Skip))
	}
	if o.Count {
		opts = append(opts, "$count=true")
	}
	if o.Search != "" {
		opts = append(opts, "$search="+o.Search)
	}
	if len(opts) == 0 {
		return ""
	}
	return "(" + strings.Join(opts, ";") + ")"
}

// flattenExpandsV3 turns nested expands into slash paths, the only form v3
// understands. Nested selects become prefixed top-level selects.
func flattenExpandsV3(expands []*ExpandOption, prefix string) ([]string, []string, error) {
	var paths, selects []string
	for _, e := range expands {
		path := prefix + e.NavigationProperty
		if e.Options.hasNestedQuery() {
			return nil, nil, &odataerr.ExpressionError{
				Mode:   "$expand",
				Node:   "ExpandOption(" + path + ")",
				Reason: "nested query options require OData v4",
			}
		}
		for _, s := range e.Options.Select {
			selects = append(selects, path+"/"+s)
		}
		if len(e.Options.Expand) == 0 {
			paths = append(paths, path)
			continue
		}
		childPaths, childSelects, err := flattenExpandsV3(e.Options.Expand, path+"/")
		if err != nil {
			return nil, nil, err
		}
		paths = append(paths, childPaths...)
		selects = append(selects, childSelects...)
	}
	return paths, selects, nil
}

// Render joins params into an escaped query string without the leading '?'.
func Render(params []Param) string {
	var b strings.Builder
	for i, p := range params {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(Escape(p.Name))
		b.WriteByte('=')
		b.WriteString(Escape(p.Value))
	}
	return b.String()
}
