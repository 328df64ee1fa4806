package odata

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/nlstn/go-odata-client/internal/etag"
	"github.com/nlstn/go-odata-client/internal/expr"
	"github.com/nlstn/go-odata-client/internal/odataerr"
	"github.com/nlstn/go-odata-client/internal/query"
	"github.com/nlstn/go-odata-client/internal/resolve"
	"github.com/nlstn/go-odata-client/internal/version"
)

// Entry is a decoded entity: property names to values, including control
// annotations such as "@odata.etag".
type Entry = map[string]interface{}

type commandKind int

const (
	kindFor commandKind = iota
	kindUnbound
	kindDetached
	kindKey
	kindNavigate
	kindCast
	kindFilter
	kindFilterRaw
	kindExpand
	kindExpandWith
	kindSelect
	kindOrderBy
	kindTop
	kindSkip
	kindCount
	kindSearch
	kindParam
	kindTrackChanges
	kindSet
	kindFunction
	kindAction
	kindETag
)

var kindNames = map[commandKind]string{
	kindFor:          "For",
	kindUnbound:      "Unbound",
	kindDetached:     "ExpandWith",
	kindKey:          "Key",
	kindNavigate:     "NavigateTo",
	kindCast:         "As",
	kindFilter:       "Filter",
	kindFilterRaw:    "FilterRaw",
	kindExpand:       "Expand",
	kindExpandWith:   "ExpandWith",
	kindSelect:       "Select",
	kindOrderBy:      "OrderBy",
	kindTop:          "Top",
	kindSkip:         "Skip",
	kindCount:        "Count",
	kindSearch:       "Search",
	kindParam:        "QueryParam",
	kindTrackChanges: "TrackChanges",
	kindSet:          "Set",
	kindFunction:     "Function",
	kindAction:       "Action",
	kindETag:         "WithETag",
}

func (k commandKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("command(%d)", int(k))
}

// Command is one step of a command chain. Every builder method returns a new
// Command pointing at its predecessor; no Command is modified after it is
// built, so a common prefix can be shared and extended from several
// goroutines.
//
// Example:
//
//	people := client.For("People")
//	russell := people.Key("russellwhyte")
//	trips, err := russell.NavigateTo("Trips").
//	    Filter(odata.P("Budget").Gt(3000)).
//	    OrderByDescending("StartsAt").
//	    FindEntries(ctx, nil)
type Command struct {
	client *Client
	prev   *Command
	kind   commandKind

	name     string
	typeName string
	keys     []resolve.KeyValue
	node     expr.Node
	raw      string
	paths    []string
	desc     bool
	n        int
	value    interface{}
	params   map[string]interface{}
	nested   func(*Command) *Command
	err      error
}

// For starts a chain at the entity set or singleton called name.
func (c *Client) For(name string) *Command {
	return &Command{client: c, kind: kindFor, name: name}
}

// ForType starts a chain at the entity set or singleton called name and pins
// its entity type to the schema type named like T. Leave name empty to use
// the entity set the schema declares for T.
func ForType[T any](c *Client, name string) *Command {
	typeName := reflect.TypeOf((*T)(nil)).Elem().Name()
	if name == "" {
		name = typeName
		if c.schema != nil {
			if set, ok := c.schema.EntitySetOf(typeName); ok {
				name = set.Name
			}
		}
	}
	return &Command{client: c, kind: kindFor, name: name, typeName: typeName}
}

// Unbound starts a chain for an unbound function or action.
//
// Example:
//
//	airport, err := client.Unbound().
//	    Function("GetNearestAirport", map[string]interface{}{"lat": 33.0, "lon": -118.0}).
//	    ExecuteAsSingle(ctx)
func (c *Client) Unbound() *Command {
	return &Command{client: c, kind: kindUnbound}
}

func (cmd *Command) then(next *Command) *Command {
	next.client = cmd.client
	next.prev = cmd
	return next
}

// Key addresses one entity of the current collection. Composite keys take
// their values in the order the schema declares the key properties.
func (cmd *Command) Key(values ...interface{}) *Command {
	keys := make([]resolve.KeyValue, len(values))
	for i, v := range values {
		keys[i] = resolve.KeyValue{Value: v}
	}
	return cmd.then(&Command{kind: kindKey, keys: keys})
}

// KeyNamed addresses one entity by key property names, or by an alternate
// key declared in the schema.
func (cmd *Command) KeyNamed(values map[string]interface{}) *Command {
	keys := make([]resolve.KeyValue, 0, len(values))
	for _, name := range expr.SortedKeys(values) {
		keys = append(keys, resolve.KeyValue{Name: name, Value: values[name]})
	}
	return cmd.then(&Command{kind: kindKey, keys: keys})
}

// NavigateTo follows a navigation property. name may also be the entity type
// that exactly one navigation property of the current type targets. A
// pending filter that equates the key properties becomes the key of the
// entity navigated from.
func (cmd *Command) NavigateTo(name string) *Command {
	return cmd.then(&Command{kind: kindNavigate, name: name})
}

// As casts the current resource to a derived entity type. Casting to the
// current type adds no segment.
func (cmd *Command) As(typeName string) *Command {
	return cmd.then(&Command{kind: kindCast, name: typeName})
}

// Filter adds a predicate. Predicates accumulate and are AND-combined.
func (cmd *Command) Filter(predicate Expr) *Command {
	return cmd.then(&Command{kind: kindFilter, node: predicate})
}

// FilterRaw adds a predicate in OData syntax, passed through unchanged.
func (cmd *Command) FilterRaw(predicate string) *Command {
	return cmd.then(&Command{kind: kindFilterRaw, raw: predicate})
}

// Expand adds navigation paths to $expand. Multi-segment paths such as
// "Trips/PlanItems" nest.
func (cmd *Command) Expand(paths ...string) *Command {
	return cmd.then(&Command{kind: kindExpand, paths: paths})
}

// ExpandExpr adds the member paths of selector to $expand.
func (cmd *Command) ExpandExpr(selector Expr) *Command {
	return cmd.then(&Command{kind: kindExpand, node: selector})
}

// ExpandWith expands path and applies the options built by fn to the
// expanded collection. fn receives an empty chain and may use Filter,
// Select, Expand, OrderBy, Top, Skip and Count.
//
// Example:
//
//	client.For("People").ExpandWith("Trips", func(t *odata.Command) *odata.Command {
//	    return t.Filter(odata.P("Budget").Gt(1000)).Top(5)
//	})
func (cmd *Command) ExpandWith(path string, fn func(*Command) *Command) *Command {
	return cmd.then(&Command{kind: kindExpandWith, paths: []string{path}, nested: fn})
}

// Select restricts the returned properties. Paths below an expanded
// navigation are applied inside that expansion.
func (cmd *Command) Select(paths ...string) *Command {
	return cmd.then(&Command{kind: kindSelect, paths: paths})
}

// SelectExpr selects the member paths of selector.
func (cmd *Command) SelectExpr(selector Expr) *Command {
	return cmd.then(&Command{kind: kindSelect, node: selector})
}

// OrderBy sorts ascending by paths.
func (cmd *Command) OrderBy(paths ...string) *Command {
	return cmd.then(&Command{kind: kindOrderBy, paths: paths})
}

// OrderByDescending sorts descending by paths.
func (cmd *Command) OrderByDescending(paths ...string) *Command {
	return cmd.then(&Command{kind: kindOrderBy, paths: paths, desc: true})
}

// OrderByExpr sorts by an ordering selector built with Member.Asc and Member.Desc.
func (cmd *Command) OrderByExpr(selector Expr) *Command {
	return cmd.then(&Command{kind: kindOrderBy, node: selector})
}

// Top limits the number of returned entries.
func (cmd *Command) Top(n int) *Command {
	next := &Command{kind: kindTop, n: n}
	if n < 0 {
		next.err = fmt.Errorf("odata: Top must not be negative, got %d", n)
	}
	return cmd.then(next)
}

// Skip skips the first n entries.
func (cmd *Command) Skip(n int) *Command {
	next := &Command{kind: kindSkip, n: n}
	if n < 0 {
		next.err = fmt.Errorf("odata: Skip must not be negative, got %d", n)
	}
	return cmd.then(next)
}

// Count asks for the total count: inline with FindEntries, or as the /$count
// resource with FindScalar.
func (cmd *Command) Count() *Command {
	return cmd.then(&Command{kind: kindCount})
}

// Search adds a $search expression.
func (cmd *Command) Search(expression string) *Command {
	return cmd.then(&Command{kind: kindSearch, raw: expression})
}

// QueryParam adds a custom query parameter, rendered after the system options.
func (cmd *Command) QueryParam(name, value string) *Command {
	return cmd.then(&Command{kind: kindParam, name: name, raw: value})
}

// TrackChanges asks the service for a delta link (Prefer: odata.track-changes).
func (cmd *Command) TrackChanges() *Command {
	return cmd.then(&Command{kind: kindTrackChanges})
}

// Set supplies the entity values for InsertEntry and UpdateEntry: a struct
// or a string-keyed map. A later Set replaces an earlier one.
func (cmd *Command) Set(values interface{}) *Command {
	return cmd.then(&Command{kind: kindSet, value: values})
}

// Function invokes a function, bound to the current resource or, after
// Unbound, unbound. Functions are sent as GET.
func (cmd *Command) Function(name string, params map[string]interface{}) *Command {
	return cmd.then(&Command{kind: kindFunction, name: name, params: params})
}

// Action invokes an action, bound to the current resource or, after Unbound,
// unbound. params is a struct or string-keyed map sent as the JSON body;
// nil sends no body.
func (cmd *Command) Action(name string, params interface{}) *Command {
	return cmd.then(&Command{kind: kindAction, name: name, value: params})
}

// WithETag sends tag as the If-Match precondition of UpdateEntry and
// DeleteEntry. "*" matches any existing entity.
func (cmd *Command) WithETag(tag string) *Command {
	return cmd.then(&Command{kind: kindETag, raw: etag.IfMatch(tag)})
}

// WithETagOf uses the entity tag carried by entity, an Entry or a struct
// with an "@odata.etag" field. An entity without a tag sends no precondition.
func (cmd *Command) WithETagOf(entity interface{}) *Command {
	return cmd.WithETag(etag.FromEntity(entity))
}

// plan is a compiled chain.
type plan struct {
	segments []resolve.Segment
	opts     query.QueryOptions

	// filters are the typed predicates applied to the final resource.
	filters []expr.Node
	// rawFilters are FilterRaw predicates applied to the final resource.
	rawFilters []string

	entity       interface{}
	hasEntity    bool
	actionParams interface{}
	ifMatch      string
	trackChanges bool

	// operation is kindFunction or kindAction when the chain invokes one.
	operation commandKind
	hasOp     bool

	// scoped keeps the filter trees, including those of expanded
	// navigations, for member checks once the target type is known.
	scoped []scopedFilter
}

// scopedFilter is a filter tree and the expand path it applies below.
type scopedFilter struct {
	expand []string
	node   expr.Node
}

func (p *plan) hasFilters() bool {
	return len(p.filters) > 0 || len(p.rawFilters) > 0
}

// steps returns the chain from its root to cmd.
func (cmd *Command) steps() []*Command {
	var out []*Command
	for n := cmd; n != nil; n = n.prev {
		out = append(out, n)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// compile folds the chain into path segments and query options.
func (cmd *Command) compile() (*plan, error) {
	v := cmd.client.version
	p := &plan{}
	var optionSteps []*Command

	for _, step := range cmd.steps() {
		if step.err != nil {
			return nil, step.err
		}
		switch step.kind {
		case kindFor:
			p.segments = append(p.segments, resolve.Segment{Kind: resolve.SegmentRoot, Name: step.name, TypeName: step.typeName})
		case kindUnbound:
		case kindDetached:
			return nil, fmt.Errorf("odata: a chain built inside ExpandWith cannot be executed")
		case kindKey:
			if p.hasFilters() {
				return nil, &odataerr.ResolutionError{Segment: "(...)", Message: "key applied after a filter", Err: odataerr.ErrKeyMismatch}
			}
			p.segments = append(p.segments, resolve.Segment{Kind: resolve.SegmentKey, Keys: step.keys})
		case kindNavigate, kindFunction, kindAction:
			if err := p.foldKeyFilter(); err != nil {
				return nil, err
			}
			seg := resolve.Segment{Kind: resolve.SegmentNavigation, Name: step.name}
			switch step.kind {
			case kindFunction:
				seg.Kind = resolve.SegmentFunction
				seg.Params = step.params
				p.operation, p.hasOp = kindFunction, true
			case kindAction:
				seg.Kind = resolve.SegmentAction
				p.actionParams = step.value
				p.operation, p.hasOp = kindAction, true
			default:
				p.hasOp = false
			}
			p.segments = append(p.segments, seg)
		case kindCast:
			p.segments = append(p.segments, resolve.Segment{Kind: resolve.SegmentCast, Name: step.name})
		case kindFilter:
			if step.node == nil {
				return nil, &odataerr.ExpressionError{Mode: expr.ModeFilter.String(), Node: "<nil>", Reason: "empty predicate"}
			}
			p.filters = append(p.filters, step.node)
		case kindFilterRaw:
			if step.raw != "" {
				p.rawFilters = append(p.rawFilters, step.raw)
			}
		case kindTrackChanges:
			p.trackChanges = true
		case kindSet:
			p.entity, p.hasEntity = step.value, true
		case kindETag:
			p.ifMatch = step.raw
		default:
			optionSteps = append(optionSteps, step)
		}
	}

	if err := applyOptions(&p.opts, optionSteps, v, nil, &p.scoped); err != nil {
		return nil, err
	}
	for _, f := range p.filters {
		s, err := expr.Translate(f, expr.ModeFilter, expr.Options{Version: v})
		if err != nil {
			return nil, err
		}
		p.opts.AddFilter(s)
		p.scoped = append(p.scoped, scopedFilter{node: f})
	}
	for _, f := range p.rawFilters {
		p.opts.AddFilter(f)
	}
	return p, nil
}

// foldKeyFilter turns the pending filters into the key of the current
// collection before the path moves on.
func (p *plan) foldKeyFilter() error {
	if !p.hasFilters() {
		return nil
	}
	if len(p.rawFilters) > 0 {
		return &odataerr.ResolutionError{Segment: "$filter", Message: "a raw filter cannot address the entity to navigate from", Err: odataerr.ErrKeyMismatch}
	}
	terms, ok := expr.EqualityTerms(expr.And(p.filters...))
	if !ok {
		return &odataerr.ResolutionError{Segment: "$filter", Message: "only an equality over the key can address the entity to navigate from", Err: odataerr.ErrKeyMismatch}
	}
	p.segments = append(p.segments, resolve.Segment{Kind: resolve.SegmentKey, Keys: termKeys(terms)})
	p.filters = nil
	return nil
}

func termKeys(terms []expr.Term) []resolve.KeyValue {
	keys := make([]resolve.KeyValue, len(terms))
	for i, t := range terms {
		keys[i] = resolve.KeyValue{Name: t.Property, Value: t.Value}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Name < keys[j].Name })
	return keys
}

// applyOptions applies expand steps first so that select and orderby paths
// below an expanded navigation land inside it. Filters of nested chains are
// collected into scoped under their expand path below prefix.
func applyOptions(opts *query.QueryOptions, steps []*Command, v version.Version, prefix []string, scoped *[]scopedFilter) error {
	for _, step := range steps {
		switch step.kind {
		case kindExpand:
			paths, err := stepPaths(step, expr.ModeExpand)
			if err != nil {
				return err
			}
			for _, path := range paths {
				opts.AddExpand(path)
			}
		case kindExpandWith:
			exp := opts.AddExpand(step.paths[0])
			if exp == nil {
				return &odataerr.ExpressionError{Mode: expr.ModeExpand.String(), Node: step.paths[0], Reason: "empty navigation path"}
			}
			if step.nested == nil {
				continue
			}
			nested := step.nested(&Command{kind: kindDetached})
			below := append(append([]string(nil), prefix...), strings.FieldsFunc(step.paths[0], func(r rune) bool { return r == '/' })...)
			if err := compileNested(&exp.Options, nested, v, below, scoped); err != nil {
				return fmt.Errorf("odata: expand %s: %w", step.paths[0], err)
			}
		}
	}

	for _, step := range steps {
		switch step.kind {
		case kindSelect:
			paths, err := stepPaths(step, expr.ModeSelect)
			if err != nil {
				return err
			}
			for _, path := range paths {
				if exp, rest := opts.FindExpand(path); exp != nil && rest != "" {
					exp.Options.AddSelect(rest)
					continue
				}
				opts.AddSelect(path)
			}
		case kindOrderBy:
			items, err := orderItems(step)
			if err != nil {
				return err
			}
			for _, item := range items {
				if exp, rest := opts.FindExpand(item.Property); exp != nil && rest != "" {
					exp.Options.AddOrderBy(query.OrderByItem{Property: rest, Descending: item.Descending})
					continue
				}
				opts.AddOrderBy(item)
			}
		case kindTop:
			top := step.n
			opts.Top = &top
		case kindSkip:
			skip := step.n
			opts.Skip = &skip
		case kindCount:
			opts.Count = true
		case kindSearch:
			opts.Search = step.raw
		case kindParam:
			opts.AddParam(step.name, step.raw)
		case kindExpand, kindExpandWith:
		default:
			return fmt.Errorf("odata: unexpected %s step", step.kind)
		}
	}
	return nil
}

// compileNested applies the options of a chain built inside ExpandWith.
func compileNested(opts *query.QueryOptions, chain *Command, v version.Version, prefix []string, scoped *[]scopedFilter) error {
	if chain == nil {
		return nil
	}
	var optionSteps []*Command
	var filters []string
	for _, step := range chain.steps() {
		if step.err != nil {
			return step.err
		}
		switch step.kind {
		case kindDetached:
		case kindFilter:
			s, err := expr.Translate(step.node, expr.ModeFilter, expr.Options{Version: v})
			if err != nil {
				return err
			}
			filters = append(filters, s)
			*scoped = append(*scoped, scopedFilter{expand: prefix, node: step.node})
		case kindFilterRaw:
			filters = append(filters, step.raw)
		case kindExpand, kindExpandWith, kindSelect, kindOrderBy, kindTop, kindSkip, kindCount, kindSearch:
			optionSteps = append(optionSteps, step)
		case kindFor, kindUnbound:
			return fmt.Errorf("odata: ExpandWith must extend the chain it is given")
		default:
			return fmt.Errorf("odata: %s is not allowed inside ExpandWith", step.kind)
		}
	}
	if err := applyOptions(opts, optionSteps, v, prefix, scoped); err != nil {
		return err
	}
	for _, f := range filters {
		opts.AddFilter(f)
	}
	return nil
}

func stepPaths(step *Command, mode expr.Mode) ([]string, error) {
	if step.node != nil {
		return expr.Paths(step.node, mode)
	}
	return step.paths, nil
}

func orderItems(step *Command) ([]query.OrderByItem, error) {
	if step.node == nil {
		items := make([]query.OrderByItem, len(step.paths))
		for i, path := range step.paths {
			items[i] = query.OrderByItem{Property: path, Descending: step.desc}
		}
		return items, nil
	}
	clauses, err := expr.OrderClauses(step.node)
	if err != nil {
		return nil, err
	}
	items := make([]query.OrderByItem, len(clauses))
	for i, c := range clauses {
		items[i] = query.OrderByItem{Property: c.Path, Descending: c.Descending}
	}
	return items, nil
}
