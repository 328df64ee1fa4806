package expr

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/nlstn/go-odata-client/internal/edm"
	"github.com/nlstn/go-odata-client/internal/metadata"
	"github.com/nlstn/go-odata-client/internal/odataerr"
	"github.com/nlstn/go-odata-client/internal/version"
)

// Mode selects how an expression tree is translated.
type Mode int

// Translation modes
const (
	ModeFilter Mode = iota
	ModeSelect
	ModeExpand
	ModeOrderBy
	ModeValueBag
)

// String returns the query option the mode produces.
func (m Mode) String() string {
	switch m {
	case ModeFilter:
		return "$filter"
	case ModeSelect:
		return "$select"
	case ModeExpand:
		return "$expand"
	case ModeOrderBy:
		return "$orderby"
	case ModeValueBag:
		return "value bag"
	default:
		return "mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// Options control literal dialect and operator availability.
type Options struct {
	Version version.Version
}

func (o Options) version() version.Version {
	if o.Version.IsZero() {
		return version.V4
	}
	return o.Version
}

// Translate renders n as the value of the query option selected by mode.
// ModeValueBag expects a *Literal and renders the JSON object of its value bag.
func Translate(n Node, mode Mode, opts Options) (string, error) {
	switch mode {
	case ModeFilter:
		r := &renderer{opts: opts}
		s, _, err := r.render(n)
		return s, err
	case ModeSelect, ModeExpand:
		paths, err := Paths(n, mode)
		if err != nil {
			return "", err
		}
		return strings.Join(paths, ","), nil
	case ModeOrderBy:
		clauses, err := OrderClauses(n)
		if err != nil {
			return "", err
		}
		parts := make([]string, len(clauses))
		for i, c := range clauses {
			parts[i] = c.String()
		}
		return strings.Join(parts, ","), nil
	case ModeValueBag:
		lit, ok := n.(*Literal)
		if !ok {
			return "", unsupported(mode, n, "value bags are built from literal values")
		}
		return valueBagJSON(lit.Value)
	default:
		return "", unsupported(mode, n, "unknown mode")
	}
}

func unsupported(mode Mode, n Node, reason string) error {
	return &odataerr.ExpressionError{Mode: mode.String(), Node: Describe(n), Reason: reason}
}

// Describe returns a short description of n for diagnostics.
func Describe(n Node) string {
	switch v := n.(type) {
	case nil:
		return "<nil>"
	case *Member:
		if v == nil {
			return "Member(<nil>)"
		}
		return "Member(" + strings.Join(append([]string{v.Var}, v.Path...), "/") + ")"
	case *Literal:
		return fmt.Sprintf("Literal(%T)", v.Value)
	case *Compare:
		return "Compare(" + string(v.Op) + ")"
	case *Logical:
		return "Logical(" + string(v.Op) + ")"
	case *Not:
		return "Not"
	case *Arith:
		return "Arith(" + string(v.Op) + ")"
	case *Neg:
		return "Neg"
	case *Call:
		return "Call(" + v.Method + ")"
	case *In:
		return "In"
	case *Lambda:
		return "Lambda(" + string(v.Quantifier) + ")"
	case *Record:
		return fmt.Sprintf("Record(%d fields)", len(v.Fields))
	case *Order:
		return "Order"
	default:
		return fmt.Sprintf("%T", n)
	}
}

// Operator precedence, lowest first.
const (
	precOr = iota + 1
	precAnd
	precEquality
	precRelational
	precAdditive
	precMultiplicative
	precUnary
	precPrimary
)

type methodArity struct{ min, max int }

var methods = map[string]methodArity{
	"contains":           {2, 2},
	"startswith":         {2, 2},
	"endswith":           {2, 2},
	"tolower":            {1, 1},
	"toupper":            {1, 1},
	"length":             {1, 1},
	"indexof":            {2, 2},
	"substring":          {2, 3},
	"trim":               {1, 1},
	"concat":             {2, 2},
	"year":               {1, 1},
	"month":              {1, 1},
	"day":                {1, 1},
	"hour":               {1, 1},
	"minute":             {1, 1},
	"second":             {1, 1},
	"fractionalseconds":  {1, 1},
	"date":               {1, 1},
	"time":               {1, 1},
	"totaloffsetminutes": {1, 1},
	"now":                {0, 0},
	"round":              {1, 1},
	"floor":              {1, 1},
	"ceiling":            {1, 1},
}

// scope is one lambda binding visible while rendering its predicate.
type scope struct {
	name     string
	rendered string
	lambda   *Lambda
}

type renderer struct {
	opts   Options
	scopes []scope
}

func (r *renderer) fail(n Node, reason string) error {
	return unsupported(ModeFilter, n, reason)
}

func (r *renderer) render(n Node) (string, int, error) {
	switch v := n.(type) {
	case *Member:
		s, err := r.member(v)
		return s, precPrimary, err

	case *Literal:
		s, err := FormatLiteral(v.Value, r.opts.version())
		if err != nil {
			return "", 0, r.fail(n, err.Error())
		}
		return s, precPrimary, nil

	case *Compare:
		p := precRelational
		if v.Op == OpEq || v.Op == OpNe {
			p = precEquality
		}
		switch v.Op {
		case OpEq, OpNe, OpGt, OpGe, OpLt, OpLe:
		default:
			return "", 0, r.fail(n, "unknown comparison operator")
		}
		s, err := r.binary(string(v.Op), p, v.Left, v.Right)
		return s, p, err

	case *Logical:
		p := precAnd
		switch v.Op {
		case OpAnd:
		case OpOr:
			p = precOr
		default:
			return "", 0, r.fail(n, "unknown logical operator")
		}
		s, err := r.binary(string(v.Op), p, v.Left, v.Right)
		return s, p, err

	case *Arith:
		p := precAdditive
		switch v.Op {
		case OpAdd, OpSub:
		case OpMul, OpDiv, OpMod:
			p = precMultiplicative
		default:
			return "", 0, r.fail(n, "unknown arithmetic operator")
		}
		s, err := r.binary(string(v.Op), p, v.Left, v.Right)
		return s, p, err

	case *Not:
		operand, p, err := r.render(v.Operand)
		if err != nil {
			return "", 0, err
		}
		if p < precUnary {
			operand = "(" + operand + ")"
		}
		return "not " + operand, precUnary, nil

	case *Neg:
		operand, p, err := r.render(v.Operand)
		if err != nil {
			return "", 0, err
		}
		if p < precPrimary || strings.HasPrefix(operand, "-") {
			operand = "(" + operand + ")"
		}
		return "-" + operand, precUnary, nil

	case *Call:
		s, err := r.call(v)
		return s, precPrimary, err

	case *In:
		return r.in(v)

	case *Lambda:
		s, err := r.lambda(v)
		return s, precPrimary, err

	case nil:
		return "", 0, r.fail(n, "missing operand")

	default:
		return "", 0, r.fail(n, "not valid in a filter")
	}
}

func (r *renderer) binary(op string, p int, left, right Node) (string, error) {
	l, lp, err := r.render(left)
	if err != nil {
		return "", err
	}
	rs, rp, err := r.render(right)
	if err != nil {
		return "", err
	}
	if lp < p {
		l = "(" + l + ")"
	}
	if rp <= p {
		rs = "(" + rs + ")"
	}
	return l + " " + op + " " + rs, nil
}

func (r *renderer) member(m *Member) (string, error) {
	if m == nil {
		return "", r.fail(m, "nil member")
	}
	path := strings.Join(m.Path, "/")

	if m.Var == "" && m.binder == nil {
		if len(r.scopes) == 0 {
			if path == "" {
				return "$it", nil
			}
			return path, nil
		}
		if path == "" {
			return "$it", nil
		}
		return "$it/" + path, nil
	}

	for i := len(r.scopes) - 1; i >= 0; i-- {
		sc := r.scopes[i]
		if (m.binder != nil && sc.lambda == m.binder) || (m.binder == nil && sc.name == m.Var) {
			if path == "" {
				return sc.rendered, nil
			}
			return sc.rendered + "/" + path, nil
		}
	}
	return "", r.fail(m, fmt.Sprintf("range variable %q is not bound by an enclosing any/all", m.Var))
}

func (r *renderer) call(c *Call) (string, error) {
	arity, ok := methods[c.Method]
	if !ok {
		return "", r.fail(c, "unknown method "+c.Method)
	}
	if len(c.Args) < arity.min || len(c.Args) > arity.max {
		return "", r.fail(c, fmt.Sprintf("%s takes %d to %d arguments, got %d", c.Method, arity.min, arity.max, len(c.Args)))
	}

	args := make([]string, len(c.Args))
	for i, a := range c.Args {
		s, _, err := r.render(a)
		if err != nil {
			return "", err
		}
		args[i] = s
	}

	// v3 spells contains as substringof with swapped operands
	if c.Method == "contains" && !version.V4.LessThanOrEqual(r.opts.version()) {
		return "substringof(" + args[1] + "," + args[0] + ")", nil
	}
	return c.Method + "(" + strings.Join(args, ",") + ")", nil
}

func (r *renderer) in(n *In) (string, int, error) {
	if len(n.Values) == 0 {
		return "", 0, r.fail(n, "empty value list")
	}
	if r.opts.version().Supports("in-operator") {
		operand, p, err := r.render(n.Operand)
		if err != nil {
			return "", 0, err
		}
		if p < precPrimary {
			operand = "(" + operand + ")"
		}
		values := make([]string, len(n.Values))
		for i, v := range n.Values {
			s, _, err := r.render(v)
			if err != nil {
				return "", 0, err
			}
			values[i] = s
		}
		return operand + " in (" + strings.Join(values, ",") + ")", precEquality, nil
	}

	// Older services get the equivalent disjunction
	terms := make([]Node, len(n.Values))
	for i, v := range n.Values {
		terms[i] = &Compare{Op: OpEq, Left: n.Operand, Right: v}
	}
	return r.render(Or(terms...))
}

func (r *renderer) lambda(l *Lambda) (string, error) {
	if l.Collection == nil || (len(l.Collection.Path) == 0 && l.Collection.Var == "") {
		return "", r.fail(l, "quantifier needs a collection member")
	}
	coll, err := r.member(l.Collection)
	if err != nil {
		return "", err
	}

	switch l.Quantifier {
	case QuantAny, QuantAll:
	default:
		return "", r.fail(l, "unknown quantifier")
	}

	if l.Predicate == nil {
		if l.Quantifier == QuantAll {
			return "", r.fail(l, "all requires a predicate")
		}
		return coll + "/any()", nil
	}

	base := l.Var
	if base == "" {
		base = "x"
	}
	name := base
	for i := 1; r.inUse(name); i++ {
		name = base + strconv.Itoa(i)
	}

	r.scopes = append(r.scopes, scope{name: l.Var, rendered: name, lambda: l})
	pred, _, err := r.render(l.Predicate)
	r.scopes = r.scopes[:len(r.scopes)-1]
	if err != nil {
		return "", err
	}
	return coll + "/" + string(l.Quantifier) + "(" + name + ":" + pred + ")", nil
}

func (r *renderer) inUse(name string) bool {
	for _, sc := range r.scopes {
		if sc.rendered == name {
			return true
		}
	}
	return false
}

// FormatLiteral renders a Go value as a filter literal. Integer enums known to
// the enum registry render as their quoted member name, the unqualified form;
// edm.Enum renders the qualified NS.Type'Member' form.
func FormatLiteral(value interface{}, v version.Version) (string, error) {
	if value != nil {
		rv := reflect.ValueOf(value)
		if _, isStringer := value.(fmt.Stringer); !isStringer && rv.Type().Name() != "" && rv.Type().PkgPath() != "" {
			if name, ok := metadata.EnumMemberName(rv); ok {
				return edm.QuoteString(name), nil
			}
		}
	}
	return edm.FormatLiteral(value, v)
}
