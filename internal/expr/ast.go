// Package expr is the typed expression tree behind Filter, Select, Expand,
// OrderBy and Set, and its translation into OData query option syntax.
package expr

import "strings"

// Node is an expression tree node. The set of node types is closed.
type Node interface {
	exprNode()
}

// CompareOp is a comparison operator.
type CompareOp string

// Comparison operators
const (
	OpEq CompareOp = "eq"
	OpNe CompareOp = "ne"
	OpGt CompareOp = "gt"
	OpGe CompareOp = "ge"
	OpLt CompareOp = "lt"
	OpLe CompareOp = "le"
)

// LogicalOp is a boolean connective.
type LogicalOp string

// Logical operators
const (
	OpAnd LogicalOp = "and"
	OpOr  LogicalOp = "or"
)

// ArithOp is an arithmetic operator.
type ArithOp string

// Arithmetic operators
const (
	OpAdd ArithOp = "add"
	OpSub ArithOp = "sub"
	OpMul ArithOp = "mul"
	OpDiv ArithOp = "div"
	OpMod ArithOp = "mod"
)

// Quantifier is a lambda operator over a collection.
type Quantifier string

// Lambda quantifiers
const (
	QuantAny Quantifier = "any"
	QuantAll Quantifier = "all"
)

// Member is a property path. Var names the lambda range variable the path
// starts from; an empty Var starts from the current entity.
type Member struct {
	Var  string
	Path []string

	// binder is the lambda that introduced Var when built through Any or All;
	// it keeps references correct when nested lambdas reuse a variable name.
	binder *Lambda
}

func (*Member) exprNode() {}

// Literal is a constant value.
type Literal struct {
	Value interface{}
}

func (*Literal) exprNode() {}

// Compare is a binary comparison.
type Compare struct {
	Op          CompareOp
	Left, Right Node
}

func (*Compare) exprNode() {}

// Logical combines two boolean operands.
type Logical struct {
	Op          LogicalOp
	Left, Right Node
}

func (*Logical) exprNode() {}

// Not negates a boolean operand.
type Not struct {
	Operand Node
}

func (*Not) exprNode() {}

// Arith is a binary arithmetic expression.
type Arith struct {
	Op          ArithOp
	Left, Right Node
}

func (*Arith) exprNode() {}

// Neg is unary minus.
type Neg struct {
	Operand Node
}

func (*Neg) exprNode() {}

// Call is a canonical function call such as contains or year.
type Call struct {
	Method string
	Args   []Node
}

func (*Call) exprNode() {}

// In tests membership of Operand in a list of values.
type In struct {
	Operand Node
	Values  []Node
}

func (*In) exprNode() {}

// Lambda applies a quantifier to a collection-valued member. A nil Predicate
// with QuantAny asks whether the collection is non-empty.
type Lambda struct {
	Quantifier Quantifier
	Collection *Member
	Var        string
	Predicate  Node
}

func (*Lambda) exprNode() {}

// Record is a projection of several members, as in a multi-property select.
type Record struct {
	Fields []Node
}

func (*Record) exprNode() {}

// Order marks a member as an ordering clause.
type Order struct {
	Operand    Node
	Descending bool
}

func (*Order) exprNode() {}

// Prop returns a member path from the current entity. Segments may be
// separated by "/" or ".".
func Prop(path string) *Member {
	return &Member{Path: splitPath(path)}
}

// Var returns a reference to lambda range variable name, optionally followed by a path.
func Var(name string, path ...string) *Member {
	var segments []string
	for _, p := range path {
		segments = append(segments, splitPath(p)...)
	}
	return &Member{Var: name, Path: segments}
}

func splitPath(path string) []string {
	return strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '.' })
}

// Field extends the member path.
func (m *Member) Field(path string) *Member {
	segments := append(append([]string(nil), m.Path...), splitPath(path)...)
	return &Member{Var: m.Var, Path: segments, binder: m.binder}
}

// Eq is m eq v.
func (m *Member) Eq(v interface{}) Node { return Eq(m, v) }

// Ne is m ne v.
func (m *Member) Ne(v interface{}) Node { return Ne(m, v) }

// Gt is m gt v.
func (m *Member) Gt(v interface{}) Node { return Gt(m, v) }

// Ge is m ge v.
func (m *Member) Ge(v interface{}) Node { return Ge(m, v) }

// Lt is m lt v.
func (m *Member) Lt(v interface{}) Node { return Lt(m, v) }

// Le is m le v.
func (m *Member) Le(v interface{}) Node { return Le(m, v) }

// Contains is contains(m, s).
func (m *Member) Contains(s interface{}) Node { return Fn("contains", m, s) }

// StartsWith is startswith(m, s).
func (m *Member) StartsWith(s interface{}) Node { return Fn("startswith", m, s) }

// EndsWith is endswith(m, s).
func (m *Member) EndsWith(s interface{}) Node { return Fn("endswith", m, s) }

// In is m in (values...).
func (m *Member) In(values ...interface{}) Node {
	nodes := make([]Node, len(values))
	for i, v := range values {
		nodes[i] = valueNode(v)
	}
	return &In{Operand: m, Values: nodes}
}

// Any is m/any(v:pred(v)). A nil pred yields the parameterless m/any().
func (m *Member) Any(v string, pred func(*Member) Node) Node {
	if pred == nil {
		return &Lambda{Quantifier: QuantAny, Collection: m}
	}
	return bind(QuantAny, m, v, pred)
}

// All is m/all(v:pred(v)).
func (m *Member) All(v string, pred func(*Member) Node) Node {
	return bind(QuantAll, m, v, pred)
}

func bind(q Quantifier, coll *Member, v string, pred func(*Member) Node) *Lambda {
	l := &Lambda{Quantifier: q, Collection: coll, Var: v}
	if pred != nil {
		l.Predicate = pred(&Member{Var: v, binder: l})
	}
	return l
}

// Asc marks m as an ascending ordering clause.
func (m *Member) Asc() Node { return &Order{Operand: m} }

// Desc marks m as a descending ordering clause.
func (m *Member) Desc() Node { return &Order{Operand: m, Descending: true} }

// Lit wraps v as a literal.
func Lit(v interface{}) Node { return &Literal{Value: v} }

// valueNode wraps plain Go values as literals and passes nodes through.
func valueNode(v interface{}) Node {
	if n, ok := v.(Node); ok && n != nil {
		return n
	}
	return &Literal{Value: v}
}

func compare(op CompareOp, l, r interface{}) Node {
	return &Compare{Op: op, Left: valueNode(l), Right: valueNode(r)}
}

// Eq builds l eq r. Operands that are not nodes become literals.
func Eq(l, r interface{}) Node { return compare(OpEq, l, r) }

// Ne builds l ne r.
func Ne(l, r interface{}) Node { return compare(OpNe, l, r) }

// Gt builds l gt r.
func Gt(l, r interface{}) Node { return compare(OpGt, l, r) }

// Ge builds l ge r.
func Ge(l, r interface{}) Node { return compare(OpGe, l, r) }

// Lt builds l lt r.
func Lt(l, r interface{}) Node { return compare(OpLt, l, r) }

// Le builds l le r.
func Le(l, r interface{}) Node { return compare(OpLe, l, r) }

// And combines nodes left to right with "and". Nil nodes are skipped.
func And(nodes ...Node) Node { return fold(OpAnd, nodes) }

// Or combines nodes left to right with "or". Nil nodes are skipped.
func Or(nodes ...Node) Node { return fold(OpOr, nodes) }

func fold(op LogicalOp, nodes []Node) Node {
	var out Node
	for _, n := range nodes {
		if n == nil {
			continue
		}
		if out == nil {
			out = n
			continue
		}
		out = &Logical{Op: op, Left: out, Right: n}
	}
	return out
}

// Negate builds not n.
func Negate(n Node) Node { return &Not{Operand: n} }

// Minus builds -n.
func Minus(n interface{}) Node { return &Neg{Operand: valueNode(n)} }

func arith(op ArithOp, l, r interface{}) Node {
	return &Arith{Op: op, Left: valueNode(l), Right: valueNode(r)}
}

// Add builds l add r.
func Add(l, r interface{}) Node { return arith(OpAdd, l, r) }

// Sub builds l sub r.
func Sub(l, r interface{}) Node { return arith(OpSub, l, r) }

// Mul builds l mul r.
func Mul(l, r interface{}) Node { return arith(OpMul, l, r) }

// Div builds l div r.
func Div(l, r interface{}) Node { return arith(OpDiv, l, r) }

// Mod builds l mod r.
func Mod(l, r interface{}) Node { return arith(OpMod, l, r) }

// Fn builds a canonical function call.
func Fn(method string, args ...interface{}) Node {
	nodes := make([]Node, len(args))
	for i, a := range args {
		nodes[i] = valueNode(a)
	}
	return &Call{Method: method, Args: nodes}
}

// Fields builds a record projection of several members.
func Fields(fields ...Node) Node {
	return &Record{Fields: fields}
}
