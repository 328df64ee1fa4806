package odata

import "github.com/nlstn/go-odata-client/internal/expr"

// Expr is a node of a typed expression tree, passed to Filter, ExpandExpr,
// SelectExpr and OrderByExpr.
type Expr = expr.Node

// Member is a property path, or a lambda range variable inside Any and All.
type Member = expr.Member

// P returns a member path from the current entity. Segments may be separated
// by "/" or ".".
//
// Example:
//
//	odata.P("Trips").Any("t", func(t *odata.Member) odata.Expr {
//	    return t.Field("Budget").Gt(10000)
//	})
func P(path string) *Member { return expr.Prop(path) }

// Lit wraps a Go value as a literal.
func Lit(v interface{}) Expr { return expr.Lit(v) }

// Eq builds l eq r. Operands that are not expressions become literals.
func Eq(l, r interface{}) Expr { return expr.Eq(l, r) }

// Ne builds l ne r.
func Ne(l, r interface{}) Expr { return expr.Ne(l, r) }

// Gt builds l gt r.
func Gt(l, r interface{}) Expr { return expr.Gt(l, r) }

// Ge builds l ge r.
func Ge(l, r interface{}) Expr { return expr.Ge(l, r) }

// Lt builds l lt r.
func Lt(l, r interface{}) Expr { return expr.Lt(l, r) }

// Le builds l le r.
func Le(l, r interface{}) Expr { return expr.Le(l, r) }

// And combines predicates with "and".
func And(nodes ...Expr) Expr { return expr.And(nodes...) }

// Or combines predicates with "or".
func Or(nodes ...Expr) Expr { return expr.Or(nodes...) }

// Not negates a predicate.
func Not(n Expr) Expr { return expr.Negate(n) }

// Add builds l add r.
func Add(l, r interface{}) Expr { return expr.Add(l, r) }

// Sub builds l sub r.
func Sub(l, r interface{}) Expr { return expr.Sub(l, r) }

// Mul builds l mul r.
func Mul(l, r interface{}) Expr { return expr.Mul(l, r) }

// Div builds l div r.
func Div(l, r interface{}) Expr { return expr.Div(l, r) }

// Mod builds l mod r.
func Mod(l, r interface{}) Expr { return expr.Mod(l, r) }

// Neg is unary minus.
func Neg(n interface{}) Expr { return expr.Minus(n) }

// Fn calls a canonical function such as "tolower", "year" or "round".
func Fn(method string, args ...interface{}) Expr { return expr.Fn(method, args...) }

// Fields projects several members, for multi-property Select, Expand and OrderBy.
func Fields(fields ...Expr) Expr { return expr.Fields(fields...) }
