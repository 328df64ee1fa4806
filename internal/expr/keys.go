package expr

// Term is one property = value equality from a filter.
type Term struct {
	Property string
	Value    interface{}
}

// EqualityTerms returns the terms of n when n is a conjunction of equality
// comparisons between top-level properties and literals. Each property may
// appear only once.
func EqualityTerms(n Node) ([]Term, bool) {
	var terms []Term
	if !collectTerms(n, &terms) {
		return nil, false
	}
	seen := make(map[string]bool, len(terms))
	for _, t := range terms {
		if seen[t.Property] {
			return nil, false
		}
		seen[t.Property] = true
	}
	return terms, len(terms) > 0
}

func collectTerms(n Node, terms *[]Term) bool {
	switch v := n.(type) {
	case *Logical:
		return v.Op == OpAnd && collectTerms(v.Left, terms) && collectTerms(v.Right, terms)
	case *Compare:
		if v.Op != OpEq {
			return false
		}
		m, lit := v.Left, v.Right
		if _, ok := m.(*Member); !ok {
			m, lit = lit, m
		}
		member, ok := m.(*Member)
		if !ok || member == nil || member.Var != "" || member.binder != nil || len(member.Path) != 1 {
			return false
		}
		value, ok := lit.(*Literal)
		if !ok || value.Value == nil {
			return false
		}
		*terms = append(*terms, Term{Property: member.Path[0], Value: value.Value})
		return true
	default:
		return false
	}
}
