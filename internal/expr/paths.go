package expr

import "strings"

// OrderClause is one $orderby entry.
type OrderClause struct {
	Path       string
	Descending bool
}

// String renders the clause as it appears in $orderby.
func (c OrderClause) String() string {
	if c.Descending {
		return c.Path + " desc"
	}
	return c.Path
}

// Paths flattens a member or record selector into slash-delimited property
// paths, in declaration order. mode is ModeSelect or ModeExpand.
func Paths(n Node, mode Mode) ([]string, error) {
	var out []string
	if err := collectPaths(n, mode, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, unsupported(mode, n, "selector yields no members")
	}
	return out, nil
}

func collectPaths(n Node, mode Mode, out *[]string) error {
	switch v := n.(type) {
	case *Member:
		path, err := memberPath(v, mode)
		if err != nil {
			return err
		}
		*out = append(*out, path)
		return nil
	case *Record:
		for _, f := range v.Fields {
			if err := collectPaths(f, mode, out); err != nil {
				return err
			}
		}
		return nil
	default:
		return unsupported(mode, n, "selectors are member paths or records of member paths")
	}
}

func memberPath(m *Member, mode Mode) (string, error) {
	if m == nil || len(m.Path) == 0 {
		return "", unsupported(mode, m, "empty member path")
	}
	if m.Var != "" || m.binder != nil {
		return "", unsupported(mode, m, "range variables are only valid inside any/all")
	}
	return strings.Join(m.Path, "/"), nil
}

// OrderClauses flattens an ordering selector. Plain members sort ascending.
func OrderClauses(n Node) ([]OrderClause, error) {
	var out []OrderClause
	if err := collectOrder(n, false, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, unsupported(ModeOrderBy, n, "selector yields no members")
	}
	return out, nil
}

func collectOrder(n Node, desc bool, out *[]OrderClause) error {
	switch v := n.(type) {
	case *Member:
		path, err := memberPath(v, ModeOrderBy)
		if err != nil {
			return err
		}
		*out = append(*out, OrderClause{Path: path, Descending: desc})
		return nil
	case *Order:
		return collectOrder(v.Operand, v.Descending, out)
	case *Record:
		for _, f := range v.Fields {
			if err := collectOrder(f, desc, out); err != nil {
				return err
			}
		}
		return nil
	default:
		return unsupported(ModeOrderBy, n, "ordering selectors are member paths")
	}
}

// MemberPaths returns the paths of the members in n that start from the
// current entity. Paths below a range variable are left out, as are lambda
// collections reached through one.
func MemberPaths(n Node) [][]string {
	var out [][]string
	collectMembers(n, &out)
	return out
}

func collectMembers(n Node, out *[][]string) {
	switch v := n.(type) {
	case *Member:
		if v != nil && v.Var == "" && v.binder == nil && len(v.Path) > 0 {
			*out = append(*out, v.Path)
		}
	case *Compare:
		collectMembers(v.Left, out)
		collectMembers(v.Right, out)
	case *Logical:
		collectMembers(v.Left, out)
		collectMembers(v.Right, out)
	case *Arith:
		collectMembers(v.Left, out)
		collectMembers(v.Right, out)
	case *Not:
		collectMembers(v.Operand, out)
	case *Neg:
		collectMembers(v.Operand, out)
	case *Order:
		collectMembers(v.Operand, out)
	case *Call:
		for _, a := range v.Args {
			collectMembers(a, out)
		}
	case *In:
		collectMembers(v.Operand, out)
		for _, value := range v.Values {
			collectMembers(value, out)
		}
	case *Record:
		for _, f := range v.Fields {
			collectMembers(f, out)
		}
	case *Lambda:
		if v.Collection != nil {
			collectMembers(v.Collection, out)
		}
		collectMembers(v.Predicate, out)
	}
}
