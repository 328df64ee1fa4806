package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	odata "github.com/nlstn/go-odata-client"
)

// chainOptions are the flags that build a command chain.
type chainOptions struct {
	set     string
	key     string
	navs    []string
	filters []string
	expand  []string
	sel     []string
	orderBy []string
	top     int
	skip    int
	count   bool
	search  string
}

func (o *chainOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.set, "set", "", "entity set or singleton")
	f.StringVar(&o.key, "key", "", "key of the entity: 42, 'text', 7,'12A' or OrderId=7,Seat='12A'")
	f.StringArrayVar(&o.navs, "nav", nil, "navigation property as NAME or NAME:KEY (repeatable)")
	f.StringArrayVar(&o.filters, "filter", nil, "raw $filter expression (repeatable, combined with and)")
	f.StringSliceVar(&o.expand, "expand", nil, "navigation properties to expand")
	f.StringSliceVar(&o.sel, "select", nil, "properties to select")
	f.StringArrayVar(&o.orderBy, "orderby", nil, "order by property, append ' desc' for descending (repeatable)")
	f.IntVar(&o.top, "top", 0, "maximum number of entries")
	f.IntVar(&o.skip, "skip", 0, "number of entries to skip")
	f.BoolVar(&o.count, "count", false, "request the total count")
	f.StringVar(&o.search, "search", "", "free text $search expression")
	_ = cmd.MarkFlagRequired("set")
}

// keyed reports whether the chain ends on a single entity.
func (o *chainOptions) keyed() bool {
	if len(o.navs) > 0 {
		_, key, _ := strings.Cut(o.navs[len(o.navs)-1], ":")
		return key != ""
	}
	return o.key != ""
}

func (o *chainOptions) build(cmd *cobra.Command, c *odata.Client) (*odata.Command, error) {
	chain := c.For(o.set)
	var err error
	if chain, err = applyKey(chain, o.key); err != nil {
		return nil, fmt.Errorf("--key: %w", err)
	}
	for _, nav := range o.navs {
		name, key, _ := strings.Cut(nav, ":")
		if name == "" {
			return nil, fmt.Errorf("--nav %q: missing property name", nav)
		}
		if chain, err = applyKey(chain.NavigateTo(name), key); err != nil {
			return nil, fmt.Errorf("--nav %q: %w", nav, err)
		}
	}
	for _, f := range o.filters {
		chain = chain.FilterRaw(f)
	}
	if len(o.expand) > 0 {
		chain = chain.Expand(o.expand...)
	}
	if len(o.sel) > 0 {
		chain = chain.Select(o.sel...)
	}
	for _, item := range o.orderBy {
		fields := strings.Fields(item)
		switch {
		case len(fields) == 1:
			chain = chain.OrderBy(fields[0])
		case len(fields) == 2 && strings.EqualFold(fields[1], "desc"):
			chain = chain.OrderByDescending(fields[0])
		case len(fields) == 2 && strings.EqualFold(fields[1], "asc"):
			chain = chain.OrderBy(fields[0])
		default:
			return nil, fmt.Errorf("--orderby %q: want PROPERTY [asc|desc]", item)
		}
	}
	flags := cmd.Flags()
	if flags.Changed("top") {
		chain = chain.Top(o.top)
	}
	if flags.Changed("skip") {
		chain = chain.Skip(o.skip)
	}
	if o.count {
		chain = chain.Count()
	}
	if o.search != "" {
		chain = chain.Search(o.search)
	}
	return chain, nil
}

func applyKey(chain *odata.Command, raw string) (*odata.Command, error) {
	if raw == "" {
		return chain, nil
	}
	parts := splitKey(raw)
	named := make(map[string]interface{}, len(parts))
	positional := make([]interface{}, 0, len(parts))
	for _, part := range parts {
		name, value, isNamed := cutKeyName(part)
		v, err := parseKeyValue(value)
		if err != nil {
			return nil, err
		}
		if isNamed {
			named[name] = v
		} else {
			positional = append(positional, v)
		}
	}
	switch {
	case len(named) > 0 && len(positional) > 0:
		return nil, fmt.Errorf("cannot mix named and positional key values in %q", raw)
	case len(named) > 0:
		return chain.KeyNamed(named), nil
	default:
		return chain.Key(positional...), nil
	}
}

// splitKey splits on commas outside quoted strings.
func splitKey(raw string) []string {
	var parts []string
	start, quoted := 0, false
	for i := 0; i < len(raw); i++ {
		switch raw[i] {
		case '\'':
			quoted = !quoted
		case ',':
			if !quoted {
				parts = append(parts, strings.TrimSpace(raw[start:i]))
				start = i + 1
			}
		}
	}
	return append(parts, strings.TrimSpace(raw[start:]))
}

// cutKeyName splits Name=value. An '=' inside quotes belongs to the value.
func cutKeyName(part string) (name, value string, ok bool) {
	i := strings.IndexByte(part, '=')
	if i <= 0 || strings.Contains(part[:i], "'") {
		return "", part, false
	}
	return strings.TrimSpace(part[:i]), strings.TrimSpace(part[i+1:]), true
}

// parseKeyValue reads 'text' as a string with '' unescaped, integers as
// int64 and anything else as a bare string.
func parseKeyValue(s string) (interface{}, error) {
	if s == "" {
		return nil, fmt.Errorf("empty key value")
	}
	if strings.HasPrefix(s, "'") {
		if len(s) < 2 || !strings.HasSuffix(s, "'") {
			return nil, fmt.Errorf("unterminated string %s", s)
		}
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'"), nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	return s, nil
}
