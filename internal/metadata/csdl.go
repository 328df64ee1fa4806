package metadata

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// csdl document model; element names match both the v4 (edmx:Edmx) and the
// v3 (edmx:Edmx Version="1.0" with Associations) flavors.
type csdlEdmx struct {
	XMLName      xml.Name         `xml:"Edmx"`
	Version      string           `xml:"Version,attr"`
	DataServices csdlDataServices `xml:"DataServices"`
}

type csdlDataServices struct {
	Schemas []csdlSchema `xml:"Schema"`
}

type csdlSchema struct {
	Namespace    string            `xml:"Namespace,attr"`
	Alias        string            `xml:"Alias,attr"`
	EntityTypes  []csdlEntityType  `xml:"EntityType"`
	Associations []csdlAssociation `xml:"Association"`
	Containers   []csdlContainer   `xml:"EntityContainer"`
	Functions    []csdlOperation   `xml:"Function"`
	Actions      []csdlOperation   `xml:"Action"`
	Annotations  []csdlAnnotations `xml:"Annotations"`
}

type csdlEntityType struct {
	Name       string           `xml:"Name,attr"`
	BaseType   string           `xml:"BaseType,attr"`
	OpenType   bool             `xml:"OpenType,attr"`
	Key        csdlKey          `xml:"Key"`
	Properties []csdlProperty   `xml:"Property"`
	Navigation []csdlNavigation `xml:"NavigationProperty"`
	Annotation []csdlAnnotation `xml:"Annotation"`
}

type csdlKey struct {
	PropertyRefs []struct {
		Name string `xml:"Name,attr"`
	} `xml:"PropertyRef"`
}

type csdlProperty struct {
	Name            string `xml:"Name,attr"`
	Type            string `xml:"Type,attr"`
	Nullable        *bool  `xml:"Nullable,attr"`
	ConcurrencyMode string `xml:"ConcurrencyMode,attr"` // v3 optimistic concurrency
}

type csdlNavigation struct {
	Name         string `xml:"Name,attr"`
	Type         string `xml:"Type,attr"`
	Partner      string `xml:"Partner,attr"`
	Relationship string `xml:"Relationship,attr"` // v3 associations
	ToRole       string `xml:"ToRole,attr"`
}

type csdlAssociation struct {
	Name string `xml:"Name,attr"`
	Ends []struct {
		Role         string `xml:"Role,attr"`
		Type         string `xml:"Type,attr"`
		Multiplicity string `xml:"Multiplicity,attr"`
	} `xml:"End"`
}

type csdlContainer struct {
	Name            string         `xml:"Name,attr"`
	EntitySets      []csdlSetEntry `xml:"EntitySet"`
	Singletons      []csdlSetEntry `xml:"Singleton"`
	FunctionImports []csdlImport   `xml:"FunctionImport"`
	ActionImports   []csdlImport   `xml:"ActionImport"`
}

type csdlSetEntry struct {
	Name       string `xml:"Name,attr"`
	EntityType string `xml:"EntityType,attr"`
	Type       string `xml:"Type,attr"`
}

type csdlImport struct {
	Name       string          `xml:"Name,attr"`
	Function   string          `xml:"Function,attr"`
	Action     string          `xml:"Action,attr"`
	ReturnType string          `xml:"ReturnType,attr"`
	HttpMethod string          `xml:"HttpMethod,attr"`
	IsBindable bool            `xml:"IsBindable,attr"`
	Parameters []csdlParameter `xml:"Parameter"`
}

type csdlOperation struct {
	Name       string          `xml:"Name,attr"`
	IsBound    bool            `xml:"IsBound,attr"`
	Parameters []csdlParameter `xml:"Parameter"`
	ReturnType struct {
		Type string `xml:"Type,attr"`
	} `xml:"ReturnType"`
}

type csdlParameter struct {
	Name string `xml:"Name,attr"`
	Type string `xml:"Type,attr"`
}

type csdlAnnotations struct {
	Target     string           `xml:"Target,attr"`
	Annotation []csdlAnnotation `xml:"Annotation"`
}

type csdlAnnotation struct {
	Term       string `xml:"Term,attr"`
	Collection struct {
		Records []struct {
			PropertyValues []struct {
				Property   string `xml:"Property,attr"`
				Collection struct {
					Records []struct {
						PropertyValues []struct {
							Property     string `xml:"Property,attr"`
							PropertyPath string `xml:"PropertyPath,attr"`
							String       string `xml:"String,attr"`
						} `xml:"PropertyValue"`
					} `xml:"Record"`
				} `xml:"Collection"`
			} `xml:"PropertyValue"`
		} `xml:"Record"`
	} `xml:"Collection"`
}

const alternateKeysTerm = "AlternateKeys"

// ParseCSDL reads a $metadata document and builds a Static schema from it.
// The namespace of the first schema that declares entity types becomes the default.
func ParseCSDL(r io.Reader) (*Static, error) {
	var doc csdlEdmx
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode $metadata: %w", err)
	}
	if len(doc.DataServices.Schemas) == 0 {
		return nil, fmt.Errorf("decode $metadata: no Schema element")
	}

	namespace := doc.DataServices.Schemas[0].Namespace
	for _, sch := range doc.DataServices.Schemas {
		if len(sch.EntityTypes) > 0 {
			namespace = sch.Namespace
			break
		}
	}

	s := NewStatic(namespace)
	aliases := make(map[string]string)
	associations := make(map[string]csdlAssociation)
	for _, sch := range doc.DataServices.Schemas {
		if sch.Alias != "" {
			aliases[sch.Alias] = sch.Namespace
		}
		for _, a := range sch.Associations {
			associations[sch.Namespace+"."+a.Name] = a
		}
	}
	unalias := func(name string) string {
		collection := false
		if inner, ok := strings.CutPrefix(name, "Collection("); ok {
			name = strings.TrimSuffix(inner, ")")
			collection = true
		}
		if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
			if ns, ok := aliases[name[:idx]]; ok {
				name = ns + "." + name[idx+1:]
			}
		}
		if collection {
			return "Collection(" + name + ")"
		}
		return name
	}

	for _, sch := range doc.DataServices.Schemas {
		alternateKeys := collectAlternateKeys(sch)

		for _, et := range sch.EntityTypes {
			t := EntityType{
				Name:      et.Name,
				Namespace: sch.Namespace,
				BaseType:  unalias(et.BaseType),
				Open:      et.OpenType,
			}
			for _, ref := range et.Key.PropertyRefs {
				t.Keys = append(t.Keys, ref.Name)
			}
			for _, p := range et.Properties {
				nullable := p.Nullable == nil || *p.Nullable
				t.Properties = append(t.Properties, Property{Name: p.Name, Type: unalias(p.Type), Nullable: nullable})
				if p.ConcurrencyMode == "Fixed" {
					t.ETagProperty = p.Name
				}
			}
			for _, n := range et.Navigation {
				nav, err := navigationOf(n, unalias, associations)
				if err != nil {
					return nil, fmt.Errorf("entity type %s: %w", et.Name, err)
				}
				t.Navigations = append(t.Navigations, nav)
			}
			t.AlternateKeys = append(t.AlternateKeys, alternateKeysOf(et.Annotation)...)
			t.AlternateKeys = append(t.AlternateKeys, alternateKeys[sch.Namespace+"."+et.Name]...)
			s.AddEntityType(t)
		}

		for _, fn := range sch.Functions {
			s.AddOperation(operationOf(fn, sch.Namespace, false, unalias))
		}
		for _, act := range sch.Actions {
			s.AddOperation(operationOf(act, sch.Namespace, true, unalias))
		}

		for _, c := range sch.Containers {
			for _, set := range c.EntitySets {
				s.AddEntitySet(set.Name, unalias(set.EntityType))
			}
			for _, single := range c.Singletons {
				s.AddSingleton(single.Name, unalias(single.Type))
			}
			for _, imp := range c.FunctionImports {
				// v3 declares operations only through imports
				if imp.Function != "" {
					continue
				}
				params := make([]Parameter, 0, len(imp.Parameters))
				for _, p := range imp.Parameters {
					params = append(params, Parameter{Name: p.Name, Type: unalias(p.Type)})
				}
				s.AddOperation(Operation{
					Name:       imp.Name,
					Namespace:  sch.Namespace,
					IsAction:   strings.EqualFold(imp.HttpMethod, "POST"),
					IsBound:    imp.IsBindable,
					Parameters: params,
					ReturnType: unalias(imp.ReturnType),
				})
			}
		}
	}
	return s, nil
}

func navigationOf(n csdlNavigation, unalias func(string) string, associations map[string]csdlAssociation) (Navigation, error) {
	nav := Navigation{Name: n.Name, Partner: n.Partner}
	if n.Type != "" {
		target := unalias(n.Type)
		if inner, ok := strings.CutPrefix(target, "Collection("); ok {
			nav.Collection = true
			target = strings.TrimSuffix(inner, ")")
		}
		nav.Target = target
		return nav, nil
	}

	assoc, ok := associations[unalias(n.Relationship)]
	if !ok {
		return nav, fmt.Errorf("navigation %s: unknown association %s", n.Name, n.Relationship)
	}
	for _, end := range assoc.Ends {
		if end.Role == n.ToRole {
			nav.Target = unalias(end.Type)
			nav.Collection = end.Multiplicity == "*"
			return nav, nil
		}
	}
	return nav, fmt.Errorf("navigation %s: association %s has no role %s", n.Name, n.Relationship, n.ToRole)
}

func operationOf(op csdlOperation, namespace string, isAction bool, unalias func(string) string) Operation {
	out := Operation{
		Name:       op.Name,
		Namespace:  namespace,
		IsAction:   isAction,
		IsBound:    op.IsBound,
		ReturnType: unalias(op.ReturnType.Type),
	}
	for i, p := range op.Parameters {
		// The binding parameter is not passed explicitly
		if op.IsBound && i == 0 {
			continue
		}
		out.Parameters = append(out.Parameters, Parameter{Name: p.Name, Type: unalias(p.Type)})
	}
	return out
}

// collectAlternateKeys reads Core.AlternateKeys annotations targeting entity types.
func collectAlternateKeys(sch csdlSchema) map[string][][]string {
	out := make(map[string][][]string)
	for _, a := range sch.Annotations {
		if keys := alternateKeysOf(a.Annotation); len(keys) > 0 {
			out[a.Target] = append(out[a.Target], keys...)
		}
	}
	return out
}

func alternateKeysOf(annotations []csdlAnnotation) [][]string {
	var keys [][]string
	for _, a := range annotations {
		if !strings.HasSuffix(a.Term, alternateKeysTerm) {
			continue
		}
		for _, rec := range a.Collection.Records {
			for _, pv := range rec.PropertyValues {
				if pv.Property != "Key" {
					continue
				}
				var key []string
				for _, ref := range pv.Collection.Records {
					var name, alias string
					for _, inner := range ref.PropertyValues {
						switch inner.Property {
						case "Name":
							name = inner.PropertyPath
						case "Alias":
							alias = inner.String
						}
					}
					// URLs address alternate keys by alias
					if alias != "" {
						name = alias
					}
					if name != "" {
						key = append(key, name)
					}
				}
				if len(key) > 0 {
					keys = append(keys, key)
				}
			}
		}
	}
	return keys
}
