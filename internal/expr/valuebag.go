package expr

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nlstn/go-odata-client/internal/edm"
	"github.com/nlstn/go-odata-client/internal/metadata"
	"github.com/shopspring/decimal"
)

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
	decimalType  = reflect.TypeOf(decimal.Decimal{})
	uuidType     = reflect.TypeOf(uuid.UUID{})
	dateType     = reflect.TypeOf(edm.Date{})
	timeOfDay    = reflect.TypeOf(edm.TimeOfDay{})
	enumType     = reflect.TypeOf(edm.Enum{})
	rawType      = reflect.TypeOf(json.RawMessage{})
)

// ValueBag walks a struct or string-keyed map into the property map handed to
// the payload codec. Nested structs become nested maps, slices become []any,
// and leaf values are normalized to their JSON wire form.
func ValueBag(v interface{}) (map[string]interface{}, error) {
	if bag, ok := v.(map[string]interface{}); ok {
		return normalizeMap(reflect.ValueOf(bag))
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return nil, unsupported(ModeValueBag, &Literal{Value: v}, "nil value bag")
		}
		rv = rv.Elem()
	}

	switch {
	case rv.Kind() == reflect.Struct && !isLeafStruct(rv.Type()):
		return normalizeStruct(rv)
	case rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String:
		return normalizeMap(rv)
	default:
		return nil, unsupported(ModeValueBag, &Literal{Value: v}, "value bags are structs or string-keyed maps")
	}
}

// SortedKeys returns the keys of bag in lexical order.
func SortedKeys(bag map[string]interface{}) []string {
	keys := make([]string, 0, len(bag))
	for k := range bag {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func valueBagJSON(v interface{}) (string, error) {
	bag, err := ValueBag(v)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(bag)
	if err != nil {
		return "", unsupported(ModeValueBag, &Literal{Value: v}, err.Error())
	}
	return string(data), nil
}

func isLeafStruct(t reflect.Type) bool {
	switch t {
	case timeType, decimalType, dateType, timeOfDay, enumType:
		return true
	}
	return false
}

func normalizeStruct(rv reflect.Value) (map[string]interface{}, error) {
	out := make(map[string]interface{}, rv.NumField())
	if err := collectFields(rv, out); err != nil {
		return nil, err
	}
	return out, nil
}

func collectFields(rv reflect.Value, out map[string]interface{}) error {
	t := rv.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, omitEmpty, skip := jsonField(field)
		if skip {
			continue
		}
		fv := rv.Field(i)

		// Embedded structs without a json name are flattened like encoding/json does
		if field.Anonymous && field.Tag.Get("json") == "" {
			inner := fv
			for inner.Kind() == reflect.Ptr {
				if inner.IsNil() {
					break
				}
				inner = inner.Elem()
			}
			if inner.Kind() == reflect.Struct && !isLeafStruct(inner.Type()) {
				if err := collectFields(inner, out); err != nil {
					return err
				}
				continue
			}
		}

		if omitEmpty && fv.IsZero() {
			continue
		}
		value, err := normalize(fv)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		out[name] = value
	}
	return nil
}

func normalizeMap(rv reflect.Value) (map[string]interface{}, error) {
	out := make(map[string]interface{}, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		value, err := normalize(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("%s: %w", iter.Key().String(), err)
		}
		out[iter.Key().String()] = value
	}
	return out, nil
}

func jsonField(field reflect.StructField) (name string, omitEmpty, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	if name == "" {
		name = field.Name
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}

// normalize converts one value to the form the JSON codec writes on the wire.
func normalize(rv reflect.Value) (interface{}, error) {
	if !rv.IsValid() {
		return nil, nil
	}

	switch rv.Type() {
	case durationType:
		return edm.FormatDuration(time.Duration(rv.Int())), nil
	case decimalType:
		return json.Number(rv.Interface().(decimal.Decimal).String()), nil
	case uuidType:
		return rv.Interface().(uuid.UUID).String(), nil
	case dateType:
		return rv.Interface().(edm.Date).String(), nil
	case timeOfDay:
		return rv.Interface().(edm.TimeOfDay).String(), nil
	case enumType:
		return rv.Interface().(edm.Enum).Member, nil
	case timeType:
		return rv.Interface(), nil
	case rawType:
		return rv.Interface(), nil
	}

	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return nil, nil
		}
		return normalize(rv.Elem())

	case reflect.Struct:
		return normalizeStruct(rv)

	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, unsupported(ModeValueBag, &Literal{Value: rv.Interface()}, "map keys must be strings")
		}
		if rv.IsNil() {
			return nil, nil
		}
		return normalizeMap(rv)

	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return nil, nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return rv.Interface(), nil
		}
		items := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			item, err := normalize(rv.Index(i))
			if err != nil {
				return nil, err
			}
			items[i] = item
		}
		return items, nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if rv.Type().PkgPath() != "" {
			if s, ok := rv.Interface().(fmt.Stringer); ok {
				return s.String(), nil
			}
			if name, ok := metadata.EnumMemberName(rv); ok {
				return name, nil
			}
		}
		return rv.Interface(), nil

	case reflect.String, reflect.Bool, reflect.Float32, reflect.Float64:
		return rv.Interface(), nil

	default:
		return nil, unsupported(ModeValueBag, &Literal{Value: rv.Interface()}, "no JSON form for "+rv.Kind().String())
	}
}
