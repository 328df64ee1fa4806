package edm

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nlstn/go-odata-client/internal/version"
	"github.com/shopspring/decimal"
)

// FormatTypedLiteral renders value as a literal of the declared EDM type typeName.
// The declared type wins over the Go type: an int key declared as Edm.String is
// quoted, a string key declared as Edm.Guid is parsed and emitted as a guid.
// Values that cannot be represented as typeName return an error.
func FormatTypedLiteral(value interface{}, typeName string, v version.Version) (string, error) {
	if value == nil {
		return "null", nil
	}
	if n, ok := value.(json.Number); ok {
		value = numberValue(n)
	}
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return "null", nil
		}
		rv = rv.Elem()
	}
	value = rv.Interface()
	prefixed := v.Supports("typed-literal-prefixes")

	switch typeName {
	case "":
		return FormatLiteral(value, v)

	case TypeString:
		switch rv.Kind() {
		case reflect.String:
			return QuoteString(rv.String()), nil
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return QuoteString(strconv.FormatInt(rv.Int(), 10)), nil
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return QuoteString(strconv.FormatUint(rv.Uint(), 10)), nil
		}
		if s, ok := value.(fmt.Stringer); ok {
			return QuoteString(s.String()), nil
		}

	case TypeBoolean:
		if rv.Kind() == reflect.Bool {
			return strconv.FormatBool(rv.Bool()), nil
		}

	case TypeByte, TypeSByte, TypeInt16, TypeInt32:
		if i, ok := integerValue(rv); ok {
			return strconv.FormatInt(i, 10), nil
		}

	case TypeInt64:
		if i, ok := integerValue(rv); ok {
			return formatInt64(i, prefixed), nil
		}

	case TypeSingle, TypeDouble:
		if i, ok := integerValue(rv); ok {
			return strconv.FormatInt(i, 10), nil
		}
		if rv.Kind() == reflect.Float32 || rv.Kind() == reflect.Float64 {
			return formatFloat(rv.Float(), rv.Type().Bits()), nil
		}

	case TypeDecimal:
		switch val := value.(type) {
		case decimal.Decimal:
			return formatDecimal(val, prefixed), nil
		case float32:
			return formatDecimal(decimal.NewFromFloat32(val), prefixed), nil
		case float64:
			return formatDecimal(decimal.NewFromFloat(val), prefixed), nil
		case string:
			d, err := decimal.NewFromString(val)
			if err != nil {
				return "", fmt.Errorf("%q is not an %s: %w", val, typeName, err)
			}
			return formatDecimal(d, prefixed), nil
		}
		if i, ok := integerValue(rv); ok {
			return formatDecimal(decimal.NewFromInt(i), prefixed), nil
		}

	case TypeGuid:
		switch val := value.(type) {
		case uuid.UUID:
			return formatGuid(val, prefixed), nil
		case string:
			u, err := uuid.Parse(val)
			if err != nil {
				return "", fmt.Errorf("%q is not an %s: %w", val, typeName, err)
			}
			return formatGuid(u, prefixed), nil
		}

	case TypeDateTimeOffset:
		if t, ok := value.(time.Time); ok {
			return formatDateTimeOffset(t, prefixed), nil
		}

	case TypeDate, TypeDateTime:
		switch val := value.(type) {
		case Date:
			return formatDate(val, prefixed), nil
		case time.Time:
			if typeName == TypeDateTime && prefixed {
				return "datetime'" + val.Format("2006-01-02T15:04:05.9999999") + "'", nil
			}
			return formatDate(DateOf(val), prefixed), nil
		}

	case TypeTimeOfDay, TypeTime:
		switch val := value.(type) {
		case TimeOfDay:
			return formatTimeOfDay(val, prefixed), nil
		case time.Duration:
			if typeName == TypeTime || prefixed {
				return formatDuration(val, prefixed), nil
			}
		}

	case TypeDuration:
		if d, ok := value.(time.Duration); ok {
			return formatDuration(d, prefixed), nil
		}

	case TypeBinary:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			return formatBinary(rv.Bytes(), prefixed), nil
		}

	default:
		if !IsPrimitive(typeName) {
			// Enumeration types: member names travel qualified with the type in v4
			switch val := value.(type) {
			case Enum:
				if val.Type == "" {
					val.Type = typeName
				}
				return formatEnum(val, prefixed), nil
			case string:
				return formatEnum(Enum{Type: typeName, Member: val}, prefixed), nil
			case fmt.Stringer:
				if _, ok := integerValue(rv); ok {
					return formatEnum(Enum{Type: typeName, Member: val.String()}, prefixed), nil
				}
			}
			if i, ok := integerValue(rv); ok {
				return formatEnum(Enum{Type: typeName, Member: strconv.FormatInt(i, 10)}, prefixed), nil
			}
		}
	}

	return "", fmt.Errorf("%T cannot be formatted as %s", value, typeName)
}

func integerValue(rv reflect.Value) (int64, bool) {
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), true
	}
	return 0, false
}

// numberValue converts a decoded JSON number to int64 or float64, keeping the
// text when it is neither.
func numberValue(n json.Number) interface{} {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return string(n)
}
