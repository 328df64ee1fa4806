package edm

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/nlstn/go-odata-client/internal/version"
	"github.com/shopspring/decimal"
)

// ErrUnsupportedValue is returned for Go values that have no OData literal form.
var ErrUnsupportedValue = errors.New("no OData literal form")

// FormatLiteral renders value as an OData literal in the dialect of protocol version v.
// The literal kind is inferred from the Go type.
func FormatLiteral(value interface{}, v version.Version) (string, error) {
	if value == nil {
		return "null", nil
	}
	prefixed := v.Supports("typed-literal-prefixes")

	switch val := value.(type) {
	case string:
		return QuoteString(val), nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int8:
		return strconv.FormatInt(int64(val), 10), nil
	case int16:
		return strconv.FormatInt(int64(val), 10), nil
	case int32:
		return strconv.FormatInt(int64(val), 10), nil
	case int64:
		return formatInt64(val, prefixed), nil
	case uint8:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(val), 10), nil
	case uint:
		return formatUint64(uint64(val), prefixed), nil
	case uint64:
		return formatUint64(val, prefixed), nil
	case float32:
		return formatFloat(float64(val), 32), nil
	case float64:
		return formatFloat(val, 64), nil
	case decimal.Decimal:
		return formatDecimal(val, prefixed), nil
	case uuid.UUID:
		return formatGuid(val, prefixed), nil
	case time.Time:
		return formatDateTimeOffset(val, prefixed), nil
	case time.Duration:
		return formatDuration(val, prefixed), nil
	case Date:
		return formatDate(val, prefixed), nil
	case TimeOfDay:
		return formatTimeOfDay(val, prefixed), nil
	case Enum:
		return formatEnum(val, prefixed), nil
	case []byte:
		return formatBinary(val, prefixed), nil
	case json.Number:
		// Decoded payload numbers are written back verbatim.
		if _, err := strconv.ParseFloat(string(val), 64); err != nil {
			return "", fmt.Errorf("%w: invalid number %q", ErrUnsupportedValue, string(val))
		}
		return string(val), nil
	}

	return formatReflect(reflect.ValueOf(value), v)
}

// formatReflect handles pointers and named types whose underlying kind is primitive.
func formatReflect(rv reflect.Value, v version.Version) (string, error) {
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return "null", nil
		}
		return FormatLiteral(rv.Elem().Interface(), v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		// Integer enums with a String method travel as their member name
		if s, ok := rv.Interface().(fmt.Stringer); ok {
			return QuoteString(s.String()), nil
		}
		if rv.Kind() >= reflect.Uint {
			return FormatLiteral(rv.Uint(), v)
		}
		return FormatLiteral(rv.Int(), v)
	case reflect.String:
		return QuoteString(rv.String()), nil
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), nil
	case reflect.Float32, reflect.Float64:
		return formatFloat(rv.Float(), rv.Type().Bits()), nil
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			buf := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(buf), rv)
			return formatBinary(buf, v.Supports("typed-literal-prefixes")), nil
		}
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return formatBinary(rv.Bytes(), v.Supports("typed-literal-prefixes")), nil
		}
	}
	return "", fmt.Errorf("%T: %w", rv.Interface(), ErrUnsupportedValue)
}

func formatInt64(i int64, prefixed bool) string {
	s := strconv.FormatInt(i, 10)
	if prefixed {
		return s + "L"
	}
	return s
}

func formatUint64(u uint64, prefixed bool) string {
	s := strconv.FormatUint(u, 10)
	if prefixed {
		return s + "L"
	}
	return s
}

func formatDecimal(d decimal.Decimal, prefixed bool) string {
	if prefixed {
		return d.String() + "M"
	}
	return d.String()
}

func formatGuid(u uuid.UUID, prefixed bool) string {
	if prefixed {
		return "guid'" + u.String() + "'"
	}
	return u.String()
}

func formatDate(d Date, prefixed bool) string {
	if prefixed {
		return "datetime'" + d.String() + "T00:00:00'"
	}
	return d.String()
}

func formatTimeOfDay(t TimeOfDay, prefixed bool) string {
	if prefixed {
		return "time'" + FormatDuration(t.duration()) + "'"
	}
	return t.String()
}

func formatEnum(e Enum, prefixed bool) string {
	if prefixed || e.Type == "" {
		return QuoteString(e.Member)
	}
	return e.Type + QuoteString(e.Member)
}

func formatBinary(b []byte, prefixed bool) string {
	if prefixed {
		return "binary'" + hex.EncodeToString(b) + "'"
	}
	return "binary'" + base64.URLEncoding.EncodeToString(b) + "'"
}
