// Package edm formats Go values as OData primitive literals.
package edm

import (
	"fmt"
	"reflect"
	"time"
)

// EDM primitive type names.
const (
	TypeString         = "Edm.String"
	TypeBoolean        = "Edm.Boolean"
	TypeByte           = "Edm.Byte"
	TypeSByte          = "Edm.SByte"
	TypeInt16          = "Edm.Int16"
	TypeInt32          = "Edm.Int32"
	TypeInt64          = "Edm.Int64"
	TypeSingle         = "Edm.Single"
	TypeDouble         = "Edm.Double"
	TypeDecimal        = "Edm.Decimal"
	TypeGuid           = "Edm.Guid"
	TypeBinary         = "Edm.Binary"
	TypeDate           = "Edm.Date"
	TypeTimeOfDay      = "Edm.TimeOfDay"
	TypeDuration       = "Edm.Duration"
	TypeDateTimeOffset = "Edm.DateTimeOffset"
	// TypeDateTime and TypeTime only exist in OData v3.
	TypeDateTime = "Edm.DateTime"
	TypeTime     = "Edm.Time"
)

var primitiveTypes = map[string]bool{
	TypeString: true, TypeBoolean: true, TypeByte: true, TypeSByte: true,
	TypeInt16: true, TypeInt32: true, TypeInt64: true, TypeSingle: true,
	TypeDouble: true, TypeDecimal: true, TypeGuid: true, TypeBinary: true,
	TypeDate: true, TypeTimeOfDay: true, TypeDuration: true,
	TypeDateTimeOffset: true, TypeDateTime: true, TypeTime: true,
}

// IsPrimitive reports whether typeName names an EDM primitive type.
func IsPrimitive(typeName string) bool {
	return primitiveTypes[typeName]
}

var (
	durationType = reflect.TypeOf(time.Duration(0))
	dateType     = reflect.TypeOf(Date{})
	timeOfDay    = reflect.TypeOf(TimeOfDay{})
)

// FromGoType infers the EDM type from a Go type
func FromGoType(goType reflect.Type) (string, error) {
	if goType == nil {
		return "", fmt.Errorf("nil type")
	}

	// Handle pointer types
	if goType.Kind() == reflect.Ptr {
		goType = goType.Elem()
	}

	// Check for specific known types
	switch {
	case goType.PkgPath() == "time" && goType.Name() == "Time":
		return TypeDateTimeOffset, nil
	case goType == durationType:
		return TypeDuration, nil
	case goType == dateType:
		return TypeDate, nil
	case goType == timeOfDay:
		return TypeTimeOfDay, nil
	case goType.PkgPath() == "github.com/shopspring/decimal" && goType.Name() == "Decimal":
		return TypeDecimal, nil
	case goType.PkgPath() == "github.com/google/uuid" && goType.Name() == "UUID":
		return TypeGuid, nil
	}

	// Handle byte slices
	if (goType.Kind() == reflect.Slice || goType.Kind() == reflect.Array) && goType.Elem().Kind() == reflect.Uint8 {
		return TypeBinary, nil
	}

	// Map basic Go types to EDM types
	switch goType.Kind() {
	case reflect.String:
		return TypeString, nil
	case reflect.Int, reflect.Int32:
		return TypeInt32, nil
	case reflect.Int64, reflect.Uint, reflect.Uint32, reflect.Uint64:
		return TypeInt64, nil
	case reflect.Int16:
		return TypeInt16, nil
	case reflect.Int8:
		return TypeSByte, nil
	case reflect.Uint16:
		return TypeInt32, nil
	case reflect.Uint8:
		return TypeByte, nil
	case reflect.Float32:
		return TypeSingle, nil
	case reflect.Float64:
		return TypeDouble, nil
	case reflect.Bool:
		return TypeBoolean, nil
	default:
		return "", fmt.Errorf("unsupported Go type: %s", goType.String())
	}
}

// Date is a calendar date without time zone (Edm.Date).
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the date part of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// String returns the date in YYYY-MM-DD form.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// TimeOfDay is a clock time without date or time zone (Edm.TimeOfDay).
type TimeOfDay struct {
	Hour       int
	Minute     int
	Second     int
	Nanosecond int
}

// String returns the time in hh:mm:ss[.fffffff] form.
func (t TimeOfDay) String() string {
	s := fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
	if t.Nanosecond > 0 {
		frac := fmt.Sprintf("%09d", t.Nanosecond)
		for len(frac) > 0 && frac[len(frac)-1] == '0' {
			frac = frac[:len(frac)-1]
		}
		s += "." + frac
	}
	return s
}

func (t TimeOfDay) duration() time.Duration {
	return time.Duration(t.Hour)*time.Hour + time.Duration(t.Minute)*time.Minute +
		time.Duration(t.Second)*time.Second + time.Duration(t.Nanosecond)
}

// Enum is a member of a schema enumeration type, e.g. Enum{Type: "NS.PersonGender", Member: "Female"}.
type Enum struct {
	Type   string
	Member string
}
