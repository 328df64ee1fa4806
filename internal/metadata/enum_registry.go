package metadata

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"sync"
)

// EnumMember is a single member of an enumeration type.
type EnumMember struct {
	Name  string
	Value int64
}

var enumRegistry = struct {
	sync.RWMutex
	data map[reflect.Type][]EnumMember
}{
	data: make(map[reflect.Type][]EnumMember),
}

// RegisterEnumMembers registers the members of an integral Go enum type so
// its values can be written as member names in filters and payloads.
func RegisterEnumMembers(enumType reflect.Type, members []EnumMember) error {
	if enumType == nil {
		return fmt.Errorf("enum type cannot be nil")
	}

	baseType := resolveEnumBaseType(enumType)
	if baseType == nil {
		return fmt.Errorf("enum type %s must be an integral type", enumType)
	}

	if len(members) == 0 {
		return fmt.Errorf("enum type %s must have at least one member", baseType.Name())
	}

	seenNames := make(map[string]struct{})
	normalized := make([]EnumMember, len(members))
	for i, member := range members {
		if member.Name == "" {
			return fmt.Errorf("enum type %s has a member with an empty name", baseType.Name())
		}
		if _, exists := seenNames[member.Name]; exists {
			return fmt.Errorf("enum type %s has duplicate member name %s", baseType.Name(), member.Name)
		}
		seenNames[member.Name] = struct{}{}
		normalized[i] = member
	}
	sortMembers(normalized)

	enumRegistry.Lock()
	defer enumRegistry.Unlock()
	enumRegistry.data[baseType] = normalized
	return nil
}

// ResolveEnumMembers returns the members of an enum type, from the registry or
// from an EnumMembers() map[string]<integer> method on the type.
func ResolveEnumMembers(fieldType reflect.Type) ([]EnumMember, error) {
	baseType := resolveEnumBaseType(fieldType)
	if baseType == nil {
		return nil, fmt.Errorf("enum field type %s must ultimately resolve to an integral type", fieldType)
	}

	enumRegistry.RLock()
	members, ok := enumRegistry.data[baseType]
	enumRegistry.RUnlock()
	if ok {
		return append([]EnumMember(nil), members...), nil
	}

	members, err := extractEnumMembersViaMethod(baseType)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, fmt.Errorf("enum type %s has no registered members", baseType.Name())
	}
	if err := RegisterEnumMembers(baseType, members); err != nil {
		return nil, err
	}
	return members, nil
}

// EnumMemberName returns the member name for an integral enum value. Flag
// combinations without an exact member are not resolved.
func EnumMemberName(value reflect.Value) (string, bool) {
	if !value.IsValid() || value.Type().Name() == "" || resolveEnumBaseType(value.Type()) != value.Type() {
		return "", false
	}
	members, err := ResolveEnumMembers(value.Type())
	if err != nil {
		return "", false
	}
	v, err := convertEnumValueToInt64(value)
	if err != nil {
		return "", false
	}
	for _, m := range members {
		if m.Value == v {
			return m.Name, true
		}
	}
	return "", false
}

// resolveEnumBaseType unwraps pointers, slices, and arrays to find the underlying enum type.
func resolveEnumBaseType(t reflect.Type) reflect.Type {
	if t == nil {
		return nil
	}
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}
	if isSupportedEnumValueKind(t.Kind()) {
		return t
	}
	return nil
}

// extractEnumMembersViaMethod calls EnumMembers() on the enum type, if it has one.
func extractEnumMembersViaMethod(enumType reflect.Type) ([]EnumMember, error) {
	method := reflect.New(enumType).MethodByName("EnumMembers")
	if !method.IsValid() {
		return nil, nil
	}

	methodType := method.Type()
	if methodType.NumIn() != 0 || methodType.NumOut() != 1 {
		return nil, fmt.Errorf("EnumMembers method on type %s must have signature EnumMembers() map[string]<integer>", enumType.Name())
	}
	resultType := methodType.Out(0)
	if resultType.Kind() != reflect.Map || resultType.Key().Kind() != reflect.String || !isSupportedEnumValueKind(resultType.Elem().Kind()) {
		return nil, fmt.Errorf("EnumMembers method on type %s must return map[string]<integer>", enumType.Name())
	}

	mapValue := method.Call(nil)[0]
	if mapValue.IsNil() {
		return nil, fmt.Errorf("EnumMembers method on type %s returned nil", enumType.Name())
	}

	members := make([]EnumMember, 0, mapValue.Len())
	iter := mapValue.MapRange()
	for iter.Next() {
		name := iter.Key().String()
		if name == "" {
			return nil, fmt.Errorf("enum type %s has a member with an empty name", enumType.Name())
		}
		memberValue, err := convertEnumValueToInt64(iter.Value())
		if err != nil {
			return nil, fmt.Errorf("enum type %s has invalid member %s: %w", enumType.Name(), name, err)
		}
		members = append(members, EnumMember{Name: name, Value: memberValue})
	}
	sortMembers(members)
	return members, nil
}

func sortMembers(members []EnumMember) {
	sort.Slice(members, func(i, j int) bool {
		if members[i].Value == members[j].Value {
			return members[i].Name < members[j].Name
		}
		return members[i].Value < members[j].Value
	})
}

func isSupportedEnumValueKind(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}

func convertEnumValueToInt64(value reflect.Value) (int64, error) {
	switch value.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return value.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		unsigned := value.Uint()
		if unsigned > math.MaxInt64 {
			return 0, fmt.Errorf("value %d exceeds maximum supported enum value", unsigned)
		}
		return int64(unsigned), nil
	default:
		return 0, fmt.Errorf("unsupported enum value kind %s", value.Kind())
	}
}
