package action

import (
	"fmt"
	"reflect"
	"time"

	"github.com/tiendc/go-deepcopy"
)

// Cloner is implemented by reference values that know how to copy
// themselves before being placed into a Context.
type Cloner interface {
	CloneValue() (any, error)
}

// ClonePolicy decides what happens to reference values that do not
// implement Cloner.
type ClonePolicy string

const (
	// CloneStrict rejects reference values without a Cloner.
	CloneStrict ClonePolicy = "strict"
	// CloneDeep falls back to a reflection based deep copy.
	CloneDeep ClonePolicy = "deep"
)

// ParseClonePolicy normalizes a policy name, defaulting to CloneStrict.
func ParseClonePolicy(name string) (ClonePolicy, error) {
	switch ClonePolicy(name) {
	case "", CloneStrict:
		return CloneStrict, nil
	case CloneDeep:
		return CloneDeep, nil
	default:
		return CloneStrict, fmt.Errorf("unknown clone policy %q", name)
	}
}

var timeType = reflect.TypeOf(time.Time{})

func cloneValue(key string, value any, policy ClonePolicy) (any, error) {
	if value == nil {
		return nil, nil
	}

	if cloner, ok := value.(Cloner); ok {
		cloned, err := cloner.CloneValue()
		if err != nil {
			return nil, &UncopyableValueError{Key: key, Type: typeOf(value), Err: err}
		}
		return cloned, nil
	}

	t := reflect.TypeOf(value)
	if isValueLike(t, nil) {
		return value, nil
	}

	if policy != CloneDeep {
		return nil, &UncopyableValueError{Key: key, Type: t.String()}
	}

	bad := uncopyableKind(t, nil)
	if bad == "" {
		bad = uncopyableValue(reflect.ValueOf(value), nil)
	}
	if bad != "" {
		return nil, &UncopyableValueError{
			Key:  key,
			Type: t.String(),
			Err:  fmt.Errorf("contains %s", bad),
		}
	}

	dst := reflect.New(t)
	if err := deepcopy.Copy(dst.Interface(), value); err != nil {
		return nil, &UncopyableValueError{Key: key, Type: t.String(), Err: err}
	}
	return dst.Elem().Interface(), nil
}

// isValueLike reports whether copying a value of t by assignment yields
// an independent copy.
func isValueLike(t reflect.Type, seen map[reflect.Type]bool) bool {
	if t == timeType {
		return true
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array:
		return isValueLike(t.Elem(), seen)
	case reflect.Struct:
		if seen == nil {
			seen = make(map[reflect.Type]bool)
		}
		if seen[t] {
			return true
		}
		seen[t] = true
		for i := 0; i < t.NumField(); i++ {
			if !isValueLike(t.Field(i).Type, seen) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// uncopyableKind returns the first kind inside t that no deep copy can
// duplicate, or "" when t is copyable.
func uncopyableKind(t reflect.Type, seen map[reflect.Type]bool) string {
	if seen == nil {
		seen = make(map[reflect.Type]bool)
	}
	if seen[t] {
		return ""
	}
	seen[t] = true

	switch t.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return t.Kind().String()
	case reflect.Ptr, reflect.Slice, reflect.Array:
		return uncopyableKind(t.Elem(), seen)
	case reflect.Map:
		if bad := uncopyableKind(t.Key(), seen); bad != "" {
			return bad
		}
		return uncopyableKind(t.Elem(), seen)
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if bad := uncopyableKind(t.Field(i).Type, seen); bad != "" {
				return bad
			}
		}
	}
	return ""
}

type visit struct {
	ptr uintptr
	typ reflect.Type
}

// uncopyableValue walks the dynamic values behind interfaces, which the
// static check cannot see, and returns the first func, chan or unsafe
// pointer it finds.
func uncopyableValue(v reflect.Value, seen map[visit]bool) string {
	if !v.IsValid() {
		return ""
	}
	if seen == nil {
		seen = make(map[visit]bool)
	}

	switch v.Kind() {
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		return v.Kind().String()
	case reflect.Interface:
		if v.IsNil() {
			return ""
		}
		return uncopyableValue(v.Elem(), seen)
	case reflect.Ptr:
		if v.IsNil() {
			return ""
		}
		key := visit{ptr: v.Pointer(), typ: v.Type()}
		if seen[key] {
			return ""
		}
		seen[key] = true
		return uncopyableValue(v.Elem(), seen)
	case reflect.Map:
		if v.IsNil() || !holdsInterface(v.Type(), nil) {
			return ""
		}
		key := visit{ptr: v.Pointer(), typ: v.Type()}
		if seen[key] {
			return ""
		}
		seen[key] = true
		iter := v.MapRange()
		for iter.Next() {
			if bad := uncopyableValue(iter.Key(), seen); bad != "" {
				return bad
			}
			if bad := uncopyableValue(iter.Value(), seen); bad != "" {
				return bad
			}
		}
	case reflect.Slice, reflect.Array:
		if !holdsInterface(v.Type(), nil) {
			return ""
		}
		for i := 0; i < v.Len(); i++ {
			if bad := uncopyableValue(v.Index(i), seen); bad != "" {
				return bad
			}
		}
	case reflect.Struct:
		if !holdsInterface(v.Type(), nil) {
			return ""
		}
		for i := 0; i < v.NumField(); i++ {
			if bad := uncopyableValue(v.Field(i), seen); bad != "" {
				return bad
			}
		}
	}
	return ""
}

// holdsInterface reports whether a value of t can reach an interface.
func holdsInterface(t reflect.Type, seen map[reflect.Type]bool) bool {
	if seen == nil {
		seen = make(map[reflect.Type]bool)
	}
	if seen[t] {
		return false
	}
	seen[t] = true

	switch t.Kind() {
	case reflect.Interface:
		return true
	case reflect.Ptr, reflect.Slice, reflect.Array:
		return holdsInterface(t.Elem(), seen)
	case reflect.Map:
		return holdsInterface(t.Key(), seen) || holdsInterface(t.Elem(), seen)
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			if holdsInterface(t.Field(i).Type, seen) {
				return true
			}
		}
	}
	return false
}

func typeOf(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}

func typeString[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}
