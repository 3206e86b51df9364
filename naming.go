package action

import (
	"reflect"
	"regexp"
	"strings"
)

// Named lets a value choose its own logical type name.
type Named interface {
	ActionName() string
}

var snakeCasePattern = regexp.MustCompile("([a-z0-9])([A-Z])")

// TypeName returns the logical type name used as action identity, in the
// form pkg::snake_case_type. Values implementing Named win.
func TypeName(v any) string {
	if v == nil {
		return "unknown_type"
	}

	if named, ok := v.(Named); ok {
		return named.ActionName()
	}

	return TypeNameOf(reflect.TypeOf(v))
}

// TypeNameFor returns the logical type name for T without a value.
func TypeNameFor[T any]() string {
	var zero T
	if named, ok := any(zero).(Named); ok && !isNilPointer(zero) {
		return named.ActionName()
	}
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() == reflect.Ptr {
		if named, ok := reflect.New(t.Elem()).Interface().(Named); ok {
			return named.ActionName()
		}
	}
	return TypeNameOf(t)
}

// TypeNameOf renders a reflect.Type the same way TypeName does.
func TypeNameOf(t reflect.Type) string {
	if t == nil {
		return "unknown_type"
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	name := toSnakeCase(t.Name())
	if name == "" {
		return toSnakeCase(t.String())
	}
	if t.PkgPath() == "" {
		return name
	}

	// String renders package name, not import path: "action.saveOrder".
	pkg, _, ok := strings.Cut(t.String(), ".")
	if !ok {
		return name
	}
	return pkg + "::" + name
}

func toSnakeCase(s string) string {
	return strings.ToLower(snakeCasePattern.ReplaceAllString(s, "${1}_${2}"))
}

func isNilPointer(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}
