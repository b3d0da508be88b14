package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// KeySeparator defines the delimiter used between cache key segments. It is
// part of the key contract read by external cache inspection tooling.
const KeySeparator = ":"

// defaultKeySerializer renders args deterministically. Keys land in a shared
// store read by many processes, so nothing process local such as a pointer
// address may leak into them.
type defaultKeySerializer struct{}

// NewDefaultKeySerializer creates a new instance of the default key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return &defaultKeySerializer{}
}

// SerializeKey joins prefix and the rendered args with KeySeparator. A prefix
// that already ends with the separator is not doubled, so both
// SerializeKey("userPermissions", 42) and SerializeKey("userPermissions:", 42)
// yield "userPermissions:42".
func (s *defaultKeySerializer) SerializeKey(prefix string, args ...any) string {
	prefix = strings.TrimSuffix(prefix, KeySeparator)
	if len(args) == 0 {
		return prefix
	}

	parts := make([]string, 0, len(args)+1)
	parts = append(parts, prefix)
	for _, arg := range args {
		parts = append(parts, s.serializeValue(arg))
	}
	return strings.Join(parts, KeySeparator)
}

func (s *defaultKeySerializer) serializeValue(v any) string {
	if v == nil {
		return "nil"
	}

	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return "nil"
		}
		return s.serializeValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return ""
		}
		parts := make([]string, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			parts[i] = s.serializeValue(rv.Index(i).Interface())
		}
		return strings.Join(parts, ",")
	case reflect.Map:
		return s.serializeMap(rv)
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%v", v)
	case reflect.Func, reflect.Chan, reflect.UnsafePointer:
		// no stable rendering exists for these
		return rv.Type().String()
	}

	data, err := json.Marshal(v)
	if err != nil {
		return rv.Type().String()
	}
	return string(data)
}

// serializeMap renders entries sorted by key for determinism.
func (s *defaultKeySerializer) serializeMap(rv reflect.Value) string {
	if rv.IsNil() {
		return ""
	}

	pairs := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, s.serializeValue(iter.Key().Interface())+"="+s.serializeValue(iter.Value().Interface()))
	}
	sort.Strings(pairs)
	return strings.Join(pairs, ",")
}
