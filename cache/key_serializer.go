package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = "::"

// DefaultMaxArgLength bounds a single rendered argument. Longer renderings
// (large id lists, big structs) are replaced by an xxhash digest.
const DefaultMaxArgLength = 128

// defaultKeySerializer renders arguments with reflection.
type defaultKeySerializer struct {
	maxArgLength int
}

// NewDefaultKeySerializer creates a new instance of the default key serializer.
func NewDefaultKeySerializer() KeySerializer {
	return &defaultKeySerializer{maxArgLength: DefaultMaxArgLength}
}

// NewKeySerializer returns the default serializer with a custom digest threshold.
// maxArgLength <= 0 disables digesting.
func NewKeySerializer(maxArgLength int) KeySerializer {
	return &defaultKeySerializer{maxArgLength: maxArgLength}
}

// SerializeKey joins method and the rendered args with KeySeparator.
func (s *defaultKeySerializer) SerializeKey(method string, args ...any) string {
	if len(args) == 0 {
		return method
	}

	var b strings.Builder
	b.WriteString(method)

	for _, arg := range args {
		b.WriteString(KeySeparator)
		b.WriteString(s.digest(s.render(arg)))
	}

	return b.String()
}

// digest keeps keys bounded while distinct inputs still map to distinct keys.
func (s *defaultKeySerializer) digest(rendered string) string {
	if s.maxArgLength <= 0 || len(rendered) <= s.maxArgLength {
		return rendered
	}
	return "xxh:" + strconv.FormatUint(xxhash.Sum64String(rendered), 16) + ":" + strconv.Itoa(len(rendered))
}

func (s *defaultKeySerializer) render(v any) string {
	switch t := v.(type) {
	case nil:
		return "nil"
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	case bool:
		return strconv.FormatBool(t)
	case []int64:
		if t == nil {
			return "slice:nil"
		}
		parts := make([]string, len(t))
		for i, id := range t {
			parts[i] = strconv.FormatInt(id, 10)
		}
		return fmt.Sprintf("slice[%d]:{%s}", len(t), strings.Join(parts, ","))
	case fmt.Stringer:
		if rv := reflect.ValueOf(t); rv.Kind() == reflect.Ptr && rv.IsNil() {
			return "nil"
		}
		return t.String()
	}

	return s.renderValue(reflect.ValueOf(v))
}

func (s *defaultKeySerializer) renderValue(rv reflect.Value) string {
	switch rv.Kind() {
	case reflect.Invalid:
		return "nil"
	case reflect.Func, reflect.Chan:
		// stable for the process lifetime only
		if rv.IsNil() {
			return "nil"
		}
		return fmt.Sprintf("%s:%#x", rv.Kind(), rv.Pointer())
	case reflect.Ptr, reflect.Interface:
		if rv.IsNil() {
			return "nil"
		}
		return s.render(rv.Elem().Interface())
	case reflect.Slice:
		if rv.IsNil() {
			return "slice:nil"
		}
		return "slice" + s.renderSequence(rv)
	case reflect.Array:
		return "array" + s.renderSequence(rv)
	case reflect.Map:
		if rv.IsNil() {
			return "map:nil"
		}
		return s.renderMap(rv)
	case reflect.Struct:
		return s.renderStruct(rv)
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64,
		reflect.Complex64, reflect.Complex128,
		reflect.String:
		return fmt.Sprintf("%v", rv.Interface())
	}

	return s.jsonFallback(rv)
}

func (s *defaultKeySerializer) renderSequence(rv reflect.Value) string {
	parts := make([]string, rv.Len())
	for i := range parts {
		parts[i] = s.render(rv.Index(i).Interface())
	}
	return fmt.Sprintf("[%d]:{%s}", len(parts), strings.Join(parts, ","))
}

// renderMap sorts entries by rendered key.
func (s *defaultKeySerializer) renderMap(rv reflect.Value) string {
	pairs := make([]string, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		pairs = append(pairs, s.render(iter.Key().Interface())+"="+s.render(iter.Value().Interface()))
	}
	sort.Strings(pairs)
	return fmt.Sprintf("map[%d]:{%s}", len(pairs), strings.Join(pairs, ","))
}

// renderStruct renders exported fields only.
func (s *defaultKeySerializer) renderStruct(rv reflect.Value) string {
	rt := rv.Type()
	parts := make([]string, 0, rt.NumField())

	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		parts = append(parts, field.Name+":"+s.render(rv.Field(i).Interface()))
	}

	return fmt.Sprintf("struct:{%s}", strings.Join(parts, ","))
}

func (s *defaultKeySerializer) jsonFallback(rv reflect.Value) string {
	if !rv.CanInterface() {
		return "fallback:" + rv.Type().String()
	}
	data, err := json.Marshal(rv.Interface())
	if err != nil {
		return "fallback:" + rv.Type().String()
	}
	return "json:" + string(data)
}
