package cache

import (
	"reflect"
	"strings"
	"unicode"
)

// Key identifies one cache slot. Prefix is the leading part shared by every
// key of the same namespace and entity, used for bulk invalidation.
type Key struct {
	Value  string
	Prefix string
}

// IsZero reports whether k carries no key.
func (k Key) IsZero() bool {
	return k.Value == ""
}

func (k Key) String() string {
	return k.Value
}

// KeyTemplate names the fixed segments of a key. Empty fields are filled
// from the Keys builder that prepares it.
type KeyTemplate struct {
	Namespace string
	Entity    string
	Operation string
}

// Keys prepares deterministic keys for one namespace and entity.
type Keys struct {
	namespace  string
	entity     string
	serializer KeySerializer
}

// NewKeys returns a key builder. A nil serializer selects the default one.
func NewKeys(namespace, entity string, serializer KeySerializer) *Keys {
	if serializer == nil {
		serializer = NewDefaultKeySerializer()
	}
	return &Keys{namespace: namespace, entity: entity, serializer: serializer}
}

// Namespace returns the namespace segment.
func (k *Keys) Namespace() string { return k.namespace }

// Entity returns the entity segment.
func (k *Keys) Entity() string { return k.entity }

// Prefix returns the prefix shared by every key this builder prepares.
func (k *Keys) Prefix() string {
	return Prefix(k.namespace, k.entity)
}

// Prepare renders tpl and args into a Key.
func (k *Keys) Prepare(tpl KeyTemplate, args ...any) Key {
	if tpl.Namespace == "" {
		tpl.Namespace = k.namespace
	}
	if tpl.Entity == "" {
		tpl.Entity = k.entity
	}

	prefix := Prefix(tpl.Namespace, tpl.Entity)
	return Key{
		Value:  k.serializer.SerializeKey(prefix+tpl.Operation, args...),
		Prefix: prefix,
	}
}

// For is shorthand for Prepare with only the operation set.
func (k *Keys) For(operation string, args ...any) Key {
	return k.Prepare(KeyTemplate{Operation: operation}, args...)
}

// Prefix joins namespace and entity into a key prefix ending in KeySeparator.
func Prefix(namespace, entity string) string {
	var b strings.Builder
	if namespace != "" {
		b.WriteString(namespace)
		b.WriteString(KeySeparator)
	}
	b.WriteString(entity)
	b.WriteString(KeySeparator)
	return b.String()
}

// EntityName derives the snake_case entity tag for v's type, dereferencing
// pointers and slices: *TopicStore and []TopicStore both give "topic_store".
func EntityName(v any) string {
	t := reflect.TypeOf(v)
	for t != nil && (t.Kind() == reflect.Ptr || t.Kind() == reflect.Slice || t.Kind() == reflect.Array) {
		t = t.Elem()
	}
	if t == nil {
		return "unknown"
	}
	name := t.Name()
	if i := strings.IndexByte(name, '['); i >= 0 {
		// generic instantiation
		name = name[:i]
	}
	if name == "" {
		return "unknown"
	}
	return toSnake(name)
}

func toSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + 4)

	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}

	return b.String()
}
