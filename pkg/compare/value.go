package compare

import "strconv"

// ValueKind tags the variant held by a Value.
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindBool
	KindNested
)

// Value is one configuration parameter value: a scalar or a nested
// parameter map. The zero Value is the empty string.
type Value struct {
	kind   ValueKind
	str    string
	num    float64
	b      bool
	nested *Config
}

// String wraps a string scalar.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Number wraps a numeric scalar.
func Number(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

// Bool wraps a boolean scalar.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Nested wraps a nested parameter map.
func Nested(c *Config) Value {
	return Value{kind: KindNested, nested: c}
}

// Kind returns the variant tag.
func (v Value) Kind() ValueKind {
	return v.kind
}

// IsNested reports whether the value is a nested parameter map.
func (v Value) IsNested() bool {
	return v.kind == KindNested
}

// NestedConfig returns the nested parameter map, or nil for scalars.
func (v Value) NestedConfig() *Config {
	return v.nested
}

// Float returns the numeric scalar and whether the value is a number.
func (v Value) Float() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// Canonical returns the value's canonical string form, the representation
// row difference detection compares. Numbers drop a trailing ".0" so that
// 1 and 1.0 canonicalize identically; nested maps canonicalize to the
// sentinel so two nested values never disagree at the top level.
func (v Value) Canonical() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNested:
		return NestedSentinel
	default:
		return v.str
	}
}
