package types

import "strconv"

// VerbosityKey is the attribute every model entry and the EARTH block carry.
const VerbosityKey = "Verbosity"

// ValueKind discriminates the scalar held by a Value.
type ValueKind int

const (
	KindString ValueKind = iota
	KindBool
	KindVerbosity
)

// Value is a scalar attribute value. Only the wire text survives a parse,
// so values read back from a rendered file are always KindString.
type Value struct {
	kind ValueKind
	str  string
	b    bool
}

// String wraps a plain string value.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Bool wraps a boolean value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// VerbosityValue wraps a verbosity level.
func VerbosityValue(v Verbosity) Value {
	return Value{kind: KindVerbosity, str: string(v)}
}

// Kind returns the scalar kind.
func (v Value) Kind() ValueKind { return v.kind }

// Wire renders the value as it appears in a configuration file.
func (v Value) Wire() string {
	if v.kind == KindBool {
		return strconv.FormatBool(v.b)
	}
	return v.str
}

// Attributes is an insertion-ordered map of attribute names to values.
// The zero value is ready to use.
type Attributes struct {
	keys   []string
	values map[string]Value
}

// NewAttributes builds an attribute set from ordered pairs.
func NewAttributes(pairs ...KeyValue) *Attributes {
	a := &Attributes{}
	for _, p := range pairs {
		a.Set(p.Key, p.Value)
	}
	return a
}

// KeyValue is a single attribute assignment.
type KeyValue struct {
	Key   string
	Value Value
}

// Set assigns key, keeping its original position when it already exists.
func (a *Attributes) Set(key string, value Value) {
	if a.values == nil {
		a.values = make(map[string]Value)
	}
	if _, ok := a.values[key]; !ok {
		a.keys = append(a.keys, key)
	}
	a.values[key] = value
}

// SetFirst assigns key and moves it to the front.
func (a *Attributes) SetFirst(key string, value Value) {
	a.Delete(key)
	if a.values == nil {
		a.values = make(map[string]Value)
	}
	a.keys = append([]string{key}, a.keys...)
	a.values[key] = value
}

// Get returns the value stored under key.
func (a *Attributes) Get(key string) (Value, bool) {
	if a == nil || a.values == nil {
		return Value{}, false
	}
	v, ok := a.values[key]
	return v, ok
}

// Has reports whether key is present.
func (a *Attributes) Has(key string) bool {
	_, ok := a.Get(key)
	return ok
}

// Delete removes key if present.
func (a *Attributes) Delete(key string) {
	if a.values == nil {
		return
	}
	if _, ok := a.values[key]; !ok {
		return
	}
	delete(a.values, key)
	for i, k := range a.keys {
		if k == key {
			a.keys = append(a.keys[:i], a.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (a *Attributes) Keys() []string {
	if a == nil {
		return nil
	}
	out := make([]string, len(a.keys))
	copy(out, a.keys)
	return out
}

// Len returns the number of attributes.
func (a *Attributes) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

// Merge copies every attribute of other into a, in other's order.
func (a *Attributes) Merge(other *Attributes) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		a.Set(k, other.values[k])
	}
}

// Clone returns an independent copy.
func (a *Attributes) Clone() *Attributes {
	c := &Attributes{}
	c.Merge(a)
	return c
}

// Verbosity returns the Verbosity attribute, or DefaultVerbosity.
func (a *Attributes) Verbosity() Verbosity {
	if v, ok := a.Get(VerbosityKey); ok {
		return Verbosity(v.Wire())
	}
	return DefaultVerbosity
}
