// Package accessor turns the three ways an option can be configured (a
// constant, the name of an element attribute, or a function of the element)
// into one callable value.
package accessor

import (
	"fmt"
	"math"
	"strconv"
)

// Element is what an accessor is evaluated against: a node or an edge.
// Source and Target are empty for nodes.
type Element struct {
	Key        string
	Source     string
	Target     string
	Attributes map[string]any
}

// Kind identifies how an Accessor resolves its value
type Kind int

const (
	KindNone Kind = iota
	KindConst
	KindField
	KindFunc
)

// Func computes a value from an element
type Func func(Element) any

// Accessor is an immutable, normalized option value
type Accessor struct {
	kind  Kind
	value any
	field string
	fn    Func
}

// None returns the unset accessor; it always evaluates to nil
func None() Accessor {
	return Accessor{kind: KindNone}
}

// Const returns an accessor that ignores the element
func Const(v any) Accessor {
	return Accessor{kind: KindConst, value: v}
}

// Field returns an accessor reading the named attribute
func Field(name string) Accessor {
	return Accessor{kind: KindField, field: name}
}

// Fn returns an accessor backed by a function
func Fn(fn Func) Accessor {
	if fn == nil {
		return None()
	}
	return Accessor{kind: KindFunc, fn: fn}
}

// From normalizes v. Strings become field lookups, functions become Fn,
// Accessors pass through and everything else is a constant.
//
// Use Const explicitly for constant strings (colors, for example).
func From(v any) Accessor {
	switch a := v.(type) {
	case nil:
		return None()
	case Accessor:
		return a
	case string:
		return Field(a)
	case Func:
		return Fn(a)
	case func(Element) any:
		return Fn(a)
	default:
		return Const(v)
	}
}

// Kind returns how the accessor resolves
func (a Accessor) Kind() Kind {
	return a.kind
}

// IsSet reports whether the accessor was configured
func (a Accessor) IsSet() bool {
	return a.kind != KindNone
}

// Field returns the attribute name for field accessors. Only field
// accessors can be matched against an attribute-changed event.
func (a Accessor) Field() (string, bool) {
	if a.kind != KindField {
		return "", false
	}
	return a.field, true
}

// Matches reports whether a change to attribute name can change the value
func (a Accessor) Matches(name string) bool {
	f, ok := a.Field()
	return ok && f == name
}

// Const returns the constant value for constant accessors
func (a Accessor) Const() (any, bool) {
	if a.kind != KindConst {
		return nil, false
	}
	return a.value, true
}

// Value evaluates the accessor against e
func (a Accessor) Value(e Element) any {
	switch a.kind {
	case KindConst:
		return a.value
	case KindField:
		if e.Attributes == nil {
			return nil
		}
		return e.Attributes[a.field]
	case KindFunc:
		return a.fn(e)
	default:
		return nil
	}
}

// Float evaluates to a number. Missing or non-numeric values yield 0.
func (a Accessor) Float(e Element) float64 {
	return ToFloat(a.Value(e))
}

// String evaluates to a string. nil yields "".
func (a Accessor) String(e Element) string {
	return ToString(a.Value(e))
}

// Truthy evaluates with loose truthiness: nil, false, 0, NaN and "" are false
func (a Accessor) Truthy(e Element) bool {
	return Truthy(a.Value(e))
}

// Describe renders the accessor for logs
func (a Accessor) Describe() string {
	switch a.kind {
	case KindConst:
		return fmt.Sprintf("const(%v)", a.value)
	case KindField:
		return "field(" + a.field + ")"
	case KindFunc:
		return "func"
	default:
		return "none"
	}
}

// ToFloat converts the numeric types found in decoded attributes
func ToFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case uint:
		return float64(n)
	case uint64:
		return float64(n)
	case uint32:
		return float64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Number returns v as a float when it holds a numeric type. Strings and
// booleans are not numbers here.
func Number(v any) (float64, bool) {
	switch v.(type) {
	case float64, float32, int, int64, int32, uint, uint64, uint32:
		f := ToFloat(v)
		return f, !math.IsNaN(f)
	default:
		return 0, false
	}
}

// ToString converts a value to its string form; nil yields ""
func ToString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

// Truthy applies loose truthiness
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0 && !math.IsNaN(t)
	case float32:
		return t != 0 && !math.IsNaN(float64(t))
	case int, int64, int32, uint, uint64, uint32:
		return ToFloat(t) != 0
	default:
		return true
	}
}
