package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the closed set of value tags. There is no open set of value
// types (see §9 "typeid-based dispatch... should be replaced by a closed
// enumeration of value kinds"): Date and Duration are logical aliases of
// Real, distinguished only for printing and for the hysteresis-epsilon
// logic in the lookup cache.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindBool
	KindInt
	KindReal
	KindString
	KindDate     // logical alias of Real
	KindDuration // logical alias of Real
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindReal:
		return "Real"
	case KindString:
		return "String"
	case KindDate:
		return "Date"
	case KindDuration:
		return "Duration"
	case KindArray:
		return "Array"
	default:
		return "Unknown"
	}
}

// isNumeric reports whether values of this kind participate in arithmetic.
func (k Kind) isNumeric() bool {
	switch k {
	case KindInt, KindReal, KindDate, KindDuration:
		return true
	default:
		return false
	}
}

// Value is the tagged variant described in spec §3/§4.1: Unknown, Bool,
// Int, Real, String, and homogeneous Array of any scalar kind. The zero
// Value is Unknown.
type Value struct {
	kind  Kind
	b     bool
	i     int32
	r     float64
	s     string
	arr   []Value // only meaningful when kind == KindArray; each element is independently possibly-unknown
	elemK Kind     // element kind for arrays
}

// Unknown returns the Unknown value.
func Unknown() Value { return Value{kind: KindUnknown} }

// BoolValue constructs a known Bool.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// IntValue constructs a known Int.
func IntValue(i int32) Value { return Value{kind: KindInt, i: i} }

// RealValue constructs a known Real.
func RealValue(r float64) Value { return Value{kind: KindReal, r: r} }

// DateValue constructs a known Date (a Real under the hood).
func DateValue(r float64) Value { return Value{kind: KindDate, r: r} }

// DurationValue constructs a known Duration (a Real under the hood).
func DurationValue(r float64) Value { return Value{kind: KindDuration, r: r} }

// StringValue constructs a known String.
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// ArrayValue constructs a known Array of the given element kind. elems may
// individually be Unknown.
func ArrayValue(elemKind Kind, elems []Value) Value {
	cp := make([]Value, len(elems))
	copy(cp, elems)
	return Value{kind: KindArray, elemK: elemKind, arr: cp}
}

// Kind returns the value's tag.
func (v Value) Kind() Kind { return v.kind }

// ElementKind returns the element kind of an Array value (undefined
// otherwise).
func (v Value) ElementKind() Kind { return v.elemK }

// IsKnown reports whether the value carries information. Per §3, Unknown
// equals Unknown for this predicate even though it compares unequal under
// Equals.
func (v Value) IsKnown() bool { return v.kind != KindUnknown }

// AsBool projects to bool; ok is false if unknown or wrong kind.
func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// AsInt projects to int32; ok is false if unknown or wrong kind.
func (v Value) AsInt() (int32, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return v.i, true
}

// AsReal projects to float64. Int->Real promotion is automatic and
// lossless per §4.1; Date/Duration also project as Real magnitudes.
func (v Value) AsReal() (float64, bool) {
	switch v.kind {
	case KindReal, KindDate, KindDuration:
		return v.r, true
	case KindInt:
		return float64(v.i), true
	default:
		return 0, false
	}
}

// AsString projects to string; ok is false if unknown or wrong kind.
func (v Value) AsString() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.s, true
}

// AsArray projects to the element slice; ok is false if unknown or wrong
// kind.
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	return v.arr, true
}

// ArrayLen returns the length of an Array value, or (0, false) otherwise.
func (v Value) ArrayLen() (int, bool) {
	if v.kind != KindArray {
		return 0, false
	}
	return len(v.arr), true
}

// ArrayAt returns the element at idx. Out-of-range access is reported as
// Unknown, per §4.1, not as an error.
func (v Value) ArrayAt(idx int) Value {
	if v.kind != KindArray || idx < 0 || idx >= len(v.arr) {
		return Unknown()
	}
	return v.arr[idx]
}

// Equals implements structural equality. Per §3, Unknown compares unequal
// to everything including itself (the comparison returns Unknown, modeled
// here as (false, false) — "unknown result").
func (v Value) Equals(o Value) (bool, bool) {
	if !v.IsKnown() || !o.IsKnown() {
		return false, false
	}
	if v.kind.isNumeric() && o.kind.isNumeric() {
		a, _ := v.AsReal()
		b, _ := o.AsReal()
		return a == b, true
	}
	if v.kind != o.kind {
		return false, true
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b, true
	case KindString:
		return v.s == o.s, true
	case KindArray:
		if v.elemK != o.elemK || len(v.arr) != len(o.arr) {
			return false, true
		}
		for i := range v.arr {
			eq, known := v.arr[i].Equals(o.arr[i])
			if !known || !eq {
				return false, known
			}
		}
		return true, true
	default:
		return false, true
	}
}

// Compare orders two known, identically-kinded numeric or string values.
// ok is false for any other combination (§4.1: "ordering operators defined
// only between identically-typed known numeric or string operands").
func (v Value) Compare(o Value) (cmp int, ok bool) {
	if !v.IsKnown() || !o.IsKnown() {
		return 0, false
	}
	if v.kind.isNumeric() && o.kind.isNumeric() {
		a, _ := v.AsReal()
		b, _ := o.AsReal()
		switch {
		case a < b:
			return -1, true
		case a > b:
			return 1, true
		default:
			return 0, true
		}
	}
	if v.kind == KindString && o.kind == KindString {
		return strings.Compare(v.s, o.s), true
	}
	return 0, false
}

// String renders the deterministic textual form described in §4.1.
func (v Value) String() string {
	switch v.kind {
	case KindUnknown:
		return "UNKNOWN"
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindInt:
		return strconv.FormatInt(int64(v.i), 10)
	case KindReal, KindDate, KindDuration:
		return strconv.FormatFloat(v.r, 'g', 15, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, e := range v.arr {
			parts[i] = e.String()
		}
		return "#(" + strings.Join(parts, " ") + ")"
	default:
		return "UNKNOWN"
	}
}

// Parse is the inverse of Value.String for every non-array scalar kind
// (§8's round-trip law: parse(print(v)) = v). kind selects how s is
// interpreted; "UNKNOWN" always parses to Unknown() regardless of kind.
// Array kinds are rejected: §4.1's array literal syntax is not this
// function's concern.
func Parse(kind Kind, s string) (Value, error) {
	if s == "UNKNOWN" {
		return Unknown(), nil
	}
	switch kind {
	case KindBool:
		switch s {
		case "true":
			return BoolValue(true), nil
		case "false":
			return BoolValue(false), nil
		default:
			return Unknown(), fmt.Errorf("domain: invalid Bool literal %q", s)
		}
	case KindInt:
		i, err := strconv.ParseInt(s, 10, 32)
		if err != nil {
			return Unknown(), fmt.Errorf("domain: invalid Int literal %q: %w", s, err)
		}
		return IntValue(int32(i)), nil
	case KindReal:
		r, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Unknown(), fmt.Errorf("domain: invalid Real literal %q: %w", s, err)
		}
		return RealValue(r), nil
	case KindDate:
		r, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Unknown(), fmt.Errorf("domain: invalid Date literal %q: %w", s, err)
		}
		return DateValue(r), nil
	case KindDuration:
		r, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Unknown(), fmt.Errorf("domain: invalid Duration literal %q: %w", s, err)
		}
		return DurationValue(r), nil
	case KindString:
		u, err := strconv.Unquote(s)
		if err != nil {
			return Unknown(), fmt.Errorf("domain: invalid String literal %q: %w", s, err)
		}
		return StringValue(u), nil
	default:
		return Unknown(), fmt.Errorf("domain: Parse does not support kind %s", kind)
	}
}

// GoString supports %#v / debugging output.
func (v Value) GoString() string {
	return fmt.Sprintf("Value(%s: %s)", v.kind, v.String())
}
