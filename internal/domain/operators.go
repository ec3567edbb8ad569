package domain

import (
	"math"
	"strconv"
	"strings"
)

// baseOperator supplies Name/ValueType/Arity for the concrete operators
// below, mirroring ConcreteExpressionFactory's table-of-operators
// registration rather than one struct type per operator.
type baseOperator struct {
	name     string
	kind     Kind
	min, max int
	fn       func(args []Value) Value
}

func (b *baseOperator) Name() string            { return b.name }
func (b *baseOperator) ValueType() Kind         { return b.kind }
func (b *baseOperator) Arity() (int, int)       { return b.min, b.max }
func (b *baseOperator) Apply(args []Value) Value { return b.fn(args) }

func unaryReal(name string, f func(float64) float64) Operator {
	return &baseOperator{name: name, kind: KindReal, min: 1, max: 1, fn: func(args []Value) Value {
		a, ok := args[0].AsReal()
		if !ok {
			return Unknown()
		}
		return RealValue(f(a))
	}}
}

func binaryNumericFold(name string, identity float64, f func(a, b float64) float64) Operator {
	return &baseOperator{name: name, kind: KindReal, min: 1, max: -1, fn: func(args []Value) Value {
		acc, ok := args[0].AsReal()
		if !ok {
			return Unknown()
		}
		_, allInt := args[0].AsInt()
		for _, v := range args[1:] {
			x, ok := v.AsReal()
			if !ok {
				return Unknown()
			}
			if _, isInt := v.AsInt(); !isInt {
				allInt = false
			}
			acc = f(acc, x)
		}
		if allInt {
			return IntValue(int32(acc))
		}
		return RealValue(acc)
	}}
}

// Arithmetic operators (§4.2, grounded on original_source's
// ArithmeticOperators.hh). Add/Sub/Mul promote to Real if any operand is
// Real; Div yields Real-or-Int following the same rule, Mod always yields
// Real, and both guard against division by zero.
var (
	OpAdd = binaryNumericFold("ADD", 0, func(a, b float64) float64 { return a + b })
	OpSub = binaryNumericFold("SUB", 0, func(a, b float64) float64 { return a - b })
	OpMul = binaryNumericFold("MUL", 1, func(a, b float64) float64 { return a * b })

	OpDiv Operator = &baseOperator{name: "DIV", kind: KindReal, min: 2, max: 2, fn: func(args []Value) Value {
		a, ok1 := args[0].AsReal()
		b, ok2 := args[1].AsReal()
		if !ok1 || !ok2 || b == 0 {
			return Unknown()
		}
		_, aInt := args[0].AsInt()
		_, bInt := args[1].AsInt()
		if aInt && bInt {
			return IntValue(int32(a) / int32(b))
		}
		return RealValue(a / b)
	}}

	OpMod Operator = &baseOperator{name: "MOD", kind: KindReal, min: 2, max: 2, fn: func(args []Value) Value {
		a, ok1 := args[0].AsReal()
		b, ok2 := args[1].AsReal()
		if !ok1 || !ok2 || b == 0 {
			return Unknown()
		}
		return RealValue(math.Mod(a, b))
	}}

	OpMin = binaryNumericFold("MIN", math.Inf(1), math.Min)
	OpMax = binaryNumericFold("MAX", math.Inf(-1), math.Max)

	OpAbs = unaryReal("ABS", math.Abs)

	// Sqrt of a negative yields Unknown rather than NaN (§4.2).
	OpSqrt Operator = &baseOperator{name: "SQRT", kind: KindReal, min: 1, max: 1, fn: func(args []Value) Value {
		a, ok := args[0].AsReal()
		if !ok || a < 0 {
			return Unknown()
		}
		return RealValue(math.Sqrt(a))
	}}

	OpCeil  = unaryReal("CEIL", math.Ceil)
	OpFloor = unaryReal("FLOOR", math.Floor)
	OpRound = unaryReal("ROUND", math.Round)
	OpTrunc = unaryReal("TRUNC", math.Trunc)

	OpRealToInt Operator = &baseOperator{name: "REAL_TO_INT", kind: KindInt, min: 1, max: 1, fn: func(args []Value) Value {
		r, ok := args[0].AsReal()
		if !ok {
			return Unknown()
		}
		return IntValue(int32(math.Trunc(r)))
	}}
)

// Comparison operators. Per §4.1, ordering is only defined between
// identically-typed known numeric or string operands; anything else
// yields Unknown (modeled in Value.Compare).
func comparison(name string, accept func(cmp int) bool) Operator {
	return &baseOperator{name: name, kind: KindBool, min: 2, max: 2, fn: func(args []Value) Value {
		cmp, ok := args[0].Compare(args[1])
		if !ok {
			return Unknown()
		}
		return BoolValue(accept(cmp))
	}}
}

var (
	OpLT = comparison("LT", func(c int) bool { return c < 0 })
	OpLE = comparison("LE", func(c int) bool { return c <= 0 })
	OpGT = comparison("GT", func(c int) bool { return c > 0 })
	OpGE = comparison("GE", func(c int) bool { return c >= 0 })

	OpEQ Operator = &baseOperator{name: "EQ", kind: KindBool, min: 2, max: 2, fn: func(args []Value) Value {
		eq, ok := args[0].Equals(args[1])
		if !ok {
			return Unknown()
		}
		return BoolValue(eq)
	}}
	OpNE Operator = &baseOperator{name: "NE", kind: KindBool, min: 2, max: 2, fn: func(args []Value) Value {
		eq, ok := args[0].Equals(args[1])
		if !ok {
			return Unknown()
		}
		return BoolValue(!eq)
	}}
)

// Boolean operators with three-valued short-circuit semantics (§4.2):
// AND is false if any known operand is false, regardless of unknowns;
// OR is true if any known operand is true; otherwise Unknown propagates.
var (
	OpAnd Operator = &baseOperator{name: "AND", kind: KindBool, min: 1, max: -1, fn: func(args []Value) Value {
		sawUnknown := false
		for _, v := range args {
			b, ok := v.AsBool()
			if !ok {
				sawUnknown = true
				continue
			}
			if !b {
				return BoolValue(false)
			}
		}
		if sawUnknown {
			return Unknown()
		}
		return BoolValue(true)
	}}

	OpOr Operator = &baseOperator{name: "OR", kind: KindBool, min: 1, max: -1, fn: func(args []Value) Value {
		sawUnknown := false
		for _, v := range args {
			b, ok := v.AsBool()
			if !ok {
				sawUnknown = true
				continue
			}
			if b {
				return BoolValue(true)
			}
		}
		if sawUnknown {
			return Unknown()
		}
		return BoolValue(false)
	}}

	OpNot Operator = &baseOperator{name: "NOT", kind: KindBool, min: 1, max: 1, fn: func(args []Value) Value {
		b, ok := args[0].AsBool()
		if !ok {
			return Unknown()
		}
		return BoolValue(!b)
	}}

	OpXor Operator = &baseOperator{name: "XOR", kind: KindBool, min: 2, max: 2, fn: func(args []Value) Value {
		a, ok1 := args[0].AsBool()
		b, ok2 := args[1].AsBool()
		if !ok1 || !ok2 {
			return Unknown()
		}
		return BoolValue(a != b)
	}}
)

// IsKnown is a meta-operator: it reports whether its single operand
// currently carries information, and is itself always known (§4.2 — the
// one operator whose result is never Unknown).
var OpIsKnown Operator = &baseOperator{name: "IS_KNOWN", kind: KindBool, min: 1, max: 1, fn: func(args []Value) Value {
	return BoolValue(args[0].IsKnown())
}}

// String operators (§4.2, grounded on original_source's StringOperators
// via ConcreteExpressionFactory).
var (
	OpConcat Operator = &baseOperator{name: "CONCAT", kind: KindString, min: 0, max: -1, fn: func(args []Value) Value {
		var sb strings.Builder
		for _, v := range args {
			s, ok := v.AsString()
			if !ok {
				return Unknown()
			}
			sb.WriteString(s)
		}
		return StringValue(sb.String())
	}}

	OpLength Operator = &baseOperator{name: "STRLEN", kind: KindInt, min: 1, max: 1, fn: func(args []Value) Value {
		s, ok := args[0].AsString()
		if !ok {
			return Unknown()
		}
		return IntValue(int32(len([]rune(s))))
	}}

	OpSubstring Operator = &baseOperator{name: "SUBSTR", kind: KindString, min: 2, max: 3, fn: func(args []Value) Value {
		s, ok := args[0].AsString()
		if !ok {
			return Unknown()
		}
		start, ok := args[1].AsInt()
		if !ok {
			return Unknown()
		}
		r := []rune(s)
		length := len(r) - int(start)
		if len(args) == 3 {
			n, ok := args[2].AsInt()
			if !ok {
				return Unknown()
			}
			length = int(n)
		}
		if start < 0 || int(start) > len(r) || length < 0 || int(start)+length > len(r) {
			return Unknown()
		}
		return StringValue(string(r[start : int(start)+length]))
	}}

	OpCharAt Operator = &baseOperator{name: "CHARAT", kind: KindString, min: 2, max: 2, fn: func(args []Value) Value {
		s, ok := args[0].AsString()
		if !ok {
			return Unknown()
		}
		idx, ok := args[1].AsInt()
		if !ok {
			return Unknown()
		}
		r := []rune(s)
		if idx < 0 || int(idx) >= len(r) {
			return Unknown()
		}
		return StringValue(string(r[idx]))
	}}

	OpToString Operator = &baseOperator{name: "TOSTRING", kind: KindString, min: 1, max: 1, fn: func(args []Value) Value {
		if !args[0].IsKnown() {
			return Unknown()
		}
		return StringValue(args[0].String())
	}}

	OpFromString Operator = &baseOperator{name: "FROMSTRING", kind: KindReal, min: 1, max: 1, fn: func(args []Value) Value {
		s, ok := args[0].AsString()
		if !ok {
			return Unknown()
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Unknown()
		}
		return RealValue(f)
	}}
)

// Array operators (§4.2): length and element-known predicates.
var (
	OpArraySize Operator = &baseOperator{name: "ARRAYSIZE", kind: KindInt, min: 1, max: 1, fn: func(args []Value) Value {
		n, ok := args[0].ArrayLen()
		if !ok {
			return Unknown()
		}
		return IntValue(int32(n))
	}}

	OpArrayMaxSize Operator = &baseOperator{name: "ARRAYMAXSIZE", kind: KindInt, min: 1, max: 1, fn: func(args []Value) Value {
		n, ok := args[0].ArrayLen()
		if !ok {
			return Unknown()
		}
		return IntValue(int32(n))
	}}

	OpAllElementsKnown Operator = &baseOperator{name: "ALL_KNOWN", kind: KindBool, min: 1, max: 1, fn: func(args []Value) Value {
		elems, ok := args[0].AsArray()
		if !ok {
			return Unknown()
		}
		for _, e := range elems {
			if !e.IsKnown() {
				return BoolValue(false)
			}
		}
		return BoolValue(true)
	}}

	OpAnyElementsKnown Operator = &baseOperator{name: "ANY_KNOWN", kind: KindBool, min: 1, max: 1, fn: func(args []Value) Value {
		elems, ok := args[0].AsArray()
		if !ok {
			return Unknown()
		}
		for _, e := range elems {
			if e.IsKnown() {
				return BoolValue(true)
			}
		}
		return BoolValue(false)
	}}
)

// Operators indexes every registered Operator by name, mirroring
// ConcreteExpressionFactory's static registration table; planbuild and
// ScriptExpression parsing both resolve operator names through this map.
var Operators = map[string]Operator{
	"ADD": OpAdd, "SUB": OpSub, "MUL": OpMul, "DIV": OpDiv, "MOD": OpMod,
	"MIN": OpMin, "MAX": OpMax, "ABS": OpAbs, "SQRT": OpSqrt,
	"CEIL": OpCeil, "FLOOR": OpFloor, "ROUND": OpRound, "TRUNC": OpTrunc,
	"REAL_TO_INT": OpRealToInt,
	"LT":          OpLT, "LE": OpLE, "GT": OpGT, "GE": OpGE, "EQ": OpEQ, "NE": OpNE,
	"AND": OpAnd, "OR": OpOr, "NOT": OpNot, "XOR": OpXor,
	"IS_KNOWN":     OpIsKnown,
	"CONCAT":       OpConcat,
	"STRLEN":       OpLength,
	"SUBSTR":       OpSubstring,
	"CHARAT":       OpCharAt,
	"TOSTRING":     OpToString,
	"FROMSTRING":   OpFromString,
	"ARRAYSIZE":    OpArraySize,
	"ARRAYMAXSIZE": OpArrayMaxSize,
	"ALL_KNOWN":    OpAllElementsKnown,
	"ANY_KNOWN":    OpAnyElementsKnown,
}
