package ecma

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
)

// Value is the tagged universe from spec.md §3: undefined, null, boolean,
// number, BigInt, string, symbol, or an object reference. Following the
// teacher's style (a narrow interface implemented by small concrete types
// plus *Object) rather than a closed tagged struct, so that Object can
// carry its own identity and mutable state through interior mutability.
type Value interface {
	ToBoolean() bool
	ToNumber() float64
	ToString() string
	typeName() string
	sameValueZero(Value) bool
}

type valueUndefined struct{}

func (valueUndefined) ToBoolean() bool         { return false }
func (valueUndefined) ToNumber() float64       { return math.NaN() }
func (valueUndefined) ToString() string        { return "undefined" }
func (valueUndefined) typeName() string        { return "undefined" }
func (valueUndefined) sameValueZero(v Value) bool {
	_, ok := v.(valueUndefined)
	return ok
}

type valueNull struct{}

func (valueNull) ToBoolean() bool   { return false }
func (valueNull) ToNumber() float64 { return 0 }
func (valueNull) ToString() string  { return "null" }
func (valueNull) typeName() string  { return "null" }
func (valueNull) sameValueZero(v Value) bool {
	_, ok := v.(valueNull)
	return ok
}

var (
	_undefined Value = valueUndefined{}
	_null      Value = valueNull{}
	_true      Value = valueBool(true)
	_false     Value = valueBool(false)
)

// Undefined returns the ECMAScript undefined value.
func Undefined() Value { return _undefined }

// Null returns the ECMAScript null value.
func Null() Value { return _null }

type valueBool bool

func (b valueBool) ToBoolean() bool   { return bool(b) }
func (b valueBool) ToNumber() float64 {
	if b {
		return 1
	}
	return 0
}
func (b valueBool) ToString() string {
	if b {
		return "true"
	}
	return "false"
}
func (valueBool) typeName() string { return "boolean" }
func (b valueBool) sameValueZero(v Value) bool {
	ov, ok := v.(valueBool)
	return ok && ov == b
}

// BoolValue wraps a Go bool as a Value.
func BoolValue(b bool) Value {
	if b {
		return _true
	}
	return _false
}

type valueFloat float64

func (f valueFloat) ToBoolean() bool {
	n := float64(f)
	return n != 0 && !math.IsNaN(n)
}
func (f valueFloat) ToNumber() float64 { return float64(f) }
func (f valueFloat) ToString() string  { return formatFloat(float64(f)) }
func (valueFloat) typeName() string    { return "number" }
func (f valueFloat) sameValueZero(v Value) bool {
	ov, ok := v.(valueFloat)
	if !ok {
		return false
	}
	if math.IsNaN(float64(f)) && math.IsNaN(float64(ov)) {
		return true
	}
	return float64(f) == float64(ov)
}

// NumberValue wraps a float64 as a Value.
func NumberValue(f float64) Value { return valueFloat(f) }

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return "NaN"
	}
	if math.IsInf(f, 1) {
		return "Infinity"
	}
	if math.IsInf(f, -1) {
		return "-Infinity"
	}
	if f == 0 {
		if math.Signbit(f) {
			return "0"
		}
		return "0"
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

type valueBigInt struct{ n *big.Int }

func (b valueBigInt) ToBoolean() bool   { return b.n.Sign() != 0 }
func (b valueBigInt) ToNumber() float64 { f, _ := new(big.Float).SetInt(b.n).Float64(); return f }
func (b valueBigInt) ToString() string  { return b.n.String() }
func (valueBigInt) typeName() string    { return "bigint" }
func (b valueBigInt) sameValueZero(v Value) bool {
	ov, ok := v.(valueBigInt)
	return ok && b.n.Cmp(ov.n) == 0
}

// BigIntValue wraps a *big.Int as a Value.
func BigIntValue(n *big.Int) Value { return valueBigInt{n: new(big.Int).Set(n)} }

// parseBigIntDigits parses the decimal-digit payload of a BigInt literal
// (the lexer strips the trailing `n` and any sign before handing it here).
func parseBigIntDigits(digits string) (*big.Int, bool) {
	n, ok := new(big.Int).SetString(digits, 10)
	return n, ok
}

func bigFromInt64(n int64) *big.Int { return big.NewInt(n) }

type valueString string

func (s valueString) ToBoolean() bool   { return len(s) != 0 }
func (s valueString) ToNumber() float64 {
	if f, err := strconv.ParseFloat(string(s), 64); err == nil {
		return f
	}
	trimmed := trimSpaceASCII(string(s))
	if trimmed == "" {
		return 0
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return math.NaN()
}
func (s valueString) ToString() string { return string(s) }
func (valueString) typeName() string   { return "string" }
func (s valueString) sameValueZero(v Value) bool {
	ov, ok := v.(valueString)
	return ok && ov == s
}

func trimSpaceASCII(s string) string {
	i, j := 0, len(s)
	for i < j && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	for j > i && (s[j-1] == ' ' || s[j-1] == '\t' || s[j-1] == '\n' || s[j-1] == '\r') {
		j--
	}
	return s[i:j]
}

// StringValue wraps a Go string as a Value.
func StringValue(s string) Value { return valueString(s) }

// Symbol is a unique, possibly-named identity. Well-known symbols are
// interned once per Realm construction; user symbols are allocated fresh.
type Symbol struct {
	id          uint64
	description string
}

func (s *Symbol) ToBoolean() bool   { return true }
func (s *Symbol) ToNumber() float64 { return math.NaN() }
func (s *Symbol) ToString() string  { panic(NewTypeError(nil, "Cannot convert a Symbol value to a string")) }
func (s *Symbol) typeName() string  { return "symbol" }
func (s *Symbol) sameValueZero(v Value) bool {
	ov, ok := v.(*Symbol)
	return ok && ov == s
}

func (s *Symbol) String() string {
	if s.description == "" {
		return "Symbol()"
	}
	return fmt.Sprintf("Symbol(%s)", s.description)
}

var globalSymbolCounter uint64

func NewSymbol(description string) *Symbol {
	globalSymbolCounter++
	return &Symbol{id: globalSymbolCounter, description: description}
}

// IsNullish reports whether v is undefined or null.
func IsNullish(v Value) bool {
	switch v.(type) {
	case valueUndefined, valueNull:
		return true
	}
	return v == nil
}

// IsCallable reports whether v exposes the Callable capability.
func IsCallable(v Value) bool {
	o, ok := v.(*Object)
	return ok && o.callable != nil
}

// AsObject reports whether v already is an object reference.
func AsObject(v Value) (*Object, bool) {
	o, ok := v.(*Object)
	return o, ok
}

// SameValueZero implements the SameValueZero algorithm used by
// Array.prototype.includes, Set/Map key comparison, etc. (+0 equals -0,
// NaN equals NaN).
func SameValueZero(a, b Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	if ao, ok := a.(*Object); ok {
		bo, ok2 := b.(*Object)
		return ok2 && ao == bo
	}
	if _, ok := b.(*Object); ok {
		return false
	}
	return a.sameValueZero(b)
}
