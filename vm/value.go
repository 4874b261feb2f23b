package vm

import (
	"math"
	"strconv"
)

// ValueKind tags the variant held by a Value.
type ValueKind uint8

const (
	KindNil ValueKind = iota
	KindNumber
	KindBool
	KindString
	KindFunction
	KindNative
)

var kindNames = [...]string{
	KindNil:      "nil",
	KindNumber:   "number",
	KindBool:     "bool",
	KindString:   "string",
	KindFunction: "function",
	KindNative:   "native function",
}

func (k ValueKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is a tagged union over the runtime values of an ella program.
// Values are passed by value; functions and natives are shared by pointer.
type Value struct {
	kind ValueKind
	num  float64
	str  string
	ref  interface{}
}

// Nil is the nil value.
var Nil = Value{kind: KindNil}

// True and False are the boolean values.
var (
	True  = Value{kind: KindBool, num: 1}
	False = Value{kind: KindBool}
)

// NumberValue wraps a float64.
func NumberValue(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// BoolValue wraps a bool.
func BoolValue(b bool) Value {
	if b {
		return True
	}
	return False
}

// StringValue wraps a string.
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// FunctionValue wraps a compiled function.
func FunctionValue(fn *Function) Value {
	return Value{kind: KindFunction, ref: fn}
}

// NativeValue wraps a native function.
func NativeValue(n *Native) Value {
	return Value{kind: KindNative, ref: n}
}

func (v Value) Kind() ValueKind  { return v.kind }
func (v Value) IsNil() bool      { return v.kind == KindNil }
func (v Value) IsNumber() bool   { return v.kind == KindNumber }
func (v Value) IsBool() bool     { return v.kind == KindBool }
func (v Value) IsString() bool   { return v.kind == KindString }
func (v Value) IsFunction() bool { return v.kind == KindFunction }
func (v Value) IsNative() bool   { return v.kind == KindNative }

// AsNumber returns the number payload. Only meaningful when IsNumber.
func (v Value) AsNumber() float64 { return v.num }

// AsBool returns the bool payload. Only meaningful when IsBool.
func (v Value) AsBool() bool { return v.kind == KindBool && v.num != 0 }

// AsString returns the string payload. Only meaningful when IsString.
func (v Value) AsString() string { return v.str }

// AsFunction returns the function payload, or nil.
func (v Value) AsFunction() *Function {
	fn, _ := v.ref.(*Function)
	return fn
}

// AsNative returns the native payload, or nil.
func (v Value) AsNative() *Native {
	n, _ := v.ref.(*Native)
	return n
}

// Equal reports value equality. Functions compare by identity; NaN is not
// equal to itself.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNil:
		return true
	case KindNumber, KindBool:
		return v.num == o.num
	case KindString:
		return v.str == o.str
	default:
		return v.ref == o.ref
	}
}

// String returns the display form used by println and str.
func (v Value) String() string {
	switch v.kind {
	case KindNil:
		return "nil"
	case KindBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case KindNumber:
		return FormatNumber(v.num)
	case KindString:
		return v.str
	case KindFunction:
		return "<fn " + v.AsFunction().Name + ">"
	case KindNative:
		return "<native fn " + v.AsNative().Name + ">"
	}
	return "<unknown>"
}

// FormatNumber renders integral numbers without a fractional part and
// everything else in the shortest round-tripping form.
func FormatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// ---------------------------------------------------------------------------
// Callables
// ---------------------------------------------------------------------------

// NativeFn is the Go implementation behind a builtin.
type NativeFn func(args []Value) Value

// Native is a builtin function value.
type Native struct {
	Name  string
	Arity int
	Fn    NativeFn
}

// Function is a compiled ella function.
type Function struct {
	Name  string
	Arity int
	Chunk *Chunk
}
