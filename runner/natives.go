package runner

import (
	"math"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chazu/ellapad/compiler"
	"github.com/chazu/ellapad/vm"
)

// now is the wall clock read by the clock builtin. Tests replace it.
var now = time.Now

// lastClock holds the float64 bits of the largest value clock has returned
// in this process.
var lastClock atomic.Uint64

// clockSeconds returns wall-clock seconds since the Unix epoch, clamped so
// that no caller in the process ever observes time going backwards.
func clockSeconds() float64 {
	t := float64(now().UnixNano()) / 1e9
	for {
		prevBits := lastClock.Load()
		prev := math.Float64frombits(prevBits)
		if t <= prev {
			return prev
		}
		if lastClock.CompareAndSwap(prevBits, math.Float64bits(t)) {
			return t
		}
	}
}

// parseNumber converts any value to a number. Strings that do not parse
// and values with no numeric reading become NaN.
func parseNumber(v vm.Value) float64 {
	switch v.Kind() {
	case vm.KindNumber:
		return v.AsNumber()
	case vm.KindBool:
		if v.AsBool() {
			return 1
		}
		return 0
	case vm.KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.AsString()), 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

// builtins returns the native functions of a session in slot order:
// println, is_nan, parse_number, clock, str.
func (s *Session) builtins() *compiler.BuiltinVars {
	b := compiler.NewBuiltinVars()
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}

	must(b.Add("println", func(args []vm.Value) vm.Value {
		s.emit("[STDOUT] " + args[0].String() + "\n")
		return vm.True
	}, 1, compiler.NewFnType(compiler.TypeBool, compiler.TypeAny)))

	must(b.Add("is_nan", func(args []vm.Value) vm.Value {
		return vm.BoolValue(args[0].IsNumber() && math.IsNaN(args[0].AsNumber()))
	}, 1, compiler.NewFnType(compiler.TypeBool, compiler.TypeNumber)))

	must(b.Add("parse_number", func(args []vm.Value) vm.Value {
		return vm.NumberValue(parseNumber(args[0]))
	}, 1, compiler.NewFnType(compiler.TypeNumber, compiler.TypeAny)))

	must(b.Add("clock", func(args []vm.Value) vm.Value {
		return vm.NumberValue(clockSeconds())
	}, 0, compiler.NewFnType(compiler.TypeNumber)))

	must(b.Add("str", func(args []vm.Value) vm.Value {
		return vm.StringValue(args[0].String())
	}, 1, compiler.NewFnType(compiler.TypeString, compiler.TypeAny)))

	return b
}
