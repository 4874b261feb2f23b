package runner

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/chazu/ellapad/vm"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   vm.Value
		want float64
	}{
		{vm.NumberValue(4.5), 4.5},
		{vm.StringValue("  12.25 "), 12.25},
		{vm.StringValue("-3"), -3},
		{vm.True, 1},
		{vm.False, 0},
	}
	for _, tc := range tests {
		if got := parseNumber(tc.in); got != tc.want {
			t.Errorf("parseNumber(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}

	for _, v := range []vm.Value{vm.StringValue("abc"), vm.StringValue(""), vm.Nil} {
		if got := parseNumber(v); !math.IsNaN(got) {
			t.Errorf("parseNumber(%v) = %v, want NaN", v, got)
		}
	}
}

func TestClock_NeverDecreases(t *testing.T) {
	defer func() { now = time.Now }()

	base := time.Now().Add(time.Hour)
	now = func() time.Time { return base }
	first := clockSeconds()

	now = func() time.Time { return base.Add(-time.Minute) }
	if second := clockSeconds(); second < first {
		t.Errorf("clock went backwards: %v then %v", first, second)
	}

	now = func() time.Time { return base.Add(time.Second) }
	if third := clockSeconds(); third <= first {
		t.Errorf("clock did not advance: %v then %v", first, third)
	}
}

func TestBuiltins_FromScript(t *testing.T) {
	s := NewSession()
	src := `
println(is_nan(parse_number("x")));
println(parse_number(" 7 ") + 1);
println(str(1.5) + "!");
let t = clock();
println(t > 0);
println(clock() >= t);
`
	out, err := s.Run(src, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := "[STDOUT] true\n[STDOUT] 8\n[STDOUT] 1.5!\n[STDOUT] true\n[STDOUT] true\n"
	if !strings.HasPrefix(out, want) {
		t.Errorf("transcript = %q, want prefix %q", out, want)
	}
}

func TestBuiltins_PrintlnReturnsTrue(t *testing.T) {
	s := NewSession()
	out, err := s.Run(`let ok = println("x"); println(ok);`, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "[STDOUT] x\n[STDOUT] true\n") {
		t.Errorf("transcript = %q", out)
	}
}

func TestBuiltins_CannotBeRedeclared(t *testing.T) {
	s := NewSession()
	_, err := s.Run("let println = 1;", nil)
	if !IsCompileError(err) {
		t.Fatalf("err = %v, want compile error", err)
	}
	if !strings.Contains(err.Error(), "cannot redeclare builtin `println`") {
		t.Errorf("diagnostics = %q", err.Error())
	}
}
