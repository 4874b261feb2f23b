package compiler

import (
	"strings"
	"testing"
)

func TestCompatible(t *testing.T) {
	tests := []struct {
		dst, src Type
		want     bool
	}{
		{TypeNumber, TypeNumber, true},
		{TypeNumber, TypeString, false},
		{TypeAny, TypeString, true},
		{TypeBool, TypeAny, true},
		{TypeNil, TypeNumber, false},
		{NewFnType(TypeBool, TypeAny), NewFnType(TypeBool, TypeAny), true},
		{NewFnType(TypeBool, TypeNumber), NewFnType(TypeBool, TypeAny), true},
		{NewFnType(TypeBool, TypeAny), NewFnType(TypeBool, TypeNumber, TypeNumber), false},
		{NewFnType(TypeNumber), NewFnType(TypeString), false},
		{TypeNumber, NewFnType(TypeNumber), false},
	}

	for _, tc := range tests {
		if got := Compatible(tc.dst, tc.src); got != tc.want {
			t.Errorf("Compatible(%s, %s) = %v, want %v", tc.dst, tc.src, got, tc.want)
		}
	}
}

func TestFnTypeString(t *testing.T) {
	got := NewFnType(TypeBool, TypeNumber, TypeAny).String()
	if want := "Fn(Number, Any) -> Bool"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestTypeChecker_Accepts(t *testing.T) {
	inputs := []string{
		`let n: Number = 1 + 2 * 3;`,
		`let s = "a" + "b";`,
		`let a: Any = 1; let b = a + "x";`,
		`fn add(a: Number, b: Number) -> Number { return a + b; } let r: Number = add(1, 2);`,
		`fn id(x) { return x; } let s: String = id("x");`,
		`let ok: Bool = !(1 < 2) || 3 >= 4 && true;`,
		`let z = nil; z = 5;`,
		`if is_nan(0 / 1) { println("nan"); }`,
		`let f = str; let s: String = f(1);`,
		`fn noisy() { println("hi"); } noisy();`,
		`let eq: Bool = "a" == 1;`,
	}

	for _, input := range inputs {
		env := newTestEnv(t)
		if unit, src := env.compile(input); unit.Chunk == nil {
			t.Errorf("compile %q: unexpected errors:\n%s", input, src)
		}
	}
}

func TestTypeChecker_Errors(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`let n: Number = "one";`, "cannot initialize `n` of type Number with String"},
		{`let x = 1; x = "s";`, "cannot assign String to `x` of type Number"},
		{`let b = 1 + "s";`, "operator `+` cannot be applied to Number and String"},
		{`let b = true + true;`, "operator `+` cannot be applied to Bool and Bool"},
		{`let m = "a" * 2;`, "operator `*` expects Number operands, found String and Number"},
		{`let c = "a" < "b";`, "operator `<` expects Number operands"},
		{`let n = -"x";`, "operator `-` expects Number, found String"},
		{`let n = !1;`, "operator `!` expects Bool, found Number"},
		{`let l = 1 && true;`, "operator `&&` expects Bool operands"},
		{`if 1 { }`, "`if` condition must be Bool, found Number"},
		{`while "s" { }`, "`while` condition must be Bool, found String"},
		{`is_nan("x");`, "argument 1: expected Number, found String"},
		{`println(1, 2);`, "expected 1 arguments but got 2"},
		{`let x = 1; x();`, "cannot call a value of type Number"},
		{`fn f() -> Number { return "s"; }`, "cannot return String from a function returning Number"},
		{`fn f() -> Number { return; }`, "cannot return Nil from a function returning Number"},
		{`let q: Integer = 1;`, "unknown type `Integer`"},
		{`fn f(a: Number) {} f("s");`, "argument 1: expected Number, found String"},
	}

	for _, tc := range tests {
		env := newTestEnv(t)
		got := env.compileErrors(t, tc.input)
		if !strings.Contains(got, tc.want) {
			t.Errorf("compile %q: diagnostics = %q, want substring %q", tc.input, got, tc.want)
		}
	}
}

func TestTypeChecker_GlobalTypesPersistAcrossSubmissions(t *testing.T) {
	env := newTestEnv(t)
	env.run(t, `let count: Number = 0;`)

	got := env.compileErrors(t, `count = "many";`)
	if !strings.Contains(got, "cannot assign String to `count` of type Number") {
		t.Errorf("diagnostics = %q", got)
	}
	if out := env.run(t, `count = count + 1;`); !out.Ok() {
		t.Errorf("runtime error: %v", out.Err)
	}
}

func TestTypeChecker_ExprTypesRecorded(t *testing.T) {
	env := newTestEnv(t)
	unit, src := env.compile(`str(1) + "!";`)
	if unit.Chunk == nil {
		t.Fatalf("unexpected errors:\n%s", src)
	}
	expr := unit.Program.Stmts[0].(*ExprStmt).Expr
	if got := unit.Typed.ExprType(expr); got != TypeString {
		t.Errorf("ExprType = %s, want String", got)
	}
}
