package compiler

import (
	"testing"
)

// Integration tests: compile and execute real ella code

func TestIntegrationFactorial(t *testing.T) {
	env := newTestEnv(t)
	out := env.run(t, `
fn factorial(n: Number) -> Number {
	if n <= 1 { return 1; }
	return n * factorial(n - 1);
}
println(factorial(5));
println(factorial(0));
`)
	if !out.Ok() {
		t.Fatalf("runtime error: %v", out.Err)
	}
	if got, want := env.output(), "120\n1"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestIntegrationFibonacciLoop(t *testing.T) {
	env := newTestEnv(t)
	out := env.run(t, `
let a = 0;
let b = 1;
let i = 0;
while i < 10 {
	let next = a + b;
	a = b;
	b = next;
	i = i + 1;
}
println(a);
`)
	if !out.Ok() {
		t.Fatalf("runtime error: %v", out.Err)
	}
	if got := env.output(); got != "55" {
		t.Errorf("output = %q, want 55", got)
	}
}

func TestIntegrationLocalsInFunctions(t *testing.T) {
	env := newTestEnv(t)
	out := env.run(t, `
fn sum_to(n) {
	let total = 0;
	let k = 1;
	while k <= n {
		let step = k;
		total = total + step;
		k = k + 1;
	}
	return total;
}
println(sum_to(4));
println(str(sum_to(100)) + "!");
`)
	if !out.Ok() {
		t.Fatalf("runtime error: %v", out.Err)
	}
	if got, want := env.output(), "10\n5050!"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestIntegrationShortCircuit(t *testing.T) {
	env := newTestEnv(t)
	out := env.run(t, `
fn loud(b: Bool) -> Bool { println("evaluated"); return b; }
println(false && loud(true));
println(true || loud(false));
println(true && loud(false));
`)
	if !out.Ok() {
		t.Fatalf("runtime error: %v", out.Err)
	}
	if got, want := env.output(), "false\ntrue\nevaluated\nfalse"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

func TestIntegrationValues(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"1 + 1", "2"},
		{"7 / 2", "3.5"},
		{"7 % 4", "3"},
		{"-(2 * 3)", "-6"},
		{`"ab" + "cd"`, "abcd"},
		{"1 == 1", "true"},
		{`"a" != "a"`, "false"},
		{"nil", "nil"},
		{"1 < 2", "true"},
		{"str", "<native fn str>"},
		{"0.1 + 0.2", "0.30000000000000004"},
	}

	for _, tc := range tests {
		env := newTestEnv(t)
		out := env.run(t, "println("+tc.expr+");")
		if !out.Ok() {
			t.Errorf("%s: runtime error: %v", tc.expr, out.Err)
			continue
		}
		if got := env.output(); got != tc.want {
			t.Errorf("%s = %q, want %q", tc.expr, got, tc.want)
		}
	}
}

func TestIntegrationRuntimeErrors(t *testing.T) {
	tests := []struct {
		input   string
		message string
		line    int
	}{
		{"let z = 0;\nprintln(1 / z);", "division by zero", 2},
		{"let z = 0;\n\nprintln(5 % z);", "division by zero", 3},
		{"fn f() { return later; }\nf();\nlet later = 1;", "undefined variable 'later'", 1},
		{"let a: Any = \"s\";\nlet b = a + 1;", "operands must be two numbers or two strings", 2},
		{"let a: Any = 1;\na();", "can only call functions", 2},
		{"fn two(x, y) { return x; }\nlet g: Any = two;\ng(1);", "expected 2 arguments but got 1", 3},
		{"fn down(n) { return down(n + 1); }\ndown(0);", "stack overflow", 1},
		{"let a: Any = \"s\";\nlet n = -a;", "operand must be a number", 2},
	}

	for _, tc := range tests {
		env := newTestEnv(t)
		out := env.run(t, tc.input)
		if out.Ok() {
			t.Errorf("%q: expected runtime error", tc.input)
			continue
		}
		if out.Err.Message != tc.message {
			t.Errorf("%q: message = %q, want %q", tc.input, out.Err.Message, tc.message)
		}
		if out.Err.Line != tc.line {
			t.Errorf("%q: line = %d, want %d", tc.input, out.Err.Line, tc.line)
		}
	}
}

func TestIntegrationGlobalsPersistAcrossRuns(t *testing.T) {
	env := newTestEnv(t)
	env.run(t, "let x = 1;")
	env.run(t, "fn bump() { x = x + 1; }")
	env.run(t, "bump(); bump();")
	if out := env.run(t, "println(x);"); !out.Ok() {
		t.Fatalf("runtime error: %v", out.Err)
	}
	if got := env.output(); got != "3" {
		t.Errorf("x = %q, want 3", got)
	}

	fresh := newTestEnv(t)
	got := fresh.compileErrors(t, "println(x);")
	if got == "" {
		t.Error("fresh environment sees x")
	}
}

func TestIntegrationEngineUsableAfterRuntimeError(t *testing.T) {
	env := newTestEnv(t)
	if out := env.run(t, "let d = 0; println(1 / d);"); out.Ok() {
		t.Fatal("expected runtime error")
	}
	if out := env.run(t, "println(d + 1);"); !out.Ok() {
		t.Fatalf("runtime error after recovery: %v", out.Err)
	}
	if got := env.output(); got != "1" {
		t.Errorf("output = %q, want 1", got)
	}
}
