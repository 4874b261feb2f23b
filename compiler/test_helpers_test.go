package compiler

import (
	"strings"
	"testing"

	"github.com/chazu/ellapad/vm"
)

// testEnv is a bootstrapped compiler and VM with a println that records
// its arguments.
type testEnv struct {
	builtins *BuiltinVars
	resolved *ResolveResult
	typed    *TypeCheckResult
	machine  *vm.VM
	out      []string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{builtins: NewBuiltinVars(), machine: vm.New()}
	must := func(err error) {
		if err != nil {
			t.Fatalf("register builtin: %v", err)
		}
	}
	must(env.builtins.Add("println", func(args []vm.Value) vm.Value {
		env.out = append(env.out, args[0].String())
		return vm.True
	}, 1, NewFnType(TypeBool, TypeAny)))
	must(env.builtins.Add("is_nan", func(args []vm.Value) vm.Value {
		f := args[0].AsNumber()
		return vm.BoolValue(f != f)
	}, 1, NewFnType(TypeBool, TypeNumber)))
	must(env.builtins.Add("str", func(args []vm.Value) vm.Value {
		return vm.StringValue(args[0].String())
	}, 1, NewFnType(TypeString, TypeAny)))

	var chunk *vm.Chunk
	env.resolved, env.typed, chunk = Bootstrap(env.builtins)
	if out := env.machine.Interpret(chunk); !out.Ok() {
		t.Fatalf("bootstrap failed: %v", out.Err)
	}
	return env
}

// compile compiles text against the environment without committing.
func (env *testEnv) compile(text string) (*Unit, *Source) {
	src := NewSource("repl", text)
	return Compile(src, env.resolved, env.typed), src
}

// run compiles, commits and interprets text. It fails the test on a
// compile error and returns the runtime outcome.
func (env *testEnv) run(t *testing.T, text string) vm.Outcome {
	t.Helper()
	unit, src := env.compile(text)
	if unit.Chunk == nil {
		t.Fatalf("compile %q:\n%s", text, src)
	}
	env.resolved, env.typed = unit.Resolved, unit.Typed
	return env.machine.Interpret(unit.Chunk)
}

// output returns and clears everything println recorded.
func (env *testEnv) output() string {
	s := strings.Join(env.out, "\n")
	env.out = nil
	return s
}

// compileErrors compiles text and returns its formatted diagnostics.
func (env *testEnv) compileErrors(t *testing.T, text string) string {
	t.Helper()
	unit, src := env.compile(text)
	if unit.Chunk != nil {
		t.Fatalf("compile %q: expected errors", text)
	}
	return src.String()
}
