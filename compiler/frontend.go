package compiler

import "github.com/chazu/ellapad/vm"

// Unit is the outcome of compiling one submission. Resolved and Typed are
// forks of the session tables extended with the submission's globals; the
// caller commits them only when Chunk is non-nil.
type Unit struct {
	Program  *Program
	Resolved *ResolveResult
	Typed    *TypeCheckResult
	Chunk    *vm.Chunk
}

// Bootstrap resolves and type-checks an empty program augmented with the
// builtins, and generates the chunk that installs them. The returned
// tables assign slots 0..n-1 to the builtins in registration order.
func Bootstrap(builtins *BuiltinVars) (*ResolveResult, *TypeCheckResult, *vm.Chunk) {
	src := NewSource("<builtins>", "")
	prog := &Program{}

	resolved := NewResolveResult()
	resolver := NewResolver(src, resolved)
	resolver.DeclareBuiltins(builtins)
	resolver.Resolve(prog)

	typed := NewTypeCheckResult()
	checker := NewTypeChecker(src, resolved, typed)
	checker.DeclareBuiltins(builtins)
	checker.Check(prog)

	return resolved, typed, CodegenBuiltins(builtins, resolved)
}

// Check runs the front end (parse, resolve, type-check) against forks of
// the given tables. Diagnostics accumulate on src. Every pass runs even
// after an earlier one reported errors, so one submission reports all of
// its problems together.
func Check(src *Source, resolved *ResolveResult, typed *TypeCheckResult) *Unit {
	prog := Parse(src)
	unit := &Unit{
		Program:  prog,
		Resolved: resolved.Fork(),
		Typed:    typed.Fork(),
	}
	NewResolver(src, unit.Resolved).Resolve(prog)
	NewTypeChecker(src, unit.Resolved, unit.Typed).Check(prog)
	return unit
}

// Compile checks src and, when it has no errors, generates its chunk.
// Unit.Chunk is nil when any diagnostic is an error.
func Compile(src *Source, resolved *ResolveResult, typed *TypeCheckResult) *Unit {
	unit := Check(src, resolved, typed)
	if !src.HasNoErrors() {
		return unit
	}
	chunk := Codegen(src.Name, unit.Program, unit.Resolved, unit.Typed, src)
	if src.HasNoErrors() {
		unit.Chunk = chunk
	}
	return unit
}
