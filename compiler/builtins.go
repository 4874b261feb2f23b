package compiler

import (
	"errors"
	"fmt"

	"github.com/chazu/ellapad/vm"
)

// ErrDuplicateBuiltin is returned when a name is registered twice.
var ErrDuplicateBuiltin = errors.New("duplicate builtin")

// BuiltinVar is one native function exposed to scripts.
type BuiltinVar struct {
	Name  string
	Fn    vm.NativeFn
	Arity int
	Type  *FnType
}

// BuiltinVars is an ordered registry of native functions. Registration
// order fixes the global slot of each builtin.
type BuiltinVars struct {
	vars   []BuiltinVar
	byName map[string]int
}

// NewBuiltinVars creates an empty registry.
func NewBuiltinVars() *BuiltinVars {
	return &BuiltinVars{byName: make(map[string]int)}
}

// Add registers a native function.
func (b *BuiltinVars) Add(name string, fn vm.NativeFn, arity int, sig *FnType) error {
	if _, ok := b.byName[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateBuiltin, name)
	}
	if sig != nil && len(sig.Params) != arity {
		return fmt.Errorf("builtin %s: signature has %d params, arity is %d", name, len(sig.Params), arity)
	}
	b.byName[name] = len(b.vars)
	b.vars = append(b.vars, BuiltinVar{Name: name, Fn: fn, Arity: arity, Type: sig})
	return nil
}

// Len returns the number of registered builtins.
func (b *BuiltinVars) Len() int {
	return len(b.vars)
}

// All returns the builtins in registration order.
func (b *BuiltinVars) All() []BuiltinVar {
	out := make([]BuiltinVar, len(b.vars))
	copy(out, b.vars)
	return out
}

// Lookup finds a builtin by name.
func (b *BuiltinVars) Lookup(name string) (BuiltinVar, bool) {
	i, ok := b.byName[name]
	if !ok {
		return BuiltinVar{}, false
	}
	return b.vars[i], true
}
