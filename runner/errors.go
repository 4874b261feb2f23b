package runner

import (
	"errors"

	"github.com/chazu/ellapad/compiler"
	"github.com/chazu/ellapad/vm"
)

// ErrNotCompiled is returned when Execute is handed a unit that did not
// come from a successful Compile.
var ErrNotCompiled = errors.New("program was not compiled")

// CompileError reports every parse, resolution and type diagnostic of one
// submission. Nothing of the submission ran.
type CompileError struct {
	// Diagnostics is the formatted report, one block per diagnostic.
	Diagnostics string

	// List holds the same diagnostics unformatted, for editors.
	List []compiler.Diagnostic
}

func (e *CompileError) Error() string {
	return e.Diagnostics
}

// IsCompileError reports whether err is a CompileError.
func IsCompileError(err error) bool {
	var ce *CompileError
	return errors.As(err, &ce)
}

// IsRuntimeError reports whether err is a VM runtime error.
func IsRuntimeError(err error) bool {
	var re *vm.RuntimeError
	return errors.As(err, &re)
}
