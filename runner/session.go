// Package runner drives the ella pipeline for one session: compile a
// submission against the session's symbol tables, then interpret it on the
// session's persistent VM while streaming its transcript.
package runner

import (
	"errors"
	"fmt"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/ellapad/compiler"
	"github.com/chazu/ellapad/vm"
)

// SourceName is the display name of submitted text in diagnostics.
const SourceName = "repl"

// ErrStale is returned when a compiled program is executed after another
// program changed the session's globals.
var ErrStale = errors.New("program was compiled against an older session state")

var log = commonlog.GetLogger("ellapad.runner")

// Session owns the global symbol table, the type judgments for every
// global and the VM whose global storage they describe. Builtins are
// bootstrapped once, when the session is created; every later compilation
// resolves against the retained tables so slot numbers never move.
//
// A Session is not safe for concurrent use. The server package confines
// each session to one worker goroutine.
type Session struct {
	resolved *compiler.ResolveResult
	typed    *compiler.TypeCheckResult
	machine  *vm.VM

	// sink receives println output while a program executes.
	sink *OutputSink

	bootstraps int
	runs       int
}

// Program is a compiled submission, ready to execute on the session that
// compiled it.
type Program struct {
	session *Session
	base    *compiler.ResolveResult
	unit    *compiler.Unit
	started time.Time
}

// Chunk returns the program's bytecode.
func (p *Program) Chunk() *vm.Chunk {
	return p.unit.Chunk
}

// NewSession creates a session and runs the builtin bootstrap on its VM.
func NewSession() *Session {
	s := &Session{machine: vm.New()}
	s.bootstrap()
	return s
}

func (s *Session) bootstrap() {
	builtins := s.builtins()
	resolved, typed, chunk := compiler.Bootstrap(builtins)
	if out := s.machine.Interpret(chunk); !out.Ok() {
		// Builtin chunks only define globals; failure is a bug.
		panic(fmt.Sprintf("builtin bootstrap failed: %v", out.Err))
	}
	s.resolved = resolved
	s.typed = typed
	s.bootstraps++
	log.Debugf("bootstrapped %d builtins", builtins.Len())
}

// BootstrapCount reports how many times the builtins were loaded into the
// session's VM. It is always 1.
func (s *Session) BootstrapCount() int {
	return s.bootstraps
}

// Runs reports how many programs the session has executed.
func (s *Session) Runs() int {
	return s.runs
}

// Globals returns the session's global symbols in slot order.
func (s *Session) Globals() []compiler.Symbol {
	return s.resolved.Globals()
}

// Check compiles text against the session without generating code or
// changing the session, and returns every diagnostic.
func (s *Session) Check(name, text string) []compiler.Diagnostic {
	src := compiler.NewSource(name, text)
	compiler.Check(src, s.resolved, s.typed)
	return src.Diagnostics()
}

// Compile parses, resolves, type-checks and generates code for text. The
// session is unchanged until the returned program executes. Any error
// diagnostic yields a *CompileError and no program.
func (s *Session) Compile(text string) (*Program, error) {
	started := time.Now()
	src := compiler.NewSource(SourceName, text)
	unit := compiler.Compile(src, s.resolved, s.typed)
	if unit.Chunk == nil {
		return nil, &CompileError{Diagnostics: src.String(), List: src.Diagnostics()}
	}
	return &Program{session: s, base: s.resolved, unit: unit, started: started}, nil
}

// Execute commits the program's globals to the session and interprets it.
// Output is appended to a fresh transcript delivered through sub, which
// may be nil. The transcript always ends with the timing line, after the
// runtime error line when one occurred. The returned error is a
// *vm.RuntimeError when the program failed at runtime; the session stays
// usable either way.
func (s *Session) Execute(p *Program, sub *Subscription) (string, error) {
	if p == nil || p.session != s || p.unit.Chunk == nil {
		return "", ErrNotCompiled
	}
	if p.base != s.resolved {
		return "", ErrStale
	}
	s.resolved = p.unit.Resolved
	s.typed = p.unit.Typed

	sink := NewOutputSink(sub)
	s.sink = sink
	defer func() { s.sink = nil }()

	s.runs++
	out := s.machine.Interpret(p.unit.Chunk)
	if !out.Ok() {
		sink.Append(out.Err.Error() + "\n")
	}
	sink.Append(fmt.Sprintf("[INFO] Execution finished in %.3f seconds\n", time.Since(p.started).Seconds()))

	if !out.Ok() {
		return sink.Transcript(), out.Err
	}
	return sink.Transcript(), nil
}

// Run compiles and executes text. A compile failure returns an empty
// transcript and a *CompileError without delivering anything to sub.
func (s *Session) Run(text string, sub *Subscription) (string, error) {
	p, err := s.Compile(text)
	if err != nil {
		return "", err
	}
	return s.Execute(p, sub)
}

// emit appends println output to the executing program's transcript.
// Outside of Execute there is no transcript and output is discarded.
func (s *Session) emit(fragment string) {
	if s.sink != nil {
		s.sink.Append(fragment)
	}
}

// Lookup returns the current global named name and its type.
func (s *Session) Lookup(name string) (compiler.Symbol, compiler.Type, bool) {
	sym, ok := s.resolved.Lookup(name)
	if !ok {
		return compiler.Symbol{}, nil, false
	}
	return *sym, s.typed.GlobalType(sym.Slot), true
}
