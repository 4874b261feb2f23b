package runner

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/chazu/ellapad/compiler"
	"github.com/chazu/ellapad/vm"
)

var timingLine = regexp.MustCompile(`\[INFO\] Execution finished in \d+\.\d{3} seconds\n$`)

// recorder collects every delivered transcript.
type recorder struct {
	deliveries []string
}

func (r *recorder) subscription() *Subscription {
	return NewSubscription(func(t string) { r.deliveries = append(r.deliveries, t) })
}

func (r *recorder) last() string {
	if len(r.deliveries) == 0 {
		return ""
	}
	return r.deliveries[len(r.deliveries)-1]
}

func TestRun_PrintlnTranscript(t *testing.T) {
	s := NewSession()
	rec := &recorder{}

	transcript, err := s.Run("println(1+1);", rec.subscription())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(transcript, "[STDOUT] 2\n") {
		t.Errorf("transcript = %q, want [STDOUT] 2 first", transcript)
	}
	if !timingLine.MatchString(transcript) {
		t.Errorf("transcript = %q, want trailing timing line", transcript)
	}
	if len(rec.deliveries) != 2 {
		t.Fatalf("deliveries = %d, want 2", len(rec.deliveries))
	}
	if rec.deliveries[0] != "[STDOUT] 2\n" {
		t.Errorf("first delivery = %q", rec.deliveries[0])
	}
	if rec.last() != transcript {
		t.Errorf("last delivery = %q, want full transcript", rec.last())
	}
}

func TestRun_DeliveriesCarryFullTranscript(t *testing.T) {
	s := NewSession()
	rec := &recorder{}

	if _, err := s.Run(`println("a"); println("b"); println("c");`, rec.subscription()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{
		"[STDOUT] a\n",
		"[STDOUT] a\n[STDOUT] b\n",
		"[STDOUT] a\n[STDOUT] b\n[STDOUT] c\n",
	}
	if diff := cmp.Diff(want, rec.deliveries[:3]); diff != "" {
		t.Errorf("deliveries (-want +got):\n%s", diff)
	}
}

func TestRun_CompileErrorDeliversNothing(t *testing.T) {
	s := NewSession()
	rec := &recorder{}

	transcript, err := s.Run(`println("before"); let x: Number = "s";`, rec.subscription())
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *CompileError", err)
	}
	if transcript != "" {
		t.Errorf("transcript = %q, want empty", transcript)
	}
	if len(rec.deliveries) != 0 {
		t.Errorf("deliveries = %q, want none", rec.deliveries)
	}
	if !strings.Contains(ce.Diagnostics, "cannot initialize `x` of type Number with String") {
		t.Errorf("diagnostics = %q", ce.Diagnostics)
	}
	if !strings.Contains(ce.Diagnostics, "--> repl:1:") {
		t.Errorf("diagnostics missing location: %q", ce.Diagnostics)
	}
	if len(ce.List) != 1 {
		t.Errorf("List has %d diagnostics, want 1", len(ce.List))
	}
}

func TestRun_CompileErrorReportsAllDiagnostics(t *testing.T) {
	s := NewSession()

	_, err := s.Run("let a = ;\nlet b = missing;\nlet c: Bool = 1;", nil)
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *CompileError", err)
	}
	if got := strings.Count(ce.Diagnostics, "error: "); got != 3 {
		t.Errorf("diagnostic count = %d, want 3:\n%s", got, ce.Diagnostics)
	}
}

func TestRun_CompileErrorLeavesNoGlobals(t *testing.T) {
	s := NewSession()
	before := s.Globals()

	if _, err := s.Run("let y = 1; let z: Bool = y;", nil); !IsCompileError(err) {
		t.Fatalf("err = %v, want compile error", err)
	}
	if diff := cmp.Diff(before, s.Globals()); diff != "" {
		t.Errorf("globals changed (-want +got):\n%s", diff)
	}
	if _, err := s.Run("let y = 2; println(y);", nil); err != nil {
		t.Errorf("redeclaring y after failed run: %v", err)
	}
}

func TestRun_RuntimeError(t *testing.T) {
	s := NewSession()
	rec := &recorder{}

	transcript, err := s.Run("println(\"start\");\nlet z = 0;\nprintln(1 / z);", rec.subscription())
	var re *vm.RuntimeError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want *vm.RuntimeError", err)
	}
	if re.Message != "division by zero" || re.Line != 3 {
		t.Errorf("runtime error = %+v", re)
	}
	want := "[STDOUT] start\nruntime error: division by zero\n   --> repl:3\n"
	if !strings.HasPrefix(transcript, want) {
		t.Errorf("transcript = %q, want prefix %q", transcript, want)
	}
	if !timingLine.MatchString(transcript) {
		t.Errorf("transcript = %q, want timing line after the error", transcript)
	}

	// The engine stays usable.
	out, err := s.Run("println(z + 5);", nil)
	if err != nil {
		t.Fatalf("run after runtime error: %v", err)
	}
	if !strings.HasPrefix(out, "[STDOUT] 5\n") {
		t.Errorf("transcript = %q", out)
	}
}

func TestRun_UndefinedGlobalAfterFailedRun(t *testing.T) {
	s := NewSession()

	_, err := s.Run("let zero = 0;\nlet boom = 1 / zero;\nlet later = 2;", nil)
	if !IsRuntimeError(err) {
		t.Fatalf("err = %v, want runtime error", err)
	}
	_, err = s.Run("println(later);", nil)
	var re *vm.RuntimeError
	if !errors.As(err, &re) {
		t.Fatalf("err = %v, want runtime error", err)
	}
	if re.Message != "undefined variable 'later'" {
		t.Errorf("message = %q", re.Message)
	}
}

func TestRun_GlobalsPersistAcrossRuns(t *testing.T) {
	s := NewSession()

	if _, err := s.Run("let x = 1; fn twice(n: Number) -> Number { return n * 2; }", nil); err != nil {
		t.Fatalf("first run: %v", err)
	}
	out, err := s.Run("println(twice(x));", nil)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !strings.HasPrefix(out, "[STDOUT] 2\n") {
		t.Errorf("transcript = %q", out)
	}
}

func TestRun_FreshSessionDoesNotSeeGlobals(t *testing.T) {
	a := NewSession()
	if _, err := a.Run("let x = 1;", nil); err != nil {
		t.Fatal(err)
	}
	b := NewSession()
	_, err := b.Run("println(x);", nil)
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want *CompileError", err)
	}
	if !strings.Contains(ce.Diagnostics, "undefined variable `x`") {
		t.Errorf("diagnostics = %q", ce.Diagnostics)
	}
}

func TestSession_BuiltinSlotsStable(t *testing.T) {
	s := NewSession()
	want := []compiler.Symbol{
		{Name: "println", Slot: 0, Kind: compiler.SymbolBuiltin},
		{Name: "is_nan", Slot: 1, Kind: compiler.SymbolBuiltin},
		{Name: "parse_number", Slot: 2, Kind: compiler.SymbolBuiltin},
		{Name: "clock", Slot: 3, Kind: compiler.SymbolBuiltin},
		{Name: "str", Slot: 4, Kind: compiler.SymbolBuiltin},
	}
	if diff := cmp.Diff(want, s.Globals()); diff != "" {
		t.Fatalf("bootstrap globals (-want +got):\n%s", diff)
	}

	for i, src := range []string{"let a = 1;", "let b = 2;", "let bad: Bool = 3;", "let c = 1 / 0;"} {
		s.Run(src, nil)
		if diff := cmp.Diff(want, s.Globals()[:5]); diff != "" {
			t.Fatalf("after run %d builtin slots moved (-want +got):\n%s", i, diff)
		}
	}
	if s.BootstrapCount() != 1 {
		t.Errorf("BootstrapCount = %d, want 1", s.BootstrapCount())
	}
	if s.Runs() != 3 {
		t.Errorf("Runs = %d, want 3", s.Runs())
	}
}

func TestSession_UserGlobalsAppend(t *testing.T) {
	s := NewSession()
	s.Run("let a = 1;", nil)
	s.Run("let b = 2; let a = 3;", nil)

	var names []string
	var slots []int
	for _, sym := range s.Globals()[5:] {
		names = append(names, sym.Name)
		slots = append(slots, sym.Slot)
	}
	if diff := cmp.Diff([]string{"a", "b", "a"}, names); diff != "" {
		t.Errorf("names (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{5, 6, 7}, slots); diff != "" {
		t.Errorf("slots (-want +got):\n%s", diff)
	}
}

func TestExecute_DisposedMidRun(t *testing.T) {
	s := NewSession()
	var delivered []string
	var sub *Subscription
	sub = NewSubscription(func(t string) {
		delivered = append(delivered, t)
		sub.Cancel()
	})

	transcript, err := s.Run(`println("one"); println("two"); println("three");`, sub)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(delivered) != 1 || delivered[0] != "[STDOUT] one\n" {
		t.Errorf("delivered = %q, want only the first transcript", delivered)
	}
	// Output kept accumulating after the caller went away.
	if !strings.HasPrefix(transcript, "[STDOUT] one\n[STDOUT] two\n[STDOUT] three\n") {
		t.Errorf("transcript = %q", transcript)
	}
}

func TestExecute_RejectsForeignAndStalePrograms(t *testing.T) {
	s := NewSession()
	other := NewSession()

	p, err := other.Compile("let x = 1;")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Execute(p, nil); !errors.Is(err, ErrNotCompiled) {
		t.Errorf("foreign program: err = %v, want ErrNotCompiled", err)
	}
	if _, err := s.Execute(nil, nil); !errors.Is(err, ErrNotCompiled) {
		t.Errorf("nil program: err = %v, want ErrNotCompiled", err)
	}

	first, _ := s.Compile("let a = 1;")
	second, _ := s.Compile("let b = 2;")
	if _, err := s.Execute(first, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Execute(second, nil); !errors.Is(err, ErrStale) {
		t.Errorf("stale program: err = %v, want ErrStale", err)
	}
}

func TestSession_CheckDoesNotCommit(t *testing.T) {
	s := NewSession()
	diags := s.Check("scratch.ella", "let a = 1;\nlet b: Bool = a;")
	if len(diags) != 1 {
		t.Fatalf("diagnostics = %+v, want 1", diags)
	}
	if diags[0].Span.Start.Line != 2 {
		t.Errorf("line = %d, want 2", diags[0].Span.Start.Line)
	}
	if len(s.Globals()) != 5 {
		t.Errorf("Check committed globals: %+v", s.Globals())
	}
}

func TestSession_PrintlnOutsideExecuteIsDiscarded(t *testing.T) {
	s := NewSession()
	s.emit("[STDOUT] lost\n")
	out, err := s.Run("println(1);", nil)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(out, "lost") {
		t.Errorf("transcript = %q, leaked output from outside a run", out)
	}
}

func TestRun_GlobalSlotLimitKeepsBuiltins(t *testing.T) {
	if testing.Short() {
		t.Skip("fills a session to the global slot limit")
	}
	s := NewSession()

	const batch = 8192
	next := 0
	for len(s.Globals()) < compiler.MaxGlobals {
		n := min(batch, compiler.MaxGlobals-len(s.Globals()))
		var b strings.Builder
		for i := 0; i < n; i++ {
			fmt.Fprintf(&b, "let g%d = true;\n", next)
			next++
		}
		if _, err := s.Run(b.String(), nil); err != nil {
			t.Fatalf("filling globals at %d: %v", next, err)
		}
	}
	before := s.Globals()

	_, err := s.Run("let z = 42;", nil)
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want compile error", err)
	}
	if !strings.Contains(ce.Diagnostics, "too many global variables") {
		t.Errorf("diagnostics = %q", ce.Diagnostics)
	}
	if diff := cmp.Diff(before, s.Globals()); diff != "" {
		t.Errorf("rejected run changed the globals (-before +after):\n%s", diff)
	}

	out, err := s.Run("println(1);", nil)
	if err != nil {
		t.Fatalf("println after slot limit: %v", err)
	}
	if !strings.HasPrefix(out, "[STDOUT] 1\n") {
		t.Errorf("transcript = %q", out)
	}
}

func TestRun_DeepNestingIsCompileError(t *testing.T) {
	s := NewSession()
	depth := 1_000_000
	text := "println(" + strings.Repeat("(", depth) + "1" + strings.Repeat(")", depth) + ");"

	var delivered int
	_, err := s.Run(text, NewSubscription(func(string) { delivered++ }))
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want compile error", err)
	}
	if !strings.Contains(ce.Diagnostics, "expression nested too deeply") {
		t.Errorf("diagnostics = %.200q", ce.Diagnostics)
	}
	if delivered != 0 {
		t.Errorf("delivered %d transcripts for a compile error", delivered)
	}

	out, err := s.Run("println(2);", nil)
	if err != nil || !strings.HasPrefix(out, "[STDOUT] 2\n") {
		t.Errorf("session unusable after nesting error: %q, %v", out, err)
	}
}
