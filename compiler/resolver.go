package compiler

import "math"

// ---------------------------------------------------------------------------
// Symbols and resolutions
// ---------------------------------------------------------------------------

// SymbolKind classifies a global symbol.
type SymbolKind int

const (
	SymbolBuiltin SymbolKind = iota
	SymbolLet
	SymbolFn
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolBuiltin:
		return "builtin"
	case SymbolFn:
		return "fn"
	}
	return "let"
}

// Symbol is a global binding. Its Slot never changes once assigned.
type Symbol struct {
	Name string
	Slot int
	Kind SymbolKind
}

// ResolutionKind says where a name lives at runtime.
type ResolutionKind int

const (
	ResolveGlobal ResolutionKind = iota
	ResolveLocal
)

// Resolution binds one Identifier node to a storage location. For locals,
// Decl is the identifier that declared the variable.
type Resolution struct {
	Kind ResolutionKind
	Slot int
	Decl *Identifier
}

// ResolveResult is the accumulated global symbol table of a session plus
// the resolutions of the most recently resolved program.
//
// Slots are append-only: declaring a name again allocates a new slot and
// points the name at it, leaving the old slot in place.
type ResolveResult struct {
	globals []*Symbol
	byName  map[string]int

	Resolutions map[*Identifier]Resolution
}

// NewResolveResult creates an empty symbol table.
func NewResolveResult() *ResolveResult {
	return &ResolveResult{
		byName:      make(map[string]int),
		Resolutions: make(map[*Identifier]Resolution),
	}
}

// Fork copies the global table so it can be extended without touching r.
// Resolutions are not carried over.
func (r *ResolveResult) Fork() *ResolveResult {
	f := &ResolveResult{
		globals:     make([]*Symbol, len(r.globals)),
		byName:      make(map[string]int, len(r.byName)),
		Resolutions: make(map[*Identifier]Resolution),
	}
	copy(f.globals, r.globals)
	for name, slot := range r.byName {
		f.byName[name] = slot
	}
	return f
}

// NumGlobals returns the number of slots allocated so far.
func (r *ResolveResult) NumGlobals() int {
	return len(r.globals)
}

// Globals returns every symbol in slot order, including shadowed ones.
func (r *ResolveResult) Globals() []Symbol {
	out := make([]Symbol, len(r.globals))
	for i, s := range r.globals {
		out[i] = *s
	}
	return out
}

// Lookup returns the current symbol for a name.
func (r *ResolveResult) Lookup(name string) (*Symbol, bool) {
	slot, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return r.globals[slot], true
}

// Resolution returns how an identifier was resolved.
func (r *ResolveResult) Resolution(id *Identifier) (Resolution, bool) {
	res, ok := r.Resolutions[id]
	return res, ok
}

func (r *ResolveResult) declare(name string, kind SymbolKind) *Symbol {
	sym := &Symbol{Name: name, Slot: len(r.globals), Kind: kind}
	r.globals = append(r.globals, sym)
	r.byName[name] = sym.Slot
	return sym
}

// ---------------------------------------------------------------------------
// Resolver
// ---------------------------------------------------------------------------

// maxLocals is the number of locals addressable by an 8-bit operand.
const maxLocals = 256

// MaxGlobals is the number of global slots addressable by a 16-bit
// operand, builtins included.
const MaxGlobals = math.MaxUint16 + 1

type localVar struct {
	decl  *Identifier
	depth int
}

// scopeContext tracks locals of one function body, or of the top level.
type scopeContext struct {
	enclosing  *scopeContext
	isFunction bool
	locals     []localVar
	depth      int
}

// Resolver binds every identifier of a program to a global slot or local
// index, reporting errors to the Source.
type Resolver struct {
	src    *Source
	result *ResolveResult
	ctx    *scopeContext

	// names declared as globals by the program being resolved
	declared map[string]bool

	// globalsFull is set once the slot limit has been reported.
	globalsFull bool
}

// NewResolver creates a resolver that extends result in place. Callers
// that need to discard the outcome pass a Fork.
func NewResolver(src *Source, result *ResolveResult) *Resolver {
	return &Resolver{
		src:      src,
		result:   result,
		ctx:      &scopeContext{},
		declared: make(map[string]bool),
	}
}

// DeclareBuiltins allocates a slot per builtin, in registration order.
func (r *Resolver) DeclareBuiltins(b *BuiltinVars) {
	for _, v := range b.All() {
		if sym, ok := r.result.Lookup(v.Name); ok && sym.Kind == SymbolBuiltin {
			continue
		}
		r.result.declare(v.Name, SymbolBuiltin)
	}
}

// Resolve resolves a whole program. Function names are hoisted; function
// bodies are resolved after every top-level statement, so they may refer
// to globals declared later in the same program.
func (r *Resolver) Resolve(prog *Program) *ResolveResult {
	var fns []*FnDecl
	for _, stmt := range prog.Stmts {
		if fn, ok := stmt.(*FnDecl); ok {
			if r.declareGlobal(fn.Name, SymbolFn) {
				fns = append(fns, fn)
			}
		}
	}

	for _, stmt := range prog.Stmts {
		if _, ok := stmt.(*FnDecl); ok {
			continue
		}
		r.stmt(stmt)
	}

	for _, fn := range fns {
		r.function(fn)
	}
	return r.result
}

// declareGlobal declares a top-level name. It reports false when the
// declaration is rejected.
func (r *Resolver) declareGlobal(id *Identifier, kind SymbolKind) bool {
	if sym, ok := r.result.Lookup(id.Name); ok && sym.Kind == SymbolBuiltin {
		r.src.AddError(id.Span(), "cannot redeclare builtin `%s`", id.Name)
		return false
	}
	if r.declared[id.Name] {
		r.src.AddError(id.Span(), "`%s` is already declared", id.Name)
		return false
	}
	if len(r.result.globals) >= MaxGlobals {
		if !r.globalsFull {
			r.globalsFull = true
			r.src.AddError(id.Span(), "too many global variables")
		}
		return false
	}
	r.declared[id.Name] = true
	sym := r.result.declare(id.Name, kind)
	r.result.Resolutions[id] = Resolution{Kind: ResolveGlobal, Slot: sym.Slot}
	return true
}

func (r *Resolver) beginScope() {
	r.ctx.depth++
}

func (r *Resolver) endScope() {
	r.ctx.depth--
	locals := r.ctx.locals
	for len(locals) > 0 && locals[len(locals)-1].depth > r.ctx.depth {
		locals = locals[:len(locals)-1]
	}
	r.ctx.locals = locals
}

func (r *Resolver) declareLocal(id *Identifier) {
	for i := len(r.ctx.locals) - 1; i >= 0; i-- {
		l := r.ctx.locals[i]
		if l.depth < r.ctx.depth {
			break
		}
		if l.decl.Name == id.Name {
			r.src.AddError(id.Span(), "`%s` is already declared in this scope", id.Name)
			return
		}
	}
	if len(r.ctx.locals) >= maxLocals {
		r.src.AddError(id.Span(), "too many local variables")
		return
	}
	r.ctx.locals = append(r.ctx.locals, localVar{decl: id, depth: r.ctx.depth})
	r.result.Resolutions[id] = Resolution{Kind: ResolveLocal, Slot: len(r.ctx.locals) - 1, Decl: id}
}

func findLocal(ctx *scopeContext, name string) (int, *Identifier) {
	for i := len(ctx.locals) - 1; i >= 0; i-- {
		if ctx.locals[i].decl.Name == name {
			return i, ctx.locals[i].decl
		}
	}
	return -1, nil
}

// lookup resolves a use of a name.
func (r *Resolver) lookup(id *Identifier) {
	if slot, decl := findLocal(r.ctx, id.Name); decl != nil {
		r.result.Resolutions[id] = Resolution{Kind: ResolveLocal, Slot: slot, Decl: decl}
		return
	}
	for outer := r.ctx.enclosing; outer != nil; outer = outer.enclosing {
		if _, decl := findLocal(outer, id.Name); decl != nil {
			r.src.AddError(id.Span(), "cannot capture local variable `%s` in a function", id.Name)
			return
		}
	}
	if sym, ok := r.result.Lookup(id.Name); ok {
		r.result.Resolutions[id] = Resolution{Kind: ResolveGlobal, Slot: sym.Slot}
		return
	}
	r.src.AddError(id.Span(), "undefined variable `%s`", id.Name)
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (r *Resolver) stmt(s Stmt) {
	switch s := s.(type) {
	case *LetDecl:
		r.expr(s.Value)
		if r.ctx.depth == 0 && !r.ctx.isFunction {
			r.declareGlobal(s.Name, SymbolLet)
		} else {
			r.declareLocal(s.Name)
		}

	case *FnDecl:
		r.src.AddError(s.Name.Span(), "functions can only be declared at the top level")
		r.function(s)

	case *ExprStmt:
		r.expr(s.Expr)

	case *Block:
		r.beginScope()
		r.block(s)
		r.endScope()

	case *IfStmt:
		r.expr(s.Cond)
		r.stmt(s.Then)
		if s.Else != nil {
			r.stmt(s.Else)
		}

	case *WhileStmt:
		r.expr(s.Cond)
		r.stmt(s.Body)

	case *ReturnStmt:
		if !r.ctx.isFunction {
			r.src.AddError(s.Span(), "`return` outside of a function")
		}
		if s.Value != nil {
			r.expr(s.Value)
		}
	}
}

func (r *Resolver) block(b *Block) {
	for _, s := range b.Stmts {
		r.stmt(s)
	}
}

// function resolves a function body in a fresh local context. Parameters
// occupy the first local slots.
func (r *Resolver) function(fn *FnDecl) {
	r.ctx = &scopeContext{enclosing: r.ctx, isFunction: true, depth: 1}
	for _, p := range fn.Params {
		r.declareLocal(p.Name)
	}
	r.block(fn.Body)
	r.ctx = r.ctx.enclosing
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (r *Resolver) expr(e Expr) {
	switch e := e.(type) {
	case *Identifier:
		r.lookup(e)

	case *UnaryExpr:
		r.expr(e.Operand)

	case *BinaryExpr:
		r.expr(e.Left)
		r.expr(e.Right)

	case *LogicalExpr:
		r.expr(e.Left)
		r.expr(e.Right)

	case *AssignExpr:
		r.expr(e.Value)
		r.lookup(e.Target)
		if res, ok := r.result.Resolutions[e.Target]; ok && res.Kind == ResolveGlobal {
			if r.result.globals[res.Slot].Kind == SymbolBuiltin {
				r.src.AddError(e.Target.Span(), "cannot assign to builtin `%s`", e.Target.Name)
			}
		}

	case *CallExpr:
		r.expr(e.Callee)
		for _, a := range e.Args {
			r.expr(a)
		}
	}
}
