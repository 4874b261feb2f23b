package compiler

import (
	"math"

	"github.com/chazu/ellapad/vm"
)

// ---------------------------------------------------------------------------
// Codegen: Compile AST to bytecode
// ---------------------------------------------------------------------------

// maxJump is the largest jump distance a 16-bit signed operand can encode.
const maxJump = math.MaxInt16

// generator lowers one function body (or the top level) into a chunk.
type generator struct {
	src      *Source
	resolved *ResolveResult
	typed    *TypeCheckResult
	builder  *vm.ChunkBuilder
}

// Codegen compiles a resolved and type-checked program into a chunk.
// Function declarations are defined first so calls may precede them in
// the source. Errors such as constant pool overflow are reported to src;
// callers check src.HasNoErrors before using the chunk.
func Codegen(name string, prog *Program, resolved *ResolveResult, typed *TypeCheckResult, src *Source) *vm.Chunk {
	g := &generator{src: src, resolved: resolved, typed: typed, builder: vm.NewChunkBuilder(name)}

	for _, stmt := range prog.Stmts {
		if fn, ok := stmt.(*FnDecl); ok {
			g.defineFunction(fn)
		}
	}
	for _, stmt := range prog.Stmts {
		if _, ok := stmt.(*FnDecl); ok {
			continue
		}
		g.stmt(stmt)
	}
	g.builder.Emit(vm.OpPushNil)
	g.builder.Emit(vm.OpReturn)
	return g.finish(prog.Span())
}

// CodegenBuiltins produces the bootstrap chunk, which stores each native
// function in the global slot the resolver assigned to it.
func CodegenBuiltins(b *BuiltinVars, resolved *ResolveResult) *vm.Chunk {
	builder := vm.NewChunkBuilder("<builtins>")
	for _, v := range b.All() {
		sym, ok := resolved.Lookup(v.Name)
		if !ok {
			continue
		}
		idx, err := builder.AddConstant(vm.NativeValue(&vm.Native{Name: v.Name, Arity: v.Arity, Fn: v.Fn}))
		if err != nil {
			// Builtin registries are tiny; exceeding the pool is a programming error.
			panic(err)
		}
		builder.EmitUint16(vm.OpPushConstant, idx)
		builder.EmitGlobal(vm.OpDefineGlobal, uint16(sym.Slot), v.Name)
	}
	builder.Emit(vm.OpPushNil)
	builder.Emit(vm.OpReturn)
	return builder.Build()
}

func (g *generator) finish(span Span) *vm.Chunk {
	if g.builder.Len() > maxJump {
		g.src.AddError(span, "code too large to compile")
	}
	return g.builder.Build()
}

func (g *generator) line(n Node) {
	g.builder.SetLine(n.Span().Start.Line)
}

func (g *generator) constant(n Node, v vm.Value) {
	idx, err := g.builder.AddConstant(v)
	if err != nil {
		g.src.AddError(n.Span(), "%s", err.Error())
		return
	}
	g.builder.EmitUint16(vm.OpPushConstant, idx)
}

// defineFunction compiles fn into its own chunk and binds it to its slot.
func (g *generator) defineFunction(fn *FnDecl) {
	res, ok := g.resolved.Resolution(fn.Name)
	if !ok {
		return
	}
	body := &generator{src: g.src, resolved: g.resolved, typed: g.typed, builder: vm.NewChunkBuilder(fn.Name.Name)}
	for _, s := range fn.Body.Stmts {
		body.stmt(s)
	}
	body.builder.SetLine(fn.Body.Span().End.Line)
	body.builder.Emit(vm.OpPushNil)
	body.builder.Emit(vm.OpReturn)

	function := &vm.Function{
		Name:  fn.Name.Name,
		Arity: len(fn.Params),
		Chunk: body.finish(fn.Span()),
	}
	g.line(fn)
	g.constant(fn, vm.FunctionValue(function))
	g.builder.EmitGlobal(vm.OpDefineGlobal, uint16(res.Slot), fn.Name.Name)
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (g *generator) stmt(s Stmt) {
	g.line(s)
	switch s := s.(type) {
	case *LetDecl:
		g.expr(s.Value)
		res, ok := g.resolved.Resolution(s.Name)
		if ok && res.Kind == ResolveGlobal {
			g.line(s)
			g.builder.EmitGlobal(vm.OpDefineGlobal, uint16(res.Slot), s.Name.Name)
		}
		// A local's value stays on the stack in its slot.

	case *ExprStmt:
		g.expr(s.Expr)
		g.builder.Emit(vm.OpPOP)

	case *Block:
		g.block(s)

	case *IfStmt:
		elseLabel := g.builder.NewLabel()
		endLabel := g.builder.NewLabel()
		g.expr(s.Cond)
		g.builder.EmitJump(vm.OpJumpFalse, elseLabel)
		g.block(s.Then)
		if s.Else != nil {
			g.builder.EmitJump(vm.OpJump, endLabel)
			g.builder.Mark(elseLabel)
			g.stmt(s.Else)
		} else {
			g.builder.Mark(elseLabel)
		}
		g.builder.Mark(endLabel)

	case *WhileStmt:
		start := g.builder.NewLabel()
		end := g.builder.NewLabel()
		g.builder.Mark(start)
		g.expr(s.Cond)
		g.builder.EmitJump(vm.OpJumpFalse, end)
		g.block(s.Body)
		g.line(s)
		g.builder.EmitJump(vm.OpJump, start)
		g.builder.Mark(end)

	case *ReturnStmt:
		if s.Value != nil {
			g.expr(s.Value)
		} else {
			g.builder.Emit(vm.OpPushNil)
		}
		g.line(s)
		g.builder.Emit(vm.OpReturn)
	}
}

// block emits the statements of b and pops the locals it declared.
func (g *generator) block(b *Block) {
	locals := 0
	for _, s := range b.Stmts {
		g.stmt(s)
		if _, ok := s.(*LetDecl); ok {
			locals++
		}
	}
	g.builder.SetLine(b.Span().End.Line)
	for i := 0; i < locals; i++ {
		g.builder.Emit(vm.OpPOP)
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

var binaryOps = map[TokenType]vm.Opcode{
	TokenPlus:         vm.OpAdd,
	TokenMinus:        vm.OpSub,
	TokenStar:         vm.OpMul,
	TokenSlash:        vm.OpDiv,
	TokenPercent:      vm.OpMod,
	TokenEqual:        vm.OpEqual,
	TokenNotEqual:     vm.OpNotEqual,
	TokenLess:         vm.OpLess,
	TokenLessEqual:    vm.OpLessEqual,
	TokenGreater:      vm.OpGreater,
	TokenGreaterEqual: vm.OpGreaterEqual,
}

func (g *generator) expr(e Expr) {
	switch e := e.(type) {
	case *NumberLiteral:
		g.line(e)
		g.constant(e, vm.NumberValue(e.Value))

	case *StringLiteral:
		g.line(e)
		g.constant(e, vm.StringValue(e.Value))

	case *BoolLiteral:
		g.line(e)
		if e.Value {
			g.builder.Emit(vm.OpPushTrue)
		} else {
			g.builder.Emit(vm.OpPushFalse)
		}

	case *NilLiteral:
		g.line(e)
		g.builder.Emit(vm.OpPushNil)

	case *Identifier:
		g.line(e)
		g.load(e)

	case *UnaryExpr:
		g.expr(e.Operand)
		g.line(e)
		if e.Op == TokenBang {
			g.builder.Emit(vm.OpNot)
		} else {
			g.builder.Emit(vm.OpNegate)
		}

	case *BinaryExpr:
		g.expr(e.Left)
		g.expr(e.Right)
		g.line(e)
		g.builder.Emit(binaryOps[e.Op])

	case *LogicalExpr:
		g.logical(e)

	case *AssignExpr:
		g.expr(e.Value)
		g.line(e)
		g.store(e.Target)

	case *CallExpr:
		if len(e.Args) > math.MaxUint8 {
			g.src.AddError(e.Span(), "too many arguments")
			return
		}
		g.expr(e.Callee)
		for _, a := range e.Args {
			g.expr(a)
		}
		g.line(e)
		g.builder.EmitByte(vm.OpCall, byte(len(e.Args)))
	}
}

// logical lowers && and || so the right operand is evaluated only when
// needed. The result is whichever operand decided the outcome.
func (g *generator) logical(e *LogicalExpr) {
	end := g.builder.NewLabel()
	g.expr(e.Left)
	g.line(e)
	g.builder.Emit(vm.OpDUP)
	if e.Op == TokenAnd {
		g.builder.EmitJump(vm.OpJumpFalse, end)
	} else {
		rhs := g.builder.NewLabel()
		g.builder.EmitJump(vm.OpJumpFalse, rhs)
		g.builder.EmitJump(vm.OpJump, end)
		g.builder.Mark(rhs)
	}
	g.builder.Emit(vm.OpPOP)
	g.expr(e.Right)
	g.builder.Mark(end)
}

func (g *generator) load(id *Identifier) {
	res, ok := g.resolved.Resolution(id)
	if !ok {
		g.src.AddError(id.Span(), "unresolved variable `%s`", id.Name)
		return
	}
	if res.Kind == ResolveLocal {
		g.builder.EmitByte(vm.OpPushLocal, byte(res.Slot))
		return
	}
	g.builder.EmitGlobal(vm.OpPushGlobal, uint16(res.Slot), id.Name)
}

func (g *generator) store(id *Identifier) {
	res, ok := g.resolved.Resolution(id)
	if !ok {
		g.src.AddError(id.Span(), "unresolved variable `%s`", id.Name)
		return
	}
	if res.Kind == ResolveLocal {
		g.builder.EmitByte(vm.OpStoreLocal, byte(res.Slot))
		return
	}
	g.builder.EmitGlobal(vm.OpStoreGlobal, uint16(res.Slot), id.Name)
}
