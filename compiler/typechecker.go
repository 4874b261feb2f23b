package compiler

// TypeCheckResult holds the type of every global slot of a session plus
// the expression types of the most recently checked program.
type TypeCheckResult struct {
	globals []Type

	Exprs map[Expr]Type
}

// NewTypeCheckResult creates an empty result.
func NewTypeCheckResult() *TypeCheckResult {
	return &TypeCheckResult{Exprs: make(map[Expr]Type)}
}

// Fork copies the global types so they can be extended without touching t.
func (t *TypeCheckResult) Fork() *TypeCheckResult {
	f := &TypeCheckResult{
		globals: make([]Type, len(t.globals)),
		Exprs:   make(map[Expr]Type),
	}
	copy(f.globals, t.globals)
	return f
}

// GlobalType returns the type recorded for a slot, or Any.
func (t *TypeCheckResult) GlobalType(slot int) Type {
	if slot < 0 || slot >= len(t.globals) || t.globals[slot] == nil {
		return TypeAny
	}
	return t.globals[slot]
}

// ExprType returns the type recorded for an expression, or Any.
func (t *TypeCheckResult) ExprType(e Expr) Type {
	if ty, ok := t.Exprs[e]; ok {
		return ty
	}
	return TypeAny
}

func (t *TypeCheckResult) setGlobal(slot int, ty Type) {
	for len(t.globals) <= slot {
		t.globals = append(t.globals, nil)
	}
	t.globals[slot] = ty
}

// ---------------------------------------------------------------------------
// TypeChecker
// ---------------------------------------------------------------------------

// TypeChecker checks a resolved program, reporting errors to the Source.
type TypeChecker struct {
	src      *Source
	resolved *ResolveResult
	result   *TypeCheckResult

	locals map[*Identifier]Type
	ret    Type // return type of the enclosing function, nil at top level
}

// NewTypeChecker creates a checker that extends result in place.
func NewTypeChecker(src *Source, resolved *ResolveResult, result *TypeCheckResult) *TypeChecker {
	return &TypeChecker{
		src:      src,
		resolved: resolved,
		result:   result,
		locals:   make(map[*Identifier]Type),
	}
}

// DeclareBuiltins records the signature of every builtin at its slot.
func (c *TypeChecker) DeclareBuiltins(b *BuiltinVars) {
	for _, v := range b.All() {
		sym, ok := c.resolved.Lookup(v.Name)
		if !ok {
			continue
		}
		var ty Type = TypeAny
		if v.Type != nil {
			ty = v.Type
		}
		c.result.setGlobal(sym.Slot, ty)
	}
}

// Check type-checks a program in the same order the resolver visits it.
func (c *TypeChecker) Check(prog *Program) *TypeCheckResult {
	var fns []*FnDecl
	for _, stmt := range prog.Stmts {
		if fn, ok := stmt.(*FnDecl); ok {
			fns = append(fns, fn)
			if res, ok := c.resolved.Resolution(fn.Name); ok {
				c.result.setGlobal(res.Slot, c.signature(fn))
			}
		}
	}
	for _, stmt := range prog.Stmts {
		if _, ok := stmt.(*FnDecl); ok {
			continue
		}
		c.stmt(stmt)
	}
	for _, fn := range fns {
		c.function(fn)
	}
	return c.result
}

func (c *TypeChecker) annotation(t *TypeExpr) Type {
	if t == nil {
		return TypeAny
	}
	ty, ok := LookupType(t.Name)
	if !ok {
		c.src.AddError(t.Span(), "unknown type `%s`", t.Name)
		return TypeAny
	}
	return ty
}

func (c *TypeChecker) signature(fn *FnDecl) *FnType {
	sig := &FnType{Params: make([]Type, len(fn.Params)), Ret: c.annotation(fn.Return)}
	for i, p := range fn.Params {
		sig.Params[i] = c.annotation(p.Type)
	}
	return sig
}

// typeOf returns the declared type of the variable an identifier resolved to.
func (c *TypeChecker) typeOf(id *Identifier) Type {
	res, ok := c.resolved.Resolution(id)
	if !ok {
		return TypeAny
	}
	if res.Kind == ResolveLocal {
		if ty, ok := c.locals[res.Decl]; ok {
			return ty
		}
		return TypeAny
	}
	return c.result.GlobalType(res.Slot)
}

func (c *TypeChecker) declare(id *Identifier, ty Type) {
	res, ok := c.resolved.Resolution(id)
	if !ok {
		return
	}
	if res.Kind == ResolveLocal {
		c.locals[id] = ty
		return
	}
	c.result.setGlobal(res.Slot, ty)
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (c *TypeChecker) stmt(s Stmt) {
	switch s := s.(type) {
	case *LetDecl:
		valType := c.expr(s.Value)
		declared := valType
		if s.Type != nil {
			declared = c.annotation(s.Type)
			if !Compatible(declared, valType) {
				c.src.AddError(s.Value.Span(), "cannot initialize `%s` of type %s with %s", s.Name.Name, declared, valType)
			}
		} else if valType == TypeNil {
			declared = TypeAny
		}
		c.declare(s.Name, declared)

	case *FnDecl:
		c.function(s)

	case *ExprStmt:
		c.expr(s.Expr)

	case *Block:
		for _, inner := range s.Stmts {
			c.stmt(inner)
		}

	case *IfStmt:
		c.condition(s.Cond, "if")
		c.stmt(s.Then)
		if s.Else != nil {
			c.stmt(s.Else)
		}

	case *WhileStmt:
		c.condition(s.Cond, "while")
		c.stmt(s.Body)

	case *ReturnStmt:
		var ty Type = TypeNil
		if s.Value != nil {
			ty = c.expr(s.Value)
		}
		if c.ret != nil && !Compatible(c.ret, ty) {
			c.src.AddError(s.Span(), "cannot return %s from a function returning %s", ty, c.ret)
		}
	}
}

func (c *TypeChecker) condition(e Expr, keyword string) {
	if ty := c.expr(e); !Compatible(TypeBool, ty) {
		c.src.AddError(e.Span(), "`%s` condition must be Bool, found %s", keyword, ty)
	}
}

func (c *TypeChecker) function(fn *FnDecl) {
	sig := c.signature(fn)
	for i, p := range fn.Params {
		c.locals[p.Name] = sig.Params[i]
	}
	outer := c.ret
	c.ret = sig.Ret
	for _, s := range fn.Body.Stmts {
		c.stmt(s)
	}
	c.ret = outer
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (c *TypeChecker) expr(e Expr) Type {
	ty := c.infer(e)
	c.result.Exprs[e] = ty
	return ty
}

func (c *TypeChecker) infer(e Expr) Type {
	switch e := e.(type) {
	case *NumberLiteral:
		return TypeNumber
	case *StringLiteral:
		return TypeString
	case *BoolLiteral:
		return TypeBool
	case *NilLiteral:
		return TypeNil

	case *Identifier:
		return c.typeOf(e)

	case *UnaryExpr:
		operand := c.expr(e.Operand)
		want := TypeNumber
		if e.Op == TokenBang {
			want = TypeBool
		}
		if !Compatible(want, operand) {
			c.src.AddError(e.Span(), "operator `%s` expects %s, found %s", e.Op, want, operand)
		}
		return want

	case *BinaryExpr:
		return c.binary(e)

	case *LogicalExpr:
		left, right := c.expr(e.Left), c.expr(e.Right)
		if !Compatible(TypeBool, left) || !Compatible(TypeBool, right) {
			c.src.AddError(e.Span(), "operator `%s` expects Bool operands, found %s and %s", e.Op, left, right)
			return TypeBool
		}
		if IsAny(left) || IsAny(right) {
			return TypeAny
		}
		return TypeBool

	case *AssignExpr:
		val := c.expr(e.Value)
		target := c.typeOf(e.Target)
		if !Compatible(target, val) {
			c.src.AddError(e.Value.Span(), "cannot assign %s to `%s` of type %s", val, e.Target.Name, target)
		}
		return val

	case *CallExpr:
		return c.call(e)
	}
	return TypeAny
}

func (c *TypeChecker) binary(e *BinaryExpr) Type {
	left, right := c.expr(e.Left), c.expr(e.Right)

	switch e.Op {
	case TokenEqual, TokenNotEqual:
		return TypeBool

	case TokenPlus:
		switch {
		case left == TypeNumber && right == TypeNumber:
			return TypeNumber
		case left == TypeString && right == TypeString:
			return TypeString
		case IsAny(left) && addable(right), IsAny(right) && addable(left):
			return TypeAny
		}
		c.src.AddError(e.Span(), "operator `+` cannot be applied to %s and %s", left, right)
		return TypeAny

	case TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual:
		if !Compatible(TypeNumber, left) || !Compatible(TypeNumber, right) {
			c.src.AddError(e.Span(), "operator `%s` expects Number operands, found %s and %s", e.Op, left, right)
		}
		return TypeBool
	}

	if !Compatible(TypeNumber, left) || !Compatible(TypeNumber, right) {
		c.src.AddError(e.Span(), "operator `%s` expects Number operands, found %s and %s", e.Op, left, right)
	}
	return TypeNumber
}

func addable(t Type) bool {
	return IsAny(t) || t == TypeNumber || t == TypeString
}

func (c *TypeChecker) call(e *CallExpr) Type {
	callee := c.expr(e.Callee)
	args := make([]Type, len(e.Args))
	for i, a := range e.Args {
		args[i] = c.expr(a)
	}

	if IsAny(callee) {
		return TypeAny
	}
	fn, ok := callee.(*FnType)
	if !ok {
		c.src.AddError(e.Callee.Span(), "cannot call a value of type %s", callee)
		return TypeAny
	}
	if len(args) != len(fn.Params) {
		c.src.AddError(e.Span(), "expected %d arguments but got %d", len(fn.Params), len(args))
		return fn.Ret
	}
	for i, a := range args {
		if !Compatible(fn.Params[i], a) {
			c.src.AddError(e.Args[i].Span(), "argument %d: expected %s, found %s", i+1, fn.Params[i], a)
		}
	}
	return fn.Ret
}
