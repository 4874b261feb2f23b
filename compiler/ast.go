package compiler

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for ella
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Span represents a range in source code.
type Span struct {
	Start Position
	End   Position
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr() // marker method
}

// NumberLiteral represents a number literal.
type NumberLiteral struct {
	SpanVal Span
	Value   float64
}

func (n *NumberLiteral) Span() Span { return n.SpanVal }
func (n *NumberLiteral) node()      {}
func (n *NumberLiteral) expr()      {}

// StringLiteral represents a string literal.
type StringLiteral struct {
	SpanVal Span
	Value   string
}

func (n *StringLiteral) Span() Span { return n.SpanVal }
func (n *StringLiteral) node()      {}
func (n *StringLiteral) expr()      {}

// BoolLiteral represents true or false.
type BoolLiteral struct {
	SpanVal Span
	Value   bool
}

func (n *BoolLiteral) Span() Span { return n.SpanVal }
func (n *BoolLiteral) node()      {}
func (n *BoolLiteral) expr()      {}

// NilLiteral represents nil.
type NilLiteral struct {
	SpanVal Span
}

func (n *NilLiteral) Span() Span { return n.SpanVal }
func (n *NilLiteral) node()      {}
func (n *NilLiteral) expr()      {}

// Identifier is a name, either a use or a declaration site. The resolver
// records a Resolution for every Identifier it visits.
type Identifier struct {
	SpanVal Span
	Name    string
}

func (n *Identifier) Span() Span { return n.SpanVal }
func (n *Identifier) node()      {}
func (n *Identifier) expr()      {}

// UnaryExpr represents -x or !x.
type UnaryExpr struct {
	SpanVal Span
	Op      TokenType
	Operand Expr
}

func (n *UnaryExpr) Span() Span { return n.SpanVal }
func (n *UnaryExpr) node()      {}
func (n *UnaryExpr) expr()      {}

// BinaryExpr represents arithmetic, comparison and equality.
type BinaryExpr struct {
	SpanVal Span
	Op      TokenType
	Left    Expr
	Right   Expr
}

func (n *BinaryExpr) Span() Span { return n.SpanVal }
func (n *BinaryExpr) node()      {}
func (n *BinaryExpr) expr()      {}

// LogicalExpr represents short-circuiting && and ||.
type LogicalExpr struct {
	SpanVal Span
	Op      TokenType
	Left    Expr
	Right   Expr
}

func (n *LogicalExpr) Span() Span { return n.SpanVal }
func (n *LogicalExpr) node()      {}
func (n *LogicalExpr) expr()      {}

// AssignExpr represents name = value.
type AssignExpr struct {
	SpanVal Span
	Target  *Identifier
	Value   Expr
}

func (n *AssignExpr) Span() Span { return n.SpanVal }
func (n *AssignExpr) node()      {}
func (n *AssignExpr) expr()      {}

// CallExpr represents callee(args...).
type CallExpr struct {
	SpanVal Span
	Callee  Expr
	Args    []Expr
}

func (n *CallExpr) Span() Span { return n.SpanVal }
func (n *CallExpr) node()      {}
func (n *CallExpr) expr()      {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// TypeExpr is a type annotation.
type TypeExpr struct {
	SpanVal Span
	Name    string
}

func (n *TypeExpr) Span() Span { return n.SpanVal }
func (n *TypeExpr) node()      {}

// LetDecl represents let name (: type)? = value;
type LetDecl struct {
	SpanVal Span
	Name    *Identifier
	Type    *TypeExpr // nil when omitted
	Value   Expr
}

func (n *LetDecl) Span() Span { return n.SpanVal }
func (n *LetDecl) node()      {}
func (n *LetDecl) stmt()      {}

// Param is a function parameter.
type Param struct {
	Name *Identifier
	Type *TypeExpr // nil when omitted
}

// FnDecl represents fn name(params) (-> type)? { body }
type FnDecl struct {
	SpanVal Span
	Name    *Identifier
	Params  []*Param
	Return  *TypeExpr // nil when omitted
	Body    *Block
}

func (n *FnDecl) Span() Span { return n.SpanVal }
func (n *FnDecl) node()      {}
func (n *FnDecl) stmt()      {}

// ExprStmt is an expression evaluated for its effect.
type ExprStmt struct {
	SpanVal Span
	Expr    Expr
}

func (n *ExprStmt) Span() Span { return n.SpanVal }
func (n *ExprStmt) node()      {}
func (n *ExprStmt) stmt()      {}

// Block is a braced statement list introducing a scope.
type Block struct {
	SpanVal Span
	Stmts   []Stmt
}

func (n *Block) Span() Span { return n.SpanVal }
func (n *Block) node()      {}
func (n *Block) stmt()      {}

// IfStmt represents if cond { } else ...
type IfStmt struct {
	SpanVal Span
	Cond    Expr
	Then    *Block
	Else    Stmt // *Block, *IfStmt or nil
}

func (n *IfStmt) Span() Span { return n.SpanVal }
func (n *IfStmt) node()      {}
func (n *IfStmt) stmt()      {}

// WhileStmt represents while cond { }
type WhileStmt struct {
	SpanVal Span
	Cond    Expr
	Body    *Block
}

func (n *WhileStmt) Span() Span { return n.SpanVal }
func (n *WhileStmt) node()      {}
func (n *WhileStmt) stmt()      {}

// ReturnStmt represents return value?;
type ReturnStmt struct {
	SpanVal Span
	Value   Expr // nil for a bare return
}

func (n *ReturnStmt) Span() Span { return n.SpanVal }
func (n *ReturnStmt) node()      {}
func (n *ReturnStmt) stmt()      {}

// Program is the root of a parsed submission.
type Program struct {
	SpanVal Span
	Stmts   []Stmt
}

func (n *Program) Span() Span { return n.SpanVal }
func (n *Program) node()      {}
