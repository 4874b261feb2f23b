package compiler

import (
	"strconv"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for ella syntax
// ---------------------------------------------------------------------------

// Parser parses ella source code into an AST. Errors are reported to the
// Source; after an error the parser skips to the next statement boundary
// so one mistake yields one diagnostic.
type Parser struct {
	lexer     *Lexer
	source    *Source
	prevToken Token
	curToken  Token
	peekToken Token
	panicking bool

	// depth counts the nested expressions, blocks and else-if arms being
	// parsed.
	depth int
}

// maxNesting bounds parser recursion so hostile input is a diagnostic and
// not a stack overflow.
const maxNesting = 256

// NewParser creates a new parser for the given source.
func NewParser(source *Source) *Parser {
	p := &Parser{
		lexer:  NewLexer(source.Text),
		source: source,
	}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a whole program, reporting diagnostics to source.
func Parse(source *Source) *Program {
	return NewParser(source).ParseProgram()
}

// nextToken advances to the next token, reporting lexical errors.
func (p *Parser) nextToken() {
	p.prevToken = p.curToken
	p.curToken = p.peekToken
	for {
		p.peekToken = p.lexer.NextToken()
		if p.peekToken.Type != TokenError {
			return
		}
		p.source.AddError(p.peekToken.Span(), "%s", p.peekToken.Literal)
	}
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// accept advances if the current token matches.
func (p *Parser) accept(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	return false
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType, context string) bool {
	if p.accept(t) {
		return true
	}
	p.errorAt(p.curToken, "expected `%s` %s, found %s", t, context, describe(p.curToken))
	return false
}

// errorAt records a parse error unless the parser is already recovering.
func (p *Parser) errorAt(tok Token, format string, args ...interface{}) {
	if p.panicking {
		return
	}
	p.panicking = true
	p.source.AddError(tok.Span(), format, args...)
}

// synchronize skips tokens until a likely statement boundary.
func (p *Parser) synchronize() {
	p.panicking = false
	for !p.curTokenIs(TokenEOF) {
		if p.prevToken.Type == TokenSemicolon {
			return
		}
		switch p.curToken.Type {
		case TokenLet, TokenFn, TokenIf, TokenWhile, TokenReturn, TokenRBrace:
			return
		}
		p.nextToken()
	}
}

// enter descends one nesting level. Past maxNesting it records an error
// and reports false; the caller must still call leave.
func (p *Parser) enter() bool {
	p.depth++
	if p.depth > maxNesting {
		p.errorAt(p.curToken, "expression nested too deeply")
		return false
	}
	return true
}

func (p *Parser) leave() {
	p.depth--
}

func describe(tok Token) string {
	switch tok.Type {
	case TokenEOF:
		return "end of input"
	case TokenIdentifier, TokenNumber:
		return "`" + tok.Literal + "`"
	case TokenString:
		return "string literal"
	}
	return "`" + tok.Type.String() + "`"
}

func spanFrom(start Position, end Position) Span {
	return Span{Start: start, End: end}
}

// ---------------------------------------------------------------------------
// Declarations and statements
// ---------------------------------------------------------------------------

// ParseProgram parses declarations until EOF.
func (p *Parser) ParseProgram() *Program {
	prog := &Program{}
	start := p.curToken.Pos
	for !p.curTokenIs(TokenEOF) {
		if stmt := p.parseDeclaration(); stmt != nil {
			prog.Stmts = append(prog.Stmts, stmt)
		}
		if p.panicking {
			p.synchronize()
			// A stray closing brace has already been reported; step over it.
			if p.curTokenIs(TokenRBrace) {
				p.nextToken()
			}
		}
	}
	prog.SpanVal = spanFrom(start, p.curToken.Pos)
	return prog
}

func (p *Parser) parseDeclaration() Stmt {
	switch p.curToken.Type {
	case TokenLet:
		return p.parseLet()
	case TokenFn:
		return p.parseFn()
	}
	return p.parseStatement()
}

func (p *Parser) parseLet() Stmt {
	start := p.curToken.Pos
	p.nextToken() // let

	name := p.parseIdentName("after `let`")
	if name == nil {
		return nil
	}
	decl := &LetDecl{Name: name}
	if p.accept(TokenColon) {
		decl.Type = p.parseType()
		if decl.Type == nil {
			return nil
		}
	}
	if !p.expect(TokenAssign, "in let declaration") {
		return nil
	}
	decl.Value = p.parseExpression()
	if decl.Value == nil {
		return nil
	}
	if !p.expect(TokenSemicolon, "after let declaration") {
		return nil
	}
	decl.SpanVal = spanFrom(start, p.prevToken.End)
	return decl
}

func (p *Parser) parseFn() Stmt {
	start := p.curToken.Pos
	p.nextToken() // fn

	name := p.parseIdentName("after `fn`")
	if name == nil {
		return nil
	}
	decl := &FnDecl{Name: name}
	if !p.expect(TokenLParen, "after function name") {
		return nil
	}
	if !p.curTokenIs(TokenRParen) {
		for {
			pname := p.parseIdentName("as parameter name")
			if pname == nil {
				return nil
			}
			param := &Param{Name: pname}
			if p.accept(TokenColon) {
				param.Type = p.parseType()
				if param.Type == nil {
					return nil
				}
			}
			decl.Params = append(decl.Params, param)
			if !p.accept(TokenComma) {
				break
			}
		}
	}
	if !p.expect(TokenRParen, "after parameters") {
		return nil
	}
	if p.accept(TokenArrow) {
		decl.Return = p.parseType()
		if decl.Return == nil {
			return nil
		}
	}
	decl.Body = p.parseBlock()
	if decl.Body == nil {
		return nil
	}
	decl.SpanVal = spanFrom(start, p.prevToken.End)
	return decl
}

func (p *Parser) parseIdentName(context string) *Identifier {
	if !p.curTokenIs(TokenIdentifier) {
		p.errorAt(p.curToken, "expected identifier %s, found %s", context, describe(p.curToken))
		return nil
	}
	id := &Identifier{SpanVal: p.curToken.Span(), Name: p.curToken.Literal}
	p.nextToken()
	return id
}

func (p *Parser) parseType() *TypeExpr {
	if !p.curTokenIs(TokenIdentifier) {
		p.errorAt(p.curToken, "expected type name, found %s", describe(p.curToken))
		return nil
	}
	t := &TypeExpr{SpanVal: p.curToken.Span(), Name: p.curToken.Literal}
	p.nextToken()
	return t
}

func (p *Parser) parseStatement() Stmt {
	switch p.curToken.Type {
	case TokenLBrace:
		if b := p.parseBlock(); b != nil {
			return b
		}
		return nil
	case TokenIf:
		return p.parseIf()
	case TokenWhile:
		return p.parseWhile()
	case TokenReturn:
		return p.parseReturn()
	}

	start := p.curToken.Pos
	expr := p.parseExpression()
	if expr == nil {
		return nil
	}
	if !p.expect(TokenSemicolon, "after expression") {
		return nil
	}
	return &ExprStmt{SpanVal: spanFrom(start, p.prevToken.End), Expr: expr}
}

func (p *Parser) parseBlock() *Block {
	defer p.leave()
	if !p.enter() {
		return nil
	}
	start := p.curToken.Pos
	if !p.expect(TokenLBrace, "to open block") {
		return nil
	}
	block := &Block{}
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		if stmt := p.parseDeclaration(); stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
		if p.panicking {
			p.synchronize()
		}
	}
	if !p.expect(TokenRBrace, "to close block") {
		return nil
	}
	block.SpanVal = spanFrom(start, p.prevToken.End)
	return block
}

func (p *Parser) parseIf() Stmt {
	defer p.leave()
	if !p.enter() {
		return nil
	}
	start := p.curToken.Pos
	p.nextToken() // if

	cond := p.parseExpression()
	if cond == nil {
		return nil
	}
	then := p.parseBlock()
	if then == nil {
		return nil
	}
	stmt := &IfStmt{Cond: cond, Then: then}
	if p.accept(TokenElse) {
		if p.curTokenIs(TokenIf) {
			stmt.Else = p.parseIf()
		} else if b := p.parseBlock(); b != nil {
			stmt.Else = b
		}
		if stmt.Else == nil {
			return nil
		}
	}
	stmt.SpanVal = spanFrom(start, p.prevToken.End)
	return stmt
}

func (p *Parser) parseWhile() Stmt {
	start := p.curToken.Pos
	p.nextToken() // while

	cond := p.parseExpression()
	if cond == nil {
		return nil
	}
	body := p.parseBlock()
	if body == nil {
		return nil
	}
	return &WhileStmt{SpanVal: spanFrom(start, p.prevToken.End), Cond: cond, Body: body}
}

func (p *Parser) parseReturn() Stmt {
	start := p.curToken.Pos
	p.nextToken() // return

	stmt := &ReturnStmt{}
	if !p.curTokenIs(TokenSemicolon) {
		stmt.Value = p.parseExpression()
		if stmt.Value == nil {
			return nil
		}
	}
	if !p.expect(TokenSemicolon, "after return") {
		return nil
	}
	stmt.SpanVal = spanFrom(start, p.prevToken.End)
	return stmt
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// ParseExpression parses a single expression.
func (p *Parser) ParseExpression() Expr {
	return p.parseExpression()
}

func (p *Parser) parseExpression() Expr {
	return p.parseAssignment()
}

func (p *Parser) parseAssignment() Expr {
	defer p.leave()
	if !p.enter() {
		return nil
	}
	expr := p.parseOr()
	if expr == nil || !p.curTokenIs(TokenAssign) {
		return expr
	}
	eq := p.curToken
	p.nextToken()
	value := p.parseAssignment()
	if value == nil {
		return nil
	}
	target, ok := expr.(*Identifier)
	if !ok {
		p.errorAt(eq, "invalid assignment target")
		return nil
	}
	return &AssignExpr{
		SpanVal: spanFrom(target.SpanVal.Start, value.Span().End),
		Target:  target,
		Value:   value,
	}
}

func (p *Parser) parseOr() Expr {
	left := p.parseAnd()
	for left != nil && p.curTokenIs(TokenOr) {
		p.nextToken()
		right := p.parseAnd()
		if right == nil {
			return nil
		}
		left = &LogicalExpr{SpanVal: spanFrom(left.Span().Start, right.Span().End), Op: TokenOr, Left: left, Right: right}
	}
	return left
}

func (p *Parser) parseAnd() Expr {
	left := p.parseEquality()
	for left != nil && p.curTokenIs(TokenAnd) {
		p.nextToken()
		right := p.parseEquality()
		if right == nil {
			return nil
		}
		left = &LogicalExpr{SpanVal: spanFrom(left.Span().Start, right.Span().End), Op: TokenAnd, Left: left, Right: right}
	}
	return left
}

// binaryLevel parses a left-associative chain of the given operators.
func (p *Parser) binaryLevel(next func() Expr, ops ...TokenType) Expr {
	left := next()
	for left != nil && p.curIsOneOf(ops) {
		op := p.curToken.Type
		p.nextToken()
		right := next()
		if right == nil {
			return nil
		}
		left = &BinaryExpr{SpanVal: spanFrom(left.Span().Start, right.Span().End), Op: op, Left: left, Right: right}
	}
	return left
}

func (p *Parser) curIsOneOf(ops []TokenType) bool {
	for _, op := range ops {
		if p.curToken.Type == op {
			return true
		}
	}
	return false
}

func (p *Parser) parseEquality() Expr {
	return p.binaryLevel(p.parseComparison, TokenEqual, TokenNotEqual)
}

func (p *Parser) parseComparison() Expr {
	return p.binaryLevel(p.parseTerm, TokenLess, TokenLessEqual, TokenGreater, TokenGreaterEqual)
}

func (p *Parser) parseTerm() Expr {
	return p.binaryLevel(p.parseFactor, TokenPlus, TokenMinus)
}

func (p *Parser) parseFactor() Expr {
	return p.binaryLevel(p.parseUnary, TokenStar, TokenSlash, TokenPercent)
}

func (p *Parser) parseUnary() Expr {
	defer p.leave()
	if !p.enter() {
		return nil
	}
	if p.curTokenIs(TokenMinus) || p.curTokenIs(TokenBang) {
		tok := p.curToken
		p.nextToken()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return &UnaryExpr{SpanVal: spanFrom(tok.Pos, operand.Span().End), Op: tok.Type, Operand: operand}
	}
	return p.parseCall()
}

func (p *Parser) parseCall() Expr {
	expr := p.parsePrimary()
	for expr != nil && p.curTokenIs(TokenLParen) {
		p.nextToken()
		call := &CallExpr{Callee: expr}
		if !p.curTokenIs(TokenRParen) {
			for {
				arg := p.parseExpression()
				if arg == nil {
					return nil
				}
				call.Args = append(call.Args, arg)
				if !p.accept(TokenComma) {
					break
				}
			}
		}
		if !p.expect(TokenRParen, "after arguments") {
			return nil
		}
		call.SpanVal = spanFrom(expr.Span().Start, p.prevToken.End)
		expr = call
	}
	return expr
}

func (p *Parser) parsePrimary() Expr {
	tok := p.curToken
	switch tok.Type {
	case TokenNumber:
		p.nextToken()
		f, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			p.errorAt(tok, "invalid number literal `%s`", tok.Literal)
			return nil
		}
		return &NumberLiteral{SpanVal: tok.Span(), Value: f}

	case TokenString:
		p.nextToken()
		return &StringLiteral{SpanVal: tok.Span(), Value: tok.Literal}

	case TokenTrue, TokenFalse:
		p.nextToken()
		return &BoolLiteral{SpanVal: tok.Span(), Value: tok.Type == TokenTrue}

	case TokenNil:
		p.nextToken()
		return &NilLiteral{SpanVal: tok.Span()}

	case TokenIdentifier:
		p.nextToken()
		return &Identifier{SpanVal: tok.Span(), Name: tok.Literal}

	case TokenLParen:
		p.nextToken()
		expr := p.parseExpression()
		if expr == nil {
			return nil
		}
		if !p.expect(TokenRParen, "after expression") {
			return nil
		}
		return expr
	}

	p.errorAt(tok, "expected expression, found %s", describe(tok))
	if tok.Type != TokenRBrace && tok.Type != TokenEOF {
		p.nextToken()
	}
	return nil
}
