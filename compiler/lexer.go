package compiler

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for ella syntax
// ---------------------------------------------------------------------------

// Lexer tokenizes ella source code.
type Lexer struct {
	input   string
	pos     int  // offset of ch in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // line of ch (1-based)
	col     int  // column of ch (1-based)
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar advances to the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	l.pos = l.readPos
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.col++
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.readPos += size
	l.col++
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the position of the current character.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.col,
	}
}

func (l *Lexer) token(tt TokenType, literal string, pos Position) Token {
	return Token{Type: tt, Literal: literal, Pos: pos, End: l.position()}
}

// single consumes one character and returns a token of the given type.
func (l *Lexer) single(tt TokenType, pos Position) Token {
	lit := string(l.ch)
	l.readChar()
	return l.token(tt, lit, pos)
}

// either consumes one character and, when the next one is second, that one
// too.
func (l *Lexer) either(second rune, two, one TokenType, pos Position) Token {
	first := l.ch
	l.readChar()
	if l.ch == second {
		l.readChar()
		return l.token(two, string([]rune{first, second}), pos)
	}
	return l.token(one, string(first), pos)
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	pos := l.position()

	switch {
	case l.ch == 0:
		return Token{Type: TokenEOF, Pos: pos, End: pos}

	case l.ch == '(':
		return l.single(TokenLParen, pos)
	case l.ch == ')':
		return l.single(TokenRParen, pos)
	case l.ch == '{':
		return l.single(TokenLBrace, pos)
	case l.ch == '}':
		return l.single(TokenRBrace, pos)
	case l.ch == ',':
		return l.single(TokenComma, pos)
	case l.ch == ';':
		return l.single(TokenSemicolon, pos)
	case l.ch == ':':
		return l.single(TokenColon, pos)
	case l.ch == '+':
		return l.single(TokenPlus, pos)
	case l.ch == '*':
		return l.single(TokenStar, pos)
	case l.ch == '/':
		return l.single(TokenSlash, pos)
	case l.ch == '%':
		return l.single(TokenPercent, pos)

	case l.ch == '-':
		return l.either('>', TokenArrow, TokenMinus, pos)
	case l.ch == '!':
		return l.either('=', TokenNotEqual, TokenBang, pos)
	case l.ch == '=':
		return l.either('=', TokenEqual, TokenAssign, pos)
	case l.ch == '<':
		return l.either('=', TokenLessEqual, TokenLess, pos)
	case l.ch == '>':
		return l.either('=', TokenGreaterEqual, TokenGreater, pos)

	case l.ch == '&':
		if l.peekChar() == '&' {
			return l.either('&', TokenAnd, TokenError, pos)
		}
		l.readChar()
		return l.token(TokenError, "unexpected character '&'", pos)

	case l.ch == '|':
		if l.peekChar() == '|' {
			return l.either('|', TokenOr, TokenError, pos)
		}
		l.readChar()
		return l.token(TokenError, "unexpected character '|'", pos)

	case l.ch == '"':
		return l.readString(pos)

	case isDigit(l.ch):
		return l.readNumber(pos)

	case isIdentStart(l.ch):
		return l.readIdentifier(pos)
	}

	ch := l.ch
	l.readChar()
	return l.token(TokenError, "unexpected character '"+string(ch)+"'", pos)
}

// Tokenize returns every token up to and including EOF.
func (l *Lexer) Tokenize() []Token {
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}

// skipWhitespaceAndComments skips whitespace and // line comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for unicode.IsSpace(l.ch) {
			l.readChar()
		}
		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}
		return
	}
}

// readString reads a double-quoted string literal with backslash escapes.
func (l *Lexer) readString(pos Position) Token {
	l.readChar() // consume opening "

	var sb strings.Builder
	for l.ch != '"' {
		if l.ch == 0 {
			return l.token(TokenError, "unterminated string", pos)
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case '"':
				sb.WriteRune('"')
			case '\\':
				sb.WriteRune('\\')
			case 0:
				return l.token(TokenError, "unterminated string", pos)
			default:
				sb.WriteRune('\\')
				sb.WriteRune(l.ch)
			}
			l.readChar()
			continue
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}
	l.readChar() // consume closing "

	return l.token(TokenString, sb.String(), pos)
}

// readNumber reads a decimal number with optional fraction and exponent.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			if !isDigit(l.ch) {
				return l.token(TokenError, "malformed number exponent", pos)
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}
	return l.token(TokenNumber, l.input[start:l.pos], pos)
}

// readIdentifier reads an identifier or reserved word.
func (l *Lexer) readIdentifier(pos Position) Token {
	start := l.pos
	for isIdentPart(l.ch) {
		l.readChar()
	}
	lit := l.input[start:l.pos]
	return l.token(LookupIdent(lit), lit, pos)
}

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isIdentPart(ch rune) bool {
	return isIdentStart(ch) || unicode.IsDigit(ch)
}
