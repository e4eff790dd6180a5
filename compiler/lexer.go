package compiler

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for tut source
// ---------------------------------------------------------------------------

// Lexer tokenizes tut source code.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // line of ch (1-based)
	col     int  // column of ch (1-based)

	lastLine int // line of the previous token
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

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		l.col++
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
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

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	tok := l.scan()
	tok.NewLine = tok.Pos.Line > l.lastLine
	l.lastLine = tok.Pos.Line
	return tok
}

func (l *Lexer) scan() Token {
	l.skipWhitespaceAndComments()

	pos := l.position()

	single := func(t TokenType) Token {
		lit := string(l.ch)
		l.readChar()
		return Token{Type: t, Literal: lit, Pos: pos}
	}
	double := func(t TokenType, lit string) Token {
		l.readChar()
		l.readChar()
		return Token{Type: t, Literal: lit, Pos: pos}
	}

	switch {
	case l.ch == 0:
		return Token{Type: TokenEOF, Literal: "", Pos: pos}

	case l.ch == '(':
		return single(TokenLParen)
	case l.ch == ')':
		return single(TokenRParen)
	case l.ch == '{':
		return single(TokenLBrace)
	case l.ch == '}':
		return single(TokenRBrace)
	case l.ch == ',':
		return single(TokenComma)
	case l.ch == ':':
		return single(TokenColon)
	case l.ch == ';':
		return single(TokenSemicolon)
	case l.ch == '+':
		return single(TokenPlus)
	case l.ch == '*':
		return single(TokenStar)
	case l.ch == '/':
		return single(TokenSlash)

	case l.ch == '-':
		if l.peekChar() == '>' {
			return double(TokenArrow, "->")
		}
		return single(TokenMinus)

	case l.ch == '=':
		if l.peekChar() == '=' {
			return double(TokenEq, "==")
		}
		return single(TokenAssign)

	case l.ch == '!':
		if l.peekChar() == '=' {
			return double(TokenNotEq, "!=")
		}
		return single(TokenBang)

	case l.ch == '<':
		if l.peekChar() == '=' {
			return double(TokenLessEq, "<=")
		}
		return single(TokenLess)

	case l.ch == '>':
		if l.peekChar() == '=' {
			return double(TokenGreaterEq, ">=")
		}
		return single(TokenGreater)

	case l.ch == '&':
		if l.peekChar() == '&' {
			return double(TokenAndAnd, "&&")
		}
		return single(TokenAmp)

	case l.ch == '|':
		if l.peekChar() == '|' {
			return double(TokenOrOr, "||")
		}
		l.readChar()
		return Token{Type: TokenError, Literal: "unexpected character: |", Pos: pos}

	case l.ch == '.':
		if strings.HasPrefix(l.input[l.pos:], "...") {
			l.readChar()
			l.readChar()
			l.readChar()
			return Token{Type: TokenEllipsis, Literal: "...", Pos: pos}
		}
		if isDigit(l.peekChar()) {
			return l.readNumber(pos)
		}
		return single(TokenDot)

	case l.ch == '"':
		return l.readString(pos)

	case isDigit(l.ch):
		return l.readNumber(pos)

	case isLetter(l.ch) || l.ch == '_':
		return l.readIdentifier(pos)

	default:
		ch := l.ch
		l.readChar()
		return Token{Type: TokenError, Literal: fmt.Sprintf("unexpected character: %c", ch), Pos: pos}
	}
}

// skipWhitespaceAndComments skips whitespace, // line comments and /* */ block comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
			l.readChar()
		}

		if l.ch == '/' && l.peekChar() == '/' {
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
			continue
		}

		if l.ch == '/' && l.peekChar() == '*' {
			l.readChar()
			l.readChar()
			for l.ch != 0 && !(l.ch == '*' && l.peekChar() == '/') {
				l.readChar()
			}
			if l.ch != 0 {
				l.readChar()
				l.readChar()
			}
			continue
		}

		return
	}
}

// readIdentifier reads an identifier or reserved word.
func (l *Lexer) readIdentifier(pos Position) Token {
	start := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	lit := l.input[start:l.pos]
	if t, ok := reservedWords[lit]; ok {
		return Token{Type: t, Literal: lit, Pos: pos}
	}
	return Token{Type: TokenIdentifier, Literal: lit, Pos: pos}
}

// readNumber reads an integer or float literal. A literal is a float if it
// contains a decimal point or an exponent.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	isFloat := false

	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		isFloat = true
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		next := l.peekChar()
		if isDigit(next) || next == '+' || next == '-' {
			isFloat = true
			l.readChar()
			if l.ch == '+' || l.ch == '-' {
				l.readChar()
			}
			if !isDigit(l.ch) {
				return Token{Type: TokenError, Literal: "malformed exponent", Pos: pos}
			}
			for isDigit(l.ch) {
				l.readChar()
			}
		}
	}

	lit := l.input[start:l.pos]
	if isFloat {
		return Token{Type: TokenFloat, Literal: lit, Pos: pos}
	}
	return Token{Type: TokenInteger, Literal: lit, Pos: pos}
}

// readString reads a double-quoted string literal. The literal value has its
// escape sequences already decoded.
func (l *Lexer) readString(pos Position) Token {
	l.readChar() // skip opening quote

	var sb strings.Builder
	for l.ch != '"' {
		if l.ch == 0 || l.ch == '\n' {
			return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			case '0':
				sb.WriteRune(0)
			case '\\', '"':
				sb.WriteRune(l.ch)
			default:
				return Token{Type: TokenError, Literal: fmt.Sprintf("unknown escape sequence: \\%c", l.ch), Pos: pos}
			}
			l.readChar()
			continue
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}
	l.readChar() // skip closing quote

	return Token{Type: TokenString, Literal: sb.String(), Pos: pos}
}

// Tokenize returns all tokens in input, ending with EOF or the first error.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			return tokens
		}
	}
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isLetter(r rune) bool {
	return unicode.IsLetter(r)
}
