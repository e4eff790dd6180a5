package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the tut lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenInteger    // 42
	TokenFloat      // 3.14
	TokenString     // "hello"
	TokenIdentifier // foo, Point

	// Operators
	TokenAssign    // =
	TokenPlus      // +
	TokenMinus     // -
	TokenStar      // *
	TokenSlash     // /
	TokenAmp       // &
	TokenBang      // !
	TokenAndAnd    // &&
	TokenOrOr      // ||
	TokenLess      // <
	TokenGreater   // >
	TokenLessEq    // <=
	TokenGreaterEq // >=
	TokenEq        // ==
	TokenNotEq     // !=
	TokenArrow     // ->
	TokenDot       // .
	TokenEllipsis  // ...

	// Delimiters
	TokenLParen    // (
	TokenRParen    // )
	TokenLBrace    // {
	TokenRBrace    // }
	TokenComma     // ,
	TokenColon     // :
	TokenSemicolon // ;

	// Reserved words
	TokenModule
	TokenImport
	TokenVar
	TokenFunc
	TokenExtern
	TokenStruct
	TokenReturn
	TokenIf
	TokenElse
	TokenWhile
	TokenCast
	TokenSizeof
	TokenTrue
	TokenFalse
	TokenNull
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenInteger:    "INTEGER",
	TokenFloat:      "FLOAT",
	TokenString:     "STRING",
	TokenIdentifier: "IDENTIFIER",
	TokenAssign:     "=",
	TokenPlus:       "+",
	TokenMinus:      "-",
	TokenStar:       "*",
	TokenSlash:      "/",
	TokenAmp:        "&",
	TokenBang:       "!",
	TokenAndAnd:     "&&",
	TokenOrOr:       "||",
	TokenLess:       "<",
	TokenGreater:    ">",
	TokenLessEq:     "<=",
	TokenGreaterEq:  ">=",
	TokenEq:         "==",
	TokenNotEq:      "!=",
	TokenArrow:      "->",
	TokenDot:        ".",
	TokenEllipsis:   "...",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenLBrace:     "{",
	TokenRBrace:     "}",
	TokenComma:      ",",
	TokenColon:      ":",
	TokenSemicolon:  ";",
	TokenModule:     "module",
	TokenImport:     "import",
	TokenVar:        "var",
	TokenFunc:       "func",
	TokenExtern:     "extern",
	TokenStruct:     "struct",
	TokenReturn:     "return",
	TokenIf:         "if",
	TokenElse:       "else",
	TokenWhile:      "while",
	TokenCast:       "cast",
	TokenSizeof:     "sizeof",
	TokenTrue:       "true",
	TokenFalse:      "false",
	TokenNull:       "null",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text
	Pos     Position // start position
	// NewLine is set when the token is the first on its line.
	NewLine bool
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"module": TokenModule,
	"import": TokenImport,
	"var":    TokenVar,
	"func":   TokenFunc,
	"extern": TokenExtern,
	"struct": TokenStruct,
	"return": TokenReturn,
	"if":     TokenIf,
	"else":   TokenElse,
	"while":  TokenWhile,
	"cast":   TokenCast,
	"sizeof": TokenSizeof,
	"true":   TokenTrue,
	"false":  TokenFalse,
	"null":   TokenNull,
}

// Keywords returns the reserved words of the language.
func Keywords() []string {
	words := make([]string, 0, len(reservedWords))
	for w := range reservedWords {
		words = append(words, w)
	}
	return words
}
