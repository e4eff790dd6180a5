package compiler

import (
	"strconv"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for tut
// ---------------------------------------------------------------------------

// ImportFunc loads the module named by an import statement.
type ImportFunc func(path string) (*Module, error)

// Parser parses tut source into an AST, registering declarations in a
// symbol table as it goes. Identifiers that refer to earlier declarations
// are bound immediately; the rest are left for the semantic analyzer.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	table     *SymbolTable
	module    *Module
	importer  ImportFunc
	prevEnd   Position
	err       *Error
}

// NewParser creates a parser for one module. importer may be nil, in which
// case import statements are rejected.
func NewParser(module *Module, table *SymbolTable, importer ImportFunc) *Parser {
	p := &Parser{
		lexer:    NewLexer(module.Source),
		table:    table,
		module:   module,
		importer: importer,
	}
	// Read two tokens to fill curToken and peekToken
	p.nextToken()
	p.nextToken()
	return p
}

// nextToken advances to the next token.
func (p *Parser) nextToken() {
	p.prevEnd = p.curToken.Pos
	p.prevEnd.Column += len(p.curToken.Literal)
	p.prevEnd.Offset += len(p.curToken.Literal)
	p.curToken = p.peekToken
	p.peekToken = p.lexer.NextToken()
	if p.curToken.Type == TokenError {
		p.errorf("%s", p.curToken.Literal)
	}
}

// curTokenIs checks if the current token is of the given type.
func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

// peekTokenIs checks if the peek token is of the given type.
func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expect advances if the current token matches, otherwise records an error.
func (p *Parser) expect(t TokenType) bool {
	if p.curTokenIs(t) {
		p.nextToken()
		return true
	}
	p.errorf("expected %s, got %s", t, p.curToken)
	return false
}

// skipSemicolon consumes an optional statement terminator.
func (p *Parser) skipSemicolon() {
	if p.curTokenIs(TokenSemicolon) {
		p.nextToken()
	}
}

// errorf records the first parse error at the current token.
func (p *Parser) errorf(format string, args ...interface{}) {
	p.errorAt(p.curToken.Pos, format, args...)
}

func (p *Parser) errorAt(pos Position, format string, args ...interface{}) {
	if p.err == nil {
		p.err = errorAt(p.module.Name, pos, format, args...)
	}
}

// failed reports whether parsing has already hit an error.
func (p *Parser) failed() bool {
	return p.err != nil
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseModule parses the whole module into module.Stmts.
func (p *Parser) ParseModule() error {
	if p.curTokenIs(TokenModule) {
		p.nextToken()
		if !p.curTokenIs(TokenIdentifier) {
			p.errorf("expected module name, got %s", p.curToken)
			return p.err
		}
		p.module.Name = p.curToken.Literal
		p.nextToken()
		p.skipSemicolon()
	}

	for !p.curTokenIs(TokenEOF) && !p.failed() {
		if p.curTokenIs(TokenImport) {
			if s := p.parseImport(); s != nil {
				p.module.Stmts = append(p.module.Stmts, s)
			}
			continue
		}
		if s := p.ParseStatement(); s != nil {
			p.module.Stmts = append(p.module.Stmts, s)
		}
	}
	if p.failed() {
		return p.err
	}
	return nil
}

func (p *Parser) parseImport() Stmt {
	start := p.curToken.Pos
	p.nextToken()
	if !p.curTokenIs(TokenString) {
		p.errorf("expected import path string, got %s", p.curToken)
		return nil
	}
	path := p.curToken.Literal
	pathPos := p.curToken.Pos
	p.nextToken()
	p.skipSemicolon()

	if p.importer == nil {
		p.errorAt(pathPos, "imports are not available here")
		return nil
	}
	m, err := p.importer(path)
	if err != nil {
		if ce, ok := err.(*Error); ok {
			if p.err == nil {
				p.err = ce
			}
			return nil
		}
		p.errorAt(pathPos, "cannot import %q: %v", path, err)
		return nil
	}
	p.module.Imports = append(p.module.Imports, m)
	return &ImportStmt{SpanVal: spanOf(start, p.prevEnd), Path: path, Module: m}
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

// ParseStatement parses a single statement.
func (p *Parser) ParseStatement() Stmt {
	switch p.curToken.Type {
	case TokenVar:
		return p.parseVar()
	case TokenFunc:
		return p.parseFunc()
	case TokenExtern:
		return p.parseExtern()
	case TokenStruct:
		return p.parseStruct()
	case TokenReturn:
		return p.parseReturn()
	case TokenIf:
		return p.parseIf()
	case TokenWhile:
		return p.parseWhile()
	case TokenLBrace:
		if b := p.parseBlock(); b != nil {
			return b
		}
		return nil
	case TokenImport:
		p.errorf("import is only allowed at module level")
		return nil
	case TokenSemicolon:
		p.nextToken()
		return nil
	}

	start := p.curToken.Pos
	e := p.ParseExpression()
	if e == nil {
		return nil
	}
	if p.curTokenIs(TokenAssign) {
		p.nextToken()
		value := p.ParseExpression()
		if value == nil {
			return nil
		}
		p.skipSemicolon()
		return &AssignStmt{SpanVal: spanOf(start, p.prevEnd), Target: e, Value: value}
	}
	p.skipSemicolon()
	return &ExprStmt{SpanVal: spanOf(start, p.prevEnd), Expr: e}
}

func (p *Parser) parseBlock() *BlockStmt {
	start := p.curToken.Pos
	p.nextToken() // {

	p.table.EnterScope()
	defer p.table.LeaveScope()

	block := &BlockStmt{}
	for !p.curTokenIs(TokenRBrace) && !p.failed() {
		if p.curTokenIs(TokenEOF) {
			p.errorf("unexpected end of input, expected }")
			return nil
		}
		if s := p.ParseStatement(); s != nil {
			block.Stmts = append(block.Stmts, s)
		}
	}
	if p.failed() {
		return nil
	}
	p.nextToken() // }
	p.skipSemicolon()
	block.SpanVal = spanOf(start, p.prevEnd)
	return block
}

func (p *Parser) parseVar() Stmt {
	start := p.curToken.Pos
	p.nextToken()
	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected variable name, got %s", p.curToken)
		return nil
	}
	name := p.curToken.Literal
	namePos := p.curToken.Pos
	p.nextToken()
	if !p.expect(TokenColon) {
		return nil
	}
	t := p.parseType()
	if t == nil {
		return nil
	}

	var init Expr
	if p.curTokenIs(TokenAssign) {
		p.nextToken()
		if init = p.ParseExpression(); init == nil {
			return nil
		}
	}
	p.skipSemicolon()

	if p.redeclared(name) {
		p.errorAt(namePos, "redeclaration of '%s' in this scope", name)
		return nil
	}
	decl := p.table.DeclareVariable(name, t, namePos)
	return &VarStmt{SpanVal: spanOf(start, p.prevEnd), Decl: decl, Init: init}
}

// redeclared reports whether name is already declared in the current scope.
func (p *Parser) redeclared(name string) bool {
	vars := p.table.Globals()
	fn := p.table.CurrentFunc()
	if fn != nil {
		vars = fn.Locals
		if p.table.Scope() == fn.bodyScope {
			for _, a := range fn.Args {
				if a.Name == name {
					return true
				}
			}
		}
	}
	for _, v := range vars {
		if v.Name == name && !v.hidden && v.Scope == p.table.Scope() {
			return true
		}
	}
	return false
}

type param struct {
	name string
	typ  *Type
	pos  Position
}

// parseSignature parses "(a: T, b: U, ...): R". The return type defaults
// to void.
func (p *Parser) parseSignature() (params []param, ret *Type, varargs bool, ok bool) {
	if !p.expect(TokenLParen) {
		return nil, nil, false, false
	}
	for !p.curTokenIs(TokenRParen) {
		if p.curTokenIs(TokenEllipsis) {
			varargs = true
			p.nextToken()
			if !p.curTokenIs(TokenRParen) {
				p.errorf("... must be the last parameter")
				return nil, nil, false, false
			}
			break
		}
		if !p.curTokenIs(TokenIdentifier) {
			p.errorf("expected parameter name, got %s", p.curToken)
			return nil, nil, false, false
		}
		pr := param{name: p.curToken.Literal, pos: p.curToken.Pos}
		for _, prev := range params {
			if prev.name == pr.name {
				p.errorf("duplicate parameter '%s'", pr.name)
				return nil, nil, false, false
			}
		}
		p.nextToken()
		if !p.expect(TokenColon) {
			return nil, nil, false, false
		}
		if pr.typ = p.parseType(); pr.typ == nil {
			return nil, nil, false, false
		}
		params = append(params, pr)
		if p.curTokenIs(TokenComma) {
			p.nextToken()
		} else if !p.curTokenIs(TokenRParen) {
			p.errorf("expected , or ), got %s", p.curToken)
			return nil, nil, false, false
		}
	}
	p.nextToken() // )

	ret = VoidType
	if p.curTokenIs(TokenColon) {
		p.nextToken()
		if ret = p.parseType(); ret == nil {
			return nil, nil, false, false
		}
	}
	return params, ret, varargs, true
}

func (p *Parser) parseFunc() Stmt {
	start := p.curToken.Pos
	p.nextToken()
	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected function name, got %s", p.curToken)
		return nil
	}
	name := p.curToken.Literal
	namePos := p.curToken.Pos
	p.nextToken()

	if p.funcDeclaredHere(name) {
		p.errorAt(namePos, "multiple declaration of function '%s'", name)
		return nil
	}

	params, ret, varargs, ok := p.parseSignature()
	if !ok {
		return nil
	}
	if varargs {
		p.errorAt(namePos, "function '%s': only externs may take variadic arguments", name)
		return nil
	}

	fn := p.table.DeclareFunction(name, ret, namePos)
	fn.Module = p.module

	p.table.PushFunc(fn)
	p.table.EnterScope()
	for _, pr := range params {
		p.table.DeclareArgument(fn, pr.name, pr.typ, pr.pos)
	}
	fn.bodyScope = p.table.Scope()
	if p.curTokenIs(TokenLBrace) {
		fn.bodyScope++
	}
	fn.Body = p.ParseStatement()
	p.table.LeaveScope()
	p.table.PopFunc()

	if p.failed() {
		return nil
	}
	if fn.Body == nil {
		p.errorAt(namePos, "function '%s' has no body", name)
		return nil
	}
	return &FuncStmt{SpanVal: spanOf(start, p.prevEnd), Decl: fn}
}

// funcDeclaredHere reports whether a function named name already exists in
// the current declaration context.
func (p *Parser) funcDeclaredHere(name string) bool {
	list := p.table.Functions()
	if parent := p.table.CurrentFunc(); parent != nil {
		list = parent.Nested
	}
	for _, fn := range list {
		if fn.Name == name {
			return true
		}
	}
	return false
}

func (p *Parser) parseExtern() Stmt {
	start := p.curToken.Pos
	p.nextToken()
	if p.table.CurrentFunc() != nil {
		p.errorAt(start, "extern declarations are only allowed at module level")
		return nil
	}
	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected extern name, got %s", p.curToken)
		return nil
	}
	name := p.curToken.Literal
	namePos := p.curToken.Pos
	p.nextToken()

	params, ret, varargs, ok := p.parseSignature()
	if !ok {
		return nil
	}
	p.skipSemicolon()

	if prev := p.table.GetFuncDecl(name); prev != nil {
		if prev.Kind != FuncExtern {
			p.errorAt(namePos, "multiple declaration of function '%s'", name)
			return nil
		}
		types := make([]*Type, len(params))
		for i, pr := range params {
			types[i] = pr.typ
		}
		if !StructurallyEqual(prev.Type(), FuncOf(types, ret, varargs)) || prev.Varargs != varargs || len(prev.Args) != len(params) {
			p.errorAt(namePos, "extern '%s' redeclared with a different signature: %s", name, FuncOf(types, ret, varargs))
			return nil
		}
		return &ExternStmt{SpanVal: spanOf(start, p.prevEnd), Decl: prev}
	}

	fn := p.table.DeclareExtern(name, ret, namePos)
	fn.Module = p.module
	fn.Varargs = varargs
	for _, pr := range params {
		p.table.DeclareArgument(fn, pr.name, pr.typ, pr.pos)
	}
	return &ExternStmt{SpanVal: spanOf(start, p.prevEnd), Decl: fn}
}

func (p *Parser) parseStruct() Stmt {
	start := p.curToken.Pos
	p.nextToken()
	if !p.curTokenIs(TokenIdentifier) {
		p.errorf("expected type name, got %s", p.curToken)
		return nil
	}
	name := p.curToken.Literal
	namePos := p.curToken.Pos
	if Primitive(name) != nil {
		p.errorf("cannot redefine built-in type '%s'", name)
		return nil
	}
	p.nextToken()

	t := p.table.DefineType(name, namePos)
	if t == nil {
		p.errorAt(namePos, "redefinition of type '%s'", name)
		return nil
	}
	if !p.expect(TokenLBrace) {
		return nil
	}
	for !p.curTokenIs(TokenRBrace) {
		if !p.curTokenIs(TokenIdentifier) {
			p.errorf("expected member name, got %s", p.curToken)
			return nil
		}
		mname := p.curToken.Literal
		mpos := p.curToken.Pos
		if t.Member(mname) != nil {
			p.errorf("duplicate member '%s' in type '%s'", mname, name)
			return nil
		}
		p.nextToken()
		if !p.expect(TokenColon) {
			return nil
		}
		mt := p.parseType()
		if mt == nil {
			return nil
		}
		t.Members = append(t.Members, &Member{Name: mname, Type: mt, Pos: mpos})
		if p.curTokenIs(TokenSemicolon) || p.curTokenIs(TokenComma) {
			p.nextToken()
		} else if !p.curTokenIs(TokenRBrace) {
			p.errorf("expected ; or }, got %s", p.curToken)
			return nil
		}
	}
	p.nextToken() // }
	p.skipSemicolon()
	return &StructStmt{SpanVal: spanOf(start, p.prevEnd), Type: t}
}

func (p *Parser) parseReturn() Stmt {
	start := p.curToken.Pos
	p.nextToken()
	ret := &ReturnStmt{Func: p.table.CurrentFunc()}
	if !p.curTokenIs(TokenSemicolon) && !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		if ret.Value = p.ParseExpression(); ret.Value == nil {
			return nil
		}
	}
	p.skipSemicolon()
	ret.SpanVal = spanOf(start, p.prevEnd)
	return ret
}

func (p *Parser) parseIf() Stmt {
	start := p.curToken.Pos
	p.nextToken()
	cond := p.ParseExpression()
	if cond == nil {
		return nil
	}
	then := p.parseBody()
	if then == nil {
		return nil
	}
	s := &IfStmt{Cond: cond, Then: then}
	if p.curTokenIs(TokenElse) {
		p.nextToken()
		if s.Else = p.parseBody(); s.Else == nil {
			return nil
		}
	}
	s.SpanVal = spanOf(start, p.prevEnd)
	return s
}

func (p *Parser) parseWhile() Stmt {
	start := p.curToken.Pos
	p.nextToken()
	cond := p.ParseExpression()
	if cond == nil {
		return nil
	}
	body := p.parseBody()
	if body == nil {
		return nil
	}
	return &WhileStmt{SpanVal: spanOf(start, p.prevEnd), Cond: cond, Body: body}
}

// parseBody parses the statement controlled by if, else or while.
func (p *Parser) parseBody() Stmt {
	if p.curTokenIs(TokenLBrace) {
		if b := p.parseBlock(); b != nil {
			return b
		}
		return nil
	}
	s := p.ParseStatement()
	if s == nil && !p.failed() {
		p.errorf("expected statement, got %s", p.curToken)
	}
	return s
}

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// parseType parses a type: a built-in name, ref-T, func(T, ...): R or a
// user type name.
func (p *Parser) parseType() *Type {
	switch p.curToken.Type {
	case TokenFunc:
		p.nextToken()
		if !p.expect(TokenLParen) {
			return nil
		}
		var params []*Type
		varargs := false
		for !p.curTokenIs(TokenRParen) {
			if p.curTokenIs(TokenEllipsis) {
				varargs = true
				p.nextToken()
				break
			}
			t := p.parseType()
			if t == nil {
				return nil
			}
			params = append(params, t)
			if p.curTokenIs(TokenComma) {
				p.nextToken()
			} else if !p.curTokenIs(TokenRParen) {
				p.errorf("expected , or ), got %s", p.curToken)
				return nil
			}
		}
		if !p.expect(TokenRParen) {
			return nil
		}
		ret := VoidType
		if p.curTokenIs(TokenColon) {
			p.nextToken()
			if ret = p.parseType(); ret == nil {
				return nil
			}
		}
		return FuncOf(params, ret, varargs)

	case TokenIdentifier:
		name := p.curToken.Literal
		pos := p.curToken.Pos
		p.nextToken()
		if name == "ref" && p.curTokenIs(TokenMinus) {
			p.nextToken()
			elem := p.parseType()
			if elem == nil {
				return nil
			}
			return RefTo(elem)
		}
		if t := Primitive(name); t != nil {
			return t
		}
		return p.table.RegisterType(name, pos)
	}

	p.errorf("expected type, got %s", p.curToken)
	return nil
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// Binary operator precedence; higher binds tighter.
var precedences = map[TokenType]int{
	TokenAndAnd:    1,
	TokenOrOr:      1,
	TokenLess:      2,
	TokenGreater:   2,
	TokenLessEq:    2,
	TokenGreaterEq: 2,
	TokenEq:        2,
	TokenNotEq:     2,
	TokenPlus:      3,
	TokenMinus:     3,
	TokenStar:      4,
	TokenSlash:     4,
}

// ParseExpression parses a single expression.
func (p *Parser) ParseExpression() Expr {
	return p.parseBinary(1)
}

// parseBinary parses left-associative binary operators with precedence at
// least minPrec.
func (p *Parser) parseBinary(minPrec int) Expr {
	left := p.parseUnary()
	if left == nil {
		return nil
	}
	for {
		prec, ok := precedences[p.curToken.Type]
		if !ok || prec < minPrec {
			return left
		}
		// an operator starting a line begins the next statement: *r = v
		if p.curToken.NewLine {
			return left
		}
		op := p.curToken.Type
		p.nextToken()
		right := p.parseBinary(prec + 1)
		if right == nil {
			return nil
		}
		left = &BinaryExpr{
			SpanVal: spanOf(left.Span().Start, right.Span().End),
			Op:      op,
			Left:    left,
			Right:   right,
		}
	}
}

func (p *Parser) parseUnary() Expr {
	switch p.curToken.Type {
	case TokenMinus, TokenBang, TokenStar, TokenAmp:
		start := p.curToken.Pos
		op := p.curToken.Type
		p.nextToken()
		operand := p.parseUnary()
		if operand == nil {
			return nil
		}
		return &UnaryExpr{SpanVal: spanOf(start, operand.Span().End), Op: op, Operand: operand}
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() Expr {
	e := p.parsePrimary()
	for e != nil {
		if p.curToken.NewLine {
			return e
		}
		switch p.curToken.Type {
		case TokenLParen:
			p.nextToken()
			call := &CallExpr{Callee: e}
			for !p.curTokenIs(TokenRParen) {
				arg := p.ParseExpression()
				if arg == nil {
					return nil
				}
				call.Args = append(call.Args, arg)
				if p.curTokenIs(TokenComma) {
					p.nextToken()
				} else if !p.curTokenIs(TokenRParen) {
					p.errorf("expected , or ), got %s", p.curToken)
					return nil
				}
			}
			p.nextToken() // )
			call.SpanVal = spanOf(e.Span().Start, p.prevEnd)
			e = call

		case TokenDot, TokenArrow:
			arrow := p.curTokenIs(TokenArrow)
			p.nextToken()
			if !p.curTokenIs(TokenIdentifier) {
				p.errorf("expected member name, got %s", p.curToken)
				return nil
			}
			name := p.curToken.Literal
			p.nextToken()
			e = &MemberExpr{SpanVal: spanOf(e.Span().Start, p.prevEnd), Base: e, Name: name, Arrow: arrow}

		default:
			return e
		}
	}
	return nil
}

func (p *Parser) parsePrimary() Expr {
	tok := p.curToken
	span := spanOf(tok.Pos, Position{Offset: tok.Pos.Offset + len(tok.Literal), Line: tok.Pos.Line, Column: tok.Pos.Column + len(tok.Literal)})

	switch tok.Type {
	case TokenInteger:
		p.nextToken()
		v, err := strconv.ParseInt(tok.Literal, 10, 32)
		if err != nil {
			p.errorAt(tok.Pos, "integer literal %s out of range", tok.Literal)
			return nil
		}
		return &IntLiteral{SpanVal: span, Value: int32(v)}

	case TokenFloat:
		p.nextToken()
		v, err := strconv.ParseFloat(tok.Literal, 32)
		if err != nil {
			p.errorAt(tok.Pos, "invalid float literal %s", tok.Literal)
			return nil
		}
		return &FloatLiteral{SpanVal: span, Value: float32(v)}

	case TokenString:
		p.nextToken()
		return &StringLiteral{SpanVal: spanOf(tok.Pos, p.prevEnd), Value: tok.Literal}

	case TokenTrue, TokenFalse:
		p.nextToken()
		return &BoolLiteral{SpanVal: span, Value: tok.Type == TokenTrue}

	case TokenNull:
		p.nextToken()
		return &NullLiteral{SpanVal: span}

	case TokenIdentifier:
		p.nextToken()
		id := &Ident{SpanVal: span, Name: tok.Literal}
		p.bind(id)
		return id

	case TokenLParen:
		p.nextToken()
		inner := p.ParseExpression()
		if inner == nil {
			return nil
		}
		if !p.expect(TokenRParen) {
			return nil
		}
		return &ParenExpr{SpanVal: spanOf(tok.Pos, p.prevEnd), Inner: inner}

	case TokenCast:
		p.nextToken()
		if !p.expect(TokenLParen) {
			return nil
		}
		value := p.ParseExpression()
		if value == nil || !p.expect(TokenComma) {
			return nil
		}
		target := p.parseType()
		if target == nil || !p.expect(TokenRParen) {
			return nil
		}
		return &CastExpr{SpanVal: spanOf(tok.Pos, p.prevEnd), Value: value, Target: target}

	case TokenSizeof:
		p.nextToken()
		if !p.expect(TokenLParen) {
			return nil
		}
		value := p.ParseExpression()
		if value == nil || !p.expect(TokenRParen) {
			return nil
		}
		return &SizeofExpr{SpanVal: spanOf(tok.Pos, p.prevEnd), Value: value}

	case TokenEOF:
		p.errorf("unexpected end of input")
		return nil
	}

	p.errorf("unexpected %s", tok)
	return nil
}

// bind resolves id against the declarations seen so far.
func (p *Parser) bind(id *Ident) {
	if v := p.table.LookupVar(id.Name); v != nil {
		id.Var = v
		return
	}
	if fn := p.table.GetFuncDecl(id.Name); fn != nil {
		id.Func = fn
		return
	}
	if t := Primitive(id.Name); t != nil {
		id.TypeRef = t
		return
	}
	if t := p.table.GetType(id.Name); t != nil {
		id.TypeRef = t
	}
}

// ParseString parses src as a standalone module named name into table.
// Imports are rejected.
func ParseString(name, src string, table *SymbolTable) (*Module, error) {
	m := &Module{Name: name, Path: name, Source: src}
	if err := NewParser(m, table, nil).ParseModule(); err != nil {
		return nil, err
	}
	return m, nil
}
