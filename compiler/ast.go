package compiler

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for tut
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

// Expr is the interface for expression nodes. Every expression carries the
// type assigned to it by the semantic analyzer.
type Expr interface {
	Node
	Type() *Type
	setType(*Type)
	expr() // marker method
}

// typed holds the resolved type of an expression.
type typed struct {
	T *Type
}

func (t *typed) Type() *Type      { return t.T }
func (t *typed) setType(ty *Type) { t.T = ty }

// BoolLiteral represents true or false.
type BoolLiteral struct {
	typed
	SpanVal Span
	Value   bool
}

func (n *BoolLiteral) Span() Span { return n.SpanVal }
func (n *BoolLiteral) node()      {}
func (n *BoolLiteral) expr()      {}

// IntLiteral represents an integer literal.
type IntLiteral struct {
	typed
	SpanVal Span
	Value   int32
}

func (n *IntLiteral) Span() Span { return n.SpanVal }
func (n *IntLiteral) node()      {}
func (n *IntLiteral) expr()      {}

// FloatLiteral represents a floating-point literal.
type FloatLiteral struct {
	typed
	SpanVal Span
	Value   float32
}

func (n *FloatLiteral) Span() Span { return n.SpanVal }
func (n *FloatLiteral) node()      {}
func (n *FloatLiteral) expr()      {}

// StringLiteral represents a string literal. Literals are borrowed text
// living in the program's string pool.
type StringLiteral struct {
	typed
	SpanVal Span
	Value   string
}

func (n *StringLiteral) Span() Span { return n.SpanVal }
func (n *StringLiteral) node()      {}
func (n *StringLiteral) expr()      {}

// NullLiteral represents the null reference.
type NullLiteral struct {
	typed
	SpanVal Span
}

func (n *NullLiteral) Span() Span { return n.SpanVal }
func (n *NullLiteral) node()      {}
func (n *NullLiteral) expr()      {}

// Ident is a name reference. At most one of Var, Func and TypeRef is set
// once the name is bound.
type Ident struct {
	typed
	SpanVal Span
	Name    string

	Var     *VarDecl
	Func    *FuncDecl
	TypeRef *Type
}

func (n *Ident) Span() Span { return n.SpanVal }
func (n *Ident) node()      {}
func (n *Ident) expr()      {}

// Bound reports whether the identifier has been bound to a declaration.
func (n *Ident) Bound() bool {
	return n.Var != nil || n.Func != nil || n.TypeRef != nil
}

// UnaryExpr represents -x, !x, *x or &x.
type UnaryExpr struct {
	typed
	SpanVal Span
	Op      TokenType
	Operand Expr
}

func (n *UnaryExpr) Span() Span { return n.SpanVal }
func (n *UnaryExpr) node()      {}
func (n *UnaryExpr) expr()      {}

// BinaryExpr represents a binary operator application.
type BinaryExpr struct {
	typed
	SpanVal Span
	Op      TokenType
	Left    Expr
	Right   Expr
}

func (n *BinaryExpr) Span() Span { return n.SpanVal }
func (n *BinaryExpr) node()      {}
func (n *BinaryExpr) expr()      {}

// ParenExpr represents a parenthesized expression.
type ParenExpr struct {
	typed
	SpanVal Span
	Inner   Expr
}

func (n *ParenExpr) Span() Span { return n.SpanVal }
func (n *ParenExpr) node()      {}
func (n *ParenExpr) expr()      {}

// MemberExpr represents base.name or, when Arrow is set, base->name.
type MemberExpr struct {
	typed
	SpanVal Span
	Base    Expr
	Name    string
	Arrow   bool

	Member *Member // resolved member
}

func (n *MemberExpr) Span() Span { return n.SpanVal }
func (n *MemberExpr) node()      {}
func (n *MemberExpr) expr()      {}

// CallExpr represents callee(args...).
type CallExpr struct {
	typed
	SpanVal Span
	Callee  Expr
	Args    []Expr
}

func (n *CallExpr) Span() Span { return n.SpanVal }
func (n *CallExpr) node()      {}
func (n *CallExpr) expr()      {}

// CastExpr represents cast(value, Target).
type CastExpr struct {
	typed
	SpanVal Span
	Value   Expr
	Target  *Type
}

func (n *CastExpr) Span() Span { return n.SpanVal }
func (n *CastExpr) node()      {}
func (n *CastExpr) expr()      {}

// SizeofExpr represents sizeof(value) or sizeof(Type). Value is never
// evaluated.
type SizeofExpr struct {
	typed
	SpanVal Span
	Value   Expr

	Slots int // resolved slot count
}

func (n *SizeofExpr) Span() Span { return n.SpanVal }
func (n *SizeofExpr) node()      {}
func (n *SizeofExpr) expr()      {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt() // marker method
}

// VarStmt declares a variable with an optional initializer.
type VarStmt struct {
	SpanVal Span
	Decl    *VarDecl
	Init    Expr
}

func (n *VarStmt) Span() Span { return n.SpanVal }
func (n *VarStmt) node()      {}
func (n *VarStmt) stmt()      {}

// AssignStmt represents target = value.
type AssignStmt struct {
	SpanVal Span
	Target  Expr
	Value   Expr
}

func (n *AssignStmt) Span() Span { return n.SpanVal }
func (n *AssignStmt) node()      {}
func (n *AssignStmt) stmt()      {}

// ExprStmt is an expression evaluated for its effect.
type ExprStmt struct {
	SpanVal Span
	Expr    Expr
}

func (n *ExprStmt) Span() Span { return n.SpanVal }
func (n *ExprStmt) node()      {}
func (n *ExprStmt) stmt()      {}

// BlockStmt represents { stmts }.
type BlockStmt struct {
	SpanVal Span
	Stmts   []Stmt
}

func (n *BlockStmt) Span() Span { return n.SpanVal }
func (n *BlockStmt) node()      {}
func (n *BlockStmt) stmt()      {}

// IfStmt represents if cond then [else otherwise].
type IfStmt struct {
	SpanVal Span
	Cond    Expr
	Then    Stmt
	Else    Stmt // may be nil
}

func (n *IfStmt) Span() Span { return n.SpanVal }
func (n *IfStmt) node()      {}
func (n *IfStmt) stmt()      {}

// WhileStmt represents while cond body.
type WhileStmt struct {
	SpanVal Span
	Cond    Expr
	Body    Stmt
}

func (n *WhileStmt) Span() Span { return n.SpanVal }
func (n *WhileStmt) node()      {}
func (n *WhileStmt) stmt()      {}

// ReturnStmt represents return [value]. Func is the enclosing function, nil
// at module level.
type ReturnStmt struct {
	SpanVal Span
	Value   Expr // may be nil
	Func    *FuncDecl
}

func (n *ReturnStmt) Span() Span { return n.SpanVal }
func (n *ReturnStmt) node()      {}
func (n *ReturnStmt) stmt()      {}

// FuncStmt is a function definition.
type FuncStmt struct {
	SpanVal Span
	Decl    *FuncDecl
}

func (n *FuncStmt) Span() Span { return n.SpanVal }
func (n *FuncStmt) node()      {}
func (n *FuncStmt) stmt()      {}

// ExternStmt declares a host-provided function.
type ExternStmt struct {
	SpanVal Span
	Decl    *FuncDecl
}

func (n *ExternStmt) Span() Span { return n.SpanVal }
func (n *ExternStmt) node()      {}
func (n *ExternStmt) stmt()      {}

// StructStmt is a user type definition.
type StructStmt struct {
	SpanVal Span
	Type    *Type
}

func (n *StructStmt) Span() Span { return n.SpanVal }
func (n *StructStmt) node()      {}
func (n *StructStmt) stmt()      {}

// ImportStmt pulls another module into the compilation.
type ImportStmt struct {
	SpanVal Span
	Path    string
	Module  *Module
}

func (n *ImportStmt) Span() Span { return n.SpanVal }
func (n *ImportStmt) node()      {}
func (n *ImportStmt) stmt()      {}

// ---------------------------------------------------------------------------
// Tree helpers
// ---------------------------------------------------------------------------

// unparen strips any number of enclosing parentheses.
func unparen(e Expr) Expr {
	for {
		p, ok := e.(*ParenExpr)
		if !ok {
			return e
		}
		e = p.Inner
	}
}

// spanOf builds a span from two positions.
func spanOf(start, end Position) Span {
	return Span{Start: start, End: end}
}
