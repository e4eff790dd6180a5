package compiler

import (
	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Semantic Analyzer: layout, name binding and type checking
// ---------------------------------------------------------------------------

// SemanticAnalyzer resolves a parsed module in place. It finalizes types,
// assigns storage indices, binds the identifiers the parser could not bind
// and assigns a type to every expression. Analysis stops at the first error.
type SemanticAnalyzer struct {
	table  *SymbolTable
	module *Module
	log    commonlog.Logger
}

// NewSemanticAnalyzer creates an analyzer over table.
func NewSemanticAnalyzer(table *SymbolTable) *SemanticAnalyzer {
	return &SemanticAnalyzer{
		table: table,
		log:   commonlog.GetLogger("tut.compiler"),
	}
}

// errorAt builds an error at node's start position.
func (s *SemanticAnalyzer) errorAt(node Node, format string, args ...interface{}) *Error {
	return errorAt(s.module.Name, node.Span().Start, format, args...)
}

// Analyze runs every pass over module m.
func (s *SemanticAnalyzer) Analyze(m *Module) error {
	if m.resolved {
		return nil
	}
	s.module = m
	s.log.Debugf("analyzing module %s", m.Name)

	if err := FinalizeTypes(s.table, m.Name); err != nil {
		return err
	}
	AssignStorage(s.table)
	if err := s.bindNames(m); err != nil {
		return err
	}
	for _, stmt := range m.Stmts {
		if err := s.checkStmt(stmt); err != nil {
			return err
		}
	}
	m.resolved = true
	return nil
}

// ---------------------------------------------------------------------------
// Name binding
// ---------------------------------------------------------------------------

// bindNames binds identifiers left unbound by the parser. Such names are
// forward references, so only arguments, globals, functions and types can
// satisfy them.
func (s *SemanticAnalyzer) bindNames(m *Module) error {
	var err error
	var stack []Node
	for _, stmt := range m.Stmts {
		Inspect(stmt, func(n Node) bool {
			if n == nil {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				if _, ok := top.(*FuncStmt); ok {
					s.table.PopFunc()
				}
				return false
			}
			if err != nil {
				return false
			}
			stack = append(stack, n)
			switch n := n.(type) {
			case *FuncStmt:
				s.table.PushFunc(n.Decl)
			case *Ident:
				if !n.Bound() {
					err = s.bind(n)
				}
			}
			return true
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SemanticAnalyzer) bind(id *Ident) error {
	if v := s.table.GetVarDecl(id.Name, 0); v != nil {
		id.Var = v
		return nil
	}
	if fn := s.table.GetFuncDecl(id.Name); fn != nil {
		id.Func = fn
		return nil
	}
	if t := Primitive(id.Name); t != nil {
		id.TypeRef = t
		return nil
	}
	if t := s.table.GetType(id.Name); t != nil {
		id.TypeRef = t
		return nil
	}
	return s.errorAt(id, "undeclared identifier '%s'", id.Name)
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (s *SemanticAnalyzer) checkStmt(stmt Stmt) error {
	switch n := stmt.(type) {
	case *VarStmt:
		if n.Decl.Type.IsVoid() {
			return s.errorAt(n, "variable '%s' has void type", n.Decl.Name)
		}
		if n.Init == nil {
			return nil
		}
		if err := s.checkExpr(n.Init); err != nil {
			return err
		}
		if !Assignable(n.Init.Type(), n.Decl.Type) {
			return s.errorAt(n.Init, "cannot assign %s to variable '%s' of type %s", n.Init.Type(), n.Decl.Name, n.Decl.Type)
		}

	case *AssignStmt:
		if err := s.checkExpr(n.Target); err != nil {
			return err
		}
		if err := s.checkExpr(n.Value); err != nil {
			return err
		}
		if _, ok := resolveLvalue(n.Target); !ok {
			return s.errorAt(n.Target, "cannot assign to this expression")
		}
		if !Assignable(n.Value.Type(), n.Target.Type()) {
			return s.errorAt(n.Value, "cannot assign %s to %s", n.Value.Type(), n.Target.Type())
		}

	case *ExprStmt:
		if err := s.checkExpr(n.Expr); err != nil {
			return err
		}
		if _, ok := unparen(n.Expr).(*CallExpr); !ok {
			return s.errorAt(n, "expression evaluated but not used")
		}

	case *BlockStmt:
		for _, st := range n.Stmts {
			if err := s.checkStmt(st); err != nil {
				return err
			}
		}

	case *IfStmt:
		if err := s.checkCond(n.Cond); err != nil {
			return err
		}
		if err := s.checkStmt(n.Then); err != nil {
			return err
		}
		if n.Else != nil {
			return s.checkStmt(n.Else)
		}

	case *WhileStmt:
		if err := s.checkCond(n.Cond); err != nil {
			return err
		}
		return s.checkStmt(n.Body)

	case *ReturnStmt:
		return s.checkReturn(n)

	case *FuncStmt:
		fn := n.Decl
		s.table.PushFunc(fn)
		defer s.table.PopFunc()
		if err := s.checkStmt(fn.Body); err != nil {
			return err
		}
		if !fn.Ret.IsVoid() && !terminates(fn.Body) {
			return errorAt(s.module.Name, fn.Pos, "missing return at end of function '%s'", fn.Name)
		}

	case *ExternStmt, *StructStmt, *ImportStmt:
		// declarations only
	}
	return nil
}

func (s *SemanticAnalyzer) checkCond(cond Expr) error {
	if err := s.checkExpr(cond); err != nil {
		return err
	}
	if cond.Type().Kind != KindBool {
		return s.errorAt(cond, "condition must be bool, got %s", cond.Type())
	}
	return nil
}

func (s *SemanticAnalyzer) checkReturn(n *ReturnStmt) error {
	fn := n.Func
	if fn == nil {
		return s.errorAt(n, "return outside function")
	}
	if n.Value == nil {
		if !fn.Ret.IsVoid() {
			return s.errorAt(n, "missing return value in function '%s' returning %s", fn.Name, fn.Ret)
		}
		return nil
	}
	if err := s.checkExpr(n.Value); err != nil {
		return err
	}
	if fn.Ret.IsVoid() {
		return s.errorAt(n.Value, "function '%s' does not return a value", fn.Name)
	}
	if !StructurallyEqual(n.Value.Type(), fn.Ret) {
		return s.errorAt(n.Value, "cannot return %s from function '%s' returning %s", n.Value.Type(), fn.Name, fn.Ret)
	}
	return nil
}

// terminates reports whether control can never fall off the end of stmt.
func terminates(stmt Stmt) bool {
	switch n := stmt.(type) {
	case *ReturnStmt:
		return true
	case *BlockStmt:
		return len(n.Stmts) > 0 && terminates(n.Stmts[len(n.Stmts)-1])
	case *IfStmt:
		return n.Else != nil && terminates(n.Then) && terminates(n.Else)
	case *WhileStmt:
		lit, ok := unparen(n.Cond).(*BoolLiteral)
		return ok && lit.Value
	}
	return false
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// checkExpr infers and checks the type of e and all its subexpressions.
func (s *SemanticAnalyzer) checkExpr(e Expr) error {
	switch n := e.(type) {
	case *BoolLiteral:
		n.setType(BoolType)
	case *IntLiteral:
		n.setType(IntType)
	case *FloatLiteral:
		n.setType(FloatType)
	case *StringLiteral:
		n.setType(CStrType)
	case *NullLiteral:
		n.setType(RefType)

	case *Ident:
		switch {
		case n.Var != nil:
			n.setType(n.Var.Type)
		case n.Func != nil:
			n.setType(n.Func.Type())
		case n.TypeRef != nil:
			return s.errorAt(n, "type '%s' used as value", n.Name)
		default:
			return s.errorAt(n, "undeclared identifier '%s'", n.Name)
		}

	case *ParenExpr:
		if err := s.checkExpr(n.Inner); err != nil {
			return err
		}
		n.setType(n.Inner.Type())

	case *UnaryExpr:
		return s.checkUnary(n)

	case *BinaryExpr:
		return s.checkBinary(n)

	case *MemberExpr:
		return s.checkMember(n)

	case *CallExpr:
		return s.checkCall(n)

	case *CastExpr:
		if err := s.checkExpr(n.Value); err != nil {
			return err
		}
		from, to := n.Value.Type(), n.Target
		numeric := (from.Kind == KindInt || from.Kind == KindFloat) && (to.Kind == KindInt || to.Kind == KindFloat)
		if to.IsVoid() || (!numeric && SlotCount(from) != SlotCount(to)) {
			return s.errorAt(n, "cannot cast %s to %s", from, to)
		}
		n.setType(to)

	case *SizeofExpr:
		if id, ok := unparen(n.Value).(*Ident); ok && id.TypeRef != nil {
			n.Slots = SlotCount(id.TypeRef)
		} else {
			if err := s.checkExpr(n.Value); err != nil {
				return err
			}
			n.Slots = SlotCount(n.Value.Type())
		}
		n.setType(IntType)

	default:
		return s.errorAt(e, "unexpected expression")
	}
	return nil
}

func (s *SemanticAnalyzer) checkUnary(n *UnaryExpr) error {
	if err := s.checkExpr(n.Operand); err != nil {
		return err
	}
	t := n.Operand.Type()
	switch n.Op {
	case TokenMinus:
		if t.Kind != KindInt && t.Kind != KindFloat {
			return s.errorAt(n, "invalid operand type %s for unary -", t)
		}
		n.setType(t)
	case TokenBang:
		if t.Kind != KindBool {
			return s.errorAt(n, "invalid operand type %s for !", t)
		}
		n.setType(BoolType)
	case TokenAmp:
		if _, ok := resolveLvalue(n.Operand); !ok {
			return s.errorAt(n, "cannot take a reference to a temporary value")
		}
		n.setType(RefTo(t))
	case TokenStar:
		if t.Kind != KindRef {
			return s.errorAt(n, "cannot dereference non-reference type %s", t)
		}
		if t.Elem == nil {
			return s.errorAt(n, "cannot dereference an unspecified reference")
		}
		n.setType(t.Elem)
	}
	return nil
}

func (s *SemanticAnalyzer) checkBinary(n *BinaryExpr) error {
	if err := s.checkExpr(n.Left); err != nil {
		return err
	}
	if err := s.checkExpr(n.Right); err != nil {
		return err
	}
	lt, rt := n.Left.Type(), n.Right.Type()
	if lt.Kind == KindVoid || lt.Kind == KindUser || rt.Kind == KindVoid || rt.Kind == KindUser {
		return s.errorAt(n, "invalid operand types %s and %s for %s", lt, rt, n.Op)
	}
	if !StructurallyEqual(lt, rt) && !equalityCompatible(n.Op, lt, rt) {
		return s.errorAt(n, "mismatched operand types %s and %s for %s", lt, rt, n.Op)
	}

	switch n.Op {
	case TokenAndAnd, TokenOrOr:
		if lt.Kind != KindBool {
			return s.errorAt(n, "operator %s requires bool operands, got %s", n.Op, lt)
		}
		n.setType(BoolType)
	case TokenPlus, TokenMinus, TokenStar, TokenSlash:
		if lt.Kind != KindInt && lt.Kind != KindFloat {
			return s.errorAt(n, "operator %s not defined on %s", n.Op, lt)
		}
		n.setType(lt)
	case TokenLess, TokenGreater, TokenLessEq, TokenGreaterEq:
		if lt.Kind != KindInt && lt.Kind != KindFloat {
			return s.errorAt(n, "operator %s not defined on %s", n.Op, lt)
		}
		n.setType(BoolType)
	case TokenEq, TokenNotEq:
		if lt.Kind == KindFunc {
			return s.errorAt(n, "operator %s not defined on %s", n.Op, lt)
		}
		n.setType(BoolType)
	default:
		return s.errorAt(n, "unknown binary operator %s", n.Op)
	}
	return nil
}

// equalityCompatible reports whether == or != may mix lt and rt: text of either
// ownership, or references where one side converts to the other (null
// against a typed reference).
func equalityCompatible(op TokenType, lt, rt *Type) bool {
	if op != TokenEq && op != TokenNotEq {
		return false
	}
	if lt.IsText() && rt.IsText() {
		return true
	}
	return lt.Kind == KindRef && rt.Kind == KindRef && (Assignable(lt, rt) || Assignable(rt, lt))
}

func (s *SemanticAnalyzer) checkMember(n *MemberExpr) error {
	if err := s.checkExpr(n.Base); err != nil {
		return err
	}
	t := n.Base.Type()
	if n.Arrow {
		if t.Kind != KindRef || t.Elem == nil || t.Elem.Kind != KindUser {
			return s.errorAt(n, "-> requires a reference to a struct, got %s", t)
		}
		t = t.Elem
	} else if t.Kind != KindUser {
		return s.errorAt(n, "cannot access member '%s' of non-struct type %s", n.Name, t)
	}
	m := t.Member(n.Name)
	if m == nil {
		return s.errorAt(n, "type %s has no member '%s'", t, n.Name)
	}
	n.Member = m
	n.setType(m.Type)
	return nil
}

func (s *SemanticAnalyzer) checkCall(n *CallExpr) error {
	if err := s.checkExpr(n.Callee); err != nil {
		return err
	}
	ft := n.Callee.Type()
	if ft.Kind != KindFunc {
		return s.errorAt(n, "cannot call non-function of type %s", ft)
	}
	name := "function value"
	if id, ok := unparen(n.Callee).(*Ident); ok {
		name = "'" + id.Name + "'"
	}

	if ft.Varargs {
		if len(n.Args) < len(ft.Params) {
			return s.errorAt(n, "too few arguments to %s: have %d, want at least %d", name, len(n.Args), len(ft.Params))
		}
	} else if len(n.Args) != len(ft.Params) {
		return s.errorAt(n, "wrong number of arguments to %s: have %d, want %d", name, len(n.Args), len(ft.Params))
	}

	for i, arg := range n.Args {
		if err := s.checkExpr(arg); err != nil {
			return err
		}
		at := arg.Type()
		if at.IsVoid() {
			return s.errorAt(arg, "argument %d to %s has no value", i+1, name)
		}
		if i < len(ft.Params) && !Assignable(at, ft.Params[i]) {
			return s.errorAt(arg, "argument %d to %s: cannot use %s as %s", i+1, name, at, ft.Params[i])
		}
	}
	n.setType(ft.Ret)
	return nil
}
