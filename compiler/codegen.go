package compiler

import (
	"math"

	"github.com/chazu/tut/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Codegen: Compile resolved AST to bytecode
// ---------------------------------------------------------------------------

// CodeGenerator emits bytecode for resolved modules into a single program.
// Module-level statements of every module are emitted at the start of the
// entry function, after its locals are reserved.
type CodeGenerator struct {
	prog   *bytecode.Program
	table  *SymbolTable
	entry  *FuncDecl
	module *Module
	inits  []Stmt
	err    *Error
}

// NewCodeGenerator creates a generator writing into prog.
func NewCodeGenerator(prog *bytecode.Program, table *SymbolTable, entry *FuncDecl) *CodeGenerator {
	return &CodeGenerator{prog: prog, table: table, entry: entry}
}

// errorf records the first code generation error.
func (g *CodeGenerator) errorf(node Node, format string, args ...interface{}) {
	if g.err != nil {
		return
	}
	name := ""
	if g.module != nil {
		name = g.module.Name
	}
	var pos Position
	if node != nil {
		pos = node.Span().Start
	}
	g.err = errorAt(name, pos, format, args...)
}

// Generate emits every module in order. modules must already be resolved
// and listed with imports first.
func (g *CodeGenerator) Generate(modules []*Module) error {
	for _, m := range modules {
		for _, s := range m.Stmts {
			switch s.(type) {
			case *FuncStmt, *ExternStmt, *StructStmt, *ImportStmt:
			default:
				g.inits = append(g.inits, s)
			}
		}
	}

	start := g.prog.EmitJump(bytecode.OpGoto)
	for _, m := range modules {
		g.module = m
		for _, s := range m.Stmts {
			if fs, ok := s.(*FuncStmt); ok {
				g.genFunc(fs.Decl)
			}
		}
		if g.err != nil {
			return g.err
		}
	}
	if g.err != nil {
		return g.err
	}

	g.prog.Patch(start, int(g.prog.FuncPCs[g.entry.Index]))
	g.prog.GlobalSlots = g.table.GlobalSlots()
	for _, ext := range g.table.Externs() {
		g.prog.SetExternName(ext.Index, ext.Name)
	}
	return nil
}

func (g *CodeGenerator) genFunc(fn *FuncDecl) {
	g.prog.SetFuncPC(fn.Index, fn.Name, g.prog.CodeLen())
	if fn.LocalSlots > 0 {
		g.prog.EmitU16(bytecode.OpPush, g.count(nil, fn.LocalSlots))
	}
	if fn == g.entry {
		current := g.module
		for _, s := range g.inits {
			g.genStmt(s)
		}
		g.module = current
	}
	g.genStmt(fn.Body)
	g.prog.Emit(bytecode.OpRet)
}

// count converts a slot count to an instruction operand.
func (g *CodeGenerator) count(node Node, n int) uint16 {
	if n < 0 || n > math.MaxUint16 {
		g.errorf(node, "value of %d slots is too large", n)
		return 0
	}
	return uint16(n)
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (g *CodeGenerator) genStmt(stmt Stmt) {
	if stmt == nil || g.err != nil {
		return
	}
	pos := stmt.Span().Start
	g.prog.AddSourceLocation(uint32(g.prog.CodeLen()), uint32(pos.Line), uint16(pos.Column))

	switch n := stmt.(type) {
	case *VarStmt:
		if n.Init != nil {
			g.genExpr(n.Init)
			g.store(n, lvalue{Var: n.Decl}, SlotCount(n.Decl.Type))
		}

	case *AssignStmt:
		lv, ok := resolveLvalue(n.Target)
		if !ok {
			g.errorf(n.Target, "cannot assign to this expression")
			return
		}
		g.genExpr(n.Value)
		g.store(n, lv, SlotCount(n.Target.Type()))

	case *ExprStmt:
		g.genExpr(n.Expr)
		if size := SlotCount(n.Expr.Type()); size > 0 {
			g.prog.EmitU16(bytecode.OpPop, g.count(n, size))
		}

	case *BlockStmt:
		for _, s := range n.Stmts {
			g.genStmt(s)
		}

	case *IfStmt:
		g.genExpr(n.Cond)
		skipThen := g.prog.EmitJump(bytecode.OpGotoFalse)
		g.genStmt(n.Then)
		if n.Else == nil {
			g.prog.PatchHere(skipThen)
			return
		}
		skipElse := g.prog.EmitJump(bytecode.OpGoto)
		g.prog.PatchHere(skipThen)
		g.genStmt(n.Else)
		g.prog.PatchHere(skipElse)

	case *WhileStmt:
		top := g.prog.CodeLen()
		g.genExpr(n.Cond)
		exit := g.prog.EmitJump(bytecode.OpGotoFalse)
		g.genStmt(n.Body)
		g.prog.EmitU32(bytecode.OpGoto, uint32(top))
		g.prog.PatchHere(exit)

	case *ReturnStmt:
		if n.Value == nil {
			g.prog.Emit(bytecode.OpRet)
			return
		}
		g.genExpr(n.Value)
		switch size := SlotCount(n.Value.Type()); size {
		case 0:
			g.prog.Emit(bytecode.OpRet)
		case 1:
			g.prog.Emit(bytecode.OpRetVal)
		default:
			g.prog.EmitU16(bytecode.OpRetValN, g.count(n, size))
		}

	case *FuncStmt:
		// Nested functions are laid out inline; execution jumps over them.
		skip := g.prog.EmitJump(bytecode.OpGoto)
		g.genFunc(n.Decl)
		g.prog.PatchHere(skip)

	case *ExternStmt, *StructStmt, *ImportStmt:

	default:
		g.errorf(stmt, "unexpected statement")
	}
}

// store pops size slots into the location described by lv.
func (g *CodeGenerator) store(node Node, lv lvalue, size int) {
	n := g.count(node, size)
	if lv.Var != nil {
		idx := lv.Var.Index + lv.Offset
		switch {
		case lv.Var.IsGlobal() && n == 1:
			g.prog.EmitU32(bytecode.OpSetGlobal, uint32(idx))
		case lv.Var.IsGlobal():
			g.prog.EmitI32U16(bytecode.OpSetGlobalN, int32(idx), n)
		case n == 1:
			g.prog.EmitI32(bytecode.OpSetLocal, int32(idx))
		default:
			g.prog.EmitI32U16(bytecode.OpSetLocalN, int32(idx), n)
		}
		return
	}
	g.genExpr(lv.Ref)
	g.prog.EmitU16I32(bytecode.OpSetRef, n, int32(lv.Offset))
}

// load pushes size slots of v starting at slot offset off.
func (g *CodeGenerator) load(node Node, v *VarDecl, off, size int) {
	n := g.count(node, size)
	idx := v.Index + off
	switch {
	case v.IsGlobal() && n == 1:
		g.prog.EmitU32(bytecode.OpGetGlobal, uint32(idx))
	case v.IsGlobal():
		g.prog.EmitI32U16(bytecode.OpGetGlobalN, int32(idx), n)
	case n == 1:
		g.prog.EmitI32(bytecode.OpGetLocal, int32(idx))
	default:
		g.prog.EmitI32U16(bytecode.OpGetLocalN, int32(idx), n)
	}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (g *CodeGenerator) genExpr(e Expr) {
	if g.err != nil {
		return
	}
	switch n := e.(type) {
	case *BoolLiteral:
		if n.Value {
			g.prog.Emit(bytecode.OpPushTrue)
		} else {
			g.prog.Emit(bytecode.OpPushFalse)
		}

	case *IntLiteral:
		g.prog.EmitU32(bytecode.OpPushInt, g.prog.AddInt(n.Value))

	case *FloatLiteral:
		g.prog.EmitU32(bytecode.OpPushFloat, g.prog.AddFloat(n.Value))

	case *StringLiteral:
		g.prog.EmitU32(bytecode.OpPushStr, g.prog.AddString(n.Value))

	case *NullLiteral:
		g.prog.Emit(bytecode.OpPushNull)

	case *Ident:
		switch {
		case n.Var != nil:
			g.load(n, n.Var, 0, SlotCount(n.Var.Type))
		case n.Func != nil:
			g.genFuncRef(n.Func)
		default:
			g.errorf(n, "'%s' is not a value", n.Name)
		}

	case *ParenExpr:
		g.genExpr(n.Inner)

	case *UnaryExpr:
		g.genUnary(n)

	case *BinaryExpr:
		g.genBinary(n)

	case *MemberExpr:
		g.genMember(n)

	case *CallExpr:
		args := 0
		for _, a := range n.Args {
			g.genExpr(a)
			args += SlotCount(a.Type())
		}
		if id, ok := unparen(n.Callee).(*Ident); ok && id.Func != nil {
			g.genFuncRef(id.Func)
		} else {
			g.genExpr(n.Callee)
		}
		g.prog.EmitU16(bytecode.OpCall, g.count(n, args))

	case *CastExpr:
		g.genExpr(n.Value)
		from, to := n.Value.Type().Kind, n.Target.Kind
		switch {
		case from == KindInt && to == KindFloat:
			g.prog.Emit(bytecode.OpIToF)
		case from == KindFloat && to == KindInt:
			g.prog.Emit(bytecode.OpFToI)
		}

	case *SizeofExpr:
		g.prog.EmitU32(bytecode.OpPushInt, g.prog.AddInt(int32(n.Slots)))

	default:
		g.errorf(e, "unexpected expression")
	}
}

func (g *CodeGenerator) genFuncRef(fn *FuncDecl) {
	if fn.Kind == FuncExtern {
		g.prog.EmitU32(bytecode.OpPushExtern, uint32(fn.Index))
	} else {
		g.prog.EmitU32(bytecode.OpPushFunc, uint32(fn.Index))
	}
}

func (g *CodeGenerator) genUnary(n *UnaryExpr) {
	switch n.Op {
	case TokenMinus:
		g.genExpr(n.Operand)
		if n.Operand.Type().Kind == KindFloat {
			g.prog.Emit(bytecode.OpNegF)
		} else {
			g.prog.Emit(bytecode.OpNegI)
		}
	case TokenBang:
		g.genExpr(n.Operand)
		g.prog.Emit(bytecode.OpNot)
	case TokenStar:
		g.genExpr(n.Operand)
		g.prog.EmitU16I32(bytecode.OpGetRef, g.count(n, SlotCount(n.Type())), 0)
	case TokenAmp:
		g.genRef(n.Operand)
	default:
		g.errorf(n, "unknown unary operator %s", n.Op)
	}
}

// genRef pushes a reference to the storage denoted by e.
func (g *CodeGenerator) genRef(e Expr) {
	lv, ok := resolveLvalue(e)
	if !ok {
		g.errorf(e, "cannot take a reference to a temporary value")
		return
	}
	if lv.Var != nil {
		idx := lv.Var.Index + lv.Offset
		if lv.Var.IsGlobal() {
			g.prog.EmitU32(bytecode.OpMakeRefGlobal, uint32(idx))
		} else {
			g.prog.EmitI32(bytecode.OpMakeRefLocal, int32(idx))
		}
		return
	}
	g.genExpr(lv.Ref)
	if lv.Offset != 0 {
		g.prog.EmitI32(bytecode.OpOffsetRef, int32(lv.Offset))
	}
}

func (g *CodeGenerator) genMember(n *MemberExpr) {
	size := SlotCount(n.Member.Type)
	if lv, ok := resolveLvalue(n); ok {
		if lv.Var != nil {
			g.load(n, lv.Var, lv.Offset, size)
			return
		}
		g.genExpr(lv.Ref)
		g.prog.EmitU16I32(bytecode.OpGetRef, g.count(n, size), int32(lv.Offset))
		return
	}

	// Temporary aggregate: drop the slots above the member, then slide the
	// member down over the slots below it.
	g.genExpr(n.Base)
	off := n.Member.Offset
	if above := SlotCount(n.Base.Type()) - off - size; above > 0 {
		g.prog.EmitU16(bytecode.OpPop, g.count(n, above))
	}
	if off > 0 {
		g.prog.EmitU16U16(bytecode.OpMove, g.count(n, size), g.count(n, off))
	}
}

func (g *CodeGenerator) genBinary(n *BinaryExpr) {
	g.genExpr(n.Left)
	g.genExpr(n.Right)

	kind := n.Left.Type().Kind
	op, ok := binaryOpcode(n.Op, kind)
	if !ok {
		g.errorf(n, "operator %s not defined on %s", n.Op, kind)
		return
	}
	g.prog.Emit(op)
	if n.Op == TokenNotEq {
		g.prog.Emit(bytecode.OpNot)
	}
}

// binaryOpcode selects the instruction for op applied to operands of the
// given kind. != maps to the equality instruction; the caller negates it.
func binaryOpcode(op TokenType, kind Kind) (bytecode.Opcode, bool) {
	switch op {
	case TokenAndAnd:
		return bytecode.OpAnd, kind == KindBool
	case TokenOrOr:
		return bytecode.OpOr, kind == KindBool
	case TokenEq, TokenNotEq:
		switch kind {
		case KindInt:
			return bytecode.OpEqI, true
		case KindFloat:
			return bytecode.OpEqF, true
		case KindBool:
			return bytecode.OpEqB, true
		case KindStr, KindCStr:
			return bytecode.OpEqS, true
		case KindRef:
			return bytecode.OpEqR, true
		}
		return 0, false
	}

	var table map[TokenType]bytecode.Opcode
	switch kind {
	case KindInt:
		table = intOps
	case KindFloat:
		table = floatOps
	}
	code, ok := table[op]
	return code, ok
}

var intOps = map[TokenType]bytecode.Opcode{
	TokenPlus:      bytecode.OpAddI,
	TokenMinus:     bytecode.OpSubI,
	TokenStar:      bytecode.OpMulI,
	TokenSlash:     bytecode.OpDivI,
	TokenLess:      bytecode.OpLtI,
	TokenGreater:   bytecode.OpGtI,
	TokenLessEq:    bytecode.OpLteI,
	TokenGreaterEq: bytecode.OpGteI,
}

var floatOps = map[TokenType]bytecode.Opcode{
	TokenPlus:      bytecode.OpAddF,
	TokenMinus:     bytecode.OpSubF,
	TokenStar:      bytecode.OpMulF,
	TokenSlash:     bytecode.OpDivF,
	TokenLess:      bytecode.OpLtF,
	TokenGreater:   bytecode.OpGtF,
	TokenLessEq:    bytecode.OpLteF,
	TokenGreaterEq: bytecode.OpGteF,
}
