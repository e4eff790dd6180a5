package compiler

import (
	"strconv"
	"strings"
	"testing"
)

func parse(t *testing.T, src string) (*Module, *SymbolTable) {
	t.Helper()
	table := NewSymbolTable()
	m, err := ParseString("test", src, table)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	return m, table
}

func TestParserDeclarations(t *testing.T) {
	src := `
module shapes;

struct Point { x: int; y: int }

var origin: Point
var count: int = 3

extern puts(s: cstr): void
extern printf(format: cstr, ...): void

func area(w: int, h: int): int {
	return w * h
}
`
	m, table := parse(t, src)

	if m.Name != "shapes" {
		t.Errorf("module name = %q, want %q", m.Name, "shapes")
	}
	if len(m.Stmts) != 6 {
		t.Fatalf("got %d statements, want 6", len(m.Stmts))
	}

	if len(table.Globals()) != 2 {
		t.Errorf("got %d globals, want 2", len(table.Globals()))
	}
	if table.NumExterns() != 2 || table.NumFunctions() != 1 {
		t.Errorf("externs = %d, functions = %d; want 2 and 1", table.NumExterns(), table.NumFunctions())
	}

	point := table.GetType("Point")
	if point == nil || !point.Defined || len(point.Members) != 2 {
		t.Fatalf("Point = %+v", point)
	}
	if table.Globals()[0].Type != point {
		t.Error("origin should have type Point")
	}

	printf := table.GetFuncDecl("printf")
	if printf == nil || printf.Kind != FuncExtern || !printf.Varargs {
		t.Errorf("printf = %+v", printf)
	}

	area := table.GetFuncDecl("area")
	if area == nil || area.Kind != FuncNormal || len(area.Args) != 2 {
		t.Fatalf("area = %+v", area)
	}
	if area.Ret != IntType {
		t.Errorf("area returns %s, want int", area.Ret)
	}
}

func TestParserPrecedence(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"1 * 2 + 3", "((1 * 2) + 3)"},
		{"1 - 2 - 3", "((1 - 2) - 3)"},
		{"a && b == c", "(a && (b == c))"},
		{"a < b || c", "((a < b) || c)"},
		{"-a * b", "((-a) * b)"},
		{"(1 + 2) * 3", "((1 + 2) * 3)"},
	}

	for _, tc := range tests {
		m, _ := parse(t, "var a: int var b: int var c: int var r: int = "+tc.expr)
		v := m.Stmts[len(m.Stmts)-1].(*VarStmt)
		if got := exprString(v.Init); got != tc.want {
			t.Errorf("parse %q = %s, want %s", tc.expr, got, tc.want)
		}
	}
}

func TestParserLineLeadingOperator(t *testing.T) {
	m, _ := parse(t, "var x: int\nvar r: ref-int = &x\n*r = 7\nvar y: int = x *\n\t2\n")
	if len(m.Stmts) != 4 {
		t.Fatalf("got %d statements, want 4", len(m.Stmts))
	}

	v := m.Stmts[1].(*VarStmt)
	if got := exprString(v.Init); got != "(&x)" {
		t.Errorf("r initializer = %s, want (&x)", got)
	}
	a, ok := m.Stmts[2].(*AssignStmt)
	if !ok {
		t.Fatalf("statement 3 = %T, want *AssignStmt", m.Stmts[2])
	}
	if got := exprString(a.Target); got != "(*r)" {
		t.Errorf("assignment target = %s, want (*r)", got)
	}
	y := m.Stmts[3].(*VarStmt)
	if got := exprString(y.Init); got != "(x * 2)" {
		t.Errorf("y initializer = %s, want (x * 2)", got)
	}
}

// exprString renders an expression fully parenthesized.
func exprString(e Expr) string {
	switch n := e.(type) {
	case *IntLiteral:
		return strconv.Itoa(int(n.Value))
	case *Ident:
		return n.Name
	case *ParenExpr:
		return exprString(n.Inner)
	case *UnaryExpr:
		return "(" + opString(n.Op) + exprString(n.Operand) + ")"
	case *BinaryExpr:
		return "(" + exprString(n.Left) + " " + opString(n.Op) + " " + exprString(n.Right) + ")"
	}
	return "?"
}

func opString(op TokenType) string {
	return tokenNames[op]
}

func TestParserBindsEarlierDeclarations(t *testing.T) {
	src := `
var g: int
func f(a: int): int {
	var b: int = a + g
	return b
}
`
	m, table := parse(t, src)
	fs := m.Stmts[1].(*FuncStmt)
	body := fs.Decl.Body.(*BlockStmt)
	init := body.Stmts[0].(*VarStmt).Init.(*BinaryExpr)

	a := init.Left.(*Ident)
	if a.Var == nil || !a.Var.Arg {
		t.Errorf("a should bind to the argument, got %+v", a.Var)
	}
	g := init.Right.(*Ident)
	if g.Var != table.Globals()[0] {
		t.Errorf("g should bind to the global, got %+v", g.Var)
	}
	ret := body.Stmts[1].(*ReturnStmt)
	if ret.Func != fs.Decl {
		t.Error("return should record its enclosing function")
	}
	if b := ret.Value.(*Ident); b.Var != body.Stmts[0].(*VarStmt).Decl {
		t.Error("b should bind to the local")
	}
}

func TestParserLeavesForwardReferencesUnbound(t *testing.T) {
	src := `
func f(): int { return later() + x }
func later(): int { return 1 }
var x: int
`
	m, _ := parse(t, src)
	ret := m.Stmts[0].(*FuncStmt).Decl.Body.(*BlockStmt).Stmts[0].(*ReturnStmt)
	bin := ret.Value.(*BinaryExpr)
	callee := bin.Left.(*CallExpr).Callee.(*Ident)
	if callee.Bound() {
		t.Error("later should not be bound yet")
	}
	if bin.Right.(*Ident).Bound() {
		t.Error("x should not be bound yet")
	}
}

func TestParserScopes(t *testing.T) {
	src := `
func f(x: int): int {
	{ var y: int = 1 }
	{ var y: int = 2 }
	var z: int = x
	{ var z: int = 3 }
	return z
}
`
	m, _ := parse(t, src)
	fn := m.Stmts[0].(*FuncStmt).Decl
	if len(fn.Locals) != 4 {
		t.Fatalf("got %d locals, want 4", len(fn.Locals))
	}
	body := fn.Body.(*BlockStmt)
	outer := body.Stmts[2].(*VarStmt).Decl
	ret := body.Stmts[4].(*ReturnStmt).Value.(*Ident)
	if ret.Var != outer {
		t.Error("return z should bind to the outer z after the inner block closes")
	}
}

func TestParserTypes(t *testing.T) {
	src := `
var r: ref
var ri: ref-int
var rr: ref-ref-float
var fn: func(int, float): bool
var cb: func(cstr, ...)
var p: Later
`
	_, table := parse(t, src)
	want := []string{"ref", "ref-int", "ref-ref-float", "func(int, float): bool", "func(cstr, ...): void", "Later"}
	for i, g := range table.Globals() {
		if got := g.Type.String(); got != want[i] {
			t.Errorf("%s: type = %q, want %q", g.Name, got, want[i])
		}
	}
	if later := table.GetType("Later"); later == nil || later.Defined {
		t.Errorf("Later should be an undefined stub, got %+v", later)
	}
}

func TestParserExternRedeclaration(t *testing.T) {
	src := `
extern strlen(s: cstr): int
extern strlen(s: cstr): int
`
	_, table := parse(t, src)
	if table.NumExterns() != 1 {
		t.Errorf("identical redeclaration should reuse the extern, got %d externs", table.NumExterns())
	}
}

func TestParserNestedFunctions(t *testing.T) {
	src := `
func outer(): int {
	func inner(a: int): int { return a }
	return inner(2)
}
`
	_, table := parse(t, src)
	outer := table.GetFuncDecl("outer")
	if len(outer.Nested) != 1 || outer.Nested[0].Parent != outer {
		t.Fatalf("outer.Nested = %+v", outer.Nested)
	}
	if table.GetFuncDecl("inner") != nil {
		t.Error("inner should not be visible at module level")
	}
	if len(table.AllFunctions()) != 2 {
		t.Errorf("AllFunctions() = %d, want 2", len(table.AllFunctions()))
	}
}

func TestParserErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"var x: int var x: int", "redeclaration of 'x'"},
		{"func f(a: int) { var a: int }", "redeclaration of 'a'"},
		{"func f() {} func f() {}", "multiple declaration of function 'f'"},
		{"func f(a: int, ...) {}", "only externs may take variadic"},
		{"func f(a: int, a: int) {}", "duplicate parameter 'a'"},
		{"struct P { a: int } struct P { b: int }", "redefinition of type 'P'"},
		{"struct P { a: int; a: int }", "duplicate member 'a'"},
		{"struct int { a: int }", "cannot redefine built-in type"},
		{"extern e(a: int): int extern e(a: float): int", "different signature"},
		{"func e() {} extern e()", "multiple declaration of function 'e'"},
		{`import "x"`, "imports are not available here"},
		{`func f() { import "x" }`, "only allowed at module level"},
		{"func f() { extern g() }", "only allowed at module level"},
		{"var x: int = ", "unexpected end of input"},
		{"var x: int = 99999999999", "out of range"},
		{"func f() { var x: int = 1", "expected }"},
		{"var x: = 1", "expected type"},
		{"func f(", "expected parameter name"},
	}

	for _, tc := range tests {
		_, err := ParseString("test", tc.src, NewSymbolTable())
		if err == nil {
			t.Errorf("parse %q: expected error containing %q", tc.src, tc.want)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("parse %q: error = %q, want it to contain %q", tc.src, err, tc.want)
		}
	}
}

func TestParserErrorPosition(t *testing.T) {
	_, err := ParseString("pos", "var x: int\nvar x: int", NewSymbolTable())
	if err == nil {
		t.Fatal("expected error")
	}
	ce, ok := err.(*Error)
	if !ok {
		t.Fatalf("error type = %T, want *Error", err)
	}
	if ce.Module != "pos" || ce.Pos.Line != 2 || ce.Pos.Column != 5 {
		t.Errorf("error at %s:%d:%d, want pos:2:5", ce.Module, ce.Pos.Line, ce.Pos.Column)
	}
	if !strings.HasPrefix(ce.Error(), "pos:2:5: ") {
		t.Errorf("Error() = %q", ce.Error())
	}
}
