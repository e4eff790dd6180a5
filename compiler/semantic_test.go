package compiler

import (
	"strings"
	"testing"

	"github.com/chazu/tut/pkg/bytecode"
)

func TestSemanticErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"undeclared", `func _main(): int { return y }`, "undeclared identifier 'y'"},
		{"type as value", `func _main(): int { return int }`, "type 'int' used as value"},
		{"mixed arithmetic", `func _main(): int { return 1 + 2.0 }`, "mismatched operand types int and float"},
		{"int condition", `func _main(): int { if 1 { return 1 } return 0 }`, "condition must be bool"},
		{"bad initializer", `func _main(): int { var x: int = 1.5 return x }`, "cannot assign float to variable 'x' of type int"},
		{"cstr to str", `func _main(): int { var s: str = "hi" return 0 }`, "cannot assign cstr to variable 's' of type str"},
		{"assign to literal", `func _main(): int { 1 = 2 return 0 }`, "cannot assign to this expression"},
		{"unused expression", `func _main(): int { var x: int = 1 x + 1 return x }`, "expression evaluated but not used"},
		{"wrong return type", `func _main(): int { return true }`, "cannot return bool from function '_main' returning int"},
		{"missing return value", `func _main(): int { return }`, "missing return value"},
		{"value from void", `func f() { return 1 } func _main(): int { return 0 }`, "function 'f' does not return a value"},
		{"falls off end", `func _main(): int { var x: int = 1 }`, "missing return at end of function '_main'"},
		{"if without else", `func _main(): int { if true { return 1 } }`, "missing return at end"},
		{"arity", `func f(a: int): int { return a } func _main(): int { return f() }`, "wrong number of arguments to 'f': have 0, want 1"},
		{"argument index", `func f(a: int, b: float): int { return a } func _main(): int { return f(1, 2) }`, "argument 2 to 'f': cannot use int as float"},
		{"call non-function", `func _main(): int { var x: int = 1 return x() }`, "cannot call non-function of type int"},
		{"member of scalar", `func _main(): int { var x: int = 1 return x.a }`, "cannot access member 'a' of non-struct type int"},
		{"missing member", `struct P { a: int } var p: P func _main(): int { return p.b }`, "type P has no member 'b'"},
		{"arrow on value", `struct P { a: int } var p: P func _main(): int { return p->a }`, "-> requires a reference to a struct"},
		{"deref unspecified", `func _main(): int { var r: ref = null return *r }`, "cannot dereference an unspecified reference"},
		{"deref scalar", `func _main(): int { var x: int = 1 return *x }`, "cannot dereference non-reference type int"},
		{"ref of temporary", `func _main(): int { var r: ref-int = &(1 + 2) return 0 }`, "cannot take a reference to a temporary value"},
		{"int equals float", `func _main(): int { if 1 == 2.0 { return 1 } return 0 }`, "mismatched operand types int and float for =="},
		{"unrelated refs", `func _main(): int { var a: ref-int = null var b: ref-float = null if a == b { return 1 } return 0 }`, "mismatched operand types ref-int and ref-float for =="},
		{"text arithmetic", `import "std" func _main(): int { var s: str = itos(1) + "x" return 0 }`, "mismatched operand types str and cstr for +"},
		{"struct operands", `struct P { a: int } var p: P func _main(): int { if p == p { return 1 } return 0 }`, "invalid operand types P and P for =="},
		{"not on int", `func _main(): int { if !1 { return 1 } return 0 }`, "invalid operand type int for !"},
		{"negate bool", `func _main(): int { var b: bool = -true return 0 }`, "invalid operand type bool for unary -"},
		{"logic on ints", `func _main(): int { if 1 && 2 { return 1 } return 0 }`, "operator && requires bool operands, got int"},
		{"compare text", `func _main(): int { if "a" < "b" { return 1 } return 0 }`, "operator < not defined on cstr"},
		{"func equality", `func f(): int { return 1 } func _main(): int { if f == f { return 1 } return 0 }`, "operator == not defined on func(): int"},
		{"bad cast", `struct P { a: int; b: int } var p: P func _main(): int { return cast(p, int) }`, "cannot cast P to int"},
		{"void variable", `func _main(): int { var v: void return 0 }`, "variable 'v' has void type"},
		{"return at module level", `return 1 func _main(): int { return 0 }`, "return outside function"},
		{"void vararg", `extern printf(f: cstr, ...) func g() {} func _main(): int { printf("x", g()) return 0 }`, "argument 2 to 'printf' has no value"},
		{"too few varargs", `extern printf(f: cstr, ...) func _main(): int { printf() return 0 }`, "too few arguments to 'printf'"},
		{"nested sees no parent locals", `func _main(): int { var x: int = 1 func g(): int { return x } return g() }`, "undeclared identifier 'x'"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := CompileSource("test", tc.src, nil)
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("error = %q, want it to contain %q", err, tc.want)
			}
			if _, ok := err.(*Error); !ok {
				t.Errorf("error type = %T, want *Error", err)
			}
		})
	}
}

func TestUndeclaredIdentifierEmitsNothing(t *testing.T) {
	prog, _, err := CompileSource("scenario", `func _main(): int { return nope + 1 }`, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(prog.Code) != 0 {
		t.Errorf("program has %d bytes of code after a failed compile, want 0", len(prog.Code))
	}
	ce := err.(*Error)
	if ce.Pos.Line != 1 || ce.Pos.Column != 28 {
		t.Errorf("error at %d:%d, want 1:28", ce.Pos.Line, ce.Pos.Column)
	}
}

func TestMissingEntryFunction(t *testing.T) {
	_, _, err := CompileSource("lib", `func helper(): int { return 1 }`, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	want := "module 'lib' has no entry function '_main'"
	if !strings.Contains(err.Error(), want) {
		t.Errorf("error = %q, want it to contain %q", err, want)
	}
	if ce, ok := err.(*Error); !ok || ce.Module != "lib" {
		t.Errorf("error = %#v, want *Error naming module lib", err)
	}
}

func TestEntryFunctionRules(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`func _main(a: int): int { return a }`, "must not take arguments"},
		{`extern _main(): int`, "has no entry function"},
	}
	for _, tc := range tests {
		_, _, err := CompileSource("test", tc.src, nil)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Errorf("compile %q: error = %v, want it to contain %q", tc.src, err, tc.want)
		}
	}
}

func TestSemanticTypes(t *testing.T) {
	src := `
struct P { a: int; b: float }
var p: P
var r: ref-int = null
var s: cstr
func twice(x: float): float { return x * 2.0 }
func _main(): int {
	var n: int = sizeof(P) + sizeof(p.a)
	var f: float = twice(cast(n, float))
	var pr: ref-P = &p
	var b: float = pr->b
	s = "text"
	return cast(f, int)
}
`
	c := NewCompiler(nil)
	root, err := c.ParseSource("test", src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := c.Compile(root, bytecode.NewProgram()); err != nil {
		t.Fatalf("compile: %v", err)
	}

	main := c.Table.GetFuncDecl("_main")
	body := main.Body.(*BlockStmt)

	n := body.Stmts[0].(*VarStmt).Init.(*BinaryExpr)
	if n.Type() != IntType {
		t.Errorf("sizeof sum type = %s, want int", n.Type())
	}
	if slots := n.Left.(*SizeofExpr).Slots; slots != 2 {
		t.Errorf("sizeof(P) = %d, want 2", slots)
	}
	if slots := n.Right.(*SizeofExpr).Slots; slots != 1 {
		t.Errorf("sizeof(p.a) = %d, want 1", slots)
	}

	call := body.Stmts[1].(*VarStmt).Init.(*CallExpr)
	if call.Type() != FloatType || call.Args[0].Type() != FloatType {
		t.Errorf("twice(cast(n, float)) types = %s, %s", call.Type(), call.Args[0].Type())
	}

	ref := body.Stmts[2].(*VarStmt).Init
	if ref.Type().String() != "ref-P" {
		t.Errorf("&p type = %s, want ref-P", ref.Type())
	}

	member := body.Stmts[3].(*VarStmt).Init.(*MemberExpr)
	if member.Member == nil || member.Member.Offset != 1 || member.Type() != FloatType {
		t.Errorf("pr->b = %+v", member)
	}
}

func TestTerminatingBodies(t *testing.T) {
	srcs := []string{
		`func _main(): int { if true { return 1 } else { return 2 } }`,
		`func _main(): int { while true { } }`,
		`func _main(): int { { return 1 } }`,
		`func _main(): int { if false { return 1 } else if true { return 2 } else { return 3 } }`,
	}
	for _, src := range srcs {
		if _, _, err := CompileSource("test", src, nil); err != nil {
			t.Errorf("compile %q: %v", src, err)
		}
	}
}
