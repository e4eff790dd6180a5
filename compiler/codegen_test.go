package compiler

import (
	"fmt"
	"strings"
	"testing"

	"github.com/chazu/tut/pkg/bytecode"
)

func compile(t *testing.T, src string) *bytecode.Program {
	t.Helper()
	prog, _, err := CompileSource("test", src, nil)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return prog
}

// opcodes decodes the instruction stream into its opcodes.
func opcodes(p *bytecode.Program) []bytecode.Opcode {
	var ops []bytecode.Opcode
	for pc := 0; pc < len(p.Code); {
		op := bytecode.Opcode(p.Code[pc])
		ops = append(ops, op)
		pc += op.InstructionLen()
	}
	return ops
}

func expectOpcodes(t *testing.T, p *bytecode.Program, want ...bytecode.Opcode) {
	t.Helper()
	got := opcodes(p)
	if len(got) != len(want) {
		t.Fatalf("got %d instructions, want %d\n%s", len(got), len(want), p.Disassemble())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("instruction %d = %s, want %s\n%s", i, got[i], want[i], p.Disassemble())
		}
	}
}

// containsSequence reports whether seq occurs contiguously in ops.
func containsSequence(ops []bytecode.Opcode, seq ...bytecode.Opcode) bool {
	for i := 0; i+len(seq) <= len(ops); i++ {
		match := true
		for j := range seq {
			if ops[i+j] != seq[j] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func TestCodegenCallLayout(t *testing.T) {
	p := compile(t, `
func f(a: int, b: int): int { return b - a }
func _main(): int { return f(100, 200) }
`)
	expectOpcodes(t, p,
		bytecode.OpGoto,
		// f
		bytecode.OpGetLocal, bytecode.OpGetLocal, bytecode.OpSubI, bytecode.OpRetVal, bytecode.OpRet,
		// _main
		bytecode.OpPushInt, bytecode.OpPushInt, bytecode.OpPushFunc, bytecode.OpCall, bytecode.OpRetVal, bytecode.OpRet,
	)

	if p.FuncPCs[0] != 5 {
		t.Errorf("f starts at %d, want 5", p.FuncPCs[0])
	}
	if got := p.ReadU32(1); int32(got) != p.FuncPCs[1] {
		t.Errorf("entry jump targets %d, want _main at %d", got, p.FuncPCs[1])
	}
	if b := p.ReadI32(6); b != -1 {
		t.Errorf("b loaded from %d, want -1", b)
	}
	if a := p.ReadI32(11); a != -2 {
		t.Errorf("a loaded from %d, want -2", a)
	}
	call := int(p.FuncPCs[1]) + 15
	if n := p.ReadU16(call + 1); n != 2 {
		t.Errorf("CALL passes %d slots, want 2", n)
	}
}

func TestCodegenModuleInitializersRunInEntry(t *testing.T) {
	p := compile(t, `
var g: int = 5
func _main(): int {
	var x: int = g
	return x
}
`)
	expectOpcodes(t, p,
		bytecode.OpGoto,
		bytecode.OpPush,
		bytecode.OpPushInt, bytecode.OpSetGlobal,
		bytecode.OpGetGlobal, bytecode.OpSetLocal,
		bytecode.OpGetLocal, bytecode.OpRetVal,
		bytecode.OpRet,
	)
	if p.GlobalSlots != 1 {
		t.Errorf("GlobalSlots = %d, want 1", p.GlobalSlots)
	}
}

func TestCodegenConstantPoolSharing(t *testing.T) {
	p := compile(t, `
var a: int = 7
var b: int = 7
var s: cstr = "dup"
func _main(): int {
	s = "dup"
	return a + b + 7
}
`)
	if len(p.Ints) != 1 {
		t.Errorf("len(Ints) = %d, want 1", len(p.Ints))
	}
	if len(p.Strings) != 1 {
		t.Errorf("len(Strings) = %d, want 1", len(p.Strings))
	}
}

func TestCodegenNotEqualNegatesEquality(t *testing.T) {
	p := compile(t, `func _main(): int { if 1 != 2 { return 1 } return 0 }`)
	if !containsSequence(opcodes(p), bytecode.OpEqI, bytecode.OpNot, bytecode.OpGotoFalse) {
		t.Errorf("expected IEQ LNOT GOTOFALSE\n%s", p.Disassemble())
	}
}

func TestCodegenOperatorSelection(t *testing.T) {
	tests := []struct {
		expr string
		op   bytecode.Opcode
	}{
		{"1 + 2 == 3", bytecode.OpAddI},
		{"1.0 + 2.0 == 3.0", bytecode.OpAddF},
		{"1.0 < 2.0", bytecode.OpLtF},
		{"3 >= 2", bytecode.OpGteI},
		{"true == false", bytecode.OpEqB},
		{`"a" == "b"`, bytecode.OpEqS},
		{"null == null", bytecode.OpEqR},
		{"true && false", bytecode.OpAnd},
		{"true || false", bytecode.OpOr},
		{"-1.5 < 0.0", bytecode.OpNegF},
	}
	for _, tc := range tests {
		p := compile(t, "func _main(): int { if "+tc.expr+" { return 1 } return 0 }")
		if !containsSequence(opcodes(p), tc.op) {
			t.Errorf("%s: %s not emitted\n%s", tc.expr, tc.op, p.Disassemble())
		}
	}
}

func TestCodegenMemberOfTemporary(t *testing.T) {
	p := compile(t, `
struct T { a: int; b: float; c: int }
func mk(): T {
	var t: T
	t.a = 1
	t.b = 2.0
	t.c = 3
	return t
}
func _main(): int {
	var f: float = mk().b
	return cast(f, int)
}
`)
	ops := opcodes(p)
	if !containsSequence(ops, bytecode.OpCall, bytecode.OpPop, bytecode.OpMove, bytecode.OpSetLocal) {
		t.Errorf("expected CALL POP MOVE SETLOCAL\n%s", p.Disassemble())
	}
	if !containsSequence(ops, bytecode.OpGetLocalN, bytecode.OpRetValN) {
		t.Errorf("expected struct return via GETLOCALN RETVALN\n%s", p.Disassemble())
	}
}

func TestCodegenMemberOfVariableIsDirect(t *testing.T) {
	p := compile(t, `
struct T { a: int; b: float }
var g: T
func _main(): int {
	g.a = 4
	return g.a
}
`)
	ops := opcodes(p)
	if containsSequence(ops, bytecode.OpMove) {
		t.Errorf("member of a variable should not need MOVE\n%s", p.Disassemble())
	}
	if !containsSequence(ops, bytecode.OpPushInt, bytecode.OpSetGlobal, bytecode.OpGetGlobal, bytecode.OpRetVal) {
		t.Errorf("expected direct global access\n%s", p.Disassemble())
	}
}

func TestCodegenReferences(t *testing.T) {
	p := compile(t, `
struct P { x: int; y: int }
func _main(): int {
	var p: P
	var r: ref-P = &p
	r->y = 3
	var ry: ref-int = &r->y
	return *ry
}
`)
	ops := opcodes(p)
	for _, op := range []bytecode.Opcode{bytecode.OpMakeRefLocal, bytecode.OpSetRef, bytecode.OpOffsetRef, bytecode.OpGetRef} {
		if !containsSequence(ops, op) {
			t.Errorf("%s not emitted\n%s", op, p.Disassemble())
		}
	}
}

func TestCodegenNestedFunctionIsSkipped(t *testing.T) {
	p := compile(t, `
func _main(): int {
	func inner(): int { return 9 }
	return inner()
}
`)
	// _main: GOTO over inner, inner body, then the call.
	main := int(p.FuncPCs[p.FuncIndex("_main")])
	if op := bytecode.Opcode(p.Code[main]); op != bytecode.OpGoto {
		t.Fatalf("_main begins with %s, want GOTO", op)
	}
	inner := int(p.FuncPCs[p.FuncIndex("inner")])
	if inner != main+5 {
		t.Errorf("inner at %d, want %d", inner, main+5)
	}
	skip := int(p.ReadU32(main + 1))
	if op := bytecode.Opcode(p.Code[skip]); op != bytecode.OpPushFunc {
		t.Errorf("GOTO lands on %s, want PUSHFUNC", op)
	}
}

func TestCodegenExterns(t *testing.T) {
	p := compile(t, `
import "std"
func _main(): int { return strlen("abc") }
`)
	if idx := p.ExternIndex("strlen"); idx < 0 {
		t.Fatalf("ExternNames = %v, missing strlen", p.ExternNames)
	}
	if !containsSequence(opcodes(p), bytecode.OpPushStr, bytecode.OpPushExtern, bytecode.OpCall) {
		t.Errorf("expected PUSHSTR PUSHEXTERN CALL\n%s", p.Disassemble())
	}
}

func TestCodegenUnusedCallResultIsPopped(t *testing.T) {
	p := compile(t, `
func f(): int { return 1 }
func _main(): int { f() return 0 }
`)
	if !containsSequence(opcodes(p), bytecode.OpCall, bytecode.OpPop) {
		t.Errorf("expected CALL POP\n%s", p.Disassemble())
	}
}

func TestCodegenSourceMapAndDisassembly(t *testing.T) {
	p := compile(t, "func _main(): int {\n\treturn 42\n}\n")
	if len(p.SourceMap) == 0 {
		t.Fatal("SourceMap is empty")
	}
	if line, _ := p.GetSourceLocation(uint32(p.FuncPCs[0])); line != 2 {
		t.Errorf("_main entry maps to line %d, want 2", line)
	}
	out := p.Disassemble()
	for _, want := range []string{"_main:", "PUSHINT 0 ; 42", "RETVAL"} {
		if !strings.Contains(out, want) {
			t.Errorf("disassembly missing %q:\n%s", want, out)
		}
	}
	if err := p.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

// oversizedSource declares a struct of 16^4 int slots, one more than an
// instruction operand can count, and uses it after a function that has
// already emitted code and constants.
func oversizedSource() string {
	var b strings.Builder
	elem := "int"
	for level := 0; level < 4; level++ {
		fmt.Fprintf(&b, "struct S%d {", level)
		for i := 0; i < 16; i++ {
			if i > 0 {
				b.WriteString(";")
			}
			fmt.Fprintf(&b, " m%d: %s", i, elem)
		}
		b.WriteString(" }\n")
		elem = fmt.Sprintf("S%d", level)
	}
	b.WriteString("func half(x: float): float { return x * 0.5 }\n")
	b.WriteString("func _main(): int {\n\tvar big: S3\n\treturn 0\n}\n")
	return b.String()
}

func TestCodegenFailureLeavesProgramUntouched(t *testing.T) {
	c := NewCompiler(nil)
	root, err := c.ParseSource("test", oversizedSource())
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}

	prog := bytecode.NewProgram()
	prog.AddInt(9)
	prog.AddString("kept")
	prog.Emit(bytecode.OpHalt)
	before := prog.Mark()

	err = c.Compile(root, prog)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("Compile error = %v, want a too large error", err)
	}
	if prog.Mark() != before {
		t.Errorf("program changed by failed compile:\n%s", prog.Disassemble())
	}
	if prog.CodeLen() != 1 || len(prog.Ints) != 1 || len(prog.Strings) != 1 {
		t.Errorf("code = %d bytes, ints = %v, strings = %v; want the original contents",
			prog.CodeLen(), prog.Ints, prog.Strings)
	}
	if len(prog.Floats) != 0 || len(prog.FuncPCs) != 0 || len(prog.FuncNames) != 0 || len(prog.SourceMap) != 0 {
		t.Errorf("floats = %v, funcs = %v %v, source map = %v; want all empty",
			prog.Floats, prog.FuncPCs, prog.FuncNames, prog.SourceMap)
	}
}
