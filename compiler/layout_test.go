package compiler

import (
	"strings"
	"testing"
)

func TestArgumentIndexLaw(t *testing.T) {
	src := `
struct Pair { a: int; b: float }
struct Triple { p: Pair; c: int }
func f(x: int, t: Triple, y: bool, p: Pair): void {}
`
	_, table := parse(t, src)
	if err := FinalizeTypes(table, "test"); err != nil {
		t.Fatalf("FinalizeTypes: %v", err)
	}
	AssignStorage(table)

	fn := table.GetFuncDecl("f")
	slots := []int{1, 3, 1, 2}
	for i, arg := range fn.Args {
		want := 0
		for _, s := range slots[i:] {
			want -= s
		}
		if arg.Index != want {
			t.Errorf("arg %s index = %d, want %d", arg.Name, arg.Index, want)
		}
	}
	if fn.ArgSlots() != 7 {
		t.Errorf("ArgSlots() = %d, want 7", fn.ArgSlots())
	}
}

func TestLocalAndGlobalStorage(t *testing.T) {
	src := `
struct Pair { a: int; b: float }
var g1: int
var g2: Pair
var g3: bool
func f(): void {
	var a: int
	{ var b: Pair }
	{ var c: int }
	var d: bool
}
`
	_, table := parse(t, src)
	if err := FinalizeTypes(table, "test"); err != nil {
		t.Fatalf("FinalizeTypes: %v", err)
	}
	AssignStorage(table)

	globals := map[string]int{"g1": 0, "g2": 1, "g3": 3}
	for _, g := range table.Globals() {
		if g.Index != globals[g.Name] {
			t.Errorf("global %s index = %d, want %d", g.Name, g.Index, globals[g.Name])
		}
	}
	if table.GlobalSlots() != 4 {
		t.Errorf("GlobalSlots() = %d, want 4", table.GlobalSlots())
	}

	fn := table.GetFuncDecl("f")
	locals := map[string]int{"a": 0, "b": 1, "c": 3, "d": 4}
	for _, v := range fn.Locals {
		if v.Index != locals[v.Name] {
			t.Errorf("local %s index = %d, want %d", v.Name, v.Index, locals[v.Name])
		}
	}
	if fn.LocalSlots != 5 {
		t.Errorf("LocalSlots = %d, want 5", fn.LocalSlots)
	}
}

func TestAssignStorageIsIncremental(t *testing.T) {
	table := NewSymbolTable()
	if _, err := ParseString("a", "var x: int var y: int", table); err != nil {
		t.Fatal(err)
	}
	AssignStorage(table)
	if _, err := ParseString("b", "var z: int", table); err != nil {
		t.Fatal(err)
	}
	AssignStorage(table)

	want := []int{0, 1, 2}
	for i, g := range table.Globals() {
		if g.Index != want[i] {
			t.Errorf("global %s index = %d, want %d", g.Name, g.Index, want[i])
		}
	}
}

func TestMemberOffsets(t *testing.T) {
	src := `
struct Inner { a: int; b: float }
struct Outer { flag: bool; in: Inner; tail: int }
`
	_, table := parse(t, src)
	if err := FinalizeTypes(table, "test"); err != nil {
		t.Fatalf("FinalizeTypes: %v", err)
	}

	outer := table.GetType("Outer")
	offsets := map[string]int{"flag": 0, "in": 1, "tail": 3}
	for _, m := range outer.Members {
		if m.Offset != offsets[m.Name] {
			t.Errorf("Outer.%s offset = %d, want %d", m.Name, m.Offset, offsets[m.Name])
		}
	}
	if SlotCount(outer) != 4 {
		t.Errorf("SlotCount(Outer) = %d, want 4", SlotCount(outer))
	}
	if off := table.GetType("Inner").Member("b").Offset; off != 1 {
		t.Errorf("Inner.b offset = %d, want 1", off)
	}
}

func TestFinalizeTypesErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"var p: Missing", "type 'Missing' is used but never defined"},
		{"struct Loop { next: Loop }", "type 'Loop' contains itself"},
		{"struct A { b: B } struct B { a: A }", "contains itself"},
		{"struct V { v: void }", "has void type"},
		{"struct E { }", "type 'E' has no members"},
	}
	for _, tc := range tests {
		table := NewSymbolTable()
		if _, err := ParseString("test", tc.src, table); err != nil {
			t.Fatalf("parse %q: %v", tc.src, err)
		}
		err := FinalizeTypes(table, "test")
		if err == nil {
			t.Errorf("%q: expected error containing %q", tc.src, tc.want)
			continue
		}
		if !strings.Contains(err.Error(), tc.want) {
			t.Errorf("%q: error = %q, want it to contain %q", tc.src, err, tc.want)
		}
	}
}

func TestSelfReferenceThroughRefIsAllowed(t *testing.T) {
	_, table := parse(t, "struct Node { value: int; next: ref-Node }")
	if err := FinalizeTypes(table, "test"); err != nil {
		t.Fatalf("FinalizeTypes: %v", err)
	}
	if n := SlotCount(table.GetType("Node")); n != 2 {
		t.Errorf("SlotCount(Node) = %d, want 2", n)
	}
}
