package compiler

import (
	"testing"
)

func TestSlotCountLaw(t *testing.T) {
	inner := &Type{Kind: KindUser, Name: "Inner", Defined: true, Members: []*Member{
		{Name: "a", Type: IntType},
		{Name: "b", Type: FloatType},
	}}
	outer := &Type{Kind: KindUser, Name: "Outer", Defined: true, Members: []*Member{
		{Name: "head", Type: BoolType},
		{Name: "in", Type: inner},
		{Name: "p", Type: RefTo(inner)},
		{Name: "s", Type: StrType},
	}}

	tests := []struct {
		typ  *Type
		want int
	}{
		{VoidType, 0},
		{BoolType, 1},
		{IntType, 1},
		{FloatType, 1},
		{StrType, 1},
		{CStrType, 1},
		{RefType, 1},
		{RefTo(outer), 1},
		{FuncOf([]*Type{IntType, outer}, outer, false), 1},
		{inner, 2},
		{outer, 5},
	}
	for _, tc := range tests {
		if got := SlotCount(tc.typ); got != tc.want {
			t.Errorf("SlotCount(%s) = %d, want %d", tc.typ, got, tc.want)
		}
	}
}

func TestAssignabilityAsymmetry(t *testing.T) {
	point := &Type{Kind: KindUser, Name: "Point", Defined: true, Members: []*Member{{Name: "x", Type: IntType}}}

	tests := []struct {
		from, to *Type
		want     bool
	}{
		{StrType, CStrType, true},
		{CStrType, StrType, false},
		{RefType, RefTo(IntType), true},
		{RefTo(IntType), RefType, true},
		{RefType, RefTo(point), true},
		{RefTo(point), RefType, false},
		{RefTo(IntType), RefTo(FloatType), false},
		{IntType, FloatType, false},
		{IntType, IntType, true},
		{point, point, true},
	}
	for _, tc := range tests {
		if got := Assignable(tc.from, tc.to); got != tc.want {
			t.Errorf("Assignable(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestStructuralEquality(t *testing.T) {
	a := &Type{Kind: KindUser, Name: "A"}
	otherA := &Type{Kind: KindUser, Name: "A"}
	b := &Type{Kind: KindUser, Name: "B"}

	tests := []struct {
		name string
		a, b *Type
		want bool
	}{
		{"same scalar", IntType, IntType, true},
		{"different scalars", IntType, BoolType, false},
		{"str and cstr", StrType, CStrType, false},
		{"user types by name", a, otherA, true},
		{"different user types", a, b, false},
		{"unspecified refs", RefType, RefTo(nil), true},
		{"ref and unspecified ref", RefTo(IntType), RefType, false},
		{"nested refs", RefTo(RefTo(a)), RefTo(RefTo(otherA)), true},
		{"equal funcs", FuncOf([]*Type{IntType}, BoolType, false), FuncOf([]*Type{IntType}, BoolType, false), true},
		{"different returns", FuncOf(nil, IntType, false), FuncOf(nil, FloatType, false), false},
		{"different arity", FuncOf([]*Type{IntType}, VoidType, false), FuncOf(nil, VoidType, false), false},
		{"varargs accepts extra", FuncOf([]*Type{CStrType}, VoidType, true), FuncOf([]*Type{CStrType, IntType}, VoidType, false), true},
		{"varargs needs fixed params", FuncOf([]*Type{CStrType, IntType}, VoidType, true), FuncOf([]*Type{CStrType}, VoidType, false), false},
		{"assignable params", FuncOf([]*Type{StrType}, VoidType, false), FuncOf([]*Type{CStrType}, VoidType, false), true},
	}
	for _, tc := range tests {
		if got := StructurallyEqual(tc.a, tc.b); got != tc.want {
			t.Errorf("%s: StructurallyEqual(%s, %s) = %v, want %v", tc.name, tc.a, tc.b, got, tc.want)
		}
	}
}

func TestPrimitive(t *testing.T) {
	for _, name := range []string{"void", "bool", "int", "float", "str", "cstr", "ref"} {
		typ := Primitive(name)
		if typ == nil {
			t.Errorf("Primitive(%q) = nil", name)
			continue
		}
		if typ.String() != name {
			t.Errorf("Primitive(%q).String() = %q", name, typ.String())
		}
	}
	if Primitive("Point") != nil {
		t.Error("Primitive(Point) should be nil")
	}
}

func TestTypeMember(t *testing.T) {
	point := &Type{Kind: KindUser, Name: "Point", Members: []*Member{
		{Name: "x", Type: IntType},
		{Name: "y", Type: IntType},
	}}
	if m := point.Member("y"); m == nil || m.Name != "y" {
		t.Errorf("Member(y) = %+v", m)
	}
	if point.Member("z") != nil {
		t.Error("Member(z) should be nil")
	}
	if IntType.Member("x") != nil {
		t.Error("scalar types have no members")
	}
}
