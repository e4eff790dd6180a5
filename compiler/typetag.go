package compiler

import (
	"strings"
)

// ---------------------------------------------------------------------------
// Type system
// ---------------------------------------------------------------------------

// Kind identifies the variant of a Type.
type Kind uint8

const (
	KindVoid Kind = iota
	KindBool
	KindInt
	KindFloat
	KindStr  // owned text
	KindCStr // borrowed text
	KindRef
	KindFunc
	KindUser
)

var kindNames = [...]string{
	KindVoid:  "void",
	KindBool:  "bool",
	KindInt:   "int",
	KindFloat: "float",
	KindStr:   "str",
	KindCStr:  "cstr",
	KindRef:   "ref",
	KindFunc:  "func",
	KindUser:  "struct",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// Type is a type tag. Only the fields relevant to Kind are meaningful.
//
// Scalar types are shared singletons; user types are identified by name and
// stay unique per symbol table, so a user type referenced before its
// definition is a stub that is completed in place.
type Type struct {
	Kind Kind

	// KindRef: pointee, nil for an unspecified reference.
	Elem *Type

	// KindFunc
	Params  []*Type
	Ret     *Type
	Varargs bool

	// KindUser
	Name    string
	Defined bool
	Members []*Member
	Pos     Position

	slots     int
	finalized bool
}

// Member is a field of a user type. Offset is counted in slots from the
// start of the enclosing value.
type Member struct {
	Name   string
	Offset int
	Type   *Type
	Pos    Position
}

var (
	VoidType  = &Type{Kind: KindVoid}
	BoolType  = &Type{Kind: KindBool}
	IntType   = &Type{Kind: KindInt}
	FloatType = &Type{Kind: KindFloat}
	StrType   = &Type{Kind: KindStr}
	CStrType  = &Type{Kind: KindCStr}
	RefType   = &Type{Kind: KindRef}
)

// Primitive returns the built-in type with the given source name, or nil.
// "ref" yields the unspecified reference.
func Primitive(name string) *Type {
	switch name {
	case "void":
		return VoidType
	case "bool":
		return BoolType
	case "int":
		return IntType
	case "float":
		return FloatType
	case "str":
		return StrType
	case "cstr":
		return CStrType
	case "ref":
		return RefType
	}
	return nil
}

// RefTo returns a reference type to elem. A nil elem yields the unspecified
// reference.
func RefTo(elem *Type) *Type {
	if elem == nil {
		return RefType
	}
	return &Type{Kind: KindRef, Elem: elem}
}

// FuncOf returns a function type.
func FuncOf(params []*Type, ret *Type, varargs bool) *Type {
	if ret == nil {
		ret = VoidType
	}
	return &Type{Kind: KindFunc, Params: params, Ret: ret, Varargs: varargs}
}

// SlotCount returns how many VM stack slots a value of type t occupies.
func SlotCount(t *Type) int {
	if t == nil {
		return 0
	}
	switch t.Kind {
	case KindVoid:
		return 0
	case KindUser:
		if t.finalized {
			return t.slots
		}
		n := 0
		for _, m := range t.Members {
			n += SlotCount(m.Type)
		}
		return n
	default:
		return 1
	}
}

// Member returns the member with the given name, or nil.
func (t *Type) Member(name string) *Member {
	if t == nil || t.Kind != KindUser {
		return nil
	}
	for _, m := range t.Members {
		if m.Name == name {
			return m
		}
	}
	return nil
}

// IsVoid reports whether t is the void type.
func (t *Type) IsVoid() bool {
	return t == nil || t.Kind == KindVoid
}

// IsText reports whether t is str or cstr.
func (t *Type) IsText() bool {
	return t != nil && (t.Kind == KindStr || t.Kind == KindCStr)
}

// String renders the type in source syntax.
func (t *Type) String() string {
	if t == nil {
		return "<untyped>"
	}
	switch t.Kind {
	case KindRef:
		if t.Elem == nil {
			return "ref"
		}
		return "ref-" + t.Elem.String()
	case KindFunc:
		var sb strings.Builder
		sb.WriteString("func(")
		for i, p := range t.Params {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(p.String())
		}
		if t.Varargs {
			if len(t.Params) > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("...")
		}
		sb.WriteString("): ")
		sb.WriteString(t.Ret.String())
		return sb.String()
	case KindUser:
		return t.Name
	default:
		return t.Kind.String()
	}
}

// StructurallyEqual reports whether a and b denote the same type.
//
// User types compare by name. References compare their pointees, with two
// unspecified references equal. Function types need equal return types and
// pairwise assignable parameters; a varargs signature matches any signature
// that supplies at least its fixed parameters.
func StructurallyEqual(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindUser:
		return a.Name == b.Name
	case KindRef:
		if a.Elem == nil || b.Elem == nil {
			return a.Elem == nil && b.Elem == nil
		}
		return StructurallyEqual(a.Elem, b.Elem)
	case KindFunc:
		if !StructurallyEqual(a.Ret, b.Ret) {
			return false
		}
		return paramsMatch(a, b)
	default:
		return true
	}
}

func paramsMatch(a, b *Type) bool {
	switch {
	case a.Varargs == b.Varargs:
		if len(a.Params) != len(b.Params) {
			return false
		}
	case a.Varargs:
		if len(b.Params) < len(a.Params) {
			return false
		}
	default:
		if len(a.Params) < len(b.Params) {
			return false
		}
	}
	n := min(len(a.Params), len(b.Params))
	for i := 0; i < n; i++ {
		if !Assignable(a.Params[i], b.Params[i]) {
			return false
		}
	}
	return true
}

// Assignable reports whether a value of type from may be stored where type
// to is expected. Beyond structural equality it allows str to cstr, an
// unspecified reference to any reference, and a reference to a non-struct
// value to an unspecified reference.
func Assignable(from, to *Type) bool {
	if StructurallyEqual(from, to) {
		return true
	}
	if from == nil || to == nil {
		return false
	}
	if from.Kind == KindStr && to.Kind == KindCStr {
		return true
	}
	if from.Kind == KindRef && to.Kind == KindRef {
		if from.Elem == nil {
			return true
		}
		if to.Elem == nil {
			return from.Elem.Kind != KindUser
		}
	}
	return false
}
