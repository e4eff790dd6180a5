package vm

import (
	"fmt"
	"strconv"
)

// Object is one operand stack or global slot. A nil Object is an
// uninitialized slot.
type Object interface {
	String() string
	object()
}

// Bool is a boolean slot.
type Bool bool

// Int is a 32-bit signed integer slot.
type Int int32

// Float is a 32-bit float slot.
type Float float32

// Str is a text slot. It holds both owned (str) and borrowed (cstr) text.
type Str string

// RefArea names the storage a reference points into.
type RefArea uint8

const (
	RefNull RefArea = iota
	RefStack
	RefGlobal
)

// Ref is a reference to a slot on the operand stack or in the globals.
type Ref struct {
	Area  RefArea
	Index int
}

// Null is the null reference.
var Null = Ref{Area: RefNull}

// IsNull reports whether r is the null reference.
func (r Ref) IsNull() bool { return r.Area == RefNull }

// Func is a callable: a compiled function or an extern, by table index.
type Func struct {
	Extern bool
	Index  int
}

func (Bool) object()  {}
func (Int) object()   {}
func (Float) object() {}
func (Str) object()   {}
func (Ref) object()   {}
func (Func) object()  {}

func (b Bool) String() string  { return strconv.FormatBool(bool(b)) }
func (i Int) String() string   { return strconv.FormatInt(int64(i), 10) }
func (f Float) String() string { return strconv.FormatFloat(float64(f), 'g', -1, 32) }
func (s Str) String() string   { return string(s) }

func (r Ref) String() string {
	switch r.Area {
	case RefStack:
		return fmt.Sprintf("&stack[%d]", r.Index)
	case RefGlobal:
		return fmt.Sprintf("&global[%d]", r.Index)
	}
	return "null"
}

func (f Func) String() string {
	if f.Extern {
		return fmt.Sprintf("extern#%d", f.Index)
	}
	return fmt.Sprintf("func#%d", f.Index)
}

// TypeName returns the name of o's slot kind for diagnostics.
func TypeName(o Object) string {
	switch o.(type) {
	case nil:
		return "uninitialized"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Float:
		return "float"
	case Str:
		return "str"
	case Ref:
		return "ref"
	case Func:
		return "func"
	}
	return fmt.Sprintf("%T", o)
}
