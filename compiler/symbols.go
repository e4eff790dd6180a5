package compiler

// ---------------------------------------------------------------------------
// Symbol table
// ---------------------------------------------------------------------------

// FuncKind distinguishes compiled functions from host-provided externs.
type FuncKind uint8

const (
	FuncNormal FuncKind = iota
	FuncExtern
)

// VarDecl is a variable, argument or global. Index is assigned by the layout
// pass: non-negative for globals and locals, negative for arguments.
type VarDecl struct {
	Name  string
	Type  *Type
	Func  *FuncDecl // owning function, nil for globals
	Arg   bool
	Index int
	Scope int
	Pos   Position

	indexed bool
	hidden  bool
}

// IsGlobal reports whether the variable lives in global storage.
func (v *VarDecl) IsGlobal() bool {
	return v.Func == nil
}

// FuncDecl is a function or extern declaration.
type FuncDecl struct {
	Name    string
	Kind    FuncKind
	Ret     *Type
	Args    []*VarDecl
	Varargs bool
	Locals  []*VarDecl
	Nested  []*FuncDecl
	Parent  *FuncDecl
	Index   int // dense per kind
	Body    Stmt
	Pos     Position
	Module  *Module

	// LocalSlots is the total slot count of all locals, set by layout.
	LocalSlots int
	laidOut    bool
	bodyScope  int
	typ        *Type
}

// Type returns the function type of the declaration.
func (f *FuncDecl) Type() *Type {
	if f.typ == nil {
		params := make([]*Type, len(f.Args))
		for i, a := range f.Args {
			params[i] = a.Type
		}
		f.typ = FuncOf(params, f.Ret, f.Varargs)
	}
	return f.typ
}

// ArgSlots returns the total slot count of the fixed arguments.
func (f *FuncDecl) ArgSlots() int {
	n := 0
	for _, a := range f.Args {
		n += SlotCount(a.Type)
	}
	return n
}

// SymbolTable owns every declaration of a compilation: user types, globals,
// top-level functions and externs. It also tracks the function currently
// being parsed or checked and the lexical scope depth.
type SymbolTable struct {
	types     []*Type
	globals   []*VarDecl
	functions []*FuncDecl // top-level normal functions and externs
	all       []*FuncDecl // every normal function, in declaration order
	externs   []*FuncDecl

	funcStack []*FuncDecl
	scope     int

	numFunctions int
	numExterns   int
	nextGlobal   int
}

// NewSymbolTable creates an empty symbol table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{}
}

// CurrentFunc returns the innermost function being processed, or nil at
// module level.
func (st *SymbolTable) CurrentFunc() *FuncDecl {
	if len(st.funcStack) == 0 {
		return nil
	}
	return st.funcStack[len(st.funcStack)-1]
}

// PushFunc makes fn the current function.
func (st *SymbolTable) PushFunc(fn *FuncDecl) {
	st.funcStack = append(st.funcStack, fn)
}

// PopFunc restores the enclosing function.
func (st *SymbolTable) PopFunc() {
	if len(st.funcStack) > 0 {
		st.funcStack = st.funcStack[:len(st.funcStack)-1]
	}
}

// Scope returns the current scope depth. Module level is 0.
func (st *SymbolTable) Scope() int {
	return st.scope
}

// EnterScope opens a nested lexical scope.
func (st *SymbolTable) EnterScope() {
	st.scope++
}

// LeaveScope closes the innermost scope. Variables declared in it stop
// being visible.
func (st *SymbolTable) LeaveScope() {
	vars := st.globals
	if fn := st.CurrentFunc(); fn != nil {
		vars = fn.Locals
	}
	for _, v := range vars {
		if v.Scope >= st.scope && st.scope > 0 {
			v.hidden = true
		}
	}
	if st.scope > 0 {
		st.scope--
	}
}

// DeclareFunction declares a normal function in the current context. Nested
// functions are recorded on their parent.
func (st *SymbolTable) DeclareFunction(name string, ret *Type, pos Position) *FuncDecl {
	fn := &FuncDecl{
		Name:  name,
		Kind:  FuncNormal,
		Ret:   ret,
		Index: st.numFunctions,
		Pos:   pos,
	}
	st.numFunctions++
	if parent := st.CurrentFunc(); parent != nil {
		fn.Parent = parent
		parent.Nested = append(parent.Nested, fn)
	} else {
		st.functions = append(st.functions, fn)
	}
	st.all = append(st.all, fn)
	return fn
}

// DeclareExtern declares a host-provided function. Externs are always
// top-level and indexed separately from normal functions.
func (st *SymbolTable) DeclareExtern(name string, ret *Type, pos Position) *FuncDecl {
	fn := &FuncDecl{
		Name:  name,
		Kind:  FuncExtern,
		Ret:   ret,
		Index: st.numExterns,
		Pos:   pos,
	}
	st.numExterns++
	st.functions = append(st.functions, fn)
	st.externs = append(st.externs, fn)
	return fn
}

// DeclareArgument appends an argument to fn.
func (st *SymbolTable) DeclareArgument(fn *FuncDecl, name string, t *Type, pos Position) *VarDecl {
	v := &VarDecl{
		Name:  name,
		Type:  t,
		Func:  fn,
		Arg:   true,
		Scope: st.scope,
		Pos:   pos,
	}
	fn.Args = append(fn.Args, v)
	fn.typ = nil
	return v
}

// DeclareVariable declares a local of the current function, or a global at
// module level.
func (st *SymbolTable) DeclareVariable(name string, t *Type, pos Position) *VarDecl {
	v := &VarDecl{
		Name:  name,
		Type:  t,
		Scope: st.scope,
		Pos:   pos,
	}
	if fn := st.CurrentFunc(); fn != nil {
		v.Func = fn
		fn.Locals = append(fn.Locals, v)
	} else {
		st.globals = append(st.globals, v)
	}
	return v
}

// RegisterType returns the user type with the given name, creating an
// undefined stub when none exists yet.
func (st *SymbolTable) RegisterType(name string, pos Position) *Type {
	if t := st.GetType(name); t != nil {
		return t
	}
	t := &Type{Kind: KindUser, Name: name, Pos: pos}
	st.types = append(st.types, t)
	return t
}

// DefineType registers name and marks it defined. It returns nil when the
// type already has a definition.
func (st *SymbolTable) DefineType(name string, pos Position) *Type {
	t := st.RegisterType(name, pos)
	if t.Defined {
		return nil
	}
	t.Defined = true
	t.Pos = pos
	return t
}

// GetType returns the user type with the given name, or nil.
func (st *SymbolTable) GetType(name string) *Type {
	for _, t := range st.types {
		if t.Name == name {
			return t
		}
	}
	return nil
}

// GetVarDecl finds the variable visible under name from the current
// function at the given scope depth: the innermost visible local with
// Scope <= scope, then an argument, then a global.
func (st *SymbolTable) GetVarDecl(name string, scope int) *VarDecl {
	if fn := st.CurrentFunc(); fn != nil {
		var best *VarDecl
		for _, v := range fn.Locals {
			if v.Name != name || v.hidden || v.Scope > scope {
				continue
			}
			if best == nil || v.Scope >= best.Scope {
				best = v
			}
		}
		if best != nil {
			return best
		}
		for _, a := range fn.Args {
			if a.Name == name {
				return a
			}
		}
	}
	for i := len(st.globals) - 1; i >= 0; i-- {
		v := st.globals[i]
		if v.Name == name && !v.hidden && v.Scope <= scope {
			return v
		}
	}
	return nil
}

// LookupVar finds name at the current scope depth.
func (st *SymbolTable) LookupVar(name string) *VarDecl {
	return st.GetVarDecl(name, st.scope)
}

// GetFuncDecl finds a function or extern by name: nested functions of the
// current function and its parents first, then top-level declarations.
func (st *SymbolTable) GetFuncDecl(name string) *FuncDecl {
	for fn := st.CurrentFunc(); fn != nil; fn = fn.Parent {
		for _, n := range fn.Nested {
			if n.Name == name {
				return n
			}
		}
	}
	for _, fn := range st.functions {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// Types returns every user type in registration order.
func (st *SymbolTable) Types() []*Type { return st.types }

// Globals returns every global in declaration order.
func (st *SymbolTable) Globals() []*VarDecl { return st.globals }

// Functions returns the top-level functions and externs.
func (st *SymbolTable) Functions() []*FuncDecl { return st.functions }

// AllFunctions returns every normal function, nested ones included, in
// declaration order.
func (st *SymbolTable) AllFunctions() []*FuncDecl { return st.all }

// Externs returns the extern declarations indexed by extern index.
func (st *SymbolTable) Externs() []*FuncDecl { return st.externs }

// NumFunctions returns the number of normal functions declared.
func (st *SymbolTable) NumFunctions() int { return st.numFunctions }

// NumExterns returns the number of externs declared.
func (st *SymbolTable) NumExterns() int { return st.numExterns }

// GlobalSlots returns the number of global slots assigned so far.
func (st *SymbolTable) GlobalSlots() int { return st.nextGlobal }
