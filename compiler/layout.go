package compiler

// ---------------------------------------------------------------------------
// Layout: type finalization and storage assignment
// ---------------------------------------------------------------------------

// FinalizeTypes checks every user type in the table and computes member
// offsets and slot counts. Types must be defined, non-empty and must not
// contain themselves by value.
func FinalizeTypes(st *SymbolTable, module string) error {
	for _, t := range st.Types() {
		if t.finalized {
			continue
		}
		if !t.Defined {
			return errorAt(module, t.Pos, "type '%s' is used but never defined", t.Name)
		}
		if len(t.Members) == 0 {
			return errorAt(module, t.Pos, "type '%s' has no members", t.Name)
		}
		for _, m := range t.Members {
			if m.Type.IsVoid() {
				return errorAt(module, m.Pos, "member '%s' of type '%s' has void type", m.Name, t.Name)
			}
		}
	}

	state := make(map[*Type]int) // 0 unvisited, 1 in progress, 2 done
	var visit func(t *Type) *Type
	visit = func(t *Type) *Type {
		switch state[t] {
		case 1:
			return t
		case 2:
			return nil
		}
		state[t] = 1
		for _, m := range t.Members {
			if m.Type.Kind == KindUser {
				if cyc := visit(m.Type); cyc != nil {
					return cyc
				}
			}
		}
		state[t] = 2
		return nil
	}
	for _, t := range st.Types() {
		if t.finalized {
			continue
		}
		if cyc := visit(t); cyc != nil {
			return errorAt(module, cyc.Pos, "type '%s' contains itself", cyc.Name)
		}
	}

	for _, t := range st.Types() {
		finalizeType(t)
	}
	return nil
}

// finalizeType assigns running-sum offsets. Member types are finalized
// first; the acyclicity check guarantees termination.
func finalizeType(t *Type) {
	if t.finalized {
		return
	}
	offset := 0
	for _, m := range t.Members {
		if m.Type.Kind == KindUser {
			finalizeType(m.Type)
		}
		m.Offset = offset
		offset += SlotCount(m.Type)
	}
	t.slots = offset
	t.finalized = true
}

// AssignStorage gives every global, argument and local its storage index.
// Globals are numbered sequentially across the whole table. Arguments get
// negative indices below the frame pointer so that the first argument is the
// farthest from it. Locals are numbered sequentially in declaration order;
// slots are never shared between blocks.
func AssignStorage(st *SymbolTable) {
	for _, g := range st.Globals() {
		if g.indexed {
			continue
		}
		g.Index = st.nextGlobal
		g.indexed = true
		st.nextGlobal += SlotCount(g.Type)
	}

	for _, fn := range st.AllFunctions() {
		if fn.laidOut {
			continue
		}
		below := 0
		for i := len(fn.Args) - 1; i >= 0; i-- {
			below += SlotCount(fn.Args[i].Type)
			fn.Args[i].Index = -below
			fn.Args[i].indexed = true
		}
		next := 0
		for _, v := range fn.Locals {
			v.Index = next
			v.indexed = true
			next += SlotCount(v.Type)
		}
		fn.LocalSlots = next
		fn.laidOut = true
	}
}

// lvalue describes a storage location: either a named variable plus a slot
// offset, or a reference-valued expression plus a slot offset.
type lvalue struct {
	Var    *VarDecl
	Ref    Expr
	Offset int
}

// resolveLvalue walks member chains down to their root. It reports false
// for expressions that do not denote storage. Member offsets must already be
// resolved.
func resolveLvalue(e Expr) (lvalue, bool) {
	switch e := unparen(e).(type) {
	case *Ident:
		if e.Var != nil {
			return lvalue{Var: e.Var}, true
		}
	case *MemberExpr:
		if e.Member == nil {
			return lvalue{}, false
		}
		if e.Arrow {
			return lvalue{Ref: e.Base, Offset: e.Member.Offset}, true
		}
		lv, ok := resolveLvalue(e.Base)
		if !ok {
			return lvalue{}, false
		}
		lv.Offset += e.Member.Offset
		return lv, true
	case *UnaryExpr:
		if e.Op == TokenStar {
			return lvalue{Ref: e.Operand}, true
		}
	}
	return lvalue{}, false
}
