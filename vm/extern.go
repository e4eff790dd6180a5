package vm

// ExternFunc is a native callback bound to an extern declaration. args holds
// the argument slots in call order; it is a VM-owned copy, never a view of
// the live stack, so the callback may push freely. The callback pushes its
// results with Push and returns how many slots it pushed.
type ExternFunc func(m *VM, args []Object) int

// Bind installs fn at extern index idx. It reports false when idx is not an
// extern of the program.
func (m *VM) Bind(idx int, fn ExternFunc) bool {
	if idx < 0 || idx >= len(m.externs) {
		return false
	}
	m.externs[idx] = fn
	return true
}

// BindByName installs fn for the extern the program declares as name.
// Unknown names are ignored and reported as false.
func (m *VM) BindByName(name string, fn ExternFunc) bool {
	return m.Bind(m.prog.ExternIndex(name), fn)
}

// BindLibrary binds every entry of lib whose name the program declares as an
// extern and returns how many were bound.
func (m *VM) BindLibrary(lib map[string]ExternFunc) int {
	bound := 0
	for name, fn := range lib {
		if m.BindByName(name, fn) {
			bound++
		}
	}
	return bound
}

// Unbound returns the names of externs without a callback.
func (m *VM) Unbound() []string {
	var names []string
	for i, fn := range m.externs {
		if fn == nil {
			names = append(names, m.prog.ExternNames[i])
		}
	}
	return names
}

// callExtern runs extern idx over the top nargs slots and replaces them with
// the results the callback pushed.
func (m *VM) callExtern(idx, nargs int) {
	if idx < 0 || idx >= len(m.externs) {
		m.Fail("call of unknown extern %d", idx)
		return
	}
	fn := m.externs[idx]
	if fn == nil {
		m.Fail("extern '%s' is not bound", m.prog.ExternNames[idx])
		return
	}

	if cap(m.argBuf) < nargs {
		m.argBuf = make([]Object, nargs)
	}
	args := m.argBuf[:nargs]
	copy(args, m.stack[m.sp-nargs:m.sp])

	before := m.sp
	n := fn(m, args)
	if m.pc < 0 {
		return
	}
	if n < 0 || m.sp != before+n {
		m.Fail("extern '%s' reported %d results but pushed %d", m.prog.ExternNames[idx], n, m.sp-before)
		return
	}
	base := before - nargs
	copy(m.stack[base:], m.stack[before:m.sp])
	for i := base + n; i < m.sp; i++ {
		m.stack[i] = nil
	}
	m.sp = base + n
}
