package compiler

import (
	"github.com/chazu/tut/vm"
)

// Bind installs fn for the extern declared as name. Names that do not denote
// an extern are ignored, so a host may offer a superset library.
func Bind(table *SymbolTable, machine *vm.VM, name string, fn vm.ExternFunc) bool {
	for _, ext := range table.Externs() {
		if ext.Name == name && ext.Kind == FuncExtern {
			return machine.Bind(ext.Index, fn)
		}
	}
	return false
}

// BindLibrary binds every entry of lib that table declares as an extern and
// returns how many were bound.
func BindLibrary(table *SymbolTable, machine *vm.VM, lib map[string]vm.ExternFunc) int {
	bound := 0
	for name, fn := range lib {
		if Bind(table, machine, name, fn) {
			bound++
		}
	}
	return bound
}
