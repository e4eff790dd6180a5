// Package bytecode defines the instruction set and program container shared by
// the tut compiler and virtual machine.
//
// A Program is one flat instruction buffer holding every compiled function,
// plus three deduplicated constant pools (int, float, string), a function
// index to entry pc table and an extern index to name table. Instructions are
// a one-byte opcode followed by fixed-width little-endian operands.
//
// # Slots
//
// The machine addresses storage in slots. Every scalar (bool, int, float,
// string, reference, function) occupies one slot; a struct occupies the sum of
// its members' slots. Storage opcodes come in single-slot and N-slot forms:
//
//	GETLOCAL  i      push stack[fp+i]
//	GETLOCALN i n    push stack[fp+i .. fp+i+n)
//	SETGLOBAL i      pop into globals[i]
//
// Arguments live below the frame pointer and are addressed with negative
// indices; locals live at and above it.
//
// # Branches
//
// Jumps carry absolute targets. The compiler emits a placeholder with
// EmitJump, keeps the returned Fixup and resolves it with Patch or PatchHere
// once the target is known.
package bytecode
