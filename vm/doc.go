// Package vm implements the tut bytecode interpreter.
//
// The machine has three storage areas: an operand stack of Object slots, a
// fixed array of global slots and a stack of return frames. A compiled
// function runs with fp pointing just above its arguments; arguments are
// addressed at negative offsets from fp and locals at non-negative ones.
// Aggregates occupy consecutive slots and are copied slot by slot.
//
// Externs are native Go callbacks bound by index. See ExternFunc for the
// calling convention.
package vm
