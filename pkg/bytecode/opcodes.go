package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Constants (0x00-0x0F)
	// ========================================================================

	OpHalt       Opcode = 0x00 // Stop execution
	OpPushTrue   Opcode = 0x01 // Push Bool true
	OpPushFalse  Opcode = 0x02 // Push Bool false
	OpPushNull   Opcode = 0x03 // Push a null Ref
	OpPushInt    Opcode = 0x04 // Push int constant: OpPushInt <pool:u32>
	OpPushFloat  Opcode = 0x05 // Push float constant: OpPushFloat <pool:u32>
	OpPushStr    Opcode = 0x06 // Push string constant: OpPushStr <pool:u32>
	OpPushFunc   Opcode = 0x07 // Push function object: OpPushFunc <index:u32>
	OpPushExtern Opcode = 0x08 // Push extern function object: OpPushExtern <index:u32>

	// ========================================================================
	// Stack shape (0x10-0x1F)
	// ========================================================================

	OpPush Opcode = 0x10 // Reserve n uninitialized slots: OpPush <n:u16>
	OpPop  Opcode = 0x11 // Drop n slots: OpPop <n:u16>
	OpMove Opcode = 0x12 // Move top n slots down over m slots: OpMove <n:u16> <m:u16>

	// ========================================================================
	// Globals (0x20-0x2F)
	// ========================================================================

	OpGetGlobal  Opcode = 0x20 // Push one global slot: OpGetGlobal <index:u32>
	OpGetGlobalN Opcode = 0x21 // Push n global slots: OpGetGlobalN <index:u32> <n:u16>
	OpSetGlobal  Opcode = 0x22 // Pop one slot into a global: OpSetGlobal <index:u32>
	OpSetGlobalN Opcode = 0x23 // Pop n slots into globals: OpSetGlobalN <index:u32> <n:u16>

	// ========================================================================
	// Locals and arguments, frame-relative (0x30-0x3F)
	// ========================================================================

	OpGetLocal  Opcode = 0x30 // Push stack[fp+i]: OpGetLocal <index:i32>
	OpGetLocalN Opcode = 0x31 // Push n slots from fp+i: OpGetLocalN <index:i32> <n:u16>
	OpSetLocal  Opcode = 0x32 // Pop one slot into fp+i: OpSetLocal <index:i32>
	OpSetLocalN Opcode = 0x33 // Pop n slots into fp+i: OpSetLocalN <index:i32> <n:u16>

	// ========================================================================
	// References (0x40-0x4F)
	// ========================================================================

	OpMakeRefGlobal Opcode = 0x40 // Push reference to a global slot: <index:u32>
	OpMakeRefLocal  Opcode = 0x41 // Push reference to stack[fp+i]: <index:i32>
	OpOffsetRef     Opcode = 0x42 // Pop reference, push it moved by off slots: <off:i32>
	OpGetRef        Opcode = 0x43 // Pop reference, push n slots at ref+off: <n:u16> <off:i32>
	OpSetRef        Opcode = 0x44 // Pop reference, pop n slots into ref+off: <n:u16> <off:i32>

	// ========================================================================
	// Integer arithmetic and comparison (0x50-0x5F)
	// ========================================================================

	OpAddI Opcode = 0x50 // Pop two ints, push sum
	OpSubI Opcode = 0x51 // Pop two ints, push a - b where b is TOS
	OpMulI Opcode = 0x52 // Pop two ints, push product
	OpDivI Opcode = 0x53 // Pop two ints, push quotient
	OpLtI  Opcode = 0x54 // Pop two ints, push a < b
	OpGtI  Opcode = 0x55 // Pop two ints, push a > b
	OpLteI Opcode = 0x56 // Pop two ints, push a <= b
	OpGteI Opcode = 0x57 // Pop two ints, push a >= b
	OpEqI  Opcode = 0x58 // Pop two ints, push a == b
	OpNegI Opcode = 0x59 // Negate int on top of stack

	// ========================================================================
	// Float arithmetic and comparison (0x60-0x6F)
	// ========================================================================

	OpAddF Opcode = 0x60
	OpSubF Opcode = 0x61
	OpMulF Opcode = 0x62
	OpDivF Opcode = 0x63
	OpLtF  Opcode = 0x64
	OpGtF  Opcode = 0x65
	OpLteF Opcode = 0x66
	OpGteF Opcode = 0x67
	OpEqF  Opcode = 0x68
	OpNegF Opcode = 0x69

	// ========================================================================
	// Logic, equality and conversion (0x70-0x7F)
	// ========================================================================

	OpAnd  Opcode = 0x70 // Pop two bools, push a && b
	OpOr   Opcode = 0x71 // Pop two bools, push a || b
	OpNot  Opcode = 0x72 // Logical NOT of the bool on top of stack
	OpEqS  Opcode = 0x73 // Pop two strings, push textual equality
	OpEqR  Opcode = 0x74 // Pop two references, push identity equality
	OpEqB  Opcode = 0x75 // Pop two bools, push equality
	OpIToF Opcode = 0x76 // Convert int on top of stack to float
	OpFToI Opcode = 0x77 // Convert float on top of stack to int (truncating)

	// ========================================================================
	// Control flow (0x80-0x8F)
	// ========================================================================

	OpGoto      Opcode = 0x80 // Unconditional jump: OpGoto <target:u32>
	OpGotoFalse Opcode = 0x81 // Pop bool, jump if false: OpGotoFalse <target:u32>

	// ========================================================================
	// Calls and returns (0x90-0x9F)
	// ========================================================================

	OpCall    Opcode = 0x90 // Pop callee, call with nargs argument slots: OpCall <nargs:u16>
	OpRet     Opcode = 0x91 // Return without a value
	OpRetVal  Opcode = 0x92 // Return the single slot on top of stack
	OpRetValN Opcode = 0x93 // Return the top n slots: OpRetValN <n:u16>
)

// OperandKind describes the encoding of a single instruction operand.
// All multi-byte operands are little-endian.
type OperandKind uint8

const (
	OperandU16 OperandKind = iota
	OperandU32
	OperandI32
)

// Width returns the encoded size of the operand in bytes.
func (k OperandKind) Width() int {
	if k == OperandU16 {
		return 2
	}
	return 4
}

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name      string        // Human-readable name
	StackPop  int           // How many slots popped from stack (-1 = variable)
	StackPush int           // How many slots pushed to stack (-1 = variable)
	Operands  []OperandKind // Operand layout following the opcode byte
}

// OperandLen returns the number of operand bytes following the opcode.
func (i OpcodeInfo) OperandLen() int {
	n := 0
	for _, k := range i.Operands {
		n += k.Width()
	}
	return n
}

var (
	noOperands = []OperandKind(nil)
	u16        = []OperandKind{OperandU16}
	u32        = []OperandKind{OperandU32}
	i32        = []OperandKind{OperandI32}
	u32u16     = []OperandKind{OperandU32, OperandU16}
	i32u16     = []OperandKind{OperandI32, OperandU16}
	u16u16     = []OperandKind{OperandU16, OperandU16}
	u16i32     = []OperandKind{OperandU16, OperandI32}
)

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Constants
	OpHalt:       {"HALT", 0, 0, noOperands},
	OpPushTrue:   {"PUSHTRUE", 0, 1, noOperands},
	OpPushFalse:  {"PUSHFALSE", 0, 1, noOperands},
	OpPushNull:   {"PUSHNULL", 0, 1, noOperands},
	OpPushInt:    {"PUSHINT", 0, 1, u32},
	OpPushFloat:  {"PUSHFLOAT", 0, 1, u32},
	OpPushStr:    {"PUSHSTR", 0, 1, u32},
	OpPushFunc:   {"PUSHFUNC", 0, 1, u32},
	OpPushExtern: {"PUSHEXTERN", 0, 1, u32},

	// Stack shape
	OpPush: {"PUSH", 0, -1, u16},
	OpPop:  {"POP", -1, 0, u16},
	OpMove: {"MOVE", -1, -1, u16u16},

	// Globals
	OpGetGlobal:  {"GETGLOBAL", 0, 1, u32},
	OpGetGlobalN: {"GETGLOBALN", 0, -1, u32u16},
	OpSetGlobal:  {"SETGLOBAL", 1, 0, u32},
	OpSetGlobalN: {"SETGLOBALN", -1, 0, u32u16},

	// Locals
	OpGetLocal:  {"GETLOCAL", 0, 1, i32},
	OpGetLocalN: {"GETLOCALN", 0, -1, i32u16},
	OpSetLocal:  {"SETLOCAL", 1, 0, i32},
	OpSetLocalN: {"SETLOCALN", -1, 0, i32u16},

	// References
	OpMakeRefGlobal: {"MAKEREFGLOBAL", 0, 1, u32},
	OpMakeRefLocal:  {"MAKEREFLOCAL", 0, 1, i32},
	OpOffsetRef:     {"OFFSETREF", 1, 1, i32},
	OpGetRef:        {"GETREF", 1, -1, u16i32},
	OpSetRef:        {"SETREF", -1, 0, u16i32},

	// Integer
	OpAddI: {"ADDI", 2, 1, noOperands},
	OpSubI: {"SUBI", 2, 1, noOperands},
	OpMulI: {"MULI", 2, 1, noOperands},
	OpDivI: {"DIVI", 2, 1, noOperands},
	OpLtI:  {"ILT", 2, 1, noOperands},
	OpGtI:  {"IGT", 2, 1, noOperands},
	OpLteI: {"ILTE", 2, 1, noOperands},
	OpGteI: {"IGTE", 2, 1, noOperands},
	OpEqI:  {"IEQ", 2, 1, noOperands},
	OpNegI: {"INEG", 1, 1, noOperands},

	// Float
	OpAddF: {"ADDF", 2, 1, noOperands},
	OpSubF: {"SUBF", 2, 1, noOperands},
	OpMulF: {"MULF", 2, 1, noOperands},
	OpDivF: {"DIVF", 2, 1, noOperands},
	OpLtF:  {"FLT", 2, 1, noOperands},
	OpGtF:  {"FGT", 2, 1, noOperands},
	OpLteF: {"FLTE", 2, 1, noOperands},
	OpGteF: {"FGTE", 2, 1, noOperands},
	OpEqF:  {"FEQ", 2, 1, noOperands},
	OpNegF: {"FNEG", 1, 1, noOperands},

	// Logic, equality, conversion
	OpAnd:  {"LAND", 2, 1, noOperands},
	OpOr:   {"LOR", 2, 1, noOperands},
	OpNot:  {"LNOT", 1, 1, noOperands},
	OpEqS:  {"SEQ", 2, 1, noOperands},
	OpEqR:  {"REQ", 2, 1, noOperands},
	OpEqB:  {"BEQ", 2, 1, noOperands},
	OpIToF: {"ITOF", 1, 1, noOperands},
	OpFToI: {"FTOI", 1, 1, noOperands},

	// Control flow
	OpGoto:      {"GOTO", 0, 0, u32},
	OpGotoFalse: {"GOTOFALSE", 1, 0, u32},

	// Calls
	OpCall:    {"CALL", -1, -1, u16},
	OpRet:     {"RET", -1, 0, noOperands},
	OpRetVal:  {"RETVAL", -1, 1, noOperands},
	OpRetValN: {"RETVALN", -1, -1, u16},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// IsValid reports whether op has an entry in the opcode table.
func (op Opcode) IsValid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandLen returns the number of operand bytes for this opcode.
func (op Opcode) OperandLen() int {
	return GetOpcodeInfo(op).OperandLen()
}

// InstructionLen returns the total length of an instruction (1 + operand bytes).
func (op Opcode) InstructionLen() int {
	return 1 + op.OperandLen()
}

// IsJump returns true if this opcode is a jump instruction.
func (op Opcode) IsJump() bool {
	return op == OpGoto || op == OpGotoFalse
}

// IsReturn returns true if this opcode leaves the current frame.
func (op Opcode) IsReturn() bool {
	return op >= OpRet && op <= OpRetValN
}

// AllOpcodes returns a slice of all defined opcodes.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
