package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Version is the current program format version.
// Increment when making incompatible changes to the instruction set.
const Version uint16 = 1

// SourceLocation maps a bytecode position to a source location for debugging.
type SourceLocation struct {
	Offset uint32 `cbor:"offset"` // Offset in the code buffer
	Line   uint32 `cbor:"line"`   // Source line number (1-based)
	Column uint16 `cbor:"column"` // Source column number (1-based)
}

// Program is a complete compiled program: one flat instruction buffer shared
// by every function, three constant pools and the tables the VM needs to
// resolve function and extern objects.
type Program struct {
	Version uint16 `cbor:"version"`

	// Code section
	Code []byte `cbor:"code"`

	// Constant pools, deduplicated by value.
	Ints    []int32   `cbor:"ints,omitempty"`
	Floats  []float32 `cbor:"floats,omitempty"`
	Strings []string  `cbor:"strings,omitempty"`

	// FuncPCs maps a function index to its entry pc.
	FuncPCs   []int32  `cbor:"func_pcs,omitempty"`
	FuncNames []string `cbor:"func_names,omitempty"`

	// ExternNames maps an extern index to its declared name.
	ExternNames []string `cbor:"extern_names,omitempty"`

	// GlobalSlots is the number of global slots the program addresses.
	GlobalSlots int `cbor:"global_slots"`

	SourceMap []SourceLocation `cbor:"source_map,omitempty"`
}

// NewProgram creates a new empty program with the current version.
func NewProgram() *Program {
	return &Program{
		Version: Version,
		Code:    make([]byte, 0, 256),
	}
}

// AddInt adds an int constant to the pool and returns its index.
// If the constant already exists, returns the existing index.
func (p *Program) AddInt(v int32) uint32 {
	for i, c := range p.Ints {
		if c == v {
			return uint32(i)
		}
	}
	p.Ints = append(p.Ints, v)
	return uint32(len(p.Ints) - 1)
}

// AddFloat adds a float constant to the pool and returns its index.
// Floats are compared by bit pattern so that NaN literals pool correctly.
func (p *Program) AddFloat(v float32) uint32 {
	bits := math.Float32bits(v)
	for i, c := range p.Floats {
		if math.Float32bits(c) == bits {
			return uint32(i)
		}
	}
	p.Floats = append(p.Floats, v)
	return uint32(len(p.Floats) - 1)
}

// AddString adds a string constant to the pool and returns its index.
func (p *Program) AddString(v string) uint32 {
	for i, c := range p.Strings {
		if c == v {
			return uint32(i)
		}
	}
	p.Strings = append(p.Strings, v)
	return uint32(len(p.Strings) - 1)
}

// SetFuncPC records the entry pc of function index idx, growing the table
// as needed.
func (p *Program) SetFuncPC(idx int, name string, pc int) {
	for len(p.FuncPCs) <= idx {
		p.FuncPCs = append(p.FuncPCs, -1)
		p.FuncNames = append(p.FuncNames, "")
	}
	p.FuncPCs[idx] = int32(pc)
	p.FuncNames[idx] = name
}

// SetExternName records the name bound to extern index idx.
func (p *Program) SetExternName(idx int, name string) {
	for len(p.ExternNames) <= idx {
		p.ExternNames = append(p.ExternNames, "")
	}
	p.ExternNames[idx] = name
}

// ExternIndex returns the index of the extern with the given name, or -1.
func (p *Program) ExternIndex(name string) int {
	for i, n := range p.ExternNames {
		if n == name {
			return i
		}
	}
	return -1
}

// FuncIndex returns the index of the first function with the given name,
// or -1. Nested functions may share names, so this is for tooling only.
func (p *Program) FuncIndex(name string) int {
	for i, n := range p.FuncNames {
		if n == name {
			return i
		}
	}
	return -1
}

// Mark records the length of every section of a program.
type Mark struct {
	code, ints, floats, strings, funcs, externs, sourceMap int
	globalSlots                                            int
}

// Mark returns the current extent of the program.
func (p *Program) Mark() Mark {
	return Mark{
		code:        len(p.Code),
		ints:        len(p.Ints),
		floats:      len(p.Floats),
		strings:     len(p.Strings),
		funcs:       len(p.FuncPCs),
		externs:     len(p.ExternNames),
		sourceMap:   len(p.SourceMap),
		globalSlots: p.GlobalSlots,
	}
}

// Rollback discards everything added to the program since m was taken.
func (p *Program) Rollback(m Mark) {
	p.Code = p.Code[:m.code]
	p.Ints = p.Ints[:m.ints]
	p.Floats = p.Floats[:m.floats]
	p.Strings = p.Strings[:m.strings]
	p.FuncPCs = p.FuncPCs[:m.funcs]
	p.FuncNames = p.FuncNames[:m.funcs]
	p.ExternNames = p.ExternNames[:m.externs]
	p.SourceMap = p.SourceMap[:m.sourceMap]
	p.GlobalSlots = m.globalSlots
}

// Emit appends a single-byte opcode to the code section.
func (p *Program) Emit(op Opcode) int {
	offset := len(p.Code)
	p.Code = append(p.Code, byte(op))
	return offset
}

// EmitU16 appends an opcode with one u16 operand.
func (p *Program) EmitU16(op Opcode, a uint16) int {
	offset := p.Emit(op)
	p.Code = binary.LittleEndian.AppendUint16(p.Code, a)
	return offset
}

// EmitU16U16 appends an opcode with two u16 operands.
func (p *Program) EmitU16U16(op Opcode, a, b uint16) int {
	offset := p.EmitU16(op, a)
	p.Code = binary.LittleEndian.AppendUint16(p.Code, b)
	return offset
}

// EmitU32 appends an opcode with one u32 operand.
func (p *Program) EmitU32(op Opcode, a uint32) int {
	offset := p.Emit(op)
	p.Code = binary.LittleEndian.AppendUint32(p.Code, a)
	return offset
}

// EmitI32 appends an opcode with one signed 32-bit operand.
func (p *Program) EmitI32(op Opcode, a int32) int {
	return p.EmitU32(op, uint32(a))
}

// EmitI32U16 appends an opcode with a 32-bit index followed by a u16 count.
func (p *Program) EmitI32U16(op Opcode, a int32, n uint16) int {
	offset := p.EmitU32(op, uint32(a))
	p.Code = binary.LittleEndian.AppendUint16(p.Code, n)
	return offset
}

// EmitU16I32 appends an opcode with a u16 count followed by a signed offset.
func (p *Program) EmitU16I32(op Opcode, n uint16, a int32) int {
	offset := p.EmitU16(op, n)
	p.Code = binary.LittleEndian.AppendUint32(p.Code, uint32(a))
	return offset
}

// Fixup is a handle to a not-yet-known operand inside the code buffer.
type Fixup struct {
	Offset int // Offset of the first operand byte
	Width  int // Operand width in bytes
}

// EmitJump emits a jump instruction with a placeholder target.
// The returned fixup is resolved later with Patch or PatchHere.
func (p *Program) EmitJump(op Opcode) Fixup {
	p.EmitU32(op, 0xFFFFFFFF)
	return Fixup{Offset: len(p.Code) - 4, Width: 4}
}

// Patch writes an absolute target into a previously emitted placeholder.
func (p *Program) Patch(f Fixup, target int) {
	switch f.Width {
	case 2:
		binary.LittleEndian.PutUint16(p.Code[f.Offset:], uint16(target))
	case 4:
		binary.LittleEndian.PutUint32(p.Code[f.Offset:], uint32(target))
	default:
		panic(fmt.Sprintf("bytecode: invalid fixup width %d", f.Width))
	}
}

// PatchHere patches a placeholder to point at the current end of code.
func (p *Program) PatchHere(f Fixup) {
	p.Patch(f, len(p.Code))
}

// CurrentOffset returns the current offset in the code section.
func (p *Program) CurrentOffset() int {
	return len(p.Code)
}

// CodeLen returns the length of the code section.
func (p *Program) CodeLen() int {
	return len(p.Code)
}

// ReadU16 decodes the u16 operand at offset.
func (p *Program) ReadU16(offset int) uint16 {
	return binary.LittleEndian.Uint16(p.Code[offset:])
}

// ReadU32 decodes the u32 operand at offset.
func (p *Program) ReadU32(offset int) uint32 {
	return binary.LittleEndian.Uint32(p.Code[offset:])
}

// ReadI32 decodes the signed 32-bit operand at offset.
func (p *Program) ReadI32(offset int) int32 {
	return int32(binary.LittleEndian.Uint32(p.Code[offset:]))
}

// AddSourceLocation adds a debug source location mapping.
// Consecutive mappings for the same line are collapsed.
func (p *Program) AddSourceLocation(offset uint32, line uint32, column uint16) {
	if n := len(p.SourceMap); n > 0 && p.SourceMap[n-1].Line == line {
		return
	}
	p.SourceMap = append(p.SourceMap, SourceLocation{
		Offset: offset,
		Line:   line,
		Column: column,
	})
}

// GetSourceLocation returns the source location for a bytecode offset.
// Returns line 0, column 0 if no mapping exists.
func (p *Program) GetSourceLocation(offset uint32) (line uint32, column uint16) {
	for i := len(p.SourceMap) - 1; i >= 0; i-- {
		if p.SourceMap[i].Offset <= offset {
			return p.SourceMap[i].Line, p.SourceMap[i].Column
		}
	}
	return 0, 0
}

// Validate checks that every instruction decodes and that every jump target,
// pool index and function index is in range.
func (p *Program) Validate() error {
	offset := 0
	for offset < len(p.Code) {
		op := Opcode(p.Code[offset])
		if !op.IsValid() {
			return fmt.Errorf("invalid opcode 0x%02X at %04X", byte(op), offset)
		}
		if offset+op.InstructionLen() > len(p.Code) {
			return fmt.Errorf("truncated %s at %04X", op, offset)
		}
		switch op {
		case OpGoto, OpGotoFalse:
			if t := p.ReadU32(offset + 1); int(t) > len(p.Code) {
				return fmt.Errorf("%s at %04X: target %04X out of range", op, offset, t)
			}
		case OpPushInt:
			if i := p.ReadU32(offset + 1); int(i) >= len(p.Ints) {
				return fmt.Errorf("PUSHINT at %04X: pool index %d out of range", offset, i)
			}
		case OpPushFloat:
			if i := p.ReadU32(offset + 1); int(i) >= len(p.Floats) {
				return fmt.Errorf("PUSHFLOAT at %04X: pool index %d out of range", offset, i)
			}
		case OpPushStr:
			if i := p.ReadU32(offset + 1); int(i) >= len(p.Strings) {
				return fmt.Errorf("PUSHSTR at %04X: pool index %d out of range", offset, i)
			}
		case OpPushFunc:
			if i := p.ReadU32(offset + 1); int(i) >= len(p.FuncPCs) {
				return fmt.Errorf("PUSHFUNC at %04X: function %d out of range", offset, i)
			}
		case OpPushExtern:
			if i := p.ReadU32(offset + 1); int(i) >= len(p.ExternNames) {
				return fmt.Errorf("PUSHEXTERN at %04X: extern %d out of range", offset, i)
			}
		}
		offset += op.InstructionLen()
	}
	return nil
}
