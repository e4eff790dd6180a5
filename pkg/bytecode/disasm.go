package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable bytecode listing for the program.
func (p *Program) Disassemble() string {
	return p.DisassembleWithName("")
}

// DisassembleWithName returns a human-readable bytecode listing with a name header.
func (p *Program) DisassembleWithName(name string) string {
	var sb strings.Builder

	// Header
	if name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	}
	sb.WriteString(fmt.Sprintf("; tut bytecode v%d\n", p.Version))
	sb.WriteString(fmt.Sprintf("; Globals: %d slots\n", p.GlobalSlots))
	sb.WriteString("\n")

	// Constants
	if len(p.Ints) > 0 {
		sb.WriteString("; Ints:\n")
		for i, v := range p.Ints {
			sb.WriteString(fmt.Sprintf(";   [%3d] %d\n", i, v))
		}
	}
	if len(p.Floats) > 0 {
		sb.WriteString("; Floats:\n")
		for i, v := range p.Floats {
			sb.WriteString(fmt.Sprintf(";   [%3d] %g\n", i, v))
		}
	}
	if len(p.Strings) > 0 {
		sb.WriteString("; Strings:\n")
		for i, s := range p.Strings {
			sb.WriteString(fmt.Sprintf(";   [%3d] %q\n", i, truncate(s, 40)))
		}
	}

	// Functions
	if len(p.FuncPCs) > 0 {
		sb.WriteString("; Functions:\n")
		for i, pc := range p.FuncPCs {
			sb.WriteString(fmt.Sprintf(";   [%3d] %04X %s\n", i, pc, p.funcName(i)))
		}
	}
	if len(p.ExternNames) > 0 {
		sb.WriteString("; Externs:\n")
		for i, n := range p.ExternNames {
			sb.WriteString(fmt.Sprintf(";   [%3d] %s\n", i, n))
		}
	}
	sb.WriteString("\n")

	// Code section
	sb.WriteString("; Code:\n")
	entries := p.funcEntries()
	offset := 0
	for offset < len(p.Code) {
		if fn, ok := entries[offset]; ok {
			sb.WriteString(fmt.Sprintf("%s:\n", fn))
		}
		line, instrLen := p.disassembleInstruction(offset)
		if srcLine, _ := p.GetSourceLocation(uint32(offset)); srcLine > 0 {
			sb.WriteString(fmt.Sprintf("%04X  %-32s ; line %d\n", offset, line, srcLine))
		} else {
			sb.WriteString(fmt.Sprintf("%04X  %s\n", offset, line))
		}
		offset += instrLen
	}

	return sb.String()
}

// DisassembleInstruction returns a human-readable representation of a single instruction.
func (p *Program) DisassembleInstruction(offset int) string {
	line, _ := p.disassembleInstruction(offset)
	return line
}

// DisassembleToLines returns the disassembly as a slice of lines.
func (p *Program) DisassembleToLines() []string {
	var lines []string
	offset := 0
	for offset < len(p.Code) {
		line, instrLen := p.disassembleInstruction(offset)
		lines = append(lines, fmt.Sprintf("%04X  %s", offset, line))
		offset += instrLen
	}
	return lines
}

// InstructionCount returns the number of instructions in the program.
func (p *Program) InstructionCount() int {
	count := 0
	offset := 0
	for offset < len(p.Code) {
		offset += Opcode(p.Code[offset]).InstructionLen()
		count++
	}
	return count
}

// disassembleInstruction disassembles a single instruction at the given offset.
// Returns the formatted string and the instruction length.
func (p *Program) disassembleInstruction(offset int) (string, int) {
	if offset >= len(p.Code) {
		return "<end of code>", 0
	}

	op := Opcode(p.Code[offset])
	info := GetOpcodeInfo(op)
	instrLen := 1 + info.OperandLen()
	if offset+instrLen > len(p.Code) {
		return fmt.Sprintf("%s <truncated>", info.Name), len(p.Code) - offset
	}

	switch op {
	case OpPushInt:
		idx := p.ReadU32(offset + 1)
		if int(idx) < len(p.Ints) {
			return fmt.Sprintf("PUSHINT %d ; %d", idx, p.Ints[idx]), instrLen
		}
	case OpPushFloat:
		idx := p.ReadU32(offset + 1)
		if int(idx) < len(p.Floats) {
			return fmt.Sprintf("PUSHFLOAT %d ; %g", idx, p.Floats[idx]), instrLen
		}
	case OpPushStr:
		idx := p.ReadU32(offset + 1)
		if int(idx) < len(p.Strings) {
			return fmt.Sprintf("PUSHSTR %d ; %q", idx, truncate(p.Strings[idx], 20)), instrLen
		}
	case OpPushFunc:
		idx := p.ReadU32(offset + 1)
		return fmt.Sprintf("PUSHFUNC %d ; %s", idx, p.funcName(int(idx))), instrLen
	case OpPushExtern:
		idx := p.ReadU32(offset + 1)
		name := ""
		if int(idx) < len(p.ExternNames) {
			name = p.ExternNames[idx]
		}
		return fmt.Sprintf("PUSHEXTERN %d ; %s", idx, name), instrLen
	case OpGoto, OpGotoFalse:
		return fmt.Sprintf("%s -> %04X", info.Name, p.ReadU32(offset+1)), instrLen
	}

	if len(info.Operands) == 0 {
		return info.Name, instrLen
	}

	// Format operands generically
	operands := make([]string, 0, len(info.Operands))
	pos := offset + 1
	for _, k := range info.Operands {
		switch k {
		case OperandU16:
			operands = append(operands, fmt.Sprintf("%d", p.ReadU16(pos)))
		case OperandU32:
			operands = append(operands, fmt.Sprintf("%d", p.ReadU32(pos)))
		case OperandI32:
			operands = append(operands, fmt.Sprintf("%d", p.ReadI32(pos)))
		}
		pos += k.Width()
	}
	return fmt.Sprintf("%s %s", info.Name, strings.Join(operands, " ")), instrLen
}

func (p *Program) funcName(idx int) string {
	if idx >= 0 && idx < len(p.FuncNames) {
		return p.FuncNames[idx]
	}
	return ""
}

// funcEntries maps entry pcs to function names for listing labels.
func (p *Program) funcEntries() map[int]string {
	m := make(map[int]string, len(p.FuncPCs))
	for i, pc := range p.FuncPCs {
		if pc >= 0 {
			m[int(pc)] = p.funcName(i)
		}
	}
	return m
}

func truncate(s string, n int) string {
	if len(s) > n {
		s = s[:n-3] + "..."
	}
	s = strings.ReplaceAll(s, "\n", "\\n")
	return strings.ReplaceAll(s, "\t", "\\t")
}
