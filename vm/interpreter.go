package vm

import (
	"encoding/binary"
	"math"

	"github.com/chazu/tut/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Interpreter: fetch, decode, execute
// ---------------------------------------------------------------------------

// Step executes one instruction. It does nothing once the VM has halted.
func (m *VM) Step() {
	if m.pc < 0 {
		return
	}
	code := m.prog.Code
	if m.pc >= len(code) {
		m.inst = m.pc
		m.Fail("pc %d out of range", m.pc)
		return
	}
	m.inst = m.pc
	op := bytecode.Opcode(code[m.pc])
	if !op.IsValid() {
		m.Fail("invalid opcode 0x%02X", byte(op))
		return
	}
	if m.pc+op.InstructionLen() > len(code) {
		m.Fail("truncated %s instruction", op)
		return
	}
	if m.Trace {
		m.log.Debugf("%04X %-28s sp=%d fp=%d", m.pc, m.prog.DisassembleInstruction(m.pc), m.sp, m.fp)
	}
	m.pc++

	switch op {
	// ============ Constants ============
	case bytecode.OpHalt:
		m.pc = -1

	case bytecode.OpPushTrue:
		m.Push(Bool(true))

	case bytecode.OpPushFalse:
		m.Push(Bool(false))

	case bytecode.OpPushNull:
		m.Push(Null)

	case bytecode.OpPushInt:
		idx := int(m.readU32())
		if idx >= len(m.prog.Ints) {
			m.Fail("int constant %d out of range", idx)
			return
		}
		m.Push(Int(m.prog.Ints[idx]))

	case bytecode.OpPushFloat:
		idx := int(m.readU32())
		if idx >= len(m.prog.Floats) {
			m.Fail("float constant %d out of range", idx)
			return
		}
		m.Push(Float(m.prog.Floats[idx]))

	case bytecode.OpPushStr:
		idx := int(m.readU32())
		if idx >= len(m.prog.Strings) {
			m.Fail("string constant %d out of range", idx)
			return
		}
		m.Push(Str(m.prog.Strings[idx]))

	case bytecode.OpPushFunc:
		m.Push(Func{Index: int(m.readU32())})

	case bytecode.OpPushExtern:
		m.Push(Func{Extern: true, Index: int(m.readU32())})

	// ============ Stack shape ============
	case bytecode.OpPush:
		n := int(m.readU16())
		if m.sp+n > len(m.stack) {
			m.Fail("stack overflow")
			return
		}
		for i := m.sp; i < m.sp+n; i++ {
			m.stack[i] = nil
		}
		m.sp += n

	case bytecode.OpPop:
		n := int(m.readU16())
		if n > m.sp {
			m.Fail("stack underflow")
			return
		}
		m.sp -= n

	case bytecode.OpMove:
		n := int(m.readU16())
		d := int(m.readU16())
		if n+d > m.sp {
			m.Fail("stack underflow")
			return
		}
		copy(m.stack[m.sp-n-d:], m.stack[m.sp-n:m.sp])
		m.sp -= d

	// ============ Globals ============
	case bytecode.OpGetGlobal:
		m.getSlots(m.globals, int(m.readU32()), 1, "global")

	case bytecode.OpGetGlobalN:
		idx := int(m.readU32())
		m.getSlots(m.globals, idx, int(m.readU16()), "global")

	case bytecode.OpSetGlobal:
		m.setSlots(m.globals, len(m.globals), int(m.readU32()), 1, "global")

	case bytecode.OpSetGlobalN:
		idx := int(m.readU32())
		m.setSlots(m.globals, len(m.globals), idx, int(m.readU16()), "global")

	// ============ Locals ============
	case bytecode.OpGetLocal:
		m.getSlots(m.stack[:m.sp], m.fp+int(m.readI32()), 1, "local")

	case bytecode.OpGetLocalN:
		idx := m.fp + int(m.readI32())
		m.getSlots(m.stack[:m.sp], idx, int(m.readU16()), "local")

	case bytecode.OpSetLocal:
		m.setSlots(m.stack, m.sp-1, m.fp+int(m.readI32()), 1, "local")

	case bytecode.OpSetLocalN:
		idx := m.fp + int(m.readI32())
		n := int(m.readU16())
		m.setSlots(m.stack, m.sp-n, idx, n, "local")

	// ============ References ============
	case bytecode.OpMakeRefGlobal:
		m.Push(Ref{Area: RefGlobal, Index: int(m.readU32())})

	case bytecode.OpMakeRefLocal:
		m.Push(Ref{Area: RefStack, Index: m.fp + int(m.readI32())})

	case bytecode.OpOffsetRef:
		off := int(m.readI32())
		r, ok := m.popRef()
		if !ok {
			return
		}
		if r.IsNull() {
			m.Fail("offset of null reference")
			return
		}
		r.Index += off
		m.Push(r)

	case bytecode.OpGetRef:
		n := int(m.readU16())
		off := int(m.readI32())
		r, ok := m.popRef()
		if !ok {
			return
		}
		area, limit := m.refArea(r)
		if area == nil {
			return
		}
		m.getSlots(area[:limit], r.Index+off, n, "reference")

	case bytecode.OpSetRef:
		n := int(m.readU16())
		off := int(m.readI32())
		r, ok := m.popRef()
		if !ok {
			return
		}
		area, limit := m.refArea(r)
		if area == nil {
			return
		}
		if r.Area == RefStack {
			limit = m.sp - n
		}
		m.setSlots(area, limit, r.Index+off, n, "reference")

	// ============ Integer arithmetic ============
	case bytecode.OpAddI:
		a, b, ok := m.popInts()
		if ok {
			m.Push(a + b)
		}

	case bytecode.OpSubI:
		a, b, ok := m.popInts()
		if ok {
			m.Push(a - b)
		}

	case bytecode.OpMulI:
		a, b, ok := m.popInts()
		if ok {
			m.Push(a * b)
		}

	case bytecode.OpDivI:
		a, b, ok := m.popInts()
		if !ok {
			return
		}
		if b == 0 {
			m.Fail("integer division by zero")
			return
		}
		m.Push(a / b)

	case bytecode.OpLtI:
		a, b, ok := m.popInts()
		if ok {
			m.Push(Bool(a < b))
		}

	case bytecode.OpGtI:
		a, b, ok := m.popInts()
		if ok {
			m.Push(Bool(a > b))
		}

	case bytecode.OpLteI:
		a, b, ok := m.popInts()
		if ok {
			m.Push(Bool(a <= b))
		}

	case bytecode.OpGteI:
		a, b, ok := m.popInts()
		if ok {
			m.Push(Bool(a >= b))
		}

	case bytecode.OpEqI:
		a, b, ok := m.popInts()
		if ok {
			m.Push(Bool(a == b))
		}

	case bytecode.OpNegI:
		if a, ok := m.popInt(); ok {
			m.Push(-a)
		}

	// ============ Float arithmetic ============
	case bytecode.OpAddF:
		a, b, ok := m.popFloats()
		if ok {
			m.Push(a + b)
		}

	case bytecode.OpSubF:
		a, b, ok := m.popFloats()
		if ok {
			m.Push(a - b)
		}

	case bytecode.OpMulF:
		a, b, ok := m.popFloats()
		if ok {
			m.Push(a * b)
		}

	case bytecode.OpDivF:
		a, b, ok := m.popFloats()
		if ok {
			m.Push(a / b)
		}

	case bytecode.OpLtF:
		a, b, ok := m.popFloats()
		if ok {
			m.Push(Bool(a < b))
		}

	case bytecode.OpGtF:
		a, b, ok := m.popFloats()
		if ok {
			m.Push(Bool(a > b))
		}

	case bytecode.OpLteF:
		a, b, ok := m.popFloats()
		if ok {
			m.Push(Bool(a <= b))
		}

	case bytecode.OpGteF:
		a, b, ok := m.popFloats()
		if ok {
			m.Push(Bool(a >= b))
		}

	case bytecode.OpEqF:
		a, b, ok := m.popFloats()
		if ok {
			m.Push(Bool(a == b))
		}

	case bytecode.OpNegF:
		if a, ok := m.popFloat(); ok {
			m.Push(-a)
		}

	// ============ Logic and equality ============
	case bytecode.OpAnd:
		a, b, ok := m.popBools()
		if ok {
			m.Push(a && b)
		}

	case bytecode.OpOr:
		a, b, ok := m.popBools()
		if ok {
			m.Push(a || b)
		}

	case bytecode.OpNot:
		if a, ok := m.popBool(); ok {
			m.Push(!a)
		}

	case bytecode.OpEqB:
		a, b, ok := m.popBools()
		if ok {
			m.Push(Bool(a == b))
		}

	case bytecode.OpEqS:
		b, okb := m.popStr()
		a, oka := m.popStr()
		if oka && okb {
			m.Push(Bool(a == b))
		}

	case bytecode.OpEqR:
		b, okb := m.popRef()
		a, oka := m.popRef()
		if oka && okb {
			m.Push(Bool(a == b))
		}

	case bytecode.OpIToF:
		if a, ok := m.popInt(); ok {
			m.Push(Float(a))
		}

	case bytecode.OpFToI:
		if a, ok := m.popFloat(); ok {
			// truncates toward zero; NaN and values outside int32 are fatal
			f := float64(a)
			if math.IsNaN(f) || f <= math.MinInt32-1 || f >= math.MaxInt32+1 {
				m.Fail("float %v out of int range", a)
				return
			}
			m.Push(Int(f))
		}

	// ============ Control flow ============
	case bytecode.OpGoto:
		m.jump(int(m.readU32()))

	case bytecode.OpGotoFalse:
		target := int(m.readU32())
		cond, ok := m.popBool()
		if ok && !bool(cond) {
			m.jump(target)
		}

	// ============ Calls and returns ============
	case bytecode.OpCall:
		m.call(int(m.readU16()))

	case bytecode.OpRet:
		m.ret(0)

	case bytecode.OpRetVal:
		m.ret(1)

	case bytecode.OpRetValN:
		m.ret(int(m.readU16()))

	default:
		m.Fail("unimplemented opcode %s", op)
	}
}

// ---------------------------------------------------------------------------
// Operand decoding
// ---------------------------------------------------------------------------

func (m *VM) readU16() uint16 {
	v := binary.LittleEndian.Uint16(m.prog.Code[m.pc:])
	m.pc += 2
	return v
}

func (m *VM) readU32() uint32 {
	v := binary.LittleEndian.Uint32(m.prog.Code[m.pc:])
	m.pc += 4
	return v
}

func (m *VM) readI32() int32 {
	return int32(m.readU32())
}

func (m *VM) jump(target int) {
	if target < 0 || target > len(m.prog.Code) {
		m.Fail("jump target %d out of range", target)
		return
	}
	m.pc = target
}

// ---------------------------------------------------------------------------
// Slot access
// ---------------------------------------------------------------------------

// getSlots pushes n slots of area starting at idx.
func (m *VM) getSlots(area []Object, idx, n int, what string) {
	if idx < 0 || idx+n > len(area) {
		m.Fail("%s slot %d out of range", what, idx)
		return
	}
	if m.sp+n > len(m.stack) {
		m.Fail("stack overflow")
		return
	}
	copy(m.stack[m.sp:], area[idx:idx+n])
	m.sp += n
}

// setSlots pops n slots into area at idx. Slots at or above limit may not
// be written.
func (m *VM) setSlots(area []Object, limit, idx, n int, what string) {
	if n > m.sp {
		m.Fail("stack underflow")
		return
	}
	if idx < 0 || idx+n > limit {
		m.Fail("%s slot %d out of range", what, idx)
		return
	}
	copy(area[idx:idx+n], m.stack[m.sp-n:m.sp])
	m.sp -= n
}

// refArea returns the storage r points into and the number of addressable
// slots in it.
func (m *VM) refArea(r Ref) ([]Object, int) {
	switch r.Area {
	case RefStack:
		return m.stack, m.sp
	case RefGlobal:
		return m.globals, len(m.globals)
	}
	m.Fail("null reference")
	return nil, 0
}

// ---------------------------------------------------------------------------
// Typed pops
// ---------------------------------------------------------------------------

func (m *VM) mismatch(want string, got Object) {
	m.Fail("type mismatch: expected %s, got %s", want, TypeName(got))
}

func (m *VM) popInt() (Int, bool) {
	if m.sp <= 0 {
		m.Fail("stack underflow")
		return 0, false
	}
	o := m.Pop()
	v, ok := o.(Int)
	if !ok {
		m.mismatch("int", o)
	}
	return v, ok
}

func (m *VM) popInts() (Int, Int, bool) {
	b, okb := m.popInt()
	a, oka := m.popInt()
	return a, b, oka && okb
}

func (m *VM) popFloat() (Float, bool) {
	if m.sp <= 0 {
		m.Fail("stack underflow")
		return 0, false
	}
	o := m.Pop()
	v, ok := o.(Float)
	if !ok {
		m.mismatch("float", o)
	}
	return v, ok
}

func (m *VM) popFloats() (Float, Float, bool) {
	b, okb := m.popFloat()
	a, oka := m.popFloat()
	return a, b, oka && okb
}

func (m *VM) popBool() (Bool, bool) {
	if m.sp <= 0 {
		m.Fail("stack underflow")
		return false, false
	}
	o := m.Pop()
	v, ok := o.(Bool)
	if !ok {
		m.mismatch("bool", o)
	}
	return v, ok
}

func (m *VM) popBools() (Bool, Bool, bool) {
	b, okb := m.popBool()
	a, oka := m.popBool()
	return a, b, oka && okb
}

func (m *VM) popStr() (Str, bool) {
	if m.sp <= 0 {
		m.Fail("stack underflow")
		return "", false
	}
	o := m.Pop()
	v, ok := o.(Str)
	if !ok {
		m.mismatch("str", o)
	}
	return v, ok
}

func (m *VM) popRef() (Ref, bool) {
	if m.sp <= 0 {
		m.Fail("stack underflow")
		return Null, false
	}
	o := m.Pop()
	v, ok := o.(Ref)
	if !ok {
		m.mismatch("ref", o)
	}
	return v, ok
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// call pops a callee and invokes it with the nargs slots below it.
func (m *VM) call(nargs int) {
	if m.sp <= 0 {
		m.Fail("stack underflow")
		return
	}
	o := m.Pop()
	fn, ok := o.(Func)
	if !ok {
		m.Fail("call of non-function %s", TypeName(o))
		return
	}
	if nargs > m.sp {
		m.Fail("stack underflow")
		return
	}
	if fn.Extern {
		m.callExtern(fn.Index, nargs)
		return
	}

	if fn.Index < 0 || fn.Index >= len(m.prog.FuncPCs) || m.prog.FuncPCs[fn.Index] < 0 {
		m.Fail("call of unknown function %d", fn.Index)
		return
	}
	if len(m.frames) >= m.maxFrames {
		m.Fail("frame stack overflow")
		return
	}
	m.frames = append(m.frames, Frame{NArgs: nargs, SavedPC: m.pc, SavedFP: m.fp})
	m.fp = m.sp
	m.pc = int(m.prog.FuncPCs[fn.Index])
}

// ret pops the current frame, discards the callee's arguments and locals and
// leaves n result slots where the arguments began.
func (m *VM) ret(n int) {
	if len(m.frames) == 0 {
		m.Fail("return with no frame")
		return
	}
	if n > m.sp-m.fp {
		m.Fail("stack underflow")
		return
	}
	f := m.frames[len(m.frames)-1]
	m.frames = m.frames[:len(m.frames)-1]

	base := m.fp - f.NArgs
	if base < 0 {
		m.Fail("stack underflow")
		return
	}
	copy(m.stack[base:], m.stack[m.sp-n:m.sp])
	for i := base + n; i < m.sp; i++ {
		m.stack[i] = nil
	}
	m.sp = base + n
	m.fp = f.SavedFP
	m.pc = f.SavedPC
}
