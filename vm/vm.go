package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/chazu/tut/pkg/bytecode"
	"github.com/tliron/commonlog"
)

const (
	DefaultStackSize = 4096
	DefaultMaxFrames = 1024
)

// Config sizes a VM. Zero fields take the defaults.
type Config struct {
	StackSize int
	MaxFrames int
	// Globals is the minimum number of global slots; the program's own
	// requirement always wins when larger.
	Globals int
	Stdout  io.Writer
	Trace   bool
}

// Frame is the return record pushed by CALL.
type Frame struct {
	NArgs   int
	SavedPC int
	SavedFP int
}

// RuntimeError describes the fatal condition that halted the VM.
type RuntimeError struct {
	PC   int
	Line int
	Msg  string
}

func (e *RuntimeError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("runtime error at %04X (line %d): %s", e.PC, e.Line, e.Msg)
	}
	return fmt.Sprintf("runtime error at %04X: %s", e.PC, e.Msg)
}

// VM executes one bytecode program. It owns its operand stack, globals and
// frame stack; extern callbacks reach them only through the VM handle.
type VM struct {
	prog *bytecode.Program

	stack   []Object
	globals []Object
	frames  []Frame
	sp      int
	fp      int
	pc      int
	inst    int // pc of the instruction being executed

	maxFrames int
	externs   []ExternFunc
	argBuf    []Object
	err       *RuntimeError

	// Stdout receives output from the native externs.
	Stdout io.Writer
	// Trace logs every instruction at debug level.
	Trace bool

	log commonlog.Logger
}

// New creates a VM for prog. The machine starts halted; call Run.
func New(prog *bytecode.Program, cfg Config) *VM {
	if cfg.StackSize <= 0 {
		cfg.StackSize = DefaultStackSize
	}
	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = DefaultMaxFrames
	}
	if cfg.Stdout == nil {
		cfg.Stdout = os.Stdout
	}
	globals := prog.GlobalSlots
	if cfg.Globals > globals {
		globals = cfg.Globals
	}
	return &VM{
		prog:      prog,
		stack:     make([]Object, cfg.StackSize),
		globals:   make([]Object, globals),
		frames:    make([]Frame, 0, 64),
		pc:        -1,
		maxFrames: cfg.MaxFrames,
		externs:   make([]ExternFunc, len(prog.ExternNames)),
		Stdout:    cfg.Stdout,
		Trace:     cfg.Trace,
		log:       commonlog.GetLogger("tut.vm"),
	}
}

// Program returns the program the VM executes.
func (m *VM) Program() *bytecode.Program { return m.prog }

// PC returns the program counter; negative means halted.
func (m *VM) PC() int { return m.pc }

// SP returns the stack pointer, the index of the next free slot.
func (m *VM) SP() int { return m.sp }

// FP returns the frame pointer.
func (m *VM) FP() int { return m.fp }

// Halted reports whether the VM has stopped.
func (m *VM) Halted() bool { return m.pc < 0 }

// Err returns the fatal error that halted the VM, or nil.
func (m *VM) Err() error {
	if m.err == nil {
		return nil
	}
	return m.err
}

// Stack returns the live operand stack up to sp. The slice aliases VM
// storage and is only valid until the next instruction executes.
func (m *VM) Stack() []Object { return m.stack[:m.sp] }

// Globals returns the global slots. The slice aliases VM storage.
func (m *VM) Globals() []Object { return m.globals }

// Result returns a copy of the slots left on the stack by the entry
// function. It is meaningful only after a normal halt.
func (m *VM) Result() []Object {
	out := make([]Object, m.sp)
	copy(out, m.stack[:m.sp])
	return out
}

// Push pushes o. Extern callbacks use it to return results.
func (m *VM) Push(o Object) {
	if m.sp >= len(m.stack) {
		m.Fail("stack overflow")
		return
	}
	m.stack[m.sp] = o
	m.sp++
}

// Pop removes and returns the top slot.
func (m *VM) Pop() Object {
	if m.sp <= 0 {
		m.Fail("stack underflow")
		return nil
	}
	m.sp--
	o := m.stack[m.sp]
	m.stack[m.sp] = nil
	return o
}

// Fail halts the VM with a runtime error. Only the first failure is kept.
func (m *VM) Fail(format string, args ...interface{}) {
	if m.err == nil {
		line, _ := m.prog.GetSourceLocation(uint32(m.inst))
		m.err = &RuntimeError{PC: m.inst, Line: int(line), Msg: fmt.Sprintf(format, args...)}
		m.log.Errorf("%s", m.err)
	}
	m.pc = -1
}

// Reset clears the stack and frames and positions the VM at the start of the
// program with a bootstrap frame. Globals are kept.
func (m *VM) Reset() {
	for i := range m.stack[:m.sp] {
		m.stack[i] = nil
	}
	m.sp, m.fp, m.pc = 0, 0, 0
	m.err = nil
	m.frames = append(m.frames[:0], Frame{NArgs: 0, SavedPC: -1, SavedFP: 0})
}

// Run executes the program from the start until it halts. The entry
// function's return halts normally and leaves its result on the stack.
func (m *VM) Run() error {
	m.Reset()
	for m.pc >= 0 {
		m.Step()
	}
	return m.Err()
}
