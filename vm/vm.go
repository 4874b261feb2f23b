package vm

import (
	"fmt"
	"math"
)

// MaxFrames bounds call depth; deeper recursion is a runtime error.
const MaxFrames = 256

// RuntimeError is raised by the VM while interpreting a chunk.
type RuntimeError struct {
	Message string
	Line    int
}

func (e *RuntimeError) Error() string {
	return fmt.Sprintf("runtime error: %s\n   --> repl:%d", e.Message, e.Line)
}

// Outcome is the result of interpreting one chunk.
type Outcome struct {
	Err *RuntimeError
}

// Ok reports whether the chunk ran to completion.
func (o Outcome) Ok() bool {
	return o.Err == nil
}

// ---------------------------------------------------------------------------
// CallFrame: Execution state for a function invocation
// ---------------------------------------------------------------------------

type callFrame struct {
	fn *Function
	ip int // instruction pointer (offset into bytecode)
	bp int // stack index of the callee; locals start at bp+1
}

// ---------------------------------------------------------------------------
// VM: Bytecode execution engine
// ---------------------------------------------------------------------------

// VM interprets chunks against persistent global storage. Globals survive
// across Interpret calls; the operand stack and frames do not.
//
// A VM is not safe for concurrent use. Callers serialize access (see the
// server package's SessionWorker).
type VM struct {
	globals []Value
	defined []bool

	stack  []Value
	frames []callFrame
}

// New creates a VM with empty global storage.
func New() *VM {
	return &VM{
		stack:  make([]Value, 0, 256),
		frames: make([]callFrame, 0, MaxFrames),
	}
}

// NumGlobals returns the number of global slots allocated so far.
func (m *VM) NumGlobals() int {
	return len(m.globals)
}

// Global returns the value in a global slot and whether it has been defined.
func (m *VM) Global(slot int) (Value, bool) {
	if slot < 0 || slot >= len(m.globals) || !m.defined[slot] {
		return Nil, false
	}
	return m.globals[slot], true
}

// Interpret runs a chunk as the body of a zero-argument function.
func (m *VM) Interpret(chunk *Chunk) Outcome {
	m.reset()
	fn := &Function{Name: chunk.Name, Chunk: chunk}
	m.push(FunctionValue(fn))
	m.frames = append(m.frames, callFrame{fn: fn, bp: 0})

	if err := m.run(); err != nil {
		m.reset()
		return Outcome{Err: err}
	}
	m.reset()
	return Outcome{}
}

func (m *VM) reset() {
	m.stack = m.stack[:0]
	m.frames = m.frames[:0]
}

// ---------------------------------------------------------------------------
// Stack operations
// ---------------------------------------------------------------------------

func (m *VM) push(v Value) {
	m.stack = append(m.stack, v)
}

func (m *VM) pop() Value {
	v := m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return v
}

func (m *VM) peek(distance int) Value {
	return m.stack[len(m.stack)-1-distance]
}

func (m *VM) ensureGlobal(slot int) {
	for len(m.globals) <= slot {
		m.globals = append(m.globals, Nil)
		m.defined = append(m.defined, false)
	}
}

// errorf builds a runtime error located at the current instruction.
func (m *VM) errorf(format string, args ...interface{}) *RuntimeError {
	line := 0
	if n := len(m.frames); n > 0 {
		f := &m.frames[n-1]
		line = f.fn.Chunk.LineAt(f.ip - 1)
	}
	return &RuntimeError{Message: fmt.Sprintf(format, args...), Line: line}
}

// ---------------------------------------------------------------------------
// Execution loop
// ---------------------------------------------------------------------------

func (m *VM) run() *RuntimeError {
	for {
		frame := &m.frames[len(m.frames)-1]
		chunk := frame.fn.Chunk
		code := chunk.Code

		if frame.ip >= len(code) {
			// Implicit return of nil at end of chunk
			m.push(Nil)
			if done := m.ret(); done {
				return nil
			}
			continue
		}

		op := Opcode(code[frame.ip])
		frame.ip++

		switch op {
		// --- Stack operations ---
		case OpNOP:

		case OpPOP:
			m.pop()

		case OpDUP:
			m.push(m.peek(0))

		// --- Push constants ---
		case OpPushNil:
			m.push(Nil)

		case OpPushTrue:
			m.push(True)

		case OpPushFalse:
			m.push(False)

		case OpPushConstant:
			idx := readUint16(code, frame.ip)
			frame.ip += 2
			m.push(chunk.Constants[idx])

		// --- Variables ---
		case OpPushLocal:
			idx := int(code[frame.ip])
			frame.ip++
			m.push(m.stack[frame.bp+1+idx])

		case OpStoreLocal:
			idx := int(code[frame.ip])
			frame.ip++
			m.stack[frame.bp+1+idx] = m.peek(0)

		case OpPushGlobal:
			slot := int(readUint16(code, frame.ip))
			frame.ip += 2
			if slot >= len(m.globals) || !m.defined[slot] {
				return m.errorf("undefined variable '%s'", chunk.GlobalNames[uint16(slot)])
			}
			m.push(m.globals[slot])

		case OpStoreGlobal:
			slot := int(readUint16(code, frame.ip))
			frame.ip += 2
			if slot >= len(m.globals) || !m.defined[slot] {
				return m.errorf("undefined variable '%s'", chunk.GlobalNames[uint16(slot)])
			}
			m.globals[slot] = m.peek(0)

		case OpDefineGlobal:
			slot := int(readUint16(code, frame.ip))
			frame.ip += 2
			m.ensureGlobal(slot)
			m.globals[slot] = m.pop()
			m.defined[slot] = true

		// --- Arithmetic ---
		case OpAdd:
			b, a := m.pop(), m.pop()
			switch {
			case a.IsNumber() && b.IsNumber():
				m.push(NumberValue(a.num + b.num))
			case a.IsString() && b.IsString():
				m.push(StringValue(a.str + b.str))
			default:
				return m.errorf("operands must be two numbers or two strings")
			}

		case OpSub, OpMul, OpDiv, OpMod:
			b, a := m.pop(), m.pop()
			if !a.IsNumber() || !b.IsNumber() {
				return m.errorf("operands must be numbers")
			}
			result, err := m.arith(op, a.num, b.num)
			if err != nil {
				return err
			}
			m.push(NumberValue(result))

		case OpNegate:
			a := m.pop()
			if !a.IsNumber() {
				return m.errorf("operand must be a number")
			}
			m.push(NumberValue(-a.num))

		case OpNot:
			a := m.pop()
			if !a.IsBool() {
				return m.errorf("operand must be a bool")
			}
			m.push(BoolValue(!a.AsBool()))

		// --- Comparison ---
		case OpEqual:
			b, a := m.pop(), m.pop()
			m.push(BoolValue(a.Equal(b)))

		case OpNotEqual:
			b, a := m.pop(), m.pop()
			m.push(BoolValue(!a.Equal(b)))

		case OpLess, OpLessEqual, OpGreater, OpGreaterEqual:
			b, a := m.pop(), m.pop()
			if !a.IsNumber() || !b.IsNumber() {
				return m.errorf("operands must be numbers")
			}
			m.push(BoolValue(compare(op, a.num, b.num)))

		// --- Control flow ---
		case OpJump:
			offset := int16(readUint16(code, frame.ip))
			frame.ip += 2 + int(offset)

		case OpJumpFalse:
			offset := int16(readUint16(code, frame.ip))
			frame.ip += 2
			cond := m.pop()
			if !cond.IsBool() {
				return m.errorf("condition must be a bool")
			}
			if !cond.AsBool() {
				frame.ip += int(offset)
			}

		// --- Calls ---
		case OpCall:
			argc := int(code[frame.ip])
			frame.ip++
			if err := m.call(argc); err != nil {
				return err
			}

		case OpReturn:
			if done := m.ret(); done {
				return nil
			}

		default:
			return m.errorf("unknown opcode %s", op)
		}
	}
}

func (m *VM) arith(op Opcode, a, b float64) (float64, *RuntimeError) {
	switch op {
	case OpSub:
		return a - b, nil
	case OpMul:
		return a * b, nil
	case OpDiv:
		if b == 0 {
			return 0, m.errorf("division by zero")
		}
		return a / b, nil
	default:
		if b == 0 {
			return 0, m.errorf("division by zero")
		}
		return math.Mod(a, b), nil
	}
}

func compare(op Opcode, a, b float64) bool {
	switch op {
	case OpLess:
		return a < b
	case OpLessEqual:
		return a <= b
	case OpGreater:
		return a > b
	default:
		return a >= b
	}
}

// call invokes the callee sitting below argc arguments on the stack.
func (m *VM) call(argc int) *RuntimeError {
	callee := m.peek(argc)
	switch callee.kind {
	case KindFunction:
		fn := callee.AsFunction()
		if fn.Arity != argc {
			return m.errorf("expected %d arguments but got %d", fn.Arity, argc)
		}
		if len(m.frames) >= MaxFrames {
			return m.errorf("stack overflow")
		}
		m.frames = append(m.frames, callFrame{fn: fn, bp: len(m.stack) - argc - 1})
		return nil

	case KindNative:
		native := callee.AsNative()
		if native.Arity != argc {
			return m.errorf("expected %d arguments but got %d", native.Arity, argc)
		}
		args := make([]Value, argc)
		copy(args, m.stack[len(m.stack)-argc:])
		result := native.Fn(args)
		m.stack = m.stack[:len(m.stack)-argc-1]
		m.push(result)
		return nil
	}
	return m.errorf("can only call functions")
}

// ret pops the current frame, leaving its result in place of the callee.
// It reports true when the outermost frame returned.
func (m *VM) ret() bool {
	result := m.pop()
	frame := m.frames[len(m.frames)-1]
	m.frames = m.frames[:len(m.frames)-1]
	m.stack = m.stack[:frame.bp]
	if len(m.frames) == 0 {
		return true
	}
	m.push(result)
	return false
}
