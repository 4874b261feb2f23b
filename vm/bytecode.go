package vm

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single bytecode instruction.
type Opcode byte

// Stack Operations
const (
	OpNOP Opcode = 0x00 // no operation
	OpPOP Opcode = 0x01 // discard top of stack
	OpDUP Opcode = 0x02 // duplicate top of stack
)

// Push Constants
const (
	OpPushNil      Opcode = 0x10 // push nil
	OpPushTrue     Opcode = 0x11 // push true
	OpPushFalse    Opcode = 0x12 // push false
	OpPushConstant Opcode = 0x13 // push constant (16-bit index)
)

// Variable Operations
const (
	OpPushLocal    Opcode = 0x20 // push local (8-bit index, relative to frame)
	OpStoreLocal   Opcode = 0x21 // store top into local (8-bit index)
	OpPushGlobal   Opcode = 0x22 // push global (16-bit slot)
	OpStoreGlobal  Opcode = 0x23 // store top into an already defined global (16-bit slot)
	OpDefineGlobal Opcode = 0x24 // pop into global, marking it defined (16-bit slot)
)

// Arithmetic and comparison
const (
	OpAdd          Opcode = 0x40
	OpSub          Opcode = 0x41
	OpMul          Opcode = 0x42
	OpDiv          Opcode = 0x43
	OpMod          Opcode = 0x44
	OpNegate       Opcode = 0x45
	OpNot          Opcode = 0x46
	OpEqual        Opcode = 0x47
	OpNotEqual     Opcode = 0x48
	OpLess         Opcode = 0x49
	OpLessEqual    Opcode = 0x4A
	OpGreater      Opcode = 0x4B
	OpGreaterEqual Opcode = 0x4C
)

// Control Flow
const (
	OpJump      Opcode = 0x60 // unconditional jump (signed 16-bit offset)
	OpJumpFalse Opcode = 0x61 // pop, jump if false (signed 16-bit offset)
)

// Calls and Returns
const (
	OpCall   Opcode = 0x70 // call callee below argc arguments (8-bit argc)
	OpReturn Opcode = 0x71 // return top of stack
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name         string // human-readable name
	OperandBytes int    // number of operand bytes
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpNOP: {"NOP", 0},
	OpPOP: {"POP", 0},
	OpDUP: {"DUP", 0},

	OpPushNil:      {"PUSH_NIL", 0},
	OpPushTrue:     {"PUSH_TRUE", 0},
	OpPushFalse:    {"PUSH_FALSE", 0},
	OpPushConstant: {"PUSH_CONSTANT", 2},

	OpPushLocal:    {"PUSH_LOCAL", 1},
	OpStoreLocal:   {"STORE_LOCAL", 1},
	OpPushGlobal:   {"PUSH_GLOBAL", 2},
	OpStoreGlobal:  {"STORE_GLOBAL", 2},
	OpDefineGlobal: {"DEFINE_GLOBAL", 2},

	OpAdd:          {"ADD", 0},
	OpSub:          {"SUB", 0},
	OpMul:          {"MUL", 0},
	OpDiv:          {"DIV", 0},
	OpMod:          {"MOD", 0},
	OpNegate:       {"NEGATE", 0},
	OpNot:          {"NOT", 0},
	OpEqual:        {"EQUAL", 0},
	OpNotEqual:     {"NOT_EQUAL", 0},
	OpLess:         {"LESS", 0},
	OpLessEqual:    {"LESS_EQUAL", 0},
	OpGreater:      {"GREATER", 0},
	OpGreaterEqual: {"GREATER_EQUAL", 0},

	OpJump:      {"JUMP", 2},
	OpJumpFalse: {"JUMP_FALSE", 2},

	OpCall:   {"CALL", 1},
	OpReturn: {"RETURN", 0},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Info().Name
}

// ---------------------------------------------------------------------------
// Chunk: a unit of compiled bytecode
// ---------------------------------------------------------------------------

// LineInfo maps bytecode offsets to source lines (start-inclusive).
type LineInfo struct {
	Offset int
	Line   int
}

// Chunk is an immutable unit of bytecode with its constant pool.
type Chunk struct {
	Name      string
	Code      []byte
	Constants []Value
	Lines     []LineInfo

	// GlobalNames records the source name of every global slot the chunk
	// touches, for runtime error messages.
	GlobalNames map[uint16]string
}

// LineAt returns the source line for the instruction at offset.
func (c *Chunk) LineAt(offset int) int {
	i := sort.Search(len(c.Lines), func(i int) bool {
		return c.Lines[i].Offset > offset
	})
	if i == 0 {
		return 0
	}
	return c.Lines[i-1].Line
}

// ---------------------------------------------------------------------------
// ChunkBuilder: Helper for constructing chunks
// ---------------------------------------------------------------------------

// ChunkBuilder helps construct bytecode sequences.
type ChunkBuilder struct {
	name      string
	bytes     []byte
	constants []Value
	constMap  map[interface{}]int // dedup number and string constants
	lines     []LineInfo
	names     map[uint16]string
	line      int
}

// NewChunkBuilder creates a builder for a chunk with the given name.
func NewChunkBuilder(name string) *ChunkBuilder {
	return &ChunkBuilder{
		name:     name,
		bytes:    make([]byte, 0, 64),
		constMap: make(map[interface{}]int),
		names:    make(map[uint16]string),
	}
}

// Len returns the current length.
func (b *ChunkBuilder) Len() int {
	return len(b.bytes)
}

// SetLine sets the source line attributed to subsequently emitted code.
func (b *ChunkBuilder) SetLine(line int) {
	b.line = line
}

func (b *ChunkBuilder) mark() {
	n := len(b.lines)
	if n > 0 && b.lines[n-1].Line == b.line {
		return
	}
	if n > 0 && b.lines[n-1].Offset == len(b.bytes) {
		b.lines[n-1].Line = b.line
		return
	}
	b.lines = append(b.lines, LineInfo{Offset: len(b.bytes), Line: b.line})
}

// Emit appends an opcode with no operands.
func (b *ChunkBuilder) Emit(op Opcode) {
	b.mark()
	b.bytes = append(b.bytes, byte(op))
}

// EmitByte appends an opcode with a single byte operand.
func (b *ChunkBuilder) EmitByte(op Opcode, operand byte) {
	b.mark()
	b.bytes = append(b.bytes, byte(op), operand)
}

// EmitUint16 appends an opcode with a 16-bit operand (little-endian).
func (b *ChunkBuilder) EmitUint16(op Opcode, operand uint16) {
	b.mark()
	b.bytes = append(b.bytes, byte(op), byte(operand), byte(operand>>8))
}

// EmitGlobal appends a global access and records the slot's name.
func (b *ChunkBuilder) EmitGlobal(op Opcode, slot uint16, name string) {
	b.names[slot] = name
	b.EmitUint16(op, slot)
}

// AddConstant adds a value to the constant pool and returns its index.
// Numbers and strings are deduplicated.
func (b *ChunkBuilder) AddConstant(v Value) (uint16, error) {
	var key interface{}
	switch v.kind {
	case KindNumber:
		if !math.IsNaN(v.num) {
			key = v.num
		}
	case KindString:
		key = "s:" + v.str
	}
	if key != nil {
		if idx, ok := b.constMap[key]; ok {
			return uint16(idx), nil
		}
	}
	if len(b.constants) > math.MaxUint16 {
		return 0, fmt.Errorf("too many constants in one chunk")
	}
	b.constants = append(b.constants, v)
	idx := len(b.constants) - 1
	if key != nil {
		b.constMap[key] = idx
	}
	return uint16(idx), nil
}

// Build returns the finished chunk. The builder must not be used afterwards.
func (b *ChunkBuilder) Build() *Chunk {
	return &Chunk{
		Name:        b.name,
		Code:        b.bytes,
		Constants:   b.constants,
		Lines:       b.lines,
		GlobalNames: b.names,
	}
}

// ---------------------------------------------------------------------------
// Label management for jumps
// ---------------------------------------------------------------------------

// Label represents a jump target in bytecode.
type Label struct {
	resolved bool
	position int   // target (if resolved)
	refs     []int // operand positions that reference this label
}

// NewLabel creates an unresolved label.
func (b *ChunkBuilder) NewLabel() *Label {
	return &Label{refs: make([]int, 0, 2)}
}

// Mark resolves a label to the current position.
func (b *ChunkBuilder) Mark(label *Label) {
	if label.resolved {
		panic("label already resolved")
	}
	label.resolved = true
	label.position = len(b.bytes)

	// Patch all forward references
	for _, ref := range label.refs {
		offset := label.position - (ref + 2) // offset from after the operand
		b.bytes[ref] = byte(offset)
		b.bytes[ref+1] = byte(offset >> 8)
	}
	label.refs = nil
}

// EmitJump emits a jump instruction with a label.
func (b *ChunkBuilder) EmitJump(op Opcode, label *Label) {
	b.mark()
	b.bytes = append(b.bytes, byte(op))
	if label.resolved {
		// Backward jump: calculate offset
		offset := label.position - (len(b.bytes) + 2)
		b.bytes = append(b.bytes, byte(offset), byte(offset>>8))
	} else {
		// Forward jump: record position for later patching
		label.refs = append(label.refs, len(b.bytes))
		b.bytes = append(b.bytes, 0, 0) // placeholder
	}
}

// readUint16 decodes a little-endian operand.
func readUint16(code []byte, at int) uint16 {
	return binary.LittleEndian.Uint16(code[at:])
}
