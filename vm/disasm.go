package vm

import (
	"fmt"
	"strings"
)

// DisassembleInstruction renders the instruction at offset and returns the
// offset of the next one.
func DisassembleInstruction(c *Chunk, offset int) (string, int) {
	op := Opcode(c.Code[offset])
	info := op.Info()

	switch op {
	case OpPushConstant:
		idx := readUint16(c.Code, offset+1)
		return fmt.Sprintf("%04d  %-14s %d (%s)", offset, info.Name, idx, constantString(c.Constants[idx])), offset + 3

	case OpPushGlobal, OpStoreGlobal, OpDefineGlobal:
		slot := readUint16(c.Code, offset+1)
		return fmt.Sprintf("%04d  %-14s %d (%s)", offset, info.Name, slot, c.GlobalNames[slot]), offset + 3

	case OpPushLocal, OpStoreLocal, OpCall:
		return fmt.Sprintf("%04d  %-14s %d", offset, info.Name, c.Code[offset+1]), offset + 2

	case OpJump, OpJumpFalse:
		jump := int16(readUint16(c.Code, offset+1))
		target := offset + 3 + int(jump)
		return fmt.Sprintf("%04d  %-14s -> %04d", offset, info.Name, target), offset + 3
	}

	return fmt.Sprintf("%04d  %s", offset, info.Name), offset + 1 + info.OperandBytes
}

// Disassemble renders a chunk and, recursively, every function constant.
func Disassemble(c *Chunk) string {
	var sb strings.Builder
	disassembleInto(&sb, c)
	return strings.TrimRight(sb.String(), "\n")
}

func disassembleInto(sb *strings.Builder, c *Chunk) {
	fmt.Fprintf(sb, "== %s ==\n", c.Name)
	for offset := 0; offset < len(c.Code); {
		var line string
		line, offset = DisassembleInstruction(c, offset)
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	for _, k := range c.Constants {
		if fn := k.AsFunction(); fn != nil {
			disassembleInto(sb, fn.Chunk)
		}
	}
}

func constantString(v Value) string {
	if v.IsString() {
		return fmt.Sprintf("%q", v.str)
	}
	return v.String()
}
