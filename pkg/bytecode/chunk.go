package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Chunk is a code builder. It appends encoded instructions, patches jumps,
// and resolves symbolic labels.
type Chunk struct {
	Code []byte

	labels map[string]int
	fixups []labelFixup
}

type labelFixup struct {
	instr int    // address of the jump instruction
	label string // target label
	line  int    // source line, for assembler errors (0 if unknown)
}

// NewChunk creates a new empty chunk.
func NewChunk() *Chunk {
	return &Chunk{
		Code:   make([]byte, 0, 64),
		labels: make(map[string]int),
	}
}

// CurrentOffset returns the current offset in the code section.
func (c *Chunk) CurrentOffset() int {
	return len(c.Code)
}

// CodeLen returns the length of the code section.
func (c *Chunk) CodeLen() int {
	return len(c.Code)
}

// Emit appends an instruction and returns its address. Operands are given in
// encoding order:
//
//	FormatV:         v
//	FormatVV:        vA, vB
//	FormatVImm32/64: v, imm
//	FormatImm32/64:  imm
//	FormatOff16:     off
//	FormatVOff16:    v, off
//	FormatID16:      id
//	FormatVID16:     v, id
//	FormatVVID16:    vA, vB, id
//	FormatCall:      id, args...
//	FormatCallRange: id, argc, first
//
// Emit panics on an undefined opcode or a wrong operand count; both are
// programming errors in the caller.
func (c *Chunk) Emit(op Opcode, operands ...int64) int {
	info, ok := GetOpcodeInfo(op)
	if !ok {
		panic(fmt.Sprintf("bytecode: emit of undefined opcode 0x%02X", byte(op)))
	}
	if want := operandCount(info.Format); want >= 0 && len(operands) != want {
		panic(fmt.Sprintf("bytecode: %s takes %d operands, got %d", op, want, len(operands)))
	}

	offset := len(c.Code)
	c.Code = append(c.Code, byte(op))

	switch info.Format {
	case FormatNone:
	case FormatV:
		c.Code = append(c.Code, byte(operands[0]))
	case FormatVV:
		c.Code = append(c.Code, byte(operands[0]), byte(operands[1]))
	case FormatVImm32:
		c.Code = append(c.Code, byte(operands[0]))
		c.Code = binary.BigEndian.AppendUint32(c.Code, uint32(int32(operands[1])))
	case FormatVImm64:
		c.Code = append(c.Code, byte(operands[0]))
		c.Code = binary.BigEndian.AppendUint64(c.Code, uint64(operands[1]))
	case FormatImm32:
		c.Code = binary.BigEndian.AppendUint32(c.Code, uint32(int32(operands[0])))
	case FormatImm64:
		c.Code = binary.BigEndian.AppendUint64(c.Code, uint64(operands[0]))
	case FormatOff16:
		c.Code = binary.BigEndian.AppendUint16(c.Code, uint16(int16(operands[0])))
	case FormatVOff16:
		c.Code = append(c.Code, byte(operands[0]))
		c.Code = binary.BigEndian.AppendUint16(c.Code, uint16(int16(operands[1])))
	case FormatID16:
		c.Code = binary.BigEndian.AppendUint16(c.Code, uint16(operands[0]))
	case FormatVID16:
		c.Code = append(c.Code, byte(operands[0]))
		c.Code = binary.BigEndian.AppendUint16(c.Code, uint16(operands[1]))
	case FormatVVID16:
		c.Code = append(c.Code, byte(operands[0]), byte(operands[1]))
		c.Code = binary.BigEndian.AppendUint16(c.Code, uint16(operands[2]))
	case FormatCall:
		if len(operands) < 1 {
			panic(fmt.Sprintf("bytecode: %s needs a method id", op))
		}
		c.Code = binary.BigEndian.AppendUint16(c.Code, uint16(operands[0]))
		c.Code = append(c.Code, byte(len(operands)-1))
		for _, r := range operands[1:] {
			c.Code = append(c.Code, byte(r))
		}
	case FormatCallRange:
		c.Code = binary.BigEndian.AppendUint16(c.Code, uint16(operands[0]))
		c.Code = append(c.Code, byte(operands[1]), byte(operands[2]))
	}
	return offset
}

// operandCount returns the operand count for a format, or -1 if variable.
func operandCount(f Format) int {
	switch f {
	case FormatNone:
		return 0
	case FormatV, FormatImm32, FormatImm64, FormatOff16, FormatID16:
		return 1
	case FormatVV, FormatVImm32, FormatVImm64, FormatVOff16, FormatVID16:
		return 2
	case FormatVVID16, FormatCallRange:
		return 3
	default:
		return -1
	}
}

// EmitFloat emits an instruction whose immediate is a float64.
func (c *Chunk) EmitFloat(op Opcode, operands ...float64) int {
	raw := make([]int64, len(operands))
	for i, v := range operands {
		raw[i] = int64(v)
	}
	// The immediate is always the last operand.
	raw[len(raw)-1] = int64(math.Float64bits(operands[len(operands)-1]))
	return c.Emit(op, raw...)
}

// EmitJump emits a jump instruction with a zero offset and returns its
// address for later patching. regs supplies the register operand of
// FormatVOff16 jumps.
func (c *Chunk) EmitJump(op Opcode, regs ...int64) int {
	return c.Emit(op, append(regs, 0)...)
}

// PatchJumpTo patches the jump instruction at instr to go to target.
func (c *Chunk) PatchJumpTo(instr int, target int) {
	op := Opcode(c.Code[instr])
	pos := instr + 1
	if op.Format() == FormatVOff16 {
		pos++
	}
	delta := target - instr
	binary.BigEndian.PutUint16(c.Code[pos:], uint16(int16(delta)))
}

// PatchJump patches the jump instruction at instr to go to the current
// position.
func (c *Chunk) PatchJump(instr int) {
	c.PatchJumpTo(instr, len(c.Code))
}

// Label binds name to the current offset.
func (c *Chunk) Label(name string) error {
	if _, dup := c.labels[name]; dup {
		return fmt.Errorf("label %q defined twice", name)
	}
	c.labels[name] = len(c.Code)
	return nil
}

// EmitJumpTo emits a jump to a label that may be defined later.
func (c *Chunk) EmitJumpTo(op Opcode, label string, regs ...int64) int {
	return c.emitJumpToLine(op, label, 0, regs...)
}

func (c *Chunk) emitJumpToLine(op Opcode, label string, line int, regs ...int64) int {
	instr := c.EmitJump(op, regs...)
	c.fixups = append(c.fixups, labelFixup{instr: instr, label: label, line: line})
	return instr
}

// ResolveLabels patches every pending label jump.
func (c *Chunk) ResolveLabels() error {
	for _, f := range c.fixups {
		target, ok := c.labels[f.label]
		if !ok {
			if f.line > 0 {
				return fmt.Errorf("line %d: undefined label %q", f.line, f.label)
			}
			return fmt.Errorf("undefined label %q", f.label)
		}
		delta := target - f.instr
		if delta < math.MinInt16 || delta > math.MaxInt16 {
			return fmt.Errorf("jump to %q out of 16-bit range (%d)", f.label, delta)
		}
		c.PatchJumpTo(f.instr, target)
	}
	c.fixups = c.fixups[:0]
	return nil
}

// LabelOffset returns the offset bound to a label.
func (c *Chunk) LabelOffset(name string) (int, bool) {
	off, ok := c.labels[name]
	return off, ok
}
