package bytecode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidOpcode is returned when the byte at an address is not an opcode.
var ErrInvalidOpcode = errors.New("invalid opcode")

// ErrTruncated is returned when an instruction's operands run past the end
// of the code.
var ErrTruncated = errors.New("truncated instruction")

// Instruction is a decoded instruction. Handlers only ever see this form.
type Instruction struct {
	Addr int    // Offset of the opcode byte
	Op   Opcode // Opcode
	Size int    // Total encoded length in bytes

	Regs []int  // Register operands in encoding order (call arguments for calls)
	Imm  int64  // Immediate operand (sign-extended for imm32)
	Off  int    // Jump offset relative to Addr
	ID   uint16 // Constant pool id
}

// Next returns the address of the following instruction.
func (in Instruction) Next() int {
	return in.Addr + in.Size
}

// Target returns the jump target address.
func (in Instruction) Target() int {
	return in.Addr + in.Off
}

// Float returns the immediate reinterpreted as a float64.
func (in Instruction) Float() float64 {
	return math.Float64frombits(uint64(in.Imm))
}

// Reg returns the i-th register operand.
func (in Instruction) Reg(i int) int {
	return in.Regs[i]
}

// Decode decodes the instruction at addr.
func Decode(code []byte, addr int) (Instruction, error) {
	if addr < 0 || addr >= len(code) {
		return Instruction{}, fmt.Errorf("address %d outside code of length %d: %w", addr, len(code), ErrTruncated)
	}
	op := Opcode(code[addr])
	info, ok := GetOpcodeInfo(op)
	if !ok {
		return Instruction{}, fmt.Errorf("0x%02X at %d: %w", byte(op), addr, ErrInvalidOpcode)
	}

	in := Instruction{Addr: addr, Op: op}
	size := 1 + info.Format.fixedSize()
	if addr+size > len(code) {
		return Instruction{}, fmt.Errorf("%s at %d: %w", op, addr, ErrTruncated)
	}
	p := addr + 1

	switch info.Format {
	case FormatNone:
	case FormatV:
		in.Regs = []int{int(code[p])}
	case FormatVV:
		in.Regs = []int{int(code[p]), int(code[p+1])}
	case FormatVImm32:
		in.Regs = []int{int(code[p])}
		in.Imm = int64(int32(binary.BigEndian.Uint32(code[p+1:])))
	case FormatVImm64:
		in.Regs = []int{int(code[p])}
		in.Imm = int64(binary.BigEndian.Uint64(code[p+1:]))
	case FormatImm32:
		in.Imm = int64(int32(binary.BigEndian.Uint32(code[p:])))
	case FormatImm64:
		in.Imm = int64(binary.BigEndian.Uint64(code[p:]))
	case FormatOff16:
		in.Off = int(int16(binary.BigEndian.Uint16(code[p:])))
	case FormatVOff16:
		in.Regs = []int{int(code[p])}
		in.Off = int(int16(binary.BigEndian.Uint16(code[p+1:])))
	case FormatID16:
		in.ID = binary.BigEndian.Uint16(code[p:])
	case FormatVID16:
		in.Regs = []int{int(code[p])}
		in.ID = binary.BigEndian.Uint16(code[p+1:])
	case FormatVVID16:
		in.Regs = []int{int(code[p]), int(code[p+1])}
		in.ID = binary.BigEndian.Uint16(code[p+2:])
	case FormatCall:
		in.ID = binary.BigEndian.Uint16(code[p:])
		argc := int(code[p+2])
		if addr+size+argc > len(code) {
			return Instruction{}, fmt.Errorf("%s at %d: %w", op, addr, ErrTruncated)
		}
		in.Regs = make([]int, argc)
		for i := range argc {
			in.Regs[i] = int(code[p+3+i])
		}
		size += argc
	case FormatCallRange:
		in.ID = binary.BigEndian.Uint16(code[p:])
		argc := int(code[p+2])
		first := int(code[p+3])
		in.Regs = make([]int, argc)
		for i := range argc {
			in.Regs[i] = first + i
		}
	}

	in.Size = size
	return in, nil
}

// Cursor walks the instructions of a code span in address order.
type Cursor struct {
	code []byte
	pc   int
	end  int
}

// NewCursor creates a cursor over code[start:end).
func NewCursor(code []byte, start, end int) *Cursor {
	if end > len(code) {
		end = len(code)
	}
	return &Cursor{code: code, pc: start, end: end}
}

// Done reports whether the cursor reached the end of its span.
func (c *Cursor) Done() bool {
	return c.pc >= c.end
}

// Addr returns the address of the next instruction to be decoded.
func (c *Cursor) Addr() int {
	return c.pc
}

// Next decodes the current instruction and advances past it. An instruction
// that overruns the span end is reported as ErrTruncated.
func (c *Cursor) Next() (Instruction, error) {
	in, err := Decode(c.code[:c.end], c.pc)
	if err != nil {
		return Instruction{}, err
	}
	c.pc = in.Next()
	return in, nil
}
