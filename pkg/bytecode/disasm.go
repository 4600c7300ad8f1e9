package bytecode

import (
	"fmt"
	"strconv"
	"strings"
)

// NameFunc returns a display name for a pool id, or "" if unknown.
type NameFunc func(kind IDKind, id uint16) string

// Disassemble returns a human-readable listing of code.
func Disassemble(code []byte) string {
	return DisassembleWithNames(code, nil)
}

// DisassembleWithNames returns a listing of code with pool ids annotated by
// names. Decoding stops at the first malformed instruction, which is shown
// as a raw byte.
func DisassembleWithNames(code []byte, names NameFunc) string {
	var sb strings.Builder
	addr := 0
	for addr < len(code) {
		in, err := Decode(code, addr)
		if err != nil {
			fmt.Fprintf(&sb, "%04X  .byte 0x%02X ; %v\n", addr, code[addr], err)
			break
		}
		fmt.Fprintf(&sb, "%04X  %s\n", addr, FormatInstruction(in, names))
		addr = in.Next()
	}
	return sb.String()
}

// FormatInstruction renders one instruction in assembler syntax. Jump
// targets are shown as relative offsets with the absolute address in a
// trailing comment.
func FormatInstruction(in Instruction, names NameFunc) string {
	info, _ := GetOpcodeInfo(in.Op)
	ops := make([]string, 0, 4)
	id := func() string {
		s := "#" + strconv.Itoa(int(in.ID))
		if names != nil {
			if n := names(in.Op.IDKind(), in.ID); n != "" {
				s += " (" + n + ")"
			}
		}
		return s
	}

	switch info.Format {
	case FormatNone:
	case FormatV, FormatVV:
		for _, r := range in.Regs {
			ops = append(ops, reg(r))
		}
	case FormatVImm32, FormatVImm64:
		ops = append(ops, reg(in.Regs[0]), imm(in))
	case FormatImm32, FormatImm64:
		ops = append(ops, imm(in))
	case FormatOff16:
		ops = append(ops, fmt.Sprintf("%+d", in.Off))
	case FormatVOff16:
		ops = append(ops, reg(in.Regs[0]), fmt.Sprintf("%+d", in.Off))
	case FormatID16:
		ops = append(ops, id())
	case FormatVID16:
		ops = append(ops, reg(in.Regs[0]), id())
	case FormatVVID16:
		ops = append(ops, reg(in.Regs[0]), reg(in.Regs[1]), id())
	case FormatCall:
		ops = append(ops, id())
		for _, r := range in.Regs {
			ops = append(ops, reg(r))
		}
	case FormatCallRange:
		first := 0
		if len(in.Regs) > 0 {
			first = in.Regs[0]
		}
		ops = append(ops, id(), strconv.Itoa(len(in.Regs)), reg(first))
	}

	s := info.Name
	if len(ops) > 0 {
		s += " " + strings.Join(ops, ", ")
	}
	if in.Op.IsJump() {
		s += fmt.Sprintf(" ; -> %04X", in.Target())
	}
	return s
}

func reg(r int) string {
	return "v" + strconv.Itoa(r)
}

func imm(in Instruction) string {
	if in.Op == OpFmovi64 || in.Op == OpFldai64 {
		return strconv.FormatFloat(in.Float(), 'g', -1, 64)
	}
	return strconv.FormatInt(in.Imm, 10)
}
