package bytecode

import (
	"bufio"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// SymbolFunc maps a symbolic id operand (@Name, or a quoted string for
// lda.str) to a constant pool id.
type SymbolFunc func(kind IDKind, name string) (uint16, error)

// Assembler turns the text form into code bytes.
//
// Syntax, one instruction per line:
//
//	; comment
//	loop:                 label on its own line
//	done: return.void     label followed by an instruction
//	movi v0, 42
//	jeq v1, loop          jump operands are labels or numeric offsets
//	newobj v0, @Point     symbolic ids go through Symbols
//	ldobj v0, #3          numeric ids are used as-is
//	lda.str "hello"
//	call @Point.<init>, v0, v1
//	call.range @Util.sum, 3, v4
type Assembler struct {
	Symbols SymbolFunc
}

// Assemble assembles src with no symbol table; only numeric ids are accepted.
func Assemble(src string) ([]byte, error) {
	return (&Assembler{}).Assemble(src)
}

// Assemble assembles src into code bytes.
func (a *Assembler) Assemble(src string) ([]byte, error) {
	c, err := a.AssembleChunk(src)
	if err != nil {
		return nil, err
	}
	return c.Code, nil
}

// AssembleChunk assembles src and returns the chunk, whose labels stay
// available through LabelOffset.
func (a *Assembler) AssembleChunk(src string) (*Chunk, error) {
	c := NewChunk()
	sc := bufio.NewScanner(strings.NewReader(src))
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		text = strings.TrimSpace(stripComment(text))
		if text == "" {
			continue
		}

		if label, rest, ok := splitLabel(text); ok {
			if err := c.Label(label); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
			text = rest
			if text == "" {
				continue
			}
		}

		if err := a.assembleLine(c, text, line); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if err := c.ResolveLabels(); err != nil {
		return nil, err
	}
	return c, nil
}

// stripComment cuts text at the first ';' outside a string literal.
func stripComment(text string) string {
	quoted := false
	for i, r := range text {
		switch {
		case r == '"':
			quoted = !quoted
		case r == ';' && !quoted:
			return text[:i]
		}
	}
	return text
}

// splitLabel splits "name: rest" into its parts.
func splitLabel(text string) (string, string, bool) {
	i := strings.IndexByte(text, ':')
	if i <= 0 {
		return "", "", false
	}
	name := text[:i]
	if strings.ContainsAny(name, " \t,\"@#") {
		return "", "", false
	}
	return name, strings.TrimSpace(text[i+1:]), true
}

func (a *Assembler) assembleLine(c *Chunk, text string, line int) error {
	mnemonic, rest := text, ""
	if i := strings.IndexAny(text, " \t"); i >= 0 {
		mnemonic, rest = text[:i], text[i+1:]
	}
	op, ok := LookupOpcode(mnemonic)
	if !ok {
		return fmt.Errorf("unknown mnemonic %q", mnemonic)
	}
	args := splitOperands(rest)
	format := op.Format()

	if op.IsJump() {
		var regs []int64
		if format == FormatVOff16 {
			if len(args) != 2 {
				return fmt.Errorf("%s takes a register and a target", op)
			}
			r, err := parseReg(args[0])
			if err != nil {
				return err
			}
			regs = append(regs, r)
			args = args[1:]
		} else if len(args) != 1 {
			return fmt.Errorf("%s takes a target", op)
		}
		if off, err := strconv.ParseInt(args[0], 0, 16); err == nil {
			c.Emit(op, append(regs, off)...)
			return nil
		}
		c.emitJumpToLine(op, args[0], line, regs...)
		return nil
	}

	operands := make([]int64, 0, len(args))
	for i, arg := range args {
		v, err := a.parseOperand(op, format, i, arg)
		if err != nil {
			return err
		}
		operands = append(operands, v)
	}
	if want := operandCount(format); want >= 0 && len(operands) != want {
		return fmt.Errorf("%s takes %d operands, got %d", op, want, len(operands))
	}
	if format == FormatCall && len(operands) == 0 {
		return fmt.Errorf("%s needs a method id", op)
	}
	c.Emit(op, operands...)
	return nil
}

func splitOperands(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var out []string
	var cur strings.Builder
	quoted := false
	for _, r := range s {
		switch {
		case r == '"':
			quoted = !quoted
			cur.WriteRune(r)
		case r == ',' && !quoted:
			out = append(out, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(out, strings.TrimSpace(cur.String()))
}

// operandRole reports what the i-th operand of a format denotes.
type operandRole int

const (
	roleReg operandRole = iota
	roleImm
	roleID
	roleCount
)

func roleOf(format Format, i int) operandRole {
	switch format {
	case FormatV, FormatVV:
		return roleReg
	case FormatVImm32, FormatVImm64:
		if i == 0 {
			return roleReg
		}
		return roleImm
	case FormatImm32, FormatImm64:
		return roleImm
	case FormatID16:
		return roleID
	case FormatVID16:
		if i == 0 {
			return roleReg
		}
		return roleID
	case FormatVVID16:
		if i < 2 {
			return roleReg
		}
		return roleID
	case FormatCall:
		if i == 0 {
			return roleID
		}
		return roleReg
	case FormatCallRange:
		switch i {
		case 0:
			return roleID
		case 1:
			return roleCount
		default:
			return roleReg
		}
	default:
		return roleImm
	}
}

func (a *Assembler) parseOperand(op Opcode, format Format, i int, arg string) (int64, error) {
	switch roleOf(format, i) {
	case roleReg:
		return parseReg(arg)
	case roleCount:
		return strconv.ParseInt(arg, 0, 8)
	case roleID:
		return a.parseID(op, arg)
	default:
		if op == OpFmovi64 || op == OpFldai64 {
			f, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				return 0, fmt.Errorf("bad float immediate %q", arg)
			}
			return int64(math.Float64bits(f)), nil
		}
		v, err := strconv.ParseInt(arg, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("bad immediate %q", arg)
		}
		return v, nil
	}
}

func parseReg(s string) (int64, error) {
	if len(s) < 2 || s[0] != 'v' {
		return 0, fmt.Errorf("expected register, got %q", s)
	}
	n, err := strconv.ParseUint(s[1:], 10, 8)
	if err != nil {
		return 0, fmt.Errorf("bad register %q", s)
	}
	return int64(n), nil
}

func (a *Assembler) parseID(op Opcode, s string) (int64, error) {
	switch {
	case strings.HasPrefix(s, "#"):
		n, err := strconv.ParseUint(s[1:], 0, 16)
		if err != nil {
			return 0, fmt.Errorf("bad id %q", s)
		}
		return int64(n), nil
	case strings.HasPrefix(s, "@"), strings.HasPrefix(s, `"`):
		if a.Symbols == nil {
			return 0, fmt.Errorf("symbolic id %s without a symbol table", s)
		}
		name := s[1:]
		if s[0] == '"' {
			unq, err := strconv.Unquote(s)
			if err != nil {
				return 0, fmt.Errorf("bad string literal %s", s)
			}
			name = unq
		}
		id, err := a.Symbols(op.IDKind(), name)
		if err != nil {
			return 0, err
		}
		return int64(id), nil
	default:
		return 0, fmt.Errorf("expected id (#N, @Name or string), got %q", s)
	}
}
