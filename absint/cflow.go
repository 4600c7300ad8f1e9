package absint

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/chazu/bcverify/classpath"
	"github.com/chazu/bcverify/diag"
	"github.com/chazu/bcverify/pkg/bytecode"
)

// ErrMalformedControlFlow is wrapped by every FlowError.
var ErrMalformedControlFlow = errors.New("malformed control flow")

// FlowError is a structural defect found while building ControlFlowInfo. It
// rejects the whole method.
type FlowError struct {
	Kind   diag.Kind
	Offset int
	Msg    string
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("%04X: %s: %s", e.Offset, e.Kind, e.Msg)
}

func (e *FlowError) Unwrap() error { return ErrMalformedControlFlow }

// Flags describe one byte offset of a method body.
type Flags uint8

const (
	FlagInstruction Flags = 1 << iota
	FlagJumpTarget
	FlagExceptionSource
	FlagExceptionHandler
	FlagHandlerStart
	FlagTryBoundary
)

func (f Flags) String() string {
	var parts []string
	for _, x := range []struct {
		f    Flags
		name string
	}{
		{FlagInstruction, "INSTRUCTION"},
		{FlagJumpTarget, "JUMP_TARGET"},
		{FlagExceptionSource, "EXCEPTION_SOURCE"},
		{FlagExceptionHandler, "EXCEPTION_HANDLER"},
		{FlagHandlerStart, "HANDLER_START"},
		{FlagTryBoundary, "TRY_BOUNDARY"},
	} {
		if f&x.f != 0 {
			parts = append(parts, x.name)
		}
	}
	return strings.Join(parts, "|")
}

// ControlFlowInfo holds the flags of every byte offset of a method body. It
// is immutable once built.
type ControlFlowInfo struct {
	flags    []Flags
	handlers []int
}

// BuildControlFlowInfo scans code and the declared try blocks.
func BuildControlFlowInfo(code []byte, tries []classpath.TryBlock) (*ControlFlowInfo, error) {
	cfi := &ControlFlowInfo{flags: make([]Flags, len(code))}
	if len(code) == 0 {
		return nil, &FlowError{Kind: diag.FallsOffEnd, Msg: "empty method body"}
	}

	var targets []bytecode.Instruction
	if err := cfi.walk(code, 0, len(code), func(in bytecode.Instruction) {
		if in.Op.IsJump() {
			targets = append(targets, in)
		}
	}); err != nil {
		return nil, err
	}
	for _, in := range targets {
		t := in.Target()
		if t < 0 || t >= len(code) {
			return nil, &FlowError{Kind: diag.IncorrectJump, Offset: in.Addr,
				Msg: fmt.Sprintf("%s target %04X outside method body [0000, %04X)", in.Op, t, len(code))}
		}
		if !cfi.Has(t, FlagInstruction) {
			return nil, &FlowError{Kind: diag.IncorrectJump, Offset: in.Addr,
				Msg: fmt.Sprintf("%s target %04X is not an instruction start", in.Op, t)}
		}
		cfi.flags[t] |= FlagJumpTarget
	}

	for _, tb := range tries {
		if err := cfi.markTry(tb); err != nil {
			return nil, err
		}
	}
	slices.Sort(cfi.handlers)
	cfi.handlers = slices.Compact(cfi.handlers)
	return cfi, nil
}

// walk decodes [start, end) and marks instruction starts.
func (cfi *ControlFlowInfo) walk(code []byte, start, end int, visit func(bytecode.Instruction)) error {
	cur := bytecode.NewCursor(code, start, end)
	for !cur.Done() {
		addr := cur.Addr()
		in, err := cur.Next()
		switch {
		case errors.Is(err, bytecode.ErrInvalidOpcode):
			return &FlowError{Kind: diag.InvalidOpcode, Offset: addr, Msg: err.Error()}
		case err != nil:
			return &FlowError{Kind: diag.InstructionOverrun, Offset: addr, Msg: err.Error()}
		}
		f := FlagInstruction
		if in.Op.CanThrow() {
			f |= FlagExceptionSource
		}
		cfi.flags[addr] |= f
		visit(in)
	}
	return nil
}

func (cfi *ControlFlowInfo) markTry(tb classpath.TryBlock) error {
	n := len(cfi.flags)
	if tb.Start < 0 || tb.Length <= 0 || tb.End() > n {
		return &FlowError{Kind: diag.IncorrectJump, Offset: max(tb.Start, 0),
			Msg: fmt.Sprintf("try block [%04X, %04X) outside method body", tb.Start, tb.End())}
	}
	if !cfi.Has(tb.Start, FlagInstruction) || (tb.End() < n && !cfi.Has(tb.End(), FlagInstruction)) {
		return &FlowError{Kind: diag.IncorrectJump, Offset: tb.Start,
			Msg: fmt.Sprintf("try block [%04X, %04X) does not start and end on instructions", tb.Start, tb.End())}
	}
	cfi.flags[tb.Start] |= FlagTryBoundary
	if tb.End() < n {
		cfi.flags[tb.End()] |= FlagTryBoundary
	}

	for _, cb := range tb.Catches {
		h := cb.HandlerPC
		if h < 0 || h >= n || !cfi.Has(h, FlagInstruction) {
			return &FlowError{Kind: diag.IncorrectJump, Offset: tb.Start,
				Msg: fmt.Sprintf("handler %04X is not an instruction start", h)}
		}
		end := min(h+max(cb.Size, 1), n)
		for addr := h; addr < end; addr++ {
			if cfi.flags[addr]&FlagInstruction != 0 {
				cfi.flags[addr] |= FlagExceptionHandler
			}
		}
		cfi.flags[h] |= FlagHandlerStart
		cfi.handlers = append(cfi.handlers, h)
	}
	return nil
}

// Len returns the size of the method body in bytes.
func (cfi *ControlFlowInfo) Len() int { return len(cfi.flags) }

// Flags returns the flags of addr, or zero outside the body.
func (cfi *ControlFlowInfo) Flags(addr int) Flags {
	if addr < 0 || addr >= len(cfi.flags) {
		return 0
	}
	return cfi.flags[addr]
}

// Has reports whether addr carries every flag in f.
func (cfi *ControlFlowInfo) Has(addr int, f Flags) bool {
	return cfi.Flags(addr)&f == f
}

// IsInstruction reports whether an instruction starts at addr.
func (cfi *ControlFlowInfo) IsInstruction(addr int) bool {
	return cfi.Has(addr, FlagInstruction)
}

// Handlers returns the sorted handler start addresses.
func (cfi *ControlFlowInfo) Handlers() []int { return cfi.handlers }

// Instructions returns every instruction start in ascending order.
func (cfi *ControlFlowInfo) Instructions() []int {
	var out []int
	for addr, f := range cfi.flags {
		if f&FlagInstruction != 0 {
			out = append(out, addr)
		}
	}
	return out
}

// ExceptionSources returns the throwing instructions inside tb.
func (cfi *ControlFlowInfo) ExceptionSources(tb classpath.TryBlock) []int {
	var out []int
	for addr := tb.Start; addr < tb.End() && addr < len(cfi.flags); addr++ {
		if cfi.Has(addr, FlagInstruction|FlagExceptionSource) {
			out = append(out, addr)
		}
	}
	return out
}
