package absint

import (
	"github.com/chazu/bcverify/diag"
	"github.com/chazu/bcverify/pkg/bytecode"
	"github.com/chazu/bcverify/types"
)

// width is the register class an instruction variant operates on.
type width uint8

const (
	width32 width = iota
	width64
	widthObj
)

func (w width) Type() types.Type {
	switch w {
	case width64:
		return types.Bits64.Type()
	case widthObj:
		return types.Reference.Type()
	default:
		return types.Bits32.Type()
	}
}

// step runs the transfer function of in on the current context. It returns
// false when the instruction ends the straight-line block.
func (vc *VerificationContext) step(in bytecode.Instruction) bool {
	switch in.Op {
	case bytecode.OpNop:
		return true

	// Moves
	case bytecode.OpMov:
		return vc.move(in, in.Reg(0), in.Reg(1), width32)
	case bytecode.OpMov64:
		return vc.move(in, in.Reg(0), in.Reg(1), width64)
	case bytecode.OpMovObj:
		return vc.move(in, in.Reg(0), in.Reg(1), widthObj)
	case bytecode.OpMovNull:
		return vc.define(in, in.Reg(0), types.NullReference.Type())
	case bytecode.OpMovi:
		return vc.define(in, in.Reg(0), types.I32.Type())
	case bytecode.OpMovi64:
		return vc.define(in, in.Reg(0), types.I64.Type())
	case bytecode.OpFmovi64:
		return vc.define(in, in.Reg(0), types.F64.Type())

	// Accumulator
	case bytecode.OpLda:
		return vc.move(in, Acc, in.Reg(0), width32)
	case bytecode.OpLda64:
		return vc.move(in, Acc, in.Reg(0), width64)
	case bytecode.OpLdaObj:
		return vc.move(in, Acc, in.Reg(0), widthObj)
	case bytecode.OpSta:
		return vc.move(in, in.Reg(0), Acc, width32)
	case bytecode.OpSta64:
		return vc.move(in, in.Reg(0), Acc, width64)
	case bytecode.OpStaObj:
		return vc.move(in, in.Reg(0), Acc, widthObj)
	case bytecode.OpLdai:
		return vc.define(in, Acc, types.I32.Type())
	case bytecode.OpLdai64:
		return vc.define(in, Acc, types.I64.Type())
	case bytecode.OpFldai64:
		return vc.define(in, Acc, types.F64.Type())
	case bytecode.OpLdaNull:
		return vc.define(in, Acc, types.NullReference.Type())
	case bytecode.OpLdaStr:
		return vc.loadString(in)
	case bytecode.OpLdaType:
		return vc.loadType(in)

	// Arithmetic
	case bytecode.OpAdd2, bytecode.OpSub2, bytecode.OpMul2, bytecode.OpDiv2, bytecode.OpMod2,
		bytecode.OpAnd2, bytecode.OpOr2, bytecode.OpXor2, bytecode.OpShl2, bytecode.OpShr2:
		return vc.binary(in, types.Integral32, types.I32)
	case bytecode.OpAdd264, bytecode.OpSub264, bytecode.OpMul264, bytecode.OpDiv264, bytecode.OpMod264,
		bytecode.OpAnd264, bytecode.OpOr264, bytecode.OpXor264, bytecode.OpShl264, bytecode.OpShr264:
		return vc.binary(in, types.Integral64, types.I64)
	case bytecode.OpFadd264, bytecode.OpFsub264, bytecode.OpFmul264, bytecode.OpFdiv264:
		return vc.binary(in, types.Float64, types.F64)
	case bytecode.OpCmp64:
		return vc.binary(in, types.Integral64, types.I32)
	case bytecode.OpFcmp64:
		return vc.binary(in, types.Float64, types.I32)
	case bytecode.OpNeg, bytecode.OpNot:
		return vc.unary(in, types.Integral32, types.I32)
	case bytecode.OpNeg64, bytecode.OpNot64:
		return vc.unary(in, types.Integral64, types.I64)
	case bytecode.OpFneg64:
		return vc.unary(in, types.Float64, types.F64)
	case bytecode.OpInc:
		if _, ok := vc.regOf(in, in.Reg(0), types.Integral32.Type()); !ok {
			return false
		}
		return vc.define(in, in.Reg(0), types.I32.Type())

	// Conversions
	case bytecode.OpI32toI64:
		return vc.unary(in, types.Integral32, types.I64)
	case bytecode.OpI64toI32:
		return vc.unary(in, types.Integral64, types.I32)
	case bytecode.OpI32toF64:
		return vc.unary(in, types.Integral32, types.F64)
	case bytecode.OpF64toI32:
		return vc.unary(in, types.Float64, types.I32)
	case bytecode.OpI64toF64:
		return vc.unary(in, types.Integral64, types.F64)
	case bytecode.OpF64toI64:
		return vc.unary(in, types.Float64, types.I64)
	case bytecode.OpI32toU1:
		return vc.unary(in, types.Integral32, types.U1)
	case bytecode.OpI32toI8:
		return vc.unary(in, types.Integral32, types.I8)
	case bytecode.OpI32toU8:
		return vc.unary(in, types.Integral32, types.U8)
	case bytecode.OpI32toI16:
		return vc.unary(in, types.Integral32, types.I16)
	case bytecode.OpI32toU16:
		return vc.unary(in, types.Integral32, types.U16)

	// Branches
	case bytecode.OpJmp:
		vc.processBranching(in)
		return false
	case bytecode.OpJeqz, bytecode.OpJnez, bytecode.OpJltz, bytecode.OpJgtz, bytecode.OpJlez, bytecode.OpJgez:
		return vc.condJump(in, types.Integral32, false)
	case bytecode.OpJeq, bytecode.OpJne, bytecode.OpJlt, bytecode.OpJgt, bytecode.OpJle, bytecode.OpJge:
		return vc.condJump(in, types.Integral32, true)
	case bytecode.OpJeqzObj, bytecode.OpJnezObj:
		return vc.nullJump(in)
	case bytecode.OpJeqObj, bytecode.OpJneObj:
		return vc.condJump(in, types.Reference, true)

	// Objects
	case bytecode.OpNewobj:
		return vc.newObject(in)
	case bytecode.OpLdobj:
		return vc.loadField(in, width32)
	case bytecode.OpLdobj64:
		return vc.loadField(in, width64)
	case bytecode.OpLdobjObj:
		return vc.loadField(in, widthObj)
	case bytecode.OpStobj:
		return vc.storeField(in, width32)
	case bytecode.OpStobj64:
		return vc.storeField(in, width64)
	case bytecode.OpStobjObj:
		return vc.storeField(in, widthObj)
	case bytecode.OpLdstatic:
		return vc.loadStatic(in, width32)
	case bytecode.OpLdstatic64:
		return vc.loadStatic(in, width64)
	case bytecode.OpLdstaticObj:
		return vc.loadStatic(in, widthObj)
	case bytecode.OpStstatic:
		return vc.storeStatic(in, width32)
	case bytecode.OpStstatic64:
		return vc.storeStatic(in, width64)
	case bytecode.OpStstaticObj:
		return vc.storeStatic(in, widthObj)

	// Arrays
	case bytecode.OpNewarr:
		return vc.newArray(in)
	case bytecode.OpLenarr:
		if _, ok := vc.objectReg(in, in.Reg(0), types.Array.Type()); !ok {
			return false
		}
		return vc.define(in, Acc, types.I32.Type())
	case bytecode.OpLdarr:
		return vc.loadElement(in, width32)
	case bytecode.OpLdarr64:
		return vc.loadElement(in, width64)
	case bytecode.OpLdarrObj:
		return vc.loadElement(in, widthObj)
	case bytecode.OpStarr:
		return vc.storeElement(in, width32)
	case bytecode.OpStarr64:
		return vc.storeElement(in, width64)
	case bytecode.OpStarrObj:
		return vc.storeElement(in, widthObj)

	// Casts
	case bytecode.OpCheckcast:
		return vc.checkCast(in)
	case bytecode.OpIsinstance:
		return vc.isInstance(in)

	// Calls
	case bytecode.OpCall, bytecode.OpCallRange:
		return vc.call(in, false)
	case bytecode.OpCallVirt:
		return vc.call(in, true)
	case bytecode.OpInitobj:
		return vc.initObject(in)

	// Returns
	case bytecode.OpReturn:
		vc.ret(in, width32)
		return false
	case bytecode.OpReturn64:
		vc.ret(in, width64)
		return false
	case bytecode.OpReturnObj:
		vc.ret(in, widthObj)
		return false
	case bytecode.OpReturnVoid:
		if !vc.method.Return.Void {
			vc.report(in.Addr, diag.BadReturnInstructionType, "return.void in method returning %s", vc.method.Return)
		}
		return false
	case bytecode.OpThrow:
		vc.throw(in)
		return false
	}

	vc.report(in.Addr, diag.InvalidOpcode, "no handler for %s", in.Op)
	vc.aborted = true
	return false
}

// ---------------------------------------------------------------------------
// Register access
// ---------------------------------------------------------------------------

// reg returns the value of r, reporting an undefined register.
func (vc *VerificationContext) reg(in bytecode.Instruction, r int) (AbstractTypedValue, bool) {
	rc := vc.exec.Current()
	if !rc.InRange(r) {
		vc.emit(in.Addr, diag.UndefinedRegister, vc.frameSeverity(), "%s: %s is outside the %d registers of the method", in.Op, regName(r), rc.Limit())
		return AbstractTypedValue{}, false
	}
	v, ok := rc.Get(r)
	if !ok {
		if rc.IsConflicted(r) {
			vc.report(in.Addr, diag.UndefinedRegister, "%s: %s was dropped by a join of incompatible values", in.Op, regName(r))
		} else {
			vc.report(in.Addr, diag.UndefinedRegister, "%s: %s is undefined", in.Op, regName(r))
		}
		return AbstractTypedValue{}, false
	}
	return v, true
}

// regOf returns the value of r and checks it against want.
func (vc *VerificationContext) regOf(in bytecode.Instruction, r int, want types.Type) (AbstractTypedValue, bool) {
	v, ok := vc.reg(in, r)
	if !ok {
		return v, false
	}
	if !vc.ts.IsSubtype(v.Type, want) {
		kind := diag.BadRegisterType
		if r == Acc {
			kind = diag.BadAccumulatorType
		}
		vc.report(in.Addr, kind, "%s: %s is %s, want %s", in.Op, regName(r), vc.ts.String(v.Type), vc.ts.String(want))
		return v, false
	}
	return v, true
}

// objectReg is regOf for values about to be dereferenced. A value that is
// always null ends the block without an error.
func (vc *VerificationContext) objectReg(in bytecode.Instruction, r int, want types.Type) (AbstractTypedValue, bool) {
	v, ok := vc.reg(in, r)
	if !ok {
		return v, false
	}
	if v.Type.Is(types.NullReference) {
		kind := diag.AlwaysNpe
		if r == Acc {
			kind = diag.AlwaysNpeAccumulator
		}
		vc.report(in.Addr, kind, "%s: %s is always null", in.Op, regName(r))
		return v, false
	}
	return vc.regOf(in, r, want)
}

// set stores v in r.
func (vc *VerificationContext) set(in bytecode.Instruction, r int, v AbstractTypedValue) bool {
	if err := vc.exec.Current().Set(r, v); err != nil {
		vc.emit(in.Addr, diag.UndefinedRegister, vc.frameSeverity(), "%s: %v", in.Op, err)
		return false
	}
	return true
}

// define stores a fresh value of type t produced by in.
func (vc *VerificationContext) define(in bytecode.Instruction, r int, t types.Type) bool {
	return vc.set(in, r, NewValue(t, InstructionOrigin(in.Addr)))
}

// move copies src to dst. The copy keeps its origin so later narrowing
// reaches both registers.
func (vc *VerificationContext) move(in bytecode.Instruction, dst, src int, w width) bool {
	v, ok := vc.regOf(in, src, w.Type())
	if !ok {
		return false
	}
	return vc.set(in, dst, v)
}

func (vc *VerificationContext) binary(in bytecode.Instruction, operand, result types.Builtin) bool {
	if _, ok := vc.regOf(in, Acc, operand.Type()); !ok {
		return false
	}
	if _, ok := vc.regOf(in, in.Reg(0), operand.Type()); !ok {
		return false
	}
	return vc.define(in, Acc, result.Type())
}

func (vc *VerificationContext) unary(in bytecode.Instruction, operand, result types.Builtin) bool {
	if _, ok := vc.regOf(in, Acc, operand.Type()); !ok {
		return false
	}
	return vc.define(in, Acc, result.Type())
}

// ---------------------------------------------------------------------------
// Branches
// ---------------------------------------------------------------------------

// processBranching validates the target of in and records the edge.
func (vc *VerificationContext) processBranching(in bytecode.Instruction) bool {
	t := in.Target()
	if !vc.cflow.IsInstruction(t) {
		vc.report(in.Addr, diag.IncorrectJump, "%s target %04X is not an instruction start", in.Op, t)
		vc.aborted = true
		return false
	}
	vc.noteConflicts(t, vc.exec.ProcessJump(in.Addr, t, vc.entry))
	return true
}

func (vc *VerificationContext) condJump(in bytecode.Instruction, operand types.Builtin, withReg bool) bool {
	if _, ok := vc.regOf(in, Acc, operand.Type()); !ok {
		return false
	}
	if withReg {
		if _, ok := vc.regOf(in, in.Reg(0), operand.Type()); !ok {
			return false
		}
	}
	return vc.processBranching(in)
}

// nullJump handles jeqz.obj and jnez.obj. Along the edge where the
// accumulator is null it and its aliases are narrowed to NullReference.
func (vc *VerificationContext) nullJump(in bytecode.Instruction) bool {
	acc, ok := vc.regOf(in, Acc, types.Reference.Type())
	if !ok {
		return false
	}
	plain := vc.exec.Current()
	null := plain.Clone()
	_ = null.SetAndPropagateToSameOrigin(Acc, acc.WithType(types.NullReference.Type()))

	jumpIfNull := in.Op == bytecode.OpJeqzObj
	if jumpIfNull {
		vc.exec.SetCurrent(null)
	}
	ok = vc.processBranching(in)
	if jumpIfNull {
		vc.exec.SetCurrent(plain)
	} else {
		vc.exec.SetCurrent(null)
	}
	return ok
}

// ---------------------------------------------------------------------------
// Returns and throw
// ---------------------------------------------------------------------------

func (vc *VerificationContext) ret(in bytecode.Instruction, w width) {
	want := vc.sig.Return
	if vc.method.Return.Void || !vc.ts.IsSubtype(want, w.Type()) {
		vc.report(in.Addr, diag.BadReturnInstructionType, "%s in method returning %s", in.Op, vc.method.Return)
		return
	}
	v, ok := vc.reg(in, Acc)
	if !ok {
		return
	}
	if !vc.ts.IsSubtype(v.Type, want) {
		vc.report(in.Addr, diag.BadReturnType, "%s: returning %s from method returning %s", in.Op, vc.ts.String(v.Type), vc.ts.String(want))
	}
}

func (vc *VerificationContext) throw(in bytecode.Instruction) {
	v, ok := vc.objectReg(in, in.Reg(0), types.Reference.Type())
	if !ok {
		return
	}
	if t := vc.v.throwable; t != nil && !vc.ts.IsSubtype(v.Type, t.Type()) {
		vc.report(in.Addr, diag.ThrowNonThrowable, "throw: %s is %s, not %s", regName(in.Reg(0)), vc.ts.String(v.Type), t.Name())
	}
}
