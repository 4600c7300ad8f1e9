package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by family for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Register moves (0x00-0x0F)
	// ========================================================================

	OpNop     Opcode = 0x00 // No operation
	OpMov     Opcode = 0x01 // vA <- vB (32-bit)
	OpMov64   Opcode = 0x02 // vA <- vB (64-bit)
	OpMovObj  Opcode = 0x03 // vA <- vB (reference)
	OpMovNull Opcode = 0x04 // vA <- null
	OpMovi    Opcode = 0x05 // vA <- imm32
	OpMovi64  Opcode = 0x06 // vA <- imm64
	OpFmovi64 Opcode = 0x07 // vA <- f64 bits

	// ========================================================================
	// Accumulator (0x10-0x1F)
	// ========================================================================

	OpLda     Opcode = 0x10 // acc <- vA (32-bit)
	OpLda64   Opcode = 0x11 // acc <- vA (64-bit)
	OpLdaObj  Opcode = 0x12 // acc <- vA (reference)
	OpSta     Opcode = 0x13 // vA <- acc (32-bit)
	OpSta64   Opcode = 0x14 // vA <- acc (64-bit)
	OpStaObj  Opcode = 0x15 // vA <- acc (reference)
	OpLdai    Opcode = 0x16 // acc <- imm32
	OpLdai64  Opcode = 0x17 // acc <- imm64
	OpFldai64 Opcode = 0x18 // acc <- f64 bits
	OpLdaNull Opcode = 0x19 // acc <- null
	OpLdaStr  Opcode = 0x1A // acc <- string constant: OpLdaStr <id:u16>
	OpLdaType Opcode = 0x1B // acc <- class object: OpLdaType <id:u16>

	// ========================================================================
	// 32-bit integer arithmetic (0x20-0x2F), acc <- acc op vA
	// ========================================================================

	OpAdd2 Opcode = 0x20
	OpSub2 Opcode = 0x21
	OpMul2 Opcode = 0x22
	OpDiv2 Opcode = 0x23
	OpMod2 Opcode = 0x24
	OpAnd2 Opcode = 0x25
	OpOr2  Opcode = 0x26
	OpXor2 Opcode = 0x27
	OpShl2 Opcode = 0x28
	OpShr2 Opcode = 0x29
	OpNeg  Opcode = 0x2A // acc <- -acc
	OpNot  Opcode = 0x2B // acc <- ^acc
	OpInc  Opcode = 0x2C // vA <- vA + imm32

	// ========================================================================
	// 64-bit integer arithmetic (0x30-0x3F)
	// ========================================================================

	OpAdd264 Opcode = 0x30
	OpSub264 Opcode = 0x31
	OpMul264 Opcode = 0x32
	OpDiv264 Opcode = 0x33
	OpMod264 Opcode = 0x34
	OpAnd264 Opcode = 0x35
	OpOr264  Opcode = 0x36
	OpXor264 Opcode = 0x37
	OpShl264 Opcode = 0x38
	OpShr264 Opcode = 0x39
	OpNeg64  Opcode = 0x3A
	OpNot64  Opcode = 0x3B

	// ========================================================================
	// Floating point and comparisons (0x40-0x4F)
	// ========================================================================

	OpFadd264 Opcode = 0x40
	OpFsub264 Opcode = 0x41
	OpFmul264 Opcode = 0x42
	OpFdiv264 Opcode = 0x43
	OpFneg64  Opcode = 0x44
	OpCmp64   Opcode = 0x48 // acc <- compare(acc, vA) as i32
	OpFcmp64  Opcode = 0x49 // acc <- compare(acc, vA) as i32

	// ========================================================================
	// Conversions (0x50-0x5F), acc <- convert(acc)
	// ========================================================================

	OpI32toI64 Opcode = 0x50
	OpI64toI32 Opcode = 0x51
	OpI32toF64 Opcode = 0x52
	OpF64toI32 Opcode = 0x53
	OpI64toF64 Opcode = 0x54
	OpF64toI64 Opcode = 0x55
	OpI32toU1  Opcode = 0x56
	OpI32toI8  Opcode = 0x57
	OpI32toU8  Opcode = 0x58
	OpI32toI16 Opcode = 0x59
	OpI32toU16 Opcode = 0x5A

	// ========================================================================
	// Control flow (0x60-0x7F): offsets are relative to the jump's address
	// ========================================================================

	OpJmp     Opcode = 0x60 // Unconditional jump: OpJmp <offset:i16>
	OpJeqz    Opcode = 0x61 // Jump if acc == 0
	OpJnez    Opcode = 0x62 // Jump if acc != 0
	OpJltz    Opcode = 0x63
	OpJgtz    Opcode = 0x64
	OpJlez    Opcode = 0x65
	OpJgez    Opcode = 0x66
	OpJeq     Opcode = 0x67 // Jump if acc == vA: OpJeq <v:u8> <offset:i16>
	OpJne     Opcode = 0x68
	OpJlt     Opcode = 0x69
	OpJgt     Opcode = 0x6A
	OpJle     Opcode = 0x6B
	OpJge     Opcode = 0x6C
	OpJeqzObj Opcode = 0x6D // Jump if acc is null
	OpJnezObj Opcode = 0x6E // Jump if acc is not null
	OpJeqObj  Opcode = 0x6F // Jump if acc and vA are the same reference
	OpJneObj  Opcode = 0x70

	// ========================================================================
	// Objects and fields (0x80-0x8F)
	// ========================================================================

	OpNewobj      Opcode = 0x80 // vA <- new class: OpNewobj <v:u8> <class:u16>
	OpLdobj       Opcode = 0x81 // acc <- vA.field (32-bit)
	OpLdobj64     Opcode = 0x82
	OpLdobjObj    Opcode = 0x83
	OpStobj       Opcode = 0x84 // vA.field <- acc (32-bit)
	OpStobj64     Opcode = 0x85
	OpStobjObj    Opcode = 0x86
	OpLdstatic    Opcode = 0x87 // acc <- static field: OpLdstatic <field:u16>
	OpLdstatic64  Opcode = 0x88
	OpLdstaticObj Opcode = 0x89
	OpStstatic    Opcode = 0x8A // static field <- acc
	OpStstatic64  Opcode = 0x8B
	OpStstaticObj Opcode = 0x8C

	// ========================================================================
	// Arrays (0x90-0x9F)
	// ========================================================================

	OpNewarr    Opcode = 0x90 // vA <- new array[vB]: OpNewarr <v:u8> <v:u8> <class:u16>
	OpLenarr    Opcode = 0x91 // acc <- len(vA)
	OpLdarr     Opcode = 0x92 // acc <- vA[acc] (32-bit)
	OpLdarr64   Opcode = 0x93
	OpLdarrObj  Opcode = 0x94
	OpStarr     Opcode = 0x95 // vA[vB] <- acc (32-bit)
	OpStarr64   Opcode = 0x96
	OpStarrObj  Opcode = 0x97

	// ========================================================================
	// Casts (0xA0-0xAF)
	// ========================================================================

	OpCheckcast  Opcode = 0xA0 // acc <- (class) acc: OpCheckcast <class:u16>
	OpIsinstance Opcode = 0xA1 // acc <- acc instanceof class

	// ========================================================================
	// Calls (0xB0-0xBF)
	// ========================================================================

	OpCall      Opcode = 0xB0 // acc <- m(args): OpCall <method:u16> <argc:u8> <v:u8>...
	OpCallVirt  Opcode = 0xB1 // virtual dispatch on args[0]
	OpCallRange Opcode = 0xB2 // OpCallRange <method:u16> <argc:u8> <first:u8>
	OpInitobj   Opcode = 0xB3 // acc <- new object, constructor called with args

	// ========================================================================
	// Return (0xF0-0xFF)
	// ========================================================================

	OpReturn     Opcode = 0xF0 // Return acc (32-bit)
	OpReturn64   Opcode = 0xF1
	OpReturnObj  Opcode = 0xF2
	OpReturnVoid Opcode = 0xF3
	OpThrow      Opcode = 0xF4 // Throw vA
)

// Format is the operand layout of an instruction. Only the decoder and the
// encoder look at formats.
type Format uint8

const (
	FormatNone      Format = iota // op
	FormatV                       // op v8
	FormatVV                      // op v8 v8
	FormatVImm32                  // op v8 imm32
	FormatVImm64                  // op v8 imm64
	FormatImm32                   // op imm32
	FormatImm64                   // op imm64
	FormatOff16                   // op off16
	FormatVOff16                  // op v8 off16
	FormatID16                    // op id16
	FormatVID16                   // op v8 id16
	FormatVVID16                  // op v8 v8 id16
	FormatCall                    // op id16 argc8 v8*argc
	FormatCallRange               // op id16 argc8 v8
)

// fixedSize returns the operand byte count for fixed-size formats.
// FormatCall reports its fixed prefix only.
func (f Format) fixedSize() int {
	switch f {
	case FormatNone:
		return 0
	case FormatV:
		return 1
	case FormatVV:
		return 2
	case FormatVImm32:
		return 5
	case FormatVImm64:
		return 9
	case FormatImm32:
		return 4
	case FormatImm64:
		return 8
	case FormatOff16:
		return 2
	case FormatVOff16:
		return 3
	case FormatID16:
		return 2
	case FormatVID16:
		return 3
	case FormatVVID16:
		return 4
	case FormatCall:
		return 3
	case FormatCallRange:
		return 4
	default:
		return 0
	}
}

// OpFlags describe control-flow properties of an opcode.
type OpFlags uint8

const (
	// FlagJump marks instructions carrying a jump offset.
	FlagJump OpFlags = 1 << iota
	// FlagConditional marks jumps that may also fall through.
	FlagConditional
	// FlagReturn marks return instructions.
	FlagReturn
	// FlagThrows marks instructions that may raise an exception.
	FlagThrows
	// FlagCall marks method invocations.
	FlagCall
)

// OpcodeInfo provides metadata about each opcode for decoding and validation.
type OpcodeInfo struct {
	Name   string  // Mnemonic
	Format Format  // Operand layout
	Flags  OpFlags // Control-flow properties
}

const (
	condJump = FlagJump | FlagConditional
	throws   = FlagThrows
)

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Moves
	OpNop:     {"nop", FormatNone, 0},
	OpMov:     {"mov", FormatVV, 0},
	OpMov64:   {"mov.64", FormatVV, 0},
	OpMovObj:  {"mov.obj", FormatVV, 0},
	OpMovNull: {"mov.null", FormatV, 0},
	OpMovi:    {"movi", FormatVImm32, 0},
	OpMovi64:  {"movi.64", FormatVImm64, 0},
	OpFmovi64: {"fmovi.64", FormatVImm64, 0},

	// Accumulator
	OpLda:     {"lda", FormatV, 0},
	OpLda64:   {"lda.64", FormatV, 0},
	OpLdaObj:  {"lda.obj", FormatV, 0},
	OpSta:     {"sta", FormatV, 0},
	OpSta64:   {"sta.64", FormatV, 0},
	OpStaObj:  {"sta.obj", FormatV, 0},
	OpLdai:    {"ldai", FormatImm32, 0},
	OpLdai64:  {"ldai.64", FormatImm64, 0},
	OpFldai64: {"fldai.64", FormatImm64, 0},
	OpLdaNull: {"lda.null", FormatNone, 0},
	OpLdaStr:  {"lda.str", FormatID16, 0},
	OpLdaType: {"lda.type", FormatID16, 0},

	// 32-bit arithmetic
	OpAdd2: {"add2", FormatV, 0},
	OpSub2: {"sub2", FormatV, 0},
	OpMul2: {"mul2", FormatV, 0},
	OpDiv2: {"div2", FormatV, throws},
	OpMod2: {"mod2", FormatV, throws},
	OpAnd2: {"and2", FormatV, 0},
	OpOr2:  {"or2", FormatV, 0},
	OpXor2: {"xor2", FormatV, 0},
	OpShl2: {"shl2", FormatV, 0},
	OpShr2: {"shr2", FormatV, 0},
	OpNeg:  {"neg", FormatNone, 0},
	OpNot:  {"not", FormatNone, 0},
	OpInc:  {"inc", FormatVImm32, 0},

	// 64-bit arithmetic
	OpAdd264: {"add2.64", FormatV, 0},
	OpSub264: {"sub2.64", FormatV, 0},
	OpMul264: {"mul2.64", FormatV, 0},
	OpDiv264: {"div2.64", FormatV, throws},
	OpMod264: {"mod2.64", FormatV, throws},
	OpAnd264: {"and2.64", FormatV, 0},
	OpOr264:  {"or2.64", FormatV, 0},
	OpXor264: {"xor2.64", FormatV, 0},
	OpShl264: {"shl2.64", FormatV, 0},
	OpShr264: {"shr2.64", FormatV, 0},
	OpNeg64:  {"neg.64", FormatNone, 0},
	OpNot64:  {"not.64", FormatNone, 0},

	// Floating point and comparisons
	OpFadd264: {"fadd2.64", FormatV, 0},
	OpFsub264: {"fsub2.64", FormatV, 0},
	OpFmul264: {"fmul2.64", FormatV, 0},
	OpFdiv264: {"fdiv2.64", FormatV, 0},
	OpFneg64:  {"fneg.64", FormatNone, 0},
	OpCmp64:   {"cmp.64", FormatV, 0},
	OpFcmp64:  {"fcmp.64", FormatV, 0},

	// Conversions
	OpI32toI64: {"i32toi64", FormatNone, 0},
	OpI64toI32: {"i64toi32", FormatNone, 0},
	OpI32toF64: {"i32tof64", FormatNone, 0},
	OpF64toI32: {"f64toi32", FormatNone, 0},
	OpI64toF64: {"i64tof64", FormatNone, 0},
	OpF64toI64: {"f64toi64", FormatNone, 0},
	OpI32toU1:  {"i32tou1", FormatNone, 0},
	OpI32toI8:  {"i32toi8", FormatNone, 0},
	OpI32toU8:  {"i32tou8", FormatNone, 0},
	OpI32toI16: {"i32toi16", FormatNone, 0},
	OpI32toU16: {"i32tou16", FormatNone, 0},

	// Control flow
	OpJmp:     {"jmp", FormatOff16, FlagJump},
	OpJeqz:    {"jeqz", FormatOff16, condJump},
	OpJnez:    {"jnez", FormatOff16, condJump},
	OpJltz:    {"jltz", FormatOff16, condJump},
	OpJgtz:    {"jgtz", FormatOff16, condJump},
	OpJlez:    {"jlez", FormatOff16, condJump},
	OpJgez:    {"jgez", FormatOff16, condJump},
	OpJeq:     {"jeq", FormatVOff16, condJump},
	OpJne:     {"jne", FormatVOff16, condJump},
	OpJlt:     {"jlt", FormatVOff16, condJump},
	OpJgt:     {"jgt", FormatVOff16, condJump},
	OpJle:     {"jle", FormatVOff16, condJump},
	OpJge:     {"jge", FormatVOff16, condJump},
	OpJeqzObj: {"jeqz.obj", FormatOff16, condJump},
	OpJnezObj: {"jnez.obj", FormatOff16, condJump},
	OpJeqObj:  {"jeq.obj", FormatVOff16, condJump},
	OpJneObj:  {"jne.obj", FormatVOff16, condJump},

	// Objects
	OpNewobj:      {"newobj", FormatVID16, throws},
	OpLdobj:       {"ldobj", FormatVID16, throws},
	OpLdobj64:     {"ldobj.64", FormatVID16, throws},
	OpLdobjObj:    {"ldobj.obj", FormatVID16, throws},
	OpStobj:       {"stobj", FormatVID16, throws},
	OpStobj64:     {"stobj.64", FormatVID16, throws},
	OpStobjObj:    {"stobj.obj", FormatVID16, throws},
	OpLdstatic:    {"ldstatic", FormatID16, throws},
	OpLdstatic64:  {"ldstatic.64", FormatID16, throws},
	OpLdstaticObj: {"ldstatic.obj", FormatID16, throws},
	OpStstatic:    {"ststatic", FormatID16, throws},
	OpStstatic64:  {"ststatic.64", FormatID16, throws},
	OpStstaticObj: {"ststatic.obj", FormatID16, throws},

	// Arrays
	OpNewarr:   {"newarr", FormatVVID16, throws},
	OpLenarr:   {"lenarr", FormatV, throws},
	OpLdarr:    {"ldarr", FormatV, throws},
	OpLdarr64:  {"ldarr.64", FormatV, throws},
	OpLdarrObj: {"ldarr.obj", FormatV, throws},
	OpStarr:    {"starr", FormatVV, throws},
	OpStarr64:  {"starr.64", FormatVV, throws},
	OpStarrObj: {"starr.obj", FormatVV, throws},

	// Casts
	OpCheckcast:  {"checkcast", FormatID16, throws},
	OpIsinstance: {"isinstance", FormatID16, 0},

	// Calls
	OpCall:      {"call", FormatCall, FlagCall | throws},
	OpCallVirt:  {"call.virt", FormatCall, FlagCall | throws},
	OpCallRange: {"call.range", FormatCallRange, FlagCall | throws},
	OpInitobj:   {"initobj", FormatCall, FlagCall | throws},

	// Return
	OpReturn:     {"return", FormatNone, FlagReturn},
	OpReturn64:   {"return.64", FormatNone, FlagReturn},
	OpReturnObj:  {"return.obj", FormatNone, FlagReturn},
	OpReturnVoid: {"return.void", FormatNone, FlagReturn},
	OpThrow:      {"throw", FormatV, throws},
}

// opcodesByName is the reverse of opcodeInfoTable, used by the assembler.
var opcodesByName = func() map[string]Opcode {
	m := make(map[string]Opcode, len(opcodeInfoTable))
	for op, info := range opcodeInfoTable {
		m[info.Name] = op
	}
	return m
}()

// GetOpcodeInfo returns metadata for an opcode.
// The second result is false if the opcode is not defined.
func GetOpcodeInfo(op Opcode) (OpcodeInfo, bool) {
	info, ok := opcodeInfoTable[op]
	return info, ok
}

// LookupOpcode returns the opcode with the given mnemonic.
func LookupOpcode(name string) (Opcode, bool) {
	op, ok := opcodesByName[name]
	return op, ok
}

// String returns the mnemonic of an opcode.
func (op Opcode) String() string {
	if info, ok := opcodeInfoTable[op]; ok {
		return info.Name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// Format returns the operand layout of the opcode.
func (op Opcode) Format() Format {
	return opcodeInfoTable[op].Format
}

func (op Opcode) hasFlag(f OpFlags) bool {
	return opcodeInfoTable[op].Flags&f != 0
}

// IsJump returns true if this opcode carries a jump offset.
func (op Opcode) IsJump() bool { return op.hasFlag(FlagJump) }

// IsConditional returns true if this jump may fall through.
func (op Opcode) IsConditional() bool { return op.hasFlag(FlagConditional) }

// IsReturn returns true if this opcode returns from the method.
func (op Opcode) IsReturn() bool { return op.hasFlag(FlagReturn) }

// CanThrow returns true if executing this opcode may raise an exception.
func (op Opcode) CanThrow() bool { return op.hasFlag(FlagThrows) }

// IsCall returns true if this opcode invokes a method.
func (op Opcode) IsCall() bool { return op.hasFlag(FlagCall) }

// IsTerminator returns true if control never falls through to the next
// instruction.
func (op Opcode) IsTerminator() bool {
	return op == OpJmp || op == OpThrow || op.IsReturn()
}

// AllOpcodes returns a slice of all defined opcodes.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}

// IDKind classifies the constant pool entry an id operand refers to.
type IDKind uint8

const (
	IDNone IDKind = iota
	IDClass
	IDField
	IDMethod
	IDString
)

// String returns the name of the id kind.
func (k IDKind) String() string {
	switch k {
	case IDClass:
		return "class"
	case IDField:
		return "field"
	case IDMethod:
		return "method"
	case IDString:
		return "string"
	default:
		return "none"
	}
}

// IDKind returns which pool entry kind the opcode's id operand refers to.
func (op Opcode) IDKind() IDKind {
	switch op {
	case OpNewobj, OpNewarr, OpCheckcast, OpIsinstance, OpLdaType:
		return IDClass
	case OpLdobj, OpLdobj64, OpLdobjObj, OpStobj, OpStobj64, OpStobjObj,
		OpLdstatic, OpLdstatic64, OpLdstaticObj, OpStstatic, OpStstatic64, OpStstaticObj:
		return IDField
	case OpCall, OpCallVirt, OpCallRange, OpInitobj:
		return IDMethod
	case OpLdaStr:
		return IDString
	default:
		return IDNone
	}
}
