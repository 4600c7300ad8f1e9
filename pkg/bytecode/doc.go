// Package bytecode defines the register+accumulator instruction set that the
// verifier checks, together with the tooling needed to produce and inspect it.
//
// The format is designed for:
//   - Fixed decoding per opcode (one operand layout, the Format, per opcode)
//   - Big-endian operands, like the rest of the toolchain's encodings
//   - Jumps encoded as signed 16-bit offsets relative to the jump's own address
//
// # Architecture Overview
//
//   - Opcodes: ~120 instructions grouped into families (moves, accumulator
//     loads and stores, integer and float arithmetic, conversions, branches,
//     object and array access, casts, calls, returns).
//
//   - Formats: the operand layout of each opcode. Only the decoder looks at
//     formats; handlers consume the decoded Instruction.
//
//   - Decode/Cursor: turns raw code bytes into Instructions and reports
//     invalid opcodes and truncated operands.
//
//   - Chunk: a code builder with jump patching and labels.
//
//   - Assemble/Disassemble: a line-oriented text form used by program files
//     and by the CLI.
//
// # Registers
//
// Virtual registers are numbered from 0. Method arguments follow the declared
// virtual registers. The accumulator is implicit in the encoding; the verifier
// represents it as register index -1.
package bytecode
